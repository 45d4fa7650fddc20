package voltz

import (
	"log/slog"
	"net/http"
	"strings"

	"voltzpay/app/echoServer/controller"
	"voltzpay/app/echoServer/validation"
	"voltzpay/model"
	"voltzpay/service/settlement"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type Controller struct {
	Svc settlement.Service
	V   *validator.Validate
	Log *slog.Logger
}

// VoltzType reads the :type path param, e.g. "foundational".
func VoltzType(c echo.Context) model.VoltzType {
	return model.VoltzType(strings.ToUpper(c.Param("type")))
}

// POST /v1/voltz/:type/intents
// @Summary Start a voltz purchase
// @Success 201 {object} map[string]any
// @Failure 400,401,404,502
func (h *Controller) CreateIntent(c echo.Context) error {
	var req CreateIntentReq
	if err := c.Bind(&req); err != nil {
		return controller.BadBody(c)
	}
	if err := h.V.Struct(req); err != nil {
		return controller.Invalid(c, validation.Fields(err))
	}

	out, err := h.Svc.CreateIntent(c.Request().Context(), settlement.CreateIntentReq{
		UserID:      controller.UserID(c),
		VoltzType:   VoltzType(c),
		Quantity:    req.Quantity,
		RedirectURL: req.RedirectURL,
		ClientIP:    c.RealIP(),
	})
	if err != nil {
		return controller.WriteError(c, h.Log, "voltz create intent", err, http.StatusBadGateway)
	}
	return c.JSON(http.StatusCreated, CreatedResponse(out))
}

// POST /v1/voltz/:type/intents/verify
// @Summary Verify a voltz purchase and credit the wallet
// @Success 200 {object} map[string]any
// @Failure 400,401,402,404
func (h *Controller) VerifyIntent(c echo.Context) error {
	var req VerifyIntentReq
	if err := c.Bind(&req); err != nil {
		return controller.BadBody(c)
	}
	if err := h.V.Struct(req); err != nil {
		return controller.Invalid(c, validation.Fields(err))
	}

	r := model.UserRequester(controller.UserID(c))
	in, err := h.Svc.VerifyIntent(c.Request().Context(), r, VoltzType(c), req.Token)
	if err != nil {
		return controller.WriteError(c, h.Log, "voltz verify intent", err, http.StatusPaymentRequired)
	}
	return c.JSON(http.StatusOK, VerifiedResponse(in))
}

func CreatedResponse(out *settlement.Created) echo.Map {
	return echo.Map{
		"intent_id":   out.IntentID,
		"status":      model.IntentPending,
		"amount":      out.Amount.StringFixed(2),
		"currency":    out.Currency,
		"session_url": out.SessionURL,
	}
}

func VerifiedResponse(in *model.PaymentIntent) echo.Map {
	return echo.Map{
		"intent_id":  in.ID,
		"status":     in.Status,
		"voltz_type": in.VoltzType,
		"quantity":   in.Quantity,
	}
}
