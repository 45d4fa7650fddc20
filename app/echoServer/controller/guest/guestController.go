package guest

import (
	"log/slog"
	"net/http"

	"voltzpay/app/echoServer/controller"
	"voltzpay/app/echoServer/controller/voltz"
	"voltzpay/app/echoServer/validation"
	"voltzpay/model"
	"voltzpay/service/settlement"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Controller serves purchases by people without an account. Guest intents
// are tracked but never credited to a wallet.
type Controller struct {
	Svc settlement.Service
	V   *validator.Validate
	Log *slog.Logger
}

// POST /v1/guest/voltz/:type/intents
func (h *Controller) CreateIntent(c echo.Context) error {
	var req CreateIntentReq
	if err := c.Bind(&req); err != nil {
		return controller.BadBody(c)
	}
	if err := h.V.Struct(req); err != nil {
		return controller.Invalid(c, validation.Fields(err))
	}

	out, err := h.Svc.CreateIntent(c.Request().Context(), settlement.CreateIntentReq{
		Guest: &settlement.GuestContact{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     req.Email,
			Phone:     req.Phone,
			Street:    req.Street,
			City:      req.City,
			State:     req.State,
			Country:   req.Country,
			ZipCode:   req.ZipCode,
		},
		VoltzType:   voltz.VoltzType(c),
		Quantity:    req.Quantity,
		RedirectURL: req.RedirectURL,
		ClientIP:    c.RealIP(),
	})
	if err != nil {
		return controller.WriteError(c, h.Log, "guest create intent", err, http.StatusBadGateway)
	}
	res := voltz.CreatedResponse(out)
	res["ref"] = out.Requester.Ref()
	return c.JSON(http.StatusCreated, res)
}

// POST /v1/guest/voltz/:type/intents/verify
func (h *Controller) VerifyIntent(c echo.Context) error {
	var req VerifyIntentReq
	if err := c.Bind(&req); err != nil {
		return controller.BadBody(c)
	}
	if err := h.V.Struct(req); err != nil {
		return controller.Invalid(c, validation.Fields(err))
	}
	r, err := model.ParseRef(req.Ref)
	if err != nil || !r.IsGuest() {
		return controller.Invalid(c, map[string]string{"ref": "invalid"})
	}

	in, err := h.Svc.VerifyIntent(c.Request().Context(), r, voltz.VoltzType(c), req.Token)
	if err != nil {
		return controller.WriteError(c, h.Log, "guest verify intent", err, http.StatusPaymentRequired)
	}
	return c.JSON(http.StatusOK, voltz.VerifiedResponse(in))
}
