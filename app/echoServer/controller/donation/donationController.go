package donation

import (
	"log/slog"
	"net/http"
	"strconv"

	"voltzpay/app/echoServer/controller"
	"voltzpay/app/echoServer/validation"
	ds "voltzpay/service/donation"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type Controller struct {
	Svc ds.Service
	V   *validator.Validate
	Log *slog.Logger
}

// POST /v1/events/:id/donations
// @Summary Start a donation to an event
// @Success 201 {object} map[string]any
// @Failure 400,401,404,502
func (h *Controller) Create(c echo.Context) error {
	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || eventID <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	var req CreateDonationReq
	if err := c.Bind(&req); err != nil {
		return controller.BadBody(c)
	}
	if err := h.V.Struct(req); err != nil {
		return controller.Invalid(c, validation.Fields(err))
	}

	out, err := h.Svc.CreateDonation(c.Request().Context(), ds.CreateDonationReq{
		UserID:      controller.UserID(c),
		EventID:     eventID,
		Amount:      req.Amount,
		RedirectURL: req.RedirectURL,
		ClientIP:    c.RealIP(),
	})
	if err != nil {
		return controller.WriteError(c, h.Log, "donation create", err, http.StatusBadGateway)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"donation_id": out.DonationID,
		"status":      "PENDING",
		"amount":      out.Amount.StringFixed(2),
		"currency":    out.Currency,
		"session_url": out.SessionURL,
	})
}

// POST /v1/donations/verify
func (h *Controller) Verify(c echo.Context) error {
	var req VerifyDonationReq
	if err := c.Bind(&req); err != nil {
		return controller.BadBody(c)
	}
	if err := h.V.Struct(req); err != nil {
		return controller.Invalid(c, validation.Fields(err))
	}

	d, err := h.Svc.VerifyDonation(c.Request().Context(), controller.UserID(c), req.Token)
	if err != nil {
		return controller.WriteError(c, h.Log, "donation verify", err, http.StatusPaymentRequired)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"donation_id": d.ID,
		"event_id":    d.EventID,
		"status":      d.Status,
	})
}
