package wallet

import (
	"log/slog"
	"net/http"

	"voltzpay/app/echoServer/controller"
	"voltzpay/service/wallet"

	"github.com/labstack/echo/v4"
)

type Controller struct {
	Svc wallet.Service
	Log *slog.Logger
}

// GET /v1/wallet
// @Summary Wallet balances of the caller
// @Success 200 {object} map[string]any
func (h *Controller) Balance(c echo.Context) error {
	a, err := h.Svc.Balance(c.Request().Context(), controller.UserID(c))
	if err != nil {
		return controller.WriteError(c, h.Log, "wallet balance", err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": a})
}

// GET /v1/wallet/ledger
func (h *Controller) Ledger(c echo.Context) error {
	rows, err := h.Svc.Ledger(c.Request().Context(), controller.UserID(c))
	if err != nil {
		return controller.WriteError(c, h.Log, "wallet ledger", err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// GET /v1/wallet/intents
func (h *Controller) Intents(c echo.Context) error {
	list, err := h.Svc.Intents(c.Request().Context(), controller.UserID(c))
	if err != nil {
		return controller.WriteError(c, h.Log, "wallet intents", err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": list})
}
