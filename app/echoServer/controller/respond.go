// Package controller holds what the resource controllers share: mapping
// service errors to HTTP responses.
package controller

import (
	"log/slog"
	"net/http"

	"voltzpay/service/payerr"

	"github.com/labstack/echo/v4"
)

// WriteError maps a service error to its response. gatewayStatus differs by
// operation: 502 when a session could not be opened, 402 when a payment was
// not completed.
func WriteError(c echo.Context, log *slog.Logger, op string, err error, gatewayStatus int) error {
	rid := c.Response().Header().Get(echo.HeaderXRequestID)
	switch payerr.Code(err) {
	case payerr.ErrValidation:
		log.Warn(op, "req_id", rid, "err", err)
		return c.JSON(http.StatusBadRequest, echo.Map{
			"message": payerr.Message(err),
			"errors":  payerr.FieldErrors(err),
		})
	case payerr.ErrNotFound:
		log.Warn(op, "req_id", rid, "err", err)
		return c.JSON(http.StatusNotFound, echo.Map{"message": payerr.Message(err)})
	case payerr.ErrGateway:
		log.Warn(op, "req_id", rid, "err", err)
		return c.JSON(gatewayStatus, echo.Map{"message": payerr.Message(err)})
	default:
		log.Error(op, "req_id", rid, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
}

// BadBody answers a request whose JSON could not be bound.
func BadBody(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid json"})
}

// Invalid answers a request that failed DTO validation.
func Invalid(c echo.Context, fields map[string]string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": fields})
}

// UserID is set by the auth group middleware.
func UserID(c echo.Context) int64 {
	uid, _ := c.Get("user_id").(int64)
	return uid
}
