package jwtx

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// UserIDFromContext reads the "sub" claim of the token echojwt stored
// under "user".
func UserIDFromContext(c echo.Context) (int64, error) {
	tok, ok := c.Get("user").(*jwt.Token)
	if !ok || tok == nil {
		return 0, errors.New("no jwt token in context")
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return 0, errors.New("invalid jwt claims")
	}

	if f, ok := claims["sub"].(float64); ok && f > 0 {
		return int64(f), nil
	}
	return 0, errors.New("sub missing in claims")
}
