package echoServer

import (
	"net/http"

	"voltzpay/app/echoServer/controller/donation"
	"voltzpay/app/echoServer/controller/guest"
	"voltzpay/app/echoServer/controller/voltz"
	"voltzpay/app/echoServer/controller/wallet"
	"voltzpay/app/echoServer/jwtx"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

type C struct {
	Voltz     *voltz.Controller
	Guest     *guest.Controller
	Donation  *donation.Controller
	Wallet    *wallet.Controller
	JWTSecret string
}

func Register(e *echo.Echo, c C) {
	// Public
	pub := e.Group("/v1/guest")
	pub.POST("/voltz/:type/intents", c.Guest.CreateIntent)
	pub.POST("/voltz/:type/intents/verify", c.Guest.VerifyIntent)

	// Auth
	auth := e.Group("/v1")
	auth.Use(echojwt.WithConfig(echojwt.Config{
		SigningKey: []byte(c.JWTSecret),

		NewClaimsFunc: func(c echo.Context) jwt.Claims { return jwt.MapClaims{} },
		TokenLookup:   "header:Authorization:Bearer ",
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
		},
	}))
	// user_id extraction
	auth.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			uid, err := jwtx.UserIDFromContext(ctx)
			if err != nil {
				reqID := ctx.Response().Header().Get(echo.HeaderXRequestID)
				ctx.Logger().Warnf("[AUTH] %v req_id=%s ip=%s", err, reqID, ctx.RealIP())
				return ctx.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
			}
			ctx.Set("user_id", uid)
			return next(ctx)
		}
	})

	// Voltz purchases
	auth.POST("/voltz/:type/intents", c.Voltz.CreateIntent)
	auth.POST("/voltz/:type/intents/verify", c.Voltz.VerifyIntent)

	// Donations
	auth.POST("/events/:id/donations", c.Donation.Create)
	auth.POST("/donations/verify", c.Donation.Verify)

	// Wallet
	auth.GET("/wallet", c.Wallet.Balance)
	auth.GET("/wallet/ledger", c.Wallet.Ledger)
	auth.GET("/wallet/intents", c.Wallet.Intents)
}
