package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"voltzpay/app/echoServer"
	donationctrl "voltzpay/app/echoServer/controller/donation"
	guestctrl "voltzpay/app/echoServer/controller/guest"
	voltzctrl "voltzpay/app/echoServer/controller/voltz"
	walletctrl "voltzpay/app/echoServer/controller/wallet"
	"voltzpay/app/echoServer/validation"
	"voltzpay/config"
	gatewayrepo "voltzpay/repository/gateway"
	"voltzpay/repository/ledger/pgstore"
	donationsvc "voltzpay/service/donation"
	"voltzpay/service/notify"
	"voltzpay/service/settlement"
	walletsvc "voltzpay/service/wallet"
	"voltzpay/util/database"
	"voltzpay/util/httpx"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	echoSwagger "github.com/swaggo/echo-swagger"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	sc, err := cfg.Settlement()
	if err != nil {
		return err
	}

	// logger
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("env", cfg.Env)

	// DB
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect failed", "err", err)
		return err
	}
	defer db.Close()

	// repos
	store := pgstore.New(db.Pool)
	gw := gatewayrepo.NewXML(gatewayrepo.Config{
		BaseURL: cfg.Gateway.URL,
		APIKey:  cfg.Gateway.APIKey,
		Secret:  cfg.Gateway.Secret,
		Timeout: cfg.Gateway.Timeout,
	}, httpx.Client())

	// notifications
	sinks := []notify.Sink{notify.LogSink{Log: log}}
	if cfg.NotifyDynamoTable != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return fmt.Errorf("aws config: %w", err)
		}
		sinks = append(sinks, notify.NewDynamoSink(dynamodb.NewFromConfig(awsCfg), cfg.NotifyDynamoTable))
		log.Info("dynamodb audit sink enabled", "table", cfg.NotifyDynamoTable)
	}
	bus := notify.NewBus(log, cfg.NotifyBuffer, sinks...)
	defer func() {
		sctx, cancel := shutdownCtx()
		defer cancel()
		if err := bus.Close(sctx); err != nil {
			log.Warn("notify drain incomplete", "err", err)
		}
	}()

	// services
	ss := settlement.New(store, gw, bus, sc, log)
	ds := donationsvc.New(store, gw, bus, cfg.Currency, log)
	ws := walletsvc.New(store)

	// controllers
	v := validation.NewValidate()
	voltzC := &voltzctrl.Controller{Svc: ss, V: v, Log: log}
	guestC := &guestctrl.Controller{Svc: ss, V: v, Log: log}
	donationC := &donationctrl.Controller{Svc: ds, V: v, Log: log}
	walletC := &walletctrl.Controller{Svc: ws, Log: log}

	// echo
	e := echo.New()
	e.HideBanner = true
	echoServer.RegisterMiddlewares(e, log)
	e.Validator = validation.New()

	e.GET("/health", func(c echo.Context) error {
		if err := db.Pool.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "degraded", "message": "database unreachable"})
		}
		return c.JSON(http.StatusOK, echo.Map{
			"status":  "ok",
			"message": "Service is healthy and connected",
		})
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	echoServer.Register(e, echoServer.C{
		Voltz:    voltzC,
		Guest:    guestC,
		Donation: donationC,
		Wallet:   walletC,

		JWTSecret: cfg.JWTSecret,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Port
	}
	log.Info("starting server", "port", port)

	errCh := make(chan error, 1)
	go func() { errCh <- e.Start(":" + port) }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	sctx, cancel := shutdownCtx()
	defer cancel()
	return e.Shutdown(sctx)
}
