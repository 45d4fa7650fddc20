// Package main voltz settlement API.
//
// @title           voltzpay API
// @version         1.0
// @description     voltz purchases, event donations and wallet reads.
// @BasePath        /
// @schemes         http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description  Use:  Bearer <JWT>
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"voltzpay/config"
	"voltzpay/repository/ledger/pgstore"
	reconcilesvc "voltzpay/service/reconcile"
	"voltzpay/util/database"
	"voltzpay/util/jwt"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:          "voltzpay",
		Short:        "voltz purchase and donation settlement service",
		Version:      Version,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded Postgres schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.ValidateFields("DatabaseURL"); err != nil {
				return err
			}
			ctx := cmd.Context()
			db, err := database.New(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("db connect: %w", err)
			}
			defer db.Close()
			if err := db.Migrate(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
			return nil
		},
	}
}

func reconcileCmd() *cobra.Command {
	var since time.Duration
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "List payments that failed at the gateway, one JSON object per line",
		Long: `List intents and donations marked FAILED after a gateway error or
timeout. The provider may still have captured some of them; compare each
token with the provider's records and settle by hand. Nothing is changed.

Examples:
  voltzpay reconcile
  voltzpay reconcile --since 24h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.ValidateFields("DatabaseURL"); err != nil {
				return err
			}
			ctx := cmd.Context()
			db, err := database.New(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("db connect: %w", err)
			}
			defer db.Close()

			items, err := reconcilesvc.New(pgstore.New(db.Pool)).Failed(ctx, time.Now().Add(-since))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, it := range items {
				if err := enc.Encode(it); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&since, "since", 72*time.Hour, "look back this far")
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		userID int64
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a JWT for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID <= 0 {
				return fmt.Errorf("--user-id is required")
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.ValidateFields("JWTSecret"); err != nil {
				return err
			}
			tok, err := jwt.Issue(cfg.JWTSecret, userID, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user-id", 0, "subject user id")
	cmd.Flags().StringVar(&role, "role", "user", "role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

// shutdownCtx bounds cleanup after the serve context is cancelled.
func shutdownCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}
