package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"voltzpay/model"
	"voltzpay/service/settlement"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Load reads the environment, after an optional .env file, and the YAML
// pricing file named by PRICING_FILE. It does not validate; callers pick
// the fields they need with Validate or ValidateFields.
func Load() (App, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return App{}, fmt.Errorf("load .env: %w", err)
	}

	timeout, err := time.ParseDuration(getenv("GATEWAY_TIMEOUT", "15s"))
	if err != nil {
		return App{}, fmt.Errorf("GATEWAY_TIMEOUT: %w", err)
	}
	buffer, err := strconv.Atoi(getenv("NOTIFY_BUFFER", "256"))
	if err != nil {
		return App{}, fmt.Errorf("NOTIFY_BUFFER: %w", err)
	}

	cfg := App{
		Port:        getenv("APP_PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   getenv("JWT_SECRET", "local_dev_secret"),
		Env:         getenv("APP_ENV", "dev"),
		Gateway: Gateway{
			URL:     os.Getenv("GATEWAY_URL"),
			APIKey:  os.Getenv("GATEWAY_API_KEY"),
			Secret:  os.Getenv("GATEWAY_SECRET"),
			Timeout: timeout,
		},
		Currency: getenv("CURRENCY", "USD"),
		Pricing: Pricing{
			model.VoltzFoundational: {Balance: model.BalanceFoundationalVoltz, UnitPrice: getenv("FOUNDATIONAL_UNIT_PRICE", "30")},
			model.VoltzGeneral:      {Balance: model.BalanceVoltz, UnitPrice: getenv("VOLTZ_UNIT_PRICE", "10")},
		},
		NotifyDynamoTable: os.Getenv("NOTIFY_DYNAMO_TABLE"),
		NotifyBuffer:      buffer,
	}

	if p := os.Getenv("PRICING_FILE"); p != "" {
		if err := cfg.mergePricingFile(p); err != nil {
			return App{}, err
		}
	}
	return cfg, nil
}

type pricingFile struct {
	Currency string  `yaml:"currency"`
	Channels Pricing `yaml:"channels"`
}

// mergePricingFile overrides the env pricing with the channels listed in
// the file. Channels not listed keep their env price.
func (a *App) mergePricingFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read pricing file: %w", err)
	}
	var pf pricingFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return fmt.Errorf("parse pricing file %s: %w", path, err)
	}
	if pf.Currency != "" {
		a.Currency = pf.Currency
	}
	for vt, rule := range pf.Channels {
		a.Pricing[vt] = rule
	}
	return nil
}

var validate = validator.New()

// Validate checks every field; used by serve.
func (a App) Validate() error {
	if err := validate.Struct(a); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	_, err := a.Channels()
	return err
}

// ValidateFields checks only the named fields, e.g. "DatabaseURL" for the
// migrate command.
func (a App) ValidateFields(fields ...string) error {
	if err := validate.StructPartial(a, fields...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Channels turns the pricing table into settlement channels.
func (a App) Channels() (map[model.VoltzType]settlement.Channel, error) {
	out := make(map[model.VoltzType]settlement.Channel, len(a.Pricing))
	for vt, rule := range a.Pricing {
		unit, err := decimal.NewFromString(rule.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("price for %s: %w", vt, err)
		}
		if !unit.IsPositive() {
			return nil, fmt.Errorf("price for %s must be positive", vt)
		}
		if !rule.Balance.Valid() {
			return nil, fmt.Errorf("balance for %s: unknown %q", vt, rule.Balance)
		}
		out[vt] = settlement.Channel{Balance: rule.Balance, Price: settlement.FixedUnitPrice(unit)}
	}
	return out, nil
}

func (a App) Settlement() (settlement.Config, error) {
	ch, err := a.Channels()
	if err != nil {
		return settlement.Config{}, err
	}
	return settlement.Config{Currency: a.Currency, Channels: ch}, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
