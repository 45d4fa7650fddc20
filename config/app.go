package config

import (
	"time"

	"voltzpay/model"
)

type App struct {
	Port        string `validate:"required,numeric"`
	DatabaseURL string `validate:"required"`
	JWTSecret   string `validate:"required,min=16"`
	Env         string `validate:"oneof=dev test staging prod"`

	Gateway  Gateway
	Currency string  `validate:"required,len=3,uppercase"`
	Pricing  Pricing `validate:"required,dive,keys,oneof=FOUNDATIONAL GENERAL,endkeys"`

	// NotifyDynamoTable enables the DynamoDB audit sink when set.
	NotifyDynamoTable string
	NotifyBuffer      int `validate:"gte=0"`
}

type Gateway struct {
	URL     string        `validate:"required,url"`
	APIKey  string        `validate:"required"`
	Secret  string        `validate:"required"`
	Timeout time.Duration `validate:"gt=0s"`
}

// Pricing is keyed by voltz type.
type Pricing map[model.VoltzType]PriceRule

type PriceRule struct {
	Balance   model.BalanceName `yaml:"balance" validate:"oneof=foundational_voltz voltz"`
	UnitPrice string            `yaml:"unit_price" validate:"required,numeric"`
}
