package settlement

import (
	"voltzpay/model"

	"github.com/shopspring/decimal"
)

// PricingRule turns a requested quantity into the amount charged.
type PricingRule func(qty int64) decimal.Decimal

func FixedUnitPrice(unit decimal.Decimal) PricingRule {
	return func(qty int64) decimal.Decimal {
		return unit.Mul(decimal.NewFromInt(qty))
	}
}

// Channel is one purchasable voltz category: what it costs and which
// account balance it credits.
type Channel struct {
	Balance model.BalanceName
	Price   PricingRule
}

type Config struct {
	Currency string
	Channels map[model.VoltzType]Channel
}

// DefaultChannels prices both voltz types at the given unit prices.
func DefaultChannels(foundational, general decimal.Decimal) map[model.VoltzType]Channel {
	return map[model.VoltzType]Channel{
		model.VoltzFoundational: {Balance: model.BalanceFoundationalVoltz, Price: FixedUnitPrice(foundational)},
		model.VoltzGeneral:      {Balance: model.BalanceVoltz, Price: FixedUnitPrice(general)},
	}
}
