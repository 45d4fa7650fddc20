// model/wallet.go
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is the per-user wallet. It has no public mutation path outside
// a settlement transaction.
type Account struct {
	UserID            int64           `json:"user_id"`
	FoundationalVoltz decimal.Decimal `json:"foundational_voltz"`
	Voltz             decimal.Decimal `json:"voltz"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// BalanceName names one counter of an Account.
type BalanceName string

const (
	BalanceFoundationalVoltz BalanceName = "foundational_voltz"
	BalanceVoltz             BalanceName = "voltz"
)

func (b BalanceName) Valid() bool {
	return b == BalanceFoundationalVoltz || b == BalanceVoltz
}

func (a Account) Get(b BalanceName) decimal.Decimal {
	if b == BalanceFoundationalVoltz {
		return a.FoundationalVoltz
	}
	return a.Voltz
}

// Credit adds qty to the named balance and returns the new value.
func (a *Account) Credit(b BalanceName, qty decimal.Decimal) decimal.Decimal {
	switch b {
	case BalanceFoundationalVoltz:
		a.FoundationalVoltz = a.FoundationalVoltz.Add(qty)
		return a.FoundationalVoltz
	default:
		a.Voltz = a.Voltz.Add(qty)
		return a.Voltz
	}
}

type LedgerType string

const (
	LedgerVoltzPurchase LedgerType = "VOLTZ_PURCHASE"
	LedgerAdjust        LedgerType = "ADJUSTMENT"
)

type LedgerEntry struct {
	ID           int64           `json:"id"`
	UserID       int64           `json:"user_id"`
	RefTable     string          `json:"ref_table"`
	RefID        *int64          `json:"ref_id,omitempty"`
	EntryType    LedgerType      `json:"entry_type"`
	Balance      BalanceName     `json:"balance"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	CreatedAt    time.Time       `json:"created_at"`
}
