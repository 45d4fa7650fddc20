// model/intent.go
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type IntentStatus string

const (
	IntentPending          IntentStatus = "PENDING"
	IntentCompleted        IntentStatus = "COMPLETED"
	IntentFailed           IntentStatus = "FAILED"
	IntentCreditedToWallet IntentStatus = "CREDITED_TO_WALLET"
)

// CanTransition reports whether the one-way status machine allows s -> to.
func (s IntentStatus) CanTransition(to IntentStatus) bool {
	switch s {
	case IntentPending:
		return to == IntentCompleted || to == IntentFailed
	case IntentCompleted:
		return to == IntentCreditedToWallet
	}
	return false
}

func (s IntentStatus) Terminal() bool {
	return s == IntentFailed || s == IntentCreditedToWallet
}

// VoltzType discriminates the purchase category (and so the channel).
type VoltzType string

const (
	VoltzFoundational VoltzType = "FOUNDATIONAL"
	VoltzGeneral      VoltzType = "GENERAL"
)

// PaymentIntent is one attempted money-in transaction. Rows are never deleted.
type PaymentIntent struct {
	ID            int64           `json:"id"`
	UserID        *int64          `json:"user_id,omitempty"`
	GuestID       *int64          `json:"guest_id,omitempty"`
	VoltzType     VoltzType       `json:"voltz_type"`
	Quantity      int64           `json:"quantity"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	OnlineToken   *string         `json:"online_token,omitempty"`
	Status        IntentStatus    `json:"status"`
	FailureReason *string         `json:"failure_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (p PaymentIntent) Requester() Requester {
	if p.UserID != nil {
		return UserRequester(*p.UserID)
	}
	if p.GuestID != nil {
		return GuestRequester(*p.GuestID)
	}
	return Requester{}
}

// SetRequester stamps exactly one of UserID / GuestID.
func (p *PaymentIntent) SetRequester(r Requester) {
	id := r.ID
	p.UserID, p.GuestID = nil, nil
	if r.IsUser() {
		p.UserID = &id
	} else {
		p.GuestID = &id
	}
}
