// model/donation.go
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type ActivationStatus string

const (
	EventActive   ActivationStatus = "ACTIVE"
	EventInactive ActivationStatus = "INACTIVE"
	EventRejected ActivationStatus = "REJECTED"
)

// Event carries only the donation-relevant fields.
type Event struct {
	ID               int64            `json:"id"`
	Title            string           `json:"title"`
	ActivationStatus ActivationStatus `json:"activation_status"`
	ClosedAt         *time.Time       `json:"closed_at,omitempty"`
	EndsAt           *time.Time       `json:"ends_at,omitempty"`
	DonationRequired *decimal.Decimal `json:"donation_required,omitempty"`
	DonationReceived decimal.Decimal  `json:"donation_received"`
}

// OpenForDonation reports whether new donations may be started at now.
func (e Event) OpenForDonation(now time.Time) bool {
	if e.ActivationStatus != EventActive || e.ClosedAt != nil {
		return false
	}
	return e.EndsAt == nil || now.Before(*e.EndsAt)
}

// Remaining is donation_required - donation_received, or false when the
// event has no target.
func (e Event) Remaining() (decimal.Decimal, bool) {
	if e.DonationRequired == nil {
		return decimal.Zero, false
	}
	rem := e.DonationRequired.Sub(e.DonationReceived)
	if rem.IsNegative() {
		rem = decimal.Zero
	}
	return rem, true
}

type DonationStatus string

const (
	DonationPending   DonationStatus = "PENDING"
	DonationCompleted DonationStatus = "COMPLETED"
	DonationFailed    DonationStatus = "FAILED"
)

// ReasonCapReached is stored on donations failed at verification because
// the event target was met in the meantime. No charge was captured.
const ReasonCapReached = "donation cap reached"

type Donation struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"user_id"`
	EventID       int64           `json:"event_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	OnlineToken   *string         `json:"online_token,omitempty"`
	Status        DonationStatus  `json:"status"`
	FailureReason *string         `json:"failure_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
