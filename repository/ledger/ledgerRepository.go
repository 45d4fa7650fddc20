package ledgerrepo

import (
	"context"
	"errors"
	"time"

	"voltzpay/model"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned by InsertGuest when the contact already exists.
	ErrConflict = errors.New("already exists")
	// ErrDuplicateToken is returned when an online token is already stored
	// on another intent or donation.
	ErrDuplicateToken = errors.New("online token already in use")
)

// Tx is the only write path to accounts, intents, events and donations.
// Methods named ForUpdate lock the row until the transaction ends.
type Tx interface {
	// Requesters
	FindUser(ctx context.Context, userID int64) (*model.User, error)
	FindGuest(ctx context.Context, guestID int64) (*model.Guest, error)
	FindGuestByContact(ctx context.Context, email, phone string) (*model.Guest, error)
	InsertGuest(ctx context.Context, g *model.Guest) error

	// Accounts
	GetAccountForUpdate(ctx context.Context, userID int64) (*model.Account, error)
	SaveAccount(ctx context.Context, a *model.Account) error
	InsertLedger(ctx context.Context, e *model.LedgerEntry) error

	// Intents
	InsertIntent(ctx context.Context, in *model.PaymentIntent) error
	SetIntentToken(ctx context.Context, intentID int64, token string) error
	FindPendingIntentForUpdate(ctx context.Context, r model.Requester, token string, vt model.VoltzType) (*model.PaymentIntent, error)
	UpdateIntentStatus(ctx context.Context, intentID int64, from, to model.IntentStatus, reason *string) error

	// Events & donations
	GetEventForUpdate(ctx context.Context, eventID int64) (*model.Event, error)
	SetDonationReceived(ctx context.Context, eventID int64, received decimal.Decimal) error
	InsertDonation(ctx context.Context, d *model.Donation) error
	SetDonationToken(ctx context.Context, donationID int64, token string) error
	FindPendingDonationForUpdate(ctx context.Context, userID int64, token string) (*model.Donation, error)
	UpdateDonationStatus(ctx context.Context, donationID int64, from, to model.DonationStatus, reason *string) error
}

// Store runs units of work and serves read-only queries.
type Store interface {
	// InTx commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	Account(ctx context.Context, userID int64) (*model.Account, error)
	ListLedger(ctx context.Context, userID int64) ([]model.LedgerEntry, error)
	ListIntents(ctx context.Context, r model.Requester) ([]model.PaymentIntent, error)
	GetIntent(ctx context.Context, intentID int64) (*model.PaymentIntent, error)
	GetEvent(ctx context.Context, eventID int64) (*model.Event, error)
	GetDonation(ctx context.Context, donationID int64) (*model.Donation, error)

	ListFailedIntents(ctx context.Context, since time.Time) ([]model.PaymentIntent, error)
	ListFailedDonations(ctx context.Context, since time.Time) ([]model.Donation, error)
}

// ErrStaleStatus is returned by the Update*Status methods when the row is
// no longer in the expected from-status.
var ErrStaleStatus = errors.New("status changed concurrently")
