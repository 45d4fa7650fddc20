// Package reconcile reports settlements that failed at the gateway so an
// operator can compare them with the provider's records. It never repairs
// anything.
package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"voltzpay/model"
	ledgerrepo "voltzpay/repository/ledger"

	"github.com/shopspring/decimal"
)

type Item struct {
	RefTable  string          `json:"ref_table"`
	RefID     int64           `json:"ref_id"`
	Requester string          `json:"requester"`
	Token     string          `json:"token,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Reason    string          `json:"reason"`
	CreatedAt time.Time       `json:"created_at"`
}

type Service interface {
	// Failed lists gateway-failed intents and donations created at or after
	// since, oldest first.
	Failed(ctx context.Context, since time.Time) ([]Item, error)
}

type service struct{ store ledgerrepo.Store }

func New(store ledgerrepo.Store) Service { return &service{store: store} }

func (s *service) Failed(ctx context.Context, since time.Time) ([]Item, error) {
	intents, err := s.store.ListFailedIntents(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed intents: %w", err)
	}
	donations, err := s.store.ListFailedDonations(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed donations: %w", err)
	}

	out := make([]Item, 0, len(intents)+len(donations))
	for _, in := range intents {
		out = append(out, Item{
			RefTable:  "payment_intents",
			RefID:     in.ID,
			Requester: in.Requester().Ref(),
			Token:     deref(in.OnlineToken),
			Amount:    in.Amount,
			Currency:  in.Currency,
			Reason:    deref(in.FailureReason),
			CreatedAt: in.CreatedAt,
		})
	}
	for _, d := range donations {
		reason := deref(d.FailureReason)
		// failed locally before any capture was attempted
		if reason == model.ReasonCapReached {
			continue
		}
		out = append(out, Item{
			RefTable:  "donations",
			RefID:     d.ID,
			Requester: model.UserRequester(d.UserID).Ref(),
			Token:     deref(d.OnlineToken),
			Amount:    d.Amount,
			Currency:  d.Currency,
			Reason:    reason,
			CreatedAt: d.CreatedAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
