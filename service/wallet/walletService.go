package wallet

import (
	"context"
	"errors"
	"fmt"

	"voltzpay/model"
	ledgerrepo "voltzpay/repository/ledger"
	"voltzpay/service/payerr"
)

// Service is the read side of the wallet. Balances only change through
// settlement.
type Service interface {
	Balance(ctx context.Context, userID int64) (*model.Account, error)
	Ledger(ctx context.Context, userID int64) ([]model.LedgerEntry, error)
	Intents(ctx context.Context, userID int64) ([]model.PaymentIntent, error)
}

type service struct {
	store ledgerrepo.Store
}

func New(store ledgerrepo.Store) Service { return &service{store: store} }

func (s *service) Balance(ctx context.Context, userID int64) (*model.Account, error) {
	a, err := s.store.Account(ctx, userID)
	if errors.Is(err, ledgerrepo.ErrNotFound) {
		// users without any settled purchase have no account row yet
		return &model.Account{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("balance: %w", err)
	}
	return a, nil
}

func (s *service) Ledger(ctx context.Context, userID int64) ([]model.LedgerEntry, error) {
	if userID <= 0 {
		return nil, payerr.Validation("validation error", map[string]string{"user_id": "required"})
	}
	rows, err := s.store.ListLedger(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	return rows, nil
}

func (s *service) Intents(ctx context.Context, userID int64) ([]model.PaymentIntent, error) {
	if userID <= 0 {
		return nil, payerr.Validation("validation error", map[string]string{"user_id": "required"})
	}
	list, err := s.store.ListIntents(ctx, model.UserRequester(userID))
	if err != nil {
		return nil, fmt.Errorf("intents: %w", err)
	}
	return list, nil
}
