package reconcile_test

import (
	"context"
	"testing"
	"time"

	"voltzpay/model"
	ledgerrepo "voltzpay/repository/ledger"
	"voltzpay/repository/ledger/inmem"
	"voltzpay/service/reconcile"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestFailed(t *testing.T) {
	store := inmem.New()
	store.AddUser(model.User{ID: 1, Email: "r@example.com"})
	store.AddEvent(model.Event{ID: 5, ActivationStatus: model.EventActive})
	ctx := context.Background()

	gwReason := "gateway confirm session: result 205"
	capReason := model.ReasonCapReached
	require.NoError(t, store.InTx(ctx, func(tx ledgerrepo.Tx) error {
		tok := "t-1"
		in := &model.PaymentIntent{VoltzType: model.VoltzFoundational, Quantity: 1, Amount: decimal.NewFromInt(30), Currency: "USD", OnlineToken: &tok, Status: model.IntentPending}
		in.SetRequester(model.UserRequester(1))
		if err := tx.InsertIntent(ctx, in); err != nil {
			return err
		}
		if err := tx.UpdateIntentStatus(ctx, in.ID, model.IntentPending, model.IntentFailed, &gwReason); err != nil {
			return err
		}

		for _, reason := range []*string{&gwReason, &capReason} {
			d := &model.Donation{UserID: 1, EventID: 5, Amount: decimal.NewFromInt(10), Currency: "USD", Status: model.DonationPending}
			if err := tx.InsertDonation(ctx, d); err != nil {
				return err
			}
			if err := tx.UpdateDonationStatus(ctx, d.ID, model.DonationPending, model.DonationFailed, reason); err != nil {
				return err
			}
		}

		// settled rows are not reported
		ok := &model.PaymentIntent{VoltzType: model.VoltzFoundational, Quantity: 1, Amount: decimal.NewFromInt(30), Currency: "USD", Status: model.IntentPending}
		ok.SetRequester(model.UserRequester(1))
		if err := tx.InsertIntent(ctx, ok); err != nil {
			return err
		}
		return tx.UpdateIntentStatus(ctx, ok.ID, model.IntentPending, model.IntentCompleted, nil)
	}))

	items, err := reconcile.New(store).Failed(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, items, 2)

	tables := map[string]reconcile.Item{}
	for _, it := range items {
		tables[it.RefTable] = it
	}
	require.Equal(t, "t-1", tables["payment_intents"].Token)
	require.Equal(t, "u:1", tables["payment_intents"].Requester)
	require.Equal(t, gwReason, tables["donations"].Reason)

	items, err = reconcile.New(store).Failed(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Empty(t, items)
}
