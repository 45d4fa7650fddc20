package wallet_test

import (
	"context"
	"testing"

	"voltzpay/model"
	ledgerrepo "voltzpay/repository/ledger"
	"voltzpay/repository/ledger/inmem"
	"voltzpay/service/payerr"
	"voltzpay/service/wallet"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestWalletReads(t *testing.T) {
	store := inmem.New()
	store.AddUser(model.User{ID: 3, Email: "w@example.com"})
	ctx := context.Background()

	token := "tok-w"
	require.NoError(t, store.InTx(ctx, func(tx ledgerrepo.Tx) error {
		in := &model.PaymentIntent{VoltzType: model.VoltzGeneral, Quantity: 2, Amount: decimal.NewFromInt(20), Currency: "USD", OnlineToken: &token, Status: model.IntentPending}
		in.SetRequester(model.UserRequester(3))
		if err := tx.InsertIntent(ctx, in); err != nil {
			return err
		}
		a, err := tx.GetAccountForUpdate(ctx, 3)
		if err != nil {
			return err
		}
		after := a.Credit(model.BalanceVoltz, decimal.NewFromInt(2))
		if err := tx.SaveAccount(ctx, a); err != nil {
			return err
		}
		return tx.InsertLedger(ctx, &model.LedgerEntry{UserID: 3, RefTable: "payment_intents", RefID: &in.ID, EntryType: model.LedgerVoltzPurchase, Balance: model.BalanceVoltz, Amount: decimal.NewFromInt(2), BalanceAfter: after})
	}))

	svc := wallet.New(store)

	a, err := svc.Balance(ctx, 3)
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(2).Equal(a.Voltz))

	rows, err := svc.Ledger(ctx, 3)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	list, err := svc.Intents(ctx, 3)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, model.VoltzGeneral, list[0].VoltzType)

	// unknown user reads as an empty wallet
	a, err = svc.Balance(ctx, 99)
	require.NoError(t, err)
	require.True(t, a.Voltz.IsZero())

	_, err = svc.Ledger(ctx, 0)
	require.Equal(t, payerr.ErrValidation, payerr.Code(err))
}
