// Package testcontract is the behaviour every ledgerrepo.Store must show.
// Each implementation runs it from its own tests.
package testcontract

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"voltzpay/model"
	ledgerrepo "voltzpay/repository/ledger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// Seeder inserts rows owned by other services (users, events).
type Seeder interface {
	AddUser(u model.User)
	AddEvent(e model.Event)
}

type SetupFunc func(t *testing.T) (ledgerrepo.Store, Seeder)

func TestStoreContract(t *testing.T, setup SetupFunc) {
	t.Run("Tx", func(t *testing.T) { runTxTests(t, setup) })
	t.Run("Guests", func(t *testing.T) { runGuestTests(t, setup) })
	t.Run("Intents", func(t *testing.T) { runIntentTests(t, setup) })
	t.Run("Accounts", func(t *testing.T) { runAccountTests(t, setup) })
	t.Run("Donations", func(t *testing.T) { runDonationTests(t, setup) })
}

func ptr[T any](v T) *T { return &v }

func newIntent(r model.Requester, token *string) *model.PaymentIntent {
	in := &model.PaymentIntent{
		VoltzType:   model.VoltzFoundational,
		Quantity:    5,
		Amount:      decimal.NewFromInt(150),
		Currency:    "USD",
		OnlineToken: token,
		Status:      model.IntentPending,
	}
	in.SetRequester(r)
	return in
}

func runTxTests(t *testing.T, setup SetupFunc) {
	t.Run("rollback discards writes", func(t *testing.T) {
		store, seed := setup(t)
		seed.AddUser(model.User{ID: 1, Email: "a@example.com"})
		ctx := context.Background()

		boom := errors.New("boom")
		err := store.InTx(ctx, func(tx ledgerrepo.Tx) error {
			if err := tx.InsertIntent(ctx, newIntent(model.UserRequester(1), nil)); err != nil {
				return err
			}
			a, err := tx.GetAccountForUpdate(ctx, 1)
			if err != nil {
				return err
			}
			a.Credit(model.BalanceVoltz, decimal.NewFromInt(10))
			if err := tx.SaveAccount(ctx, a); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		list, err := store.ListIntents(ctx, model.UserRequester(1))
		require.NoError(t, err)
		require.Empty(t, list)

		a, err := store.Account(ctx, 1)
		require.NoError(t, err)
		require.True(t, a.Voltz.IsZero())
	})

	t.Run("commit persists writes", func(t *testing.T) {
		store, seed := setup(t)
		seed.AddUser(model.User{ID: 1, Email: "a@example.com"})
		ctx := context.Background()

		var id int64
		err := store.InTx(ctx, func(tx ledgerrepo.Tx) error {
			in := newIntent(model.UserRequester(1), nil)
			if err := tx.InsertIntent(ctx, in); err != nil {
				return err
			}
			id = in.ID
			return tx.SetIntentToken(ctx, in.ID, "tok-commit")
		})
		require.NoError(t, err)

		got, err := store.GetIntent(ctx, id)
		require.NoError(t, err)
		require.Equal(t, model.IntentPending, got.Status)
		require.NotNil(t, got.OnlineToken)
		require.Equal(t, "tok-commit", *got.OnlineToken)
		require.True(t, decimal.NewFromInt(150).Equal(got.Amount))
		require.Equal(t, int64(5), got.Quantity)
	})
}

func runGuestTests(t *testing.T, setup SetupFunc) {
	t.Run("find by contact is case-insensitive on email", func(t *testing.T) {
		store, _ := setup(t)
		ctx := context.Background()

		err := store.InTx(ctx, func(tx ledgerrepo.Tx) error {
			g := &model.Guest{FirstName: "G", Email: "Guest@Example.com", Phone: "+1555"}
			if err := tx.InsertGuest(ctx, g); err != nil {
				return err
			}
			require.NotZero(t, g.ID)

			found, err := tx.FindGuestByContact(ctx, "guest@example.com", "+1555")
			require.NoError(t, err)
			require.Equal(t, g.ID, found.ID)

			_, err = tx.FindGuestByContact(ctx, "guest@example.com", "+1999")
			require.ErrorIs(t, err, ledgerrepo.ErrNotFound)

			err = tx.InsertGuest(ctx, &model.Guest{Email: "GUEST@example.com", Phone: "+1555"})
			require.ErrorIs(t, err, ledgerrepo.ErrConflict)

			byID, err := tx.FindGuest(ctx, g.ID)
			require.NoError(t, err)
			require.Equal(t, "G", byID.FirstName)
			return nil
		})
		require.NoError(t, err)
	})
}

func runIntentTests(t *testing.T, setup SetupFunc) {
	t.Run("pending lookup filters requester, voltz type and status", func(t *testing.T) {
		store, seed := setup(t)
		seed.AddUser(model.User{ID: 1, Email: "a@example.com"})
		seed.AddUser(model.User{ID: 2, Email: "b@example.com"})
		ctx := context.Background()

		var id int64
		require.NoError(t, store.InTx(ctx, func(tx ledgerrepo.Tx) error {
			in := newIntent(model.UserRequester(1), ptr("tok-a"))
			if err := tx.InsertIntent(ctx, in); err != nil {
				return err
			}
			id = in.ID
			return nil
		}))

		require.NoError(t, store.InTx(ctx, func(tx ledgerrepo.Tx) error {
			_, err := tx.FindPendingIntentForUpdate(ctx, model.UserRequester(2), "tok-a", model.VoltzFoundational)
			require.ErrorIs(t, err, ledgerrepo.ErrNotFound)

			_, err = tx.FindPendingIntentForUpdate(ctx, model.UserRequester(1), "tok-a", model.VoltzGeneral)
			require.ErrorIs(t, err, ledgerrepo.ErrNotFound)

			_, err = tx.FindPendingIntentForUpdate(ctx, model.GuestRequester(1), "tok-a", model.VoltzFoundational)
			require.ErrorIs(t, err, ledgerrepo.ErrNotFound)

			in, err := tx.FindPendingIntentForUpdate(ctx, model.UserRequester(1), "tok-a", model.VoltzFoundational)
			require.NoError(t, err)
			require.Equal(t, id, in.ID)

			require.NoError(t, tx.UpdateIntentStatus(ctx, id, model.IntentPending, model.IntentFailed, ptr("declined")))
			require.ErrorIs(t, tx.UpdateIntentStatus(ctx, id, model.IntentPending, model.IntentCompleted, nil), ledgerrepo.ErrStaleStatus)

			_, err = tx.FindPendingIntentForUpdate(ctx, model.UserRequester(1), "tok-a", model.VoltzFoundational)
			require.ErrorIs(t, err, ledgerrepo.ErrNotFound)
			return nil
		}))

		got, err := store.GetIntent(ctx, id)
		require.NoError(t, err)
		require.Equal(t, model.IntentFailed, got.Status)
		require.Equal(t, "declined", *got.FailureReason)

		failed, err := store.ListFailedIntents(ctx, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		require.Len(t, failed, 1)
		failed, err = store.ListFailedIntents(ctx, time.Now().Add(time.Hour))
		require.NoError(t, err)
		require.Empty(t, failed)
	})

	t.Run("token is unique", func(t *testing.T) {
		store, seed := setup(t)
		seed.AddUser(model.User{ID: 1, Email: "a@example.com"})
		ctx := context.Background()

		require.NoError(t, store.InTx(ctx, func(tx ledgerrepo.Tx) error {
			return tx.InsertIntent(ctx, newIntent(model.UserRequester(1), ptr("dup")))
		}))
		err := store.InTx(ctx, func(tx ledgerrepo.Tx) error {
			in := newIntent(model.UserRequester(1), nil)
			if err := tx.InsertIntent(ctx, in); err != nil {
				return err
			}
			return tx.SetIntentToken(ctx, in.ID, "dup")
		})
		require.ErrorIs(t, err, ledgerrepo.ErrDuplicateToken)

		list, err := store.ListIntents(ctx, model.UserRequester(1))
		require.NoError(t, err)
		require.Len(t, list, 1)
	})

	t.Run("concurrent settlement transitions once", func(t *testing.T) {
		store, seed := setup(t)
		seed.AddUser(model.User{ID: 1, Email: "a@example.com"})
		ctx := context.Background()

		require.NoError(t, store.InTx(ctx, func(tx ledgerrepo.Tx) error {
			return tx.InsertIntent(ctx, newIntent(model.UserRequester(1), ptr("race")))
		}))

		const n = 8
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			settled int
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := store.InTx(ctx, func(tx ledgerrepo.Tx) error {
					in, err := tx.FindPendingIntentForUpdate(ctx, model.UserRequester(1), "race", model.VoltzFoundational)
					if err != nil {
						return err
					}
					return tx.UpdateIntentStatus(ctx, in.ID, model.IntentPending, model.IntentCompleted, nil)
				})
				if err == nil {
					mu.Lock()
					settled++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		require.Equal(t, 1, settled)
	})
}

func runAccountTests(t *testing.T, setup SetupFunc) {
	t.Run("credit with ledger entry", func(t *testing.T) {
		store, seed := setup(t)
		seed.AddUser(model.User{ID: 1, Email: "a@example.com"})
		ctx := context.Background()

		require.NoError(t, store.InTx(ctx, func(tx ledgerrepo.Tx) error {
			a, err := tx.GetAccountForUpdate(ctx, 1)
			if err != nil {
				return err
			}
			after := a.Credit(model.BalanceFoundationalVoltz, decimal.NewFromInt(5))
			if err := tx.SaveAccount(ctx, a); err != nil {
				return err
			}
			return tx.InsertLedger(ctx, &model.LedgerEntry{
				UserID:       1,
				RefTable:     "payment_intents",
				RefID:        ptr(int64(9)),
				EntryType:    model.LedgerVoltzPurchase,
				Balance:      model.BalanceFoundationalVoltz,
				Amount:       decimal.NewFromInt(5),
				BalanceAfter: after,
			})
		}))

		a, err := store.Account(ctx, 1)
		require.NoError(t, err)
		require.True(t, decimal.NewFromInt(5).Equal(a.FoundationalVoltz))
		require.True(t, a.Voltz.IsZero())

		rows, err := store.ListLedger(ctx, 1)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		require.Equal(t, model.LedgerVoltzPurchase, rows[0].EntryType)
		require.Equal(t, model.BalanceFoundationalVoltz, rows[0].Balance)
		require.True(t, decimal.NewFromInt(5).Equal(rows[0].BalanceAfter))
	})

	t.Run("unknown user", func(t *testing.T) {
		store, _ := setup(t)
		ctx := context.Background()
		err := store.InTx(ctx, func(tx ledgerrepo.Tx) error {
			_, err := tx.GetAccountForUpdate(ctx, 404)
			return err
		})
		require.ErrorIs(t, err, ledgerrepo.ErrNotFound)

		err = store.InTx(ctx, func(tx ledgerrepo.Tx) error {
			_, err := tx.FindUser(ctx, 404)
			return err
		})
		require.ErrorIs(t, err, ledgerrepo.ErrNotFound)
	})
}

func runDonationTests(t *testing.T, setup SetupFunc) {
	t.Run("donation lifecycle and event total", func(t *testing.T) {
		store, seed := setup(t)
		seed.AddUser(model.User{ID: 1, Email: "a@example.com"})
		required := decimal.NewFromInt(100)
		seed.AddEvent(model.Event{ID: 7, Title: "Wells", ActivationStatus: model.EventActive, DonationRequired: &required, DonationReceived: decimal.NewFromInt(80)})
		ctx := context.Background()

		var id int64
		require.NoError(t, store.InTx(ctx, func(tx ledgerrepo.Tx) error {
			d := &model.Donation{UserID: 1, EventID: 7, Amount: decimal.NewFromInt(20), Currency: "USD", Status: model.DonationPending}
			if err := tx.InsertDonation(ctx, d); err != nil {
				return err
			}
			id = d.ID
			return tx.SetDonationToken(ctx, d.ID, "don-1")
		}))

		require.NoError(t, store.InTx(ctx, func(tx ledgerrepo.Tx) error {
			_, err := tx.FindPendingDonationForUpdate(ctx, 2, "don-1")
			require.ErrorIs(t, err, ledgerrepo.ErrNotFound)

			d, err := tx.FindPendingDonationForUpdate(ctx, 1, "don-1")
			require.NoError(t, err)
			require.Equal(t, id, d.ID)

			ev, err := tx.GetEventForUpdate(ctx, 7)
			require.NoError(t, err)
			require.NotNil(t, ev.DonationRequired)
			if err := tx.SetDonationReceived(ctx, 7, ev.DonationReceived.Add(d.Amount)); err != nil {
				return err
			}
			return tx.UpdateDonationStatus(ctx, d.ID, model.DonationPending, model.DonationCompleted, nil)
		}))

		ev, err := store.GetEvent(ctx, 7)
		require.NoError(t, err)
		require.True(t, decimal.NewFromInt(100).Equal(ev.DonationReceived))

		d, err := store.GetDonation(ctx, id)
		require.NoError(t, err)
		require.Equal(t, model.DonationCompleted, d.Status)

		err = store.InTx(ctx, func(tx ledgerrepo.Tx) error {
			return tx.UpdateDonationStatus(ctx, id, model.DonationPending, model.DonationFailed, nil)
		})
		require.ErrorIs(t, err, ledgerrepo.ErrStaleStatus)

		failed, err := store.ListFailedDonations(ctx, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		require.Empty(t, failed)
	})

	t.Run("event without target", func(t *testing.T) {
		store, seed := setup(t)
		seed.AddEvent(model.Event{ID: 8, ActivationStatus: model.EventActive})
		ev, err := store.GetEvent(context.Background(), 8)
		require.NoError(t, err)
		require.Nil(t, ev.DonationRequired)
		_, ok := ev.Remaining()
		require.False(t, ok)
	})
}
