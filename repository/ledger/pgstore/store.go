// Package pgstore is the Postgres ledger store. Row locks (SELECT ... FOR
// UPDATE) under READ COMMITTED serialise concurrent settlement of the same
// intent, donation, account or event.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"voltzpay/model"
	ledgerrepo "voltzpay/repository/ledger"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Store struct{ pool *pgxpool.Pool }

var _ ledgerrepo.Store = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store { return &Store{pool: pool} }

func (s *Store) InTx(ctx context.Context, fn func(tx ledgerrepo.Tx) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if err = fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ledgerrepo.ErrNotFound
	}
	return err
}

func uniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// ---- reads ----

func (s *Store) Account(ctx context.Context, userID int64) (*model.Account, error) {
	return scanAccount(s.pool.QueryRow(ctx, `
SELECT user_id, foundational_voltz, voltz, updated_at
FROM accounts
WHERE user_id=$1`, userID))
}

func (s *Store) ListLedger(ctx context.Context, userID int64) ([]model.LedgerEntry, error) {
	const q = `
SELECT id, user_id, ref_table, ref_id, entry_type, balance, amount, balance_after, created_at
FROM wallet_ledger
WHERE user_id=$1
ORDER BY created_at DESC, id DESC`
	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.LedgerEntry
	for rows.Next() {
		var (
			e              model.LedgerEntry
			typ, balanceNm string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.RefTable, &e.RefID, &typ, &balanceNm, &e.Amount, &e.BalanceAfter, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.EntryType = model.LedgerType(typ)
		e.Balance = model.BalanceName(balanceNm)
		out = append(out, e)
	}
	return out, rows.Err()
}

const intentCols = `id, user_id, guest_id, voltz_type, quantity, amount, currency, online_token, status, failure_reason, created_at, updated_at`

func (s *Store) ListIntents(ctx context.Context, r model.Requester) ([]model.PaymentIntent, error) {
	col := "user_id"
	if r.IsGuest() {
		col = "guest_id"
	}
	return queryIntents(ctx, s.pool, `SELECT `+intentCols+` FROM payment_intents WHERE `+col+`=$1 ORDER BY id DESC`, r.ID)
}

func (s *Store) GetIntent(ctx context.Context, intentID int64) (*model.PaymentIntent, error) {
	return scanIntent(s.pool.QueryRow(ctx, `SELECT `+intentCols+` FROM payment_intents WHERE id=$1`, intentID))
}

func (s *Store) ListFailedIntents(ctx context.Context, since time.Time) ([]model.PaymentIntent, error) {
	return queryIntents(ctx, s.pool, `SELECT `+intentCols+` FROM payment_intents WHERE status='FAILED' AND created_at >= $1 ORDER BY id`, since)
}

const eventCols = `id, title, activation_status, closed_at, ends_at, donation_required, donation_received`

func (s *Store) GetEvent(ctx context.Context, eventID int64) (*model.Event, error) {
	return scanEvent(s.pool.QueryRow(ctx, `SELECT `+eventCols+` FROM events WHERE id=$1`, eventID))
}

const donationCols = `id, user_id, event_id, amount, currency, online_token, status, failure_reason, created_at, updated_at`

func (s *Store) GetDonation(ctx context.Context, donationID int64) (*model.Donation, error) {
	return scanDonation(s.pool.QueryRow(ctx, `SELECT `+donationCols+` FROM donations WHERE id=$1`, donationID))
}

func (s *Store) ListFailedDonations(ctx context.Context, since time.Time) ([]model.Donation, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+donationCols+` FROM donations WHERE status='FAILED' AND created_at >= $1 ORDER BY id`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Donation
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// ---- transaction ----

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) FindUser(ctx context.Context, userID int64) (*model.User, error) {
	u := &model.User{}
	err := t.tx.QueryRow(ctx, `
SELECT id, first_name, last_name, email, phone, street, city, state, country, zip_code, created_at
FROM users
WHERE id=$1`, userID).Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Phone,
		&u.Street, &u.City, &u.State, &u.Country, &u.ZipCode, &u.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

const guestCols = `id, first_name, last_name, email, phone, street, city, state, country, zip_code, created_at`

func scanGuest(row pgx.Row) (*model.Guest, error) {
	g := &model.Guest{}
	err := row.Scan(&g.ID, &g.FirstName, &g.LastName, &g.Email, &g.Phone,
		&g.Street, &g.City, &g.State, &g.Country, &g.ZipCode, &g.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return g, nil
}

func (t *pgTx) FindGuest(ctx context.Context, guestID int64) (*model.Guest, error) {
	return scanGuest(t.tx.QueryRow(ctx, `SELECT `+guestCols+` FROM guests WHERE id=$1`, guestID))
}

func (t *pgTx) FindGuestByContact(ctx context.Context, email, phone string) (*model.Guest, error) {
	return scanGuest(t.tx.QueryRow(ctx, `
SELECT `+guestCols+`
FROM guests
WHERE lower(email)=lower($1) AND phone=$2`, email, phone))
}

func (t *pgTx) InsertGuest(ctx context.Context, g *model.Guest) error {
	// ON CONFLICT keeps the transaction usable when a concurrent request
	// created the same guest first.
	const q = `
INSERT INTO guests (first_name, last_name, email, phone, street, city, state, country, zip_code)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT ((lower(email)), phone) DO NOTHING
RETURNING id, created_at`
	err := t.tx.QueryRow(ctx, q, g.FirstName, g.LastName, g.Email, g.Phone,
		g.Street, g.City, g.State, g.Country, g.ZipCode).Scan(&g.ID, &g.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledgerrepo.ErrConflict
	}
	return err
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	a := &model.Account{}
	if err := row.Scan(&a.UserID, &a.FoundationalVoltz, &a.Voltz, &a.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

func (t *pgTx) GetAccountForUpdate(ctx context.Context, userID int64) (*model.Account, error) {
	// Accounts are created lazily for users that predate the wallet.
	if _, err := t.tx.Exec(ctx, `
INSERT INTO accounts (user_id)
SELECT id FROM users WHERE id=$1
ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return nil, err
	}
	return scanAccount(t.tx.QueryRow(ctx, `
SELECT user_id, foundational_voltz, voltz, updated_at
FROM accounts
WHERE user_id=$1
FOR UPDATE`, userID))
}

func (t *pgTx) SaveAccount(ctx context.Context, a *model.Account) error {
	const q = `
UPDATE accounts
SET foundational_voltz=$2, voltz=$3, updated_at=now()
WHERE user_id=$1
RETURNING updated_at`
	return notFound(t.tx.QueryRow(ctx, q, a.UserID, a.FoundationalVoltz, a.Voltz).Scan(&a.UpdatedAt))
}

func (t *pgTx) InsertLedger(ctx context.Context, e *model.LedgerEntry) error {
	const q = `
INSERT INTO wallet_ledger (user_id, ref_table, ref_id, entry_type, balance, amount, balance_after)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING id, created_at`
	return t.tx.QueryRow(ctx, q, e.UserID, e.RefTable, e.RefID, string(e.EntryType), string(e.Balance), e.Amount, e.BalanceAfter).
		Scan(&e.ID, &e.CreatedAt)
}

func scanIntent(row pgx.Row) (*model.PaymentIntent, error) {
	var (
		in         model.PaymentIntent
		vt, status string
	)
	err := row.Scan(&in.ID, &in.UserID, &in.GuestID, &vt, &in.Quantity, &in.Amount, &in.Currency,
		&in.OnlineToken, &status, &in.FailureReason, &in.CreatedAt, &in.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	in.VoltzType = model.VoltzType(vt)
	in.Status = model.IntentStatus(status)
	return &in, nil
}

func queryIntents(ctx context.Context, q querier, sql string, args ...any) ([]model.PaymentIntent, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PaymentIntent
	for rows.Next() {
		in, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *in)
	}
	return out, rows.Err()
}

func (t *pgTx) InsertIntent(ctx context.Context, in *model.PaymentIntent) error {
	const q = `
INSERT INTO payment_intents (user_id, guest_id, voltz_type, quantity, amount, currency, online_token, status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING id, created_at, updated_at`
	err := t.tx.QueryRow(ctx, q, in.UserID, in.GuestID, string(in.VoltzType), in.Quantity, in.Amount,
		in.Currency, in.OnlineToken, string(in.Status)).Scan(&in.ID, &in.CreatedAt, &in.UpdatedAt)
	if uniqueViolation(err) {
		return ledgerrepo.ErrDuplicateToken
	}
	return err
}

func (t *pgTx) SetIntentToken(ctx context.Context, intentID int64, token string) error {
	tag, err := t.tx.Exec(ctx, `UPDATE payment_intents SET online_token=$2, updated_at=now() WHERE id=$1`, intentID, token)
	if uniqueViolation(err) {
		return ledgerrepo.ErrDuplicateToken
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ledgerrepo.ErrNotFound
	}
	return nil
}

func (t *pgTx) FindPendingIntentForUpdate(ctx context.Context, r model.Requester, token string, vt model.VoltzType) (*model.PaymentIntent, error) {
	col := "user_id"
	if r.IsGuest() {
		col = "guest_id"
	}
	// A second verifier blocks here until the first commits, then re-checks
	// status and finds nothing.
	return scanIntent(t.tx.QueryRow(ctx, `
SELECT `+intentCols+`
FROM payment_intents
WHERE `+col+`=$1 AND online_token=$2 AND voltz_type=$3 AND status='PENDING'
FOR UPDATE`, r.ID, token, string(vt)))
}

func (t *pgTx) UpdateIntentStatus(ctx context.Context, intentID int64, from, to model.IntentStatus, reason *string) error {
	const q = `
UPDATE payment_intents
SET status=$3, failure_reason=COALESCE($4, failure_reason), updated_at=now()
WHERE id=$1 AND status=$2`
	tag, err := t.tx.Exec(ctx, q, intentID, string(from), string(to), reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ledgerrepo.ErrStaleStatus
	}
	return nil
}

func scanEvent(row pgx.Row) (*model.Event, error) {
	var (
		e        model.Event
		status   string
		required decimal.NullDecimal
	)
	err := row.Scan(&e.ID, &e.Title, &status, &e.ClosedAt, &e.EndsAt, &required, &e.DonationReceived)
	if err != nil {
		return nil, notFound(err)
	}
	e.ActivationStatus = model.ActivationStatus(status)
	if required.Valid {
		r := required.Decimal
		e.DonationRequired = &r
	}
	return &e, nil
}

func (t *pgTx) GetEventForUpdate(ctx context.Context, eventID int64) (*model.Event, error) {
	return scanEvent(t.tx.QueryRow(ctx, `SELECT `+eventCols+` FROM events WHERE id=$1 FOR UPDATE`, eventID))
}

func (t *pgTx) SetDonationReceived(ctx context.Context, eventID int64, received decimal.Decimal) error {
	tag, err := t.tx.Exec(ctx, `UPDATE events SET donation_received=$2 WHERE id=$1`, eventID, received)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ledgerrepo.ErrNotFound
	}
	return nil
}

func scanDonation(row pgx.Row) (*model.Donation, error) {
	var (
		d      model.Donation
		status string
	)
	err := row.Scan(&d.ID, &d.UserID, &d.EventID, &d.Amount, &d.Currency, &d.OnlineToken,
		&status, &d.FailureReason, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	d.Status = model.DonationStatus(status)
	return &d, nil
}

func (t *pgTx) InsertDonation(ctx context.Context, d *model.Donation) error {
	const q = `
INSERT INTO donations (user_id, event_id, amount, currency, online_token, status)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id, created_at, updated_at`
	err := t.tx.QueryRow(ctx, q, d.UserID, d.EventID, d.Amount, d.Currency, d.OnlineToken, string(d.Status)).
		Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if uniqueViolation(err) {
		return ledgerrepo.ErrDuplicateToken
	}
	return err
}

func (t *pgTx) SetDonationToken(ctx context.Context, donationID int64, token string) error {
	tag, err := t.tx.Exec(ctx, `UPDATE donations SET online_token=$2, updated_at=now() WHERE id=$1`, donationID, token)
	if uniqueViolation(err) {
		return ledgerrepo.ErrDuplicateToken
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ledgerrepo.ErrNotFound
	}
	return nil
}

func (t *pgTx) FindPendingDonationForUpdate(ctx context.Context, userID int64, token string) (*model.Donation, error) {
	return scanDonation(t.tx.QueryRow(ctx, `
SELECT `+donationCols+`
FROM donations
WHERE user_id=$1 AND online_token=$2 AND status='PENDING'
FOR UPDATE`, userID, token))
}

func (t *pgTx) UpdateDonationStatus(ctx context.Context, donationID int64, from, to model.DonationStatus, reason *string) error {
	const q = `
UPDATE donations
SET status=$3, failure_reason=COALESCE($4, failure_reason), updated_at=now()
WHERE id=$1 AND status=$2`
	tag, err := t.tx.Exec(ctx, q, donationID, string(from), string(to), reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ledgerrepo.ErrStaleStatus
	}
	return nil
}
