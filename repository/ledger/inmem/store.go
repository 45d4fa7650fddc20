// Package inmem is an in-memory ledger store. Transactions are serialised
// behind one mutex and work on a staged copy that replaces the live state
// only on commit.
package inmem

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"voltzpay/model"
	ledgerrepo "voltzpay/repository/ledger"

	"github.com/shopspring/decimal"
)

type state struct {
	users     map[int64]model.User
	accounts  map[int64]model.Account
	guests    map[int64]model.Guest
	intents   map[int64]model.PaymentIntent
	events    map[int64]model.Event
	donations map[int64]model.Donation
	ledger    []model.LedgerEntry

	guestSeq, intentSeq, donationSeq, ledgerSeq int64
}

func newState() *state {
	return &state{
		users:     make(map[int64]model.User),
		accounts:  make(map[int64]model.Account),
		guests:    make(map[int64]model.Guest),
		intents:   make(map[int64]model.PaymentIntent),
		events:    make(map[int64]model.Event),
		donations: make(map[int64]model.Donation),
	}
}

func (s *state) clone() *state {
	c := &state{
		users:       make(map[int64]model.User, len(s.users)),
		accounts:    make(map[int64]model.Account, len(s.accounts)),
		guests:      make(map[int64]model.Guest, len(s.guests)),
		intents:     make(map[int64]model.PaymentIntent, len(s.intents)),
		events:      make(map[int64]model.Event, len(s.events)),
		donations:   make(map[int64]model.Donation, len(s.donations)),
		ledger:      append([]model.LedgerEntry(nil), s.ledger...),
		guestSeq:    s.guestSeq,
		intentSeq:   s.intentSeq,
		donationSeq: s.donationSeq,
		ledgerSeq:   s.ledgerSeq,
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.guests {
		c.guests[k] = v
	}
	for k, v := range s.intents {
		c.intents[k] = v
	}
	for k, v := range s.events {
		c.events[k] = v
	}
	for k, v := range s.donations {
		c.donations[k] = v
	}
	return c
}

// Store implements ledgerrepo.Store in memory.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

var _ ledgerrepo.Store = (*Store)(nil)

func New() *Store {
	return &Store{st: newState(), now: func() time.Time { return time.Now().UTC() }}
}

// AddUser seeds a registered user with an empty account. Users are owned by
// the account service, so there is no Tx method for them.
func (s *Store) AddUser(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.users[u.ID] = u
	if _, ok := s.st.accounts[u.ID]; !ok {
		s.st.accounts[u.ID] = model.Account{UserID: u.ID, UpdatedAt: s.now()}
	}
}

// AddEvent seeds or replaces an event.
func (s *Store) AddEvent(e model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.events[e.ID] = e
}

func (s *Store) InTx(ctx context.Context, fn func(tx ledgerrepo.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	staged := s.st.clone()
	if err := fn(&tx{st: staged, now: s.now}); err != nil {
		return err
	}
	s.st = staged
	return nil
}

func (s *Store) Account(ctx context.Context, userID int64) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.st.accounts[userID]
	if !ok {
		return nil, ledgerrepo.ErrNotFound
	}
	return &a, nil
}

func (s *Store) ListLedger(ctx context.Context, userID int64) ([]model.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.LedgerEntry
	for _, e := range s.st.ledger {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) ListIntents(ctx context.Context, r model.Requester) ([]model.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.PaymentIntent
	for _, in := range s.st.intents {
		if in.Requester() == r {
			out = append(out, in)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) GetIntent(ctx context.Context, intentID int64) (*model.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.st.intents[intentID]
	if !ok {
		return nil, ledgerrepo.ErrNotFound
	}
	return &in, nil
}

func (s *Store) GetEvent(ctx context.Context, eventID int64) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.st.events[eventID]
	if !ok {
		return nil, ledgerrepo.ErrNotFound
	}
	return &e, nil
}

func (s *Store) GetDonation(ctx context.Context, donationID int64) (*model.Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.st.donations[donationID]
	if !ok {
		return nil, ledgerrepo.ErrNotFound
	}
	return &d, nil
}

func (s *Store) ListFailedIntents(ctx context.Context, since time.Time) ([]model.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.PaymentIntent
	for _, in := range s.st.intents {
		if in.Status == model.IntentFailed && !in.CreatedAt.Before(since) {
			out = append(out, in)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListFailedDonations(ctx context.Context, since time.Time) ([]model.Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Donation
	for _, d := range s.st.donations {
		if d.Status == model.DonationFailed && !d.CreatedAt.Before(since) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type tx struct {
	st  *state
	now func() time.Time
}

func (t *tx) FindUser(ctx context.Context, userID int64) (*model.User, error) {
	u, ok := t.st.users[userID]
	if !ok {
		return nil, ledgerrepo.ErrNotFound
	}
	return &u, nil
}

func (t *tx) FindGuest(ctx context.Context, guestID int64) (*model.Guest, error) {
	g, ok := t.st.guests[guestID]
	if !ok {
		return nil, ledgerrepo.ErrNotFound
	}
	return &g, nil
}

func (t *tx) FindGuestByContact(ctx context.Context, email, phone string) (*model.Guest, error) {
	for _, g := range t.st.guests {
		if strings.EqualFold(g.Email, email) && g.Phone == phone {
			return &g, nil
		}
	}
	return nil, ledgerrepo.ErrNotFound
}

func (t *tx) InsertGuest(ctx context.Context, g *model.Guest) error {
	if _, err := t.FindGuestByContact(ctx, g.Email, g.Phone); err == nil {
		return ledgerrepo.ErrConflict
	}
	t.st.guestSeq++
	g.ID = t.st.guestSeq
	g.CreatedAt = t.now()
	t.st.guests[g.ID] = *g
	return nil
}

func (t *tx) GetAccountForUpdate(ctx context.Context, userID int64) (*model.Account, error) {
	if _, ok := t.st.users[userID]; !ok {
		return nil, ledgerrepo.ErrNotFound
	}
	a, ok := t.st.accounts[userID]
	if !ok {
		a = model.Account{UserID: userID}
	}
	return &a, nil
}

func (t *tx) SaveAccount(ctx context.Context, a *model.Account) error {
	if _, ok := t.st.users[a.UserID]; !ok {
		return ledgerrepo.ErrNotFound
	}
	a.UpdatedAt = t.now()
	t.st.accounts[a.UserID] = *a
	return nil
}

func (t *tx) InsertLedger(ctx context.Context, e *model.LedgerEntry) error {
	t.st.ledgerSeq++
	e.ID = t.st.ledgerSeq
	e.CreatedAt = t.now()
	t.st.ledger = append(t.st.ledger, *e)
	return nil
}

func (t *tx) InsertIntent(ctx context.Context, in *model.PaymentIntent) error {
	if in.OnlineToken != nil && t.tokenTaken(*in.OnlineToken) {
		return ledgerrepo.ErrDuplicateToken
	}
	t.st.intentSeq++
	in.ID = t.st.intentSeq
	in.CreatedAt = t.now()
	in.UpdatedAt = in.CreatedAt
	t.st.intents[in.ID] = *in
	return nil
}

func (t *tx) tokenTaken(token string) bool {
	for _, in := range t.st.intents {
		if in.OnlineToken != nil && *in.OnlineToken == token {
			return true
		}
	}
	return false
}

func (t *tx) SetIntentToken(ctx context.Context, intentID int64, token string) error {
	in, ok := t.st.intents[intentID]
	if !ok {
		return ledgerrepo.ErrNotFound
	}
	if t.tokenTaken(token) {
		return ledgerrepo.ErrDuplicateToken
	}
	in.OnlineToken = &token
	in.UpdatedAt = t.now()
	t.st.intents[intentID] = in
	return nil
}

func (t *tx) FindPendingIntentForUpdate(ctx context.Context, r model.Requester, token string, vt model.VoltzType) (*model.PaymentIntent, error) {
	for _, in := range t.st.intents {
		if in.Status == model.IntentPending &&
			in.VoltzType == vt &&
			in.OnlineToken != nil && *in.OnlineToken == token &&
			in.Requester() == r {
			return &in, nil
		}
	}
	return nil, ledgerrepo.ErrNotFound
}

func (t *tx) UpdateIntentStatus(ctx context.Context, intentID int64, from, to model.IntentStatus, reason *string) error {
	in, ok := t.st.intents[intentID]
	if !ok {
		return ledgerrepo.ErrNotFound
	}
	if in.Status != from {
		return ledgerrepo.ErrStaleStatus
	}
	in.Status = to
	if reason != nil {
		in.FailureReason = reason
	}
	in.UpdatedAt = t.now()
	t.st.intents[intentID] = in
	return nil
}

func (t *tx) GetEventForUpdate(ctx context.Context, eventID int64) (*model.Event, error) {
	e, ok := t.st.events[eventID]
	if !ok {
		return nil, ledgerrepo.ErrNotFound
	}
	return &e, nil
}

func (t *tx) SetDonationReceived(ctx context.Context, eventID int64, received decimal.Decimal) error {
	e, ok := t.st.events[eventID]
	if !ok {
		return ledgerrepo.ErrNotFound
	}
	e.DonationReceived = received
	t.st.events[eventID] = e
	return nil
}

func (t *tx) InsertDonation(ctx context.Context, d *model.Donation) error {
	if _, ok := t.st.events[d.EventID]; !ok {
		return ledgerrepo.ErrNotFound
	}
	t.st.donationSeq++
	d.ID = t.st.donationSeq
	d.CreatedAt = t.now()
	d.UpdatedAt = d.CreatedAt
	t.st.donations[d.ID] = *d
	return nil
}

func (t *tx) SetDonationToken(ctx context.Context, donationID int64, token string) error {
	d, ok := t.st.donations[donationID]
	if !ok {
		return ledgerrepo.ErrNotFound
	}
	for _, o := range t.st.donations {
		if o.OnlineToken != nil && *o.OnlineToken == token {
			return ledgerrepo.ErrDuplicateToken
		}
	}
	d.OnlineToken = &token
	d.UpdatedAt = t.now()
	t.st.donations[donationID] = d
	return nil
}

func (t *tx) FindPendingDonationForUpdate(ctx context.Context, userID int64, token string) (*model.Donation, error) {
	for _, d := range t.st.donations {
		if d.Status == model.DonationPending && d.UserID == userID &&
			d.OnlineToken != nil && *d.OnlineToken == token {
			return &d, nil
		}
	}
	return nil, ledgerrepo.ErrNotFound
}

func (t *tx) UpdateDonationStatus(ctx context.Context, donationID int64, from, to model.DonationStatus, reason *string) error {
	d, ok := t.st.donations[donationID]
	if !ok {
		return ledgerrepo.ErrNotFound
	}
	if d.Status != from {
		return ledgerrepo.ErrStaleStatus
	}
	d.Status = to
	if reason != nil {
		d.FailureReason = reason
	}
	d.UpdatedAt = t.now()
	t.st.donations[donationID] = d
	return nil
}
