package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"voltzpay/model"
	gatewayrepo "voltzpay/repository/gateway"
	ledgerrepo "voltzpay/repository/ledger"
	"voltzpay/service/notify"
	"voltzpay/service/payerr"

	"github.com/shopspring/decimal"
)

const refTable = "payment_intents"

// GuestContact identifies a guest purchaser. Email and phone are the lookup
// key; the rest is only used for a newly created guest.
type GuestContact struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Street    string
	City      string
	State     string
	Country   string
	ZipCode   string
}

// CreateIntentReq carries exactly one of UserID or Guest.
type CreateIntentReq struct {
	UserID      int64
	Guest       *GuestContact
	VoltzType   model.VoltzType
	Quantity    int64
	RedirectURL string
	ClientIP    string
}

type Created struct {
	IntentID   int64
	Requester  model.Requester
	Amount     decimal.Decimal
	Currency   string
	SessionURL string
}

type Service interface {
	// CreateIntent records a PENDING intent and opens a payment session for
	// it. Nothing is persisted when the gateway call fails.
	CreateIntent(ctx context.Context, req CreateIntentReq) (*Created, error)

	// VerifyIntent settles the PENDING intent identified by (r, token, vt)
	// exactly once. Registered users are credited the purchased quantity.
	VerifyIntent(ctx context.Context, r model.Requester, vt model.VoltzType, token string) (*model.PaymentIntent, error)
}

type service struct {
	store ledgerrepo.Store
	gw    gatewayrepo.Repo
	pub   notify.Publisher
	cfg   Config
	log   *slog.Logger
}

func New(store ledgerrepo.Store, gw gatewayrepo.Repo, pub notify.Publisher, cfg Config, log *slog.Logger) Service {
	if pub == nil {
		pub = notify.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &service{store: store, gw: gw, pub: pub, cfg: cfg, log: log}
}

func (s *service) channel(vt model.VoltzType) (Channel, bool) {
	ch, ok := s.cfg.Channels[vt]
	return ch, ok && ch.Price != nil && ch.Balance.Valid()
}

func (s *service) validateCreate(req CreateIntentReq) error {
	f := payerr.Fields{}
	if req.Quantity <= 0 {
		f.Add("quantity", "must be greater than 0")
	}
	if _, ok := s.channel(req.VoltzType); !ok {
		f.Add("voltz_type", "unknown voltz type")
	}
	if err := ValidateRedirectURL(req.RedirectURL); err != nil {
		f.Add("redirect_url", err.Error())
	}
	switch {
	case req.UserID > 0 && req.Guest != nil:
		f.Add("requester", "either a user or a guest, not both")
	case req.UserID <= 0 && req.Guest == nil:
		f.Add("requester", "required")
	case req.Guest != nil:
		if strings.TrimSpace(req.Guest.Email) == "" {
			f.Add("email", "required")
		}
		if strings.TrimSpace(req.Guest.Phone) == "" {
			f.Add("phone", "required")
		}
	}
	return f.Err()
}

// ValidateRedirectURL accepts absolute http(s) URLs only.
func ValidateRedirectURL(raw string) error {
	if raw == "" {
		return errors.New("required")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New("must be an absolute http(s) url")
	}
	return nil
}

func (s *service) CreateIntent(ctx context.Context, req CreateIntentReq) (*Created, error) {
	if err := s.validateCreate(req); err != nil {
		return nil, err
	}
	ch, _ := s.channel(req.VoltzType)
	amount := ch.Price(req.Quantity)
	if !amount.IsPositive() {
		return nil, payerr.Validation("validation error", map[string]string{"quantity": "priced at zero"})
	}

	var out *Created
	err := s.store.InTx(ctx, func(tx ledgerrepo.Tx) error {
		r, billing, err := s.resolveRequester(ctx, tx, req)
		if err != nil {
			return err
		}

		in := &model.PaymentIntent{
			VoltzType: req.VoltzType,
			Quantity:  req.Quantity,
			Amount:    amount,
			Currency:  s.cfg.Currency,
			Status:    model.IntentPending,
		}
		in.SetRequester(r)
		if err := tx.InsertIntent(ctx, in); err != nil {
			return fmt.Errorf("insert intent: %w", err)
		}

		sessionURL, err := s.gw.CreateSession(ctx, gatewayrepo.SessionReq{
			Billing:     billing,
			Amount:      amount,
			Currency:    s.cfg.Currency,
			ReturnURL:   req.RedirectURL,
			CallbackRef: r.Ref(),
			ClientIP:    req.ClientIP,
		})
		if err != nil {
			return payerr.Gateway(payerr.MsgSessionFailed, err)
		}
		token, err := gatewayrepo.ExtractToken(sessionURL)
		if err != nil {
			return payerr.Gateway(payerr.MsgSessionFailed, err)
		}
		if err := tx.SetIntentToken(ctx, in.ID, token); err != nil {
			if errors.Is(err, ledgerrepo.ErrDuplicateToken) {
				return payerr.Gateway(payerr.MsgSessionFailed, err)
			}
			return fmt.Errorf("store token: %w", err)
		}

		out = &Created{IntentID: in.ID, Requester: r, Amount: amount, Currency: s.cfg.Currency, SessionURL: sessionURL}
		return nil
	})
	if err != nil {
		if payerr.Code(err) == payerr.ErrGateway {
			s.log.WarnContext(ctx, "payment session failed", "voltz_type", req.VoltzType, "err", err)
		}
		return nil, wrap("create intent", err)
	}
	return out, nil
}

func (s *service) resolveRequester(ctx context.Context, tx ledgerrepo.Tx, req CreateIntentReq) (model.Requester, model.BillingProfile, error) {
	if req.Guest == nil {
		u, err := tx.FindUser(ctx, req.UserID)
		if errors.Is(err, ledgerrepo.ErrNotFound) {
			return model.Requester{}, model.BillingProfile{}, payerr.NotFound("user not found")
		}
		if err != nil {
			return model.Requester{}, model.BillingProfile{}, fmt.Errorf("find user: %w", err)
		}
		return model.UserRequester(u.ID), u.Billing(), nil
	}

	g, err := findOrCreateGuest(ctx, tx, req.Guest)
	if err != nil {
		return model.Requester{}, model.BillingProfile{}, err
	}
	return model.GuestRequester(g.ID), g.Billing(), nil
}

func findOrCreateGuest(ctx context.Context, tx ledgerrepo.Tx, c *GuestContact) (*model.Guest, error) {
	email, phone := strings.TrimSpace(c.Email), strings.TrimSpace(c.Phone)
	g, err := tx.FindGuestByContact(ctx, email, phone)
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, ledgerrepo.ErrNotFound) {
		return nil, fmt.Errorf("find guest: %w", err)
	}

	g = &model.Guest{
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Email:     email,
		Phone:     phone,
		Street:    c.Street,
		City:      c.City,
		State:     c.State,
		Country:   c.Country,
		ZipCode:   c.ZipCode,
	}
	err = tx.InsertGuest(ctx, g)
	if errors.Is(err, ledgerrepo.ErrConflict) {
		// created concurrently
		return tx.FindGuestByContact(ctx, email, phone)
	}
	if err != nil {
		return nil, fmt.Errorf("insert guest: %w", err)
	}
	return g, nil
}

func (s *service) VerifyIntent(ctx context.Context, r model.Requester, vt model.VoltzType, token string) (*model.PaymentIntent, error) {
	f := payerr.Fields{}
	if strings.TrimSpace(token) == "" {
		f.Add("token", "required")
	}
	if !r.Valid() {
		f.Add("requester", "required")
	}
	ch, ok := s.channel(vt)
	if !ok {
		f.Add("voltz_type", "unknown voltz type")
	}
	if err := f.Err(); err != nil {
		return nil, err
	}

	var (
		settled *model.PaymentIntent
		gwErr   error
	)
	err := s.store.InTx(ctx, func(tx ledgerrepo.Tx) error {
		settled, gwErr = nil, nil

		in, err := tx.FindPendingIntentForUpdate(ctx, r, token, vt)
		if errors.Is(err, ledgerrepo.ErrNotFound) {
			return payerr.NotFound(payerr.MsgNotProcessable)
		}
		if err != nil {
			return fmt.Errorf("lock intent: %w", err)
		}

		if err := s.gw.ConfirmSession(ctx, token); err != nil {
			// The FAILED status must commit, so the gateway error is
			// returned only after InTx.
			gwErr = err
			reason := err.Error()
			if err := transition(ctx, tx, in, model.IntentFailed, &reason); err != nil {
				return err
			}
			settled = in
			return nil
		}

		if r.IsUser() {
			if err := credit(ctx, tx, in, ch.Balance); err != nil {
				return err
			}
			if err := transition(ctx, tx, in, model.IntentCompleted, nil); err != nil {
				return err
			}
			if err := transition(ctx, tx, in, model.IntentCreditedToWallet, nil); err != nil {
				return err
			}
		} else if err := transition(ctx, tx, in, model.IntentCompleted, nil); err != nil {
			return err
		}
		settled = in
		return nil
	})
	if err != nil {
		return nil, wrap("verify intent", err)
	}

	ev := notify.Event{
		Kind:      notify.IntentSettled,
		RefTable:  refTable,
		RefID:     settled.ID,
		Requester: r.Ref(),
		Amount:    settled.Amount,
		Currency:  settled.Currency,
	}
	if gwErr != nil {
		ev.Kind = notify.IntentFailed
		ev.Reason = gwErr.Error()
		s.pub.Publish(ev)
		s.log.WarnContext(ctx, "payment not completed", "intent_id", settled.ID, "requester", r.Ref(), "err", gwErr)
		return settled, payerr.Gateway(payerr.MsgNotCompleted, gwErr)
	}
	s.pub.Publish(ev)
	s.log.InfoContext(ctx, "intent settled", "intent_id", settled.ID, "requester", r.Ref(), "status", settled.Status)
	return settled, nil
}

func transition(ctx context.Context, tx ledgerrepo.Tx, in *model.PaymentIntent, to model.IntentStatus, reason *string) error {
	if !in.Status.CanTransition(to) {
		return fmt.Errorf("intent %d: illegal transition %s -> %s", in.ID, in.Status, to)
	}
	err := tx.UpdateIntentStatus(ctx, in.ID, in.Status, to, reason)
	if errors.Is(err, ledgerrepo.ErrStaleStatus) {
		return payerr.NotFound(payerr.MsgNotProcessable)
	}
	if err != nil {
		return fmt.Errorf("update intent %d: %w", in.ID, err)
	}
	in.Status = to
	if reason != nil {
		in.FailureReason = reason
	}
	return nil
}

// credit adds the purchased quantity (not the amount) to the channel's
// balance and records it in the wallet ledger.
func credit(ctx context.Context, tx ledgerrepo.Tx, in *model.PaymentIntent, balance model.BalanceName) error {
	acct, err := tx.GetAccountForUpdate(ctx, *in.UserID)
	if err != nil {
		return fmt.Errorf("lock account: %w", err)
	}
	qty := decimal.NewFromInt(in.Quantity)
	after := acct.Credit(balance, qty)
	if err := tx.SaveAccount(ctx, acct); err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	id := in.ID
	return tx.InsertLedger(ctx, &model.LedgerEntry{
		UserID:       acct.UserID,
		RefTable:     refTable,
		RefID:        &id,
		EntryType:    model.LedgerVoltzPurchase,
		Balance:      balance,
		Amount:       qty,
		BalanceAfter: after,
	})
}

// wrap leaves coded errors untouched so callers can switch on their code.
func wrap(op string, err error) error {
	if payerr.Code(err) != "" {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
