package donation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"voltzpay/model"
	gatewayrepo "voltzpay/repository/gateway"
	ledgerrepo "voltzpay/repository/ledger"
	"voltzpay/service/notify"
	"voltzpay/service/payerr"
	"voltzpay/service/settlement"

	"github.com/shopspring/decimal"
)

const refTable = "donations"

type CreateDonationReq struct {
	UserID      int64
	EventID     int64
	Amount      decimal.Decimal
	RedirectURL string
	ClientIP    string
}

type Created struct {
	DonationID int64
	Amount     decimal.Decimal
	Currency   string
	SessionURL string
}

type Service interface {
	CreateDonation(ctx context.Context, req CreateDonationReq) (*Created, error)
	VerifyDonation(ctx context.Context, userID int64, token string) (*model.Donation, error)
}

type service struct {
	store    ledgerrepo.Store
	gw       gatewayrepo.Repo
	pub      notify.Publisher
	currency string
	log      *slog.Logger
	now      func() time.Time
}

func New(store ledgerrepo.Store, gw gatewayrepo.Repo, pub notify.Publisher, currency string, log *slog.Logger) Service {
	if pub == nil {
		pub = notify.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &service{store: store, gw: gw, pub: pub, currency: currency, log: log, now: time.Now}
}

// capError names the amount still allowed, e.g. "remaining donation needed: $20".
func capError(remaining decimal.Decimal) error {
	amt := remaining.String()
	if !remaining.IsInteger() {
		amt = remaining.StringFixed(2)
	}
	msg := "remaining donation needed: $" + amt
	return payerr.Validation(msg, map[string]string{"amount": msg})
}

func checkOpen(ev *model.Event, now time.Time) error {
	if !ev.OpenForDonation(now) {
		return payerr.Validation("event is not open for donations", map[string]string{"event_id": "not open for donations"})
	}
	return nil
}

func fits(ev *model.Event, amount decimal.Decimal) error {
	if rem, ok := ev.Remaining(); ok && amount.GreaterThan(rem) {
		return capError(rem)
	}
	return nil
}

func (s *service) CreateDonation(ctx context.Context, req CreateDonationReq) (*Created, error) {
	f := payerr.Fields{}
	if req.UserID <= 0 {
		f.Add("user_id", "required")
	}
	if req.EventID <= 0 {
		f.Add("event_id", "required")
	}
	if !req.Amount.IsPositive() {
		f.Add("amount", "must be greater than 0")
	} else if !req.Amount.Equal(req.Amount.Round(2)) {
		f.Add("amount", "at most 2 decimal places")
	}
	if err := settlement.ValidateRedirectURL(req.RedirectURL); err != nil {
		f.Add("redirect_url", err.Error())
	}
	if err := f.Err(); err != nil {
		return nil, err
	}

	var out *Created
	err := s.store.InTx(ctx, func(tx ledgerrepo.Tx) error {
		u, err := tx.FindUser(ctx, req.UserID)
		if errors.Is(err, ledgerrepo.ErrNotFound) {
			return payerr.NotFound("user not found")
		}
		if err != nil {
			return fmt.Errorf("find user: %w", err)
		}

		ev, err := tx.GetEventForUpdate(ctx, req.EventID)
		if errors.Is(err, ledgerrepo.ErrNotFound) {
			return payerr.NotFound("event not found")
		}
		if err != nil {
			return fmt.Errorf("lock event: %w", err)
		}
		if err := checkOpen(ev, s.now()); err != nil {
			return err
		}
		if err := fits(ev, req.Amount); err != nil {
			return err
		}

		d := &model.Donation{
			UserID:   u.ID,
			EventID:  ev.ID,
			Amount:   req.Amount,
			Currency: s.currency,
			Status:   model.DonationPending,
		}
		if err := tx.InsertDonation(ctx, d); err != nil {
			return fmt.Errorf("insert donation: %w", err)
		}

		sessionURL, err := s.gw.CreateSession(ctx, gatewayrepo.SessionReq{
			Billing:     u.Billing(),
			Amount:      req.Amount,
			Currency:    s.currency,
			ReturnURL:   req.RedirectURL,
			CallbackRef: model.UserRequester(u.ID).Ref(),
			ClientIP:    req.ClientIP,
		})
		if err != nil {
			return payerr.Gateway(payerr.MsgSessionFailed, err)
		}
		token, err := gatewayrepo.ExtractToken(sessionURL)
		if err != nil {
			return payerr.Gateway(payerr.MsgSessionFailed, err)
		}
		if err := tx.SetDonationToken(ctx, d.ID, token); err != nil {
			if errors.Is(err, ledgerrepo.ErrDuplicateToken) {
				return payerr.Gateway(payerr.MsgSessionFailed, err)
			}
			return fmt.Errorf("store token: %w", err)
		}
		out = &Created{DonationID: d.ID, Amount: d.Amount, Currency: d.Currency, SessionURL: sessionURL}
		return nil
	})
	if err != nil {
		return nil, wrap("create donation", err)
	}
	return out, nil
}

// VerifyDonation re-checks the event target before capturing: a donation
// that no longer fits is failed without confirming it with the gateway.
func (s *service) VerifyDonation(ctx context.Context, userID int64, token string) (*model.Donation, error) {
	if strings.TrimSpace(token) == "" {
		return nil, payerr.Validation("validation error", map[string]string{"token": "required"})
	}

	var (
		settled *model.Donation
		fail    error
	)
	err := s.store.InTx(ctx, func(tx ledgerrepo.Tx) error {
		settled, fail = nil, nil

		d, err := tx.FindPendingDonationForUpdate(ctx, userID, token)
		if errors.Is(err, ledgerrepo.ErrNotFound) {
			return payerr.NotFound(payerr.MsgNotProcessable)
		}
		if err != nil {
			return fmt.Errorf("lock donation: %w", err)
		}
		ev, err := tx.GetEventForUpdate(ctx, d.EventID)
		if err != nil {
			return fmt.Errorf("lock event %d: %w", d.EventID, err)
		}

		if capErr := fits(ev, d.Amount); capErr != nil {
			fail = capErr
			reason := model.ReasonCapReached
			if err := setStatus(ctx, tx, d, model.DonationFailed, &reason); err != nil {
				return err
			}
			settled = d
			return nil
		}

		if err := s.gw.ConfirmSession(ctx, token); err != nil {
			fail = payerr.Gateway(payerr.MsgNotCompleted, err)
			reason := err.Error()
			if err := setStatus(ctx, tx, d, model.DonationFailed, &reason); err != nil {
				return err
			}
			settled = d
			return nil
		}

		if err := tx.SetDonationReceived(ctx, ev.ID, ev.DonationReceived.Add(d.Amount)); err != nil {
			return fmt.Errorf("update event %d: %w", ev.ID, err)
		}
		if err := setStatus(ctx, tx, d, model.DonationCompleted, nil); err != nil {
			return err
		}
		settled = d
		return nil
	})
	if err != nil {
		return nil, wrap("verify donation", err)
	}

	ev := notify.Event{
		Kind:      notify.DonationSettled,
		RefTable:  refTable,
		RefID:     settled.ID,
		Requester: model.UserRequester(userID).Ref(),
		Amount:    settled.Amount,
		Currency:  settled.Currency,
	}
	if fail != nil {
		ev.Kind = notify.DonationFailed
		ev.Reason = *settled.FailureReason
		s.pub.Publish(ev)
		s.log.WarnContext(ctx, "donation not completed", "donation_id", settled.ID, "event_id", settled.EventID, "err", fail)
		return settled, fail
	}
	s.pub.Publish(ev)
	s.log.InfoContext(ctx, "donation settled", "donation_id", settled.ID, "event_id", settled.EventID)
	return settled, nil
}

func setStatus(ctx context.Context, tx ledgerrepo.Tx, d *model.Donation, to model.DonationStatus, reason *string) error {
	err := tx.UpdateDonationStatus(ctx, d.ID, d.Status, to, reason)
	if errors.Is(err, ledgerrepo.ErrStaleStatus) {
		return payerr.NotFound(payerr.MsgNotProcessable)
	}
	if err != nil {
		return fmt.Errorf("update donation %d: %w", d.ID, err)
	}
	d.Status = to
	if reason != nil {
		d.FailureReason = reason
	}
	return nil
}

func wrap(op string, err error) error {
	if payerr.Code(err) != "" {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
