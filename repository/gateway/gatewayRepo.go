package gatewayrepo

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"voltzpay/model"

	"github.com/shopspring/decimal"
)

type SessionReq struct {
	Billing  model.BillingProfile
	Amount   decimal.Decimal
	Currency string
	// ReturnURL is where the payment page sends the payer back to.
	ReturnURL string
	// CallbackRef is embedded into the return URL so the verify call can
	// name the requester.
	CallbackRef string
	ClientIP    string
}

// Repo is the hosted payment page provider. Calls are not retried here.
type Repo interface {
	CreateSession(ctx context.Context, req SessionReq) (sessionURL string, err error)
	ConfirmSession(ctx context.Context, token string) error
}

// Error is returned for every provider-side or transport failure.
type Error struct {
	Op     string
	Result string
	Status int
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("gateway ")
	b.WriteString(e.Op)
	if e.Status != 0 {
		fmt.Fprintf(&b, ": http %d", e.Status)
	}
	if e.Result != "" {
		fmt.Fprintf(&b, ": result %s", e.Result)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// IsGatewayError reports whether err came from the provider or the network
// path to it.
func IsGatewayError(err error) bool {
	var ge *Error
	return errors.As(err, &ge)
}

var ErrNoToken = errors.New("session url carries no token")

// ExtractToken pulls the opaque session token from a session URL: the
// "token" query parameter, else the last path segment.
func ExtractToken(sessionURL string) (string, error) {
	u, err := url.Parse(sessionURL)
	if err != nil {
		return "", fmt.Errorf("parse session url: %w", err)
	}
	if t := u.Query().Get("token"); t != "" {
		return t, nil
	}
	seg := path.Base(strings.TrimRight(u.Path, "/"))
	if seg == "" || seg == "." || seg == "/" {
		return "", ErrNoToken
	}
	return seg, nil
}

// WithCallbackRef appends ref to the return URL as the "ref" query param.
func WithCallbackRef(returnURL, ref string) (string, error) {
	u, err := url.Parse(returnURL)
	if err != nil {
		return "", fmt.Errorf("parse return url: %w", err)
	}
	if ref == "" {
		return u.String(), nil
	}
	q := u.Query()
	q.Set("ref", ref)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
