package gatewayrepo

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"voltzpay/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	t          *testing.T
	secret     string
	sessionRes string
	confirmRes string
	status     int
	delay      time.Duration

	lastSession sessionRequest
	lastConfirm completeRequest
}

func (f *fakeProvider) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(sessionPath, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		require.NoError(f.t, xml.Unmarshal(raw, &f.lastSession))
		s := f.lastSession
		require.NoError(f.t, VerifySignature(f.secret, s.Signature, s.APIKey, s.OrderRef, s.Amount, s.Currency, s.ReturnURL))
		if f.delay > 0 {
			time.Sleep(f.delay)
		}
		if f.status != 0 {
			w.WriteHeader(f.status)
			return
		}
		_ = xml.NewEncoder(w).Encode(sessionResponse{Result: f.sessionRes, Message: "msg", SessionURL: "https://pay.example/hpp?token=tok-1"})
	})
	mux.HandleFunc(completePath, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		require.NoError(f.t, xml.Unmarshal(raw, &f.lastConfirm))
		c := f.lastConfirm
		require.NoError(f.t, VerifySignature(f.secret, c.Signature, c.APIKey, c.Token))
		_ = xml.NewEncoder(w).Encode(completeResponse{Result: f.confirmRes, Message: "declined"})
	})
	return mux
}

func newTestRepo(t *testing.T, f *fakeProvider, timeout time.Duration) Repo {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return NewXML(Config{BaseURL: srv.URL, APIKey: "key", Secret: f.secret, Timeout: timeout}, srv.Client())
}

func sessionReq() SessionReq {
	return SessionReq{
		Billing:     model.BillingProfile{FirstName: "Ada", LastName: "L", Email: "ada@example.com", Phone: "+100"},
		Amount:      decimal.NewFromInt(150),
		Currency:    "USD",
		ReturnURL:   "https://app.example/return?x=1",
		CallbackRef: "u:7",
		ClientIP:    "10.0.0.1",
	}
}

func TestCreateSession_OK(t *testing.T) {
	f := &fakeProvider{t: t, secret: "s3cret", sessionRes: "000"}
	r := newTestRepo(t, f, time.Second)

	got, err := r.CreateSession(context.Background(), sessionReq())
	require.NoError(t, err)
	require.Equal(t, "https://pay.example/hpp?token=tok-1", got)

	require.Equal(t, "150.00", f.lastSession.Amount)
	require.Equal(t, "USD", f.lastSession.Currency)
	require.Equal(t, "ada@example.com", f.lastSession.Billing.Email)
	require.NotEmpty(t, f.lastSession.OrderRef)

	u, err := url.Parse(f.lastSession.ReturnURL)
	require.NoError(t, err)
	require.Equal(t, "u:7", u.Query().Get("ref"))
	require.Equal(t, "1", u.Query().Get("x"))
}

func TestCreateSession_ProviderRejects(t *testing.T) {
	f := &fakeProvider{t: t, secret: "s", sessionRes: "101"}
	r := newTestRepo(t, f, time.Second)

	_, err := r.CreateSession(context.Background(), sessionReq())
	require.Error(t, err)
	require.True(t, IsGatewayError(err))
	var ge *Error
	require.ErrorAs(t, err, &ge)
	require.Equal(t, "101", ge.Result)
}

func TestCreateSession_HTTP5xx(t *testing.T) {
	f := &fakeProvider{t: t, secret: "s", status: http.StatusBadGateway}
	r := newTestRepo(t, f, time.Second)

	_, err := r.CreateSession(context.Background(), sessionReq())
	var ge *Error
	require.ErrorAs(t, err, &ge)
	require.Equal(t, http.StatusBadGateway, ge.Status)
}

func TestCreateSession_Timeout(t *testing.T) {
	f := &fakeProvider{t: t, secret: "s", sessionRes: "000", delay: 200 * time.Millisecond}
	r := newTestRepo(t, f, 20*time.Millisecond)

	_, err := r.CreateSession(context.Background(), sessionReq())
	require.Error(t, err)
	require.True(t, IsGatewayError(err))
}

func TestConfirmSession(t *testing.T) {
	f := &fakeProvider{t: t, secret: "s", confirmRes: "000"}
	r := newTestRepo(t, f, time.Second)

	require.NoError(t, r.ConfirmSession(context.Background(), "tok-1"))
	require.Equal(t, "tok-1", f.lastConfirm.Token)

	// same token again: the client does not deduplicate
	require.NoError(t, r.ConfirmSession(context.Background(), "tok-1"))

	f.confirmRes = "205"
	err := r.ConfirmSession(context.Background(), "tok-1")
	require.True(t, IsGatewayError(err))

	require.Error(t, r.ConfirmSession(context.Background(), ""))
}

func TestExtractToken(t *testing.T) {
	cases := map[string]string{
		"https://pay.example/hpp?token=abc":  "abc",
		"https://pay.example/session/xyz":    "xyz",
		"https://pay.example/session/xyz/":   "xyz",
		"https://pay.example/p?a=1&token=t2": "t2",
	}
	for in, want := range cases {
		got, err := ExtractToken(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	_, err := ExtractToken("https://pay.example")
	require.ErrorIs(t, err, ErrNoToken)
}
