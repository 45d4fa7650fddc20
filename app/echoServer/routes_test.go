package echoServer_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"voltzpay/app/echoServer"
	donationctrl "voltzpay/app/echoServer/controller/donation"
	guestctrl "voltzpay/app/echoServer/controller/guest"
	voltzctrl "voltzpay/app/echoServer/controller/voltz"
	walletctrl "voltzpay/app/echoServer/controller/wallet"
	"voltzpay/app/echoServer/validation"
	"voltzpay/model"
	gatewayrepo "voltzpay/repository/gateway"
	"voltzpay/repository/ledger/inmem"
	donationsvc "voltzpay/service/donation"
	"voltzpay/service/settlement"
	walletsvc "voltzpay/service/wallet"
	"voltzpay/util/jwt"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const secret = "test_secret_0123456789"

type fakeGateway struct {
	token      string
	createErr  error
	confirmErr error
}

func (g *fakeGateway) CreateSession(ctx context.Context, req gatewayrepo.SessionReq) (string, error) {
	if g.createErr != nil {
		return "", g.createErr
	}
	return "https://pay.example/hpp?token=" + g.token, nil
}

func (g *fakeGateway) ConfirmSession(ctx context.Context, token string) error { return g.confirmErr }

type server struct {
	e     *echo.Echo
	store *inmem.Store
	gw    *fakeGateway
}

func newServer(t *testing.T) *server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := inmem.New()
	store.AddUser(model.User{ID: 7, FirstName: "Ada", Email: "ada@example.com", Phone: "+15550000007"})
	required := decimal.NewFromInt(100)
	store.AddEvent(model.Event{ID: 3, ActivationStatus: model.EventActive, DonationRequired: &required, DonationReceived: decimal.NewFromInt(80)})
	gw := &fakeGateway{token: "tok-1"}

	cfg := settlement.Config{Currency: "USD", Channels: settlement.DefaultChannels(decimal.NewFromInt(30), decimal.NewFromInt(10))}
	ss := settlement.New(store, gw, nil, cfg, log)
	v := validation.NewValidate()

	e := echo.New()
	echoServer.RegisterMiddlewares(e, log)
	e.Validator = validation.New()
	echoServer.Register(e, echoServer.C{
		Voltz:     &voltzctrl.Controller{Svc: ss, V: v, Log: log},
		Guest:     &guestctrl.Controller{Svc: ss, V: v, Log: log},
		Donation:  &donationctrl.Controller{Svc: donationsvc.New(store, gw, nil, "USD", log), V: v, Log: log},
		Wallet:    &walletctrl.Controller{Svc: walletsvc.New(store), Log: log},
		JWTSecret: secret,
	})
	return &server{e: e, store: store, gw: gw}
}

func (s *server) do(t *testing.T, method, path, body string, userID int64) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if userID > 0 {
		tok, err := jwt.Issue(secret, userID, "user", time.Hour)
		require.NoError(t, err)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func TestUserPurchaseFlow(t *testing.T) {
	s := newServer(t)

	code, body := s.do(t, http.MethodPost, "/v1/voltz/foundational/intents", `{"quantity":5,"redirect_url":"https://app.example/r"}`, 7)
	require.Equal(t, http.StatusCreated, code, body)
	require.Equal(t, "150.00", body["amount"])
	require.Equal(t, "PENDING", body["status"])
	require.Equal(t, "https://pay.example/hpp?token=tok-1", body["session_url"])

	code, body = s.do(t, http.MethodPost, "/v1/voltz/foundational/intents/verify", `{"token":"tok-1"}`, 7)
	require.Equal(t, http.StatusOK, code, body)
	require.Equal(t, "CREDITED_TO_WALLET", body["status"])

	code, body = s.do(t, http.MethodPost, "/v1/voltz/foundational/intents/verify", `{"token":"tok-1"}`, 7)
	require.Equal(t, http.StatusNotFound, code)
	require.Equal(t, "payment not found or already processed", body["message"])

	code, body = s.do(t, http.MethodGet, "/v1/wallet", "", 7)
	require.Equal(t, http.StatusOK, code)
	data := body["data"].(map[string]any)
	require.Equal(t, "5", data["foundational_voltz"])

	code, body = s.do(t, http.MethodGet, "/v1/wallet/ledger", "", 7)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body["data"], 1)
}

func TestGuestPurchaseFlow(t *testing.T) {
	s := newServer(t)

	code, body := s.do(t, http.MethodPost, "/v1/guest/voltz/general/intents",
		`{"quantity":2,"redirect_url":"https://app.example/r","first_name":"Gus","email":"gus@example.com","phone":"+15551234567"}`, 0)
	require.Equal(t, http.StatusCreated, code, body)
	require.Equal(t, "20.00", body["amount"])
	ref := body["ref"].(string)
	require.True(t, strings.HasPrefix(ref, "g:"))

	code, body = s.do(t, http.MethodPost, "/v1/guest/voltz/general/intents/verify", `{"token":"tok-1","ref":"u:7"}`, 0)
	require.Equal(t, http.StatusBadRequest, code)
	require.Contains(t, body["errors"], "ref")

	code, body = s.do(t, http.MethodPost, "/v1/guest/voltz/general/intents/verify", `{"token":"tok-1","ref":"`+ref+`"}`, 0)
	require.Equal(t, http.StatusOK, code, body)
	require.Equal(t, "COMPLETED", body["status"])
}

func TestErrorMapping(t *testing.T) {
	s := newServer(t)

	code, body := s.do(t, http.MethodPost, "/v1/voltz/foundational/intents", `{"quantity":0,"redirect_url":"nope"}`, 7)
	require.Equal(t, http.StatusBadRequest, code)
	errs := body["errors"].(map[string]any)
	require.Contains(t, errs, "quantity")
	require.Contains(t, errs, "redirect_url")

	code, body = s.do(t, http.MethodPost, "/v1/voltz/gold/intents", `{"quantity":1,"redirect_url":"https://app.example/r"}`, 7)
	require.Equal(t, http.StatusBadRequest, code)
	require.Contains(t, body["errors"], "voltz_type")

	s.gw.createErr = &gatewayrepo.Error{Op: "create session", Result: "101"}
	code, body = s.do(t, http.MethodPost, "/v1/voltz/foundational/intents", `{"quantity":1,"redirect_url":"https://app.example/r"}`, 7)
	require.Equal(t, http.StatusBadGateway, code)
	require.Equal(t, "payment session could not be created, try again", body["message"])

	s.gw.createErr = nil
	code, _ = s.do(t, http.MethodPost, "/v1/voltz/foundational/intents", `{"quantity":1,"redirect_url":"https://app.example/r"}`, 7)
	require.Equal(t, http.StatusCreated, code)

	s.gw.confirmErr = &gatewayrepo.Error{Op: "confirm session", Result: "205"}
	code, body = s.do(t, http.MethodPost, "/v1/voltz/foundational/intents/verify", `{"token":"tok-1"}`, 7)
	require.Equal(t, http.StatusPaymentRequired, code)
	require.Equal(t, "payment was not completed", body["message"])

	code, _ = s.do(t, http.MethodPost, "/v1/voltz/foundational/intents", `{bad json`, 7)
	require.Equal(t, http.StatusBadRequest, code)
}

func TestAuthRequired(t *testing.T) {
	s := newServer(t)
	code, body := s.do(t, http.MethodGet, "/v1/wallet", "", 0)
	require.Equal(t, http.StatusUnauthorized, code)
	require.Equal(t, "unauthorized", body["message"])
}

func TestDonationRoutes(t *testing.T) {
	s := newServer(t)
	s.gw.token = "don-1"

	code, body := s.do(t, http.MethodPost, "/v1/events/3/donations", `{"amount":25,"redirect_url":"https://app.example/d"}`, 7)
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "remaining donation needed: $20", body["message"])

	code, body = s.do(t, http.MethodPost, "/v1/events/3/donations", `{"amount":"20","redirect_url":"https://app.example/d"}`, 7)
	require.Equal(t, http.StatusCreated, code, body)

	code, body = s.do(t, http.MethodPost, "/v1/donations/verify", `{"token":"don-1"}`, 7)
	require.Equal(t, http.StatusOK, code, body)
	require.Equal(t, "COMPLETED", body["status"])

	ev, err := s.store.GetEvent(context.Background(), 3)
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(100).Equal(ev.DonationReceived))

	code, _ = s.do(t, http.MethodPost, "/v1/events/404/donations", `{"amount":1,"redirect_url":"https://app.example/d"}`, 7)
	require.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(t, http.MethodPost, "/v1/events/abc/donations", `{}`, 7)
	require.Equal(t, http.StatusBadRequest, code)
}

func TestGatewayErrorHidesCause(t *testing.T) {
	s := newServer(t)
	s.gw.createErr = errors.New("dial tcp: connection refused")
	code, body := s.do(t, http.MethodPost, "/v1/voltz/foundational/intents", `{"quantity":1,"redirect_url":"https://app.example/r"}`, 7)
	require.Equal(t, http.StatusBadGateway, code)
	require.Equal(t, "payment session could not be created, try again", body["message"])
}
