package gatewayrepo

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	sessionPath  = "/payment/session"
	completePath = "/payment/complete"

	resultOK = "000"

	maxBody = 1 << 20
)

type Config struct {
	BaseURL string
	APIKey  string
	Secret  string
	Timeout time.Duration
}

type xmlRepo struct {
	cfg    Config
	client *http.Client
}

// NewXML returns the XML-over-HTTPS provider client. client may be nil.
func NewXML(cfg Config, client *http.Client) Repo {
	if client == nil {
		client = &http.Client{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &xmlRepo{cfg: cfg, client: client}
}

type billingXML struct {
	FirstName string `xml:"FirstName"`
	LastName  string `xml:"LastName"`
	Email     string `xml:"Email"`
	Phone     string `xml:"Phone"`
	Street    string `xml:"Street"`
	City      string `xml:"City"`
	State     string `xml:"State"`
	Country   string `xml:"Country"`
	ZipCode   string `xml:"ZipCode"`
}

type sessionRequest struct {
	XMLName   xml.Name   `xml:"PaymentSessionRequest"`
	APIKey    string     `xml:"ApiKey"`
	OrderRef  string     `xml:"OrderRef"`
	Amount    string     `xml:"Amount"`
	Currency  string     `xml:"Currency"`
	Billing   billingXML `xml:"Billing"`
	ReturnURL string     `xml:"ReturnUrl"`
	ClientIP  string     `xml:"ClientIp"`
	Signature string     `xml:"Signature"`
}

type sessionResponse struct {
	XMLName    xml.Name `xml:"PaymentSessionResponse"`
	Result     string   `xml:"Result"`
	Message    string   `xml:"Message"`
	SessionURL string   `xml:"SessionUrl"`
}

type completeRequest struct {
	XMLName   xml.Name `xml:"PaymentCompleteRequest"`
	APIKey    string   `xml:"ApiKey"`
	Token     string   `xml:"Token"`
	Signature string   `xml:"Signature"`
}

type completeResponse struct {
	XMLName        xml.Name `xml:"PaymentCompleteResponse"`
	Result         string   `xml:"Result"`
	Message        string   `xml:"Message"`
	TransactionRef string   `xml:"TransactionRef"`
}

func (r *xmlRepo) CreateSession(ctx context.Context, req SessionReq) (string, error) {
	returnURL, err := WithCallbackRef(req.ReturnURL, req.CallbackRef)
	if err != nil {
		return "", &Error{Op: "create session", Err: err}
	}

	body := sessionRequest{
		APIKey:   r.cfg.APIKey,
		OrderRef: uuid.NewString(),
		Amount:   req.Amount.StringFixed(2),
		Currency: req.Currency,
		Billing: billingXML{
			FirstName: req.Billing.FirstName,
			LastName:  req.Billing.LastName,
			Email:     req.Billing.Email,
			Phone:     req.Billing.Phone,
			Street:    req.Billing.Street,
			City:      req.Billing.City,
			State:     req.Billing.State,
			Country:   req.Billing.Country,
			ZipCode:   req.Billing.ZipCode,
		},
		ReturnURL: returnURL,
		ClientIP:  req.ClientIP,
	}
	body.Signature = Sign(r.cfg.Secret, body.APIKey, body.OrderRef, body.Amount, body.Currency, body.ReturnURL)

	var out sessionResponse
	if err := r.post(ctx, "create session", sessionPath, body, &out); err != nil {
		return "", err
	}
	if out.Result != resultOK {
		return "", &Error{Op: "create session", Result: out.Result, Msg: out.Message}
	}
	if out.SessionURL == "" {
		return "", &Error{Op: "create session", Result: out.Result, Msg: "empty session url"}
	}
	return out.SessionURL, nil
}

func (r *xmlRepo) ConfirmSession(ctx context.Context, token string) error {
	if token == "" {
		return &Error{Op: "confirm session", Msg: "empty token"}
	}
	body := completeRequest{APIKey: r.cfg.APIKey, Token: token}
	body.Signature = Sign(r.cfg.Secret, body.APIKey, body.Token)

	var out completeResponse
	if err := r.post(ctx, "confirm session", completePath, body, &out); err != nil {
		return err
	}
	if out.Result != resultOK {
		return &Error{Op: "confirm session", Result: out.Result, Msg: out.Message}
	}
	return nil
}

func (r *xmlRepo) post(ctx context.Context, op, p string, in, out any) error {
	b, err := xml.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL+p, bytes.NewReader(append([]byte(xml.Header), b...)))
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/xml")
	httpReq.Header.Set("Accept", "application/xml")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return &Error{Op: op, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode >= 300 {
		return &Error{Op: op, Status: resp.StatusCode, Msg: strings.TrimSpace(string(raw))}
	}
	if err := xml.Unmarshal(raw, out); err != nil {
		return &Error{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// Sign is the provider's request signature: hex HMAC-SHA256 over the
// pipe-joined fields.
func Sign(secret string, fields ...string) string {
	m := hmac.New(sha256.New, []byte(secret))
	m.Write([]byte(strings.Join(fields, "|")))
	return hex.EncodeToString(m.Sum(nil))
}

// VerifySignature checks sig against the fields in constant time.
func VerifySignature(secret, sig string, fields ...string) error {
	want, err := hex.DecodeString(Sign(secret, fields...))
	if err != nil {
		return err
	}
	got, err := hex.DecodeString(sig)
	if err != nil || !hmac.Equal(want, got) {
		return errors.New("bad signature")
	}
	return nil
}
