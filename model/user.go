package model

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// User is the registered platform user. Only the fields used as a gateway
// billing profile are loaded here.
type User struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Street    string    `json:"street"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	Country   string    `json:"country"`
	ZipCode   string    `json:"zip_code"`
	CreatedAt time.Time `json:"created_at"`
}

func (u User) Billing() BillingProfile {
	return BillingProfile{
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Phone:     u.Phone,
		Street:    u.Street,
		City:      u.City,
		State:     u.State,
		Country:   u.Country,
		ZipCode:   u.ZipCode,
	}
}

// Guest is a purchaser without an account, identified by email + phone.
type Guest struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Street    string    `json:"street"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	Country   string    `json:"country"`
	ZipCode   string    `json:"zip_code"`
	CreatedAt time.Time `json:"created_at"`
}

func (g Guest) Billing() BillingProfile {
	return BillingProfile{
		FirstName: g.FirstName,
		LastName:  g.LastName,
		Email:     g.Email,
		Phone:     g.Phone,
		Street:    g.Street,
		City:      g.City,
		State:     g.State,
		Country:   g.Country,
		ZipCode:   g.ZipCode,
	}
}

// BillingProfile is what the payment page pre-fills for the payer.
type BillingProfile struct {
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

type RequesterKind string

const (
	RequesterUser  RequesterKind = "USER"
	RequesterGuest RequesterKind = "GUEST"
)

// Requester identifies who owns an intent: exactly one of a user or a guest.
type Requester struct {
	Kind RequesterKind `json:"kind"`
	ID   int64         `json:"id"`
}

func UserRequester(id int64) Requester  { return Requester{Kind: RequesterUser, ID: id} }
func GuestRequester(id int64) Requester { return Requester{Kind: RequesterGuest, ID: id} }

func (r Requester) IsUser() bool  { return r.Kind == RequesterUser }
func (r Requester) IsGuest() bool { return r.Kind == RequesterGuest }

func (r Requester) Valid() bool {
	return (r.Kind == RequesterUser || r.Kind == RequesterGuest) && r.ID > 0
}

// Ref is the compact form embedded in gateway callback URLs, e.g. "u:12".
func (r Requester) Ref() string {
	p := "u"
	if r.IsGuest() {
		p = "g"
	}
	return p + ":" + strconv.FormatInt(r.ID, 10)
}

var ErrBadRef = errors.New("malformed requester reference")

// ParseRef is the inverse of Requester.Ref.
func ParseRef(ref string) (Requester, error) {
	kind, id, ok := strings.Cut(ref, ":")
	if !ok {
		return Requester{}, ErrBadRef
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return Requester{}, ErrBadRef
	}
	switch kind {
	case "u":
		return UserRequester(n), nil
	case "g":
		return GuestRequester(n), nil
	}
	return Requester{}, ErrBadRef
}
