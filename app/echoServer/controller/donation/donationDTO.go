package donation

import "github.com/shopspring/decimal"

// Amount accepts a JSON number or string; it is checked by the service.
type CreateDonationReq struct {
	Amount      decimal.Decimal `json:"amount"`
	RedirectURL string          `json:"redirect_url" validate:"required,url"`
}

type VerifyDonationReq struct {
	Token string `json:"token" validate:"required"`
}
