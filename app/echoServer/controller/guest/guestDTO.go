package guest

type CreateIntentReq struct {
	Quantity    int64  `json:"quantity" validate:"required,gt=0"`
	RedirectURL string `json:"redirect_url" validate:"required,url"`

	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required,e164"`
	Street    string `json:"street"`
	City      string `json:"city"`
	State     string `json:"state"`
	Country   string `json:"country"`
	ZipCode   string `json:"zip_code"`
}

// VerifyIntentReq carries the ref the gateway appended to the return URL.
type VerifyIntentReq struct {
	Token string `json:"token" validate:"required"`
	Ref   string `json:"ref" validate:"required"`
}
