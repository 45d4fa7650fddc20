package voltz

type CreateIntentReq struct {
	Quantity    int64  `json:"quantity" validate:"required,gt=0"`
	RedirectURL string `json:"redirect_url" validate:"required,url"`
}

type VerifyIntentReq struct {
	Token string `json:"token" validate:"required"`
}
