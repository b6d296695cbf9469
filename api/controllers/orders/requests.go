package orders

type recalculateRequest struct {
	SessionKey          string `json:"session_key"`
	Persist             bool   `json:"persist"`
	SkipShippingRequote bool   `json:"skip_shipping_requote"`
	DiscountsToken      string `json:"discounts_token"`
}

type manualDiscountRequest struct {
	SessionKey string `json:"session_key"`
	Value      string `json:"value" validate:"required,max=32"`
}

type addItemRequest struct {
	SessionKey string `json:"session_key" validate:"required"`
	ProductID  string `json:"product_id" validate:"required,uuid"`
	Quantity   int    `json:"quantity" validate:"min=1"`
}

type updateItemRequest struct {
	SessionKey string `json:"session_key" validate:"required"`
	Quantity   int    `json:"quantity" validate:"min=1"`
}

type saveRequest struct {
	SessionKey     string `json:"session_key"`
	DiscountsToken string `json:"discounts_token"`
}
