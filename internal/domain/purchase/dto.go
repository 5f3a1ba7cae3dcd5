package purchase

// CreatePurchaseRequest is the body for POST /purchases
type CreatePurchaseRequest struct {
	PackageID string `json:"package_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gte=1,lte=10"`
}

// ConfirmPurchaseRequest is the body for POST /purchases/confirm, sent by the
// client after the gateway redirects back.
type ConfirmPurchaseRequest struct {
	PurchaseID       string `json:"purchase_id" validate:"required,uuid"`
	GatewayReference string `json:"gateway_reference" validate:"required"`
	PaymentMethod    string `json:"payment_method" validate:"payment_method"`
}
