package booking

// PayWithPassRequest is the body for POST /bookings/{id}/pay-with-pass
type PayWithPassRequest struct {
	PassID string `json:"pass_id" validate:"required,uuid"`
}

// ExtensionPaymentRequest is the body for POST /bookings/{id}/payments
type ExtensionPaymentRequest struct {
	Amount string `json:"amount" validate:"required"`
}
