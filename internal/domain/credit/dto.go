package credit

// ApplyCreditRequest is the body for POST /credits/apply
type ApplyCreditRequest struct {
	BookingID string `json:"booking_id" validate:"required,uuid"`
	Amount    string `json:"amount" validate:"required"`
}
