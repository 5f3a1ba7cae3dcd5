package refund

// RequestRefundRequest is the body for POST /refunds
type RequestRefundRequest struct {
	BookingID string `json:"booking_id" validate:"required,uuid"`
	Reason    string `json:"reason" validate:"required,min=3,max=500"`
}

// RejectRefundRequest is the body for POST /admin/refunds/{id}/reject
type RejectRefundRequest struct {
	Note string `json:"note" validate:"required,min=3,max=500"`
}
