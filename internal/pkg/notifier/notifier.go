package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Sender delivers a single message
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// Service sends fire-and-forget ledger notifications. Delivery failures are
// logged and never propagated to the caller.
type Service struct {
	sender Sender
}

// NewService creates a notifier service. A nil sender disables delivery.
func NewService(sender Sender) *Service {
	return &Service{sender: sender}
}

// PurchaseCompleted notifies the buyer that their package is active.
func (s *Service) PurchaseCompleted(email, name, packageName string, expiresAt time.Time) {
	s.dispatch(&Message{
		To:      email,
		ToName:  name,
		Subject: "Your package is active",
		TextContent: fmt.Sprintf(
			"Your %s package is now active and valid until %s.",
			packageName, expiresAt.Format("2 Jan 2006"),
		),
	})
}

// RefundApproved notifies the user that store credit was issued.
func (s *Service) RefundApproved(email, name string, amount decimal.Decimal, expiresAt time.Time) {
	s.dispatch(&Message{
		To:      email,
		ToName:  name,
		Subject: "Your refund has been approved",
		TextContent: fmt.Sprintf(
			"Store credit of %s has been added to your account. It expires on %s.",
			amount.StringFixed(2), expiresAt.Format("2 Jan 2006"),
		),
	})
}

// RefundRejected notifies the user that their refund request was declined.
func (s *Service) RefundRejected(email, name, reason string) {
	s.dispatch(&Message{
		To:          email,
		ToName:      name,
		Subject:     "Your refund request was declined",
		TextContent: fmt.Sprintf("Your refund request was declined: %s", reason),
	})
}

func (s *Service) dispatch(msg *Message) {
	if s.sender == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.sender.Send(ctx, msg); err != nil {
			log.Warn().Err(err).Str("to", msg.To).Str("subject", msg.Subject).Msg("notification delivery failed")
		}
	}()
}
