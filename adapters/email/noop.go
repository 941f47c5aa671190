package email

import (
	"context"

	"github.com/eurekapx/orderdesk/ports"
	"github.com/rs/zerolog"
)

// NoopSender drops every email. Used when no provider is configured.
type NoopSender struct {
	logger zerolog.Logger
}

// NewNoopSender creates a sender that only logs what it would have sent.
func NewNoopSender(logger zerolog.Logger) *NoopSender {
	return &NoopSender{logger: logger}
}

// Send logs the email and reports success.
func (n *NoopSender) Send(ctx context.Context, msg ports.EmailMessage) error {
	n.logger.Debug().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Msg("email provider disabled, message dropped")
	return nil
}

// Ensure interface compliance.
var _ ports.EmailSender = (*NoopSender)(nil)
