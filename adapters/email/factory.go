package email

import (
	"fmt"

	"github.com/eurekapx/orderdesk/ports"
	"github.com/rs/zerolog"
)

// Provider names accepted by NewSender.
const (
	ProviderSMTP = "smtp"
	ProviderMock = "mock"
	ProviderNone = "none"
)

// Settings selects and configures an email provider.
type Settings struct {
	Provider string
	SMTP     SMTPConfig
}

// NewSender creates an email sender based on settings.
func NewSender(s Settings, logger zerolog.Logger) (ports.EmailSender, error) {
	switch s.Provider {
	case ProviderSMTP:
		sender, err := NewSMTPSender(s.SMTP)
		if err != nil {
			return nil, fmt.Errorf("smtp provider: %w", err)
		}
		return sender, nil

	case ProviderMock:
		return NewMockSender(), nil

	case ProviderNone, "":
		return NewNoopSender(logger), nil

	default:
		return nil, fmt.Errorf("unknown email provider: %s", s.Provider)
	}
}
