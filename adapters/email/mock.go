package email

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/eurekapx/orderdesk/ports"
)

// MockSender stores sent emails in memory instead of sending them.
type MockSender struct {
	mu      sync.Mutex
	emails  []ports.EmailMessage
	failErr error
}

// NewMockSender creates a new mock email sender.
func NewMockSender() *MockSender {
	return &MockSender{}
}

// Send stores the email in memory, or fails when SetShouldFail was called.
func (m *MockSender) Send(ctx context.Context, msg ports.EmailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failErr != nil {
		return m.failErr
	}
	m.emails = append(m.emails, msg)
	return nil
}

// SetShouldFail makes Send fail with err. A nil err restores delivery.
func (m *MockSender) SetShouldFail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

// FailWith is SetShouldFail with a generic error.
func (m *MockSender) FailWith(reason string) {
	m.SetShouldFail(errors.New(reason))
}

// Emails returns a copy of every stored email.
func (m *MockSender) Emails() []ports.EmailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.EmailMessage(nil), m.emails...)
}

// FindByTo returns the emails sent to an address.
func (m *MockSender) FindByTo(to string) []ports.EmailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []ports.EmailMessage
	for _, e := range m.emails {
		if e.To == to {
			result = append(result, e)
		}
	}
	return result
}

// FindBySubject returns the emails whose subject contains substr.
func (m *MockSender) FindBySubject(substr string) []ports.EmailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []ports.EmailMessage
	for _, e := range m.emails {
		if strings.Contains(e.Subject, substr) {
			result = append(result, e)
		}
	}
	return result
}

// Count returns the number of stored emails.
func (m *MockSender) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.emails)
}

// Reset clears stored emails and failure mode.
func (m *MockSender) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emails = nil
	m.failErr = nil
}

// Ensure interface compliance.
var _ ports.EmailSender = (*MockSender)(nil)
