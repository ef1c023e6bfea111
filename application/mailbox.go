package application

import (
	"context"
	"slices"
	"sync"

	"testbed/domain"
)

// Mailbox records outgoing mail instead of sending it.
type Mailbox struct {
	mu       sync.Mutex
	messages []domain.MailMessage
}

// Send implements ports.Mailer.
func (m *Mailbox) Send(_ context.Context, msg domain.MailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

// Messages returns every message sent so far.
func (m *Mailbox) Messages() []domain.MailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.messages)
}

// Len returns the number of messages sent.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// Reset empties the mailbox.
func (m *Mailbox) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
}
