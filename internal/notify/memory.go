package notify

import (
	"context"
	"sync"
)

// MemorySink records notifications in memory.
type MemorySink struct {
	mu   sync.Mutex
	sent []Notification

	// Fail, when set, is consulted before recording; a non-nil result is
	// returned from Send and nothing is recorded.
	Fail func(Notification) error
}

// Send records n.
func (m *MemorySink) Send(_ context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		if err := m.Fail(n); err != nil {
			return err
		}
	}
	m.sent = append(m.sent, n)
	return nil
}

// Sent returns a copy of every recorded notification, in send order.
func (m *MemorySink) Sent() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Notification(nil), m.sent...)
}

// Reset forgets recorded notifications.
func (m *MemorySink) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
}
