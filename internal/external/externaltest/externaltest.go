// Package externaltest provides recording implementations of the external
// collaborators for tests.
package externaltest

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/JaimeStill/certify/internal/certification"
	"github.com/JaimeStill/certify/internal/external"
)

// Reset is a recorded ApplyReset call.
type Reset struct {
	PeriodID uuid.UUID
	UserID   int64
	Type     certification.ResetType
}

// Programs records program collaborator calls. Err, when set, is returned
// from every call.
type Programs struct {
	mu     sync.Mutex
	Err    error
	syncs  int
	resets []Reset
}

func (p *Programs) Sync(context.Context, *uuid.UUID, *int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.syncs++
	return p.Err
}

func (p *Programs) ApplyReset(_ context.Context, period certification.Period, reset certification.ResetType) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.resets = append(p.resets, Reset{PeriodID: period.ID, UserID: period.UserID, Type: reset})
	return nil
}

// Syncs returns the number of Sync calls.
func (p *Programs) Syncs() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.syncs
}

// Resets returns the recorded resets in call order.
func (p *Programs) Resets() []Reset {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Reset(nil), p.resets...)
}

// Certificates issues sequential ids and records revocations.
type Certificates struct {
	mu      sync.Mutex
	Err     error
	issued  map[uuid.UUID]string
	revoked []uuid.UUID
}

func (c *Certificates) Issue(_ context.Context, _ certification.Certification, p certification.Period) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return "", c.Err
	}
	if c.issued == nil {
		c.issued = make(map[uuid.UUID]string)
	}
	id := fmt.Sprintf("issue-%d", len(c.issued)+1)
	c.issued[p.ID] = id
	return id, nil
}

func (c *Certificates) Revoke(_ context.Context, p certification.Period) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.revoked = append(c.revoked, p.ID)
	return nil
}

// Issued returns the number of issued certificates.
func (c *Certificates) Issued() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.issued)
}

// Revoked returns the ids of periods whose certificates were revoked.
func (c *Certificates) Revoked() []uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]uuid.UUID(nil), c.revoked...)
}

// Messenger records sent messages.
type Messenger struct {
	mu       sync.Mutex
	Err      error
	messages []external.Message
}

func (m *Messenger) Send(_ context.Context, msg external.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.messages = append(m.messages, msg)
	return nil
}

// Messages returns the sent messages in order.
func (m *Messenger) Messages() []external.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]external.Message(nil), m.messages...)
}

// Count returns the number of sent messages of kind.
func (m *Messenger) Count(kind certification.NotificationKind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.messages {
		if msg.Kind == kind {
			n++
		}
	}
	return n
}
