package service

import (
	"sync"
	"time"

	"github.com/pmflames/ticketing/internal/model"
	"github.com/pmflames/ticketing/internal/repository"
)

// memoryStore is a test double for TicketStore. It reproduces the production
// store's semantics (CAS redemption, audit bookkeeping on losing paths,
// snapshot-preserving upsert) behind a mutex so concurrency tests exercise
// the same contract.
type memoryStore struct {
	mu      sync.Mutex
	tickets map[string]*model.Ticket
}

func newMemoryStore() *memoryStore {
	return &memoryStore{tickets: make(map[string]*model.Ticket)}
}

func (m *memoryStore) Upsert(ticket *model.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if existing, ok := m.tickets[ticket.Code]; ok {
		existing.CustomerName = ticket.CustomerName
		existing.Phone = ticket.Phone
		existing.Email = ticket.Email
		existing.Amount = ticket.Amount
		existing.Method = ticket.Method
		existing.Ref = ticket.Ref
		existing.EventDetails = ticket.EventDetails
		existing.ValidUntil = ticket.ValidUntil
		existing.UpdatedAt = now
		*ticket = *existing
		return nil
	}

	stored := *ticket
	stored.Status = model.StatusActive
	stored.VerificationCount = 0
	stored.CreatedAt = now
	stored.UpdatedAt = now
	m.tickets[ticket.Code] = &stored
	*ticket = stored
	return nil
}

func (m *memoryStore) FindByCode(code string) (*model.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ticket, ok := m.tickets[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *ticket
	return &copied, nil
}

func (m *memoryStore) TryRedeem(code string, now time.Time) (model.RedeemOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ticket, ok := m.tickets[code]
	if !ok {
		return model.RedeemOutcome{Status: model.RedeemNotFound}, nil
	}

	ticket.VerificationCount++
	ticket.LastVerifiedAt = &now
	ticket.UpdatedAt = now

	var status model.RedeemStatus
	switch {
	case ticket.Status == model.StatusUsed:
		status = model.RedeemAlreadyUsed
	case ticket.Expired(now):
		status = model.RedeemExpired
	default:
		ticket.Status = model.StatusUsed
		status = model.RedeemValid
	}

	copied := *ticket
	return model.RedeemOutcome{Status: status, Ticket: &copied}, nil
}

func (m *memoryStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tickets)
}
