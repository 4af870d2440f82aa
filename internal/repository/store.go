package repository

import (
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pmflames/ticketing/internal/model"
)

// Store binds the ticket repository to a live database handle. It is the
// production implementation of the service layer's TicketStore interface.
type Store struct {
	db   *sqlx.DB
	repo *TicketRepository
}

// NewStore creates a Store backed by the given database
func NewStore(db *sqlx.DB) *Store {
	return &Store{
		db:   db,
		repo: NewTicketRepository(),
	}
}

// Upsert inserts or replaces the ticket identified by its code
func (s *Store) Upsert(ticket *model.Ticket) error {
	return s.repo.Upsert(s.db, ticket)
}

// FindByCode looks up a ticket without mutating it
func (s *Store) FindByCode(code string) (*model.Ticket, error) {
	return s.repo.FindByCode(s.db, code)
}

// TryRedeem performs the atomic redemption attempt
func (s *Store) TryRedeem(code string, now time.Time) (model.RedeemOutcome, error) {
	return s.repo.TryRedeem(s.db, code, now)
}
