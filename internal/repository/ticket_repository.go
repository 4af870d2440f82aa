package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pmflames/ticketing/internal/model"
)

// ErrNotFound is returned when no ticket matches the requested code
var ErrNotFound = errors.New("ticket not found")

// DBExecutor interface for database operations (can be *sqlx.DB or *sqlx.Tx)
type DBExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Get(dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
}

const ticketColumns = `id, code, customer_name, phone, email, amount, method, ref,
	event_details, valid_until, status, verification_count, last_verified_at,
	created_at, updated_at`

// TicketRepository handles ticket data operations
type TicketRepository struct {
	// DB-only repository - all state lives in PostgreSQL
}

// NewTicketRepository creates a new ticket repository
func NewTicketRepository() *TicketRepository {
	return &TicketRepository{}
}

// Upsert inserts a ticket or, on a code conflict, overwrites the issuance
// snapshot (contact, amount, event metadata). The redemption state of an
// existing row (status, verification_count, last_verified_at) is preserved so
// a re-issuance cannot un-redeem a ticket.
func (r *TicketRepository) Upsert(db DBExecutor, ticket *model.Ticket) error {
	query := `
		INSERT INTO tickets (code, customer_name, phone, email, amount, method, ref,
			event_details, valid_until, status, verification_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'active', 0, $10, $10)
		ON CONFLICT (code) DO UPDATE SET
			customer_name = EXCLUDED.customer_name,
			phone = EXCLUDED.phone,
			email = EXCLUDED.email,
			amount = EXCLUDED.amount,
			method = EXCLUDED.method,
			ref = EXCLUDED.ref,
			event_details = EXCLUDED.event_details,
			valid_until = EXCLUDED.valid_until,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + ticketColumns

	now := time.Now()
	err := db.Get(ticket, query,
		ticket.Code, ticket.CustomerName, ticket.Phone, ticket.Email,
		ticket.Amount, ticket.Method, ticket.Ref, ticket.EventDetails,
		ticket.ValidUntil, now)
	if err != nil {
		return fmt.Errorf("failed to upsert ticket: %w", err)
	}

	return nil
}

// FindByCode retrieves a ticket by its code
func (r *TicketRepository) FindByCode(db DBExecutor, code string) (*model.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE code = $1`

	var ticket model.Ticket
	err := db.Get(&ticket, query, code)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}

	return &ticket, nil
}

// TryRedeem attempts the active->used transition for the given code.
//
// The winning path is a single conditional UPDATE: the status and expiry guard
// live in the same statement as the write, so two concurrent calls for the
// same code serialize on the row and exactly one of them gets the RETURNING
// row back. Losing callers fall through to a bookkeeping UPDATE that still
// increments verification_count and stamps last_verified_at, then classify
// the row they got back as ALREADY_USED or EXPIRED.
func (r *TicketRepository) TryRedeem(db DBExecutor, code string, now time.Time) (model.RedeemOutcome, error) {
	redeemQuery := `
		UPDATE tickets
		SET status = 'used',
			verification_count = verification_count + 1,
			last_verified_at = $2,
			updated_at = $2
		WHERE code = $1
			AND status = 'active'
			AND (valid_until IS NULL OR valid_until >= $2)
		RETURNING ` + ticketColumns

	var ticket model.Ticket
	err := db.Get(&ticket, redeemQuery, code, now)
	if err == nil {
		return model.RedeemOutcome{Status: model.RedeemValid, Ticket: &ticket}, nil
	}
	if err != sql.ErrNoRows {
		return model.RedeemOutcome{}, fmt.Errorf("failed to redeem ticket: %w", err)
	}

	// Lost the conditional update: the row is missing, already used, or
	// expired. Every attempt that finds a row is still recorded.
	touchQuery := `
		UPDATE tickets
		SET verification_count = verification_count + 1,
			last_verified_at = $2,
			updated_at = $2
		WHERE code = $1
		RETURNING ` + ticketColumns

	err = db.Get(&ticket, touchQuery, code, now)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.RedeemOutcome{Status: model.RedeemNotFound}, nil
		}
		return model.RedeemOutcome{}, fmt.Errorf("failed to record verification attempt: %w", err)
	}

	if ticket.Status == model.StatusUsed {
		return model.RedeemOutcome{Status: model.RedeemAlreadyUsed, Ticket: &ticket}, nil
	}
	return model.RedeemOutcome{Status: model.RedeemExpired, Ticket: &ticket}, nil
}
