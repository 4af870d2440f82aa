package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Ticket status values
const (
	StatusActive = "active"
	StatusUsed   = "used"
)

// RedeemStatus is the terminal outcome of a verification attempt
type RedeemStatus string

const (
	RedeemValid       RedeemStatus = "VALID"
	RedeemAlreadyUsed RedeemStatus = "ALREADY_USED"
	RedeemExpired     RedeemStatus = "EXPIRED"
	RedeemNotFound    RedeemStatus = "NOT_FOUND"
)

// EventDetails is the event metadata snapshot stored with each ticket (JSONB column)
type EventDetails struct {
	Name     string `json:"name,omitempty"`
	Date     string `json:"date,omitempty"`
	Location string `json:"location,omitempty"`
}

// Value implements driver.Valuer so EventDetails can be written to a JSONB column
func (e EventDetails) Value() (driver.Value, error) {
	return json.Marshal(e)
}

// Scan implements sql.Scanner for reading the JSONB column back
func (e *EventDetails) Scan(src interface{}) error {
	if src == nil {
		*e = EventDetails{}
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, e)
	case string:
		return json.Unmarshal([]byte(v), e)
	default:
		return fmt.Errorf("unsupported type for event details: %T", src)
	}
}

// Ticket represents one paid admission unit in the database
type Ticket struct {
	ID                int64           `db:"id" json:"-"`
	Code              string          `db:"code" json:"code"`
	CustomerName      string          `db:"customer_name" json:"customerName"`
	Phone             string          `db:"phone" json:"phone,omitempty"`
	Email             string          `db:"email" json:"email,omitempty"`
	Amount            decimal.Decimal `db:"amount" json:"amount"`
	Method            string          `db:"method" json:"paymentMethod,omitempty"`
	Ref               string          `db:"ref" json:"paymentRef,omitempty"`
	EventDetails      EventDetails    `db:"event_details" json:"eventDetails"`
	ValidUntil        *time.Time      `db:"valid_until" json:"validUntil,omitempty"`
	Status            string          `db:"status" json:"status"`
	VerificationCount int             `db:"verification_count" json:"verificationCount"`
	LastVerifiedAt    *time.Time      `db:"last_verified_at" json:"lastVerifiedAt,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updatedAt"`
}

// Expired reports whether the ticket's validity window has lapsed at the given instant.
// A ticket with no validUntil never expires.
func (t *Ticket) Expired(now time.Time) bool {
	return t.ValidUntil != nil && now.After(*t.ValidUntil)
}

// RedeemOutcome is the result of an atomic redemption attempt against the store
type RedeemOutcome struct {
	Status RedeemStatus
	Ticket *Ticket // nil for NOT_FOUND
}
