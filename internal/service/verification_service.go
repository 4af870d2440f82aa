package service

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pmflames/ticketing/internal/metrics"
	"github.com/pmflames/ticketing/internal/model"
	"github.com/pmflames/ticketing/internal/repository"
)

// TicketStore is the storage contract the verification and issuance services
// run against. The production implementation is repository.Store.
type TicketStore interface {
	Upsert(ticket *model.Ticket) error
	FindByCode(code string) (*model.Ticket, error)
	TryRedeem(code string, now time.Time) (model.RedeemOutcome, error)
}

var (
	// ErrNoCode means the request carried neither a code nor a QR payload
	ErrNoCode = errors.New("no ticket code provided")

	// ErrInvalidQR means the QR payload could not be decoded
	ErrInvalidQR = errors.New("invalid QR code format")
)

// VerifyRequest is the inbound verification request. Either Code or QRData
// must be present. Redeem defaults to true; a false value performs a
// read-only validity check that leaves the audit trail untouched.
type VerifyRequest struct {
	Code   string `json:"code,omitempty"`
	QRData string `json:"qrData,omitempty"`
	Redeem *bool  `json:"redeem,omitempty"`
}

// TicketView is the outcome-dependent projection of a ticket returned to the
// scanner. Fields outside the projection for a given outcome stay empty.
type TicketView struct {
	Code              string              `json:"code"`
	CustomerName      string              `json:"customerName,omitempty"`
	Phone             string              `json:"phone,omitempty"`
	Email             string              `json:"email,omitempty"`
	Amount            *decimal.Decimal    `json:"amount,omitempty"`
	Status            string              `json:"status,omitempty"`
	VerificationCount int                 `json:"verificationCount,omitempty"`
	LastVerifiedAt    *time.Time          `json:"lastVerifiedAt,omitempty"`
	EventDetails      *model.EventDetails `json:"eventDetails,omitempty"`
	ValidUntil        *time.Time          `json:"validUntil,omitempty"`
}

// VerifyResult is returned for every well-formed verification request
type VerifyResult struct {
	Valid      bool               `json:"valid"`
	Status     model.RedeemStatus `json:"status"`
	Ticket     *TicketView        `json:"ticket,omitempty"`
	Message    string             `json:"message"`
	VerifiedAt time.Time          `json:"verifiedAt"`
}

// VerificationService turns verification requests into store operations and
// user-facing results. It holds no state of its own.
type VerificationService struct {
	store TicketStore
	now   func() time.Time
}

// NewVerificationService creates a new verification service
func NewVerificationService(store TicketStore) *VerificationService {
	return &VerificationService{
		store: store,
		now:   time.Now,
	}
}

// Verify parses the request, applies the redemption protocol and maps the
// outcome to a scanner-facing result. Business outcomes (NOT_FOUND, EXPIRED,
// ALREADY_USED, VALID) are values on the result; the error return is reserved
// for malformed requests (ErrNoCode, ErrInvalidQR) and store failures.
func (s *VerificationService) Verify(req VerifyRequest) (*VerifyResult, error) {
	code, err := parseCode(req)
	if err != nil {
		return nil, err
	}

	redeem := req.Redeem == nil || *req.Redeem
	now := s.now()

	// Record verification latency by outcome
	start := time.Now()
	status := "error"
	defer func() {
		metrics.RecordVerifyDuration(status, time.Since(start).Seconds())
	}()

	var result *VerifyResult
	if redeem {
		outcome, rerr := s.store.TryRedeem(code, now)
		if rerr != nil {
			return nil, rerr
		}
		result = resultForOutcome(outcome, now, true)
	} else {
		result, err = s.check(code, now)
		if err != nil {
			return nil, err
		}
	}

	status = string(result.Status)
	return result, nil
}

// Check performs a read-only validity check for the given code. It never
// mutates the ticket, so repeated checks do not show up in the audit trail.
func (s *VerificationService) Check(code string) (*VerifyResult, error) {
	if code == "" {
		return nil, ErrNoCode
	}
	return s.check(code, s.now())
}

func (s *VerificationService) check(code string, now time.Time) (*VerifyResult, error) {
	ticket, err := s.store.FindByCode(code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return resultForOutcome(model.RedeemOutcome{Status: model.RedeemNotFound}, now, false), nil
		}
		return nil, err
	}

	outcome := model.RedeemOutcome{Ticket: ticket}
	switch {
	case ticket.Status == model.StatusUsed:
		outcome.Status = model.RedeemAlreadyUsed
	case ticket.Expired(now):
		outcome.Status = model.RedeemExpired
	default:
		outcome.Status = model.RedeemValid
	}
	return resultForOutcome(outcome, now, false), nil
}

// parseCode extracts the ticket code from a direct code or a QR payload.
// The QR payload is a JSON document carrying a "code" field.
func parseCode(req VerifyRequest) (string, error) {
	if req.QRData != "" {
		var payload struct {
			Code string `json:"code"`
		}
		if err := json.Unmarshal([]byte(req.QRData), &payload); err != nil || payload.Code == "" {
			return "", ErrInvalidQR
		}
		return payload.Code, nil
	}
	if req.Code != "" {
		return req.Code, nil
	}
	return "", ErrNoCode
}

func resultForOutcome(outcome model.RedeemOutcome, now time.Time, redeemed bool) *VerifyResult {
	result := &VerifyResult{
		Status:     outcome.Status,
		VerifiedAt: now,
	}

	switch outcome.Status {
	case model.RedeemNotFound:
		result.Message = "Ticket not found"

	case model.RedeemExpired:
		result.Message = "Ticket has expired"
		result.Ticket = &TicketView{
			Code:       outcome.Ticket.Code,
			ValidUntil: outcome.Ticket.ValidUntil,
		}

	case model.RedeemAlreadyUsed:
		result.Message = "This ticket has already been used"
		result.Ticket = &TicketView{
			Code:              outcome.Ticket.Code,
			Status:            outcome.Ticket.Status,
			VerificationCount: outcome.Ticket.VerificationCount,
			LastVerifiedAt:    outcome.Ticket.LastVerifiedAt,
		}

	case model.RedeemValid:
		result.Valid = true
		if redeemed {
			result.Message = "Ticket successfully verified"
		} else {
			result.Message = "Ticket is valid and ready for use"
		}
		t := outcome.Ticket
		amount := t.Amount
		result.Ticket = &TicketView{
			Code:              t.Code,
			CustomerName:      t.CustomerName,
			Phone:             t.Phone,
			Email:             t.Email,
			Amount:            &amount,
			Status:            t.Status,
			VerificationCount: t.VerificationCount,
			LastVerifiedAt:    t.LastVerifiedAt,
			EventDetails:      &t.EventDetails,
			ValidUntil:        t.ValidUntil,
		}
	}

	return result
}
