package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pmflames/ticketing/internal/metrics"
	"github.com/pmflames/ticketing/internal/model"
	"github.com/pmflames/ticketing/internal/payment"
)

var (
	// ErrMissingFields means the issuance request lacked required data
	ErrMissingFields = errors.New("missing required fields: customerName, amount")

	// ErrPaymentNotConfirmed means the gateway did not report the reference as paid
	ErrPaymentNotConfirmed = errors.New("payment not confirmed for reference")
)

// PaymentVerifier confirms that a gateway transaction reference was paid.
// Consulted before issuance when a reference is supplied; never on the
// verification path.
type PaymentVerifier interface {
	Verify(ctx context.Context, reference string) (*payment.Verification, error)
}

// TicketMailer sends the confirmation message for an issued ticket
type TicketMailer interface {
	SendTicketEmail(ctx context.Context, ticket *model.Ticket) error
}

// IssueRequest is the inbound issuance request
type IssueRequest struct {
	Code         string             `json:"code"`
	CustomerName string             `json:"customerName"`
	Phone        string             `json:"phone"`
	Email        string             `json:"email"`
	Amount       decimal.Decimal    `json:"amount"`
	Method       string             `json:"method"`
	Ref          string             `json:"ref"`
	EventDetails model.EventDetails `json:"eventDetails"`
	ValidUntil   *time.Time         `json:"validUntil"`
}

// IssuanceService creates ticket records after payment. Issuance is
// idempotent on code: re-submitting the same code updates the issuance
// snapshot of the existing row instead of creating a duplicate.
type IssuanceService struct {
	store    TicketStore
	payments PaymentVerifier
	mailer   TicketMailer
}

// NewIssuanceService creates a new issuance service. The payment verifier and
// mailer are optional; a nil verifier skips the payment check and a nil
// mailer skips confirmation email.
func NewIssuanceService(store TicketStore, payments PaymentVerifier, mailer TicketMailer) *IssuanceService {
	return &IssuanceService{
		store:    store,
		payments: payments,
		mailer:   mailer,
	}
}

// Issue validates the request, optionally confirms payment with the gateway,
// and upserts the ticket. A confirmation email is sent in the background;
// its failure never fails the issuance.
func (s *IssuanceService) Issue(ctx context.Context, req IssueRequest) (*model.Ticket, error) {
	result := "failure"
	defer func() {
		metrics.RecordTicketIssued(result)
	}()

	if strings.TrimSpace(req.CustomerName) == "" || !req.Amount.IsPositive() {
		return nil, ErrMissingFields
	}

	code := strings.TrimSpace(req.Code)
	if code == "" {
		code = GenerateCode()
	}

	if req.Ref != "" && s.payments != nil {
		verification, err := s.payments.Verify(ctx, req.Ref)
		if err != nil {
			return nil, fmt.Errorf("failed to verify payment reference: %w", err)
		}
		if !verification.Paid {
			return nil, ErrPaymentNotConfirmed
		}
	}

	ticket := &model.Ticket{
		Code:         code,
		CustomerName: strings.TrimSpace(req.CustomerName),
		Phone:        req.Phone,
		Email:        strings.TrimSpace(req.Email),
		Amount:       req.Amount,
		Method:       req.Method,
		Ref:          req.Ref,
		EventDetails: req.EventDetails,
		ValidUntil:   req.ValidUntil,
	}

	if err := s.store.Upsert(ticket); err != nil {
		return nil, err
	}
	result = "success"

	if s.mailer != nil && ticket.Email != "" {
		go s.sendConfirmation(ticket)
	}

	return ticket, nil
}

func (s *IssuanceService) sendConfirmation(ticket *model.Ticket) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := s.mailer.SendTicketEmail(ctx, ticket); err != nil {
		slog.Error("failed to send ticket confirmation email", "code", ticket.Code, "error", err)
	}
}

// GenerateCode produces a short human-readable confirmation code,
// e.g. PMF-7C9A2F41
func GenerateCode() string {
	return "PMF-" + strings.ToUpper(uuid.New().String()[:8])
}
