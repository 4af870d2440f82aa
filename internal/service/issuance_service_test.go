package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmflames/ticketing/internal/model"
	"github.com/pmflames/ticketing/internal/payment"
)

type fakeVerifier struct {
	paid bool
	err  error
	refs []string
}

func (f *fakeVerifier) Verify(ctx context.Context, reference string) (*payment.Verification, error) {
	f.refs = append(f.refs, reference)
	if f.err != nil {
		return nil, f.err
	}
	status := "failed"
	if f.paid {
		status = "success"
	}
	return &payment.Verification{Paid: f.paid, Status: status, Reference: reference}, nil
}

type fakeMailer struct {
	sent chan *model.Ticket
}

func (f *fakeMailer) SendTicketEmail(ctx context.Context, ticket *model.Ticket) error {
	f.sent <- ticket
	return nil
}

func validIssueRequest() IssueRequest {
	return IssueRequest{
		Code:         "PMF-AB12CD",
		CustomerName: "Ada Obi",
		Email:        "ada@example.com",
		Amount:       decimal.NewFromInt(5000),
		EventDetails: model.EventDetails{Name: "Flames Night"},
	}
}

func TestIssue_StoresActiveTicket(t *testing.T) {
	store := newMemoryStore()
	svc := NewIssuanceService(store, nil, nil)

	ticket, err := svc.Issue(context.Background(), validIssueRequest())
	require.NoError(t, err)
	assert.Equal(t, "PMF-AB12CD", ticket.Code)
	assert.Equal(t, model.StatusActive, ticket.Status)
	assert.Equal(t, 0, ticket.VerificationCount)

	stored, err := store.FindByCode("PMF-AB12CD")
	require.NoError(t, err)
	assert.Equal(t, "Ada Obi", stored.CustomerName)
}

func TestIssue_MissingFields(t *testing.T) {
	svc := NewIssuanceService(newMemoryStore(), nil, nil)

	_, err := svc.Issue(context.Background(), IssueRequest{Amount: decimal.NewFromInt(5000)})
	assert.ErrorIs(t, err, ErrMissingFields)

	_, err = svc.Issue(context.Background(), IssueRequest{CustomerName: "Ada Obi"})
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestIssue_GeneratesCodeWhenAbsent(t *testing.T) {
	svc := NewIssuanceService(newMemoryStore(), nil, nil)

	req := validIssueRequest()
	req.Code = ""
	ticket, err := svc.Issue(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ticket.Code, "PMF-"))
	assert.Len(t, ticket.Code, len("PMF-")+8)
}

func TestIssue_UpsertIsIdempotentOnCode(t *testing.T) {
	store := newMemoryStore()
	svc := NewIssuanceService(store, nil, nil)

	_, err := svc.Issue(context.Background(), validIssueRequest())
	require.NoError(t, err)

	req := validIssueRequest()
	req.CustomerName = "Chinedu Eze"
	req.Amount = decimal.NewFromInt(7500)
	_, err = svc.Issue(context.Background(), req)
	require.NoError(t, err)

	// One row, reflecting the latest issuance snapshot
	assert.Equal(t, 1, store.len())
	stored, err := store.FindByCode("PMF-AB12CD")
	require.NoError(t, err)
	assert.Equal(t, "Chinedu Eze", stored.CustomerName)
	assert.True(t, stored.Amount.Equal(decimal.NewFromInt(7500)))
}

func TestIssue_ReissueCannotUnredeem(t *testing.T) {
	store := newMemoryStore()
	issueSvc := NewIssuanceService(store, nil, nil)
	verifySvc := NewVerificationService(store)

	_, err := issueSvc.Issue(context.Background(), validIssueRequest())
	require.NoError(t, err)

	result, err := verifySvc.Verify(VerifyRequest{Code: "PMF-AB12CD"})
	require.NoError(t, err)
	require.Equal(t, model.RedeemValid, result.Status)

	// Re-issuing the same code must not reopen the used -> active transition
	_, err = issueSvc.Issue(context.Background(), validIssueRequest())
	require.NoError(t, err)

	result, err = verifySvc.Verify(VerifyRequest{Code: "PMF-AB12CD"})
	require.NoError(t, err)
	assert.Equal(t, model.RedeemAlreadyUsed, result.Status)
}

func TestIssue_ConfirmsPaymentReference(t *testing.T) {
	verifier := &fakeVerifier{paid: true}
	svc := NewIssuanceService(newMemoryStore(), verifier, nil)

	req := validIssueRequest()
	req.Ref = "PMF-REF-1"
	_, err := svc.Issue(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"PMF-REF-1"}, verifier.refs)
}

func TestIssue_RejectsUnpaidReference(t *testing.T) {
	verifier := &fakeVerifier{paid: false}
	store := newMemoryStore()
	svc := NewIssuanceService(store, verifier, nil)

	req := validIssueRequest()
	req.Ref = "PMF-REF-1"
	_, err := svc.Issue(context.Background(), req)
	assert.ErrorIs(t, err, ErrPaymentNotConfirmed)
	assert.Equal(t, 0, store.len())
}

func TestIssue_GatewayErrorPropagates(t *testing.T) {
	verifier := &fakeVerifier{err: errors.New("gateway timeout")}
	svc := NewIssuanceService(newMemoryStore(), verifier, nil)

	req := validIssueRequest()
	req.Ref = "PMF-REF-1"
	_, err := svc.Issue(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to verify payment reference")
}

func TestIssue_SkipsPaymentCheckWithoutReference(t *testing.T) {
	verifier := &fakeVerifier{paid: false}
	svc := NewIssuanceService(newMemoryStore(), verifier, nil)

	_, err := svc.Issue(context.Background(), validIssueRequest())
	require.NoError(t, err)
	assert.Empty(t, verifier.refs)
}

func TestIssue_SendsConfirmationEmail(t *testing.T) {
	mailer := &fakeMailer{sent: make(chan *model.Ticket, 1)}
	svc := NewIssuanceService(newMemoryStore(), nil, mailer)

	_, err := svc.Issue(context.Background(), validIssueRequest())
	require.NoError(t, err)

	select {
	case ticket := <-mailer.sent:
		assert.Equal(t, "PMF-AB12CD", ticket.Code)
		assert.Equal(t, "ada@example.com", ticket.Email)
	case <-time.After(time.Second):
		t.Fatal("confirmation email was not sent")
	}
}

func TestIssue_NoEmailNoConfirmation(t *testing.T) {
	mailer := &fakeMailer{sent: make(chan *model.Ticket, 1)}
	svc := NewIssuanceService(newMemoryStore(), nil, mailer)

	req := validIssueRequest()
	req.Email = ""
	_, err := svc.Issue(context.Background(), req)
	require.NoError(t, err)

	select {
	case <-mailer.sent:
		t.Fatal("no email should be sent without a recipient")
	case <-time.After(50 * time.Millisecond):
	}
}
