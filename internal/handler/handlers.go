package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pmflames/ticketing/internal/payment"
	"github.com/pmflames/ticketing/internal/service"
)

// Handlers wires the HTTP surface to the services
type Handlers struct {
	verification *service.VerificationService
	issuance     *service.IssuanceService
	gateway      *payment.Client
}

// New creates the handler set. The gateway client may be nil when no payment
// gateway is configured; the payment routes then report 503.
func New(verification *service.VerificationService, issuance *service.IssuanceService, gateway *payment.Client) *Handlers {
	return &Handlers{
		verification: verification,
		issuance:     issuance,
		gateway:      gateway,
	}
}

// Register attaches all API routes to the echo instance
func (h *Handlers) Register(e *echo.Echo) {
	api := e.Group("/api")

	api.POST("/tickets", h.CreateTicket)
	api.POST("/tickets/verify", h.VerifyTicket)
	api.GET("/tickets/:code", h.GetTicket)

	api.POST("/payments/init", h.InitPayment)
	api.GET("/payments/verify", h.VerifyPayment)
}

// VerifyTicket handles the core verify/redeem endpoint. Every well-formed
// request gets a 200 with the outcome in the body; 400 is reserved for
// malformed requests and 500 for store failures.
func (h *Handlers) VerifyTicket(c echo.Context) error {
	var req service.VerifyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": "Invalid request", "valid": false})
	}

	result, err := h.verification.Verify(req)
	if err != nil {
		if errors.Is(err, service.ErrNoCode) || errors.Is(err, service.ErrInvalidQR) {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": err.Error(), "valid": false})
		}
		slog.Error("ticket verification failed", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{"error": "Internal server error", "valid": false})
	}

	return c.JSON(http.StatusOK, result)
}

// CreateTicket stores a new ticket record (idempotent on code)
func (h *Handlers) CreateTicket(c echo.Context) error {
	var req service.IssueRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": "Invalid request", "success": false})
	}

	ticket, err := h.issuance.Issue(c.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingFields):
			return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": err.Error(), "success": false})
		case errors.Is(err, service.ErrPaymentNotConfirmed):
			return c.JSON(http.StatusPaymentRequired, map[string]interface{}{"error": err.Error(), "success": false})
		default:
			slog.Error("ticket issuance failed", "error", err)
			return c.JSON(http.StatusInternalServerError, map[string]interface{}{"error": "Failed to store ticket", "success": false})
		}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":  true,
		"message":  "Ticket stored successfully",
		"ticketId": ticket.Code,
	})
}

// GetTicket is a read-only lookup that never touches the audit trail
func (h *Handlers) GetTicket(c echo.Context) error {
	result, err := h.verification.Check(c.Param("code"))
	if err != nil {
		if errors.Is(err, service.ErrNoCode) {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": err.Error(), "valid": false})
		}
		slog.Error("ticket lookup failed", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{"error": "Internal server error", "valid": false})
	}

	return c.JSON(http.StatusOK, result)
}

// InitPayment initializes a gateway transaction and returns the redirect URL
func (h *Handlers) InitPayment(c echo.Context) error {
	if h.gateway == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{"error": "Payment gateway not configured"})
	}

	var req payment.InitRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": "Invalid request"})
	}

	result, err := h.gateway.Initialize(c.Request().Context(), req)
	if err != nil {
		slog.Error("payment initialize failed", "reference", req.Reference, "error", err)
		return c.JSON(http.StatusBadGateway, map[string]interface{}{"error": "Initialize failed"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":                true,
		"authorization_url": result.AuthorizationURL,
		"access_code":       result.AccessCode,
		"reference":         result.Reference,
	})
}

// VerifyPayment checks a transaction reference against the gateway
func (h *Handlers) VerifyPayment(c echo.Context) error {
	if h.gateway == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{"error": "Payment gateway not configured"})
	}

	reference := c.QueryParam("reference")
	if reference == "" {
		reference = c.QueryParam("ref")
	}
	if reference == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": "Missing reference"})
	}

	verification, err := h.gateway.Verify(c.Request().Context(), reference)
	if err != nil {
		slog.Error("payment verify failed", "reference", reference, "error", err)
		return c.JSON(http.StatusBadGateway, map[string]interface{}{"error": "Verify failed"})
	}

	return c.JSON(http.StatusOK, verification)
}
