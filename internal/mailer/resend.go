package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/pmflames/ticketing/internal/config"
	"github.com/pmflames/ticketing/internal/model"
)

// Client sends ticket confirmation emails through a Resend-style
// transactional email API. Delivery is fire-and-forget from the caller's
// perspective; failures are reported as errors for logging only.
type Client struct {
	baseURL string
	apiKey  string
	from    string
	http    *http.Client
}

// NewClient creates a mail client from configuration
func NewClient(cfg config.ResendConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		from:    cfg.FromEmail,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

var ticketTemplate = template.Must(template.New("ticket").Parse(`
<div style="font-family: Arial, sans-serif; line-height:1.5;">
  <h2>Palmwine Merchants &amp; Flames</h2>
  <p>Hi {{.CustomerName}},</p>
  <p>Thank you for your purchase. Here are your ticket details:</p>
  <ul>
    <li><strong>Confirmation Code:</strong> {{.Code}}</li>
    <li><strong>Amount:</strong> &#8358;{{.Amount}}</li>
    <li><strong>Event:</strong> {{.EventDetails.Name}}</li>
    <li><strong>Date:</strong> {{.EventDetails.Date}}</li>
    <li><strong>Location:</strong> {{.EventDetails.Location}}</li>
    {{if .ValidUntil}}<li><strong>Valid Until:</strong> {{.ValidUntil.Format "Jan 2, 2006 15:04 MST"}}</li>{{end}}
  </ul>
  <p style="margin-top:24px;">Best regards,<br/>Palmwine Merchants &amp; Flames</p>
</div>
`))

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// SendTicketEmail sends the confirmation email for a freshly issued ticket
func (c *Client) SendTicketEmail(ctx context.Context, ticket *model.Ticket) error {
	if ticket.Email == "" {
		return fmt.Errorf("ticket has no recipient email")
	}

	var html bytes.Buffer
	if err := ticketTemplate.Execute(&html, ticket); err != nil {
		return fmt.Errorf("failed to render ticket email: %w", err)
	}

	payload, err := json.Marshal(sendRequest{
		From:    c.from,
		To:      []string{ticket.Email},
		Subject: fmt.Sprintf("Your Palmwine Merchants Ticket — %s", ticket.Code),
		HTML:    html.String(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("email send failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("email API returned status %d", resp.StatusCode)
	}
	return nil
}
