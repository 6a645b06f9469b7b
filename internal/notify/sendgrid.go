package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"iprisk-backend/internal/retry"
)

// SendGridConfig configures the SendGrid v3 mail client.
type SendGridConfig struct {
	APIKey    string
	BaseURL   string
	FromEmail string
	FromName  string
	Timeout   time.Duration
}

// SendGrid sends plain-text mail through the SendGrid v3 API.
type SendGrid struct {
	cfg        SendGridConfig
	httpClient *http.Client
	validate   *validator.Validate
}

// NewSendGrid returns a configured client, or Noop when no API key is set.
func NewSendGrid(cfg SendGridConfig) (Client, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return Noop{}, nil
	}
	cfg.FromEmail = strings.TrimSpace(cfg.FromEmail)
	if cfg.FromEmail == "" {
		return nil, fmt.Errorf("SENDGRID_FROM_EMAIL is required when SENDGRID_API_KEY is set")
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.sendgrid.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SendGrid{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		validate:   validator.New(),
	}, nil
}

func (s *SendGrid) Enabled() bool { return true }

type emailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type personalization struct {
	To []emailAddress `json:"to"`
}

type mailContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type mailSendRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             emailAddress      `json:"from"`
	Subject          string            `json:"subject"`
	Content          []mailContent     `json:"content"`
}

// HTTPError is a non-2xx SendGrid response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	msg := strings.TrimSpace(e.Body)
	if len(msg) > 500 {
		msg = msg[:500] + "..."
	}
	if msg == "" {
		msg = "<empty body>"
	}
	return fmt.Sprintf("sendgrid http %d: %s", e.StatusCode, msg)
}

// Send posts msg to /v3/mail/send. Client errors other than 408/429 are permanent.
func (s *SendGrid) Send(ctx context.Context, msg Message) error {
	msg.To = strings.TrimSpace(msg.To)
	msg.Subject = strings.TrimSpace(msg.Subject)
	msg.Body = strings.TrimSpace(msg.Body)
	if err := s.validate.Var(msg.To, "required,email"); err != nil {
		return retry.Permanent(fmt.Errorf("%w: recipient: %v", ErrInvalidMessage, err))
	}
	if msg.Subject == "" || msg.Body == "" {
		return retry.Permanent(fmt.Errorf("%w: subject and body are required", ErrInvalidMessage))
	}

	wire := mailSendRequest{
		Personalizations: []personalization{{To: []emailAddress{{Email: msg.To, Name: strings.TrimSpace(msg.ToName)}}}},
		From:             emailAddress{Email: s.cfg.FromEmail, Name: s.cfg.FromName},
		Subject:          msg.Subject,
		Content:          []mailContent{{Type: "text/plain", Value: msg.Body}},
	}
	payload, err := json.Marshal(wire)
	if err != nil {
		return retry.Permanent(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/v3/mail/send", bytes.NewReader(payload))
	if err != nil {
		return retry.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		herr := &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
		if retry.PermanentStatus(resp.StatusCode) {
			return retry.Permanent(herr)
		}
		return herr
	}
	return nil
}

var _ Client = (*SendGrid)(nil)
