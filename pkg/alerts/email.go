package alerts

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/resend/resend-go/v2"
)

// DefaultSender is the Resend onboarding sender used until a domain is verified.
const DefaultSender = "PMR B5 <onboarding@resend.dev>"

// EmailSender is the part of the Resend emails service the notifier needs.
type EmailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// EmailNotifier delivers alerts through the Resend transactional email API.
type EmailNotifier struct {
	sender EmailSender
	from   string
}

// EmailOption customizes the Resend client built by NewEmailNotifier.
type EmailOption func(*resend.Client) error

// WithBaseURL points the Resend client at a different API root.
func WithBaseURL(raw string) EmailOption {
	return func(c *resend.Client) error {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("parse resend base url: %w", err)
		}
		c.BaseURL = u
		return nil
	}
}

// NewEmailNotifier creates a Resend-backed notifier authenticated with apiKey.
func NewEmailNotifier(apiKey, from string, opts ...EmailOption) (*EmailNotifier, error) {
	if apiKey == "" {
		return nil, errors.New("resend api key is empty")
	}
	client := resend.NewCustomClient(&http.Client{Timeout: 10 * time.Second}, apiKey)
	for _, opt := range opts {
		if err := opt(client); err != nil {
			return nil, err
		}
	}
	return NewEmailNotifierFromSender(client.Emails, from), nil
}

// NewEmailNotifierFromSender wraps an existing emails service.
func NewEmailNotifierFromSender(sender EmailSender, from string) *EmailNotifier {
	if from == "" {
		from = DefaultSender
	}
	return &EmailNotifier{sender: sender, from: from}
}

func (e *EmailNotifier) Name() string { return "email" }

// Send submits alert as an HTML email and returns the Resend email id.
func (e *EmailNotifier) Send(ctx context.Context, alert Alert) (string, error) {
	if len(alert.Recipients) == 0 {
		return "", &SendError{Notifier: e.Name(), Err: errors.New("no recipients")}
	}

	resp, err := e.sender.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    e.from,
		To:      alert.Recipients,
		Subject: alert.Subject,
		Html:    alert.HTML,
	})
	if err != nil {
		return "", &SendError{Notifier: e.Name(), Err: err}
	}
	if resp == nil {
		return "", nil
	}
	return resp.Id, nil
}
