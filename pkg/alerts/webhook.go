package alerts

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookNotifier posts alerts as JSON to a generic HTTP endpoint.
type WebhookNotifier struct {
	url    string
	secret string
	client *http.Client
}

// NewWebhookNotifier creates a generic webhook notifier.
// If secret is non-empty, requests are signed with HMAC-SHA256.
func NewWebhookNotifier(url, secret string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		secret: secret,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (w *WebhookNotifier) Name() string { return "webhook" }

func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) (string, error) {
	payload := webhookPayload{
		Event:      "electricity_" + string(alert.Kind),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Site:       siteName,
		Status:     alert.Status,
		AgeMinutes: alert.AgeMinutes,
		Alert:      alert,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", &SendError{Notifier: w.Name(), Err: fmt.Errorf("marshal webhook payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return "", &SendError{Notifier: w.Name(), Err: fmt.Errorf("create webhook request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "powerwatch/1.0")

	if w.secret != "" {
		sig := computeHMAC(body, []byte(w.secret))
		req.Header.Set("X-Signature-256", "sha256="+sig)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return "", &SendError{Notifier: w.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &SendError{Notifier: w.Name(), Err: fmt.Errorf("webhook returned status %d", resp.StatusCode)}
	}
	return "", nil
}

// webhookPayload carries the status at the top level so receivers can
// route on it without unpacking the alert.
type webhookPayload struct {
	Event      string  `json:"event"`
	Timestamp  string  `json:"timestamp"`
	Site       string  `json:"site"`
	Status     string  `json:"status,omitempty"`
	AgeMinutes float64 `json:"age_minutes"`
	Alert      Alert   `json:"alert"`
}

func computeHMAC(message, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}
