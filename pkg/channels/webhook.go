package channels

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

	"github.com/shopspring/decimal"

	"github.com/itcctvonlinetif-sudo/BillTracker/pkg/model"
)

// WebhookChannel posts reminders to a generic HTTP endpoint, e.g. a home
// automation hub. It is configured outside the settings row and shares the
// message cadence with email and Telegram.
type WebhookChannel struct {
	url    string
	secret string
	client *http.Client
}

// NewWebhookChannel creates a webhook channel. An empty url disables it.
// If secret is non-empty, requests are signed with HMAC-SHA256.
func NewWebhookChannel(url, secret string) *WebhookChannel {
	return &WebhookChannel{
		url:    url,
		secret: secret,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (w *WebhookChannel) Name() string { return "webhook" }

func (w *WebhookChannel) Kind() Kind { return KindMessage }

func (w *WebhookChannel) Enabled(model.Settings) bool { return w.url != "" }

func (w *WebhookChannel) Send(ctx context.Context, r Reminder, _ model.Settings) error {
	if w.url == "" {
		return ErrNotConfigured
	}
	return w.post(ctx, webhookPayload{
		Event:     "bill_reminder",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Reminder: &webhookReminder{
			BillID:     r.Bill.ID,
			Title:      r.Bill.Title,
			Amount:     r.Bill.Amount,
			DueDate:    r.Bill.DueDate.Format("2006-01-02"),
			Category:   r.Bill.Category,
			InvoiceURL: r.Bill.InvoiceURL,
			Urgency:    r.Urgency,
			DaysLeft:   r.DaysLeft,
		},
	})
}

func (w *WebhookChannel) SendTest(ctx context.Context, _ model.Settings) error {
	if w.url == "" {
		return fmt.Errorf("%w: no webhook url", ErrNotConfigured)
	}
	return w.post(ctx, webhookPayload{
		Event:     "test",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (w *WebhookChannel) post(ctx context.Context, payload webhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "BillTracker/1.0")

	if w.secret != "" {
		sig := computeHMAC(body, []byte(w.secret))
		req.Header.Set("X-Signature-256", "sha256="+sig)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

type webhookPayload struct {
	Event     string           `json:"event"`
	Timestamp string           `json:"timestamp"`
	Reminder  *webhookReminder `json:"reminder,omitempty"`
}

type webhookReminder struct {
	BillID     int64           `json:"bill_id"`
	Title      string          `json:"title"`
	Amount     decimal.Decimal `json:"amount"`
	DueDate    string          `json:"due_date"`
	Category   string          `json:"category,omitempty"`
	InvoiceURL string          `json:"invoice_url,omitempty"`
	Urgency    model.Urgency   `json:"urgency"`
	DaysLeft   int             `json:"days_left"`
}

func computeHMAC(message, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}
