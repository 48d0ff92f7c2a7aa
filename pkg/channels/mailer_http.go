package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// HTTPMailer sends email through a JSON mail API that accepts
// {from, to, subject, html} with a bearer key.
type HTTPMailer struct {
	url    string
	apiKey string
	from   string
	client *http.Client
}

// NewHTTPMailer creates a mail API client.
func NewHTTPMailer(url, apiKey, from string) (*HTTPMailer, error) {
	if url == "" || apiKey == "" {
		return nil, errors.New("mail api url and key are required")
	}
	return &HTTPMailer{
		url:    url,
		apiKey: apiKey,
		from:   from,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

func (m *HTTPMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	body, err := json.Marshal(mailPayload{
		From:    m.from,
		To:      []string{to},
		Subject: subject,
		HTML:    htmlBody,
	})
	if err != nil {
		return fmt.Errorf("marshal mail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "BillTracker/1.0")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send mail request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("mail api returned status %d", resp.StatusCode)
	}
	return nil
}

type mailPayload struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}
