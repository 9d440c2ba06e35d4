package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const webhookPrefix = "https://hooks.slack.com/services/"

// SlackSender posts to a Slack incoming webhook.
type SlackSender struct {
	webhookURL string
	channel    string
	httpClient *http.Client
}

// SlackOption configures a SlackSender.
type SlackOption func(*SlackSender)

// WithChannel overrides the webhook's default channel.
func WithChannel(channel string) SlackOption {
	return func(s *SlackSender) {
		s.channel = channel
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) SlackOption {
	return func(s *SlackSender) {
		s.httpClient = client
	}
}

// NewSlackSender creates a sender for webhookURL.
func NewSlackSender(webhookURL string, opts ...SlackOption) *SlackSender {
	s := &SlackSender{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the sender name.
func (s *SlackSender) Name() string {
	return "slack"
}

// Send posts the event.
func (s *SlackSender) Send(ctx context.Context, event *Event) error {
	body, err := json.Marshal(FormatSlackMessage(event, s.channel))
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	return nil
}

// Test sends a test notification.
func (s *SlackSender) Test(ctx context.Context) error {
	return s.Send(ctx, &Event{Type: EventTest, Success: true, Timestamp: time.Now()})
}

// ValidateWebhookURL checks if a webhook URL is valid.
func ValidateWebhookURL(url string) error {
	if url == "" {
		return errors.New("webhook URL is required")
	}

	if !strings.HasPrefix(url, webhookPrefix) {
		return fmt.Errorf("invalid Slack webhook URL: must start with %s", webhookPrefix)
	}

	return nil
}
