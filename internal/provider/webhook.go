package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// SendResponse maps the transport's 202 Accepted response body.
type SendResponse struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// WebhookSender delivers mails by POSTing them as JSON to a relay endpoint.
// The base URL is injected from config so tests can point to a local mock.
type WebhookSender struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewWebhookSender(baseURL string, timeout time.Duration, logger *zap.Logger) *WebhookSender {
	return &WebhookSender{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Send implements Sender.
func (p *WebhookSender) Send(ctx context.Context, msg Message) bool {
	resp, err := p.Deliver(ctx, msg)
	if err != nil {
		p.logger.Warn("webhook send failed", zap.String("job_id", msg.JobID), zap.Error(err))
		return false
	}
	p.logger.Debug("webhook accepted mail",
		zap.String("job_id", msg.JobID),
		zap.String("provider_msg_id", resp.MessageID),
	)
	return true
}

// Deliver posts the message and expects a 202 Accepted response with a
// JSON body containing messageId.
func (p *WebhookSender) Deliver(ctx context.Context, msg Message) (*SendResponse, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return nil, fmt.Errorf("unexpected provider status: %d", resp.StatusCode)
	}

	var sendResp SendResponse
	if err := json.NewDecoder(resp.Body).Decode(&sendResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &sendResp, nil
}

// compile-time check that WebhookSender implements Sender
var _ Sender = (*WebhookSender)(nil)
