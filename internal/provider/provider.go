package provider

import (
	"context"

	"go.uber.org/zap"

	"github.com/notifyhub/hermes-dispatch/internal/config"
)

// Message is the transport-level form of a queued mail.
type Message struct {
	JobID    string   `json:"job_id"`
	To       string   `json:"to"`
	From     string   `json:"from"`
	FromName string   `json:"from_name,omitempty"`
	ReplyTo  string   `json:"reply_to,omitempty"`
	Cc       []string `json:"cc,omitempty"`
	Bcc      []string `json:"bcc,omitempty"`
	Subject  string   `json:"subject"`
	Body     string   `json:"body"`
	IsHTML   bool     `json:"is_html"`
	Charset  string   `json:"charset,omitempty"`
}

// Sender delivers one message and reports whether it went out.
// Transport failures are not errors to the caller: they only decide the
// job's next status.
type Sender interface {
	Send(ctx context.Context, msg Message) bool
}

// New picks the simulator in test mode and the webhook transport otherwise.
func New(q config.Queue, p config.Provider, logger *zap.Logger) Sender {
	if q.TestMode {
		return NewSimulatedSender(q.Seed)
	}
	return NewWebhookSender(p.BaseURL, p.Timeout, logger)
}
