package ports

import (
	"context"

	"github.com/avatarctic/signup-verification/internal/core/domain/verification"
)

// Message is a fully rendered email.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
	Text    string
}

// DeliveryInfo is the transport's report about an accepted message.
type DeliveryInfo struct {
	Provider   string   `json:"provider"`
	MessageID  string   `json:"message_id,omitempty"`
	StatusCode int      `json:"status_code,omitempty"`
	Accepted   []string `json:"accepted,omitempty"`
}

// Notifier is the mail transport collaborator
type Notifier interface {
	Send(ctx context.Context, msg *Message) (*DeliveryInfo, error)
}

// MailDispatcher renders a mail template with the verification link and hands it to a Notifier.
type MailDispatcher interface {
	Send(ctx context.Context, tmpl verification.MailTemplate, to, url string) (*DeliveryInfo, error)
}
