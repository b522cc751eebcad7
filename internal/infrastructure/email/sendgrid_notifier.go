package email

import (
	"context"
	"fmt"
	netmail "net/mail"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/signup-verification/internal/core/ports"
)

// sendgridSender is the part of *sendgrid.Client the notifier relies on.
type sendgridSender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridNotifier delivers messages through the SendGrid v3 API.
type SendGridNotifier struct {
	client      sendgridSender
	defaultFrom string
	logger      *logrus.Logger
}

// NewSendGridNotifier creates a notifier for the given API key. defaultFrom is used
// when a message carries no From address.
func NewSendGridNotifier(apiKey, defaultFrom string, logger *logrus.Logger) *SendGridNotifier {
	return newSendGridNotifier(sendgrid.NewSendClient(apiKey), defaultFrom, logger)
}

func newSendGridNotifier(client sendgridSender, defaultFrom string, logger *logrus.Logger) *SendGridNotifier {
	return &SendGridNotifier{client: client, defaultFrom: defaultFrom, logger: logger}
}

var _ ports.Notifier = (*SendGridNotifier)(nil)

func (n *SendGridNotifier) Send(ctx context.Context, msg *ports.Message) (*ports.DeliveryInfo, error) {
	fromAddr := msg.From
	if fromAddr == "" {
		fromAddr = n.defaultFrom
	}
	from, err := parseAddress(fromAddr)
	if err != nil {
		return nil, err
	}
	to, err := parseAddress(msg.To)
	if err != nil {
		return nil, err
	}

	message := mail.NewSingleEmail(
		mail.NewEmail(from.Name, from.Address),
		msg.Subject,
		mail.NewEmail(to.Name, to.Address),
		msg.Text,
		msg.HTML,
	)

	response, err := n.client.SendWithContext(ctx, message)
	if err != nil {
		if n.logger != nil {
			n.logger.WithFields(logrus.Fields{"to": msg.To, "subject": msg.Subject}).WithError(err).Error("Failed to send email")
		}
		return nil, fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		if n.logger != nil {
			n.logger.WithFields(logrus.Fields{"to": msg.To, "status_code": response.StatusCode}).Error("SendGrid rejected email")
		}
		return nil, fmt.Errorf("sendgrid rejected email with status %d: %s", response.StatusCode, response.Body)
	}

	if n.logger != nil {
		n.logger.WithFields(logrus.Fields{
			"to":          msg.To,
			"subject":     msg.Subject,
			"status_code": response.StatusCode,
		}).Info("Email sent successfully")
	}

	info := &ports.DeliveryInfo{Provider: "sendgrid", StatusCode: response.StatusCode, Accepted: []string{to.Address}}
	if ids := response.Headers["X-Message-Id"]; len(ids) > 0 {
		info.MessageID = ids[0]
	}
	return info, nil
}

func parseAddress(s string) (*netmail.Address, error) {
	addr, err := netmail.ParseAddress(s)
	if err != nil {
		return nil, fmt.Errorf("invalid email address %q: %w", s, err)
	}
	return addr, nil
}
