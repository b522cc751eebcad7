package services

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/avatarctic/signup-verification/internal/core/domain/verification"
	"github.com/avatarctic/signup-verification/internal/core/ports"
)

// MailDispatcher renders mail templates and hands them to the configured Notifier.
type MailDispatcher struct {
	notifier ports.Notifier
	logger   *logrus.Logger
}

func NewMailDispatcher(notifier ports.Notifier, logger *logrus.Logger) *MailDispatcher {
	return &MailDispatcher{notifier: notifier, logger: logger}
}

var _ ports.MailDispatcher = (*MailDispatcher)(nil)

// Send substitutes url for every placeholder in the subject and bodies and delivers the message.
// Notifier failures come back as *verification.DeliveryError and are not retried.
func (d *MailDispatcher) Send(ctx context.Context, tmpl verification.MailTemplate, to, url string) (*ports.DeliveryInfo, error) {
	if d.notifier == nil {
		return nil, verification.ConfigErrorf("no notifier configured")
	}
	msg := &ports.Message{
		From:    tmpl.From,
		To:      to,
		Subject: strings.ReplaceAll(tmpl.Subject, verification.URLPlaceholder, url),
		HTML:    strings.ReplaceAll(tmpl.HTML, verification.URLPlaceholder, url),
		Text:    strings.ReplaceAll(tmpl.Text, verification.URLPlaceholder, url),
	}

	info, err := d.notifier.Send(ctx, msg)
	if err != nil {
		recordEvent(eventEmailFailed)
		if d.logger != nil {
			d.logger.WithFields(logrus.Fields{"to": to, "subject": msg.Subject}).WithError(err).Warn("mail: delivery failed")
		}
		return nil, &verification.DeliveryError{To: to, Err: err}
	}
	recordEvent(eventEmailSent)
	return info, nil
}
