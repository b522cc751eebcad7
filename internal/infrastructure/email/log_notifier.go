package email

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/signup-verification/internal/core/ports"
)

// LogNotifier writes messages to the log instead of sending them. Meant for local development.
type LogNotifier struct {
	logger *logrus.Logger
}

func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

var _ ports.Notifier = (*LogNotifier)(nil)

func (n *LogNotifier) Send(_ context.Context, msg *ports.Message) (*ports.DeliveryInfo, error) {
	id := uuid.NewString()
	if n.logger != nil {
		n.logger.WithFields(logrus.Fields{
			"message_id": id,
			"from":       msg.From,
			"to":         msg.To,
			"subject":    msg.Subject,
			"text":       msg.Text,
		}).Info("mail: message logged, not sent")
	}
	return &ports.DeliveryInfo{Provider: "log", MessageID: id, Accepted: []string{msg.To}}, nil
}
