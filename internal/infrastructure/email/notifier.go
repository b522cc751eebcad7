package email

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/avatarctic/signup-verification/internal/core/ports"
)

// Config selects and configures the mail transport.
type Config struct {
	Provider       string // sendgrid, smtp or log
	SendGridAPIKey string
	From           string
	SMTP           SMTPConfig
}

// NewNotifier builds the Notifier for cfg.Provider.
func NewNotifier(cfg Config, logger *logrus.Logger) (ports.Notifier, error) {
	switch cfg.Provider {
	case "sendgrid":
		if cfg.SendGridAPIKey == "" {
			return nil, fmt.Errorf("SENDGRID_API_KEY is required for the sendgrid provider")
		}
		return NewSendGridNotifier(cfg.SendGridAPIKey, cfg.From, logger), nil
	case "smtp":
		if cfg.SMTP.Host == "" {
			return nil, fmt.Errorf("SMTP_HOST is required for the smtp provider")
		}
		smtp := cfg.SMTP
		if smtp.From == "" {
			smtp.From = cfg.From
		}
		return NewSMTPNotifier(smtp, logger)
	case "log", "":
		return NewLogNotifier(logger), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}
