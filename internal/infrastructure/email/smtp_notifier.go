package email

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wneessen/go-mail"

	"github.com/avatarctic/signup-verification/internal/core/ports"
)

// SMTPConfig holds the SMTP relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	TLS      bool
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// SMTPNotifier delivers messages through an SMTP relay.
type SMTPNotifier struct {
	config SMTPConfig
	client *mail.Client
	logger *logrus.Logger
}

func NewSMTPNotifier(config SMTPConfig, logger *logrus.Logger) (*SMTPNotifier, error) {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	opts := []mail.Option{
		mail.WithPort(config.Port),
		mail.WithTimeout(timeout),
	}

	// Only add authentication if username and password are provided
	if config.Username != "" && config.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthLogin),
			mail.WithUsername(config.Username),
			mail.WithPassword(config.Password),
		)
	}

	if config.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	client, err := mail.NewClient(config.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}
	return &SMTPNotifier{config: config, client: client, logger: logger}, nil
}

var _ ports.Notifier = (*SMTPNotifier)(nil)

func (n *SMTPNotifier) Send(ctx context.Context, msg *ports.Message) (*ports.DeliveryInfo, error) {
	m, err := n.buildMsg(msg)
	if err != nil {
		return nil, err
	}

	if err := n.client.DialAndSendWithContext(ctx, m); err != nil {
		if n.logger != nil {
			n.logger.WithFields(logrus.Fields{"to": msg.To, "host": n.config.Host}).WithError(err).Error("smtp: failed to send email")
		}
		return nil, fmt.Errorf("failed to send email: %w", err)
	}

	info := &ports.DeliveryInfo{Provider: "smtp", Accepted: []string{msg.To}}
	if ids := m.GetGenHeader(mail.HeaderMessageID); len(ids) > 0 {
		info.MessageID = ids[0]
	}
	if n.logger != nil {
		n.logger.WithFields(logrus.Fields{"to": msg.To, "subject": msg.Subject, "message_id": info.MessageID}).Info("Email sent successfully")
	}
	return info, nil
}

func (n *SMTPNotifier) buildMsg(msg *ports.Message) (*mail.Msg, error) {
	if msg.To == "" {
		return nil, fmt.Errorf("email requires a 'To' address")
	}
	from := msg.From
	if from == "" {
		from = n.config.From
	}

	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("failed to set from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("failed to set to address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetMessageID()

	switch {
	case msg.Text != "" && msg.HTML != "":
		m.SetBodyString(mail.TypeTextPlain, msg.Text)
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	case msg.HTML != "":
		m.SetBodyString(mail.TypeTextHTML, msg.HTML)
	default:
		m.SetBodyString(mail.TypeTextPlain, msg.Text)
	}
	return m, nil
}
