package verification

import (
	"strings"
	"time"
)

// URLPlaceholder marks where the token or verification link is substituted.
const URLPlaceholder = "${URL}"

// MailTemplate holds the From address and the subject/body templates of one message.
// Any occurrence of URLPlaceholder is replaced with the verification link.
type MailTemplate struct {
	From    string
	Subject string
	HTML    string
	Text    string
}

// Options configures the verification flow. It is built once at startup and treated as read-only.
type Options struct {
	VerificationURL       string
	URLLength             int
	IdentityField         string
	PasswordField         string
	TokenField            string
	Expiration            time.Duration
	SendConfirmationEmail bool
	VerifyMail            MailTemplate
	ConfirmMail           MailTemplate
}

// Option overrides one key of Options.
type Option func(*Options)

func DefaultOptions() Options {
	return Options{
		VerificationURL:       "http://example.com/email-verification/" + URLPlaceholder,
		URLLength:             48,
		IdentityField:         "email",
		PasswordField:         "password",
		TokenField:            "GENERATED_VERIFYING_URL",
		Expiration:            86400 * time.Second,
		SendConfirmationEmail: true,
		VerifyMail: MailTemplate{
			From:    "Do Not Reply <no-reply@example.com>",
			Subject: "Confirm your account",
			HTML: `<p>Please verify your account by clicking <a href="${URL}">this link</a>. If you are unable to do so, copy and ` +
				`paste the following link into your browser:</p><p>${URL}</p>`,
			Text: "Please verify your account by clicking the following link, or by copying and pasting it into your browser: ${URL}",
		},
		ConfirmMail: MailTemplate{
			From:    "Do Not Reply <no-reply@example.com>",
			Subject: "Successfully verified!",
			HTML:    "<p>Your account has been successfully verified.</p>",
			Text:    "Your account has been successfully verified.",
		},
	}
}

// With returns a copy of o with the supplied overrides applied and validates the result.
// Keys that are not overridden keep their previous values.
func (o Options) With(opts ...Option) (Options, error) {
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.Validate(); err != nil {
		return Options{}, err
	}
	return o, nil
}

func (o Options) Validate() error {
	if !strings.Contains(o.VerificationURL, URLPlaceholder) {
		return ConfigErrorf("verification URL %q must contain %s", o.VerificationURL, URLPlaceholder)
	}
	if o.URLLength <= 0 {
		return ConfigErrorf("URL length must be positive, got %d", o.URLLength)
	}
	if o.IdentityField == "" {
		return ConfigErrorf("identity field must be set")
	}
	if o.TokenField == "" {
		return ConfigErrorf("token field must be set")
	}
	if o.Expiration < time.Second {
		return ConfigErrorf("expiration must be at least one second, got %s", o.Expiration)
	}
	return nil
}

// VerificationLink substitutes token into the verification URL template.
func (o Options) VerificationLink(token string) string {
	return strings.ReplaceAll(o.VerificationURL, URLPlaceholder, token)
}

func WithVerificationURL(url string) Option {
	return func(o *Options) { o.VerificationURL = url }
}

func WithURLLength(n int) Option {
	return func(o *Options) { o.URLLength = n }
}

func WithIdentityField(path string) Option {
	return func(o *Options) { o.IdentityField = path }
}

func WithPasswordField(path string) Option {
	return func(o *Options) { o.PasswordField = path }
}

func WithTokenField(name string) Option {
	return func(o *Options) { o.TokenField = name }
}

// WithExpiration sets the staged record TTL in whole seconds.
func WithExpiration(seconds int) Option {
	return func(o *Options) { o.Expiration = time.Duration(seconds) * time.Second }
}

func WithSendConfirmationEmail(send bool) Option {
	return func(o *Options) { o.SendConfirmationEmail = send }
}

func WithVerifyMail(t MailTemplate) Option {
	return func(o *Options) { o.VerifyMail = t }
}

func WithConfirmMail(t MailTemplate) Option {
	return func(o *Options) { o.ConfirmMail = t }
}
