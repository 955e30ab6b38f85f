package mailer

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"
)

// Sender delivers HTML email.
type Sender interface {
	SendHTML(to []string, subject, htmlBody string) error
}

// Mailer represents an SMTP email sender.
type Mailer struct {
	config MailerConfig
	dialer *gomail.Dialer
}

// Email represents an email message.
type Email struct {
	To       []string
	Subject  string
	Body     string
	HTMLBody string
}

// MailerConfig holds SMTP configuration for sending emails.
type MailerConfig struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM"`
}

// NewMailer creates a new Mailer instance with the given configuration.
func NewMailer(cfg MailerConfig) (*Mailer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dialer := gomail.NewDialer(
		cfg.Host,
		cfg.Port,
		cfg.Username,
		cfg.Password,
	)

	return &Mailer{
		config: cfg,
		dialer: dialer,
	}, nil
}

// Send sends a single email.
func (m *Mailer) Send(email Email) error {
	if len(email.To) == 0 {
		return errors.New("no recipients specified")
	}

	msg := m.newMessage(email)

	return m.dialer.DialAndSend(msg)
}

// SendHTML sends an HTML email.
func (m *Mailer) SendHTML(to []string, subject, htmlBody string) error {
	return m.Send(Email{
		To:       to,
		Subject:  subject,
		HTMLBody: htmlBody,
	})
}

func (m *Mailer) newMessage(email Email) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.config.From)
	msg.SetHeader("To", email.To...)
	msg.SetHeader("Subject", email.Subject)

	if email.HTMLBody != "" {
		msg.SetBody("text/html", email.HTMLBody)
		if email.Body != "" {
			msg.AddAlternative("text/plain", email.Body)
		}
	} else {
		msg.SetBody("text/plain", email.Body)
	}

	return msg
}

// Validate checks if the Mailer configuration is valid.
func (c MailerConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("missing SMTP_HOST environment variable")
	}
	if c.Port == 0 {
		return fmt.Errorf("missing SMTP_PORT environment variable")
	}
	if c.Username == "" {
		return fmt.Errorf("missing SMTP_USERNAME environment variable")
	}
	if c.Password == "" {
		return fmt.Errorf("missing SMTP_PASSWORD environment variable")
	}
	if c.From == "" {
		return fmt.Errorf("missing SMTP_FROM environment variable")
	}

	return nil
}

// LogSender is used when outbound mail is disabled. It records that a message
// would have been sent without logging its body, which may carry a token.
type LogSender struct {
	logger *zerolog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *zerolog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// SendHTML logs the recipients and subject and discards the message.
func (s *LogSender) SendHTML(to []string, subject, _ string) error {
	if len(to) == 0 {
		return errors.New("no recipients specified")
	}
	s.logger.Info().Strs("to", to).Str("subject", subject).Msg("mail delivery disabled, message dropped")
	return nil
}
