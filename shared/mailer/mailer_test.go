package mailer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() MailerConfig {
	return MailerConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "user",
		Password: "secret",
		From:     "no-reply@example.com",
	}
}

func TestMailerConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*MailerConfig)
		want   string
	}{
		{"valid", func(*MailerConfig) {}, ""},
		{"missing host", func(c *MailerConfig) { c.Host = "" }, "SMTP_HOST"},
		{"missing port", func(c *MailerConfig) { c.Port = 0 }, "SMTP_PORT"},
		{"missing username", func(c *MailerConfig) { c.Username = "" }, "SMTP_USERNAME"},
		{"missing password", func(c *MailerConfig) { c.Password = "" }, "SMTP_PASSWORD"},
		{"missing from", func(c *MailerConfig) { c.From = "" }, "SMTP_FROM"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMailer_SendWithoutRecipients(t *testing.T) {
	m, err := NewMailer(validConfig())
	require.NoError(t, err)

	assert.Error(t, m.Send(Email{Subject: "hi"}))
}

func TestMailer_NewMessage(t *testing.T) {
	m, err := NewMailer(validConfig())
	require.NoError(t, err)

	msg := m.newMessage(Email{To: []string{"alice@example.com"}, Subject: "Verify", HTMLBody: "<p>hi</p>"})

	assert.Equal(t, []string{"no-reply@example.com"}, msg.GetHeader("From"))
	assert.Equal(t, []string{"alice@example.com"}, msg.GetHeader("To"))
	assert.Equal(t, []string{"Verify"}, msg.GetHeader("Subject"))
}

func TestLogSender_DoesNotLogBody(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	s := NewLogSender(&logger)

	require.NoError(t, s.SendHTML([]string{"alice@example.com"}, "Reset", "token=secret-token"))

	out := buf.String()
	assert.Contains(t, out, "alice@example.com")
	assert.False(t, strings.Contains(out, "secret-token"))
	assert.Error(t, s.SendHTML(nil, "Reset", "body"))
}
