package config

import "strings"

// MailConfig contains mail transport configuration. Credentials are
// configured once, process-wide, and passed into the sender at construction.
type MailConfig struct {
	// APIKey authenticates against the Resend API.
	APIKey string `env:"API_KEY"`

	// SenderEmail is the from address on outgoing certificates.
	SenderEmail string `env:"SENDER_EMAIL" envDefault:"gdg.qu1@gmail.com"`

	// SenderName is the optional display name for the from address.
	SenderName string `env:"SENDER_NAME"`
}

// Sanitize normalises mail configuration values.
func (c *MailConfig) Sanitize() {
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.SenderEmail = strings.TrimSpace(c.SenderEmail)
	c.SenderName = strings.TrimSpace(c.SenderName)
}
