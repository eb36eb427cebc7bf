package config

// TemplatesConfig contains certificate and email template locations plus the
// placeholder delimiters used by the renderer.
type TemplatesConfig struct {
	// Official and Unofficial are the certificate template documents.
	Official   string `env:"TEMPLATE_OFFICIAL"   envDefault:"certificate.pptx"`
	Unofficial string `env:"TEMPLATE_UNOFFICIAL" envDefault:"certificate unofficial.pptx"`

	// Email is the HTML body template for outgoing certificate mail.
	Email string `env:"TEMPLATE_EMAIL" envDefault:"index.html"`

	// DelimiterStart/DelimiterEnd wrap placeholder names inside certificate
	// templates, e.g. <<name>>.
	DelimiterStart string `env:"TEMPLATE_DELIMITER_START" envDefault:"<<"`
	DelimiterEnd   string `env:"TEMPLATE_DELIMITER_END"   envDefault:">>"`
}

// Sanitize applies guardrails to template configuration values.
func (c *TemplatesConfig) Sanitize() {
	if c.DelimiterStart == "" {
		c.DelimiterStart = "<<"
	}
	if c.DelimiterEnd == "" {
		c.DelimiterEnd = ">>"
	}
}
