package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - storage.go: jobs root and persistence configuration
//   - pipeline.go: retry budget, delays, timeouts, worker counts
//   - mail.go: mail transport configuration
//   - templates.go: certificate and email template locations
//   - http.go: HTTP server configuration
//   - observability.go: metrics configuration
type AppConfig struct {
	// Environment selects the deployment mode: "production" roots job
	// output under the user's home directory, "development" under the
	// working directory. See StorageConfig.JobsRoot.
	Environment string `env:"ENVIRONMENT" envDefault:"production"`

	// Storage configuration
	Storage StorageConfig

	// Pipeline configuration (retry budget, delays, concurrency)
	Pipeline PipelineConfig

	// Mail transport configuration
	Mail MailConfig `envPrefix:"MAIL_"`

	// Template locations and placeholder delimiters
	Templates TemplatesConfig

	// HTTP server configuration
	HTTP HTTPConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))
	if c.Environment != "development" {
		c.Environment = "production"
	}

	c.Storage.Sanitize(c.Environment)
	c.Pipeline.Sanitize()
	c.Mail.Sanitize()
	c.Templates.Sanitize()
	c.Observability.Sanitize()
}

// IsDev returns true when running in development mode.
func (c *AppConfig) IsDev() bool {
	if c.Environment == "development" {
		return true
	}
	// NODE_ENV is checked as a fallback (common in frontend tooling).
	nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
	return nodeEnv == "development" || nodeEnv == "dev"
}
