package config

import "time"

// PipelineConfig contains task pipeline configuration: the retry budget
// shared by the convert and send steps, per-attempt timeouts for the two
// external calls, and worker concurrency.
type PipelineConfig struct {
	// MaxAttempts is the total attempt budget for each of the convert and
	// send steps (counted independently per task).
	MaxAttempts int `env:"PIPELINE_MAX_ATTEMPTS" envDefault:"3"`

	// RetryDelay is the fixed wait between attempts. There is no wait after
	// the final attempt.
	RetryDelay time.Duration `env:"PIPELINE_RETRY_DELAY" envDefault:"4s"`

	// ConvertTimeout bounds a single external conversion attempt so a hung
	// converter cannot block a task indefinitely.
	ConvertTimeout time.Duration `env:"PIPELINE_CONVERT_TIMEOUT" envDefault:"2m"`

	// SendTimeout bounds a single mail transmission attempt.
	SendTimeout time.Duration `env:"PIPELINE_SEND_TIMEOUT" envDefault:"30s"`

	// Workers is the number of tasks processed concurrently per job.
	Workers int `env:"PIPELINE_WORKERS" envDefault:"4"`

	// ConverterPath is the LibreOffice executable used for conversion.
	ConverterPath string `env:"LIBREOFFICE_PATH" envDefault:"libreoffice"`

	// OutputFormat is the distributable format produced by conversion.
	OutputFormat string `env:"PIPELINE_OUTPUT_FORMAT" envDefault:"pdf"`
}

// Sanitize applies guardrails to pipeline configuration values.
func (c *PipelineConfig) Sanitize() {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
	if c.ConvertTimeout <= 0 {
		c.ConvertTimeout = 2 * time.Minute
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 30 * time.Second
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.OutputFormat == "" {
		c.OutputFormat = "pdf"
	}
}
