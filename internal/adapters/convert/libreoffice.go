// Package convert adapts the external LibreOffice document converter behind
// the core.Converter port.
package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/gdg-qu/certmailer/internal/core"
	apperrors "github.com/gdg-qu/certmailer/internal/errors"
)

// LibreOffice invokes the LibreOffice binary headlessly to convert an
// intermediate certificate document into the distributable format.
//
// Each attempt is bounded by a timeout so a hung converter fails the attempt
// instead of blocking its task forever; a timed-out or crashed conversion
// surfaces as a conversion error, which the retry policy treats as transient.
type LibreOffice struct {
	binary  string
	format  string
	timeout time.Duration
	logger  *slog.Logger
}

var _ core.Converter = (*LibreOffice)(nil)

// Options configures the LibreOffice adapter.
type Options struct {
	// Binary is the LibreOffice executable path.
	Binary string
	// Format is the target format passed to --convert-to (e.g. "pdf").
	Format string
	// Timeout bounds a single conversion attempt.
	Timeout time.Duration
	// Logger is optional.
	Logger *slog.Logger
}

// New creates a LibreOffice converter adapter.
func New(opts Options) (*LibreOffice, error) {
	if opts.Binary == "" {
		return nil, errors.New("converter binary is required")
	}
	if opts.Format == "" {
		opts.Format = "pdf"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &LibreOffice{
		binary:  opts.Binary,
		format:  opts.Format,
		timeout: opts.Timeout,
		logger:  logger.With("component", "converter"),
	}, nil
}

// Check verifies the converter binary is runnable. Called once at startup.
func (c *LibreOffice) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.binary, "--version")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return apperrors.Wrapf(err, apperrors.ErrCodeConversion,
			"converter %q is not available", c.binary)
	}
	c.logger.InfoContext(ctx, "converter available", "version", strings.TrimSpace(string(output)))
	return nil
}

// Convert runs one bounded conversion attempt and returns the path of the
// produced document. The output lands next to the input, with the target
// format's extension.
func (c *LibreOffice) Convert(ctx context.Context, inputPath string) (string, error) {
	outputDir := filepath.Dir(inputPath)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.binary,
		"--headless",
		"--convert-to", c.format,
		"--outdir", outputDir,
		inputPath,
	)
	cmd.Dir = outputDir

	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", apperrors.Wrapf(ctx.Err(), apperrors.ErrCodeConversion,
				"conversion timed out after %s", c.timeout)
		}
		return "", apperrors.Wrapf(err, apperrors.ErrCodeConversion,
			"%s failed: %s", c.binary, strings.TrimSpace(string(output)))
	}

	// LibreOffice writes the output with the same stem and the new extension.
	stem := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	outputPath := filepath.Join(outputDir, fmt.Sprintf("%s.%s", stem, c.format))
	if _, err := os.Stat(outputPath); err != nil {
		return "", apperrors.Wrapf(err, apperrors.ErrCodeConversion,
			"conversion produced no output at %s", outputPath)
	}

	return outputPath, nil
}
