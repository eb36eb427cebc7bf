// Package devseed creates placeholder template assets in development mode so
// the service can start and exercise the pipeline without the real
// certificate designs.
package devseed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gdg-qu/certmailer/config"
)

const devCertificateTemplate = `Certificate of Attendance

This certifies that <<name>> attended <<event_name>> on <<event_date>>.
`

const devEmailTemplate = `<html>
  <body>
    <p>Dear [Name],</p>
    <p>Thank you for attending [Event Name] (registered as [Registered Name]).
       Your certificate is attached.</p>
  </body>
</html>
`

// EnsureTemplates creates any missing template files with placeholder
// content. Certificate templates are office documents the seeder cannot
// fabricate, so a missing one is replaced by a flat text template next to
// it and the config is repointed at the seeded file. Production startup
// never calls this; missing templates there are a configuration error.
func EnsureTemplates(ctx context.Context, cfg *config.TemplatesConfig, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	official, err := ensureCertificateTemplate(ctx, cfg.Official, logger)
	if err != nil {
		return err
	}
	cfg.Official = official

	unofficial, err := ensureCertificateTemplate(ctx, cfg.Unofficial, logger)
	if err != nil {
		return err
	}
	cfg.Unofficial = unofficial

	return seedFile(ctx, cfg.Email, devEmailTemplate, logger)
}

// ensureCertificateTemplate returns path unchanged when the file exists,
// otherwise seeds a flat text stand-in and returns its path.
func ensureCertificateTemplate(ctx context.Context, path string, logger *slog.Logger) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("stat template %s: %w", path, err)
	}

	seeded := strings.TrimSuffix(path, filepath.Ext(path)) + ".txt"
	if err := seedFile(ctx, seeded, devCertificateTemplate, logger); err != nil {
		return "", err
	}
	return seeded, nil
}

func seedFile(ctx context.Context, path, content string, logger *slog.Logger) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat template %s: %w", path, err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create template dir %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("seed template %s: %w", path, err)
	}
	logger.InfoContext(ctx, "seeded development template", "path", path)
	return nil
}
