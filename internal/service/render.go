package service

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gdg-qu/certmailer/internal/core"
	apperrors "github.com/gdg-qu/certmailer/internal/errors"
	"github.com/gdg-qu/certmailer/internal/util"
)

// Placeholder field names recognised inside certificate templates, wrapped by
// the configured delimiters (e.g. <<name>>).
const (
	fieldName      = "name"
	fieldEventName = "event_name"
	fieldEventDate = "event_date"
)

// Renderer fills a certificate template with recipient data and writes the
// intermediate document into the job's output directory.
//
// Rendering is local and deterministic: a failure here is terminal for the
// task and is never retried.
type Renderer struct {
	delimStart string
	delimEnd   string
}

var _ core.Renderer = (*Renderer)(nil)

// NewRenderer creates a renderer using the given placeholder delimiters.
func NewRenderer(delimStart, delimEnd string) *Renderer {
	return &Renderer{delimStart: delimStart, delimEnd: delimEnd}
}

// Render substitutes placeholders and writes the filled document, returning
// its path. The recipient name is required: the certificate template cannot
// be filled without it.
func (r *Renderer) Render(ctx context.Context, tmpl core.Template, data core.RenderData, outputDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(data.Name) == "" {
		return "", apperrors.Render("recipient name is required by the template")
	}

	outputName := util.SanitizeFileName(data.Name) + "-certificate" + filepath.Ext(tmpl.Path)
	outputPath := filepath.Join(outputDir, outputName)

	replacements := map[string]string{
		r.placeholder(fieldName):      data.Name,
		r.placeholder(fieldEventName): data.EventName,
		r.placeholder(fieldEventDate): data.EventDate,
	}

	var err error
	if isZipDocument(tmpl.Path) {
		err = renderZipDocument(tmpl.Path, outputPath, replacements)
	} else {
		err = renderFlatDocument(tmpl.Path, outputPath, replacements)
	}
	if err != nil {
		return "", err
	}
	return outputPath, nil
}

func (r *Renderer) placeholder(field string) string {
	return r.delimStart + field + r.delimEnd
}

// isZipDocument reports whether the template is a ZIP-container office
// document (pptx/odp and friends) rather than a flat text document.
func isZipDocument(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pptx", ".odp", ".docx", ".odt":
		return true
	}
	return false
}

// renderFlatDocument substitutes placeholders in a plain text template.
func renderFlatDocument(templatePath, outputPath string, replacements map[string]string) error {
	content, err := os.ReadFile(templatePath)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.ErrCodeRender, "load template %s", templatePath)
	}

	text := string(content)
	for placeholder, value := range replacements {
		text = strings.ReplaceAll(text, placeholder, value)
	}

	if err := os.WriteFile(outputPath, []byte(text), 0o644); err != nil {
		return apperrors.Wrapf(err, apperrors.ErrCodeRender, "write rendered document %s", outputPath)
	}
	return nil
}

// renderZipDocument rewrites a ZIP-container office document, substituting
// placeholders inside its XML entries and copying everything else verbatim.
func renderZipDocument(templatePath, outputPath string, replacements map[string]string) error {
	reader, err := zip.OpenReader(templatePath)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.ErrCodeRender, "load template %s", templatePath)
	}
	defer func() { _ = reader.Close() }()

	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)

	for _, entry := range reader.File {
		if err := copyZipEntry(writer, entry, replacements); err != nil {
			return apperrors.Wrapf(err, apperrors.ErrCodeRender, "render entry %s", entry.Name)
		}
	}

	if err := writer.Close(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeRender, "finalise rendered document")
	}
	if err := os.WriteFile(outputPath, buf.Bytes(), 0o644); err != nil {
		return apperrors.Wrapf(err, apperrors.ErrCodeRender, "write rendered document %s", outputPath)
	}
	return nil
}

func copyZipEntry(writer *zip.Writer, entry *zip.File, replacements map[string]string) error {
	src, err := entry.Open()
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	content, err := io.ReadAll(src)
	if err != nil {
		return err
	}

	// Placeholders only ever live in XML parts; media entries pass through.
	if strings.HasSuffix(entry.Name, ".xml") {
		text := string(content)
		for placeholder, value := range replacements {
			text = strings.ReplaceAll(text, placeholder, value)
		}
		content = []byte(text)
	}

	header := entry.FileHeader
	dst, err := writer.CreateHeader(&header)
	if err != nil {
		return err
	}
	_, err = dst.Write(content)
	return err
}
