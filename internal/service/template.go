// Package service implements the business logic of the issuance pipeline:
// template resolution, rendering, and job orchestration.
package service

import (
	"fmt"
	"os"

	"github.com/gdg-qu/certmailer/internal/core"
	"github.com/gdg-qu/certmailer/internal/domain/model"
	apperrors "github.com/gdg-qu/certmailer/internal/errors"
)

// TemplateStore resolves certificate types to their immutable template
// documents. Template existence is verified once, at construction.
type TemplateStore struct {
	templates map[model.CertificateType]core.Template
}

var _ core.TemplateStore = (*TemplateStore)(nil)

// NewTemplateStore validates and indexes the configured template paths.
func NewTemplateStore(officialPath, unofficialPath string) (*TemplateStore, error) {
	templates := map[model.CertificateType]core.Template{
		model.CertificateOfficial:   {Type: model.CertificateOfficial, Path: officialPath},
		model.CertificateUnofficial: {Type: model.CertificateUnofficial, Path: unofficialPath},
	}
	for certType, tmpl := range templates {
		if _, err := os.Stat(tmpl.Path); err != nil {
			return nil, fmt.Errorf("template for %s certificates: %w", certType, err)
		}
	}
	return &TemplateStore{templates: templates}, nil
}

// Resolve returns the template for the given certificate type.
func (s *TemplateStore) Resolve(certType model.CertificateType) (core.Template, error) {
	tmpl, ok := s.templates[certType]
	if !ok {
		return core.Template{}, apperrors.Renderf("unsupported certificate type %q", certType)
	}
	return tmpl, nil
}
