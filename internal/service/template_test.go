package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdg-qu/certmailer/internal/domain/model"
	apperrors "github.com/gdg-qu/certmailer/internal/errors"
)

func writeTemplateFiles(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	official := filepath.Join(dir, "certificate.pptx")
	unofficial := filepath.Join(dir, "certificate unofficial.pptx")
	require.NoError(t, os.WriteFile(official, []byte("official"), 0o644))
	require.NoError(t, os.WriteFile(unofficial, []byte("unofficial"), 0o644))
	return official, unofficial
}

func TestTemplateStoreResolve(t *testing.T) {
	t.Parallel()

	official, unofficial := writeTemplateFiles(t)
	store, err := NewTemplateStore(official, unofficial)
	require.NoError(t, err)

	tmpl, err := store.Resolve(model.CertificateOfficial)
	require.NoError(t, err)
	assert.Equal(t, official, tmpl.Path)

	tmpl, err = store.Resolve(model.CertificateUnofficial)
	require.NoError(t, err)
	assert.Equal(t, unofficial, tmpl.Path)
}

func TestTemplateStoreUnknownType(t *testing.T) {
	t.Parallel()

	official, unofficial := writeTemplateFiles(t)
	store, err := NewTemplateStore(official, unofficial)
	require.NoError(t, err)

	_, err = store.Resolve(model.CertificateType("premium"))
	require.Error(t, err)
	assert.True(t, apperrors.IsRender(err))
}

func TestTemplateStoreMissingFile(t *testing.T) {
	t.Parallel()

	official, _ := writeTemplateFiles(t)
	_, err := NewTemplateStore(official, filepath.Join(t.TempDir(), "missing.pptx"))
	require.Error(t, err)
}
