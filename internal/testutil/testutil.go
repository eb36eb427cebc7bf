// Package testutil provides testing helpers for the certificate mailer.
package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/gdg-qu/certmailer/internal/data"
)

// OpenTestStore opens a throwaway SQLite job store under t.TempDir and
// returns the repository bound to it. The database is removed with the
// temp directory when the test finishes.
func OpenTestStore(t testing.TB) (*sql.DB, *data.JobRepo) {
	t.Helper()

	db, err := data.Open(filepath.Join(t.TempDir(), "certmailer.db"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() {
		if cerr := db.Close(); cerr != nil {
			t.Errorf("close test store: %v", cerr)
		}
	})

	return db, data.NewJobRepo(db)
}
