package config

import (
	"os"
	"path/filepath"
	"strings"
)

// StorageConfig controls where job state and rendered documents live.
//
// Every job gets its own subdirectory under the jobs root; the SQLite
// database holding job and task state sits next to them.
type StorageConfig struct {
	// JobsRoot overrides the deployment-mode default jobs directory.
	JobsRoot string `env:"JOBS_ROOT"`

	// ProductionDirName is the directory created under the user's home
	// directory in production mode.
	ProductionDirName string `env:"JOBS_PRODUCTION_DIR" envDefault:"GDG-certificates"`

	// DevDirName is the working-directory-relative jobs directory used in
	// development mode.
	DevDirName string `env:"JOBS_DEV_DIR" envDefault:"jobs"`

	// DBFileName is the SQLite database file name under the jobs root.
	DBFileName string `env:"JOBS_DB_FILE" envDefault:"certmailer.db"`
}

// Sanitize resolves the jobs root for the given deployment mode.
func (c *StorageConfig) Sanitize(environment string) {
	c.JobsRoot = strings.TrimSpace(c.JobsRoot)
	if c.JobsRoot != "" {
		return
	}

	if environment == "development" {
		c.JobsRoot = c.DevDirName
		return
	}

	home, err := os.UserHomeDir()
	if err != nil {
		c.JobsRoot = c.DevDirName
		return
	}
	c.JobsRoot = filepath.Join(home, c.ProductionDirName)
}

// DBPath returns the full path of the SQLite database file.
func (c *StorageConfig) DBPath() string {
	return filepath.Join(c.JobsRoot, c.DBFileName)
}
