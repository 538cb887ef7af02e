package migrations

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindLatestMigrationVersion(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"000001_init.up.sql",
		"000001_init.down.sql",
		"000012_fees.up.sql",
		"README.md",
	} {
		assert.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o644))
	}
	assert.NoError(t, os.Mkdir(filepath.Join(dir, "000099_dir"), 0o755))

	assert.Equal(t, int64(12), findLatestMigrationVersion(dir))
}

func TestFindLatestMigrationVersion_MissingDir(t *testing.T) {
	assert.Equal(t, int64(0), findLatestMigrationVersion(filepath.Join(t.TempDir(), "nope")))
}

func TestRunMigrations_EmptyURL(t *testing.T) {
	assert.Error(t, RunMigrations(""))
}
