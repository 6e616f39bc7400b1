package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir mirrors t.Chdir (Go 1.24+), which is unavailable on this toolchain.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(old) })
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "") // registers restoration of the original value
	os.Unsetenv(key)
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())
	unsetEnv(t, "INGEST_MAX_FILE_SIZE_MB")
	unsetEnv(t, "INGEST_BACKUP_RETENTION_DAYS")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.Data.DataDir)
	assert.Equal(t, 50, cfg.Limits.MaxFileSizeMB)
	assert.Equal(t, 30, cfg.Backups.RetentionDays)
	assert.Equal(t, "0 2 * * *", cfg.Backups.CleanupSchedule)
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	env := "INGEST_BACKUP_RETENTION_DAYS=7\nINGEST_MAX_FILE_SIZE_MB=10\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o644))

	chdir(t, dir)
	unsetEnv(t, "INGEST_BACKUP_RETENTION_DAYS")
	unsetEnv(t, "INGEST_MAX_FILE_SIZE_MB")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Backups.RetentionDays)
	assert.Equal(t, 10, cfg.Limits.MaxFileSizeMB)
}

func TestLoad_EnvOverridesDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("INGEST_BACKUP_RETENTION_DAYS=7\n"), 0o644))

	chdir(t, dir)
	t.Setenv("INGEST_BACKUP_RETENTION_DAYS", "14")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 14, cfg.Backups.RetentionDays)
}

func TestLoad_RejectsNonPositiveLimits(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("INGEST_MAX_FILE_SIZE_MB", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INGEST_MAX_FILE_SIZE_MB")
}
