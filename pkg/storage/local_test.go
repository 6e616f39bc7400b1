package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentStore_SaveListRead(t *testing.T) {
	store, err := NewDocumentStore(t.TempDir())
	require.NoError(t, err)

	info, err := store.Save("chase", "jan.csv", strings.NewReader("a,b\n1,2\n"))
	require.NoError(t, err)
	assert.Equal(t, "jan.csv", info.Name)
	assert.Equal(t, int64(8), info.Size)

	files, err := store.List("chase")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "jan.csv", files[0].Name)

	data, err := store.Read("chase", "jan.csv")
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))

	// Unknown source lists as empty, not as an error.
	files, err = store.List("nobody")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDocumentStore_SanitizesFilenames(t *testing.T) {
	store, err := NewDocumentStore(t.TempDir())
	require.NoError(t, err)

	info, err := store.Save("chase", "../../etc/passwd", strings.NewReader("x"))
	require.NoError(t, err)
	assert.NotContains(t, info.Name, "/")
	assert.NotContains(t, info.Name, "..")
}

func TestBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "statement.csv")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0o644))

	backupPath, err := Backup(path)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(backupPath, BackupSuffix))

	data, err := os.ReadFile(backupPath)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))

	// Original untouched.
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
}

func TestCleanupOldBackups(t *testing.T) {
	base := t.TempDir()
	store, err := NewDocumentStore(base)
	require.NoError(t, err)

	dir, err := store.InputDir("gg")
	require.NoError(t, err)

	oldBackup := filepath.Join(dir, "old.csv"+BackupSuffix)
	newBackup := filepath.Join(dir, "new.csv"+BackupSuffix)
	require.NoError(t, os.WriteFile(oldBackup, []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(newBackup, []byte("new"), 0o644))
	require.NoError(t, os.Chtimes(oldBackup, time.Now().Add(-48*time.Hour), time.Now().Add(-48*time.Hour)))

	removed, err := store.CleanupOldBackups(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(oldBackup)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(newBackup)
	assert.NoError(t, err)
}

func TestList_ExcludesBackups(t *testing.T) {
	store, err := NewDocumentStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("ar", "feb.csv", strings.NewReader("x"))
	require.NoError(t, err)

	dir, err := store.InputDir("ar")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "feb_20240101_000000.csv"+BackupSuffix), []byte("y"), 0o644))

	files, err := store.List("ar")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "feb.csv", files[0].Name)
}
