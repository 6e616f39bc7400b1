package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DocumentStore organizes vendor documents under <base>/<source>/input.
type DocumentStore struct {
	basePath string
}

// NewDocumentStore creates a store rooted at basePath.
func NewDocumentStore(basePath string) (*DocumentStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &DocumentStore{basePath: basePath}, nil
}

// InputDir returns the input directory for a source, creating it if needed.
func (s *DocumentStore) InputDir(source string) (string, error) {
	dir := filepath.Join(s.basePath, source, "input")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create input directory: %w", err)
	}
	return dir, nil
}

// Save stores an uploaded document and returns its metadata.
func (s *DocumentStore) Save(source, filename string, r io.Reader) (*FileInfo, error) {
	dir, err := s.InputDir(source)
	if err != nil {
		return nil, err
	}

	safeFilename := sanitizeFilename(filename)
	filePath := filepath.Join(dir, safeFilename)

	f, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(filePath)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	return &FileInfo{
		ID:       uuid.New(),
		Name:     safeFilename,
		Size:     size,
		Path:     filePath,
		Source:   source,
		Modified: time.Now(),
	}, nil
}

// List returns all documents in a source's input directory.
func (s *DocumentStore) List(source string) ([]*FileInfo, error) {
	dir := filepath.Join(s.basePath, source, "input")
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var files []*FileInfo
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), BackupSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, &FileInfo{
			ID:       uuid.New(),
			Name:     e.Name(),
			Size:     info.Size(),
			Path:     filepath.Join(dir, e.Name()),
			Source:   source,
			Modified: info.ModTime(),
		})
	}
	return files, nil
}

// Read returns the raw bytes of a stored document.
func (s *DocumentStore) Read(source, filename string) ([]byte, error) {
	path := filepath.Join(s.basePath, source, "input", sanitizeFilename(filename))
	return os.ReadFile(path)
}

// Delete removes a document from a source's input directory.
func (s *DocumentStore) Delete(source, filename string) error {
	path := filepath.Join(s.basePath, source, "input", sanitizeFilename(filename))
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete %s: %w", filename, err)
	}
	return nil
}

// Backup copies path to a timestamped sibling with the .backup suffix and
// returns the backup path. The original is left untouched.
func Backup(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read original for backup: %w", err)
	}

	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	timestamp := time.Now().Format("20060102_150405")
	backupPath := fmt.Sprintf("%s_%s%s%s", stem, timestamp, ext, BackupSuffix)

	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}
	return backupPath, nil
}

// CleanupOldBackups deletes .backup files older than maxAge anywhere under
// the store. Returns the number of files removed.
func (s *DocumentStore) CleanupOldBackups(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	err := filepath.WalkDir(s.basePath, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, BackupSuffix) {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err == nil {
				removed++
			}
		}
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("backup cleanup walk failed: %w", err)
	}
	return removed, nil
}

// sanitizeFilename strips path separators and characters unsafe for storage
func sanitizeFilename(filename string) string {
	filename = filepath.Base(filename)
	replacer := strings.NewReplacer(
		"..", "_",
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return replacer.Replace(filename)
}
