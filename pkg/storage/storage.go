// Package storage manages vendor document files on the local filesystem:
// uploaded source documents, processed output, and pre-fix backups.
package storage

import (
	"time"

	"github.com/google/uuid"
)

// FileInfo contains metadata about a stored document
type FileInfo struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Path     string    `json:"path"`
	Source   string    `json:"source"`
	Modified time.Time `json:"modified"`
}

// BackupSuffix is appended to pre-fix copies written next to the original.
const BackupSuffix = ".backup"
