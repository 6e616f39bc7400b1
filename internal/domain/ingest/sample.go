package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var ErrNoSampleData = errors.New("no saved sample data for source")

// SampleMetadata captures the shape of the last successfully processed file
// for a source. Later uploads are compared against it to catch format drift
// before a full parse.
type SampleMetadata struct {
	SourceID         string              `json:"source_id"`
	OriginalFilename string              `json:"original_filename"`
	ProcessedAt      time.Time           `json:"processed_at"`
	FileSizeBytes    int64               `json:"file_size_bytes"`
	TotalRows        int                 `json:"total_rows"`
	Columns          []string            `json:"columns"`
	SampleRows       []map[string]string `json:"sample_data"`
	DetectedMappings map[string]string   `json:"detected_mappings"`
	FileFormat       string              `json:"file_format"`
	Encoding         string              `json:"encoding,omitempty"`
}

// SampleComparison is the verdict from checking an upload against saved
// sample metadata.
type SampleComparison struct {
	Valid       bool     `json:"valid"`
	Message     string   `json:"message"`
	Warnings    []string `json:"warnings,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// SampleStore persists one metadata file per source under
// <dir>/<source>/<source>_sample_data.json.
type SampleStore struct {
	dir    string
	logger *slog.Logger
}

func NewSampleStore(dir string, logger *slog.Logger) (*SampleStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create metadata dir: %w", err)
	}
	return &SampleStore{dir: dir, logger: logger}, nil
}

func (s *SampleStore) path(sourceID string) string {
	sourceID = strings.ToLower(sourceID)
	return filepath.Join(s.dir, sourceID, sourceID+"_sample_data.json")
}

func (s *SampleStore) Save(meta *SampleMetadata) error {
	path := s.path(meta.SourceID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create source metadata dir: %w", err)
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode sample metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write sample metadata: %w", err)
	}

	s.logger.Info("saved sample metadata",
		slog.String("source", meta.SourceID),
		slog.Int("columns", len(meta.Columns)),
		slog.Int("sample_rows", len(meta.SampleRows)))
	return nil
}

func (s *SampleStore) Get(sourceID string) (*SampleMetadata, error) {
	data, err := os.ReadFile(s.path(sourceID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoSampleData, sourceID)
		}
		return nil, fmt.Errorf("failed to read sample metadata: %w", err)
	}

	var meta SampleMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode sample metadata: %w", err)
	}
	return &meta, nil
}

// List returns the sources that have saved sample metadata.
func (s *SampleStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var sources []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(s.path(e.Name())); err == nil {
			sources = append(sources, e.Name())
		}
	}
	return sources, nil
}

func (s *SampleStore) Delete(sourceID string) error {
	err := os.Remove(s.path(sourceID))
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrNoSampleData, sourceID)
	}
	return err
}

// Compare checks an upload's columns and format against the saved sample.
// Missing saved columns invalidate; new columns and a changed file format
// only warn.
func (s *SampleStore) Compare(sourceID string, columns []string, fileFormat string) (*SampleComparison, error) {
	saved, err := s.Get(sourceID)
	if err != nil {
		return nil, err
	}

	uploaded := make(map[string]bool, len(columns))
	for _, c := range columns {
		uploaded[c] = true
	}
	savedSet := make(map[string]bool, len(saved.Columns))
	for _, c := range saved.Columns {
		savedSet[c] = true
	}

	result := &SampleComparison{
		Valid:   true,
		Message: "file structure matches saved sample data",
	}

	var missing []string
	for _, c := range saved.Columns {
		if !uploaded[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		result.Valid = false
		result.Message = fmt.Sprintf("missing expected columns: %s", strings.Join(missing, ", "))
		result.Suggestions = append(result.Suggestions, "check if the file has the correct structure")
	}

	var added []string
	for _, c := range columns {
		if !savedSet[c] {
			added = append(added, c)
		}
	}
	if len(added) > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("new columns detected: %s", strings.Join(added, ", ")))
		result.Suggestions = append(result.Suggestions, "consider updating the mapping configuration")
	}

	if fileFormat != "" && saved.FileFormat != "" && fileFormat != saved.FileFormat {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("file format changed from %s to %s", saved.FileFormat, fileFormat))
	}

	return result, nil
}
