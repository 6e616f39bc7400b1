package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrSchemaStructure wraps the structural errors found while validating a
// schema submitted to Put.
var ErrSchemaStructure = errors.New("schema structure invalid")

// StructureError carries the individual findings from ValidateStructure.
type StructureError struct {
	SourceID string
	Problems []string
}

func (e *StructureError) Error() string {
	return fmt.Sprintf("schema %q structure invalid: %s", e.SourceID, strings.Join(e.Problems, "; "))
}

func (e *StructureError) Unwrap() error { return ErrSchemaStructure }

// Registry owns the in-memory map of source schemas and mirrors every
// mutation to one JSON file per source under dir. Reads vastly outnumber
// writes, so access is guarded by a RWMutex.
type Registry struct {
	dir    string
	logger *slog.Logger

	mu      sync.RWMutex
	schemas map[string]*SourceSchema
}

// NewRegistry loads built-in defaults, then overlays any <source_id>.json
// files found in dir. Files that fail to parse are skipped with a warning;
// a missing dir is not an error.
func NewRegistry(dir string, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		dir:     dir,
		logger:  logger,
		schemas: make(map[string]*SourceSchema),
	}

	for id, s := range defaultSchemas() {
		r.schemas[id] = s
	}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read schema directory %s: %w", dir, err)
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("failed to read schema file", slog.String("path", path), slog.Any("error", err))
			continue
		}
		var s SourceSchema
		if err := json.Unmarshal(data, &s); err != nil {
			logger.Warn("failed to parse schema file", slog.String("path", path), slog.Any("error", err))
			continue
		}
		if s.SourceID == "" {
			s.SourceID = strings.TrimSuffix(e.Name(), ".json")
		}
		r.schemas[strings.ToLower(s.SourceID)] = &s
		logger.Info("loaded source schema", slog.String("source", s.SourceID), slog.String("path", path))
	}

	return r, nil
}

// Get returns the schema for a source. Lookup is case-insensitive.
func (r *Registry) Get(sourceID string) (*SourceSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[strings.ToLower(sourceID)]
	return s, ok
}

// All returns every registered schema.
func (r *Registry) All() []*SourceSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*SourceSchema, 0, len(r.schemas))
	for _, s := range r.schemas {
		out = append(out, s)
	}
	return out
}

// Put validates and registers a schema, persisting it before the in-memory
// map is touched so a failed write never leaves the two diverged.
func (r *Registry) Put(s *SourceSchema) error {
	if problems := ValidateStructure(s); len(problems) > 0 {
		return &StructureError{SourceID: s.SourceID, Problems: problems}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.persist(s); err != nil {
		return err
	}
	r.schemas[strings.ToLower(s.SourceID)] = s
	r.logger.Info("saved source schema", slog.String("source", s.SourceID))
	return nil
}

// Remove deletes a schema and its persisted file. Returns false when the
// source was not registered.
func (r *Registry) Remove(sourceID string) bool {
	key := strings.ToLower(sourceID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.schemas[key]; !ok {
		return false
	}
	delete(r.schemas, key)

	path := filepath.Join(r.dir, key+".json")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		r.logger.Warn("failed to delete schema file", slog.String("path", path), slog.Any("error", err))
	}
	return true
}

// Summary returns the compact view of a source, or nil if unknown.
func (r *Registry) Summary(sourceID string) *Summary {
	s, ok := r.Get(sourceID)
	if !ok {
		return nil
	}
	optional := make([]string, 0, len(s.OptionalMappings))
	for _, m := range s.OptionalMappings {
		optional = append(optional, m.SourceColumn)
	}
	return &Summary{
		SourceID:        s.SourceID,
		DisplayName:     s.DisplayName,
		Description:     s.Description,
		Icon:            s.Icon,
		RequiredColumns: s.RequiredColumns,
		OptionalColumns: optional,
		DateFormat:      s.DefaultDateFormat,
		AmountFormat:    s.DefaultAmountFormat,
		ExampleRows:     s.ExampleRows,
		PDFCapable:      s.PDF != nil && s.PDF.Enabled,
	}
}

// persist writes the schema JSON atomically: temp file in the same
// directory, then rename over the destination.
func (r *Registry) persist(s *SourceSchema) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create schema directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode schema %s: %w", s.SourceID, err)
	}

	path := filepath.Join(r.dir, strings.ToLower(s.SourceID)+".json")
	tmp, err := os.CreateTemp(r.dir, ".schema-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp schema file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write schema %s: %w", s.SourceID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp schema file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace schema file %s: %w", path, err)
	}
	return nil
}

// ValidateStructure checks a schema's internal consistency: the three
// required mappings are present, no source column is mapped twice, and every
// mapped column appears in ExpectedColumns.
func ValidateStructure(s *SourceSchema) []string {
	var problems []string

	if s.SourceID == "" {
		problems = append(problems, "source_id is required")
	}
	if s.DateMapping.SourceColumn == "" {
		problems = append(problems, "date mapping is required")
	}
	if s.DescriptionMapping.SourceColumn == "" {
		problems = append(problems, "description mapping is required")
	}
	if s.AmountMapping.SourceColumn == "" {
		problems = append(problems, "amount mapping is required")
	}

	seen := make(map[string]bool)
	duplicates := false
	for _, m := range s.Mappings() {
		if m.SourceColumn == "" {
			continue
		}
		if seen[m.SourceColumn] {
			duplicates = true
		}
		seen[m.SourceColumn] = true
	}
	if duplicates {
		problems = append(problems, "duplicate source columns found")
	}

	expected := make(map[string]bool, len(s.ExpectedColumns))
	for _, c := range s.ExpectedColumns {
		expected[c] = true
	}
	var unmapped []string
	for col := range seen {
		if !expected[col] {
			unmapped = append(unmapped, col)
		}
	}
	if len(unmapped) > 0 {
		problems = append(problems, fmt.Sprintf("expected columns missing mapped columns: %s", strings.Join(unmapped, ", ")))
	}

	return problems
}
