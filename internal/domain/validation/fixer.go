package validation

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/FACorreiaa/statement-ingest/internal/domain/schema"
	"github.com/FACorreiaa/statement-ingest/pkg/storage"
)

var (
	ErrNotFixable = errors.New("issue is not automatically fixable")
	// ErrFixAttemptsExhausted means the single allowed repair attempt for
	// this issue type already ran against the file. Repairs are heuristic;
	// retrying the same one would loop, so the issue escalates to the user.
	ErrFixAttemptsExhausted = errors.New("fix already attempted for this issue type")
)

// trailingAmountRe captures an amount glued to the end of a description
// cell by the misalignment defect.
var trailingAmountRe = regexp.MustCompile(`\s*(-?\(?\$?[\d,]+\.\d{2}\)?-?)\s*$`)

// Fixer applies one bounded repair per issue type, always writing a backup
// before touching the file, then re-validating the result.
type Fixer struct {
	validator *Validator
	logger    *slog.Logger

	mu       sync.Mutex
	attempts map[string]map[IssueType]bool
}

func NewFixer(validator *Validator, logger *slog.Logger) *Fixer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fixer{
		validator: validator,
		logger:    logger,
		attempts:  make(map[string]map[IssueType]bool),
	}
}

// Apply repairs one issue in the file at path. The pre-fix content is
// preserved as a timestamped .backup sibling before the file is rewritten,
// and the rewritten file is re-validated; a repair that leaves the same
// issue type behind is reported unresolved and will not run again.
func (f *Fixer) Apply(path string, s *schema.SourceSchema, issue Issue) (*FixResult, error) {
	if !issue.Fixable {
		return nil, fmt.Errorf("%w: %s", ErrNotFixable, issue.Type)
	}
	if !f.markAttempt(path, issue.Type) {
		return nil, fmt.Errorf("%w: %s on %s", ErrFixAttemptsExhausted, issue.Type, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file for fixing: %w", err)
	}

	fixed, err := f.repair(data, s, issue)
	if err != nil {
		return nil, err
	}

	result := &FixResult{Type: issue.Type, Changed: !bytes.Equal(data, fixed)}

	if result.Changed {
		backupPath, err := storage.Backup(path)
		if err != nil {
			return nil, fmt.Errorf("refusing to fix without backup: %w", err)
		}
		result.BackupPath = backupPath

		if err := os.WriteFile(path, fixed, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write fixed file: %w", err)
		}
	}

	// Never trust a heuristic repair without checking its work.
	result.Remaining = f.validator.DetectIssues(fixed, s)
	result.Resolved = true
	for _, remaining := range result.Remaining {
		if remaining.Type == issue.Type {
			result.Resolved = false
			break
		}
	}

	f.logger.Info("applied fix",
		slog.String("path", path),
		slog.String("issue", string(issue.Type)),
		slog.Bool("changed", result.Changed),
		slog.Bool("resolved", result.Resolved),
		slog.String("backup", result.BackupPath))
	return result, nil
}

// markAttempt records the attempt and reports false when this issue type
// already ran against the path.
func (f *Fixer) markAttempt(path string, t IssueType) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attempts[path] == nil {
		f.attempts[path] = make(map[IssueType]bool)
	}
	if f.attempts[path][t] {
		return false
	}
	f.attempts[path][t] = true
	return true
}

func (f *Fixer) repair(data []byte, s *schema.SourceSchema, issue Issue) ([]byte, error) {
	switch issue.Type {
	case IssueEmbeddedNewlines:
		return rejoinSplitLines(data), nil
	case IssueRaggedRows, IssueEmptyColumn:
		return normalizeTable(data)
	case IssueColumnMisalignment:
		return realignColumns(data, s)
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotFixable, issue.Type)
	}
}

// rejoinSplitLines merges physical lines that were split inside a quoted
// field. Quote parity decides: while the quote count is odd, the next line
// still belongs to the current record.
func rejoinSplitLines(data []byte) []byte {
	lines := rawLines(data)

	var out []string
	var pending strings.Builder
	open := false
	for _, line := range lines {
		odd := strings.Count(line, `"`)%2 == 1
		if open {
			pending.WriteString(" ")
			pending.WriteString(strings.TrimSpace(line))
			if odd {
				out = append(out, pending.String())
				pending.Reset()
				open = false
			}
			continue
		}
		if odd {
			pending.WriteString(line)
			open = true
			continue
		}
		out = append(out, line)
	}
	if open {
		out = append(out, pending.String())
	}

	return []byte(strings.Join(out, "\n") + "\n")
}

// normalizeTable rewrites the file with every row at header width, dropping
// fully-empty rows and fully-empty columns.
func normalizeTable(data []byte) ([]byte, error) {
	header, rows := parseRaw(rawLines(data))
	if len(header) == 0 {
		return data, nil
	}
	width := len(header)

	var kept [][]string
	for _, row := range rows {
		if allBlank(row) {
			continue
		}
		if len(row) > width {
			row = row[:width]
		}
		for len(row) < width {
			row = append(row, "")
		}
		kept = append(kept, row)
	}

	// Drop fully-empty columns. With no data rows there is nothing to
	// judge by, so everything stays.
	keepCol := make([]bool, width)
	for i := range keepCol {
		if len(kept) == 0 {
			keepCol[i] = true
			continue
		}
		for _, row := range kept {
			if row[i] != "" {
				keepCol[i] = true
				break
			}
		}
	}

	newHeader := filterCells(header, keepCol)
	newRows := make([][]string, 0, len(kept))
	for _, row := range kept {
		newRows = append(newRows, filterCells(row, keepCol))
	}

	return writeCSV(newHeader, newRows)
}

// realignColumns repairs the vendor misalignment defect: an amount glued to
// the end of an oversized description cell is moved into the amount column
// when that column holds no usable value.
func realignColumns(data []byte, s *schema.SourceSchema) ([]byte, error) {
	if s == nil {
		return data, nil
	}
	header, rows := parseRaw(rawLines(data))
	if len(header) == 0 {
		return data, nil
	}

	descIdx, amountIdx := -1, -1
	for i, h := range header {
		switch h {
		case s.DescriptionMapping.SourceColumn:
			descIdx = i
		case s.AmountMapping.SourceColumn:
			amountIdx = i
		}
	}
	if descIdx < 0 || amountIdx < 0 {
		return data, nil
	}

	for _, row := range rows {
		if descIdx >= len(row) || amountIdx >= len(row) {
			continue
		}
		desc := row[descIdx]
		if len(desc) <= misalignmentLength || !digitRunRe.MatchString(desc) {
			continue
		}
		m := trailingAmountRe.FindStringSubmatch(desc)
		if m == nil {
			continue
		}
		if row[amountIdx] == "" {
			row[amountIdx] = m[1]
		}
		row[descIdx] = strings.TrimSpace(trailingAmountRe.ReplaceAllString(desc, ""))
	}

	return writeCSV(header, rows)
}

func writeCSV(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func filterCells(cells []string, keep []bool) []string {
	out := make([]string, 0, len(cells))
	for i, c := range cells {
		if keep[i] {
			out = append(out, c)
		}
	}
	return out
}

func allBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
