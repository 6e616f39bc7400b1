// Package validation scores a loaded document against its source schema,
// classifies defects as fixable or not, and applies bounded repairs with a
// backup written before every rewrite.
package validation

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/FACorreiaa/statement-ingest/internal/domain/reader"
	"github.com/FACorreiaa/statement-ingest/internal/domain/schema"
	"github.com/FACorreiaa/statement-ingest/pkg/amount"
)

// probeDate exercises a schema's declared date layout before any row data
// is trusted.
const probeDate = "01/15/2024"

// conversionRateFloor is the per-field sample success rate below which a
// mapping draws a warning.
const conversionRateFloor = 0.8

var knownAmountFormats = map[string]bool{"USD": true, "EUR": true, "GBP": true, "CAD": true}

type Validator struct {
	logger *slog.Logger
}

func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{logger: logger}
}

// ValidateDocument runs the additive check pipeline: structural, then
// declared-format probes, then conversion-rate checks over sample rows when
// any are supplied.
func (v *Validator) ValidateDocument(table *reader.RawTable, s *schema.SourceSchema, sample []map[string]string) *ValidationResult {
	result := &ValidationResult{
		Errors:   []string{},
		Warnings: []string{},
	}
	if table != nil {
		result.RecordCount = len(table.Rows)
	}

	v.checkStructure(table, s, result)
	v.checkFormats(s, result)
	if len(sample) > 0 {
		v.checkSampleConversion(s, sample, result)
	}

	result.finalize()
	v.logger.Info("validated document",
		slog.String("source", s.SourceID),
		slog.String("state", result.State.String()),
		slog.Int("errors", len(result.Errors)),
		slog.Int("warnings", len(result.Warnings)),
		slog.Int("issues", len(result.Issues)))
	return result
}

// ValidatePDFTable scores a table extracted from a PDF section. The
// vendor's delimited-file mappings do not apply here; extracted tables are
// checked against the PDF configuration's own column set.
func (v *Validator) ValidatePDFTable(table *reader.RawTable, cfg *schema.PDFExtractionConfig) *ValidationResult {
	result := &ValidationResult{
		Errors:   []string{},
		Warnings: []string{},
	}

	if cfg == nil || !cfg.Enabled {
		result.Errors = append(result.Errors, "source has no PDF extraction configured")
		result.finalize()
		return result
	}
	if table == nil || len(table.Header) == 0 {
		result.Errors = append(result.Errors, "file has no readable content")
		result.Issues = append(result.Issues, Issue{
			Type:    IssueEmptyFile,
			Message: "file has no readable content",
		})
		result.finalize()
		return result
	}
	result.RecordCount = len(table.Rows)

	headerSet := make(map[string]bool, len(table.Header))
	for _, h := range table.Header {
		headerSet[h] = true
	}
	for _, col := range cfg.ExpectedColumns {
		if !headerSet[col] {
			msg := fmt.Sprintf("Missing required column: %s", col)
			result.Errors = append(result.Errors, msg)
			result.Issues = append(result.Issues, Issue{
				Type:    IssueMissingColumn,
				Message: msg,
				Details: map[string]string{"column": col},
			})
		}
	}

	minRows := cfg.MinRows
	if minRows <= 0 {
		minRows = 1
	}
	switch {
	case len(table.Rows) == 0:
		result.Warnings = append(result.Warnings, "no rows extracted from section")
		result.Issues = append(result.Issues, Issue{
			Type:    IssueEmptyFile,
			Message: "no rows extracted from section",
		})
	case len(table.Rows) < minRows:
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("extracted %d rows, expected at least %d", len(table.Rows), minRows))
	}

	result.finalize()
	v.logger.Info("validated extracted table",
		slog.String("section", cfg.SectionHeader),
		slog.String("state", result.State.String()),
		slog.Int("rows", len(table.Rows)),
		slog.Int("errors", len(result.Errors)))
	return result
}

func (v *Validator) checkStructure(table *reader.RawTable, s *schema.SourceSchema, result *ValidationResult) {
	if table == nil || (len(table.Rows) == 0 && len(table.Header) == 0) {
		result.Errors = append(result.Errors, "file has no readable content")
		result.Issues = append(result.Issues, Issue{
			Type:    IssueEmptyFile,
			Message: "file has no readable content",
		})
		return
	}

	headerSet := make(map[string]int, len(table.Header))
	for _, h := range table.Header {
		headerSet[h]++
	}

	required := s.RequiredColumns
	if len(required) == 0 {
		for _, m := range []schema.ColumnMapping{s.DateMapping, s.DescriptionMapping, s.AmountMapping} {
			if m.SourceColumn != "" {
				required = append(required, m.SourceColumn)
			}
		}
	}
	for _, col := range required {
		if headerSet[col] == 0 {
			msg := fmt.Sprintf("Missing required column: %s", col)
			result.Errors = append(result.Errors, msg)
			result.Issues = append(result.Issues, Issue{
				Type:       IssueMissingColumn,
				Message:    msg,
				Suggestion: "re-export the file with the expected columns",
				Details:    map[string]string{"column": col},
			})
		}
	}

	for col, n := range headerSet {
		if n > 1 && col != "" {
			msg := fmt.Sprintf("duplicate column: %s", col)
			result.Warnings = append(result.Warnings, msg)
			result.Issues = append(result.Issues, Issue{
				Type:    IssueDuplicateColumn,
				Message: msg,
				Details: map[string]string{"column": col},
			})
		}
	}

	if len(table.Rows) == 0 {
		result.Warnings = append(result.Warnings, "file has no data rows")
		result.Issues = append(result.Issues, Issue{
			Type:    IssueEmptyFile,
			Message: "file has no data rows",
		})
		return
	}

	if dup := countDuplicateRows(table.Rows); dup > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("found %d duplicate rows", dup))
		result.Issues = append(result.Issues, Issue{
			Type:    IssueDuplicateRows,
			Message: fmt.Sprintf("found %d duplicate rows", dup),
		})
	}
}

// checkFormats probes the declared date layout with a canonical value and
// flags unrecognized amount formats.
func (v *Validator) checkFormats(s *schema.SourceSchema, result *ValidationResult) {
	layout := s.DateLayout()
	if _, err := time.Parse(layout, probeDate); err != nil {
		format := s.DateMapping.DateFormat
		if format == "" {
			format = s.DefaultDateFormat
		}
		msg := fmt.Sprintf("declared date format %q cannot parse probe value %s", format, probeDate)
		result.Errors = append(result.Errors, msg)
		result.Issues = append(result.Issues, Issue{
			Type:    IssueInvalidDateFormat,
			Message: msg,
			Details: map[string]string{"format": format},
		})
	}

	format := s.AmountMapping.AmountFormat
	if format == "" {
		format = s.DefaultAmountFormat
	}
	if format != "" && !knownAmountFormats[format] {
		result.Warnings = append(result.Warnings, fmt.Sprintf("unknown amount format: %s", format))
	}
}

// checkSampleConversion measures how much of the sample each required
// mapping can actually convert.
func (v *Validator) checkSampleConversion(s *schema.SourceSchema, sample []map[string]string, result *ValidationResult) {
	layout := s.DateLayout()
	total := float64(len(sample))

	checks := []struct {
		field   string
		mapping schema.ColumnMapping
		convert func(string) bool
	}{
		{"date", s.DateMapping, func(val string) bool {
			_, err := time.Parse(layout, strings.TrimSpace(val))
			return err == nil
		}},
		{"description", s.DescriptionMapping, func(val string) bool {
			return strings.TrimSpace(val) != ""
		}},
		{"amount", s.AmountMapping, amount.IsValid},
	}

	for _, check := range checks {
		col := check.mapping.SourceColumn
		if col == "" {
			continue
		}
		if _, ok := sample[0][col]; !ok {
			result.Errors = append(result.Errors, fmt.Sprintf("required column %q not found in sample data", col))
			continue
		}

		succeeded := 0
		for _, row := range sample {
			if check.convert(row[col]) {
				succeeded++
			}
		}

		rate := float64(succeeded) / total
		if rate < conversionRateFloor {
			msg := fmt.Sprintf("low conversion success rate for %s: %.0f%%", check.field, rate*100)
			result.Warnings = append(result.Warnings, msg)
			result.Issues = append(result.Issues, Issue{
				Type:    IssueLowConversionRate,
				Message: msg,
				Details: map[string]string{"field": check.field, "column": col},
			})
		}
	}
}

func countDuplicateRows(rows [][]string) int {
	seen := make(map[string]bool, len(rows))
	dup := 0
	for _, row := range rows {
		key := strings.Join(row, "\x1f")
		if seen[key] {
			dup++
		}
		seen[key] = true
	}
	return dup
}
