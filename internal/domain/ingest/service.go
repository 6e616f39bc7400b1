// Package ingest orchestrates the full document pipeline: route a file to
// the right parser, validate the result against its source schema, hold
// anything with fixable defects for a user decision, and map clean tables
// into normalized transactions.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/FACorreiaa/statement-ingest/internal/domain/reader"
	"github.com/FACorreiaa/statement-ingest/internal/domain/schema"
	"github.com/FACorreiaa/statement-ingest/internal/domain/validation"
	"github.com/FACorreiaa/statement-ingest/pkg/amount"
)

var (
	ErrUnknownSource        = errors.New("no schema registered for source")
	ErrUnsupportedFileType  = errors.New("unsupported file type")
	ErrFixableIssuesPending = errors.New("document has unresolved fixable issues")
)

// Document is one uploaded statement file.
type Document struct {
	SourceID string
	Name     string
	Path     string // on-disk location, required for fixes
	Data     []byte
	// Year is the statement year used to complete partial PDF dates.
	Year int
}

// NormalizedTransaction is one output row in the normalized schema.
type NormalizedTransaction struct {
	Date        string
	Description string
	Amount      float64
	SourceFile  string
	Extra       map[string]string
}

// Result is the outcome of processing one document. Records is empty
// unless validation cleared the document for processing.
type Result struct {
	SourceID       string
	File           string
	Table          *reader.RawTable
	Validation     *validation.ValidationResult
	Records        []NormalizedTransaction
	SkippedAmounts int
}

// PDFExtractor pulls configured section tables out of PDF documents.
type PDFExtractor interface {
	Extract(ctx context.Context, pdfBytes []byte, cfg *schema.PDFExtractionConfig, year int) (*reader.RawTable, error)
}

// Service wires the parsers, registry, validator, and fixer together.
type Service struct {
	registry  *schema.Registry
	extractor PDFExtractor
	validator *validation.Validator
	fixer     *validation.Fixer
	samples   *SampleStore
	logger    *slog.Logger

	headerScanLimit int
}

// SetHeaderScanLimit caps how many leading lines the tabular reader
// inspects for a header row. Zero keeps the reader default.
func (s *Service) SetHeaderScanLimit(n int) {
	s.headerScanLimit = n
}

func NewService(registry *schema.Registry, extractor PDFExtractor, validator *validation.Validator, fixer *validation.Fixer, samples *SampleStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry:  registry,
		extractor: extractor,
		validator: validator,
		fixer:     fixer,
		samples:   samples,
		logger:    logger,
	}
}

// Process parses, validates, and normalizes one document. A document that
// validation flags with fixable issues comes back with State FixableIssues
// and no records; flagged data is never processed silently.
func (s *Service) Process(ctx context.Context, doc Document) (*Result, error) {
	src, ok := s.registry.Get(doc.SourceID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, doc.SourceID)
	}

	table, err := s.loadTable(ctx, doc, src)
	if err != nil {
		return nil, err
	}

	result := &Result{
		SourceID: doc.SourceID,
		File:     doc.Name,
		Table:    table,
	}

	// Extracted PDF tables are standalone output shaped by the PDF config;
	// the vendor's delimited-file mappings do not apply to them.
	if isPDF(doc.Name) {
		result.Validation = s.validator.ValidatePDFTable(table, src.PDF)
	} else {
		sample := src.ExampleRows
		if s.samples != nil {
			if saved, err := s.samples.Get(doc.SourceID); err == nil && len(saved.SampleRows) > 0 {
				sample = saved.SampleRows
			}
		}
		result.Validation = s.validator.ValidateDocument(table, src, sample)

		// Raw-content corruption checks only make sense for delimited text.
		if isDelimited(doc.Name) {
			if issues := s.validator.DetectIssues(doc.Data, src); len(issues) > 0 {
				result.Validation.AddIssues(issues...)
			}
		}
	}

	if !result.Validation.CanProceed() {
		s.logger.Warn("document held back from processing",
			slog.String("source", doc.SourceID),
			slog.String("file", doc.Name),
			slog.String("state", result.Validation.State.String()))
		return result, nil
	}

	if isPDF(doc.Name) {
		result.Records, result.SkippedAmounts = s.normalizePDF(table, src.PDF, doc.Name)
	} else {
		result.Records, result.SkippedAmounts = s.normalize(table, src, doc.Name)
	}

	if s.samples != nil {
		if err := s.saveSample(doc, src, table); err != nil {
			s.logger.Warn("failed to save sample metadata", slog.Any("error", err))
		}
	}

	s.logger.Info("processed document",
		slog.String("source", doc.SourceID),
		slog.String("file", doc.Name),
		slog.Int("records", len(result.Records)),
		slog.Int("skipped_amounts", result.SkippedAmounts))
	return result, nil
}

// ApproveFix runs one user-approved repair against the document on disk and
// reprocesses it afterwards.
func (s *Service) ApproveFix(ctx context.Context, doc Document, issue validation.Issue) (*Result, error) {
	src, ok := s.registry.Get(doc.SourceID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, doc.SourceID)
	}
	if doc.Path == "" {
		return nil, errors.New("document has no on-disk path to fix")
	}

	fixResult, err := s.fixer.Apply(doc.Path, src, issue)
	if err != nil {
		return nil, err
	}
	s.logger.Info("fix approved and applied",
		slog.String("source", doc.SourceID),
		slog.String("issue", string(issue.Type)),
		slog.Bool("resolved", fixResult.Resolved),
		slog.String("backup", fixResult.BackupPath))

	fixed, err := os.ReadFile(doc.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read fixed file: %w", err)
	}
	doc.Data = fixed
	result, err := s.Process(ctx, doc)
	if err != nil {
		return nil, err
	}
	if fixResult.Changed && result.Validation.State == validation.StateClean {
		result.Validation.State = validation.StateFixed
	}
	return result, nil
}

// loadTable routes the document to the parser its extension calls for.
func (s *Service) loadTable(ctx context.Context, doc Document, src *schema.SourceSchema) (*reader.RawTable, error) {
	opts := reader.Options{
		ExpectedColumns: src.ExpectedColumns,
		RequiredColumns: src.RequiredColumns,
		MinRowFields:    src.MinRowFields,
		HeaderScanLimit: s.headerScanLimit,
		Logger:          s.logger,
	}

	switch ext := strings.ToLower(filepath.Ext(doc.Name)); ext {
	case ".csv", ".txt":
		return reader.Load(doc.Data, opts)
	case ".tsv":
		opts.Delimiter = '\t'
		return reader.Load(doc.Data, opts)
	case ".xlsx", ".xls":
		return reader.LoadExcel(doc.Data, opts)
	case ".pdf":
		return s.extractor.Extract(ctx, doc.Data, src.PDF, doc.Year)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, ext)
	}
}

// normalize maps table rows onto the normalized transaction schema. Rows
// whose amount cannot be parsed are skipped and counted, never silently
// zeroed.
func (s *Service) normalize(table *reader.RawTable, src *schema.SourceSchema, sourceFile string) ([]NormalizedTransaction, int) {
	dateIdx := table.ColumnIndex(src.DateMapping.SourceColumn)
	descIdx := table.ColumnIndex(src.DescriptionMapping.SourceColumn)
	amountIdx := table.ColumnIndex(src.AmountMapping.SourceColumn)

	type optionalCol struct {
		field string
		idx   int
	}
	var optional []optionalCol
	for _, m := range src.OptionalMappings {
		if idx := table.ColumnIndex(m.SourceColumn); idx >= 0 {
			optional = append(optional, optionalCol{m.TargetField, idx})
		}
	}

	cell := func(row []string, idx int) string {
		if idx < 0 || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	records := make([]NormalizedTransaction, 0, len(table.Rows))
	skipped := 0
	for i, row := range table.Rows {
		amountVal, err := amount.Parse(cell(row, amountIdx))
		if err != nil {
			skipped++
			if skipped <= 5 {
				s.logger.Warn("skipping row with unparseable amount",
					slog.Int("row", i+1),
					slog.String("value", cell(row, amountIdx)))
			}
			continue
		}

		tx := NormalizedTransaction{
			Date:        cell(row, dateIdx),
			Description: cell(row, descIdx),
			Amount:      amountVal,
			SourceFile:  sourceFile,
		}
		for _, opt := range optional {
			if val := cell(row, opt.idx); val != "" {
				if tx.Extra == nil {
					tx.Extra = make(map[string]string)
				}
				tx.Extra[opt.field] = val
			}
		}
		records = append(records, tx)
	}

	if skipped > 5 {
		s.logger.Warn("additional unparseable amounts omitted", slog.Int("total_skipped", skipped))
	}
	return records, skipped
}

// normalizePDF maps an extracted section table onto the normalized schema
// using the PDF configuration's own columns rather than the vendor's
// delimited-file mappings.
func (s *Service) normalizePDF(table *reader.RawTable, cfg *schema.PDFExtractionConfig, sourceFile string) ([]NormalizedTransaction, int) {
	dateCol := cfg.DateColumn
	if dateCol == "" {
		dateCol = "Date"
	}
	amountCol := cfg.AmountColumn
	if amountCol == "" && len(cfg.ExpectedColumns) > 0 {
		amountCol = cfg.ExpectedColumns[0]
	}

	dateIdx := table.ColumnIndex(dateCol)
	descIdx := table.ColumnIndex(cfg.DescriptionColumn)
	amountIdx := table.ColumnIndex(amountCol)

	type extraCol struct {
		name string
		idx  int
	}
	var extras []extraCol
	for i, col := range table.Header {
		if i == dateIdx || i == descIdx || i == amountIdx {
			continue
		}
		extras = append(extras, extraCol{col, i})
	}

	cell := func(row []string, idx int) string {
		if idx < 0 || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	records := make([]NormalizedTransaction, 0, len(table.Rows))
	skipped := 0
	for i, row := range table.Rows {
		amountVal, err := amount.Parse(cell(row, amountIdx))
		if err != nil {
			skipped++
			if skipped <= 5 {
				s.logger.Warn("skipping row with unparseable amount",
					slog.Int("row", i+1),
					slog.String("column", amountCol),
					slog.String("value", cell(row, amountIdx)))
			}
			continue
		}

		tx := NormalizedTransaction{
			Date:        cell(row, dateIdx),
			Description: cell(row, descIdx),
			Amount:      amountVal,
			SourceFile:  sourceFile,
		}
		for _, ex := range extras {
			if val := cell(row, ex.idx); val != "" {
				if tx.Extra == nil {
					tx.Extra = make(map[string]string)
				}
				tx.Extra[ex.name] = val
			}
		}
		records = append(records, tx)
	}

	if skipped > 5 {
		s.logger.Warn("additional unparseable amounts omitted", slog.Int("total_skipped", skipped))
	}
	return records, skipped
}

func (s *Service) saveSample(doc Document, src *schema.SourceSchema, table *reader.RawTable) error {
	sampleRows := make([]map[string]string, 0, 5)
	for i, row := range table.Rows {
		if i >= 5 {
			break
		}
		m := make(map[string]string, len(table.Header))
		for j, col := range table.Header {
			if j < len(row) {
				m[col] = row[j]
			}
		}
		sampleRows = append(sampleRows, m)
	}

	var mappings map[string]string
	if isPDF(doc.Name) && src.PDF != nil {
		mappings = map[string]string{
			"date":        src.PDF.DateColumn,
			"description": src.PDF.DescriptionColumn,
			"amount":      src.PDF.AmountColumn,
		}
	} else {
		mappings = map[string]string{
			"date":        src.DateMapping.SourceColumn,
			"description": src.DescriptionMapping.SourceColumn,
			"amount":      src.AmountMapping.SourceColumn,
		}
		for _, m := range src.OptionalMappings {
			mappings[m.TargetField] = m.SourceColumn
		}
	}

	return s.samples.Save(&SampleMetadata{
		SourceID:         doc.SourceID,
		OriginalFilename: doc.Name,
		ProcessedAt:      time.Now(),
		FileSizeBytes:    int64(len(doc.Data)),
		TotalRows:        len(table.Rows),
		Columns:          table.Header,
		SampleRows:       sampleRows,
		DetectedMappings: mappings,
		FileFormat:       strings.TrimPrefix(strings.ToLower(filepath.Ext(doc.Name)), "."),
		Encoding:         table.Encoding,
	})
}

func isDelimited(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".tsv", ".txt":
		return true
	}
	return false
}

func isPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}
