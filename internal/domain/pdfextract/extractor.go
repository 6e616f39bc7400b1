// Package pdfextract pulls tabular sections out of vendor PDF statements.
// A statement names the section it wants (e.g. "SUMMARY OF MONETARY
// BATCHES"), and extraction slices the document text at that header,
// locates the column line, and parses the rows beneath it.
package pdfextract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/cloudflare/ahocorasick"
	"github.com/ledongthuc/pdf"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/FACorreiaa/statement-ingest/internal/domain/reader"
	"github.com/FACorreiaa/statement-ingest/internal/domain/schema"
)

var (
	ErrExtractionDisabled = errors.New("pdf extraction not enabled for source")
	ErrSectionNotFound    = errors.New("section not found in pdf")
	ErrFormatMismatch     = errors.New("pdf format does not match expected columns")
	ErrNoValidRows        = errors.New("no valid rows extracted from pdf")
	ErrNoHeaderLine       = errors.New("could not find table header line in section")
)

// builtinRowRe matches the common merchant-statement row shape: three
// numeric fields, an optional M/DD date, and an optional reference.
var builtinRowRe = regexp.MustCompile(`^\s*([\d,.-]+)\s+([\d,.-]+)\s+([\d,.-]+)\s+(\d{1,2}/\d{2})?\s*([A-Za-z0-9]+)?`)

// columnSplitRe splits a header line into candidate column names.
var columnSplitRe = regexp.MustCompile(`\s{2,}|\t|\|`)

const fuzzyColumnCutoff = 0.7

// Extractor extracts configured table sections from PDF statements.
type Extractor struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// Extract pulls the configured section table out of a PDF and returns it as
// a RawTable, with the statement year folded into the date column.
func (e *Extractor) Extract(ctx context.Context, pdfBytes []byte, cfg *schema.PDFExtractionConfig, year int) (*reader.RawTable, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, ErrExtractionDisabled
	}

	text, err := e.ExtractText(ctx, pdfBytes)
	if err != nil {
		return nil, err
	}
	return e.extractChecked(text, cfg, year)
}

// extractChecked runs the format check on the flattened text before
// parsing, so a statement whose section carries an unexpected layout fails
// with ErrFormatMismatch instead of producing a garbage table.
func (e *Extractor) extractChecked(text string, cfg *schema.PDFExtractionConfig, year int) (*reader.RawTable, error) {
	if err := e.validateText(text, cfg); err != nil {
		return nil, err
	}
	return e.ExtractFromText(text, cfg, year)
}

// ExtractText flattens every page of the PDF to plain text. The page loop
// stops early when ctx is cancelled.
func (e *Extractor) ExtractText(ctx context.Context, pdfBytes []byte) (_ string, err error) {
	defer func() {
		// The pdf library panics on some malformed documents.
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parsing panicked: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(pdfBytes), int64(len(pdfBytes)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := pageLines(page)
		if err != nil {
			e.logger.Warn("failed to read pdf page", slog.Int("page", i), slog.Any("error", err))
			continue
		}
		sb.WriteString(pageText)
	}
	return sb.String(), nil
}

// pageLines reconstructs line-oriented text from the positioned text
// fragments of one page. Fragments sharing a Y coordinate belong to the
// same visual row and are joined with double spaces between gaps.
func pageLines(page pdf.Page) (string, error) {
	rows, err := page.GetTextByRow()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, row := range rows {
		for i, word := range row.Content {
			if i > 0 {
				prev := row.Content[i-1]
				gap := word.X - (prev.X + prev.W)
				if gap > prev.FontSize {
					sb.WriteString("  ")
				} else if gap > 0.3 {
					sb.WriteString(" ")
				}
			}
			sb.WriteString(word.S)
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// ExtractFromText runs section slicing and row parsing over already
// extracted text. Split out from Extract so text from any source can be
// processed.
func (e *Extractor) ExtractFromText(text string, cfg *schema.PDFExtractionConfig, year int) (*reader.RawTable, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, ErrExtractionDisabled
	}
	columns := cfg.ExpectedColumns

	sectionText, err := e.sliceSection(text, cfg)
	if err != nil {
		if errors.Is(err, ErrSectionNotFound) && !cfg.StrictSectionNotFound() {
			e.logger.Warn("section not found, returning empty table",
				slog.String("section", cfg.SectionHeader))
			return &reader.RawTable{Header: columns, Encoding: "pdf"}, nil
		}
		return nil, err
	}

	lines := strings.Split(sectionText, "\n")
	headerIdx := findColumnLine(lines, columns)
	if headerIdx < 0 {
		return nil, fmt.Errorf("%w: expected %v", ErrNoHeaderLine, columns)
	}

	rows := e.parseRows(lines[headerIdx+1:], cfg)

	patterns := inferColumnPatterns(rows, len(columns))
	rows, dropped := filterByPatterns(rows, patterns)
	if dropped > 0 {
		e.logger.Info("dropped noise rows by column pattern", slog.Int("count", dropped))
	}

	minRows := cfg.MinRows
	if minRows <= 0 {
		minRows = 1
	}
	if len(rows) < minRows {
		if cfg.StrictNoValidRows() {
			return nil, fmt.Errorf("%w: got %d, need %d", ErrNoValidRows, len(rows), minRows)
		}
		e.logger.Warn("extracted fewer rows than required",
			slog.Int("rows", len(rows)), slog.Int("min", minRows))
	}

	table := &reader.RawTable{Header: columns, Rows: rows, Encoding: "pdf"}
	applyYear(table, cfg.DateColumn, year)
	return table, nil
}

// ValidateFormat checks that the PDF carries the configured section and
// that its expected columns appear near the section start.
func (e *Extractor) ValidateFormat(ctx context.Context, pdfBytes []byte, cfg *schema.PDFExtractionConfig) error {
	if cfg == nil || !cfg.Enabled {
		return ErrExtractionDisabled
	}
	if cfg.SectionHeader == "" {
		return fmt.Errorf("%w: no section header configured", ErrFormatMismatch)
	}

	text, err := e.ExtractText(ctx, pdfBytes)
	if err != nil {
		return err
	}
	return e.validateText(text, cfg)
}

func (e *Extractor) validateText(text string, cfg *schema.PDFExtractionConfig) error {
	start := strings.Index(text, cfg.SectionHeader)
	if start < 0 {
		if cfg.StrictSectionNotFound() {
			return fmt.Errorf("%w: %q", ErrSectionNotFound, cfg.SectionHeader)
		}
		return nil
	}

	// Only the section head matters for a format probe.
	window := text[start:]
	if len(window) > 2000 {
		window = window[:2000]
	}
	lines := strings.Split(window, "\n")
	if len(lines) > 20 {
		lines = lines[:20]
	}

	found := make(map[string]bool, len(cfg.ExpectedColumns))
	for _, line := range lines {
		parts := splitColumns(line)
		for _, col := range cfg.ExpectedColumns {
			if found[col] {
				continue
			}
			if columnInParts(col, parts) {
				found[col] = true
			}
		}
	}

	var missing []string
	for _, col := range cfg.ExpectedColumns {
		if !found[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 && cfg.StrictFormatMismatch() {
		return fmt.Errorf("%w: missing %v", ErrFormatMismatch, missing)
	}
	return nil
}

// sliceSection cuts the text down to the configured section, ending at the
// nearest stop header when any are configured. The Aho-Corasick pass tells
// us cheaply which stop headers occur at all before we look up offsets.
func (e *Extractor) sliceSection(text string, cfg *schema.PDFExtractionConfig) (string, error) {
	start := strings.Index(text, cfg.SectionHeader)
	if start < 0 {
		return "", fmt.Errorf("%w: %q", ErrSectionNotFound, cfg.SectionHeader)
	}
	sectionText := text[start:]

	if len(cfg.StopHeaders) > 0 {
		matcher := ahocorasick.NewStringMatcher(cfg.StopHeaders)
		hits := matcher.Match([]byte(sectionText))

		end := -1
		for _, hit := range hits {
			if pos := strings.Index(sectionText, cfg.StopHeaders[hit]); pos > 0 {
				if end < 0 || pos < end {
					end = pos
				}
			}
		}
		if end > 0 {
			sectionText = sectionText[:end]
		}
	}
	return sectionText, nil
}

// parseRows converts raw section lines into table rows. Each line is tried
// against the configured regex, then the built-in financial pattern, then
// progressively looser whitespace splits.
func (e *Extractor) parseRows(lines []string, cfg *schema.PDFExtractionConfig) [][]string {
	width := len(cfg.ExpectedColumns)

	var configuredRe *regexp.Regexp
	if cfg.RowPattern != "" {
		var err error
		configuredRe, err = regexp.Compile(cfg.RowPattern)
		if err != nil {
			e.logger.Warn("invalid configured row pattern, ignoring",
				slog.String("pattern", cfg.RowPattern), slog.Any("error", err))
		}
	}

	var rows [][]string
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}

		if configuredRe != nil {
			if m := configuredRe.FindStringSubmatch(line); m != nil {
				rows = append(rows, padRow(m[1:], width))
				continue
			}
		}

		if m := builtinRowRe.FindStringSubmatch(line); m != nil {
			row := padRow(m[1:], width)
			// A usable settlement row has at least gross, net, and date.
			if row[0] != "" && len(row) > 3 && row[2] != "" && row[3] != "" {
				rows = append(rows, row)
				continue
			}
		}

		cells := splitColumns(line)
		if len(cells) < width {
			cells = strings.Fields(strings.TrimSpace(line))
		}
		if len(cells) == width {
			rows = append(rows, cells)
		}
	}
	return rows
}

// findColumnLine locates the header line inside a section. One expected
// column may be missing; individual names may differ by fuzzy distance.
func findColumnLine(lines []string, expected []string) int {
	if len(expected) == 0 {
		return -1
	}
	need := len(expected) - 1
	if need < 1 {
		need = 1
	}

	normExpected := make([]string, len(expected))
	for i, col := range expected {
		normExpected[i] = normalizeColumnName(col)
	}

	for i, line := range lines {
		parts := splitColumns(line)
		normParts := make([]string, 0, len(parts))
		for _, p := range parts {
			if n := normalizeColumnName(p); n != "" {
				normParts = append(normParts, n)
			}
		}
		if len(normParts) == 0 {
			continue
		}

		matches := 0
		for _, want := range normExpected {
			for _, part := range normParts {
				if part == want || columnSimilarity(want, part) >= fuzzyColumnCutoff {
					matches++
					break
				}
			}
		}
		if matches >= need {
			return i
		}
	}
	return -1
}

// applyYear rewrites M/D values in the date column as YYYY-MM-DD.
func applyYear(table *reader.RawTable, dateColumn string, year int) {
	if year <= 0 {
		return
	}
	if dateColumn == "" {
		dateColumn = "Date"
	}
	idx := table.ColumnIndex(dateColumn)
	if idx < 0 {
		return
	}

	for _, row := range table.Rows {
		if idx >= len(row) {
			continue
		}
		val := strings.TrimSpace(row[idx])
		parts := strings.Split(val, "/")
		if len(parts) != 2 {
			continue
		}
		month, err1 := strconv.Atoi(parts[0])
		day, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil {
			continue
		}
		row[idx] = fmt.Sprintf("%04d-%02d-%02d", year, month, day)
	}
}

func padRow(cells []string, width int) []string {
	out := make([]string, 0, width)
	for _, c := range cells {
		out = append(out, strings.TrimSpace(c))
	}
	for len(out) < width {
		out = append(out, "")
	}
	return out[:width]
}

func splitColumns(line string) []string {
	parts := columnSplitRe.Split(strings.TrimSpace(line), -1)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// columnInParts reports whether an expected column name appears in a split
// line, exactly or within fuzzy distance.
func columnInParts(col string, parts []string) bool {
	want := normalizeColumnName(col)
	if want == "" {
		return false
	}
	for _, p := range parts {
		got := normalizeColumnName(p)
		if got == want || columnSimilarity(want, got) >= fuzzyColumnCutoff {
			return true
		}
	}
	return false
}

func columnSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	return 1 - float64(fuzzy.LevenshteinDistance(a, b))/float64(longest)
}

// normalizeColumnName lowercases and strips everything but letters and
// digits, which also scrubs common OCR artifacts.
func normalizeColumnName(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, s)
}
