// Package reader loads tabular statement files (CSV, TSV, XLSX) into a
// uniform in-memory table. It tolerates the damage real exports arrive
// with: unknown encodings, preamble lines before the header, ragged rows,
// and inconsistent quoting.
package reader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var ErrEmptyFile = errors.New("file is empty")

// DefaultHeaderScanLimit caps how many leading lines are searched for the
// header row before giving up.
const DefaultHeaderScanLimit = 50

// How many malformed rows get logged individually before summarizing.
const malformedLogSample = 5

// Options configures a Load call. Zero values mean auto-detect.
type Options struct {
	// ExpectedColumns drives the header search. Empty means the first
	// non-blank line is taken as the header.
	ExpectedColumns []string
	// RequiredColumns must be populated in a data row for it to count.
	RequiredColumns []string
	// MinRowFields, when >0, relaxes the required check to at least this
	// many populated required cells instead of all of them.
	MinRowFields int
	// Delimiter overrides detection when non-zero.
	Delimiter rune
	// HeaderScanLimit overrides DefaultHeaderScanLimit when >0.
	HeaderScanLimit int

	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o Options) scanLimit() int {
	if o.HeaderScanLimit > 0 {
		return o.HeaderScanLimit
	}
	return DefaultHeaderScanLimit
}

// RawTable is the normalized result of loading a tabular file. Every row
// has exactly len(Header) cells.
type RawTable struct {
	Header []string
	Rows   [][]string

	// MalformedCount is the number of rows dropped for being outside the
	// tolerated width window or missing required values.
	MalformedCount int
	// SkippedEmpty is the number of fully blank rows that were ignored.
	SkippedEmpty int
	// Encoding is the detected source encoding label.
	Encoding string
}

// Cell returns the value at (row, column-name), or "" when absent.
func (t *RawTable) Cell(row int, column string) string {
	if row < 0 || row >= len(t.Rows) {
		return ""
	}
	for i, h := range t.Header {
		if h == column {
			return t.Rows[row][i]
		}
	}
	return ""
}

// ColumnIndex returns the position of a header column, or -1.
func (t *RawTable) ColumnIndex(column string) int {
	for i, h := range t.Header {
		if h == column {
			return i
		}
	}
	return -1
}

// Load parses raw file bytes into a RawTable. The header row is located by
// the matcher chain (exact, then fuzzy, then a generic keyword heuristic),
// rows within one column of the header width are padded or truncated to fit,
// and anything wider or narrower is dropped and counted.
func Load(data []byte, opts Options) (*RawTable, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	text, encodingLabel, err := decodeText(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode file: %w", err)
	}

	lines := splitLines(text)
	if len(lines) == 0 {
		return nil, ErrEmptyFile
	}

	delimiter := opts.Delimiter
	if delimiter == 0 {
		delimiter = detectDelimiter(lines)
	}

	headerIdx, header, err := findHeader(lines, delimiter, opts)
	if err != nil {
		return nil, err
	}
	opts.logger().Info("found header row",
		slog.Int("line", headerIdx+1),
		slog.Int("columns", len(header)),
		slog.String("encoding", encodingLabel))

	table := &RawTable{
		Header:   header,
		Encoding: encodingLabel,
	}
	ingestRows(table, lines[headerIdx+1:], headerIdx+2, delimiter, opts)

	return table, nil
}

// findHeader runs the matcher chain over the leading lines. With no expected
// columns the first parseable non-blank line wins.
func findHeader(lines []string, delimiter rune, opts Options) (int, []string, error) {
	limit := opts.scanLimit()
	if limit > len(lines) {
		limit = len(lines)
	}

	matchers := matcherChain()
	for _, m := range matchers {
		for i := 0; i < limit; i++ {
			cells, ok := parseLine(lines[i], delimiter)
			if !ok || allEmpty(cells) {
				continue
			}
			if len(opts.ExpectedColumns) == 0 {
				// No schema guidance: first real line is the header.
				return i, trimCells(cells), nil
			}
			if m.Match(cells, opts.ExpectedColumns) {
				if m.Name() != "exact" {
					opts.logger().Info("header matched by fallback strategy",
						slog.String("strategy", m.Name()), slog.Int("line", i+1))
				}
				return i, trimCells(cells), nil
			}
		}
		if len(opts.ExpectedColumns) == 0 {
			break
		}
	}

	return 0, nil, ErrNoHeaderFound
}

// ingestRows normalizes the data rows following the header. firstLineNum is
// the 1-based file line number of the first data line, used in logs.
func ingestRows(table *RawTable, lines []string, firstLineNum int, delimiter rune, opts Options) {
	width := len(table.Header)
	logger := opts.logger()

	type badRow struct {
		line  int
		cells []string
	}
	var malformed []badRow

	requiredIdx := requiredIndices(table.Header, opts.RequiredColumns)
	minRequired := len(requiredIdx)
	if opts.MinRowFields > 0 && opts.MinRowFields < minRequired {
		minRequired = opts.MinRowFields
	}

	for offset, line := range lines {
		lineNum := firstLineNum + offset

		if strings.TrimSpace(strings.TrimRight(line, "\r")) == "" {
			table.SkippedEmpty++
			continue
		}
		cells, ok := parseLine(line, delimiter)
		if !ok {
			table.MalformedCount++
			malformed = append(malformed, badRow{lineNum, []string{line}})
			continue
		}
		if allEmpty(cells) {
			table.SkippedEmpty++
			continue
		}
		cells = trimCells(cells)

		// One column of slack either way: trailing commas and a single
		// swallowed field are survivable, anything worse is not this row.
		if len(cells) < width-1 || len(cells) > width+1 {
			table.MalformedCount++
			malformed = append(malformed, badRow{lineNum, cells})
			continue
		}
		cells = normalizeWidth(cells, width)

		if len(requiredIdx) > 0 {
			populated := 0
			for _, idx := range requiredIdx {
				if cells[idx] != "" {
					populated++
				}
			}
			if populated < minRequired {
				table.MalformedCount++
				malformed = append(malformed, badRow{lineNum, cells})
				continue
			}
		}

		table.Rows = append(table.Rows, cells)
	}

	if len(malformed) > 0 {
		logger.Warn("dropped malformed rows", slog.Int("count", len(malformed)))
		for i, bad := range malformed {
			if i >= malformedLogSample {
				logger.Warn("additional malformed rows omitted",
					slog.Int("remaining", len(malformed)-malformedLogSample))
				break
			}
			logger.Warn("malformed row",
				slog.Int("line", bad.line),
				slog.String("cells", strings.Join(bad.cells, "|")))
		}
	}
}

// normalizeWidth pads short rows with empty strings and truncates long ones.
func normalizeWidth(cells []string, width int) []string {
	if len(cells) > width {
		return cells[:width]
	}
	for len(cells) < width {
		cells = append(cells, "")
	}
	return cells
}

func requiredIndices(header, required []string) []int {
	var out []int
	for _, col := range required {
		for i, h := range header {
			if h == col {
				out = append(out, i)
				break
			}
		}
	}
	return out
}

// parseLine parses a single physical line as one CSV record.
func parseLine(line string, delimiter rune) ([]string, bool) {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return nil, false
	}
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = delimiter
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1
	cells, err := r.Read()
	if err != nil {
		return nil, false
	}
	return cells, true
}

func trimCells(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.Trim(strings.TrimSpace(c), `"`)
	}
	return out
}

func allEmpty(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	// Drop a trailing empty element from a final newline.
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// detectDelimiter picks the candidate that appears most often in the first
// non-blank lines. Commas win ties since they are the overwhelming default.
func detectDelimiter(lines []string) rune {
	candidates := []rune{',', ';', '\t', '|'}
	counts := make(map[rune]int, len(candidates))

	sampled := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		for _, d := range candidates {
			counts[d] += strings.Count(line, string(d))
		}
		sampled++
		if sampled >= 10 {
			break
		}
	}

	best := ','
	bestCount := counts[',']
	for _, d := range candidates[1:] {
		if counts[d] > bestCount {
			best = d
			bestCount = counts[d]
		}
	}
	return best
}
