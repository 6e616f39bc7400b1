package validation

import (
	"encoding/csv"
	"fmt"
	"regexp"
	"strings"

	"github.com/FACorreiaa/statement-ingest/internal/domain/schema"
)

// misalignmentLength is the description-cell length beyond which a value is
// implausible as a real description and likely absorbed neighboring columns.
const misalignmentLength = 200

var digitRunRe = regexp.MustCompile(`\d{2,}[.,]\d{2}`)

// DetectIssues inspects raw file content for CSV-level corruption and
// vendor anomalies the structural validator cannot see once the table has
// been normalized. Every issue is tagged fixable or not.
func (v *Validator) DetectIssues(data []byte, s *schema.SourceSchema) []Issue {
	var issues []Issue

	lines := rawLines(data)
	if len(lines) == 0 {
		return []Issue{{
			Type:    IssueEmptyFile,
			Message: "file is empty",
		}}
	}

	if n := countSplitQuotedLines(lines); n > 0 {
		issues = append(issues, Issue{
			Type:       IssueEmbeddedNewlines,
			Message:    fmt.Sprintf("%d lines appear split inside quoted fields", n),
			Fixable:    true,
			Suggestion: "rejoin lines split mid-quoted-field",
			Details:    map[string]string{"lines": fmt.Sprint(n)},
		})
	}

	header, rows := parseRaw(lines)
	if len(header) == 0 {
		return issues
	}

	if n := countRaggedRows(rows, len(header)); n > 0 {
		issues = append(issues, Issue{
			Type:       IssueRaggedRows,
			Message:    fmt.Sprintf("%d rows have a different column count than the header", n),
			Fixable:    true,
			Suggestion: "normalize row widths and drop empty columns",
			Details:    map[string]string{"rows": fmt.Sprint(n)},
		})
	}

	for _, col := range emptyColumns(header, rows) {
		issues = append(issues, Issue{
			Type:       IssueEmptyColumn,
			Message:    fmt.Sprintf("column %q has no data", col),
			Fixable:    true,
			Suggestion: "drop the empty column",
			Details:    map[string]string{"column": col},
		})
	}

	if s != nil {
		if iss := detectMisalignment(header, rows, s); iss != nil {
			issues = append(issues, *iss)
		}
	}

	return issues
}

// detectMisalignment flags the known vendor defect where a complex
// multi-line transaction bleeds into the description column, dragging
// amounts and dates out of their own columns.
func detectMisalignment(header []string, rows [][]string, s *schema.SourceSchema) *Issue {
	descCol := s.DescriptionMapping.SourceColumn
	if descCol == "" {
		return nil
	}
	idx := -1
	for i, h := range header {
		if h == descCol {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	suspect := 0
	for _, row := range rows {
		if idx >= len(row) {
			continue
		}
		val := row[idx]
		if len(val) > misalignmentLength && digitRunRe.MatchString(val) {
			suspect++
		}
	}
	if suspect == 0 {
		return nil
	}

	// The realignment repair is a vendor heuristic; only schemas registered
	// under a source ID get the automatic fix offered.
	return &Issue{
		Type:       IssueColumnMisalignment,
		Message:    fmt.Sprintf("%d rows carry amount-like data inside the %q column", suspect, descCol),
		Fixable:    s.SourceID != "",
		Suggestion: "re-parse the misaligned column with targeted pattern extraction",
		Details:    map[string]string{"column": descCol, "rows": fmt.Sprint(suspect)},
	}
}

func rawLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	lines := strings.Split(text, "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// countSplitQuotedLines counts physical lines that open a quoted field
// without closing it. Quote-count parity per line is the tell: a line with
// an odd number of quotes was split mid-field.
func countSplitQuotedLines(lines []string) int {
	n := 0
	open := false
	for _, line := range lines {
		if strings.Count(line, `"`)%2 == 1 {
			if !open {
				n++
			}
			open = !open
		}
	}
	return n
}

// parseRaw splits each physical line as one CSV record without any width
// normalization, so ragged rows stay ragged.
func parseRaw(lines []string) (header []string, rows [][]string) {
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		r := csv.NewReader(strings.NewReader(line))
		r.LazyQuotes = true
		r.TrimLeadingSpace = true
		r.FieldsPerRecord = -1
		cells, err := r.Read()
		if err != nil {
			continue
		}
		for i := range cells {
			cells[i] = strings.TrimSpace(cells[i])
		}
		if header == nil {
			header = cells
			continue
		}
		rows = append(rows, cells)
	}
	return header, rows
}

func countRaggedRows(rows [][]string, width int) int {
	n := 0
	for _, row := range rows {
		if len(row) != width {
			n++
		}
	}
	return n
}

func emptyColumns(header []string, rows [][]string) []string {
	if len(rows) == 0 {
		return nil
	}
	var empty []string
	for i, col := range header {
		if col == "" {
			continue
		}
		hasData := false
		for _, row := range rows {
			if i < len(row) && row[i] != "" {
				hasData = true
				break
			}
		}
		if !hasData {
			empty = append(empty, col)
		}
	}
	return empty
}
