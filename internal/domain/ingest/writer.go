package ingest

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"
)

// csvRow is the on-disk shape of a normalized transaction. Optional mapped
// fields are flattened into a single extra column so every row has the same
// width regardless of source.
type csvRow struct {
	Date        string `csv:"date"`
	Description string `csv:"description"`
	Amount      string `csv:"amount"`
	SourceFile  string `csv:"source_file"`
	Extra       string `csv:"extra"`
}

// WriteCSV writes normalized transactions in the canonical output format.
func WriteCSV(w io.Writer, records []NormalizedTransaction) error {
	rows := make([]csvRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, csvRow{
			Date:        rec.Date,
			Description: rec.Description,
			Amount:      fmt.Sprintf("%.2f", rec.Amount),
			SourceFile:  rec.SourceFile,
			Extra:       flattenExtra(rec.Extra),
		})
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("failed to write normalized CSV: %w", err)
	}
	return nil
}

// flattenExtra renders optional fields as a stable key=value list so output
// files diff cleanly between runs.
func flattenExtra(extra map[string]string) string {
	if len(extra) == 0 {
		return ""
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+extra[k])
	}
	return strings.Join(parts, ";")
}
