package reader

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"
)

// LoadExcel reads the first sheet of an XLSX workbook through the same
// header-search and row-normalization path as Load.
func LoadExcel(data []byte, opts Options) (*RawTable, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}

	headerIdx, header, err := findHeaderCells(rows, opts)
	if err != nil {
		return nil, err
	}
	opts.logger().Info("found header row",
		slog.String("sheet", sheet),
		slog.Int("line", headerIdx+1),
		slog.Int("columns", len(header)))

	table := &RawTable{Header: header, Encoding: "xlsx"}
	ingestCells(table, rows[headerIdx+1:], headerIdx+2, opts)
	return table, nil
}

// findHeaderCells is the pre-split variant of findHeader for workbook rows.
func findHeaderCells(rows [][]string, opts Options) (int, []string, error) {
	limit := opts.scanLimit()
	if limit > len(rows) {
		limit = len(rows)
	}

	for _, m := range matcherChain() {
		for i := 0; i < limit; i++ {
			cells := rows[i]
			if allEmpty(cells) {
				continue
			}
			if len(opts.ExpectedColumns) == 0 {
				return i, trimCells(cells), nil
			}
			if m.Match(cells, opts.ExpectedColumns) {
				return i, trimCells(cells), nil
			}
		}
		if len(opts.ExpectedColumns) == 0 {
			break
		}
	}
	return 0, nil, ErrNoHeaderFound
}

// ingestCells applies the row-width window and required-cell checks to
// already-split rows.
func ingestCells(table *RawTable, rows [][]string, firstLineNum int, opts Options) {
	width := len(table.Header)
	logger := opts.logger()

	requiredIdx := requiredIndices(table.Header, opts.RequiredColumns)
	minRequired := len(requiredIdx)
	if opts.MinRowFields > 0 && opts.MinRowFields < minRequired {
		minRequired = opts.MinRowFields
	}

	logged := 0
	for offset, cells := range rows {
		lineNum := firstLineNum + offset

		if allEmpty(cells) {
			table.SkippedEmpty++
			continue
		}
		cells = trimCells(cells)

		// excelize omits trailing blank cells, so short rows are common
		// in workbooks; anything past the slack window is still dropped.
		if len(cells) > width+1 {
			table.MalformedCount++
			if logged < malformedLogSample {
				logger.Warn("malformed row", slog.Int("line", lineNum))
				logged++
			}
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
				if logged < malformedLogSample {
					logger.Warn("malformed row", slog.Int("line", lineNum))
					logged++
				}
				continue
			}
		}

		table.Rows = append(table.Rows, cells)
	}

	if table.MalformedCount > 0 {
		logger.Warn("dropped malformed rows", slog.Int("count", table.MalformedCount))
	}
}
