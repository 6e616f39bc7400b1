package validation

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-ingest/internal/domain/reader"
	"github.com/FACorreiaa/statement-ingest/internal/domain/schema"
)

func testValidator() *Validator {
	return NewValidator(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
}

func chaseSchema() *schema.SourceSchema {
	return &schema.SourceSchema{
		SourceID: "chase",
		DateMapping: schema.ColumnMapping{
			SourceColumn: "Posting Date", TargetField: "date",
			Kind: schema.KindDate, Required: true, DateFormat: "MM/DD/YYYY",
		},
		DescriptionMapping: schema.ColumnMapping{
			SourceColumn: "Description", TargetField: "description",
			Kind: schema.KindDescription, Required: true,
		},
		AmountMapping: schema.ColumnMapping{
			SourceColumn: "Amount", TargetField: "amount",
			Kind: schema.KindAmount, Required: true, AmountFormat: "USD",
		},
		ExpectedColumns: []string{"Posting Date", "Description", "Amount"},
		RequiredColumns: []string{"Posting Date", "Description", "Amount"},
	}
}

func cleanTable() *reader.RawTable {
	return &reader.RawTable{
		Header: []string{"Posting Date", "Description", "Amount"},
		Rows: [][]string{
			{"01/15/2024", "COFFEE SHOP", "-4.50"},
			{"01/16/2024", "PAYROLL", "2500.00"},
		},
	}
}

func TestValidateDocument_Clean(t *testing.T) {
	result := testValidator().ValidateDocument(cleanTable(), chaseSchema(), nil)

	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	assert.Equal(t, StateClean, result.State)
	assert.True(t, result.CanProceed())
	assert.False(t, result.UserActionRequired())
	assert.Equal(t, 2, result.RecordCount)
}

func TestValidateDocument_MissingColumn(t *testing.T) {
	table := cleanTable()
	table.Header = []string{"Posting Date", "Description"}

	result := testValidator().ValidateDocument(table, chaseSchema(), nil)

	assert.False(t, result.Valid)
	assert.Equal(t, StateRejected, result.State)
	assert.False(t, result.CanProceed())
	assert.Contains(t, result.Errors, "Missing required column: Amount")
	require.NotEmpty(t, result.Issues)
	assert.Equal(t, IssueMissingColumn, result.Issues[0].Type)
	assert.False(t, result.Issues[0].Fixable)
}

func TestValidatePDFTable(t *testing.T) {
	v := testValidator()
	cfg := &schema.PDFExtractionConfig{
		Enabled:         true,
		SectionHeader:   "SUMMARY OF MONETARY BATCHES",
		ExpectedColumns: []string{"Gross", "R&C", "Net", "Date", "Ref"},
		MinRows:         1,
	}

	t.Run("extracted table passes", func(t *testing.T) {
		table := &reader.RawTable{
			Header: []string{"Gross", "R&C", "Net", "Date", "Ref"},
			Rows: [][]string{
				{"1,240.50", "12.40", "1,228.10", "2024-01-05", "B1001"},
			},
			Encoding: "pdf",
		}
		result := v.ValidatePDFTable(table, cfg)
		assert.True(t, result.Valid)
		assert.Equal(t, StateClean, result.State)
		assert.Equal(t, 1, result.RecordCount)
	})

	t.Run("missing section column rejects", func(t *testing.T) {
		table := &reader.RawTable{
			Header:   []string{"Gross", "Net", "Date"},
			Rows:     [][]string{{"1,240.50", "1,228.10", "2024-01-05"}},
			Encoding: "pdf",
		}
		result := v.ValidatePDFTable(table, cfg)
		assert.Equal(t, StateRejected, result.State)
		assert.Contains(t, result.Errors, "Missing required column: R&C")
	})

	t.Run("empty extraction warns but proceeds", func(t *testing.T) {
		table := &reader.RawTable{
			Header:   []string{"Gross", "R&C", "Net", "Date", "Ref"},
			Encoding: "pdf",
		}
		result := v.ValidatePDFTable(table, cfg)
		assert.True(t, result.Valid)
		assert.True(t, result.CanProceed())
		assert.Contains(t, result.Warnings, "no rows extracted from section")
	})

	t.Run("nil table rejects", func(t *testing.T) {
		result := v.ValidatePDFTable(nil, cfg)
		assert.Equal(t, StateRejected, result.State)
	})

	t.Run("no pdf config rejects", func(t *testing.T) {
		result := v.ValidatePDFTable(&reader.RawTable{Header: []string{"Gross"}}, nil)
		assert.Equal(t, StateRejected, result.State)
	})
}

func TestValidateDocument_DuplicateRows(t *testing.T) {
	table := cleanTable()
	table.Rows = append(table.Rows, table.Rows[0])

	result := testValidator().ValidateDocument(table, chaseSchema(), nil)

	assert.True(t, result.Valid)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, IssueDuplicateRows, result.Issues[0].Type)
}

func TestValidateDocument_EmptyTable(t *testing.T) {
	table := &reader.RawTable{Header: []string{"Posting Date", "Description", "Amount"}}

	result := testValidator().ValidateDocument(table, chaseSchema(), nil)

	assert.True(t, result.Valid)
	assert.Contains(t, result.Warnings, "file has no data rows")
}

func TestValidateDocument_NilTable(t *testing.T) {
	result := testValidator().ValidateDocument(nil, chaseSchema(), nil)

	assert.False(t, result.Valid)
	assert.Equal(t, StateRejected, result.State)
}

func TestValidateDocument_InvalidStateInvariant(t *testing.T) {
	// Valid must track errors exactly.
	result := testValidator().ValidateDocument(cleanTable(), chaseSchema(), nil)
	assert.Equal(t, len(result.Errors) == 0, result.Valid)

	broken := cleanTable()
	broken.Header = []string{"Wrong"}
	result = testValidator().ValidateDocument(broken, chaseSchema(), nil)
	assert.Equal(t, len(result.Errors) == 0, result.Valid)
}

func TestCheckSampleConversion(t *testing.T) {
	v := testValidator()
	s := chaseSchema()

	sampleRow := func(date, desc, amt string) map[string]string {
		return map[string]string{"Posting Date": date, "Description": desc, "Amount": amt}
	}

	t.Run("all convertible", func(t *testing.T) {
		sample := []map[string]string{
			sampleRow("01/15/2024", "COFFEE", "-4.50"),
			sampleRow("01/16/2024", "PAYROLL", "2,500.00"),
		}
		result := v.ValidateDocument(cleanTable(), s, sample)
		assert.Empty(t, result.Warnings)
	})

	t.Run("seven of ten dates is below the floor", func(t *testing.T) {
		var sample []map[string]string
		for i := 0; i < 7; i++ {
			sample = append(sample, sampleRow("01/15/2024", "OK", "1.00"))
		}
		for i := 0; i < 3; i++ {
			sample = append(sample, sampleRow("not-a-date", "OK", "1.00"))
		}
		result := v.ValidateDocument(cleanTable(), s, sample)

		require.NotEmpty(t, result.Warnings)
		assert.Contains(t, result.Warnings[0], "low conversion success rate for date")
		found := false
		for _, iss := range result.Issues {
			if iss.Type == IssueLowConversionRate {
				found = true
			}
		}
		assert.True(t, found)
	})

	t.Run("eight of ten passes", func(t *testing.T) {
		var sample []map[string]string
		for i := 0; i < 8; i++ {
			sample = append(sample, sampleRow("01/15/2024", "OK", "1.00"))
		}
		for i := 0; i < 2; i++ {
			sample = append(sample, sampleRow("not-a-date", "OK", "1.00"))
		}
		result := v.ValidateDocument(cleanTable(), s, sample)
		assert.Empty(t, result.Warnings)
	})

	t.Run("column missing from sample is an error", func(t *testing.T) {
		sample := []map[string]string{{"Other": "x"}}
		result := v.ValidateDocument(cleanTable(), s, sample)
		assert.False(t, result.Valid)
	})
}

func TestCheckFormats_UnknownAmountFormat(t *testing.T) {
	s := chaseSchema()
	s.AmountMapping.AmountFormat = "DOGE"

	result := testValidator().ValidateDocument(cleanTable(), s, nil)
	assert.Contains(t, result.Warnings, "unknown amount format: DOGE")
}

func TestDocumentState(t *testing.T) {
	assert.True(t, StateClean.CanProceed())
	assert.True(t, StateFixed.CanProceed())
	assert.False(t, StateFixableIssues.CanProceed())
	assert.False(t, StateRejected.CanProceed())
	assert.False(t, StateUnvalidated.CanProceed())

	assert.True(t, StateFixableIssues.UserActionRequired())
	assert.False(t, StateClean.UserActionRequired())

	assert.Equal(t, "fixable_issues", StateFixableIssues.String())
	assert.Equal(t, "unvalidated", StateUnvalidated.String())
}
