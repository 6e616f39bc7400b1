package ingest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-ingest/internal/domain/pdfextract"
	"github.com/FACorreiaa/statement-ingest/internal/domain/reader"
	"github.com/FACorreiaa/statement-ingest/internal/domain/schema"
	"github.com/FACorreiaa/statement-ingest/internal/domain/validation"
)

const chaseCSV = `Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #
DEBIT,01/15/2024,VERIZON WIRELESS,-421.50,ACH_DEBIT,"1,250.00",101
DEBIT,01/20/2024,GROCERY STORE,-45.67,ACH_DEBIT,"1,204.33",102
`

func newTestService(t *testing.T) *Service {
	t.Helper()
	return newServiceWith(t, pdfextract.New(testLogger()))
}

func newServiceWith(t *testing.T, extractor PDFExtractor) *Service {
	t.Helper()
	logger := testLogger()

	registry, err := schema.NewRegistry(t.TempDir(), logger)
	require.NoError(t, err)

	samples, err := NewSampleStore(t.TempDir(), logger)
	require.NoError(t, err)

	validator := validation.NewValidator(logger)
	return NewService(registry, extractor, validator, validation.NewFixer(validator, logger), samples, logger)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// textExtractor feeds pre-extracted statement text through the real section
// parser, standing in for the binary PDF decode.
type textExtractor struct {
	inner *pdfextract.Extractor
}

func (x textExtractor) Extract(_ context.Context, data []byte, cfg *schema.PDFExtractionConfig, year int) (*reader.RawTable, error) {
	return x.inner.ExtractFromText(string(data), cfg, year)
}

func TestProcess_CleanCSV(t *testing.T) {
	svc := newTestService(t)

	result, err := svc.Process(context.Background(), Document{
		SourceID: "chase",
		Name:     "january.csv",
		Data:     []byte(chaseCSV),
	})
	require.NoError(t, err)

	assert.True(t, result.Validation.CanProceed())
	assert.Equal(t, validation.StateClean, result.Validation.State)
	require.Len(t, result.Records, 2)
	assert.Zero(t, result.SkippedAmounts)

	first := result.Records[0]
	assert.Equal(t, "01/15/2024", first.Date)
	assert.Equal(t, "VERIZON WIRELESS", first.Description)
	assert.InDelta(t, -421.50, first.Amount, 0.001)
	assert.Equal(t, "january.csv", first.SourceFile)
	assert.Equal(t, "ACH_DEBIT", first.Extra["type"])
	assert.Equal(t, "101", first.Extra["check_number"])
}

func TestProcess_SavesSampleMetadata(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Process(context.Background(), Document{
		SourceID: "chase",
		Name:     "january.csv",
		Data:     []byte(chaseCSV),
	})
	require.NoError(t, err)

	meta, err := svc.samples.Get("chase")
	require.NoError(t, err)
	assert.Equal(t, "january.csv", meta.OriginalFilename)
	assert.Equal(t, 2, meta.TotalRows)
	assert.Equal(t, "csv", meta.FileFormat)
	assert.Equal(t, "Posting Date", meta.DetectedMappings["date"])
	require.NotEmpty(t, meta.SampleRows)
}

func TestProcess_UnknownSource(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Process(context.Background(), Document{SourceID: "acme", Name: "x.csv", Data: []byte(chaseCSV)})
	assert.ErrorIs(t, err, ErrUnknownSource)
}

func TestProcess_UnsupportedFileType(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Process(context.Background(), Document{SourceID: "chase", Name: "statement.docx", Data: []byte("x")})
	assert.ErrorIs(t, err, ErrUnsupportedFileType)
}

func TestProcess_SkipsUnparseableAmounts(t *testing.T) {
	svc := newTestService(t)
	data := `Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #
DEBIT,01/15/2024,VERIZON WIRELESS,-421.50,ACH_DEBIT,"1,250.00",101
DEBIT,01/20/2024,GROCERY STORE,N/A,ACH_DEBIT,"1,204.33",102
`

	result, err := svc.Process(context.Background(), Document{
		SourceID: "chase",
		Name:     "january.csv",
		Data:     []byte(data),
	})
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	assert.Equal(t, 1, result.SkippedAmounts)
}

func TestProcess_PDFMerchantStatement(t *testing.T) {
	svc := newServiceWith(t, textExtractor{inner: pdfextract.New(testLogger())})
	statement := `MERCHANT SERVICES STATEMENT
Account 4412-9981

SUMMARY OF MONETARY BATCHES
Gross  R&C  Net  Date  Ref
1,240.50  12.40  1,228.10  1/05  B1001
980.00  9.80  970.20  1/12  B1002

SUMMARY OF FEES
Interchange  204.50
`

	result, err := svc.Process(context.Background(), Document{
		SourceID: "gg",
		Name:     "january.pdf",
		Data:     []byte(statement),
		Year:     2024,
	})
	require.NoError(t, err)

	assert.Equal(t, validation.StateClean, result.Validation.State)
	assert.True(t, result.Validation.CanProceed())
	require.Len(t, result.Records, 2)
	assert.Zero(t, result.SkippedAmounts)

	first := result.Records[0]
	assert.Equal(t, "2024-01-05", first.Date)
	assert.Equal(t, "B1001", first.Description)
	assert.InDelta(t, 1228.10, first.Amount, 0.001)
	assert.Equal(t, "january.pdf", first.SourceFile)
	assert.Equal(t, "1,240.50", first.Extra["Gross"])
	assert.Equal(t, "12.40", first.Extra["R&C"])

	meta, err := svc.samples.Get("gg")
	require.NoError(t, err)
	assert.Equal(t, "pdf", meta.FileFormat)
	assert.Equal(t, "Net", meta.DetectedMappings["amount"])
	assert.Equal(t, "Date", meta.DetectedMappings["date"])
}

func TestProcess_HoldsBackFixableIssues(t *testing.T) {
	svc := newTestService(t)
	ragged := `Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #
DEBIT,01/15/2024,VERIZON WIRELESS,-421.50,ACH_DEBIT,"1,250.00",101,stray
DEBIT,01/20/2024,GROCERY STORE,-45.67,ACH_DEBIT,"1,204.33",102
`

	result, err := svc.Process(context.Background(), Document{
		SourceID: "chase",
		Name:     "january.csv",
		Data:     []byte(ragged),
	})
	require.NoError(t, err)

	assert.Equal(t, validation.StateFixableIssues, result.Validation.State)
	assert.True(t, result.Validation.UserActionRequired())
	assert.Empty(t, result.Records)
	assert.NotEmpty(t, result.Validation.FixableIssues())
}

func TestApproveFix_ReprocessesFixedFile(t *testing.T) {
	svc := newTestService(t)
	ragged := `Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #
DEBIT,01/15/2024,VERIZON WIRELESS,-421.50,ACH_DEBIT,"1,250.00",101,stray
DEBIT,01/20/2024,GROCERY STORE,-45.67,ACH_DEBIT,"1,204.33",102
`
	path := filepath.Join(t.TempDir(), "january.csv")
	require.NoError(t, os.WriteFile(path, []byte(ragged), 0o644))

	doc := Document{SourceID: "chase", Name: "january.csv", Path: path, Data: []byte(ragged)}

	held, err := svc.Process(context.Background(), doc)
	require.NoError(t, err)
	require.Equal(t, validation.StateFixableIssues, held.Validation.State)

	fixable := held.Validation.FixableIssues()
	require.NotEmpty(t, fixable)

	result, err := svc.ApproveFix(context.Background(), doc, fixable[0])
	require.NoError(t, err)

	assert.True(t, result.Validation.CanProceed())
	assert.Equal(t, validation.StateFixed, result.Validation.State)
	require.Len(t, result.Records, 2)
	assert.InDelta(t, -45.67, result.Records[1].Amount, 0.001)
}

func TestApproveFix_RequiresPath(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.ApproveFix(context.Background(), Document{SourceID: "chase", Name: "x.csv"}, validation.Issue{
		Type:    validation.IssueRaggedRows,
		Fixable: true,
	})
	require.Error(t, err)
}

func TestIsDelimited(t *testing.T) {
	assert.True(t, isDelimited("a.csv"))
	assert.True(t, isDelimited("a.TSV"))
	assert.True(t, isDelimited("a.txt"))
	assert.False(t, isDelimited("a.xlsx"))
	assert.False(t, isDelimited("a.pdf"))
}
