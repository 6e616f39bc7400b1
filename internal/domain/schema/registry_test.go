package schema

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func customSchema(id string) *SourceSchema {
	return &SourceSchema{
		SourceID:    id,
		DisplayName: "Custom Vendor",
		Description: "Custom vendor export",
		DateMapping: ColumnMapping{
			SourceColumn: "Txn Date", TargetField: "date", Kind: KindDate,
			Required: true, DateFormat: "YYYY-MM-DD",
		},
		DescriptionMapping: ColumnMapping{
			SourceColumn: "Memo", TargetField: "description", Kind: KindDescription, Required: true,
		},
		AmountMapping: ColumnMapping{
			SourceColumn: "Value", TargetField: "amount", Kind: KindAmount,
			Required: true, AmountFormat: "USD",
		},
		OptionalMappings: []ColumnMapping{
			{SourceColumn: "Reference", TargetField: "reference", Kind: KindOptional},
		},
		ExpectedColumns:     []string{"Txn Date", "Memo", "Value", "Reference"},
		RequiredColumns:     []string{"Txn Date", "Memo", "Value"},
		DefaultDateFormat:   "YYYY-MM-DD",
		DefaultAmountFormat: "USD",
		ExampleRows: []map[string]string{
			{"Txn Date": "2024-01-15", "Memo": "SAMPLE", "Value": "10.00", "Reference": "A1"},
		},
	}
}

func TestNewRegistry_BuiltinDefaults(t *testing.T) {
	r, err := NewRegistry(t.TempDir(), testLogger())
	require.NoError(t, err)

	for _, id := range []string{"bankofamerica", "chase", "restaurantdepot", "sysco", "gg", "ar"} {
		s, ok := r.Get(id)
		require.True(t, ok, "expected builtin schema %s", id)
		assert.Empty(t, ValidateStructure(s), "builtin schema %s should validate", id)
	}

	// Merchant statement vendors are PDF-capable.
	gg, _ := r.Get("gg")
	require.NotNil(t, gg.PDF)
	assert.True(t, gg.PDF.Enabled)
	assert.Equal(t, "SUMMARY OF MONETARY BATCHES", gg.PDF.SectionHeader)
	assert.True(t, gg.PDF.StrictSectionNotFound())
}

func TestRegistry_PutGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRegistry(dir, testLogger())
	require.NoError(t, err)

	original := customSchema("customvendor")
	require.NoError(t, r.Put(original))

	got, ok := r.Get("CustomVendor") // case-insensitive
	require.True(t, ok)
	assert.Equal(t, original.DateMapping, got.DateMapping)
	assert.Equal(t, original.DescriptionMapping, got.DescriptionMapping)
	assert.Equal(t, original.AmountMapping, got.AmountMapping)
	assert.Equal(t, original.OptionalMappings, got.OptionalMappings)
	assert.Equal(t, original.ExpectedColumns, got.ExpectedColumns)

	// A fresh registry re-reads it from disk field for field.
	r2, err := NewRegistry(dir, testLogger())
	require.NoError(t, err)
	reloaded, ok := r2.Get("customvendor")
	require.True(t, ok)
	assert.Equal(t, original.DateMapping, reloaded.DateMapping)
	assert.Equal(t, original.ExampleRows, reloaded.ExampleRows)
}

func TestRegistry_PutRejectsInvalidStructure(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRegistry(dir, testLogger())
	require.NoError(t, err)

	s := customSchema("badvendor")
	s.OptionalMappings = append(s.OptionalMappings, ColumnMapping{
		SourceColumn: "Txn Date", TargetField: "dup", Kind: KindOptional,
	})

	err = r.Put(s)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaStructure)

	// Nothing registered, nothing persisted.
	_, ok := r.Get("badvendor")
	assert.False(t, ok)
	_, statErr := os.Stat(filepath.Join(dir, "badvendor.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRegistry_Remove(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRegistry(dir, testLogger())
	require.NoError(t, err)

	require.NoError(t, r.Put(customSchema("tempvendor")))
	path := filepath.Join(dir, "tempvendor.json")
	_, statErr := os.Stat(path)
	require.NoError(t, statErr)

	assert.True(t, r.Remove("tempvendor"))
	_, ok := r.Get("tempvendor")
	assert.False(t, ok)
	_, statErr = os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	assert.False(t, r.Remove("tempvendor"))
}

func TestNewRegistry_OverlaysUserFiles(t *testing.T) {
	dir := t.TempDir()

	// A user file overriding the builtin chase schema.
	override := customSchema("chase")
	override.DisplayName = "Chase (custom)"
	data, err := json.MarshalIndent(override, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chase.json"), data, 0o644))

	// A corrupt file is skipped, not fatal.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o644))

	r, err := NewRegistry(dir, testLogger())
	require.NoError(t, err)

	chase, ok := r.Get("chase")
	require.True(t, ok)
	assert.Equal(t, "Chase (custom)", chase.DisplayName)

	_, ok = r.Get("broken")
	assert.False(t, ok)
}

func TestValidateStructure(t *testing.T) {
	t.Run("missing required mappings", func(t *testing.T) {
		s := &SourceSchema{SourceID: "x"}
		problems := ValidateStructure(s)
		assert.Contains(t, problems, "date mapping is required")
		assert.Contains(t, problems, "description mapping is required")
		assert.Contains(t, problems, "amount mapping is required")
	})

	t.Run("mapped column not in expected set", func(t *testing.T) {
		s := customSchema("x")
		s.ExpectedColumns = []string{"Txn Date", "Memo", "Value"} // Reference missing
		problems := ValidateStructure(s)
		require.Len(t, problems, 1)
		assert.Contains(t, problems[0], "Reference")
	})

	t.Run("valid schema has no problems", func(t *testing.T) {
		assert.Empty(t, ValidateStructure(customSchema("x")))
	})
}

func TestLayoutFor(t *testing.T) {
	assert.Equal(t, "01/02/2006", LayoutFor("MM/DD/YYYY"))
	assert.Equal(t, "02/01/2006", LayoutFor("DD/MM/YYYY"))
	assert.Equal(t, "2006-01-02", LayoutFor("YYYY-MM-DD"))
	assert.Equal(t, "01/02/2006", LayoutFor("something-else"))
}
