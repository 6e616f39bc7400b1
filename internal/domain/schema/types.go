// Package schema holds per-source column mapping configurations and the
// registry that persists them one JSON file per source.
package schema

// MappingKind classifies what a mapped column carries.
type MappingKind string

const (
	KindDate        MappingKind = "date"
	KindDescription MappingKind = "description"
	KindAmount      MappingKind = "amount"
	KindOptional    MappingKind = "optional"
)

// ColumnMapping maps a source-file column onto a normalized field.
type ColumnMapping struct {
	SourceColumn string      `json:"source_column"`
	TargetField  string      `json:"target_field"`
	Kind         MappingKind `json:"mapping_type"`
	Required     bool        `json:"required"`
	DateFormat   string      `json:"date_format,omitempty"`
	AmountFormat string      `json:"amount_format,omitempty"`
	Description  string      `json:"description,omitempty"`
}

// PDFExtractionConfig describes how to pull a tabular section out of a
// vendor's PDF statement. The three ErrorOn* flags default to strict.
type PDFExtractionConfig struct {
	Enabled                bool     `json:"enabled"`
	SectionHeader          string   `json:"section_header"`
	ExpectedColumns        []string `json:"expected_columns"`
	RowPattern             string   `json:"row_pattern,omitempty"`
	StopHeaders            []string `json:"stop_headers,omitempty"`
	DateColumn             string   `json:"date_column,omitempty"`
	// AmountColumn names the section column holding the settlement amount.
	// The first expected column is used when unset.
	AmountColumn string `json:"amount_column,omitempty"`
	// DescriptionColumn optionally names a column carried over as the
	// normalized description (e.g. a batch reference).
	DescriptionColumn string `json:"description_column,omitempty"`
	MinRows           int    `json:"min_rows,omitempty"`
	ErrorOnSectionNotFound *bool    `json:"error_on_section_not_found,omitempty"`
	ErrorOnFormatMismatch  *bool    `json:"error_on_format_mismatch,omitempty"`
	ErrorOnNoValidRows     *bool    `json:"error_on_no_valid_rows,omitempty"`
}

// StrictSectionNotFound reports whether a missing section aborts extraction.
func (c *PDFExtractionConfig) StrictSectionNotFound() bool {
	return c.ErrorOnSectionNotFound == nil || *c.ErrorOnSectionNotFound
}

// StrictFormatMismatch reports whether unmatched columns abort validation.
func (c *PDFExtractionConfig) StrictFormatMismatch() bool {
	return c.ErrorOnFormatMismatch == nil || *c.ErrorOnFormatMismatch
}

// StrictNoValidRows reports whether an undersized result aborts extraction.
func (c *PDFExtractionConfig) StrictNoValidRows() bool {
	return c.ErrorOnNoValidRows == nil || *c.ErrorOnNoValidRows
}

// SourceSchema is the complete mapping configuration for one data source.
type SourceSchema struct {
	SourceID    string `json:"source_id"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	Icon        string `json:"icon,omitempty"`

	DateMapping        ColumnMapping   `json:"date_mapping"`
	DescriptionMapping ColumnMapping   `json:"description_mapping"`
	AmountMapping      ColumnMapping   `json:"amount_mapping"`
	OptionalMappings   []ColumnMapping `json:"optional_mappings,omitempty"`

	ExpectedColumns []string `json:"expected_columns"`
	RequiredColumns []string `json:"required_columns"`

	// MinRowFields, when >0, relaxes the populated-required-cell check to
	// accept rows with at least this many required cells filled.
	MinRowFields int `json:"min_row_fields,omitempty"`

	DefaultDateFormat   string `json:"default_date_format,omitempty"`
	DefaultAmountFormat string `json:"default_amount_format,omitempty"`

	ExampleRows []map[string]string `json:"example_data,omitempty"`

	PDF *PDFExtractionConfig `json:"pdf_extraction,omitempty"`
}

// Mappings returns the required mappings followed by the optional ones.
func (s *SourceSchema) Mappings() []ColumnMapping {
	out := make([]ColumnMapping, 0, 3+len(s.OptionalMappings))
	out = append(out, s.DateMapping, s.DescriptionMapping, s.AmountMapping)
	out = append(out, s.OptionalMappings...)
	return out
}

// DateLayout returns the Go time layout for the schema's date mapping,
// falling back to the schema default. Format names follow the persisted
// convention (MM/DD/YYYY etc.) rather than Go reference-time layouts.
func (s *SourceSchema) DateLayout() string {
	format := s.DateMapping.DateFormat
	if format == "" {
		format = s.DefaultDateFormat
	}
	return LayoutFor(format)
}

// LayoutFor translates a persisted date format name to a Go time layout.
// Unknown names fall back to US month-first.
func LayoutFor(format string) string {
	switch format {
	case "MM/DD/YYYY", "":
		return "01/02/2006"
	case "DD/MM/YYYY":
		return "02/01/2006"
	case "YYYY-MM-DD":
		return "2006-01-02"
	case "MM-DD-YYYY":
		return "01-02-2006"
	case "DD-MM-YYYY":
		return "02-01-2006"
	case "YYYY/MM/DD":
		return "2006/01/02"
	default:
		return "01/02/2006"
	}
}

// Summary is the compact registry view handed to callers that only need
// the shape of a source, not its full mapping set.
type Summary struct {
	SourceID        string              `json:"source_id"`
	DisplayName     string              `json:"display_name"`
	Description     string              `json:"description"`
	Icon            string              `json:"icon,omitempty"`
	RequiredColumns []string            `json:"required_columns"`
	OptionalColumns []string            `json:"optional_columns"`
	DateFormat      string              `json:"date_format"`
	AmountFormat    string              `json:"amount_format"`
	ExampleRows     []map[string]string `json:"example_data,omitempty"`
	PDFCapable      bool                `json:"pdf_capable"`
}
