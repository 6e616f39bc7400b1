package schema

// defaultSchemas returns the built-in source configurations. User-submitted
// schema files in the config directory override these at load time.
func defaultSchemas() map[string]*SourceSchema {
	bank := func(id, display, desc, icon, dateCol, descCol, amountCol string) *SourceSchema {
		return &SourceSchema{
			SourceID:    id,
			DisplayName: display,
			Description: desc,
			Icon:        icon,
			DateMapping: ColumnMapping{
				SourceColumn: dateCol,
				TargetField:  "date",
				Kind:         KindDate,
				Required:     true,
				DateFormat:   "MM/DD/YYYY",
				Description:  "Transaction date",
			},
			DescriptionMapping: ColumnMapping{
				SourceColumn: descCol,
				TargetField:  "description",
				Kind:         KindDescription,
				Required:     true,
				Description:  "Transaction description",
			},
			AmountMapping: ColumnMapping{
				SourceColumn: amountCol,
				TargetField:  "amount",
				Kind:         KindAmount,
				Required:     true,
				AmountFormat: "USD",
				Description:  "Transaction amount",
			},
			DefaultDateFormat:   "MM/DD/YYYY",
			DefaultAmountFormat: "USD",
		}
	}

	boa := bank("bankofamerica", "Bank of America", "Bank statement processing and management", "bank",
		"Date", "Original Description", "Amount")
	boa.OptionalMappings = []ColumnMapping{{
		SourceColumn: "Status", TargetField: "status", Kind: KindOptional, Description: "Transaction status",
	}}
	boa.ExpectedColumns = []string{"Status", "Date", "Original Description", "Amount"}
	boa.RequiredColumns = []string{"Date", "Original Description", "Amount"}
	boa.ExampleRows = []map[string]string{
		{"Status": "Posted", "Date": "01/15/2024", "Original Description": "VERIZON WIRELESS", "Amount": "-421.50"},
		{"Status": "Posted", "Date": "01/20/2024", "Original Description": "GROCERY STORE", "Amount": "-45.67"},
	}

	chase := bank("chase", "Chase", "Chase bank statement processing and management", "credit-card",
		"Posting Date", "Description", "Amount")
	chase.OptionalMappings = []ColumnMapping{
		{SourceColumn: "Details", TargetField: "details", Kind: KindOptional, Description: "Additional transaction details"},
		{SourceColumn: "Type", TargetField: "type", Kind: KindOptional, Description: "Transaction type"},
		{SourceColumn: "Balance", TargetField: "balance", Kind: KindOptional, Description: "Account balance"},
		{SourceColumn: "Check or Slip #", TargetField: "check_number", Kind: KindOptional, Description: "Check or slip number"},
	}
	chase.ExpectedColumns = []string{"Posting Date", "Description", "Amount", "Details", "Type", "Balance", "Check or Slip #"}
	chase.RequiredColumns = []string{"Posting Date", "Description", "Amount"}
	chase.ExampleRows = []map[string]string{
		{"Posting Date": "01/15/2024", "Description": "VERIZON WIRELESS", "Amount": "-421.50", "Type": "DEBIT"},
		{"Posting Date": "01/20/2024", "Description": "GROCERY STORE", "Amount": "-45.67", "Type": "DEBIT"},
	}

	depot := bank("restaurantdepot", "Restaurant Depot", "Restaurant Depot supplier receipt processing and management", "shop",
		"Date", "Description", "Total")
	depot.ExpectedColumns = []string{"Date", "Description", "Total"}
	depot.RequiredColumns = []string{"Date", "Description", "Total"}
	depot.ExampleRows = []map[string]string{
		{"Date": "01/15/2024", "Description": "CHICKEN BREAST", "Total": "125.50"},
		{"Date": "01/20/2024", "Description": "VEGETABLES", "Total": "45.67"},
	}

	sysco := bank("sysco", "Sysco", "Sysco supplier receipt processing and management", "truck",
		"Date", "Description", "Total")
	sysco.ExpectedColumns = []string{"Date", "Description", "Total"}
	sysco.RequiredColumns = []string{"Date", "Description", "Total"}
	sysco.ExampleRows = []map[string]string{
		{"Date": "01/15/2024", "Description": "MEAT PRODUCTS", "Total": "225.50"},
		{"Date": "01/20/2024", "Description": "DAIRY PRODUCTS", "Total": "85.67"},
	}

	merchantPDF := &PDFExtractionConfig{
		Enabled:           true,
		SectionHeader:     "SUMMARY OF MONETARY BATCHES",
		ExpectedColumns:   []string{"Gross", "R&C", "Net", "Date", "Ref"},
		DateColumn:        "Date",
		AmountColumn:      "Net",
		DescriptionColumn: "Ref",
		MinRows:           1,
	}

	gg := bank("gg", "GG", "GG merchant statement processing and management", "credit-card",
		"Date", "Description", "Amount")
	gg.ExpectedColumns = []string{"Date", "Description", "Amount"}
	gg.RequiredColumns = []string{"Date", "Description", "Amount"}
	gg.ExampleRows = []map[string]string{
		{"Date": "01/15/2024", "Description": "MERCHANT TRANSACTION", "Amount": "125.50"},
		{"Date": "01/20/2024", "Description": "PAYMENT PROCESSING", "Amount": "45.67"},
	}
	ggPDF := *merchantPDF
	gg.PDF = &ggPDF

	ar := bank("ar", "AR", "AR merchant statement processing and management", "credit-card",
		"Date", "Description", "Amount")
	ar.ExpectedColumns = []string{"Date", "Description", "Amount"}
	ar.RequiredColumns = []string{"Date", "Description", "Amount"}
	ar.ExampleRows = []map[string]string{
		{"Date": "01/15/2024", "Description": "MERCHANT TRANSACTION", "Amount": "125.50"},
		{"Date": "01/20/2024", "Description": "PAYMENT PROCESSING", "Amount": "45.67"},
	}
	arPDF := *merchantPDF
	ar.PDF = &arPDF

	return map[string]*SourceSchema{
		"bankofamerica":   boa,
		"chase":           chase,
		"restaurantdepot": depot,
		"sysco":           sysco,
		"gg":              gg,
		"ar":              ar,
	}
}
