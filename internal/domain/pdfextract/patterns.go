package pdfextract

import "regexp"

// columnPattern classifies the shape of values a column carries. Patterns
// are inferred from the first populated cell and used to weed out noise
// lines that slipped through row parsing.
type columnPattern string

const (
	patternEmpty     columnPattern = "empty"
	patternDate      columnPattern = "date"
	patternAmount    columnPattern = "amount"
	patternReference columnPattern = "reference"
	patternText      columnPattern = "text"
)

var (
	dateValueRe      = regexp.MustCompile(`^\d{1,2}/\d{1,2}`)
	amountValueRe    = regexp.MustCompile(`^[\d,]+\.\d{2}-?`)
	referenceValueRe = regexp.MustCompile(`^[A-Za-z0-9]+`)
)

func detectPattern(value string) columnPattern {
	switch {
	case value == "":
		return patternEmpty
	case dateValueRe.MatchString(value):
		return patternDate
	case amountValueRe.MatchString(value):
		return patternAmount
	case referenceValueRe.MatchString(value):
		return patternReference
	default:
		return patternText
	}
}

func matchesPattern(value string, p columnPattern) bool {
	switch p {
	case patternEmpty:
		return value == ""
	case patternDate:
		return dateValueRe.MatchString(value)
	case patternAmount:
		return amountValueRe.MatchString(value)
	case patternReference:
		return referenceValueRe.MatchString(value)
	default:
		return true
	}
}

// inferColumnPatterns takes the first non-empty value seen in each column
// as that column's expected shape.
func inferColumnPatterns(rows [][]string, width int) []columnPattern {
	patterns := make([]columnPattern, width)
	for col := 0; col < width; col++ {
		patterns[col] = patternEmpty
		for _, row := range rows {
			if col < len(row) && row[col] != "" {
				patterns[col] = detectPattern(row[col])
				break
			}
		}
	}
	return patterns
}

// filterByPatterns drops rows whose cells do not match the inferred column
// shapes. Totals lines and page footers tend to fail here.
func filterByPatterns(rows [][]string, patterns []columnPattern) (kept [][]string, dropped int) {
	for _, row := range rows {
		ok := true
		for col, p := range patterns {
			if col >= len(row) {
				break
			}
			if !matchesPattern(row[col], p) {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, row)
		} else {
			dropped++
		}
	}
	return kept, dropped
}
