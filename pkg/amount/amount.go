// Package amount parses monetary values out of vendor export cells.
// Source files mix currency symbols, thousands separators, parenthesized
// negatives and trailing-minus negatives, so parsing goes through
// shopspring/decimal rather than a bare strconv.ParseFloat.
package amount

import (
	"errors"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

var ErrEmpty = errors.New("empty amount")

// currency symbols seen across the supported vendors, longest first so
// "R$" wins over "$".
var currencySymbols = []struct {
	symbol string
	code   string
}{
	{"R$", "BRL"},
	{"US$", "USD"},
	{"$", "USD"},
	{"€", "EUR"},
	{"£", "GBP"},
}

// Parse converts an amount cell to a float64. It tolerates currency
// symbols, thousands commas, "(123.45)" and "123.45-" negatives.
func Parse(s string) (float64, error) {
	d, _, err := ParseDecimal(s)
	if err != nil {
		return 0, err
	}
	f, _ := d.Float64()
	return f, nil
}

// ParseDecimal converts an amount cell to a decimal, returning the
// detected ISO-4217 currency code when a symbol or code was present.
func ParseDecimal(s string) (decimal.Decimal, string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, "", ErrEmpty
	}

	currency := ""
	for _, c := range currencySymbols {
		if strings.Contains(s, c.symbol) {
			currency = c.code
			s = strings.ReplaceAll(s, c.symbol, "")
			break
		}
	}
	if currency == "" {
		// Trailing or leading ISO code, e.g. "125.50 USD".
		for _, tok := range strings.Fields(s) {
			upper := strings.ToUpper(tok)
			if len(upper) == 3 && money.GetCurrency(upper) != nil {
				currency = upper
				s = strings.ReplaceAll(s, tok, "")
				break
			}
		}
	}
	s = strings.TrimSpace(s)

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.Trim(s, "()")
	}
	if strings.HasSuffix(s, "-") {
		negative = true
		s = strings.TrimSuffix(s, "-")
	}
	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimPrefix(s, "-")
	}

	// Thousands separators: merchant statements use US format (1,234.56).
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, currency, ErrEmpty
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, currency, err
	}
	if negative {
		d = d.Neg()
	}
	return d, currency, nil
}

// IsValid reports whether the cell parses as an amount.
func IsValid(s string) bool {
	_, err := Parse(s)
	return err == nil
}
