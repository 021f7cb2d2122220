package receipt

import "strings"

// DefaultCurrency is the fallback code used whenever a currency cannot be
// determined, at every layer that touches one.
const DefaultCurrency = "INR"

// currencySymbols maps the supported ISO 4217 codes to display symbols.
// INR is in the table so the default currency does not silently render as $.
var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"CAD": "C$",
	"AUD": "A$",
	"INR": "₹",
}

// Currencies returns the supported currency codes in a stable order.
func Currencies() []string {
	return []string{"USD", "EUR", "GBP", "JPY", "CAD", "AUD", "INR"}
}

// KnownCurrency reports whether code is one of the supported currency codes.
func KnownCurrency(code string) bool {
	_, ok := currencySymbols[strings.ToUpper(code)]
	return ok
}

// CurrencySymbol returns the display symbol for code, or "$" for codes
// outside the supported set.
func CurrencySymbol(code string) string {
	if sym, ok := currencySymbols[strings.ToUpper(code)]; ok {
		return sym
	}
	return "$"
}

// NormalizeCurrency upper-cases a known code and substitutes the default
// for anything unrecognized or empty.
func NormalizeCurrency(code string) string {
	upper := strings.ToUpper(strings.TrimSpace(code))
	if _, ok := currencySymbols[upper]; ok {
		return upper
	}
	return DefaultCurrency
}
