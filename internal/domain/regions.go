package domain

import (
	"strings"

	"golang.org/x/text/cases"
)

// Region codes used for per-region stock and order countries.
const (
	RegionKSA = "KSA"
	RegionUAE = "UAE"
	RegionKWT = "KWT"
	RegionQAT = "QAT"
	RegionBHR = "BHR"
	RegionOMN = "OMN"
)

// DefaultCurrency is used for countries outside the region table.
const DefaultCurrency = "USD"

// Regions lists the supported region codes in display order.
var Regions = []string{RegionKSA, RegionUAE, RegionKWT, RegionQAT, RegionBHR, RegionOMN}

var regionCurrencies = map[string]string{
	RegionKSA: "SAR",
	RegionUAE: "AED",
	RegionKWT: "KWD",
	RegionQAT: "QAR",
	RegionBHR: "BHD",
	RegionOMN: "OMR",
}

var countryAliases = map[string]string{
	"ksa":                  RegionKSA,
	"sa":                   RegionKSA,
	"sau":                  RegionKSA,
	"saudi":                RegionKSA,
	"saudi arabia":         RegionKSA,
	"uae":                  RegionUAE,
	"ae":                   RegionUAE,
	"are":                  RegionUAE,
	"emirates":             RegionUAE,
	"united arab emirates": RegionUAE,
	"kwt":                  RegionKWT,
	"kw":                   RegionKWT,
	"kuwait":               RegionKWT,
	"qat":                  RegionQAT,
	"qa":                   RegionQAT,
	"qatar":                RegionQAT,
	"bhr":                  RegionBHR,
	"bh":                   RegionBHR,
	"bahrain":              RegionBHR,
	"omn":                  RegionOMN,
	"om":                   RegionOMN,
	"oman":                 RegionOMN,
}

// NormalizeCountry maps free-form country input onto a region code. Unknown values are
// upper-cased and returned trimmed so they still compare consistently.
func NormalizeCountry(raw string) string {
	trimmed := strings.Join(strings.Fields(raw), " ")
	if trimmed == "" {
		return ""
	}
	if code, ok := countryAliases[cases.Fold().String(trimmed)]; ok {
		return code
	}
	return strings.ToUpper(trimmed)
}

// CurrencyForCountry derives the settlement currency from a country.
func CurrencyForCountry(country string) string {
	if currency, ok := regionCurrencies[NormalizeCountry(country)]; ok {
		return currency
	}
	return DefaultCurrency
}

// SameCountry compares two countries after normalisation.
func SameCountry(a, b string) bool {
	return NormalizeCountry(a) == NormalizeCountry(b)
}
