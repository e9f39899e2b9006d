// Package money converts integer minor units to display amounts.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when a store or product has none recorded.
const DefaultCurrency = "usd"

var zeroDecimalCurrencies = map[string]struct{}{
	"bif": {}, "clp": {}, "djf": {}, "gnf": {}, "jpy": {}, "kmf": {}, "krw": {},
	"mga": {}, "pyg": {}, "rwf": {}, "ugx": {}, "vnd": {}, "vuv": {}, "xaf": {},
	"xof": {}, "xpf": {},
}

// NormalizeCurrency lower-cases an ISO currency code, defaulting to usd.
func NormalizeCurrency(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return DefaultCurrency
	}
	return code
}

// FromMinor converts an amount in minor units to a decimal in major units.
func FromMinor(cents int64, currency string) decimal.Decimal {
	if _, ok := zeroDecimalCurrencies[NormalizeCurrency(currency)]; ok {
		return decimal.NewFromInt(cents)
	}
	return decimal.New(cents, -2)
}

// Format renders minor units as a fixed-point string ("19.99", "500").
func Format(cents int64, currency string) string {
	places := int32(2)
	if _, ok := zeroDecimalCurrencies[NormalizeCurrency(currency)]; ok {
		places = 0
	}
	return FromMinor(cents, currency).StringFixed(places)
}
