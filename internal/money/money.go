// Package money parses and formats the heterogeneous price text that
// marketplaces emit. Absence of a price is an expected outcome, never an
// error: every parser here returns nil for input it cannot read.
package money

import (
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// PriceUnavailable is the display sentinel for listings without a price.
const PriceUnavailable = "Price unavailable"

var (
	// numberPattern matches the first numeric run in a price string,
	// tolerating thousands separators: "Rs. 1,299.50" -> "1,299.50".
	numberPattern = regexp.MustCompile(`[0-9][0-9,]*(?:\.[0-9]+)?`)

	// ratingPattern matches the leading number in rating text such as
	// "4.5", "4.5/5" or "4.5 out of 5".
	ratingPattern = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`)
)

// ParsePrice extracts a decimal price from raw text like "Rs. 1,299" or
// "NPR 450.50". It returns nil when the text carries no parseable number.
func ParsePrice(raw string) *decimal.Decimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	match := numberPattern.FindString(raw)
	if match == "" {
		return nil
	}

	match = strings.ReplaceAll(match, ",", "")
	d, err := decimal.NewFromString(match)
	if err != nil {
		return nil
	}
	return &d
}

// FormatPrice renders a price as a locale-grouped string with a currency
// prefix, e.g. "NPR 1,299.50". A nil price renders the unavailable sentinel.
func FormatPrice(price *decimal.Decimal, currency string, tag language.Tag) string {
	if price == nil {
		return PriceUnavailable
	}

	p := message.NewPrinter(tag)
	f, _ := price.Float64()
	formatted := p.Sprint(number.Decimal(f, number.MaxFractionDigits(2)))
	if currency == "" {
		return formatted
	}
	return currency + " " + formatted
}

// ComputeDiscount resolves the discount percentage for a listing. An
// explicit upstream discount annotation wins when it parses to a positive
// number; otherwise the discount is derived from original vs. current price.
// The result is always in the open interval (0, 100); anything else is
// treated as absent so a malformed upstream value cannot propagate.
func ComputeDiscount(explicit string, original, current *decimal.Decimal) *int {
	if d := parseExplicitDiscount(explicit); d != nil {
		return d
	}
	return deriveDiscount(original, current)
}

func parseExplicitDiscount(raw string) *int {
	d := ParsePrice(raw)
	if d == nil {
		return nil
	}
	pct := int(math.Round(d.InexactFloat64()))
	if pct <= 0 || pct >= 100 {
		return nil
	}
	return &pct
}

func deriveDiscount(original, current *decimal.Decimal) *int {
	if original == nil || current == nil {
		return nil
	}
	if original.LessThanOrEqual(*current) || !original.IsPositive() {
		return nil
	}

	ratio := original.Sub(*current).Div(*original)
	pct := int(math.Round(ratio.InexactFloat64() * 100))
	if pct <= 0 || pct >= 100 {
		return nil
	}
	return &pct
}

// ParseRating extracts a star rating from raw text. Ratings outside [0, 5]
// are rejected as malformed.
func ParseRating(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	match := ratingPattern.FindString(raw)
	if match == "" {
		return nil
	}

	d, err := decimal.NewFromString(match)
	if err != nil {
		return nil
	}
	r := d.InexactFloat64()
	if r < 0 || r > 5 {
		return nil
	}
	return &r
}
