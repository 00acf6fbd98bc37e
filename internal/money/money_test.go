package money_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/bazarkhoj/bazarkhoj/internal/money"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestParsePrice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "plain integer", raw: "1299", want: "1299"},
		{name: "rupee prefix", raw: "Rs. 1,299", want: "1299"},
		{name: "npr prefix with decimals", raw: "NPR 450.50", want: "450.5"},
		{name: "devanagari currency sign", raw: "रू 2,500", want: "2500"},
		{name: "thousands separators", raw: "1,234,567.89", want: "1234567.89"},
		{name: "trailing currency", raw: "999 PKR", want: "999"},
		{name: "no digits", raw: "Rs. --", want: ""},
		{name: "empty", raw: "", want: ""},
		{name: "whitespace only", raw: "   ", want: ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := money.ParsePrice(tt.raw)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)),
				"got %s, want %s", got, tt.want)
		})
	}
}

func TestFormatPrice(t *testing.T) {
	t.Parallel()

	t.Run("grouped with currency", func(t *testing.T) {
		t.Parallel()

		got := money.FormatPrice(dec("1299.5"), "NPR", language.English)
		assert.Equal(t, "NPR 1,299.5", got)
	})

	t.Run("large value grouping", func(t *testing.T) {
		t.Parallel()

		got := money.FormatPrice(dec("1234567"), "NPR", language.English)
		assert.Equal(t, "NPR 1,234,567", got)
	})

	t.Run("nil price uses sentinel", func(t *testing.T) {
		t.Parallel()

		got := money.FormatPrice(nil, "NPR", language.English)
		assert.Equal(t, money.PriceUnavailable, got)
	})

	t.Run("no currency prefix", func(t *testing.T) {
		t.Parallel()

		got := money.FormatPrice(dec("100"), "", language.English)
		assert.Equal(t, "100", got)
	})
}

func TestComputeDiscount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		explicit string
		original *decimal.Decimal
		current  *decimal.Decimal
		want     *int
	}{
		{
			name:     "explicit percent string wins",
			explicit: "20%",
			original: dec("1000"),
			current:  dec("900"),
			want:     intPtr(20),
		},
		{
			name:     "derived from prices",
			original: dec("1000"),
			current:  dec("800"),
			want:     intPtr(20),
		},
		{
			name:     "original below current is absent",
			original: dec("800"),
			current:  dec("1000"),
			want:     nil,
		},
		{
			name:     "equal prices is absent",
			original: dec("500"),
			current:  dec("500"),
			want:     nil,
		},
		{
			name:     "explicit zero falls through to derivation",
			explicit: "0",
			original: dec("200"),
			current:  dec("150"),
			want:     intPtr(25),
		},
		{
			name:     "explicit over 100 is rejected",
			explicit: "250%",
			want:     nil,
		},
		{
			name: "missing prices is absent",
			want: nil,
		},
		{
			name:     "rounding",
			original: dec("300"),
			current:  dec("200"),
			want:     intPtr(33),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := money.ComputeDiscount(tt.explicit, tt.original, tt.current)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestComputeDiscountStaysInOpenInterval(t *testing.T) {
	t.Parallel()

	// A negligible difference rounds down to 0% and must be absent.
	assert.Nil(t, money.ComputeDiscount("", dec("10000"), dec("9999.9")))

	// A near-total discount rounds up to 100% and must be absent.
	assert.Nil(t, money.ComputeDiscount("", dec("10000"), dec("0.01")))
}

func TestParseRating(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want *float64
	}{
		{name: "plain", raw: "4.5", want: floatPtr(4.5)},
		{name: "out of five", raw: "4.5/5", want: floatPtr(4.5)},
		{name: "verbose", raw: "3 out of 5", want: floatPtr(3)},
		{name: "above scale rejected", raw: "9.2", want: nil},
		{name: "no digits", raw: "unrated", want: nil},
		{name: "empty", raw: "", want: nil},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := money.ParseRating(tt.raw)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 0.0001)
		})
	}
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }
