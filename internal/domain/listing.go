// Package domain defines the core entities shared across the aggregation
// pipeline: raw upstream listings, normalized listings, and per-source
// result envelopes.
package domain

import "github.com/shopspring/decimal"

// SourceID identifies a configured marketplace source.
type SourceID string

// Known marketplace sources.
const (
	SourceDaraz  SourceID = "daraz"
	SourceJeevee SourceID = "jeevee"
)

// SortOrder selects the ordering requested from a source.
type SortOrder string

// Supported sort orders. Adapters translate these to their upstream
// query parameters.
const (
	SortRelevance SortOrder = "relevance"
	SortPriceAsc  SortOrder = "price_asc"
	SortPriceDesc SortOrder = "price_desc"
	SortNewest    SortOrder = "newest"
)

// RawListing is one product record exactly as an adapter extracted it from
// its upstream. All price-like fields are kept as raw text because upstreams
// disagree on types ("Rs. 1,299", "1299", 1299.0). The normalizer owns the
// parsing.
type RawListing struct {
	// ID is the upstream identity when the record carries one. Empty is
	// valid; the normalizer synthesizes a positional id.
	ID string
	// Name is the display name. May be empty for malformed records.
	Name string
	// Price is the current selling price as raw text.
	Price string
	// OriginalPrice is the pre-discount price as raw text, if shown.
	OriginalPrice string
	// Discount is the upstream discount annotation, e.g. "20%" or "-15%".
	Discount string
	// Rating is the raw rating text, e.g. "4.5" or "4.5/5".
	Rating string
	// ReviewCount is the number of reviews when the upstream reports one.
	ReviewCount int
	Brand       string
	Currency    string
	// ImageURL is the primary image field; ThumbURL is the legacy
	// alternate. First non-empty wins during normalization.
	ImageURL string
	ThumbURL string
	// ProductURL is the primary detail link; ItemURL is the legacy
	// alternate. First non-empty wins during normalization.
	ProductURL string
	ItemURL    string
}

// Listing is a normalized product record. Instances are created by the
// normalizer and immutable afterwards.
type Listing struct {
	ID              string           `json:"id"`
	Source          SourceID         `json:"source"`
	Name            string           `json:"name"`
	Price           *decimal.Decimal `json:"price,omitempty"`
	FormattedPrice  string           `json:"formatted_price"`
	OriginalPrice   *decimal.Decimal `json:"original_price,omitempty"`
	DiscountPercent *int             `json:"discount_percent,omitempty"`
	Rating          *float64         `json:"rating,omitempty"`
	ReviewCount     int              `json:"review_count,omitempty"`
	Brand           string           `json:"brand,omitempty"`
	Currency        string           `json:"currency,omitempty"`
	ImageURL        string           `json:"image_url,omitempty"`
	DetailURL       string           `json:"detail_url,omitempty"`
}

// SourceResult is the outcome of one successful adapter call for one page.
// A failed call never produces a SourceResult; adapters return an error
// instead.
type SourceResult struct {
	Source     SourceID     `json:"source"`
	Page       int          `json:"page"`
	Listings   []RawListing `json:"-"`
	HasMore    bool         `json:"has_more"`
	TotalCount int          `json:"total_count,omitempty"`
}

// PartialFailure records one source that failed during an otherwise
// successful aggregate call.
type PartialFailure struct {
	Source SourceID `json:"source"`
	Reason string   `json:"reason"`
}

// AggregateResult is the merged outcome of fanning a query out to every
// configured source.
type AggregateResult struct {
	Query           string           `json:"query"`
	Region          string           `json:"region"`
	Listings        []Listing        `json:"products"`
	SourceCounts    map[SourceID]int `json:"source_counts"`
	PartialFailures []PartialFailure `json:"partial_failures,omitempty"`
}

// Category is one browsable upstream category for sources that expose a
// category tree.
type Category struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}
