// Package normalize converts raw adapter listings into the common Listing
// shape, attaching source identity and computing derived fields. It is a
// pure mapping and never fails: missing optional fields simply stay absent.
package normalize

import (
	"fmt"

	"golang.org/x/text/language"

	"github.com/bazarkhoj/bazarkhoj/internal/domain"
	"github.com/bazarkhoj/bazarkhoj/internal/money"
)

// Normalizer maps raw listings to normalized ones.
type Normalizer struct {
	locale language.Tag
}

// New creates a Normalizer formatting prices for the given locale.
func New(locale language.Tag) *Normalizer {
	return &Normalizer{locale: locale}
}

// Page normalizes every listing of one source page. The page and position
// indexes feed the synthesized id for records without an upstream id.
func (n *Normalizer) Page(result *domain.SourceResult) []domain.Listing {
	listings := make([]domain.Listing, 0, len(result.Listings))
	for i, raw := range result.Listings {
		listings = append(listings, n.Listing(result.Source, result.Page, i, raw))
	}
	return listings
}

// Listing normalizes a single raw record. index is the zero-based position
// within its page.
func (n *Normalizer) Listing(source domain.SourceID, page, index int, raw domain.RawListing) domain.Listing {
	price := money.ParsePrice(raw.Price)
	originalPrice := money.ParsePrice(raw.OriginalPrice)

	// A baseline at or below the current price is not a discount.
	if originalPrice != nil && price != nil && originalPrice.LessThanOrEqual(*price) {
		originalPrice = nil
	}

	id := raw.ID
	if id == "" {
		// Page-scoped synthetic id; position alone would collide
		// across pages of the same source.
		id = fmt.Sprintf("%s-p%d-%d", source, page, index)
	}

	return domain.Listing{
		ID:              id,
		Source:          source,
		Name:            raw.Name,
		Price:           price,
		FormattedPrice:  money.FormatPrice(price, raw.Currency, n.locale),
		OriginalPrice:   originalPrice,
		DiscountPercent: money.ComputeDiscount(raw.Discount, originalPrice, price),
		Rating:          money.ParseRating(raw.Rating),
		ReviewCount:     raw.ReviewCount,
		Brand:           raw.Brand,
		Currency:        raw.Currency,
		ImageURL:        firstNonEmpty(raw.ImageURL, raw.ThumbURL),
		DetailURL:       firstNonEmpty(raw.ProductURL, raw.ItemURL),
	}
}

func firstNonEmpty(primary, alternate string) string {
	if primary != "" {
		return primary
	}
	return alternate
}
