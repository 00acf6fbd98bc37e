package aggregator

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/bazarkhoj/bazarkhoj/internal/classifier"
	"github.com/bazarkhoj/bazarkhoj/internal/domain"
)

// minMatchScore is the similarity floor below which two listings are not
// considered the same product.
const minMatchScore = 0.5

// SourceSummary is one source's contribution to a comparison.
type SourceSummary struct {
	Success  bool             `json:"success"`
	Count    int              `json:"count"`
	Listings []domain.Listing `json:"products"`
	Error    string           `json:"error,omitempty"`
}

// PriceComparison annotates a matched pair with which source is cheaper.
type PriceComparison struct {
	CheaperSource     domain.SourceID `json:"cheaper_source,omitempty"`
	PriceDifference   float64         `json:"price_difference"`
	PercentDifference float64         `json:"percent_difference"`
}

// MatchedPair links equivalent listings found on two different sources.
type MatchedPair struct {
	Left       domain.Listing   `json:"left"`
	Right      *domain.Listing  `json:"right,omitempty"`
	MatchScore float64          `json:"match_score"`
	HasMatch   bool             `json:"has_match"`
	Comparison *PriceComparison `json:"price_comparison,omitempty"`
}

// ComparisonResult is the outcome of a cross-source comparison.
type ComparisonResult struct {
	Query     string                             `json:"query"`
	PerSource map[domain.SourceID]*SourceSummary `json:"sources"`
	Matches   []MatchedPair                      `json:"compared_products"`
}

// Compare runs the fan-out and matches equivalent products across sources
// by name similarity. Listings from the first registered source are matched
// greedily against the remaining sources' listings; each listing is used at
// most once.
func (a *Aggregator) Compare(ctx context.Context, req Request) (*ComparisonResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, domain.ErrInvalidQuery
	}
	if req.Limit <= 0 {
		return nil, domain.ErrInvalidLimit
	}

	start := time.Now()
	defer a.metrics.ObserveSearch(start)

	outcomes := a.FetchPages(ctx, req, nil)

	perSource := make(map[domain.SourceID]*SourceSummary, len(outcomes))
	failed := 0
	failures := make([]domain.PartialFailure, 0)
	for _, out := range outcomes {
		if out.Err != nil {
			failed++
			failures = append(failures, domain.PartialFailure{
				Source: out.Source,
				Reason: failureReason(out.Err),
			})
			perSource[out.Source] = &SourceSummary{Error: failureReason(out.Err)}
			continue
		}

		listings := out.Listings
		if req.MinRating > 0 {
			listings = filterByRating(listings, req.MinRating)
		}
		if len(listings) > req.Limit {
			listings = listings[:req.Limit]
		}
		perSource[out.Source] = &SourceSummary{
			Success:  true,
			Count:    len(listings),
			Listings: listings,
		}
	}

	if failed == len(outcomes) && len(outcomes) > 0 {
		return nil, &domain.AllSourcesFailedError{Failures: failures}
	}

	return &ComparisonResult{
		Query:     req.Query,
		PerSource: perSource,
		Matches:   matchAcrossSources(outcomes, perSource),
	}, nil
}

// matchAcrossSources pairs the primary source's listings with their best
// match among the other sources' listings. Unmatched listings from the
// other sources are appended as match-less entries so nothing is dropped.
func matchAcrossSources(
	outcomes []PageResult,
	perSource map[domain.SourceID]*SourceSummary,
) []MatchedPair {
	var primary []domain.Listing
	var others []domain.Listing
	for _, out := range outcomes {
		summary := perSource[out.Source]
		if summary == nil || !summary.Success {
			continue
		}
		if primary == nil {
			primary = summary.Listings
			continue
		}
		others = append(others, summary.Listings...)
	}

	used := make(map[int]bool, len(others))
	pairs := make([]MatchedPair, 0, len(primary)+len(others))

	for _, left := range primary {
		bestScore := 0.0
		bestIdx := -1
		for idx, right := range others {
			if used[idx] {
				continue
			}
			score := classifier.Similarity(left.Name, right.Name)
			if score > bestScore && score > minMatchScore {
				bestScore = score
				bestIdx = idx
			}
		}

		pair := MatchedPair{
			Left:       left,
			MatchScore: math.Round(bestScore*1000) / 10,
		}
		if bestIdx >= 0 {
			used[bestIdx] = true
			right := others[bestIdx]
			pair.Right = &right
			pair.HasMatch = true
			pair.Comparison = comparePrices(left, right)
		}
		pairs = append(pairs, pair)
	}

	for idx, right := range others {
		if used[idx] {
			continue
		}
		pairs = append(pairs, MatchedPair{Left: right})
	}
	return pairs
}

func comparePrices(left, right domain.Listing) *PriceComparison {
	if left.Price == nil || right.Price == nil {
		return nil
	}

	lp := left.Price.InexactFloat64()
	rp := right.Price.InexactFloat64()
	diff := math.Abs(lp - rp)

	cmp := &PriceComparison{
		PriceDifference: math.Round(diff*100) / 100,
	}
	switch {
	case lp < rp:
		cmp.CheaperSource = left.Source
		cmp.PercentDifference = math.Round(diff/rp*1000) / 10
	case rp < lp:
		cmp.CheaperSource = right.Source
		cmp.PercentDifference = math.Round(diff/lp*1000) / 10
	}
	return cmp
}
