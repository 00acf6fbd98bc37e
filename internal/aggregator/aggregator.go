// Package aggregator fans a product query out to every configured
// marketplace adapter, merges the normalized results, and ranks them by
// price. One failing source never blocks the others; the aggregate call
// fails only when every source failed.
package aggregator

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/bazarkhoj/bazarkhoj/internal/domain"
	"github.com/bazarkhoj/bazarkhoj/internal/logger"
	"github.com/bazarkhoj/bazarkhoj/internal/metrics"
	"github.com/bazarkhoj/bazarkhoj/internal/normalize"
	"github.com/bazarkhoj/bazarkhoj/internal/sources"
)

// Request holds the parameters of one aggregate search.
type Request struct {
	Query  string
	Region string
	Limit  int
	Sort   domain.SortOrder
	// MinRating drops listings rated below the threshold. Zero disables
	// the filter; unrated listings are excluded when it is active.
	MinRating float64
}

// Config holds aggregator settings.
type Config struct {
	// SourceTimeout bounds each adapter call independently, so one slow
	// source cannot delay the others' results.
	SourceTimeout time.Duration
}

// Aggregator orchestrates the concurrent fan-out.
type Aggregator struct {
	registry   *sources.Registry
	normalizer *normalize.Normalizer
	log        logger.Interface
	metrics    *metrics.Metrics
	timeout    time.Duration
}

// New creates an Aggregator over the registered adapters.
func New(
	registry *sources.Registry,
	normalizer *normalize.Normalizer,
	log logger.Interface,
	m *metrics.Metrics,
	cfg Config,
) *Aggregator {
	timeout := cfg.SourceTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Aggregator{
		registry:   registry,
		normalizer: normalizer,
		log:        log,
		metrics:    m,
		timeout:    timeout,
	}
}

// PageResult is one source's contribution to a fan-out: either a page of
// normalized listings or the error that replaced it.
type PageResult struct {
	Source   domain.SourceID
	Listings []domain.Listing
	HasMore  bool
	Err      error
}

// FetchLowestPrices queries every source concurrently and returns the
// merged listings ranked by ascending price. Listings without a price sort
// last. Sources that fail are reported as partial failures; the call
// errors only when all of them failed.
func (a *Aggregator) FetchLowestPrices(ctx context.Context, req Request) (*domain.AggregateResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, domain.ErrInvalidQuery
	}
	if req.Limit <= 0 {
		return nil, domain.ErrInvalidLimit
	}
	if req.Sort == "" {
		req.Sort = domain.SortRelevance
	}

	start := time.Now()
	defer a.metrics.ObserveSearch(start)

	outcomes := a.FetchPages(ctx, req, nil)

	merged := make([]domain.Listing, 0, req.Limit)
	failures := make([]domain.PartialFailure, 0)
	for _, out := range outcomes {
		if out.Err != nil {
			failures = append(failures, domain.PartialFailure{
				Source: out.Source,
				Reason: failureReason(out.Err),
			})
			continue
		}
		merged = append(merged, out.Listings...)
	}

	if len(failures) == len(outcomes) && len(outcomes) > 0 {
		return nil, &domain.AllSourcesFailedError{Failures: failures}
	}

	if req.MinRating > 0 {
		merged = filterByRating(merged, req.MinRating)
	}

	sortByPrice(merged)
	if len(merged) > req.Limit {
		merged = merged[:req.Limit]
	}

	counts := tallySources(merged)
	for src, n := range counts {
		a.metrics.RecordListings(string(src), n)
	}

	a.log.Info("aggregate search completed",
		"query", req.Query,
		"region", req.Region,
		"listings", len(merged),
		"failed_sources", len(failures),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &domain.AggregateResult{
		Query:           req.Query,
		Region:          req.Region,
		Listings:        merged,
		SourceCounts:    counts,
		PartialFailures: failures,
	}, nil
}

// FetchPages dispatches one goroutine per selected adapter and joins them.
// pages maps each source to the page it should fetch; a nil map selects
// every registered source at page 1. Each call gets its own timeout so the
// join point waits at most SourceTimeout.
func (a *Aggregator) FetchPages(ctx context.Context, req Request, pages map[domain.SourceID]int) []PageResult {
	var selected []sources.Adapter
	for _, adapter := range a.registry.All() {
		if pages != nil {
			if _, ok := pages[adapter.Name()]; !ok {
				continue
			}
		}
		selected = append(selected, adapter)
	}

	results := make(chan PageResult, len(selected))
	for _, adapter := range selected {
		page := pages[adapter.Name()]
		if page < 1 {
			page = 1
		}
		go func(adapter sources.Adapter, page int) {
			results <- a.callSource(ctx, adapter, sources.Query{
				Term:   req.Query,
				Region: req.Region,
				Page:   page,
				Sort:   req.Sort,
				Limit:  req.Limit,
			})
		}(adapter, page)
	}

	outcomes := make([]PageResult, 0, len(selected))
	for range selected {
		outcomes = append(outcomes, <-results)
	}

	// Deterministic merge order regardless of arrival order.
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Source < outcomes[j].Source })
	return outcomes
}

func (a *Aggregator) callSource(ctx context.Context, adapter sources.Adapter, q sources.Query) PageResult {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	name := adapter.Name()
	result, err := adapter.Search(callCtx, q)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			err = domain.ErrAdapterTimeout
		}
		a.metrics.RecordSourceCall(string(name), metrics.StatusError)
		a.log.Warn("source search failed",
			"source", name,
			"query", q.Term,
			"page", q.Page,
			"error", err,
		)
		return PageResult{Source: name, Err: err}
	}

	a.metrics.RecordSourceCall(string(name), metrics.StatusOK)
	return PageResult{
		Source:   name,
		Listings: a.normalizer.Page(result),
		HasMore:  result.HasMore,
	}
}

// sortByPrice orders listings by ascending price, unpriced listings last.
// The sort is stable so equal prices keep their per-source arrival order.
func sortByPrice(listings []domain.Listing) {
	sort.SliceStable(listings, func(i, j int) bool {
		pi, pj := listings[i].Price, listings[j].Price
		switch {
		case pi == nil:
			return false
		case pj == nil:
			return true
		default:
			return pi.LessThan(*pj)
		}
	})
}

func filterByRating(listings []domain.Listing, minRating float64) []domain.Listing {
	filtered := listings[:0]
	for _, l := range listings {
		if l.Rating != nil && *l.Rating >= minRating {
			filtered = append(filtered, l)
		}
	}
	return filtered
}

func tallySources(listings []domain.Listing) map[domain.SourceID]int {
	counts := make(map[domain.SourceID]int)
	for _, l := range listings {
		counts[l.Source]++
	}
	return counts
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrAdapterTimeout):
		return "timeout"
	default:
		return err.Error()
	}
}
