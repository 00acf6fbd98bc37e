// Package session holds the stateful handle for one logical search. A
// session is bound to its query, region and sort for its whole lifetime; a
// new query supersedes the old one through a generation counter instead of
// mutating results in place, so late responses from an abandoned search
// can never overwrite fresher ones.
package session

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/bazarkhoj/bazarkhoj/internal/aggregator"
	"github.com/bazarkhoj/bazarkhoj/internal/classifier"
	"github.com/bazarkhoj/bazarkhoj/internal/domain"
	"github.com/bazarkhoj/bazarkhoj/internal/logger"
	"github.com/bazarkhoj/bazarkhoj/internal/metrics"
)

// State is the session lifecycle phase.
type State string

const (
	StateIdle      State = "idle"
	StateSearching State = "searching"
	StateReady     State = "ready"
)

var (
	// ErrNotReady is returned when LoadMore is called before a search
	// completed or while one is in flight.
	ErrNotReady = errors.New("session: no completed search to extend")
	// ErrNoMoreResults is returned when every source is exhausted.
	ErrNoMoreResults = errors.New("session: all sources exhausted")
)

// Fetcher is the slice of the aggregator a session drives.
type Fetcher interface {
	FetchPages(ctx context.Context, req aggregator.Request, pages map[domain.SourceID]int) []aggregator.PageResult
}

// cursor tracks pagination progress for one source.
type cursor struct {
	page    int
	hasMore bool
}

// Session accumulates listings across a search and its load-more
// continuations. All methods are safe for concurrent use; only the
// goroutine owning the current generation commits results.
type Session struct {
	id      string
	fetcher Fetcher
	log     logger.Interface
	metrics *metrics.Metrics

	limit int
	sort  domain.SortOrder

	mu          sync.Mutex
	state       State
	generation  uint64
	query       string
	region      string
	cursors     map[domain.SourceID]*cursor
	accumulated []domain.Listing
	failures    []domain.PartialFailure

	sourceFilter     domain.SourceID
	categoryKeywords []string
}

// Options tune a new session.
type Options struct {
	// Limit caps listings per source per page.
	Limit int
	Sort  domain.SortOrder
}

// New creates an idle session.
func New(fetcher Fetcher, log logger.Interface, m *metrics.Metrics, opts Options) *Session {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Sort == "" {
		opts.Sort = domain.SortRelevance
	}
	return &Session{
		id:      uuid.NewString(),
		fetcher: fetcher,
		log:     log,
		metrics: m,
		limit:   opts.Limit,
		sort:    opts.Sort,
		state:   StateIdle,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start begins a fresh search, discarding any previous results. A Start
// that overlaps an in-flight one supersedes it: whichever call started
// last owns the session, and the earlier call's responses are dropped when
// they arrive.
func (s *Session) Start(ctx context.Context, query, region string) error {
	if strings.TrimSpace(query) == "" {
		return domain.ErrInvalidQuery
	}

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.state = StateSearching
	s.query = query
	s.region = region
	s.mu.Unlock()

	results := s.fetcher.FetchPages(ctx, aggregator.Request{
		Query:  query,
		Region: region,
		Limit:  s.limit,
		Sort:   s.sort,
	}, nil)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		s.metrics.RecordSourceCall("session", metrics.StatusStale)
		s.log.Debug("discarding superseded search results",
			"session", s.id,
			"query", query,
			"generation", gen,
		)
		return nil
	}

	s.cursors = make(map[domain.SourceID]*cursor, len(results))
	s.accumulated = nil
	s.failures = nil

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			s.cursors[res.Source] = &cursor{page: 1, hasMore: false}
			s.failures = append(s.failures, domain.PartialFailure{
				Source: res.Source,
				Reason: res.Err.Error(),
			})
			continue
		}
		s.cursors[res.Source] = &cursor{page: 1, hasMore: res.HasMore}
		s.accumulated = append(s.accumulated, res.Listings...)
	}
	s.state = StateReady

	if failed == len(results) && len(results) > 0 {
		return &domain.AllSourcesFailedError{Failures: s.failures}
	}
	return nil
}

// LoadMore fetches the next page from every source that still has more
// and appends the results. A source that errors is marked exhausted for
// the rest of the session; its failure is recorded but does not fail the
// call as long as the other sources delivered.
func (s *Session) LoadMore(ctx context.Context) ([]domain.Listing, error) {
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return nil, ErrNotReady
	}

	pages := make(map[domain.SourceID]int)
	for src, cur := range s.cursors {
		if cur.hasMore {
			pages[src] = cur.page + 1
		}
	}
	if len(pages) == 0 {
		s.mu.Unlock()
		return nil, ErrNoMoreResults
	}

	s.generation++
	gen := s.generation
	s.state = StateSearching
	query, region := s.query, s.region
	s.mu.Unlock()

	results := s.fetcher.FetchPages(ctx, aggregator.Request{
		Query:  query,
		Region: region,
		Limit:  s.limit,
		Sort:   s.sort,
	}, pages)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		s.metrics.RecordSourceCall("session", metrics.StatusStale)
		return nil, nil
	}

	var appended []domain.Listing
	failed := 0
	for _, res := range results {
		cur := s.cursors[res.Source]
		if cur == nil {
			continue
		}
		if res.Err != nil {
			failed++
			// No retry for the rest of the session.
			cur.hasMore = false
			s.failures = append(s.failures, domain.PartialFailure{
				Source: res.Source,
				Reason: res.Err.Error(),
			})
			continue
		}
		cur.page = pages[res.Source]
		cur.hasMore = res.HasMore
		appended = append(appended, res.Listings...)
		s.accumulated = append(s.accumulated, res.Listings...)
	}
	s.state = StateReady

	if failed == len(results) && len(results) > 0 {
		return nil, &domain.AllSourcesFailedError{Failures: s.failures[len(s.failures)-failed:]}
	}
	return appended, nil
}

// SetSourceFilter restricts the Listings view to one source. Empty or
// "all" clears the filter. The accumulated set is untouched.
func (s *Session) SetSourceFilter(source domain.SourceID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if source == "all" {
		source = ""
	}
	s.sourceFilter = source
}

// SetCategoryFilter restricts the Listings view to names matching any of
// the keywords. Nil or empty clears the filter.
func (s *Session) SetCategoryFilter(keywords []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categoryKeywords = keywords
}

// Listings returns the accumulated results with the active filters
// applied. It is a projection: filtering never refetches or discards
// collected listings.
func (s *Session) Listings() []domain.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Listing, 0, len(s.accumulated))
	for _, l := range s.accumulated {
		if s.sourceFilter != "" && l.Source != s.sourceFilter {
			continue
		}
		if len(s.categoryKeywords) > 0 && !classifier.Matches(l.Name, s.categoryKeywords) {
			continue
		}
		out = append(out, l)
	}
	return out
}

// SourceCounts tallies accumulated listings per source.
func (s *Session) SourceCounts() map[domain.SourceID]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[domain.SourceID]int, len(s.cursors))
	for _, l := range s.accumulated {
		counts[l.Source]++
	}
	return counts
}

// Failures returns the partial failures recorded so far.
func (s *Session) Failures() []domain.PartialFailure {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.PartialFailure, len(s.failures))
	copy(out, s.failures)
	return out
}

// HasMore reports whether any source can still be paged.
func (s *Session) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, cur := range s.cursors {
		if cur.hasMore {
			return true
		}
	}
	return false
}

// ExhaustedSources lists the sources that can no longer be paged, in
// stable order.
func (s *Session) ExhaustedSources() []domain.SourceID {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.SourceID
	for src, cur := range s.cursors {
		if !cur.hasMore {
			out = append(out, src)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
