// Package sources defines the marketplace adapter contract and the fixed
// registry of configured adapters. Each adapter wraps one upstream
// marketplace and converts its wire format into raw listings; everything
// downstream of this package is marketplace-agnostic.
package sources

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bazarkhoj/bazarkhoj/internal/domain"
)

// Query holds the parameters of one adapter search call.
type Query struct {
	// Term is the free-text search term. Must be non-empty after trimming.
	Term string
	// Region selects the upstream storefront (np, pk, bd, lk). Adapters
	// that serve a single region ignore it.
	Region string
	// Page is 1-indexed.
	Page int
	// Sort selects the upstream ordering.
	Sort domain.SortOrder
	// Limit caps the number of listings per page. Zero means the
	// adapter's default.
	Limit int
}

// Validate checks the query arguments shared by all adapters.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Term) == "" {
		return domain.ErrInvalidQuery
	}
	if q.Page < 1 {
		return fmt.Errorf("page must be >= 1, got %d", q.Page)
	}
	return nil
}

// Adapter is the capability every marketplace source must provide.
// Implementations must be safe for concurrent use: a single adapter is
// shared across sessions and fan-out calls.
type Adapter interface {
	// Name returns the source's stable identifier.
	Name() domain.SourceID
	// Search returns one page of raw listings for the query. Calls are
	// idempotent for the same arguments but upstream catalogs change
	// between calls.
	Search(ctx context.Context, q Query) (*domain.SourceResult, error)
}

// CategoryBrowser is the optional capability of browsing a category by
// slug. Discover it with a type assertion; absence is not an error.
type CategoryBrowser interface {
	Category(ctx context.Context, slug, region string, page int) (*domain.SourceResult, error)
}

// CategoryLister is the optional capability of listing available
// categories.
type CategoryLister interface {
	Categories(ctx context.Context) ([]domain.Category, error)
}

// DetailFetcher is the optional capability of fetching a single product's
// detail record by URL.
type DetailFetcher interface {
	Detail(ctx context.Context, productURL string) (*domain.RawListing, error)
}

// Capabilities describes what one registered adapter supports.
type Capabilities struct {
	Source     domain.SourceID `json:"source"`
	Search     bool            `json:"search"`
	Categories bool            `json:"categories"`
	Detail     bool            `json:"detail"`
}

// Registry holds the fixed, explicit list of configured adapters. There is
// no dynamic discovery; adapters are registered once at startup.
type Registry struct {
	mu       sync.RWMutex
	adapters []Adapter
	byID     map[domain.SourceID]Adapter
}

// NewRegistry creates a registry from an explicit adapter list.
// Registration order is preserved and determines merge order.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{
		byID: make(map[domain.SourceID]Adapter, len(adapters)),
	}
	for _, a := range adapters {
		r.register(a)
	}
	return r
}

func (r *Registry) register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[a.Name()]; exists {
		return
	}
	r.adapters = append(r.adapters, a)
	r.byID[a.Name()] = a
}

// All returns the registered adapters in registration order.
func (r *Registry) All() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Adapter, len(r.adapters))
	copy(out, r.adapters)
	return out
}

// Get returns the adapter for the given source id.
func (r *Registry) Get(id domain.SourceID) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownSource, id)
	}
	return a, nil
}

// Capabilities reports each registered adapter's optional capabilities.
func (r *Registry) Capabilities() []Capabilities {
	all := r.All()
	out := make([]Capabilities, 0, len(all))
	for _, a := range all {
		_, browse := a.(CategoryBrowser)
		_, list := a.(CategoryLister)
		_, detail := a.(DetailFetcher)
		out = append(out, Capabilities{
			Source:     a.Name(),
			Search:     true,
			Categories: browse || list,
			Detail:     detail,
		})
	}
	return out
}
