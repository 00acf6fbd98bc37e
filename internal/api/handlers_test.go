package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/bazarkhoj/bazarkhoj/internal/aggregator"
	"github.com/bazarkhoj/bazarkhoj/internal/config"
	"github.com/bazarkhoj/bazarkhoj/internal/domain"
	"github.com/bazarkhoj/bazarkhoj/internal/logger"
	"github.com/bazarkhoj/bazarkhoj/internal/metrics"
	"github.com/bazarkhoj/bazarkhoj/internal/normalize"
	"github.com/bazarkhoj/bazarkhoj/internal/sources"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeAdapter is a scriptable source for handler tests.
type fakeAdapter struct {
	name       domain.SourceID
	result     *domain.SourceResult
	err        error
	categories []domain.Category
}

func (f *fakeAdapter) Name() domain.SourceID { return f.name }

func (f *fakeAdapter) Search(_ context.Context, q sources.Query) (*domain.SourceResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	res := *f.result
	res.Source = f.name
	res.Page = q.Page
	return &res, nil
}

func (f *fakeAdapter) Categories(context.Context) ([]domain.Category, error) {
	return f.categories, nil
}

func newTestRouter(t *testing.T, adapters ...sources.Adapter) *gin.Engine {
	t.Helper()

	cfg := &config.Config{
		App: config.AppConfig{Name: "bazarkhoj", Version: "test"},
		Aggregator: config.AggregatorConfig{
			SourceTimeout: time.Second,
			DefaultLimit:  20,
			MaxLimit:      100,
			DefaultRegion: "np",
		},
	}

	registry := sources.NewRegistry(adapters...)
	agg := aggregator.New(
		registry,
		normalize.New(language.English),
		logger.NewNop(),
		metrics.NewNop(),
		aggregator.Config{SourceTimeout: cfg.Aggregator.SourceTimeout},
	)

	router := gin.New()
	SetupRoutes(router, NewHandler(agg, registry, cfg, logger.NewNop()), nil)
	return router
}

func perform(router *gin.Engine, method, target string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func okResult(prices ...string) *domain.SourceResult {
	listings := make([]domain.RawListing, 0, len(prices))
	for i, p := range prices {
		listings = append(listings, domain.RawListing{
			ID:    string(rune('a' + i)),
			Name:  "item " + p,
			Price: p,
		})
	}
	return &domain.SourceResult{Page: 1, Listings: listings, HasMore: true}
}

func TestLowestPricesGet(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t,
		&fakeAdapter{name: "alpha", result: okResult("300", "100")},
		&fakeAdapter{name: "bravo", result: okResult("200")},
	)

	rec := perform(router, http.MethodGet, "/api/v1/search/lowest?q=shoes&limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result domain.AggregateResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Listings, 3)
	assert.Equal(t, "item 100", result.Listings[0].Name)
	assert.Equal(t, "item 200", result.Listings[1].Name)
	assert.Equal(t, 2, result.SourceCounts["alpha"])
	assert.Equal(t, 1, result.SourceCounts["bravo"])
}

func TestLowestPricesPost(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, &fakeAdapter{name: "alpha", result: okResult("100")})

	rec := perform(router, http.MethodPost, "/api/v1/search/lowest", SearchRequest{
		Query: "shoes",
		Limit: 5,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result domain.AggregateResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Len(t, result.Listings, 1)
	assert.Equal(t, "np", result.Region, "default region applied")
}

func TestLowestPricesBlankQuery(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, &fakeAdapter{name: "alpha", result: okResult("100")})

	rec := perform(router, http.MethodGet, "/api/v1/search/lowest?q=%20", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_QUERY", resp.Code)
}

func TestLowestPricesAllSourcesFailed(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t,
		&fakeAdapter{name: "alpha", err: errors.New("connection refused")},
		&fakeAdapter{name: "bravo", err: errors.New("upstream 503")},
	)

	rec := perform(router, http.MethodGet, "/api/v1/search/lowest?q=shoes", nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ALL_SOURCES_FAILED", resp.Code)
	require.Len(t, resp.Failures, 2)
}

func TestLowestPricesPartialFailureStillOK(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t,
		&fakeAdapter{name: "alpha", result: okResult("100", "200", "300")},
		&fakeAdapter{name: "bravo", err: errors.New("upstream 503")},
	)

	rec := perform(router, http.MethodGet, "/api/v1/search/lowest?q=shoes", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result domain.AggregateResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Len(t, result.Listings, 3)
	require.Len(t, result.PartialFailures, 1)
	assert.Equal(t, domain.SourceID("bravo"), result.PartialFailures[0].Source)
}

func TestCompare(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t,
		&fakeAdapter{name: "alpha", result: okResult("100")},
		&fakeAdapter{name: "bravo", result: okResult("200")},
	)

	rec := perform(router, http.MethodPost, "/api/v1/search/compare", SearchRequest{Query: "shoes"})
	require.Equal(t, http.StatusOK, rec.Code)

	var result aggregator.ComparisonResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "shoes", result.Query)
	assert.Len(t, result.PerSource, 2)
}

func TestSourceSearch(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, &fakeAdapter{name: "alpha", result: okResult("100", "200")})

	rec := perform(router, http.MethodGet, "/api/v1/sources/alpha/search?q=shoes&page=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Source   string `json:"source"`
		Page     int    `json:"page"`
		Count    int    `json:"count"`
		Products []struct {
			Name  string `json:"name"`
			Price string `json:"price"`
		} `json:"products"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "alpha", resp.Source)
	assert.Equal(t, 2, resp.Page)
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Products, 2)
	assert.Equal(t, "100", resp.Products[0].Price)
}

func TestSourceSearchUnknownSource(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, &fakeAdapter{name: "alpha", result: okResult("100")})

	rec := perform(router, http.MethodGet, "/api/v1/sources/nope/search?q=shoes", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "UNKNOWN_SOURCE", resp.Code)
}

func TestSourceCategoriesCapability(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, &fakeAdapter{
		name:       "alpha",
		result:     okResult("100"),
		categories: []domain.Category{{ID: "1", Name: "Footwear", Slug: "footwear"}},
	})

	rec := perform(router, http.MethodGet, "/api/v1/sources/alpha/categories", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Source     string            `json:"source"`
		Categories []domain.Category `json:"categories"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Categories, 1)
	assert.Equal(t, "Footwear", resp.Categories[0].Name)

	// The category browse capability is not implemented by the fake.
	rec = perform(router, http.MethodGet, "/api/v1/sources/alpha/category?slug=footwear", nil)
	require.Equal(t, http.StatusNotImplemented, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "CAPABILITY_UNSUPPORTED", errResp.Code)
}

func TestSourcesList(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t,
		&fakeAdapter{name: "alpha", result: okResult("100")},
		&fakeAdapter{name: "bravo", result: okResult("200")},
	)

	rec := perform(router, http.MethodGet, "/api/v1/sources", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Sources []sources.Capabilities `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Sources, 2)
	assert.True(t, resp.Sources[0].Search)
	assert.True(t, resp.Sources[0].Categories, "fake implements the category lister")
	assert.False(t, resp.Sources[0].Detail)
}

func TestHealthAndReady(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, &fakeAdapter{name: "alpha", result: okResult("100")})

	rec := perform(router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = perform(router, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	empty := newTestRouter(t)
	rec = perform(empty, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
