// Package api exposes the aggregation engine over HTTP with gin. Every
// search endpoint accepts both a query-string GET form and a JSON POST
// form with identical semantics.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bazarkhoj/bazarkhoj/internal/aggregator"
	"github.com/bazarkhoj/bazarkhoj/internal/config"
	"github.com/bazarkhoj/bazarkhoj/internal/domain"
	"github.com/bazarkhoj/bazarkhoj/internal/logger"
	"github.com/bazarkhoj/bazarkhoj/internal/sources"
)

// Handler holds the HTTP request handlers.
type Handler struct {
	aggregator *aggregator.Aggregator
	registry   *sources.Registry
	cfg        *config.Config
	log        logger.Interface
}

// NewHandler creates a handler over the aggregator and source registry.
func NewHandler(agg *aggregator.Aggregator, registry *sources.Registry, cfg *config.Config, log logger.Interface) *Handler {
	return &Handler{
		aggregator: agg,
		registry:   registry,
		cfg:        cfg,
		log:        log,
	}
}

// SearchRequest is the JSON body of the aggregate search endpoints. The
// query-string GET form carries the same fields.
type SearchRequest struct {
	Query     string  `json:"query"`
	Region    string  `json:"region"`
	Limit     int     `json:"limit"`
	Sort      string  `json:"sort"`
	MinRating float64 `json:"min_rating"`
}

// ErrorResponse is the error envelope for all endpoints.
type ErrorResponse struct {
	Error     string                  `json:"error"`
	Code      string                  `json:"code"`
	Failures  []domain.PartialFailure `json:"failures,omitempty"`
	Timestamp time.Time               `json:"timestamp"`
}

// LowestPrices handles the aggregate cross-source search (GET and POST).
func (h *Handler) LowestPrices(c *gin.Context) {
	req, ok := h.bindSearchRequest(c)
	if !ok {
		return
	}

	result, err := h.aggregator.FetchLowestPrices(c.Request.Context(), h.toAggregatorRequest(req))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Compare handles the cross-source product comparison (GET and POST).
func (h *Handler) Compare(c *gin.Context) {
	req, ok := h.bindSearchRequest(c)
	if !ok {
		return
	}

	result, err := h.aggregator.Compare(c.Request.Context(), h.toAggregatorRequest(req))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// sourceSearchRequest is the JSON body of the per-source search endpoint.
type sourceSearchRequest struct {
	Query  string `json:"query"`
	Region string `json:"region"`
	Page   int    `json:"page"`
	Sort   string `json:"sort"`
	Limit  int    `json:"limit"`
}

// sourceSearchResponse carries one source page with its raw listings.
type sourceSearchResponse struct {
	Source   domain.SourceID  `json:"source"`
	Page     int              `json:"page"`
	Products []rawListingBody `json:"products"`
	Count    int              `json:"count"`
	Total    int              `json:"total_count,omitempty"`
	HasMore  bool             `json:"has_more"`
}

// rawListingBody is the wire shape of one unnormalized listing.
type rawListingBody struct {
	ID            string `json:"id,omitempty"`
	Name          string `json:"name"`
	Price         string `json:"price,omitempty"`
	OriginalPrice string `json:"original_price,omitempty"`
	Discount      string `json:"discount,omitempty"`
	Rating        string `json:"rating,omitempty"`
	ReviewCount   int    `json:"review_count,omitempty"`
	Brand         string `json:"brand,omitempty"`
	Currency      string `json:"currency,omitempty"`
	ImageURL      string `json:"image_url,omitempty"`
	ProductURL    string `json:"product_url,omitempty"`
}

// SourceSearch handles a single-source search (GET and POST).
func (h *Handler) SourceSearch(c *gin.Context) {
	adapter, ok := h.lookupSource(c)
	if !ok {
		return
	}

	var req sourceSearchRequest
	if c.Request.Method == http.MethodGet {
		req = sourceSearchRequest{
			Query:  c.Query("q"),
			Region: c.Query("region"),
			Page:   intQuery(c, "page", 1),
			Sort:   c.Query("sort"),
			Limit:  intQuery(c, "limit", 0),
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body: "+err.Error())
		return
	}
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Region == "" {
		req.Region = h.cfg.Aggregator.DefaultRegion
	}

	result, err := adapter.Search(c.Request.Context(), sources.Query{
		Term:   req.Query,
		Region: req.Region,
		Page:   req.Page,
		Sort:   domain.SortOrder(req.Sort),
		Limit:  req.Limit,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSourceSearchResponse(result))
}

// SourceCategory browses one source category page.
func (h *Handler) SourceCategory(c *gin.Context) {
	adapter, ok := h.lookupSource(c)
	if !ok {
		return
	}

	browser, capable := adapter.(sources.CategoryBrowser)
	if !capable {
		h.respondError(c, domain.ErrCapabilityUnsupported)
		return
	}

	region := c.Query("region")
	if region == "" {
		region = h.cfg.Aggregator.DefaultRegion
	}

	result, err := browser.Category(c.Request.Context(), c.Query("slug"), region, intQuery(c, "page", 1))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSourceSearchResponse(result))
}

// SourceCategories lists one source's category tree.
func (h *Handler) SourceCategories(c *gin.Context) {
	adapter, ok := h.lookupSource(c)
	if !ok {
		return
	}

	lister, capable := adapter.(sources.CategoryLister)
	if !capable {
		h.respondError(c, domain.ErrCapabilityUnsupported)
		return
	}

	categories, err := lister.Categories(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"source":     adapter.Name(),
		"categories": categories,
	})
}

// detailRequest is the JSON body of the product-detail endpoint.
type detailRequest struct {
	URL string `json:"url" binding:"required"`
}

// SourceDetail fetches one product's detail record.
func (h *Handler) SourceDetail(c *gin.Context) {
	adapter, ok := h.lookupSource(c)
	if !ok {
		return
	}

	fetcher, capable := adapter.(sources.DetailFetcher)
	if !capable {
		h.respondError(c, domain.ErrCapabilityUnsupported)
		return
	}

	var req detailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body: "+err.Error())
		return
	}

	raw, err := fetcher.Detail(c.Request.Context(), req.URL)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"source":  adapter.Name(),
		"product": toRawListingBody(*raw),
	})
}

// Sources lists the registered sources and their capabilities.
func (h *Handler) Sources(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sources": h.registry.Capabilities()})
}

// HealthCheck reports liveness.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": h.cfg.App.Name,
		"version": h.cfg.App.Version,
	})
}

// ReadinessCheck reports readiness. The engine holds no connections or
// caches to warm up, so a configured registry means ready.
func (h *Handler) ReadinessCheck(c *gin.Context) {
	if len(h.registry.All()) == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "no sources configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (h *Handler) bindSearchRequest(c *gin.Context) (SearchRequest, bool) {
	var req SearchRequest
	if c.Request.Method == http.MethodGet {
		req = SearchRequest{
			Query:     c.Query("q"),
			Region:    c.Query("region"),
			Limit:     intQuery(c, "limit", 0),
			Sort:      c.Query("sort"),
			MinRating: floatQuery(c, "min_rating"),
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body: "+err.Error())
		return SearchRequest{}, false
	}
	return req, true
}

func (h *Handler) toAggregatorRequest(req SearchRequest) aggregator.Request {
	limit := req.Limit
	if limit == 0 {
		limit = h.cfg.Aggregator.DefaultLimit
	}
	if max := h.cfg.Aggregator.MaxLimit; max > 0 && limit > max {
		limit = max
	}
	region := req.Region
	if region == "" {
		region = h.cfg.Aggregator.DefaultRegion
	}
	return aggregator.Request{
		Query:     req.Query,
		Region:    region,
		Limit:     limit,
		Sort:      domain.SortOrder(req.Sort),
		MinRating: req.MinRating,
	}
}

func (h *Handler) lookupSource(c *gin.Context) (sources.Adapter, bool) {
	adapter, err := h.registry.Get(domain.SourceID(c.Param("source")))
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}
	return adapter, true
}

func (h *Handler) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:     msg,
		Code:      "INVALID_REQUEST",
		Timestamp: time.Now(),
	})
}

// respondError maps pipeline errors to HTTP statuses. Partial failures
// never reach this point; only hard failures do.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "INTERNAL_ERROR"
	var failures []domain.PartialFailure

	var allFailed *domain.AllSourcesFailedError
	var upstream *domain.UpstreamError
	switch {
	case errors.Is(err, domain.ErrInvalidQuery), errors.Is(err, domain.ErrInvalidLimit):
		status = http.StatusBadRequest
		code = "INVALID_QUERY"
	case errors.Is(err, domain.ErrUnknownSource):
		status = http.StatusNotFound
		code = "UNKNOWN_SOURCE"
	case errors.Is(err, domain.ErrCapabilityUnsupported):
		status = http.StatusNotImplemented
		code = "CAPABILITY_UNSUPPORTED"
	case errors.As(err, &allFailed):
		status = http.StatusBadGateway
		code = "ALL_SOURCES_FAILED"
		failures = allFailed.Failures
	case errors.As(err, &upstream):
		status = http.StatusBadGateway
		code = "UPSTREAM_ERROR"
	case errors.Is(err, domain.ErrAdapterTimeout):
		status = http.StatusGatewayTimeout
		code = "SOURCE_TIMEOUT"
	}

	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "path", c.Request.URL.Path, "error", err)
	}

	c.JSON(status, ErrorResponse{
		Error:     err.Error(),
		Code:      code,
		Failures:  failures,
		Timestamp: time.Now(),
	})
}

func toSourceSearchResponse(result *domain.SourceResult) sourceSearchResponse {
	products := make([]rawListingBody, 0, len(result.Listings))
	for _, raw := range result.Listings {
		products = append(products, toRawListingBody(raw))
	}
	return sourceSearchResponse{
		Source:   result.Source,
		Page:     result.Page,
		Products: products,
		Count:    len(products),
		Total:    result.TotalCount,
		HasMore:  result.HasMore,
	}
}

func toRawListingBody(raw domain.RawListing) rawListingBody {
	return rawListingBody{
		ID:            raw.ID,
		Name:          raw.Name,
		Price:         raw.Price,
		OriginalPrice: raw.OriginalPrice,
		Discount:      raw.Discount,
		Rating:        raw.Rating,
		ReviewCount:   raw.ReviewCount,
		Brand:         raw.Brand,
		Currency:      raw.Currency,
		ImageURL:      firstNonEmptyString(raw.ImageURL, raw.ThumbURL),
		ProductURL:    firstNonEmptyString(raw.ProductURL, raw.ItemURL),
	}
}

func firstNonEmptyString(primary, alternate string) string {
	if primary != "" {
		return primary
	}
	return alternate
}

func intQuery(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func floatQuery(c *gin.Context, key string) float64 {
	if v := c.Query(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return 0
}
