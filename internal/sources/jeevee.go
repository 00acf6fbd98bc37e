package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bazarkhoj/bazarkhoj/internal/domain"
	"github.com/bazarkhoj/bazarkhoj/internal/logger"
)

// JeeveeConfig configures the Jeevee adapter.
type JeeveeConfig struct {
	// APIURL is the Jeevee product API base, e.g. https://api.jeevee.com.
	APIURL string
	// WebsiteURL is the storefront base used for product links.
	WebsiteURL string
	UserAgent  string
	Timeout    time.Duration
}

const jeeveeDefaultLimit = 20

// Jeevee is the adapter for jeevee.com, Nepal's health and lifestyle
// marketplace. Unlike Daraz it exposes a JSON API, so no HTML parsing is
// involved.
type Jeevee struct {
	cfg    JeeveeConfig
	client *http.Client
	log    logger.Interface
}

// Compile-time capability checks.
var (
	_ Adapter         = (*Jeevee)(nil)
	_ CategoryBrowser = (*Jeevee)(nil)
	_ CategoryLister  = (*Jeevee)(nil)
)

// NewJeevee creates a Jeevee adapter.
func NewJeevee(cfg JeeveeConfig, log logger.Interface) *Jeevee {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Jeevee{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log,
	}
}

// Name implements Adapter.
func (j *Jeevee) Name() domain.SourceID {
	return domain.SourceJeevee
}

// Search queries the Jeevee product API. Jeevee serves a single region, so
// q.Region is ignored.
func (j *Jeevee) Search(ctx context.Context, q Query) (*domain.SourceResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = jeeveeDefaultLimit
	}

	endpoint := fmt.Sprintf("%s/products?search=%s&page=%d&limit=%d",
		j.cfg.APIURL, url.QueryEscape(strings.TrimSpace(q.Term)), q.Page, limit)

	return j.fetchProducts(ctx, endpoint, q.Page)
}

// Category implements CategoryBrowser by filtering the products endpoint
// by category slug.
func (j *Jeevee) Category(ctx context.Context, slug, _ string, page int) (*domain.SourceResult, error) {
	if strings.TrimSpace(slug) == "" {
		return nil, fmt.Errorf("category slug must not be empty")
	}
	if page < 1 {
		page = 1
	}

	endpoint := fmt.Sprintf("%s/products?category=%s&page=%d&limit=%d",
		j.cfg.APIURL, url.QueryEscape(slug), page, jeeveeDefaultLimit)

	return j.fetchProducts(ctx, endpoint, page)
}

// Categories implements CategoryLister.
func (j *Jeevee) Categories(ctx context.Context) ([]domain.Category, error) {
	body, err := j.get(ctx, j.cfg.APIURL+"/categories")
	if err != nil {
		return nil, err
	}

	var payload []struct {
		ID   json.Number `json:"id"`
		Name string      `json:"name"`
		Slug string      `json:"slug"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &domain.UpstreamError{Source: domain.SourceJeevee, Message: "malformed categories payload"}
	}

	categories := make([]domain.Category, 0, len(payload))
	for _, c := range payload {
		categories = append(categories, domain.Category{
			ID:   c.ID.String(),
			Name: c.Name,
			Slug: c.Slug,
		})
	}
	return categories, nil
}

// jeeveeResponse is the product API envelope.
type jeeveeResponse struct {
	Data         []jeeveeProduct `json:"data"`
	TotalResults int             `json:"total_results"`
	Page         int             `json:"page"`
	TotalPages   int             `json:"total_pages"`
	HasNext      bool            `json:"has_next"`
}

// jeeveeProduct mirrors one product record of the Jeevee API.
type jeeveeProduct struct {
	ProductID json.Number         `json:"product_id"`
	Label     string              `json:"label"`
	Price     float64             `json:"price"`
	Discount  float64             `json:"discount"`
	Image     []map[string]string `json:"image"`
	Brand     struct {
		Name string `json:"name"`
	} `json:"brand"`
	ReviewAndRating struct {
		AvgRating   float64 `json:"avg_rating"`
		ReviewCount int     `json:"review_count"`
	} `json:"review_and_rating"`
	SeoDetails struct {
		Slug string `json:"slug"`
	} `json:"seo_details"`
	SoldOut              bool   `json:"sold_out"`
	ManufacturingCompany string `json:"manufacturing_company"`
}

func (j *Jeevee) fetchProducts(ctx context.Context, endpoint string, page int) (*domain.SourceResult, error) {
	body, err := j.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var payload jeeveeResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &domain.UpstreamError{Source: domain.SourceJeevee, Message: "malformed products payload"}
	}

	listings := make([]domain.RawListing, 0, len(payload.Data))
	for _, p := range payload.Data {
		listings = append(listings, j.toRawListing(p))
	}

	hasMore := payload.HasNext
	if !hasMore && payload.TotalPages > 0 {
		hasMore = page < payload.TotalPages
	}

	return &domain.SourceResult{
		Source:     domain.SourceJeevee,
		Page:       page,
		Listings:   listings,
		HasMore:    hasMore,
		TotalCount: payload.TotalResults,
	}, nil
}

func (j *Jeevee) toRawListing(p jeeveeProduct) domain.RawListing {
	name := p.Label
	if name == "" {
		name = "Product " + p.ProductID.String()
	}

	// The API reports the current price and a discount percent; the
	// original price is reconstructed from those two.
	price := strconv.FormatFloat(p.Price, 'f', -1, 64)
	originalPrice := ""
	discount := ""
	if p.Discount > 0 && p.Discount < 100 {
		discount = fmt.Sprintf("%g%%", p.Discount)
		originalPrice = strconv.FormatFloat(p.Price/(1-p.Discount/100), 'f', 2, 64)
	}

	rating := ""
	if p.ReviewAndRating.AvgRating > 0 {
		rating = strconv.FormatFloat(p.ReviewAndRating.AvgRating, 'f', -1, 64)
	}

	slug := p.SeoDetails.Slug
	if slug == "" {
		slug = slugify(name)
	}

	return domain.RawListing{
		ID:            p.ProductID.String(),
		Name:          name,
		Price:         price,
		OriginalPrice: originalPrice,
		Discount:      discount,
		Rating:        rating,
		ReviewCount:   p.ReviewAndRating.ReviewCount,
		Brand:         p.Brand.Name,
		Currency:      "NPR",
		ImageURL:      jeeveeImageURL(p.Image),
		ProductURL:    fmt.Sprintf("%s/products/%s-%s", j.cfg.WebsiteURL, slug, p.ProductID.String()),
	}
}

// jeeveeImageSizes is the preferred image size order: medium first, then
// the smaller and larger renditions.
var jeeveeImageSizes = []string{"512", "256", "1024"}

func jeeveeImageURL(images []map[string]string) string {
	if len(images) == 0 {
		return ""
	}
	for _, size := range jeeveeImageSizes {
		if u := images[0][size]; u != "" {
			return u
		}
	}
	return ""
}

func (j *Jeevee) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build jeevee request: %w", err)
	}
	req.Header.Set("User-Agent", j.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Origin", j.cfg.WebsiteURL)
	req.Header.Set("Referer", j.cfg.WebsiteURL+"/")

	resp, err := j.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jeevee request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.UpstreamError{Source: domain.SourceJeevee, StatusCode: resp.StatusCode}
	}

	const maxBodyBytes = 10 * 1024 * 1024
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read jeevee response: %w", err)
	}
	return body, nil
}

var (
	slugInvalid = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSpaces  = regexp.MustCompile(`[\s_]+`)
	slugDashes  = regexp.MustCompile(`-+`)
)

// slugify builds a URL-safe slug from a product name, for products whose
// SEO details carry none.
func slugify(name string) string {
	s := strings.ToLower(name)
	s = slugInvalid.ReplaceAllString(s, "")
	s = slugSpaces.ReplaceAllString(s, "-")
	s = slugDashes.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
