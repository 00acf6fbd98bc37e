package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	colly "github.com/gocolly/colly/v2"

	"github.com/bazarkhoj/bazarkhoj/internal/domain"
	"github.com/bazarkhoj/bazarkhoj/internal/logger"
)

// DarazConfig configures the Daraz adapter.
type DarazConfig struct {
	// BaseURLs maps region codes to storefront base URLs.
	BaseURLs  map[string]string
	UserAgent string
	Timeout   time.Duration
}

// regionCurrencies maps Daraz regions to their display currencies.
var regionCurrencies = map[string]string{
	"np": "NPR",
	"pk": "PKR",
	"bd": "BDT",
	"lk": "LKR",
}

// darazSortParams maps the common sort orders to Daraz catalog query
// parameters.
var darazSortParams = map[domain.SortOrder]string{
	domain.SortRelevance: "popularity",
	domain.SortPriceAsc:  "priceasc",
	domain.SortPriceDesc: "pricedesc",
	domain.SortNewest:    "recent",
}

// Embedded JSON extraction patterns, tried in order. Daraz renders search
// results into a script tag before hydrating the page.
var darazDataPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)window\.pageData\s*=\s*(\{.*?\});?\s*</script>`),
	regexp.MustCompile(`(?s)"listItems"\s*:\s*(\[.*?\])\s*,\s*"`),
	regexp.MustCompile(`(?s)window\.__INITIAL_STATE__\s*=\s*(\{.*?\});?\s*</script>`),
}

// Daraz is the adapter for the Daraz marketplace (daraz.com.np, daraz.pk,
// daraz.com.bd, daraz.lk).
type Daraz struct {
	cfg DarazConfig
	log logger.Interface
}

// Compile-time capability checks.
var (
	_ Adapter         = (*Daraz)(nil)
	_ CategoryBrowser = (*Daraz)(nil)
	_ DetailFetcher   = (*Daraz)(nil)
)

// NewDaraz creates a Daraz adapter.
func NewDaraz(cfg DarazConfig, log logger.Interface) *Daraz {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Daraz{cfg: cfg, log: log}
}

// Name implements Adapter.
func (d *Daraz) Name() domain.SourceID {
	return domain.SourceDaraz
}

// Search fetches one page of catalog search results.
func (d *Daraz) Search(ctx context.Context, q Query) (*domain.SourceResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	base, err := d.baseURL(q.Region)
	if err != nil {
		return nil, err
	}

	sortParam := darazSortParams[q.Sort]
	if sortParam == "" {
		sortParam = darazSortParams[domain.SortRelevance]
	}

	pageURL := fmt.Sprintf("%s/catalog/?q=%s&page=%d&sort=%s",
		base, url.QueryEscape(strings.TrimSpace(q.Term)), q.Page, sortParam)

	body, err := d.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	listings, err := d.parseCatalogPage(body, base, q.Region)
	if err != nil {
		return nil, err
	}
	if q.Limit > 0 && len(listings) > q.Limit {
		listings = listings[:q.Limit]
	}

	return &domain.SourceResult{
		Source:   domain.SourceDaraz,
		Page:     q.Page,
		Listings: listings,
		HasMore:  len(listings) > 0,
	}, nil
}

// Category implements CategoryBrowser by browsing a category slug page.
func (d *Daraz) Category(ctx context.Context, slug, region string, page int) (*domain.SourceResult, error) {
	if strings.TrimSpace(slug) == "" {
		return nil, fmt.Errorf("category slug must not be empty")
	}
	if page < 1 {
		page = 1
	}

	base, err := d.baseURL(region)
	if err != nil {
		return nil, err
	}

	pageURL := fmt.Sprintf("%s/%s/?page=%d", base, url.PathEscape(strings.Trim(slug, "/")), page)
	body, err := d.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	listings, err := d.parseCatalogPage(body, base, region)
	if err != nil {
		return nil, err
	}

	return &domain.SourceResult{
		Source:   domain.SourceDaraz,
		Page:     page,
		Listings: listings,
		HasMore:  len(listings) > 0,
	}, nil
}

// Detail implements DetailFetcher. It prefers the JSON-LD product block and
// falls back to scraping the product page markup.
func (d *Daraz) Detail(ctx context.Context, productURL string) (*domain.RawListing, error) {
	if !strings.HasPrefix(productURL, "http") {
		base, err := d.baseURL("")
		if err != nil {
			return nil, err
		}
		productURL = base + "/products/" + strings.TrimPrefix(productURL, "/")
	}

	body, err := d.fetch(ctx, productURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &domain.UpstreamError{Source: domain.SourceDaraz, Message: "unparseable product page"}
	}

	if raw := parseDarazJSONLD(doc); raw != nil {
		raw.ProductURL = productURL
		return raw, nil
	}

	raw := &domain.RawListing{
		Name:       strings.TrimSpace(doc.Find(".pdp-mod-product-badge-title, h1").First().Text()),
		Price:      strings.TrimSpace(doc.Find(`.pdp-price, [class*="price-current"]`).First().Text()),
		ProductURL: productURL,
	}
	if raw.Name == "" {
		return nil, &domain.UpstreamError{Source: domain.SourceDaraz, Message: "product not found on page"}
	}
	return raw, nil
}

func (d *Daraz) baseURL(region string) (string, error) {
	if region == "" {
		region = "np"
	}
	base, ok := d.cfg.BaseURLs[region]
	if !ok {
		return "", fmt.Errorf("no daraz storefront for region %q", region)
	}
	return base, nil
}

// fetch retrieves a page through a fresh colly collector. A new collector
// per call keeps adapter instances stateless under concurrent use.
func (d *Daraz) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timeout := d.cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}

	c := colly.NewCollector(
		colly.UserAgent(d.cfg.UserAgent),
		colly.IgnoreRobotsTxt(),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(timeout)

	var (
		body       []byte
		statusCode int
		fetchErr   error
	)
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
		statusCode = r.StatusCode
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			statusCode = r.StatusCode
		}
		fetchErr = err
	})

	if err := c.Visit(pageURL); err != nil {
		fetchErr = err
	}
	c.Wait()

	if fetchErr != nil {
		if statusCode >= 400 {
			return nil, &domain.UpstreamError{Source: domain.SourceDaraz, StatusCode: statusCode}
		}
		return nil, fmt.Errorf("daraz fetch failed: %w", fetchErr)
	}

	if isAntiBotPage(body) {
		return nil, &domain.UpstreamError{
			Source:  domain.SourceDaraz,
			Message: "anti-bot protection active",
		}
	}
	return body, nil
}

// isAntiBotPage detects the challenge page Daraz serves instead of results.
func isAntiBotPage(body []byte) bool {
	return bytes.Contains(body, []byte("x5secdata")) ||
		bytes.Contains(bytes.ToLower(body), []byte("captcha"))
}

// parseCatalogPage extracts listings from a catalog page, preferring the
// embedded JSON payload and falling back to the rendered product cards.
func (d *Daraz) parseCatalogPage(body []byte, base, region string) ([]domain.RawListing, error) {
	currency := regionCurrencies[region]

	if listings := extractDarazPageData(body, base, currency); len(listings) > 0 {
		return listings, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &domain.UpstreamError{Source: domain.SourceDaraz, Message: "unparseable catalog page"}
	}
	return parseDarazCards(doc, base, currency), nil
}

// darazItem mirrors one product entry of the embedded catalog JSON. The
// flexible fields absorb upstream type drift between string and number.
type darazItem struct {
	ItemID            flexString `json:"itemId"`
	NID               flexString `json:"nid"`
	ID                flexString `json:"id"`
	Name              string     `json:"name"`
	Title             string     `json:"title"`
	Price             flexString `json:"price"`
	PriceShow         flexString `json:"priceShow"`
	SalePrice         flexString `json:"salePrice"`
	OriginalPrice     flexString `json:"originalPrice"`
	OriginalPriceShow flexString `json:"originalPriceShow"`
	Discount          flexString `json:"discount"`
	DiscountShow      flexString `json:"discountShow"`
	Image             string     `json:"image"`
	Img               string     `json:"img"`
	ThumbURL          string     `json:"thumbUrl"`
	ProductURL        string     `json:"productUrl"`
	ItemURL           string     `json:"itemUrl"`
	RatingScore       flexString `json:"ratingScore"`
	Rating            flexString `json:"rating"`
	Review            flexString `json:"review"`
	ReviewCount       flexString `json:"reviewCount"`
	BrandName         string     `json:"brandName"`
}

type darazPageData struct {
	Mods struct {
		ListItems []darazItem `json:"listItems"`
	} `json:"mods"`
	ListItems []darazItem `json:"listItems"`
	Items     []darazItem `json:"items"`
}

func extractDarazPageData(body []byte, base, currency string) []domain.RawListing {
	for _, pattern := range darazDataPatterns {
		match := pattern.FindSubmatch(body)
		if match == nil {
			continue
		}

		var items []darazItem
		payload := match[1]
		if bytes.HasPrefix(bytes.TrimSpace(payload), []byte("[")) {
			if err := json.Unmarshal(payload, &items); err != nil {
				continue
			}
		} else {
			var page darazPageData
			if err := json.Unmarshal(payload, &page); err != nil {
				continue
			}
			switch {
			case len(page.Mods.ListItems) > 0:
				items = page.Mods.ListItems
			case len(page.ListItems) > 0:
				items = page.ListItems
			default:
				items = page.Items
			}
		}

		listings := make([]domain.RawListing, 0, len(items))
		for _, item := range items {
			raw := item.toRawListing(base, currency)
			if raw.Name != "" {
				listings = append(listings, raw)
			}
		}
		if len(listings) > 0 {
			return listings
		}
	}
	return nil
}

func (it darazItem) toRawListing(base, currency string) domain.RawListing {
	reviewCount, _ := strconv.Atoi(string(firstNonEmptyFlex(it.Review, it.ReviewCount)))

	productURL := it.ProductURL
	itemURL := it.ItemURL
	if productURL == "" && itemURL == "" && it.ItemID != "" {
		itemURL = fmt.Sprintf("/products/i%s.html", it.ItemID)
	}

	return domain.RawListing{
		ID:            string(firstNonEmptyFlex(it.ItemID, it.NID, it.ID)),
		Name:          firstNonEmpty(it.Name, it.Title),
		Price:         string(firstNonEmptyFlex(it.Price, it.PriceShow, it.SalePrice)),
		OriginalPrice: string(firstNonEmptyFlex(it.OriginalPrice, it.OriginalPriceShow)),
		Discount:      string(firstNonEmptyFlex(it.Discount, it.DiscountShow)),
		Rating:        string(firstNonEmptyFlex(it.RatingScore, it.Rating)),
		ReviewCount:   reviewCount,
		Brand:         it.BrandName,
		Currency:      currency,
		ImageURL:      firstNonEmpty(it.Image, it.Img),
		ThumbURL:      it.ThumbURL,
		ProductURL:    absoluteURL(base, productURL),
		ItemURL:       absoluteURL(base, itemURL),
	}
}

// Card selectors for the rendered-HTML fallback, in priority order. Daraz
// rotates its class names; the data attribute is the most stable.
var darazCardSelectors = []string{
	`[data-qa-locator="product-item"]`,
	"div.Bm3ON",
	"div.gridItem",
	`[data-tracking="product-card"]`,
	`div[class*="product-card"]`,
}

func parseDarazCards(doc *goquery.Document, base, currency string) []domain.RawListing {
	for _, selector := range darazCardSelectors {
		cards := doc.Find(selector)
		if cards.Length() == 0 {
			continue
		}

		listings := make([]domain.RawListing, 0, cards.Length())
		cards.Each(func(_ int, card *goquery.Selection) {
			raw := parseDarazCard(card, base, currency)
			if raw.Name != "" {
				listings = append(listings, raw)
			}
		})
		if len(listings) > 0 {
			return listings
		}
	}
	return nil
}

func parseDarazCard(card *goquery.Selection, base, currency string) domain.RawListing {
	link, _ := card.Find(`a[href*="/products/"]`).First().Attr("href")
	if link == "" {
		link, _ = card.Find("a").First().Attr("href")
	}

	nameEl := card.Find(`.RfADt a, [class*="title"], h2 a, a[title]`).First()
	name := strings.TrimSpace(nameEl.Text())
	if name == "" {
		name, _ = nameEl.Attr("title")
	}

	img := card.Find("img").First()
	image, _ := img.Attr("src")
	if image == "" {
		image, _ = img.Attr("data-src")
	}

	return domain.RawListing{
		Name:          name,
		Price:         strings.TrimSpace(card.Find(`.ooOxS, [class*="price"], span[class*="currency"]`).First().Text()),
		OriginalPrice: strings.TrimSpace(card.Find(".WNoq3, del").First().Text()),
		Discount:      strings.TrimSpace(card.Find(`.IcOsH, [class*="discount"]`).First().Text()),
		Rating:        strings.TrimSpace(card.Find(`[class*="rating"]`).First().Text()),
		Currency:      currency,
		ImageURL:      image,
		ProductURL:    absoluteURL(base, link),
	}
}

// darazJSONLD mirrors the schema.org Product block on detail pages.
type darazJSONLD struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Offers      struct {
		Price         flexString `json:"price"`
		PriceCurrency string     `json:"priceCurrency"`
	} `json:"offers"`
	Brand struct {
		Name string `json:"name"`
	} `json:"brand"`
	AggregateRating struct {
		RatingValue flexString `json:"ratingValue"`
		ReviewCount flexString `json:"reviewCount"`
	} `json:"aggregateRating"`
}

func parseDarazJSONLD(doc *goquery.Document) *domain.RawListing {
	var result *domain.RawListing
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		payload := []byte(s.Text())

		var block darazJSONLD
		if bytes.HasPrefix(bytes.TrimSpace(payload), []byte("[")) {
			var blocks []darazJSONLD
			if err := json.Unmarshal(payload, &blocks); err != nil || len(blocks) == 0 {
				return true
			}
			block = blocks[0]
		} else if err := json.Unmarshal(payload, &block); err != nil {
			return true
		}
		if block.Name == "" {
			return true
		}

		reviewCount, _ := strconv.Atoi(string(block.AggregateRating.ReviewCount))
		result = &domain.RawListing{
			Name:        block.Name,
			Price:       string(block.Offers.Price),
			Rating:      string(block.AggregateRating.RatingValue),
			ReviewCount: reviewCount,
			Brand:       block.Brand.Name,
			Currency:    block.Offers.PriceCurrency,
			ImageURL:    block.Image,
		}
		return false
	})
	return result
}

// flexString unmarshals JSON values that upstreams emit as either strings
// or numbers.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	*s = flexString(data)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonEmptyFlex(values ...flexString) flexString {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func absoluteURL(base, href string) string {
	if href == "" || strings.HasPrefix(href, "http") {
		return href
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return base + "/" + strings.TrimPrefix(href, "/")
}
