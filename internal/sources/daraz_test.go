package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazarkhoj/bazarkhoj/internal/domain"
	"github.com/bazarkhoj/bazarkhoj/internal/logger"
)

const darazPageDataHTML = `<!DOCTYPE html>
<html><head><title>Search</title></head><body>
<script>
window.pageData = {"mods":{"listItems":[
  {"itemId":"100234","name":"Nike Air Max 270","price":"12999","originalPrice":15999,
   "discount":"19%","image":"//img.daraz.test/shoe.jpg","productUrl":"//www.daraz.test/products/i100234.html",
   "ratingScore":"4.6","review":"82","brandName":"Nike"},
  {"itemId":200456,"name":"Adidas Runner","priceShow":"Rs. 8,499",
   "itemUrl":"/products/i200456.html"}
]}};
</script>
</body></html>`

const darazCardsHTML = `<!DOCTYPE html>
<html><body>
<div data-qa-locator="product-item">
  <a href="/products/i300789.html" title="Puma Sandal">Puma Sandal</a>
  <span class="ooOxS">Rs. 2,199</span>
  <del class="WNoq3">Rs. 2,999</del>
  <img src="https://img.daraz.test/sandal.jpg"/>
</div>
</body></html>`

func newDarazTest(t *testing.T, handler http.Handler) (*Daraz, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	adapter := NewDaraz(DarazConfig{
		BaseURLs:  map[string]string{"np": srv.URL, "pk": srv.URL},
		UserAgent: "bazarkhoj-test",
		Timeout:   5 * time.Second,
	}, logger.NewNop())
	return adapter, srv
}

func TestDarazSearchPageData(t *testing.T) {
	t.Parallel()

	var gotPath string
	adapter, _ := newDarazTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.RequestURI()
		_, _ = w.Write([]byte(darazPageDataHTML))
	}))

	res, err := adapter.Search(context.Background(), Query{
		Term:   "nike shoes",
		Region: "np",
		Page:   2,
		Sort:   domain.SortPriceAsc,
	})
	require.NoError(t, err)

	assert.Equal(t, "/catalog/?q=nike+shoes&page=2&sort=priceasc", gotPath)
	assert.Equal(t, domain.SourceDaraz, res.Source)
	assert.Equal(t, 2, res.Page)
	assert.True(t, res.HasMore)
	require.Len(t, res.Listings, 2)

	first := res.Listings[0]
	assert.Equal(t, "100234", first.ID)
	assert.Equal(t, "Nike Air Max 270", first.Name)
	assert.Equal(t, "12999", first.Price)
	assert.Equal(t, "15999", first.OriginalPrice)
	assert.Equal(t, "19%", first.Discount)
	assert.Equal(t, "4.6", first.Rating)
	assert.Equal(t, 82, first.ReviewCount)
	assert.Equal(t, "Nike", first.Brand)
	assert.Equal(t, "NPR", first.Currency)
	assert.Equal(t, "https://img.daraz.test/shoe.jpg", first.ImageURL)
	assert.Equal(t, "https://www.daraz.test/products/i100234.html", first.ProductURL)

	// Numeric itemId and priceShow fallback.
	second := res.Listings[1]
	assert.Equal(t, "200456", second.ID)
	assert.Equal(t, "Rs. 8,499", second.Price)
}

func TestDarazSearchCardFallback(t *testing.T) {
	t.Parallel()

	adapter, srv := newDarazTest(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(darazCardsHTML))
	}))

	res, err := adapter.Search(context.Background(), Query{Term: "sandal", Region: "np", Page: 1})
	require.NoError(t, err)
	require.Len(t, res.Listings, 1)

	raw := res.Listings[0]
	assert.Equal(t, "Puma Sandal", raw.Name)
	assert.Equal(t, "Rs. 2,199", raw.Price)
	assert.Equal(t, "Rs. 2,999", raw.OriginalPrice)
	assert.Equal(t, srv.URL+"/products/i300789.html", raw.ProductURL)
	assert.Equal(t, "https://img.daraz.test/sandal.jpg", raw.ImageURL)
}

func TestDarazSearchLimit(t *testing.T) {
	t.Parallel()

	adapter, _ := newDarazTest(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(darazPageDataHTML))
	}))

	res, err := adapter.Search(context.Background(), Query{Term: "nike", Region: "np", Page: 1, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, res.Listings, 1)
}

func TestDarazSearchAntiBot(t *testing.T) {
	t.Parallel()

	adapter, _ := newDarazTest(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><script>var x5secdata="challenge";</script></html>`))
	}))

	_, err := adapter.Search(context.Background(), Query{Term: "nike", Region: "np", Page: 1})
	require.Error(t, err)

	var upstream *domain.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, domain.SourceDaraz, upstream.Source)
	assert.Contains(t, upstream.Message, "anti-bot")
}

func TestDarazSearchUpstreamStatus(t *testing.T) {
	t.Parallel()

	adapter, _ := newDarazTest(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := adapter.Search(context.Background(), Query{Term: "nike", Region: "np", Page: 1})
	require.Error(t, err)

	var upstream *domain.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusServiceUnavailable, upstream.StatusCode)
}

func TestDarazSearchValidation(t *testing.T) {
	t.Parallel()

	adapter, _ := newDarazTest(t, http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected for invalid queries")
	}))

	_, err := adapter.Search(context.Background(), Query{Term: "  ", Region: "np", Page: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidQuery)

	_, err = adapter.Search(context.Background(), Query{Term: "nike", Region: "xx", Page: 1})
	assert.ErrorContains(t, err, "no daraz storefront")
}

func TestDarazCategory(t *testing.T) {
	t.Parallel()

	var gotPath string
	adapter, _ := newDarazTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.RequestURI()
		_, _ = w.Write([]byte(darazPageDataHTML))
	}))

	res, err := adapter.Category(context.Background(), "mens-shoes", "np", 3)
	require.NoError(t, err)
	assert.Equal(t, "/mens-shoes/?page=3", gotPath)
	assert.Equal(t, 3, res.Page)
	assert.Len(t, res.Listings, 2)

	_, err = adapter.Category(context.Background(), "  ", "np", 1)
	assert.ErrorContains(t, err, "slug")
}

func TestDarazDetailJSONLD(t *testing.T) {
	t.Parallel()

	page := `<html><head>
<script type="application/ld+json">
{"@type":"Product","name":"Nike Air Max 270","image":"https://img.daraz.test/shoe.jpg",
 "offers":{"price":12999,"priceCurrency":"NPR"},
 "brand":{"name":"Nike"},
 "aggregateRating":{"ratingValue":"4.6","reviewCount":"82"}}
</script>
</head><body></body></html>`

	adapter, srv := newDarazTest(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(page))
	}))

	raw, err := adapter.Detail(context.Background(), srv.URL+"/products/i100234.html")
	require.NoError(t, err)
	assert.Equal(t, "Nike Air Max 270", raw.Name)
	assert.Equal(t, "12999", raw.Price)
	assert.Equal(t, "4.6", raw.Rating)
	assert.Equal(t, 82, raw.ReviewCount)
	assert.Equal(t, "Nike", raw.Brand)
	assert.Equal(t, "NPR", raw.Currency)
}

func TestDarazDetailHTMLFallback(t *testing.T) {
	t.Parallel()

	page := `<html><body>
<h1 class="pdp-mod-product-badge-title">Adidas Runner</h1>
<span class="pdp-price">Rs. 8,499</span>
</body></html>`

	adapter, srv := newDarazTest(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(page))
	}))

	raw, err := adapter.Detail(context.Background(), srv.URL+"/products/i200456.html")
	require.NoError(t, err)
	assert.Equal(t, "Adidas Runner", raw.Name)
	assert.Equal(t, "Rs. 8,499", raw.Price)
}

func TestFlexString(t *testing.T) {
	t.Parallel()

	var payload struct {
		A flexString `json:"a"`
		B flexString `json:"b"`
		C flexString `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"12999","b":15999,"c":null}`), &payload))
	assert.Equal(t, flexString("12999"), payload.A)
	assert.Equal(t, flexString("15999"), payload.B)
	assert.Equal(t, flexString(""), payload.C)
}
