package asos

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cametumbling/crawlnode/internal/crawlctx"
	"github.com/cametumbling/crawlnode/internal/parser"
	"github.com/cametumbling/crawlnode/internal/proxyfetcher"
	"github.com/cametumbling/crawlnode/internal/schema"
	"github.com/cametumbling/crawlnode/internal/webutil"
)

func TestCanonicalURLStripsQueryOnProductPage(t *testing.T) {
	p := New(nil)
	got := p.CanonicalURL("https://www.asos.com/us/prd/12345/?clr=red#x")
	want := "https://www.asos.com/us/prd/12345/"
	if got != want {
		t.Fatalf("CanonicalURL = %q, want %q", got, want)
	}
}

func TestCanonicalURLLeavesNonProductPageAlone(t *testing.T) {
	p := New(nil)
	rawurl := "https://www.asos.com/us/women/cat/?cid=1000"
	if got := p.CanonicalURL(rawurl); got != rawurl {
		t.Fatalf("CanonicalURL = %q, want unchanged %q", got, rawurl)
	}
}

func TestAllowedDomainsAndVersion(t *testing.T) {
	p := New(nil)
	if p.Version() != 1 {
		t.Fatalf("Version = %d, want 1", p.Version())
	}
	domains := p.AllowedDomains()
	if len(domains) != 1 || domains[0] != "*.asos.com" {
		t.Fatalf("AllowedDomains = %v", domains)
	}
}

func newResponse(t *testing.T, rawurl, body string) *webutil.Response {
	t.Helper()
	req, err := webutil.NewRequest((&crawlctx.Context{}).Derive(crawlctx.JobIDKey, "J1"), "GET", rawurl, nil, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	header := webutil.NewHeader()
	header.Set("content-type", "text/html")
	return &webutil.Response{StatusCode: 200, Headers: header, Body: []byte(body), Request: req}
}

func TestParseProductPageFetchesStockInlineAndYieldsOneItem(t *testing.T) {
	body := `<html><script>
window.asos.pdp.config.product = {"id": 98765, "name": "Test Jacket", "brandName": "ASOS", "gender": "women", "isInStock": true, "variants": [{"variantId": 555}]};
window.asos.pdp.config.stockPriceApiUrl = '/api/product/catalogue/v3/stockprice';
</script></html>`
	resp := newResponse(t, "https://www.asos.com/us/prd/98765/", body)

	var sawStockRequest bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var proxyReq schema.ProxyRequest
		if err := json.NewDecoder(r.Body).Decode(&proxyReq); err != nil {
			t.Fatalf("decode proxy request: %v", err)
		}
		sawStockRequest = true

		stockBody, err := json.Marshal([]map[string]any{
			{
				"productPrice": map[string]any{"current": map[string]any{"value": 45.99}},
				"variants": []map[string]any{
					{
						"variantId": "555",
						"isInStock": true,
						"price": map[string]any{
							"current":  map[string]any{"value": 45.99},
							"previous": map[string]any{"value": 59.99},
						},
					},
				},
			},
		})
		if err != nil {
			t.Fatalf("marshal stock body: %v", err)
		}

		resp := schema.ProxyResponse{
			StatusCode: 200,
			Status:     "200 OK",
			Body:       stockBody,
			Request:    schema.ProxyResponseRequest{Method: proxyReq.Method, URL: proxyReq.URL},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	fetcher, err := proxyfetcher.New(srv.URL)
	if err != nil {
		t.Fatalf("proxyfetcher.New: %v", err)
	}

	p := New(fetcher)
	jobCtx := (&crawlctx.Context{}).Derive(crawlctx.JobIDKey, "J1")
	var yields []parser.Yield
	for y := range p.Parse(context.Background(), jobCtx, resp) {
		yields = append(yields, y)
	}

	if !sawStockRequest {
		t.Fatalf("parser never issued the stock/price fetch")
	}
	if len(yields) != 1 {
		t.Fatalf("got %d yields, want exactly 1 (one fully-populated product item)", len(yields))
	}
	if yields[0].Item == nil {
		t.Fatalf("yield is not an item: %+v", yields[0])
	}
	item, ok := yields[0].Item.(Product)
	if !ok {
		t.Fatalf("item type = %T, want Product", yields[0].Item)
	}
	if item.Title != "Test Jacket" || item.BrandName != "ASOS" || !item.InStock {
		t.Fatalf("item = %+v", item)
	}
	if item.PriceCurrent != 4599 {
		t.Fatalf("item.PriceCurrent = %d, want 4599", item.PriceCurrent)
	}
	if len(item.Variants) != 1 || item.Variants[0].PriceCurrent != 4599 || item.Variants[0].PricePrevious != 5999 || !item.Variants[0].InStock {
		t.Fatalf("item.Variants = %+v", item.Variants)
	}
}

func TestParseUnrecognizedPathYieldsUnsupportedError(t *testing.T) {
	resp := newResponse(t, "https://www.asos.com/help/contact-us", "<html></html>")
	p := New(nil)
	jobCtx := (&crawlctx.Context{}).Derive(crawlctx.JobIDKey, "J1")

	var yields []parser.Yield
	for y := range p.Parse(context.Background(), jobCtx, resp) {
		yields = append(yields, y)
	}
	if len(yields) != 1 || yields[0].Err == nil {
		t.Fatalf("yields = %+v, want a single error yield", yields)
	}
}
