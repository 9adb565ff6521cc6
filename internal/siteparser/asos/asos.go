// Package asos is a reference site-specific parser implementing
// internal/parser.Parser for asos.com, grounded on the original Python
// crawler (original_source/src/com/asos/__init__.py): category listing
// pages, paginated product-list pages embedding a JSON blob in a <script>
// tag, and product detail pages that fetch the stock/price endpoint
// inline through the parser's own proxy-fetcher client before yielding
// the single, fully-populated product Item.
package asos

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cametumbling/crawlnode/internal/crawlctx"
	"github.com/cametumbling/crawlnode/internal/idgen"
	"github.com/cametumbling/crawlnode/internal/parser"
	"github.com/cametumbling/crawlnode/internal/proxyfetcher"
	"github.com/cametumbling/crawlnode/internal/rpcerr"
	"github.com/cametumbling/crawlnode/internal/schema"
	"github.com/cametumbling/crawlnode/internal/webutil"
)

// id and version mirror the original crawler's registration constants
// (Crawler.__init__("701fdaa85a5a18866ccbb357ad2ccff9", 1, ...)).
const (
	id      = "701fdaa85a5a18866ccbb357ad2ccff9"
	version = 1
)

var (
	categoryPathMatcher  = regexp.MustCompile(`^(/[a-z0-9_-]+)?/(women|men)(/[a-z0-9_-]+){1,6}/cat/?$`)
	productGroupMatcher  = regexp.MustCompile(`^(/[a-z0-9_-]+)?(/[a-z0-9_-]+){2}/grp/[0-9]+/?$`)
	productPathMatcher   = regexp.MustCompile(`^(/[a-z0-9_-]+)?(/[a-z0-9_-]+){0,2}/prd/[0-9]+/?$`)
	productsDataPattern  = regexp.MustCompile(`window\.asos\.plp\._data\s*=\s*JSON\.parse\('(.*?)'\);`)
	productDetailPattern = regexp.MustCompile(`window\.asos\.pdp\.config\.product\s*=\s*({[^;]+});`)
	stockPriceURLPattern = regexp.MustCompile(`window\.asos\.pdp\.config\.stockPriceApiUrl\s*=\s*'(/api/product/catalogue/[^']+)'\s*;`)
)

// Parser implements parser.Parser for asos.com. It holds the same kind of
// proxy-fetcher client the worker runtime uses, for the secondary
// stock/price fetch parseProduct issues on its own behalf (original
// __init__.py's ASOS.__init__(self, httpClient: ProxyClient, ...)).
type Parser struct {
	fetcher *proxyfetcher.Client
}

// New returns a ready-to-use asos Parser backed by fetcher for its own
// secondary fetches.
func New(fetcher *proxyfetcher.Client) *Parser { return &Parser{fetcher: fetcher} }

func (p *Parser) ID() string            { return id }
func (p *Parser) Version() int          { return version }
func (p *Parser) AllowedDomains() []string { return []string{"*.asos.com"} }

// CrawlOptions mirrors the original crawler's constructor options: headless
// rendering, session init, medium reliability, and a fixed cookie jar
// scoped to path "/".
func (p *Parser) CrawlOptions(u *webutil.URL) schema.CrawlOptions {
	return schema.CrawlOptions{
		EnableHeadless:    true,
		EnableSessionInit: true,
		Reliability:       schema.ReliabilityMedium,
		Cookies: []schema.Cookie{
			{Name: "geocountry", Value: "US", Path: "/"},
			{Name: "browseCountry", Value: "US", Path: "/"},
			{Name: "browseCurrency", Value: "USD", Path: "/"},
			{Name: "browseLanguage", Value: "en-US", Path: "/"},
			{Name: "browseSizeSchema", Value: "US", Path: "/"},
			{Name: "storeCode", Value: "US", Path: "/"},
			{Name: "currency", Value: "2", Path: "/"},
		},
	}
}

// CanonicalURL strips query and fragment from product and product-group
// pages, defaulting a missing scheme/host to https://www.asos.com
// (original __init__.py's CanonicalUrl).
func (p *Parser) CanonicalURL(rawurl string) string {
	u, err := webutil.ParseURL(rawurl)
	if err != nil {
		return rawurl
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	if u.Host == "" {
		u.Host = "www.asos.com"
	}
	if productPathMatcher.MatchString(u.Path) || productGroupMatcher.MatchString(u.Path) {
		u.RawQuery = ""
		u.Fragment = ""
		return u.String()
	}
	return rawurl
}

// Parse dispatches on the response's path, matching the original crawler's
// Parse method's if/elif chain. Every send onto out is guarded against ctx
// cancellation so the goroutine cannot block forever and leak if the
// runtime stops draining the channel early (§5 "stop iterating the parser
// ... at its next suspension point").
func (p *Parser) Parse(ctx context.Context, jobCtx *crawlctx.Context, resp *webutil.Response) <-chan parser.Yield {
	out := make(chan parser.Yield)
	go func() {
		defer close(out)
		path := strings.TrimRight(resp.RawURL().Path, "/")
		switch {
		case path == "" || path == "/us/women" || path == "/us/men":
			p.parseCategories(ctx, jobCtx, resp, out)
		case categoryPathMatcher.MatchString(path):
			p.parseProductsHTML(ctx, jobCtx, resp, out)
		case productPathMatcher.MatchString(path):
			p.parseProduct(ctx, jobCtx, resp, out)
		default:
			send(ctx, out, parser.FromError(rpcerr.ErrUnsupportedPath))
		}
	}()
	return out
}

// send attempts to deliver y on out, yielding to ctx cancellation instead
// of blocking forever when the runtime has stopped reading from out. It
// reports whether y was actually sent.
func send(ctx context.Context, out chan<- parser.Yield, y parser.Yield) bool {
	select {
	case out <- y:
		return true
	case <-ctx.Done():
		return false
	}
}

// parseCategories walks the primary navigation, yielding a sub-request per
// category link found, tagged with MainCategory/Category/SubCategory
// sharing data (original __init__.py's parseCategories).
func (p *Parser) parseCategories(ctx context.Context, jobCtx *crawlctx.Context, resp *webutil.Response, out chan<- parser.Yield) {
	sel := resp.Selector()
	if sel == nil {
		send(ctx, out, parser.FromError(rpcerr.Internalf("category page has no parsable body")))
		return
	}
	for _, nav := range sel.FindAll("button") {
		dataID := webutil.Attr(nav, "data-id")
		if dataID == "" {
			continue
		}
		category := webutil.Text(nav)
		for _, a := range sel.FindAll("a") {
			href := webutil.Attr(a, "href")
			if href == "" || strings.Contains(href, "/gift-vouchers") {
				continue
			}
			u, err := webutil.ParseURL(href)
			if err != nil || !categoryPathMatcher.MatchString(u.Path) {
				continue
			}
			mainCategory := "women"
			if strings.HasPrefix(u.Path, "/us/men") {
				mainCategory = "men"
			}
			override := jobCtx.
				Derive(crawlctx.TracingIDKey, idgen.New()).
				Derive("MainCategory", mainCategory).
				Derive("Category", category).
				Derive("SubCategory", webutil.Text(a))

			req, err := webutil.NewRequest(jobCtx, "GET", u.String(), nil, nil)
			if err != nil {
				if !send(ctx, out, parser.FromError(err)) {
					return
				}
				continue
			}
			if !send(ctx, out, parser.FromRequest(req).WithOverride(override)) {
				return
			}
		}
	}
}

// plpData mirrors the shape read out of window.asos.plp._data in
// parseProductsHTML.
type plpData struct {
	Search struct {
		Query    map[string]any `json:"query"`
		Products []struct {
			URL string `json:"url"`
		} `json:"products"`
	} `json:"search"`
}

// parseProductsHTML extracts the embedded product-list JSON blob, yields a
// sub-request per product, and yields one more sub-request for the next
// page (original __init__.py's parseProductsHTML).
func (p *Parser) parseProductsHTML(ctx context.Context, jobCtx *crawlctx.Context, resp *webutil.Response, out chan<- parser.Yield) {
	matches := productsDataPattern.FindStringSubmatch(string(resp.Body))
	if len(matches) < 2 {
		send(ctx, out, parser.FromError(fmt.Errorf("extract json from product list %s failed", resp.RawURL().String())))
		return
	}
	var data plpData
	if err := json.Unmarshal([]byte(matches[1]), &data); err != nil {
		send(ctx, out, parser.FromError(fmt.Errorf("decode product list json: %w", err)))
		return
	}

	cid := fmt.Sprintf("%v", data.Search.Query["cid"])
	index := jobCtx.GetInt(crawlctx.IndexKey) + 1
	for _, prod := range data.Search.Products {
		href := fmt.Sprintf("/us%si&cid=%s", prod.URL, cid)
		override := jobCtx.Derive(crawlctx.IndexKey, index)
		req, err := webutil.NewRequest(jobCtx, "GET", href, nil, nil)
		var y parser.Yield
		if err != nil {
			y = parser.FromError(err)
		} else {
			y = parser.FromRequest(req).WithOverride(override)
		}
		if !send(ctx, out, y) {
			return
		}
		index++
	}

	u := resp.URL().Clone()
	u.Path = "/api/product/search/v2/categories/" + cid
	vals := u.Query()
	for k, v := range data.Search.Query {
		if k == "cid" || k == "page" {
			continue
		}
		vals.Set(k, fmt.Sprintf("%v", v))
	}
	vals.Set("offset", strconv.Itoa(len(data.Search.Products)))
	vals.Set("limit", "72")
	u.RawQuery = vals.Encode()

	override := jobCtx.Derive(crawlctx.IndexKey, index)
	req, err := webutil.NewRequest(jobCtx, "GET", u.String(), nil, nil)
	if err != nil {
		send(ctx, out, parser.FromError(err))
		return
	}
	send(ctx, out, parser.FromRequest(req).WithOverride(override))
}

// productDetail is the subset of the embedded product JSON this parser
// reads.
type productDetail struct {
	ID        json.Number `json:"id"`
	Name      string      `json:"name"`
	BrandName string      `json:"brandName"`
	Gender    string      `json:"gender"`
	IsInStock bool        `json:"isInStock"`
	Variants  []struct {
		VariantID json.Number `json:"variantId"`
	} `json:"variants"`
}

// Product is the item payload this parser yields for a product detail
// page, a trimmed stand-in for the original's protobuf Product message
// (spec.md §1 treats generated item schemas as given). PriceCurrent and
// Variants are only populated once the stock/price fetch in parseProduct
// succeeds.
type Product struct {
	SourceID     string            `json:"sourceId"`
	CrawlURL     string            `json:"crawlUrl"`
	CanonicalURL string            `json:"canonicalUrl"`
	Title        string            `json:"title"`
	BrandName    string            `json:"brandName"`
	CrowdType    string            `json:"crowdType"`
	InStock      bool             `json:"inStock"`
	PriceCurrent int              `json:"priceCurrent"`
	Variants     []ProductVariant `json:"variants,omitempty"`
}

// ProductVariant carries the per-SKU stock/price facts the stock/price
// endpoint reports (original __init__.py's per-variant price/isInStock
// fields).
type ProductVariant struct {
	SourceID      string `json:"sourceId"`
	InStock       bool   `json:"inStock"`
	PriceCurrent  int    `json:"priceCurrent"`
	PricePrevious int    `json:"pricePrevious"`
}

// stockPriceEntry is the shape of the stock/price endpoint's JSON array
// response body (sp["productPrice"]["current"]["value"],
// sp["variants"][n]["price"]["current"|"previous"]["value"],
// sp["variants"][n]["isInStock"] in the original).
type stockPriceEntry struct {
	ProductPrice struct {
		Current struct {
			Value float64 `json:"value"`
		} `json:"current"`
	} `json:"productPrice"`
	Variants []struct {
		VariantID json.Number `json:"variantId"`
		IsInStock bool        `json:"isInStock"`
		Price     struct {
			Current struct {
				Value float64 `json:"value"`
			} `json:"current"`
			Previous struct {
				Value float64 `json:"value"`
			} `json:"previous"`
		} `json:"price"`
	} `json:"variants"`
}

// parseProduct extracts the embedded product-detail JSON, fetches the
// stock/price endpoint inline through the parser's own fetcher, and
// yields a single fully-populated Product item (original __init__.py's
// parseProduct: stock/price is fetched via self._httpClient.do(ctx, req,
// opts) in-process, never as a sub-request of its own).
func (p *Parser) parseProduct(ctx context.Context, jobCtx *crawlctx.Context, resp *webutil.Response, out chan<- parser.Yield) {
	body := string(resp.Body)

	detailMatch := productDetailPattern.FindStringSubmatch(body)
	if len(detailMatch) < 2 {
		send(ctx, out, parser.FromError(fmt.Errorf("extract product detail from %s failed", resp.RawURL().String())))
		return
	}
	var detail productDetail
	if err := json.Unmarshal([]byte(detailMatch[1]), &detail); err != nil {
		send(ctx, out, parser.FromError(fmt.Errorf("decode product detail: %w", err)))
		return
	}

	stockMatch := stockPriceURLPattern.FindStringSubmatch(body)
	if len(stockMatch) < 2 {
		send(ctx, out, parser.FromError(fmt.Errorf("extract product stock url from %s failed", resp.RawURL().String())))
		return
	}

	stockURL := fmt.Sprintf("%s://%s%s", resp.URL().Scheme, resp.URL().Host, stockMatch[1])
	u, err := webutil.ParseURL(stockURL)
	if err != nil {
		send(ctx, out, parser.FromError(err))
		return
	}
	vals := u.Query()
	vals.Set("store", "US")
	vals.Set("currency", "USD")
	u.RawQuery = vals.Encode()

	opts := p.CrawlOptions(u)
	headers := webutil.NewHeader()
	for k, v := range opts.Headers {
		headers.Set(k, v)
	}
	headers.Set("accept-encoding", "gzip, deflate, br")
	headers.Set("accept", "*/*")
	headers.Set("referer", resp.URL().String())
	headers.Set("user-agent", resp.Request.Headers.Get("user-agent"))

	stockReq, err := webutil.NewRequest(jobCtx, "GET", u.String(), nil, headers)
	if err != nil {
		send(ctx, out, parser.FromError(err))
		return
	}

	if p.fetcher == nil {
		send(ctx, out, parser.FromError(rpcerr.Internalf("asos parser has no fetcher configured for stock/price lookup")))
		return
	}

	fetchOpts := proxyfetcher.RequestOptions{
		EnableProxy:    true,
		EnableHeadless: opts.EnableHeadless,
		Reliability:    opts.Reliability,
	}
	stockResp, err := p.fetcher.Do(ctx, stockReq, fetchOpts)
	if err != nil {
		send(ctx, out, parser.FromError(fmt.Errorf("fetch stock/price for %s failed: %w", resp.RawURL().String(), err)))
		return
	}
	if stockResp.StatusCode != 200 {
		send(ctx, out, parser.FromError(fmt.Errorf("stock/price fetch for %s returned status %d", resp.RawURL().String(), stockResp.StatusCode)))
		return
	}

	var stocks []stockPriceEntry
	if err := json.Unmarshal(stockResp.Body, &stocks); err != nil || len(stocks) == 0 {
		send(ctx, out, parser.FromError(fmt.Errorf("decode stock/price response for %s failed", resp.RawURL().String())))
		return
	}
	sp := stocks[0]

	variantsByID := make(map[string]ProductVariant, len(sp.Variants))
	for _, v := range sp.Variants {
		variantsByID[v.VariantID.String()] = ProductVariant{
			SourceID:      v.VariantID.String(),
			InStock:       v.IsInStock,
			PriceCurrent:  int(v.Price.Current.Value * 100),
			PricePrevious: int(v.Price.Previous.Value * 100),
		}
	}

	variants := make([]ProductVariant, 0, len(detail.Variants))
	for _, dv := range detail.Variants {
		if v, ok := variantsByID[dv.VariantID.String()]; ok {
			variants = append(variants, v)
		}
	}

	canonicalURL := p.CanonicalURL(resp.URL().String())
	item := Product{
		SourceID:     string(detail.ID),
		CrawlURL:     resp.RawURL().String(),
		CanonicalURL: canonicalURL,
		Title:        detail.Name,
		BrandName:    detail.BrandName,
		CrowdType:    detail.Gender,
		InStock:      detail.IsInStock,
		PriceCurrent: int(sp.ProductPrice.Current.Value * 100),
		Variants:     variants,
	}
	send(ctx, out, parser.FromItem(item))
}

// NewTestRequest seeds local test mode with the asos homepage (§6.3).
func (p *Parser) NewTestRequest(ctx context.Context, jobCtx *crawlctx.Context) <-chan *webutil.Request {
	out := make(chan *webutil.Request, 1)
	req, err := webutil.NewRequest(jobCtx, "GET", "https://www.asos.com/us/women/", nil, nil)
	if err == nil {
		out <- req
	}
	close(out)
	return out
}

// CheckTestResponse accepts any 2xx response in local test mode.
func (p *Parser) CheckTestResponse(ctx context.Context, jobCtx *crawlctx.Context, resp *webutil.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
