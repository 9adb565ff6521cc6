package webutil

import (
	"strings"

	"github.com/cametumbling/crawlnode/internal/crawlctx"
	"golang.org/x/net/html"
)

// Request bundles a context, method, URL, body and headers, plus an
// optional parent Response when this Request was derived from one (used to
// walk the redirect/ancestor chain for RawURL).
type Request struct {
	Context  *crawlctx.Context
	Method   string
	URL      *URL
	Body     []byte
	Headers  *Header
	Response *Response // parent response, if this request followed one
}

// NewRequest builds a Request with the method uppercased (default GET) and
// an empty Header when none is supplied.
func NewRequest(ctx *crawlctx.Context, method, rawurl string, body []byte, headers *Header) (*Request, error) {
	u, err := ParseURL(rawurl)
	if err != nil {
		return nil, err
	}
	if headers == nil {
		headers = NewHeader()
	}
	m := strings.ToUpper(method)
	if m == "" {
		m = "GET"
	}
	return &Request{Context: ctx, Method: m, URL: u, Body: body, Headers: headers}, nil
}

// RawURL walks through parent-response chains to the earliest ancestor
// request's URL, used as the referer base.
func (r *Request) RawURL() *URL {
	cur := r
	for cur.Response != nil {
		cur = cur.Response.Request
	}
	return cur.URL
}

// Response bundles a status code, headers, body, and the request that
// produced it.
type Response struct {
	StatusCode int
	Headers    *Header
	Body       []byte
	Request    *Request

	selector    *Selector
	selectorSet bool
}

// URL returns the URL of the request that produced this response.
func (resp *Response) URL() *URL {
	return resp.Request.URL
}

// RawURL returns the earliest ancestor request's URL.
func (resp *Response) RawURL() *URL {
	return resp.Request.RawURL()
}

// Selector lazily parses Body as HTML/XML when the Content-Type header
// indicates it, memoizing the result. A non-matching Content-Type returns
// nil.
func (resp *Response) Selector() *Selector {
	if resp.selectorSet {
		return resp.selector
	}
	resp.selectorSet = true

	ctype := strings.ToLower(resp.Headers.Get("content-type"))
	isMarkup := strings.Contains(ctype, "text/html") ||
		strings.Contains(ctype, "application/xhtml+xml") ||
		strings.Contains(ctype, "application/xml")
	if len(resp.Body) == 0 || !isMarkup {
		return nil
	}

	root, err := html.Parse(strings.NewReader(string(resp.Body)))
	if err != nil {
		return nil
	}
	resp.selector = &Selector{root: root}
	return resp.selector
}

// Selector is a minimal HTML/XML document view over a parsed DOM tree,
// generalizing the teacher's ExtractLinks tree-walk into a reusable
// by-tag/by-attr query surface for site parsers.
type Selector struct {
	root *html.Node
}

// FindAll returns every element node with the given tag name, in document
// order.
func (s *Selector) FindAll(tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(s.root)
	return out
}

// Attr returns the value of attribute key on n, or "".
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// Text concatenates the direct text-node children of n.
func Text(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}
