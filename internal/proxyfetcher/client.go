// Package proxyfetcher implements the worker's synchronous HTTP client for
// the proxy fetcher service (§4.3, §6.2), generalizing the teacher's
// internal/platform/httpclient.Client (a plain net/http wrapper with a
// timeout/body-limit/rate-limit policy) into a client that POSTs a JSON
// ProxyRequest and decodes a JSON ProxyResponse, decompressing the
// top-level body only.
package proxyfetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"

	"github.com/cametumbling/crawlnode/internal/crawlctx"
	"github.com/cametumbling/crawlnode/internal/idgen"
	"github.com/cametumbling/crawlnode/internal/rpcerr"
	"github.com/cametumbling/crawlnode/internal/schema"
	"github.com/cametumbling/crawlnode/internal/webutil"
)

// maxTTLPerRequest is the fixed per-request TTL budget handed to the proxy
// fetcher (§4.3 step 1), independent of any caller-supplied option.
const maxTTLPerRequest = 300 // seconds

// RequestOptions is the caller-supplied fetch policy merged with a
// parser's CrawlOptions before the fetcher call (§4.5.3 step 1).
type RequestOptions struct {
	EnableProxy       bool
	EnableHeadless    bool
	JSWaitDuration    int
	EnableSessionInit bool
	KeepSession       bool
	DisableCookieJar  bool
	DisableRedirect   bool
	Reliability       schema.Reliability
	RequestFilterKeys []string
}

// Client POSTs fetch jobs to a proxy fetcher endpoint and decodes its
// responses into domain Response values. It holds only an immutable
// endpoint string and an *http.Client, and is safe for concurrent use
// (§5 "The proxy-fetcher client holds only an immutable endpoint string").
type Client struct {
	addr       string
	httpClient *http.Client
}

// New returns a Client targeting addr. addr must be non-empty.
func New(addr string) (*Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("proxyfetcher: invalid proxy address")
	}
	return &Client{
		addr:       addr,
		httpClient: &http.Client{Timeout: (maxTTLPerRequest + 30) * time.Second},
	}, nil
}

// Do performs a synchronous fetch through the proxy fetcher (§4.3).
func (c *Client) Do(ctx context.Context, r *webutil.Request, opts RequestOptions) (*webutil.Response, error) {
	req := buildProxyRequest(r, opts)

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, rpcerr.Internalf(fmt.Sprintf("marshal proxy request: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.addr, bytes.NewReader(payload))
	if err != nil {
		return nil, rpcerr.Internalf(fmt.Sprintf("build proxy http request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, rpcerr.Internalf(fmt.Sprintf("proxy fetch transport error: %v", err))
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, rpcerr.Internalf(fmt.Sprintf("read proxy response: %v", err))
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, rpcerr.Internalf(fmt.Sprintf("proxy fetch failed with status %d", httpResp.StatusCode))
	}

	var proxyResp schema.ProxyResponse
	if err := json.Unmarshal(body, &proxyResp); err != nil {
		return nil, rpcerr.Internalf(fmt.Sprintf("decode proxy response: %v", err))
	}

	return buildResponse(r.Context, &proxyResp, false)
}

func buildProxyRequest(r *webutil.Request, opts RequestOptions) *schema.ProxyRequest {
	tracingID := r.Context.GetString(crawlctx.TracingIDKey)
	jobID := r.Context.GetString(crawlctx.JobIDKey)
	reqID := r.Context.GetString(crawlctx.ReqIDKey)
	if reqID == "" {
		reqID = idgen.New()
	}

	headers := make(map[string]schema.HeaderValues)
	r.Headers.Range(func(key string, values []string) {
		headers[key] = schema.HeaderValues{Values: append([]string(nil), values...)}
	})

	return &schema.ProxyRequest{
		TracingID: tracingID,
		JobID:     jobID,
		ReqID:     reqID,
		Method:    r.Method,
		URL:       r.URL.String(),
		Headers:   headers,
		Body:      r.Body,
		Options: schema.ProxyRequestOptions{
			EnableProxy:       opts.EnableProxy,
			Reliability:       opts.Reliability,
			EnableHeadless:    opts.EnableHeadless,
			JSWaitDuration:    opts.JSWaitDuration,
			EnableSessionInit: opts.EnableSessionInit,
			KeepSession:       opts.KeepSession,
			DisableCookieJar:  opts.DisableCookieJar,
			MaxTTLPerRequest:  maxTTLPerRequest,
			DisableRedirect:   opts.DisableRedirect,
			RequestFilterKeys: opts.RequestFilterKeys,
		},
	}
}

// buildResponse recursively constructs the domain Response chain. Only the
// top-level (isSub=false) response body is decompressed; a redirect
// predecessor's body is left intact (§4.3 step 5, §9 "Decompression at the
// top response only").
func buildResponse(ctx *crawlctx.Context, r *schema.ProxyResponse, isSub bool) (*webutil.Response, error) {
	if r == nil {
		return nil, nil
	}

	header := webutil.NewHeader()
	for key, lv := range r.Headers {
		for _, v := range lv.Values {
			header.Add(key, v)
		}
	}

	body := r.Body
	if !isSub && len(r.Body) > 0 {
		decoded, newHeader, err := decompress(body, header)
		if err != nil {
			return nil, rpcerr.Internalf(fmt.Sprintf("decompress proxy response body: %v", err))
		}
		body, header = decoded, newHeader
	}

	var parentResp *webutil.Response
	if r.Request.Response != nil {
		sub, err := buildResponse(ctx, r.Request.Response, true)
		if err != nil {
			return nil, err
		}
		parentResp = sub
	}

	reqHeader := webutil.NewHeader()
	for key, lv := range r.Headers {
		for _, v := range lv.Values {
			reqHeader.Add(key, v)
		}
	}

	innerReq, err := webutil.NewRequest(ctx, r.Request.Method, r.Request.URL, nil, reqHeader)
	if err != nil {
		return nil, rpcerr.Internalf(fmt.Sprintf("parse proxy response request url: %v", err))
	}
	innerReq.Response = parentResp

	return &webutil.Response{
		StatusCode: r.StatusCode,
		Headers:    header,
		Body:       body,
		Request:    innerReq,
	}, nil
}

// decompress applies gzip/brotli decompression per the response's
// content-encoding header, stripping that header once applied (§4.3 step
// 5).
func decompress(body []byte, header *webutil.Header) ([]byte, *webutil.Header, error) {
	encoding := strings.ToLower(header.Get("content-encoding"))
	switch {
	case strings.Contains(encoding, "gzip"):
		r, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, nil, err
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, nil, err
		}
		header.Delete("content-encoding")
		return out, header, nil
	case strings.Contains(encoding, "br"):
		out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
		if err != nil {
			return nil, nil, err
		}
		header.Delete("content-encoding")
		return out, header, nil
	default:
		return body, header, nil
	}
}
