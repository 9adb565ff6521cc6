package proxyfetcher

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cametumbling/crawlnode/internal/crawlctx"
	"github.com/cametumbling/crawlnode/internal/rpcerr"
	"github.com/cametumbling/crawlnode/internal/schema"
	"github.com/cametumbling/crawlnode/internal/webutil"
)

func gzipBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write([]byte(s)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func TestDoDecodesGzipTopLevelBody(t *testing.T) {
	html := "<html><body>hi</body></html>"
	gz := gzipBytes(t, html)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := schema.ProxyResponse{
			StatusCode: 200,
			Status:     "200 OK",
			Headers: map[string]schema.HeaderValues{
				"content-encoding": {Values: []string{"gzip"}},
				"content-type":     {Values: []string{"text/html"}},
			},
			Body: gz,
			Request: schema.ProxyResponseRequest{
				Method: "GET",
				URL:    "https://example.com/page",
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := (&crawlctx.Context{}).Derive(crawlctx.TracingIDKey, "T")
	req, err := webutil.NewRequest(ctx, "GET", "https://example.com/page", nil, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}

	resp, err := client.Do(context.Background(), req, RequestOptions{EnableProxy: true})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if string(resp.Body) != html {
		t.Fatalf("Body = %q, want %q", resp.Body, html)
	}
	if got := resp.Headers.Get("content-encoding"); got != "" {
		t.Fatalf("content-encoding header not stripped: %q", got)
	}
}

func TestDoNon200IsInternal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, _ := New(srv.URL)
	ctx := (&crawlctx.Context{}).Derive(crawlctx.TracingIDKey, "T")
	req, _ := webutil.NewRequest(ctx, "GET", "https://example.com/page", nil, nil)

	_, err := client.Do(context.Background(), req, RequestOptions{})
	if err == nil {
		t.Fatalf("expected error on non-200 proxy response")
	}
	if code := rpcerr.AsError(err).Code; code != rpcerr.Internal {
		t.Fatalf("error code = %v, want Internal", code)
	}
}

func TestNewRejectsEmptyAddr(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatalf("expected error for empty proxy address")
	}
}
