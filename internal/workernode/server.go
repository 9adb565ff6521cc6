// Server.go implements the worker's Parse execution algorithm (§4.5.2,
// §4.5.3): turning an inbound RawRequest into an HTTP-shaped Request,
// fetching it through the proxy fetcher, and dispatching the parser's
// yields back onto the coordinator stream as envelopes. This is the core
// of the worker node runtime.
package workernode

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cametumbling/crawlnode/internal/crawlctx"
	"github.com/cametumbling/crawlnode/internal/idgen"
	"github.com/cametumbling/crawlnode/internal/logging"
	"github.com/cametumbling/crawlnode/internal/parser"
	"github.com/cametumbling/crawlnode/internal/proxyfetcher"
	"github.com/cametumbling/crawlnode/internal/rpcerr"
	"github.com/cametumbling/crawlnode/internal/schema"
	"github.com/cametumbling/crawlnode/internal/webutil"
)

// NodeServer is the Server implementation backing a single site-specific
// Parser (§4.5.1).
type NodeServer struct {
	Parser  parser.Parser
	Fetcher *proxyfetcher.Client
	Log     *logging.Logger
}

// NewServer wires a parser and a proxy fetcher client into a Server.
func NewServer(p parser.Parser, fetcher *proxyfetcher.Client, log *logging.Logger) *NodeServer {
	if log == nil {
		log = logging.New("workernode")
	}
	return &NodeServer{Parser: p, Fetcher: fetcher, Log: log}
}

func (s *NodeServer) Version(ctx context.Context, req *schema.Empty) (*schema.VersionResponse, error) {
	return &schema.VersionResponse{Version: int32(s.Parser.Version())}, nil
}

func (s *NodeServer) CrawlerOptions(ctx context.Context, req *schema.CrawlerOptionsRequest) (*schema.CrawlerOptionsResponse, error) {
	u, err := webutil.ParseURL(req.URL)
	if err != nil {
		return nil, rpcerr.New(rpcerr.InvalidArgument, fmt.Sprintf("invalid url: %v", err))
	}
	return &schema.CrawlerOptionsResponse{Data: s.Parser.CrawlOptions(u)}, nil
}

func (s *NodeServer) AllowedDomains(ctx context.Context, req *schema.Empty) (*schema.AllowedDomainsResponse, error) {
	return &schema.AllowedDomainsResponse{Data: s.Parser.AllowedDomains()}, nil
}

func (s *NodeServer) CanonicalURL(ctx context.Context, req *schema.CanonicalURLRequest) (*schema.CanonicalURLResponse, error) {
	var resp schema.CanonicalURLResponse
	resp.Data.URL = s.Parser.CanonicalURL(req.URL)
	return &resp, nil
}

// Parse implements §4.5.3: build the HTTP request, fetch it, run the
// parser, and translate every yield into an envelope on stream, in order.
// A failure up to and including the fetch produces exactly one Error
// envelope and returns nil (the stream itself is healthy, only the job
// failed); a transport failure on Send is returned so the coordinator sees
// the stream break.
func (s *NodeServer) Parse(req *schema.RawRequest, stream CrawlerNode_ParseServer) error {
	ctx := stream.Context()
	jobCtx := buildJobContext(req)

	httpReq, err := buildHTTPRequest(jobCtx, req)
	if err != nil {
		return s.sendError(stream, jobCtx, rpcerr.New(rpcerr.InvalidArgument, fmt.Sprintf("invalid request: %v", err)))
	}

	opts := s.Parser.CrawlOptions(httpReq.URL)
	fetchOpts := proxyfetcher.RequestOptions{
		EnableProxy:       !req.Options.DisableProxy,
		EnableHeadless:    opts.EnableHeadless,
		EnableSessionInit: opts.EnableSessionInit,
		KeepSession:       opts.KeepSession,
		DisableCookieJar:  opts.DisableCookieJar,
		DisableRedirect:   opts.DisableRedirect,
		Reliability:       opts.Reliability,
	}

	resp, err := s.Fetcher.Do(ctx, httpReq, fetchOpts)
	if err != nil {
		return s.sendError(stream, jobCtx, rpcerr.AsError(err))
	}
	if len(resp.Body) == 0 {
		return s.sendError(stream, jobCtx, rpcerr.Internalf("proxy fetcher returned an empty body"))
	}

	for y := range s.Parser.Parse(ctx, jobCtx, resp) {
		envCtx := jobCtx
		if y.Override != nil {
			envCtx = crawlctx.WithReservedIDs(y.Override, jobCtx)
		}

		var sendErr error
		switch {
		case y.Request != nil:
			sub := buildSubRequest(req, httpReq, envCtx, y.Request)
			sendErr = s.sendRequest(stream, envCtx, sub)
		case y.Err != nil:
			sendErr = s.sendError(stream, envCtx, rpcerr.AsError(y.Err))
		case y.Item != nil:
			sendErr = s.sendItem(stream, envCtx, y.Item)
		default:
			s.Log.Printf("job %s yielded an unrecognized shape, reporting as internal error", jobCtx.GetString(crawlctx.JobIDKey))
			sendErr = s.sendError(stream, envCtx, rpcerr.Internalf("parser yielded an unrecognized shape"))
		}
		if sendErr != nil {
			return sendErr
		}
	}
	return nil
}

// buildJobContext layers the job's reserved identifiers and sharing data
// onto a fresh Context chain (§4.5.3 step 1).
func buildJobContext(req *schema.RawRequest) *crawlctx.Context {
	var c *crawlctx.Context
	c = c.Derive(crawlctx.TracingIDKey, req.TracingID)
	c = c.Derive(crawlctx.JobIDKey, req.JobID)
	c = c.Derive(crawlctx.ReqIDKey, req.ReqID)
	c = c.Derive(crawlctx.StoreIDKey, req.StoreID)
	if len(req.Options.TargetTypes) > 0 {
		c = c.Derive(crawlctx.TargetTypesKey, req.Options.TargetTypes)
	}
	for k, v := range req.SharingData {
		c = c.Derive(k, v)
	}
	return c
}

// buildHTTPRequest turns a RawRequest into a fetchable webutil.Request:
// custom headers are copied case-insensitively excluding any caller-set
// cookie header, which is instead composed from CustomCookies (§4.5.2).
func buildHTTPRequest(jobCtx *crawlctx.Context, req *schema.RawRequest) (*webutil.Request, error) {
	headers := webutil.NewHeader()
	for k, v := range req.CustomHeaders {
		if strings.EqualFold(k, "cookie") {
			continue
		}
		headers.Add(k, v)
	}
	if len(req.CustomCookies) > 0 {
		pairs := make([][2]string, 0, len(req.CustomCookies))
		for _, c := range req.CustomCookies {
			pairs = append(pairs, [2]string{c.Name, c.Value})
		}
		if cookie := webutil.BuildCookieHeader(pairs); cookie != "" {
			headers.Set("cookie", cookie)
		}
	}
	return webutil.NewRequest(jobCtx, req.Method, req.URL, req.Body, headers)
}

// buildSubRequest translates a parser-yielded child Request into the wire
// RawRequest that will be dispatched as a new job: the URL inherits the
// parent's scheme/host when the parser left them blank, a referer header
// defaults to the originating request's raw URL, sharing data is
// propagated minus the reserved identifiers, and Parent carries a full
// copy of the originating RawRequest (§4.5.3 step 2, §3 "Parent").
func buildSubRequest(parentRaw *schema.RawRequest, parentReq *webutil.Request, ctx *crawlctx.Context, yielded *webutil.Request) *schema.RawRequest {
	u := yielded.URL.Clone()
	if u.Scheme == "" {
		u.Scheme = parentReq.URL.Scheme
	}
	if u.Host == "" {
		u.Host = parentReq.URL.Host
	}

	headers := make(map[string]string)
	yielded.Headers.Range(func(key string, values []string) {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	})
	if _, ok := headers["referer"]; !ok {
		headers["referer"] = parentReq.RawURL().String()
	}

	sharing := make(map[string]string)
	for k, v := range ctx.Values() {
		if isReservedKey(k) {
			continue
		}
		if sv, ok := v.(string); ok {
			sharing[k] = sv
		}
	}

	parentCopy := *parentRaw

	return &schema.RawRequest{
		TracingID:     ctx.GetString(crawlctx.TracingIDKey),
		JobID:         ctx.GetString(crawlctx.JobIDKey),
		ReqID:         idgen.New(),
		StoreID:       ctx.GetString(crawlctx.StoreIDKey),
		URL:           u.String(),
		Method:        yielded.Method,
		Body:          yielded.Body,
		CustomHeaders: headers,
		Options:       schema.RequestOptions{TargetTypes: targetTypes(ctx)},
		SharingData:   sharing,
		Parent:        &parentCopy,
	}
}

func targetTypes(ctx *crawlctx.Context) []string {
	if ts, ok := ctx.Get(crawlctx.TargetTypesKey).([]string); ok {
		return ts
	}
	return nil
}

func isReservedKey(key string) bool {
	for _, k := range crawlctx.ReservedKeys {
		if k == key {
			return true
		}
	}
	return false
}

func (s *NodeServer) sendRequest(stream CrawlerNode_ParseServer, ctx *crawlctx.Context, sub *schema.RawRequest) error {
	payload, err := json.Marshal(sub)
	if err != nil {
		return s.sendError(stream, ctx, rpcerr.Internalf(fmt.Sprintf("marshal sub-request: %v", err)))
	}
	return stream.Send(&schema.Any{TypeURL: schema.TypeURLSubRequest, Value: payload})
}

func (s *NodeServer) sendItem(stream CrawlerNode_ParseServer, ctx *crawlctx.Context, item any) error {
	data, err := json.Marshal(item)
	if err != nil {
		return s.sendError(stream, ctx, rpcerr.Internalf(fmt.Sprintf("marshal item: %v", err)))
	}
	env := schema.ItemEnvelope{
		TracingID: ctx.GetString(crawlctx.TracingIDKey),
		JobID:     ctx.GetString(crawlctx.JobIDKey),
		ReqID:     ctx.GetString(crawlctx.ReqIDKey),
		StoreID:   ctx.GetString(crawlctx.StoreIDKey),
		Index:     ctx.GetInt(crawlctx.IndexKey),
		Timestamp: time.Now().UnixMilli(),
		Data:      schema.Any{TypeURL: schema.TypeURLItem, Value: data},
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return stream.Send(&schema.Any{TypeURL: schema.TypeURLItem, Value: payload})
}

func (s *NodeServer) sendError(stream CrawlerNode_ParseServer, ctx *crawlctx.Context, e *rpcerr.Error) error {
	env := schema.ErrorEnvelope{
		TracingID: ctx.GetString(crawlctx.TracingIDKey),
		JobID:     ctx.GetString(crawlctx.JobIDKey),
		ReqID:     ctx.GetString(crawlctx.ReqIDKey),
		StoreID:   ctx.GetString(crawlctx.StoreIDKey),
		Code:      e.Code.String(),
		Message:   e.Message,
		Timestamp: time.Now().UnixMilli(),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return stream.Send(&schema.Any{TypeURL: schema.TypeURLError, Value: payload})
}
