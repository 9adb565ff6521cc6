// Package schema holds the wire message shapes exchanged with the
// coordinator and the proxy fetcher. In a full deployment these would be
// protoc-generated stubs (spec.md §1 treats them as "given"); this
// exercise has no protoc available, so they are hand-written Go structs
// carrying the same field shapes the original .proto-derived Python stubs
// expose (chameleon/smelter/v1/crawl/{data,proxy}_pb2.py), JSON-tagged for
// the proxy fetcher's wire format and reused as-is for the gRPC surface's
// custom codec (see internal/workernode/codec.go).
package schema

// Reliability mirrors the proxy fetcher's quality-of-service axis
// (ProxyReliability in the original schema).
type Reliability string

const (
	ReliabilityDefault      Reliability = "DEFAULT"
	ReliabilityLow          Reliability = "LOW"
	ReliabilityMedium       Reliability = "MEDIUM"
	ReliabilityHigh         Reliability = "HIGH"
	ReliabilityRealtime     Reliability = "REALTIME"
	ReliabilityIntelligent  Reliability = "INTELLIGENT"
)

// Cookie is a single cookie entry in a CrawlOptions policy (§3).
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"`
	Path   string `json:"path,omitempty"`
}

// CrawlOptions is the wire form of a parser's per-URL fetch policy,
// returned by the CrawlerOptions RPC (§4.5.1) and consumed when building
// RequestOptions for the proxy fetcher (§4.5.3 step 1).
type CrawlOptions struct {
	EnableHeadless    bool              `json:"enableHeadless"`
	EnableSessionInit bool              `json:"enableSessionInit"`
	KeepSession       bool              `json:"keepSession"`
	SessionTTL        int               `json:"sessionTtl"`
	DisableCookieJar  bool              `json:"disableCookieJar"`
	DisableRedirect   bool              `json:"disableRedirect"`
	Reliability       Reliability       `json:"reliability"`
	Headers           map[string]string `json:"headers,omitempty"`
	Cookies           []Cookie          `json:"cookies,omitempty"`
}

// HeaderValues is a single header's ordered value list, matching the
// original schema's map<string, ListValue> shape.
type HeaderValues struct {
	Values []string `json:"values,omitempty"`
}

// RequestOptions is the per-request override carried on a RawRequest
// (§4.5.1's "options" field): a disable-proxy switch and the target-type
// filter the parser yields items against.
type RequestOptions struct {
	DisableProxy bool     `json:"disableProxy,omitempty"`
	TargetTypes  []string `json:"targetTypes,omitempty"`
}

// RawRequest is the inbound Parse job (§3 "RawRequest"). Parent is a full
// copy of the originating RawRequest when this one was derived from a
// parser-yielded child Request (§4.5.3's sub-request dispatch).
type RawRequest struct {
	TracingID     string            `json:"tracingId"`
	JobID         string            `json:"jobId"`
	ReqID         string            `json:"reqId"`
	StoreID       string            `json:"storeId"`
	URL           string            `json:"url"`
	Method        string            `json:"method"`
	Body          []byte            `json:"body,omitempty"`
	CustomHeaders map[string]string `json:"customHeaders,omitempty"`
	CustomCookies []Cookie          `json:"customCookies,omitempty"`
	Options       RequestOptions    `json:"options"`
	SharingData   map[string]string `json:"sharingData,omitempty"`
	Parent        *RawRequest       `json:"parent,omitempty"`
}

// Any is a lightweight Any-tagged container carrying one of
// {RawRequest, Item, Error} (§3 "Envelope"). A real deployment would use
// google.golang.org/protobuf/types/known/anypb with full descriptor
// registration; without protoc-generated descriptors for the inner
// messages that machinery cannot round-trip, so this mirrors its shape
// (TypeUrl + opaque Value bytes) using the worker's own JSON codec
// (documented in DESIGN.md).
type Any struct {
	TypeURL string `json:"typeUrl"`
	Value   []byte `json:"value"`
}

// Envelope type URLs, mirroring the "type.googleapis.com/..." convention
// util/proto.py's getTypeUrl uses.
const (
	TypeURLSubRequest = "type.googleapis.com/smelter.v1.crawl.Request"
	TypeURLItem       = "type.googleapis.com/smelter.v1.crawl.Item"
	TypeURLError      = "type.googleapis.com/smelter.v1.crawl.Error"
	TypeURLPing       = "type.googleapis.com/smelter.v1.crawl.Ping"
	TypeURLHeartbeat  = "type.googleapis.com/smelter.v1.crawl.Heartbeat"
)

// ErrorEnvelope is an Error payload (§3 "Envelope"): code, message,
// reserved ids, and a unix-millis timestamp.
type ErrorEnvelope struct {
	TracingID string `json:"tracingId"`
	JobID     string `json:"jobId"`
	ReqID     string `json:"reqId"`
	StoreID   string `json:"storeId"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// ItemEnvelope wraps an arbitrary parser payload with the job's reserved
// ids, an optional fan-out index, and a timestamp (§3 "Envelope").
type ItemEnvelope struct {
	TracingID string `json:"tracingId"`
	JobID     string `json:"jobId"`
	ReqID     string `json:"reqId"`
	StoreID   string `json:"storeId"`
	Index     int    `json:"index"`
	Timestamp int64  `json:"timestamp"`
	Data      Any    `json:"data"`
}

// VersionResponse is the Version RPC's response (§4.5.1).
type VersionResponse struct {
	Version int32 `json:"version"`
}

// CrawlerOptionsRequest is the CrawlerOptions RPC's request (§4.5.1).
type CrawlerOptionsRequest struct {
	URL string `json:"url"`
}

// CrawlerOptionsResponse is the CrawlerOptions RPC's response (§4.5.1).
type CrawlerOptionsResponse struct {
	Data CrawlOptions `json:"data"`
}

// AllowedDomainsResponse is the AllowedDomains RPC's response (§4.5.1).
type AllowedDomainsResponse struct {
	Data []string `json:"data"`
}

// CanonicalURLRequest is the CanonicalUrl RPC's request (§4.5.1).
type CanonicalURLRequest struct {
	URL string `json:"url"`
}

// CanonicalURLResponse is the CanonicalUrl RPC's response (§4.5.1).
type CanonicalURLResponse struct {
	Data struct {
		URL string `json:"url"`
	} `json:"data"`
}

// Empty is the argument/response shape for RPCs that carry no payload.
type Empty struct{}

// Ping is the first message sent on the registration stream (§4.5.4).
type Ping struct {
	Timestamp      int64    `json:"timestamp"`
	ID             string   `json:"id"`
	StoreID        string   `json:"storeId"`
	Version        int32    `json:"version"`
	AllowedDomains []string `json:"allowedDomains"`
	ServePort      int32    `json:"servePort"`
}

// Heartbeat is every subsequent message sent on the registration stream
// (§4.5.4).
type Heartbeat struct {
	Timestamp int64 `json:"timestamp"`
}

// ProxyRequestOptions is the fetch policy sent to the proxy fetcher
// (§4.3 step 1, §6.2).
type ProxyRequestOptions struct {
	EnableProxy        bool        `json:"enable_proxy"`
	Reliability        Reliability `json:"reliability"`
	EnableHeadless     bool        `json:"enable_headless"`
	JSWaitDuration      int        `json:"js_wait_duration"`
	EnableSessionInit  bool        `json:"enable_session_init"`
	KeepSession        bool        `json:"keep_session"`
	DisableCookieJar   bool        `json:"disable_cookie_jar"`
	MaxTTLPerRequest   int         `json:"max_ttl_per_request"`
	DisableRedirect    bool        `json:"disable_redirect"`
	RequestFilterKeys  []string    `json:"request_filter_keys,omitempty"`
}

// ProxyRequest is the JSON body POSTed to the proxy fetcher (§6.2).
type ProxyRequest struct {
	TracingID string                  `json:"tracing_id"`
	JobID     string                  `json:"job_id"`
	ReqID     string                  `json:"req_id"`
	Method    string                  `json:"method"`
	URL       string                  `json:"url"`
	Headers   map[string]HeaderValues `json:"headers,omitempty"`
	Body      []byte                  `json:"body,omitempty"`
	Options   ProxyRequestOptions     `json:"options"`
}

// ProxyResponseRequest is the inner request echoed back on a
// ProxyResponse, optionally carrying its own nested Response when it is a
// redirect predecessor (§6.2, §4.3 step 5).
type ProxyResponseRequest struct {
	Method   string          `json:"method"`
	URL      string          `json:"url"`
	Response *ProxyResponse  `json:"response,omitempty"`
}

// ProxyResponse is the JSON body returned by the proxy fetcher (§6.2).
type ProxyResponse struct {
	StatusCode      int                     `json:"status_code"`
	Status          string                  `json:"status"`
	Proto           string                  `json:"proto"`
	ProtoMajor      int                     `json:"protoMajor"`
	ProtoMinor      int                     `json:"protoMinor"`
	Headers         map[string]HeaderValues `json:"headers,omitempty"`
	Body            []byte                  `json:"body,omitempty"`
	BodyCacheLink   string                  `json:"body_cache_link,omitempty"`
	Duration        int64                   `json:"duration"`
	AverageDuration int64                   `json:"average_duration"`
	Request         ProxyResponseRequest    `json:"request"`
}
