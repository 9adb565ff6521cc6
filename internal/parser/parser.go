// Package parser defines the pluggable site-specific parser contract
// (§4.4) and the yield-shape normalization the worker runtime dispatches
// on (§4.4, design note in spec.md §9: "model a yield as a tagged value").
package parser

import (
	"context"

	"github.com/cametumbling/crawlnode/internal/crawlctx"
	"github.com/cametumbling/crawlnode/internal/schema"
	"github.com/cametumbling/crawlnode/internal/webutil"
)

// Parser is the small, stable capability set a site-specific implementation
// exports (§4.4).
type Parser interface {
	// ID returns the stable store identifier.
	ID() string
	// Version returns a monotonic non-negative version number.
	Version() int
	// AllowedDomains returns the wildcard domain patterns this parser
	// claims.
	AllowedDomains() []string
	// CrawlOptions returns the per-URL fetch policy.
	CrawlOptions(u *webutil.URL) schema.CrawlOptions
	// CanonicalURL returns the domain-specific canonical form of u;
	// idempotent, and returns u unchanged when unrecognized.
	CanonicalURL(u string) string
	// Parse consumes a fetched response and sends sub-requests, items,
	// and errors on the returned channel, closing it when exhausted. The
	// channel is unbuffered so the runtime's own pull-rate governs the
	// parser's production rate (§5 "the runtime does not buffer").
	Parse(ctx context.Context, jobCtx *crawlctx.Context, resp *webutil.Response) <-chan Yield
	// NewTestRequest yields seed requests for local test mode (§6.3).
	NewTestRequest(ctx context.Context, jobCtx *crawlctx.Context) <-chan *webutil.Request
	// CheckTestResponse is the test-mode acceptance check for a fetched
	// response.
	CheckTestResponse(ctx context.Context, jobCtx *crawlctx.Context, resp *webutil.Response) bool
}

// Yield is a single element a Parser emits during Parse. Exactly one of
// Request, Item, or Err is set on a base Yield; Override carries a Context
// the dispatcher should prefer over the job context (§4.4 "at most one
// member may be a Context").
type Yield struct {
	Request  *webutil.Request
	Item     any // an opaque payload message to be wrapped as an Item envelope
	Err      error
	Override *crawlctx.Context

	// Invalid marks a yield that matched none of the recognized payload
	// kinds; the runtime logs and reports it as an Internal error
	// envelope without killing the stream (§4.4).
	Invalid bool
}

// WithOverride returns y carrying an overriding Context, used by parsers
// that want to hand a yield down with different propagated ids or sharing
// data than the ambient job Context (§4.4).
func (y Yield) WithOverride(ctx *crawlctx.Context) Yield {
	y.Override = ctx
	return y
}

// FromRequest builds a plain Request yield.
func FromRequest(r *webutil.Request) Yield { return Yield{Request: r} }

// FromItem builds a plain Item yield.
func FromItem(msg any) Yield { return Yield{Item: msg} }

// FromError builds a plain Err yield.
func FromError(err error) Yield { return Yield{Err: err} }
