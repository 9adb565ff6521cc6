// Package rpcerr defines the coordinator-facing error codes (§7) and the
// Error type carrying them, generalizing the teacher's categorized
// *HTTPError (internal/crawler/worker.go's "[network error]"/"[%s]"
// category logging) into the gRPC-style code set the coordinator protocol
// expects.
package rpcerr

import "google.golang.org/grpc/codes"

// Code re-exports the subset of standard RPC codes used by this system
// (§7). google.golang.org/grpc/codes is the wire vocabulary: the worker
// never runs real protobuf codegen (that's a given, per spec.md §1), but
// its error taxonomy is exactly this enum, so it is reused directly rather
// than hand-rolled.
type Code = codes.Code

const (
	OK                 = codes.OK
	Internal           = codes.Internal
	Unimplemented      = codes.Unimplemented
	Aborted            = codes.Aborted
	InvalidArgument    = codes.InvalidArgument
	NotFound           = codes.NotFound
	DeadlineExceeded   = codes.DeadlineExceeded
	FailedPrecondition = codes.FailedPrecondition
	Unauthenticated    = codes.Unauthenticated
	PermissionDenied   = codes.PermissionDenied
	Unavailable        = codes.Unavailable
	DataLoss           = codes.DataLoss
)

// Error is a domain error carrying an RPC code, surfaced to the
// coordinator as an Error envelope (§3, §7). Parsers raise this directly
// when they know the failure mode (e.g. ErrUnsupportedPath); anything else
// escaping a parser's Parse call is wrapped as Internal by the worker
// runtime.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// New builds an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Internalf wraps an arbitrary failure (including a formatted trace) as an
// Internal error, matching the worker runtime's catch-all (§4.5.3 step 4).
func Internalf(message string) *Error {
	return &Error{Code: Internal, Message: message}
}

// AsError extracts an *Error from err when possible, else wraps err as
// Internal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return Internalf(err.Error())
}

// ErrAbort and ErrUnsupportedPath mirror the original source's
// module-level sentinels (crawler/error.py) for parsers to raise directly.
var (
	ErrAbort           = New(Aborted, "abort the progress")
	ErrUnsupportedPath = New(Unimplemented, "unsupported parse path")
)
