// Package idgen produces the opaque request identifiers described in
// spec.md §4.6: not cryptographically meaningful, just a stable,
// low-collision 128-bit token in the 32-hex-char form downstream systems
// expect.
package idgen

import (
	"crypto/md5" //nolint:gosec // identifier folding only, not a security boundary (§4.6)
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// New returns a fresh 32-lowercase-hex-char identifier: 16 random bytes
// plus 16 more random bytes, hex-encoded to 64 chars, then MD5-folded back
// down to 32 hex chars.
func New() string {
	var a, b [16]byte
	_, _ = rand.Read(a[:])
	_, _ = rand.Read(b[:])
	code := hex.EncodeToString(a[:]) + hex.EncodeToString(b[:])
	sum := md5.Sum([]byte(code)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// NewTracingID seeds the first half of the entropy with a uuid4, matching
// the original source's util/random.py (`uuid.uuid4().hex +
// secrets.token_hex(16)`) — used for the local test-mode seed tracing id
// (§6.3 `test` subcommand). The result is MD5-folded like New, so it is
// the same 32-lowercase-hex-char form.
func NewTracingID() string {
	u := uuid.New()
	var b [16]byte
	_, _ = rand.Read(b[:])
	code := hexNoDashes(u) + hex.EncodeToString(b[:])
	sum := md5.Sum([]byte(code)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

func hexNoDashes(u uuid.UUID) string {
	return hex.EncodeToString(u[:])
}
