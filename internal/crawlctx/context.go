// Package crawlctx implements the immutable context chain threaded through
// every hop of a parse job: the job's tracing/job/request/store identifiers,
// the target-type filter, and any sharing data a parser wants to hand down
// to a child request.
package crawlctx

import "strconv"

// Well-known context keys. All but IndexKey are re-injected into every
// yielded context override (§4.5.3); see ReservedKeys.
const (
	TracingIDKey   = "tracing_id"
	JobIDKey       = "job_id"
	ReqIDKey       = "req_id"
	StoreIDKey     = "store_id"
	TargetTypesKey = "target_types"
	IndexKey       = "index"
)

// ReservedKeys lists the five identifiers that are always re-injected from
// the job Context into a parser's yielded override when missing (§4.5.3
// step 3). IndexKey is deliberately excluded: it is per-yield, not
// job-wide.
var ReservedKeys = [...]string{TracingIDKey, JobIDKey, ReqIDKey, StoreIDKey, TargetTypesKey}

// Context is an immutable singly-linked frame {parent, key, value}. A nil
// *Context behaves as an empty frame. Deriving never mutates the receiver;
// it returns a new frame referencing the parent.
type Context struct {
	parent *Context
	key    string
	value  any
	// flat caches the flattened values() view the first time it is
	// computed. The node is immutable so this is safe to cache lazily.
	flat map[string]any
}

// Derive returns a new Context layering key=value on top of c.
func (c *Context) Derive(key string, value any) *Context {
	return &Context{parent: c, key: key, value: value}
}

// Get walks parent-ward and returns the nearest value bound to key, or nil
// if key was never bound.
func (c *Context) Get(key string) any {
	for n := c; n != nil; n = n.parent {
		if n.key == key {
			return n.value
		}
	}
	return nil
}

// GetString coerces Get(key) to a string; absent or non-string values
// yield "".
func (c *Context) GetString(key string) string {
	v := c.Get(key)
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// GetInt coerces Get(key) to an int; absent or unparsable values yield 0.
func (c *Context) GetInt(key string) int {
	v := c.Get(key)
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// Values returns the flattened key->value mapping; a child key wins over a
// parent's on collision. The result is cached on the node after first
// computation.
func (c *Context) Values() map[string]any {
	if c == nil {
		return map[string]any{}
	}
	if c.flat != nil {
		return c.flat
	}

	var parentVals map[string]any
	if c.parent != nil {
		parentVals = c.parent.Values()
	}

	vals := make(map[string]any, len(parentVals)+1)
	for k, v := range parentVals {
		vals[k] = v
	}
	if c.key != "" {
		vals[c.key] = c.value
	}
	c.flat = vals
	return vals
}

// WithReservedIDs layers the five reserved identifiers from job onto c,
// filling in only the ones c does not already carry (§4.5.3 step 3: an
// override wins, a gap is re-injected from the job context).
func WithReservedIDs(c *Context, job *Context) *Context {
	for _, key := range ReservedKeys {
		if isUnset(c.Get(key)) {
			if v := job.Get(key); !isUnset(v) {
				c = c.Derive(key, v)
			}
		}
	}
	return c
}

// isUnset reports whether v is absent or an empty string. Non-string
// values (target_types is carried as a []string) count as set.
func isUnset(v any) bool {
	return v == nil || v == ""
}
