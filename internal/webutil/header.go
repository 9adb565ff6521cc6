package webutil

import "strings"

// Header is a case-insensitive, multi-valued HTTP header map. Keys are
// canonicalized to lowercase on every entry point.
type Header struct {
	keys   []string
	values map[string][]string
}

// NewHeader returns an empty Header.
func NewHeader() *Header {
	return &Header{values: make(map[string][]string)}
}

func (h *Header) unify(key string) string {
	return strings.ToLower(key)
}

// Get returns the first value bound to key, or "".
func (h *Header) Get(key string) string {
	vs := h.values[h.unify(key)]
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// Add appends val to key unless it is already present.
func (h *Header) Add(key, val string) {
	key = h.unify(key)
	if _, ok := h.values[key]; !ok {
		h.keys = append(h.keys, key)
	}
	for _, existing := range h.values[key] {
		if existing == val {
			return
		}
	}
	h.values[key] = append(h.values[key], val)
}

// Set replaces key's value list with a single value.
func (h *Header) Set(key, val string) {
	key = h.unify(key)
	if _, ok := h.values[key]; !ok {
		h.keys = append(h.keys, key)
	}
	h.values[key] = []string{val}
}

// Delete removes key entirely.
func (h *Header) Delete(key string) {
	key = h.unify(key)
	if _, ok := h.values[key]; !ok {
		return
	}
	delete(h.values, key)
	for i, k := range h.keys {
		if k == key {
			h.keys = append(h.keys[:i], h.keys[i+1:]...)
			break
		}
	}
}

// Values returns all values bound to key, in insertion order.
func (h *Header) Values(key string) []string {
	return h.values[h.unify(key)]
}

// Range calls fn once per key, in insertion order, with the full value
// list for that key.
func (h *Header) Range(fn func(key string, values []string)) {
	for _, k := range h.keys {
		fn(k, h.values[k])
	}
}

// Clone returns a deep copy.
func (h *Header) Clone() *Header {
	c := NewHeader()
	h.Range(func(key string, values []string) {
		for _, v := range values {
			c.Add(key, v)
		}
	})
	return c
}

// BuildCookieHeader joins an ordered list of (name, value) pairs into a
// single "name=value; name2=value2" cookie header string, de-duplicated by
// name with the first occurrence winning and insertion order preserved
// (§4.5.2, §8 "Cookie header composition").
func BuildCookieHeader(pairs [][2]string) string {
	seen := make(map[string]bool, len(pairs))
	var parts []string
	for _, p := range pairs {
		name, val := p[0], p[1]
		if seen[name] {
			continue
		}
		seen[name] = true
		parts = append(parts, name+"="+val)
	}
	return strings.Join(parts, "; ")
}
