package crawlctx

import "testing"

func TestDeriveGet(t *testing.T) {
	c := (&Context{}).Derive("a", "1").Derive("b", "2")
	if got := c.GetString("a"); got != "1" {
		t.Fatalf("GetString(a) = %q, want 1", got)
	}
	if got := c.GetString("b"); got != "2" {
		t.Fatalf("GetString(b) = %q, want 2", got)
	}
	if got := c.GetString("missing"); got != "" {
		t.Fatalf("GetString(missing) = %q, want empty", got)
	}
}

func TestChildWinsOnCollision(t *testing.T) {
	var c *Context
	c = c.Derive("k1", "v1")
	c = c.Derive("k2", "v2")
	c = c.Derive("k1", "override")

	vals := c.Values()
	if vals["k1"] != "override" {
		t.Fatalf("k1 = %v, want override", vals["k1"])
	}
	if vals["k2"] != "v2" {
		t.Fatalf("k2 = %v, want v2", vals["k2"])
	}
}

func TestValuesFlattening(t *testing.T) {
	var c *Context
	c = c.Derive("k1", "v1").Derive("k2", "v2")
	want := map[string]any{"k1": "v1", "k2": "v2"}
	got := c.Values()
	if len(got) != len(want) {
		t.Fatalf("Values() = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("Values()[%q] = %v, want %v", k, got[k], v)
		}
	}
}

func TestGetIntCoercion(t *testing.T) {
	var c *Context
	c = c.Derive(IndexKey, 3)
	if got := c.GetInt(IndexKey); got != 3 {
		t.Fatalf("GetInt = %d, want 3", got)
	}
	if got := (&Context{}).GetInt(IndexKey); got != 0 {
		t.Fatalf("GetInt on empty context = %d, want 0", got)
	}
}

func TestWithReservedIDsReinjectsMissing(t *testing.T) {
	var job *Context
	job = job.Derive(TracingIDKey, "T").Derive(JobIDKey, "J").Derive(ReqIDKey, "R").Derive(StoreIDKey, "S")

	var override *Context
	override = override.Derive(JobIDKey, "J-override")

	merged := WithReservedIDs(override, job)
	if got := merged.GetString(TracingIDKey); got != "T" {
		t.Fatalf("TracingIDKey = %q, want T (re-injected)", got)
	}
	if got := merged.GetString(JobIDKey); got != "J-override" {
		t.Fatalf("JobIDKey = %q, want J-override (override wins)", got)
	}
	if got := merged.GetString(StoreIDKey); got != "S" {
		t.Fatalf("StoreIDKey = %q, want S (re-injected)", got)
	}
}

func TestNilParentIsEmptyFrame(t *testing.T) {
	var c *Context
	if got := c.GetString("anything"); got != "" {
		t.Fatalf("GetString on nil context = %q, want empty", got)
	}
	if got := len(c.Values()); got != 0 {
		t.Fatalf("Values() on nil context has %d entries, want 0", got)
	}
}
