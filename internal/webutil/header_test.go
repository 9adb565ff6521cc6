package webutil

import "testing"

func TestHeaderCaseInsensitive(t *testing.T) {
	h := NewHeader()
	h.Set("Content-Type", "text/html")
	if got := h.Get("CONTENT-TYPE"); got != "text/html" {
		t.Fatalf("Get(CONTENT-TYPE) = %q, want text/html", got)
	}
}

func TestHeaderAddSkipsDuplicate(t *testing.T) {
	h := NewHeader()
	h.Add("X-Foo", "a")
	h.Add("X-Foo", "a")
	h.Add("X-Foo", "b")
	if got := h.Values("x-foo"); len(got) != 2 {
		t.Fatalf("Values = %v, want [a b]", got)
	}
}

func TestHeaderDelete(t *testing.T) {
	h := NewHeader()
	h.Set("X-Foo", "a")
	h.Delete("x-foo")
	if got := h.Get("X-Foo"); got != "" {
		t.Fatalf("Get after Delete = %q, want empty", got)
	}
}

func TestBuildCookieHeaderDedupFirstWins(t *testing.T) {
	got := BuildCookieHeader([][2]string{
		{"a", "1"},
		{"b", "2"},
		{"a", "999"},
	})
	if want := "a=1; b=2"; got != want {
		t.Fatalf("BuildCookieHeader = %q, want %q", got, want)
	}
}
