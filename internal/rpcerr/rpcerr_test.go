package rpcerr

import (
	"errors"
	"testing"
)

func TestAsErrorPassesThroughTypedError(t *testing.T) {
	orig := New(NotFound, "missing")
	got := AsError(orig)
	if got != orig {
		t.Fatalf("AsError should pass through *Error unchanged")
	}
}

func TestAsErrorWrapsPlainErrorAsInternal(t *testing.T) {
	got := AsError(errors.New("boom"))
	if got.Code != Internal {
		t.Fatalf("Code = %v, want Internal", got.Code)
	}
	if got.Message != "boom" {
		t.Fatalf("Message = %q, want boom", got.Message)
	}
}

func TestAsErrorNil(t *testing.T) {
	if AsError(nil) != nil {
		t.Fatalf("AsError(nil) should be nil")
	}
}
