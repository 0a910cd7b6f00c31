package oerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf_Wrapped(t *testing.T) {
	base := New(KindPermission, "model not enabled")
	wrapped := fmt.Errorf("dispatch search_records: %w", base)

	if KindOf(wrapped) != KindPermission {
		t.Fatalf("expected permission kind through wrap, got %s", KindOf(wrapped))
	}
}

func TestKindOf_ForeignError(t *testing.T) {
	if KindOf(errors.New("boom")) != KindRemote {
		t.Fatal("foreign errors must default to remote_error")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(Wrap(KindTransient, "request timed out", errors.New("deadline"))) {
		t.Fatal("transient errors must be retryable")
	}
	if IsRetryable(New(KindValidation, "unknown field")) {
		t.Fatal("validation errors must not be retryable")
	}
	if IsRetryable(New(KindRemote, "constraint violated")) {
		t.Fatal("remote errors must not be retryable")
	}
}

func TestError_Format(t *testing.T) {
	e := Wrap(KindTransient, "post /jsonrpc", errors.New("connection refused"))
	want := "transient: post /jsonrpc: connection refused"
	if e.Error() != want {
		t.Fatalf("expected %q, got %q", want, e.Error())
	}

	plain := New(KindUnknownTool, "no handler for frobnicate")
	if plain.Error() != "unknown_tool: no handler for frobnicate" {
		t.Fatalf("unexpected format: %q", plain.Error())
	}
}

func TestMessageOf(t *testing.T) {
	if got := MessageOf(New(KindValidation, "field x does not exist")); got != "field x does not exist" {
		t.Fatalf("unexpected message: %q", got)
	}
	inner := errors.New("eof")
	if got := MessageOf(Wrap(KindTransient, "read response", inner)); got != "read response: eof" {
		t.Fatalf("unexpected message: %q", got)
	}
}
