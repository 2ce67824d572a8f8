package hosterrors

import (
	"errors"
	"strings"
	"testing"
)

func TestIsMatchesWrappedKind(t *testing.T) {
	cause := errors.New("disk full")
	err := New(CorruptPersistence, "peer.Decode", cause)

	if !Is(err, CorruptPersistence) {
		t.Error("expected Is to match CorruptPersistence")
	}
	if Is(err, InvalidState) {
		t.Error("did not expect Is to match InvalidState")
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to see through to the wrapped cause")
	}
}

func TestErrorMessageIncludesKindAndOp(t *testing.T) {
	err := New(BadHandshake, "host.handleInbound", errors.New("magic mismatch"))
	msg := err.Error()
	if msg == "" {
		t.Fatal("expected non-empty error message")
	}
	if !strings.Contains(msg, "host.handleInbound") || !strings.Contains(msg, BadHandshake.String()) {
		t.Fatalf("expected message to include op and kind, got %q", msg)
	}
}
