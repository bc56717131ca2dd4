package stitch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	base := os.ErrNotExist
	err := WrapError(TransientIO, base)
	if KindOf(err) != TransientIO {
		t.Fatalf("expected transient I/O, got %s\n", KindOf(err))
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("wrapped error lost its cause\n")
	}
	if !errors.Is(err, &Error{Kind: TransientIO}) {
		t.Fatalf("expected kind-only match\n")
	}
	if errors.Is(err, &Error{Kind: ShapeMismatch}) {
		t.Fatalf("unexpected match against other kind\n")
	}

	// Already classified errors keep their kind.
	shape := NewError(ShapeMismatch, "regions %v and %v", []int{1, 2}, []int{2, 1})
	if KindOf(WrapError(TransientIO, shape)) != ShapeMismatch {
		t.Fatalf("rewrapping changed kind\n")
	}
	outer := fmt.Errorf("stage failed: %w", shape)
	if !IsKind(outer, ShapeMismatch) {
		t.Fatalf("kind not found through fmt wrapping\n")
	}

	if KindOf(WrapError(TransientIO, context.Canceled)) != Cancelled {
		t.Fatalf("context cancellation should be Cancelled\n")
	}
	if KindOf(fmt.Errorf("x: %w", context.Canceled)) != Cancelled {
		t.Fatalf("bare context cancellation should be Cancelled\n")
	}
	if KindOf(errors.New("plain")) != UnknownError {
		t.Fatalf("plain errors should be unknown\n")
	}
	if WrapError(TransientIO, nil) != nil {
		t.Fatalf("wrapping nil should be nil\n")
	}
}
