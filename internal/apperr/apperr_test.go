package apperr

import (
	"testing"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

func TestKindSentinels(t *testing.T) {
	err := errors.Wrap(NotFound("catalog.GetProductBySlug", "product %q", "silla"), "handler")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected wrapped error to match ErrNotFound, got %v", err)
	}
	if errors.Is(err, ErrValidation) {
		t.Error("Expected NotFound not to match ErrValidation")
	}
	if KindOf(err) != KindNotFound {
		t.Errorf("Expected KindNotFound, got %s", KindOf(err))
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Error("Expected plain error to be KindUnknown")
	}
}

func TestErrorMessage(t *testing.T) {
	err := E(KindStorageWrite, "media.UploadImage", errors.New("bucket full"))
	if err.Error() != "media.UploadImage: bucket full" {
		t.Errorf("Expected op prefixed message, got %q", err.Error())
	}
	if ErrReorder.Error() != "ReorderError" {
		t.Errorf("Expected bare kind name, got %q", ErrReorder.Error())
	}
}

func TestFailures(t *testing.T) {
	agg := multierr.Combine(errors.New("a"), errors.New("b"))
	err := E(KindReorder, "media.ReorderImages", agg)
	if got := len(Failures(err)); got != 2 {
		t.Fatalf("Expected 2 failures, got %d", got)
	}
	if Failures(E(KindValidation, "x", agg)) != nil {
		t.Error("Expected no failures for non reorder error")
	}
}
