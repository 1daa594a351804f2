package capability

import (
	"errors"
	"fmt"
	"testing"

	"github.com/veeky/veeky-backend/internal/platform/logger"
)

func TestIsMissing(t *testing.T) {
	missing := &MissingError{Name: "ffmpeg", Hint: "install it"}
	if !IsMissing(missing) {
		t.Fatalf("expected IsMissing to detect a MissingError")
	}
	wrapped := fmt.Errorf("pipeline stage: %w", missing)
	if !IsMissing(wrapped) {
		t.Fatalf("expected IsMissing to detect a wrapped MissingError")
	}
	if IsMissing(errors.New("other")) {
		t.Fatalf("expected IsMissing to reject unrelated errors")
	}
}

func TestMissingError_MessageIncludesHint(t *testing.T) {
	err := &MissingError{Name: "yt-dlp", Hint: "Install yt-dlp."}
	msg := err.Error()
	if msg == "" || !errors.As(error(err), new(*MissingError)) {
		t.Fatalf("unexpected error shape")
	}
	if want := `required capability "yt-dlp" is not available. Install yt-dlp.`; msg != want {
		t.Fatalf("unexpected message: %q", msg)
	}
}

func TestRegistry_CachesMissingBinary(t *testing.T) {
	registry := NewRegistry(logger.NewNop())

	_, first := registry.lookupBinary("definitely-not-a-real-binary-xyz", "hint")
	if !IsMissing(first) {
		t.Fatalf("expected missing-capability error, got %v", first)
	}
	_, second := registry.lookupBinary("definitely-not-a-real-binary-xyz", "hint")
	if first != second {
		t.Fatalf("expected the cached error instance on repeat lookup")
	}
}
