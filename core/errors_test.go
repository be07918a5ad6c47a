package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

func TestMapError_AssignsStableCodes(t *testing.T) {
	mapped := MapError(fmt.Errorf("lookup: %w", ErrLeadNotFound))
	if mapped.TextCode != ServiceErrorLeadNotFound {
		t.Fatalf("expected lead not found text code, got %q", mapped.TextCode)
	}
	if mapped.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", mapped.Code)
	}

	mapped = MapError(ErrNotConfigured)
	if mapped.TextCode != ServiceErrorNotConfigured {
		t.Fatalf("expected not configured text code, got %q", mapped.TextCode)
	}

	mapped = MapError(errors.New("core: lead key is required"))
	if mapped.Category != goerrors.CategoryBadInput {
		t.Fatalf("expected bad input category, got %q", mapped.Category)
	}
}

func TestMapError_KeepsRichErrors(t *testing.T) {
	rich := goerrors.New("marketo: api limit reached", goerrors.CategoryRateLimit)
	mapped := MapError(rich)
	if mapped != rich {
		t.Fatalf("expected rich error to be reused")
	}
	if mapped.TextCode != ServiceErrorRateLimited {
		t.Fatalf("expected rate limited text code, got %q", mapped.TextCode)
	}
	if mapped.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", mapped.Code)
	}
}

func TestMapError_Nil(t *testing.T) {
	if MapError(nil) != nil {
		t.Fatalf("expected nil mapping for nil error")
	}
}

func TestRetryAfter_ReadsRateLimitMetadata(t *testing.T) {
	limited := goerrors.New("held", goerrors.CategoryRateLimit).
		WithMetadata(map[string]any{"retry_after_ms": float64(1500)})
	delay, ok := RetryAfter(fmt.Errorf("sync: %w", limited))
	if !ok || delay != 1500*time.Millisecond {
		t.Fatalf("expected wrapped rate limit delay, got %s %v", delay, ok)
	}

	if _, ok := RetryAfter(goerrors.New("down", goerrors.CategoryExternal)); ok {
		t.Fatalf("expected external error not to be rate limited")
	}
	if _, ok := RetryAfter(errors.New("plain")); ok {
		t.Fatalf("expected plain error not to be rate limited")
	}
}
