package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-marketo/core"
)

var ErrStateNotFound = errors.New("ratelimit: state not found")

// Marketo error codes that signal throttling inside a successful HTTP response.
const (
	codeRateLimitExceeded = "606"
	codeDailyQuotaReached = "607"
	codeConcurrentLimit   = "615"
)

type State struct {
	Bucket         string
	ThrottledUntil *time.Time
	LastStatus     int
	LastCode       string
	Attempts       int
	UpdatedAt      time.Time
}

type StateStore interface {
	Get(ctx context.Context, bucket string) (State, error)
	Upsert(ctx context.Context, state State) error
}

type ThrottledError struct {
	Bucket     string
	Code       string
	RetryAfter time.Duration
}

func (e ThrottledError) Error() string {
	return fmt.Sprintf("ratelimit: bucket %q throttled for %s", strings.TrimSpace(e.Bucket), e.RetryAfter)
}

func (e ThrottledError) ToServiceError() *goerrors.Error {
	metadata := map[string]any{"bucket": strings.TrimSpace(e.Bucket)}
	if e.Code != "" {
		metadata["marketo_code"] = e.Code
	}
	if e.RetryAfter > 0 {
		metadata["retry_after_ms"] = e.RetryAfter.Milliseconds()
	}
	return goerrors.New(e.Error(), goerrors.CategoryRateLimit).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(core.ServiceErrorRateLimited).
		WithMetadata(metadata)
}

// AdaptivePolicy blocks calls to a bucket after Marketo reports throttling.
// Rate window and daily quota errors hold the bucket for a fixed period;
// concurrency errors back off exponentially.
type AdaptivePolicy struct {
	Store          StateStore
	Now            func() time.Time
	RateWindow     time.Duration
	QuotaBackoff   time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func NewAdaptivePolicy(store StateStore) *AdaptivePolicy {
	return &AdaptivePolicy{
		Store:          store,
		Now:            func() time.Time { return time.Now().UTC() },
		RateWindow:     20 * time.Second,
		QuotaBackoff:   time.Hour,
		InitialBackoff: time.Second,
		MaxBackoff:     time.Minute,
	}
}

func (p *AdaptivePolicy) BeforeCall(ctx context.Context, bucket string) error {
	if p == nil || p.Store == nil {
		return nil
	}
	state, err := p.Store.Get(ctx, normalizeBucket(bucket))
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return nil
		}
		return err
	}

	now := p.now()
	if until := state.ThrottledUntil; until != nil && now.Before(*until) {
		return ThrottledError{Bucket: state.Bucket, Code: state.LastCode, RetryAfter: until.Sub(now)}.ToServiceError()
	}
	return nil
}

func (p *AdaptivePolicy) AfterCall(ctx context.Context, bucket string, outcome core.CallOutcome) error {
	if p == nil || p.Store == nil {
		return nil
	}
	bucket = normalizeBucket(bucket)
	now := p.now()
	state, err := p.Store.Get(ctx, bucket)
	if err != nil && !errors.Is(err, ErrStateNotFound) {
		return err
	}
	if errors.Is(err, ErrStateNotFound) {
		state = State{Bucket: bucket}
	}

	state.LastStatus = outcome.StatusCode
	state.LastCode = strings.TrimSpace(outcome.APICode)
	state.UpdatedAt = now

	delay, throttled := p.throttleDelay(outcome, state.Attempts+1, now)
	if throttled {
		state.Attempts++
		until := now.Add(delay)
		state.ThrottledUntil = &until
		return p.Store.Upsert(ctx, state)
	}

	state.Attempts = 0
	state.ThrottledUntil = nil
	return p.Store.Upsert(ctx, state)
}

func (p *AdaptivePolicy) throttleDelay(outcome core.CallOutcome, attempt int, now time.Time) (time.Duration, bool) {
	retryAfter, hasRetryAfter := parseRetryAfter(outcome.Headers, now)
	switch strings.TrimSpace(outcome.APICode) {
	case codeRateLimitExceeded:
		if hasRetryAfter {
			return retryAfter, true
		}
		return positiveOr(p.RateWindow, 20*time.Second), true
	case codeDailyQuotaReached:
		return positiveOr(p.QuotaBackoff, time.Hour), true
	case codeConcurrentLimit:
		return p.nextBackoff(attempt), true
	}
	if outcome.StatusCode == http.StatusTooManyRequests {
		if hasRetryAfter {
			return retryAfter, true
		}
		return p.nextBackoff(attempt), true
	}
	return 0, false
}

func (p *AdaptivePolicy) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *AdaptivePolicy) nextBackoff(attempt int) time.Duration {
	initial := positiveOr(p.InitialBackoff, time.Second)
	maximum := positiveOr(p.MaxBackoff, time.Minute)
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	if delay > maximum {
		return maximum
	}
	return delay
}

func positiveOr(value time.Duration, fallback time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return fallback
}

func parseRetryAfter(headers map[string]string, now time.Time) (time.Duration, bool) {
	raw := headerValue(headers, "retry-after")
	if raw == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds <= 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if retryAt, err := http.ParseTime(raw); err == nil && retryAt.After(now) {
		return retryAt.Sub(now), true
	}
	return 0, false
}

func headerValue(headers map[string]string, key string) string {
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), key) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func normalizeBucket(bucket string) string {
	return strings.ToLower(strings.TrimSpace(bucket))
}

type MemoryStateStore struct {
	mu    sync.RWMutex
	items map[string]State
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{items: map[string]State{}}
}

func (s *MemoryStateStore) Get(_ context.Context, bucket string) (State, error) {
	if s == nil {
		return State{}, fmt.Errorf("ratelimit: state store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.items[normalizeBucket(bucket)]
	if !ok {
		return State{}, ErrStateNotFound
	}
	return state, nil
}

func (s *MemoryStateStore) Upsert(_ context.Context, state State) error {
	if s == nil {
		return fmt.Errorf("ratelimit: state store is nil")
	}
	state.Bucket = normalizeBucket(state.Bucket)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.items == nil {
		s.items = map[string]State{}
	}
	s.items[state.Bucket] = state
	return nil
}

var _ core.RateLimitPolicy = (*AdaptivePolicy)(nil)
