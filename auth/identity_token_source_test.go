package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-marketo/core"
	"github.com/goliatone/go-marketo/transport"
)

func newIdentityServer(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(calls, 1)
		query := r.URL.Query()
		if query.Get("grant_type") != "client_credentials" {
			t.Errorf("expected client_credentials grant, got %q", query.Get("grant_type"))
		}
		if query.Get("client_id") != "client_1" || query.Get("client_secret") != "secret_1" {
			t.Errorf("unexpected client credentials in query: %v", query)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"access_token":"token-%d","token_type":"bearer","expires_in":3600,"scope":"api@example.com"}`, n)
	}))
}

func TestIdentityTokenSource_CacheAndRenew(t *testing.T) {
	var calls int32
	server := newIdentityServer(t, &calls)
	defer server.Close()

	now := time.Date(2026, 2, 13, 15, 0, 0, 0, time.UTC)
	source, err := NewIdentityTokenSource(IdentityTokenSourceConfig{
		ClientID:     "client_1",
		ClientSecret: "secret_1",
		TokenURL:     server.URL + "/identity/oauth/token",
		RenewBefore:  2 * time.Minute,
		Now: func() time.Time {
			return now
		},
	}, transport.NewRESTAdapter(server.Client()))
	if err != nil {
		t.Fatalf("new token source: %v", err)
	}

	first, err := source.Token(context.Background())
	if err != nil {
		t.Fatalf("token first: %v", err)
	}
	second, err := source.Token(context.Background())
	if err != nil {
		t.Fatalf("token second: %v", err)
	}
	if first.AccessToken != second.AccessToken {
		t.Fatalf("expected cached token reuse")
	}
	if first.Header() != "Bearer token-1" {
		t.Fatalf("unexpected header %q", first.Header())
	}
	if !first.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("expected expiry from expires_in, got %s", first.ExpiresAt)
	}

	now = now.Add(59 * time.Minute)
	third, err := source.Token(context.Background())
	if err != nil {
		t.Fatalf("token third: %v", err)
	}
	if third.AccessToken == second.AccessToken {
		t.Fatalf("expected token renewal near expiry")
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected two identity calls, got %d", got)
	}
}

func TestIdentityTokenSource_Invalidate(t *testing.T) {
	var calls int32
	server := newIdentityServer(t, &calls)
	defer server.Close()

	source, err := NewIdentityTokenSource(IdentityTokenSourceConfig{
		ClientID:     "client_1",
		ClientSecret: "secret_1",
		TokenURL:     server.URL,
	}, transport.NewRESTAdapter(server.Client()))
	if err != nil {
		t.Fatalf("new token source: %v", err)
	}
	if _, err := source.Token(context.Background()); err != nil {
		t.Fatalf("token: %v", err)
	}
	source.Invalidate()
	if _, err := source.Token(context.Background()); err != nil {
		t.Fatalf("token after invalidate: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected invalidate to force a new identity call, got %d", got)
	}
	if source.Type() != KindOAuth2ClientCredentials {
		t.Fatalf("unexpected type %q", source.Type())
	}
}

func TestIdentityTokenSource_RejectedCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"Bad client credentials"}`))
	}))
	defer server.Close()

	source, err := NewIdentityTokenSource(IdentityTokenSourceConfig{
		ClientID:     "client_1",
		ClientSecret: "wrong",
		TokenURL:     server.URL,
	}, transport.NewRESTAdapter(server.Client()))
	if err != nil {
		t.Fatalf("new token source: %v", err)
	}
	_, err = source.Token(context.Background())
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected rich error, got %v", err)
	}
	if rich.Category != goerrors.CategoryAuth || rich.TextCode != core.ServiceErrorUnauthorized {
		t.Fatalf("expected unauthorized error, got %q %q", rich.Category, rich.TextCode)
	}
}

func TestIdentityTokenSource_MissingAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"token_type":"bearer"}`))
	}))
	defer server.Close()

	source, err := NewIdentityTokenSource(IdentityTokenSourceConfig{
		ClientID:     "client_1",
		ClientSecret: "secret_1",
		TokenURL:     server.URL,
	}, transport.NewRESTAdapter(server.Client()))
	if err != nil {
		t.Fatalf("new token source: %v", err)
	}
	_, err = source.Token(context.Background())
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.Category != goerrors.CategoryAuth {
		t.Fatalf("expected auth error for missing token, got %v", err)
	}
}

func TestNewIdentityTokenSource_RequiresCredentials(t *testing.T) {
	cases := []IdentityTokenSourceConfig{
		{ClientSecret: "s", TokenURL: "https://x"},
		{ClientID: "c", TokenURL: "https://x"},
		{ClientID: "c", ClientSecret: "s"},
	}
	for _, cfg := range cases {
		if _, err := NewIdentityTokenSource(cfg, nil); err == nil {
			t.Fatalf("expected validation error for %#v", cfg)
		}
	}
}
