package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-marketo/core"
)

func TestRESTAdapter_MergesQueryAndHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET default method, got %s", r.Method)
		}
		if got := r.URL.Query().Get("filterType"); got != "email" {
			t.Errorf("expected filterType=email, got %q", got)
		}
		if got := r.URL.Query().Get("fields"); got != "id" {
			t.Errorf("expected url query to be kept, got %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer abc" {
			t.Errorf("expected authorization header, got %q", got)
		}
		if got := r.Header.Get("User-Agent"); got != defaultUserAgent {
			t.Errorf("expected default user agent, got %q", got)
		}
		w.Header().Set("X-Request-Id", "req-1")
		_, _ = w.Write([]byte(`ok`))
	}))
	defer server.Close()

	adapter := NewRESTAdapter(server.Client())
	res, err := adapter.Do(context.Background(), core.TransportRequest{
		URL:     server.URL + "/rest/v1/leads.json?fields=id",
		Query:   map[string]string{"filterType": "email", " ": "skip"},
		Headers: map[string]string{"Authorization": "Bearer abc"},
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if res.StatusCode != http.StatusOK || string(res.Body) != "ok" {
		t.Fatalf("unexpected response: %d %q", res.StatusCode, string(res.Body))
	}
	if res.Headers["X-Request-Id"] != "req-1" {
		t.Fatalf("expected flattened response headers, got %#v", res.Headers)
	}
	if res.Metadata["path"] != "/rest/v1/leads.json" {
		t.Fatalf("expected path metadata, got %#v", res.Metadata)
	}
}

func TestRESTAdapter_ResponseLimitReturnsRichError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("12345"))
	}))
	defer server.Close()

	adapter := NewRESTAdapter(server.Client())
	adapter.MaxResponseBodyBytes = 4

	_, err := adapter.Do(context.Background(), core.TransportRequest{Method: http.MethodGet, URL: server.URL})
	if err == nil {
		t.Fatalf("expected response body limit error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryExternal {
		t.Fatalf("expected external category, got %q", rich.Category)
	}
	if rich.TextCode != core.ServiceErrorExternalFailure {
		t.Fatalf("expected %q text code, got %q", core.ServiceErrorExternalFailure, rich.TextCode)
	}
	if rich.Code != http.StatusBadGateway {
		t.Fatalf("expected %d code, got %d", http.StatusBadGateway, rich.Code)
	}
}

func TestRESTAdapter_RequestLimitOverridesAdapterLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("12345"))
	}))
	defer server.Close()

	adapter := NewRESTAdapter(server.Client())
	adapter.MaxResponseBodyBytes = 2
	if _, err := adapter.Do(context.Background(), core.TransportRequest{URL: server.URL, MaxResponseBodyBytes: 16}); err != nil {
		t.Fatalf("expected request limit to win, got %v", err)
	}
}

func TestRESTAdapter_RejectsInvalidRequests(t *testing.T) {
	var nilAdapter *RESTAdapter
	_, err := nilAdapter.Do(context.Background(), core.TransportRequest{URL: "https://example.com"})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal rich error for nil adapter, got %v", err)
	}

	adapter := NewRESTAdapter(nil)
	for _, raw := range []string{"", "/relative/path", "://bad"} {
		_, err := adapter.Do(context.Background(), core.TransportRequest{URL: raw})
		rich = nil
		if !goerrors.As(err, &rich) || rich.Category != goerrors.CategoryBadInput {
			t.Fatalf("expected bad input for %q, got %v", raw, err)
		}
		if rich.TextCode != core.ServiceErrorBadInput {
			t.Fatalf("expected %q, got %q", core.ServiceErrorBadInput, rich.TextCode)
		}
	}
}

func TestDoJSON_EncodesBodyAndDecodesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("expected json content type, got %q", got)
		}
		raw, _ := io.ReadAll(r.Body)
		payload := map[string]any{}
		if err := json.Unmarshal(raw, &payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if payload["lookupField"] != "email" {
			t.Errorf("expected lookupField in body, got %#v", payload)
		}
		_, _ = w.Write([]byte(`{"success":true,"requestId":"r-1"}`))
	}))
	defer server.Close()

	out := struct {
		Success   bool   `json:"success"`
		RequestID string `json:"requestId"`
	}{}
	_, err := DoJSON(context.Background(), NewRESTAdapter(server.Client()), core.TransportRequest{
		Method: http.MethodPost,
		URL:    server.URL,
	}, map[string]any{"lookupField": "email"}, &out)
	if err != nil {
		t.Fatalf("do json: %v", err)
	}
	if !out.Success || out.RequestID != "r-1" {
		t.Fatalf("unexpected decoded response: %#v", out)
	}
}

func TestDoJSON_MapsStatusCodes(t *testing.T) {
	cases := []struct {
		status   int
		category goerrors.Category
		textCode string
	}{
		{http.StatusUnauthorized, goerrors.CategoryAuth, core.ServiceErrorUnauthorized},
		{http.StatusForbidden, goerrors.CategoryAuthz, core.ServiceErrorForbidden},
		{http.StatusNotFound, goerrors.CategoryNotFound, core.ServiceErrorNotFound},
		{http.StatusTooManyRequests, goerrors.CategoryRateLimit, core.ServiceErrorRateLimited},
		{http.StatusConflict, goerrors.CategoryBadInput, core.ServiceErrorBadInput},
		{http.StatusServiceUnavailable, goerrors.CategoryExternal, core.ServiceErrorExternalFailure},
	}
	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"error":"nope"}`))
		}))

		res, err := DoJSON(context.Background(), NewRESTAdapter(server.Client()), core.TransportRequest{URL: server.URL}, nil, nil)
		server.Close()

		var rich *goerrors.Error
		if !goerrors.As(err, &rich) {
			t.Fatalf("status %d: expected rich error, got %v", tc.status, err)
		}
		if rich.Category != tc.category || rich.TextCode != tc.textCode || rich.Code != tc.status {
			t.Fatalf("status %d: unexpected error %q %q %d", tc.status, rich.Category, rich.TextCode, rich.Code)
		}
		if res.StatusCode != tc.status {
			t.Fatalf("status %d: expected response to be returned, got %d", tc.status, res.StatusCode)
		}
	}
}

func TestDoJSON_InvalidResponseBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not-json`))
	}))
	defer server.Close()

	out := map[string]any{}
	_, err := DoJSON(context.Background(), NewRESTAdapter(server.Client()), core.TransportRequest{URL: server.URL}, nil, &out)
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.Category != goerrors.CategoryExternal {
		t.Fatalf("expected external decode error, got %v", err)
	}
}
