package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-marketo/core"
	"github.com/goliatone/go-marketo/transport"
)

const (
	KindOAuth2ClientCredentials = "oauth2_client_credentials"

	defaultRenewBefore = 60 * time.Second
	defaultTokenTTL    = time.Hour
)

type IdentityTokenSourceConfig struct {
	ClientID     string
	ClientSecret string
	// TokenURL is the full identity endpoint, e.g.
	// https://123-ABC-456.mktorest.com/identity/oauth/token.
	TokenURL    string
	RenewBefore time.Duration
	Timeout     time.Duration
	Now         func() time.Time
}

type Token struct {
	AccessToken string
	TokenType   string
	Scope       string
	ExpiresAt   time.Time
}

// Header returns the Authorization header value for the token.
func (t Token) Header() string {
	return "Bearer " + t.AccessToken
}

type identityResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int64  `json:"expires_in"`
	Scope            string `json:"scope"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// IdentityTokenSource issues and caches Marketo access tokens using the client
// credentials grant.
type IdentityTokenSource struct {
	config    IdentityTokenSourceConfig
	transport core.TransportAdapter

	mu     sync.Mutex
	cached *Token
}

func NewIdentityTokenSource(cfg IdentityTokenSourceConfig, adapter core.TransportAdapter) (*IdentityTokenSource, error) {
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	cfg.ClientSecret = strings.TrimSpace(cfg.ClientSecret)
	cfg.TokenURL = strings.TrimSpace(cfg.TokenURL)
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("auth: client_id is required")
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("auth: client_secret is required")
	}
	if cfg.TokenURL == "" {
		return nil, fmt.Errorf("auth: token url is required")
	}
	if cfg.RenewBefore <= 0 {
		cfg.RenewBefore = defaultRenewBefore
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if adapter == nil {
		adapter = transport.NewRESTAdapter(nil)
	}
	return &IdentityTokenSource{config: cfg, transport: adapter}, nil
}

func (*IdentityTokenSource) Type() string {
	return KindOAuth2ClientCredentials
}

// Token returns the cached token while it stays valid for longer than
// RenewBefore, otherwise it requests a new one.
func (s *IdentityTokenSource) Token(ctx context.Context) (Token, error) {
	if s == nil {
		return Token{}, fmt.Errorf("auth: token source is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.config.Now().UTC()
	if s.cached != nil && s.cached.ExpiresAt.After(now.Add(s.config.RenewBefore)) {
		return *s.cached, nil
	}

	issued, err := s.issue(ctx, now)
	if err != nil {
		s.cached = nil
		return Token{}, err
	}
	s.cached = &issued
	return issued, nil
}

// Invalidate drops the cached token so the next call requests a new one.
func (s *IdentityTokenSource) Invalidate() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

func (s *IdentityTokenSource) issue(ctx context.Context, now time.Time) (Token, error) {
	payload := identityResponse{}
	_, err := transport.DoJSON(ctx, s.transport, core.TransportRequest{
		Method: http.MethodGet,
		URL:    s.config.TokenURL,
		Query: map[string]string{
			"grant_type":    "client_credentials",
			"client_id":     s.config.ClientID,
			"client_secret": s.config.ClientSecret,
		},
		Timeout: s.config.Timeout,
	}, nil, &payload)
	if err != nil {
		return Token{}, err
	}
	if payload.Error != "" || strings.TrimSpace(payload.AccessToken) == "" {
		message := firstNonEmpty(payload.ErrorDescription, payload.Error, "identity response has no access token")
		return Token{}, goerrors.New("auth: "+message, goerrors.CategoryAuth).
			WithCode(http.StatusUnauthorized).
			WithTextCode(core.ServiceErrorUnauthorized).
			WithMetadata(map[string]any{"auth_kind": KindOAuth2ClientCredentials})
	}

	ttl := time.Duration(payload.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return Token{
		AccessToken: strings.TrimSpace(payload.AccessToken),
		TokenType:   firstNonEmpty(payload.TokenType, "bearer"),
		Scope:       strings.TrimSpace(payload.Scope),
		ExpiresAt:   now.Add(ttl),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
