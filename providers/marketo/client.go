package marketo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-marketo/auth"
	"github.com/goliatone/go-marketo/core"
	"github.com/goliatone/go-marketo/transport"
)

const (
	ProviderID = "marketo"

	defaultHostSuffix = ".mktorest.com"
	identityPath      = "/identity/oauth/token"

	pathDescribeLeads = "/rest/v1/leads/describe.json"
	pathLeads         = "/rest/v1/leads.json"
	pathDeleteLeads   = "/rest/v1/leads/delete.json"
	pathPagingToken   = "/rest/v1/activities/pagingtoken.json"
	pathActivities    = "/rest/v1/activities.json"

	maxActivityTypeIDs = 10
	maxLeadIDs         = 30
)

type Config struct {
	MunchkinID   string
	ClientID     string
	ClientSecret string
	// BaseURL overrides https://{munchkin}.mktorest.com.
	BaseURL string
	// IdentityURL overrides {base}/identity/oauth/token.
	IdentityURL string
	Timeout     time.Duration
	Transport   core.TransportAdapter
	// RateLimit gates calls per instance; nil disables throttling.
	RateLimit core.RateLimitPolicy
	// Logger receives rate limit bookkeeping failures; nil discards them.
	Logger core.Logger
	Now    func() time.Time
}

// ClientOption adjusts the client config built by NewClientFactory.
type ClientOption func(*Config)

func WithRateLimitPolicy(policy core.RateLimitPolicy) ClientOption {
	return func(cfg *Config) {
		cfg.RateLimit = policy
	}
}

func WithLogger(logger core.Logger) ClientOption {
	return func(cfg *Config) {
		cfg.Logger = logger
	}
}

type tokenSource interface {
	Token(ctx context.Context) (auth.Token, error)
	Invalidate()
}

// Client implements core.MarketoClient against the Marketo REST API.
type Client struct {
	baseURL   string
	transport core.TransportAdapter
	tokens    tokenSource
	timeout   time.Duration
	limiter   core.RateLimitPolicy
	bucket    string
	logger    core.Logger
}

func BaseURLForMunchkin(munchkinID string) string {
	trimmed := strings.TrimSpace(munchkinID)
	if trimmed == "" {
		return ""
	}
	return "https://" + trimmed + defaultHostSuffix
}

func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = BaseURLForMunchkin(cfg.MunchkinID)
	}
	if baseURL == "" {
		return nil, fmt.Errorf("providers/marketo: munchkin id or base url is required")
	}
	identityURL := strings.TrimSpace(cfg.IdentityURL)
	if identityURL == "" {
		identityURL = baseURL + identityPath
	}

	adapter := cfg.Transport
	if adapter == nil {
		adapter = transport.NewRESTAdapter(nil)
	}
	tokens, err := auth.NewIdentityTokenSource(auth.IdentityTokenSourceConfig{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     identityURL,
		Timeout:      cfg.Timeout,
		Now:          cfg.Now,
	}, adapter)
	if err != nil {
		return nil, fmt.Errorf("providers/marketo: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = glog.Nop()
	}

	return &Client{
		baseURL:   baseURL,
		transport: adapter,
		tokens:    tokens,
		timeout:   cfg.Timeout,
		limiter:   cfg.RateLimit,
		bucket:    firstNonEmpty(cfg.MunchkinID, baseURL),
		logger:    logger,
	}, nil
}

// NewClientFactory returns a core.ClientFactory that builds REST clients on
// top of adapter. A nil adapter uses a default REST adapter.
func NewClientFactory(adapter core.TransportAdapter, opts ...ClientOption) core.ClientFactory {
	return func(clientConfig core.ClientConfig, cfg core.Config) (core.MarketoClient, error) {
		clientCfg := Config{
			MunchkinID:   clientConfig.MunchkinID,
			ClientID:     clientConfig.ClientID,
			ClientSecret: clientConfig.ClientSecret,
			BaseURL:      cfg.REST.BaseURL,
			IdentityURL:  cfg.REST.IdentityURL,
			Timeout:      time.Duration(cfg.REST.TimeoutSeconds) * time.Second,
			Transport:    adapter,
		}
		for _, opt := range opts {
			if opt != nil {
				opt(&clientCfg)
			}
		}
		return New(clientCfg)
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) GetFields(ctx context.Context) ([]core.Field, error) {
	fields := []core.Field{}
	if _, err := c.call(ctx, http.MethodGet, pathDescribeLeads, nil, nil, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func (c *Client) GetLeadByFilterType(ctx context.Context, filter core.LeadFilter) ([]core.Lead, error) {
	filterType := strings.TrimSpace(filter.Type)
	values := compactStrings(filter.Values)
	if filterType == "" {
		return nil, fmt.Errorf("providers/marketo: filter type is required")
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("providers/marketo: filter values are required")
	}

	leads := []core.Lead{}
	_, err := c.call(ctx, http.MethodGet, pathLeads, map[string]string{
		"filterType":   filterType,
		"filterValues": strings.Join(values, ","),
	}, nil, &leads)
	if err != nil {
		return nil, err
	}
	return leads, nil
}

func (c *Client) GetPagingToken(ctx context.Context, since time.Time) (string, error) {
	if since.IsZero() {
		return "", fmt.Errorf("providers/marketo: since datetime is required")
	}
	res, err := c.call(ctx, http.MethodGet, pathPagingToken, map[string]string{
		"sinceDatetime": since.Format(time.RFC3339),
	}, nil, nil)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(res.NextPageToken) == "" {
		return "", c.envelopeError(res, "paging token response has no nextPageToken")
	}
	return res.NextPageToken, nil
}

func (c *Client) GetLeadActivity(ctx context.Context, req core.ActivityRequest) (core.ActivityPage, error) {
	token := strings.TrimSpace(req.NextPageToken)
	if token == "" {
		return core.ActivityPage{}, fmt.Errorf("providers/marketo: next page token is required")
	}
	if len(req.ActivityTypeIDs) == 0 || len(req.ActivityTypeIDs) > maxActivityTypeIDs {
		return core.ActivityPage{}, fmt.Errorf("providers/marketo: between 1 and %d activity type ids are required", maxActivityTypeIDs)
	}
	if len(req.LeadIDs) > maxLeadIDs {
		return core.ActivityPage{}, fmt.Errorf("providers/marketo: at most %d lead ids are allowed", maxLeadIDs)
	}

	query := map[string]string{
		"nextPageToken":   token,
		"activityTypeIds": joinInts(req.ActivityTypeIDs),
	}
	if len(req.LeadIDs) > 0 {
		query["leadIds"] = joinInts(req.LeadIDs)
	}

	activities := []core.Activity{}
	res, err := c.call(ctx, http.MethodGet, pathActivities, query, nil, &activities)
	if err != nil {
		return core.ActivityPage{}, err
	}
	return core.ActivityPage{
		NextPageToken: res.NextPageToken,
		MoreResult:    res.MoreResult,
		Activities:    activities,
	}, nil
}

type syncLeadsBody struct {
	Action        string      `json:"action"`
	LookupField   string      `json:"lookupField"`
	PartitionName string      `json:"partitionName,omitempty"`
	Input         []core.Lead `json:"input"`
}

func (c *Client) CreateOrUpdateLeads(ctx context.Context, leads []core.Lead, opts core.SyncOptions) ([]core.RecordStatus, error) {
	if len(leads) == 0 {
		return nil, fmt.Errorf("providers/marketo: at least one lead is required")
	}
	body := syncLeadsBody{
		Action:        firstNonEmpty(opts.Action, core.SyncActionCreateOrUpdate),
		LookupField:   firstNonEmpty(opts.LookupField, core.DefaultLookupField),
		PartitionName: strings.TrimSpace(opts.PartitionName),
		Input:         leads,
	}
	statuses := []core.RecordStatus{}
	if _, err := c.call(ctx, http.MethodPost, pathLeads, nil, body, &statuses); err != nil {
		return nil, err
	}
	return statuses, nil
}

type deleteLeadsBody struct {
	Input []leadRef `json:"input"`
}

type leadRef struct {
	ID int `json:"id"`
}

func (c *Client) DeleteLeads(ctx context.Context, ids []int) ([]core.RecordStatus, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("providers/marketo: at least one lead id is required")
	}
	body := deleteLeadsBody{Input: make([]leadRef, 0, len(ids))}
	for _, id := range ids {
		body.Input = append(body.Input, leadRef{ID: id})
	}
	statuses := []core.RecordStatus{}
	if _, err := c.call(ctx, http.MethodPost, pathDeleteLeads, nil, body, &statuses); err != nil {
		return nil, err
	}
	return statuses, nil
}

// call executes one API request. An expired or invalid access token drops the
// cached token and retries the request once. Each attempt passes through the
// rate limit policy when one is configured.
func (c *Client) call(
	ctx context.Context,
	method string,
	path string,
	query map[string]string,
	body any,
	result any,
) (apiResponse, error) {
	if c == nil {
		return apiResponse{}, fmt.Errorf("providers/marketo: client is nil")
	}

	var res apiResponse
	for attempt := 0; attempt < 2; attempt++ {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return apiResponse{}, err
		}

		if c.limiter != nil {
			if err := c.limiter.BeforeCall(ctx, c.bucket); err != nil {
				return apiResponse{}, err
			}
		}

		res = apiResponse{}
		raw, err := transport.DoJSON(ctx, c.transport, core.TransportRequest{
			Method:  method,
			URL:     c.baseURL + path,
			Query:   query,
			Headers: map[string]string{"Authorization": token.Header()},
			Timeout: c.timeout,
		}, body, &res)
		c.observeCall(ctx, method, path, raw, res)
		if err != nil {
			return apiResponse{}, err
		}
		if res.Success {
			break
		}
		if attempt == 0 && res.tokenRejected() {
			c.tokens.Invalidate()
			continue
		}
		return res, c.envelopeError(res, "")
	}
	if !res.Success {
		return res, c.envelopeError(res, "")
	}

	if result != nil && len(res.Result) > 0 {
		if err := json.Unmarshal(res.Result, result); err != nil {
			return res, goerrors.Wrap(err, goerrors.CategoryExternal, "providers/marketo: decode result").
				WithCode(http.StatusBadGateway).
				WithTextCode(core.ServiceErrorExternalFailure).
				WithMetadata(map[string]any{"provider_id": ProviderID, "request_id": res.RequestID, "path": path})
		}
	}
	return res, nil
}

// observeCall feeds the call outcome to the rate limit policy. Policy store
// failures are logged and never returned.
func (c *Client) observeCall(ctx context.Context, method, path string, raw core.TransportResponse, res apiResponse) {
	if c.limiter == nil || raw.StatusCode == 0 {
		return
	}
	outcome := core.CallOutcome{StatusCode: raw.StatusCode, Headers: raw.Headers}
	if !res.Success && len(res.Errors) > 0 {
		outcome.APICode = res.Errors[0].Code
	}
	if err := c.limiter.AfterCall(ctx, c.bucket, outcome); err != nil && c.logger != nil {
		c.logger.WithContext(ctx).Warn("marketo rate limit state update failed",
			"bucket", c.bucket,
			"method", method,
			"path", path,
			"status", raw.StatusCode,
			"error", err,
		)
	}
}

func compactStrings(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func joinInts(values []int) string {
	parts := make([]string, 0, len(values))
	for _, value := range values {
		parts = append(parts, strconv.Itoa(value))
	}
	return strings.Join(parts, ",")
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

var _ core.MarketoClient = (*Client)(nil)
