package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Service wraps a Marketo REST client built from encrypted host settings. The
// client is constructed on first use and reused afterwards.
type Service struct {
	config          Config
	clientConfig    ClientConfig
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	clientFactory   ClientFactory
	rateLimit       RateLimitPolicy
	now             func() time.Time

	mu     sync.Mutex
	client MarketoClient
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve(DefaultServiceName, builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger(DefaultServiceName); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.now == nil {
		builder.now = func() time.Time { return time.Now().UTC() }
	}

	ctx := context.Background()
	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(ctx, defaults)
	if err != nil {
		return nil, err
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, err
	}

	clientConfig := ClientConfig{}
	if builder.clientConfig != nil {
		clientConfig = *builder.clientConfig
	} else if builder.settingsSource != nil {
		clientConfig, err = LoadClientConfig(ctx, builder.settingsSource, builder.secretProvider, finalConfig.SettingsName)
		if err != nil {
			return nil, err
		}
	}

	return &Service{
		config:          finalConfig,
		clientConfig:    clientConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		clientFactory:   builder.clientFactory,
		rateLimit:       builder.rateLimit,
		now:             builder.now,
	}, nil
}

// LoadClientConfig reads the credential settings and decrypts every non-empty value.
func LoadClientConfig(
	ctx context.Context,
	source SettingsSource,
	secrets SecretProvider,
	settingsName string,
) (ClientConfig, error) {
	if source == nil {
		return ClientConfig{}, fmt.Errorf("core: settings source is required")
	}
	settings, err := source.Settings(ctx, settingsName)
	if err != nil {
		return ClientConfig{}, err
	}

	clientID, err := decryptSetting(ctx, secrets, settings[SettingClientID])
	if err != nil {
		return ClientConfig{}, err
	}
	clientSecret, err := decryptSetting(ctx, secrets, settings[SettingClientSecret])
	if err != nil {
		return ClientConfig{}, err
	}
	munchkinID, err := decryptSetting(ctx, secrets, settings[SettingMunchkinID])
	if err != nil {
		return ClientConfig{}, err
	}
	return ClientConfig{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		MunchkinID:   munchkinID,
	}, nil
}

func decryptSetting(ctx context.Context, secrets SecretProvider, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", nil
	}
	if secrets == nil {
		return "", fmt.Errorf("core: secret provider is required to decrypt settings")
	}
	plaintext, err := secrets.Decrypt(ctx, []byte(trimmed))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(plaintext)), nil
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) ClientConfig() ClientConfig {
	if s == nil {
		return ClientConfig{}
	}
	return s.clientConfig
}

func (s *Service) Logger() Logger {
	if s == nil || s.logger == nil {
		return glog.Nop()
	}
	return s.logger
}

// LoggerProvider returns the provider the service logger was resolved from.
func (s *Service) LoggerProvider() LoggerProvider {
	if s == nil {
		return nil
	}
	return s.loggerProvider
}

func (s *Service) RateLimitPolicy() RateLimitPolicy {
	if s == nil {
		return nil
	}
	return s.rateLimit
}

// CanConnect reports whether all three credentials are present. It does not
// contact the remote API.
func (s *Service) CanConnect() bool {
	if s == nil {
		return false
	}
	return s.clientConfig.IsComplete()
}

// Client returns the memoized REST client, building it on first call. Factory
// failures are not memoized.
func (s *Service) Client(ctx context.Context) (MarketoClient, error) {
	if s == nil {
		return nil, fmt.Errorf("core: service is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}
	if !s.clientConfig.IsComplete() {
		s.logWarn(ctx, "marketo credentials incomplete", map[string]any{
			"missing": missingCredentials(s.clientConfig),
		})
		return nil, ErrNotConfigured
	}
	if s.clientFactory == nil {
		return nil, fmt.Errorf("core: client factory is not configured")
	}
	client, err := s.clientFactory(s.clientConfig, s.config)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, fmt.Errorf("core: client factory returned nil client")
	}
	s.client = client
	return client, nil
}

func (s *Service) GetFields(ctx context.Context) (fields []Field, err error) {
	startedAt := time.Now().UTC()
	defer func() {
		s.observeOperation(ctx, startedAt, "get_fields", err, map[string]any{"field_count": len(fields)})
	}()

	client, err := s.Client(ctx)
	if err != nil {
		return nil, err
	}
	result, err := client.GetFields(ctx)
	if err != nil {
		return nil, err
	}

	fields = make([]Field, len(result))
	for i, field := range result {
		field.DefaultName = field.REST.Name
		fields[i] = field
	}
	return fields, nil
}

func (s *Service) GetLead(ctx context.Context, key string, filterType string) (lead Lead, err error) {
	startedAt := time.Now().UTC()
	filterType = strings.TrimSpace(filterType)
	defer func() {
		s.observeOperation(ctx, startedAt, "get_lead", err, map[string]any{"filter_type": filterType})
	}()

	lead, err = s.lookupLead(ctx, key, filterType)
	return lead, err
}

func (s *Service) lookupLead(ctx context.Context, key string, filterType string) (Lead, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("core: lead key is required")
	}
	if filterType == "" {
		return nil, fmt.Errorf("core: lead filter type is required")
	}
	client, err := s.Client(ctx)
	if err != nil {
		return nil, err
	}
	leads, err := client.GetLeadByFilterType(ctx, LeadFilter{Type: filterType, Values: []string{key}})
	if err != nil {
		return nil, err
	}
	if len(leads) == 0 || leads[0] == nil {
		return nil, ErrLeadNotFound
	}
	return leads[0], nil
}

// GetLeadActivity returns the first activity page for the lead matching key,
// limited to the configured activity type ids.
func (s *Service) GetLeadActivity(ctx context.Context, key string, filterType string) (activities []Activity, err error) {
	startedAt := time.Now().UTC()
	filterType = strings.TrimSpace(filterType)
	fields := map[string]any{"filter_type": filterType}
	defer func() {
		fields["activity_count"] = len(activities)
		s.observeOperation(ctx, startedAt, "get_lead_activity", err, fields)
	}()

	lead, err := s.lookupLead(ctx, key, filterType)
	if err != nil {
		return nil, err
	}
	leadID, ok := lead.ID()
	if !ok {
		return nil, fmt.Errorf("core: lead id is missing from lookup result")
	}
	fields["lead_id"] = leadID

	client, err := s.Client(ctx)
	if err != nil {
		return nil, err
	}
	token, err := client.GetPagingToken(ctx, s.now())
	if err != nil {
		return nil, err
	}
	page, err := client.GetLeadActivity(ctx, ActivityRequest{
		NextPageToken:   token,
		LeadIDs:         []int{leadID},
		ActivityTypeIDs: append([]int(nil), s.config.Activity.TypeIDs...),
	})
	if err != nil {
		return nil, err
	}
	return page.Activities, nil
}

func (s *Service) SyncLead(ctx context.Context, req SyncLeadRequest) (statuses []RecordStatus, err error) {
	startedAt := time.Now().UTC()
	options := s.resolveSyncOptions(req)
	defer func() {
		s.observeOperation(ctx, startedAt, "sync_lead", err, map[string]any{
			"lookup_field": options.LookupField,
			"action":       options.Action,
			"has_cookie":   strings.TrimSpace(req.Cookie) != "",
		})
	}()

	if len(req.Lead) == 0 {
		return nil, fmt.Errorf("core: lead payload is required")
	}
	if !IsValidSyncAction(options.Action) {
		return nil, fmt.Errorf("core: sync action %q is invalid", options.Action)
	}

	lead := req.Lead.Clone()
	if cookie := strings.TrimSpace(req.Cookie); cookie != "" {
		lead[LeadFieldCookie] = cookie
	}

	client, err := s.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.CreateOrUpdateLeads(ctx, []Lead{lead}, options)
}

func (s *Service) resolveSyncOptions(req SyncLeadRequest) SyncOptions {
	options := req.Options
	options.LookupField = firstNonEmpty(req.Key, options.LookupField, s.config.Sync.LookupField, DefaultLookupField)
	options.Action = firstNonEmpty(options.Action, s.config.Sync.Action, SyncActionCreateOrUpdate)
	options.PartitionName = strings.TrimSpace(options.PartitionName)
	return options
}

func (s *Service) DeleteLead(ctx context.Context, ids ...int) (statuses []RecordStatus, err error) {
	startedAt := time.Now().UTC()
	defer func() {
		s.observeOperation(ctx, startedAt, "delete_lead", err, map[string]any{"lead_count": len(ids)})
	}()

	if len(ids) == 0 {
		return nil, fmt.Errorf("core: at least one lead id is required")
	}
	for _, id := range ids {
		if id <= 0 {
			return nil, fmt.Errorf("core: lead id %d is invalid", id)
		}
	}
	client, err := s.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.DeleteLeads(ctx, append([]int(nil), ids...))
}

func missingCredentials(cfg ClientConfig) []string {
	missing := make([]string, 0, 3)
	if strings.TrimSpace(cfg.ClientID) == "" {
		missing = append(missing, SettingClientID)
	}
	if strings.TrimSpace(cfg.ClientSecret) == "" {
		missing = append(missing, SettingClientSecret)
	}
	if strings.TrimSpace(cfg.MunchkinID) == "" {
		missing = append(missing, SettingMunchkinID)
	}
	return missing
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
