// Package marketo adapts stored Marketo credentials into a REST client and
// exposes lead, field and activity operations over it.
package marketo

import (
	"github.com/goliatone/go-marketo/core"
	providersmarketo "github.com/goliatone/go-marketo/providers/marketo"
	"github.com/goliatone/go-marketo/ratelimit"
)

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ClientConfig = core.ClientConfig
type SettingsSource = core.SettingsSource
type SettingsWriter = core.SettingsWriter
type SecretProvider = core.SecretProvider
type MarketoClient = core.MarketoClient
type ClientFactory = core.ClientFactory

type Field = core.Field
type Lead = core.Lead
type Activity = core.Activity
type RecordStatus = core.RecordStatus
type SyncLeadRequest = core.SyncLeadRequest
type SyncOptions = core.SyncOptions

var (
	ErrNotConfigured = core.ErrNotConfigured
	ErrLeadNotFound  = core.ErrLeadNotFound
)

var (
	WithLogger          = core.WithLogger
	WithLoggerProvider  = core.WithLoggerProvider
	WithMetricsRecorder = core.WithMetricsRecorder
	WithSecretProvider  = core.WithSecretProvider
	WithSettingsSource  = core.WithSettingsSource
	WithConfigProvider  = core.WithConfigProvider
	WithOptionsResolver = core.WithOptionsResolver
	WithClientFactory   = core.WithClientFactory
	WithClientConfig    = core.WithClientConfig
	WithRateLimitPolicy = core.WithRateLimitPolicy
	WithClock           = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// NewService builds a service whose client talks to the Marketo REST API and
// backs off in memory when the instance reports throttling. The REST client
// logs through the service logger. WithRateLimitPolicy or
// WithRateLimitStateStore replace the in memory back-off; a WithClientFactory
// option replaces the REST client factory.
func NewService(cfg Config, opts ...Option) (*Service, error) {
	var svc *Service
	withDefaults := make([]Option, 0, len(opts)+2)
	withDefaults = append(withDefaults,
		core.WithRateLimitPolicy(ratelimit.NewAdaptivePolicy(ratelimit.NewMemoryStateStore())),
		core.WithClientFactory(func(clientConfig ClientConfig, runtime Config) (MarketoClient, error) {
			return providersmarketo.NewClientFactory(nil,
				providersmarketo.WithRateLimitPolicy(svc.RateLimitPolicy()),
				providersmarketo.WithLogger(svc.Logger()),
			)(clientConfig, runtime)
		}),
	)
	withDefaults = append(withDefaults, opts...)

	var err error
	svc, err = core.NewService(cfg, withDefaults...)
	if err != nil {
		return nil, err
	}
	return svc, nil
}

// WithRateLimitStateStore keeps throttle state in store, for example a
// store/sql RateLimitStateStore shared by every process of the same instance.
func WithRateLimitStateStore(store ratelimit.StateStore) Option {
	if store == nil {
		return nil
	}
	return core.WithRateLimitPolicy(ratelimit.NewAdaptivePolicy(store))
}

func NewClient(cfg providersmarketo.Config) (*providersmarketo.Client, error) {
	return providersmarketo.New(cfg)
}
