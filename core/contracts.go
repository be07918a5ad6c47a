package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// SettingsSource reads a named settings collection as flat dotted keys.
type SettingsSource interface {
	Settings(ctx context.Context, name string) (map[string]string, error)
}

type SettingsWriter interface {
	SetSetting(ctx context.Context, name string, key string, value string) error
}

type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// MarketoClient is the REST API surface the service forwards to.
type MarketoClient interface {
	GetFields(ctx context.Context) ([]Field, error)
	GetLeadByFilterType(ctx context.Context, filter LeadFilter) ([]Lead, error)
	GetPagingToken(ctx context.Context, since time.Time) (string, error)
	GetLeadActivity(ctx context.Context, req ActivityRequest) (ActivityPage, error)
	CreateOrUpdateLeads(ctx context.Context, leads []Lead, opts SyncOptions) ([]RecordStatus, error)
	DeleteLeads(ctx context.Context, ids []int) ([]RecordStatus, error)
}

type ClientFactory func(clientConfig ClientConfig, cfg Config) (MarketoClient, error)

type APIClient interface {
	GetFields(ctx context.Context) ([]Field, error)
	CanConnect() bool
	GetLead(ctx context.Context, key string, filterType string) (Lead, error)
	GetLeadActivity(ctx context.Context, key string, filterType string) ([]Activity, error)
	SyncLead(ctx context.Context, req SyncLeadRequest) ([]RecordStatus, error)
	DeleteLead(ctx context.Context, ids ...int) ([]RecordStatus, error)
}

type SyncLeadRequest struct {
	Lead    Lead
	Key     string
	Cookie  string
	Options SyncOptions
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type TransportRequest struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Query                map[string]string
	Body                 []byte
	Metadata             map[string]any
	Timeout              time.Duration
	MaxResponseBodyBytes int64
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

// CallOutcome is what a rate limit policy learns from one REST call. APICode
// holds the first Marketo error code of an unsuccessful envelope.
type CallOutcome struct {
	StatusCode int
	Headers    map[string]string
	APICode    string
}

type RateLimitPolicy interface {
	BeforeCall(ctx context.Context, bucket string) error
	AfterCall(ctx context.Context, bucket string, outcome CallOutcome) error
}

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
	// Throttled marks a requeue the remote asked for; it is not a failed attempt.
	Throttled bool
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}
