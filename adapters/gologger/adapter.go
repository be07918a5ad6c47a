package gologger

import (
	"context"
	"strings"

	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-marketo/core"
)

// Resolve picks provider, then logger, then a nop logger. A blank name
// resolves the marketo logger.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(loggerName(name), provider, logger)
}

// ServiceOptions returns service options that install the resolved logger
// pair on a core.Service.
func ServiceOptions(provider glog.LoggerProvider, logger glog.Logger) []core.Option {
	resolvedProvider, resolvedLogger := Resolve(core.DefaultServiceName, provider, logger)
	return []core.Option{
		core.WithLoggerProvider(resolvedProvider),
		core.WithLogger(resolvedLogger),
	}
}

func ToJobProvider(provider glog.LoggerProvider) job.LoggerProvider {
	if provider == nil {
		return nil
	}
	return job.GoLoggerProvider(provider)
}

func ToJobLogger(logger glog.Logger) job.Logger {
	if logger == nil {
		return nil
	}
	return job.GoLogger(logger)
}

// ResolveForJob resolves the glog pair and returns the go-job bridges for
// queue workers running lead syncs.
func ResolveForJob(
	name string,
	provider glog.LoggerProvider,
	logger glog.Logger,
) (glog.LoggerProvider, glog.Logger, job.LoggerProvider, job.Logger) {
	resolvedProvider, resolvedLogger := Resolve(name, provider, logger)
	return resolvedProvider, resolvedLogger, ToJobProvider(resolvedProvider), ToJobLogger(resolvedLogger)
}

// WorkerLogHook logs lead sync worker transitions.
type WorkerLogHook struct {
	logger glog.Logger
}

func NewWorkerLogHook(logger glog.Logger) *WorkerLogHook {
	return &WorkerLogHook{logger: glog.Ensure(logger)}
}

func (h *WorkerLogHook) OnStart(ctx context.Context, event core.JobWorkerEvent) {
	h.log(ctx).Debug("marketo lead sync started", eventFields(event)...)
}

func (h *WorkerLogHook) OnSuccess(ctx context.Context, event core.JobWorkerEvent) {
	h.log(ctx).Info("marketo lead sync completed", append(eventFields(event), "duration_ms", event.Duration.Milliseconds())...)
}

func (h *WorkerLogHook) OnFailure(ctx context.Context, event core.JobWorkerEvent) {
	h.log(ctx).Error("marketo lead sync failed", append(eventFields(event), "error", errorText(event.Err))...)
}

func (h *WorkerLogHook) OnRetry(ctx context.Context, event core.JobWorkerEvent) {
	h.log(ctx).Warn("marketo lead sync retry scheduled", append(eventFields(event), "delay_ms", event.Delay.Milliseconds(), "error", errorText(event.Err))...)
}

func (h *WorkerLogHook) log(ctx context.Context) glog.Logger {
	if h == nil || h.logger == nil {
		return glog.Nop()
	}
	if ctx == nil {
		return h.logger
	}
	return h.logger.WithContext(ctx)
}

func eventFields(event core.JobWorkerEvent) []any {
	fields := []any{"attempt", event.Attempt}
	if event.Message != nil {
		fields = append(fields, "job_id", event.Message.JobID, "idempotency_key", event.Message.IdempotencyKey)
	}
	return fields
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func loggerName(name string) string {
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		return trimmed
	}
	return core.DefaultServiceName
}

var _ core.JobWorkerHook = (*WorkerLogHook)(nil)
