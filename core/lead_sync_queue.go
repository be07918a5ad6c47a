package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	JobIDLeadSync      = "marketo.lead.sync"
	leadSyncScriptPath = "marketo.lead.sync"
	leadSyncRetryDelay = 30 * time.Second
)

const (
	leadSyncParamLead          = "lead"
	leadSyncParamKey           = "key"
	leadSyncParamCookie        = "cookie"
	leadSyncParamAction        = "action"
	leadSyncParamPartitionName = "partition_name"
)

// LeadSyncQueue defers lead syncs to a job queue.
type LeadSyncQueue struct {
	enqueuer JobEnqueuer
	newKey   func() string
}

func NewLeadSyncQueue(enqueuer JobEnqueuer) *LeadSyncQueue {
	return &LeadSyncQueue{
		enqueuer: enqueuer,
		newKey:   func() string { return uuid.NewString() },
	}
}

func (q *LeadSyncQueue) Enqueue(ctx context.Context, req SyncLeadRequest) (string, error) {
	if q == nil || q.enqueuer == nil {
		return "", fmt.Errorf("core: lead sync enqueuer is not configured")
	}
	msg, err := NewLeadSyncJobMessage(req, q.newKey())
	if err != nil {
		return "", err
	}
	if err := q.enqueuer.Enqueue(ctx, msg); err != nil {
		return "", err
	}
	return msg.IdempotencyKey, nil
}

func NewLeadSyncJobMessage(req SyncLeadRequest, idempotencyKey string) (*JobExecutionMessage, error) {
	if len(req.Lead) == 0 {
		return nil, fmt.Errorf("core: lead payload is required")
	}
	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}
	return &JobExecutionMessage{
		JobID:      JobIDLeadSync,
		ScriptPath: leadSyncScriptPath,
		Parameters: map[string]any{
			leadSyncParamLead:          map[string]any(req.Lead.Clone()),
			leadSyncParamKey:           strings.TrimSpace(req.Key),
			leadSyncParamCookie:        strings.TrimSpace(req.Cookie),
			leadSyncParamAction:        strings.TrimSpace(req.Options.Action),
			leadSyncParamPartitionName: strings.TrimSpace(req.Options.PartitionName),
		},
		IdempotencyKey: idempotencyKey,
	}, nil
}

func DecodeLeadSyncJobMessage(msg *JobExecutionMessage) (SyncLeadRequest, error) {
	if msg == nil {
		return SyncLeadRequest{}, fmt.Errorf("core: lead sync job message is required")
	}
	if strings.TrimSpace(msg.JobID) != JobIDLeadSync {
		return SyncLeadRequest{}, fmt.Errorf("core: unexpected job id %q", msg.JobID)
	}
	var lead Lead
	switch typed := msg.Parameters[leadSyncParamLead].(type) {
	case Lead:
		lead = typed.Clone()
	case map[string]any:
		lead = Lead(typed).Clone()
	default:
		return SyncLeadRequest{}, fmt.Errorf("core: lead sync job lead payload is invalid")
	}
	return SyncLeadRequest{
		Lead:   lead,
		Key:    paramString(msg.Parameters, leadSyncParamKey),
		Cookie: paramString(msg.Parameters, leadSyncParamCookie),
		Options: SyncOptions{
			Action:        paramString(msg.Parameters, leadSyncParamAction),
			PartitionName: paramString(msg.Parameters, leadSyncParamPartitionName),
		},
	}, nil
}

func paramString(params map[string]any, key string) string {
	value, ok := params[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

type LeadSyncer interface {
	SyncLead(ctx context.Context, req SyncLeadRequest) ([]RecordStatus, error)
}

// LeadSyncWorker drains queued lead syncs one delivery at a time.
type LeadSyncWorker struct {
	syncer     LeadSyncer
	hook       JobWorkerHook
	retryDelay time.Duration
}

func NewLeadSyncWorker(syncer LeadSyncer, hook JobWorkerHook) *LeadSyncWorker {
	return &LeadSyncWorker{
		syncer:     syncer,
		hook:       hook,
		retryDelay: leadSyncRetryDelay,
	}
}

// ProcessNext handles one delivery. Undecodable messages and missing
// credentials are dead-lettered; remote failures are requeued. A rate limited
// sync is requeued as throttled after the back-off the error carries.
func (w *LeadSyncWorker) ProcessNext(ctx context.Context, dequeuer JobDequeuer) error {
	if w == nil || w.syncer == nil {
		return fmt.Errorf("core: lead sync worker is not configured")
	}
	if dequeuer == nil {
		return fmt.Errorf("core: job dequeuer is required")
	}
	delivery, err := dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	if delivery == nil {
		return nil
	}

	startedAt := time.Now().UTC()
	event := JobWorkerEvent{Message: delivery.Message(), Attempt: deliveryAttempt(delivery), StartedAt: startedAt}
	w.onStart(ctx, event)

	req, err := DecodeLeadSyncJobMessage(delivery.Message())
	if err != nil {
		event.Err = err
		event.Duration = time.Since(startedAt)
		w.onFailure(ctx, event)
		return delivery.Nack(ctx, JobNackOptions{DeadLetter: true, Reason: err.Error()})
	}

	if _, err := w.syncer.SyncLead(ctx, req); err != nil {
		event.Err = err
		event.Duration = time.Since(startedAt)
		if errors.Is(err, ErrNotConfigured) {
			w.onFailure(ctx, event)
			return delivery.Nack(ctx, JobNackOptions{DeadLetter: true, Reason: err.Error()})
		}
		nack := JobNackOptions{Delay: w.retryDelay, Requeue: true, Reason: err.Error()}
		if retryAfter, throttled := RetryAfter(err); throttled {
			nack.Throttled = true
			if retryAfter > 0 {
				nack.Delay = retryAfter
			}
		}
		event.Delay = nack.Delay
		w.onRetry(ctx, event)
		return delivery.Nack(ctx, nack)
	}

	event.Duration = time.Since(startedAt)
	w.onSuccess(ctx, event)
	return delivery.Ack(ctx)
}

func deliveryAttempt(delivery JobDelivery) int {
	if counted, ok := delivery.(interface{ Attempt() int }); ok && counted.Attempt() > 0 {
		return counted.Attempt()
	}
	return 1
}

func (w *LeadSyncWorker) onStart(ctx context.Context, event JobWorkerEvent) {
	if w.hook != nil {
		w.hook.OnStart(ctx, event)
	}
}

func (w *LeadSyncWorker) onSuccess(ctx context.Context, event JobWorkerEvent) {
	if w.hook != nil {
		w.hook.OnSuccess(ctx, event)
	}
}

func (w *LeadSyncWorker) onFailure(ctx context.Context, event JobWorkerEvent) {
	if w.hook != nil {
		w.hook.OnFailure(ctx, event)
	}
}

func (w *LeadSyncWorker) onRetry(ctx context.Context, event JobWorkerEvent) {
	if w.hook != nil {
		w.hook.OnRetry(ctx, event)
	}
}
