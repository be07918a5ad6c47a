package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type capturingEnqueuer struct {
	last *JobExecutionMessage
	err  error
}

func (e *capturingEnqueuer) Enqueue(_ context.Context, msg *JobExecutionMessage) error {
	e.last = msg
	return e.err
}

type stubDelivery struct {
	msg      *JobExecutionMessage
	acked    bool
	nacked   bool
	nackOpts JobNackOptions
}

func (d *stubDelivery) Message() *JobExecutionMessage { return d.msg }

func (d *stubDelivery) Ack(context.Context) error {
	d.acked = true
	return nil
}

func (d *stubDelivery) Nack(_ context.Context, opts JobNackOptions) error {
	d.nacked = true
	d.nackOpts = opts
	return nil
}

type stubDequeuer struct {
	delivery JobDelivery
	err      error
}

func (d stubDequeuer) Dequeue(context.Context) (JobDelivery, error) {
	return d.delivery, d.err
}

type leadSyncerFunc func(ctx context.Context, req SyncLeadRequest) ([]RecordStatus, error)

func (f leadSyncerFunc) SyncLead(ctx context.Context, req SyncLeadRequest) ([]RecordStatus, error) {
	return f(ctx, req)
}

type recordingHook struct {
	started, succeeded, failed, retried int
}

func (h *recordingHook) OnStart(context.Context, JobWorkerEvent)   { h.started++ }
func (h *recordingHook) OnSuccess(context.Context, JobWorkerEvent) { h.succeeded++ }
func (h *recordingHook) OnFailure(context.Context, JobWorkerEvent) { h.failed++ }
func (h *recordingHook) OnRetry(context.Context, JobWorkerEvent)   { h.retried++ }

func TestLeadSyncQueue_EnqueueBuildsJobMessage(t *testing.T) {
	enqueuer := &capturingEnqueuer{}
	queue := NewLeadSyncQueue(enqueuer)

	key, err := queue.Enqueue(context.Background(), SyncLeadRequest{
		Lead:   Lead{"email": "jane@example.com"},
		Key:    "email",
		Cookie: "id:abc",
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if key == "" {
		t.Fatalf("expected generated idempotency key")
	}
	if enqueuer.last == nil || enqueuer.last.JobID != JobIDLeadSync {
		t.Fatalf("expected lead sync job message, got %#v", enqueuer.last)
	}
	if enqueuer.last.IdempotencyKey != key {
		t.Fatalf("expected returned key to match message idempotency key")
	}

	decoded, err := DecodeLeadSyncJobMessage(enqueuer.last)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Cookie != "id:abc" || decoded.Lead["email"] != "jane@example.com" {
		t.Fatalf("unexpected decoded request: %#v", decoded)
	}
}

func TestLeadSyncQueue_RejectsEmptyLead(t *testing.T) {
	queue := NewLeadSyncQueue(&capturingEnqueuer{})
	if _, err := queue.Enqueue(context.Background(), SyncLeadRequest{}); err == nil {
		t.Fatalf("expected empty lead to be rejected")
	}
}

func TestLeadSyncWorker_AcksSuccessfulSync(t *testing.T) {
	msg, err := NewLeadSyncJobMessage(SyncLeadRequest{Lead: Lead{"email": "a@example.com"}, Key: "email"}, "idem-1")
	if err != nil {
		t.Fatalf("new message: %v", err)
	}
	delivery := &stubDelivery{msg: msg}
	hook := &recordingHook{}
	called := false
	worker := NewLeadSyncWorker(leadSyncerFunc(func(_ context.Context, req SyncLeadRequest) ([]RecordStatus, error) {
		called = true
		if req.Key != "email" {
			t.Fatalf("expected lookup key to survive queueing, got %q", req.Key)
		}
		return []RecordStatus{{ID: 1, Status: RecordStatusUpdated}}, nil
	}), hook)

	if err := worker.ProcessNext(context.Background(), stubDequeuer{delivery: delivery}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if !called || !delivery.acked || delivery.nacked {
		t.Fatalf("expected sync and ack, got called=%v acked=%v nacked=%v", called, delivery.acked, delivery.nacked)
	}
	if hook.started != 1 || hook.succeeded != 1 {
		t.Fatalf("unexpected hook counts: %#v", hook)
	}
}

func TestLeadSyncWorker_RequeuesRemoteFailure(t *testing.T) {
	msg, _ := NewLeadSyncJobMessage(SyncLeadRequest{Lead: Lead{"email": "a@example.com"}}, "idem-2")
	delivery := &stubDelivery{msg: msg}
	hook := &recordingHook{}
	worker := NewLeadSyncWorker(leadSyncerFunc(func(context.Context, SyncLeadRequest) ([]RecordStatus, error) {
		return nil, errors.New("marketo: 502")
	}), hook)

	if err := worker.ProcessNext(context.Background(), stubDequeuer{delivery: delivery}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if !delivery.nacked || !delivery.nackOpts.Requeue || delivery.nackOpts.DeadLetter {
		t.Fatalf("expected requeue nack, got %#v", delivery.nackOpts)
	}
	if delivery.nackOpts.Delay != leadSyncRetryDelay {
		t.Fatalf("expected retry delay %s, got %s", leadSyncRetryDelay, delivery.nackOpts.Delay)
	}
	if hook.retried != 1 {
		t.Fatalf("expected retry hook")
	}
}

func TestLeadSyncWorker_DeadLettersUnconfiguredService(t *testing.T) {
	msg, _ := NewLeadSyncJobMessage(SyncLeadRequest{Lead: Lead{"email": "a@example.com"}}, "idem-3")
	delivery := &stubDelivery{msg: msg}
	worker := NewLeadSyncWorker(leadSyncerFunc(func(context.Context, SyncLeadRequest) ([]RecordStatus, error) {
		return nil, fmt.Errorf("client: %w", ErrNotConfigured)
	}), nil)

	if err := worker.ProcessNext(context.Background(), stubDequeuer{delivery: delivery}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if !delivery.nackOpts.DeadLetter || delivery.nackOpts.Requeue {
		t.Fatalf("expected dead letter, got %#v", delivery.nackOpts)
	}
}

func TestLeadSyncWorker_DeadLettersInvalidPayload(t *testing.T) {
	delivery := &stubDelivery{msg: &JobExecutionMessage{JobID: JobIDLeadSync, Parameters: map[string]any{"lead": "nope"}}}
	worker := NewLeadSyncWorker(leadSyncerFunc(func(context.Context, SyncLeadRequest) ([]RecordStatus, error) {
		t.Fatalf("sync must not run for invalid payloads")
		return nil, nil
	}), nil)

	if err := worker.ProcessNext(context.Background(), stubDequeuer{delivery: delivery}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if !delivery.nackOpts.DeadLetter {
		t.Fatalf("expected invalid payload to be dead-lettered")
	}
}

func TestLeadSyncWorker_PropagatesDequeueError(t *testing.T) {
	sentinel := errors.New("queue closed")
	worker := NewLeadSyncWorker(leadSyncerFunc(func(context.Context, SyncLeadRequest) ([]RecordStatus, error) {
		return nil, nil
	}), nil)
	if err := worker.ProcessNext(context.Background(), stubDequeuer{err: sentinel}); !errors.Is(err, sentinel) {
		t.Fatalf("expected dequeue error, got %v", err)
	}
}

func TestLeadSyncWorker_RateLimitedSyncUsesRetryAfter(t *testing.T) {
	msg, err := NewLeadSyncJobMessage(SyncLeadRequest{Lead: Lead{"email": "jane@example.com"}}, "idem-throttle")
	if err != nil {
		t.Fatalf("new job message: %v", err)
	}
	delivery := &stubDelivery{msg: msg}
	throttleErr := goerrors.New("bucket throttled", goerrors.CategoryRateLimit).
		WithTextCode(ServiceErrorRateLimited).
		WithMetadata(map[string]any{"retry_after_ms": int64(3600000)})
	syncer := leadSyncerFunc(func(context.Context, SyncLeadRequest) ([]RecordStatus, error) {
		return nil, throttleErr
	})

	if err := NewLeadSyncWorker(syncer, nil).ProcessNext(context.Background(), stubDequeuer{delivery: delivery}); err != nil {
		t.Fatalf("process next: %v", err)
	}
	if !delivery.nackOpts.Requeue || !delivery.nackOpts.Throttled {
		t.Fatalf("expected throttled requeue, got %#v", delivery.nackOpts)
	}
	if delivery.nackOpts.Delay != time.Hour {
		t.Fatalf("expected retry after delay of 1h, got %s", delivery.nackOpts.Delay)
	}
}

func TestLeadSyncWorker_RateLimitWithoutRetryAfterUsesDefaultDelay(t *testing.T) {
	msg, err := NewLeadSyncJobMessage(SyncLeadRequest{Lead: Lead{"email": "jane@example.com"}}, "idem-606")
	if err != nil {
		t.Fatalf("new job message: %v", err)
	}
	delivery := &stubDelivery{msg: msg}
	syncer := leadSyncerFunc(func(context.Context, SyncLeadRequest) ([]RecordStatus, error) {
		return nil, goerrors.New("rate limit exceeded", goerrors.CategoryRateLimit)
	})

	if err := NewLeadSyncWorker(syncer, nil).ProcessNext(context.Background(), stubDequeuer{delivery: delivery}); err != nil {
		t.Fatalf("process next: %v", err)
	}
	if !delivery.nackOpts.Throttled || delivery.nackOpts.Delay != leadSyncRetryDelay {
		t.Fatalf("unexpected nack options: %#v", delivery.nackOpts)
	}
}
