package gojob

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-marketo/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

const JobIDLeadSync = core.JobIDLeadSync

// RetryPolicy bounds lead sync retries. Throttled nacks are capped by
// MaxThrottleDelay and do not count toward MaxAttempts.
type RetryPolicy struct {
	MaxAttempts      int
	MaxDelay         time.Duration
	MaxThrottleDelay time.Duration
	DeadLetterOnMax  bool
}

func DefaultLeadSyncRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:      5,
		MaxDelay:         5 * time.Minute,
		MaxThrottleDelay: 25 * time.Hour,
		DeadLetterOnMax:  true,
	}
}

// NormalizeAttempt applies the policy to a nack issued on attempt.
func (p RetryPolicy) NormalizeAttempt(opts core.JobNackOptions, attempt int) core.JobNackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	maxDelay := p.MaxDelay
	if out.Throttled {
		maxDelay = p.MaxThrottleDelay
	}
	if maxDelay > 0 && out.Delay > maxDelay {
		out.Delay = maxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
		out.Throttled = false
	}
	if !out.Throttled && p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

func ToExecutionMessage(msg *core.JobExecutionMessage) *job.ExecutionMessage {
	if msg == nil {
		return nil
	}
	return &job.ExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		ScriptPath:     strings.TrimSpace(msg.ScriptPath),
		Parameters:     copyAnyMap(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    job.DeduplicationPolicy(strings.TrimSpace(msg.DedupPolicy)),
	}
}

func FromExecutionMessage(msg *job.ExecutionMessage) *core.JobExecutionMessage {
	if msg == nil {
		return nil
	}
	return &core.JobExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		ScriptPath:     strings.TrimSpace(msg.ScriptPath),
		Parameters:     copyAnyMap(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    strings.TrimSpace(string(msg.DedupPolicy)),
	}
}

func ToNackOptions(opts core.JobNackOptions) queue.NackOptions {
	return queue.NackOptions{
		Delay:      opts.Delay,
		Requeue:    opts.Requeue,
		DeadLetter: opts.DeadLetter,
		Reason:     opts.Reason,
	}
}

type EnqueuerAdapter struct {
	enqueuer queue.Enqueuer
}

func NewEnqueuerAdapter(enqueuer queue.Enqueuer) *EnqueuerAdapter {
	return &EnqueuerAdapter{enqueuer: enqueuer}
}

func (a *EnqueuerAdapter) Enqueue(ctx context.Context, msg *core.JobExecutionMessage) error {
	if a == nil || a.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	if msg == nil {
		return fmt.Errorf("gojob: execution message is required")
	}
	return a.enqueuer.Enqueue(ctx, ToExecutionMessage(msg))
}

// NewLeadSyncQueue returns a lead sync queue publishing to a go-job enqueuer.
func NewLeadSyncQueue(enqueuer queue.Enqueuer) *core.LeadSyncQueue {
	return core.NewLeadSyncQueue(NewEnqueuerAdapter(enqueuer))
}

// DeliveryAdapter exposes a go-job delivery to the lead sync worker. Nacks
// are normalized with the retry policy for the delivery attempt.
type DeliveryAdapter struct {
	delivery queue.Delivery
	policy   RetryPolicy
	attempt  int
	settle   func(requeued bool, throttled bool)
}

func NewDeliveryAdapter(delivery queue.Delivery, policy RetryPolicy, attempt int) *DeliveryAdapter {
	return &DeliveryAdapter{delivery: delivery, policy: policy, attempt: attempt}
}

func (d *DeliveryAdapter) Attempt() int {
	if d == nil {
		return 0
	}
	return d.attempt
}

func (d *DeliveryAdapter) Message() *core.JobExecutionMessage {
	if d == nil || d.delivery == nil {
		return nil
	}
	return FromExecutionMessage(d.delivery.Message())
}

func (d *DeliveryAdapter) Ack(ctx context.Context) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	if err := d.delivery.Ack(ctx); err != nil {
		return err
	}
	d.done(false, false)
	return nil
}

func (d *DeliveryAdapter) Nack(ctx context.Context, opts core.JobNackOptions) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	normalized := d.policy.NormalizeAttempt(opts, d.attempt)
	if err := d.delivery.Nack(ctx, ToNackOptions(normalized)); err != nil {
		return err
	}
	d.done(normalized.Requeue, normalized.Throttled)
	return nil
}

func (d *DeliveryAdapter) done(requeued bool, throttled bool) {
	if d.settle != nil {
		d.settle(requeued, throttled)
	}
}

// DequeuerAdapter counts deliveries per idempotency key so retries of the same
// lead sync are bounded by the policy within this process.
type DequeuerAdapter struct {
	dequeuer queue.Dequeuer
	policy   RetryPolicy

	mu       sync.Mutex
	attempts map[string]int
}

func NewDequeuerAdapter(dequeuer queue.Dequeuer, policy RetryPolicy) *DequeuerAdapter {
	return &DequeuerAdapter{
		dequeuer: dequeuer,
		policy:   policy,
		attempts: map[string]int{},
	}
}

func (a *DequeuerAdapter) Dequeue(ctx context.Context) (core.JobDelivery, error) {
	if a == nil || a.dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is not configured")
	}
	delivery, err := a.dequeuer.Dequeue(ctx)
	if err != nil {
		return nil, err
	}

	key := ""
	if msg := delivery.Message(); msg != nil {
		key = strings.TrimSpace(msg.IdempotencyKey)
	}
	adapter := NewDeliveryAdapter(delivery, a.policy, a.nextAttempt(key))
	if key != "" {
		adapter.settle = func(requeued bool, throttled bool) {
			switch {
			case !requeued:
				a.forget(key)
			case throttled:
				a.release(key)
			}
		}
	}
	return adapter, nil
}

func (a *DequeuerAdapter) nextAttempt(key string) int {
	if key == "" {
		return 1
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.attempts[key]++
	return a.attempts[key]
}

// release takes back the attempt spent on a throttled delivery.
func (a *DequeuerAdapter) release(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.attempts[key] > 0 {
		a.attempts[key]--
	}
}

func (a *DequeuerAdapter) forget(key string) {
	a.mu.Lock()
	delete(a.attempts, key)
	a.mu.Unlock()
}

type WorkerHookAdapter struct {
	hook core.JobWorkerHook
}

func NewWorkerHookAdapter(hook core.JobWorkerHook) *WorkerHookAdapter {
	return &WorkerHookAdapter{hook: hook}
}

func (a *WorkerHookAdapter) OnStart(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnStart(ctx, mapWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnSuccess(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnSuccess(ctx, mapWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnFailure(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnFailure(ctx, mapWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnRetry(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnRetry(ctx, mapWorkerEvent(event))
}

func mapWorkerEvent(event worker.Event) core.JobWorkerEvent {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	return core.JobWorkerEvent{
		Message:   FromExecutionMessage(message),
		Attempt:   event.Attempt,
		Delay:     event.Delay,
		Err:       event.Err,
		StartedAt: event.StartedAt,
		Duration:  event.Duration,
	}
}

func copyAnyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

var (
	_ core.JobEnqueuer = (*EnqueuerAdapter)(nil)
	_ core.JobDelivery = (*DeliveryAdapter)(nil)
	_ core.JobDequeuer = (*DequeuerAdapter)(nil)
	_ worker.Hook      = (*WorkerHookAdapter)(nil)
)
