package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-marketo/core"
)

type LeadMutator interface {
	SyncLead(ctx context.Context, req core.SyncLeadRequest) ([]core.RecordStatus, error)
	DeleteLead(ctx context.Context, ids ...int) ([]core.RecordStatus, error)
}

type LeadSyncEnqueuer interface {
	Enqueue(ctx context.Context, req core.SyncLeadRequest) (string, error)
}

type SyncLeadCommand struct {
	service LeadMutator
}

func NewSyncLeadCommand(service LeadMutator) *SyncLeadCommand {
	return &SyncLeadCommand{service: service}
}

func (c *SyncLeadCommand) Execute(ctx context.Context, msg SyncLeadMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: lead service is required")
	}
	out, err := c.service.SyncLead(ctx, msg.Request)
	if err != nil {
		return core.MapError(err)
	}
	storeResult(ctx, out)
	return nil
}

type DeleteLeadCommand struct {
	service LeadMutator
}

func NewDeleteLeadCommand(service LeadMutator) *DeleteLeadCommand {
	return &DeleteLeadCommand{service: service}
}

func (c *DeleteLeadCommand) Execute(ctx context.Context, msg DeleteLeadMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: lead service is required")
	}
	out, err := c.service.DeleteLead(ctx, msg.LeadIDs...)
	if err != nil {
		return core.MapError(err)
	}
	storeResult(ctx, out)
	return nil
}

// EnqueueLeadSyncCommand stores the idempotency key of the queued job as its
// result.
type EnqueueLeadSyncCommand struct {
	queue LeadSyncEnqueuer
}

func NewEnqueueLeadSyncCommand(queue LeadSyncEnqueuer) *EnqueueLeadSyncCommand {
	return &EnqueueLeadSyncCommand{queue: queue}
}

func (c *EnqueueLeadSyncCommand) Execute(ctx context.Context, msg EnqueueLeadSyncMessage) error {
	if c == nil || c.queue == nil {
		return commandDependencyError("command: lead sync queue is required")
	}
	key, err := c.queue.Enqueue(ctx, msg.Request)
	if err != nil {
		return core.MapError(err)
	}
	storeResult(ctx, key)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
