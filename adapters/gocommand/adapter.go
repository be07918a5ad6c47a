package gocommand

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"

	marketocommand "github.com/goliatone/go-marketo/command"
	"github.com/goliatone/go-marketo/core"
	marketoquery "github.com/goliatone/go-marketo/query"
)

// ValidateMessageContract checks that msg carries a non empty Type() and
// passes its own Validate() when it has one.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

// RegistryAdapter wraps a go-command registry so Marketo commands can be
// mirrored into resolvers such as the go-job queue registry.
type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(cmd)
}

func (a *RegistryAdapter) AddResolver(key string, resolver command.Resolver) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.AddResolver(strings.TrimSpace(key), resolver)
}

// AddQueueResolver mirrors every registered command into queueRegistry so it
// can be scheduled as a go-job task.
func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return a.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	if a == nil || a.registry == nil {
		return false
	}
	return a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

// RegisterAndSubscribe subscribes cmd on the dispatcher and registers it with
// the adapter registry. The subscription is dropped when registration fails.
func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	subscription := commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
	if err := adapter.RegisterCommand(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

// Subscriptions groups dispatcher subscriptions created for one service.
type Subscriptions []commanddispatcher.Subscription

func (s Subscriptions) Unsubscribe() {
	for _, subscription := range s {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
}

// MarketoService is the surface needed to serve every Marketo command and
// query message.
type MarketoService interface {
	marketocommand.LeadMutator
	marketoquery.FieldReader
	marketoquery.LeadReader
	marketoquery.ConnectionChecker
}

// RegisterMarketo subscribes the lead commands and the read queries for
// service. Commands are also registered with the adapter registry; the
// enqueue command is only wired when leadQueue is non nil.
func RegisterMarketo(
	adapter *RegistryAdapter,
	service MarketoService,
	leadQueue marketocommand.LeadSyncEnqueuer,
	runnerOpts ...runner.Option,
) (Subscriptions, error) {
	if service == nil {
		return nil, fmt.Errorf("gocommand: marketo service is required")
	}

	subs := Subscriptions{}
	fail := func(err error) (Subscriptions, error) {
		subs.Unsubscribe()
		return nil, err
	}

	syncSub, err := RegisterAndSubscribe[marketocommand.SyncLeadMessage](adapter, marketocommand.NewSyncLeadCommand(service), runnerOpts...)
	if err != nil {
		return fail(err)
	}
	subs = append(subs, syncSub)

	deleteSub, err := RegisterAndSubscribe[marketocommand.DeleteLeadMessage](adapter, marketocommand.NewDeleteLeadCommand(service), runnerOpts...)
	if err != nil {
		return fail(err)
	}
	subs = append(subs, deleteSub)

	if leadQueue != nil {
		enqueueSub, err := RegisterAndSubscribe[marketocommand.EnqueueLeadSyncMessage](adapter, marketocommand.NewEnqueueLeadSyncCommand(leadQueue), runnerOpts...)
		if err != nil {
			return fail(err)
		}
		subs = append(subs, enqueueSub)
	}

	subs = append(subs,
		commanddispatcher.SubscribeQuery[marketoquery.GetFieldsMessage, []core.Field](marketoquery.NewGetFieldsQuery(service), runnerOpts...),
		commanddispatcher.SubscribeQuery[marketoquery.GetLeadMessage, core.Lead](marketoquery.NewGetLeadQuery(service), runnerOpts...),
		commanddispatcher.SubscribeQuery[marketoquery.GetLeadActivityMessage, []core.Activity](marketoquery.NewGetLeadActivityQuery(service), runnerOpts...),
		commanddispatcher.SubscribeQuery[marketoquery.CanConnectMessage, bool](marketoquery.NewCanConnectQuery(service), runnerOpts...),
	)
	return subs, nil
}
