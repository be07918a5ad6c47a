package marketo

import (
	"fmt"

	marketocommand "github.com/goliatone/go-marketo/command"
	"github.com/goliatone/go-marketo/core"
	marketoquery "github.com/goliatone/go-marketo/query"
)

type CommandQueryService interface {
	marketocommand.LeadMutator
	marketoquery.FieldReader
	marketoquery.LeadReader
	marketoquery.ConnectionChecker
}

type Commands struct {
	SyncLead        *marketocommand.SyncLeadCommand
	DeleteLead      *marketocommand.DeleteLeadCommand
	EnqueueLeadSync *marketocommand.EnqueueLeadSyncCommand
}

type Queries struct {
	GetFields       *marketoquery.GetFieldsQuery
	GetLead         *marketoquery.GetLeadQuery
	GetLeadActivity *marketoquery.GetLeadActivityQuery
	CanConnect      *marketoquery.CanConnectQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	leadQueue marketocommand.LeadSyncEnqueuer
}

// WithLeadSyncQueue enables the EnqueueLeadSync command.
func WithLeadSyncQueue(queue marketocommand.LeadSyncEnqueuer) FacadeOption {
	return func(options *facadeOptions) {
		options.leadQueue = queue
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("marketo: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	queue := cfg.leadQueue
	if queue == nil {
		queue = resolveLeadQueue(service)
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		SyncLead:   marketocommand.NewSyncLeadCommand(service),
		DeleteLead: marketocommand.NewDeleteLeadCommand(service),
	}
	if queue != nil {
		facade.commands.EnqueueLeadSync = marketocommand.NewEnqueueLeadSyncCommand(queue)
	}
	facade.queries = Queries{
		GetFields:       marketoquery.NewGetFieldsQuery(service),
		GetLead:         marketoquery.NewGetLeadQuery(service),
		GetLeadActivity: marketoquery.NewGetLeadActivityQuery(service),
		CanConnect:      marketoquery.NewCanConnectQuery(service),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

// resolveLeadQueue uses the service itself when it can enqueue lead syncs.
func resolveLeadQueue(service CommandQueryService) marketocommand.LeadSyncEnqueuer {
	if queue, ok := service.(marketocommand.LeadSyncEnqueuer); ok {
		return queue
	}
	return nil
}

var _ CommandQueryService = (*core.Service)(nil)
