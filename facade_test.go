package marketo

import (
	"context"
	"testing"

	marketocommand "github.com/goliatone/go-marketo/command"
	"github.com/goliatone/go-marketo/core"
	marketoquery "github.com/goliatone/go-marketo/query"
)

func TestNewFacade_WiresCommandsAndQueries(t *testing.T) {
	facade, err := NewFacade(&stubFacadeService{})
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	commands := facade.Commands()
	if commands.SyncLead == nil || commands.DeleteLead == nil {
		t.Fatalf("expected command handlers to be wired")
	}
	if commands.EnqueueLeadSync != nil {
		t.Fatalf("expected enqueue command to stay nil without a queue")
	}
	queries := facade.Queries()
	if queries.GetFields == nil || queries.GetLead == nil || queries.GetLeadActivity == nil || queries.CanConnect == nil {
		t.Fatalf("expected query handlers to be wired")
	}
}

func TestFacade_CommandAndQueryDelegation(t *testing.T) {
	svc := &stubFacadeService{}
	queue := &stubFacadeQueue{}

	facade, err := NewFacade(svc, WithLeadSyncQueue(queue))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	if err := facade.Commands().DeleteLead.Execute(context.Background(), marketocommand.DeleteLeadMessage{
		LeadIDs: []int{5, 6},
	}); err != nil {
		t.Fatalf("execute delete command: %v", err)
	}
	if len(svc.lastDeleteIDs) != 2 || svc.lastDeleteIDs[1] != 6 {
		t.Fatalf("unexpected delete delegation payload: %v", svc.lastDeleteIDs)
	}

	if err := facade.Commands().EnqueueLeadSync.Execute(context.Background(), marketocommand.EnqueueLeadSyncMessage{
		Request: core.SyncLeadRequest{Lead: core.Lead{"email": "lead@example.com"}},
	}); err != nil {
		t.Fatalf("execute enqueue command: %v", err)
	}
	if queue.calls != 1 {
		t.Fatalf("expected one enqueue call, got %d", queue.calls)
	}

	lead, err := facade.Queries().GetLead.Query(context.Background(), marketoquery.GetLeadMessage{
		Key:        "lead@example.com",
		FilterType: "email",
	})
	if err != nil {
		t.Fatalf("query lead: %v", err)
	}
	if lead["email"] != "lead@example.com" || svc.lastFilterType != "email" {
		t.Fatalf("unexpected lead query result: %#v", lead)
	}

	connected, err := facade.Queries().CanConnect.Query(context.Background(), marketoquery.CanConnectMessage{})
	if err != nil {
		t.Fatalf("query can connect: %v", err)
	}
	if !connected {
		t.Fatalf("expected stub service to report connectable")
	}
}

func TestNewFacade_ResolvesQueueFromService(t *testing.T) {
	facade, err := NewFacade(&queueingFacadeService{})
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	if facade.Commands().EnqueueLeadSync == nil {
		t.Fatalf("expected enqueue command when the service can enqueue")
	}
}

func TestNewFacade_RequiresService(t *testing.T) {
	facade, err := NewFacade(nil)
	if err == nil {
		t.Fatalf("expected nil service error")
	}
	if facade != nil {
		t.Fatalf("expected nil facade on error")
	}
}

type stubFacadeService struct {
	lastDeleteIDs  []int
	lastFilterType string
}

func (s *stubFacadeService) SyncLead(context.Context, core.SyncLeadRequest) ([]core.RecordStatus, error) {
	return []core.RecordStatus{{ID: 1, Status: core.RecordStatusCreated}}, nil
}

func (s *stubFacadeService) DeleteLead(_ context.Context, ids ...int) ([]core.RecordStatus, error) {
	s.lastDeleteIDs = append([]int(nil), ids...)
	return nil, nil
}

func (s *stubFacadeService) GetFields(context.Context) ([]core.Field, error) {
	return []core.Field{{ID: 1, DisplayName: "Email Address"}}, nil
}

func (s *stubFacadeService) GetLead(_ context.Context, key string, filterType string) (core.Lead, error) {
	s.lastFilterType = filterType
	return core.Lead{"id": float64(1), filterType: key}, nil
}

func (s *stubFacadeService) GetLeadActivity(context.Context, string, string) ([]core.Activity, error) {
	return nil, nil
}

func (s *stubFacadeService) CanConnect() bool {
	return true
}

type queueingFacadeService struct {
	stubFacadeService
}

func (s *queueingFacadeService) Enqueue(context.Context, core.SyncLeadRequest) (string, error) {
	return "idem", nil
}

type stubFacadeQueue struct {
	calls int
}

func (q *stubFacadeQueue) Enqueue(context.Context, core.SyncLeadRequest) (string, error) {
	q.calls++
	return "idem-1", nil
}

var _ CommandQueryService = (*stubFacadeService)(nil)
