package query

import (
	"context"

	"github.com/goliatone/go-marketo/core"
)

type FieldReader interface {
	GetFields(ctx context.Context) ([]core.Field, error)
}

type LeadReader interface {
	GetLead(ctx context.Context, key string, filterType string) (core.Lead, error)
	GetLeadActivity(ctx context.Context, key string, filterType string) ([]core.Activity, error)
}

type ConnectionChecker interface {
	CanConnect() bool
}

type GetFieldsQuery struct {
	reader FieldReader
}

func NewGetFieldsQuery(reader FieldReader) *GetFieldsQuery {
	return &GetFieldsQuery{reader: reader}
}

func (q *GetFieldsQuery) Query(ctx context.Context, _ GetFieldsMessage) ([]core.Field, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: field reader is required")
	}
	fields, err := q.reader.GetFields(ctx)
	if err != nil {
		return nil, core.MapError(err)
	}
	return fields, nil
}

type GetLeadQuery struct {
	reader LeadReader
}

func NewGetLeadQuery(reader LeadReader) *GetLeadQuery {
	return &GetLeadQuery{reader: reader}
}

func (q *GetLeadQuery) Query(ctx context.Context, msg GetLeadMessage) (core.Lead, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: lead reader is required")
	}
	lead, err := q.reader.GetLead(ctx, msg.Key, msg.FilterType)
	if err != nil {
		return nil, core.MapError(err)
	}
	return lead, nil
}

type GetLeadActivityQuery struct {
	reader LeadReader
}

func NewGetLeadActivityQuery(reader LeadReader) *GetLeadActivityQuery {
	return &GetLeadActivityQuery{reader: reader}
}

func (q *GetLeadActivityQuery) Query(ctx context.Context, msg GetLeadActivityMessage) ([]core.Activity, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: lead reader is required")
	}
	activities, err := q.reader.GetLeadActivity(ctx, msg.Key, msg.FilterType)
	if err != nil {
		return nil, core.MapError(err)
	}
	return activities, nil
}

// CanConnectQuery reports whether all credential settings are present. It
// does not contact Marketo.
type CanConnectQuery struct {
	checker ConnectionChecker
}

func NewCanConnectQuery(checker ConnectionChecker) *CanConnectQuery {
	return &CanConnectQuery{checker: checker}
}

func (q *CanConnectQuery) Query(_ context.Context, _ CanConnectMessage) (bool, error) {
	if q == nil || q.checker == nil {
		return false, queryDependencyError("query: connection checker is required")
	}
	return q.checker.CanConnect(), nil
}
