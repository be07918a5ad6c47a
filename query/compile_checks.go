package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-marketo/core"
)

var (
	_ gocmd.Querier[GetFieldsMessage, []core.Field]          = (*GetFieldsQuery)(nil)
	_ gocmd.Querier[GetLeadMessage, core.Lead]               = (*GetLeadQuery)(nil)
	_ gocmd.Querier[GetLeadActivityMessage, []core.Activity] = (*GetLeadActivityQuery)(nil)
	_ gocmd.Querier[CanConnectMessage, bool]                 = (*CanConnectQuery)(nil)

	_ FieldReader       = (*core.Service)(nil)
	_ LeadReader        = (*core.Service)(nil)
	_ ConnectionChecker = (*core.Service)(nil)
)
