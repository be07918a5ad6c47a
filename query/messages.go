package query

import (
	"strings"
)

const (
	TypeGetFields       = "marketo.query.fields.get"
	TypeGetLead         = "marketo.query.lead.get"
	TypeGetLeadActivity = "marketo.query.lead_activity.get"
	TypeCanConnect      = "marketo.query.can_connect"
)

type GetFieldsMessage struct{}

func (GetFieldsMessage) Type() string { return TypeGetFields }

func (GetFieldsMessage) Validate() error { return nil }

// GetLeadMessage looks a lead up by FilterType (e.g. "email", "id") and Key.
type GetLeadMessage struct {
	Key        string
	FilterType string
}

func (GetLeadMessage) Type() string { return TypeGetLead }

func (m GetLeadMessage) Validate() error {
	return validateLookup(m.Key, m.FilterType)
}

type GetLeadActivityMessage struct {
	Key        string
	FilterType string
}

func (GetLeadActivityMessage) Type() string { return TypeGetLeadActivity }

func (m GetLeadActivityMessage) Validate() error {
	return validateLookup(m.Key, m.FilterType)
}

type CanConnectMessage struct{}

func (CanConnectMessage) Type() string { return TypeCanConnect }

func (CanConnectMessage) Validate() error { return nil }

func validateLookup(key string, filterType string) error {
	if strings.TrimSpace(key) == "" {
		return queryValidationError("key", "lead key is required")
	}
	if strings.TrimSpace(filterType) == "" {
		return queryValidationError("filter_type", "filter type is required")
	}
	return nil
}
