package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	SettingClientID       = "rest.client_id"
	SettingClientSecret   = "rest.client_secret"
	SettingMunchkinID     = "munchkin.account_id"
	SettingTrackingMethod = "tracking_method"
)

const (
	LeadFieldID     = "id"
	LeadFieldCookie = "marketoCookie"
)

const (
	RecordStatusCreated = "created"
	RecordStatusUpdated = "updated"
	RecordStatusDeleted = "deleted"
	RecordStatusSkipped = "skipped"
)

// ClientConfig holds the decrypted credentials used to build the REST client.
type ClientConfig struct {
	ClientID     string
	ClientSecret string
	MunchkinID   string
}

func (c ClientConfig) IsComplete() bool {
	return strings.TrimSpace(c.ClientID) != "" &&
		strings.TrimSpace(c.ClientSecret) != "" &&
		strings.TrimSpace(c.MunchkinID) != ""
}

func (c ClientConfig) String() string {
	secret := ""
	if strings.TrimSpace(c.ClientSecret) != "" {
		secret = RedactedValue
	}
	return fmt.Sprintf("ClientConfig{ClientID:%q ClientSecret:%q MunchkinID:%q}", c.ClientID, secret, c.MunchkinID)
}

type FieldName struct {
	Name     string `json:"name"`
	ReadOnly bool   `json:"readOnly"`
}

type Field struct {
	ID          int        `json:"id"`
	DisplayName string     `json:"displayName"`
	DataType    string     `json:"dataType"`
	Length      int        `json:"length,omitempty"`
	REST        FieldName  `json:"rest"`
	SOAP        *FieldName `json:"soap,omitempty"`
	DefaultName string     `json:"default_name,omitempty"`
}

// Lead is a pass-through lead record keyed by REST field name.
type Lead map[string]any

func (l Lead) ID() (int, bool) {
	if l == nil {
		return 0, false
	}
	switch typed := l[LeadFieldID].(type) {
	case int:
		return typed, true
	case int64:
		return int(typed), true
	case float64:
		return int(typed), true
	case json.Number:
		value, err := typed.Int64()
		if err != nil {
			return 0, false
		}
		return int(value), true
	case string:
		value, err := strconv.Atoi(strings.TrimSpace(typed))
		if err != nil {
			return 0, false
		}
		return value, true
	default:
		return 0, false
	}
}

func (l Lead) Clone() Lead {
	if l == nil {
		return Lead{}
	}
	out := make(Lead, len(l))
	for key, value := range l {
		out[key] = value
	}
	return out
}

type LeadFilter struct {
	Type   string
	Values []string
}

type ActivityAttribute struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

type Activity struct {
	ID                      int                 `json:"id"`
	MarketoGUID             string              `json:"marketoGUID,omitempty"`
	LeadID                  int                 `json:"leadId"`
	ActivityDate            time.Time           `json:"activityDate"`
	ActivityTypeID          int                 `json:"activityTypeId"`
	PrimaryAttributeValueID int                 `json:"primaryAttributeValueId,omitempty"`
	PrimaryAttributeValue   string              `json:"primaryAttributeValue,omitempty"`
	Attributes              []ActivityAttribute `json:"attributes,omitempty"`
}

type ActivityPage struct {
	NextPageToken string
	MoreResult    bool
	Activities    []Activity
}

type ActivityRequest struct {
	NextPageToken   string
	LeadIDs         []int
	ActivityTypeIDs []int
}

type SyncOptions struct {
	Action        string
	LookupField   string
	PartitionName string
}

type Reason struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RecordStatus is the per-record outcome of sync and delete calls.
type RecordStatus struct {
	ID      int      `json:"id,omitempty"`
	Status  string   `json:"status"`
	Reasons []Reason `json:"reasons,omitempty"`
}

func (r RecordStatus) Skipped() bool {
	return strings.EqualFold(strings.TrimSpace(r.Status), RecordStatusSkipped)
}
