package core

import (
	"fmt"
	"strings"
)

const (
	DefaultServiceName    = "marketo"
	DefaultSettingsName   = "marketo_ma.settings"
	DefaultLookupField    = "email"
	DefaultTimeoutSeconds = 30

	// MaxActivityTypeIDs is the per-request limit of the activities endpoint.
	MaxActivityTypeIDs = 10
)

const (
	SyncActionCreateOrUpdate  = "createOrUpdate"
	SyncActionCreateOnly      = "createOnly"
	SyncActionUpdateOnly      = "updateOnly"
	SyncActionCreateDuplicate = "createDuplicate"
)

type RESTConfig struct {
	BaseURL        string `koanf:"base_url" mapstructure:"base_url"`
	IdentityURL    string `koanf:"identity_url" mapstructure:"identity_url"`
	TimeoutSeconds int    `koanf:"timeout_seconds" mapstructure:"timeout_seconds"`
}

type ActivityConfig struct {
	TypeIDs []int `koanf:"type_ids" mapstructure:"type_ids"`
}

type SyncConfig struct {
	LookupField string `koanf:"lookup_field" mapstructure:"lookup_field"`
	Action      string `koanf:"action" mapstructure:"action"`
}

type Config struct {
	ServiceName  string         `koanf:"service_name" mapstructure:"service_name"`
	SettingsName string         `koanf:"settings_name" mapstructure:"settings_name"`
	REST         RESTConfig     `koanf:"rest" mapstructure:"rest"`
	Activity     ActivityConfig `koanf:"activity" mapstructure:"activity"`
	Sync         SyncConfig     `koanf:"sync" mapstructure:"sync"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:  DefaultServiceName,
		SettingsName: DefaultSettingsName,
		REST: RESTConfig{
			TimeoutSeconds: DefaultTimeoutSeconds,
		},
		Activity: ActivityConfig{
			// Common activities: visit webpage, fill out form, click link.
			TypeIDs: []int{1, 2, 3},
		},
		Sync: SyncConfig{
			LookupField: DefaultLookupField,
			Action:      SyncActionCreateOrUpdate,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.SettingsName) == "" {
		return fmt.Errorf("core: settings_name is required")
	}
	if c.REST.TimeoutSeconds < 0 {
		return fmt.Errorf("core: rest.timeout_seconds must not be negative")
	}
	if len(c.Activity.TypeIDs) == 0 {
		return fmt.Errorf("core: activity.type_ids is required")
	}
	if len(c.Activity.TypeIDs) > MaxActivityTypeIDs {
		return fmt.Errorf("core: activity.type_ids accepts at most %d ids", MaxActivityTypeIDs)
	}
	for _, id := range c.Activity.TypeIDs {
		if id <= 0 {
			return fmt.Errorf("core: activity.type_ids contains invalid id %d", id)
		}
	}
	if action := strings.TrimSpace(c.Sync.Action); action != "" && !IsValidSyncAction(action) {
		return fmt.Errorf("core: sync.action %q is invalid", action)
	}
	return nil
}

func IsValidSyncAction(action string) bool {
	switch strings.TrimSpace(action) {
	case SyncActionCreateOrUpdate, SyncActionCreateOnly, SyncActionUpdateOnly, SyncActionCreateDuplicate:
		return true
	default:
		return false
	}
}
