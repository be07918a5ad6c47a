package sqlstore

import (
	"github.com/goliatone/go-marketo/core"
	"github.com/goliatone/go-marketo/ratelimit"
)

var (
	_ core.SettingsSource = (*SettingsStore)(nil)
	_ core.SettingsWriter = (*SettingsStore)(nil)
)

var (
	_ ratelimit.StateStore = (*RateLimitStateStore)(nil)
	_ ratelimit.StateStore = (*CachedRateLimitStateStore)(nil)
)
