package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

// settingRecord stores one encrypted setting value of a named collection.
type settingRecord struct {
	bun.BaseModel `bun:"table:marketo_settings,alias:ms"`

	ID         string    `bun:"id,pk"`
	Collection string    `bun:"collection,notnull"`
	Name       string    `bun:"name,notnull"`
	Value      string    `bun:"value,notnull"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// rateLimitStateRecord keeps the throttle state of one Marketo instance bucket.
type rateLimitStateRecord struct {
	bun.BaseModel `bun:"table:marketo_rate_limit_state,alias:mrl"`

	ID             string     `bun:"id,pk"`
	Bucket         string     `bun:"bucket,notnull"`
	ThrottledUntil *time.Time `bun:"throttled_until,nullzero"`
	LastStatus     int        `bun:"last_status,notnull"`
	LastCode       string     `bun:"last_code,notnull"`
	Attempts       int        `bun:"attempts,notnull"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
