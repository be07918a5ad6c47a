package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// PersistenceConfig satisfies the go-persistence-bun client config.
type PersistenceConfig struct {
	Driver         string
	Server         string
	Debug          bool
	PingTimeout    time.Duration
	OtelIdentifier string
}

func (c PersistenceConfig) GetDebug() bool {
	return c.Debug
}

func (c PersistenceConfig) GetDriver() string {
	return c.Driver
}

func (c PersistenceConfig) GetServer() string {
	return c.Server
}

func (c PersistenceConfig) GetPingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return 5 * time.Second
	}
	return c.PingTimeout
}

func (c PersistenceConfig) GetOtelIdentifier() string {
	if strings.TrimSpace(c.OtelIdentifier) == "" {
		return "go-marketo"
	}
	return c.OtelIdentifier
}

// OpenDB opens a persistence client for driver ("sqlite3" or "postgres").
func OpenDB(driver string, dsn string) (*persistence.Client, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("sqlstore: dsn is required")
	}
	dialect, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(PersistenceConfig{Driver: driver, Server: dsn}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: new persistence client: %w", err)
	}
	return client, nil
}

func dialectFor(driver string) (schema.Dialect, error) {
	switch driver {
	case DriverSQLite, "sqlite":
		return sqlitedialect.New(), nil
	case DriverPostgres, "pg", "pgx":
		return pgdialect.New(), nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
}

// NewSettingsStoreFromPersistence accepts a *bun.DB or any client exposing
// DB() *bun.DB, such as a go-persistence-bun client.
func NewSettingsStoreFromPersistence(client any) (*SettingsStore, error) {
	db, err := resolveBunDB(client)
	if err != nil {
		return nil, err
	}
	return NewSettingsStore(db)
}

// CreateSchema creates the settings and rate-limit state tables and their
// unique indexes when missing.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	if db == nil {
		return fmt.Errorf("sqlstore: bun db is required")
	}
	if _, err := db.NewCreateTable().
		Model((*settingRecord)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("sqlstore: create settings table: %w", err)
	}
	if _, err := db.NewCreateIndex().
		Model((*settingRecord)(nil)).
		Index("marketo_settings_collection_name_idx").
		Unique().
		IfNotExists().
		Column("collection", "name").
		Exec(ctx); err != nil {
		return fmt.Errorf("sqlstore: create settings index: %w", err)
	}
	if _, err := db.NewCreateTable().
		Model((*rateLimitStateRecord)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("sqlstore: create rate-limit state table: %w", err)
	}
	if _, err := db.NewCreateIndex().
		Model((*rateLimitStateRecord)(nil)).
		Index("marketo_rate_limit_state_bucket_idx").
		Unique().
		IfNotExists().
		Column("bucket").
		Exec(ctx); err != nil {
		return fmt.Errorf("sqlstore: create rate-limit state index: %w", err)
	}
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
