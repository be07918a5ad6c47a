package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const maxSettingsPerCollection = 500

// SettingsStore keeps settings collections in the marketo_settings table.
// Values are stored as given; callers encrypt them before writing.
type SettingsStore struct {
	db   *bun.DB
	repo repository.Repository[*settingRecord]
	now  func() time.Time
}

func NewSettingsStore(db *bun.DB) (*SettingsStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*settingRecord](db, settingHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid settings repository wiring: %w", err)
		}
	}
	return &SettingsStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *SettingsStore) Settings(ctx context.Context, collection string) (map[string]string, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: settings store is not configured")
	}
	collection = strings.TrimSpace(collection)
	if collection == "" {
		return nil, fmt.Errorf("sqlstore: settings collection is required")
	}

	records, _, err := s.repo.List(ctx,
		repository.SelectBy("collection", "=", collection),
		repository.OrderBy("name ASC"),
		repository.SelectPaginate(maxSettingsPerCollection, 0),
	)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(records))
	for _, record := range records {
		out[record.Name] = record.Value
	}
	return out, nil
}

// SetSetting inserts or replaces the value of name in collection.
func (s *SettingsStore) SetSetting(ctx context.Context, collection, name, value string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: settings store is not configured")
	}
	collection = strings.TrimSpace(collection)
	name = strings.TrimSpace(name)
	if collection == "" {
		return fmt.Errorf("sqlstore: settings collection is required")
	}
	if name == "" {
		return fmt.Errorf("sqlstore: setting name is required")
	}

	now := s.now()
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := findSettingTx(ctx, tx, collection, name)
		if err != nil {
			return err
		}
		if record == nil {
			record = &settingRecord{
				ID:         uuid.NewString(),
				Collection: collection,
				Name:       name,
				Value:      value,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			_, err := tx.NewInsert().Model(record).Exec(ctx)
			return err
		}

		record.Value = value
		record.UpdatedAt = now
		_, err = tx.NewUpdate().
			Model(record).
			Column("value", "updated_at").
			WherePK().
			Exec(ctx)
		return err
	})
}

func (s *SettingsStore) DeleteSetting(ctx context.Context, collection, name string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: settings store is not configured")
	}
	_, err := s.db.NewDelete().
		Model((*settingRecord)(nil)).
		Where("collection = ?", strings.TrimSpace(collection)).
		Where("name = ?", strings.TrimSpace(name)).
		Exec(ctx)
	return err
}

func findSettingTx(ctx context.Context, tx bun.Tx, collection, name string) (*settingRecord, error) {
	record := &settingRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("collection = ?", collection).
		Where("name = ?", name).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}
