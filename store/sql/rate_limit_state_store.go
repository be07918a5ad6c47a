package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-marketo/ratelimit"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RateLimitStateStore keeps throttle state in the marketo_rate_limit_state
// table, one row per bucket, so back-offs survive restarts and are shared by
// every process talking to the same Marketo instance.
type RateLimitStateStore struct {
	db   *bun.DB
	repo repository.Repository[*rateLimitStateRecord]
	now  func() time.Time
}

func NewRateLimitStateStore(db *bun.DB) (*RateLimitStateStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*rateLimitStateRecord](db, rateLimitStateHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid rate-limit state repository wiring: %w", err)
		}
	}
	return &RateLimitStateStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *RateLimitStateStore) Get(ctx context.Context, bucket string) (ratelimit.State, error) {
	if s == nil || s.repo == nil {
		return ratelimit.State{}, fmt.Errorf("sqlstore: rate-limit state store is not configured")
	}
	bucket = normalizeBucket(bucket)
	if bucket == "" {
		return ratelimit.State{}, fmt.Errorf("sqlstore: rate-limit bucket is required")
	}

	record, err := s.repo.GetByIdentifier(ctx, bucket)
	if err != nil {
		if isNotFound(err) {
			return ratelimit.State{}, ratelimit.ErrStateNotFound
		}
		return ratelimit.State{}, err
	}
	return record.toDomain(), nil
}

func (s *RateLimitStateStore) Upsert(ctx context.Context, state ratelimit.State) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: rate-limit state store is not configured")
	}
	state.Bucket = normalizeBucket(state.Bucket)
	if state.Bucket == "" {
		return fmt.Errorf("sqlstore: rate-limit bucket is required")
	}
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = s.now()
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := s.repo.GetByIdentifierTx(ctx, tx, state.Bucket)
		created := false
		switch {
		case err == nil:
		case isNotFound(err):
			created = true
			record = &rateLimitStateRecord{
				ID:        uuid.NewString(),
				Bucket:    state.Bucket,
				CreatedAt: state.UpdatedAt.UTC(),
			}
		default:
			return err
		}

		record.ThrottledUntil = copyTimePointer(state.ThrottledUntil)
		record.LastStatus = state.LastStatus
		record.LastCode = strings.TrimSpace(state.LastCode)
		record.Attempts = state.Attempts
		record.UpdatedAt = state.UpdatedAt.UTC()

		if created {
			_, err := tx.NewInsert().Model(record).Exec(ctx)
			return err
		}
		_, err = tx.NewUpdate().
			Model(record).
			Column("throttled_until", "last_status", "last_code", "attempts", "updated_at").
			WherePK().
			Exec(ctx)
		return err
	})
}

func (r *rateLimitStateRecord) toDomain() ratelimit.State {
	if r == nil {
		return ratelimit.State{}
	}
	return ratelimit.State{
		Bucket:         r.Bucket,
		ThrottledUntil: copyTimePointer(r.ThrottledUntil),
		LastStatus:     r.LastStatus,
		LastCode:       r.LastCode,
		Attempts:       r.Attempts,
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

func normalizeBucket(bucket string) string {
	return strings.ToLower(strings.TrimSpace(bucket))
}

func isNotFound(err error) bool {
	return repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows)
}

func copyTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}
