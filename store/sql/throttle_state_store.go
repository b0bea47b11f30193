package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-shopify-provisioner/core"
	"github.com/goliatone/go-shopify-provisioner/ratelimit"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ThrottleStateStore shares a shop's throttle window between processes
// pointed at the same database, e.g. the server and the CLI.
type ThrottleStateStore struct {
	db   *bun.DB
	repo repository.Repository[*shopThrottleRecord]
}

func NewThrottleStateStore(db *bun.DB) (*ThrottleStateStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*shopThrottleRecord](db, shopThrottleHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid throttle state repository wiring: %w", err)
		}
	}
	return &ThrottleStateStore{db: db, repo: repo}, nil
}

func (s *ThrottleStateStore) Get(ctx context.Context, tenant core.TenantID) (ratelimit.State, error) {
	if s == nil || s.db == nil {
		return ratelimit.State{}, fmt.Errorf("sqlstore: throttle state store is not configured")
	}
	record := &shopThrottleRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.shop = ?", throttleShop(tenant)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ratelimit.State{}, ratelimit.ErrStateNotFound
		}
		return ratelimit.State{}, err
	}
	return record.toDomain(), nil
}

func (s *ThrottleStateStore) Upsert(ctx context.Context, state ratelimit.State) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: throttle state store is not configured")
	}
	shop := throttleShop(state.Tenant)
	if shop == "" {
		return fmt.Errorf("sqlstore: shop is required")
	}
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now().UTC()
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record := &shopThrottleRecord{}
		err := tx.NewSelect().
			Model(record).
			Where("?TableAlias.shop = ?", shop).
			Limit(1).
			Scan(ctx)
		created := false
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
			created = true
			record = &shopThrottleRecord{
				ID:        uuid.NewString(),
				Shop:      shop,
				CreatedAt: state.UpdatedAt.UTC(),
			}
		}
		record.CallLimit = state.Limit
		record.Remaining = state.Remaining
		record.RetryAfterMS = nil
		if state.RetryAfter != nil {
			ms := state.RetryAfter.Milliseconds()
			record.RetryAfterMS = &ms
		}
		record.ThrottledUntil = nil
		if state.ThrottledUntil != nil {
			until := state.ThrottledUntil.UTC()
			record.ThrottledUntil = &until
		}
		record.LastStatus = state.LastStatus
		record.Attempts = state.Attempts
		record.UpdatedAt = state.UpdatedAt.UTC()

		if created {
			_, err = tx.NewInsert().Model(record).Exec(ctx)
			return err
		}
		_, err = tx.NewUpdate().
			Model(record).
			Where("id = ?", record.ID).
			Exec(ctx)
		return err
	})
}

func (r *shopThrottleRecord) toDomain() ratelimit.State {
	state := ratelimit.State{
		Tenant:     core.TenantID(r.Shop),
		Limit:      r.CallLimit,
		Remaining:  r.Remaining,
		LastStatus: r.LastStatus,
		Attempts:   r.Attempts,
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
	if r.RetryAfterMS != nil {
		retryAfter := time.Duration(*r.RetryAfterMS) * time.Millisecond
		state.RetryAfter = &retryAfter
	}
	if r.ThrottledUntil != nil {
		until := r.ThrottledUntil.UTC()
		state.ThrottledUntil = &until
	}
	return state
}

func throttleShop(tenant core.TenantID) string {
	return strings.ToLower(strings.TrimSpace(tenant.String()))
}
