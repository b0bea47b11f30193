package install

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-shopify-provisioner/core"
	"github.com/redis/go-redis/v9"
)

const defaultRedisStatePrefix = "go-shopify-provisioner:oauth-state"

// clearPendingScript drops the tenant's pending marker only while it still
// names the consumed state, so a newer Begin stays visible.
var clearPendingScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStateStore keeps OAuth states in Redis so any replica can finish an
// install another replica began. Entries expire with the state TTL.
type RedisStateStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisStateStore(client redis.UniversalClient, ttl time.Duration) (*RedisStateStore, error) {
	if client == nil {
		return nil, fmt.Errorf("install: redis client is required")
	}
	if ttl <= 0 {
		ttl = core.DefaultOAuthStateTTL
	}
	return &RedisStateStore{
		client: client,
		prefix: defaultRedisStatePrefix,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *RedisStateStore) Save(ctx context.Context, record core.OAuthStateRecord) error {
	state := strings.TrimSpace(record.State)
	if state == "" {
		return fmt.Errorf("install: oauth state is required")
	}
	record.State = state
	record = core.PrepareOAuthStateRecord(record, s.now(), s.ttl)
	ttl := record.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return fmt.Errorf("install: oauth state already expired")
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("install: encode oauth state: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.stateKey(state), payload, ttl)
	pipe.Set(ctx, s.pendingKey(record.TenantID), state, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("install: save oauth state: %w", err)
	}
	return nil
}

func (s *RedisStateStore) Consume(ctx context.Context, state string) (core.OAuthStateRecord, error) {
	state = strings.TrimSpace(state)
	if state == "" {
		return core.OAuthStateRecord{}, fmt.Errorf("install: oauth state is required")
	}
	raw, err := s.client.GetDel(ctx, s.stateKey(state)).Bytes()
	if errors.Is(err, redis.Nil) {
		return core.OAuthStateRecord{}, fmt.Errorf("install: oauth state not found")
	}
	if err != nil {
		return core.OAuthStateRecord{}, fmt.Errorf("install: consume oauth state: %w", err)
	}

	var record core.OAuthStateRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return core.OAuthStateRecord{}, fmt.Errorf("install: decode oauth state: %w", err)
	}
	if err := clearPendingScript.Run(ctx, s.client, []string{s.pendingKey(record.TenantID)}, state).Err(); err != nil {
		return core.OAuthStateRecord{}, fmt.Errorf("install: clear pending state: %w", err)
	}
	if !record.ExpiresAt.IsZero() && s.now().After(record.ExpiresAt) {
		return core.OAuthStateRecord{}, fmt.Errorf("install: oauth state expired")
	}
	return record, nil
}

func (s *RedisStateStore) Pending(ctx context.Context, tenant core.TenantID) (bool, error) {
	count, err := s.client.Exists(ctx, s.pendingKey(tenant)).Result()
	if err != nil {
		return false, fmt.Errorf("install: read pending state: %w", err)
	}
	return count > 0, nil
}

func (s *RedisStateStore) stateKey(state string) string {
	return s.prefix + ":state:" + state
}

func (s *RedisStateStore) pendingKey(tenant core.TenantID) string {
	return s.prefix + ":pending:" + tenant.String()
}

var _ core.OAuthStateStore = (*RedisStateStore)(nil)
