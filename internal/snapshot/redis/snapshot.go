package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"github.com/fundacjapwm/paw-aid-cart/internal/domain"
	"github.com/fundacjapwm/paw-aid-cart/internal/snapshot"
)

const (
	linesKeyPrefix   = "cart:lines:"
	savedAtKeyPrefix = "cart:saved_at:"
)

var snapshotsExpired = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "cart_snapshots_expired_total",
		Help: "Number of cart snapshots discarded as stale at load time",
	},
)

// Store implements snapshot.Store on Redis using two keys per device
// session: the serialized cart array and an RFC 3339 write-time marker.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	// retention is a housekeeping expiration on the Redis keys themselves,
	// well beyond the cart TTL; the cart TTL is enforced at load time.
	retention time.Duration
	now       func() time.Time
}

// NewStore creates a Redis-backed snapshot store with the given cart TTL.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{
		client:    client,
		ttl:       ttl,
		retention: 7 * ttl,
		now:       time.Now,
	}
}

// Load returns the persisted cart for the session, or an empty cart on
// absence, corruption, or expiry. When the snapshot has expired, both keys
// are deleted as a side effect. The returned error is diagnostic only.
func (s *Store) Load(ctx context.Context, sessionID string) (domain.Lines, error) {
	linesKey := linesKeyPrefix + sessionID
	savedAtKey := savedAtKeyPrefix + sessionID

	savedAt, err := s.client.Get(ctx, savedAtKey).Result()
	if err != nil && err != redis.Nil {
		return domain.Lines{}, fmt.Errorf("redis get saved_at: %w", err)
	}

	if snapshot.Expired(savedAt, s.ttl, s.now().UTC()) {
		snapshotsExpired.Inc()
		if err := s.client.Del(ctx, linesKey, savedAtKey).Err(); err != nil {
			return domain.Lines{}, fmt.Errorf("redis delete expired snapshot: %w", err)
		}
		return domain.Lines{}, nil
	}

	data, err := s.client.Get(ctx, linesKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return domain.Lines{}, nil
		}
		return domain.Lines{}, fmt.Errorf("redis get snapshot: %w", err)
	}

	var lines domain.Lines
	if err := json.Unmarshal(data, &lines); err != nil {
		return domain.Lines{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return lines, nil
}

// Save persists the cart. An empty cart removes both keys; a non-empty cart
// writes the lines and sets the write-time marker only if none exists yet,
// so the expiry window stays anchored to the first item added.
func (s *Store) Save(ctx context.Context, sessionID string, lines domain.Lines) error {
	linesKey := linesKeyPrefix + sessionID
	savedAtKey := savedAtKeyPrefix + sessionID

	if len(lines) == 0 {
		if err := s.client.Del(ctx, linesKey, savedAtKey).Err(); err != nil {
			return fmt.Errorf("redis delete snapshot: %w", err)
		}
		return nil
	}

	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := s.client.Set(ctx, linesKey, data, s.retention).Err(); err != nil {
		return fmt.Errorf("redis set snapshot: %w", err)
	}

	// SetNX keeps an existing marker, so the expiry window stays anchored
	// to the first item added.
	marker := s.now().UTC().Format(time.RFC3339Nano)
	if err := s.client.SetNX(ctx, savedAtKey, marker, s.retention).Err(); err != nil {
		return fmt.Errorf("redis set saved_at: %w", err)
	}

	return nil
}

// Clear removes both keys for the session.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, linesKeyPrefix+sessionID, savedAtKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("redis clear snapshot: %w", err)
	}
	return nil
}
