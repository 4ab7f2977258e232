package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisSeqKey    = "staycast:ledger:seq"
	redisEventsKey = "staycast:ledger:events"
)

// RedisStore implements the ledger on Redis, enabling multi-instance
// deployments to share one audit trail. Ids come from an INCR sequence and
// events are LPUSHed onto a list, so the head of the list is always the most
// recent prediction and List maps directly onto LRANGE.
type RedisStore struct {
	client *redis.Client
	mu     sync.Mutex
}

// NewRedisStore creates a Redis-backed ledger.
//
// Parameters:
//   - addr: Redis server address (e.g., "localhost:6379")
//   - password: Redis password (empty string for no auth)
//   - db: Redis database number (typically 0)
//
// Returns an error if the connection to Redis fails or parameters are invalid.
func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	if addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	if db < 0 {
		return nil, errors.New("redis database number must be >= 0")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return &RedisStore{client: client}, nil
}

// Append assigns the next sequence id, serializes the event, and pushes it
// onto the head of the events list.
func (r *RedisStore) Append(ctx context.Context, event Event) (int64, error) {
	if len(event.Payload) == 0 {
		return 0, fmt.Errorf("event payload cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := r.client.Incr(ctx, redisSeqKey).Result()
	if err != nil {
		return 0, fmt.Errorf("allocate event id: %w", err)
	}
	event.ID = id

	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("marshal event: %w", err)
	}

	if err := r.client.LPush(ctx, redisEventsKey, data).Err(); err != nil {
		return 0, fmt.Errorf("push event to redis: %w", err)
	}

	return id, nil
}

// List returns up to limit events, most recent first.
func (r *RedisStore) List(ctx context.Context, limit int) ([]Event, error) {
	limit = normalizeLimit(limit)

	raw, err := r.client.LRange(ctx, redisEventsKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read events from redis: %w", err)
	}

	events := make([]Event, 0, len(raw))
	for _, item := range raw {
		var e Event
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("unmarshal event: %w", err)
		}
		events = append(events, e)
	}
	return events, nil
}

// Close closes the Redis client connection. Safe to call multiple times.
func (r *RedisStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client == nil {
		return nil
	}

	err := r.client.Close()
	r.client = nil
	if err != nil && err.Error() == "redis: client is closed" {
		return nil
	}
	return err
}

// Ping checks the Redis connection health.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
