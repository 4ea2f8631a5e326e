package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisKey = "lively:client:log"

// RedisRecorder mirrors the trail onto a Redis list, one JSON document per event.
// Write failures are logged and dropped; recording never fails the caller.
type RedisRecorder struct {
	client  *redis.Client
	key     string
	timeout time.Duration
	logger  *slog.Logger
}

// NewRedisRecorder parses redisURL, verifies the connection and returns a recorder
// appending to key.
func NewRedisRecorder(redisURL, key string, logger *slog.Logger) (*RedisRecorder, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisRecorderFromClient(rdb, key, logger), nil
}

func NewRedisRecorderFromClient(rdb *redis.Client, key string, logger *slog.Logger) *RedisRecorder {
	if key == "" {
		key = DefaultRedisKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisRecorder{
		client:  rdb,
		key:     key,
		timeout: 3 * time.Second,
		logger:  logger,
	}
}

func (r *RedisRecorder) Record(ev Event) {
	if r == nil || r.client == nil {
		return
	}
	doc, err := json.Marshal(ev)
	if err != nil {
		r.logger.Warn("Failed to encode event for redis", "event_id", ev.ID.String(), "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.client.RPush(ctx, r.key, doc).Err(); err != nil {
		r.logger.Warn("Failed to mirror event to redis", "key", r.key, "event_id", ev.ID.String(), "error", err)
	}
}

// Load reads the whole mirrored trail back in order.
func (r *RedisRecorder) Load(ctx context.Context) ([]Event, error) {
	docs, err := r.client.LRange(ctx, r.key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(docs))
	for _, doc := range docs {
		var ev Event
		if err := json.Unmarshal([]byte(doc), &ev); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		events = append(events, ev)
	}
	return events, nil
}

func (r *RedisRecorder) Close() error {
	return r.client.Close()
}
