// Package cache owns the Redis connection and the activity feed consumed by
// the historian service.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list carrying game activity records.
var DefaultQueueName = "codenames_activity"

// ActivityRecord is one entry on the activity feed. The historian uses the
// feed to track per-game liveness; gameplay itself never depends on it.
type ActivityRecord struct {
	GameID    uuid.UUID `json:"game_id"`
	Timestamp int64     `json:"timestamp"` // epoch millis
}

// Connect builds a Redis client from environment variables:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
func Connect() (*redis.Client, error) {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("REDIS_DB", 0)

	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// Publisher pushes activity records onto the feed. It satisfies the
// orchestrator's ActivityPublisher.
type Publisher struct {
	rdb   *redis.Client
	queue string
}

func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{
		rdb:   rdb,
		queue: getEnv("HISTORIAN_QUEUE_NAME", DefaultQueueName),
	}
}

// PublishActivity serializes the record and RPushes it. This is a quick
// network send, never a blocking wait.
func (p *Publisher) PublishActivity(ctx context.Context, gameID uuid.UUID, at time.Time) error {
	data, err := json.Marshal(ActivityRecord{GameID: gameID, Timestamp: at.UnixMilli()})
	if err != nil {
		return fmt.Errorf("failed to marshal ActivityRecord: %w", err)
	}
	if err := p.rdb.RPush(ctx, p.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", p.queue, err)
	}
	return nil
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
