package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kjannette/npt-backend/internal/models"
	"github.com/redis/go-redis/v9"
)

// IngestChannel carries JSON-encoded models.IngestSummary messages.
const IngestChannel = "npt:ingest"

// LatestKey holds the most recent summary for late subscribers.
const LatestKey = "npt:ingest:latest"

type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// DialRedis parses a redis:// URL and checks the server answers.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func (p *RedisPublisher) Notify(ctx context.Context, sum models.IngestSummary) error {
	data, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := p.client.Set(ctx, LatestKey, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set latest: %w", err)
	}
	if err := p.client.Publish(ctx, IngestChannel, data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}
