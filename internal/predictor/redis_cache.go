package predictor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/agentflow/agentflow/internal/models"
)

const redisKeyPrefix = "agentflow:prediction:"

// RedisPredictionCache is a shared prediction-cache tier backed by Redis, so
// multiple predictor processes observe the same fresh predictions. Freshness
// is enforced by key TTL; writes are idempotent overwrites.
type RedisPredictionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisPredictionCache connects to Redis and verifies connectivity
func NewRedisPredictionCache(addr, password string, db int, ttl time.Duration) (*RedisPredictionCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisPredictionCache{client: client, ttl: ttl}, nil
}

// Get retrieves a shared prediction if one is still live
func (c *RedisPredictionCache) Get(ctx context.Context, signature string) (*models.TaskPrediction, bool, error) {
	data, err := c.client.Get(ctx, redisKeyPrefix+signature).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read shared cache: %w", err)
	}

	var prediction models.TaskPrediction
	if err := json.Unmarshal(data, &prediction); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached prediction: %w", err)
	}
	return &prediction, true, nil
}

// Set stores a prediction with the configured TTL
func (c *RedisPredictionCache) Set(ctx context.Context, signature string, prediction *models.TaskPrediction) error {
	data, err := json.Marshal(prediction)
	if err != nil {
		return fmt.Errorf("failed to encode prediction: %w", err)
	}

	if err := c.client.Set(ctx, redisKeyPrefix+signature, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write shared cache: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (c *RedisPredictionCache) Close() error {
	return c.client.Close()
}
