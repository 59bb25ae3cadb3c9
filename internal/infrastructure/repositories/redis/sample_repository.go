package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"netqos/internal/core/domain"
	"netqos/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

const sampleRetention = 5 * time.Minute

// RedisSampleRepository stores samples in a sorted set scored by the sample
// timestamp, so SamplesSince is a single range query. Old entries are pruned
// on append.
type RedisSampleRepository struct {
	client *redis.Client
	key    string
}

func NewRedisSampleRepository(client *redis.Client) ports.SampleRepository {
	return &RedisSampleRepository{
		client: client,
		key:    "netqos:samples",
	}
}

func (r *RedisSampleRepository) Append(ctx context.Context, samples ...domain.TrafficSample) error {
	if len(samples) == 0 {
		return nil
	}

	members := make([]redis.Z, 0, len(samples))
	for _, s := range samples {
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("failed to marshal sample: %w", err)
		}
		members = append(members, redis.Z{
			Score:  float64(s.Timestamp.UnixNano()),
			Member: data,
		})
	}

	pipe := r.client.Pipeline()
	pipe.ZAdd(ctx, r.key, members...)
	cutoff := time.Now().Add(-sampleRetention).UnixNano()
	pipe.ZRemRangeByScore(ctx, r.key, "-inf", strconv.FormatInt(cutoff, 10))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append samples to Redis: %w", err)
	}
	return nil
}

func (r *RedisSampleRepository) SamplesSince(ctx context.Context, cursor time.Time) ([]domain.TrafficSample, time.Time, error) {
	min := "(" + strconv.FormatInt(cursor.UnixNano(), 10)
	raw, err := r.client.ZRangeByScore(ctx, r.key, &redis.ZRangeBy{
		Min: min,
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, cursor, fmt.Errorf("failed to read samples from Redis: %w", err)
	}

	newCursor := cursor
	samples := make([]domain.TrafficSample, 0, len(raw))
	for _, item := range raw {
		var s domain.TrafficSample
		if err := json.Unmarshal([]byte(item), &s); err != nil {
			// Skip entries that fail to decode
			continue
		}
		samples = append(samples, s)
		if s.Timestamp.After(newCursor) {
			newCursor = s.Timestamp
		}
	}
	return samples, newCursor, nil
}
