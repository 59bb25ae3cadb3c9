package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"netqos/internal/core/domain"
	"netqos/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

const maxStoredAlerts = 1000

// RedisAlertRepository stores each alert under its own key with a list
// tracking recency order, trimmed so the store stays bounded.
type RedisAlertRepository struct {
	client *redis.Client
	prefix string
	order  string
}

func NewRedisAlertRepository(client *redis.Client) ports.AlertRepository {
	return &RedisAlertRepository{
		client: client,
		prefix: "netqos:alert:",
		order:  "netqos:alerts:order",
	}
}

func (r *RedisAlertRepository) alertKey(id domain.AlertID) string {
	return r.prefix + string(id)
}

func (r *RedisAlertRepository) Save(ctx context.Context, alert domain.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	exists, err := r.client.Exists(ctx, r.alertKey(alert.ID)).Result()
	if err != nil {
		return fmt.Errorf("failed to check alert in Redis: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.alertKey(alert.ID), data, 0)
	if exists == 0 {
		pipe.LPush(ctx, r.order, string(alert.ID))
		pipe.LTrim(ctx, r.order, 0, maxStoredAlerts-1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save alert to Redis: %w", err)
	}
	return nil
}

func (r *RedisAlertRepository) Recent(ctx context.Context, limit int) ([]domain.Alert, error) {
	if limit <= 0 {
		limit = maxStoredAlerts
	}

	ids, err := r.client.LRange(ctx, r.order, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts from Redis: %w", err)
	}

	alerts := make([]domain.Alert, 0, len(ids))
	for _, id := range ids {
		data, err := r.client.Get(ctx, r.prefix+id).Result()
		if err == redis.Nil {
			// Skip alerts whose entry was evicted
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get alert from Redis: %w", err)
		}
		var alert domain.Alert
		if err := json.Unmarshal([]byte(data), &alert); err != nil {
			continue
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

func (r *RedisAlertRepository) Resolve(ctx context.Context, id domain.AlertID) error {
	data, err := r.client.Get(ctx, r.alertKey(id)).Result()
	if err == redis.Nil {
		return domain.ErrAlertNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get alert from Redis: %w", err)
	}

	var alert domain.Alert
	if err := json.Unmarshal([]byte(data), &alert); err != nil {
		return fmt.Errorf("failed to unmarshal alert: %w", err)
	}
	alert.Resolved = true

	updated, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}
	if err := r.client.Set(ctx, r.alertKey(id), updated, 0).Err(); err != nil {
		return fmt.Errorf("failed to update alert in Redis: %w", err)
	}
	return nil
}
