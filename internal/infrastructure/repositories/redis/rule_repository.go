package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"netqos/internal/core/domain"
	"netqos/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// RedisRuleRepository keeps the rule table in a single hash keyed by traffic
// class.
type RedisRuleRepository struct {
	client *redis.Client
	key    string
}

func NewRedisRuleRepository(client *redis.Client) ports.RuleRepository {
	return &RedisRuleRepository{
		client: client,
		key:    "netqos:rules",
	}
}

func (r *RedisRuleRepository) Upsert(ctx context.Context, rule domain.QosRule) error {
	data, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("failed to marshal rule: %w", err)
	}
	if err := r.client.HSet(ctx, r.key, string(rule.TrafficClass), data).Err(); err != nil {
		return fmt.Errorf("failed to set rule in Redis: %w", err)
	}
	return nil
}

func (r *RedisRuleRepository) List(ctx context.Context) ([]domain.QosRule, error) {
	raw, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list rules from Redis: %w", err)
	}

	rules := make([]domain.QosRule, 0, len(raw))
	for _, item := range raw {
		var rule domain.QosRule
		if err := json.Unmarshal([]byte(item), &rule); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rule: %w", err)
		}
		rules = append(rules, rule)
	}

	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority > rules[j].Priority
		}
		return domain.ClassRank(rules[i].TrafficClass) < domain.ClassRank(rules[j].TrafficClass)
	})
	return rules, nil
}

func (r *RedisRuleRepository) Get(ctx context.Context, class domain.TrafficClass) (domain.QosRule, error) {
	data, err := r.client.HGet(ctx, r.key, string(class)).Result()
	if err == redis.Nil {
		return domain.QosRule{}, domain.ErrRuleNotFound
	}
	if err != nil {
		return domain.QosRule{}, fmt.Errorf("failed to get rule from Redis: %w", err)
	}

	var rule domain.QosRule
	if err := json.Unmarshal([]byte(data), &rule); err != nil {
		return domain.QosRule{}, fmt.Errorf("failed to unmarshal rule: %w", err)
	}
	return rule, nil
}
