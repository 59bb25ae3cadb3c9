package repositories

import (
	"context"

	"netqos/internal/core/ports"
	"netqos/internal/infrastructure/repositories/memory"
	redisrepo "netqos/internal/infrastructure/repositories/redis"
	"netqos/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory creates repositories with fallback support
type RepositoryFactory struct {
	useRedis    bool
	redisClient *redis.Client
	logger      *zap.SugaredLogger
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		useRedis: cfg.Redis.Enabled,
		logger:   logger,
	}

	// Try to connect to Redis if enabled
	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory repositories",
				"error", err,
			)
			factory.useRedis = false
		} else {
			factory.redisClient = client
			logger.Info("using Redis repositories")
		}
	}

	if !factory.useRedis {
		logger.Info("using memory repositories")
	}

	return factory, nil
}

// CreateSampleRepository creates a sample repository (Redis or memory with fallback)
func (f *RepositoryFactory) CreateSampleRepository() ports.SampleRepository {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisSampleRepository(f.redisClient)
	}
	return memory.NewMemorySampleRepository()
}

// CreateRuleRepository creates a rule repository (Redis or memory with fallback)
func (f *RepositoryFactory) CreateRuleRepository() ports.RuleRepository {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisRuleRepository(f.redisClient)
	}
	return memory.NewMemoryRuleRepository()
}

// CreateAlertRepository creates an alert repository (Redis or memory with fallback)
func (f *RepositoryFactory) CreateAlertRepository() ports.AlertRepository {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisAlertRepository(f.redisClient)
	}
	return memory.NewMemoryAlertRepository()
}

// Close closes Redis connection if used
func (f *RepositoryFactory) Close() error {
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	return nil
}

// HealthCheck checks Redis connection health
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.useRedis && f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}
