package repositories

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"petfolio/internal/cache"
	"petfolio/internal/database"
)

// Collection holds all repository instances for dependency injection
type Collection struct {
	Badges     BadgeRepository
	Activities ActivityLogRepository
	Posts      PostRepository
	Pets       PetRepository

	db     *database.Manager
	cache  cache.Cache
	logger *zap.Logger
}

// RepositoryConfig holds configuration for repository initialization
type RepositoryConfig struct {
	// Cache fronts the badge repository when set.
	Cache         cache.Cache
	BadgeCacheTTL time.Duration
}

// NewCollection creates a new repository collection with all dependencies
func NewCollection(db *database.Manager, logger *zap.Logger, config *RepositoryConfig) (*Collection, error) {
	if db == nil {
		return nil, fmt.Errorf("database manager is required")
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	if config == nil {
		config = &RepositoryConfig{}
	}

	collection := &Collection{
		Activities: NewActivityLogRepository(db, logger),
		Posts:      NewPostRepository(db, logger),
		Pets:       NewPetRepository(db, logger),
		db:         db,
		cache:      config.Cache,
		logger:     logger,
	}

	badges := NewBadgeRepository(db, logger)
	if config.Cache != nil {
		collection.Badges = NewCachedBadgeStore(badges, config.Cache, config.BadgeCacheTTL, logger)
	} else {
		collection.Badges = badges
	}

	logger.Info("Repository collection initialized successfully",
		zap.String("driver", db.Driver()),
		zap.Bool("badge_cache_enabled", config.Cache != nil),
	)

	return collection, nil
}

// ===============================
// HEALTH AND MONITORING
// ===============================

// HealthCheck reports database and cache health
func (c *Collection) HealthCheck(ctx context.Context) map[string]interface{} {
	health := make(map[string]interface{})

	dbHealth := c.db.Health(ctx)
	health["database"] = map[string]interface{}{
		"status":        dbHealth.Status,
		"response_time": dbHealth.ResponseTime.String(),
		"errors":        dbHealth.Errors,
	}

	if c.cache != nil {
		cacheHealth := map[string]interface{}{"status": "healthy"}
		if err := c.cache.Health(ctx); err != nil {
			cacheHealth["status"] = "unhealthy"
			cacheHealth["error"] = err.Error()
		}
		if stats, err := c.cache.Stats(ctx); err == nil {
			cacheHealth["stats"] = stats
		}
		health["cache"] = cacheHealth
	}

	return health
}

// Healthy reports whether every dependency in HealthCheck is usable.
func (c *Collection) Healthy(ctx context.Context) bool {
	switch c.db.Health(ctx).Status {
	case database.StatusHealthy, database.StatusDegraded:
	default:
		return false
	}
	if c.cache != nil && c.cache.Health(ctx) != nil {
		return false
	}
	return true
}

// GetDB returns the database manager
func (c *Collection) GetDB() *database.Manager {
	return c.db
}

// Close releases the cache; the database manager is closed by its owner.
func (c *Collection) Close() error {
	if c.cache != nil {
		if err := c.cache.Close(); err != nil {
			return fmt.Errorf("failed to close cache: %w", err)
		}
	}
	c.logger.Info("Repository collection closed")
	return nil
}
