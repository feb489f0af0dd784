package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"petfolio/internal/config"
)

// Open creates a manager, applies migrations when configured to, and checks
// that the schema is reachable.
func Open(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	manager, err := NewManager(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create database manager: %w", err)
	}

	if cfg.AutoMigrate {
		if err := runMigrationsWithRetry(manager, logger, 3); err != nil {
			manager.Close()
			return nil, fmt.Errorf("failed to run database migrations: %w", err)
		}

		status := manager.Health(ctx)
		if status.Status == StatusUnhealthy {
			manager.Close()
			return nil, fmt.Errorf("database is unhealthy after migrations: %v", status.Errors)
		}
	}

	logInitializationSuccess(manager, logger)
	return manager, nil
}

func runMigrationsWithRetry(manager *Manager, logger *zap.Logger, maxRetries int) error {
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := manager.Migrate(); err != nil {
			lastErr = err
			if attempt < maxRetries {
				waitTime := time.Duration(attempt) * time.Second
				logger.Warn("Migration attempt failed, retrying",
					zap.Error(err),
					zap.Int("attempt", attempt),
					zap.Duration("retry_in", waitTime),
				)
				time.Sleep(waitTime)
			}
			continue
		}
		return nil
	}

	return fmt.Errorf("migrations failed after %d attempts: %w", maxRetries, lastErr)
}

func logInitializationSuccess(manager *Manager, logger *zap.Logger) {
	stats := manager.DB().Stats()

	logger.Info("Database initialized successfully",
		zap.String("driver", manager.Driver()),
		zap.Int("max_open_connections", stats.MaxOpenConnections),
		zap.Int("open_connections", stats.OpenConnections),
	)
}

// WithTx runs fn in a transaction, committing when it returns nil and rolling
// back otherwise.
func (m *Manager) WithTx(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := m.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %v, rollback failed: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
