package database

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// HealthStatus represents the current health status of the database
type HealthStatus struct {
	Status          string                 `json:"status"`
	Timestamp       time.Time              `json:"timestamp"`
	ResponseTime    time.Duration          `json:"response_time"`
	ConnectionCount int                    `json:"connection_count"`
	Errors          []string               `json:"errors,omitempty"`
	Details         map[string]interface{} `json:"details"`
}

// Health check statuses
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusShutdown  = "shutdown"
)

// criticalTables must be readable for the database to be healthy.
var criticalTables = []string{"badges", "activity_logs", "posts", "user_pet_relations"}

// HealthChecker runs connectivity, pool and table checks
type HealthChecker struct {
	manager *Manager
	logger  *zap.Logger

	mu       sync.RWMutex
	isActive atomic.Bool
	last     *HealthStatus

	timeout     time.Duration
	slowPing    time.Duration
	waitWarning int64
}

// NewHealthChecker creates a health checker for manager
func NewHealthChecker(manager *Manager, logger *zap.Logger) *HealthChecker {
	hc := &HealthChecker{
		manager:     manager,
		logger:      logger,
		timeout:     5 * time.Second,
		slowPing:    500 * time.Millisecond,
		waitWarning: 1000,
	}
	hc.isActive.Store(true)
	return hc
}

// Check runs every health check and records the result
func (hc *HealthChecker) Check(ctx context.Context) *HealthStatus {
	if !hc.isActive.Load() {
		return &HealthStatus{
			Status:    StatusShutdown,
			Timestamp: time.Now(),
			Errors:    []string{"health checker is shutdown"},
			Details:   make(map[string]interface{}),
		}
	}

	start := time.Now()
	status := &HealthStatus{
		Timestamp: start,
		Details:   make(map[string]interface{}),
	}

	ctx, cancel := context.WithTimeout(ctx, hc.timeout)
	defer cancel()

	warnings := 0
	if err := hc.checkConnectivity(ctx, status, &warnings); err != nil {
		status.Errors = append(status.Errors, fmt.Sprintf("connectivity: %v", err))
	} else {
		for _, table := range criticalTables {
			if err := hc.checkTable(ctx, table); err != nil {
				status.Errors = append(status.Errors, fmt.Sprintf("table %s: %v", table, err))
			}
		}
	}
	hc.checkConnectionPool(status, &warnings)

	status.ResponseTime = time.Since(start)
	switch {
	case len(status.Errors) > 0:
		status.Status = StatusUnhealthy
	case warnings > 0:
		status.Status = StatusDegraded
	default:
		status.Status = StatusHealthy
	}

	if status.Status != StatusHealthy {
		hc.logger.Warn("Database health check failed",
			zap.String("status", status.Status),
			zap.Strings("errors", status.Errors),
			zap.Duration("response_time", status.ResponseTime),
		)
	}

	hc.mu.Lock()
	hc.last = status
	hc.mu.Unlock()

	return status
}

func (hc *HealthChecker) checkConnectivity(ctx context.Context, status *HealthStatus, warnings *int) error {
	start := time.Now()
	err := hc.manager.DB().PingContext(ctx)
	pingDuration := time.Since(start)

	status.Details["ping_duration"] = pingDuration.String()
	status.Details["ping_success"] = err == nil
	if err == nil && pingDuration > hc.slowPing {
		status.Details["ping_warning"] = "slow ping response"
		*warnings++
	}
	return err
}

func (hc *HealthChecker) checkTable(ctx context.Context, table string) error {
	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM (SELECT 1 FROM %s LIMIT 1) AS sample", table)
	return hc.manager.DB().QueryRowContext(ctx, query).Scan(&n)
}

func (hc *HealthChecker) checkConnectionPool(status *HealthStatus, warnings *int) {
	stats := hc.manager.DB().Stats()

	status.ConnectionCount = stats.OpenConnections
	status.Details["pool"] = map[string]interface{}{
		"max_open":      stats.MaxOpenConnections,
		"open":          stats.OpenConnections,
		"in_use":        stats.InUse,
		"idle":          stats.Idle,
		"wait_count":    stats.WaitCount,
		"wait_duration": stats.WaitDuration.String(),
	}

	if stats.WaitCount > hc.waitWarning {
		status.Details["pool_warning"] = "connection pool contention"
		*warnings++
	}
}

// LastStatus returns the most recent check result, or nil before the first
func (hc *HealthChecker) LastStatus() *HealthStatus {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.last
}

// Stop marks the checker as shut down
func (hc *HealthChecker) Stop() {
	hc.isActive.Store(false)
}
