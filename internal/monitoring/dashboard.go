package monitoring

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Component statuses reported by the dashboard
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// ===============================
// DASHBOARD CORE
// ===============================

// CheckFunc checks one component. A nil error means healthy.
type CheckFunc func(ctx context.Context) error

// Dashboard aggregates component health checks into one system report
type Dashboard struct {
	logger      *zap.Logger
	startTime   time.Time
	version     string
	environment string

	mu       sync.RWMutex
	checks   map[string]CheckFunc
	optional map[string]bool
}

// NewDashboard creates a new monitoring dashboard
func NewDashboard(logger *zap.Logger, version, environment string) *Dashboard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dashboard{
		logger:      logger,
		startTime:   time.Now(),
		version:     version,
		environment: environment,
		checks:      make(map[string]CheckFunc),
		optional:    make(map[string]bool),
	}
}

// ===============================
// DATA STRUCTURES
// ===============================

// SystemHealthResponse represents system health
type SystemHealthResponse struct {
	Status      string                     `json:"status"`
	Timestamp   time.Time                  `json:"timestamp"`
	Uptime      string                     `json:"uptime"`
	Version     string                     `json:"version"`
	Environment string                     `json:"environment"`
	Components  map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a system component
type ComponentHealth struct {
	Status       string        `json:"status"`
	LastCheck    time.Time     `json:"last_check"`
	Error        string        `json:"error,omitempty"`
	ResponseTime time.Duration `json:"response_time"`
}

// Register adds a required component. Its failure makes the system unhealthy.
func (d *Dashboard) Register(name string, check CheckFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.checks[name] = check
	delete(d.optional, name)
}

// RegisterOptional adds a component whose failure only degrades the system.
func (d *Dashboard) RegisterOptional(name string, check CheckFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.checks[name] = check
	d.optional[name] = true
}

// GetSystemHealth runs every registered check
func (d *Dashboard) GetSystemHealth(ctx context.Context) *SystemHealthResponse {
	start := time.Now()

	d.mu.RLock()
	names := make([]string, 0, len(d.checks))
	for name := range d.checks {
		names = append(names, name)
	}
	checks := make(map[string]CheckFunc, len(d.checks))
	optional := make(map[string]bool, len(d.optional))
	for name, check := range d.checks {
		checks[name] = check
		optional[name] = d.optional[name]
	}
	d.mu.RUnlock()
	sort.Strings(names)

	response := &SystemHealthResponse{
		Timestamp:   start,
		Uptime:      time.Since(d.startTime).String(),
		Version:     d.version,
		Environment: d.environment,
		Components:  make(map[string]ComponentHealth, len(names)),
	}

	for _, name := range names {
		checkStart := time.Now()
		component := ComponentHealth{Status: StatusHealthy}
		if err := checks[name](ctx); err != nil {
			component.Status = StatusUnhealthy
			if optional[name] {
				component.Status = StatusDegraded
			}
			component.Error = err.Error()
		}
		component.LastCheck = time.Now()
		component.ResponseTime = time.Since(checkStart)
		response.Components[name] = component
	}

	response.Status = determineOverallStatus(response)

	d.logger.Debug("System health check completed",
		zap.String("status", response.Status),
		zap.Duration("check_duration", time.Since(start)),
		zap.Int("components", len(response.Components)),
	)

	return response
}

// determineOverallStatus is unhealthy if any component is, then degraded
func determineOverallStatus(response *SystemHealthResponse) string {
	status := StatusHealthy
	for _, component := range response.Components {
		switch component.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}

// GetStartTime returns when the dashboard was created
func (d *Dashboard) GetStartTime() time.Time {
	return d.startTime
}
