package monitoring

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petfolio/internal/models"
)

func TestBadgeMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBadgeMetrics(reg)

	m.Evaluation(models.BadgeTypeLogActivity)
	m.Evaluation(models.BadgeTypeLogActivity)
	m.Evaluation(models.BadgeTypeDaysInApp)
	m.TierChanged(models.BadgeTypeLogActivity, models.TierTenth)
	m.PersistFailure(models.BadgeTypeMakePost)
	m.ReadFailure("activity_logs")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.evaluations.WithLabelValues("log_activity")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.evaluations.WithLabelValues("days_in_app")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tierChanges.WithLabelValues("log_activity", "tenth")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.persistFailures.WithLabelValues("make_post")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.readFailures.WithLabelValues("activity_logs")))

	count, err := testutil.GatherAndCount(reg,
		"petfolio_badge_evaluations_total",
		"petfolio_badge_tier_changes_total",
	)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestBadgeMetricsRegisterOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewBadgeMetrics(reg)
	assert.Panics(t, func() { NewBadgeMetrics(reg) })
}

func TestHTTPMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	done := m.Begin()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inFlight))
	done("GET", "/api/v1/pets/{petID}/badges", 200)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.inFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/v1/pets/{petID}/badges", "200")))
}

func TestDashboardStatus(t *testing.T) {
	d := NewDashboard(nil, "1.0.0", "test")
	d.Register("database", func(context.Context) error { return nil })

	health := d.GetSystemHealth(context.Background())
	assert.Equal(t, StatusHealthy, health.Status)
	assert.Equal(t, "test", health.Environment)

	d.RegisterOptional("cache", func(context.Context) error { return errors.New("redis down") })
	health = d.GetSystemHealth(context.Background())
	assert.Equal(t, StatusDegraded, health.Status)
	assert.Equal(t, "redis down", health.Components["cache"].Error)

	d.Register("events", func(context.Context) error { return errors.New("backlog") })
	health = d.GetSystemHealth(context.Background())
	assert.Equal(t, StatusUnhealthy, health.Status)
	assert.Equal(t, StatusUnhealthy, health.Components["events"].Status)
	assert.Len(t, health.Components, 3)
}
