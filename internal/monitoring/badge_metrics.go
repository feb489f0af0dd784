package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"

	"petfolio/internal/models"
)

// BadgeMetrics counts badge engine activity. It satisfies the engine's
// Recorder interface.
type BadgeMetrics struct {
	evaluations     *prometheus.CounterVec
	tierChanges     *prometheus.CounterVec
	persistFailures *prometheus.CounterVec
	readFailures    *prometheus.CounterVec
}

// NewBadgeMetrics creates the badge counters and registers them on
// registerer, or on the default registerer when it is nil.
func NewBadgeMetrics(registerer prometheus.Registerer) *BadgeMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &BadgeMetrics{
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "petfolio_badge_evaluations_total",
			Help: "Badge rule evaluations by rule.",
		}, []string{"rule"}),
		tierChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "petfolio_badge_tier_changes_total",
			Help: "Persisted badge tier changes by badge type and new tier.",
		}, []string{"type", "tier"}),
		persistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "petfolio_badge_persist_failures_total",
			Help: "Badge writes rejected by the store, by badge type.",
		}, []string{"type"}),
		readFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "petfolio_badge_read_failures_total",
			Help: "Failed reads of badge inputs, by source.",
		}, []string{"source"}),
	}

	registerer.MustRegister(
		m.evaluations,
		m.tierChanges,
		m.persistFailures,
		m.readFailures,
	)

	return m
}

func (m *BadgeMetrics) Evaluation(badgeType models.BadgeType) {
	m.evaluations.WithLabelValues(string(badgeType)).Inc()
}

func (m *BadgeMetrics) TierChanged(badgeType models.BadgeType, tier models.BadgeTier) {
	m.tierChanges.WithLabelValues(string(badgeType), string(tier)).Inc()
}

func (m *BadgeMetrics) PersistFailure(badgeType models.BadgeType) {
	m.persistFailures.WithLabelValues(string(badgeType)).Inc()
}

func (m *BadgeMetrics) ReadFailure(source string) {
	m.readFailures.WithLabelValues(source).Inc()
}
