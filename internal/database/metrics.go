package database

import (
	"database/sql"
	"sync/atomic"
	"time"
)

// Metrics tracks query counts and latency for the manager
type Metrics struct {
	queryCount     atomic.Int64
	queryDuration  atomic.Int64 // nanoseconds
	errorCount     atomic.Int64
	slowQueryCount atomic.Int64

	execCount     atomic.Int64
	selectCount   atomic.Int64
	queryRowCount atomic.Int64
	txCount       atomic.Int64

	slowQueryThreshold time.Duration
}

// MetricsSnapshot provides a point-in-time view of metrics
type MetricsSnapshot struct {
	QueryCount       int64         `json:"query_count"`
	ErrorCount       int64         `json:"error_count"`
	SlowQueryCount   int64         `json:"slow_query_count"`
	ExecCount        int64         `json:"exec_count"`
	SelectCount      int64         `json:"select_count"`
	QueryRowCount    int64         `json:"query_row_count"`
	TxCount          int64         `json:"tx_count"`
	AvgQueryDuration time.Duration `json:"avg_query_duration"`
	DBStats          sql.DBStats   `json:"db_stats"`
	Timestamp        time.Time     `json:"timestamp"`
}

// NewMetrics creates a new metrics collector
func NewMetrics(slowQueryThreshold time.Duration) *Metrics {
	if slowQueryThreshold <= 0 {
		slowQueryThreshold = 100 * time.Millisecond
	}
	return &Metrics{slowQueryThreshold: slowQueryThreshold}
}

// SlowQueryThreshold is the duration above which a query counts as slow
func (m *Metrics) SlowQueryThreshold() time.Duration {
	return m.slowQueryThreshold
}

// RecordQuery records metrics for a database query
func (m *Metrics) RecordQuery(queryType string, duration time.Duration, err error) {
	m.queryCount.Add(1)
	m.queryDuration.Add(int64(duration))

	if err != nil && err != sql.ErrNoRows {
		m.errorCount.Add(1)
	}

	if duration > m.slowQueryThreshold {
		m.slowQueryCount.Add(1)
	}

	switch queryType {
	case "exec":
		m.execCount.Add(1)
	case "query":
		m.selectCount.Add(1)
	case "query_row":
		m.queryRowCount.Add(1)
	case "begin_tx":
		m.txCount.Add(1)
	}
}

// Snapshot returns current metrics snapshot
func (m *Metrics) Snapshot(stats sql.DBStats) *MetricsSnapshot {
	queryCount := m.queryCount.Load()

	var avgDuration time.Duration
	if queryCount > 0 {
		avgDuration = time.Duration(m.queryDuration.Load() / queryCount)
	}

	return &MetricsSnapshot{
		QueryCount:       queryCount,
		ErrorCount:       m.errorCount.Load(),
		SlowQueryCount:   m.slowQueryCount.Load(),
		ExecCount:        m.execCount.Load(),
		SelectCount:      m.selectCount.Load(),
		QueryRowCount:    m.queryRowCount.Load(),
		TxCount:          m.txCount.Load(),
		AvgQueryDuration: avgDuration,
		DBStats:          stats,
		Timestamp:        time.Now(),
	}
}
