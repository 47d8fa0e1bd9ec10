package db

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	dbLatency = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "allocation_db_latency",
			Help:       "The latency quantiles for the given database request",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"func"},
	)

	dbVolume = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allocation_db_volume",
			Help: "Number of times a given database request was made",
		},
		[]string{"func"},
	)

	dbErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allocation_db_errors",
			Help: "Number of times a given database request failed",
		},
		[]string{"func"},
	)

	dbConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allocation_db_conflicts",
			Help: "Number of writes rejected because the row changed since it was read",
		},
		[]string{"func"},
	)
)

// Metric times one database request. Complete must be called exactly once.
type Metric struct {
	funcName string
	start    time.Time
}

func StartMetric(funcName string) *Metric {
	dbVolume.With(prometheus.Labels{"func": funcName}).Inc()
	return &Metric{funcName: funcName, start: time.Now()}
}

func (m *Metric) Complete(err error) {
	if err != nil {
		dbErrors.With(prometheus.Labels{"func": m.funcName}).Inc()
	}
	dbLatency.WithLabelValues(m.funcName).Observe(float64(time.Since(m.start).Milliseconds()))
}

// Conflict completes the metric as a lost optimistic concurrency race rather
// than a failure.
func (m *Metric) Conflict() {
	dbConflicts.With(prometheus.Labels{"func": m.funcName}).Inc()
	m.Complete(nil)
}

func init() {
	prometheus.MustRegister(dbVolume)
	prometheus.MustRegister(dbLatency)
	prometheus.MustRegister(dbErrors)
	prometheus.MustRegister(dbConflicts)
}
