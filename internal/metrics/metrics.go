// Package metrics provides Prometheus metrics for model operations
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Status label values
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds the Prometheus collectors of a Connection
type Metrics struct {
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	DocumentsReturned *prometheus.CounterVec
	ValidationFailed  *prometheus.CounterVec
	VersionConflicts  *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg uses a
// fresh private registry, so several connections can coexist in one process.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	m := &Metrics{}

	m.OperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docmodel_operations_total",
			Help: "Total number of model operations",
		},
		[]string{"model", "operation", "status"},
	)

	m.OperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docmodel_operation_duration_seconds",
			Help:    "Duration of model operations in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"model", "operation"},
	)

	m.DocumentsReturned = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docmodel_documents_returned_total",
			Help: "Total number of documents returned by queries",
		},
		[]string{"model"},
	)

	m.ValidationFailed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docmodel_validation_failures_total",
			Help: "Total number of writes rejected by validation",
		},
		[]string{"model"},
	)

	m.VersionConflicts = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docmodel_version_conflicts_total",
			Help: "Total number of saves rejected by the version guard",
		},
		[]string{"model"},
	)

	return m
}

// RecordOperation records an operation outcome and its duration
func (m *Metrics) RecordOperation(model, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	m.OperationsTotal.WithLabelValues(model, operation, status).Inc()
	m.OperationDuration.WithLabelValues(model, operation).Observe(duration.Seconds())
}

// RecordDocuments counts documents returned by a query
func (m *Metrics) RecordDocuments(model string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.DocumentsReturned.WithLabelValues(model).Add(float64(n))
}

// RecordValidationFailure counts a write rejected by validation
func (m *Metrics) RecordValidationFailure(model string) {
	if m == nil {
		return
	}
	m.ValidationFailed.WithLabelValues(model).Inc()
}

// RecordVersionConflict counts a save rejected by the version guard
func (m *Metrics) RecordVersionConflict(model string) {
	if m == nil {
		return
	}
	m.VersionConflicts.WithLabelValues(model).Inc()
}
