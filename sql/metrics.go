package sqlstore

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of the SQL store.
type Metrics struct {
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
}

// NewMetrics creates the store collectors and registers them on reg. When
// reg is nil the collectors are created but not registered. Collectors
// already registered on reg (for example by another Service) are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	operations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "datastore",
			Name:      "operations_total",
			Help:      "Total number of datastore operations",
		},
		[]string{"operation", "table", "status"},
	)

	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "datastore",
			Name:      "operation_duration_seconds",
			Help:      "Datastore operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	m := &Metrics{Operations: operations, Duration: duration}
	if reg == nil {
		return m, nil
	}

	if err := reg.Register(operations); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
		m.Operations = are.ExistingCollector.(*prometheus.CounterVec)
	}
	if err := reg.Register(duration); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
		m.Duration = are.ExistingCollector.(*prometheus.HistogramVec)
	}
	return m, nil
}

// Observe records one operation on table that started at start.
func (m *Metrics) Observe(operation, table string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.Operations.WithLabelValues(operation, table, status).Inc()
	m.Duration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
}
