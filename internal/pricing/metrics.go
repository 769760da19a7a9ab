package pricing

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Simplici0/pipe.works/internal/catalog"
	"github.com/Simplici0/pipe.works/internal/expr"
)

const (
	outcomeOK        = "ok"
	outcomeFixed     = "fixed"
	outcomeInvalid   = "invalid"
	outcomeNonFinite = "non_finite"
)

// Metrics counts formula evaluations. A nil *Metrics records nothing.
type Metrics struct {
	evaluations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewMetrics creates the pricing instruments and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pipeworks",
			Subsystem: "pricing",
			Name:      "evaluations_total",
			Help:      "Formula evaluations by product family and outcome.",
		}, []string{"family", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pipeworks",
			Subsystem: "pricing",
			Name:      "evaluation_duration_seconds",
			Help:      "Time spent evaluating a formula.",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}, []string{"family"}),
	}

	for _, c := range []prometheus.Collector{m.evaluations, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register pricing metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) observe(family catalog.Family, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(string(family), outcome).Inc()
	if outcome != outcomeFixed {
		m.duration.WithLabelValues(string(family)).Observe(elapsed.Seconds())
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, expr.ErrNonFiniteResult):
		return outcomeNonFinite
	default:
		return outcomeInvalid
	}
}
