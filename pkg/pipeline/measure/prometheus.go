package measure

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMeasure keeps the in-memory metrics of DefaultMeasure and also exports them
// as Prometheus collectors labelled by pipeline and task.
type PrometheusMeasure struct {
	*DefaultMeasure
	pipeline string
	duration *prometheus.HistogramVec
	failures *prometheus.CounterVec
}

// NewPrometheusMeasure registers the task collectors on reg.
// Collectors already registered by a previous measure are reused.
func NewPrometheusMeasure(reg prometheus.Registerer, pipeline string) (*PrometheusMeasure, error) {
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "assetpipe_task_duration_seconds",
		Help:    "Duration of build tasks.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"pipeline", "task"})

	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "assetpipe_task_failures_total",
		Help: "Number of failed build tasks.",
	}, []string{"pipeline", "task"})

	var err error

	duration, err = registerOrReuse(reg, duration)
	if err != nil {
		return nil, errors.Wrap(err, "unable to register duration histogram")
	}

	failures, err = registerOrReuse(reg, failures)
	if err != nil {
		return nil, errors.Wrap(err, "unable to register failure counter")
	}

	return &PrometheusMeasure{
		DefaultMeasure: NewDefaultMeasure(),
		pipeline:       pipeline,
		duration:       duration,
		failures:       failures,
	}, nil
}

func registerOrReuse[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}

	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(C); ok {
			return existing, nil
		}
	}

	return c, err
}

func (m *PrometheusMeasure) AddMetric(name string) Metric {
	return &promMetric{
		Metric:   m.DefaultMeasure.AddMetric(name),
		duration: m.duration.WithLabelValues(m.pipeline, name),
		failures: m.failures.WithLabelValues(m.pipeline, name),
	}
}

func (m *PrometheusMeasure) GetMetric(name string) Metric {
	mt := m.DefaultMeasure.GetMetric(name)
	if mt == nil {
		return nil
	}

	return &promMetric{
		Metric:   mt,
		duration: m.duration.WithLabelValues(m.pipeline, name),
		failures: m.failures.WithLabelValues(m.pipeline, name),
	}
}

type promMetric struct {
	Metric
	duration prometheus.Observer
	failures prometheus.Counter
}

func (mt *promMetric) AddDuration(elapsed time.Duration) {
	mt.Metric.AddDuration(elapsed)
	mt.duration.Observe(elapsed.Seconds())
}

func (mt *promMetric) AddFailure() {
	mt.Metric.AddFailure()
	mt.failures.Inc()
}

var _ Measure = (*PrometheusMeasure)(nil)
