package measure

import "time"

// Measure collects one Metric per task.
type Measure interface {
	AddMetric(name string) Metric
	GetMetric(name string) Metric
	AllMetrics() map[string]Metric
}

// Metric holds the timings of a single task. Implementations must be safe for concurrent use:
// members of a concurrent group report at the same time.
type Metric interface {
	AddDuration(elapsed time.Duration)
	AddFailure()
	AVGDuration() time.Duration
	LastDuration() time.Duration
	Runs() int64
	Failures() int64
	SetTotalDuration(endDuration time.Duration)
	GetTotalDuration() time.Duration
}
