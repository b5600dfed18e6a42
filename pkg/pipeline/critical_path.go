package pipeline

import (
	"time"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"

	"github.com/askiada/go-assetpipe/pkg/pipeline/measure"
	"github.com/askiada/go-assetpipe/pkg/pipeline/model"
)

// PathStep is a task on the critical path and the time it took on its last run.
type PathStep struct {
	Name     string
	Duration time.Duration
}

// CriticalPath returns the chain of tasks from start to end whose durations add up to the
// longest time, using the last duration recorded by msr for every task.
// Tasks without a metric count as zero.
func (p *Pipeline) CriticalPath(msr measure.Measure) ([]PathStep, time.Duration, error) {
	order, err := graph.TopologicalSort(p.plan.graph)
	if err != nil {
		return nil, 0, errors.Wrap(err, "unable to sort tasks")
	}

	predecessors, err := p.plan.graph.PredecessorMap()
	if err != nil {
		return nil, 0, errors.Wrap(err, "unable to get predecessor map")
	}

	weight := func(name string) time.Duration {
		mt := msr.GetMetric(name)
		if mt == nil {
			return 0
		}

		return mt.LastDuration()
	}

	best := make(map[string]time.Duration, len(order))
	prev := make(map[string]string, len(order))

	for _, name := range order {
		var (
			longest time.Duration
			from    string
		)

		for parent := range predecessors[name] {
			if from == "" || best[parent] > longest || (best[parent] == longest && parent < from) {
				longest = best[parent]
				from = parent
			}
		}

		best[name] = longest + weight(name)
		prev[name] = from
	}

	var path []PathStep

	for curr := prev[model.EndTask.Name]; curr != "" && curr != model.StartTask.Name; curr = prev[curr] {
		path = append([]PathStep{{Name: curr, Duration: weight(curr)}}, path...)
	}

	return path, best[model.EndTask.Name], nil
}
