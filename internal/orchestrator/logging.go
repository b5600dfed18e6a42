package orchestrator

import (
	"log/slog"
	"time"

	"github.com/askiada/go-assetpipe/pkg/pipeline"
	"github.com/askiada/go-assetpipe/pkg/pipeline/measure"
	"github.com/askiada/go-assetpipe/pkg/pipeline/model"
)

// taskLogger logs the start and the outcome of every task.
type taskLogger struct {
	logger *slog.Logger
}

func (tl *taskLogger) New() error {
	return nil
}

func (tl *taskLogger) PrepareTask(_ []*model.TaskInfo, task *model.TaskInfo) error {
	tl.logger.Debug("task planned", taskAttrs(task)...)

	return nil
}

func (tl *taskLogger) BeforeTask(task *model.TaskInfo) error {
	tl.logger.Info("task started", taskAttrs(task)...)

	return nil
}

func (tl *taskLogger) AfterTask(task *model.TaskInfo, elapsed time.Duration, taskErr error) error {
	attrs := append(taskAttrs(task), "elapsed", elapsed.Round(time.Millisecond))

	if taskErr != nil {
		tl.logger.Error("task failed", append(attrs, "error", taskErr)...)

		return nil
	}

	tl.logger.Info("task finished", attrs...)

	return nil
}

func (tl *taskLogger) Finish() error {
	return nil
}

func taskAttrs(task *model.TaskInfo) []any {
	attrs := []any{"task", task.Name}
	if task.Group != "" {
		attrs = append(attrs, "group", task.Group)
	}

	return attrs
}

// logSummary logs the time spent in each task that ran, then the critical path.
func logSummary(logger *slog.Logger, pipe *pipeline.Pipeline, msr measure.Measure) {
	order, err := pipe.Order()
	if err != nil {
		logger.Warn("unable to order tasks for the summary", "error", err)

		return
	}

	for _, name := range order {
		mt := msr.GetMetric(name)
		if mt == nil || mt.Runs() == 0 {
			continue
		}

		logger.Info("timing", "task", name, "elapsed", mt.LastDuration(), "failed", mt.Failures() > 0)
	}

	path, total, err := pipe.CriticalPath(msr)
	if err != nil {
		logger.Warn("unable to compute critical path", "error", err)

		return
	}

	names := make([]string, len(path))
	for i, step := range path {
		names[i] = step.Name
	}

	logger.Info("critical path", "tasks", names, "total", total)

	if end := msr.GetMetric(model.EndTask.Name); end != nil {
		logger.Info("run finished", "elapsed", end.GetTotalDuration())
	}
}
