package measure

import (
	"time"

	"github.com/askiada/go-assetpipe/pkg/pipeline/model"
)

type pipelineMeasure struct {
	Measure
	startTime time.Time
}

func (pm *pipelineMeasure) New() error {
	pm.AddMetric(model.StartTask.Name)
	pm.AddMetric(model.EndTask.Name)
	pm.startTime = time.Now()

	return nil
}

func (pm *pipelineMeasure) PrepareTask(_ []*model.TaskInfo, task *model.TaskInfo) error {
	pm.AddMetric(task.Name)

	return nil
}

func (pm *pipelineMeasure) BeforeTask(_ *model.TaskInfo) error {
	return nil
}

func (pm *pipelineMeasure) AfterTask(task *model.TaskInfo, elapsed time.Duration, taskErr error) error {
	mt := pm.GetMetric(task.Name)
	if mt == nil {
		mt = pm.AddMetric(task.Name)
	}

	mt.AddDuration(elapsed)

	if taskErr != nil {
		mt.AddFailure()
	}

	return nil
}

func (pm *pipelineMeasure) Finish() error {
	pm.GetMetric(model.EndTask.Name).SetTotalDuration(time.Since(pm.startTime))

	return nil
}

// PipelineMeasure records the duration of every task into measure.
func PipelineMeasure(measure Measure) model.PipelineOption {
	return &pipelineMeasure{Measure: measure}
}
