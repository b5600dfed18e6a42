package drawer

import (
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/go-assetpipe/pkg/pipeline/measure"
	"github.com/askiada/go-assetpipe/pkg/pipeline/model"
)

type pipelineDrawer struct {
	Drawer
	m         measure.Measure
	startTime time.Time
}

func (pd *pipelineDrawer) New() error {
	err := pd.AddTask(model.StartTask.Name)
	if err != nil {
		return errors.Wrap(err, "unable to add start task to drawer")
	}

	err = pd.AddTask(model.EndTask.Name)
	if err != nil {
		return errors.Wrap(err, "unable to add end task to drawer")
	}

	pd.startTime = time.Now()

	return nil
}

func (pd *pipelineDrawer) PrepareTask(parents []*model.TaskInfo, task *model.TaskInfo) error {
	err := pd.AddTask(task.Name)
	if err != nil {
		return err
	}

	for _, parent := range parents {
		err := pd.AddLink(parent.Name, task.Name)
		if err != nil {
			return err
		}
	}

	return nil
}

func (pd *pipelineDrawer) BeforeTask(_ *model.TaskInfo) error {
	return nil
}

func (pd *pipelineDrawer) AfterTask(_ *model.TaskInfo, _ time.Duration, _ error) error {
	return nil
}

func (pd *pipelineDrawer) Finish() error {
	if pd.m != nil {
		err := pd.SetTotalTime(model.EndTask.Name, pd.startTime)
		if err != nil {
			return errors.Wrap(err, "unable to set total time")
		}

		err = pd.AddMeasure(pd.m)
		if err != nil {
			return errors.Wrap(err, "unable to add measure")
		}
	}

	err := pd.Draw()
	if err != nil {
		return errors.Wrap(err, "unable to draw pipeline")
	}

	return nil
}

// PipelineDrawer draws the task graph when the pipeline finishes.
// When measure is not nil, tasks are labelled and coloured with their average duration.
func PipelineDrawer(drawer Drawer, measure measure.Measure) model.PipelineOption {
	return &pipelineDrawer{Drawer: drawer, m: measure}
}
