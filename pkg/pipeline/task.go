package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/go-assetpipe/pkg/pipeline/model"
)

// TaskFunc does the work of a task. It must return when ctx is cancelled.
type TaskFunc func(ctx context.Context) error

// Task is a named TaskFunc, used to declare the members of a concurrent group.
type Task struct {
	Name string
	Fn   TaskFunc
}

type task struct {
	info *model.TaskInfo
	fn   TaskFunc
}

type stage struct {
	name       string
	concurrent bool
	tasks      []*task
}

// AddTask appends a stage made of a single task.
func AddTask(p *Pipeline, name string, fn TaskFunc) error {
	if p == nil {
		return ErrPipelineMustBeSet
	}

	if fn == nil {
		return errors.Wrap(ErrTaskMustBeSet, name)
	}

	st := &stage{
		name: name,
		tasks: []*task{{
			info: &model.TaskInfo{Type: model.NormalTaskType, Name: name, Stage: len(p.stages)},
			fn:   fn,
		}},
	}

	return addStage(p, st)
}

// AddConcurrent appends a stage whose tasks run concurrently.
// The next stage starts only once every task of the group has completed.
func AddConcurrent(p *Pipeline, name string, tasks ...Task) error {
	if p == nil {
		return ErrPipelineMustBeSet
	}

	if len(tasks) == 0 {
		return errors.Wrap(ErrEmptyGroup, name)
	}

	st := &stage{
		name:       name,
		concurrent: true,
		tasks:      make([]*task, 0, len(tasks)),
	}

	for _, t := range tasks {
		if t.Fn == nil {
			return errors.Wrapf(ErrTaskMustBeSet, "%s: %s", name, t.Name)
		}

		st.tasks = append(st.tasks, &task{
			info: &model.TaskInfo{Type: model.MemberTaskType, Name: t.Name, Group: name, Stage: len(p.stages)},
			fn:   t.Fn,
		})
	}

	return addStage(p, st)
}

func addStage(p *Pipeline, st *stage) error {
	parents := p.plan.lastTasks()

	infos := make([]*model.TaskInfo, len(st.tasks))
	for i, t := range st.tasks {
		infos[i] = t.info
	}

	err := p.plan.addStage(infos)
	if err != nil {
		return errors.Wrapf(err, "unable to register %s", st.name)
	}

	for _, info := range infos {
		for _, opt := range p.opts {
			err := opt.PrepareTask(parents, info)
			if err != nil {
				return errors.Wrap(err, "unable to run prepare task function")
			}
		}
	}

	p.stages = append(p.stages, st)

	return nil
}

func (p *Pipeline) runTask(ctx context.Context, t *task) error {
	for _, opt := range p.opts {
		err := opt.BeforeTask(t.info)
		if err != nil {
			return errors.Wrap(err, "unable to run before task function")
		}
	}

	start := time.Now()
	taskErr := t.fn(ctx)
	elapsed := time.Since(start)

	for _, opt := range p.opts {
		err := opt.AfterTask(t.info, elapsed, taskErr)
		if err != nil && taskErr == nil {
			return errors.Wrap(err, "unable to run after task function")
		}
	}

	return taskErr
}
