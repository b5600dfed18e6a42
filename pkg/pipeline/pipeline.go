package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/go-assetpipe/pkg/pipeline/model"
)

// Pipeline is an ordered list of task stages.
type Pipeline struct {
	name      string
	opts      []model.PipelineOption
	stages    []*stage
	plan      *plan
	startTime time.Time
}

// New creates a new pipeline.
func New(name string, opts ...model.PipelineOption) (*Pipeline, error) {
	pl, err := newPlan()
	if err != nil {
		return nil, errors.Wrap(err, "unable to create pipeline plan")
	}

	pipe := &Pipeline{
		name: name,
		plan: pl,
		opts: opts,
	}

	for _, opt := range opts {
		err := opt.New()
		if err != nil {
			return nil, errors.Wrap(err, "unable to apply pipeline option")
		}
	}

	return pipe, nil
}

// Name returns the name the pipeline was created with.
func (p *Pipeline) Name() string {
	return p.name
}

// StageInfo describes a registered stage.
type StageInfo struct {
	Name       string
	Concurrent bool
	Tasks      []string
}

// Stages returns the registered stages in execution order.
func (p *Pipeline) Stages() []StageInfo {
	res := make([]StageInfo, 0, len(p.stages))
	for _, st := range p.stages {
		info := StageInfo{Name: st.name, Concurrent: st.concurrent}
		for _, t := range st.tasks {
			info.Tasks = append(info.Tasks, t.info.Name)
		}
		res = append(res, info)
	}

	return res
}

// Run runs every stage in order and stops on the first error.
// It can be called again once it has returned.
func (p *Pipeline) Run(ctx context.Context) error {
	p.startTime = time.Now()

	err := p.runStages(ctx)
	finishErr := p.finishRun()

	if err != nil {
		return err
	}

	return finishErr
}

func (p *Pipeline) runStages(ctx context.Context) error {
	for _, st := range p.stages {
		// nothing new starts once the caller gave up
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(err, "before %s", st.name)
		}

		if st.concurrent {
			err := p.runGroup(ctx, st)
			if err != nil {
				return errors.Wrap(err, st.name)
			}

			continue
		}

		err := p.runTask(ctx, st.tasks[0])
		if err != nil {
			return errors.Wrap(err, st.name)
		}
	}

	return nil
}

// runGroup starts every member on its own goroutine and waits for all of them.
// The first error cancels the remaining members.
func (p *Pipeline) runGroup(ctx context.Context, st *stage) error {
	gCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errcList := &errorChans{}

	for _, t := range st.tasks {
		errC := make(chan error, 1)
		errcList.add(newErrorChan(t.info.Name, errC))

		go func() {
			defer close(errC)

			err := p.runTask(gCtx, t)
			if err != nil {
				errC <- err
			}
		}()
	}

	var first error

	for err := range mergeErrors(errcList.list...) {
		if err != nil && first == nil {
			first = err

			cancel()
		}
	}

	return first
}

func (p *Pipeline) finishRun() error {
	for _, opt := range p.opts {
		err := opt.Finish()
		if err != nil {
			return errors.Wrap(err, "unable to finish pipeline option")
		}
	}

	return nil
}
