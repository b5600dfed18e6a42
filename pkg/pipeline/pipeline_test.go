package pipeline_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-assetpipe/pkg/pipeline"
	"github.com/askiada/go-assetpipe/pkg/pipeline/measure"
	"github.com/askiada/go-assetpipe/pkg/pipeline/model"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) task(name string) pipeline.TaskFunc {
	return func(context.Context) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls = append(r.calls, name)

		return nil
	}
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.calls...)
}

func TestAddTaskNilPipe(t *testing.T) {
	t.Parallel()

	err := pipeline.AddTask(nil, "clean", func(context.Context) error { return nil })
	require.ErrorIs(t, err, pipeline.ErrPipelineMustBeSet)

	err = pipeline.AddConcurrent(nil, "group", pipeline.Task{Name: "a", Fn: func(context.Context) error { return nil }})
	require.ErrorIs(t, err, pipeline.ErrPipelineMustBeSet)
}

func TestRegistrationErrors(t *testing.T) {
	t.Parallel()

	noop := func(context.Context) error { return nil }

	tests := map[string]struct {
		register func(p *pipeline.Pipeline) error
		wantErr  error
	}{
		"nil task function": {
			register: func(p *pipeline.Pipeline) error {
				return pipeline.AddTask(p, "clean", nil)
			},
			wantErr: pipeline.ErrTaskMustBeSet,
		},
		"nil group member": {
			register: func(p *pipeline.Pipeline) error {
				return pipeline.AddConcurrent(p, "group", pipeline.Task{Name: "a", Fn: noop}, pipeline.Task{Name: "b"})
			},
			wantErr: pipeline.ErrTaskMustBeSet,
		},
		"empty group": {
			register: func(p *pipeline.Pipeline) error {
				return pipeline.AddConcurrent(p, "group")
			},
			wantErr: pipeline.ErrEmptyGroup,
		},
		"duplicate task": {
			register: func(p *pipeline.Pipeline) error {
				err := pipeline.AddTask(p, "clean", noop)
				if err != nil {
					return err
				}

				return pipeline.AddTask(p, "clean", noop)
			},
			wantErr: pipeline.ErrDuplicateTask,
		},
		"duplicate member": {
			register: func(p *pipeline.Pipeline) error {
				return pipeline.AddConcurrent(p, "group", pipeline.Task{Name: "a", Fn: noop}, pipeline.Task{Name: "a", Fn: noop})
			},
			wantErr: pipeline.ErrDuplicateTask,
		},
		"member named like a task": {
			register: func(p *pipeline.Pipeline) error {
				err := pipeline.AddTask(p, "sass", noop)
				if err != nil {
					return err
				}

				return pipeline.AddConcurrent(p, "group", pipeline.Task{Name: "sass", Fn: noop})
			},
			wantErr: pipeline.ErrDuplicateTask,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			pipe, err := pipeline.New("test")
			require.NoError(t, err)

			err = tt.register(pipe)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRunInOrder(t *testing.T) {
	t.Parallel()

	rec := &recorder{}

	pipe, err := pipeline.New("build")
	require.NoError(t, err)

	require.NoError(t, pipeline.AddTask(pipe, "clean", rec.task("clean")))
	require.NoError(t, pipeline.AddTask(pipe, "preprocess", rec.task("preprocess")))
	require.NoError(t, pipeline.AddConcurrent(pipe, "concurrent",
		pipeline.Task{Name: "sass", Fn: rec.task("sass")},
		pipeline.Task{Name: "templates", Fn: rec.task("templates")},
	))
	require.NoError(t, pipeline.AddTask(pipe, "autoprefixer", rec.task("autoprefixer")))

	require.NoError(t, pipe.Run(t.Context()))

	got := rec.got()
	require.Len(t, got, 5)
	assert.Equal(t, []string{"clean", "preprocess"}, got[:2])
	assert.ElementsMatch(t, []string{"sass", "templates"}, got[2:4])
	assert.Equal(t, "autoprefixer", got[4])

	assert.Equal(t, []pipeline.StageInfo{
		{Name: "clean", Tasks: []string{"clean"}},
		{Name: "preprocess", Tasks: []string{"preprocess"}},
		{Name: "concurrent", Concurrent: true, Tasks: []string{"sass", "templates"}},
		{Name: "autoprefixer", Tasks: []string{"autoprefixer"}},
	}, pipe.Stages())
	assert.Equal(t, "build", pipe.Name())
}

func TestRunStopsOnFirstError(t *testing.T) {
	t.Parallel()

	rec := &recorder{}

	pipe, err := pipeline.New("build")
	require.NoError(t, err)

	require.NoError(t, pipeline.AddTask(pipe, "clean", rec.task("clean")))
	require.NoError(t, pipeline.AddTask(pipe, "sass", func(context.Context) error {
		return assert.AnError
	}))
	require.NoError(t, pipeline.AddTask(pipe, "autoprefixer", rec.task("autoprefixer")))

	err = pipe.Run(t.Context())
	require.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "sass")
	assert.Equal(t, []string{"clean"}, rec.got())
}

func TestGroupWaitsForEveryMember(t *testing.T) {
	t.Parallel()

	var slowDone atomic.Bool

	pipe, err := pipeline.New("build")
	require.NoError(t, err)

	require.NoError(t, pipeline.AddConcurrent(pipe, "concurrent",
		pipeline.Task{Name: "sass", Fn: func(context.Context) error { return nil }},
		pipeline.Task{Name: "templates", Fn: func(context.Context) error {
			time.Sleep(50 * time.Millisecond)
			slowDone.Store(true)

			return nil
		}},
	))

	var seen bool

	require.NoError(t, pipeline.AddTask(pipe, "autoprefixer", func(context.Context) error {
		seen = slowDone.Load()

		return nil
	}))

	require.NoError(t, pipe.Run(t.Context()))
	assert.True(t, seen)
}

func TestGroupFailureCancelsSiblings(t *testing.T) {
	t.Parallel()

	var (
		cancelled atomic.Bool
		next      atomic.Bool
	)

	pipe, err := pipeline.New("build")
	require.NoError(t, err)

	require.NoError(t, pipeline.AddConcurrent(pipe, "concurrent",
		pipeline.Task{Name: "sass", Fn: func(context.Context) error {
			return assert.AnError
		}},
		pipeline.Task{Name: "templates", Fn: func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				cancelled.Store(true)

				return ctx.Err()
			case <-time.After(5 * time.Second):
				return nil
			}
		}},
	))
	require.NoError(t, pipeline.AddTask(pipe, "autoprefixer", func(context.Context) error {
		next.Store(true)

		return nil
	}))

	err = pipe.Run(t.Context())
	require.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "concurrent")
	assert.True(t, cancelled.Load())
	assert.False(t, next.Load())
}

func TestRunCancelledContext(t *testing.T) {
	t.Parallel()

	rec := &recorder{}

	pipe, err := pipeline.New("build")
	require.NoError(t, err)
	require.NoError(t, pipeline.AddTask(pipe, "clean", rec.task("clean")))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err = pipe.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.got())
}

func TestRunWithMeasure(t *testing.T) {
	t.Parallel()

	msr := measure.NewDefaultMeasure()

	pipe, err := pipeline.New("build", measure.PipelineMeasure(msr))
	require.NoError(t, err)

	require.NoError(t, pipeline.AddTask(pipe, "clean", func(context.Context) error { return nil }))
	require.NoError(t, pipeline.AddTask(pipe, "sass", func(context.Context) error { return assert.AnError }))

	require.Error(t, pipe.Run(t.Context()))

	assert.EqualValues(t, 1, msr.GetMetric("clean").Runs())
	assert.EqualValues(t, 0, msr.GetMetric("clean").Failures())
	assert.EqualValues(t, 1, msr.GetMetric("sass").Failures())
	assert.Positive(t, msr.GetMetric("end").GetTotalDuration())
}

type preparedTask struct {
	parents []string
	info    model.TaskInfo
}

type prepareRecorder struct {
	prepared []preparedTask
}

func (*prepareRecorder) New() error { return nil }

func (p *prepareRecorder) PrepareTask(parents []*model.TaskInfo, task *model.TaskInfo) error {
	names := make([]string, len(parents))
	for i, parent := range parents {
		names[i] = parent.Name
	}

	p.prepared = append(p.prepared, preparedTask{parents: names, info: *task})

	return nil
}

func (*prepareRecorder) BeforeTask(_ *model.TaskInfo) error { return nil }

func (*prepareRecorder) AfterTask(_ *model.TaskInfo, _ time.Duration, _ error) error { return nil }

func (*prepareRecorder) Finish() error { return nil }

func TestPrepareTaskInfo(t *testing.T) {
	t.Parallel()

	rec := &prepareRecorder{}

	pipe, err := pipeline.New("build", rec)
	require.NoError(t, err)

	noop := func(context.Context) error { return nil }

	require.NoError(t, pipeline.AddTask(pipe, "clean:dist", noop))
	require.NoError(t, pipeline.AddConcurrent(pipe, "concurrent:dist",
		pipeline.Task{Name: "sass:dist", Fn: noop},
		pipeline.Task{Name: "templates:dist", Fn: noop},
	))
	require.NoError(t, pipeline.AddTask(pipe, "autoprefixer:dist", noop))

	assert.Equal(t, []preparedTask{
		{
			parents: []string{"start"},
			info:    model.TaskInfo{Type: model.NormalTaskType, Name: "clean:dist", Stage: 0},
		},
		{
			parents: []string{"clean:dist"},
			info:    model.TaskInfo{Type: model.MemberTaskType, Name: "sass:dist", Group: "concurrent:dist", Stage: 1},
		},
		{
			parents: []string{"clean:dist"},
			info:    model.TaskInfo{Type: model.MemberTaskType, Name: "templates:dist", Group: "concurrent:dist", Stage: 1},
		},
		{
			parents: []string{"sass:dist", "templates:dist"},
			info:    model.TaskInfo{Type: model.NormalTaskType, Name: "autoprefixer:dist", Stage: 2},
		},
	}, rec.prepared)
}
