// Package orchestrator runs the named task sequences of the asset pipeline.
//
// Each run gets a fresh task registry, so the build state handed from rev to usemin never
// outlives a run, and its own Prometheus registry fed by the pipeline measure.
package orchestrator

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/askiada/go-assetpipe/internal/config"
	"github.com/askiada/go-assetpipe/internal/tasks"
	"github.com/askiada/go-assetpipe/internal/telemetry"
	"github.com/askiada/go-assetpipe/internal/watch"
	"github.com/askiada/go-assetpipe/pkg/pipeline"
	"github.com/askiada/go-assetpipe/pkg/pipeline/drawer"
	"github.com/askiada/go-assetpipe/pkg/pipeline/measure"
	"github.com/askiada/go-assetpipe/pkg/pipeline/model"
)

// RegistryFunc builds the tasks of one run.
type RegistryFunc func(cfg config.Config, deps tasks.Deps) (tasks.Registry, error)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the base logger. Every run adds its run_id to it.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithRunner sets the runner of the external commands.
func WithRunner(runner tasks.Runner) Option {
	return func(o *Orchestrator) {
		o.runner = runner
	}
}

// WithRegistry replaces the task registry.
func WithRegistry(fn RegistryFunc) Option {
	return func(o *Orchestrator) {
		o.newRegistry = fn
	}
}

// WithPipelineOptions adds options to the pipeline of every run.
func WithPipelineOptions(opts ...model.PipelineOption) Option {
	return func(o *Orchestrator) {
		o.pipeOpts = append(o.pipeOpts, opts...)
	}
}

// WithWatchOptions configures the watch loop of the serve sequence.
func WithWatchOptions(opts ...watch.Option) Option {
	return func(o *Orchestrator) {
		o.watchOpts = append(o.watchOpts, opts...)
	}
}

// WithGraphFile writes the task graph, annotated with durations, to fileName after each run.
func WithGraphFile(fileName string) Option {
	return func(o *Orchestrator) {
		o.graphFile = fileName
	}
}

// Orchestrator runs sequences over a configuration.
type Orchestrator struct {
	cfg         config.Config
	logger      *slog.Logger
	runner      tasks.Runner
	newRegistry RegistryFunc
	pipeOpts    []model.PipelineOption
	watchOpts   []watch.Option
	graphFile   string
}

// New creates an orchestrator for cfg.
func New(cfg config.Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:         cfg,
		logger:      slog.Default(),
		runner:      tasks.ExecRunner{},
		newRegistry: tasks.NewRegistry,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Run runs sequence for the named target. An empty target means development.
// Unknown sequences, targets or tasks are reported before anything runs.
func (o *Orchestrator) Run(ctx context.Context, sequence, targetName string) error {
	target, err := model.ParseTarget(targetName)
	if err != nil {
		return err
	}

	stages, err := Plan(sequence, target)
	if err != nil {
		return err
	}

	logger := o.logger.With("run_id", uuid.NewString(), "sequence", sequence, "target", target.String())
	ctx = telemetry.WithLogger(ctx, logger)

	promReg := prometheus.NewRegistry()

	msr, err := measure.NewPrometheusMeasure(promReg, sequence)
	if err != nil {
		return errors.Wrap(err, "unable to create measure")
	}

	reg, err := o.newRegistry(o.cfg, tasks.Deps{Runner: o.runner, Gatherer: promReg})
	if err != nil {
		return errors.Wrap(err, "unable to create task registry")
	}

	reg["watch"] = o.watchTask(reg)

	opts := []model.PipelineOption{measure.PipelineMeasure(msr), &taskLogger{logger: logger}}
	if o.graphFile != "" {
		opts = append(opts, drawer.PipelineDrawer(drawer.NewDOTDrawer(o.graphFile), msr))
	}

	pipe, err := assemble(sequence, stages, reg, append(opts, o.pipeOpts...)...)
	if err != nil {
		return err
	}

	logger.Info("run started", "stages", len(stages))

	runErr := pipe.Run(ctx)

	logSummary(logger, pipe, msr)

	if runErr != nil {
		return errors.Wrapf(runErr, "%s failed", sequence)
	}

	if sequence != SequenceServe {
		o.reportSizes(logger)
	}

	return nil
}

// Graph writes the task graph of sequence as DOT without running anything.
func (o *Orchestrator) Graph(w io.Writer, sequence, targetName string) error {
	target, err := model.ParseTarget(targetName)
	if err != nil {
		return err
	}

	stages, err := Plan(sequence, target)
	if err != nil {
		return err
	}

	reg, err := o.newRegistry(o.cfg, tasks.Deps{Runner: o.runner})
	if err != nil {
		return errors.Wrap(err, "unable to create task registry")
	}

	reg["watch"] = o.watchTask(reg)

	dot := drawer.NewDOTDrawer("")

	_, err = assemble(sequence, stages, reg, drawer.PipelineDrawer(dot, nil))
	if err != nil {
		return err
	}

	_, err = dot.WriteTo(w)
	if err != nil {
		return errors.Wrap(err, "unable to write graph")
	}

	return nil
}

// assemble resolves every task of stages in reg and adds them to a new pipeline.
func assemble(pipeName string, stages []Stage, reg tasks.Registry, opts ...model.PipelineOption) (*pipeline.Pipeline, error) {
	for _, st := range stages {
		for _, name := range st.Tasks {
			if _, ok := reg.Get(name); !ok {
				return nil, errors.Wrapf(ErrTaskNotRegistered, "%q", name)
			}
		}
	}

	pipe, err := pipeline.New(pipeName, opts...)
	if err != nil {
		return nil, err
	}

	for _, st := range stages {
		if !st.Concurrent {
			fn, _ := reg.Get(st.Tasks[0])

			err = pipeline.AddTask(pipe, st.Name, fn)
			if err != nil {
				return nil, err
			}

			continue
		}

		members := make([]pipeline.Task, len(st.Tasks))
		for i, name := range st.Tasks {
			fn, _ := reg.Get(name)
			members[i] = pipeline.Task{Name: name, Fn: fn}
		}

		err = pipeline.AddConcurrent(pipe, st.Name, members...)
		if err != nil {
			return nil, err
		}
	}

	return pipe, nil
}

// watchTask re-runs the tasks of the configured watch rules until ctx is done.
func (o *Orchestrator) watchTask(reg tasks.Registry) pipeline.TaskFunc {
	return func(ctx context.Context) error {
		loop, err := newWatchLoop(o.cfg, reg, append([]watch.Option{watch.WithLogger(telemetry.FromContext(ctx))}, o.watchOpts...)...)
		if err != nil {
			return err
		}

		return loop.Run(ctx)
	}
}

func newWatchLoop(cfg config.Config, reg tasks.Registry, opts ...watch.Option) (*watch.Loop, error) {
	rules := make([]watch.Rule, len(cfg.Watch))

	for i, rule := range cfg.Watch {
		for _, name := range rule.Tasks {
			if _, ok := reg.Get(name); !ok {
				return nil, errors.Wrapf(ErrTaskNotRegistered, "watch rule %s: %q", rule.Name, name)
			}
		}

		rules[i] = watch.Rule{Name: rule.Name, Patterns: rule.Files, Tasks: rule.Tasks}
	}

	run := func(ctx context.Context, rule watch.Rule) error {
		for _, name := range rule.Tasks {
			fn, _ := reg.Get(name)

			start := time.Now()

			err := fn(ctx)
			if err != nil {
				return errors.Wrap(err, name)
			}

			telemetry.FromContext(ctx).Debug("task finished", "task", name, "rule", rule.Name, "elapsed", time.Since(start))
		}

		return nil
	}

	return watch.New(cfg.Root, rules, run, opts...)
}

func (o *Orchestrator) reportSizes(logger *slog.Logger) {
	files, total, err := tasks.Sizes(o.cfg.Path(o.cfg.DistDir))
	if err != nil {
		logger.Warn("unable to report sizes", "error", err)

		return
	}

	for _, f := range files {
		logger.Info("built", "file", f.Path, "size", f.Human())
	}

	logger.Info("build size", "files", len(files), "total", tasks.FileSize{Size: total}.Human())
}
