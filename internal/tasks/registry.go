package tasks

import (
	"context"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/askiada/go-assetpipe/internal/config"
	"github.com/askiada/go-assetpipe/internal/server"
	"github.com/askiada/go-assetpipe/internal/telemetry"
	"github.com/askiada/go-assetpipe/pkg/pipeline"
	"github.com/askiada/go-assetpipe/pkg/pipeline/model"
)

// Registry maps task names to their implementation.
type Registry map[string]pipeline.TaskFunc

// Get returns the task registered under name.
func (r Registry) Get(name string) (pipeline.TaskFunc, bool) {
	fn, ok := r[name]

	return fn, ok && fn != nil
}

// Deps are the collaborators shared by the tasks of a registry.
type Deps struct {
	Runner Runner
	// Gatherer is exposed by the servers when metrics are enabled.
	Gatherer prometheus.Gatherer
}

// NewRegistry binds every task to cfg. The registry owns a fresh Build, so it must not be
// shared between two runs.
func NewRegistry(cfg config.Config, deps Deps) (Registry, error) {
	dev, err := cfg.For(model.TargetDev)
	if err != nil {
		return nil, err
	}

	dist, err := cfg.For(model.TargetDist)
	if err != nil {
		return nil, err
	}

	if deps.Runner == nil {
		deps.Runner = ExecRunner{}
	}

	build := NewBuild()

	reg := Registry{
		"bundles": func(ctx context.Context) error { return LoadBundles(ctx, cfg, build) },
		"concat":  func(ctx context.Context) error { return Concat(ctx, cfg, build) },
		"cssmin":  func(ctx context.Context) error { return MinifyCSS(ctx, cfg, build) },
		"uglify":  func(ctx context.Context) error { return MinifyJS(ctx, cfg, build) },
		"rev":     func(ctx context.Context) error { return Rev(ctx, cfg, build) },
		"usemin":  func(ctx context.Context) error { return Usemin(ctx, cfg, build) },
		"copy:dist": func(ctx context.Context) error {
			return Copy(ctx, cfg, cfg.Copy)
		},
		"env:dev": func(ctx context.Context) error {
			if !dev.LoadEnv {
				return nil
			}

			return LoadEnv(ctx, cfg)
		},
		"server:dev": func(ctx context.Context) error {
			_, err := startServer(ctx, cfg, deps, dev)

			return err
		},
		"server:dist:keepalive": func(ctx context.Context) error {
			srv, err := startServer(ctx, cfg, deps, dist)
			if err != nil {
				return err
			}

			return srv.Wait()
		},
	}

	for _, target := range []config.Target{dev, dist} {
		suffix := ":" + target.Target.String()

		reg["clean"+suffix] = func(ctx context.Context) error {
			return Clean(ctx, cfg, target.Clean)
		}
		reg["preprocess"+suffix] = func(ctx context.Context) error {
			return Preprocess(ctx, cfg, target.Context)
		}
		reg["sass"+suffix] = func(ctx context.Context) error {
			return CompileSass(ctx, cfg, deps.Runner, target.OutputStyle)
		}
		reg["autoprefixer"+suffix] = func(ctx context.Context) error {
			return Autoprefix(ctx, cfg, deps.Runner)
		}
		reg["templates"+suffix] = func(ctx context.Context) error {
			return CompileTemplates(ctx, cfg)
		}
	}

	return reg, nil
}

// startServer serves target's base directories until ctx is done. Directory listings come
// from the last base, the application sources in development.
func startServer(ctx context.Context, cfg config.Config, deps Deps, target config.Target) (*server.Server, error) {
	if len(target.ServeBase) == 0 {
		return nil, errors.Wrapf(server.ErrNoBase, "%s server", target.Target)
	}

	bases := make([]string, len(target.ServeBase))
	for i, base := range target.ServeBase {
		bases[i] = cfg.Path(base)
	}

	opts := server.Options{
		Addr:    cfg.Server.Addr,
		Bases:   bases,
		Listing: bases[len(bases)-1],
		Logger:  telemetry.FromContext(ctx),
	}

	if cfg.Server.Metrics {
		opts.Gatherer = deps.Gatherer
	}

	srv, err := server.New(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to create %s server", target.Target)
	}

	err = srv.Start(ctx)
	if err != nil {
		return nil, err
	}

	return srv, nil
}
