package orchestrator

import (
	"github.com/pkg/errors"

	"github.com/askiada/go-assetpipe/pkg/pipeline/model"
)

var (
	ErrUnknownSequence   = errors.New("unknown sequence")
	ErrTaskNotRegistered = errors.New("task not registered")
)

const (
	SequenceServe   = "serve"
	SequenceBuild   = "build"
	SequenceDefault = "default"
)

// Stage is one step of a sequence: a single task, or a group of tasks run concurrently.
type Stage struct {
	Name       string
	Concurrent bool
	Tasks      []string
}

func single(name string) Stage {
	return Stage{Name: name, Tasks: []string{name}}
}

func group(name string, tasks ...string) Stage {
	return Stage{Name: name, Concurrent: true, Tasks: tasks}
}

func serveStages() []Stage {
	return []Stage{
		single("clean:dev"),
		single("env:dev"),
		single("preprocess:dev"),
		group("concurrent:dev", "sass:dev", "templates:dev"),
		single("autoprefixer:dev"),
		single("server:dev"),
		single("watch"),
	}
}

func buildStages() []Stage {
	return []Stage{
		single("clean:dist"),
		single("preprocess:dist"),
		single("bundles"),
		group("concurrent:dist", "sass:dist", "templates:dist"),
		single("autoprefixer:dist"),
		single("concat"),
		single("copy:dist"),
		single("cssmin"),
		single("uglify"),
		single("rev"),
		single("usemin"),
	}
}

// Plan returns the stages of sequence for target.
// The target only changes serve: build and default always produce the dist output.
func Plan(sequence string, target model.Target) ([]Stage, error) {
	switch sequence {
	case SequenceServe:
		if target.IsDist() {
			return append(buildStages(), single("server:dist:keepalive")), nil
		}

		return serveStages(), nil
	case SequenceBuild, SequenceDefault:
		return buildStages(), nil
	default:
		return nil, errors.Wrapf(ErrUnknownSequence, "%q", sequence)
	}
}

// Sequences lists the sequences Plan knows about.
func Sequences() []string {
	return []string{SequenceServe, SequenceBuild, SequenceDefault}
}
