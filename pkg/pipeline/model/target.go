package model

import (
	"github.com/pkg/errors"
)

// ErrUnknownTarget is returned when a target name is neither dev nor dist.
var ErrUnknownTarget = errors.New("unknown target")

// Target selects which variant of each task runs.
type Target string

const (
	// TargetDev is the development build, served from the temporary directory.
	TargetDev Target = "dev"
	// TargetDist is the production build written to the output directory.
	TargetDist Target = "dist"
)

// ParseTarget converts a command line argument into a Target.
// An empty name means development.
func ParseTarget(name string) (Target, error) {
	switch name {
	case "", string(TargetDev):
		return TargetDev, nil
	case string(TargetDist):
		return TargetDist, nil
	default:
		return "", errors.Wrapf(ErrUnknownTarget, "%q", name)
	}
}

func (t Target) String() string {
	return string(t)
}

// IsDist reports whether t is the production target.
func (t Target) IsDist() bool {
	return t == TargetDist
}
