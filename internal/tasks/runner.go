package tasks

import (
	"context"
	"os/exec"
	"strings"

	"github.com/pkg/errors"

	"github.com/askiada/go-assetpipe/internal/telemetry"
)

// Runner runs an external executable from dir.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) error
}

// ExecRunner runs commands with os/exec. The combined output is logged at debug level
// and attached to the error when the command fails.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	out, err := cmd.CombinedOutput()
	output := strings.TrimSpace(string(out))

	if err != nil {
		if output != "" {
			return errors.Wrapf(err, "%s failed: %s", name, output)
		}

		return errors.Wrapf(err, "%s failed", name)
	}

	if output != "" {
		telemetry.FromContext(ctx).Debug("command output", "command", name, "output", output)
	}

	return nil
}

var _ Runner = ExecRunner{}
