package tasks

import (
	"context"
	"os"

	"github.com/pkg/errors"

	"github.com/askiada/go-assetpipe/internal/config"
	"github.com/askiada/go-assetpipe/internal/telemetry"
)

// Clean removes every path matching patterns under the project root.
// Patterns starting with "!" protect matching paths.
func Clean(ctx context.Context, cfg config.Config, patterns []string) error {
	paths, err := Expand(cfg.Root, patterns, false)
	if err != nil {
		return err
	}

	logger := telemetry.FromContext(ctx)

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := os.RemoveAll(cfg.Path(p))
		if err != nil {
			return errors.Wrapf(err, "unable to remove %s", p)
		}

		logger.Debug("removed", "path", p)
	}

	logger.Info("cleaned", "paths", len(paths))

	return nil
}
