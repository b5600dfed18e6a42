package tasks

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/askiada/go-assetpipe/internal/config"
	"github.com/askiada/go-assetpipe/internal/telemetry"
)

// LoadEnv loads the variables of the environment file into the process environment.
// Variables already set are kept. A missing file is logged and ignored.
func LoadEnv(ctx context.Context, cfg config.Config) error {
	if cfg.EnvFile == "" {
		return nil
	}

	filename := cfg.Path(cfg.EnvFile)

	err := godotenv.Load(filename)
	if err != nil {
		if isNotExist(err) {
			telemetry.FromContext(ctx).Warn("no environment file", "path", cfg.EnvFile)

			return nil
		}

		return errors.Wrapf(err, "unable to load environment file %s", cfg.EnvFile)
	}

	telemetry.FromContext(ctx).Info("environment loaded", "path", cfg.EnvFile)

	return nil
}
