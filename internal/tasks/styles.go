package tasks

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/askiada/go-assetpipe/internal/config"
	"github.com/askiada/go-assetpipe/internal/telemetry"
)

// sassStyle maps the historical libsass output styles onto the ones dart-sass still supports.
func sassStyle(outputStyle string) string {
	if outputStyle == "compressed" {
		return "compressed"
	}

	return "expanded"
}

// CompileSass compiles the main stylesheet with the configured sass executable.
func CompileSass(ctx context.Context, cfg config.Config, runner Runner, outputStyle string) error {
	dest := cfg.Path(cfg.Styles.Dest)

	err := os.MkdirAll(filepath.Dir(dest), 0o755)
	if err != nil {
		return errors.Wrapf(err, "unable to create directory for %s", cfg.Styles.Dest)
	}

	args := append([]string{}, cfg.Styles.Sass.Args...)
	args = append(args, "--style="+sassStyle(outputStyle))

	for _, p := range cfg.Styles.IncludePaths {
		args = append(args, "--load-path="+filepath.FromSlash(p))
	}

	if cfg.Styles.SourceMap {
		args = append(args, "--source-map")
	} else {
		args = append(args, "--no-source-map")
	}

	args = append(args, filepath.FromSlash(cfg.Styles.Src), filepath.FromSlash(cfg.Styles.Dest))

	err = runner.Run(ctx, cfg.Root, cfg.Styles.Sass.Name, args...)
	if err != nil {
		return errors.Wrapf(err, "unable to compile %s", cfg.Styles.Src)
	}

	telemetry.FromContext(ctx).Info("styles compiled", "src", cfg.Styles.Src, "dest", cfg.Styles.Dest, "style", outputStyle)

	return nil
}

// Autoprefix adds vendor prefixes to the compiled stylesheet, in place.
// It is a no-op when no autoprefixer command is configured.
func Autoprefix(ctx context.Context, cfg config.Config, runner Runner) error {
	if cfg.Styles.Autoprefixer.Name == "" {
		return nil
	}

	dest := filepath.FromSlash(cfg.Styles.Dest)

	_, err := os.Stat(cfg.Path(cfg.Styles.Dest))
	if err != nil {
		return errors.Wrapf(err, "nothing to autoprefix")
	}

	args := append([]string{}, cfg.Styles.Autoprefixer.Args...)
	args = append(args, dest, "-o", dest)

	err = runner.Run(ctx, cfg.Root, cfg.Styles.Autoprefixer.Name, args...)
	if err != nil {
		return errors.Wrapf(err, "unable to autoprefix %s", cfg.Styles.Dest)
	}

	telemetry.FromContext(ctx).Info("styles prefixed", "file", cfg.Styles.Dest)

	return nil
}
