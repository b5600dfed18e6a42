package tasks

import (
	"context"
	"path"

	"golang.org/x/sync/errgroup"

	"github.com/askiada/go-assetpipe/internal/config"
	"github.com/askiada/go-assetpipe/internal/telemetry"
)

const copyConcurrency = 8

// Copy copies the files of every rule to its destination, keeping their path relative to the
// rule's working directory.
func Copy(ctx context.Context, cfg config.Config, rules []config.CopyRule) error {
	errGrp, gCtx := errgroup.WithContext(ctx)
	errGrp.SetLimit(copyConcurrency)

	total := 0

	for _, rule := range rules {
		files, err := Expand(cfg.Path(rule.Cwd), rule.Src, true)
		if err != nil {
			return err
		}

		total += len(files)

		for _, file := range files {
			errGrp.Go(func() error {
				if err := gCtx.Err(); err != nil {
					return err
				}

				return copyFile(cfg.Path(path.Join(rule.Cwd, file)), cfg.Path(path.Join(rule.Dest, file)))
			})
		}
	}

	err := errGrp.Wait()
	if err != nil {
		return err
	}

	telemetry.FromContext(ctx).Info("files copied", "files", total)

	return nil
}
