package tasks

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/askiada/go-assetpipe/internal/config"
	"github.com/askiada/go-assetpipe/internal/telemetry"
)

// ContentHash returns the first length hexadecimal characters of the xxhash of data.
func ContentHash(data []byte, length int) string {
	sum := fmt.Sprintf("%016x", xxhash.Sum64(data))
	if length > 0 && length < len(sum) {
		return sum[:length]
	}

	return sum
}

// RevName prefixes the base name of p with hash: scripts/app.js becomes scripts/<hash>.app.js.
func RevName(p, hash string) string {
	dir, base := path.Split(p)

	return dir + hash + "." + base
}

// Rev renames the built assets after their content hash and records the renames in build.
// Paths in the record are relative to the output directory.
func Rev(ctx context.Context, cfg config.Config, build *Build) error {
	files, err := Expand(cfg.Root, cfg.Rev.Src, true)
	if err != nil {
		return err
	}

	distPrefix := strings.TrimSuffix(path.Clean(cfg.DistDir), "/") + "/"

	errGrp, gCtx := errgroup.WithContext(ctx)
	errGrp.SetLimit(copyConcurrency)

	for _, file := range files {
		errGrp.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}

			data, err := os.ReadFile(cfg.Path(file))
			if err != nil {
				return errors.Wrapf(err, "unable to read %s", file)
			}

			revved := RevName(file, ContentHash(data, cfg.Rev.HashLength))

			err = os.Rename(cfg.Path(file), cfg.Path(revved))
			if err != nil {
				return errors.Wrapf(err, "unable to rename %s", file)
			}

			build.addRevision(strings.TrimPrefix(file, distPrefix), strings.TrimPrefix(revved, distPrefix))

			return nil
		})
	}

	err = errGrp.Wait()
	if err != nil {
		return err
	}

	telemetry.FromContext(ctx).Info("assets revved", "files", len(files))

	return nil
}
