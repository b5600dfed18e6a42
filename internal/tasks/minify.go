package tasks

import (
	"context"
	"os"
	"path"

	"github.com/pkg/errors"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/js"

	"github.com/askiada/go-assetpipe/internal/config"
	"github.com/askiada/go-assetpipe/internal/manifest"
	"github.com/askiada/go-assetpipe/internal/telemetry"
)

const (
	cssMediaType = "text/css"
	jsMediaType  = "application/javascript"
)

func newMinifier() *minify.M {
	m := minify.New()
	m.AddFunc(cssMediaType, css.Minify)
	m.AddFunc(jsMediaType, js.Minify)

	return m
}

// MinifyCSS minifies every concatenated stylesheet bundle into the output directory.
func MinifyCSS(ctx context.Context, cfg config.Config, build *Build) error {
	return minifyBundles(ctx, cfg, build, manifest.CSS, cssMediaType)
}

// MinifyJS minifies every concatenated script bundle into the output directory,
// renaming local variables.
func MinifyJS(ctx context.Context, cfg config.Config, build *Build) error {
	return minifyBundles(ctx, cfg, build, manifest.JS, jsMediaType)
}

func minifyBundles(ctx context.Context, cfg config.Config, build *Build, bundleType manifest.BundleType, mediaType string) error {
	m := build.Manifest()
	if m == nil {
		return errors.New("no bundles loaded")
	}

	minifier := newMinifier()
	logger := telemetry.FromContext(ctx)

	for _, b := range m.ByType(bundleType) {
		if err := ctx.Err(); err != nil {
			return err
		}

		src := path.Join(cfg.Bundles.ConcatDir, b.Dest)

		data, err := os.ReadFile(cfg.Path(src))
		if err != nil {
			return errors.Wrapf(err, "unable to read %s", src)
		}

		out, err := minifier.Bytes(mediaType, data)
		if err != nil {
			return errors.Wrapf(err, "unable to minify %s", src)
		}

		err = writeFile(cfg.Path(path.Join(cfg.DistDir, b.Dest)), out)
		if err != nil {
			return err
		}

		logger.Info("bundle minified", "dest", b.Dest, "before", len(data), "after", len(out))
	}

	return nil
}
