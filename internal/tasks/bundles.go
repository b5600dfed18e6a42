package tasks

import (
	"bytes"
	"context"
	"os"
	"path"
	"strings"

	"github.com/pkg/errors"

	"github.com/askiada/go-assetpipe/internal/config"
	"github.com/askiada/go-assetpipe/internal/manifest"
	"github.com/askiada/go-assetpipe/internal/telemetry"
	"github.com/askiada/go-assetpipe/pkg/pipeline/model"
)

// GenerateManifest scans the build blocks of the HTML entry point, preprocessed for the dist
// target, and writes the bundle manifest. Members excluded by a directive in production never
// reach a bundle.
func GenerateManifest(ctx context.Context, cfg config.Config) (*manifest.Manifest, error) {
	dist, err := cfg.For(model.TargetDist)
	if err != nil {
		return nil, err
	}

	html, err := renderHTML(cfg, dist.Context)
	if err != nil {
		return nil, err
	}

	m, err := manifest.Scan(cfg.HTML.Src, strings.NewReader(html))
	if err != nil {
		return nil, errors.Wrapf(err, "unable to scan %s", cfg.HTML.Src)
	}

	err = m.Save(cfg.Path(cfg.Manifest))
	if err != nil {
		return nil, err
	}

	telemetry.FromContext(ctx).Info("manifest written", "path", cfg.Manifest, "bundles", len(m.Bundles))

	return m, nil
}

// LoadBundles reads the bundle manifest into build.
func LoadBundles(ctx context.Context, cfg config.Config, build *Build) error {
	m, err := manifest.Load(cfg.Path(cfg.Manifest))
	if err != nil {
		return err
	}

	logger := telemetry.FromContext(ctx)

	if m.Source != "" && m.Source != cfg.HTML.Src {
		logger.Warn("manifest was generated from another document", "manifest_source", m.Source, "html", cfg.HTML.Src)
	}

	build.setManifest(m)

	for _, b := range m.Bundles {
		logger.Debug("bundle", "type", b.Type, "dest", b.Dest, "members", len(b.Members))
	}

	logger.Info("bundles loaded", "path", cfg.Manifest, "bundles", len(m.Bundles))

	return nil
}

// Concat writes every bundle of the manifest, its members joined in order, to the concat directory.
func Concat(ctx context.Context, cfg config.Config, build *Build) error {
	m := build.Manifest()
	if m == nil {
		return errors.New("no bundles loaded")
	}

	for _, b := range m.Bundles {
		if err := ctx.Err(); err != nil {
			return err
		}

		searchPaths := b.SearchPaths
		if len(searchPaths) == 0 {
			searchPaths = cfg.Bundles.SearchPaths
		}

		separator := "\n"
		if b.Type == manifest.JS {
			separator = ";\n"
		}

		buf := &bytes.Buffer{}

		for i, member := range b.Members {
			data, err := resolveMember(cfg, searchPaths, member)
			if err != nil {
				return errors.Wrapf(err, "bundle %s", b.Dest)
			}

			if i > 0 {
				buf.WriteString(separator)
			}

			buf.Write(bytes.TrimRight(data, "\n"))
		}

		buf.WriteString("\n")

		err := writeFile(cfg.Path(path.Join(cfg.Bundles.ConcatDir, b.Dest)), buf.Bytes())
		if err != nil {
			return err
		}

		telemetry.FromContext(ctx).Info("bundle concatenated", "dest", b.Dest, "members", len(b.Members))
	}

	return nil
}

// resolveMember reads member from the first search path that has it.
func resolveMember(cfg config.Config, searchPaths []string, member string) ([]byte, error) {
	member = strings.TrimPrefix(member, "/")

	for _, dir := range searchPaths {
		data, err := os.ReadFile(cfg.Path(path.Join(dir, member)))
		if err == nil {
			return data, nil
		}

		if !isNotExist(err) {
			return nil, errors.Wrapf(err, "unable to read %s", member)
		}
	}

	return nil, errors.Errorf("%s not found in %s", member, strings.Join(searchPaths, ", "))
}
