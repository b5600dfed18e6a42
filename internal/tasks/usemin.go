package tasks

import (
	"bytes"
	"context"
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/askiada/go-assetpipe/internal/config"
	"github.com/askiada/go-assetpipe/internal/manifest"
	"github.com/askiada/go-assetpipe/internal/telemetry"
)

// Usemin replaces the build blocks of the built HTML with a single tag per bundle,
// then rewrites every revved asset reference in the built HTML and CSS.
func Usemin(ctx context.Context, cfg config.Config, build *Build) error {
	m := build.Manifest()
	if m == nil {
		return errors.New("no bundles loaded")
	}

	htmlFiles, err := Expand(cfg.Root, cfg.Usemin.HTML, true)
	if err != nil {
		return err
	}

	cssFiles, err := Expand(cfg.Root, cfg.Usemin.CSS, true)
	if err != nil {
		return err
	}

	distPrefix := strings.TrimSuffix(path.Clean(cfg.DistDir), "/") + "/"

	for _, file := range htmlFiles {
		rewrite := referenceRewriter(build, path.Dir(strings.TrimPrefix(file, distPrefix)))

		err := rewriteFile(cfg.Path(file), func(data []byte) ([]byte, error) {
			out := &bytes.Buffer{}

			err := manifest.Rewrite(m, bytes.NewReader(data), out, func(b manifest.Bundle) string {
				return manifest.Tag(b.Type, build.Revised(b.Dest))
			})
			if err != nil {
				return nil, err
			}

			return rewrite(out.Bytes()), nil
		})
		if err != nil {
			return errors.Wrapf(err, "usemin %s", file)
		}
	}

	for _, file := range cssFiles {
		rewrite := referenceRewriter(build, path.Dir(strings.TrimPrefix(file, distPrefix)))

		err := rewriteFile(cfg.Path(file), func(data []byte) ([]byte, error) {
			return rewrite(data), nil
		})
		if err != nil {
			return errors.Wrapf(err, "usemin %s", file)
		}
	}

	telemetry.FromContext(ctx).Info("references rewritten", "html", len(htmlFiles), "css", len(cssFiles))

	return nil
}

func rewriteFile(filename string, fn func([]byte) ([]byte, error)) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return errors.Wrapf(err, "unable to read %s", filename)
	}

	out, err := fn(data)
	if err != nil {
		return err
	}

	return writeFile(filename, out)
}

// referenceRe finds the references of a document: a run of path characters delimited on the
// left by a quote, a parenthesis, an equal sign or a space. The run stops before a query
// string or a fragment.
var referenceRe = regexp.MustCompile(`(^|["'(=\s])([^"'()\s=?#<>]+)`)

// referenceRewriter replaces the references to revved assets in a document of dir, relative
// to the output directory. A reference is rewritten only when it resolves to a revved path:
// from the output root when it starts with a slash, from dir otherwise.
func referenceRewriter(build *Build, dir string) func([]byte) []byte {
	revisions := build.Revisions()

	return func(data []byte) []byte {
		return referenceRe.ReplaceAllFunc(data, func(m []byte) []byte {
			lead := 0
			if bytes.ContainsAny(m[:1], "\"'(=\t\n\f\r ") {
				lead = 1
			}

			ref := string(m[lead:])

			key, ok := resolveReference(dir, ref)
			if !ok {
				return m
			}

			to, ok := revisions[key]
			if !ok {
				return m
			}

			out := make([]byte, 0, len(m)+len(to))
			out = append(out, m[:lead]...)
			out = append(out, ref[:len(ref)-len(path.Base(ref))]...)

			return append(out, path.Base(to)...)
		})
	}
}

// resolveReference returns the path ref points to, relative to the output directory.
// URLs with a scheme or a host, and paths leaving the output directory, do not resolve.
func resolveReference(dir, ref string) (string, bool) {
	if strings.Contains(ref, ":") || strings.HasPrefix(ref, "//") {
		return "", false
	}

	var p string
	if strings.HasPrefix(ref, "/") {
		p = path.Clean(strings.TrimPrefix(ref, "/"))
	} else {
		p = path.Join(dir, ref)
	}

	if p == "." || p == ".." || strings.HasPrefix(p, "../") {
		return "", false
	}

	return p, true
}
