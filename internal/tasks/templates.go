package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/aymerick/raymond"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/askiada/go-assetpipe/internal/config"
	"github.com/askiada/go-assetpipe/internal/telemetry"
)

const readConcurrency = 8

type template struct {
	name   string
	source string
}

// CompileTemplates bundles every Handlebars template into a single script registering them
// on Ember.TEMPLATES. Templates are checked for syntax errors and emitted sorted by name.
func CompileTemplates(ctx context.Context, cfg config.Config) error {
	files, err := Expand(cfg.Root, cfg.Templates.Src, true)
	if err != nil {
		return err
	}

	templates := make([]template, len(files))

	errGrp, gCtx := errgroup.WithContext(ctx)
	errGrp.SetLimit(readConcurrency)

	for i, file := range files {
		errGrp.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}

			data, err := os.ReadFile(cfg.Path(file))
			if err != nil {
				return errors.Wrapf(err, "unable to read %s", file)
			}

			_, err = raymond.Parse(string(data))
			if err != nil {
				return errors.Wrapf(err, "invalid template %s", file)
			}

			templates[i] = template{name: TemplateName(cfg.Templates.BasePath, file), source: string(data)}

			return nil
		})
	}

	err = errGrp.Wait()
	if err != nil {
		return err
	}

	sort.Slice(templates, func(i, j int) bool {
		return templates[i].name < templates[j].name
	})

	out, err := renderTemplates(templates)
	if err != nil {
		return err
	}

	err = writeFile(cfg.Path(cfg.Templates.Dest), out)
	if err != nil {
		return err
	}

	telemetry.FromContext(ctx).Info("templates compiled", "templates", len(templates), "dest", cfg.Templates.Dest)

	return nil
}

// TemplateName is the path of file relative to basePath, without extension.
func TemplateName(basePath, file string) string {
	name := strings.TrimPrefix(file, strings.TrimSuffix(basePath, "/")+"/")

	return strings.TrimSuffix(name, path.Ext(name))
}

func renderTemplates(templates []template) ([]byte, error) {
	buf := &bytes.Buffer{}

	for _, tpl := range templates {
		name, err := jsString(tpl.name)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to encode template name %s", tpl.name)
		}

		source, err := jsString(tpl.source)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to encode template %s", tpl.name)
		}

		buf.WriteString("Ember.TEMPLATES[")
		buf.Write(name)
		buf.WriteString("] = Ember.Handlebars.compile(")
		buf.Write(source)
		buf.WriteString(");\n")
	}

	return buf.Bytes(), nil
}

// jsString quotes s as a JavaScript string literal, leaving HTML characters readable.
func jsString(s string) ([]byte, error) {
	buf := &bytes.Buffer{}

	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)

	err := enc.Encode(s)
	if err != nil {
		return nil, err
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
