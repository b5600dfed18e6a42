// Package config holds the project layout and the per-target options of every task.
//
// A Config is built once from the built-in defaults, optionally overlaid with a YAML file,
// and then passed by value. Tasks never mutate it: per-target settings are resolved
// through For, which returns an independent copy.
package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/askiada/go-assetpipe/pkg/pipeline/model"
)

// DefaultFile is the configuration file looked up in the project root.
const DefaultFile = "assetpipe.yaml"

var ErrInvalidConfig = errors.New("invalid config")

// Config describes where sources live, where outputs go and how every task behaves.
// Paths are relative to Root.
type Config struct {
	Root string `yaml:"-"`

	AppDir   string `yaml:"app_dir"`
	TmpDir   string `yaml:"tmp_dir"`
	DistDir  string `yaml:"dist_dir"`
	EnvFile  string `yaml:"env_file"`
	Manifest string `yaml:"manifest"`

	Templates Templates   `yaml:"templates"`
	Styles    Styles      `yaml:"styles"`
	HTML      HTML        `yaml:"html"`
	Bundles   Bundles     `yaml:"bundles"`
	Copy      []CopyRule  `yaml:"copy"`
	Rev       Rev         `yaml:"rev"`
	Usemin    Usemin      `yaml:"usemin"`
	Watch     []WatchRule `yaml:"watch"`
	Server    Server      `yaml:"server"`
	Targets   Targets     `yaml:"targets"`
}

// Templates configures the template compilation task.
type Templates struct {
	Src []string `yaml:"src"`
	// BasePath is stripped from template paths to build template names.
	BasePath string `yaml:"base_path"`
	Dest     string `yaml:"dest"`
}

// Command is an external executable and its leading arguments.
type Command struct {
	Name string   `yaml:"name"`
	Args []string `yaml:"args"`
}

// Styles configures Sass compilation and autoprefixing.
type Styles struct {
	Src          string   `yaml:"src"`
	Dest         string   `yaml:"dest"`
	IncludePaths []string `yaml:"include_paths"`
	SourceMap    bool     `yaml:"source_map"`
	Sass         Command  `yaml:"sass"`
	Autoprefixer Command  `yaml:"autoprefixer"`
}

// HTML configures the preprocessing of the entry point.
type HTML struct {
	Src  string `yaml:"src"`
	Dest string `yaml:"dest"`
}

// Bundles configures concatenation of the bundles listed in the manifest.
type Bundles struct {
	// SearchPaths are tried in order to resolve bundle members.
	SearchPaths []string `yaml:"search_paths"`
	ConcatDir   string   `yaml:"concat_dir"`
}

// CopyRule copies the files matching Src, relative to Cwd, into Dest.
type CopyRule struct {
	Cwd  string   `yaml:"cwd"`
	Dest string   `yaml:"dest"`
	Src  []string `yaml:"src"`
}

// Rev configures content hashing of built assets.
type Rev struct {
	Src        []string `yaml:"src"`
	HashLength int      `yaml:"hash_length"`
}

// Usemin lists the files whose asset references are rewritten.
type Usemin struct {
	HTML []string `yaml:"html"`
	CSS  []string `yaml:"css"`
}

// WatchRule re-runs Tasks when a file matching Files changes.
type WatchRule struct {
	Name  string   `yaml:"name"`
	Files []string `yaml:"files"`
	Tasks []string `yaml:"tasks"`
}

// Server configures the static asset server.
type Server struct {
	Addr    string `yaml:"addr"`
	Metrics bool   `yaml:"metrics"`
}

// Targets holds the options of each target.
type Targets struct {
	Dev  TargetOptions `yaml:"dev"`
	Dist TargetOptions `yaml:"dist"`
}

// TargetOptions are the settings that differ between dev and dist.
type TargetOptions struct {
	// Clean lists the globs removed by clean. A leading "!" keeps matching paths.
	Clean       []string          `yaml:"clean"`
	OutputStyle string            `yaml:"output_style"`
	Context     map[string]string `yaml:"context"`
	ServeBase   []string          `yaml:"serve_base"`
	LoadEnv     bool              `yaml:"load_env"`
}

// Default returns the layout of a standard project rooted at root.
func Default(root string) Config {
	return Config{
		Root:     root,
		AppDir:   "app",
		TmpDir:   ".tmp",
		DistDir:  "dist",
		EnvFile:  ".env",
		Manifest: "bundles.yaml",
		Templates: Templates{
			Src:      []string{"app/scripts/app/templates/**/*.{hbs,hjs,handlebars}"},
			BasePath: "app/scripts/app/templates",
			Dest:     ".tmp/scripts/app/compiled_templates.js",
		},
		Styles: Styles{
			Src:          "app/styles/app.sass",
			Dest:         ".tmp/styles/app.css",
			IncludePaths: []string{"app/styles"},
			SourceMap:    true,
			Sass:         Command{Name: "sass"},
			Autoprefixer: Command{Name: "postcss", Args: []string{"--use", "autoprefixer", "--no-map"}},
		},
		HTML: HTML{
			Src:  "app/index.html",
			Dest: ".tmp/index.html",
		},
		Bundles: Bundles{
			SearchPaths: []string{".tmp", "app"},
			ConcatDir:   ".tmp/concat",
		},
		Copy: []CopyRule{
			{
				Cwd:  "app",
				Dest: "dist",
				Src: []string{
					"server.js",
					"fonts/**/*.{eot,svg,ttf,woff}",
					"images/**/*.{png,jpg,jpeg,gif,webp,svg}",
				},
			},
			{
				Cwd:  ".tmp",
				Dest: "dist",
				Src:  []string{"index.html"},
			},
		},
		Rev: Rev{
			Src: []string{
				"dist/scripts/**/*.js",
				"dist/styles/**/*.css",
				"dist/fonts/**/*.{eot,svg,ttf,woff}",
				"dist/images/**/*.{png,jpg,jpeg,gif,webp,svg}",
			},
			HashLength: 8,
		},
		Usemin: Usemin{
			HTML: []string{"dist/index.html"},
			CSS:  []string{"dist/styles/*.css"},
		},
		Watch: []WatchRule{
			{
				Name:  "templates",
				Files: []string{"app/scripts/app/templates/**/*.{hbs,hjs,handlebars}"},
				Tasks: []string{"templates:dev"},
			},
			{
				Name:  "styles",
				Files: []string{"app/styles/**/*.{sass,scss}"},
				Tasks: []string{"sass:dev", "autoprefixer:dev"},
			},
			{
				Name:  "html",
				Files: []string{"app/index.html"},
				Tasks: []string{"preprocess:dev"},
			},
		},
		Server: Server{
			Addr:    ":9000",
			Metrics: true,
		},
		Targets: Targets{
			Dev: TargetOptions{
				Clean:       []string{".tmp"},
				OutputStyle: "nested",
				Context:     map[string]string{"dist": "false"},
				ServeBase:   []string{".tmp", "app"},
				LoadEnv:     true,
			},
			Dist: TargetOptions{
				Clean:       []string{".tmp", "dist/*", "!dist/.git*"},
				OutputStyle: "compressed",
				Context:     map[string]string{"dist": "true"},
				ServeBase:   []string{"dist"},
			},
		},
	}
}

// Load reads the configuration file at path over the defaults.
// A missing file is only an error when required is true.
func Load(root, path string, required bool) (Config, error) {
	cfg := Default(root)

	if path == "" {
		path = DefaultFile
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return cfg, cfg.Validate()
		}

		return Config{}, errors.Wrapf(err, "unable to read config %s", path)
	}

	cfg, err = Decode(root, bytes.NewReader(data))
	if err != nil {
		return Config{}, errors.Wrapf(err, "unable to load config %s", path)
	}

	return cfg, nil
}

// Decode overlays the YAML document read from r on the defaults.
// Unknown keys are rejected.
func Decode(root string, r io.Reader) (Config, error) {
	cfg := Default(root)

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	err := dec.Decode(&cfg)
	if err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.Wrap(err, "unable to decode yaml")
	}

	cfg.Root = root

	err = cfg.Validate()
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

var outputStyles = map[string]struct{}{
	"nested":     {},
	"expanded":   {},
	"compact":    {},
	"compressed": {},
}

// Validate checks the settings every task relies on.
func (c Config) Validate() error {
	required := map[string]string{
		"app_dir":        c.AppDir,
		"tmp_dir":        c.TmpDir,
		"dist_dir":       c.DistDir,
		"manifest":       c.Manifest,
		"templates.dest": c.Templates.Dest,
		"styles.src":     c.Styles.Src,
		"styles.dest":    c.Styles.Dest,
		"styles.sass":    c.Styles.Sass.Name,
		"html.src":       c.HTML.Src,
		"html.dest":      c.HTML.Dest,
		"bundles.concat": c.Bundles.ConcatDir,
		"server.addr":    c.Server.Addr,
	}

	for key, value := range required {
		if value == "" {
			return errors.Wrapf(ErrInvalidConfig, "%s must be set", key)
		}
	}

	if c.Rev.HashLength < 4 || c.Rev.HashLength > 16 {
		return errors.Wrapf(ErrInvalidConfig, "rev.hash_length must be between 4 and 16, got %d", c.Rev.HashLength)
	}

	for name, opts := range map[model.Target]TargetOptions{model.TargetDev: c.Targets.Dev, model.TargetDist: c.Targets.Dist} {
		if _, ok := outputStyles[opts.OutputStyle]; !ok {
			return errors.Wrapf(ErrInvalidConfig, "targets.%s.output_style %q", name, opts.OutputStyle)
		}

		if len(opts.ServeBase) == 0 {
			return errors.Wrapf(ErrInvalidConfig, "targets.%s.serve_base must not be empty", name)
		}
	}

	for _, rule := range c.Watch {
		if len(rule.Files) == 0 || len(rule.Tasks) == 0 {
			return errors.Wrapf(ErrInvalidConfig, "watch rule %q needs files and tasks", rule.Name)
		}
	}

	return nil
}

// Path returns rel joined to the project root.
func (c Config) Path(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}

	return filepath.Join(c.Root, filepath.FromSlash(rel))
}

// WithAddr returns a copy of c serving on addr. An empty addr keeps the current one.
func (c Config) WithAddr(addr string) Config {
	if addr != "" {
		c.Server.Addr = addr
	}

	return c
}

// Target is the resolved, read-only view of the options of one target.
type Target struct {
	Target      model.Target
	Clean       []string
	OutputStyle string
	Context     map[string]string
	ServeBase   []string
	LoadEnv     bool
}

// For resolves the options of target. The result shares nothing with c.
func (c Config) For(target model.Target) (Target, error) {
	var opts TargetOptions

	switch target {
	case model.TargetDev:
		opts = c.Targets.Dev
	case model.TargetDist:
		opts = c.Targets.Dist
	default:
		return Target{}, errors.Wrapf(model.ErrUnknownTarget, "%q", target)
	}

	ctx := make(map[string]string, len(opts.Context))
	for k, v := range opts.Context {
		ctx[k] = v
	}

	return Target{
		Target:      target,
		Clean:       append([]string(nil), opts.Clean...),
		OutputStyle: opts.OutputStyle,
		Context:     ctx,
		ServeBase:   append([]string(nil), opts.ServeBase...),
		LoadEnv:     opts.LoadEnv,
	}, nil
}
