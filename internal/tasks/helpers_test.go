package tasks_test

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/askiada/go-assetpipe/internal/config"
	"github.com/askiada/go-assetpipe/internal/telemetry"
)

const indexHTML = `<!doctype html>
<html>
<head>
  <!-- build:css styles/main.css -->
  <link rel="stylesheet" href="styles/base.css">
  <!-- endbuild -->
</head>
<body>
  <!-- @if dist -->
  <p>production</p>
  <!-- @endif -->
  <!-- @if !dist -->
  <p>development</p>
  <!-- @endif -->
  <!-- build:js scripts/app.js -->
  <script src="scripts/main.js"></script>
  <script src="scripts/app/compiled_templates.js"></script>
  <!-- endbuild -->
</body>
</html>
`

// newProject lays out a small application under a temporary root.
func newProject(t *testing.T) config.Config {
	t.Helper()

	root := t.TempDir()

	writeFiles(t, root, map[string]string{
		"app/index.html":                            indexHTML,
		"app/scripts/main.js":                       "var greeting = \"hello\";\nfunction greet(name) {\n  return greeting + \" \" + name;\n}\n",
		"app/styles/base.css":                       "body {\n  margin: 0;\n  background: url(../images/logo.png);\n}\n",
		"app/images/logo.png":                       "not really a png",
		"app/scripts/app/templates/application.hbs": "<h1>{{title}}</h1>\n{{outlet}}\n",
		"app/scripts/app/templates/posts/index.hbs": "{{#each posts}}<li>{{title}}</li>{{/each}}\n",
		"app/scripts/app/templates/posts/_item.hbs": "<span>{{name}}</span>\n",
		"app/styles/app.sass":                       "body\n  margin: 0\n",
		"dist/.gitkeep":                             "",
	})

	return config.Default(root)
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}
}

func readFile(t *testing.T, root, name string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(name)))
	require.NoError(t, err)

	return string(data)
}

// tree returns every file under dir with its content, keyed by slash separated path.
func tree(t *testing.T, dir string) map[string]string {
	t.Helper()

	res := map[string]string{}

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}

		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}

		res[filepath.ToSlash(rel)] = string(data)

		return nil
	})
	require.NoError(t, err)

	return res
}

func findFile(t *testing.T, files map[string]string, prefix, suffix string) string {
	t.Helper()

	for name := range files {
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, suffix) {
			return name
		}
	}

	require.Failf(t, "file not found", "no file %s*%s", prefix, suffix)

	return ""
}

func testContext(t *testing.T) context.Context {
	t.Helper()

	return telemetry.WithLogger(t.Context(), telemetry.Discard())
}

type runnerCall struct {
	dir  string
	name string
	args []string
}

// fakeRunner records the commands it is asked to run and writes outputs on their behalf.
type fakeRunner struct {
	mu    sync.Mutex
	calls []runnerCall
	err   error
	// writes maps a file, relative to dir, to the content written when a command runs.
	writes map[string]string
}

func (f *fakeRunner) Run(_ context.Context, dir, name string, args ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, runnerCall{dir: dir, name: name, args: args})

	if f.err != nil {
		return f.err
	}

	for file, content := range f.writes {
		p := filepath.Join(dir, filepath.FromSlash(file))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return err
		}

		if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
			return err
		}
	}

	return nil
}
