package tasks_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-assetpipe/internal/tasks"
)

func TestCleanDist(t *testing.T) {
	t.Parallel()

	cfg := newProject(t)
	writeFiles(t, cfg.Root, map[string]string{
		".tmp/index.html":        "",
		"dist/index.html":        "",
		"dist/scripts/a1.app.js": "",
		"dist/.git/HEAD":         "",
	})

	require.NoError(t, tasks.Clean(testContext(t), cfg, cfg.Targets.Dist.Clean))

	assert.NoDirExists(t, filepath.Join(cfg.Root, ".tmp"))
	assert.NoFileExists(t, filepath.Join(cfg.Root, "dist", "index.html"))
	assert.NoDirExists(t, filepath.Join(cfg.Root, "dist", "scripts"))
	assert.FileExists(t, filepath.Join(cfg.Root, "dist", ".gitkeep"))
	assert.FileExists(t, filepath.Join(cfg.Root, "dist", ".git", "HEAD"))
	assert.FileExists(t, filepath.Join(cfg.Root, "app", "index.html"))
}

func TestCleanDevKeepsDist(t *testing.T) {
	t.Parallel()

	cfg := newProject(t)
	writeFiles(t, cfg.Root, map[string]string{
		".tmp/styles/app.css": "",
		"dist/index.html":     "",
	})

	require.NoError(t, tasks.Clean(testContext(t), cfg, cfg.Targets.Dev.Clean))

	assert.NoDirExists(t, filepath.Join(cfg.Root, ".tmp"))
	assert.FileExists(t, filepath.Join(cfg.Root, "dist", "index.html"))
}

func TestCleanNothingToRemove(t *testing.T) {
	t.Parallel()

	cfg := newProject(t)

	require.NoError(t, tasks.Clean(testContext(t), cfg, cfg.Targets.Dev.Clean))

	_, err := os.Stat(filepath.Join(cfg.Root, "app"))
	require.NoError(t, err)
}
