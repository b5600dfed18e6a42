package tasks_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-assetpipe/internal/tasks"
)

// Not parallel: LoadEnv changes the process environment.
func TestLoadEnv(t *testing.T) {
	cfg := newProject(t)
	writeFiles(t, cfg.Root, map[string]string{
		".env": "ASSETPIPE_TEST_API_URL=https://api.example.com\nASSETPIPE_TEST_KEPT=from-file\n",
	})

	t.Setenv("ASSETPIPE_TEST_KEPT", "from-env")
	t.Cleanup(func() {
		os.Unsetenv("ASSETPIPE_TEST_API_URL")
	})

	require.NoError(t, tasks.LoadEnv(testContext(t), cfg))

	assert.Equal(t, "https://api.example.com", os.Getenv("ASSETPIPE_TEST_API_URL"))
	assert.Equal(t, "from-env", os.Getenv("ASSETPIPE_TEST_KEPT"))
}

func TestLoadEnvMissingFile(t *testing.T) {
	t.Parallel()

	cfg := newProject(t)

	require.NoError(t, tasks.LoadEnv(testContext(t), cfg))
}

func TestLoadEnvMalformed(t *testing.T) {
	t.Parallel()

	cfg := newProject(t)
	cfg.EnvFile = "broken.env"
	writeFiles(t, cfg.Root, map[string]string{"broken.env": "KEY='unterminated\n"})

	require.Error(t, tasks.LoadEnv(testContext(t), cfg))
}
