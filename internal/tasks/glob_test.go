package tasks_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-assetpipe/internal/tasks"
)

func TestExpand(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"dist/index.html":          "",
		"dist/.gitignore":          "",
		"dist/.git/HEAD":           "",
		"dist/scripts/app.js":      "",
		"app/styles/app.sass":      "",
		"app/styles/_base.scss":    "",
		"app/styles/vendor.css":    "",
		"app/styles/nested/x.sass": "",
	})

	tests := map[string]struct {
		patterns  []string
		filesOnly bool
		want      []string
	}{
		"alternatives and double star": {
			patterns:  []string{"app/styles/**/*.{sass,scss}"},
			filesOnly: true,
			want:      []string{"app/styles/_base.scss", "app/styles/app.sass", "app/styles/nested/x.sass"},
		},
		"negation keeps git files": {
			patterns: []string{"dist/*", "!dist/.git*"},
			want:     []string{"dist/index.html", "dist/scripts"},
		},
		"files only skips directories": {
			patterns:  []string{"dist/*"},
			filesOnly: true,
			want:      []string{"dist/.gitignore", "dist/index.html"},
		},
		"no match": {
			patterns: []string{".tmp"},
			want:     []string{},
		},
		"duplicates are merged": {
			patterns:  []string{"app/styles/app.sass", "app/styles/*.sass"},
			filesOnly: true,
			want:      []string{"app/styles/app.sass"},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := tasks.Expand(root, tt.patterns, tt.filesOnly)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpandInvalidPattern(t *testing.T) {
	t.Parallel()

	_, err := tasks.Expand(t.TempDir(), []string{"app/[styles"}, false)
	require.Error(t, err)
}

func TestMatch(t *testing.T) {
	t.Parallel()

	patterns := []string{"app/styles/**/*.{sass,scss}"}

	assert.True(t, tasks.Match(patterns, "app/styles/app.sass"))
	assert.True(t, tasks.Match(patterns, "app/styles/partials/_grid.scss"))
	assert.False(t, tasks.Match(patterns, "app/styles/vendor.css"))
	assert.False(t, tasks.Match(patterns, "app/index.html"))
}
