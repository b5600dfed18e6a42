package tasks_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-assetpipe/internal/tasks"
)

func TestPreprocessHTML(t *testing.T) {
	t.Parallel()

	vars := map[string]string{
		"dist":     "true",
		"API_URL":  "https://api.example.com",
		"NODE_ENV": "production",
	}

	tests := map[string]struct {
		src  string
		want string
	}{
		"no directive": {
			src:  "<p>hi</p>",
			want: "<p>hi</p>",
		},
		"if true": {
			src:  "a<!-- @if dist -->b<!-- @endif -->c",
			want: "abc",
		},
		"if false": {
			src:  "a<!-- @if !dist -->b<!-- @endif -->c",
			want: "ac",
		},
		"undefined is false": {
			src:  "a<!-- @if DEBUG -->b<!-- @endif -->c",
			want: "ac",
		},
		"equality": {
			src:  `<!-- @if NODE_ENV == 'production' -->prod<!-- @endif --><!-- @if NODE_ENV != "production" -->dev<!-- @endif -->`,
			want: "prod",
		},
		"and or parentheses": {
			src:  "<!-- @if (DEBUG || dist) && API_URL -->yes<!-- @endif -->",
			want: "yes",
		},
		"ifdef and ifndef": {
			src:  "<!-- @ifdef API_URL -->x<!-- @endif --><!-- @ifndef API_URL -->y<!-- @endif -->",
			want: "x",
		},
		"echo": {
			src:  `<script>window.API = "<!-- @echo API_URL -->";</script>`,
			want: `<script>window.API = "https://api.example.com";</script>`,
		},
		"echo inside false block": {
			src:  "<!-- @if DEBUG --><!-- @echo API_URL --><!-- @endif -->",
			want: "",
		},
		"nested": {
			src:  "<!-- @if dist -->a<!-- @if DEBUG -->b<!-- @endif -->c<!-- @endif -->",
			want: "ac",
		},
		"exclude": {
			src:  "a<!-- @exclude -->livereload<!-- @endexclude -->b",
			want: "ab",
		},
		"other comments are kept": {
			src:  "<!-- build:js scripts/app.js --><!-- endbuild -->",
			want: "<!-- build:js scripts/app.js --><!-- endbuild -->",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := tasks.PreprocessHTML(tt.src, vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPreprocessHTMLErrors(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"unclosed if":         "<!-- @if dist -->a",
		"endif without if":    "a<!-- @endif -->",
		"mismatched closing":  "<!-- @exclude -->a<!-- @endif -->",
		"empty condition":     "<!-- @if -->a<!-- @endif -->",
		"dangling operator":   "<!-- @if dist && -->a<!-- @endif -->",
		"missing paren":       "<!-- @if (dist -->a<!-- @endif -->",
		"unterminated string": "<!-- @if dist == 'x -->a<!-- @endif -->",
	}

	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := tasks.PreprocessHTML(src, map[string]string{"dist": "true"})
			require.ErrorIs(t, err, tasks.ErrPreprocess)
		})
	}
}

func TestPreprocess(t *testing.T) {
	t.Parallel()

	cfg := newProject(t)

	require.NoError(t, tasks.Preprocess(testContext(t), cfg, map[string]string{"dist": "false"}))

	out := readFile(t, cfg.Root, cfg.HTML.Dest)
	assert.Contains(t, out, "development")
	assert.NotContains(t, out, "production")
	assert.Contains(t, out, "<!-- build:js scripts/app.js -->")
}
