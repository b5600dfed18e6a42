package tasks

import (
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
)

// Expand returns the slash separated paths under root matching patterns, sorted.
// Patterns starting with "!" remove matching paths from the result. Patterns support
// "**" and "{a,b}" alternatives. Dot files match like any other file.
func Expand(root string, patterns []string, filesOnly bool) ([]string, error) {
	fsys := os.DirFS(root)

	var include, exclude []string

	for _, pattern := range patterns {
		if neg, ok := strings.CutPrefix(pattern, "!"); ok {
			exclude = append(exclude, path.Clean(neg))

			continue
		}

		include = append(include, path.Clean(pattern))
	}

	seen := map[string]struct{}{}

	for _, pattern := range include {
		if !doublestar.ValidatePattern(pattern) {
			return nil, errors.Errorf("invalid glob %q", pattern)
		}

		opts := []doublestar.GlobOption{}
		if filesOnly {
			opts = append(opts, doublestar.WithFilesOnly())
		}

		matches, err := doublestar.Glob(fsys, pattern, opts...)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to expand %q", pattern)
		}

		for _, match := range matches {
			if excluded(match, exclude) {
				continue
			}

			seen[match] = struct{}{}
		}
	}

	res := make([]string, 0, len(seen))
	for match := range seen {
		res = append(res, match)
	}

	sort.Strings(res)

	return res, nil
}

func excluded(name string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}

	return false
}

// Match reports whether the slash separated name matches one of patterns.
func Match(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(path.Clean(pattern), name); ok {
			return true
		}
	}

	return false
}

// isNotExist unwraps err before checking for fs.ErrNotExist.
func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
