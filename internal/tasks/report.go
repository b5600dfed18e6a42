package tasks

import (
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// FileSize is a built file and its size.
type FileSize struct {
	Path string
	Size int64
}

// Human returns the size in human readable form, such as "12 kB".
func (f FileSize) Human() string {
	return humanize.Bytes(uint64(f.Size)) //nolint:gosec
}

// Sizes lists the files under dir with their sizes, sorted by path.
func Sizes(dir string) ([]FileSize, int64, error) {
	var (
		res   []FileSize
		total int64
	)

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}

		res = append(res, FileSize{Path: filepath.ToSlash(rel), Size: info.Size()})
		total += info.Size()

		return nil
	})
	if err != nil {
		return nil, 0, errors.Wrapf(err, "unable to list %s", dir)
	}

	sort.Slice(res, func(i, j int) bool {
		return res[i].Path < res[j].Path
	})

	return res, total, nil
}
