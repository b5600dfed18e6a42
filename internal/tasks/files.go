package tasks

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// writeFile writes data to filename, creating its parent directories.
func writeFile(filename string, data []byte) error {
	err := os.MkdirAll(filepath.Dir(filename), 0o755)
	if err != nil {
		return errors.Wrapf(err, "unable to create directory for %s", filename)
	}

	err = os.WriteFile(filename, data, 0o644) //nolint:gosec
	if err != nil {
		return errors.Wrapf(err, "unable to write %s", filename)
	}

	return nil
}

// copyFile copies src to dst, creating the parent directories of dst.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "unable to open %s", src)
	}
	defer in.Close()

	err = os.MkdirAll(filepath.Dir(dst), 0o755)
	if err != nil {
		return errors.Wrapf(err, "unable to create directory for %s", dst)
	}

	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrapf(err, "unable to create %s", dst)
	}

	_, err = io.Copy(out, in)
	if err != nil {
		out.Close()

		return errors.Wrapf(err, "unable to copy %s to %s", src, dst)
	}

	return errors.Wrapf(out.Close(), "unable to close %s", dst)
}
