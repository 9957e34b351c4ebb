package fileutils

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// CoverImageExtensions contains the image extensions recognized for cover
// files, in lookup-priority order.
var CoverImageExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

// CoverExistsWithBaseName checks if any cover file exists with the given base
// name, regardless of image extension. This lets users provide custom covers
// (e.g. cover.png) that won't be overwritten even if extraction would produce
// a different format (e.g. cover.jpg).
//
// Returns the path to the existing cover file if found, or empty string if no
// cover exists.
func CoverExistsWithBaseName(dir, baseName string) string {
	for _, ext := range CoverImageExtensions {
		coverPath := filepath.Join(dir, baseName+ext)
		if _, err := os.Stat(coverPath); err == nil {
			return coverPath
		}
	}
	return ""
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// WriteFileAtomic writes data to path through a temp file in the same
// directory plus a rename, so concurrent readers never observe a partial
// write.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.WithStack(err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return errors.WithStack(err)
	}
	if err := tmp.Chmod(perm); err != nil {
		cleanup()
		return errors.WithStack(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.WithStack(err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.WithStack(err)
	}
	return nil
}
