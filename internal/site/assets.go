package site

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
)

// skipNames are never copied into the output tree.
var skipNames = map[string]bool{
	"node_modules":             true,
	"dist":                     true,
	"service-account-key.json": true,
}

func skipped(name string) bool {
	return skipNames[name] || strings.HasPrefix(name, ".")
}

// copyTree copies a file or directory from src to dst. It returns the number
// of files and bytes copied. A missing src yields an os.ErrNotExist error.
func copyTree(src, dst string) (int, int64, error) {
	info, err := os.Stat(src)
	if err != nil {
		return 0, 0, err
	}

	if !info.IsDir() {
		n, err := copyFile(src, dst)
		if err != nil {
			return 0, 0, err
		}

		return 1, n, nil
	}

	var (
		files int
		size  int64
	)

	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if path != src && skipped(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path for %s: %w", path, err)
		}

		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}

		n, err := copyFile(path, target)
		if err != nil {
			return err
		}

		files++
		size += n

		return nil
	})

	return files, size, err
}

func copyFile(src, dst string) (int64, error) {
	f, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("failed to open source file %s: %w", src, err)
	}

	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create destination directory %s: %w", filepath.Dir(dst), err)
	}

	if err := atomic.WriteFile(dst, f); err != nil {
		return 0, fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}

	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return 0, err
	}

	return info.Size(), nil
}
