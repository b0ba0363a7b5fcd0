package util

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CopyFile copies the file at src to dst, byte for byte.
//
// The parent of dst is created if needed. An existing dst is truncated, so a
// shorter source never leaves stale trailing bytes behind. dst takes the
// permission bits of src.
func CopyFile(src, dst string) error {
	var err error
	src, err = filepath.Abs(src)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	dst, err = filepath.Abs(dst)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	srcf, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w", err)
	}
	defer srcf.Close()
	info, err := srcf.Stat()
	if err != nil {
		return fmt.Errorf("stat %q: %w", src, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%q: is a directory", src)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("preparing %q: %w", filepath.Dir(dst), err)
	}
	dstf, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("creating %q: %w", dst, err)
	}
	if _, err := io.Copy(dstf, srcf); err != nil {
		dstf.Close()
		return fmt.Errorf("copying data: %w", err)
	}
	if err := dstf.Close(); err != nil {
		return fmt.Errorf("closing %q: %w", dst, err)
	}
	// OpenFile only applies the mode on create.
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return fmt.Errorf("setting mode on %q: %w", dst, err)
	}
	return nil
}

// WriteFile writes data to path, creating parent directories as needed.
// Any existing file is fully overwritten.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("preparing %q: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("writing %q: %w", path, err)
	}
	return nil
}

// IsFile reports whether path exists and is a regular file.
func IsFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}
