package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CopyVideo places a rendered movie into dir as "<title>.mp4" with the
// title sanitized, uniquifying with " (n)" rather than clobbering files
// already there. It returns the destination path.
func CopyVideo(srcPath, dir, title string) (string, error) {
	if err := ValidateOutputDir(dir); err != nil {
		return "", err
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("open rendered video: %w", err)
	}
	defer src.Close()

	dest, err := reserveDestination(dir, SafeFileName(title))
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(dest, src); err != nil {
		dest.Close()
		os.Remove(dest.Name())
		return "", fmt.Errorf("copy video: %w", err)
	}
	if err := dest.Close(); err != nil {
		os.Remove(dest.Name())
		return "", fmt.Errorf("finish copy: %w", err)
	}
	return dest.Name(), nil
}

// reserveDestination claims "<stem>.mp4", falling back to
// "<stem> (2).mp4" and so on. O_EXCL keeps the claim race-free.
func reserveDestination(dir, stem string) (*os.File, error) {
	for n := 1; n <= 100; n++ {
		name := stem + ".mp4"
		if n > 1 {
			name = fmt.Sprintf("%s (%d).mp4", stem, n)
		}
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create destination: %w", err)
		}
	}
	return nil, fmt.Errorf("no free destination name for %q in %s", stem, dir)
}
