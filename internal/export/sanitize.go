// Package export copies finished renders out of the managed movie
// library into user-chosen folders.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

const maxStemRunes = 80

var (
	ErrDirRequired  = errors.New("output directory is required")
	ErrDirTraversal = errors.New("output directory cannot contain path traversal")
	ErrDirUnclean   = errors.New("output directory must be a clean path")
	ErrDirMissing   = errors.New("output directory does not exist")
	ErrNotDirectory = errors.New("output path is not a directory")
)

// SafeFileName reduces a movie title to a filename stem. Control runes
// drop, runes outside letters, digits and a small punctuation set become
// underscores, leading and trailing spaces and dots are trimmed, and the
// stem is capped. A title with nothing usable left becomes "movie".
func SafeFileName(title string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsControl(r):
			return -1
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return r
		}
		switch r {
		case ' ', '-', '_', '.', ',', '(', ')':
			return r
		}
		return '_'
	}, title)

	stem := strings.Trim(mapped, " .")
	if runes := []rune(stem); len(runes) > maxStemRunes {
		stem = strings.Trim(string(runes[:maxStemRunes]), " .")
	}
	if stem == "" {
		return "movie"
	}
	return stem
}

// ValidateOutputDir rejects destinations a copy must not touch: empty,
// traversing, unclean, absent, or not a directory.
func ValidateOutputDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return ErrDirRequired
	}
	for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
		if part == ".." {
			return ErrDirTraversal
		}
	}
	if filepath.Clean(dir) != dir {
		return ErrDirUnclean
	}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrDirMissing
		}
		return fmt.Errorf("stat output directory: %w", err)
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}
	return nil
}
