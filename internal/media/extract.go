package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ExtractFrames samples a video into numbered PNG files at the given
// rate and returns their paths in frame order.
func (e *Executor) ExtractFrames(ctx context.Context, videoPath, outDir string, fps int) ([]string, error) {
	if fps < 1 {
		fps = 1
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create extraction dir: %w", err)
	}

	pattern := filepath.Join(outDir, "extract_%05d.png")
	err := e.Run(ctx,
		"-y",
		"-i", videoPath,
		"-vf", "fps="+strconv.Itoa(fps),
		pattern,
	)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("cannot read extraction dir: %w", err)
	}

	// ReadDir sorts by name; the zero-padded counter keeps that in
	// frame order.
	var paths []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "extract_") || !strings.HasSuffix(name, ".png") {
			continue
		}
		paths = append(paths, filepath.Join(outDir, name))
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("no frames extracted from %s", filepath.Base(videoPath))
	}
	return paths, nil
}
