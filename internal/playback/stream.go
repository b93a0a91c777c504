package playback

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
)

// Streamer serves stored media files over HTTP with byte-range support
// so the web player can seek exported videos and scrub audio.
type Streamer struct {
	logger *slog.Logger
}

func NewStreamer(logger *slog.Logger) *Streamer {
	return &Streamer{logger: logger}
}

// ServeFile streams path. Absent or syntactically broken Range headers
// get the whole file with 200; a valid in-bounds range gets 206; an
// out-of-bounds range gets 416. Missing files answer 404.
func (s *Streamer) ServeFile(w http.ResponseWriter, r *http.Request, path string) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "file not found", http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", filepath.Base(path), err)
	}
	size := stat.Size()

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentType)

	br, ranged, err := ResolveRange(r.Header.Get("Range"), size)
	switch {
	case errors.Is(err, ErrRangeUnsatisfiable):
		w.Header().Set("Content-Range", "bytes */"+strconv.FormatInt(size, 10))
		http.Error(w, "range not satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	case errors.Is(err, ErrRangeSyntax):
		ranged = false
	case err != nil:
		return err
	}

	if !ranged {
		return s.writeFull(w, file, size)
	}
	return s.writePartial(w, file, br, size)
}

func (s *Streamer) writeFull(w http.ResponseWriter, file *os.File, size int64) error {
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, file); err != nil {
		s.logger.Debug("stream interrupted", "error", err)
	}
	return nil
}

func (s *Streamer) writePartial(w http.ResponseWriter, file *os.File, br ByteRange, size int64) error {
	if _, err := file.Seek(br.Start, io.SeekStart); err != nil {
		return fmt.Errorf("seek to %d: %w", br.Start, err)
	}
	w.Header().Set("Content-Length", strconv.FormatInt(br.Length, 10))
	w.Header().Set("Content-Range", br.ContentRange(size))
	w.WriteHeader(http.StatusPartialContent)
	if _, err := io.CopyN(w, file, br.Length); err != nil {
		s.logger.Debug("stream interrupted", "error", err)
	}
	return nil
}
