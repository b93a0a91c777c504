// Package media wraps the ffmpeg and ffprobe binaries: probing files,
// streaming raw frames into an encoder, extracting frames from videos,
// and reporting what the installed tools can do.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"io"
	"log/slog"
	"os/exec"
	"time"
)

const maxStderrBytes = 8 * 1024 // tail of stderr kept for diagnostics

var (
	ErrFFmpegNotFound  = errors.New("ffmpeg binary not found")
	ErrFFprobeNotFound = errors.New("ffprobe binary not found")
)

// FFmpeg is the execution contract the render pipeline and import
// paths program against.
type FFmpeg interface {
	// Run executes ffmpeg with the given arguments and waits for it.
	Run(ctx context.Context, args ...string) error

	// StartRawEncode launches an encode that consumes raw RGBA frames
	// on stdin, one WriteFrame call per timeline frame.
	StartRawEncode(ctx context.Context, opts RawEncodeOptions) (EncodeStream, error)

	// ProbeMedia returns stream and duration metadata for a file.
	ProbeMedia(ctx context.Context, path string) (*ProbeResult, error)

	// ExtractFrames decodes a video into numbered PNG frames at the
	// given rate and returns their paths in order.
	ExtractFrames(ctx context.Context, videoPath, outDir string, fps int) ([]string, error)

	// ProbeCapabilities reports what the installed binaries support.
	ProbeCapabilities(ctx context.Context) (*Capabilities, error)
}

// Executor is the production FFmpeg implementation. A missing binary
// does not fail construction; the studio still runs for editing and
// playback, and every encode call reports the absence instead.
type Executor struct {
	logger      *slog.Logger
	ffmpegPath  string
	ffprobePath string
}

func NewExecutor(ffmpegPath, ffprobePath string, logger *slog.Logger) *Executor {
	e := &Executor{
		logger:      logger,
		ffmpegPath:  resolveBinary(ffmpegPath, "ffmpeg"),
		ffprobePath: resolveBinary(ffprobePath, "ffprobe"),
	}
	if e.ffmpegPath == "" {
		logger.Warn("ffmpeg not found; export and video import are disabled", "configured", ffmpegPath)
	}
	if e.ffprobePath == "" {
		logger.Warn("ffprobe not found; media probing is disabled", "configured", ffprobePath)
	}
	return e
}

// resolveBinary resolves a configured path, or falls back to searching
// PATH for the default name. Empty means unavailable.
func resolveBinary(preferred, name string) string {
	if preferred != "" {
		if p, err := exec.LookPath(preferred); err == nil {
			return p
		}
		return ""
	}
	if p, err := exec.LookPath(name); err == nil {
		return p
	}
	return ""
}

// Available reports whether both binaries were found.
func (e *Executor) Available() bool {
	return e.ffmpegPath != "" && e.ffprobePath != ""
}

func (e *Executor) Run(ctx context.Context, args ...string) error {
	if e.ffmpegPath == "" {
		return ErrFFmpegNotFound
	}
	if len(args) == 0 {
		return fmt.Errorf("no arguments provided")
	}

	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)

	var stderrBuf bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}
	cmd.Stdout = io.Discard

	start := time.Now()
	e.logger.Debug("executing ffmpeg", "args", args)

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg failed: %w: %s", err, truncate(stderrBuf.String(), 512))
	}

	e.logger.Debug("ffmpeg completed", "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (e *Executor) runProbe(ctx context.Context, args ...string) ([]byte, error) {
	if e.ffprobePath == "" {
		return nil, ErrFFprobeNotFound
	}

	cmd := exec.CommandContext(ctx, e.ffprobePath, args...)

	var stderrBuf bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffprobe failed: %w: %s", err, truncate(stderrBuf.String(), 512))
	}
	return out, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		lw.w.Reset()
		lw.w.Write(b[len(b)-lw.limit:])
	}
	return n, nil
}

// toRGBA returns img as a zero-origin, tightly packed RGBA image,
// converting only when the layout differs from what rawvideo expects.
func toRGBA(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok &&
		rgba.Stride == bounds.Dx()*4 && bounds.Min.X == 0 && bounds.Min.Y == 0 {
		return rgba
	}
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	return dst
}
