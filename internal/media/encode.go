package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
)

// RawEncodeOptions describes a raw RGBA to H.264 encode. Every frame
// written must match Width x Height; each occupies exactly 1/FPS
// seconds of output.
type RawEncodeOptions struct {
	Width      int
	Height     int
	FPS        int
	OutputPath string
}

// EncodeStream accepts timeline frames one at a time. WriteFrame
// blocks while the encoder catches up, so a slow encode throttles the
// producer instead of buffering frames in memory. Close flushes and
// waits for the encoder to finish.
type EncodeStream interface {
	WriteFrame(img image.Image) error
	Close() error
}

func (e *Executor) StartRawEncode(ctx context.Context, opts RawEncodeOptions) (EncodeStream, error) {
	if e.ffmpegPath == "" {
		return nil, ErrFFmpegNotFound
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", opts.Width, opts.Height)
	}
	if opts.FPS < 1 {
		return nil, fmt.Errorf("invalid fps %d", opts.FPS)
	}

	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"-framerate", strconv.Itoa(opts.FPS),
		"-i", "-",
		// yuv420p requires even dimensions; photos can be odd-sized.
		"-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2",
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		opts.OutputPath,
	}

	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)

	var stderrBuf bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}
	cmd.Stdout = io.Discard

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	e.logger.Debug("raw encode started",
		"size", fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"fps", opts.FPS,
		"output", opts.OutputPath)

	return &rawEncodeStream{
		cmd:    cmd,
		stdin:  stdin,
		stderr: &stderrBuf,
		width:  opts.Width,
		height: opts.Height,
	}, nil
}

type rawEncodeStream struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *bytes.Buffer
	width  int
	height int
	closed bool
}

func (s *rawEncodeStream) WriteFrame(img image.Image) error {
	bounds := img.Bounds()
	if bounds.Dx() != s.width || bounds.Dy() != s.height {
		return fmt.Errorf("frame is %dx%d, encode expects %dx%d",
			bounds.Dx(), bounds.Dy(), s.width, s.height)
	}

	if _, err := s.stdin.Write(toRGBA(img).Pix); err != nil {
		return fmt.Errorf("write frame: %w: %s", err, truncate(s.stderr.String(), 512))
	}
	return nil
}

func (s *rawEncodeStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	s.stdin.Close()
	if err := s.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg encode failed: %w: %s", err, truncate(s.stderr.String(), 512))
	}
	return nil
}
