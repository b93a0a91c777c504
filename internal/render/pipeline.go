// Package render turns a project's timeline into an H.264 video:
// synthetic title card, content frames, scrolling credits, and an
// optional audio mux from the project's attached track.
package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/frameloom/frameloom-studio/internal/credits"
	"github.com/frameloom/frameloom-studio/internal/media"
	"github.com/frameloom/frameloom-studio/internal/project"
	"github.com/frameloom/frameloom-studio/internal/timeline"
)

const (
	// decodeBatch bounds how many decoded frames sit in memory at
	// once; decodeWorkers bounds concurrent image decodes.
	decodeBatch   = 16
	decodeWorkers = 4
)

// FrameSource loads and decodes a stored frame image.
type FrameSource interface {
	LoadFrameImage(projectID, filename string) (image.Image, error)
}

// ProgressFunc reports appended frames out of the total timeline
// length. May be nil.
type ProgressFunc func(done, total int)

type Pipeline struct {
	ffmpeg media.FFmpeg
	frames FrameSource
	cards  *cardRenderer
	logger *slog.Logger
}

func NewPipeline(ffmpeg media.FFmpeg, frames FrameSource, logger *slog.Logger) (*Pipeline, error) {
	cards, err := newCardRenderer()
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		ffmpeg: ffmpeg,
		frames: frames,
		cards:  cards,
		logger: logger,
	}, nil
}

// Render encodes the full timeline to outputPath. The output size is
// taken from the first frame; every later frame must match it. Each
// appended frame occupies exactly 1/fps seconds.
func (p *Pipeline) Render(ctx context.Context, proj *project.Project, frames []*project.FrameAsset, outputPath string, progress ProgressFunc) error {
	if len(frames) == 0 {
		return ErrNoFrames
	}

	fps := project.ClampFPS(proj.FPS)
	titleCount := timeline.TitleFrameCount(proj)
	creditsCount := timeline.CreditsFrameCount(proj)
	total := titleCount + len(frames) + creditsCount

	first, err := p.frames.LoadFrameImage(proj.ID, frames[0].Filename)
	if err != nil {
		return fmt.Errorf("load first frame: %w", err)
	}
	width, height := first.Bounds().Dx(), first.Bounds().Dy()

	stream, err := p.ffmpeg.StartRawEncode(ctx, media.RawEncodeOptions{
		Width:      width,
		Height:     height,
		FPS:        fps,
		OutputPath: outputPath,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWritingFailed, err)
	}

	p.logger.Info("render started",
		"project_id", proj.ID,
		"frames", len(frames),
		"title_frames", titleCount,
		"credits_frames", creditsCount,
		"size", fmt.Sprintf("%dx%d", width, height),
		"fps", fps)

	done := 0
	report := func() {
		done++
		if progress != nil {
			progress(done, total)
		}
	}

	abort := func(err error) error {
		stream.Close()
		os.Remove(outputPath)
		return err
	}

	// Title card.
	if titleCount > 0 {
		card, err := p.cards.TitleCard(proj.TitleCard, width, height)
		if err != nil {
			return abort(fmt.Errorf("render title card: %w", err))
		}
		for i := 0; i < titleCount; i++ {
			if err := ctx.Err(); err != nil {
				return abort(err)
			}
			if err := stream.WriteFrame(card); err != nil {
				return abort(fmt.Errorf("%w: %v", ErrWritingFailed, err))
			}
			report()
		}
	}

	// Content frames, decoded in bounded batches ahead of the write.
	if err := p.writeContentFrames(ctx, proj, frames, first, width, height, stream, report); err != nil {
		return abort(err)
	}

	// Credits roll.
	if creditsCount > 0 {
		text, _ := credits.Build(proj)
		scroll, err := p.cards.NewCreditsScroll(text, width, height)
		if err != nil {
			return abort(fmt.Errorf("render credits: %w", err))
		}
		defer scroll.Close()

		for i := 0; i < creditsCount; i++ {
			if err := ctx.Err(); err != nil {
				return abort(err)
			}
			fraction := 1.0
			if creditsCount > 1 {
				fraction = float64(i) / float64(creditsCount-1)
			}
			if err := stream.WriteFrame(scroll.FrameAt(fraction)); err != nil {
				return abort(fmt.Errorf("%w: %v", ErrWritingFailed, err))
			}
			report()
		}
	}

	if err := stream.Close(); err != nil {
		os.Remove(outputPath)
		return fmt.Errorf("%w: %v", ErrWritingFailed, err)
	}

	p.logger.Info("render completed", "project_id", proj.ID, "output", outputPath)
	return nil
}

func (p *Pipeline) writeContentFrames(ctx context.Context, proj *project.Project, frames []*project.FrameAsset, first image.Image, width, height int, stream media.EncodeStream, report func()) error {
	write := func(f *project.FrameAsset, img image.Image) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		b := img.Bounds()
		if b.Dx() != width || b.Dy() != height {
			return fmt.Errorf("%w: %s is %dx%d, want %dx%d",
				ErrFrameSizeMismatch, f.Filename, b.Dx(), b.Dy(), width, height)
		}
		if err := stream.WriteFrame(img); err != nil {
			return fmt.Errorf("%w: %v", ErrWritingFailed, err)
		}
		report()
		return nil
	}

	if err := write(frames[0], first); err != nil {
		return err
	}

	rest := frames[1:]
	for start := 0; start < len(rest); start += decodeBatch {
		end := start + decodeBatch
		if end > len(rest) {
			end = len(rest)
		}
		batch := rest[start:end]

		images := make([]image.Image, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(decodeWorkers)
		for i, f := range batch {
			i, f := i, f
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				img, err := p.frames.LoadFrameImage(proj.ID, f.Filename)
				if err != nil {
					return fmt.Errorf("load frame %s: %w", f.Filename, err)
				}
				images[i] = img
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for i, img := range images {
			if err := write(batch[i], img); err != nil {
				return err
			}
		}
	}
	return nil
}

// MuxAudio lays the project's selected audio window under the rendered
// video. The video stream is copied untouched; the audio segment never
// exceeds the video's computed duration, so the output keeps the full
// video length. Returns false when there is nothing to mux.
func (p *Pipeline) MuxAudio(ctx context.Context, proj *project.Project, frameCount int, videoPath, audioPath, outputPath string) (bool, error) {
	audio := proj.Audio
	if audio == nil {
		return false, nil
	}

	info, err := p.ffmpeg.ProbeMedia(ctx, videoPath)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMuxSession, err)
	}
	if !info.HasVideo {
		return false, ErrNoVideoTrack
	}
	if info.Duration <= 0 {
		return false, ErrInvalidVideoDuration
	}

	start := audio.SelectionStart
	if start < 0 {
		start = 0
	}

	totalVideoSeconds := timeline.TotalSeconds(proj, frameCount)
	segment := audio.SelectionEnd - start
	if segment > totalVideoSeconds {
		segment = totalVideoSeconds
	}
	if segment <= 0 {
		p.logger.Info("skipping audio mux, empty selection", "project_id", proj.ID)
		return false, nil
	}

	// Clip to what the source actually has left after start.
	if src, err := p.ffmpeg.ProbeMedia(ctx, audioPath); err == nil && src.Duration > 0 {
		if start >= src.Duration {
			p.logger.Info("skipping audio mux, selection starts past end of source",
				"project_id", proj.ID, "start", start, "source_duration", src.Duration)
			return false, nil
		}
		if remaining := src.Duration - start; segment > remaining {
			segment = remaining
		}
	}

	err = p.ffmpeg.Run(ctx,
		"-y",
		"-i", videoPath,
		"-ss", formatSeconds(start),
		"-t", formatSeconds(segment),
		"-i", audioPath,
		"-map", "0:v:0",
		"-c:v", "copy",
		"-map", "1:a:0",
		"-c:a", "aac",
		"-b:a", "192k",
		outputPath,
	)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if errors.Is(err, media.ErrFFmpegNotFound) {
			return false, fmt.Errorf("%w: %v", ErrMuxSession, err)
		}
		return false, fmt.Errorf("%w: %v", ErrMuxFailed, err)
	}

	p.logger.Info("audio mux completed",
		"project_id", proj.ID,
		"start", start,
		"segment_seconds", segment)
	return true, nil
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
