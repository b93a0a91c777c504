package playback

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
)

// ErrPlayerUnavailable means no ffplay binary was found on PATH.
var ErrPlayerUnavailable = errors.New("ffplay is not installed")

// ExecPlayer shells out to ffplay for the audio track. Previews stay
// silent when the binary is missing; the session logs and carries on.
type ExecPlayer struct {
	binary string
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewExecPlayer(logger *slog.Logger) *ExecPlayer {
	path, err := exec.LookPath("ffplay")
	if err != nil {
		logger.Warn("ffplay not found, preview audio disabled")
		path = ""
	}
	return &ExecPlayer{binary: path, logger: logger}
}

// Play starts ffplay on the window [startSeconds, startSeconds+duration)
// and returns once the process is running.
func (p *ExecPlayer) Play(ctx context.Context, path string, startSeconds, durationSeconds float64) error {
	if p.binary == "" {
		return ErrPlayerUnavailable
	}
	p.Stop()

	runCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(runCtx, p.binary,
		"-nodisp",
		"-autoexit",
		"-loglevel", "quiet",
		"-ss", formatPlayerSeconds(startSeconds),
		"-t", formatPlayerSeconds(durationSeconds),
		path,
	)
	if err := cmd.Start(); err != nil {
		cancel()
		return err
	}

	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	go func() {
		if err := cmd.Wait(); err != nil && runCtx.Err() == nil {
			p.logger.Debug("ffplay exited", "error", err)
		}
		cancel()
	}()
	return nil
}

// Stop kills the current clip, if any.
func (p *ExecPlayer) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func formatPlayerSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
