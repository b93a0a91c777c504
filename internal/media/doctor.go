package media

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const defaultCacheTTL = 5 * time.Minute

// Capabilities reports what the installed ffmpeg tooling can do. The
// status endpoint and the export preflight both consult it.
type Capabilities struct {
	FFmpegAvailable  bool      `json:"ffmpeg_available"`
	FFmpegVersion    string    `json:"ffmpeg_version,omitempty"`
	FFmpegPath       string    `json:"ffmpeg_path,omitempty"`
	FFprobeAvailable bool      `json:"ffprobe_available"`
	FFprobePath      string    `json:"ffprobe_path,omitempty"`
	HasLibx264       bool      `json:"has_libx264"`
	HasAAC           bool      `json:"has_aac"`
	CanExport        bool      `json:"can_export"`
	ProbedAt         time.Time `json:"-"`
}

// CapabilityProber is implemented by Executor and faked in tests.
type CapabilityProber interface {
	ProbeCapabilities(ctx context.Context) (*Capabilities, error)
}

// Doctor caches capability probes with a TTL so status polling does
// not spawn ffmpeg subprocesses on every request.
type Doctor struct {
	prober CapabilityProber
	ttl    time.Duration
	logger *slog.Logger

	mu     sync.RWMutex
	cached *Capabilities
}

func NewDoctor(prober CapabilityProber, logger *slog.Logger) *Doctor {
	return &Doctor{
		prober: prober,
		ttl:    defaultCacheTTL,
		logger: logger,
	}
}

// Get returns cached capabilities if fresh, otherwise re-probes.
func (d *Doctor) Get(ctx context.Context) (*Capabilities, error) {
	d.mu.RLock()
	if d.cached != nil && time.Since(d.cached.ProbedAt) < d.ttl {
		caps := d.cached
		d.mu.RUnlock()
		return caps, nil
	}
	d.mu.RUnlock()

	return d.Refresh(ctx)
}

func (d *Doctor) Peek() *Capabilities {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cached
}

// Refresh forces a new probe regardless of cache freshness. On probe
// failure a stale cache is better than nothing.
func (d *Doctor) Refresh(ctx context.Context) (*Capabilities, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	caps, err := d.prober.ProbeCapabilities(ctx)
	if err != nil {
		d.logger.Warn("capability probe failed", "error", err)
		if d.cached != nil {
			d.logger.Info("returning stale capabilities cache")
			return d.cached, nil
		}
		return nil, err
	}

	d.cached = caps
	return caps, nil
}

// Invalidate clears the cache, forcing the next Get to probe.
func (d *Doctor) Invalidate() {
	d.mu.Lock()
	d.cached = nil
	d.mu.Unlock()
}

// ProbeCapabilities checks the resolved binaries. A missing binary is
// a valid probe result, not an error.
func (e *Executor) ProbeCapabilities(ctx context.Context) (*Capabilities, error) {
	caps := &Capabilities{
		FFmpegPath:  e.ffmpegPath,
		FFprobePath: e.ffprobePath,
		ProbedAt:    time.Now(),
	}

	if e.ffmpegPath != "" {
		if version, err := e.probeVersion(ctx); err == nil {
			caps.FFmpegAvailable = true
			caps.FFmpegVersion = version
		} else {
			e.logger.Warn("ffmpeg version probe failed", "error", err)
		}
	}

	if caps.FFmpegAvailable {
		encoders, err := e.probeEncoders(ctx)
		if err != nil {
			e.logger.Warn("ffmpeg encoder probe failed", "error", err)
		} else {
			caps.HasLibx264 = encoders["libx264"]
			caps.HasAAC = encoders["aac"]
		}
	}

	if e.ffprobePath != "" {
		cmd := exec.CommandContext(ctx, e.ffprobePath, "-version")
		caps.FFprobeAvailable = cmd.Run() == nil
	}

	caps.CanExport = caps.FFmpegAvailable && caps.FFprobeAvailable && caps.HasLibx264
	return caps, nil
}

func (e *Executor) probeVersion(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, e.ffmpegPath, "-version")
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return parseVersionLine(string(out)), nil
}

// parseVersionLine extracts the version token from ffmpeg's banner,
// e.g. "ffmpeg version 6.1.1 Copyright ..." yields "6.1.1".
func parseVersionLine(out string) string {
	line := out
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	fields := strings.Fields(line)
	if len(fields) >= 3 && fields[1] == "version" {
		return fields[2]
	}
	return ""
}

func (e *Executor) probeEncoders(ctx context.Context) (map[string]bool, error) {
	cmd := exec.CommandContext(ctx, e.ffmpegPath, "-hide_banner", "-encoders")
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}
	return parseEncoderList(out), nil
}

// parseEncoderList scans `ffmpeg -encoders` output. Each encoder line
// is " <flags> <name> <description>"; legend and separator lines are
// skipped.
func parseEncoderList(out []byte) map[string]bool {
	encoders := make(map[string]bool)
	for _, line := range bytes.Split(out, []byte("\n")) {
		fields := strings.Fields(string(line))
		if len(fields) < 2 || strings.HasPrefix(fields[0], "-") || fields[1] == "=" {
			continue
		}
		encoders[fields[1]] = true
	}
	return encoders
}
