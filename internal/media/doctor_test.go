package media

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeProber struct {
	caps  *Capabilities
	err   error
	calls int
}

func (p *fakeProber) ProbeCapabilities(ctx context.Context) (*Capabilities, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	caps := *p.caps
	caps.ProbedAt = time.Now()
	return &caps, nil
}

func TestDoctor_CachesWithinTTL(t *testing.T) {
	prober := &fakeProber{caps: &Capabilities{FFmpegAvailable: true}}
	doctor := NewDoctor(prober, testLogger())

	ctx := context.Background()
	first, err := doctor.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	second, err := doctor.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if prober.calls != 1 {
		t.Errorf("probe ran %d times, want 1", prober.calls)
	}
	if first != second {
		t.Error("second Get did not return the cached result")
	}
}

func TestDoctor_ReprobesAfterTTL(t *testing.T) {
	prober := &fakeProber{caps: &Capabilities{FFmpegAvailable: true}}
	doctor := NewDoctor(prober, testLogger())
	doctor.ttl = time.Nanosecond

	ctx := context.Background()
	if _, err := doctor.Get(ctx); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	time.Sleep(time.Millisecond)
	if _, err := doctor.Get(ctx); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if prober.calls != 2 {
		t.Errorf("probe ran %d times, want 2", prober.calls)
	}
}

func TestDoctor_StaleCacheOnFailure(t *testing.T) {
	prober := &fakeProber{caps: &Capabilities{FFmpegAvailable: true, FFmpegVersion: "6.0"}}
	doctor := NewDoctor(prober, testLogger())

	ctx := context.Background()
	if _, err := doctor.Get(ctx); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	prober.err = errors.New("probe exploded")
	caps, err := doctor.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh() error = %v, want stale cache", err)
	}
	if caps.FFmpegVersion != "6.0" {
		t.Errorf("FFmpegVersion = %q, want stale 6.0", caps.FFmpegVersion)
	}
}

func TestDoctor_FailureWithoutCache(t *testing.T) {
	prober := &fakeProber{err: errors.New("probe exploded")}
	doctor := NewDoctor(prober, testLogger())

	if _, err := doctor.Get(context.Background()); err == nil {
		t.Error("Get() succeeded with no cache and a failing probe")
	}
}

func TestDoctor_Invalidate(t *testing.T) {
	prober := &fakeProber{caps: &Capabilities{FFmpegAvailable: true}}
	doctor := NewDoctor(prober, testLogger())

	ctx := context.Background()
	if _, err := doctor.Get(ctx); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	doctor.Invalidate()
	if doctor.Peek() != nil {
		t.Error("Peek() returned capabilities after Invalidate")
	}

	if _, err := doctor.Get(ctx); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if prober.calls != 2 {
		t.Errorf("probe ran %d times, want 2", prober.calls)
	}
}
