// Package entitlement gates pro-only capabilities: project count, frame
// capacity, export duration, and project deletion. The tier is mutable
// state refreshed from an external license service; the rest of the
// system consults the oracle but never implements policy itself.
package entitlement

import (
	"context"
	"log/slog"
	"math"
	"sync"
)

// Free tier limits. Pro removes all of them.
const (
	FreeMaxProjects      = 3
	FreeMaxVideoSeconds  = 30.0
	FreeCanDeleteProject = false
)

type Oracle struct {
	mu     sync.RWMutex
	pro    bool
	client LicenseClient
	logger *slog.Logger
}

// NewOracle starts in the free tier until a refresh says otherwise.
func NewOracle(client LicenseClient, logger *slog.Logger) *Oracle {
	return &Oracle{client: client, logger: logger}
}

func (o *Oracle) IsPro() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.pro
}

func (o *Oracle) SetPro(pro bool) {
	o.mu.Lock()
	o.pro = pro
	o.mu.Unlock()
}

// MaxAllowedFrames returns the frame capacity for a project at the given
// fps. ok=false means unlimited.
func (o *Oracle) MaxAllowedFrames(fps int) (int, bool) {
	if o.IsPro() {
		return 0, false
	}
	if fps < 1 {
		fps = 1
	}
	return int(math.Ceil(FreeMaxVideoSeconds * float64(fps))), true
}

func (o *Oracle) CanCreateProject(existing int) bool {
	if o.IsPro() {
		return true
	}
	return existing < FreeMaxProjects
}

func (o *Oracle) CanExportVideo(durationSeconds float64) bool {
	if o.IsPro() {
		return true
	}
	return durationSeconds <= FreeMaxVideoSeconds
}

func (o *Oracle) CanDeleteProject() bool {
	if o.IsPro() {
		return true
	}
	return FreeCanDeleteProject
}

// Refresh asks the license service for the current tier. A failed
// refresh keeps the previous state; entitlements degrade gracefully
// when the service is unreachable.
func (o *Oracle) Refresh(ctx context.Context) error {
	status, err := o.client.Status(ctx)
	if err != nil {
		if o.logger != nil {
			o.logger.Warn("license refresh failed", "error", err)
		}
		return err
	}

	o.SetPro(status.Tier == TierPro)
	if o.logger != nil {
		o.logger.Info("license refreshed", "tier", status.Tier)
	}
	return nil
}
