package entitlement

import (
	"context"
	"log/slog"
)

const (
	TierFree = "free"
	TierPro  = "pro"
)

// LicenseStatus is the license service's view of this installation.
type LicenseStatus struct {
	Tier      string `json:"tier"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

type LicenseClient interface {
	Status(ctx context.Context) (*LicenseStatus, error)
}

// StubClient serves offline installs: always free tier, never errors.
type StubClient struct {
	logger *slog.Logger
}

func NewStubClient(logger *slog.Logger) *StubClient {
	return &StubClient{logger: logger}
}

func (c *StubClient) Status(ctx context.Context) (*LicenseStatus, error) {
	c.logger.Debug("license stub: status requested")
	return &LicenseStatus{Tier: TierFree}, nil
}
