package entitlement

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// LicenseError represents an error response from the license endpoint.
type LicenseError struct {
	StatusCode int
	Body       string
}

func (e *LicenseError) Error() string {
	return fmt.Sprintf("license request failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors (5xx) and network errors.
// Client errors (4xx) are considered permanent.
func (e *LicenseError) IsRetryable() bool {
	return e.StatusCode >= 500
}

// HTTPClient talks to a real license service over HTTP.
type HTTPClient struct {
	baseURL    string
	token      string
	deviceID   string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPClient(baseURL, token string, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

func (c *HTTPClient) SetDeviceID(id string) {
	c.deviceID = id
}

func (c *HTTPClient) Status(ctx context.Context) (*LicenseStatus, error) {
	url := fmt.Sprintf("%s/api/license/status", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Frameloom-Request-Id", generateRequestID())
	if c.deviceID != "" {
		req.Header.Set("X-Frameloom-Device-Id", c.deviceID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &LicenseError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var status LicenseStatus
	if err := json.Unmarshal(respBody, &status); err != nil {
		return nil, fmt.Errorf("decode license status: %w", err)
	}

	if status.Tier != TierPro {
		status.Tier = TierFree
	}

	c.logger.Info("license status fetched", "tier", status.Tier)
	return &status, nil
}

func generateRequestID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:])
}
