package entitlement

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPClient_Status_Success(t *testing.T) {
	var receivedAuth string
	var receivedRequestID string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/license/status" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodGet {
			t.Errorf("unexpected method: %s", r.Method)
		}
		receivedAuth = r.Header.Get("Authorization")
		receivedRequestID = r.Header.Get("X-Frameloom-Request-Id")

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(LicenseStatus{Tier: TierPro})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "test-token", testLogger())

	status, err := client.Status(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Tier != TierPro {
		t.Errorf("tier = %q, want %q", status.Tier, TierPro)
	}
	if receivedAuth != "Bearer test-token" {
		t.Errorf("auth = %q, want %q", receivedAuth, "Bearer test-token")
	}
	if receivedRequestID == "" {
		t.Error("expected X-Frameloom-Request-Id header")
	}
}

func TestHTTPClient_Status_UnknownTierFallsBackToFree(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"tier":"platinum"}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "test-token", testLogger())

	status, err := client.Status(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Tier != TierFree {
		t.Errorf("tier = %q, want %q", status.Tier, TierFree)
	}
}

func TestHTTPClient_Status_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail":"internal server error"}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "test-token", testLogger())

	_, err := client.Status(context.Background())
	if err == nil {
		t.Fatal("expected error for 500 response")
	}

	var licErr *LicenseError
	if !errors.As(err, &licErr) {
		t.Fatalf("expected LicenseError, got %T", err)
	}
	if !licErr.IsRetryable() {
		t.Error("expected 5xx license error to be retryable")
	}
}

func TestLicenseError_IsRetryable(t *testing.T) {
	if !(&LicenseError{StatusCode: http.StatusInternalServerError}).IsRetryable() {
		t.Fatal("expected 5xx license error to be retryable")
	}
	if (&LicenseError{StatusCode: http.StatusUnauthorized}).IsRetryable() {
		t.Fatal("expected 4xx license error to be permanent")
	}
}

func TestHTTPClient_SetDeviceID(t *testing.T) {
	var receivedDeviceID string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedDeviceID = r.Header.Get("X-Frameloom-Device-Id")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(LicenseStatus{Tier: TierFree})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "test-token", testLogger())
	client.SetDeviceID("device-123")

	if _, err := client.Status(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receivedDeviceID != "device-123" {
		t.Fatalf("device_id_header = %q, want %q", receivedDeviceID, "device-123")
	}
}

func TestHTTPClient_Status_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(LicenseStatus{Tier: TierFree})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "test-token", testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.Status(ctx); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestStubClient_AlwaysFree(t *testing.T) {
	stub := NewStubClient(testLogger())
	status, err := stub.Status(context.Background())
	if err != nil {
		t.Fatalf("stub should not error: %v", err)
	}
	if status.Tier != TierFree {
		t.Errorf("tier = %q, want %q", status.Tier, TierFree)
	}
}

func TestClients_ImplementInterface(t *testing.T) {
	var _ LicenseClient = (*HTTPClient)(nil)
	var _ LicenseClient = (*StubClient)(nil)
}
