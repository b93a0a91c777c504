package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/frameloom/frameloom-studio/internal/playback"
)

func TestPlaybackEndpoints(t *testing.T) {
	fx := setupAPI(t)
	proj := fx.createProject("Preview Movie", 1)
	fx.importFrames(proj.ID, 2)

	rr := fx.request(http.MethodGet, "/api/v1/projects/"+proj.ID+"/playback", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("snapshot: status = %d", rr.Code)
	}
	snap := decodeResponse[playback.Snapshot](t, rr)
	if snap.Phase != playback.PhaseIdle {
		t.Fatalf("phase = %q, want idle before start", snap.Phase)
	}

	rr = fx.request(http.MethodPost, "/api/v1/projects/"+proj.ID+"/playback/start", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("start: status = %d body %s", rr.Code, rr.Body.String())
	}
	snap = decodeResponse[playback.Snapshot](t, rr)
	if snap.Phase != playback.PhaseFrames || snap.ContentIndex != 0 {
		t.Fatalf("start snapshot = %+v", snap)
	}
	if snap.FrameFilename == "" {
		t.Fatal("start snapshot missing frame filename")
	}

	rr = fx.request(http.MethodPost, "/api/v1/projects/"+proj.ID+"/playback/stop", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("stop: status = %d", rr.Code)
	}
	stopped := decodeResponse[PlaybackStoppedResponse](t, rr)
	if !stopped.Stopped {
		t.Fatal("stop reported nothing running")
	}

	rr = fx.request(http.MethodPost, "/api/v1/projects/"+proj.ID+"/playback/stop", "")
	stopped = decodeResponse[PlaybackStoppedResponse](t, rr)
	if stopped.Stopped {
		t.Fatal("second stop should be a no-op")
	}
}

func TestPlaybackStartWithoutFrames(t *testing.T) {
	fx := setupAPI(t)
	proj := fx.createProject("Empty Movie", 5)

	rr := fx.request(http.MethodPost, "/api/v1/projects/"+proj.ID+"/playback/start", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}

	rr = fx.request(http.MethodPost, "/api/v1/projects/unknown/playback/start", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown project: status = %d, want 404", rr.Code)
	}
}

func TestPlaybackWebSocket(t *testing.T) {
	fx := setupAPI(t)
	proj := fx.createProject("WS Movie", 1)
	fx.importFrames(proj.ID, 2)

	srv := httptest.NewServer(fx.handler)
	defer srv.Close()
	wsBase := "ws" + strings.TrimPrefix(srv.URL, "http")

	// No session yet: the upgrade is refused outright.
	_, resp, err := websocket.DefaultDialer.Dial(
		wsBase+"/api/v1/projects/"+proj.ID+"/playback/ws?token="+testToken, nil)
	if err == nil {
		t.Fatal("dial should fail without a session")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("handshake response = %+v, want 404", resp)
	}

	rr := fx.request(http.MethodPost, "/api/v1/projects/"+proj.ID+"/playback/start", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("start: status = %d", rr.Code)
	}

	conn, _, err := websocket.DefaultDialer.Dial(
		wsBase+"/api/v1/projects/"+proj.ID+"/playback/ws?token="+testToken, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var snap playback.Snapshot
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("read first snapshot: %v", err)
	}
	if snap.Phase != playback.PhaseFrames {
		t.Fatalf("first snapshot phase = %q, want frames", snap.Phase)
	}

	fx.request(http.MethodPost, "/api/v1/projects/"+proj.ID+"/playback/stop", "")

	// The stream flushes the idle state on shutdown before closing.
	sawIdle := false
	for i := 0; i < 20; i++ {
		conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		if err := conn.ReadJSON(&snap); err != nil {
			break
		}
		if snap.Phase == playback.PhaseIdle {
			sawIdle = true
			break
		}
	}
	if !sawIdle {
		t.Fatal("never saw the idle snapshot after stop")
	}
}

func TestPlaybackWebSocketRejectsBadToken(t *testing.T) {
	fx := setupAPI(t)
	proj := fx.createProject("Locked Movie", 1)
	fx.importFrames(proj.ID, 1)
	fx.request(http.MethodPost, "/api/v1/projects/"+proj.ID+"/playback/start", "")

	srv := httptest.NewServer(fx.handler)
	defer srv.Close()
	wsBase := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(
		wsBase+"/api/v1/projects/"+proj.ID+"/playback/ws?token=wrong", nil)
	if err == nil {
		t.Fatal("dial should fail with a bad token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("handshake response = %+v, want 401", resp)
	}
}
