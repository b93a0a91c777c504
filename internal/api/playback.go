package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/frameloom/frameloom-studio/internal/playback"
)

// Origin checks are moot on a loopback-bound server; the token gate in
// the auth middleware is what protects these endpoints.
var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

func playbackStartHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := cfg.Playback.Start(chi.URLParam(r, "projectID"))
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, session.Snapshot())
	}
}

func playbackStopHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stopped := cfg.Playback.Stop(chi.URLParam(r, "projectID"))
		writeJSON(w, http.StatusOK, PlaybackStoppedResponse{Stopped: stopped})
	}
}

func playbackSnapshotHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := cfg.Playback.Get(chi.URLParam(r, "projectID"))
		if session == nil {
			writeJSON(w, http.StatusOK, playback.Snapshot{Phase: playback.PhaseIdle})
			return
		}
		writeJSON(w, http.StatusOK, session.Snapshot())
	}
}

// playbackWSHandler streams one JSON snapshot per tick until the client
// disconnects or the session ends.
func playbackWSHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := cfg.Playback.Get(chi.URLParam(r, "projectID"))
		if session == nil {
			writeError(w, http.StatusNotFound, "no active playback session", "NOT_FOUND")
			return
		}

		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			cfg.Logger.Warn("websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		snapshots, unsubscribe := session.Subscribe()
		defer unsubscribe()

		clientGone := make(chan struct{})
		go func() {
			defer close(clientGone)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case sn, ok := <-snapshots:
				if !ok {
					return
				}
				if err := conn.WriteJSON(sn); err != nil {
					return
				}
			case <-session.Done():
				// Flush the final idle state before closing.
				conn.WriteJSON(session.Snapshot())
				return
			case <-clientGone:
				return
			}
		}
	}
}
