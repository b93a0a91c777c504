// Package api exposes the studio over a local HTTP surface: project
// CRUD, frame and audio uploads, timeline edits, export jobs, playback
// control and media streaming.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/frameloom/frameloom-studio/internal/entitlement"
	"github.com/frameloom/frameloom-studio/internal/media"
	"github.com/frameloom/frameloom-studio/internal/playback"
	"github.com/frameloom/frameloom-studio/internal/project"
	"github.com/frameloom/frameloom-studio/internal/render"
	"github.com/frameloom/frameloom-studio/internal/store"
	"github.com/frameloom/frameloom-studio/internal/timeline"
)

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// ServerConfig carries everything the handlers compose over. WriteTimeout
// stays zero so long video streams are never cut off mid-response.
type ServerConfig struct {
	Port     int
	Version  string
	DeviceID string

	Projects     *project.Service
	Repository   project.Repository
	Timeline     *timeline.Engine
	Playback     *playback.Manager
	Streamer     *playback.Streamer
	Blobs        store.Store
	Runner       *render.Runner
	Doctor       *media.Doctor
	Entitlements *entitlement.Oracle

	Logger    *slog.Logger
	StartTime time.Time
}

func NewServer(cfg ServerConfig) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:      NewRouter(cfg),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
