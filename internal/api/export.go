package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"
	"github.com/frameloom/frameloom-studio/internal/export"
)

func createExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := cfg.Projects.CreateExportJob(r.Context(), chi.URLParam(r, "projectID"))
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		writeJSON(w, http.StatusAccepted, JobCreatedResponse{JobID: job.ID})
	}
}

func copyExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		proj, ok := loadProject(w, r, cfg)
		if !ok {
			return
		}
		var req ExportCopyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		src := cfg.Blobs.LocateExportedVideo(proj.ID)
		if _, err := os.Stat(src); err != nil {
			writeError(w, http.StatusNotFound, "no exported video for this project", "NOT_FOUND")
			return
		}

		dest, err := export.CopyVideo(src, req.OutputDir, proj.Title)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		cfg.Logger.Info("export copied", "project_id", proj.ID, "dest", dest)
		writeJSON(w, http.StatusOK, ExportCopyResponse{OutputPath: dest})
	}
}

func videoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		proj, ok := loadProject(w, r, cfg)
		if !ok {
			return
		}
		path := cfg.Blobs.LocateExportedVideo(proj.ID)
		if err := cfg.Streamer.ServeFile(w, r, path); err != nil {
			cfg.Logger.Error("video serve failed", "project_id", proj.ID, "error", err)
		}
	}
}

// videoQRHandler renders a QR code for the project's video URL so a
// phone on the same network can scan and download. The URL carries the
// auth token as a query parameter since scanners cannot set headers.
func videoQRHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		proj, ok := loadProject(w, r, cfg)
		if !ok {
			return
		}
		if _, err := os.Stat(cfg.Blobs.LocateExportedVideo(proj.ID)); err != nil {
			writeError(w, http.StatusNotFound, "no exported video for this project", "NOT_FOUND")
			return
		}

		token, err := cfg.Repository.GetConfig(r.Context(), "auth_token")
		if err != nil || token == "" {
			cfg.Logger.Error("failed to load auth token for QR", "error", err)
			writeError(w, http.StatusInternalServerError, "auth configuration error", "INTERNAL_ERROR")
			return
		}

		videoURL := url.URL{
			Scheme:   "http",
			Host:     r.Host,
			Path:     "/api/v1/projects/" + proj.ID + "/video",
			RawQuery: url.Values{"token": {token}}.Encode(),
		}
		png, err := qrcode.Encode(videoURL.String(), qrcode.Medium, 256)
		if err != nil {
			cfg.Logger.Error("qr encode failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to render QR code", "INTERNAL_ERROR")
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		w.Write(png)
	}
}
