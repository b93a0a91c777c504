package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func attachAudioHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID := chi.URLParam(r, "projectID")
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart body", "BAD_REQUEST")
			return
		}

		file, header, err := r.FormFile("audio")
		if err != nil {
			writeError(w, http.StatusBadRequest, "audio file is required", "BAD_REQUEST")
			return
		}
		defer file.Close()

		proj, err := cfg.Projects.AttachAudio(r.Context(), projectID, header.Filename, file)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, ProjectToResponse(proj))
	}
}

func audioSelectionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AudioSelectionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		proj, err := cfg.Projects.SetAudioSelection(r.Context(), chi.URLParam(r, "projectID"), req.Start, req.End)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, ProjectToResponse(proj))
	}
}

func removeAudioHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		proj, err := cfg.Projects.RemoveAudio(r.Context(), chi.URLParam(r, "projectID"))
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, ProjectToResponse(proj))
	}
}
