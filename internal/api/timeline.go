package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/frameloom/frameloom-studio/internal/timeline"
)

func timelineHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		proj, ok := loadProject(w, r, cfg)
		if !ok {
			return
		}
		frames, err := cfg.Projects.ListFrames(r.Context(), proj.ID)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		items := timeline.Items(proj, frames)
		resp := TimelineResponse{
			Items:        make([]TimelineItemResponse, len(items)),
			FrameCount:   len(frames),
			TotalSlots:   timeline.TotalFrameCount(proj, len(frames)),
			TotalSeconds: timeline.TotalSeconds(proj, len(frames)),
		}
		for i, item := range items {
			resp.Items[i] = TimelineItemToResponse(item)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func moveFrameHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		proj, ok := loadProject(w, r, cfg)
		if !ok {
			return
		}
		var req MoveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		frames, err := cfg.Timeline.MoveFrame(r.Context(), proj, req.From, req.To)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, FramesToResponse(frames))
	}
}

func moveFrameByIDHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		proj, ok := loadProject(w, r, cfg)
		if !ok {
			return
		}
		var req MoveByIDRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.FrameID == "" {
			writeError(w, http.StatusBadRequest, "frame_id is required", "BAD_REQUEST")
			return
		}

		frames, err := cfg.Timeline.MoveFrameByID(r.Context(), proj, req.FrameID, req.To)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, FramesToResponse(frames))
	}
}

func moveItemHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		proj, ok := loadProject(w, r, cfg)
		if !ok {
			return
		}
		var req MoveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		frames, err := cfg.Timeline.MoveItem(r.Context(), proj, req.From, req.To)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, FramesToResponse(frames))
	}
}

func deleteContentFrameHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		proj, ok := loadProject(w, r, cfg)
		if !ok {
			return
		}
		index, err := strconv.Atoi(chi.URLParam(r, "contentIndex"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "content index must be an integer", "BAD_REQUEST")
			return
		}

		frames, err := cfg.Timeline.DeleteFrame(r.Context(), proj, index)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, FramesToResponse(frames))
	}
}
