package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/frameloom/frameloom-studio/internal/project"
)

func createProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateProjectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		proj, err := cfg.Projects.CreateProject(r.Context(), req.Title, req.FPS)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, ProjectToResponse(proj))
	}
}

func listProjectsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projects, err := cfg.Projects.ListProjects(r.Context())
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		resp := ProjectsResponse{Projects: make([]ProjectResponse, len(projects))}
		for i, p := range projects {
			resp.Projects[i] = ProjectToResponse(p)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		proj, ok := loadProject(w, r, cfg)
		if !ok {
			return
		}

		resp := ProjectToResponse(proj)
		if count, err := cfg.Repository.CountFrames(r.Context(), proj.ID); err == nil {
			resp.FrameCount = &count
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func updateProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID := chi.URLParam(r, "projectID")

		var req UpdateProjectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		ctx := r.Context()
		var proj *project.Project
		var err error

		if req.Title != nil {
			if proj, err = cfg.Projects.RenameProject(ctx, projectID, *req.Title); err != nil {
				writeServiceError(w, cfg.Logger, err)
				return
			}
		}
		if req.FPS != nil {
			if proj, err = cfg.Projects.SetFPS(ctx, projectID, *req.FPS); err != nil {
				writeServiceError(w, cfg.Logger, err)
				return
			}
		}
		if req.TitleCard != nil {
			if proj, err = cfg.Projects.SetTitleCard(ctx, projectID, *req.TitleCard); err != nil {
				writeServiceError(w, cfg.Logger, err)
				return
			}
		}
		if req.CreditsMode != nil {
			text := ""
			if req.CreditsText != nil {
				text = *req.CreditsText
			}
			if proj, err = cfg.Projects.SetCredits(ctx, projectID, *req.CreditsMode, text, req.Credits); err != nil {
				writeServiceError(w, cfg.Logger, err)
				return
			}
		}

		if proj == nil {
			// Nothing changed; answer with the current state.
			var ok bool
			if proj, ok = loadProject(w, r, cfg); !ok {
				return
			}
		}
		writeJSON(w, http.StatusOK, ProjectToResponse(proj))
	}
}

func deleteProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Projects.DeleteProject(r.Context(), chi.URLParam(r, "projectID")); err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// loadProject fetches the routed project and writes the 404 itself so
// handlers can bail with a bare return.
func loadProject(w http.ResponseWriter, r *http.Request, cfg ServerConfig) (*project.Project, bool) {
	proj, err := cfg.Projects.GetProject(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		writeServiceError(w, cfg.Logger, err)
		return nil, false
	}
	if proj == nil {
		writeError(w, http.StatusNotFound, "project not found", "NOT_FOUND")
		return nil, false
	}
	return proj, true
}
