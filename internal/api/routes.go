package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/frameloom/frameloom-studio/internal/project"
	"github.com/frameloom/frameloom-studio/internal/render"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))
		r.Get("/jobs", listJobsHandler(cfg))
		r.Get("/jobs/{jobID}", getJobHandler(cfg))

		r.Route("/projects", func(r chi.Router) {
			r.Post("/", createProjectHandler(cfg))
			r.Get("/", listProjectsHandler(cfg))

			r.Route("/{projectID}", func(r chi.Router) {
				r.Get("/", getProjectHandler(cfg))
				r.Patch("/", updateProjectHandler(cfg))
				r.Delete("/", deleteProjectHandler(cfg))

				r.Get("/frames", listFramesHandler(cfg))
				r.Post("/frames", importFramesHandler(cfg))
				r.Post("/frames/pdf", importPDFHandler(cfg))
				r.Post("/frames/capture", captureFrameHandler(cfg))
				r.Post("/frames/extract", extractFramesHandler(cfg))
				r.Get("/frames/{frameID}/image", frameImageHandler(cfg))
				r.Delete("/frames/{frameID}", deleteFrameByIDHandler(cfg))
				r.Post("/frames/{frameID}/duplicate", duplicateFrameHandler(cfg))

				r.Get("/timeline", timelineHandler(cfg))
				r.Post("/timeline/move", moveFrameHandler(cfg))
				r.Post("/timeline/move-by-id", moveFrameByIDHandler(cfg))
				r.Post("/timeline/move-item", moveItemHandler(cfg))
				r.Delete("/timeline/frames/{contentIndex}", deleteContentFrameHandler(cfg))

				r.Post("/audio", attachAudioHandler(cfg))
				r.Patch("/audio/selection", audioSelectionHandler(cfg))
				r.Delete("/audio", removeAudioHandler(cfg))

				r.Post("/export", createExportHandler(cfg))
				r.Post("/export/copy", copyExportHandler(cfg))
				r.Get("/video", videoHandler(cfg))
				r.Get("/video/qr", videoQRHandler(cfg))

				r.Post("/playback/start", playbackStartHandler(cfg))
				r.Post("/playback/stop", playbackStopHandler(cfg))
				r.Get("/playback", playbackSnapshotHandler(cfg))
				r.Get("/playback/ws", playbackWSHandler(cfg))
			})
		})
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Version:  cfg.Version,
			UptimeS:  int64(time.Since(cfg.StartTime).Seconds()),
			DeviceID: cfg.DeviceID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		projectCount, _ := cfg.Projects.CountProjects(ctx)
		jobs, _ := cfg.Repository.ListJobs(ctx, 10)

		state := "idle"
		if cfg.Runner != nil && cfg.Runner.IsPaused() {
			state = "paused"
		}

		var activeJob *JobResponse
		jobsRunning := 0
		lastError := ""
		for _, j := range jobs {
			if j.Status == project.JobStatusRunning {
				state = "rendering"
				resp := JobToResponse(j)
				activeJob = &resp
				jobsRunning++
			}
			if j.Status == project.JobStatusFailed && lastError == "" {
				lastError = j.Error
			}
		}

		resp := StatusResponse{
			State:         state,
			Version:       cfg.Version,
			Pro:           cfg.Entitlements.IsPro(),
			LastError:     lastError,
			ProjectsCount: projectCount,
			JobsRunning:   jobsRunning,
			ActiveJob:     activeJob,
		}

		if cfg.Doctor != nil {
			if caps, err := cfg.Doctor.Get(ctx); err == nil {
				resp.Encoder = EncoderToResponse(caps)
			}
		}
		if cfg.Blobs != nil {
			diag := render.ReadDiagnostics(cfg.Blobs.ScratchPath(""))
			resp.System = &diag
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func listJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := cfg.Projects.ListJobs(r.Context(), 50)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		resp := JobsResponse{Jobs: make([]JobResponse, len(jobs))}
		for i, j := range jobs {
			resp.Jobs[i] = JobToResponse(j)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := cfg.Projects.GetJob(r.Context(), chi.URLParam(r, "jobID"))
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		if job == nil {
			writeError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}
		writeJSON(w, http.StatusOK, JobToResponse(job))
	}
}
