package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/frameloom/frameloom-studio/internal/project"
)

// Uploads spill to disk past this; it is not a size cap.
const multipartMemory = 32 << 20

func listFramesHandler(cfg ServerConfig) http.HandlerFunc {
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
		writeJSON(w, http.StatusOK, FramesToResponse(frames))
	}
}

func importFramesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID := chi.URLParam(r, "projectID")
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart body", "BAD_REQUEST")
			return
		}

		headers := r.MultipartForm.File["images"]
		if len(headers) == 0 {
			writeError(w, http.StatusBadRequest, "no images uploaded", "BAD_REQUEST")
			return
		}

		images := make([][]byte, 0, len(headers))
		for _, fh := range headers {
			if !project.IsImageFile(fh.Filename) {
				writeError(w, http.StatusBadRequest,
					fmt.Sprintf("unsupported image type: %s", fh.Filename), "BAD_REQUEST")
				return
			}
			data, err := readFormFile(fh)
			if err != nil {
				writeError(w, http.StatusBadRequest,
					fmt.Sprintf("failed to read %s", fh.Filename), "BAD_REQUEST")
				return
			}
			images = append(images, data)
		}

		frames, err := cfg.Projects.ImportFrames(r.Context(), projectID, images)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		writeCreatedFrames(w, r, cfg, projectID, len(frames))
	}
}

func importPDFHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID := chi.URLParam(r, "projectID")
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart body", "BAD_REQUEST")
			return
		}

		file, header, err := r.FormFile("pdf")
		if err != nil {
			writeError(w, http.StatusBadRequest, "pdf file is required", "BAD_REQUEST")
			return
		}
		defer file.Close()
		if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
			writeError(w, http.StatusBadRequest, "file must be a pdf", "BAD_REQUEST")
			return
		}

		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read pdf", "BAD_REQUEST")
			return
		}

		dpi, _ := strconv.Atoi(r.FormValue("dpi"))
		frames, err := cfg.Projects.ImportPDF(r.Context(), projectID, data, dpi)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		writeCreatedFrames(w, r, cfg, projectID, len(frames))
	}
}

func captureFrameHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID := chi.URLParam(r, "projectID")
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart body", "BAD_REQUEST")
			return
		}

		file, _, err := r.FormFile("image")
		if err != nil {
			writeError(w, http.StatusBadRequest, "image file is required", "BAD_REQUEST")
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read image", "BAD_REQUEST")
			return
		}

		frame, err := cfg.Projects.CaptureFrame(r.Context(), projectID, data, r.FormValue("stack_id"))
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, FrameToResponse(frame))
	}
}

func extractFramesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID := chi.URLParam(r, "projectID")
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart body", "BAD_REQUEST")
			return
		}

		file, header, err := r.FormFile("video")
		if err != nil {
			writeError(w, http.StatusBadRequest, "video file is required", "BAD_REQUEST")
			return
		}
		defer file.Close()
		if !project.IsVideoFile(header.Filename) {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("unsupported video type: %s", header.Filename), "BAD_REQUEST")
			return
		}

		ext := strings.ToLower(filepath.Ext(header.Filename))
		uploadPath := cfg.Blobs.ScratchPath("upload_" + project.NewID() + ext)
		if err := saveUpload(file, uploadPath); err != nil {
			cfg.Logger.Error("failed to stage uploaded video", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to store upload", "INTERNAL_ERROR")
			return
		}

		job, err := cfg.Projects.CreateExtractJob(r.Context(), projectID, uploadPath)
		if err != nil {
			os.Remove(uploadPath)
			writeServiceError(w, cfg.Logger, err)
			return
		}
		writeJSON(w, http.StatusAccepted, JobCreatedResponse{JobID: job.ID})
	}
}

func frameImageHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		frame, ok := loadFrame(w, r, cfg)
		if !ok {
			return
		}
		path := cfg.Blobs.FramePath(frame.ProjectID, frame.Filename)
		if err := cfg.Streamer.ServeFile(w, r, path); err != nil {
			cfg.Logger.Error("frame image serve failed", "frame_id", frame.ID, "error", err)
		}
	}
}

func deleteFrameByIDHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		proj, ok := loadProject(w, r, cfg)
		if !ok {
			return
		}
		frame, ok := loadFrame(w, r, cfg)
		if !ok {
			return
		}

		frames, err := cfg.Timeline.DeleteFrameByID(r.Context(), proj, frame.ID)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, FramesToResponse(frames))
	}
}

func duplicateFrameHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		proj, ok := loadProject(w, r, cfg)
		if !ok {
			return
		}
		frame, ok := loadFrame(w, r, cfg)
		if !ok {
			return
		}

		dup, err := cfg.Timeline.DuplicateFrame(r.Context(), proj, frame.ID)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		if dup == nil {
			// Source exists, so the engine declined on the frame limit.
			writeError(w, http.StatusForbidden, "frame limit reached for the free plan", "PLAN_LIMIT")
			return
		}
		writeJSON(w, http.StatusCreated, FrameToResponse(dup))
	}
}

// loadFrame fetches the routed frame, verifying it belongs to the
// routed project. Writes the 404 itself.
func loadFrame(w http.ResponseWriter, r *http.Request, cfg ServerConfig) (*project.FrameAsset, bool) {
	frame, err := cfg.Projects.GetFrame(r.Context(), chi.URLParam(r, "frameID"))
	if err != nil {
		writeServiceError(w, cfg.Logger, err)
		return nil, false
	}
	if frame == nil || frame.ProjectID != chi.URLParam(r, "projectID") {
		writeError(w, http.StatusNotFound, "frame not found", "NOT_FOUND")
		return nil, false
	}
	return frame, true
}

// writeCreatedFrames answers an import with the count and the updated
// frame list.
func writeCreatedFrames(w http.ResponseWriter, r *http.Request, cfg ServerConfig, projectID string, created int) {
	frames, err := cfg.Projects.ListFrames(r.Context(), projectID)
	if err != nil {
		writeServiceError(w, cfg.Logger, err)
		return
	}
	resp := FramesCreatedResponse{Created: created, Frames: FramesToResponse(frames).Frames}
	writeJSON(w, http.StatusCreated, resp)
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func saveUpload(src io.Reader, dest string) error {
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(dest)
		return err
	}
	return f.Close()
}
