package render

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/frameloom/frameloom-studio/internal/media"
	"github.com/frameloom/frameloom-studio/internal/project"
	"github.com/frameloom/frameloom-studio/internal/store"
	"github.com/frameloom/frameloom-studio/internal/timeline"
)

// Entitlements is the slice of the entitlement oracle the runner
// consults before doing expensive work.
type Entitlements interface {
	CanExportVideo(durationSeconds float64) bool
}

// FrameImporter appends extracted stills to a project's timeline with
// the same size normalization and plan limits as any other import.
type FrameImporter interface {
	ImportFramePaths(ctx context.Context, projectID string, paths []string, source string, progress func(done, total int)) (int, error)
}

// Runner polls for pending jobs and executes them one at a time.
// Exports and extractions are ffmpeg-bound; a single worker keeps the
// machine usable while the studio renders.
type Runner struct {
	repo         project.Repository
	pipeline     *Pipeline
	ffmpeg       media.FFmpeg
	blobs        store.Store
	importer     FrameImporter
	gate         Entitlements
	doctor       *media.Doctor
	logger       *slog.Logger
	pollInterval time.Duration
	running      atomic.Bool
	paused       atomic.Bool
}

func NewRunner(repo project.Repository, pipeline *Pipeline, ffmpeg media.FFmpeg, blobs store.Store, importer FrameImporter, gate Entitlements, doctor *media.Doctor, logger *slog.Logger, pollInterval time.Duration) *Runner {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Runner{
		repo:         repo,
		pipeline:     pipeline,
		ffmpeg:       ffmpeg,
		blobs:        blobs,
		importer:     importer,
		gate:         gate,
		doctor:       doctor,
		logger:       logger,
		pollInterval: pollInterval,
	}
}

func (r *Runner) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}

	r.logger.Info("job runner started")

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("job runner stopping")
			r.running.Store(false)
			return
		case <-ticker.C:
			if !r.paused.Load() {
				r.processNextJob(ctx)
			}
		}
	}
}

func (r *Runner) Pause() {
	r.paused.Store(true)
	r.logger.Info("job runner paused")
}

func (r *Runner) Resume() {
	r.paused.Store(false)
	r.logger.Info("job runner resumed")
}

func (r *Runner) IsPaused() bool {
	return r.paused.Load()
}

func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

func (r *Runner) processNextJob(ctx context.Context) {
	jobs, err := r.repo.ListPendingJobs(ctx)
	if err != nil {
		r.logger.Error("failed to list pending jobs", "error", err)
		return
	}

	if len(jobs) == 0 {
		return
	}

	job := jobs[0]
	r.logger.Info("processing job", "job_id", job.ID, "type", job.Type)

	switch job.Type {
	case project.JobTypeExportVideo:
		r.processExportJob(ctx, job)
	case project.JobTypeExtractFrames:
		r.processExtractJob(ctx, job)
	default:
		r.logger.Warn("unknown job type", "type", job.Type)
		r.failJob(ctx, job.ID, "unknown job type")
	}
}

func (r *Runner) processExportJob(ctx context.Context, job *project.Job) {
	proj, err := r.repo.GetProject(ctx, job.ProjectID)
	if err != nil || proj == nil {
		r.failJob(ctx, job.ID, "project not found")
		return
	}

	frames, err := r.repo.ListFrames(ctx, proj.ID)
	if err != nil {
		r.failJob(ctx, job.ID, fmt.Sprintf("list frames: %v", err))
		return
	}
	if len(frames) == 0 {
		r.failJob(ctx, job.ID, ErrNoFrames.Error())
		return
	}

	totalSeconds := timeline.TotalSeconds(proj, len(frames))
	if !r.gate.CanExportVideo(totalSeconds) {
		r.failJob(ctx, job.ID, "video length exceeds the free plan export limit")
		return
	}

	caps, err := r.doctor.Get(ctx)
	if err != nil || !caps.CanExport {
		r.failJob(ctx, job.ID, "ffmpeg with libx264 is required for export")
		return
	}

	if err := r.pipeline.Preflight(r.blobs.ScratchPath(""), totalSeconds); err != nil {
		r.failJob(ctx, job.ID, err.Error())
		return
	}

	r.repo.UpdateJobStatus(ctx, job.ID, project.JobStatusRunning, "")

	tempPath := r.blobs.ScratchPath("export_" + job.ID + ".mp4")
	defer os.Remove(tempPath)

	lastPct := -1
	progress := func(done, total int) {
		// Frame appends are 90% of the job; mux and finalize take the
		// rest. One update per percent keeps sqlite out of the loop.
		pct := done * 90 / total
		if pct != lastPct {
			lastPct = pct
			r.repo.UpdateJobProgress(ctx, job.ID, pct, "rendering frames")
		}
	}

	if err := r.pipeline.Render(ctx, proj, frames, tempPath, progress); err != nil {
		r.failJob(ctx, job.ID, err.Error())
		return
	}

	finalSource := tempPath
	if proj.Audio != nil {
		r.repo.UpdateJobProgress(ctx, job.ID, 92, "adding audio")

		muxPath := r.blobs.ScratchPath("export_" + job.ID + "_mux.mp4")
		audioPath := r.blobs.AudioPath(proj.ID, proj.Audio.Filename)

		muxed, err := r.pipeline.MuxAudio(ctx, proj, len(frames), tempPath, audioPath, muxPath)
		if err != nil {
			os.Remove(muxPath)
			r.failJob(ctx, job.ID, err.Error())
			return
		}
		if muxed {
			finalSource = muxPath
			defer os.Remove(muxPath)
		}
	}

	r.repo.UpdateJobProgress(ctx, job.ID, 97, "finalizing")

	finalPath, err := r.blobs.SaveExportedVideo(proj.ID, finalSource)
	if err != nil {
		r.failJob(ctx, job.ID, fmt.Sprintf("save exported video: %v", err))
		return
	}

	now := time.Now().UTC()
	proj.ExportedAt = &now
	if err := r.repo.UpdateProject(ctx, proj); err != nil {
		r.logger.Warn("failed to record export time", "project_id", proj.ID, "error", err)
	}

	r.repo.UpdateJobProgress(ctx, job.ID, 100, "export complete")
	r.repo.UpdateJobStatus(ctx, job.ID, project.JobStatusCompleted, "")
	r.logger.Info("export job completed", "job_id", job.ID, "project_id", proj.ID, "output", finalPath)
}

func (r *Runner) processExtractJob(ctx context.Context, job *project.Job) {
	proj, err := r.repo.GetProject(ctx, job.ProjectID)
	if err != nil || proj == nil {
		r.failJob(ctx, job.ID, "project not found")
		return
	}

	var payload project.ExtractFramesPayload
	if err := json.Unmarshal([]byte(job.Payload), &payload); err != nil || payload.VideoPath == "" {
		r.failJob(ctx, job.ID, "invalid extract payload")
		return
	}
	defer os.Remove(payload.VideoPath)

	r.repo.UpdateJobStatus(ctx, job.ID, project.JobStatusRunning, "")

	info, err := r.ffmpeg.ProbeMedia(ctx, payload.VideoPath)
	if err != nil {
		r.failJob(ctx, job.ID, fmt.Sprintf("probe video: %v", err))
		return
	}
	if !info.HasVideo {
		r.failJob(ctx, job.ID, "uploaded file has no video track")
		return
	}

	outDir := r.blobs.ScratchPath("extract_" + job.ID)
	defer os.RemoveAll(outDir)

	r.repo.UpdateJobProgress(ctx, job.ID, 10, "extracting frames")

	paths, err := r.ffmpeg.ExtractFrames(ctx, payload.VideoPath, outDir, project.ClampFPS(proj.FPS))
	if err != nil {
		r.failJob(ctx, job.ID, fmt.Sprintf("extract frames: %v", err))
		return
	}

	progress := func(done, total int) {
		pct := 10 + done*90/total
		r.repo.UpdateJobProgress(ctx, job.ID, pct, fmt.Sprintf("imported %d of %d frames", done, total))
	}
	imported, err := r.importer.ImportFramePaths(ctx, proj.ID, paths, project.SourceVideoExtract, progress)
	if err != nil {
		r.failJob(ctx, job.ID, err.Error())
		return
	}

	r.repo.UpdateJobStatus(ctx, job.ID, project.JobStatusCompleted, "")
	r.logger.Info("extract job completed", "job_id", job.ID, "project_id", proj.ID, "frames", imported)
}

func (r *Runner) failJob(ctx context.Context, jobID, msg string) {
	if err := r.repo.UpdateJobStatus(ctx, jobID, project.JobStatusFailed, msg); err != nil {
		r.logger.Error("failed to update job status", "job_id", jobID, "error", err)
	}
}

func (r *Runner) GetActiveJobCount(ctx context.Context) int {
	jobs, err := r.repo.ListJobs(ctx, 100)
	if err != nil {
		return 0
	}
	count := 0
	for _, j := range jobs {
		if j.Status == project.JobStatusRunning {
			count++
		}
	}
	return count
}
