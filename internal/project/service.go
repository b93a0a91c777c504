package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/frameloom/frameloom-studio/internal/media"
	"github.com/frameloom/frameloom-studio/internal/store"
)

const DefaultTitle = "Untitled Movie"

var (
	ErrProjectNotFound     = errors.New("project not found")
	ErrProjectLimitReached = errors.New("project limit reached for the current plan")
	ErrFrameLimitReached   = errors.New("frame limit reached for the current plan")
	ErrDeleteLocked        = errors.New("project deletion is locked on the current plan")
	ErrNoAudio             = errors.New("project has no audio attached")
	ErrInvalidSelection    = errors.New("audio selection end must be after its start")
)

// BlobStore is the slice of the frame store the service writes through.
type BlobStore interface {
	SaveFrame(projectID, filename string, data []byte) (string, error)
	LoadFrame(projectID, filename string) ([]byte, error)
	SaveAudio(projectID, filename string, r io.Reader) (string, error)
	AudioPath(projectID, filename string) string
	DeleteAudio(projectID, filename string) error
	DeleteProjectData(projectID string) error
}

// EntitlementGate answers the plan-limit questions the service asks
// before creating, deleting, or growing a project.
type EntitlementGate interface {
	CanCreateProject(existing int) bool
	CanDeleteProject() bool
	MaxAllowedFrames(fps int) (int, bool)
}

// MediaProber reports container metadata for stored media files.
type MediaProber interface {
	ProbeMedia(ctx context.Context, path string) (*media.ProbeResult, error)
}

type Service struct {
	repo   Repository
	blobs  BlobStore
	probe  MediaProber
	gate   EntitlementGate
	logger *slog.Logger

	defaultFPS int
}

func NewService(repo Repository, blobs BlobStore, probe MediaProber, gate EntitlementGate, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		blobs:      blobs,
		probe:      probe,
		gate:       gate,
		logger:     logger,
		defaultFPS: DefaultFPS,
	}
}

// SetDefaultFPS overrides the fps assigned to projects created without
// one. Out-of-range values are clamped.
func (s *Service) SetDefaultFPS(fps int) {
	if fps > 0 {
		s.defaultFPS = ClampFPS(fps)
	}
}

func (s *Service) CreateProject(ctx context.Context, title string, fps int) (*Project, error) {
	count, err := s.repo.CountProjects(ctx)
	if err != nil {
		return nil, err
	}
	if !s.gate.CanCreateProject(count) {
		return nil, ErrProjectLimitReached
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultTitle
	}
	if fps == 0 {
		fps = s.defaultFPS
	}

	now := time.Now().UTC()
	p := &Project{
		ID:          NewID(),
		Title:       title,
		FPS:         ClampFPS(fps),
		CreditsMode: CreditsModePlain,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateProject(ctx, p); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("project created", "project_id", p.ID, "title", p.Title, "fps", p.FPS)
	}
	return p, nil
}

func (s *Service) GetProject(ctx context.Context, id string) (*Project, error) {
	return s.repo.GetProject(ctx, id)
}

func (s *Service) ListProjects(ctx context.Context) ([]*Project, error) {
	return s.repo.ListProjects(ctx)
}

func (s *Service) CountProjects(ctx context.Context) (int, error) {
	return s.repo.CountProjects(ctx)
}

func (s *Service) ListFrames(ctx context.Context, projectID string) ([]*FrameAsset, error) {
	return s.repo.ListFrames(ctx, projectID)
}

func (s *Service) GetFrame(ctx context.Context, id string) (*FrameAsset, error) {
	return s.repo.GetFrame(ctx, id)
}

// mutate loads a project, applies one change, and persists it.
func (s *Service) mutate(ctx context.Context, id string, apply func(*Project) error) (*Project, error) {
	p, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProjectNotFound
	}
	if err := apply(p); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) RenameProject(ctx context.Context, id, title string) (*Project, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("title must not be empty")
	}
	return s.mutate(ctx, id, func(p *Project) error {
		p.Title = title
		return nil
	})
}

func (s *Service) SetFPS(ctx context.Context, id string, fps int) (*Project, error) {
	return s.mutate(ctx, id, func(p *Project) error {
		p.FPS = ClampFPS(fps)
		return nil
	})
}

func (s *Service) SetTitleCard(ctx context.Context, id, text string) (*Project, error) {
	return s.mutate(ctx, id, func(p *Project) error {
		p.TitleCard = text
		return nil
	})
}

// SetCredits switches the credits mode and replaces its payload. The
// plain text block and the structured payload are mutually exclusive.
func (s *Service) SetCredits(ctx context.Context, id, mode, text string, info *CreditsInfo) (*Project, error) {
	mode = ParseCreditsMode(mode)
	return s.mutate(ctx, id, func(p *Project) error {
		p.CreditsMode = mode
		if mode == CreditsModeStructured {
			if info == nil {
				info = &CreditsInfo{}
			}
			p.Credits = info
			p.CreditsText = ""
		} else {
			p.CreditsText = text
			p.Credits = nil
		}
		return nil
	})
}

func (s *Service) DeleteProject(ctx context.Context, id string) error {
	if !s.gate.CanDeleteProject() {
		return ErrDeleteLocked
	}
	p, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return err
	}
	if p == nil {
		return ErrProjectNotFound
	}
	if err := s.repo.DeleteProject(ctx, id); err != nil {
		return err
	}
	if err := s.blobs.DeleteProjectData(id); err != nil && s.logger != nil {
		s.logger.Warn("failed to delete project blobs", "project_id", id, "error", err)
	}
	if s.logger != nil {
		s.logger.Info("project deleted", "project_id", id, "title", p.Title)
	}
	return nil
}

// AttachAudio stores an uploaded audio file, probes its duration, and
// selects the whole track. A previous attachment is replaced.
func (s *Service) AttachAudio(ctx context.Context, projectID, originalName string, r io.Reader) (*Project, error) {
	p, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProjectNotFound
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	if ext == "" {
		ext = ".mp3"
	}
	filename := "audio_" + NewID() + ext
	if _, err := s.blobs.SaveAudio(projectID, filename, r); err != nil {
		return nil, err
	}

	var duration float64
	if res, err := s.probe.ProbeMedia(ctx, s.blobs.AudioPath(projectID, filename)); err != nil {
		if s.logger != nil {
			s.logger.Warn("failed to probe audio duration", "project_id", projectID, "error", err)
		}
	} else {
		duration = res.Duration
	}

	if p.Audio != nil {
		if err := s.blobs.DeleteAudio(projectID, p.Audio.Filename); err != nil && s.logger != nil {
			s.logger.Warn("failed to delete replaced audio", "project_id", projectID, "error", err)
		}
	}

	p.Audio = &AudioAttachment{
		Filename:       filename,
		DisplayName:    originalName,
		Duration:       duration,
		SelectionStart: 0,
		SelectionEnd:   duration,
	}
	if err := s.repo.UpdateProject(ctx, p); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("audio attached", "project_id", projectID, "file", originalName, "duration", duration)
	}
	return p, nil
}

// SetAudioSelection clamps the window into the track and requires a
// positive length after clamping.
func (s *Service) SetAudioSelection(ctx context.Context, projectID string, start, end float64) (*Project, error) {
	return s.mutate(ctx, projectID, func(p *Project) error {
		if p.Audio == nil {
			return ErrNoAudio
		}
		if start < 0 {
			start = 0
		}
		if p.Audio.Duration > 0 && end > p.Audio.Duration {
			end = p.Audio.Duration
		}
		if end <= start {
			return ErrInvalidSelection
		}
		p.Audio.SelectionStart = start
		p.Audio.SelectionEnd = end
		return nil
	})
}

func (s *Service) RemoveAudio(ctx context.Context, projectID string) (*Project, error) {
	return s.mutate(ctx, projectID, func(p *Project) error {
		if p.Audio == nil {
			return nil
		}
		if err := s.blobs.DeleteAudio(projectID, p.Audio.Filename); err != nil && s.logger != nil {
			s.logger.Warn("failed to delete audio blob", "project_id", projectID, "error", err)
		}
		p.Audio = nil
		return nil
	})
}

// ImportFrames decodes uploaded images and appends them to the timeline.
// Every frame in a project shares one pixel size; the first frame ever
// imported establishes it and later imports are rescaled to match.
func (s *Service) ImportFrames(ctx context.Context, projectID string, images [][]byte) ([]*FrameAsset, error) {
	p, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProjectNotFound
	}

	decoded := make([]image.Image, 0, len(images))
	for i, data := range images {
		img, err := store.DecodeImage(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode image %d: %w", i+1, err)
		}
		decoded = append(decoded, img)
	}
	return s.appendFrames(ctx, p, decoded, SourcePhotoImport, "", nil)
}

// ImportPDF rasterizes a storyboard PDF and appends one frame per page.
func (s *Service) ImportPDF(ctx context.Context, projectID string, pdfData []byte, dpi int) ([]*FrameAsset, error) {
	p, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProjectNotFound
	}

	pages, err := store.RenderPDFPages(pdfData, dpi)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("pdf contains no pages")
	}
	return s.appendFrames(ctx, p, pages, SourcePhotoImport, "", nil)
}

// CaptureFrame appends a single camera capture. Captures taken in one
// session share a stack id so the timeline can move them as a block.
func (s *Service) CaptureFrame(ctx context.Context, projectID string, imageData []byte, stackID string) (*FrameAsset, error) {
	p, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProjectNotFound
	}

	img, err := store.DecodeImage(imageData)
	if err != nil {
		return nil, fmt.Errorf("failed to decode capture: %w", err)
	}
	created, err := s.appendFrames(ctx, p, []image.Image{img}, SourceCapture, stackID, nil)
	if err != nil {
		return nil, err
	}
	return created[0], nil
}

// ImportFramePaths appends image files from disk one at a time, keeping
// at most one decoded frame in memory. Used by the video extraction
// worker, which can produce hundreds of stills.
func (s *Service) ImportFramePaths(ctx context.Context, projectID string, paths []string, source string, progress func(done, total int)) (int, error) {
	p, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		return 0, err
	}
	if p == nil {
		return 0, ErrProjectNotFound
	}

	existing, err := s.repo.ListFrames(ctx, projectID)
	if err != nil {
		return 0, err
	}
	room, limited := s.frameRoom(p, len(existing))
	if limited {
		if room <= 0 {
			return 0, ErrFrameLimitReached
		}
		if len(paths) > room {
			if s.logger != nil {
				s.logger.Info("truncating import to frame limit", "project_id", projectID, "limit", room, "offered", len(paths))
			}
			paths = paths[:room]
		}
	}

	width, height, sized, err := s.establishedSize(p, existing)
	if err != nil {
		return 0, err
	}

	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return i, fmt.Errorf("failed to read frame file: %w", err)
		}
		img, err := store.DecodeImage(data)
		if err != nil {
			return i, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
		}
		if !sized {
			b := img.Bounds()
			width, height, sized = b.Dx(), b.Dy(), true
		}
		if _, err := s.persistFrame(ctx, p, img, width, height, len(existing)+i, source, ""); err != nil {
			return i, err
		}
		if progress != nil {
			progress(i+1, len(paths))
		}
	}

	s.touch(ctx, projectID)
	return len(paths), nil
}

func (s *Service) appendFrames(ctx context.Context, p *Project, images []image.Image, source, stackID string, progress func(done, total int)) ([]*FrameAsset, error) {
	existing, err := s.repo.ListFrames(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	room, limited := s.frameRoom(p, len(existing))
	if limited {
		if room <= 0 {
			return nil, ErrFrameLimitReached
		}
		if len(images) > room {
			if s.logger != nil {
				s.logger.Info("truncating import to frame limit", "project_id", p.ID, "limit", room, "offered", len(images))
			}
			images = images[:room]
		}
	}

	width, height, sized, err := s.establishedSize(p, existing)
	if err != nil {
		return nil, err
	}
	if !sized && len(images) > 0 {
		b := images[0].Bounds()
		width, height = b.Dx(), b.Dy()
	}

	created := make([]*FrameAsset, 0, len(images))
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		f, err := s.persistFrame(ctx, p, img, width, height, len(existing)+i, source, stackID)
		if err != nil {
			return created, err
		}
		created = append(created, f)
		if progress != nil {
			progress(i+1, len(images))
		}
	}

	s.touch(ctx, p.ID)
	if s.logger != nil {
		s.logger.Info("frames imported", "project_id", p.ID, "count", len(created), "source", source)
	}
	return created, nil
}

func (s *Service) persistFrame(ctx context.Context, p *Project, img image.Image, width, height, orderIndex int, source, stackID string) (*FrameAsset, error) {
	data, err := store.EncodePNG(store.ResizeTo(img, width, height))
	if err != nil {
		return nil, err
	}
	f := &FrameAsset{
		ID:         NewID(),
		ProjectID:  p.ID,
		Filename:   NewFrameFilename(".png"),
		OrderIndex: orderIndex,
		Source:     ParseSource(source),
		StackID:    stackID,
		CreatedAt:  time.Now().UTC(),
	}
	if _, err := s.blobs.SaveFrame(p.ID, f.Filename, data); err != nil {
		return nil, err
	}
	if err := s.repo.CreateFrame(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// establishedSize reads the first frame's pixel size, which every later
// frame must match for the encoder.
func (s *Service) establishedSize(p *Project, frames []*FrameAsset) (int, int, bool, error) {
	if len(frames) == 0 {
		return 0, 0, false, nil
	}
	data, err := s.blobs.LoadFrame(p.ID, frames[0].Filename)
	if err != nil {
		return 0, 0, false, fmt.Errorf("failed to load reference frame: %w", err)
	}
	img, err := store.DecodeImage(data)
	if err != nil {
		return 0, 0, false, fmt.Errorf("failed to decode reference frame: %w", err)
	}
	b := img.Bounds()
	return b.Dx(), b.Dy(), true, nil
}

func (s *Service) frameRoom(p *Project, existing int) (int, bool) {
	max, limited := s.gate.MaxAllowedFrames(p.FPS)
	if !limited {
		return 0, false
	}
	return max - existing, true
}

func (s *Service) touch(ctx context.Context, projectID string) {
	if err := s.repo.TouchProject(ctx, projectID); err != nil && s.logger != nil {
		s.logger.Warn("failed to touch project", "project_id", projectID, "error", err)
	}
}

// CreateExportJob queues a video export. An already queued or running
// export for the same project is returned instead of a duplicate.
func (s *Service) CreateExportJob(ctx context.Context, projectID string) (*Job, error) {
	p, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProjectNotFound
	}

	jobs, err := s.repo.ListJobs(ctx, 100)
	if err != nil {
		return nil, err
	}
	for _, j := range jobs {
		if j.ProjectID == projectID && j.Type == JobTypeExportVideo &&
			(j.Status == JobStatusPending || j.Status == JobStatusRunning) {
			return j, nil
		}
	}

	job := s.newJob(projectID, JobTypeExportVideo, "")
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	if s.logger != nil {
		s.logger.Info("export job created", "job_id", job.ID, "project_id", projectID)
	}
	return job, nil
}

// CreateExtractJob queues frame extraction from an uploaded video that
// has already been written to the scratch area.
func (s *Service) CreateExtractJob(ctx context.Context, projectID, videoPath string) (*Job, error) {
	p, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProjectNotFound
	}

	payload, err := json.Marshal(ExtractFramesPayload{VideoPath: videoPath})
	if err != nil {
		return nil, err
	}
	job := s.newJob(projectID, JobTypeExtractFrames, string(payload))
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	if s.logger != nil {
		s.logger.Info("extract job created", "job_id", job.ID, "project_id", projectID, "video", filepath.Base(videoPath))
	}
	return job, nil
}

func (s *Service) newJob(projectID, jobType, payload string) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:        NewID(),
		ProjectID: projectID,
		Type:      jobType,
		Status:    JobStatusPending,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.GetJob(ctx, id)
}

func (s *Service) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	return s.repo.ListJobs(ctx, limit)
}
