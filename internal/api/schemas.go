package api

import (
	"time"

	"github.com/frameloom/frameloom-studio/internal/media"
	"github.com/frameloom/frameloom-studio/internal/project"
	"github.com/frameloom/frameloom-studio/internal/render"
	"github.com/frameloom/frameloom-studio/internal/timeline"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	DeviceID string `json:"device_id"`
}

type StatusResponse struct {
	State         string              `json:"state"`
	Version       string              `json:"version"`
	Pro           bool                `json:"pro"`
	LastError     string              `json:"last_error,omitempty"`
	ProjectsCount int                 `json:"projects_count"`
	JobsRunning   int                 `json:"jobs_running"`
	ActiveJob     *JobResponse        `json:"active_job,omitempty"`
	Encoder       *EncoderStatus      `json:"encoder,omitempty"`
	System        *render.Diagnostics `json:"system,omitempty"`
}

type EncoderStatus struct {
	FFmpegAvailable  bool   `json:"ffmpeg_available"`
	FFprobeAvailable bool   `json:"ffprobe_available"`
	HasLibx264       bool   `json:"has_libx264"`
	HasAAC           bool   `json:"has_aac"`
	CanExport        bool   `json:"can_export"`
	LastProbeAt      string `json:"last_probe_at,omitempty"`
}

type CreateProjectRequest struct {
	Title string `json:"title"`
	FPS   int    `json:"fps"`
}

// UpdateProjectRequest carries partial edits; nil fields stay untouched.
// Credits fields travel together: sending credits_mode applies the
// matching text or structured payload.
type UpdateProjectRequest struct {
	Title       *string              `json:"title,omitempty"`
	FPS         *int                 `json:"fps,omitempty"`
	TitleCard   *string              `json:"title_card,omitempty"`
	CreditsMode *string              `json:"credits_mode,omitempty"`
	CreditsText *string              `json:"credits_text,omitempty"`
	Credits     *project.CreditsInfo `json:"credits,omitempty"`
}

type AudioResponse struct {
	Filename       string  `json:"filename"`
	DisplayName    string  `json:"display_name"`
	Duration       float64 `json:"duration"`
	SelectionStart float64 `json:"selection_start"`
	SelectionEnd   float64 `json:"selection_end"`
}

type ProjectResponse struct {
	ID          string               `json:"id"`
	Title       string               `json:"title"`
	FPS         int                  `json:"fps"`
	TitleCard   string               `json:"title_card,omitempty"`
	CreditsMode string               `json:"credits_mode"`
	CreditsText string               `json:"credits_text,omitempty"`
	Credits     *project.CreditsInfo `json:"credits,omitempty"`
	Audio       *AudioResponse       `json:"audio,omitempty"`
	FrameCount  *int                 `json:"frame_count,omitempty"`
	ExportedAt  string               `json:"exported_at,omitempty"`
	CreatedAt   string               `json:"created_at"`
	UpdatedAt   string               `json:"updated_at"`
}

type ProjectsResponse struct {
	Projects []ProjectResponse `json:"projects"`
}

type FrameResponse struct {
	ID         string `json:"id"`
	ProjectID  string `json:"project_id"`
	Filename   string `json:"filename"`
	OrderIndex int    `json:"order_index"`
	Source     string `json:"source"`
	StackID    string `json:"stack_id,omitempty"`
	CreatedAt  string `json:"created_at"`
}

type FramesResponse struct {
	Frames []FrameResponse `json:"frames"`
}

type FramesCreatedResponse struct {
	Created int             `json:"created"`
	Frames  []FrameResponse `json:"frames"`
}

type TimelineItemResponse struct {
	Kind  string         `json:"kind"`
	Index int            `json:"index"`
	Total int            `json:"total"`
	Frame *FrameResponse `json:"frame,omitempty"`
}

type TimelineResponse struct {
	Items        []TimelineItemResponse `json:"items"`
	FrameCount   int                    `json:"frame_count"`
	TotalSlots   int                    `json:"total_slots"`
	TotalSeconds float64                `json:"total_seconds"`
}

type MoveRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

type MoveByIDRequest struct {
	FrameID string `json:"frame_id"`
	To      int    `json:"to"`
}

type AudioSelectionRequest struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type JobResponse struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	Progress  int    `json:"progress"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type JobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type JobCreatedResponse struct {
	JobID string `json:"job_id"`
}

type ExportCopyRequest struct {
	OutputDir string `json:"output_dir"`
}

type ExportCopyResponse struct {
	OutputPath string `json:"output_path"`
}

type PlaybackStoppedResponse struct {
	Stopped bool `json:"stopped"`
}

func ProjectToResponse(p *project.Project) ProjectResponse {
	resp := ProjectResponse{
		ID:          p.ID,
		Title:       p.Title,
		FPS:         p.FPS,
		TitleCard:   p.TitleCard,
		CreditsMode: p.CreditsMode,
		CreditsText: p.CreditsText,
		Credits:     p.Credits,
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   p.UpdatedAt.Format(time.RFC3339),
	}
	if p.Audio != nil {
		resp.Audio = &AudioResponse{
			Filename:       p.Audio.Filename,
			DisplayName:    p.Audio.DisplayName,
			Duration:       p.Audio.Duration,
			SelectionStart: p.Audio.SelectionStart,
			SelectionEnd:   p.Audio.SelectionEnd,
		}
	}
	if p.ExportedAt != nil {
		resp.ExportedAt = p.ExportedAt.Format(time.RFC3339)
	}
	return resp
}

func FrameToResponse(f *project.FrameAsset) FrameResponse {
	return FrameResponse{
		ID:         f.ID,
		ProjectID:  f.ProjectID,
		Filename:   f.Filename,
		OrderIndex: f.OrderIndex,
		Source:     f.Source,
		StackID:    f.StackID,
		CreatedAt:  f.CreatedAt.Format(time.RFC3339),
	}
}

func FramesToResponse(frames []*project.FrameAsset) FramesResponse {
	resp := FramesResponse{Frames: make([]FrameResponse, len(frames))}
	for i, f := range frames {
		resp.Frames[i] = FrameToResponse(f)
	}
	return resp
}

func TimelineItemToResponse(item timeline.Item) TimelineItemResponse {
	resp := TimelineItemResponse{
		Kind:  string(item.Kind),
		Index: item.Index,
		Total: item.Total,
	}
	if item.Frame != nil {
		frame := FrameToResponse(item.Frame)
		resp.Frame = &frame
	}
	return resp
}

func JobToResponse(j *project.Job) JobResponse {
	return JobResponse{
		ID:        j.ID,
		ProjectID: j.ProjectID,
		Type:      j.Type,
		Status:    j.Status,
		Progress:  j.Progress,
		Message:   j.Message,
		Error:     j.Error,
		CreatedAt: j.CreatedAt.Format(time.RFC3339),
		UpdatedAt: j.UpdatedAt.Format(time.RFC3339),
	}
}

func EncoderToResponse(caps *media.Capabilities) *EncoderStatus {
	if caps == nil {
		return nil
	}
	status := &EncoderStatus{
		FFmpegAvailable:  caps.FFmpegAvailable,
		FFprobeAvailable: caps.FFprobeAvailable,
		HasLibx264:       caps.HasLibx264,
		HasAAC:           caps.HasAAC,
		CanExport:        caps.CanExport,
	}
	if !caps.ProbedAt.IsZero() {
		status.LastProbeAt = caps.ProbedAt.Format(time.RFC3339)
	}
	return status
}
