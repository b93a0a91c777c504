// Package project defines the stop-motion domain model and its SQLite
// persistence: projects, their ordered frame assets, audio attachments,
// and background jobs.
package project

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	MinFPS     = 1
	MaxFPS     = 60
	DefaultFPS = 5
)

// Frame source tags. Stored as plain strings; unknown values decode to
// SourcePhotoImport rather than failing.
const (
	SourceCapture      = "capture"
	SourcePhotoImport  = "photo_import"
	SourceVideoExtract = "video_extract"
)

// Credits modes. Plain carries a free-text block, structured carries a
// CreditsInfo JSON payload. Unknown stored values decode to plain.
const (
	CreditsModePlain      = "plain"
	CreditsModeStructured = "structured"
)

const (
	JobTypeExportVideo   = "export_video"
	JobTypeExtractFrames = "extract_frames"

	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

type Project struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	FPS         int              `json:"fps"`
	TitleCard   string           `json:"title_card,omitempty"`
	CreditsMode string           `json:"credits_mode"`
	CreditsText string           `json:"credits_text,omitempty"`
	Credits     *CreditsInfo     `json:"credits,omitempty"`
	Audio       *AudioAttachment `json:"audio,omitempty"`
	ExportedAt  *time.Time       `json:"exported_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// ContentSeconds returns the duration of the content frames alone,
// excluding title and credits time. FPS is clamped so a zero value can
// never divide by zero.
func (p *Project) ContentSeconds(frameCount int) float64 {
	return float64(frameCount) / float64(ClampFPS(p.FPS))
}

// CreditsInfo is the structured credits payload. Extras preserve their
// insertion order.
type CreditsInfo struct {
	Director string        `json:"director,omitempty"`
	Animator string        `json:"animator,omitempty"`
	Music    string        `json:"music,omitempty"`
	Thanks   string        `json:"thanks,omitempty"`
	Extras   []CreditExtra `json:"extras,omitempty"`
}

type CreditExtra struct {
	Label string `json:"label,omitempty"`
	Value string `json:"value"`
}

// AudioAttachment references a stored audio asset plus the user's
// selection window within it. The window is half-open: [Start, End).
type AudioAttachment struct {
	Filename       string  `json:"filename"`
	DisplayName    string  `json:"display_name"`
	Duration       float64 `json:"duration"`
	SelectionStart float64 `json:"selection_start"`
	SelectionEnd   float64 `json:"selection_end"`
}

// SelectionLength returns the selected window length in seconds.
func (a *AudioAttachment) SelectionLength() float64 {
	return a.SelectionEnd - a.SelectionStart
}

// FrameAsset is one still image in a project's timeline. Bytes live in
// the frame store; only the filename is persisted here. Within a project
// the OrderIndex values always form a dense permutation of 0..N-1.
type FrameAsset struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"project_id"`
	Filename   string    `json:"filename"`
	OrderIndex int       `json:"order_index"`
	Source     string    `json:"source"`
	StackID    string    `json:"stack_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type Job struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
	Payload   string    `json:"payload,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExtractFramesPayload is the JSON payload carried by extract_frames
// jobs. The path points at an uploaded video in the scratch area; the
// worker deletes it when the job finishes.
type ExtractFramesPayload struct {
	VideoPath string `json:"video_path"`
}

type ConfigEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func NewID() string {
	return uuid.NewString()
}

// NewFrameFilename generates a fresh backing filename for a frame asset.
// ext must include the leading dot.
func NewFrameFilename(ext string) string {
	if ext == "" {
		ext = ".png"
	}
	return "frame_" + uuid.NewString() + ext
}

// ClampFPS forces fps into the supported range. Division by fps must
// never see a zero.
func ClampFPS(fps int) int {
	if fps < MinFPS {
		return MinFPS
	}
	if fps > MaxFPS {
		return MaxFPS
	}
	return fps
}

// ParseSource maps a stored source tag to a known value, defaulting
// unknown tags to photo_import.
func ParseSource(s string) string {
	switch s {
	case SourceCapture, SourcePhotoImport, SourceVideoExtract:
		return s
	default:
		return SourcePhotoImport
	}
}

// ParseCreditsMode maps a stored credits mode to a known value,
// defaulting unknown modes to plain.
func ParseCreditsMode(s string) string {
	switch s {
	case CreditsModePlain, CreditsModeStructured:
		return s
	default:
		return CreditsModePlain
	}
}

// EncodeCreditsInfo serializes the structured payload for storage.
func EncodeCreditsInfo(info *CreditsInfo) (string, error) {
	if info == nil {
		return "", nil
	}
	data, err := json.Marshal(info)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeCreditsInfo parses a stored payload. Malformed payloads decode
// to an empty CreditsInfo so a corrupt row never blocks loading.
func DecodeCreditsInfo(raw string) *CreditsInfo {
	if raw == "" {
		return nil
	}
	var info CreditsInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return &CreditsInfo{}
	}
	return &info
}

var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

var VideoExtensions = map[string]bool{
	".mp4": true,
	".mov": true,
	".mkv": true,
}

func IsImageFile(filename string) bool {
	return ImageExtensions[lowerExt(filename)]
}

func IsVideoFile(filename string) bool {
	return VideoExtensions[lowerExt(filename)]
}

func lowerExt(filename string) string {
	ext := ""
	for i := len(filename) - 1; i >= 0; i-- {
		if filename[i] == '.' {
			ext = filename[i:]
			break
		}
	}
	if ext == "" {
		return ""
	}
	lower := make([]byte, len(ext))
	for i, c := range ext {
		if c >= 'A' && c <= 'Z' {
			lower[i] = byte(c + 32)
		} else {
			lower[i] = byte(c)
		}
	}
	return string(lower)
}
