// Package timeline derives the flat timeline index space of a project
// (title slots, then content frames, then credit slots) and implements
// the ordering operations over it. Playback and export both express
// positions in this space, computed from the same fps formulas, which
// is what keeps preview and final video in agreement.
package timeline

import (
	"math"
	"strings"

	"github.com/frameloom/frameloom-studio/internal/credits"
	"github.com/frameloom/frameloom-studio/internal/project"
)

// Title cards hold for a fixed two seconds. Credits scroll for a
// text-length-dependent duration, never shorter than three seconds of
// frames and never longer than 24 seconds.
const (
	TitleSeconds      = 2
	CreditsMinSeconds = 3
	CreditsMaxSeconds = 24.0
)

type Kind string

const (
	KindTitle   Kind = "title"
	KindFrame   Kind = "frame"
	KindCredits Kind = "credits"
)

// Item is one slot in the timeline index space. Title and credit slots
// carry their position within the run; frame slots carry the asset.
type Item struct {
	Kind  Kind                `json:"kind"`
	Index int                 `json:"index"`
	Total int                 `json:"total"`
	Frame *project.FrameAsset `json:"frame,omitempty"`
}

// TitleFrameCount is zero without title text, else fps*2.
func TitleFrameCount(p *project.Project) int {
	if strings.TrimSpace(p.TitleCard) == "" {
		return 0
	}
	return project.ClampFPS(p.FPS) * TitleSeconds
}

// CreditsFrameCount is zero without credits text, else
// max(fps*3, ceil(seconds*fps)) where seconds grows with line count:
// 2.0 + 1.15 per line, capped at 24.
func CreditsFrameCount(p *project.Project) int {
	text, ok := credits.Build(p)
	if !ok {
		return 0
	}
	return creditsFrameCountForText(project.ClampFPS(p.FPS), text)
}

func creditsFrameCountForText(fps int, text string) int {
	seconds := CreditsSeconds(credits.LineCount(text))
	frames := int(math.Ceil(seconds * float64(fps)))
	if min := fps * CreditsMinSeconds; frames < min {
		frames = min
	}
	return frames
}

// CreditsSeconds maps a line count to the scroll duration in seconds.
func CreditsSeconds(lineCount int) float64 {
	if lineCount < 1 {
		lineCount = 1
	}
	seconds := 2.0 + 1.15*float64(lineCount)
	if seconds > CreditsMaxSeconds {
		seconds = CreditsMaxSeconds
	}
	return seconds
}

// Items derives the canonical timeline sequence: a run of title slots,
// one slot per frame in order, a run of credit slots.
func Items(p *project.Project, frames []*project.FrameAsset) []Item {
	titleCount := TitleFrameCount(p)
	creditsCount := CreditsFrameCount(p)

	items := make([]Item, 0, titleCount+len(frames)+creditsCount)
	for i := 0; i < titleCount; i++ {
		items = append(items, Item{Kind: KindTitle, Index: i, Total: titleCount})
	}
	for _, f := range frames {
		items = append(items, Item{Kind: KindFrame, Frame: f})
	}
	for i := 0; i < creditsCount; i++ {
		items = append(items, Item{Kind: KindCredits, Index: i, Total: creditsCount})
	}
	return items
}

// TotalFrameCount is the timeline length: title + content + credits.
func TotalFrameCount(p *project.Project, frameCount int) int {
	return TitleFrameCount(p) + frameCount + CreditsFrameCount(p)
}

// FrameIndexForTimelineIndex maps a timeline index back to a content
// frame index. ok is false for title slots, credit slots, and anything
// out of range.
func FrameIndexForTimelineIndex(p *project.Project, frameCount, timelineIndex int) (int, bool) {
	titleCount := TitleFrameCount(p)
	if timelineIndex < titleCount {
		return 0, false
	}
	contentIndex := timelineIndex - titleCount
	if contentIndex >= frameCount {
		return 0, false
	}
	return contentIndex, true
}

// TotalSeconds is the full video duration: title + content + credits.
// Credit time is derived from the frame count, not the raw formula, so
// the ceiling applied there carries through.
func TotalSeconds(p *project.Project, frameCount int) float64 {
	fps := float64(project.ClampFPS(p.FPS))
	titleSeconds := float64(TitleFrameCount(p)) / fps
	contentSeconds := float64(frameCount) / fps
	creditsSeconds := float64(CreditsFrameCount(p)) / fps
	return titleSeconds + contentSeconds + creditsSeconds
}
