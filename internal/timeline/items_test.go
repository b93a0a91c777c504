package timeline

import (
	"math"
	"strings"
	"testing"

	"github.com/frameloom/frameloom-studio/internal/project"
)

func TestTitleFrameCount(t *testing.T) {
	tests := []struct {
		name  string
		title string
		fps   int
		want  int
	}{
		{"no title", "", 5, 0},
		{"whitespace only", "   \n ", 5, 0},
		{"default fps", "My Movie", 5, 10},
		{"high fps", "My Movie", 24, 48},
		{"fps below range clamps to one", "My Movie", 0, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &project.Project{TitleCard: tt.title, FPS: tt.fps}
			if got := TitleFrameCount(p); got != tt.want {
				t.Errorf("TitleFrameCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCreditsFrameCount(t *testing.T) {
	tests := []struct {
		name  string
		lines int
		fps   int
		want  int
	}{
		// 1 line: 3.15s. ceil(3.15*24)=76 beats the 72 frame floor.
		{"one line at 24fps", 1, 24, 76},
		// 10 lines: 13.5s exactly, 324 frames at 24fps.
		{"ten lines at 24fps", 10, 24, 324},
		// 1 line at 5fps: ceil(15.75)=16 beats the 15 frame floor.
		{"one line at 5fps", 1, 5, 16},
		// 1 line at 1fps: ceil(3.15)=4 beats the 3 frame floor.
		{"one line at 1fps", 1, 1, 4},
		// 30 lines would run 36.5s; capped at 24s.
		{"cap at 24 seconds", 30, 5, 120},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &project.Project{
				FPS:         tt.fps,
				CreditsMode: project.CreditsModePlain,
				CreditsText: strings.TrimSuffix(strings.Repeat("line\n", tt.lines), "\n"),
			}
			if got := CreditsFrameCount(p); got != tt.want {
				t.Errorf("CreditsFrameCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCreditsFrameCount_NoCredits(t *testing.T) {
	p := &project.Project{FPS: 5, CreditsMode: project.CreditsModePlain, CreditsText: "  "}
	if got := CreditsFrameCount(p); got != 0 {
		t.Errorf("CreditsFrameCount() = %d, want 0", got)
	}
}

func TestCreditsSeconds(t *testing.T) {
	tests := []struct {
		lines int
		want  float64
	}{
		{0, 3.15},
		{1, 3.15},
		{4, 6.6},
		{10, 13.5},
		{100, 24.0},
	}

	for _, tt := range tests {
		got := CreditsSeconds(tt.lines)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("CreditsSeconds(%d) = %v, want %v", tt.lines, got, tt.want)
		}
	}
}

func TestItems_Composition(t *testing.T) {
	p := &project.Project{
		FPS:         5,
		TitleCard:   "My Movie",
		CreditsMode: project.CreditsModePlain,
		CreditsText: "Director: Ada",
	}
	frames := []*project.FrameAsset{
		{ID: "f0", OrderIndex: 0},
		{ID: "f1", OrderIndex: 1},
		{ID: "f2", OrderIndex: 2},
	}

	items := Items(p, frames)

	titleCount := TitleFrameCount(p)
	creditsCount := CreditsFrameCount(p)
	if want := titleCount + len(frames) + creditsCount; len(items) != want {
		t.Fatalf("len(items) = %d, want %d", len(items), want)
	}

	for i := 0; i < titleCount; i++ {
		if items[i].Kind != KindTitle || items[i].Index != i || items[i].Total != titleCount {
			t.Errorf("items[%d] = %+v, want title slot %d/%d", i, items[i], i, titleCount)
		}
	}
	for i, f := range frames {
		item := items[titleCount+i]
		if item.Kind != KindFrame || item.Frame == nil || item.Frame.ID != f.ID {
			t.Errorf("items[%d] = %+v, want frame %s", titleCount+i, item, f.ID)
		}
	}
	for i := 0; i < creditsCount; i++ {
		item := items[titleCount+len(frames)+i]
		if item.Kind != KindCredits || item.Index != i || item.Total != creditsCount {
			t.Errorf("credits slot %d = %+v", i, item)
		}
	}
}

func TestItems_BareProject(t *testing.T) {
	p := &project.Project{FPS: 5, CreditsMode: project.CreditsModePlain}
	frames := []*project.FrameAsset{
		{ID: "f0", OrderIndex: 0},
		{ID: "f1", OrderIndex: 1},
	}

	items := Items(p, frames)
	if len(items) != len(frames) {
		t.Fatalf("len(items) = %d, want %d", len(items), len(frames))
	}
	for i, item := range items {
		if item.Kind != KindFrame {
			t.Errorf("items[%d].Kind = %q, want frame", i, item.Kind)
		}
		if item.Frame == nil || item.Frame.ID != frames[i].ID {
			t.Errorf("items[%d] holds %+v, want %s", i, item.Frame, frames[i].ID)
		}
	}
}

func TestTotalFrameCount_MatchesItems(t *testing.T) {
	p := &project.Project{
		FPS:         12,
		TitleCard:   "T",
		CreditsMode: project.CreditsModePlain,
		CreditsText: "a\nb\nc",
	}
	frames := make([]*project.FrameAsset, 7)
	for i := range frames {
		frames[i] = &project.FrameAsset{OrderIndex: i}
	}

	if got, want := TotalFrameCount(p, len(frames)), len(Items(p, frames)); got != want {
		t.Errorf("TotalFrameCount() = %d, Items() yields %d", got, want)
	}
}

func TestFrameIndexForTimelineIndex(t *testing.T) {
	p := &project.Project{
		FPS:         5,
		TitleCard:   "T",
		CreditsMode: project.CreditsModePlain,
		CreditsText: "credits",
	}
	// 10 title slots, 4 frames, then credit slots.
	const frameCount = 4
	titleCount := TitleFrameCount(p)

	if _, ok := FrameIndexForTimelineIndex(p, frameCount, 0); ok {
		t.Error("title slot mapped to a content frame")
	}
	if _, ok := FrameIndexForTimelineIndex(p, frameCount, titleCount-1); ok {
		t.Error("last title slot mapped to a content frame")
	}

	got, ok := FrameIndexForTimelineIndex(p, frameCount, titleCount)
	if !ok || got != 0 {
		t.Errorf("first content slot = (%d, %v), want (0, true)", got, ok)
	}
	got, ok = FrameIndexForTimelineIndex(p, frameCount, titleCount+3)
	if !ok || got != 3 {
		t.Errorf("last content slot = (%d, %v), want (3, true)", got, ok)
	}

	if _, ok := FrameIndexForTimelineIndex(p, frameCount, titleCount+frameCount); ok {
		t.Error("credits slot mapped to a content frame")
	}
}

func TestTotalSeconds(t *testing.T) {
	bare := &project.Project{FPS: 5}
	if got := TotalSeconds(bare, 10); math.Abs(got-2.0) > 1e-9 {
		t.Errorf("TotalSeconds(bare, 10) = %v, want 2.0", got)
	}

	titled := &project.Project{FPS: 5, TitleCard: "T"}
	if got := TotalSeconds(titled, 10); math.Abs(got-4.0) > 1e-9 {
		t.Errorf("TotalSeconds(titled, 10) = %v, want 4.0", got)
	}

	full := &project.Project{FPS: 5, TitleCard: "T", CreditsMode: project.CreditsModePlain, CreditsText: "x"}
	wantCredits := float64(CreditsFrameCount(full)) / 5.0
	if got := TotalSeconds(full, 10); math.Abs(got-(4.0+wantCredits)) > 1e-9 {
		t.Errorf("TotalSeconds(full, 10) = %v, want %v", got, 4.0+wantCredits)
	}
}
