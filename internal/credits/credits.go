// Package credits builds the render-ready closing-credits text block
// from a project's credit fields. Pure functions of the stored data; the
// same output feeds both the playback overlay and the baked-in credit
// cards, which is what keeps preview and export identical.
package credits

import (
	"strings"

	"github.com/frameloom/frameloom-studio/internal/project"
)

// Labels for the structured fields, in their fixed output order.
const (
	LabelDirector = "Director"
	LabelAnimator = "Animator"
	LabelMusic    = "Music"
	LabelThanks   = "Thanks"
)

// Build renders the project's credits into a single text block.
// Plain mode returns the trimmed text. Structured mode emits one
// "<Label>: <value>" line per non-empty field in fixed order, then the
// extras in insertion order (bare value when the extra has no label).
// ok is false when the result is empty.
func Build(p *project.Project) (string, bool) {
	switch project.ParseCreditsMode(p.CreditsMode) {
	case project.CreditsModeStructured:
		return buildStructured(p.Credits)
	default:
		text := strings.TrimSpace(p.CreditsText)
		return text, text != ""
	}
}

func buildStructured(info *project.CreditsInfo) (string, bool) {
	if info == nil {
		return "", false
	}

	fields := []struct {
		label string
		value string
	}{
		{LabelDirector, info.Director},
		{LabelAnimator, info.Animator},
		{LabelMusic, info.Music},
		{LabelThanks, info.Thanks},
	}

	var lines []string
	for _, f := range fields {
		value := strings.TrimSpace(f.value)
		if value == "" {
			continue
		}
		lines = append(lines, f.label+": "+value)
	}

	for _, extra := range info.Extras {
		value := strings.TrimSpace(extra.Value)
		if value == "" {
			continue
		}
		label := strings.TrimSpace(extra.Label)
		if label == "" {
			lines = append(lines, value)
		} else {
			lines = append(lines, label+": "+value)
		}
	}

	if len(lines) == 0 {
		return "", false
	}
	return strings.Join(lines, "\n"), true
}

// LineCount counts newline-separated lines, never less than one. The
// credits scroll-duration formula runs on this.
func LineCount(text string) int {
	n := strings.Count(text, "\n") + 1
	if n < 1 {
		return 1
	}
	return n
}
