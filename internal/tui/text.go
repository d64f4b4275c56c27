// internal/tui/text.go
package tui

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

const ellipsis = "…"

// clip fits s into width terminal cells, ending with an ellipsis when cut.
// Widths are measured in cells, so wide runes and styled text stay aligned.
func clip(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return ansi.Truncate(s, width, ellipsis)
}

// wrapCritique collapses a critique onto one paragraph, caps it at maxCells
// and wraps it to width cells, breaking long words when they do not fit.
func wrapCritique(text string, maxCells, width int) string {
	flat := clip(strings.Join(strings.Fields(text), " "), maxCells)
	if width <= 0 {
		return flat
	}
	return ansi.Wrap(flat, width, "")
}
