package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/abelbrown/tracklens/internal/otel"
)

// debugPanelChrome is the number of terminal lines consumed by DebugPanel's
// border (top + bottom = 2) and vertical padding (top + bottom = 2).
// Must be updated if DebugPanel style changes.
const debugPanelChrome = 4

// debugOverlay renders the debug panel showing pipeline stats and recent events.
// Pure function with no side effects. Returns empty string if ring is nil.
func debugOverlay(ring *otel.RingBuffer, width, height int) string {
	if ring == nil {
		return ""
	}

	stats := ring.Stats()
	recent := ring.Last(20)

	var lines []string
	lines = append(lines, DebugHeaderStyle.Render("Pipeline Stats"))
	lines = append(lines, fmt.Sprintf("  Tracks:     %d loaded, %d errors",
		stats[otel.KindTracksLoad], stats[otel.KindTracksError]))
	lines = append(lines, fmt.Sprintf("  Recompute:  %d started, %d applied, %d stale, %d errors",
		stats[otel.KindRecomputeStart], stats[otel.KindRecomputeApply], stats[otel.KindRecomputeStale], stats[otel.KindRecomputeError]))
	lines = append(lines, fmt.Sprintf("  Recs:       %d started, %d complete, %d cached, %d stale, %d errors",
		stats[otel.KindRecsStart], stats[otel.KindRecsComplete], stats[otel.KindRecsCacheHit], stats[otel.KindRecsStale], stats[otel.KindRecsError]))
	lines = append(lines, fmt.Sprintf("  Buffer:     %d / %d events", ring.Len(), ring.Cap()))
	lines = append(lines, "")

	lines = append(lines, DebugHeaderStyle.Render("Recent Events"))
	for _, e := range recent {
		line := fmt.Sprintf("  %6s  %-18s", formatAge(time.Since(e.Time)), string(e.Kind))
		if e.Seq != 0 {
			line += fmt.Sprintf("  seq:%d", e.Seq)
		}
		if e.Generation != 0 {
			line += fmt.Sprintf("  gen:%d", e.Generation)
		}
		if e.Cluster != nil {
			line += fmt.Sprintf("  c:%d", *e.Cluster)
		}
		if e.Msg != "" {
			line += "  " + truncateRunes(e.Msg, 30)
		}
		if e.Err != "" {
			line += "  ERR:" + truncateRunes(e.Err, 30)
		}
		if e.RequestID != "" {
			rid := e.RequestID
			if len(rid) > 8 {
				rid = rid[:8]
			}
			line += "  rid:" + rid
		}
		lines = append(lines, line)
	}

	// Truncate to fit terminal height (subtract chrome added by DebugPanel border/padding)
	maxHeight := max(1, height-debugPanelChrome)
	if len(lines) > maxHeight {
		lines = lines[:maxHeight]
	}

	panelWidth := min(96, width-4)
	if panelWidth < 20 {
		panelWidth = 20
	}

	return DebugPanel.Width(panelWidth).Render(strings.Join(lines, "\n"))
}

// formatAge formats a duration as a compact human string.
// Handles negative durations from clock skew by clamping to "0ms".
func formatAge(d time.Duration) string {
	if d < 0 {
		return "0ms"
	}
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
}

// debugStatusBar renders the status bar for the debug overlay.
func debugStatusBar(width int) string {
	keys := StatusBarKey.Render("d") + StatusBarText.Render(":close")
	return StatusBar.Width(width).Render("  [DEBUG]  " + keys)
}
