// Package palette maps cluster ids to display colors.
//
// The same id always yields the same color, in the scatter view, the
// legend, and the cluster badges. Status colors are kept in a separate table
// and never overlap a cluster color.
package palette

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
)

var clusterColors = []lipgloss.Color{
	"#4f46e5", // indigo
	"#10b981", // emerald
	"#ef4444", // red
	"#f59e0b", // amber
	"#8b5cf6", // violet
	"#06b6d4", // cyan
	"#ec4899", // pink
	"#f97316", // orange
	"#84cc16", // lime
	"#6366f1", // light indigo
}

// Status colors for error/success/warning indicators.
var (
	Error   = lipgloss.Color("#f85149")
	Success = lipgloss.Color("#3fb950")
	Warning = lipgloss.Color("#d29922")
)

// Size is the number of distinct cluster colors.
func Size() int { return len(clusterColors) }

// Color returns the display color for a cluster id.
func Color(clusterID int) lipgloss.Color {
	n := len(clusterColors)
	return clusterColors[(clusterID%n+n)%n]
}

// Swatch renders glyph in the cluster's color.
func Swatch(clusterID int, glyph string) string {
	return lipgloss.NewStyle().Foreground(Color(clusterID)).Render(glyph)
}

// Badge renders a label on the cluster's color with readable text.
func Badge(clusterID int, label string) string {
	bg := Color(clusterID)
	return lipgloss.NewStyle().
		Background(bg).
		Foreground(Contrast(bg)).
		Padding(0, 1).
		Render(label)
}

// Contrast returns black for light backgrounds and white for dark ones.
// Non-hex colors get white.
func Contrast(c lipgloss.Color) lipgloss.Color {
	r, g, b, ok := rgb(string(c))
	if !ok {
		return lipgloss.Color("#ffffff")
	}
	luminance := (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 255
	if luminance > 0.5 {
		return lipgloss.Color("#000000")
	}
	return lipgloss.Color("#ffffff")
}

func rgb(hex string) (r, g, b uint8, ok bool) {
	if len(hex) != 7 || hex[0] != '#' {
		return 0, 0, 0, false
	}
	v, err := strconv.ParseUint(hex[1:], 16, 32)
	if err != nil {
		return 0, 0, 0, false
	}
	return uint8(v >> 16), uint8(v >> 8), uint8(v), true
}
