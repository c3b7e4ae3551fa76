package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/tracklens/internal/palette"
	"github.com/abelbrown/tracklens/internal/projection"
)

// Screen layout, in terminal cells.
const (
	sidePanelWidth = 42
	headerLines    = 1
	footerLines    = 2 // status bar + help
	yGutter        = 7 // y tick labels left of the plot
	minPlotWidth   = 24
	minPlotHeight  = 8

	// tilt is the fixed elevation of the spatial camera, in radians.
	tilt = 0.45
)

// layout places the plot inside the terminal.
type layout struct {
	plotW, plotH int
}

func newLayout(width, height int) layout {
	return layout{
		plotW: max(minPlotWidth, width-sidePanelWidth),
		plotH: max(minPlotHeight, height-headerLines-footerLines),
	}
}

// viewport leaves the left gutter for y ticks and the two bottom rows for
// the x axis line and its labels.
func (l layout) viewport() projection.Viewport {
	return projection.Viewport{
		Width:  float64(l.plotW - 1),
		Height: float64(l.plotH - 1),
		Margin: projection.Margin{Left: yGutter, Bottom: 2},
	}
}

// plotCell converts a terminal position to a plot cell.
func (l layout) plotCell(x, y int) (col, row int, ok bool) {
	col, row = x, y-headerLines
	ok = col >= 0 && col < l.plotW && row >= 0 && row < l.plotH
	return col, row, ok
}

func cellOf(sp projection.ScreenPoint) (col, row int) {
	return int(math.Round(sp.SX)), int(math.Round(sp.SY))
}

// hitTest returns the item drawn at (col, row), or the nearest one within
// one cell. Nearer points win ties since the frame is ordered far to near.
func hitTest(frame []projection.ScreenPoint, col, row int) (string, bool) {
	best, bestD := "", 2
	for i := len(frame) - 1; i >= 0; i-- {
		sp := frame[i]
		if sp.Center {
			continue
		}
		c, r := cellOf(sp)
		d := max(abs(c-col), abs(r-row))
		if d < bestD {
			best, bestD = sp.ID, d
			if d == 0 {
				break
			}
		}
	}
	return best, best != ""
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

type cell struct {
	r     rune
	color lipgloss.TerminalColor
	bold  bool
	faint bool
}

type grid struct {
	w, h  int
	cells [][]cell
}

func newGrid(w, h int) *grid {
	g := &grid{w: w, h: h, cells: make([][]cell, h)}
	for i := range g.cells {
		row := make([]cell, w)
		for j := range row {
			row[j] = cell{r: ' '}
		}
		g.cells[i] = row
	}
	return g
}

func (g *grid) set(col, row int, c cell) {
	if col < 0 || row < 0 || col >= g.w || row >= g.h {
		return
	}
	g.cells[row][col] = c
}

func (g *grid) text(col, row int, s string, color lipgloss.TerminalColor) {
	for _, r := range s {
		g.set(col, row, cell{r: r, color: color})
		col++
	}
}

// line draws a dotted segment between two cells.
func (g *grid) line(c0, r0, c1, r1 int, color lipgloss.TerminalColor) {
	steps := max(abs(c1-c0), abs(r1-r0))
	if steps == 0 {
		return
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		c := int(math.Round(float64(c0) + t*float64(c1-c0)))
		r := int(math.Round(float64(r0) + t*float64(r1-r0)))
		g.set(c, r, cell{r: '·', color: color})
	}
}

func (g *grid) String() string {
	styles := make(map[cell]lipgloss.Style)
	var b strings.Builder
	for i, row := range g.cells {
		if i > 0 {
			b.WriteByte('\n')
		}
		for _, c := range row {
			if c.color == nil && !c.bold && !c.faint {
				b.WriteRune(c.r)
				continue
			}
			key := cell{color: c.color, bold: c.bold, faint: c.faint}
			st, ok := styles[key]
			if !ok {
				st = lipgloss.NewStyle().Bold(c.bold).Faint(c.faint)
				if c.color != nil {
					st = st.Foreground(c.color)
				}
				styles[key] = st
			}
			b.WriteString(st.Render(string(c.r)))
		}
	}
	return b.String()
}

// scatterState is what the scatter renderer needs besides the frame.
type scatterState struct {
	proj        projection.Projection
	frame       []projection.ScreenPoint
	yaw         float64
	labels      []string // axis labels, one per projection axis
	selected    int
	hasSelected bool
	hovered     string
}

// Glyphs for points.
const (
	glyphItem     = '•'
	glyphSelected = '●'
	glyphHovered  = '◉'
	glyphCenter   = '✚'
)

func renderScatter(l layout, st scatterState) string {
	g := newGrid(l.plotW, l.plotH)
	vp := l.viewport()

	if st.proj.Key.Mode == projection.Spatial {
		drawSpatialAxes(g, st, vp)
	} else {
		drawPlanarAxes(g, st, l)
	}

	for _, sp := range st.frame {
		col, row := cellOf(sp)
		c := cell{color: palette.Color(sp.Cluster)}
		switch {
		case sp.Center:
			c.r, c.bold = glyphCenter, true
		case sp.ID == st.hovered:
			c.r, c.bold, c.color = glyphHovered, true, colorHighlight
		case st.hasSelected && sp.Cluster == st.selected:
			c.r = glyphSelected
		default:
			c.r = glyphItem
		}
		if st.proj.Key.Mode == projection.Spatial && sp.Depth < 0 && sp.ID != st.hovered {
			c.faint = true
		}
		g.set(col, row, c)
	}
	return g.String()
}

func drawPlanarAxes(g *grid, st scatterState, l layout) {
	axisRow := l.plotH - 2
	for r := 0; r < axisRow; r++ {
		g.set(yGutter-1, r, cell{r: '│', color: colorAxis})
	}
	g.set(yGutter-1, axisRow, cell{r: '└', color: colorAxis})
	for c := yGutter; c < l.plotW; c++ {
		g.set(c, axisRow, cell{r: '─', color: colorAxis})
	}
	if len(st.proj.Scales) < 2 {
		return
	}

	xs, ys := st.proj.Scales[0], st.proj.Scales[1]
	g.text(0, 0, fmt.Sprintf("%6.2f", ys.Domain.Max), colorSecondary)
	g.text(0, axisRow-1, fmt.Sprintf("%6.2f", ys.Domain.Min), colorSecondary)

	labelRow := l.plotH - 1
	lo := fmt.Sprintf("%.2f", xs.Domain.Min)
	hi := fmt.Sprintf("%.2f", xs.Domain.Max)
	g.text(yGutter, labelRow, lo, colorSecondary)
	g.text(l.plotW-len(hi), labelRow, hi, colorSecondary)
	if len(st.labels) > 0 {
		name := st.labels[0] + " →"
		g.text(max(yGutter+len(lo)+1, (l.plotW-len([]rune(name)))/2), labelRow, name, colorSecondary)
	}
	if len(st.labels) > 1 {
		drawYLabel(g, st.labels[1], axisRow)
	}
}

// drawYLabel writes the y feature name down the left edge of the gutter,
// between the two tick labels.
func drawYLabel(g *grid, label string, axisRow int) {
	runes := append([]rune{'↑'}, []rune(label)...)
	top, bottom := 2, axisRow-3
	if n := bottom - top + 1; len(runes) > n {
		if n <= 0 {
			return
		}
		runes = runes[:n]
	}
	start := max(top, (axisRow-len(runes))/2)
	for i, r := range runes {
		g.set(0, start+i, cell{r: r, color: colorSecondary})
	}
}

// drawSpatialAxes draws the three world axes through the cube center,
// rotated with the points.
func drawSpatialAxes(g *grid, st scatterState, vp projection.Viewport) {
	cube := st.proj.Key.Cube
	mid := cube.Mid()
	guide := projection.Projection{
		Key: st.proj.Key,
		Points: []projection.Point{
			{ID: "o", X: mid, Y: mid, Z: mid},
			{ID: "x", X: cube.Max, Y: mid, Z: mid},
			{ID: "y", X: mid, Y: cube.Max, Z: mid},
			{ID: "z", X: mid, Y: mid, Z: cube.Max},
		},
	}
	tips := make(map[string][2]int, 4)
	for _, sp := range guide.Frame(st.yaw, tilt, vp) {
		c, r := cellOf(sp)
		tips[sp.ID] = [2]int{c, r}
	}
	o := tips["o"]
	for i, name := range []string{"x", "y", "z"} {
		t := tips[name]
		g.line(o[0], o[1], t[0], t[1], colorAxis)
		label := name
		if i < len(st.labels) {
			label = name + ":" + st.labels[i]
		}
		g.text(t[0], t[1], label, colorSecondary)
	}
}
