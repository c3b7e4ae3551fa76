package ui

import (
	"math"
	"strconv"

	"github.com/charmbracelet/harmonica"

	"github.com/abelbrown/tracklens/internal/projection"
)

// settleEpsilon is the distance and speed under which a point snaps to
// its target.
const settleEpsilon = 0.01

type particle struct {
	pos, vel [3]float64
}

// motion eases points from their previous projection to the current one
// with a spring. Positions live in the projection's own space: viewport
// cells when planar, the world cube when spatial.
type motion struct {
	spring harmonica.Spring
	target projection.Projection
	has    bool
	parts  map[string]*particle
	moving bool
}

func newMotion(fps int) *motion {
	if fps <= 0 {
		fps = 30
	}
	return &motion{
		spring: harmonica.NewSpring(harmonica.FPS(fps), 6.0, 0.8),
		parts:  make(map[string]*particle),
	}
}

func pointKey(p projection.Point) string {
	if p.Center {
		return "c:" + strconv.Itoa(p.Cluster)
	}
	return "i:" + p.ID
}

func coords(p projection.Point) [3]float64 { return [3]float64{p.X, p.Y, p.Z} }

// retarget sets the next projection. Points animate when only the data or
// the axes changed; a different mode, viewport or cube snaps everything.
func (m *motion) retarget(p projection.Projection) {
	snap := !m.has ||
		m.target.Key.Mode != p.Key.Mode ||
		m.target.Key.Viewport != p.Key.Viewport ||
		m.target.Key.Cube != p.Key.Cube
	m.target, m.has = p, true

	seen := make(map[string]bool, len(p.Points)+len(p.Centers))
	place := func(pt projection.Point) {
		k := pointKey(pt)
		seen[k] = true
		part, ok := m.parts[k]
		if !ok || snap {
			m.parts[k] = &particle{pos: coords(pt)}
			return
		}
		if part.pos != coords(pt) {
			m.moving = true
		}
	}
	for _, pt := range p.Points {
		place(pt)
	}
	for _, pt := range p.Centers {
		place(pt)
	}
	for k := range m.parts {
		if !seen[k] {
			delete(m.parts, k)
		}
	}
	if snap {
		m.moving = false
	}
}

// step advances one frame and reports whether anything is still moving.
func (m *motion) step() bool {
	if !m.moving {
		return false
	}
	still := true
	advance := func(pt projection.Point) {
		part := m.parts[pointKey(pt)]
		if part == nil {
			return
		}
		goal := coords(pt)
		for i := range part.pos {
			part.pos[i], part.vel[i] = m.spring.Update(part.pos[i], part.vel[i], goal[i])
			if math.Abs(part.pos[i]-goal[i]) < settleEpsilon && math.Abs(part.vel[i]) < settleEpsilon {
				part.pos[i], part.vel[i] = goal[i], 0
			} else {
				still = false
			}
		}
	}
	for _, pt := range m.target.Points {
		advance(pt)
	}
	for _, pt := range m.target.Centers {
		advance(pt)
	}
	m.moving = !still
	return m.moving
}

// current returns the target projection with points at their animated
// positions.
func (m *motion) current() (projection.Projection, bool) {
	if !m.has {
		return projection.Projection{}, false
	}
	p := m.target
	move := func(src []projection.Point) []projection.Point {
		out := make([]projection.Point, len(src))
		for i, pt := range src {
			if part := m.parts[pointKey(pt)]; part != nil {
				pt.X, pt.Y, pt.Z = part.pos[0], part.pos[1], part.pos[2]
			}
			out[i] = pt
		}
		return out
	}
	p.Points = move(p.Points)
	p.Centers = move(p.Centers)
	return p, true
}
