package projection

import (
	"math"
	"sort"
	"time"
)

// Angle returns the rotation angle for a frame, derived only from elapsed
// time so frame-rate jitter never accumulates.
func Angle(elapsed time.Duration, radiansPerSecond float64) float64 {
	a := math.Mod(elapsed.Seconds()*radiansPerSecond, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}

// ScreenPoint is a world point after rotation and orthographic mapping.
type ScreenPoint struct {
	Point
	SX, SY float64
	Depth  float64 // larger is closer to the viewer
}

// Frame rotates a spatial projection by yaw (around Y) then tilt (around X)
// and maps the result onto vp. Points come back far-to-near so later
// entries draw on top. A planar projection is mapped through unchanged.
func (p Projection) Frame(yaw, tilt float64, vp Viewport) []ScreenPoint {
	out := make([]ScreenPoint, 0, len(p.Points)+len(p.Centers))
	if p.Key.Mode != Spatial {
		for _, pt := range p.Points {
			out = append(out, ScreenPoint{Point: pt, SX: pt.X, SY: pt.Y})
		}
		for _, pt := range p.Centers {
			out = append(out, ScreenPoint{Point: pt, SX: pt.X, SY: pt.Y, Depth: 1})
		}
		return out
	}

	// Any rotation of the cube stays inside the sphere through its corners.
	half := math.Max(math.Abs(p.Key.Cube.Min), math.Abs(p.Key.Cube.Max))
	r := half * math.Sqrt(3)
	if r == 0 {
		r = 1
	}
	sx := Linear(Range{-r, r}, vp.XRange())
	sy := Linear(Range{-r, r}, vp.YRange())

	cy, sy0 := math.Cos(yaw), math.Sin(yaw)
	ct, st := math.Cos(tilt), math.Sin(tilt)
	mid := p.Key.Cube.Mid()

	place := func(pt Point) ScreenPoint {
		x, y, z := pt.X-mid, pt.Y-mid, pt.Z-mid
		x1 := x*cy + z*sy0
		z1 := -x*sy0 + z*cy
		y2 := y*ct - z1*st
		z2 := y*st + z1*ct
		return ScreenPoint{Point: pt, SX: sx.Map(x1), SY: sy.Map(y2), Depth: z2}
	}
	for _, pt := range p.Points {
		out = append(out, place(pt))
	}
	for _, pt := range p.Centers {
		out = append(out, place(pt))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Depth < out[j].Depth })
	return out
}
