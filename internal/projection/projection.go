package projection

import (
	"errors"
	"fmt"

	"github.com/abelbrown/tracklens/internal/dataset"
)

// ErrUnknownAxis is returned when an axis names a feature outside the snapshot.
var ErrUnknownAxis = errors.New("unknown axis feature")

// ErrNoData is returned when there is no snapshot to project.
var ErrNoData = errors.New("no snapshot")

// Mode selects planar (2 axes) or spatial (3 axes) projection.
type Mode int

const (
	Planar Mode = iota
	Spatial
)

func (m Mode) String() string {
	if m == Spatial {
		return "3D"
	}
	return "2D"
}

// Dims returns the number of axes used by the mode.
func (m Mode) Dims() int {
	if m == Spatial {
		return 3
	}
	return 2
}

// Axes names the feature on each axis. Z is ignored in planar mode.
type Axes struct {
	X, Y, Z string
}

// Names returns the first n axis feature names.
func (a Axes) Names(n int) []string {
	return []string{a.X, a.Y, a.Z}[:n]
}

// Margin is the blank border around the plot area.
type Margin struct {
	Top, Right, Bottom, Left float64
}

// Viewport is the output area for planar coordinates. Y grows downward.
type Viewport struct {
	Width, Height float64
	Margin        Margin
}

// XRange returns the horizontal output range.
func (v Viewport) XRange() Range {
	return Range{Min: v.Margin.Left, Max: v.Width - v.Margin.Right}
}

// YRange returns the vertical output range, inverted so larger values are drawn higher.
func (v Viewport) YRange() Range {
	return Range{Min: v.Height - v.Margin.Bottom, Max: v.Margin.Top}
}

// Contains reports whether (x, y) lies inside the plot area.
func (v Viewport) Contains(x, y float64) bool {
	return v.XRange().Contains(x) && v.YRange().Contains(y)
}

// DefaultCube is the world-space extent of each spatial axis.
var DefaultCube = Range{Min: -5, Max: 5}

// Point is a projected item or centroid.
type Point struct {
	ID      string // item id; empty for centroids
	Cluster int
	Center  bool
	X, Y, Z float64
}

// Key identifies the inputs a projection was computed from.
type Key struct {
	Generation uint64
	Mode       Mode
	Axes       Axes
	Viewport   Viewport
	Cube       Range
}

// Projection is the projected form of one snapshot.
type Projection struct {
	Key     Key
	Points  []Point // one per item, snapshot order
	Centers []Point // one per cluster center
	Scales  []Scale // one per axis
}

// PointByID returns the projected point of an item.
func (p Projection) PointByID(id string) (Point, bool) {
	for _, pt := range p.Points {
		if pt.ID == id {
			return pt, true
		}
	}
	return Point{}, false
}

// ProjectPlanar maps items and centroids onto the viewport using axes.X and axes.Y.
func ProjectPlanar(snap *dataset.Snapshot, axes Axes, vp Viewport) (Projection, error) {
	key := Key{Mode: Planar, Axes: Axes{X: axes.X, Y: axes.Y}, Viewport: vp}
	return project(snap, key, []Range{vp.XRange(), vp.YRange()})
}

// ProjectSpatial maps items and centroids into a world cube on three axes.
func ProjectSpatial(snap *dataset.Snapshot, axes Axes, cube Range) (Projection, error) {
	key := Key{Mode: Spatial, Axes: axes, Cube: cube}
	return project(snap, key, []Range{cube, cube, cube})
}

func project(snap *dataset.Snapshot, key Key, outs []Range) (Projection, error) {
	if snap == nil {
		return Projection{}, ErrNoData
	}
	key.Generation = snap.Generation()
	schema := snap.Schema()
	names := key.Axes.Names(len(outs))

	cols := make([]int, len(names))
	for i, n := range names {
		cols[i] = schema.Index(n)
		if cols[i] < 0 {
			return Projection{}, fmt.Errorf("%w: %q", ErrUnknownAxis, n)
		}
	}

	items := snap.Items()
	scales := make([]Scale, len(names))
	values := make([]float64, len(items))
	for a, col := range cols {
		for i, it := range items {
			values[i] = it.Features.At(col)
		}
		scales[a] = NewScale(values, outs[a])
	}

	place := func(v dataset.Vector) (x, y, z float64) {
		c := [3]float64{}
		for a, col := range cols {
			c[a] = scales[a].Map(v.At(col))
		}
		return c[0], c[1], c[2]
	}

	p := Projection{
		Key:     key,
		Points:  make([]Point, len(items)),
		Centers: make([]Point, 0, len(snap.Centers())),
		Scales:  scales,
	}
	for i, it := range items {
		x, y, z := place(it.Features)
		p.Points[i] = Point{ID: it.ID, Cluster: it.Cluster, X: x, Y: y, Z: z}
	}
	for _, c := range snap.Centers() {
		x, y, z := place(c.Features)
		p.Centers = append(p.Centers, Point{Cluster: c.Cluster, Center: true, X: x, Y: y, Z: z})
	}
	return p, nil
}

// Cache holds the last projection and recomputes only when the snapshot
// generation, mode, axes, viewport or cube change.
type Cache struct {
	valid    bool
	proj     Projection
	computes int
}

// Get returns the projection for the inputs, reusing the cached one when
// the key is unchanged.
func (c *Cache) Get(snap *dataset.Snapshot, mode Mode, axes Axes, vp Viewport, cube Range) (Projection, error) {
	if snap == nil {
		return Projection{}, ErrNoData
	}
	var key Key
	if mode == Spatial {
		key = Key{Generation: snap.Generation(), Mode: Spatial, Axes: axes, Cube: cube}
	} else {
		key = Key{Generation: snap.Generation(), Mode: Planar, Axes: Axes{X: axes.X, Y: axes.Y}, Viewport: vp}
	}
	if c.valid && c.proj.Key == key {
		return c.proj, nil
	}

	var (
		p   Projection
		err error
	)
	if mode == Spatial {
		p, err = ProjectSpatial(snap, axes, cube)
	} else {
		p, err = ProjectPlanar(snap, axes, vp)
	}
	if err != nil {
		return Projection{}, err
	}
	c.proj = p
	c.valid = true
	c.computes++
	return p, nil
}

// Computes returns how many times the cache had to reproject.
func (c *Cache) Computes() int { return c.computes }

// Invalidate drops the cached projection.
func (c *Cache) Invalidate() { c.valid = false }
