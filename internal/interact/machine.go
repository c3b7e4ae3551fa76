// Package interact is the local interaction state: view mode, axes, hover,
// cluster selection, and the parameters for the next recompute.
//
// Every transition is synchronous. A rejected transition returns false
// and leaves the state exactly as it was.
package interact

import (
	"slices"

	"github.com/abelbrown/tracklens/internal/dataset"
	"github.com/abelbrown/tracklens/internal/features"
	"github.com/abelbrown/tracklens/internal/projection"
	"github.com/abelbrown/tracklens/internal/reconfig"
)

// Axis names one of the projection axes.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	}
	return "?"
}

// Pointer is a position on the rendered plot, in terminal cells.
type Pointer struct {
	X, Y int
}

// HoverPhase is Idle or Hovering.
type HoverPhase int

const (
	Idle HoverPhase = iota
	Hovering
)

// Hover is the transient hover state.
type Hover struct {
	Phase   HoverPhase
	ItemID  string
	Pointer Pointer
}

// Machine holds the interaction state for one visualization.
type Machine struct {
	snap     *dataset.Snapshot
	registry features.Registry

	mode projection.Mode
	axes projection.Axes

	hover Hover

	selected    int
	hasSelected bool

	clusterCount int
	catalog      []string
	enabled      map[string]bool
}

// New returns a machine with no snapshot. catalog is the set of features a
// recompute may request, all enabled initially; clusterCount is clamped
// into the allowed range.
func New(catalog []string, clusterCount int, mode projection.Mode) *Machine {
	m := &Machine{
		mode:    mode,
		enabled: make(map[string]bool, len(catalog)),
	}
	for _, f := range catalog {
		if f == "" || m.enabled[f] {
			continue
		}
		m.catalog = append(m.catalog, f)
		m.enabled[f] = true
	}
	m.SetClusterCount(clamp(clusterCount))
	return m
}

// Replace installs a new snapshot. Hover always resets. Selection is kept
// when the cluster still exists, otherwise the lowest cluster id is
// selected. Axes naming features that still exist are kept.
func (m *Machine) Replace(snap *dataset.Snapshot) {
	m.hover = Hover{}
	m.snap = snap
	if snap == nil {
		m.registry = features.Registry{}
		m.hasSelected = false
		return
	}

	m.registry = features.NewRegistry(snap.Features())
	defaults := m.registry.Defaults(3)
	if !m.registry.Has(m.axes.X) {
		m.axes.X = defaults[0]
	}
	if !m.registry.Has(m.axes.Y) {
		m.axes.Y = defaults[1]
	}
	if !m.registry.Has(m.axes.Z) {
		m.axes.Z = defaults[2]
	}

	if !m.hasSelected || !snap.HasCluster(m.selected) {
		ids := snap.ClusterIDs()
		m.selected, m.hasSelected = ids[0], true
	}
	if n := snap.ClusterCount(); n >= reconfig.MinClusters && n <= reconfig.MaxClusters {
		m.clusterCount = n
	}
}

// Snapshot returns the snapshot the state refers to.
func (m *Machine) Snapshot() *dataset.Snapshot { return m.snap }

// Registry returns the selectable features of the current snapshot.
func (m *Machine) Registry() features.Registry { return m.registry }

// Mode returns the view mode.
func (m *Machine) Mode() projection.Mode { return m.mode }

// SetMode switches between planar and spatial. Hover resets because the
// rendered shapes move.
func (m *Machine) SetMode(mode projection.Mode) bool {
	if mode != projection.Planar && mode != projection.Spatial {
		return false
	}
	if mode != m.mode {
		m.mode = mode
		m.hover = Hover{}
	}
	return true
}

// ToggleMode flips between planar and spatial.
func (m *Machine) ToggleMode() projection.Mode {
	if m.mode == projection.Planar {
		m.SetMode(projection.Spatial)
	} else {
		m.SetMode(projection.Planar)
	}
	return m.mode
}

// Hover returns the hover state.
func (m *Machine) Hover() Hover { return m.hover }

// PointerEnter starts hovering itemID. Unknown items are rejected.
func (m *Machine) PointerEnter(itemID string, p Pointer) bool {
	if m.snap == nil {
		return false
	}
	if _, ok := m.snap.ItemByID(itemID); !ok {
		return false
	}
	m.hover = Hover{Phase: Hovering, ItemID: itemID, Pointer: p}
	return true
}

// PointerMove updates the pointer over itemID. Moving within the hovered
// item only updates coordinates; moving onto another item enters it.
func (m *Machine) PointerMove(itemID string, p Pointer) bool {
	if m.hover.Phase == Hovering && m.hover.ItemID == itemID {
		m.hover.Pointer = p
		return true
	}
	return m.PointerEnter(itemID, p)
}

// PointerLeave returns to Idle.
func (m *Machine) PointerLeave() {
	m.hover = Hover{}
}

// HoveredItem returns the hovered item, if any.
func (m *Machine) HoveredItem() (dataset.Item, bool) {
	if m.hover.Phase != Hovering || m.snap == nil {
		return dataset.Item{}, false
	}
	return m.snap.ItemByID(m.hover.ItemID)
}

// Selected returns the selected cluster id.
func (m *Machine) Selected() (int, bool) { return m.selected, m.hasSelected }

// SelectCluster selects id if the snapshot has it.
func (m *Machine) SelectCluster(id int) bool {
	if m.snap == nil || !m.snap.HasCluster(id) {
		return false
	}
	m.selected, m.hasSelected = id, true
	return true
}

// NextCluster selects the next cluster id in ascending order, wrapping.
func (m *Machine) NextCluster() bool { return m.stepCluster(1) }

// PrevCluster selects the previous cluster id, wrapping.
func (m *Machine) PrevCluster() bool { return m.stepCluster(-1) }

func (m *Machine) stepCluster(delta int) bool {
	if m.snap == nil {
		return false
	}
	ids := m.snap.ClusterIDs()
	i := slices.Index(ids, m.selected)
	switch {
	case !m.hasSelected || i < 0:
		i = 0
	default:
		i = ((i+delta)%len(ids) + len(ids)) % len(ids)
	}
	m.selected, m.hasSelected = ids[i], true
	return true
}

// Axes returns the chosen axis features.
func (m *Machine) Axes() projection.Axes { return m.axes }

// Axis returns the feature on a.
func (m *Machine) Axis(a Axis) string {
	switch a {
	case AxisX:
		return m.axes.X
	case AxisY:
		return m.axes.Y
	case AxisZ:
		return m.axes.Z
	}
	return ""
}

// SetAxis puts feature on a. Features outside features_used are rejected.
func (m *Machine) SetAxis(a Axis, feature string) bool {
	if !m.registry.Has(feature) {
		return false
	}
	switch a {
	case AxisX:
		m.axes.X = feature
	case AxisY:
		m.axes.Y = feature
	case AxisZ:
		m.axes.Z = feature
	default:
		return false
	}
	return true
}

// CycleAxis moves a by delta positions through the registry.
func (m *Machine) CycleAxis(a Axis, delta int) bool {
	if m.registry.Len() == 0 {
		return false
	}
	return m.SetAxis(a, m.registry.Step(m.Axis(a), delta))
}

// ClusterCount returns the cluster count the next recompute will ask for.
func (m *Machine) ClusterCount() int { return m.clusterCount }

// SetClusterCount sets the slider. Out-of-range values are rejected.
func (m *Machine) SetClusterCount(n int) bool {
	if n < reconfig.MinClusters || n > reconfig.MaxClusters {
		return false
	}
	m.clusterCount = n
	return true
}

// AdjustClusterCount moves the slider by d, clamped to the range.
func (m *Machine) AdjustClusterCount(d int) int {
	m.clusterCount = clamp(m.clusterCount + d)
	return m.clusterCount
}

func clamp(n int) int {
	return max(reconfig.MinClusters, min(reconfig.MaxClusters, n))
}

// Catalog returns the features a recompute may request, in order.
func (m *Machine) Catalog() []string { return slices.Clone(m.catalog) }

// Enabled reports whether name is part of the next recompute.
func (m *Machine) Enabled(name string) bool { return m.enabled[name] }

// ToggleFeature flips name in the recompute subset. Unknown names and
// disabling the last enabled feature are rejected.
func (m *Machine) ToggleFeature(name string) bool {
	on, known := m.enabled[name]
	if !known {
		return false
	}
	if on && len(m.enabledFeatures()) == 1 {
		return false
	}
	m.enabled[name] = !on
	return true
}

func (m *Machine) enabledFeatures() []string {
	out := make([]string, 0, len(m.catalog))
	for _, f := range m.catalog {
		if m.enabled[f] {
			out = append(out, f)
		}
	}
	return out
}

// Params returns the batched edits for the next recompute.
func (m *Machine) Params() reconfig.Params {
	return reconfig.Params{ClusterCount: m.clusterCount, Features: m.enabledFeatures()}
}
