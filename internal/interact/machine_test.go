package interact

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/abelbrown/tracklens/internal/dataset"
	"github.com/abelbrown/tracklens/internal/projection"
)

func snapshot(t *testing.T, gen uint64, clusters []int, feats ...string) *dataset.Snapshot {
	t.Helper()
	if len(feats) == 0 {
		feats = []string{"danceability", "energy", "valence"}
	}
	in := dataset.Input{Features: feats}
	seen := map[int]bool{}
	for i, c := range clusters {
		fv := map[string]float64{}
		for j, f := range feats {
			fv[f] = float64(i+j) / 10
		}
		in.Items = append(in.Items, dataset.RawItem{ID: fmt.Sprintf("t%02d", i), Cluster: c, Features: fv})
		if !seen[c] {
			seen[c] = true
			in.Centers = append(in.Centers, dataset.RawCenter{Cluster: c, Features: fv})
		}
	}
	snap, err := dataset.New(in, gen)
	if err != nil {
		t.Fatal(err)
	}
	return snap
}

func TestHoverTransitions(t *testing.T) {
	m := New([]string{"energy"}, 5, projection.Planar)
	m.Replace(snapshot(t, 1, []int{0, 1, 1}))

	if m.PointerEnter("missing", Pointer{1, 1}) {
		t.Error("entering an unknown item should be rejected")
	}
	if m.Hover().Phase != Idle {
		t.Fatal("rejected enter changed state")
	}

	if !m.PointerEnter("t01", Pointer{3, 4}) {
		t.Fatal("PointerEnter rejected")
	}
	m.PointerMove("t01", Pointer{5, 6})
	if h := m.Hover(); h.Phase != Hovering || h.ItemID != "t01" || h.Pointer != (Pointer{5, 6}) {
		t.Errorf("after move hover = %+v", h)
	}

	m.PointerMove("t02", Pointer{7, 8})
	if h := m.Hover(); h.ItemID != "t02" || h.Pointer != (Pointer{7, 8}) {
		t.Errorf("move onto another item: hover = %+v", h)
	}
	if it, ok := m.HoveredItem(); !ok || it.ID != "t02" {
		t.Errorf("HoveredItem = %v, %v", it.ID, ok)
	}

	m.PointerLeave()
	if m.Hover().Phase != Idle {
		t.Error("PointerLeave did not return to Idle")
	}
}

func TestReplaceResetsHover(t *testing.T) {
	m := New([]string{"energy"}, 5, projection.Planar)
	m.Replace(snapshot(t, 1, []int{0, 1, 2}))
	m.PointerEnter("t00", Pointer{2, 2})

	// The same item id exists in the new snapshot; hover still resets.
	m.Replace(snapshot(t, 2, []int{0, 1, 2}))
	if h := m.Hover(); h.Phase != Idle || h.ItemID != "" {
		t.Errorf("hover after replace = %+v, want Idle", h)
	}
	if _, ok := m.HoveredItem(); ok {
		t.Error("HoveredItem reported an item after replace")
	}
}

func TestSelectionPersistence(t *testing.T) {
	m := New(nil, 5, projection.Planar)
	m.Replace(snapshot(t, 1, []int{3, 1, 2}))
	if c, ok := m.Selected(); !ok || c != 1 {
		t.Fatalf("initial selection = %d, %v; want lowest id 1", c, ok)
	}

	if !m.SelectCluster(3) {
		t.Fatal("SelectCluster(3) rejected")
	}
	m.Replace(snapshot(t, 2, []int{3, 4}))
	if c, _ := m.Selected(); c != 3 {
		t.Errorf("selection = %d, want 3 kept", c)
	}

	m.Replace(snapshot(t, 3, []int{5, 4}))
	if c, _ := m.Selected(); c != 4 {
		t.Errorf("selection = %d, want fallback to lowest id 4", c)
	}
}

func TestSelectClusterRejectsUnknown(t *testing.T) {
	m := New(nil, 5, projection.Planar)
	if m.SelectCluster(0) {
		t.Error("selecting without a snapshot should be rejected")
	}
	m.Replace(snapshot(t, 1, []int{0, 1}))
	if m.SelectCluster(7) {
		t.Error("SelectCluster(7) accepted")
	}
	if c, _ := m.Selected(); c != 0 {
		t.Errorf("rejected select changed selection to %d", c)
	}
}

func TestNextPrevClusterWrap(t *testing.T) {
	m := New(nil, 5, projection.Planar)
	m.Replace(snapshot(t, 1, []int{2, 0, 5}))
	var got []int
	for i := 0; i < 4; i++ {
		m.NextCluster()
		c, _ := m.Selected()
		got = append(got, c)
	}
	if want := []int{2, 5, 0, 2}; !reflect.DeepEqual(got, want) {
		t.Errorf("NextCluster sequence = %v, want %v", got, want)
	}
	m.PrevCluster()
	m.PrevCluster()
	if c, _ := m.Selected(); c != 5 {
		t.Errorf("after two PrevCluster = %d, want 5", c)
	}
}

func TestAxes(t *testing.T) {
	m := New(nil, 5, projection.Planar)
	m.Replace(snapshot(t, 1, []int{0, 1}))
	if a := m.Axes(); a != (projection.Axes{X: "danceability", Y: "energy", Z: "valence"}) {
		t.Fatalf("default axes = %+v", a)
	}
	if m.SetAxis(AxisX, "tempo") {
		t.Error("SetAxis accepted a feature outside features_used")
	}
	if m.Axis(AxisX) != "danceability" {
		t.Error("rejected SetAxis changed the axis")
	}
	if !m.SetAxis(AxisY, "valence") || m.Axis(AxisY) != "valence" {
		t.Error("SetAxis(Y, valence) failed")
	}
	m.CycleAxis(AxisY, 1)
	if m.Axis(AxisY) != "danceability" {
		t.Errorf("CycleAxis wrap = %q, want danceability", m.Axis(AxisY))
	}
	m.CycleAxis(AxisY, -1)
	if m.Axis(AxisY) != "valence" {
		t.Errorf("CycleAxis back = %q, want valence", m.Axis(AxisY))
	}
}

func TestAxisChangeLeavesSelection(t *testing.T) {
	m := New(nil, 5, projection.Planar)
	m.Replace(snapshot(t, 1, []int{0, 1, 2}))
	m.SelectCluster(2)
	m.CycleAxis(AxisX, 1)
	if c, _ := m.Selected(); c != 2 {
		t.Errorf("axis change moved selection to %d", c)
	}
}

func TestReplaceKeepsValidAxes(t *testing.T) {
	m := New(nil, 5, projection.Planar)
	m.Replace(snapshot(t, 1, []int{0, 1}))
	m.SetAxis(AxisX, "valence")
	m.SetAxis(AxisZ, "danceability")
	m.Replace(snapshot(t, 2, []int{0, 1}, "energy", "valence"))
	a := m.Axes()
	if a.X != "valence" {
		t.Errorf("X = %q, want valence kept", a.X)
	}
	if a.Y != "energy" {
		t.Errorf("Y = %q, want energy kept", a.Y)
	}
	if a.Z != "energy" {
		t.Errorf("Z = %q, want first feature fill", a.Z)
	}
}

func TestModeToggleResetsHover(t *testing.T) {
	m := New(nil, 5, projection.Planar)
	m.Replace(snapshot(t, 1, []int{0, 1}))
	m.PointerEnter("t00", Pointer{})
	if m.ToggleMode() != projection.Spatial {
		t.Fatal("ToggleMode did not switch to spatial")
	}
	if m.Hover().Phase != Idle {
		t.Error("mode switch kept hover")
	}
	if m.SetMode(projection.Mode(9)) {
		t.Error("SetMode accepted an unknown mode")
	}
}

func TestClusterCountBounds(t *testing.T) {
	m := New(nil, 40, projection.Planar)
	if m.ClusterCount() != 10 {
		t.Errorf("New clamps to %d, want 10", m.ClusterCount())
	}
	if m.SetClusterCount(1) || m.SetClusterCount(11) {
		t.Error("out-of-range SetClusterCount accepted")
	}
	if !m.SetClusterCount(4) || m.ClusterCount() != 4 {
		t.Error("SetClusterCount(4) failed")
	}
	if got := m.AdjustClusterCount(-10); got != 2 {
		t.Errorf("AdjustClusterCount(-10) = %d, want 2", got)
	}
	if got := m.AdjustClusterCount(3); got != 5 {
		t.Errorf("AdjustClusterCount(3) = %d, want 5", got)
	}
}

func TestReplaceSyncsClusterCount(t *testing.T) {
	m := New(nil, 5, projection.Planar)
	in := dataset.Input{
		Features:     []string{"energy"},
		Items:        []dataset.RawItem{{ID: "a", Features: map[string]float64{"energy": 1}}},
		Centers:      []dataset.RawCenter{{Features: map[string]float64{"energy": 1}}},
		ClusterCount: 7,
	}
	snap, err := dataset.New(in, 1)
	if err != nil {
		t.Fatal(err)
	}
	m.Replace(snap)
	if m.ClusterCount() != 7 {
		t.Errorf("ClusterCount = %d, want 7 from the snapshot", m.ClusterCount())
	}
}

func TestToggleFeature(t *testing.T) {
	m := New([]string{"danceability", "energy", "energy"}, 4, projection.Planar)
	if got := m.Params(); !reflect.DeepEqual(got.Features, []string{"danceability", "energy"}) || got.ClusterCount != 4 {
		t.Fatalf("Params = %+v", got)
	}
	if !m.ToggleFeature("danceability") {
		t.Fatal("ToggleFeature rejected")
	}
	if m.ToggleFeature("energy") {
		t.Error("disabling the last feature should be rejected")
	}
	if m.ToggleFeature("tempo") {
		t.Error("toggling an unknown feature should be rejected")
	}
	if got := m.Params().Features; !reflect.DeepEqual(got, []string{"energy"}) {
		t.Errorf("Features = %v, want [energy]", got)
	}
	if err := m.Params().Validate(); err != nil {
		t.Errorf("Params invalid: %v", err)
	}
}
