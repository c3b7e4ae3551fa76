package dataset

import (
	"errors"
	"fmt"
	"math"
	"testing"
)

func feat(d, e float64) map[string]float64 {
	return map[string]float64{"danceability": d, "energy": e}
}

// twelveItems builds 12 items across clusters {0,1,2}; cluster 1 has 6 members.
func twelveItems() Input {
	clusters := []int{0, 1, 1, 2, 1, 0, 1, 2, 1, 0, 1, 2}
	in := Input{Features: []string{"danceability", "energy"}, ClusterCount: 3}
	for i, c := range clusters {
		in.Items = append(in.Items, RawItem{
			ID:       fmt.Sprintf("t%02d", i),
			Name:     fmt.Sprintf("Track %d", i),
			Artist:   "Artist",
			Cluster:  c,
			Features: feat(float64(i)/12, 1-float64(i)/12),
		})
	}
	for c := 0; c < 3; c++ {
		in.Centers = append(in.Centers, RawCenter{Cluster: c, Features: feat(0.5, 0.5)})
	}
	return in
}

func TestNewSnapshot(t *testing.T) {
	s, err := New(twelveItems(), 1)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if s.Generation() != 1 {
		t.Errorf("Generation() = %d, want 1", s.Generation())
	}
	if s.Len() != 12 {
		t.Errorf("Len() = %d, want 12", s.Len())
	}
	ids := s.ClusterIDs()
	if len(ids) != 3 || ids[0] != 0 || ids[1] != 1 || ids[2] != 2 {
		t.Errorf("ClusterIDs() = %v, want [0 1 2]", ids)
	}
	members := s.Members(1)
	if len(members) != 6 {
		t.Fatalf("Members(1) = %d items, want 6", len(members))
	}
	want := []string{"t01", "t02", "t04", "t06", "t08", "t10"}
	for i, m := range members {
		if m.ID != want[i] {
			t.Errorf("Members(1)[%d] = %s, want %s", i, m.ID, want[i])
		}
	}
	if s.ClusterCount() != 3 {
		t.Errorf("ClusterCount() = %d, want 3", s.ClusterCount())
	}
}

func TestVectorGet(t *testing.T) {
	s, err := New(twelveItems(), 1)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	item, ok := s.ItemByID("t06")
	if !ok {
		t.Fatal("ItemByID(t06) not found")
	}
	v, ok := item.Features.Get("danceability")
	if !ok || v != 0.5 {
		t.Errorf("Get(danceability) = %v, %v; want 0.5, true", v, ok)
	}
	if _, ok := item.Features.Get("tempo"); ok {
		t.Error("Get(tempo) should report false for a feature outside the schema")
	}
}

func TestNewDropsExtraFeatures(t *testing.T) {
	in := twelveItems()
	in.Items[0].Features["tempo"] = 120
	s, err := New(in, 1)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	item, _ := s.ItemByID("t00")
	if item.Features.Len() != 2 {
		t.Errorf("Features.Len() = %d, want 2", item.Features.Len())
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *Input)
		field  string
	}{
		{"no features", func(in *Input) { in.Features = nil }, "features_used"},
		{"duplicate feature", func(in *Input) { in.Features = []string{"energy", "energy"} }, "features_used"},
		{"no items", func(in *Input) { in.Items = nil }, "items"},
		{"duplicate id", func(in *Input) { in.Items[1].ID = in.Items[0].ID }, "items"},
		{"empty id", func(in *Input) { in.Items[3].ID = "" }, "items"},
		{"negative cluster", func(in *Input) { in.Items[0].Cluster = -1 }, "items"},
		{"missing feature", func(in *Input) { delete(in.Items[2].Features, "energy") }, "items"},
		{"nan feature", func(in *Input) { in.Items[2].Features["energy"] = math.NaN() }, "items"},
		{"inf feature", func(in *Input) { in.Items[2].Features["energy"] = math.Inf(1) }, "items"},
		{"missing center", func(in *Input) { in.Centers = in.Centers[:2] }, "cluster_centers"},
		{"orphan center", func(in *Input) {
			in.Centers = append(in.Centers, RawCenter{Cluster: 7, Features: feat(0, 0)})
		}, "cluster_centers"},
		{"duplicate center", func(in *Input) { in.Centers[1].Cluster = 0 }, "cluster_centers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := twelveItems()
			tt.mutate(&in)
			_, err := New(in, 1)
			if err == nil {
				t.Fatal("New() should fail")
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("error %T is not *ValidationError", err)
			}
			if ve.Field != tt.field {
				t.Errorf("Field = %q, want %q", ve.Field, tt.field)
			}
		})
	}
}

func TestSnapshotAccessorsReturnCopies(t *testing.T) {
	s, err := New(twelveItems(), 1)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	ids := s.ClusterIDs()
	ids[0] = 99
	if s.ClusterIDs()[0] != 0 {
		t.Error("ClusterIDs() must return a copy")
	}
	names := s.Features()
	names[0] = "mutated"
	if s.Features()[0] != "danceability" {
		t.Error("Features() must return a copy")
	}
}

func TestValidationErrorMessage(t *testing.T) {
	e := &ValidationError{Field: "items", Index: -1, Reason: "no items"}
	if got := e.Error(); got != "invalid items: no items" {
		t.Errorf("Error() = %q", got)
	}
	e = &ValidationError{Field: "items", Index: 3, Reason: "empty id"}
	if got := e.Error(); got != "invalid items[3]: empty id" {
		t.Errorf("Error() = %q", got)
	}
}
