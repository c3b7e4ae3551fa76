// Package dataset holds the immutable, versioned view of clustered tracks.
//
// A Snapshot is built once from a clustering response and never mutated.
// Replacing the displayed data means building a new Snapshot with a higher
// generation and swapping the pointer.
package dataset

import (
	"fmt"
	"math"
	"sort"
)

// Schema is the ordered list of feature names a snapshot was clustered on.
type Schema struct {
	names []string
	index map[string]int
}

// NewSchema builds a schema from ordered feature names.
// Names must be non-empty and unique.
func NewSchema(names []string) (*Schema, error) {
	if len(names) == 0 {
		return nil, &ValidationError{Field: "features_used", Index: -1, Reason: "no features"}
	}
	s := &Schema{
		names: make([]string, len(names)),
		index: make(map[string]int, len(names)),
	}
	for i, n := range names {
		if n == "" {
			return nil, &ValidationError{Field: "features_used", Index: i, Reason: "empty name"}
		}
		if _, dup := s.index[n]; dup {
			return nil, &ValidationError{Field: "features_used", Index: i, Reason: "duplicate feature " + n}
		}
		s.names[i] = n
		s.index[n] = i
	}
	return s, nil
}

// Names returns a copy of the feature names in order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Len returns the number of features.
func (s *Schema) Len() int { return len(s.names) }

// Index returns the position of name, or -1.
func (s *Schema) Index(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// Has reports whether name is part of the schema.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// vector builds a Vector from a loose feature map. Keys outside the schema
// are dropped; missing or non-finite values are an error.
func (s *Schema) vector(values map[string]float64) (Vector, error) {
	out := make([]float64, len(s.names))
	for i, n := range s.names {
		v, ok := values[n]
		if !ok {
			return Vector{}, fmt.Errorf("missing feature %q", n)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Vector{}, fmt.Errorf("feature %q is not finite", n)
		}
		out[i] = v
	}
	return Vector{schema: s, values: out}, nil
}

// Vector is an explicit feature-name to value mapping aligned to a Schema.
type Vector struct {
	schema *Schema
	values []float64
}

// Get returns the value for a feature name. Unknown names report false.
func (v Vector) Get(name string) (float64, bool) {
	if v.schema == nil {
		return 0, false
	}
	i := v.schema.Index(name)
	if i < 0 {
		return 0, false
	}
	return v.values[i], true
}

// At returns the value at schema position i.
func (v Vector) At(i int) float64 { return v.values[i] }

// Len returns the number of values.
func (v Vector) Len() int { return len(v.values) }

// Item is a clustered track.
type Item struct {
	ID       string
	Name     string
	Artist   string
	Cover    string // optional cover image URL
	Cluster  int
	Features Vector
}

// ClusterCenter is the centroid of one cluster.
type ClusterCenter struct {
	Cluster  int
	Features Vector
}

// RawItem is the loosely-typed item shape accepted by New.
type RawItem struct {
	ID       string
	Name     string
	Artist   string
	Cover    string
	Cluster  int
	Features map[string]float64
}

// RawCenter is the loosely-typed centroid shape accepted by New.
type RawCenter struct {
	Cluster  int
	Features map[string]float64
}

// Input is everything needed to build a Snapshot.
type Input struct {
	Items        []RawItem
	Centers      []RawCenter
	Features     []string
	Inertia      float64
	ClusterCount int
}

// Snapshot is an immutable, versioned dataset.
type Snapshot struct {
	generation   uint64
	schema       *Schema
	items        []Item
	centers      []ClusterCenter
	inertia      float64
	clusterCount int

	byID      map[string]int
	byCluster map[int][]int
	centerIdx map[int]int
	clusters  []int
}

// New validates in and builds a Snapshot with the given generation.
func New(in Input, generation uint64) (*Snapshot, error) {
	schema, err := NewSchema(in.Features)
	if err != nil {
		return nil, err
	}
	if len(in.Items) == 0 {
		return nil, &ValidationError{Field: "items", Index: -1, Reason: "no items"}
	}

	s := &Snapshot{
		generation:   generation,
		schema:       schema,
		items:        make([]Item, 0, len(in.Items)),
		centers:      make([]ClusterCenter, 0, len(in.Centers)),
		inertia:      in.Inertia,
		clusterCount: in.ClusterCount,
		byID:         make(map[string]int, len(in.Items)),
		byCluster:    make(map[int][]int),
		centerIdx:    make(map[int]int, len(in.Centers)),
	}

	for i, raw := range in.Items {
		if raw.ID == "" {
			return nil, &ValidationError{Field: "items", Index: i, Reason: "empty id"}
		}
		if _, dup := s.byID[raw.ID]; dup {
			return nil, &ValidationError{Field: "items", Index: i, Reason: "duplicate id " + raw.ID}
		}
		if raw.Cluster < 0 {
			return nil, &ValidationError{Field: "items", Index: i, Reason: fmt.Sprintf("negative cluster %d", raw.Cluster)}
		}
		vec, err := schema.vector(raw.Features)
		if err != nil {
			return nil, &ValidationError{Field: "items", Index: i, Reason: err.Error()}
		}
		s.byID[raw.ID] = len(s.items)
		s.byCluster[raw.Cluster] = append(s.byCluster[raw.Cluster], len(s.items))
		s.items = append(s.items, Item{
			ID:       raw.ID,
			Name:     raw.Name,
			Artist:   raw.Artist,
			Cover:    raw.Cover,
			Cluster:  raw.Cluster,
			Features: vec,
		})
	}

	for i, raw := range in.Centers {
		if _, dup := s.centerIdx[raw.Cluster]; dup {
			return nil, &ValidationError{Field: "cluster_centers", Index: i, Reason: fmt.Sprintf("duplicate cluster %d", raw.Cluster)}
		}
		if _, ok := s.byCluster[raw.Cluster]; !ok {
			return nil, &ValidationError{Field: "cluster_centers", Index: i, Reason: fmt.Sprintf("cluster %d has no items", raw.Cluster)}
		}
		vec, err := schema.vector(raw.Features)
		if err != nil {
			return nil, &ValidationError{Field: "cluster_centers", Index: i, Reason: err.Error()}
		}
		s.centerIdx[raw.Cluster] = len(s.centers)
		s.centers = append(s.centers, ClusterCenter{Cluster: raw.Cluster, Features: vec})
	}

	for c := range s.byCluster {
		if _, ok := s.centerIdx[c]; !ok {
			return nil, &ValidationError{Field: "cluster_centers", Index: -1, Reason: fmt.Sprintf("missing center for cluster %d", c)}
		}
		s.clusters = append(s.clusters, c)
	}
	sort.Ints(s.clusters)

	return s, nil
}

// Generation returns the snapshot version.
func (s *Snapshot) Generation() uint64 { return s.generation }

// Schema returns the feature schema.
func (s *Snapshot) Schema() *Schema { return s.schema }

// Features returns the ordered feature names (features_used).
func (s *Snapshot) Features() []string { return s.schema.Names() }

// Items returns the items in snapshot order. Callers must not modify it.
func (s *Snapshot) Items() []Item { return s.items }

// Centers returns the cluster centers. Callers must not modify it.
func (s *Snapshot) Centers() []ClusterCenter { return s.centers }

// Len returns the number of items.
func (s *Snapshot) Len() int { return len(s.items) }

// Inertia returns the clustering inertia reported by the service.
func (s *Snapshot) Inertia() float64 { return s.inertia }

// ClusterCount returns the cluster count the snapshot was requested with,
// falling back to the number of distinct clusters.
func (s *Snapshot) ClusterCount() int {
	if s.clusterCount > 0 {
		return s.clusterCount
	}
	return len(s.clusters)
}

// ClusterIDs returns the distinct cluster ids in ascending order.
func (s *Snapshot) ClusterIDs() []int {
	out := make([]int, len(s.clusters))
	copy(out, s.clusters)
	return out
}

// HasCluster reports whether any item belongs to cluster c.
func (s *Snapshot) HasCluster(c int) bool {
	_, ok := s.byCluster[c]
	return ok
}

// Members returns the items of cluster c in snapshot order.
func (s *Snapshot) Members(c int) []Item {
	idx := s.byCluster[c]
	out := make([]Item, len(idx))
	for i, j := range idx {
		out[i] = s.items[j]
	}
	return out
}

// ClusterSize returns the number of items in cluster c.
func (s *Snapshot) ClusterSize(c int) int { return len(s.byCluster[c]) }

// Center returns the centroid of cluster c.
func (s *Snapshot) Center(c int) (ClusterCenter, bool) {
	i, ok := s.centerIdx[c]
	if !ok {
		return ClusterCenter{}, false
	}
	return s.centers[i], true
}

// ItemByID looks up an item by id.
func (s *Snapshot) ItemByID(id string) (Item, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Item{}, false
	}
	return s.items[i], true
}
