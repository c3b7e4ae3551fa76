// Package features exposes the selectable feature names of a snapshot and
// their human-readable labels.
package features

import (
	"strings"
	"unicode"
)

// DefaultCatalog is the audio feature set requested on first load.
var DefaultCatalog = []string{
	"danceability",
	"energy",
	"speechiness",
	"acousticness",
	"instrumentalness",
	"liveness",
	"valence",
}

// Label converts an internal key like "camelCaseName" into "Camel Case Name".
func Label(key string) string {
	if key == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(key) + 4)
	for i, r := range key {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return out
	}
	runes := []rune(out)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// Registry is the ordered list of features that can be put on an axis.
type Registry struct {
	names []string
	index map[string]int
}

// NewRegistry builds a registry over features_used, in order.
func NewRegistry(names []string) Registry {
	r := Registry{
		names: make([]string, 0, len(names)),
		index: make(map[string]int, len(names)),
	}
	for _, n := range names {
		if _, dup := r.index[n]; dup || n == "" {
			continue
		}
		r.index[n] = len(r.names)
		r.names = append(r.names, n)
	}
	return r
}

// Names returns the selectable feature names.
func (r Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len returns the number of features.
func (r Registry) Len() int { return len(r.names) }

// Has reports whether name is selectable.
func (r Registry) Has(name string) bool {
	_, ok := r.index[name]
	return ok
}

// Labels returns the human labels in registry order.
func (r Registry) Labels() []string {
	out := make([]string, len(r.names))
	for i, n := range r.names {
		out[i] = Label(n)
	}
	return out
}

// Step returns the feature delta positions away from name, wrapping.
// Unknown names start from the first feature.
func (r Registry) Step(name string, delta int) string {
	if len(r.names) == 0 {
		return ""
	}
	i, ok := r.index[name]
	if !ok {
		return r.names[0]
	}
	n := len(r.names)
	return r.names[((i+delta)%n+n)%n]
}

// Defaults returns the first n features for axis assignment. When fewer
// features exist the first one fills the remaining axes.
func (r Registry) Defaults(n int) []string {
	out := make([]string, n)
	if len(r.names) == 0 {
		return out
	}
	for i := range out {
		if i < len(r.names) {
			out[i] = r.names[i]
		} else {
			out[i] = r.names[0]
		}
	}
	return out
}
