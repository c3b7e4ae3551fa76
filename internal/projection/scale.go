// Package projection maps N-dimensional feature vectors onto viewable
// coordinates with per-axis linear scales.
//
// Everything here is a pure function of its inputs: projecting the same
// snapshot with the same axes and viewport twice gives identical output.
package projection

import "math"

// DomainPadding is the fraction of the raw extent added on each side of a
// scale's domain to keep points off the viewport edge.
const DomainPadding = 0.1

// DegenerateEpsilon pads a zero-width domain (constant feature).
const DegenerateEpsilon = 1e-3

// Range is a closed interval. Min may be greater than Max for inverted
// output ranges (screen Y grows downward).
type Range struct {
	Min, Max float64
}

// Mid returns the midpoint.
func (r Range) Mid() float64 { return r.Min + (r.Max-r.Min)/2 }

// Lo returns the smaller bound.
func (r Range) Lo() float64 { return math.Min(r.Min, r.Max) }

// Hi returns the larger bound.
func (r Range) Hi() float64 { return math.Max(r.Min, r.Max) }

// Contains reports whether v lies in the range, bounds included.
func (r Range) Contains(v float64) bool { return v >= r.Lo() && v <= r.Hi() }

// Extent returns the signed width.
func (r Range) Extent() float64 { return r.Max - r.Min }

// Scale is a linear mapping from a feature domain to an output range.
type Scale struct {
	Domain Range
	Output Range

	// Degenerate is set when every observed value was identical. All
	// values then map to the output midpoint.
	Degenerate bool
}

// NewScale builds a scale whose domain covers values with padding.
// Non-finite values are ignored; with no finite values the scale is degenerate.
func NewScale(values []float64, out Range) Scale {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if math.IsInf(lo, 1) {
		return Scale{Domain: Range{-DegenerateEpsilon, DegenerateEpsilon}, Output: out, Degenerate: true}
	}
	if lo == hi {
		return Scale{
			Domain:     Range{lo - DegenerateEpsilon, hi + DegenerateEpsilon},
			Output:     out,
			Degenerate: true,
		}
	}
	pad := (hi - lo) * DomainPadding
	return Scale{Domain: Range{lo - pad, hi + pad}, Output: out}
}

// Linear builds a scale over an explicit domain without padding.
func Linear(domain, out Range) Scale {
	return Scale{Domain: domain, Output: out, Degenerate: domain.Min == domain.Max}
}

// Map projects v into the output range. The result is always finite and
// clamped into the output bounds.
func (s Scale) Map(v float64) float64 {
	if s.Degenerate || math.IsNaN(v) || math.IsInf(v, 0) {
		return s.Output.Mid()
	}
	t := (v - s.Domain.Min) / (s.Domain.Max - s.Domain.Min)
	o := s.Output.Min + t*(s.Output.Max-s.Output.Min)
	return math.Max(s.Output.Lo(), math.Min(s.Output.Hi(), o))
}
