// Package point provides the dim-dimensional geometry used throughout
// the exchange pipeline: particle coordinates, periodic-combination
// vectors, and the axis-aligned boxes the shift-box index and the
// decomposition hand back. This is deliberately minimal — the generic
// packed-array container is out of scope per spec.md §1; only the
// geometry needed to decide "who owns this point" and "which shift
// applies" lives here.
package point

// St is the scalar type particle coordinates are stored as. A real
// particle-in-cell application might parameterize this (float32 vs
// float64); a Go rewrite keeps one scalar type system-wide since the
// property schema itself is fixed per application build (spec.md §1
// Non-goals: no heterogeneous schemas).
type St = float64

// Point is a dim-dimensional coordinate. len(Point) is the dimension;
// every Point handled by one Container must agree on it.
type Point []St

func New(dim int) Point { return make(Point, dim) }

func NewFrom(coords ...St) Point {
	p := make(Point, len(coords))
	copy(p, coords)
	return p
}

func (p Point) Dim() int { return len(p) }

func (p Point) Clone() Point {
	q := make(Point, len(p))
	copy(q, p)
	return q
}

func (p Point) Add(o Point) Point {
	q := make(Point, len(p))
	for i := range p {
		q[i] = p[i] + o[i]
	}
	return q
}

func (p Point) Sub(o Point) Point {
	q := make(Point, len(p))
	for i := range p {
		q[i] = p[i] - o[i]
	}
	return q
}

// Combination identifies which faces/edges/corners of the periodic
// domain a sub-domain (or an internal-ghost box) touches: one entry per
// axis, valued in {-1, 0, 1}.
type Combination []int8

func NewCombination(dim int) Combination { return make(Combination, dim) }

// NZero counts the zero-valued axes; an all-zero combination marks a
// normal (non-periodic) interior-ghost box, which the shift-box index
// skips (spec.md §4.A).
func (c Combination) NZero() int {
	n := 0
	for _, v := range c {
		if v == 0 {
			n++
		}
	}
	return n
}

// Lin linearizes the combination into a base-3 integer so it can key a
// map (spec.md's map_cmb). Axis values are shifted by +1 before being
// treated as base-3 digits.
func (c Combination) Lin() int {
	lin := 0
	mul := 1
	for _, v := range c {
		lin += int(v+1) * mul
		mul *= 3
	}
	return lin
}

func (c Combination) Clone() Combination {
	d := make(Combination, len(c))
	copy(d, c)
	return d
}

func (c Combination) Equal(o Combination) bool {
	if len(c) != len(o) {
		return false
	}
	for i := range c {
		if c[i] != o[i] {
			return false
		}
	}
	return true
}

// Box is an axis-aligned box, inclusive of Lo and exclusive of Hi on
// every axis, matching the convention of the sub-domains it bounds.
type Box struct {
	Lo, Hi Point
}

func (b Box) Contains(p Point) bool {
	for i := range p {
		if p[i] < b.Lo[i] || p[i] >= b.Hi[i] {
			return false
		}
	}
	return true
}

// Domain is the global (periodic) simulation domain.
type Domain struct {
	Lo, Hi   Point
	Periodic []bool
}

func (d Domain) IsInside(p Point) bool {
	for i := range p {
		if p[i] < d.Lo[i] || p[i] >= d.Hi[i] {
			return false
		}
	}
	return true
}

func (d Domain) Extent(axis int) St { return d.Hi[axis] - d.Lo[axis] }
