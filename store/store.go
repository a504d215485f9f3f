// Package store holds the particle container: the two parallel
// sequences (spec.md §3) — v_pos and v_prp — plus the ghost marker g_m
// and local-ghost marker lg_m. The generic packed-array container this
// would sit on top of in a full implementation is explicitly out of
// scope (spec.md §1); this is the minimal stand-in the rest of the
// pipeline operates against.
package store

import (
	"fmt"

	"github.com/coroutinely/openfpm-pdata/point"
)

// Props is one particle's property tuple: a fixed-length slice shared
// by every particle in a Container (spec.md §1 Non-goals: no
// heterogeneous property schemas across processes).
type Props []float64

func (p Props) Clone() Props {
	q := make(Props, len(p))
	copy(q, p)
	return q
}

// Subset narrows a property row to the caller-selected ids, the way
// the object_si_d capability narrows a struct-of-properties to a
// compile-time id list (spec.md §6).
func (p Props) Subset(ids []int) Props {
	q := make(Props, len(ids))
	for i, id := range ids {
		q[i] = p[id]
	}
	return q
}

// ScatterInto writes q's values (assumed produced by Subset(ids)) back
// into the corresponding ids of p.
func (p Props) ScatterInto(ids []int, q Props) {
	for i, id := range ids {
		p[id] = q[i]
	}
}

// CombineOp is the associative-commutative reduction ghost_put applies
// (spec.md §4.D.3). Replace is included for the round-trip invariant in
// spec.md §8 item 4.
type CombineOp int

const (
	OpReplace CombineOp = iota
	OpAdd
	OpMax
	OpMin
)

func (op CombineOp) String() string {
	switch op {
	case OpReplace:
		return "replace"
	case OpAdd:
		return "add"
	case OpMax:
		return "max"
	case OpMin:
		return "min"
	default:
		return fmt.Sprintf("CombineOp(%d)", int(op))
	}
}

func Combine(op CombineOp, dst, src float64) float64 {
	switch op {
	case OpAdd:
		return dst + src
	case OpMax:
		if src > dst {
			return src
		}
		return dst
	case OpMin:
		if src < dst {
			return src
		}
		return dst
	default: // OpReplace
		return src
	}
}

// CombineInto reduces src into dst property-by-property, restricted to
// ids (the caller-selected subset for this ghost_put call).
func CombineInto(op CombineOp, dst Props, ids []int, src Props) {
	for i, id := range ids {
		dst[id] = Combine(op, dst[id], src[i])
	}
}

// Container is the particle storage: v_pos / v_prp kept the same
// length at every observable boundary (spec.md §3, §8 invariant 1).
type Container struct {
	Dim   int
	NProp int

	Pos []point.Point
	Prp []Props

	// Gm is the ghost marker: ids [0, Gm) are owned, [Gm, len) are
	// ghosts.
	Gm int
	// LgM is the local-ghost marker: within the ghost region,
	// [Gm, LgM) are received from peers and [LgM, len) are local
	// periodic images (spec.md §3 "Sub-ghost segment").
	LgM int
}

func New(dim, nprop int) *Container {
	return &Container{Dim: dim, NProp: nprop}
}

func (c *Container) Len() int { return len(c.Pos) }

func (c *Container) Owned() int { return c.Gm }

// CheckInvariant1 enforces spec.md §8 invariant 1.
func (c *Container) CheckInvariant1() error {
	if len(c.Pos) != len(c.Prp) {
		return fmt.Errorf("store: len(v_pos)=%d != len(v_prp)=%d", len(c.Pos), len(c.Prp))
	}
	return nil
}

// LgM is left untouched here, matching the original constructor's
// lg_m(0): it only ever moves inside add_loc_particles_bc, never when a
// particle is simply added to the container (spec.md §4.C.5 step 2).
func (c *Container) AppendOwned(p point.Point, pr Props) {
	c.Pos = append(c.Pos, p)
	c.Prp = append(c.Prp, pr)
	c.Gm++
}

func (c *Container) AppendPos(p point.Point) { c.Pos = append(c.Pos, p) }
func (c *Container) AppendProp(pr Props)     { c.Prp = append(c.Prp, pr) }

// TruncatePos drops every position at index >= n.
func (c *Container) TruncatePos(n int) { c.Pos = c.Pos[:n] }

// TruncateProp drops every property row at index >= n.
func (c *Container) TruncateProp(n int) { c.Prp = c.Prp[:n] }

// ResizePropTo grows or shrinks v_prp to length n, zero-filling on
// growth. Used by ghost_get_'s "resize v_prp to match v_pos" step
// (spec.md §4.D.2) when the property subset was empty.
func (c *Container) ResizePropTo(n int) {
	if n <= len(c.Prp) {
		c.Prp = c.Prp[:n]
		return
	}
	for len(c.Prp) < n {
		c.Prp = append(c.Prp, make(Props, c.NProp))
	}
}
