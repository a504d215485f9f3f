// Package xchg is component D, the exchange driver: it orchestrates
// map, ghost_get and ghost_put over the collective layer and is the
// only component with mutable state surviving across calls (spec.md
// §2). Grounded on the teacher's orchestration idiom in
// ghjramos-aistore/xact/xs/tcb.go (a Run loop driving a collective
// exchange, with per-call bookkeeping cleared up front and a
// WaitGroup-style join at the barrier).
package xchg

// Options is the bit-OR-combinable flag set of spec.md §4.D.4.
type Options uint32

const (
	WithPosition Options = 1 << iota
	NoPosition
	SkipLabelling
	NoChangeElements
	KeepProperties
	MapOnDevice
	MapLocal
	BindDecToGhost
)

func (o Options) Has(f Options) bool { return o&f != 0 }
