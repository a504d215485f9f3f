// Package decomp defines the decomposition contract consulted (never
// built) by the exchange pipeline — spec.md §6 "Decomposition
// (consumed)" — plus a reference grid decomposition used by tests and
// by callers that don't bring their own. The geometric domain
// decomposition itself, and any load-balancing of it, is out of scope
// (spec.md §1); this package only states the interface and a minimal,
// slab-based implementation of it.
package decomp

import (
	"github.com/coroutinely/openfpm-pdata/point"
)

// PID identifies a process in the communicator. NoPID is the
// out-of-bound sentinel returned by a Policy to mark a particle for
// deletion (spec.md §4.B.1 step 3).
type PID int

const NoPID PID = -1

// ShiftID indexes into Decomposition.ShiftVectors().
type ShiftID int

// PeerShift pairs a destination process with the shift that applies to
// whatever gets sent to it — the (pid, shift_id) pairs returned by
// ghost_processorID_pair (spec.md §4.B.2).
type PeerShift struct {
	PID   PID
	Shift ShiftID
}

// Unique, when passed to GhostProcessorIDPair, requests at most one
// (pid, shift_id) entry per destination pid for the given particle.
const Unique = true

// Decomposition is the external collaborator described in spec.md §6.
// It is injected by reference into the exchange driver; it has no
// upward pointer to the driver (spec.md §9 design note).
type Decomposition interface {
	ShiftVectors() []point.Point
	ConvertShift(c point.Combination) ShiftID
	ApplyPointBC(p point.Point) point.Point
	Domain() point.Domain
	ProcessorID(p point.Point) PID
	GhostProcessorIDPair(p point.Point, unique bool) []PeerShift
	NNProcessors() int
	IDtoProc(i int) PID
	// NProcs is the total communicator size, used to size per-pid
	// bookkeeping such as prc_sz (spec.md §4.B.1).
	NProcs() int
	NLocalSub() int
	LocalNIGhost(sub int) int
	LocalIGhostBox(sub, j int) point.Box
	LocalIGhostPos(sub, j int) point.Combination
	// Generation returns a monotonically increasing revision tag
	// (spec.md's get_ndec); the shift-box index rebuilds iff this
	// changes.
	Generation() uint64
	Decompose() error
	SetParameters(g Grid)
	SetGoodParameters(minSubPerProc int)
	MyPID() PID
}
