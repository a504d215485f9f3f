package decomp

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/OneOfOne/xxhash"

	"github.com/coroutinely/openfpm-pdata/cmn/nlog"
	"github.com/coroutinely/openfpm-pdata/point"
)

// Grid is the configuration a caller hands to SetParameters/Decompose:
// a 1-D slab decomposition along axis 0 over NProcs processes, plus a
// uniform ghost extent applied on every axis. It is deliberately the
// simplest decomposition that can exhibit every case spec.md §8 asks
// tests to cover (zero-particle ranks, no-neighbour ranks, ranks
// touching every periodic face at once).
type Grid struct {
	Domain      point.Domain
	NProcs      int
	GhostExtent point.St
}

// GridDecomposition is the reference Decomposition implementation. One
// instance is constructed per simulated process (My). It hashes its own
// identity with xxhash the same way the teacher's HRW placement hashes
// a bucket/object name to a target — here the "name" is just the slab
// index, so the hash only needs to be stable, not discriminating.
type GridDecomposition struct {
	grid Grid
	my   PID

	shifts    []point.Point
	shiftIdx  map[int]ShiftID // Combination.Lin() -> ShiftID
	ghostBoxF []point.Box
	ghostComb []point.Combination

	ndec uint64
	gran int
}

func NewGridDecomposition(g Grid, my PID) *GridDecomposition {
	d := &GridDecomposition{grid: g, my: my, gran: 64}
	d.decompose()
	return d
}

// decompose (re)builds the per-process internal-ghost-box list and the
// shift-vector table. It's invoked by Decompose() and bumps Generation().
func (d *GridDecomposition) decompose() {
	dim := d.grid.Domain.Lo.Dim()
	touched := make([]bool, dim) // axis i: does this rank replicate locally across any periodic face of axis i
	loFace := make([]bool, dim)  // across the Lo face specifically
	hiFace := make([]bool, dim)

	for i := 0; i < dim; i++ {
		if !d.grid.Domain.Periodic[i] {
			continue
		}
		if i == 0 {
			// decomposed axis: across the seam the neighbour is another
			// rank (GhostProcessorIDPair's job) unless this is the only
			// rank, whose images land back on itself.
			loFace[i] = d.grid.NProcs == 1
			hiFace[i] = d.grid.NProcs == 1
		} else {
			// non-decomposed axes: every rank spans the full extent,
			// so every rank touches both of that axis's periodic faces.
			loFace[i] = true
			hiFace[i] = true
		}
		touched[i] = loFace[i] || hiFace[i]
	}

	d.shifts = d.shifts[:0]
	d.shiftIdx = make(map[int]ShiftID)
	d.ghostBoxF = d.ghostBoxF[:0]
	d.ghostComb = d.ghostComb[:0]

	lo, hi := d.subBounds()
	combos := enumerateCombinations(dim, loFace, hiFace)
	for _, comb := range combos {
		if comb.NZero() == dim {
			continue
		}
		box := point.Box{Lo: lo.Clone(), Hi: hi.Clone()}
		for i := 0; i < dim; i++ {
			switch comb[i] {
			case -1:
				box.Hi[i] = box.Lo[i] + d.grid.GhostExtent
			case 1:
				box.Lo[i] = box.Hi[i] - d.grid.GhostExtent
			}
		}
		d.ghostBoxF = append(d.ghostBoxF, box)
		d.ghostComb = append(d.ghostComb, comb)
		d.convertShiftLocked(comb)
	}

	atomic.AddUint64(&d.ndec, 1)
	if nlog.FastV(4, "decomp") {
		nlog.Infof("pid %d (tag %x): %d internal ghost box(es) after decompose", d.my, d.SubDomainTag(0), len(d.ghostBoxF))
	}
}

func (d *GridDecomposition) subBounds() (lo, hi point.Point) {
	lo, hi = d.grid.Domain.Lo.Clone(), d.grid.Domain.Hi.Clone()
	extent := d.grid.Domain.Extent(0)
	slab := extent / point.St(d.grid.NProcs)
	lo[0] = d.grid.Domain.Lo[0] + point.St(d.my)*slab
	hi[0] = lo[0] + slab
	return
}

func enumerateCombinations(dim int, loFace, hiFace []bool) []point.Combination {
	var out []point.Combination
	var rec func(i int, cur point.Combination)
	rec = func(i int, cur point.Combination) {
		if i == dim {
			out = append(out, cur.Clone())
			return
		}
		cur[i] = 0
		rec(i+1, cur)
		if loFace[i] {
			cur[i] = -1
			rec(i+1, cur)
		}
		if hiFace[i] {
			cur[i] = 1
			rec(i+1, cur)
		}
		cur[i] = 0
	}
	rec(0, point.NewCombination(dim))
	return out
}

func (d *GridDecomposition) convertShiftLocked(c point.Combination) ShiftID {
	lin := c.Lin()
	if id, ok := d.shiftIdx[lin]; ok {
		return id
	}
	shift := point.New(len(c))
	for i, v := range c {
		if v != 0 {
			shift[i] = -point.St(v) * d.grid.Domain.Extent(i)
		}
	}
	id := ShiftID(len(d.shifts))
	d.shifts = append(d.shifts, shift)
	d.shiftIdx[lin] = id
	return id
}

func (d *GridDecomposition) ShiftVectors() []point.Point { return d.shifts }

func (d *GridDecomposition) ConvertShift(c point.Combination) ShiftID {
	if id, ok := d.shiftIdx[c.Lin()]; ok {
		return id
	}
	return d.convertShiftLocked(c)
}

func (d *GridDecomposition) ApplyPointBC(p point.Point) point.Point {
	q := p.Clone()
	for i := range q {
		if !d.grid.Domain.Periodic[i] {
			continue
		}
		ext := d.grid.Domain.Extent(i)
		for q[i] < d.grid.Domain.Lo[i] {
			q[i] += ext
		}
		for q[i] >= d.grid.Domain.Hi[i] {
			q[i] -= ext
		}
	}
	return q
}

func (d *GridDecomposition) Domain() point.Domain { return d.grid.Domain }

// boundaryEpsilon bounds how close a coordinate can sit to an exact
// slab boundary before ProcessorID treats it as landing exactly on the
// seam rather than strictly inside one slab or the other.
const boundaryEpsilon = 1e-9

func (d *GridDecomposition) ProcessorID(p point.Point) PID {
	extent := d.grid.Domain.Extent(0)
	slab := extent / point.St(d.grid.NProcs)
	off := p[0] - d.grid.Domain.Lo[0]
	idx := int(off / slab)
	// A point sitting exactly on a slab boundary is, to floating-point
	// tolerance, equally owned by idx-1 and idx; break the tie with a
	// hash of the boundary index rather than always favoring the
	// truncated side, so every process — which each only evaluates this
	// locally — lands on the same owner without a second round of
	// communication to agree on it (spec.md §6 processorID(p) must be a
	// pure function of p alone).
	if rem := off - point.St(idx)*slab; idx > 0 && rem >= 0 && rem < point.St(boundaryEpsilon)*slab {
		if digest(fmt.Sprintf("boundary/%d", idx))%2 == 0 {
			idx--
		}
	}
	if idx < 0 {
		idx = 0
	}
	if idx >= d.grid.NProcs {
		idx = d.grid.NProcs - 1
	}
	return PID(idx)
}

// GhostProcessorIDPair returns the near processes whose extended
// (halo) region contains p, one entry per (spec.md UNIQUE) target pid.
// Only axis-0 process neighbours are modeled (this is a 1-D slab
// decomposition); periodic-axis replication that lands back on the
// same process is handled by the shift-box index instead, not here.
func (d *GridDecomposition) GhostProcessorIDPair(p point.Point, unique bool) []PeerShift {
	_ = unique // the slab decomposition never produces duplicate targets
	extent := d.grid.Domain.Extent(0)
	slab := extent / point.St(d.grid.NProcs)
	var out []PeerShift

	tryNeighbor := func(delta int) {
		np := int(d.my) + delta
		comb := point.NewCombination(len(p))
		wrapped := false
		if np < 0 {
			if !d.grid.Domain.Periodic[0] {
				return
			}
			np = d.grid.NProcs - 1
			comb[0] = 1
			wrapped = true
		} else if np >= d.grid.NProcs {
			if !d.grid.Domain.Periodic[0] {
				return
			}
			np = 0
			comb[0] = -1
			wrapped = true
		}
		if np == int(d.my) {
			return
		}
		nlo := d.grid.Domain.Lo[0] + point.St(np)*slab
		nhi := nlo + slab
		lo := nlo - d.grid.GhostExtent
		hi := nhi + d.grid.GhostExtent
		x := p[0]
		if wrapped {
			// p - shift: comb[0]==1 shifts by -extent, so the image
			// lands at p + extent, and vice versa.
			if comb[0] == -1 {
				x -= extent
			} else {
				x += extent
			}
		}
		if x >= lo && x < hi {
			out = append(out, PeerShift{PID: PID(np), Shift: d.ConvertShift(comb)})
		}
	}
	tryNeighbor(-1)
	tryNeighbor(1)
	return out
}

func (d *GridDecomposition) NNProcessors() int {
	if d.grid.NProcs == 1 {
		return 0
	}
	n := 0
	if int(d.my)-1 >= 0 || d.grid.Domain.Periodic[0] {
		n++
	}
	if int(d.my)+1 < d.grid.NProcs || d.grid.Domain.Periodic[0] {
		n++
	}
	return n
}

func (d *GridDecomposition) IDtoProc(i int) PID {
	if d.grid.NProcs == 1 {
		return NoPID
	}
	lo := int(d.my) - 1
	hi := int(d.my) + 1
	if lo < 0 {
		if d.grid.Domain.Periodic[0] {
			lo = d.grid.NProcs - 1
		} else {
			lo = -1
		}
	}
	if hi >= d.grid.NProcs {
		if d.grid.Domain.Periodic[0] {
			hi = 0
		} else {
			hi = -1
		}
	}
	var ids []int
	if lo >= 0 {
		ids = append(ids, lo)
	}
	if hi >= 0 && hi != lo {
		ids = append(ids, hi)
	}
	sort.Ints(ids)
	if i < 0 || i >= len(ids) {
		return NoPID
	}
	return PID(ids[i])
}

func (d *GridDecomposition) NProcs() int { return d.grid.NProcs }

func (d *GridDecomposition) NLocalSub() int { return 1 }

func (d *GridDecomposition) LocalNIGhost(sub int) int {
	_ = sub
	return len(d.ghostBoxF)
}

func (d *GridDecomposition) LocalIGhostBox(sub, j int) point.Box {
	_ = sub
	return d.ghostBoxF[j]
}

func (d *GridDecomposition) LocalIGhostPos(sub, j int) point.Combination {
	_ = sub
	return d.ghostComb[j]
}

func (d *GridDecomposition) Generation() uint64 { return atomic.LoadUint64(&d.ndec) }

func (d *GridDecomposition) Decompose() error {
	d.decompose()
	return nil
}

func (d *GridDecomposition) SetParameters(g Grid) {
	d.grid = g
	d.decompose()
}

func (d *GridDecomposition) SetGoodParameters(minSubPerProc int) {
	if minSubPerProc <= 0 {
		minSubPerProc = 64
	}
	d.gran = minSubPerProc
}

func (d *GridDecomposition) MyPID() PID { return d.my }

// SymmetricCellGrid derives a Grid whose slab count is sized so each
// slab is at least as wide as ghostExtent on both sides, capped at
// maxProcs — the reference decomposition's stand-in for BIND_DEC_TO_GHOST
// (spec.md §4.D.4): deriving the grid division from a symmetric cell
// list sized by the ghost extent instead of asking the caller for an
// explicit process count up front.
func SymmetricCellGrid(dom point.Domain, ghostExtent point.St, maxProcs int) Grid {
	extent := dom.Extent(0)
	n := int(extent / (2 * ghostExtent))
	if n < 1 {
		n = 1
	}
	if maxProcs > 0 && n > maxProcs {
		n = maxProcs
	}
	return Grid{Domain: dom, NProcs: n, GhostExtent: ghostExtent}
}

// digest backs two real uses: ProcessorID's boundary tiebreak above,
// and SubDomainTag below. Both only need the hash to be stable, not
// discriminating, the same property the teacher's HRW placement relies
// on when it hashes a bucket/object name to a target.
func digest(key string) uint64 {
	h := xxhash.New64()
	_, _ = h.Write([]byte(key))
	return h.Sum64()
}

// SubDomainTag returns a stable xxhash-based tag for a (pid, sub)
// pair, useful for logging/metrics labels without leaking coordinates.
func (d *GridDecomposition) SubDomainTag(sub int) uint64 {
	return digest(fmt.Sprintf("%d/%d", d.my, sub))
}
