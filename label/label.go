// Package label implements component B, the labeller: deciding, for
// each particle, which peer(s) need it and under what shift
// (spec.md §4.B).
package label

import (
	"strconv"

	cuckoo "github.com/seiflotfy/cuckoofilter"

	"github.com/coroutinely/openfpm-pdata/decomp"
	"github.com/coroutinely/openfpm-pdata/obp"
	"github.com/coroutinely/openfpm-pdata/store"
)

// OPart is one entry of the outgoing-map table m_opart (spec.md §3):
// a particle, and the pid it must move to. ShiftID is unused on the
// map path (map never shifts a position, it only relocates ownership)
// and is kept so the type can double as the shift-carrying entry
// wherever a caller wants one.
type OPart struct {
	LocalID int
	ShiftID decomp.ShiftID
	Target  decomp.PID
}

// MapLabels is the result of labelParticleProcessor (spec.md §4.B.1).
type MapLabels struct {
	Opart []OPart // lbl_p / m_opart, NOT sorted by target (see PeerOffsets)
	PrcSz []int   // prc_sz: per-pid emigrant counts
}

// PeerOffsets computes, for a sorted list of destination pids, the
// contiguous offset each pid's particles start at once Opart is
// bucketed by target — this is p_map_req from spec.md §4.B.1, used so
// the fill-send-buffers step can read the unsorted Opart table as if
// it were grouped by destination without physically sorting it.
func (ml *MapLabels) PeerOffsets(peers []decomp.PID) map[decomp.PID]int {
	off := make(map[decomp.PID]int, len(peers))
	running := 0
	for _, p := range peers {
		off[p] = running
		running += ml.PrcSz[p]
	}
	return off
}

// LabelMap runs labelParticleProcessor over every owned particle.
// Positions are folded in place by applyPointBC as required by
// spec.md §4.B.1 step 1 — this holds even for particles that end up
// staying with the caller (spec.md scenario 1).
func LabelMap(dec decomp.Decomposition, c *store.Container, policy obp.Policy) *MapLabels {
	my := dec.MyPID()
	ml := &MapLabels{PrcSz: make([]int, dec.NProcs())}

	for id := 0; id < c.Owned(); id++ {
		folded := dec.ApplyPointBC(c.Pos[id])
		c.Pos[id] = folded

		var pid decomp.PID
		if dec.Domain().IsInside(folded) {
			pid = dec.ProcessorID(folded)
		} else {
			pid = policy.Out(id, my)
		}
		if pid == my {
			continue
		}
		ml.Opart = append(ml.Opart, OPart{LocalID: id, Target: pid})
		if pid >= 0 {
			ml.PrcSz[pid]++
		}
		// pid == decomp.NoPID: appended above but never counted in
		// PrcSz and never given a send-buffer slot — this is the open
		// question flagged in spec.md §9 ("their storage is effectively
		// leaked until m_opart is cleared next call"); we preserve that
		// observable behavior rather than special-casing deletion here.
	}
	return ml
}

// GPart is one entry of the outgoing-ghost table g_opart (spec.md §3):
// a local particle id and the shift that must be applied when it's
// copied to the peer this list belongs to.
type GPart struct {
	LocalID int
	ShiftID decomp.ShiftID
}

// GhostLabels is the result of labelParticlesGhost (spec.md §4.B.2),
// already compacted: empty near-peer slots are dropped and Prc lists
// only processes this call actually talks to, in the same order as
// Gopart.
type GhostLabels struct {
	Gopart []ordered // g_opart, per surviving near-peer
	Prc    []decomp.PID
}

type ordered struct {
	parts []GPart
}

func (gl *GhostLabels) Parts(i int) []GPart { return gl.Gopart[i].parts }

// LabelGhost runs labelParticlesGhost over ids [0, g_m). Per spec.md
// §4.B.2 the decomposition's GhostProcessorIDPair already guarantees
// UNIQUE ("at most one entry per target pid") when asked for it; a
// small cuckoo filter per particle double-checks that contract cheaply
// instead of trusting it blindly, since a caller-supplied decomposition
// is an external collaborator spec.md's error model doesn't cover.
func LabelGhost(dec decomp.Decomposition, c *store.Container) *GhostLabels {
	nn := dec.NNProcessors()
	near := make([][]GPart, nn)
	nearIdx := make(map[decomp.PID]int, nn)
	for i := 0; i < nn; i++ {
		nearIdx[dec.IDtoProc(i)] = i
	}

	for id := 0; id < c.Gm; id++ {
		pairs := dec.GhostProcessorIDPair(c.Pos[id], decomp.Unique)
		if len(pairs) == 0 {
			continue
		}
		seen := cuckoo.NewFilter(8)
		for _, ps := range pairs {
			key := []byte(strconv.Itoa(int(ps.PID)))
			if seen.Lookup(key) {
				continue
			}
			seen.InsertUnique(key)
			idx, ok := nearIdx[ps.PID]
			if !ok {
				continue
			}
			near[idx] = append(near[idx], GPart{LocalID: id, ShiftID: ps.Shift})
		}
	}

	gl := &GhostLabels{}
	for i, lst := range near {
		if len(lst) == 0 {
			continue
		}
		gl.Gopart = append(gl.Gopart, ordered{parts: lst})
		gl.Prc = append(gl.Prc, dec.IDtoProc(i))
	}
	return gl
}
