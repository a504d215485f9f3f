package xchg

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/teris-io/shortid"

	"github.com/coroutinely/openfpm-pdata/cmn/nlog"
	"github.com/coroutinely/openfpm-pdata/decomp"
	"github.com/coroutinely/openfpm-pdata/label"
	"github.com/coroutinely/openfpm-pdata/obp"
	"github.com/coroutinely/openfpm-pdata/pack"
	"github.com/coroutinely/openfpm-pdata/shiftbox"
	"github.com/coroutinely/openfpm-pdata/store"
	"github.com/coroutinely/openfpm-pdata/transport"
)

// Manager is the exchange driver (spec.md §2 component D, §3
// "Lifecycle"): the only component with mutable state surviving across
// calls. It owns the retained send-buffer pool, the shift-box index,
// the SKIP_LABELLING caches, and the receive-topology bookkeeping.
type Manager struct {
	Dec    decomp.Decomposition
	Store  *store.Container
	Coll   transport.Collective
	Policy obp.Policy

	shiftIdx *shiftbox.Index
	pool     *pack.Pool
	topo     *topology
	metrics  *metrics

	granularity int

	// SKIP_LABELLING reuse: the labelling frozen at the last non-skip
	// ghost_get (spec.md §4.C.5, §5 "Ordering guarantees").
	lastGhostLabels *label.GhostLabels
	lastOPartLoc    []shiftbox.LocPart
}

// NewManager wires the four components together. policy defaults to
// obp.Kill{} (spec.md §6 "Default KillParticle") when nil.
func NewManager(dec decomp.Decomposition, c *store.Container, coll transport.Collective, policy obp.Policy, reg prometheus.Registerer) *Manager {
	if policy == nil {
		policy = obp.Kill{}
	}
	return &Manager{
		Dec:         dec,
		Store:       c,
		Coll:        coll,
		Policy:      policy,
		shiftIdx:    shiftbox.NewIndex(),
		pool:        pack.NewPool(),
		topo:        newTopology(),
		metrics:     newMetrics(reg),
		granularity: 64,
	}
}

// Close releases the manager's retained state (spec.md §3 lifecycle:
// "on destruction, each retained buffer whose refcount is 1 is
// released; any other state is an invariant violation").
func (m *Manager) Close() error {
	m.pool.Teardown(func(format string, args ...any) { nlog.Warningf(format, args...) })
	if err := m.shiftIdx.Close(); err != nil {
		return err
	}
	return m.topo.close()
}

// DecompositionGranularity / SetDecompositionGranularity implement
// spec.md §6's getDecompositionGranularity/setDecompositionGranularity,
// default 64.
func (m *Manager) DecompositionGranularity() int { return m.granularity }

func (m *Manager) SetDecompositionGranularity(n int) {
	if n <= 0 {
		n = 64
	}
	m.granularity = n
	m.Dec.SetGoodParameters(n)
}

// poolSend retains data under a slot stable across calls for
// (kind, peer) and holds a reference on the caller's behalf — the
// explicit hold/release discipline around each exchange that spec.md
// §9's design note prescribes in place of the original's
// reference-counted Memory views. It returns the bytes to hand to the
// collective layer and the release the caller must run once that call
// returns.
func (m *Manager) poolSend(kind string, peer decomp.PID, data []byte) ([]byte, func()) {
	slot := m.pool.KeySlot(fmt.Sprintf("%s:%d", kind, peer))
	b := m.pool.Fill(slot, data)
	b.Hold()
	m.metrics.bufferBytes.Observe(float64(len(data)))
	return b.Data, func() { b.Release() }
}

// collectiveOpt translates NO_CHANGE_ELEMENTS (spec.md §4.D.4) into the
// collective layer's RECEIVE_KNOWN|KNOWN_ELEMENT_OR_BYTE opt bits
// (spec.md §6): the caller guarantees peer sizes are unchanged from
// the last exchange, so the collective layer can skip full-member
// discovery and only wait for the check-ins it already expects.
func collectiveOpt(opts Options) []transport.CollectiveOpt {
	if !opts.Has(NoChangeElements) {
		return nil
	}
	return []transport.CollectiveOpt{transport.ReceiveKnown | transport.KnownElementOrByte}
}

func indexOfPID(s []decomp.PID, pid decomp.PID) int {
	for i, p := range s {
		if p == pid {
			return i
		}
	}
	return -1
}

var errDeviceUnsupported = errors.New("xchg: MAP_ON_DEVICE requested but this build has no device support")

// Map is map_ (spec.md §4.D.1).
func (m *Manager) Map(ctx context.Context, opts Options) error {
	if opts.Has(MapOnDevice) {
		nlog.Errorln(errDeviceUnsupported)
		return errDeviceUnsupported
	}

	m.Store.TruncatePos(m.Store.Gm)
	m.Store.TruncateProp(m.Store.Gm)

	ml := label.LabelMap(m.Dec, m.Store, m.Policy)

	peers := m.mapPeers(ml, opts)
	pos, prp := pack.MapSendBuffers(m.Store, ml, peers)

	// Every labelled entry leaves this process (sent, or dropped for a
	// NoPID target): compact the owned region down to what stays.
	leaving := make(map[int]bool, len(ml.Opart))
	for _, e := range ml.Opart {
		leaving[e.LocalID] = true
	}
	kept := 0
	for id := 0; id < m.Store.Len(); id++ {
		if !leaving[id] {
			m.Store.Pos[kept], m.Store.Prp[kept] = m.Store.Pos[id], m.Store.Prp[id]
			kept++
		}
	}
	m.Store.TruncatePos(kept)
	m.Store.TruncateProp(kept)

	sendPos := make(map[decomp.PID][]byte, len(peers))
	sendPrp := make(map[decomp.PID][]byte, len(peers))
	var releases []func()
	for _, peer := range peers {
		var rel func()
		sendPos[peer], rel = m.poolSend("map:pos", peer, pos[peer])
		releases = append(releases, rel)
		sendPrp[peer], rel = m.poolSend("map:prp", peer, prp[peer])
		releases = append(releases, rel)
	}
	defer func() {
		for _, rel := range releases {
			rel()
		}
	}()

	epoch, _ := shortid.Generate()
	collOpt := collectiveOpt(opts)

	recvPos, err := m.Coll.SSendRecv(ctx, epoch+":map:pos", sendPos, collOpt...)
	if err != nil {
		return errors.Wrap(err, "xchg: map position exchange")
	}
	recvPrp, err := m.Coll.SSendRecv(ctx, epoch+":map:prp", sendPrp, collOpt...)
	if err != nil {
		return errors.Wrap(err, "xchg: map property exchange")
	}

	allIDs := idRange(m.Store.NProp)
	var recvPeers []decomp.PID
	var recvSizes []int
	for p := 0; p < m.Dec.NProcs(); p++ {
		peer := decomp.PID(p)
		buf, ok := recvPos[peer]
		if !ok {
			continue
		}
		n := m.Store.Len()
		if err := pack.UnpackAppendPositions(m.Store, buf); err != nil {
			return errors.Wrap(err, "xchg: map unpack positions")
		}
		if pbuf, ok := recvPrp[peer]; ok {
			if err := pack.UnpackAppendProps(m.Store, pbuf, allIDs); err != nil {
				return errors.Wrap(err, "xchg: map unpack properties")
			}
		}
		recvPeers = append(recvPeers, peer)
		recvSizes = append(recvSizes, m.Store.Len()-n)
	}

	m.Store.Gm = m.Store.Len()

	m.topo.set(topoMap, recvPeers, recvSizes)
	for _, n := range recvSizes {
		m.metrics.mapped.Add(float64(n))
	}
	return nil
}

func (m *Manager) mapPeers(ml *label.MapLabels, opts Options) []decomp.PID {
	seen := make(map[decomp.PID]bool)
	var peers []decomp.PID
	for _, e := range ml.Opart {
		if e.Target < 0 || seen[e.Target] {
			continue
		}
		seen[e.Target] = true
		peers = append(peers, e.Target)
	}
	if !opts.Has(MapLocal) {
		return peers
	}
	near := make(map[decomp.PID]bool)
	for i := 0; i < m.Dec.NNProcessors(); i++ {
		near[m.Dec.IDtoProc(i)] = true
	}
	var out []decomp.PID
	for _, p := range peers {
		if near[p] {
			out = append(out, p)
		}
	}
	return out
}

func idRange(n int) []int {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}
	return ids
}

// GhostGet is ghost_get_ (spec.md §4.D.2).
func (m *Manager) GhostGet(ctx context.Context, opts Options, propIDs []int) error {
	withPosition := !opts.Has(NoPosition)
	// KEEP_PROPERTIES is specified as an alias of SKIP_LABELLING in
	// effect (spec.md §4.D.4): a caller asking to preserve existing
	// ghost property contents gets the same cached-labelling reuse path.
	skip := opts.Has(SkipLabelling) || opts.Has(KeepProperties)

	if withPosition {
		m.Store.TruncatePos(m.Store.Gm)
	}
	if !skip {
		m.Store.TruncateProp(m.Store.Gm)
	}

	var gl *label.GhostLabels
	if skip {
		if m.lastGhostLabels == nil {
			return errors.New("xchg: SKIP_LABELLING requested but no cached ghost labelling exists")
		}
		gl = m.lastGhostLabels
	} else {
		gl = label.LabelGhost(m.Dec, m.Store)
		m.lastGhostLabels = gl
	}

	epoch, _ := shortid.Generate()
	collOpt := collectiveOpt(opts)

	var releases []func()
	defer func() {
		for _, rel := range releases {
			rel()
		}
	}()

	sendPrp := make(map[decomp.PID][]byte, len(gl.Prc))
	for i, peer := range gl.Prc {
		data := pack.GhostPropertyBuffer(m.Store, propIDs, gl.Parts(i))
		var rel func()
		sendPrp[peer], rel = m.poolSend("get:prp", peer, data)
		releases = append(releases, rel)
	}
	recvPrp, err := m.Coll.SSendRecv(ctx, epoch+":get:prp", sendPrp, collOpt...)
	if err != nil {
		return errors.Wrap(err, "xchg: ghost_get property exchange")
	}

	var recvPeers []decomp.PID
	var recvSizes []int
	if skip {
		offset := m.Store.Gm
		for _, peer := range gl.Prc {
			buf, ok := recvPrp[peer]
			if !ok {
				continue
			}
			n, derr := pack.UnpackScatterProps(m.Store, buf, propIDs, offset)
			if derr != nil {
				return errors.Wrap(derr, "xchg: ghost_get scatter properties")
			}
			recvPeers = append(recvPeers, peer)
			recvSizes = append(recvSizes, n)
			offset += n
		}
	} else {
		for _, peer := range gl.Prc {
			buf, ok := recvPrp[peer]
			if !ok {
				continue
			}
			before := m.Store.Len()
			if err := pack.UnpackAppendProps(m.Store, buf, propIDs); err != nil {
				return errors.Wrap(err, "xchg: ghost_get unpack properties")
			}
			recvPeers = append(recvPeers, peer)
			recvSizes = append(recvSizes, len(m.Store.Prp)-before)
		}
	}

	if withPosition {
		shifts := m.Dec.ShiftVectors()
		sendPos := make(map[decomp.PID][]byte, len(gl.Prc))
		for i, peer := range gl.Prc {
			data := pack.GhostPositionBuffer(m.Store, shifts, gl.Parts(i))
			var rel func()
			sendPos[peer], rel = m.poolSend("get:pos", peer, data)
			releases = append(releases, rel)
		}
		recvPos, err := m.Coll.SSendRecv(ctx, epoch+":get:pos", sendPos, collOpt...)
		if err != nil {
			return errors.Wrap(err, "xchg: ghost_get position exchange")
		}
		for _, peer := range gl.Prc {
			buf, ok := recvPos[peer]
			if !ok {
				continue
			}
			if err := pack.UnpackAppendPositions(m.Store, buf); err != nil {
				return errors.Wrap(err, "xchg: ghost_get unpack positions")
			}
		}
	}

	if !skip {
		m.Store.ResizePropTo(m.Store.Len())
	}

	m.lastOPartLoc = shiftbox.AddLocParticlesBC(m.Dec, m.shiftIdx, m.Store, skip, withPosition, m.lastOPartLoc)

	m.topo.set(topoGet, recvPeers, recvSizes)
	for _, n := range recvSizes {
		m.metrics.ghostRecv.Add(float64(n))
	}
	return nil
}

// GhostPut is ghost_put_ (spec.md §4.D.3): the inverse of ghost_get_'s
// property half, plus the reduction of local periodic images back into
// their sources.
func (m *Manager) GhostPut(ctx context.Context, op store.CombineOp, propIDs []int) error {
	// Protocol misuse (spec.md §7): missing ghost_get_ is diagnosed, not
	// returned as a failure — "the core surfaces no recoverable errors
	// to callers" — and the reduction below proceeds over whatever
	// ranges are actually populated, which for a genuinely missing
	// ghost_get_ is the empty range (spec.md §8 Scenario 6). The
	// count check below is the same lg_m < v_prp.size() && ... check
	// the original runs; it is what actually fires the diagnostic here.
	if m.lastGhostLabels == nil {
		m.lastGhostLabels = &label.GhostLabels{}
	}
	if lgm := m.Store.LgM; lgm < len(m.Store.Prp) {
		if got, want := len(m.Store.Prp)-lgm, len(m.lastOPartLoc); got != want {
			nlog.Warningf("xchg: ghost_put_: missing ghost_get_ (|v_prp|-lg_m=%d, want %d)", got, want)
		}
	}

	recvPeers, recvSizes, ok := m.topo.get(topoGet)
	epoch, _ := shortid.Generate()

	send := make(map[decomp.PID][]byte, len(recvPeers))
	var releases []func()
	defer func() {
		for _, rel := range releases {
			rel()
		}
	}()
	if ok {
		offset := m.Store.Gm
		for i, peer := range recvPeers {
			n := recvSizes[i]
			data := pack.PutPropertyBuffer(m.Store, propIDs, offset, n)
			var rel func()
			send[peer], rel = m.poolSend("put:prp", peer, data)
			releases = append(releases, rel)
			offset += n
		}
	}

	reduced := 0
	err := m.Coll.SSendRecvOp(ctx, epoch+":put:prp", send, func(peer decomp.PID, buf []byte) error {
		idx := indexOfPID(m.lastGhostLabels.Prc, peer)
		if idx < 0 {
			return nil
		}
		parts := m.lastGhostLabels.Parts(idx)
		destIDs := make([]int, len(parts))
		for i, p := range parts {
			destIDs[i] = p.LocalID
		}
		if err := pack.UnpackCombineProps(m.Store, buf, propIDs, destIDs, op); err != nil {
			return err
		}
		reduced += len(destIDs)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "xchg: ghost_put property exchange")
	}

	for i, lp := range m.lastOPartLoc {
		idx := m.Store.LgM + i
		if idx >= len(m.Store.Prp) {
			break
		}
		src := m.Store.Prp[idx].Subset(propIDs)
		store.CombineInto(op, m.Store.Prp[lp.SourceID], propIDs, src)
		reduced++
	}

	m.metrics.putReduced.Add(float64(reduced))
	return nil
}
