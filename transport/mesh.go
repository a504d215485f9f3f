package transport

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/coroutinely/openfpm-pdata/decomp"
)

// Mesh is an in-process communicator: every participant calls Join
// once, then drives a MeshCollective from its own goroutine. It models
// the "every peer that participates in the communicator must call the
// same operation" collective contract (spec.md §6) without a network,
// for single-binary multi-process scenarios and unit tests.
type Mesh struct {
	mu    sync.Mutex
	procs []decomp.PID
	boxes map[string]chan meshMsg
}

func NewMesh(procs []decomp.PID) *Mesh {
	return &Mesh{procs: procs, boxes: make(map[string]chan meshMsg)}
}

func (m *Mesh) box(to decomp.PID, epoch string) chan meshMsg {
	key := fmt.Sprintf("%d|%s", to, epoch)
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.boxes[key]
	if !ok {
		ch = make(chan meshMsg, len(m.procs))
		m.boxes[key] = ch
	}
	return ch
}

// Join returns the collective handle for pid. pid must be one of the
// PIDs the Mesh was constructed with.
func (m *Mesh) Join(pid decomp.PID) *MeshCollective {
	return &MeshCollective{mesh: m, self: pid}
}

// MeshCollective is the Collective implementation bound to one
// participant of a Mesh.
type MeshCollective struct {
	mesh *Mesh
	self decomp.PID
}

func (c *MeshCollective) checkIn(ctx context.Context, epoch string, send map[decomp.PID][]byte) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, peer := range c.mesh.procs {
		if peer == c.self {
			continue
		}
		peer := peer
		buf := send[peer]
		g.Go(func() error {
			select {
			case c.mesh.box(peer, epoch) <- meshMsg{from: c.self, buf: buf}:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	return g.Wait()
}

func (c *MeshCollective) collect(ctx context.Context, epoch string, remaining int) (map[decomp.PID][]byte, error) {
	recv := make(map[decomp.PID][]byte)
	box := c.mesh.box(c.self, epoch)
	for remaining > 0 {
		select {
		case msg := <-box:
			remaining--
			if len(msg.buf) > 0 {
				recv[msg.from] = msg.buf
			}
		case <-ctx.Done():
			return recv, ctx.Err()
		}
	}
	return recv, nil
}

// expectCount is the number of check-ins this call waits for before
// returning. Without ReceiveKnown it's a full barrier over every other
// communicator member (the default discovery path). With ReceiveKnown
// (spec.md §4.D.4 NO_CHANGE_ELEMENTS) the caller already knows its
// receive topology mirrors its send topology, so it only waits for as
// many check-ins as it itself addressed non-nil buffers to.
func expectCount(all []decomp.PID, self decomp.PID, send map[decomp.PID][]byte, opt CollectiveOpt) int {
	if !opt.Has(ReceiveKnown) {
		n := 0
		for _, p := range all {
			if p != self {
				n++
			}
		}
		return n
	}
	n := 0
	for _, buf := range send {
		if buf != nil {
			n++
		}
	}
	return n
}

func (c *MeshCollective) SSendRecv(ctx context.Context, epoch string, send map[decomp.PID][]byte, opt ...CollectiveOpt) (map[decomp.PID][]byte, error) {
	if err := c.checkIn(ctx, epoch, send); err != nil {
		return nil, err
	}
	expect := expectCount(c.mesh.procs, c.self, send, mergeOpt(opt))
	return c.collect(ctx, epoch, expect)
}

func (c *MeshCollective) SSendRecvOp(ctx context.Context, epoch string, send map[decomp.PID][]byte, merge func(peer decomp.PID, buf []byte) error, opt ...CollectiveOpt) error {
	recv, err := c.SSendRecv(ctx, epoch, send, opt...)
	if err != nil {
		return err
	}
	for _, peer := range c.mesh.procs {
		buf, ok := recv[peer]
		if !ok {
			continue
		}
		if err := merge(peer, buf); err != nil {
			return err
		}
	}
	return nil
}

func (c *MeshCollective) ProcessingUnits() int { return 1 }
func (c *MeshCollective) ProcessUnitID() int   { return int(c.self) }
