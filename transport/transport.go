// Package transport is the collective layer consumed by the exchange
// driver (spec.md §6 "Collective layer (consumed)"). It is an external
// collaborator per spec.md §1 ("the collective message-passing layer"
// is out of scope) — this package states the contract and ships two
// implementations: an in-process Mesh for tests and single-binary
// simulation, and an HTTP one built on the teacher's own streaming
// idiom (valyala/fasthttp), grounded on
// _examples/SK-Kadam-aistore/transport/collect.go.
package transport

import (
	"context"

	"github.com/coroutinely/openfpm-pdata/decomp"
)

// CollectiveOpt carries the "acceptable opt bits" of spec.md §6:
// RECEIVE_KNOWN|KNOWN_ELEMENT_OR_BYTE (the NO_CHANGE_ELEMENTS fast
// path) and MPI_GPU_DIRECT (the MAP_ON_DEVICE path).
type CollectiveOpt uint32

const (
	// ReceiveKnown skips full-member discovery: the caller already
	// knows the receive topology (spec.md §4.D.4 NO_CHANGE_ELEMENTS)
	// and only waits for as many check-ins as it itself is sending,
	// instead of barrier-waiting on every process in the communicator.
	ReceiveKnown CollectiveOpt = 1 << iota
	// KnownElementOrByte accompanies ReceiveKnown: the per-peer sizes
	// are also unchanged, so no size renegotiation is needed.
	KnownElementOrByte
	// MPIGPUDirect marks a device-resident exchange (spec.md §4.C.4
	// MAP_ON_DEVICE). No Collective implementation here is device
	// aware; it is accepted and otherwise ignored.
	MPIGPUDirect
)

func (o CollectiveOpt) Has(f CollectiveOpt) bool { return o&f != 0 }

func mergeOpt(opt []CollectiveOpt) CollectiveOpt {
	var o CollectiveOpt
	for _, x := range opt {
		o |= x
	}
	return o
}

// Collective is SSendRecv / SSendRecvP / SSendRecvP_op collapsed into
// one byte-oriented contract: the packer already narrowed and
// serialized whatever's being sent, so the collective layer only ever
// moves opaque per-peer buffers and reports who it heard back from.
type Collective interface {
	// SSendRecv scatters send's per-peer buffers and blocks until
	// every other process in the communicator has checked in for this
	// epoch, returning the buffers received from peers who sent
	// non-empty data — the "discovered receive topology" of spec.md §6.
	// opt is optional; passing ReceiveKnown enables the RECEIVE_KNOWN
	// fast path (spec.md §4.D.4 NO_CHANGE_ELEMENTS).
	SSendRecv(ctx context.Context, epoch string, send map[decomp.PID][]byte, opt ...CollectiveOpt) (map[decomp.PID][]byte, error)

	// SSendRecvOp is the same fan-out, but invokes merge per receipt
	// instead of buffering a map — used by ghost_put and by the
	// SKIP_LABELLING ghost_get reuse path (SSendRecvP_op, spec.md §6).
	SSendRecvOp(ctx context.Context, epoch string, send map[decomp.PID][]byte, merge func(peer decomp.PID, buf []byte) error, opt ...CollectiveOpt) error

	ProcessingUnits() int
	ProcessUnitID() int
}

type meshMsg struct {
	from decomp.PID
	buf  []byte
}
