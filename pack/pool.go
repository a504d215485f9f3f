// Package pack implements component C, the packer/unpacker, including
// the retained send-buffer pool described in spec.md §3 ("Retained
// send buffers") and §4.C.2.
package pack

import (
	"sync"

	"github.com/coroutinely/openfpm-pdata/cmn/cos"
	"github.com/coroutinely/openfpm-pdata/cmn/debug"
)

// Buffer is one retained, reference-counted memory region. Views
// handed to the collective layer hold a reference; the Pool holds one.
// decRef on destruction releases memory when and only when no view
// refers to it (spec.md §3 "Retained send buffers").
type Buffer struct {
	Data     []byte
	refc     int32
	checksum [16]byte
}

func newBuffer(data []byte) *Buffer {
	b := &Buffer{Data: data, refc: 1}
	b.checksum = cos.Checksum128(data)
	return b
}

// Hold adds a reference, returning the same Buffer for chaining.
func (b *Buffer) Hold() *Buffer {
	b.refc++
	return b
}

// Release drops a reference. It reports whether the buffer was freed.
func (b *Buffer) Release() bool {
	b.refc--
	debug.Assert(b.refc >= 0)
	if b.refc == 0 {
		b.Data = nil
		return true
	}
	return false
}

// RefCount returns the current reference count, used by the teardown
// invariant check (spec.md §7: "a retained buffer with refcount ≠ 1").
func (b *Buffer) RefCount() int32 { return b.refc }

// VerifyChecksum re-derives the buffer's 128-bit blake2b tag and reports
// whether it still matches what was recorded when the buffer was
// filled — a cheap corruption check for a region that's supposed to be
// read-only between fill and release.
func (b *Buffer) VerifyChecksum() bool {
	return cos.Checksum128(b.Data) == b.checksum
}

// Pool is hsmem (spec.md §3): an ordered pool of retained buffers, one
// slot per string key (see KeySlot). All property rows of a peer share
// one buffer; there is no per-property slot layout.
type Pool struct {
	mu    sync.Mutex
	Hsmem []*Buffer
	slots map[string]int
}

func NewPool() *Pool { return &Pool{} }

// KeySlot returns the stable slot index for key, growing the pool the
// first time key is seen. Exchange call sites key slots by operation,
// buffer kind, and peer (e.g. "get:prp:3") so that repeated calls
// reuse the same slot — and, via Fill, release the previous call's
// region rather than ever holding two generations of the same peer's
// buffer at once (spec.md §3 "entries survive across calls so repeated
// exchanges reuse allocations").
func (p *Pool) KeySlot(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.slots == nil {
		p.slots = make(map[string]int)
	}
	if i, ok := p.slots[key]; ok {
		return i
	}
	i := len(p.Hsmem)
	p.Hsmem = append(p.Hsmem, nil)
	p.slots[key] = i
	return i
}

// Resize implements resize_retained_buffer: drop refs on any region
// being shrunk away, then resize to n slots. Slots beyond the old
// length are nil until Fill populates them.
func (p *Pool) Resize(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n < len(p.Hsmem) {
		for _, b := range p.Hsmem[n:] {
			if b != nil {
				b.Release()
			}
		}
	}
	if n <= len(p.Hsmem) {
		p.Hsmem = p.Hsmem[:n]
		return
	}
	grown := make([]*Buffer, n)
	copy(grown, p.Hsmem)
	p.Hsmem = grown
}

// Fill replaces slot i's buffer, releasing whatever was retained there
// before and retaining the new one on the pool's behalf.
func (p *Pool) Fill(i int, data []byte) *Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Hsmem[i] != nil {
		p.Hsmem[i].Release()
	}
	b := newBuffer(data)
	p.Hsmem[i] = b
	return b
}

func (p *Pool) Get(i int) *Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Hsmem[i]
}

// Teardown releases the pool's own reference to every slot still
// retained with refcount 1, and diagnoses (never panics) any slot a
// view is still holding — spec.md §7's "invariant violation at
// teardown" — as well as any slot whose contents no longer match the
// checksum recorded at Fill.
func (p *Pool) Teardown(diag func(format string, args ...any)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, b := range p.Hsmem {
		if b == nil {
			continue
		}
		if !b.VerifyChecksum() {
			diag("pack: buffer %d checksum mismatch at teardown", i)
		}
		if b.RefCount() != 1 {
			diag("pack: buffer %d released at teardown with refcount=%d (want 1)", i, b.RefCount())
			continue
		}
		b.Release()
	}
	p.Hsmem = nil
}
