// Package cos collects small stateless helpers shared across the
// exchange pipeline, the way aistore's cmn/cos backs its higher-level
// packages with primitives that don't deserve their own package.
package cos

import (
	"sync"

	"golang.org/x/crypto/blake2b"
)

// StopCh is a broadcastable close-once channel, used the way the
// teacher's transport collector uses cos.StopCh to fan a single stop
// signal out to every goroutine waiting on Listen().
type StopCh struct {
	ch   chan struct{}
	once sync.Once
}

func NewStopCh() *StopCh { return &StopCh{ch: make(chan struct{})} }

func (s *StopCh) Listen() <-chan struct{} { return s.ch }

func (s *StopCh) Close() { s.once.Do(func() { close(s.ch) }) }

// Checksum128 is the first 16 bytes of a blake2b-256 digest, used to tag retained
// send buffers so a teardown-time invariant check can detect silent
// corruption of a still-referenced region.
func Checksum128(buf []byte) (out [16]byte) {
	full := blake2b.Sum256(buf)
	copy(out[:], full[:16])
	return out
}
