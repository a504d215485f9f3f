// Package obp implements the out-of-bound policy plug-in point
// described in spec.md §6 and §9: a small tagged-variant strategy
// object rather than open-ended polymorphism ("prefer a small
// tagged-variant (kill, bounce, assign_to(pid)) over open-ended
// polymorphism").
package obp

import "github.com/coroutinely/openfpm-pdata/decomp"

// Policy decides what happens to an owned particle whose (possibly
// boundary-folded) position still lies outside the global domain after
// applyPointBC. Returning decomp.NoPID marks the particle for deletion
// (map_ drops it from the local storage); returning my marks it kept in place;
// returning any other pid re-targets it.
type Policy interface {
	Out(localID int, my decomp.PID) decomp.PID
}

// Kill is the default policy (spec.md §6: "Default KillParticle").
type Kill struct{}

func (Kill) Out(int, decomp.PID) decomp.PID { return decomp.NoPID }

// Bounce keeps the particle on its current owner, leaving its
// out-of-domain position untouched until the next applyPointBC has a
// chance to fold it back in (e.g. a decomposition update moved the
// boundary under it).
type Bounce struct{}

func (Bounce) Out(_ int, my decomp.PID) decomp.PID { return my }

// AssignTo unconditionally re-targets every out-of-bound particle to a
// fixed pid, e.g. a "lost and found" rank that a caller sweeps
// periodically.
type AssignTo struct {
	Target decomp.PID
}

func (a AssignTo) Out(int, decomp.PID) decomp.PID { return a.Target }
