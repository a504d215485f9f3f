package xchg_test

import (
	"context"
	"sync"
	"sync/atomic"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/coroutinely/openfpm-pdata/decomp"
	"github.com/coroutinely/openfpm-pdata/point"
	"github.com/coroutinely/openfpm-pdata/store"
	"github.com/coroutinely/openfpm-pdata/transport"
	"github.com/coroutinely/openfpm-pdata/xchg"
)

func unitPeriodicDomain() point.Domain {
	return point.Domain{Lo: point.NewFrom(0), Hi: point.NewFrom(1), Periodic: []bool{true}}
}

func singleProcessManager(nprop int, ghostExtent float64) (*xchg.Manager, *store.Container) {
	g := decomp.Grid{Domain: unitPeriodicDomain(), NProcs: 1, GhostExtent: ghostExtent}
	d := decomp.NewGridDecomposition(g, 0)
	c := store.New(1, nprop)
	coll := transport.NewMesh([]decomp.PID{0}).Join(0)
	return xchg.NewManager(d, c, coll, nil, nil), c
}

// countingDecomposition wraps a Decomposition and counts calls to
// GhostProcessorIDPair, the only entry point LabelGhost uses — letting
// Scenario 5 observe that SKIP_LABELLING issues no decomposition
// queries (spec.md Scenario 5).
type countingDecomposition struct {
	decomp.Decomposition
	ghostQueries int32
}

func (c *countingDecomposition) GhostProcessorIDPair(p point.Point, unique bool) []decomp.PeerShift {
	atomic.AddInt32(&c.ghostQueries, 1)
	return c.Decomposition.GhostProcessorIDPair(p, unique)
}

var _ = Describe("particle exchange", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("Scenario 1: map across a periodic boundary (1 process, 1D)", func() {
		It("folds positions back into the domain and keeps every particle owned", func() {
			m, c := singleProcessManager(0, 0.1)
			c.AppendOwned(point.NewFrom(0.1), store.Props{})
			c.AppendOwned(point.NewFrom(0.95), store.Props{})
			c.Pos[0][0] += 0.1
			c.Pos[1][0] += 0.1

			Expect(m.Map(ctx, xchg.WithPosition)).To(Succeed())

			Expect(c.Pos[0][0]).To(BeNumerically("~", 0.2, 1e-9))
			Expect(c.Pos[1][0]).To(BeNumerically("~", 0.05, 1e-9))
			Expect(c.Gm).To(Equal(2))
		})
	})

	Describe("Scenario 2: ghost_get with periodic replication (1 process)", func() {
		It("synthesizes a shifted local periodic image", func() {
			m, c := singleProcessManager(1, 0.1)
			c.AppendOwned(point.NewFrom(0.02), store.Props{0})

			Expect(m.GhostGet(ctx, xchg.WithPosition, []int{0})).To(Succeed())

			Expect(c.Gm).To(Equal(1))
			Expect(c.LgM).To(Equal(1))
			Expect(c.Len()).To(Equal(2))
			Expect(c.Pos[0][0]).To(BeNumerically("~", 0.02, 1e-9))
			Expect(c.Pos[1][0]).To(BeNumerically("~", 1.02, 1e-9))
		})
	})

	Describe("Scenario 3: ghost_put sum (1 process, periodic)", func() {
		It("reduces the ghost copy's value into the owner", func() {
			m, c := singleProcessManager(1, 0.1)
			c.AppendOwned(point.NewFrom(0.02), store.Props{0})
			Expect(m.GhostGet(ctx, xchg.WithPosition, []int{0})).To(Succeed())

			c.Prp[0][0] = 3.0
			c.Prp[1][0] = 4.0

			Expect(m.GhostPut(ctx, store.OpAdd, []int{0})).To(Succeed())

			Expect(c.Prp[0][0]).To(BeNumerically("==", 7.0))
		})
	})

	Describe("Scenario 4: map between two processes", func() {
		It("relocates the emigrant particle to its new owner", func() {
			g := decomp.Grid{
				Domain:      point.Domain{Lo: point.NewFrom(0), Hi: point.NewFrom(1), Periodic: []bool{false}},
				NProcs:      2,
				GhostExtent: 0.05,
			}
			mesh := transport.NewMesh([]decomp.PID{0, 1})

			d0 := decomp.NewGridDecomposition(g, 0)
			c0 := store.New(1, 0)
			c0.AppendOwned(point.NewFrom(0.4), store.Props{})
			c0.Pos[0][0] = 0.6 // move across the 0.5 split
			m0 := xchg.NewManager(d0, c0, mesh.Join(0), nil, nil)

			d1 := decomp.NewGridDecomposition(g, 1)
			c1 := store.New(1, 0)
			m1 := xchg.NewManager(d1, c1, mesh.Join(1), nil, nil)

			var wg sync.WaitGroup
			var err0, err1 error
			wg.Add(2)
			go func() { defer wg.Done(); err0 = m0.Map(ctx, xchg.WithPosition) }()
			go func() { defer wg.Done(); err1 = m1.Map(ctx, xchg.WithPosition) }()
			wg.Wait()

			Expect(err0).NotTo(HaveOccurred())
			Expect(err1).NotTo(HaveOccurred())
			Expect(c0.Gm).To(Equal(0))
			Expect(c1.Gm).To(Equal(1))
			Expect(c1.Pos[0][0]).To(BeNumerically("~", 0.6, 1e-9))
		})
	})

	Describe("Scenario 5: SKIP_LABELLING reuse", func() {
		It("refreshes ghost properties without re-querying the decomposition or touching positions", func() {
			g := decomp.Grid{Domain: unitPeriodicDomain(), NProcs: 1, GhostExtent: 0.1}
			counting := &countingDecomposition{Decomposition: decomp.NewGridDecomposition(g, 0)}
			c := store.New(1, 1)
			c.AppendOwned(point.NewFrom(0.02), store.Props{1})
			coll := transport.NewMesh([]decomp.PID{0}).Join(0)
			m := xchg.NewManager(counting, c, coll, nil, nil)

			Expect(m.GhostGet(ctx, xchg.WithPosition, []int{0})).To(Succeed())
			posBefore := c.Pos[1][0]

			c.Prp[0][0] = 9 // perturb only the owner's property value

			atomic.StoreInt32(&counting.ghostQueries, 0)
			Expect(m.GhostGet(ctx, xchg.SkipLabelling|xchg.NoPosition, []int{0})).To(Succeed())

			Expect(atomic.LoadInt32(&counting.ghostQueries)).To(Equal(int32(0)))
			Expect(c.Pos[1][0]).To(BeNumerically("==", posBefore))
			Expect(c.Prp[1][0]).To(BeNumerically("==", 9))
		})
	})

	Describe("Scenario 6: ghost_put without a preceding ghost_get", func() {
		It("diagnoses the missing ghost_get but does not fail, and leaves owned particles untouched", func() {
			m, c := singleProcessManager(1, 0.1)
			c.AppendOwned(point.NewFrom(0.2), store.Props{5})

			Expect(m.Map(ctx, xchg.WithPosition)).To(Succeed())

			Expect(m.GhostPut(ctx, store.OpAdd, []int{0})).To(Succeed())
			Expect(c.Prp[0][0]).To(BeNumerically("==", 5))
		})
	})
})
