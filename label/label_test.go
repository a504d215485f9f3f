package label

import (
	"testing"

	"github.com/coroutinely/openfpm-pdata/decomp"
	"github.com/coroutinely/openfpm-pdata/obp"
	"github.com/coroutinely/openfpm-pdata/point"
	"github.com/coroutinely/openfpm-pdata/store"
)

func unitDomain() point.Domain {
	return point.Domain{Lo: point.NewFrom(0), Hi: point.NewFrom(1), Periodic: []bool{true}}
}

func TestLabelMapFoldsAndKeepsOwned(t *testing.T) {
	g := decomp.Grid{Domain: unitDomain(), NProcs: 1, GhostExtent: 0.1}
	d := decomp.NewGridDecomposition(g, 0)

	c := store.New(1, 1)
	c.AppendOwned(point.NewFrom(0.2), store.Props{0})
	c.AppendOwned(point.NewFrom(1.05), store.Props{0})

	ml := LabelMap(d, c, obp.Kill{})
	if len(ml.Opart) != 0 {
		t.Fatalf("single process should keep every particle, got %d emigrants", len(ml.Opart))
	}
	if c.Pos[1][0] < 0.0499 || c.Pos[1][0] > 0.0501 {
		t.Fatalf("position should be folded in place even when staying owned, got %v", c.Pos[1][0])
	}
}

func TestLabelMapAssignsEmigrant(t *testing.T) {
	g := decomp.Grid{Domain: point.Domain{Lo: point.NewFrom(0), Hi: point.NewFrom(1), Periodic: []bool{false}}, NProcs: 2, GhostExtent: 0.05}
	d := decomp.NewGridDecomposition(g, 0)

	c := store.New(1, 1)
	c.AppendOwned(point.NewFrom(0.6), store.Props{0}) // belongs to process 1

	ml := LabelMap(d, c, obp.Kill{})
	if len(ml.Opart) != 1 {
		t.Fatalf("expected 1 emigrant, got %d", len(ml.Opart))
	}
	if ml.Opart[0].Target != 1 {
		t.Fatalf("expected target pid 1, got %v", ml.Opart[0].Target)
	}
	if ml.PrcSz[1] != 1 {
		t.Fatalf("expected PrcSz[1]==1, got %d", ml.PrcSz[1])
	}
}

func TestLabelGhostSingleProcessNoNearPeers(t *testing.T) {
	g := decomp.Grid{Domain: unitDomain(), NProcs: 1, GhostExtent: 0.1}
	d := decomp.NewGridDecomposition(g, 0)

	c := store.New(1, 1)
	c.AppendOwned(point.NewFrom(0.02), store.Props{0})

	gl := LabelGhost(d, c)
	if len(gl.Prc) != 0 {
		t.Fatalf("a process with no near-neighbours should have an empty ghost send list, got %d peers", len(gl.Prc))
	}
}

func TestPeerOffsetsAccumulate(t *testing.T) {
	ml := &MapLabels{PrcSz: []int{3, 0, 2}}
	off := ml.PeerOffsets([]decomp.PID{0, 2})
	if off[0] != 0 || off[2] != 3 {
		t.Fatalf("unexpected offsets: %v", off)
	}
}
