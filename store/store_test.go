package store

import (
	"testing"

	"github.com/coroutinely/openfpm-pdata/point"
)

func TestAppendOwnedMovesMarkers(t *testing.T) {
	c := New(1, 2)
	c.AppendOwned(point.NewFrom(0.1), Props{1, 2})
	c.AppendOwned(point.NewFrom(0.2), Props{3, 4})
	if c.Gm != 2 {
		t.Fatalf("expected Gm==2, got Gm=%d", c.Gm)
	}
	if c.LgM != 0 {
		t.Fatalf("expected LgM to stay at its zero value until a ghost_get records it, got %d", c.LgM)
	}
	if err := c.CheckInvariant1(); err != nil {
		t.Fatal(err)
	}
}

func TestSubsetAndScatterInto(t *testing.T) {
	p := Props{10, 20, 30, 40}
	sub := p.Subset([]int{1, 3})
	if len(sub) != 2 || sub[0] != 20 || sub[1] != 40 {
		t.Fatalf("unexpected subset: %v", sub)
	}
	dst := Props{0, 0, 0, 0}
	dst.ScatterInto([]int{1, 3}, sub)
	want := Props{0, 20, 0, 40}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("ScatterInto mismatch: got %v want %v", dst, want)
		}
	}
}

func TestCombineOps(t *testing.T) {
	cases := []struct {
		op       CombineOp
		dst, src float64
		want     float64
	}{
		{OpAdd, 3, 4, 7},
		{OpMax, 3, 4, 4},
		{OpMax, 5, 4, 5},
		{OpMin, 3, 4, 3},
		{OpReplace, 3, 4, 4},
	}
	for _, c := range cases {
		if got := Combine(c.op, c.dst, c.src); got != c.want {
			t.Errorf("Combine(%s, %v, %v) = %v, want %v", c.op, c.dst, c.src, got, c.want)
		}
	}
}

func TestCombineIntoRestrictsToIDs(t *testing.T) {
	dst := Props{1, 1, 1}
	src := Props{5, 6}
	CombineInto(OpAdd, dst, []int{0, 2}, src)
	want := Props{6, 1, 7}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("CombineInto mismatch: got %v want %v", dst, want)
		}
	}
}

func TestResizePropTo(t *testing.T) {
	c := New(1, 2)
	c.AppendOwned(point.NewFrom(0), Props{1, 2})
	c.ResizePropTo(3)
	if len(c.Prp) != 3 {
		t.Fatalf("expected growth to 3 rows, got %d", len(c.Prp))
	}
	c.ResizePropTo(1)
	if len(c.Prp) != 1 {
		t.Fatalf("expected shrink to 1 row, got %d", len(c.Prp))
	}
}
