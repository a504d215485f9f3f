package point

import "testing"

func TestCombinationLin(t *testing.T) {
	dim := 2
	seen := make(map[int]Combination)
	for a := -1; a <= 1; a++ {
		for b := -1; b <= 1; b++ {
			c := NewCombination(dim)
			c[0], c[1] = int8(a), int8(b)
			lin := c.Lin()
			if other, ok := seen[lin]; ok {
				t.Fatalf("Lin collision: %v and %v both map to %d", other, c, lin)
			}
			seen[lin] = c
		}
	}
	if len(seen) != 9 {
		t.Fatalf("expected 9 distinct combinations, got %d", len(seen))
	}
}

func TestCombinationNZero(t *testing.T) {
	c := NewCombination(3)
	if c.NZero() != 3 {
		t.Fatalf("all-zero combination should report NZero==dim")
	}
	c[1] = -1
	if c.NZero() != 2 {
		t.Fatalf("expected NZero==2, got %d", c.NZero())
	}
}

func TestBoxContains(t *testing.T) {
	b := Box{Lo: NewFrom(0, 0), Hi: NewFrom(1, 1)}
	if !b.Contains(NewFrom(0, 0)) {
		t.Fatal("Lo corner should be inside (half-open)")
	}
	if b.Contains(NewFrom(1, 0)) {
		t.Fatal("Hi corner should be outside (half-open)")
	}
	if !b.Contains(NewFrom(0.5, 0.5)) {
		t.Fatal("midpoint should be inside")
	}
}

func TestDomainIsInsideAndExtent(t *testing.T) {
	d := Domain{Lo: NewFrom(0, 0), Hi: NewFrom(1, 2), Periodic: []bool{true, true}}
	if !d.IsInside(NewFrom(0.5, 1.5)) {
		t.Fatal("point should be inside domain")
	}
	if d.IsInside(NewFrom(1.0, 0)) {
		t.Fatal("Hi boundary should be outside (half-open)")
	}
	if d.Extent(1) != 2 {
		t.Fatalf("expected extent 2 on axis 1, got %v", d.Extent(1))
	}
}

func TestPointAddSub(t *testing.T) {
	p := NewFrom(1, 2, 3)
	s := NewFrom(0.5, 0.5, 0.5)
	got := p.Add(s).Sub(s)
	for i := range p {
		if got[i] != p[i] {
			t.Fatalf("Add then Sub should round-trip, got %v want %v", got, p)
		}
	}
}
