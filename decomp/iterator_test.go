package decomp

import "testing"

func TestGridIteratorWalksRowMajor(t *testing.T) {
	it := NewGridIterator(GridKey{0, 0}, GridKey{2, 3})
	var visited []GridKey
	for {
		visited = append(visited, it.Get().Clone())
		if !it.Next() {
			break
		}
	}
	if len(visited) != 6 {
		t.Fatalf("expected 6 cells, got %d", len(visited))
	}
	want := []GridKey{{0, 0}, {0, 1}, {0, 2}, {1, 0}, {1, 1}, {1, 2}}
	for i, k := range want {
		if visited[i][0] != k[0] || visited[i][1] != k[1] {
			t.Fatalf("cell %d: got %v, want %v", i, visited[i], k)
		}
	}
}

func TestGridIteratorEmptyRange(t *testing.T) {
	it := NewGridIterator(GridKey{0}, GridKey{0})
	if !it.Done() {
		t.Fatal("an empty range should be Done immediately")
	}
}
