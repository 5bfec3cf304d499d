package diskann

import "testing"

func mkVisited(offset uint64, dist float64) *visitedNode {
	return &visitedNode{offset: offset, dist: dist, block: &nodeBlock{}}
}

func TestSearchContextAddCandidateEviction(t *testing.T) {
	sc := newSearchContext(Vector{}, 2, 2)
	sc.addCandidate(mkVisited(1, 0.5))
	sc.addCandidate(mkVisited(2, 0.1))
	if len(sc.candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(sc.candidates))
	}
	// Adding a third, closer candidate should evict the farthest (offset 1).
	sc.addCandidate(mkVisited(3, 0.3))
	if len(sc.candidates) != 2 {
		t.Fatalf("expected eviction to keep width at 2, got %d", len(sc.candidates))
	}
	if sc.contains(1) {
		t.Fatal("expected farthest candidate (offset 1) to be evicted")
	}
	if !sc.contains(2) || !sc.contains(3) {
		t.Fatal("expected closer candidates to remain")
	}
}

func TestSearchContextEvictionTieBreak(t *testing.T) {
	sc := newSearchContext(Vector{}, 2, 2)
	sc.addCandidate(mkVisited(10, 0.5))
	sc.addCandidate(mkVisited(20, 0.5))
	sc.addCandidate(mkVisited(30, 0.1))
	// Among the tied-distance 0.5 candidates, the smaller offset (10) is evicted.
	if sc.contains(10) {
		t.Fatal("expected smaller-offset tie to be evicted")
	}
	if !sc.contains(20) {
		t.Fatal("expected larger-offset tie to remain")
	}
}

func TestSearchContextVisitedSurvivesEviction(t *testing.T) {
	sc := newSearchContext(Vector{}, 1, 5)
	a := mkVisited(1, 0.9)
	sc.addCandidate(a)
	sc.markVisited(a)

	// Even though width is 1 and a has been moved to V, adding more
	// candidates to A must not evict a from the visited list.
	sc.addCandidate(mkVisited(2, 0.1))
	sc.addCandidate(mkVisited(3, 0.2))

	found := false
	for _, v := range sc.visitedSet {
		if v.offset == 1 {
			found = true
		}
	}
	if !found {
		t.Fatal("expected visited node to persist independent of candidate eviction")
	}
}

func TestSearchContextClosestUnvisited(t *testing.T) {
	sc := newSearchContext(Vector{}, 3, 3)
	sc.addCandidate(mkVisited(1, 0.5))
	sc.addCandidate(mkVisited(2, 0.1))
	sc.addCandidate(mkVisited(3, 0.3))

	c := sc.closestUnvisited()
	if c == nil || c.offset != 2 {
		t.Fatalf("expected closest unvisited offset 2, got %+v", c)
	}
}

func TestTraverseEmptyGraph(t *testing.T) {
	dev := &memBlockDevice{}
	idx, err := openIndexFileOn(dev, 3)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	q, _ := ParseText("[1,0,0]")
	res, err := traverse(idx, q, 10, 5)
	if err != nil {
		t.Fatalf("traverse: %v", err)
	}
	if len(res.topK) != 0 || len(res.visited) != 0 {
		t.Fatal("expected empty result on empty graph")
	}
}

func TestTraverseSingleNode(t *testing.T) {
	dev := &memBlockDevice{}
	idx, err := openIndexFileOn(dev, 3)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	v, _ := ParseText("[1,0,0]")
	nb := &nodeBlock{Vector: v, ID: 7, neighborVectorBlobs: make([][]byte, idx.layout.maxNeighbors)}
	offset, err := idx.appendNode(nb)
	if err != nil {
		t.Fatalf("appendNode: %v", err)
	}
	if err := idx.setEntryOffset(offset); err != nil {
		t.Fatalf("setEntryOffset: %v", err)
	}

	q, _ := ParseText("[1,0,0]")
	res, err := traverse(idx, q, 10, 5)
	if err != nil {
		t.Fatalf("traverse: %v", err)
	}
	if len(res.topK) != 1 || res.topK[0].id != 7 {
		t.Fatalf("expected single result with id 7, got %+v", res.topK)
	}
}
