package diskann

// visitedNode is a node read in from disk during a search, carrying
// enough state for the bounded candidate list and the visited list.
// It mirrors VectorNode from the original source, minus the manual
// linked-list pointer — Go's slices own that bookkeeping here.
type visitedNode struct {
	vec     Vector
	id      int64
	offset  uint64
	visited bool
	dist    float64 // cached distance to the query, computed once on read
	block   *nodeBlock
}

// searchContext is the bounded candidate pool a traversal runs
// against, plus the separate, unbounded visited list. A candidate
// node is first pending in A; markVisited moves it into V, at which
// point it is no longer subject to A's width-L eviction (§4.5:
// "Candidates and the visited list are disjoint views: a node is
// first a pending candidate, then atomically moved to the visited
// list upon selection").
type searchContext struct {
	query Vector
	width int // L
	k     int

	candidates []*visitedNode // A: unvisited, bounded to width
	visitedSet []*visitedNode // V: visited, unbounded

	// seen tracks every offset represented in A ∪ V, so the traversal
	// never enqueues a block that is already in A or V (§4.6 step 3).
	// An offset evicted from A is dropped from seen, so that block may
	// be read again if another visited node lists it.
	seen map[uint64]struct{}
}

func newSearchContext(query Vector, width, k int) *searchContext {
	return &searchContext{
		query:      query,
		width:      width,
		k:          k,
		candidates: make([]*visitedNode, 0, width),
		visitedSet: make([]*visitedNode, 0, width),
		seen:       make(map[uint64]struct{}, width*2),
	}
}

// contains reports whether offset already has a representative in
// A ∪ V.
func (sc *searchContext) contains(offset uint64) bool {
	_, ok := sc.seen[offset]
	return ok
}

// addCandidate appends n to A and marks its offset seen. If A is
// already at width L, the unvisited candidate with the largest
// distance to the query is evicted, ties broken by the smaller
// offset, so A always holds (up to) the L closest unvisited
// candidates encountered (§4.5).
func (sc *searchContext) addCandidate(n *visitedNode) {
	sc.seen[n.offset] = struct{}{}
	sc.candidates = append(sc.candidates, n)

	if len(sc.candidates) <= sc.width {
		return
	}

	worstIdx := -1
	for i, c := range sc.candidates {
		if worstIdx == -1 {
			worstIdx = i
			continue
		}
		wc := sc.candidates[worstIdx]
		if c.dist > wc.dist || (c.dist == wc.dist && c.offset < wc.offset) {
			worstIdx = i
		}
	}
	evicted := sc.candidates[worstIdx]
	delete(sc.seen, evicted.offset)
	sc.candidates = append(sc.candidates[:worstIdx], sc.candidates[worstIdx+1:]...)
}

// closestUnvisited linear-scans A for the entry minimising distance
// to the query. Returns nil once A is empty.
func (sc *searchContext) closestUnvisited() *visitedNode {
	var best *visitedNode
	for _, c := range sc.candidates {
		if best == nil || c.dist < best.dist {
			best = c
		}
	}
	return best
}

// markVisited removes n from A and splices it onto V.
func (sc *searchContext) markVisited(n *visitedNode) {
	for i, c := range sc.candidates {
		if c == n {
			sc.candidates = append(sc.candidates[:i], sc.candidates[i+1:]...)
			break
		}
	}
	n.visited = true
	sc.visitedSet = append(sc.visitedSet, n)
}

// topK returns up to k entries of V ordered by ascending distance to
// the query (§4.6 step 4).
func (sc *searchContext) topK() []*visitedNode {
	v := make([]*visitedNode, len(sc.visitedSet))
	copy(v, sc.visitedSet)
	// Search working sets are bounded by L (tens of entries), so a
	// plain insertion sort is cheaper here than sort.Slice's
	// interface-call overhead and keeps ordering obviously stable.
	for i := 1; i < len(v); i++ {
		for j := i; j > 0 && v[j].dist < v[j-1].dist; j-- {
			v[j], v[j-1] = v[j-1], v[j]
		}
	}
	if len(v) > sc.k {
		v = v[:sc.k]
	}
	return v
}

// searchResult is the outcome of a traversal: up to k nodes ordered
// by ascending distance, plus the full visited set (used by insert's
// neighbor-candidate step, §4.7 step 1).
type searchResult struct {
	topK    []*visitedNode
	visited []*visitedNode
}

// traverse runs greedy best-first search from the entry point, per
// §4.6. If the graph is empty (entryOffset==0) it returns an empty
// result rather than an error.
func traverse(idx *IndexFile, query Vector, width, k int) (*searchResult, error) {
	if idx.header.EntryOffset == 0 {
		return &searchResult{}, nil
	}

	sc := newSearchContext(query, width, k)

	entry, err := readAsVisitedNode(idx, query, idx.header.EntryOffset)
	if err != nil {
		return nil, err
	}
	sc.addCandidate(entry)

	for {
		c := sc.closestUnvisited()
		if c == nil {
			break
		}
		sc.markVisited(c)

		for _, nm := range c.block.Neighbors {
			if sc.contains(nm.Offset) {
				continue
			}
			n, err := readAsVisitedNode(idx, query, nm.Offset)
			if err != nil {
				return nil, err
			}
			sc.addCandidate(n)
		}
	}

	return &searchResult{
		topK:    sc.topK(),
		visited: sc.visitedSet,
	}, nil
}

func readAsVisitedNode(idx *IndexFile, query Vector, offset uint64) (*visitedNode, error) {
	block, err := idx.readNodeAt(offset)
	if err != nil {
		return nil, err
	}
	d, err := DistanceCos(query, block.Vector)
	if err != nil {
		return nil, err
	}
	return &visitedNode{
		vec:    block.Vector,
		id:     block.ID,
		offset: offset,
		dist:   d,
		block:  block,
	}, nil
}
