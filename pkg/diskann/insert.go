package diskann

import "sort"

// alpha is the robust-prune diversification factor, fixed at 1.2 per
// the standard DiskANN rule (§4.7).
const alpha = 1.2

// robustPrune implements §4.7 step 2: sort candidates by ascending
// distance to V, then greedily accept a candidate s into N only if,
// for every n already in N, alpha*d(s,n) > d(V,s). Stops once N
// reaches maxNeighbors.
func robustPrune(target Vector, candidates []*visitedNode, maxNeighbors int) ([]*visitedNode, error) {
	sorted := make([]*visitedNode, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].dist < sorted[j].dist })

	result := make([]*visitedNode, 0, maxNeighbors)
	for _, s := range sorted {
		if len(result) >= maxNeighbors {
			break
		}
		accepted := true
		for _, n := range result {
			dsn, err := DistanceCos(s.vec, n.vec)
			if err != nil {
				return nil, err
			}
			if alpha*dsn <= s.dist {
				accepted = false
				break
			}
		}
		if accepted {
			result = append(result, s)
		}
	}
	return result, nil
}

// Insert performs §4.7's incremental graph growth: traverse from the
// entry point to gather a candidate neighbor set, robust-prune it,
// append the new node's block, back-link into each accepted
// neighbor (re-pruning that neighbor if it would overflow M), and
// set the entry point if the graph was previously empty.
func (idx *IndexFile) Insert(v Vector, id int64, width int) error {
	if v.Dim() != int(idx.header.VectorDims) {
		return newErr(InvalidArgument, "Insert", "vector dimension does not match index dimension")
	}

	res, err := traverse(idx, v, width, width)
	if err != nil {
		return wrapErr(IoError, "Insert", "traversal for neighbor candidates failed", err)
	}

	neighbors, err := robustPrune(v, res.visited, idx.layout.maxNeighbors)
	if err != nil {
		return wrapErr(InvalidArgument, "Insert", "robust prune failed", err)
	}
	if idx.metrics != nil {
		idx.metrics.RecordPrune(idx.metricsName)
	}

	newBlock := &nodeBlock{
		Vector:              v,
		ID:                  id,
		Neighbors:           make([]NeighborMetadata, 0, len(neighbors)),
		neighborVectorBlobs: make([][]byte, idx.layout.maxNeighbors),
	}
	for i, n := range neighbors {
		newBlock.Neighbors = append(newBlock.Neighbors, NeighborMetadata{ID: n.id, Offset: n.offset})
		newBlock.neighborVectorBlobs[i] = n.vec.SerializeBlob()
	}

	newOffset, err := idx.appendNode(newBlock)
	if err != nil {
		return wrapErr(IoError, "Insert", "appending new node block failed", err)
	}

	for _, n := range neighbors {
		if err := idx.backLink(n.offset, n.vec, v, id, newOffset); err != nil {
			return wrapErr(IoError, "Insert", "back-linking new node into existing neighbor failed", err)
		}
	}

	if idx.header.EntryOffset == 0 {
		if err := idx.setEntryOffset(newOffset); err != nil {
			return wrapErr(IoError, "Insert", "setting entry offset failed", err)
		}
	}

	return nil
}

// backLink reads neighbor n's block (at nOffset, with vector nVec),
// adds a (newID, newOffset) reference to it, and rewrites the block
// in place. If the new neighbor count would exceed M, it re-prunes
// the union of n's existing neighbors plus the new one before
// rewriting (§4.7 step 5).
func (idx *IndexFile) backLink(nOffset uint64, nVec Vector, newVec Vector, newID int64, newOffset uint64) error {
	block, err := idx.readNodeAt(nOffset)
	if err != nil {
		return err
	}

	if len(block.Neighbors) < idx.layout.maxNeighbors {
		block.Neighbors = append(block.Neighbors, NeighborMetadata{ID: newID, Offset: newOffset})
		block.neighborVectorBlobs[len(block.Neighbors)-1] = newVec.SerializeBlob()
		if err := idx.writeNodeAt(nOffset, block); err != nil {
			return err
		}
		if idx.metrics != nil {
			idx.metrics.RecordBackLinkRewrite(idx.metricsName)
		}
		return nil
	}

	// Overflow: rebuild candidate set from n's existing neighbors plus
	// the new one and re-prune against n's own vector, in robustPrune's
	// ascending distance-from-n order. Candidates at equal distance
	// from n are not ordered by any further key.
	candidates := make([]*visitedNode, 0, len(block.Neighbors)+1)
	for i, nm := range block.Neighbors {
		vec, err := block.neighborVector(i)
		if err != nil {
			return err
		}
		d, err := DistanceCos(nVec, vec)
		if err != nil {
			return err
		}
		candidates = append(candidates, &visitedNode{vec: vec, id: nm.ID, offset: nm.Offset, dist: d})
	}
	dNew, err := DistanceCos(nVec, newVec)
	if err != nil {
		return err
	}
	candidates = append(candidates, &visitedNode{vec: newVec, id: newID, offset: newOffset, dist: dNew})

	pruned, err := robustPrune(nVec, candidates, idx.layout.maxNeighbors)
	if err != nil {
		return err
	}
	if idx.metrics != nil {
		idx.metrics.RecordPrune(idx.metricsName)
	}

	block.Neighbors = block.Neighbors[:0]
	for i := range block.neighborVectorBlobs {
		block.neighborVectorBlobs[i] = nil
	}
	for i, p := range pruned {
		block.Neighbors = append(block.Neighbors, NeighborMetadata{ID: p.id, Offset: p.offset})
		block.neighborVectorBlobs[i] = p.vec.SerializeBlob()
	}

	if err := idx.writeNodeAt(nOffset, block); err != nil {
		return err
	}
	if idx.metrics != nil {
		idx.metrics.RecordBackLinkRewrite(idx.metricsName)
	}
	return nil
}
