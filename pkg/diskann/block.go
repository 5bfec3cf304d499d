package diskann

// headerMagic is "DiskANN\0" byte-reversed, matching the original
// source's 0x4E4E416B736944.
const headerMagic uint64 = 0x4E4E416B736944

// defaultBlockSizeMultiplier yields 4096-byte blocks (value << 9).
const defaultBlockSizeMultiplier uint16 = 8

// similarityCosine is the only similarity-function tag defined.
const similarityCosine uint16 = 0

const headerBytes = 32

// Header is the 32-byte on-disk file header, little-endian throughout.
type Header struct {
	Magic            uint64
	BlockSize        uint16 // block bytes = BlockSize << 9
	VectorType       VectorType
	VectorDims       uint16
	SimilarityFn     uint16
	EntryOffset      uint64
	FirstFreeOffset  uint64
}

func (h *Header) encode() []byte {
	buf := make([]byte, headerBytes)
	putU64(buf[0:8], h.Magic)
	putU16(buf[8:10], h.BlockSize)
	putU16(buf[10:12], uint16(h.VectorType))
	putU16(buf[12:14], h.VectorDims)
	putU16(buf[14:16], h.SimilarityFn)
	putU64(buf[16:24], h.EntryOffset)
	putU64(buf[24:32], h.FirstFreeOffset)
	return buf
}

func decodeHeader(buf []byte) (*Header, error) {
	if len(buf) < headerBytes {
		return nil, newErr(CorruptIndex, "decodeHeader", "header short read")
	}
	h := &Header{
		Magic:           getU64(buf[0:8]),
		BlockSize:       getU16(buf[8:10]),
		VectorType:      VectorType(getU16(buf[10:12])),
		VectorDims:      getU16(buf[12:14]),
		SimilarityFn:    getU16(buf[14:16]),
		EntryOffset:     getU64(buf[16:24]),
		FirstFreeOffset: getU64(buf[24:32]),
	}
	if h.Magic != headerMagic {
		return nil, newErr(CorruptIndex, "decodeHeader", "bad magic")
	}
	if h.VectorType != TypeF32 {
		return nil, newErr(Unsupported, "decodeHeader", "vector type other than F32")
	}
	if h.SimilarityFn != similarityCosine {
		return nil, newErr(Unsupported, "decodeHeader", "similarity function other than cosine")
	}
	if h.VectorDims == 0 || h.VectorDims > MaxVectorDims {
		return nil, newErr(CorruptIndex, "decodeHeader", "vector dimension out of range")
	}
	return h, nil
}

// layout caches the derived sizes that §4.3 specifies, computed once
// at open time from the header's block size and declared dimension.
type layout struct {
	blockBytes             int64
	vectorBlobBytes        int
	idBytes                int
	neighborCountBytes     int
	maxNeighbors           int
	neighborMetadataOffset int
}

const neighborMetadataRecordBytes = 16 // (id: 8, offset: 8)

func newLayout(h *Header) layout {
	blockBytes := int64(h.BlockSize) << 9
	vectorBlobBytes := 4 + 4*int(h.VectorDims)
	idBytes := 8
	neighborCountBytes := 2

	available := blockBytes - int64(vectorBlobBytes) - int64(idBytes) - int64(neighborCountBytes)
	maxNeighbors := 0
	if available > 0 {
		maxNeighbors = int(available / int64(vectorBlobBytes+neighborMetadataRecordBytes))
	}

	neighborMetadataOffset := vectorBlobBytes + idBytes + neighborCountBytes + maxNeighbors*vectorBlobBytes

	return layout{
		blockBytes:             blockBytes,
		vectorBlobBytes:        vectorBlobBytes,
		idBytes:                idBytes,
		neighborCountBytes:     neighborCountBytes,
		maxNeighbors:           maxNeighbors,
		neighborMetadataOffset: neighborMetadataOffset,
	}
}

// NeighborMetadata is a (NodeId, NodeOffset) pair sufficient to
// reopen a neighbor's block without traversing from the entry point.
type NeighborMetadata struct {
	ID     int64
	Offset uint64
}

// nodeBlock is the decoded in-memory form of one on-disk node block:
// own vector, own id, and the neighbor metadata list. Neighbor vector
// blobs are kept as raw bytes and decoded lazily by the caller only
// when a traversal actually expands that neighbor (§4.4 readNodeAt).
type nodeBlock struct {
	Vector    Vector
	ID        int64
	Neighbors []NeighborMetadata
	// neighborVectorBlobs holds the M slots, each vectorBlobBytes long,
	// exactly as stored on disk (including zero-padded unused slots).
	neighborVectorBlobs [][]byte
}

// encode serializes a nodeBlock into a freshly allocated, zero-padded
// buffer of exactly l.blockBytes, per §6 "Node block" layout.
func (nb *nodeBlock) encode(l layout) []byte {
	buf := make([]byte, l.blockBytes)

	ownBlob := nb.Vector.SerializeBlob()
	copy(buf[0:l.vectorBlobBytes], ownBlob)

	idOff := l.vectorBlobBytes
	putI64(buf[idOff:idOff+8], nb.ID)

	countOff := idOff + l.idBytes
	putU16(buf[countOff:countOff+2], uint16(len(nb.Neighbors)))

	neighborVecOff := countOff + l.neighborCountBytes
	for i := 0; i < l.maxNeighbors; i++ {
		dst := buf[neighborVecOff+i*l.vectorBlobBytes : neighborVecOff+(i+1)*l.vectorBlobBytes]
		if i < len(nb.neighborVectorBlobs) {
			copy(dst, nb.neighborVectorBlobs[i])
		}
	}

	metaOff := l.neighborMetadataOffset
	for i := 0; i < l.maxNeighbors; i++ {
		rec := buf[metaOff+i*neighborMetadataRecordBytes : metaOff+(i+1)*neighborMetadataRecordBytes]
		if i < len(nb.Neighbors) {
			putI64(rec[0:8], nb.Neighbors[i].ID)
			putU64(rec[8:16], nb.Neighbors[i].Offset)
		}
	}

	return buf
}

// decodeNodeBlock reads the own vector, id, neighbor count, and
// neighbor metadata from a raw block buffer. Neighbor vector blobs
// are retained verbatim for lazy decode (see readNodeAt in file.go).
func decodeNodeBlock(buf []byte, h *Header, l layout) (*nodeBlock, error) {
	if int64(len(buf)) != l.blockBytes {
		return nil, newErr(CorruptIndex, "decodeNodeBlock", "block short read")
	}
	vec, err := ParseBlob(buf[0:l.vectorBlobBytes])
	if err != nil {
		return nil, wrapErr(CorruptIndex, "decodeNodeBlock", "own vector blob corrupt", err)
	}
	if vec.Dim() != int(h.VectorDims) {
		return nil, newErr(CorruptIndex, "decodeNodeBlock", "vector dimension in block does not match header")
	}

	idOff := l.vectorBlobBytes
	id := getI64(buf[idOff : idOff+8])

	countOff := idOff + l.idBytes
	m := int(getU16(buf[countOff : countOff+2]))
	if m > l.maxNeighbors {
		return nil, newErr(CorruptIndex, "decodeNodeBlock", "neighbor count exceeds max neighbors")
	}

	neighborVecOff := countOff + l.neighborCountBytes
	blobs := make([][]byte, l.maxNeighbors)
	for i := 0; i < l.maxNeighbors; i++ {
		blob := make([]byte, l.vectorBlobBytes)
		copy(blob, buf[neighborVecOff+i*l.vectorBlobBytes:neighborVecOff+(i+1)*l.vectorBlobBytes])
		blobs[i] = blob
	}

	metaOff := l.neighborMetadataOffset
	neighbors := make([]NeighborMetadata, m)
	for i := 0; i < m; i++ {
		rec := buf[metaOff+i*neighborMetadataRecordBytes : metaOff+(i+1)*neighborMetadataRecordBytes]
		neighbors[i] = NeighborMetadata{
			ID:     getI64(rec[0:8]),
			Offset: getU64(rec[8:16]),
		}
	}

	return &nodeBlock{
		Vector:              vec,
		ID:                  id,
		Neighbors:           neighbors,
		neighborVectorBlobs: blobs,
	}, nil
}

// neighborVector lazily decodes the i-th neighbor's vector blob.
func (nb *nodeBlock) neighborVector(i int) (Vector, error) {
	return ParseBlob(nb.neighborVectorBlobs[i])
}
