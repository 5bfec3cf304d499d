package diskann

import "testing"

func testHeader(dims uint16) *Header {
	return &Header{
		Magic:        headerMagic,
		BlockSize:    defaultBlockSizeMultiplier,
		VectorType:   TypeF32,
		VectorDims:   dims,
		SimilarityFn: similarityCosine,
	}
}

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	h := testHeader(3)
	h.EntryOffset = 4096
	h.FirstFreeOffset = 0

	buf := h.encode()
	if len(buf) != headerBytes {
		t.Fatalf("expected %d bytes, got %d", headerBytes, len(buf))
	}

	got, err := decodeHeader(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if *got != *h {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, h)
	}
}

func TestHeaderBlockBytesS3(t *testing.T) {
	h := testHeader(3)
	l := newLayout(h)
	if l.blockBytes != 4096 {
		t.Fatalf("expected default block size 4096, got %d", l.blockBytes)
	}
}

func TestDecodeHeaderBadMagic(t *testing.T) {
	h := testHeader(3)
	buf := h.encode()
	buf[0] ^= 0xFF
	if _, err := decodeHeader(buf); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestMaxNeighborsDerivation(t *testing.T) {
	h := testHeader(3)
	l := newLayout(h)
	// blockBytes=4096, vectorBlobBytes=4+4*3=16, idBytes=8, countBytes=2
	// available = 4096 - 16 - 8 - 2 = 4070
	// per-neighbor cost = 16 + 16 = 32
	// maxNeighbors = 4070 / 32 = 127
	if l.maxNeighbors != 127 {
		t.Fatalf("expected 127 max neighbors, got %d", l.maxNeighbors)
	}
}

func TestNodeBlockEncodeDecodeRoundTrip(t *testing.T) {
	h := testHeader(3)
	l := newLayout(h)

	v, _ := ParseText("[1,0,0]")
	nb := &nodeBlock{
		Vector:              v,
		ID:                  7,
		Neighbors:           []NeighborMetadata{{ID: 8, Offset: 8192}},
		neighborVectorBlobs: make([][]byte, l.maxNeighbors),
	}
	nvec, _ := ParseText("[0,1,0]")
	nb.neighborVectorBlobs[0] = nvec.SerializeBlob()

	buf := nb.encode(l)
	if int64(len(buf)) != l.blockBytes {
		t.Fatalf("expected block of %d bytes, got %d", l.blockBytes, len(buf))
	}

	got, err := decodeNodeBlock(buf, h, l)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != 7 {
		t.Fatalf("expected id 7, got %d", got.ID)
	}
	if len(got.Neighbors) != 1 || got.Neighbors[0].ID != 8 || got.Neighbors[0].Offset != 8192 {
		t.Fatalf("unexpected neighbors: %+v", got.Neighbors)
	}
	gotVec, err := got.neighborVector(0)
	if err != nil {
		t.Fatalf("neighborVector: %v", err)
	}
	vecEq(t, gotVec.Elements, []float32{0, 1, 0})
}

func TestDecodeNodeBlockDimensionMismatch(t *testing.T) {
	h3 := testHeader(3)
	l3 := newLayout(h3)
	v, _ := ParseText("[1,0,0]")
	nb := &nodeBlock{Vector: v, ID: 1, neighborVectorBlobs: make([][]byte, l3.maxNeighbors)}
	buf := nb.encode(l3)

	h4 := testHeader(4)
	if _, err := decodeNodeBlock(buf, h4, newLayout(h4)); err == nil {
		t.Fatal("expected dimension-mismatch error against a differently-dimensioned header")
	}
}
