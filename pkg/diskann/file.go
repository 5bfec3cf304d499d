package diskann

import (
	"io"
	"os"

	"github.com/libsql-org/go-diskann/pkg/observability"
)

// BlockDevice is the collaborator seam for the sidecar file's
// underlying I/O: a pread/pwrite/fsize/open/close interface over an
// abstract file handle, as §1 describes it. IndexFile is written
// against this interface rather than *os.File directly so a host
// engine can supply its own positional-I/O implementation (shared
// page cache, encrypted pages, etc) without pkg/diskann knowing.
type BlockDevice interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Size() (int64, error)
	Truncate(size int64) error
	Sync() error
	Close() error
}

// osBlockDevice is the default BlockDevice, backed by a single
// *os.File opened read-write, created if absent — mirroring
// diskAnnOpenIndexFile's O_RDWR|O_CREAT flags.
type osBlockDevice struct {
	f *os.File
}

func openOSBlockDevice(path string) (*osBlockDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	return &osBlockDevice{f: f}, nil
}

func (d *osBlockDevice) ReadAt(p []byte, off int64) (int, error) {
	return d.f.ReadAt(p, off)
}

func (d *osBlockDevice) WriteAt(p []byte, off int64) (int, error) {
	return d.f.WriteAt(p, off)
}

func (d *osBlockDevice) Size() (int64, error) {
	fi, err := d.f.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func (d *osBlockDevice) Truncate(size int64) error {
	return d.f.Truncate(size)
}

func (d *osBlockDevice) Sync() error {
	return d.f.Sync()
}

func (d *osBlockDevice) Close() error {
	return d.f.Close()
}

// IndexFile owns an open sidecar file descriptor, its cached header,
// and the layout derived from that header at open time (§4.3, §4.4).
type IndexFile struct {
	dev      BlockDevice
	header   Header
	layout   layout
	fileSize int64

	// metrics and metricsName are optional; when metrics is nil every
	// Record* call below is skipped. Set via attachMetrics at facade
	// Open time so block reads/writes, prune invocations, and
	// back-link rewrites are observable (§2).
	metrics     *observability.Metrics
	metricsName string
}

// attachMetrics wires a Metrics collector into this file so the I/O
// and graph-maintenance steps below report real counts instead of the
// registered-but-never-incremented series §2 promises.
func (idx *IndexFile) attachMetrics(name string, m *observability.Metrics) {
	idx.metricsName = name
	idx.metrics = m
}

// OpenIndexFile opens path read-write, creating it if absent. If the
// resulting file is zero-length a fresh header is written (magic,
// default 4096-byte blocks, F32, dims from dims, cosine similarity,
// entryOffset=0, firstFreeOffset=0) and the file is sized to one
// block. Otherwise the existing header is read and validated.
// Mirrors diskAnnOpenIndex's zero-size-file branch exactly.
func OpenIndexFile(path string, dims uint16) (*IndexFile, error) {
	dev, err := openOSBlockDevice(path)
	if err != nil {
		return nil, wrapErr(IoError, "Open", "opening sidecar file failed", err)
	}
	return openIndexFileOn(dev, dims)
}

// openIndexFileOn is the BlockDevice-parameterized core of
// OpenIndexFile, split out so tests can exercise it over an in-memory
// BlockDevice without touching the filesystem.
func openIndexFileOn(dev BlockDevice, dims uint16) (*IndexFile, error) {
	size, err := dev.Size()
	if err != nil {
		_ = dev.Close()
		return nil, wrapErr(IoError, "Open", "stat sidecar file failed", err)
	}

	idx := &IndexFile{dev: dev}

	if size == 0 {
		if dims == 0 || dims > MaxVectorDims {
			_ = dev.Close()
			return nil, newErr(InvalidArgument, "Open", "vector dimension out of range")
		}
		h := Header{
			Magic:           headerMagic,
			BlockSize:       defaultBlockSizeMultiplier,
			VectorType:      TypeF32,
			VectorDims:      dims,
			SimilarityFn:    similarityCosine,
			EntryOffset:     0,
			FirstFreeOffset: 0,
		}
		idx.header = h
		idx.layout = newLayout(&h)
		if err := idx.writeHeader(); err != nil {
			_ = dev.Close()
			return nil, err
		}
		if err := dev.Truncate(idx.layout.blockBytes); err != nil {
			_ = dev.Close()
			return nil, wrapErr(IoError, "Open", "sizing fresh sidecar file failed", err)
		}
		idx.fileSize = idx.layout.blockBytes
		return idx, nil
	}

	h, err := idx.readHeader()
	if err != nil {
		_ = dev.Close()
		return nil, err
	}
	idx.header = *h
	idx.layout = newLayout(h)
	idx.fileSize = size
	return idx, nil
}

// readHeader reads exactly headerBytes at offset 0 and validates it.
// A short read is surfaced as IoError, per §4.4.
func (idx *IndexFile) readHeader() (*Header, error) {
	buf := make([]byte, headerBytes)
	n, err := idx.dev.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return nil, wrapErr(IoError, "readHeader", "reading header failed", err)
	}
	if n != headerBytes {
		return nil, newErr(IoError, "readHeader", "short header read")
	}
	return decodeHeader(buf)
}

// writeHeader writes exactly headerBytes at offset 0 from the cached
// header.
func (idx *IndexFile) writeHeader() error {
	buf := idx.header.encode()
	n, err := idx.dev.WriteAt(buf, 0)
	if err != nil {
		return wrapErr(IoError, "writeHeader", "writing header failed", err)
	}
	if n != headerBytes {
		return newErr(IoError, "writeHeader", "short header write")
	}
	return nil
}

// readNodeAt reads blockBytes starting at offset, which must be >0
// and <fileSize, and decodes it into a nodeBlock.
func (idx *IndexFile) readNodeAt(offset uint64) (*nodeBlock, error) {
	if offset == 0 || int64(offset) >= idx.fileSize {
		return nil, newErr(CorruptIndex, "readNodeAt", "neighbor offset out of range")
	}
	buf := make([]byte, idx.layout.blockBytes)
	n, err := idx.dev.ReadAt(buf, int64(offset))
	if err != nil && err != io.EOF {
		return nil, wrapErr(IoError, "readNodeAt", "reading node block failed", err)
	}
	if int64(n) != idx.layout.blockBytes {
		return nil, newErr(IoError, "readNodeAt", "short node block read")
	}
	nb, err := decodeNodeBlock(buf, &idx.header, idx.layout)
	if err != nil {
		return nil, err
	}
	if idx.metrics != nil {
		idx.metrics.RecordBlockRead(idx.metricsName)
	}
	return nb, nil
}

// writeNodeAt rewrites an existing block in place at offset, used by
// insert's back-linking step (§4.7 step 5).
func (idx *IndexFile) writeNodeAt(offset uint64, nb *nodeBlock) error {
	buf := nb.encode(idx.layout)
	n, err := idx.dev.WriteAt(buf, int64(offset))
	if err != nil {
		return wrapErr(IoError, "writeNodeAt", "rewriting node block failed", err)
	}
	if int64(n) != idx.layout.blockBytes {
		return newErr(IoError, "writeNodeAt", "short node block write")
	}
	if idx.metrics != nil {
		idx.metrics.RecordBlockWrite(idx.metricsName)
	}
	return nil
}

// appendNode writes a new block at the current end of file, advances
// fileSize, and returns the offset of the newly written block.
func (idx *IndexFile) appendNode(nb *nodeBlock) (uint64, error) {
	buf := nb.encode(idx.layout)
	offset := idx.fileSize
	n, err := idx.dev.WriteAt(buf, offset)
	if err != nil {
		return 0, wrapErr(IoError, "appendNode", "appending node block failed", err)
	}
	if int64(n) != idx.layout.blockBytes {
		return 0, newErr(IoError, "appendNode", "short node block write")
	}
	idx.fileSize += idx.layout.blockBytes
	if idx.metrics != nil {
		idx.metrics.RecordBlockWrite(idx.metricsName)
	}
	return uint64(offset), nil
}

// setEntryOffset updates the cached header's entry offset and
// persists it, used once by insert when the graph transitions from
// empty to non-empty.
func (idx *IndexFile) setEntryOffset(offset uint64) error {
	idx.header.EntryOffset = offset
	return idx.writeHeader()
}

// Close closes the underlying device. It does not call Sync — §5
// delegates durability to the collaborator.
func (idx *IndexFile) Close() error {
	if err := idx.dev.Close(); err != nil {
		return wrapErr(IoError, "Close", "closing sidecar file failed", err)
	}
	return nil
}
