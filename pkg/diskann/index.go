package diskann

import (
	"time"

	"github.com/libsql-org/go-diskann/pkg/observability"
)

// IndexHandle is the façade exposed to the collaborator: open a
// sidecar file once, then drive insert/search against the resulting
// handle until Close (§6 "Façade operations exposed to the
// collaborator"). It owns the IndexFile plus the search width the
// handle was opened with — L is a traversal parameter, never a shared
// array bound (§9 "fixed arrays tied to a limit").
type IndexHandle struct {
	file  *IndexFile
	name  string
	width int

	metrics *observability.Metrics
	opLog   *observability.OperationLogger
}

// HandleOptions carries the façade-level knobs that sit above
// IndexFile: the search width used both by Search and by Insert's
// own neighbor-candidate traversal, and the observability collaborators
// wired in at open time. Metrics and Logger may be nil, in which case
// the handle runs unobserved.
type HandleOptions struct {
	Name    string // label used on every metric and log line for this handle
	Width   int    // L, default 10 if zero
	Metrics *observability.Metrics
	Logger  *observability.Logger
}

const defaultSearchWidth = 10

// Open opens sidecarPath as a diskann index handle, creating it if
// absent, per §4.4's open(path). dims is only consulted when the file
// is freshly created; reopening an existing sidecar reads its
// declared dimension from the header instead (original_source's
// diskAnnOpenIndex never re-initializes an existing header).
func Open(sidecarPath string, dims uint16, opts HandleOptions) (*IndexHandle, error) {
	width := opts.Width
	if width <= 0 {
		width = defaultSearchWidth
	}
	name := opts.Name
	if name == "" {
		name = sidecarPath
	}

	var opLog *observability.OperationLogger
	if opts.Logger != nil {
		opLog = observability.NewOperationLogger(opts.Logger)
	}

	start := time.Now()
	file, err := OpenIndexFile(sidecarPath, dims)
	if opts.Metrics != nil {
		opts.Metrics.RecordOpen(name, err)
	}
	if opLog != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		opLog.LogOperation(name, "open", outcome, time.Since(start), map[string]interface{}{
			"path": sidecarPath,
		})
	}
	if err != nil {
		return nil, err
	}
	file.attachMetrics(name, opts.Metrics)

	h := &IndexHandle{
		file:    file,
		name:    name,
		width:   width,
		metrics: opts.Metrics,
		opLog:   opLog,
	}
	if opts.Metrics != nil {
		opts.Metrics.UpdateFileSize(name, h.file.fileSize)
	}
	return h, nil
}

// Close releases the handle's underlying sidecar file. §9's
// "cached-open pattern" ties the handle's lifetime to the
// collaborator's cursor-close callback; this method is that callback.
func (h *IndexHandle) Close() error {
	err := h.file.Close()
	if h.metrics != nil {
		h.metrics.RecordClose(h.name)
	}
	if h.opLog != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		h.opLog.LogOperation(h.name, "close", outcome, 0, nil)
	}
	return err
}

// Insert decodes vectorBlob per §6's vector-blob wire form and inserts
// it under rowid, per §4.7's incremental graph growth.
func (h *IndexHandle) Insert(vectorBlob []byte, rowid int64) error {
	v, err := ParseBlob(vectorBlob)
	if err != nil {
		h.recordInsert(0, err, nil)
		return err
	}

	start := time.Now()
	err = h.file.Insert(v, rowid, h.width)
	duration := time.Since(start)
	h.recordInsert(duration, err, map[string]interface{}{"rowid": rowid})
	if err != nil {
		return err
	}
	if h.metrics != nil {
		h.metrics.UpdateFileSize(h.name, h.file.fileSize)
	}
	return nil
}

func (h *IndexHandle) recordInsert(duration time.Duration, err error, fields map[string]interface{}) {
	if h.metrics != nil {
		h.metrics.RecordInsert(h.name, duration, err)
	}
	if h.opLog != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		h.opLog.LogOperation(h.name, "insert", outcome, duration, fields)
	}
}

// SearchResult is one entry of a Search call's ranked output: the
// inserted rowid and its cosine distance to the query.
type SearchResult struct {
	Rowid    int64
	Distance float64
}

// Search decodes queryBlob per §6's vector-blob wire form, traverses
// the graph with traversal width l (falling back to the handle's
// opened width when l<=0), and returns up to k results ordered by
// ascending distance, per §4.6.
func (h *IndexHandle) Search(queryBlob []byte, k, l int) ([]SearchResult, error) {
	q, err := ParseBlob(queryBlob)
	if err != nil {
		h.recordSearch(0, 0, 0, err)
		return nil, err
	}
	return h.search(q, k, l)
}

// SearchVector is Search's typed counterpart for callers that already
// hold a parsed Vector (the CLI's search subcommand does).
func (h *IndexHandle) SearchVector(q Vector, k, l int) ([]SearchResult, error) {
	return h.search(q, k, l)
}

func (h *IndexHandle) search(q Vector, k, l int) ([]SearchResult, error) {
	if q.Dim() != int(h.file.header.VectorDims) {
		err := newErr(InvalidArgument, "Search", "query vector dimension does not match index dimension")
		h.recordSearch(0, 0, 0, err)
		return nil, err
	}

	width := l
	if width <= 0 {
		width = h.width
	}

	start := time.Now()
	res, err := traverse(h.file, q, width, k)
	duration := time.Since(start)

	if err != nil {
		h.recordSearch(duration, 0, 0, err)
		// Preserve the inner failure's Code (e.g. CorruptIndex from a
		// bad neighbor offset) instead of flattening every traversal
		// error to IoError.
		if ie, ok := err.(*IndexError); ok {
			return nil, ie
		}
		return nil, wrapErr(IoError, "Search", "graph traversal failed", err)
	}

	out := make([]SearchResult, len(res.topK))
	for i, n := range res.topK {
		out[i] = SearchResult{Rowid: n.id, Distance: n.dist}
	}
	h.recordSearch(duration, len(out), len(res.visited), nil)
	return out, nil
}

func (h *IndexHandle) recordSearch(duration time.Duration, resultSize, visited int, err error) {
	if h.metrics != nil {
		h.metrics.RecordSearch(h.name, duration, resultSize, visited, err)
	}
	if h.opLog != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		h.opLog.LogOperation(h.name, "search", outcome, duration, map[string]interface{}{
			"results": resultSize,
			"visited": visited,
		})
	}
}

// Stats summarizes a handle's current on-disk footprint, used by
// cmd/diskann-cli's stats subcommand.
type Stats struct {
	FileSizeBytes int64
	EntryOffset   uint64
	Dimensions    uint16
	MaxNeighbors  int
	BlockBytes    int64
}

// Stats reports the handle's current file size, entry offset, and
// derived block geometry.
func (h *IndexHandle) Stats() Stats {
	return Stats{
		FileSizeBytes: h.file.fileSize,
		EntryOffset:   h.file.header.EntryOffset,
		Dimensions:    h.file.header.VectorDims,
		MaxNeighbors:  h.file.layout.maxNeighbors,
		BlockBytes:    h.file.layout.blockBytes,
	}
}
