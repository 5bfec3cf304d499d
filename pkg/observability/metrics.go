package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics exposed by an open diskann
// index. One Metrics value is shared by every IndexHandle opened in
// the process; per-index breakdown uses the "index" label.
type Metrics struct {
	OpensTotal  *prometheus.CounterVec
	ClosesTotal *prometheus.CounterVec

	InsertsTotal     *prometheus.CounterVec
	InsertErrors     *prometheus.CounterVec
	InsertDuration   *prometheus.HistogramVec
	BackLinkRewrites *prometheus.CounterVec
	PruneInvocations *prometheus.CounterVec

	SearchesTotal     *prometheus.CounterVec
	SearchErrors      *prometheus.CounterVec
	SearchDuration    *prometheus.HistogramVec
	SearchResultSize  *prometheus.HistogramVec
	CandidateListSize *prometheus.HistogramVec

	BlockReadsTotal  *prometheus.CounterVec
	BlockWritesTotal *prometheus.CounterVec

	FileSizeBytes *prometheus.GaugeVec
}

// NewMetrics creates and registers every diskann Prometheus metric
// with the default registry. A second call in the same process panics
// on the duplicate registration.
func NewMetrics() *Metrics {
	return &Metrics{
		OpensTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "diskann_opens_total",
				Help: "Total number of index open calls by index name and outcome",
			},
			[]string{"index", "outcome"},
		),
		ClosesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "diskann_closes_total",
				Help: "Total number of index close calls by index name",
			},
			[]string{"index"},
		),

		InsertsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "diskann_inserts_total",
				Help: "Total number of successful inserts by index name",
			},
			[]string{"index"},
		),
		InsertErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "diskann_insert_errors_total",
				Help: "Total number of failed inserts by index name and error code",
			},
			[]string{"index", "code"},
		),
		InsertDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "diskann_insert_duration_seconds",
				Help:    "Insert latency in seconds by index name",
				Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"index"},
		),
		BackLinkRewrites: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "diskann_backlink_rewrites_total",
				Help: "Total number of neighbor blocks rewritten in place during insert's back-linking step",
			},
			[]string{"index"},
		),
		PruneInvocations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "diskann_prune_invocations_total",
				Help: "Total number of robust-prune invocations by index name",
			},
			[]string{"index"},
		),

		SearchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "diskann_searches_total",
				Help: "Total number of successful searches by index name",
			},
			[]string{"index"},
		),
		SearchErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "diskann_search_errors_total",
				Help: "Total number of failed searches by index name and error code",
			},
			[]string{"index", "code"},
		),
		SearchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "diskann_search_duration_seconds",
				Help:    "Search latency in seconds by index name",
				Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"index"},
		),
		SearchResultSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "diskann_search_result_size",
				Help:    "Number of results returned by search by index name",
				Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
			},
			[]string{"index"},
		),
		CandidateListSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "diskann_candidate_list_size",
				Help:    "Size of the visited set at the end of a traversal by index name",
				Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200},
			},
			[]string{"index"},
		),

		BlockReadsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "diskann_block_reads_total",
				Help: "Total number of node-block reads by index name",
			},
			[]string{"index"},
		),
		BlockWritesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "diskann_block_writes_total",
				Help: "Total number of node-block writes (appends and in-place rewrites) by index name",
			},
			[]string{"index"},
		),

		FileSizeBytes: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "diskann_file_size_bytes",
				Help: "Current sidecar file size in bytes by index name",
			},
			[]string{"index"},
		),
	}
}

// RecordOpen records the outcome of an Open call.
func (m *Metrics) RecordOpen(index string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.OpensTotal.WithLabelValues(index, outcome).Inc()
}

// RecordClose records a Close call.
func (m *Metrics) RecordClose(index string) {
	m.ClosesTotal.WithLabelValues(index).Inc()
}

// RecordInsert records a completed Insert call, successful or not.
func (m *Metrics) RecordInsert(index string, duration time.Duration, err error) {
	m.InsertDuration.WithLabelValues(index).Observe(duration.Seconds())
	if err != nil {
		m.InsertErrors.WithLabelValues(index, errCode(err)).Inc()
		return
	}
	m.InsertsTotal.WithLabelValues(index).Inc()
}

// RecordSearch records a completed Search call, successful or not.
func (m *Metrics) RecordSearch(index string, duration time.Duration, resultSize, candidateListSize int, err error) {
	m.SearchDuration.WithLabelValues(index).Observe(duration.Seconds())
	if err != nil {
		m.SearchErrors.WithLabelValues(index, errCode(err)).Inc()
		return
	}
	m.SearchesTotal.WithLabelValues(index).Inc()
	m.SearchResultSize.WithLabelValues(index).Observe(float64(resultSize))
	m.CandidateListSize.WithLabelValues(index).Observe(float64(candidateListSize))
}

// RecordBackLinkRewrite counts one neighbor block rewritten in place.
func (m *Metrics) RecordBackLinkRewrite(index string) {
	m.BackLinkRewrites.WithLabelValues(index).Inc()
}

// RecordPrune counts one robust-prune invocation.
func (m *Metrics) RecordPrune(index string) {
	m.PruneInvocations.WithLabelValues(index).Inc()
}

// RecordBlockRead counts one node-block read.
func (m *Metrics) RecordBlockRead(index string) {
	m.BlockReadsTotal.WithLabelValues(index).Inc()
}

// RecordBlockWrite counts one node-block write (append or rewrite).
func (m *Metrics) RecordBlockWrite(index string) {
	m.BlockWritesTotal.WithLabelValues(index).Inc()
}

// UpdateFileSize sets the current sidecar file size gauge.
func (m *Metrics) UpdateFileSize(index string, bytes int64) {
	m.FileSizeBytes.WithLabelValues(index).Set(float64(bytes))
}

// errCode extracts a stable label value from an error without
// importing pkg/diskann here (observability sits below diskann in
// the dependency graph): an error with an ErrCode() string method,
// such as *diskann.IndexError, is labeled with that code; any other
// error gets the bounded-cardinality default "error".
func errCode(err error) string {
	type coder interface{ ErrCode() string }
	if c, ok := err.(coder); ok {
		return c.ErrCode()
	}
	return "error"
}
