// Command diskann-cli drives pkg/diskann from a shell. The original
// source has no CLI of its own — only SQL function registration
// (sqlite3RegisterVectorFunctions) — so these subcommands are named
// after those functions (vector, vector_extract, distance_cos) plus
// the façade operations (create, insert, search, load, stats) that
// would otherwise only be reachable from Go code.
package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/libsql-org/go-diskann/pkg/config"
	"github.com/libsql-org/go-diskann/pkg/diskann"
	"github.com/libsql-org/go-diskann/pkg/observability"
)

var rootCmd = &cobra.Command{
	Use:   "diskann-cli",
	Short: "Command-line driver for the diskann sidecar index",
	Long: `diskann-cli exercises the diskann façade (open/insert/search)
without a host relational engine. It is meant for inspecting sidecar
files and running small experiments, not for production ingestion.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func exitError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "diskann-cli: "+format+"\n", args...)
	os.Exit(1)
}

// --- vector / vector_extract / distance_cos: pure codec + distance, no file I/O ---

var vectorCmd = &cobra.Command{
	Use:   "vector <text>",
	Short: "Parse a text vector and print its serialized blob as hex",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		v, err := diskann.ParseText(args[0])
		if err != nil {
			exitError("%v", err)
		}
		fmt.Println(hex.EncodeToString(v.SerializeBlob()))
	},
}

var vectorExtractCmd = &cobra.Command{
	Use:   "vector_extract <hex-blob>",
	Short: "Parse a serialized blob (hex-encoded) and print its text form",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		raw, err := hex.DecodeString(args[0])
		if err != nil {
			exitError("decoding hex blob: %v", err)
		}
		v, err := diskann.ParseBlob(raw)
		if err != nil {
			exitError("%v", err)
		}
		fmt.Println(v.FormatText())
	},
}

var distanceCosCmd = &cobra.Command{
	Use:   "distance_cos <text-a> <text-b>",
	Short: "Print the cosine distance between two text vectors",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := diskann.ParseText(args[0])
		if err != nil {
			exitError("%v", err)
		}
		b, err := diskann.ParseText(args[1])
		if err != nil {
			exitError("%v", err)
		}
		d, err := diskann.DistanceCos(a, b)
		if err != nil {
			exitError("%v", err)
		}
		fmt.Println(d)
	},
}

// --- shared index-opening flags ---

type indexFlags struct {
	dbPath    string
	indexName string
	dims      int
	width     int
}

func (f *indexFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.dbPath, "db", "", "base database path (sidecar is derived per naming rule)")
	cmd.Flags().StringVar(&f.indexName, "index", "default", "index name")
	cmd.Flags().IntVar(&f.dims, "dims", 768, "declared vector dimension (fresh sidecars only)")
	cmd.Flags().IntVar(&f.width, "width", 0, "search width L (0 = config default)")
	cmd.MarkFlagRequired("db")
}

func (f *indexFlags) open(logger *observability.Logger, metrics *observability.Metrics) *diskann.IndexHandle {
	cfg := config.Default()
	if f.width > 0 {
		cfg.DiskANN.SearchWidth = f.width
	}
	sidecarPath := config.SidecarPath(f.dbPath, f.indexName)
	h, err := diskann.Open(sidecarPath, uint16(f.dims), diskann.HandleOptions{
		Name:    f.indexName,
		Width:   cfg.DiskANN.SearchWidth,
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		exitError("opening %s: %v", sidecarPath, err)
	}
	return h
}

// --- create ---

var createFlags indexFlags

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create (or open) a sidecar index file and report its layout",
	Run: func(cmd *cobra.Command, args []string) {
		logger := observability.NewDefaultLogger()
		h := createFlags.open(logger, nil)
		defer h.Close()

		s := h.Stats()
		fmt.Printf("fileSize=%d entryOffset=%d dims=%d maxNeighbors=%d blockBytes=%d\n",
			s.FileSizeBytes, s.EntryOffset, s.Dimensions, s.MaxNeighbors, s.BlockBytes)
	},
}

// --- insert ---

var insertFlags indexFlags
var insertRowid int64

var insertCmd = &cobra.Command{
	Use:   "insert <text-vector>",
	Short: "Insert one vector under a rowid",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		logger := observability.NewDefaultLogger()
		metrics := observability.NewMetrics()
		h := insertFlags.open(logger, metrics)
		defer h.Close()

		v, err := diskann.ParseText(args[0])
		if err != nil {
			exitError("%v", err)
		}
		if err := h.Insert(v.SerializeBlob(), insertRowid); err != nil {
			exitError("insert: %v", err)
		}
		fmt.Printf("inserted rowid=%d\n", insertRowid)
	},
}

// --- search ---

var searchFlags indexFlags
var searchK int

var searchCmd = &cobra.Command{
	Use:   "search <text-vector>",
	Short: "Search for the k nearest rowids to a query vector",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		logger := observability.NewDefaultLogger()
		metrics := observability.NewMetrics()
		h := searchFlags.open(logger, metrics)
		defer h.Close()

		v, err := diskann.ParseText(args[0])
		if err != nil {
			exitError("%v", err)
		}
		results, err := h.SearchVector(v, searchK, searchFlags.width)
		if err != nil {
			exitError("search: %v", err)
		}
		for _, r := range results {
			fmt.Printf("%d\t%f\n", r.Rowid, r.Distance)
		}
	},
}

// --- load ---

var loadFlags indexFlags
var loadFile string
var loadRatePerSec float64

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Bulk-insert vectors from a file, one \"rowid\\ttext-vector\" line per row",
	Run: func(cmd *cobra.Command, args []string) {
		logger := observability.NewDefaultLogger()
		metrics := observability.NewMetrics()
		h := loadFlags.open(logger, metrics)
		defer h.Close()

		f, err := os.Open(loadFile)
		if err != nil {
			exitError("opening load file: %v", err)
		}
		defer f.Close()

		// Bulk loads can otherwise drive synchronous block writes faster
		// than the underlying disk keeps up; the limiter paces Insert
		// calls instead of firing them as fast as the scanner can read.
		limiter := rate.NewLimiter(rate.Limit(loadRatePerSec), 1)

		scanner := bufio.NewScanner(f)
		line := 0
		inserted := 0
		for scanner.Scan() {
			line++
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}
			parts := strings.SplitN(text, "\t", 2)
			if len(parts) != 2 {
				exitError("load file line %d: expected \"rowid\\tvector\"", line)
			}
			rowid, err := strconv.ParseInt(parts[0], 10, 64)
			if err != nil {
				exitError("load file line %d: invalid rowid: %v", line, err)
			}
			v, err := diskann.ParseText(parts[1])
			if err != nil {
				exitError("load file line %d: %v", line, err)
			}

			if err := limiter.Wait(cmd.Context()); err != nil {
				exitError("rate limiter: %v", err)
			}
			if err := h.Insert(v.SerializeBlob(), rowid); err != nil {
				exitError("load file line %d: insert failed: %v", line, err)
			}
			inserted++
		}
		if err := scanner.Err(); err != nil {
			exitError("reading load file: %v", err)
		}
		fmt.Printf("loaded %d vectors\n", inserted)
	},
}

// --- stats ---

var statsFlags indexFlags

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the current on-disk footprint of a sidecar index",
	Run: func(cmd *cobra.Command, args []string) {
		logger := observability.NewDefaultLogger()
		h := statsFlags.open(logger, nil)
		defer h.Close()

		s := h.Stats()
		fmt.Printf("fileSize=%d entryOffset=%d dims=%d maxNeighbors=%d blockBytes=%d\n",
			s.FileSizeBytes, s.EntryOffset, s.Dimensions, s.MaxNeighbors, s.BlockBytes)
	},
}

func init() {
	rootCmd.AddCommand(vectorCmd, vectorExtractCmd, distanceCosCmd)

	createFlags.register(createCmd)
	rootCmd.AddCommand(createCmd)

	insertFlags.register(insertCmd)
	insertCmd.Flags().Int64Var(&insertRowid, "rowid", 0, "rowid to associate with the inserted vector")
	insertCmd.MarkFlagRequired("rowid")
	rootCmd.AddCommand(insertCmd)

	searchFlags.register(searchCmd)
	searchCmd.Flags().IntVar(&searchK, "k", 10, "number of results to return")
	rootCmd.AddCommand(searchCmd)

	loadFlags.register(loadCmd)
	loadCmd.Flags().StringVar(&loadFile, "file", "", "path to a tab-separated rowid/vector file")
	loadCmd.Flags().Float64Var(&loadRatePerSec, "rate", 500, "maximum inserts per second")
	loadCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(loadCmd)

	statsFlags.register(statsCmd)
	rootCmd.AddCommand(statsCmd)
}
