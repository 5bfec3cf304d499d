package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for a diskann-backed index, along
// with the on-disk layout it opens sidecar files under.
type Config struct {
	DiskANN  DiskANNConfig  `yaml:"diskann"`
	Database DatabaseConfig `yaml:"database"`
}

// DiskANNConfig holds the parameters of the index itself: the search
// width used both by search and by insert's neighbor-candidate
// traversal, the robust-prune diversification factor, the declared
// vector dimension, and the block-size multiplier (§6: blockBytes =
// multiplier << 9). L and M are deliberately separate fields — see
// §9's "fixed arrays tied to a limit" design note — M is never
// configured directly; pkg/diskann derives it at open time from the
// sidecar header's block size and dimension. New sidecars are always
// created with a multiplier of 8; BlockSizeMultiplier is not passed
// to pkg/diskann.
type DiskANNConfig struct {
	SearchWidth         int     `yaml:"search_width"`          // L, default 10
	Alpha               float64 `yaml:"alpha"`                 // robust-prune factor, default 1.2
	Dimensions          int     `yaml:"dimensions"`             // declared vector dimension
	BlockSizeMultiplier int     `yaml:"block_size_multiplier"` // default 8 => 4096-byte blocks
}

// DatabaseConfig holds the on-disk layout the collaborator uses to
// name and locate sidecar index files (§6 "Sidecar file naming").
type DatabaseConfig struct {
	DataDir    string `yaml:"data_dir"`    // base directory holding the database file
	SyncWrites bool   `yaml:"sync_writes"` // whether the collaborator fsyncs after insert
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		DiskANN: DiskANNConfig{
			SearchWidth:         10,
			Alpha:               1.2,
			Dimensions:          768,
			BlockSizeMultiplier: 8,
		},
		Database: DatabaseConfig{
			DataDir:    "./data",
			SyncWrites: false,
		},
	}
}

// LoadFromEnv loads configuration from environment variables,
// starting from Default() and overriding only the variables that are
// set, mirroring the teacher's VECTOR_* convention.
func LoadFromEnv() *Config {
	cfg := Default()

	if width := os.Getenv("DISKANN_SEARCH_WIDTH"); width != "" {
		if w, err := strconv.Atoi(width); err == nil {
			cfg.DiskANN.SearchWidth = w
		}
	}
	if alpha := os.Getenv("DISKANN_ALPHA"); alpha != "" {
		if a, err := strconv.ParseFloat(alpha, 64); err == nil {
			cfg.DiskANN.Alpha = a
		}
	}
	if dims := os.Getenv("DISKANN_DIMENSIONS"); dims != "" {
		if d, err := strconv.Atoi(dims); err == nil {
			cfg.DiskANN.Dimensions = d
		}
	}
	if bsm := os.Getenv("DISKANN_BLOCK_SIZE_MULTIPLIER"); bsm != "" {
		if b, err := strconv.Atoi(bsm); err == nil {
			cfg.DiskANN.BlockSizeMultiplier = b
		}
	}
	if dataDir := os.Getenv("DISKANN_DATA_DIR"); dataDir != "" {
		cfg.Database.DataDir = dataDir
	}
	if sync := os.Getenv("DISKANN_SYNC_WRITES"); sync == "true" {
		cfg.Database.SyncWrites = true
	}

	return cfg
}

// LoadFromFile reads a YAML configuration file into Default()'s
// shape, overriding only the fields present in the document. This
// finishes what the teacher's cmd/server/main.go left as a TODO
// ("support loading from YAML/JSON config file").
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is structurally usable.
func (c *Config) Validate() error {
	if c.DiskANN.SearchWidth < 1 {
		return fmt.Errorf("invalid search width: %d (must be > 0)", c.DiskANN.SearchWidth)
	}
	if c.DiskANN.Alpha < 1.0 {
		return fmt.Errorf("invalid alpha: %v (must be >= 1.0)", c.DiskANN.Alpha)
	}
	if c.DiskANN.Dimensions < 1 || c.DiskANN.Dimensions > 16000 {
		return fmt.Errorf("invalid dimensions: %d (must be 1-16000)", c.DiskANN.Dimensions)
	}
	if c.DiskANN.BlockSizeMultiplier < 1 {
		return fmt.Errorf("invalid block size multiplier: %d (must be > 0)", c.DiskANN.BlockSizeMultiplier)
	}
	if c.Database.DataDir == "" {
		return fmt.Errorf("data directory not specified")
	}
	return nil
}

// SidecarPath derives the sidecar file path for indexName against
// dbPath, per §6's naming rule: "<base-database-path>-vectoridx-<index-name>".
func SidecarPath(dbPath, indexName string) string {
	return fmt.Sprintf("%s-vectoridx-%s", dbPath, indexName)
}
