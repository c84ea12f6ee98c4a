// Package config loads and watches atomstore configuration. Configuration is
// read from a TOML file via Viper with ATOMSTORE_-prefixed environment
// variable overrides.
package config

import "time"

// Config is the root atomstore configuration.
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database" toml:"database"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding" toml:"embedding"`
	Spatial    SpatialConfig    `mapstructure:"spatial" toml:"spatial"`
	Provenance ProvenanceConfig `mapstructure:"provenance" toml:"provenance"`
	Ingest     IngestConfig     `mapstructure:"ingest" toml:"ingest"`
	Search     SearchConfig     `mapstructure:"search" toml:"search"`
	GC         GCConfig         `mapstructure:"gc" toml:"gc"`
}

// DatabaseConfig configures the SQLite database backing the store.
type DatabaseConfig struct {
	Path string `mapstructure:"path" toml:"path"`
}

// EmbeddingConfig fixes the vector dimensionality per embedding kind.
// Vectors of any other length are rejected at ingest, never coerced.
type EmbeddingConfig struct {
	Kind       string `mapstructure:"kind" toml:"kind"`
	Dimensions int    `mapstructure:"dimensions" toml:"dimensions"`
}

// SpatialConfig configures the projection and spatial index. Changing
// HilbertOrder or LandmarkSeed invalidates every stored spatial point and
// Hilbert index, so these are fixed for the lifetime of a store.
type SpatialConfig struct {
	HilbertOrder int   `mapstructure:"hilbert_order" toml:"hilbert_order"` // bits per dimension, 1..20
	LandmarkSeed int64 `mapstructure:"landmark_seed" toml:"landmark_seed"`
	BucketGrid   int   `mapstructure:"bucket_grid" toml:"bucket_grid"` // cells per axis for coarse buckets
}

// ProvenanceConfig bounds graph traversal cost.
type ProvenanceConfig struct {
	CycleCheckMaxDepth int `mapstructure:"cycle_check_max_depth" toml:"cycle_check_max_depth"`
}

// IngestConfig configures the ingest path.
type IngestConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds" toml:"timeout_seconds"`
	// MaxAtomBytes caps the atomic payload size. Larger content is
	// decomposed into a tree of sub-atoms linked by composed-of edges.
	MaxAtomBytes int `mapstructure:"max_atom_bytes" toml:"max_atom_bytes"`
}

// SearchConfig tunes the accuracy/speed knob of semantic search.
type SearchConfig struct {
	MaxSpatialCandidates int `mapstructure:"max_spatial_candidates" toml:"max_spatial_candidates"`
}

// GCConfig configures the garbage collector.
type GCConfig struct {
	GracePeriodSeconds   int     `mapstructure:"grace_period_seconds" toml:"grace_period_seconds"`
	SweepIntervalSeconds int     `mapstructure:"sweep_interval_seconds" toml:"sweep_interval_seconds"`
	SweepBatchSize       int     `mapstructure:"sweep_batch_size" toml:"sweep_batch_size"`
	SweepRatePerSecond   float64 `mapstructure:"sweep_rate_per_second" toml:"sweep_rate_per_second"`
}

// IngestTimeout returns the configured ingest deadline.
func (c *IngestConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GracePeriod returns how long a zero-refcount atom is protected from
// physical deletion.
func (c *GCConfig) GracePeriod() time.Duration {
	return time.Duration(c.GracePeriodSeconds) * time.Second
}

// SweepInterval returns how often the background sweeper runs.
func (c *GCConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}
