package config

import "github.com/spf13/viper"

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "atomstore.db")

	// Embedding defaults
	v.SetDefault("embedding.kind", "default")
	v.SetDefault("embedding.dimensions", 1998)

	// Spatial projection defaults. Order 10 gives 30 index bits: enough
	// spread for locality while keeping the index well inside int64 range.
	v.SetDefault("spatial.hilbert_order", 10)
	v.SetDefault("spatial.landmark_seed", 7919)
	v.SetDefault("spatial.bucket_grid", 16) // 16^3 = 4096 coarse buckets

	// Provenance defaults
	v.SetDefault("provenance.cycle_check_max_depth", 64)

	// Ingest defaults
	v.SetDefault("ingest.timeout_seconds", 30)
	v.SetDefault("ingest.max_atom_bytes", 64)

	// Search defaults
	v.SetDefault("search.max_spatial_candidates", 256)

	// GC defaults
	v.SetDefault("gc.grace_period_seconds", 300)
	v.SetDefault("gc.sweep_interval_seconds", 60)
	v.SetDefault("gc.sweep_batch_size", 128)
	v.SetDefault("gc.sweep_rate_per_second", 200.0)
}
