package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/axiomata/atomstore/errors"
)

// Load reads configuration from the default locations: defaults, then an
// atomstore.toml found by walking up from the working directory, then
// ATOMSTORE_* environment variables.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ATOMSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if path := findProjectConfig(); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config file %s", path)
		}
	}

	return unmarshal(v)
}

// LoadFromFile loads configuration from a specific TOML file path.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "reading config file %s", configPath)
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshaling config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// findProjectConfig searches for atomstore.toml by walking up the directory
// tree. Returns empty string if none is found.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		path := filepath.Join(dir, "atomstore.toml")
		if _, err := os.Stat(path); err == nil {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// Validate rejects configurations the store cannot run with.
func (c *Config) Validate() error {
	if c.Embedding.Dimensions <= 0 {
		return errors.Mark(errors.Newf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions), errors.ErrInvalidArgument)
	}
	if c.Spatial.HilbertOrder < 1 || c.Spatial.HilbertOrder > 20 {
		return errors.Mark(errors.Newf("spatial.hilbert_order must be in [1,20], got %d", c.Spatial.HilbertOrder), errors.ErrInvalidArgument)
	}
	if c.Spatial.BucketGrid < 1 || c.Spatial.BucketGrid > 1024 {
		return errors.Mark(errors.Newf("spatial.bucket_grid must be in [1,1024], got %d", c.Spatial.BucketGrid), errors.ErrInvalidArgument)
	}
	if c.Provenance.CycleCheckMaxDepth < 1 {
		return errors.Mark(errors.Newf("provenance.cycle_check_max_depth must be positive, got %d", c.Provenance.CycleCheckMaxDepth), errors.ErrInvalidArgument)
	}
	if c.Ingest.MaxAtomBytes < 1 {
		return errors.Mark(errors.Newf("ingest.max_atom_bytes must be positive, got %d", c.Ingest.MaxAtomBytes), errors.ErrInvalidArgument)
	}
	if c.Search.MaxSpatialCandidates < 1 {
		return errors.Mark(errors.Newf("search.max_spatial_candidates must be positive, got %d", c.Search.MaxSpatialCandidates), errors.ErrInvalidArgument)
	}
	return nil
}

// Default returns a Config populated with package defaults only. Useful for
// tests and embedded use.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := unmarshal(v)
	if err != nil {
		// Defaults are static and always valid.
		panic(err)
	}
	return cfg
}
