// Package commands implements the atomstore CLI subcommands.
package commands

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/axiomata/atomstore/config"
	"github.com/axiomata/atomstore/errors"
	"github.com/axiomata/atomstore/logger"
	"github.com/axiomata/atomstore/store"
)

// loadConfig resolves the effective configuration: the --config flag when
// given, otherwise the nearest atomstore.toml (falling back to defaults).
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// openStore opens the configured store. Callers own the Close.
func openStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return store.Open(cfg, logger.Logger)
}

// jsonOutput reports whether the global --json flag is set.
func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding JSON output")
	}
	_, err = os.Stdout.Write(append(out, '\n'))
	return err
}

// readContent loads content from the given file path, or from stdin when
// the path is "-" or empty.
func readContent(path string) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, errors.Wrap(err, "reading stdin")
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return data, nil
}

// readVector parses a JSON array of numbers from a file.
func readVector(path string) ([]float32, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading vector file %s", path)
	}
	var vec []float32
	if err := json.Unmarshal(data, &vec); err != nil {
		return nil, errors.Mark(
			errors.Wrapf(err, "parsing vector file %s", path),
			errors.ErrInvalidArgument)
	}
	return vec, nil
}
