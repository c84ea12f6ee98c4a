package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/axiomata/atomstore/cmd/atomstore/commands"
	"github.com/axiomata/atomstore/logger"
)

var rootCmd = &cobra.Command{
	Use:   "atomstore",
	Short: "Content-addressed atomic knowledge store",
	Long: `atomstore - content-addressed storage for atomic knowledge units.

Atoms are deduplicated by content hash, indexed spatially through a
landmark projection of their embedding vectors, and linked by an
append-only provenance graph.

Examples:
  atomstore ingest note.txt --modality text   # Store a file as an atom
  atomstore search --vector-file q.json -k 5  # Semantic search
  atomstore lineage 42 --direction both       # Show derivation lineage
  atomstore gc                                # Run a garbage collection sweep
  atomstore stats                             # Show store statistics`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonOutput, _ := cmd.Flags().GetBool("json")
		if err := logger.Initialize(jsonOutput, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	rootCmd.PersistentFlags().Bool("json", false, "Machine-readable JSON output")
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: search for atomstore.toml)")

	rootCmd.AddCommand(commands.IngestCmd)
	rootCmd.AddCommand(commands.SearchCmd)
	rootCmd.AddCommand(commands.LineageCmd)
	rootCmd.AddCommand(commands.ReleaseCmd)
	rootCmd.AddCommand(commands.GCCmd)
	rootCmd.AddCommand(commands.StatsCmd)
	rootCmd.AddCommand(commands.VerifyCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
