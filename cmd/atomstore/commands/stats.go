package commands

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/axiomata/atomstore/atom"
	"github.com/axiomata/atomstore/errors"
	"github.com/axiomata/atomstore/sym"
)

// StatsCmd shows store statistics.
var StatsCmd = &cobra.Command{
	Use:   "stats",
	Short: sym.Stats + " Show store statistics",
	Long:  "Display row counts, spatial index size and process memory for the configured store.",
	RunE:  runStats,
}

// ReleaseCmd drops a reference to an atom.
var ReleaseCmd = &cobra.Command{
	Use:   "release <atom-id>",
	Short: "Drop a reference to an atom",
	Long: `Decrement an atom's reference count.

At zero the atom becomes eligible for garbage collection after the grace
period; re-ingesting its content before then rescues it.`,
	Args: cobra.ExactArgs(1),
	RunE: runRelease,
}

// VerifyCmd scans the store for integrity problems.
var VerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: sym.Verify + " Check store integrity",
	Long:  "Scan all atoms for digest mismatches, refcount drift and spatial index drift. Problems are reported, not repaired.",
	RunE:  runVerify,
}

func runStats(cmd *cobra.Command, args []string) error {
	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	stats, err := s.Stats(cmd.Context())
	if err != nil {
		return err
	}

	if jsonOutput(cmd) {
		return printJSON(stats)
	}

	table := pterm.TableData{
		{"Atoms", fmt.Sprintf("%d", stats.Atoms)},
		{"Pending deletion", fmt.Sprintf("%d", stats.PendingDeletion)},
		{"Embeddings", fmt.Sprintf("%d", stats.Embeddings)},
		{"Provenance edges", fmt.Sprintf("%d", stats.ProvenanceEdges)},
		{"Indexed points", fmt.Sprintf("%d", stats.IndexedPoints)},
		{"Database", stats.DatabasePath},
	}
	if stats.ProcessRSSBytes > 0 {
		table = append(table, []string{"Process RSS", fmt.Sprintf("%.1f MiB", float64(stats.ProcessRSSBytes)/(1<<20))})
	}
	return pterm.DefaultTable.WithData(table).Render()
}

func runRelease(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return errors.Mark(
			errors.Wrapf(err, "invalid atom id %q", args[0]),
			errors.ErrInvalidArgument)
	}

	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	remaining, err := s.Release(cmd.Context(), atom.ID(id))
	if err != nil {
		return err
	}

	if jsonOutput(cmd) {
		return printJSON(map[string]any{"atom_id": id, "reference_count": remaining})
	}

	if remaining == 0 {
		pterm.Warning.Printfln("Atom %d is now pending deletion", id)
	} else {
		pterm.Success.Printfln("Atom %d has %d references remaining", id, remaining)
	}
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	report, err := s.Verify(cmd.Context())
	if err != nil {
		return err
	}

	if jsonOutput(cmd) {
		return printJSON(report)
	}

	if report.Clean() {
		pterm.Success.Printfln("Store is clean (%d atoms checked)", report.AtomsChecked)
		return nil
	}

	pterm.Error.Printfln("Integrity problems found (%d atoms checked)", report.AtomsChecked)
	if len(report.DigestMismatches) > 0 {
		pterm.Printfln("  digest mismatches: %v", report.DigestMismatches)
	}
	if len(report.RefcountDrift) > 0 {
		pterm.Printfln("  refcount drift: %v", report.RefcountDrift)
	}
	if report.IndexDrift != 0 {
		pterm.Printfln("  spatial index drift: %d", report.IndexDrift)
	}
	return errors.New("store verification failed")
}
