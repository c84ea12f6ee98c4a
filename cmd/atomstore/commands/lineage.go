package commands

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/axiomata/atomstore/atom"
	"github.com/axiomata/atomstore/errors"
	"github.com/axiomata/atomstore/provenance"
	"github.com/axiomata/atomstore/store"
	"github.com/axiomata/atomstore/sym"
)

// LineageCmd shows the provenance lineage around an atom.
var LineageCmd = &cobra.Command{
	Use:   "lineage <atom-id>",
	Short: sym.Lineage + " Show derivation lineage of an atom",
	Long: `Walk the provenance graph around an atom.

Direction "up" lists the origins the atom derives from, "down" lists
everything derived from it, "both" lists both.

Examples:
  atomstore lineage 42
  atomstore lineage 42 --direction down --depth 3`,
	Args: cobra.ExactArgs(1),
	RunE: runLineage,
}

var (
	lineageDepthFlag     int
	lineageDirectionFlag string
)

func init() {
	LineageCmd.Flags().IntVar(&lineageDepthFlag, "depth", 5, "Maximum traversal depth")
	LineageCmd.Flags().StringVar(&lineageDirectionFlag, "direction", "both", "Traversal direction: up, down, or both")
}

func runLineage(cmd *cobra.Command, args []string) error {
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

	graph, err := s.GetLineage(cmd.Context(), atom.ID(id), lineageDepthFlag, store.Direction(lineageDirectionFlag))
	if err != nil {
		return err
	}

	if jsonOutput(cmd) {
		return printJSON(graph)
	}

	pterm.DefaultSection.Printfln("Lineage of atom %d", graph.Root)
	if len(graph.Ancestors.Nodes) > 0 {
		renderTraversal("Ancestors (origins)", graph.Ancestors)
	}
	if len(graph.Descendants.Nodes) > 0 {
		renderTraversal("Descendants (derived)", graph.Descendants)
	}
	return nil
}

func renderTraversal(title string, tr provenance.Traversal) {
	pterm.Info.Println(title)
	table := pterm.TableData{{"Depth", "Atom"}}
	for _, n := range tr.Nodes {
		table = append(table, []string{fmt.Sprintf("%d", n.Depth), fmt.Sprintf("%d", n.ID)})
	}
	pterm.DefaultTable.WithHasHeader().WithData(table).Render()
	if tr.Truncated {
		pterm.Warning.Println("Traversal truncated at the depth limit")
	}
}
