package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/axiomata/atomstore/errors"
	"github.com/axiomata/atomstore/sym"
)

// SearchCmd runs a semantic search against stored embeddings.
var SearchCmd = &cobra.Command{
	Use:   "search",
	Short: sym.Search + " Find atoms semantically similar to a query vector",
	Long: `Find the stored atoms most similar to a query embedding.

The spatial index prefilters candidates before exact cosine re-ranking,
so accuracy and speed can be traded with --candidates.

Examples:
  atomstore search --vector-file query.json
  atomstore search --vector-file query.json -k 20 --candidates 512`,
	RunE: runSearch,
}

var (
	searchVectorFlag     string
	searchTopKFlag       int
	searchCandidatesFlag int
)

func init() {
	SearchCmd.Flags().StringVar(&searchVectorFlag, "vector-file", "", "JSON file holding the query vector (required)")
	SearchCmd.Flags().IntVarP(&searchTopKFlag, "top-k", "k", 10, "Number of results to return")
	SearchCmd.Flags().IntVar(&searchCandidatesFlag, "candidates", 0, "Spatial candidate cap (0 uses the configured default)")
	SearchCmd.MarkFlagRequired("vector-file")
}

func runSearch(cmd *cobra.Command, args []string) error {
	vector, err := readVector(searchVectorFlag)
	if err != nil {
		return err
	}
	if vector == nil {
		return errors.Mark(errors.New("a query vector is required"), errors.ErrInvalidArgument)
	}

	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	results, err := s.SemanticSearch(cmd.Context(), vector, searchTopKFlag, searchCandidatesFlag)
	if err != nil {
		return err
	}

	if jsonOutput(cmd) {
		return printJSON(results)
	}

	if len(results) == 0 {
		pterm.Info.Println("No results")
		return nil
	}

	table := pterm.TableData{{"Rank", "Atom", "Score"}}
	for i, r := range results {
		table = append(table, []string{
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%d", r.AtomID),
			fmt.Sprintf("%.4f", r.Score),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(table).Render()
}
