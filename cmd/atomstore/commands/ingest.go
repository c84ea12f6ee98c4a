package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/axiomata/atomstore/atom"
	"github.com/axiomata/atomstore/store"
	"github.com/axiomata/atomstore/sym"
)

// IngestCmd stores content as an atom.
var IngestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: sym.Ingest + " Store content as an atom",
	Long: `Store content as a content-addressed atom.

Reads from the given file, or from stdin when no file (or "-") is given.
Identical content deduplicates to the existing atom. Content over the
configured payload cap is decomposed into a composition tree.

Examples:
  atomstore ingest note.txt --modality text
  cat blob.bin | atomstore ingest --modality blob
  atomstore ingest fact.txt --parents 12,34 --vector-file embedding.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

var (
	ingestModalityFlag string
	ingestSubtypeFlag  string
	ingestParentsFlag  []int64
	ingestVectorFlag   string
)

func init() {
	IngestCmd.Flags().StringVar(&ingestModalityFlag, "modality", atom.ModalityText, "Content modality (text, image, blob, ...)")
	IngestCmd.Flags().StringVar(&ingestSubtypeFlag, "subtype", "", "Optional content subtype")
	IngestCmd.Flags().Int64SliceVar(&ingestParentsFlag, "parents", nil, "Atom ids this content was derived from")
	IngestCmd.Flags().StringVar(&ingestVectorFlag, "vector-file", "", "JSON file holding the embedding vector")
}

func runIngest(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	content, err := readContent(path)
	if err != nil {
		return err
	}
	vector, err := readVector(ingestVectorFlag)
	if err != nil {
		return err
	}

	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	parents := make([]atom.ID, len(ingestParentsFlag))
	for i, p := range ingestParentsFlag {
		parents[i] = atom.ID(p)
	}

	id, err := s.Ingest(cmd.Context(), store.IngestRequest{
		Content:   content,
		Modality:  ingestModalityFlag,
		Subtype:   ingestSubtypeFlag,
		Vector:    vector,
		ParentIDs: parents,
	})
	if err != nil {
		return err
	}

	a, err := s.Get(cmd.Context(), id)
	if err != nil {
		return err
	}

	if jsonOutput(cmd) {
		return printJSON(map[string]any{
			"atom_id":         id,
			"content_hash":    a.ContentHash.String(),
			"reference_count": a.ReferenceCount,
		})
	}

	pterm.Success.Printfln("Stored atom %d", id)
	pterm.Printfln("  hash: %s", a.ContentHash.String())
	pterm.Printfln("  references: %d", a.ReferenceCount)
	return nil
}
