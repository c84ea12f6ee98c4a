package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/axiomata/atomstore/version"
)

// VersionCmd shows binary version information.
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show atomstore version information",
	Long:  "Display version, build time, commit hash, schema generation and platform information for the atomstore binary.",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.Get()
		if jsonOutput(cmd) {
			return printJSON(info)
		}
		fmt.Println(info.String())
		fmt.Printf("Schema: %s\n", info.SchemaVersion)
		fmt.Printf("Platform: %s\n", info.Platform)
		fmt.Printf("Go: %s\n", info.GoVersion)
		return nil
	},
}
