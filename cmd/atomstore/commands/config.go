package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/axiomata/atomstore/config"
)

// ConfigCmd manages atomstore configuration.
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage atomstore configuration",
	Long: `Manage atomstore configuration.

Examples:
  atomstore config init              # Write a commented atomstore.toml
  atomstore config show              # Show the effective configuration`,
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default configuration file",
	Long:  "Write a commented default configuration to the given path (default ./atomstore.toml). Refuses to overwrite an existing file.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

func init() {
	ConfigCmd.AddCommand(configInitCmd)
	ConfigCmd.AddCommand(configShowCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := "atomstore.toml"
	if len(args) == 1 {
		path = args[0]
	}
	if err := config.WriteDefault(path); err != nil {
		return err
	}
	pterm.Success.Printfln("Wrote default configuration to %s", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return printJSON(cfg)
}
