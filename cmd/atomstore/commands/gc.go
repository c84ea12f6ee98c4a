package commands

import (
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/axiomata/atomstore/config"
	"github.com/axiomata/atomstore/logger"
	"github.com/axiomata/atomstore/store"
	"github.com/axiomata/atomstore/sym"
)

// GCCmd runs a garbage collection sweep.
var GCCmd = &cobra.Command{
	Use:   "gc",
	Short: sym.GC + " Sweep atoms pending deletion",
	Long: `Run one garbage collection sweep.

Deletes atoms whose reference count has been zero for longer than the
grace period. Axioms and atoms with live derived dependents are skipped
unless --force is given.

With --daemon the sweeper keeps running at the configured interval until
interrupted, picking up config file changes without a restart.

Examples:
  atomstore gc
  atomstore gc --force
  atomstore gc --daemon`,
	RunE: runGC,
}

var (
	gcForceFlag  bool
	gcDaemonFlag bool
)

func init() {
	GCCmd.Flags().BoolVar(&gcForceFlag, "force", false, "Override axiom and live-dependent protections")
	GCCmd.Flags().BoolVar(&gcDaemonFlag, "daemon", false, "Run the periodic sweeper until interrupted")
}

func runGC(cmd *cobra.Command, args []string) error {
	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if gcDaemonFlag {
		return runGCDaemon(cmd, s)
	}

	res, err := s.GC().Sweep(cmd.Context(), gcForceFlag)
	if err != nil {
		return err
	}

	if jsonOutput(cmd) {
		return printJSON(res)
	}

	pterm.Success.Printfln("Sweep complete: %d deleted of %d candidates", res.Deleted, res.Scanned)
	if res.SkippedAxiom > 0 {
		pterm.Printfln("  skipped axioms: %d", res.SkippedAxiom)
	}
	if res.SkippedLive > 0 {
		pterm.Printfln("  skipped with live dependents: %d", res.SkippedLive)
	}
	if res.SkippedRescued > 0 {
		pterm.Printfln("  rescued concurrently: %d", res.SkippedRescued)
	}
	return nil
}

// runGCDaemon runs the periodic sweeper until SIGINT/SIGTERM. When a config
// file path is known, GC tuning hot-reloads on file changes.
func runGCDaemon(cmd *cobra.Command, s *store.Store) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		watcher, err := config.NewWatcher(path, logger.Logger)
		if err != nil {
			return err
		}
		defer watcher.Close()
		watcher.OnReload(func(cfg *config.Config) error {
			s.GC().SetConfig(cfg)
			return nil
		})
		watcher.Start()
	}

	pterm.Info.Println("Sweeper running, Ctrl-C to stop")
	s.GC().RunSweeper(ctx)
	return nil
}
