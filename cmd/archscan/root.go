package main

import (
	"github.com/spf13/cobra"

	"archscan/internal/version"
)

var (
	rootFlag    string
	verboseFlag int
	quietFlag   bool
)

var rootCmd = &cobra.Command{
	Use:   "archscan",
	Short: "archscan - architecture intelligence and safe cleanup planning",
	Long: `archscan maps a TypeScript/JavaScript codebase into components, their
origin, usage, test coverage and backend bindings, assigns each a risk level
and plans reversible, backup-first archival of legacy code.

archscan never modifies the scanned tree. Plans are recorded in an
append-only ledger for an external executor.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("archscan version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&rootFlag, "root", "", "Repository root (default: current directory)")
	rootCmd.PersistentFlags().CountVarP(&verboseFlag, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress all logs")
}
