package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"archscan/internal/architecture"
	archerrors "archscan/internal/errors"
	"archscan/internal/testselect"
)

var (
	selectRadius  int
	selectFilters []string
	selectFormat  string
)

var selectTestsCmd = &cobra.Command{
	Use:   "select-tests <component>...",
	Short: "Select the tests to run before touching the given components",
	Long: `Select a safe, ordered test suite for a set of target components.

Direct tests of each target are taken, then tests of components importing
the targets up to --radius hops. Tests whose imports no longer match the
component interface are excluded and reported. Tests run highest risk
first, then nearest first.

Examples:
  archscan select-tests src/lib/api.ts
  archscan select-tests src/lib/api.ts --radius=2
  archscan select-tests src/legacy/A.tsx src/legacy/B.tsx --filter='src/legacy/**'
  archscan select-tests src/lib/api.ts --format=list   # test ids only, for CI`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSelectTests,
}

func init() {
	selectTestsCmd.Flags().IntVar(&selectRadius, "radius", -1, "Importer hop radius (default: hopRadius from config)")
	selectTestsCmd.Flags().StringSliceVar(&selectFilters, "filter", nil, "Only keep targets matching these globs")
	selectTestsCmd.Flags().StringVar(&selectFormat, "format", "human", "Output format (human, json, list)")
	rootCmd.AddCommand(selectTestsCmd)
}

func runSelectTests(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	filter, err := testselect.GlobFilter(selectFilters...)
	if err != nil {
		return archerrors.New(archerrors.ConfigurationError, "invalid --filter", err)
	}
	radius := selectRadius
	if radius < 0 {
		radius = s.cfg.HopRadius
	}

	ctx, cancel := newContext(cmd)
	defer cancel()

	m, err := s.scan(ctx)
	if err != nil {
		return err
	}
	targets := make([]string, len(args))
	for i, a := range args {
		targets[i] = componentArg(s.cfg.RootDirectory, a)
	}
	sel, err := architecture.SelectTests(m, targets, filter, radius)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if selectFormat == "list" {
		for _, step := range sel.Plan.Steps {
			fmt.Fprintln(w, step.TestID)
		}
		return nil
	}
	out, err := FormatResponse(sel, OutputFormat(selectFormat))
	if err != nil {
		return err
	}
	fmt.Fprintln(w, out)
	return nil
}
