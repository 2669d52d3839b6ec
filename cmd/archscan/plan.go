package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"archscan/internal/architecture"
	"archscan/internal/legacy"
)

var planFormat string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the phased cleanup roadmap with backup and archival plans",
	Long: `Scan the repository and print the cleanup roadmap.

Phase 1 holds low-risk quick wins, phase 2 bounded medium-risk work and
phase 3 everything else. Every archival plan names the backup plan that
must complete before it may run.

Examples:
  archscan plan
  archscan plan --format=json`,
	Args: cobra.NoArgs,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planFormat, "format", "human", "Output format (human, json)")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := newContext(cmd)
	defer cancel()

	m, err := s.scan(ctx)
	if err != nil {
		return err
	}
	added, err := s.recordPlans(ctx, m)
	if err != nil {
		return err
	}

	resp := &PlanResponse{
		ScanID:         m.ScanID,
		Roadmap:        m.Roadmap,
		Plans:          m.Plans(),
		LedgerRecorded: added,
	}
	out, err := FormatResponse(resp, OutputFormat(planFormat))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

// PlanResponse is the CLI view of the roadmap
type PlanResponse struct {
	ScanID         string                       `json:"scanId"`
	Roadmap        *architecture.CleanupRoadmap `json:"roadmap"`
	Plans          []legacy.PlanPair            `json:"plans"`
	LedgerRecorded int                          `json:"ledgerRecorded"`
}
