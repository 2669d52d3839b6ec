package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"archscan/internal/architecture"
	archerrors "archscan/internal/errors"
)

var (
	scanFormat   string
	scanExport   bool
	scanNoLedger bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the repository and summarize its architecture",
	Long: `Crawl the repository, build the architecture map and print a summary.

Archival plans for eligible components are appended to the plan ledger
unless --no-ledger is given or the ledger is disabled in the config.

Examples:
  archscan scan
  archscan scan --format=json
  archscan scan --export          # also write the full report to the sink`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanFormat, "format", "human", "Output format (human, json)")
	scanCmd.Flags().BoolVar(&scanExport, "export", false, "Write the full report to the configured sink")
	scanCmd.Flags().BoolVar(&scanNoLedger, "no-ledger", false, "Do not record plans in the ledger")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := newContext(cmd)
	defer cancel()

	m, scanErr := s.scan(ctx)
	if m == nil {
		return scanErr
	}

	resp := newScanResponse(m)
	if scanErr == nil && !scanNoLedger {
		added, err := s.recordPlans(ctx, m)
		if err != nil {
			return err
		}
		resp.LedgerRecorded = added
	}
	if scanErr == nil && scanExport {
		loc, err := exportMap(ctx, s, m)
		if err != nil {
			return err
		}
		resp.ReportLocation = loc
	}

	out, err := FormatResponse(resp, OutputFormat(scanFormat))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)

	if scanErr != nil && archerrors.IsCancelled(scanErr) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Scan cancelled; the summary above covers the completed part only.")
	}
	return scanErr
}

// ScanResponse is the CLI view of a scan
type ScanResponse struct {
	ScanID         string               `json:"scanId"`
	Root           string               `json:"root"`
	Summary        architecture.Summary `json:"summary"`
	Unreachable    []string             `json:"unreachable,omitempty"`
	Eligible       []EligibleCLI        `json:"eligible,omitempty"`
	Warnings       []string             `json:"warnings,omitempty"`
	LedgerRecorded int                  `json:"ledgerRecorded"`
	ReportLocation string               `json:"reportLocation,omitempty"`
}

// EligibleCLI is one archival-eligible component
type EligibleCLI struct {
	ComponentID string  `json:"componentId"`
	Origin      string  `json:"origin"`
	Risk        string  `json:"risk"`
	EffortHours float64 `json:"effortHours"`
	Reasons     string  `json:"reasons"`
}

func newScanResponse(m *architecture.ArchitectureMap) *ScanResponse {
	resp := &ScanResponse{
		ScanID:  m.ScanID,
		Root:    m.Root,
		Summary: m.Summary(),
	}
	if m.Usage != nil {
		resp.Unreachable = m.Usage.UnreachableIDs()
	}
	if m.Legacy != nil {
		for _, lc := range m.Legacy.Eligible() {
			resp.Eligible = append(resp.Eligible, EligibleCLI{
				ComponentID: lc.ComponentID,
				Origin:      string(lc.Origin),
				Risk:        string(lc.Risk),
				EffortHours: lc.EffortHours,
				Reasons:     joinReasons(lc.Verdict.Reasons),
			})
		}
	}
	for _, w := range m.Warnings {
		resp.Warnings = append(resp.Warnings, w.String())
	}
	return resp
}
