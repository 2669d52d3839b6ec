package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"archscan/internal/ledger"
	"archscan/internal/model"
	"archscan/internal/testselect"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
)

// FormatResponse formats a response according to the specified format
func FormatResponse(resp interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

func formatHuman(resp interface{}) (string, error) {
	switch v := resp.(type) {
	case *ScanResponse:
		return formatScanHuman(v), nil
	case *PlanResponse:
		return formatPlanHuman(v), nil
	case *testselect.Selection:
		return formatSelectionHuman(v), nil
	case *LedgerStatusResponse:
		return formatLedgerHuman(v), nil
	default:
		// Unknown types fall back to JSON
		return formatJSON(resp)
	}
}

// LedgerStatusResponse is the CLI view of the ledger
type LedgerStatusResponse struct {
	Path  string              `json:"path"`
	Plans []ledger.PlanStatus `json:"plans"`
}

func joinReasons(reasons []string) string {
	return strings.Join(reasons, "; ")
}

func formatScanHuman(r *ScanResponse) string {
	var b strings.Builder
	s := r.Summary

	title := "Architecture Summary"
	if s.Partial {
		title += " (partial)"
	}
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("=", 60) + "\n\n")
	fmt.Fprintf(&b, "Scan:        %s\n", r.ScanID)
	fmt.Fprintf(&b, "Root:        %s\n", r.Root)
	fmt.Fprintf(&b, "Components:  %d (%d tests)\n", s.Components, s.Tests)
	if !s.Partial {
		fmt.Fprintf(&b, "Reachable:   %d, unreachable %d, orphans %d\n", s.Reachable, s.Unreachable, s.Orphans)
		fmt.Fprintf(&b, "Tests:       %d orphan, %d interface mismatches\n", s.OrphanTests, s.Mismatches)
	}

	if len(s.ByOrigin) > 0 {
		b.WriteString("\nOrigin:\n")
		for _, o := range sortedKeys(s.ByOrigin) {
			fmt.Fprintf(&b, "  %-12s %d\n", o, s.ByOrigin[o])
		}
	}
	if len(s.ByRisk) > 0 {
		b.WriteString("\nRisk:\n")
		for _, lvl := range []model.RiskLevel{model.RiskCritical, model.RiskHigh, model.RiskMedium, model.RiskLow} {
			if n := s.ByRisk[lvl]; n > 0 {
				fmt.Fprintf(&b, "  %-12s %d\n", lvl, n)
			}
		}
	}

	if len(r.Eligible) > 0 {
		fmt.Fprintf(&b, "\nEligible for archival (%d of %d candidates, %.2fh):\n", s.Eligible, s.Candidates, s.TotalHours)
		for _, e := range r.Eligible {
			fmt.Fprintf(&b, "  %-8s %6.2fh  %s  [%s]\n", e.Risk, e.EffortHours, e.ComponentID, e.Reasons)
		}
	}
	if r.LedgerRecorded > 0 {
		fmt.Fprintf(&b, "\n%d new plan(s) recorded in the ledger.\n", r.LedgerRecorded)
	}
	if r.ReportLocation != "" {
		fmt.Fprintf(&b, "Report written to %s\n", r.ReportLocation)
	}

	if len(r.Warnings) > 0 {
		fmt.Fprintf(&b, "\nWarnings (%d):\n", len(r.Warnings))
		for i, w := range r.Warnings {
			if i == 20 {
				fmt.Fprintf(&b, "  ... %d more\n", len(r.Warnings)-i)
				break
			}
			fmt.Fprintf(&b, "  %s\n", w)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatPlanHuman(r *PlanResponse) string {
	var b strings.Builder
	b.WriteString("Cleanup Roadmap\n")
	b.WriteString(strings.Repeat("=", 60) + "\n")

	if r.Roadmap == nil || r.Roadmap.TotalComponents == 0 {
		b.WriteString("\nNothing is eligible for archival.")
		return b.String()
	}

	byArchival := make(map[string]string, len(r.Plans))
	for _, p := range r.Plans {
		byArchival[p.Archival.ID] = p.Backup.BackupTargetPath
	}
	for _, ph := range r.Roadmap.Phases {
		fmt.Fprintf(&b, "\nPhase %d: %s (%d components, %.2fh)\n", ph.Number, ph.Name, ph.Count, ph.Hours)
		for _, it := range ph.Items {
			fmt.Fprintf(&b, "  %-8s %6.2fh  %s\n", it.Risk, it.EffortHours, it.ComponentID)
			fmt.Fprintf(&b, "           backup   %s -> %s\n", it.BackupPlanID, byArchival[it.ArchivalPlanID])
			fmt.Fprintf(&b, "           archive  %s\n", it.ArchivalPlanID)
		}
	}
	fmt.Fprintf(&b, "\nTotal: %d components, %.2fh\n", r.Roadmap.TotalComponents, r.Roadmap.TotalHours)
	if r.LedgerRecorded > 0 {
		fmt.Fprintf(&b, "%d new plan(s) recorded in the ledger.\n", r.LedgerRecorded)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatSelectionHuman(sel *testselect.Selection) string {
	var b strings.Builder
	suite := sel.Suite
	fmt.Fprintf(&b, "Safe test suite for %s (radius %d)\n", strings.Join(suite.Targets, ", "), suite.HopRadius)
	b.WriteString(strings.Repeat("=", 60) + "\n")

	if len(suite.FilteredOut) > 0 {
		fmt.Fprintf(&b, "Filtered out: %s\n", strings.Join(suite.FilteredOut, ", "))
	}
	if len(suite.UnknownTargets) > 0 {
		fmt.Fprintf(&b, "Unknown targets: %s\n", strings.Join(suite.UnknownTargets, ", "))
	}

	if len(sel.Plan.Steps) == 0 {
		b.WriteString("\nNo tests selected.\n")
	} else {
		b.WriteString("\n")
		for _, step := range sel.Plan.Steps {
			fmt.Fprintf(&b, "  %3d. %-8s %s  (%s)\n", step.Order, step.Risk, step.TestID, step.Reason)
		}
	}

	if len(suite.ExcludedDueToMismatch) > 0 {
		fmt.Fprintf(&b, "\nExcluded for interface mismatch (%d):\n", len(suite.ExcludedDueToMismatch))
		for _, ex := range suite.ExcludedDueToMismatch {
			for _, mm := range ex.Mismatches {
				fmt.Fprintf(&b, "  %s:%d imports %q, not exported by %s\n", ex.TestID, mm.Line, mm.Name, mm.ComponentID)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatLedgerHuman(r *LedgerStatusResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan ledger: %s\n", r.Path)
	b.WriteString(strings.Repeat("=", 60) + "\n")
	if len(r.Plans) == 0 {
		b.WriteString("\nNo plans recorded.")
		return b.String()
	}
	b.WriteString("\n")
	for _, p := range r.Plans {
		state := "pending backup"
		switch {
		case p.Archived:
			state = "archived"
		case p.BackupCompleted:
			state = "ready to archive"
		}
		fmt.Fprintf(&b, "  %-16s %-8s %s\n", state, p.Archival.Risk, p.Archival.ComponentID)
		fmt.Fprintf(&b, "                   backup %s, archival %s\n", p.Backup.ID, p.Archival.ID)
	}
	return strings.TrimRight(b.String(), "\n")
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
