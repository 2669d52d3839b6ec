// Package legacy decides which components are safe to archive and emits
// ordered, paired backup and archival plans for an external executor. It
// never touches the source tree.
package legacy

import (
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"archscan/internal/catalog"
	"archscan/internal/coverage"
	archerrors "archscan/internal/errors"
	"archscan/internal/model"
	"archscan/internal/policy"
	"archscan/internal/usage"
)

// Verdict is the eligibility decision with its reasons
type Verdict struct {
	Eligible bool     `json:"eligible"`
	Reasons  []string `json:"reasons"`
}

// LegacyComponent is a cleanup candidate
type LegacyComponent struct {
	ComponentID         string                      `json:"componentId"`
	Origin              model.Origin                `json:"origin"`
	Confidence          float64                     `json:"confidence"`
	Reachable           bool                        `json:"reachable"`
	CoveringTests       int                         `json:"coveringTests"`
	BackendDependencies []catalog.BackendDependency `json:"backendDependencies"`
	RouteUsage          []catalog.RouteUsage        `json:"routeUsage"`
	Verdict             Verdict                     `json:"verdict"`
	Risk                model.RiskLevel             `json:"risk"`
	EffortHours         float64                     `json:"effortHours"`
}

// Report is the legacy detection layer of an ArchitectureMap
type Report struct {
	Candidates []LegacyComponent `json:"candidates"`
	// Plans are ordered by risk, then effort, then component id
	Plans []PlanPair `json:"plans"`
}

// Eligible returns the eligible candidates in discovery order
func (r *Report) Eligible() []LegacyComponent {
	var out []LegacyComponent
	for _, c := range r.Candidates {
		if c.Verdict.Eligible {
			out = append(out, c)
		}
	}
	return out
}

// Inputs are the layers legacy detection reads
type Inputs struct {
	Components *model.ComponentMap
	Origins    map[string]model.ComponentOrigin
	Usage      *usage.Analysis
	Coverage   *coverage.Map
	Backends   map[string][]catalog.BackendDependency
	Routes     *catalog.RoutingTable
	Risks      map[string]model.RiskLevel
	// Changed components were modified while the scan ran
	Changed []string
}

// Options configure a Detector
type Options struct {
	Policy *policy.Policy
	// Root is the absolute scan root
	Root string
	// BackupDir is absolute or relative to Root
	BackupDir string
	// ScanTime dates the backup targets
	ScanTime time.Time
}

// Detector runs legacy detection
type Detector struct {
	opts   Options
	logger *slog.Logger
}

// NewDetector creates a detector
func NewDetector(opts Options, logger *slog.Logger) *Detector {
	if opts.Policy == nil {
		opts.Policy = policy.Default()
	}
	return &Detector{opts: opts, logger: logger}
}

// Detect selects candidates, decides eligibility and builds plans. It
// refuses with a configuration error when something is eligible but the
// backup target directory is unset or is the root itself.
func (d *Detector) Detect(in Inputs) (*Report, error) {
	report := &Report{Candidates: []LegacyComponent{}, Plans: []PlanPair{}}
	routes := in.Routes
	if routes == nil {
		routes = &catalog.RoutingTable{}
	}

	for id, c := range in.Components.All() {
		o := in.Origins[id]
		if o.Origin != model.OriginLegacy && o.Origin != model.OriginUnknown {
			continue
		}
		tests := in.Coverage.TestsFor(id)
		if len(tests) > d.opts.Policy.Legacy.MaxCoveringTests {
			continue
		}

		lc := LegacyComponent{
			ComponentID:         id,
			Origin:              o.Origin,
			Confidence:          o.Confidence,
			Reachable:           in.Usage.IsReachable(id),
			CoveringTests:       len(tests),
			BackendDependencies: nonNil(in.Backends[id]),
			RouteUsage:          nonNil(routes.UsageFor(id)),
			Risk:                in.Risks[id],
		}
		lc.Verdict = d.verdict(lc, blindSpot(c, in))
		lc.EffortHours = EstimateEffort(d.opts.Policy.Effort, c, len(lc.BackendDependencies), len(in.Usage.Importers(id)))
		report.Candidates = append(report.Candidates, lc)
	}

	eligible := report.Eligible()
	if len(eligible) == 0 {
		return report, nil
	}
	backupDir, err := d.backupDir()
	if err != nil {
		return nil, err
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if a.Risk.Rank() != b.Risk.Rank() {
			return a.Risk.Rank() < b.Risk.Rank()
		}
		if a.EffortHours != b.EffortHours {
			return a.EffortHours < b.EffortHours
		}
		return a.ComponentID < b.ComponentID
	})

	scanDate := d.opts.ScanTime.UTC().Format(time.DateOnly)
	for _, lc := range eligible {
		c, _ := in.Components.Get(lc.ComponentID)
		report.Plans = append(report.Plans, newPair(c, backupDir, scanDate, lc.Risk, lc.EffortHours))
	}
	if err := VerifyPairs(report.Plans); err != nil {
		return nil, err
	}

	d.logger.Info("Legacy detection complete",
		"candidates", len(report.Candidates),
		"eligible", len(eligible),
	)
	return report, nil
}

// blindSpot names why c's usage cannot be trusted, or returns "". A degraded
// or changed component was not analysed as it now stands, and a component
// imported only by degraded components may have live uses the graph does
// not show.
func blindSpot(c *model.ComponentInfo, in Inputs) string {
	if c.Degraded {
		return "content not fully analysed: " + c.ErrorMarker
	}
	if slices.Contains(in.Changed, c.ID) {
		return "content changed during the scan"
	}
	importers := in.Usage.Importers(c.ID)
	if len(importers) == 0 {
		return ""
	}
	for _, id := range importers {
		if imp, ok := in.Components.Get(id); !ok || !imp.Degraded {
			return ""
		}
	}
	return "imported only by degraded component(s): " + strings.Join(importers, ", ")
}

// verdict applies: eligible = !reachable || (legacy && no live routes &&
// no active backend dependencies). Strict eligibility also demands the
// route and backend conditions of unreachable components. A blind spot
// always blocks archival.
func (d *Detector) verdict(lc LegacyComponent, blind string) Verdict {
	liveRoutes := 0
	for _, r := range lc.RouteUsage {
		if r.Live {
			liveRoutes++
		}
	}
	activeDeps := 0
	for _, b := range lc.BackendDependencies {
		if b.Active {
			activeDeps++
		}
	}
	unbound := liveRoutes == 0 && activeDeps == 0

	var reasons []string
	if lc.Reachable {
		reasons = append(reasons, "reachable from an entry point")
	} else {
		reasons = append(reasons, "unreachable from every entry point")
	}
	reasons = append(reasons, fmt.Sprintf("origin %s (confidence %.2f)", lc.Origin, lc.Confidence))
	if liveRoutes > 0 {
		reasons = append(reasons, fmt.Sprintf("%d live route(s)", liveRoutes))
	}
	if activeDeps > 0 {
		reasons = append(reasons, fmt.Sprintf("%d active backend dependency(ies)", activeDeps))
	}

	var eligible bool
	if d.opts.Policy.Legacy.StrictEligibility {
		eligible = unbound && (!lc.Reachable || lc.Origin == model.OriginLegacy)
	} else {
		eligible = !lc.Reachable || (lc.Origin == model.OriginLegacy && unbound)
	}
	if blind != "" {
		reasons = append(reasons, blind)
		eligible = false
	}
	return Verdict{Eligible: eligible, Reasons: reasons}
}

func (d *Detector) backupDir() (string, error) {
	dir := strings.TrimSpace(d.opts.BackupDir)
	if dir == "" {
		return "", archerrors.New(archerrors.ConfigurationError,
			"backup target directory is required when components are eligible for archival", nil)
	}
	abs := dir
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(d.opts.Root, abs)
	}
	if filepath.Clean(abs) == filepath.Clean(d.opts.Root) {
		return "", archerrors.New(archerrors.ConfigurationError,
			"backup target directory must not be the root directory", nil)
	}
	return dir, nil
}

// EstimateEffort returns the archival effort in hours, rounded to a quarter.
func EstimateEffort(p policy.EffortPolicy, c *model.ComponentInfo, backendDeps, importers int) float64 {
	hours := p.BaseHours +
		float64(backendDeps)*p.PerBackendDependency +
		float64(importers)*p.PerImporter +
		float64(c.Complexity)*p.PerComplexityPoint +
		float64(c.Cognitive)*p.PerCognitivePoint
	if p.LinesPerHour > 0 {
		hours += float64(c.Lines) / p.LinesPerHour
	}
	return math.Round(hours*4) / 4
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
