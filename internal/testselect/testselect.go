// Package testselect computes the minimal safe test suite for a change set:
// the tests touching the targets and their importers within a hop radius,
// minus tests whose imports no longer match their targets' exports.
package testselect

import (
	"fmt"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"archscan/internal/coverage"
	archerrors "archscan/internal/errors"
	"archscan/internal/model"
	"archscan/internal/usage"
)

// DefaultHopRadius is the reverse-dependency radius when none is given
const DefaultHopRadius = 1

// ComponentFilter decides whether a target component participates in
// selection. Nil admits everything.
type ComponentFilter func(id string) bool

// GlobFilter admits ids matching any of the doublestar patterns. No
// patterns admits everything.
func GlobFilter(patterns ...string) (ComponentFilter, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid filter pattern %q", p)
		}
	}
	if len(patterns) == 0 {
		return nil, nil
	}
	return func(id string) bool {
		for _, p := range patterns {
			if ok, _ := doublestar.Match(p, id); ok {
				return true
			}
		}
		return false
	}, nil
}

// Inputs are the ArchitectureMap layers selection reads
type Inputs struct {
	Components *model.ComponentMap
	Usage      *usage.Analysis
	Coverage   *coverage.Map
	Risks      map[string]model.RiskLevel
	// Partial marks a map from a cancelled scan; selection refuses it
	Partial bool
}

// Options tune selection
type Options struct {
	// HopRadius bounds the importer expansion; negative means default
	HopRadius int
	Filter    ComponentFilter
}

// SelectedTest is one test of the suite
type SelectedTest struct {
	TestID            string          `json:"testId"`
	CoveredComponents []string        `json:"coveredComponents"`
	Risk              model.RiskLevel `json:"risk"`
	Hop               int             `json:"hop"`
}

// ExcludedTest is a candidate dropped for an interface mismatch
type ExcludedTest struct {
	TestID     string                       `json:"testId"`
	Mismatches []coverage.InterfaceMismatch `json:"mismatches"`
}

// SafeTestSuite is the selected tests in execution order
type SafeTestSuite struct {
	Targets               []string       `json:"targets"`
	FilteredOut           []string       `json:"filteredOut,omitempty"`
	UnknownTargets        []string       `json:"unknownTargets,omitempty"`
	HopRadius             int            `json:"hopRadius"`
	Tests                 []SelectedTest `json:"tests"`
	ExcludedDueToMismatch []ExcludedTest `json:"excludedDueToMismatch"`
}

// ExecutionStep is one explicit step of the plan
type ExecutionStep struct {
	Order  int             `json:"order"`
	TestID string          `json:"testId"`
	Risk   model.RiskLevel `json:"risk"`
	Hop    int             `json:"hop"`
	Reason string          `json:"reason"`
}

// TestExecutionPlan is the ordered list of steps
type TestExecutionPlan struct {
	Steps []ExecutionStep `json:"steps"`
}

// Selection is the result of Select
type Selection struct {
	Suite      SafeTestSuite                `json:"suite"`
	Plan       TestExecutionPlan            `json:"plan"`
	Mismatches []coverage.InterfaceMismatch `json:"mismatches"`
}

// Select runs the selection pipeline: filter the targets, take their direct
// tests, expand over importers up to the hop radius, drop mismatched tests
// and order by descending risk, ascending hop, then test id.
func Select(in Inputs, targets []string, opts Options) (*Selection, error) {
	if in.Partial {
		return nil, archerrors.New(archerrors.PartialResult,
			"test selection requires a complete architecture map", nil)
	}
	radius := opts.HopRadius
	if radius < 0 {
		radius = DefaultHopRadius
	}

	suite := SafeTestSuite{
		Targets:               []string{},
		HopRadius:             radius,
		Tests:                 []SelectedTest{},
		ExcludedDueToMismatch: []ExcludedTest{},
	}

	seen := make(map[string]bool)
	for _, id := range targets {
		if seen[id] {
			continue
		}
		seen[id] = true
		switch {
		case !in.Components.Has(id):
			suite.UnknownTargets = append(suite.UnknownTargets, id)
		case opts.Filter != nil && !opts.Filter(id):
			suite.FilteredOut = append(suite.FilteredOut, id)
		default:
			suite.Targets = append(suite.Targets, id)
		}
	}

	hops := expand(in.Usage, suite.Targets, radius)

	testHop := make(map[string]int)
	for comp, hop := range hops {
		for _, test := range in.Coverage.TestsFor(comp) {
			if h, ok := testHop[test]; !ok || hop < h {
				testHop[test] = hop
			}
		}
	}

	var mismatches []coverage.InterfaceMismatch
	for test, hop := range testHop {
		f, _ := in.Coverage.Test(test)
		if len(f.Mismatches) > 0 {
			suite.ExcludedDueToMismatch = append(suite.ExcludedDueToMismatch, ExcludedTest{
				TestID:     test,
				Mismatches: f.Mismatches,
			})
			mismatches = append(mismatches, f.Mismatches...)
			continue
		}
		suite.Tests = append(suite.Tests, SelectedTest{
			TestID:            test,
			CoveredComponents: append([]string(nil), f.Components...),
			Risk:              maxRisk(in.Risks, f.Components),
			Hop:               hop,
		})
	}

	sort.Slice(suite.Tests, func(i, j int) bool {
		a, b := suite.Tests[i], suite.Tests[j]
		if a.Risk.Rank() != b.Risk.Rank() {
			return a.Risk.Rank() > b.Risk.Rank()
		}
		if a.Hop != b.Hop {
			return a.Hop < b.Hop
		}
		return a.TestID < b.TestID
	})
	sort.Slice(suite.ExcludedDueToMismatch, func(i, j int) bool {
		return suite.ExcludedDueToMismatch[i].TestID < suite.ExcludedDueToMismatch[j].TestID
	})
	sort.SliceStable(mismatches, func(i, j int) bool {
		if mismatches[i].TestID != mismatches[j].TestID {
			return mismatches[i].TestID < mismatches[j].TestID
		}
		return mismatches[i].Line < mismatches[j].Line
	})
	if mismatches == nil {
		mismatches = []coverage.InterfaceMismatch{}
	}

	plan := TestExecutionPlan{Steps: make([]ExecutionStep, 0, len(suite.Tests))}
	for i, t := range suite.Tests {
		plan.Steps = append(plan.Steps, ExecutionStep{
			Order:  i + 1,
			TestID: t.TestID,
			Risk:   t.Risk,
			Hop:    t.Hop,
			Reason: reason(t.Hop),
		})
	}

	return &Selection{Suite: suite, Plan: plan, Mismatches: mismatches}, nil
}

// expand runs a reverse-edge BFS from the targets and returns each reached
// component with its hop distance.
func expand(an *usage.Analysis, targets []string, radius int) map[string]int {
	hops := make(map[string]int, len(targets))
	queue := make([]string, 0, len(targets))
	for _, id := range targets {
		hops[id] = 0
		queue = append(queue, id)
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if hops[id] >= radius {
			continue
		}
		for _, importer := range an.Importers(id) {
			if _, ok := hops[importer]; ok {
				continue
			}
			hops[importer] = hops[id] + 1
			queue = append(queue, importer)
		}
	}
	return hops
}

func maxRisk(risks map[string]model.RiskLevel, ids []string) model.RiskLevel {
	var out model.RiskLevel
	for _, id := range ids {
		out = model.MaxRisk(out, risks[id])
	}
	if out == "" {
		return model.RiskLow
	}
	return out
}

func reason(hop int) string {
	if hop == 0 {
		return "covers a target directly"
	}
	return fmt.Sprintf("covers an importer %d hop(s) from a target", hop)
}
