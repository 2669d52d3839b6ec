// Package coverage associates test files with the source components they
// import and records interface mismatches between the two.
package coverage

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"archscan/internal/model"
	"archscan/internal/resolve"
)

// InterfaceMismatch is a test importing a name its target does not export.
// It is a finding, not an error.
type InterfaceMismatch struct {
	TestID      string `json:"testId"`
	ComponentID string `json:"componentId"`
	Name        string `json:"name"`
	Line        int    `json:"line"`
}

// TestCoverageInfo is the coverage record of one source component
type TestCoverageInfo struct {
	ComponentID string              `json:"componentId"`
	Tests       []string            `json:"tests"`
	Covered     bool                `json:"covered"`
	Mismatches  []InterfaceMismatch `json:"mismatches,omitempty"`
}

// TestFile is what one test touches
type TestFile struct {
	TestID     string              `json:"testId"`
	Components []string            `json:"components"`
	Mismatches []InterfaceMismatch `json:"mismatches,omitempty"`
}

// Map is the coverage layer: total over source ids, plus per-test records
// and orphan tests that touch no source component.
type Map struct {
	order       []string
	byComponent map[string]*TestCoverageInfo
	testOrder   []string
	tests       map[string]*TestFile
	orphans     []string
}

// Analyzer builds coverage Maps using the resolver shared with usage
// analysis.
type Analyzer struct {
	resolver       *resolve.Resolver
	maxConcurrency int
	logger         *slog.Logger
}

// NewAnalyzer creates a coverage analyzer
func NewAnalyzer(resolver *resolve.Resolver, maxConcurrency int, logger *slog.Logger) *Analyzer {
	return &Analyzer{resolver: resolver, maxConcurrency: max(maxConcurrency, 1), logger: logger}
}

// Analyze maps every test in tests onto the components of sources. Per-test
// work runs on a bounded pool; results are merged in test discovery order.
func (a *Analyzer) Analyze(ctx context.Context, sources, tests *model.ComponentMap) (*Map, error) {
	testIDs := tests.IDs()
	files := make([]*TestFile, len(testIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.maxConcurrency)
	for i, id := range testIDs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t, _ := tests.Get(id)
			files[i] = a.associate(sources, t)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	m := &Map{
		order:       sources.IDs(),
		byComponent: make(map[string]*TestCoverageInfo, sources.Len()),
		tests:       make(map[string]*TestFile),
	}
	for _, id := range m.order {
		m.byComponent[id] = &TestCoverageInfo{ComponentID: id, Tests: []string{}}
	}
	for _, f := range files {
		if len(f.Components) == 0 {
			m.orphans = append(m.orphans, f.TestID)
			continue
		}
		m.testOrder = append(m.testOrder, f.TestID)
		m.tests[f.TestID] = f
		for _, cid := range f.Components {
			info := m.byComponent[cid]
			info.Tests = append(info.Tests, f.TestID)
			info.Covered = true
		}
		for _, mm := range f.Mismatches {
			info := m.byComponent[mm.ComponentID]
			info.Mismatches = append(info.Mismatches, mm)
		}
	}
	for _, info := range m.byComponent {
		sort.Strings(info.Tests)
	}

	a.logger.Debug("Coverage mapped",
		"tests", len(testIDs),
		"orphanTests", len(m.orphans),
	)
	return m, nil
}

// associate is pure: it resolves one test's imports against sources.
func (a *Analyzer) associate(sources *model.ComponentMap, t *model.ComponentInfo) *TestFile {
	f := &TestFile{TestID: t.ID}
	touched := make(map[string]bool)

	for _, imp := range t.Imports {
		res := a.resolver.Resolve(t.ID, imp.Specifier)
		if res.Kind != resolve.Resolved {
			continue
		}
		target, ok := sources.Get(res.ComponentID)
		if !ok {
			continue
		}
		if !touched[target.ID] {
			touched[target.ID] = true
			f.Components = append(f.Components, target.ID)
		}
		if !checksInterface(target) {
			continue
		}
		for _, name := range imp.Names {
			if !target.ExportsName(name) {
				f.Mismatches = append(f.Mismatches, InterfaceMismatch{
					TestID:      t.ID,
					ComponentID: target.ID,
					Name:        name,
					Line:        imp.Line,
				})
			}
		}
	}
	sort.Strings(f.Components)
	return f
}

// checksInterface reports whether target's export list is trustworthy
// enough to flag missing names. Stylesheets, degraded files and CommonJS
// modules without ES exports are not checked.
func checksInterface(target *model.ComponentInfo) bool {
	switch {
	case target.Degraded:
		return false
	case target.Language == model.LangCSS:
		return false
	case target.Language == model.LangJavaScript && len(target.Exports) == 0:
		return false
	}
	return true
}

// For returns the coverage record for a source component
func (m *Map) For(id string) (TestCoverageInfo, bool) {
	info, ok := m.byComponent[id]
	if !ok {
		return TestCoverageInfo{}, false
	}
	return *info, true
}

// TestsFor returns the sorted tests touching id
func (m *Map) TestsFor(id string) []string {
	if info, ok := m.byComponent[id]; ok {
		return append([]string(nil), info.Tests...)
	}
	return nil
}

// IsCovered reports whether any test touches id
func (m *Map) IsCovered(id string) bool {
	info, ok := m.byComponent[id]
	return ok && info.Covered
}

// Test returns the record of a non-orphan test
func (m *Map) Test(testID string) (TestFile, bool) {
	f, ok := m.tests[testID]
	if !ok {
		return TestFile{}, false
	}
	return *f, true
}

// HasMismatch reports whether testID imports a name its target lacks
func (m *Map) HasMismatch(testID string) bool {
	f, ok := m.tests[testID]
	return ok && len(f.Mismatches) > 0
}

// Tests returns non-orphan test ids in discovery order
func (m *Map) Tests() []string {
	return append([]string(nil), m.testOrder...)
}

// Orphans returns tests that touch no source component
func (m *Map) Orphans() []string {
	return append([]string(nil), m.orphans...)
}

// Mismatches returns every interface mismatch in test discovery order
func (m *Map) Mismatches() []InterfaceMismatch {
	var out []InterfaceMismatch
	for _, id := range m.testOrder {
		out = append(out, m.tests[id].Mismatches...)
	}
	return out
}

// MarshalJSON encodes the map with components in discovery order
func (m *Map) MarshalJSON() ([]byte, error) {
	components := make([]TestCoverageInfo, 0, len(m.order))
	for _, id := range m.order {
		components = append(components, *m.byComponent[id])
	}
	tests := make([]TestFile, 0, len(m.testOrder))
	for _, id := range m.testOrder {
		tests = append(tests, *m.tests[id])
	}
	return json.Marshal(struct {
		Components  []TestCoverageInfo `json:"components"`
		Tests       []TestFile         `json:"tests"`
		OrphanTests []string           `json:"orphanTests"`
	}{components, tests, m.orphans})
}
