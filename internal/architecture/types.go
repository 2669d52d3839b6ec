// Package architecture orchestrates a scan: crawl, origin detection, usage
// graph, coverage, backend discovery, risk, legacy detection and the
// cleanup roadmap, assembled into one read-only ArchitectureMap.
package architecture

import (
	"slices"
	"sort"
	"time"

	"archscan/internal/catalog"
	"archscan/internal/coverage"
	archerrors "archscan/internal/errors"
	"archscan/internal/legacy"
	"archscan/internal/model"
	"archscan/internal/risk"
	"archscan/internal/usage"
)

// ArchitectureMap is the result of a scan. Layers are keyed by component id
// and composed in pipeline order; a partial map from a cancelled scan only
// carries the layers completed before cancellation and never risk or a
// roadmap.
type ArchitectureMap struct {
	ScanID      string    `json:"scanId"`
	GeneratedAt time.Time `json:"generatedAt"`
	Root        string    `json:"root"`
	Partial     bool      `json:"partial"`

	Components *model.ComponentMap                    `json:"components"`
	Tests      *model.ComponentMap                    `json:"tests,omitempty"`
	Origins    map[string]model.ComponentOrigin       `json:"origins"`
	Usage      *usage.Analysis                        `json:"usage,omitempty"`
	Coverage   *coverage.Map                          `json:"coverage,omitempty"`
	Backends   map[string][]catalog.BackendDependency `json:"backends,omitempty"`
	Risks      map[string]risk.Decision               `json:"risks,omitempty"`
	Legacy     *legacy.Report                         `json:"legacy,omitempty"`
	Roadmap    *CleanupRoadmap                        `json:"roadmap,omitempty"`

	Warnings []archerrors.Warning `json:"warnings"`
}

// RiskLevels returns the plain level per component
func (m *ArchitectureMap) RiskLevels() map[string]model.RiskLevel {
	out := make(map[string]model.RiskLevel, len(m.Risks))
	for id, d := range m.Risks {
		out[id] = d.Level
	}
	return out
}

// Summary is a count-level digest of a map
type Summary struct {
	Components  int                     `json:"components"`
	Tests       int                     `json:"tests"`
	ByOrigin    map[model.Origin]int    `json:"byOrigin"`
	ByRisk      map[model.RiskLevel]int `json:"byRisk,omitempty"`
	Reachable   int                     `json:"reachable"`
	Unreachable int                     `json:"unreachable"`
	Orphans     int                     `json:"orphans"`
	OrphanTests int                     `json:"orphanTests"`
	Mismatches  int                     `json:"mismatches"`
	Candidates  int                     `json:"candidates"`
	Eligible    int                     `json:"eligible"`
	Warnings    int                     `json:"warnings"`
	Partial     bool                    `json:"partial"`
	TotalHours  float64                 `json:"totalHours"`
}

// Summary computes the digest
func (m *ArchitectureMap) Summary() Summary {
	s := Summary{
		Components: m.Components.Len(),
		Tests:      m.Tests.Len(),
		ByOrigin:   make(map[model.Origin]int),
		Warnings:   len(m.Warnings),
		Partial:    m.Partial,
	}
	for _, o := range m.Origins {
		s.ByOrigin[o.Origin]++
	}
	if len(m.Risks) > 0 {
		s.ByRisk = make(map[model.RiskLevel]int)
		for _, d := range m.Risks {
			s.ByRisk[d.Level]++
		}
	}
	if m.Usage != nil {
		s.Unreachable = len(m.Usage.UnreachableIDs())
		s.Reachable = m.Usage.Len() - s.Unreachable
		s.Orphans = len(m.Usage.Orphans())
	}
	if m.Coverage != nil {
		s.OrphanTests = len(m.Coverage.Orphans())
		s.Mismatches = len(m.Coverage.Mismatches())
	}
	if m.Legacy != nil {
		s.Candidates = len(m.Legacy.Candidates)
		s.Eligible = len(m.Legacy.Plans)
	}
	if m.Roadmap != nil {
		s.TotalHours = m.Roadmap.TotalHours
	}
	return s
}

// sortWarnings orders warnings so reports do not depend on worker scheduling.
// The source and test crawls walk the same tree, so a problem both walks hit
// (a symlink cycle, an unreadable directory) is kept once.
func sortWarnings(ws []archerrors.Warning) []archerrors.Warning {
	if ws == nil {
		return []archerrors.Warning{}
	}
	sort.SliceStable(ws, func(i, j int) bool {
		a, b := ws[i], ws[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.ComponentID != b.ComponentID {
			return a.ComponentID < b.ComponentID
		}
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.Message < b.Message
	})
	return slices.Compact(ws)
}
