// Package usage builds the component dependency graph and computes
// reachability from the configured entry points.
package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	archerrors "archscan/internal/errors"
	"archscan/internal/model"
	"archscan/internal/resolve"
)

// Unreachable is the distance of a component no entry point reaches.
const Unreachable = -1

// ComponentUsage is the usage record of one component
type ComponentUsage struct {
	ID         string `json:"id"`
	Inbound    int    `json:"inbound"`
	Outbound   int    `json:"outbound"`
	EntryPoint bool   `json:"entryPoint"`
	Reachable  bool   `json:"reachable"`
	// Distance is the hop count from the nearest entry point, or -1
	Distance int `json:"distance"`
}

// UnresolvedImport is an import that created no edge
type UnresolvedImport struct {
	From      string       `json:"from"`
	Specifier string       `json:"specifier"`
	Line      int          `json:"line,omitempty"`
	Kind      resolve.Kind `json:"kind"`
}

// Analysis is the usage layer over a ComponentMap. It is total over the
// map's ids and read-only once returned.
type Analysis struct {
	order      []string
	byID       map[string]*ComponentUsage
	edges      []model.Edge
	importers  map[string][]string
	imports    map[string][]string
	entries    []string
	unresolved []UnresolvedImport
	warnings   []archerrors.Warning
}

// Analyzer builds Analyses. The resolver is shared with coverage mapping.
type Analyzer struct {
	resolver *resolve.Resolver
	logger   *slog.Logger
}

// NewAnalyzer creates a usage analyzer
func NewAnalyzer(resolver *resolve.Resolver, logger *slog.Logger) *Analyzer {
	return &Analyzer{resolver: resolver, logger: logger}
}

// Analyze resolves every import in m, builds the edge set and runs a
// multi-source breadth-first search from the entry points. Entry patterns
// are exact ids or doublestar globs.
func (a *Analyzer) Analyze(ctx context.Context, m *model.ComponentMap, entryPatterns []string) (*Analysis, error) {
	an := &Analysis{
		order:     m.IDs(),
		byID:      make(map[string]*ComponentUsage, m.Len()),
		importers: make(map[string][]string),
		imports:   make(map[string][]string),
	}
	for _, id := range an.order {
		an.byID[id] = &ComponentUsage{ID: id, Distance: Unreachable}
	}

	seen := make(map[string]bool)
	for id, c := range m.All() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, imp := range c.Imports {
			res := a.resolver.Resolve(id, imp.Specifier)
			if res.Kind != resolve.Resolved {
				an.unresolved = append(an.unresolved, UnresolvedImport{
					From:      id,
					Specifier: imp.Specifier,
					Line:      imp.Line,
					Kind:      res.Kind,
				})
				if res.Kind == resolve.Missing {
					an.warnings = append(an.warnings, archerrors.NewResolutionWarning(id,
						fmt.Sprintf("import %q on line %d matches no component", imp.Specifier, imp.Line)))
				}
				continue
			}
			if res.ComponentID == id {
				a.logger.Debug("Dropping self import", "component", id, "specifier", imp.Specifier)
				an.warnings = append(an.warnings, archerrors.NewResolutionWarning(id,
					fmt.Sprintf("self import %q dropped", imp.Specifier)))
				continue
			}
			e := model.Edge{From: id, To: res.ComponentID}
			if seen[e.Key()] {
				continue
			}
			seen[e.Key()] = true
			an.edges = append(an.edges, e)
		}
	}

	sort.Slice(an.edges, func(i, j int) bool {
		if an.edges[i].From != an.edges[j].From {
			return an.edges[i].From < an.edges[j].From
		}
		return an.edges[i].To < an.edges[j].To
	})
	for _, e := range an.edges {
		an.imports[e.From] = append(an.imports[e.From], e.To)
		an.importers[e.To] = append(an.importers[e.To], e.From)
		an.byID[e.From].Outbound++
		an.byID[e.To].Inbound++
	}
	for _, list := range an.importers {
		sort.Strings(list)
	}

	an.entries = a.matchEntries(an, entryPatterns)
	an.traverse()

	a.logger.Debug("Usage analysis complete",
		"components", len(an.order),
		"edges", len(an.edges),
		"entries", len(an.entries),
		"unresolved", len(an.unresolved),
	)
	return an, nil
}

func (a *Analyzer) matchEntries(an *Analysis, patterns []string) []string {
	marked := make(map[string]bool)
	for _, pattern := range patterns {
		matched := false
		if _, ok := an.byID[pattern]; ok {
			marked[pattern] = true
			matched = true
		} else {
			for _, id := range an.order {
				if ok, _ := doublestar.Match(pattern, id); ok {
					marked[id] = true
					matched = true
				}
			}
		}
		if !matched {
			a.logger.Warn("Entry point matches no component", "pattern", pattern)
			an.warnings = append(an.warnings, archerrors.NewResolutionWarning("",
				fmt.Sprintf("entry point %q matches no component", pattern)))
		}
	}

	var entries []string
	for _, id := range an.order {
		if marked[id] {
			an.byID[id].EntryPoint = true
			entries = append(entries, id)
		}
	}
	return entries
}

// traverse is a multi-source BFS; all entry points start at distance 0.
func (an *Analysis) traverse() {
	queue := make([]string, 0, len(an.entries))
	for _, id := range an.entries {
		u := an.byID[id]
		u.Reachable = true
		u.Distance = 0
		queue = append(queue, id)
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		next := an.byID[id].Distance + 1
		for _, to := range an.imports[id] {
			u := an.byID[to]
			if u.Reachable {
				continue
			}
			u.Reachable = true
			u.Distance = next
			queue = append(queue, to)
		}
	}
}

// Get returns the usage record for id
func (an *Analysis) Get(id string) (ComponentUsage, bool) {
	u, ok := an.byID[id]
	if !ok {
		return ComponentUsage{}, false
	}
	return *u, true
}

// IsReachable reports whether an entry point reaches id
func (an *Analysis) IsReachable(id string) bool {
	u, ok := an.byID[id]
	return ok && u.Reachable
}

// Len returns the number of components covered
func (an *Analysis) Len() int { return len(an.order) }

// Edges returns the edge set sorted by (from, to)
func (an *Analysis) Edges() []model.Edge {
	return append([]model.Edge(nil), an.edges...)
}

// Importers returns the sorted ids importing id
func (an *Analysis) Importers(id string) []string {
	return append([]string(nil), an.importers[id]...)
}

// Imports returns the sorted ids id imports
func (an *Analysis) Imports(id string) []string {
	return append([]string(nil), an.imports[id]...)
}

// EntryPoints returns the matched entry ids in discovery order
func (an *Analysis) EntryPoints() []string {
	return append([]string(nil), an.entries...)
}

// Orphans returns components nothing imports that are not entry points
func (an *Analysis) Orphans() []string {
	var out []string
	for _, id := range an.order {
		u := an.byID[id]
		if u.Inbound == 0 && !u.EntryPoint {
			out = append(out, id)
		}
	}
	return out
}

// UnreachableIDs returns every component no entry point reaches
func (an *Analysis) UnreachableIDs() []string {
	var out []string
	for _, id := range an.order {
		if !an.byID[id].Reachable {
			out = append(out, id)
		}
	}
	return out
}

// Unresolved returns imports that produced no edge
func (an *Analysis) Unresolved() []UnresolvedImport {
	return append([]UnresolvedImport(nil), an.unresolved...)
}

// Warnings returns resolution warnings raised during analysis
func (an *Analysis) Warnings() []archerrors.Warning {
	return append([]archerrors.Warning(nil), an.warnings...)
}

// CheckInvariants verifies that orphaned components are unreachable and that
// distances agree with the reachability flag. A violation is a bug in the
// analyzer, never a property of the scanned tree.
func (an *Analysis) CheckInvariants() error {
	for _, id := range an.order {
		u := an.byID[id]
		if u.Inbound == 0 && !u.EntryPoint && u.Reachable {
			return archerrors.Newf(archerrors.InvariantViolation,
				"component %s has no importers and is not an entry point but is reachable", id)
		}
		if u.Reachable != (u.Distance >= 0) {
			return archerrors.Newf(archerrors.InvariantViolation,
				"component %s reachable=%v but distance=%d", id, u.Reachable, u.Distance)
		}
		if u.EntryPoint && u.Distance != 0 {
			return archerrors.Newf(archerrors.InvariantViolation,
				"entry point %s has distance %d", id, u.Distance)
		}
	}
	return nil
}

// MarshalJSON encodes the analysis as ordered records plus edges
func (an *Analysis) MarshalJSON() ([]byte, error) {
	records := make([]ComponentUsage, 0, len(an.order))
	for _, id := range an.order {
		records = append(records, *an.byID[id])
	}
	return json.Marshal(struct {
		Components  []ComponentUsage   `json:"components"`
		Edges       []model.Edge       `json:"edges"`
		EntryPoints []string           `json:"entryPoints"`
		Unresolved  []UnresolvedImport `json:"unresolved,omitempty"`
	}{records, an.edges, an.entries, an.unresolved})
}
