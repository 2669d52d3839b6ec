// Package catalog discovers the backend resources and routes a component
// still depends on. The backend catalog is a TOML file of [[backend]]
// declarations; the routing table is YAML supplied by the host application.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"

	toml "github.com/pelletier/go-toml/v2"
	"golang.org/x/sync/errgroup"

	"archscan/internal/crawler"
	archerrors "archscan/internal/errors"
	"archscan/internal/model"
)

// CatalogVersion is the supported catalog schema version
const CatalogVersion = 1

// DefaultActive applies to backend names the catalog does not declare.
const DefaultActive = true

// BackendKind classifies a backend resource
type BackendKind string

const (
	KindTable    BackendKind = "table"
	KindFunction BackendKind = "function"
	KindEndpoint BackendKind = "endpoint"
	KindStorage  BackendKind = "storage"
)

func (k BackendKind) valid() bool {
	switch k {
	case KindTable, KindFunction, KindEndpoint, KindStorage:
		return true
	}
	return false
}

// BackendDeclaration is one [[backend]] entry
type BackendDeclaration struct {
	// Name is the table, function, endpoint or bucket name
	Name string      `toml:"name"`
	Kind BackendKind `toml:"kind"`

	// Pattern is an optional regular expression matched against component
	// content in addition to the built-in extractors.
	Pattern string `toml:"pattern,omitempty"`

	// Active defaults to default_active when omitted
	Active *bool `toml:"active,omitempty"`
}

// CatalogFile is the root of the backend catalog file
type CatalogFile struct {
	Version       int                  `toml:"version"`
	DefaultActive *bool                `toml:"default_active,omitempty"`
	Backends      []BackendDeclaration `toml:"backend"`
}

// BackendDependency is one backend reference found in a component
type BackendDependency struct {
	Name   string      `json:"name"`
	Kind   BackendKind `json:"kind"`
	Active bool        `json:"active"`
	Line   int         `json:"line"`
	// Declared is true when the catalog lists the name
	Declared bool `json:"declared"`
}

type patternRule struct {
	decl BackendDeclaration
	re   *regexp.Regexp
}

// Catalog resolves backend references to declarations
type Catalog struct {
	defaultActive bool
	byKey         map[string]BackendDeclaration
	patterns      []patternRule
}

// Built-in extractors for the client calls the scanned code base uses.
var (
	fromCallRe   = regexp.MustCompile(`(\w*)\s*\.from\(\s*['"` + "`" + `]([^'"` + "`" + `\s]+)['"` + "`" + `]`)
	invokeCallRe = regexp.MustCompile(`functions\s*\.invoke\(\s*['"` + "`" + `]([^'"` + "`" + `\s]+)['"` + "`" + `]`)
	rpcCallRe    = regexp.MustCompile(`\.rpc\(\s*['"` + "`" + `]([^'"` + "`" + `\s]+)['"` + "`" + `]`)
	fetchCallRe  = regexp.MustCompile(`fetch\(\s*['"` + "`" + `](/api/[^'"` + "`" + `?\s]*)`)
)

// DefaultCatalog returns an empty catalog; every reference is active.
func DefaultCatalog() *Catalog {
	return &Catalog{defaultActive: DefaultActive, byKey: map[string]BackendDeclaration{}}
}

// LoadCatalog parses the catalog at path. An empty path yields the default.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read backend catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates catalog TOML
func ParseCatalog(data []byte) (*Catalog, error) {
	var file CatalogFile
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse backend catalog: %w", err)
	}
	if file.Version != 0 && file.Version != CatalogVersion {
		return nil, fmt.Errorf("unsupported backend catalog version %d", file.Version)
	}

	c := DefaultCatalog()
	if file.DefaultActive != nil {
		c.defaultActive = *file.DefaultActive
	}
	for i, decl := range file.Backends {
		if decl.Name == "" {
			return nil, fmt.Errorf("backend %d: name is required", i)
		}
		if !decl.Kind.valid() {
			return nil, fmt.Errorf("backend %q: unknown kind %q", decl.Name, decl.Kind)
		}
		c.byKey[key(decl.Kind, decl.Name)] = decl
		if decl.Pattern != "" {
			re, err := regexp.Compile(decl.Pattern)
			if err != nil {
				return nil, fmt.Errorf("backend %q: invalid pattern: %w", decl.Name, err)
			}
			c.patterns = append(c.patterns, patternRule{decl: decl, re: re})
		}
	}
	return c, nil
}

func key(kind BackendKind, name string) string {
	return string(kind) + ":" + name
}

func (c *Catalog) dependency(kind BackendKind, name string, line int) BackendDependency {
	dep := BackendDependency{Name: name, Kind: kind, Active: c.defaultActive, Line: line}
	if decl, ok := c.byKey[key(kind, name)]; ok {
		dep.Declared = true
		if decl.Active != nil {
			dep.Active = *decl.Active
		}
	}
	return dep
}

// Scan extracts backend dependencies from component content. The result is
// deduplicated by (kind, name), keeping the first line, and sorted.
func (c *Catalog) Scan(content []byte) []BackendDependency {
	lines := newLineIndex(content)
	found := make(map[string]BackendDependency)
	add := func(kind BackendKind, name string, offset int) {
		k := key(kind, name)
		if _, ok := found[k]; ok {
			return
		}
		found[k] = c.dependency(kind, name, lines.lineAt(offset))
	}

	for _, m := range fromCallRe.FindAllSubmatchIndex(content, -1) {
		receiver := ""
		if m[2] >= 0 {
			receiver = string(content[m[2]:m[3]])
		}
		name := string(content[m[4]:m[5]])
		if receiver == "storage" {
			add(KindStorage, name, m[0])
		} else {
			add(KindTable, name, m[0])
		}
	}
	for _, m := range invokeCallRe.FindAllSubmatchIndex(content, -1) {
		add(KindFunction, string(content[m[2]:m[3]]), m[0])
	}
	for _, m := range rpcCallRe.FindAllSubmatchIndex(content, -1) {
		add(KindFunction, string(content[m[2]:m[3]]), m[0])
	}
	for _, m := range fetchCallRe.FindAllSubmatchIndex(content, -1) {
		add(KindEndpoint, string(content[m[2]:m[3]]), m[0])
	}
	for _, p := range c.patterns {
		if loc := p.re.FindIndex(content); loc != nil {
			add(p.decl.Kind, p.decl.Name, loc[0])
		}
	}

	out := make([]BackendDependency, 0, len(found))
	for _, d := range found {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// HasActive reports whether any dependency is active
func HasActive(deps []BackendDependency) bool {
	for _, d := range deps {
		if d.Active {
			return true
		}
	}
	return false
}

// ReadFunc reads a component's content
type ReadFunc func(c *model.ComponentInfo) ([]byte, error)

// ReadComponent reads the component from its absolute path
func ReadComponent(c *model.ComponentInfo) ([]byte, error) {
	return os.ReadFile(c.Path)
}

// ScanResult is the backend layer of a scan
type ScanResult struct {
	// Backends is keyed by component id and only holds components with at
	// least one dependency
	Backends map[string][]BackendDependency
	// Changed lists, sorted, the components whose content no longer matches
	// the checksum recorded when they were crawled
	Changed  []string
	Warnings []archerrors.Warning
}

// ScanAll scans every non-degraded, non-stylesheet component on a bounded
// pool. Read failures become IO warnings. Content is checked against the
// crawl checksum; a changed component is still scanned, reported in Changed
// and warned about.
func (c *Catalog) ScanAll(ctx context.Context, m *model.ComponentMap, maxConcurrency int, read ReadFunc) (*ScanResult, error) {
	if read == nil {
		read = ReadComponent
	}
	ids := m.IDs()
	deps := make([][]BackendDependency, len(ids))
	warns := make([]*archerrors.Warning, len(ids))
	changed := make([]bool, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(maxConcurrency, 1))
	for i, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			comp, _ := m.Get(id)
			if comp.Degraded || comp.Language == model.LangCSS {
				return nil
			}
			content, err := read(comp)
			if err != nil {
				w := archerrors.NewIOWarning(id, comp.Path, err)
				warns[i] = &w
				return nil
			}
			if comp.Checksum != "" && crawler.Checksum(content) != comp.Checksum {
				changed[i] = true
				w := archerrors.NewIOWarning(id, comp.Path, errors.New("content changed since it was crawled"))
				warns[i] = &w
			}
			deps[i] = c.Scan(content)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &ScanResult{Backends: make(map[string][]BackendDependency)}
	for i, id := range ids {
		if len(deps[i]) > 0 {
			res.Backends[id] = deps[i]
		}
		if changed[i] {
			res.Changed = append(res.Changed, id)
		}
		if warns[i] != nil {
			res.Warnings = append(res.Warnings, *warns[i])
		}
	}
	sort.Strings(res.Changed)
	return res, nil
}

type lineIndex []int

func newLineIndex(content []byte) lineIndex {
	idx := lineIndex{0}
	for i, b := range content {
		if b == '\n' {
			idx = append(idx, i+1)
		}
	}
	return idx
}

func (l lineIndex) lineAt(offset int) int {
	return sort.Search(len(l), func(i int) bool { return l[i] > offset })
}
