// Package model holds the closed, tagged types shared by every stage of an
// architecture scan: components, origins, edges and risk levels.
package model

import "time"

// ComponentKind classifies a discovered source unit
type ComponentKind string

const (
	KindModule    ComponentKind = "module"
	KindComponent ComponentKind = "component"
	KindHook      ComponentKind = "hook"
	KindFunction  ComponentKind = "function"
	KindStyle     ComponentKind = "style"
	KindConfig    ComponentKind = "config"
)

// Language is the source language of a component
type Language string

const (
	LangTypeScript Language = "typescript"
	LangTSX        Language = "tsx"
	LangJavaScript Language = "javascript"
	LangCSS        Language = "css"
	LangUnknown    Language = "unknown"
)

// ExportAll is recorded in Exports for `export * from '...'` re-exports.
const ExportAll = "*"

// ExportDefault is the export name of a default export.
const ExportDefault = "default"

// Import is one declared import of a component, unresolved.
type Import struct {
	// Specifier is the module specifier as written ("./Button", "@/lib/api", "react")
	Specifier string `json:"specifier"`

	// Line is the 1-based source line of the import statement
	Line int `json:"line"`

	// Names are the imported binding names as exported by the target.
	// A default import is recorded as "default". Namespace imports record nothing.
	Names []string `json:"names,omitempty"`

	// SideEffect is true for `import './x'` with no bindings
	SideEffect bool `json:"sideEffect,omitempty"`

	// TypeOnly is true for `import type { X } from ...`
	TypeOnly bool `json:"typeOnly,omitempty"`
}

// ComponentInfo is one discovered source unit. Created by the crawler and
// never modified afterwards; later stages store their results in layers keyed
// by ID.
type ComponentInfo struct {
	// ID is the normalized, slash-separated, root-relative path
	ID string `json:"id"`

	// Path is the absolute OS path
	Path string `json:"-"`

	Kind     ComponentKind `json:"kind"`
	Language Language      `json:"language"`

	SizeBytes int64 `json:"sizeBytes"`
	Lines     int   `json:"lines"`

	Exports []string `json:"exports,omitempty"`
	Imports []Import `json:"imports,omitempty"`

	// Markers are origin/ownership markers found in the file header
	// (e.g. "@deprecated", "archscan:origin=legacy", "@generated").
	Markers []string `json:"markers,omitempty"`

	// Complexity is the summed cyclomatic complexity when an AST parser was
	// available, otherwise 0.
	Complexity int `json:"complexity,omitempty"`
	// Cognitive is the nesting-weighted complexity from the same parse.
	Cognitive  int `json:"cognitive,omitempty"`

	// Checksum is the hex BLAKE2b-256 digest of the content
	Checksum string    `json:"checksum,omitempty"`
	ModTime  time.Time `json:"modTime"`

	// Degraded is set when the file could not be read or parsed in full;
	// ErrorMarker says why.
	Degraded    bool   `json:"degraded,omitempty"`
	ErrorMarker string `json:"errorMarker,omitempty"`
}

// ExportsName reports whether the component exposes the named export,
// treating a star re-export as exposing everything.
func (c *ComponentInfo) ExportsName(name string) bool {
	for _, e := range c.Exports {
		if e == name || e == ExportAll {
			return true
		}
	}
	return false
}

// HasMarker reports whether the header carried the given marker
func (c *ComponentInfo) HasMarker(marker string) bool {
	for _, m := range c.Markers {
		if m == marker {
			return true
		}
	}
	return false
}

// Edge is a directed dependency from an importer to the imported component.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Key returns the set key used for edge deduplication
func (e Edge) Key() string {
	return e.From + "\x00" + e.To
}
