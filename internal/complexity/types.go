// Package complexity computes cyclomatic and cognitive complexity of
// JavaScript and TypeScript sources via tree-sitter. Builds without cgo only
// report that analysis is unavailable.
package complexity

// Language represents a supported source language.
type Language string

const (
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangTSX        Language = "tsx"
)

// ComplexityResult contains complexity metrics for a single function.
type ComplexityResult struct {
	Name       string `json:"name"`
	StartLine  int    `json:"startLine"`
	EndLine    int    `json:"endLine"`
	Cyclomatic int    `json:"cyclomatic"`
	Cognitive  int    `json:"cognitive"`
	Lines      int    `json:"lines"`
}

// FileComplexity contains complexity metrics for an entire file.
type FileComplexity struct {
	Path      string             `json:"path"`
	Language  Language           `json:"language"`
	Functions []ComplexityResult `json:"functions"`

	TotalCyclomatic int `json:"totalCyclomatic"`
	TotalCognitive  int `json:"totalCognitive"`
	MaxCyclomatic   int `json:"maxCyclomatic"`
	FunctionCount   int `json:"functionCount"`

	// Error is set if analysis failed
	Error string `json:"error,omitempty"`
}

// Aggregate computes file totals from function results.
func (fc *FileComplexity) Aggregate() {
	fc.FunctionCount = len(fc.Functions)
	fc.TotalCyclomatic = 0
	fc.TotalCognitive = 0
	fc.MaxCyclomatic = 0

	for _, f := range fc.Functions {
		fc.TotalCyclomatic += f.Cyclomatic
		fc.TotalCognitive += f.Cognitive
		if f.Cyclomatic > fc.MaxCyclomatic {
			fc.MaxCyclomatic = f.Cyclomatic
		}
	}
}

// Score is the number effort estimation consumes: decision points beyond the
// base path of each function, so trivial files score 0.
func (fc *FileComplexity) Score() int {
	if fc == nil || fc.Error != "" {
		return 0
	}
	return fc.TotalCyclomatic - fc.FunctionCount
}
