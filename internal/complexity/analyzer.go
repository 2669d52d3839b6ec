//go:build cgo

package complexity

import (
	"slices"

	sitter "github.com/smacker/go-tree-sitter"
)

// AnalyzeTree computes complexity over an already parsed tree.
func AnalyzeTree(path string, root *sitter.Node, source []byte, lang Language) *FileComplexity {
	fc := &FileComplexity{
		Path:      path,
		Language:  lang,
		Functions: make([]ComplexityResult, 0),
	}

	for _, fn := range findNodes(root, functionNodeTypes) {
		startLine := int(fn.StartPoint().Row) + 1
		endLine := int(fn.EndPoint().Row) + 1
		fc.Functions = append(fc.Functions, ComplexityResult{
			Name:       functionName(fn, source),
			StartLine:  startLine,
			EndLine:    endLine,
			Lines:      endLine - startLine + 1,
			Cyclomatic: cyclomatic(fn, source),
			Cognitive:  cognitive(fn, source, 0),
		})
	}

	fc.Aggregate()
	return fc
}

func functionName(node *sitter.Node, source []byte) string {
	if name := node.ChildByFieldName("name"); name != nil {
		return NodeText(name, source)
	}
	// const handler = () => {...}
	if parent := node.Parent(); parent != nil && parent.Type() == "variable_declarator" {
		if name := parent.ChildByFieldName("name"); name != nil {
			return NodeText(name, source)
		}
	}
	return "<anonymous>"
}

// cyclomatic counts decision points + 1.
func cyclomatic(node *sitter.Node, source []byte) int {
	complexity := 1
	for _, dn := range findNodes(node, decisionNodeTypes) {
		if dn.Type() == "binary_expression" && !isLogicalOperator(dn, source) {
			continue
		}
		complexity++
	}
	return complexity
}

// cognitive weights each decision point by its nesting depth.
func cognitive(node *sitter.Node, source []byte, nesting int) int {
	total := 0
	nodeType := node.Type()

	if slices.Contains(decisionNodeTypes, nodeType) {
		if nodeType != "binary_expression" || isLogicalOperator(node, source) {
			total += 1 + nesting
		}
	}

	childNesting := nesting
	if slices.Contains(nestingNodeTypes, nodeType) {
		childNesting++
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		if child := node.Child(i); child != nil {
			total += cognitive(child, source, childNesting)
		}
	}
	return total
}

// findNodes returns all nodes of the given types in document order.
func findNodes(root *sitter.Node, types []string) []*sitter.Node {
	var result []*sitter.Node

	var walk func(*sitter.Node)
	walk = func(node *sitter.Node) {
		if node == nil {
			return
		}
		if slices.Contains(types, node.Type()) {
			result = append(result, node)
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			walk(node.Child(i))
		}
	}

	walk(root)
	return result
}

// IsAvailable returns whether complexity analysis is available.
func IsAvailable() bool {
	return true
}
