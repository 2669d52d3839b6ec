//go:build cgo

package surface

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"archscan/internal/complexity"
	"archscan/internal/model"
)

type astSurface struct {
	imports    []model.Import
	exports    []string
	complexity int
	cognitive  int
}

// parseAST walks the top-level statements of src. Sources with syntax errors
// are left to the regex pass.
func parseAST(ctx context.Context, lang model.Language, src []byte) (*astSurface, bool) {
	tsLang, ok := ASTLanguage(lang)
	if !ok {
		return nil, false
	}
	root, err := complexity.NewParser().Parse(ctx, src, tsLang)
	if err != nil || root == nil || root.HasError() {
		return nil, false
	}

	out := &astSurface{}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := root.NamedChild(i)
		switch node.Type() {
		case "import_statement":
			out.imports = append(out.imports, importFromNode(node, src))
		case "export_statement":
			out.collectExport(node, src)
		}
	}
	fc := complexity.AnalyzeTree("", root, src, tsLang)
	out.complexity = fc.Score()
	out.cognitive = fc.TotalCognitive
	return out, true
}

func importFromNode(node *sitter.Node, src []byte) model.Import {
	imp := model.Import{
		Specifier: stringLiteral(node.ChildByFieldName("source"), src),
		Line:      int(node.StartPoint().Row) + 1,
		TypeOnly:  hasToken(node, "type"),
	}

	clause := childOfType(node, "import_clause")
	if clause == nil {
		imp.SideEffect = true
		return imp
	}
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		part := clause.NamedChild(i)
		switch part.Type() {
		case "identifier":
			imp.Names = append(imp.Names, model.ExportDefault)
		case "named_imports":
			for j := 0; j < int(part.NamedChildCount()); j++ {
				spec := part.NamedChild(j)
				if spec.Type() != "import_specifier" {
					continue
				}
				imp.Names = append(imp.Names, complexity.NodeText(spec.ChildByFieldName("name"), src))
			}
		}
	}
	return imp
}

func (s *astSurface) collectExport(node *sitter.Node, src []byte) {
	if source := node.ChildByFieldName("source"); source != nil {
		imp := model.Import{
			Specifier: stringLiteral(source, src),
			Line:      int(node.StartPoint().Row) + 1,
			TypeOnly:  hasToken(node, "type"),
		}
		if clause := childOfType(node, "export_clause"); clause != nil {
			imported, exported := exportSpecifiers(clause, src)
			imp.Names = imported
			s.exports = append(s.exports, exported...)
		} else if ns := childOfType(node, "namespace_export"); ns != nil {
			if id := ns.NamedChild(0); id != nil {
				s.exports = append(s.exports, complexity.NodeText(id, src))
			}
		} else {
			s.exports = append(s.exports, model.ExportAll)
		}
		s.imports = append(s.imports, imp)
		return
	}

	if hasToken(node, "default") {
		s.exports = append(s.exports, model.ExportDefault)
		return
	}

	if clause := childOfType(node, "export_clause"); clause != nil {
		_, exported := exportSpecifiers(clause, src)
		s.exports = append(s.exports, exported...)
		return
	}

	decl := node.ChildByFieldName("declaration")
	if decl != nil && decl.Type() == "ambient_declaration" && decl.NamedChildCount() > 0 {
		decl = decl.NamedChild(0)
	}
	s.exports = append(s.exports, declaredNames(decl, src)...)
}

func declaredNames(decl *sitter.Node, src []byte) []string {
	if decl == nil {
		return nil
	}
	switch decl.Type() {
	case "lexical_declaration", "variable_declaration":
		var names []string
		for i := 0; i < int(decl.NamedChildCount()); i++ {
			d := decl.NamedChild(i)
			if d.Type() != "variable_declarator" {
				continue
			}
			names = append(names, boundNames(d.ChildByFieldName("name"), src)...)
		}
		return names
	default:
		if name := decl.ChildByFieldName("name"); name != nil {
			return []string{complexity.NodeText(name, src)}
		}
	}
	return nil
}

// boundNames returns the identifiers a binding target declares, walking
// object and array destructuring patterns.
func boundNames(node *sitter.Node, src []byte) []string {
	if node == nil {
		return nil
	}
	switch node.Type() {
	case "identifier", "shorthand_property_identifier_pattern":
		return []string{complexity.NodeText(node, src)}
	case "pair_pattern":
		return boundNames(node.ChildByFieldName("value"), src)
	case "assignment_pattern", "object_assignment_pattern":
		return boundNames(node.ChildByFieldName("left"), src)
	case "object_pattern", "array_pattern", "rest_pattern":
		var names []string
		for i := 0; i < int(node.NamedChildCount()); i++ {
			names = append(names, boundNames(node.NamedChild(i), src)...)
		}
		return names
	}
	return nil
}

func exportSpecifiers(clause *sitter.Node, src []byte) (imported, exported []string) {
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		spec := clause.NamedChild(i)
		if spec.Type() != "export_specifier" {
			continue
		}
		name := complexity.NodeText(spec.ChildByFieldName("name"), src)
		imported = append(imported, name)
		if alias := spec.ChildByFieldName("alias"); alias != nil {
			exported = append(exported, complexity.NodeText(alias, src))
		} else {
			exported = append(exported, name)
		}
	}
	return imported, exported
}

func childOfType(node *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if c := node.NamedChild(i); c.Type() == typ {
			return c
		}
	}
	return nil
}

// hasToken reports whether node has an anonymous child token of the given text.
func hasToken(node *sitter.Node, token string) bool {
	for i := 0; i < int(node.ChildCount()); i++ {
		c := node.Child(i)
		if c != nil && !c.IsNamed() && c.Type() == token {
			return true
		}
	}
	return false
}

func stringLiteral(node *sitter.Node, src []byte) string {
	return strings.Trim(complexity.NodeText(node, src), "'\"`")
}
