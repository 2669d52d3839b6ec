// Package surface extracts the import/export surface and header markers of a
// single source file. Extraction is regex based and always available; builds
// with cgo refine static imports and exports from a tree-sitter AST and add a
// complexity score.
package surface

import (
	"context"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"archscan/internal/complexity"
	"archscan/internal/model"
)

// HeaderLines is how many leading lines are searched for markers.
const HeaderLines = 30

// Surface is what one file declares
type Surface struct {
	Imports    []model.Import
	Exports    []string
	Markers    []string
	Complexity int
	Cognitive  int
	// Parsed is true when the AST refinement ran
	Parsed bool
}

// Extractor extracts surfaces. It holds no per-file state and is safe for
// concurrent use.
type Extractor struct {
	logger *slog.Logger
	useAST bool
}

// NewExtractor creates an extractor. AST refinement is enabled when the build
// supports it.
func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{
		logger: logger,
		useAST: complexity.IsAvailable(),
	}
}

// DisableAST forces regex-only extraction.
func (e *Extractor) DisableAST() {
	e.useAST = false
}

// Extract returns the surface of src. id is the component id, used for the
// language and for log context only.
func (e *Extractor) Extract(ctx context.Context, id string, src []byte) Surface {
	lang := LanguageFor(id)
	s, script := scanSurface(lang, src)
	if !script {
		return s
	}

	if e.useAST {
		if refined, ok := parseAST(ctx, lang, src); ok {
			s.Imports = mergeImports(refined.imports, s.Imports)
			s.Exports = refined.exports
			s.Complexity = refined.complexity
			s.Cognitive = refined.cognitive
			s.Parsed = true
		} else if e.logger != nil {
			e.logger.Debug("AST refinement unavailable, using regex surface", "component", id)
		}
	}

	s.Exports = dedupeSorted(s.Exports)
	return s
}

// ExtractShallow returns the regex surface of src and never parses it. It is
// used for files too large to parse.
func (e *Extractor) ExtractShallow(id string, src []byte) Surface {
	s, script := scanSurface(LanguageFor(id), src)
	if script {
		s.Exports = dedupeSorted(s.Exports)
	}
	return s
}

// scanSurface runs the regex pass. script is false for stylesheets and
// unknown languages, whose surface is complete after this pass.
func scanSurface(lang model.Language, src []byte) (s Surface, script bool) {
	text := string(src)
	s.Markers = scanMarkers(text)

	switch lang {
	case model.LangCSS:
		s.Imports = scanCSSImports(text)
		return s, false
	case model.LangUnknown:
		return s, false
	}
	s.Imports, s.Exports = scanScript(text)
	return s, true
}

// LanguageFor maps a file name to a language.
func LanguageFor(name string) model.Language {
	switch strings.ToLower(path.Ext(name)) {
	case ".ts", ".mts", ".cts":
		return model.LangTypeScript
	case ".tsx":
		return model.LangTSX
	case ".js", ".jsx", ".mjs", ".cjs":
		return model.LangJavaScript
	case ".css", ".scss", ".sass", ".less":
		return model.LangCSS
	default:
		return model.LangUnknown
	}
}

// InferKind classifies a component from its id and language.
func InferKind(id string, lang model.Language) model.ComponentKind {
	base := path.Base(id)
	stem := strings.TrimSuffix(base, path.Ext(base))
	dir := "/" + path.Dir(id) + "/"

	switch {
	case lang == model.LangCSS:
		return model.KindStyle
	case strings.Contains(stem, ".config") || strings.HasPrefix(base, ".") || strings.Contains(dir, "/config/"):
		return model.KindConfig
	case len(stem) > 3 && strings.HasPrefix(stem, "use") && unicode.IsUpper(rune(stem[3])):
		return model.KindHook
	case (lang == model.LangTSX || strings.HasSuffix(base, ".jsx")) && stem != "" && unicode.IsUpper(rune(stem[0])):
		return model.KindComponent
	case strings.Contains(dir, "/lib/") || strings.Contains(dir, "/utils/") ||
		strings.Contains(dir, "/helpers/") || strings.Contains(dir, "/functions/"):
		return model.KindFunction
	default:
		return model.KindModule
	}
}

// ASTLanguage maps a component language to the parser language.
func ASTLanguage(lang model.Language) (complexity.Language, bool) {
	switch lang {
	case model.LangTypeScript:
		return complexity.LangTypeScript, true
	case model.LangTSX:
		return complexity.LangTSX, true
	case model.LangJavaScript:
		return complexity.LangJavaScript, true
	}
	return "", false
}

var (
	staticImportRe  = regexp.MustCompile(`(?m)^[ \t]*import[ \t]+(type[ \t]+)?([^'";]*?)\s*from\s*['"]([^'"]+)['"]`)
	sideEffectRe    = regexp.MustCompile(`(?m)^[ \t]*import[ \t]*['"]([^'"]+)['"]`)
	dynamicImportRe = regexp.MustCompile(`\bimport\(\s*['"]([^'"]+)['"]\s*\)`)
	requireRe       = regexp.MustCompile(`\brequire\(\s*['"]([^'"]+)['"]\s*\)`)
	reExportRe      = regexp.MustCompile(`(?m)^[ \t]*export[ \t]+(type[ \t]+)?(\*(?:\s+as\s+[\w$]+)?|\{[^}]*\})\s*from\s*['"]([^'"]+)['"]`)
	exportDeclRe    = regexp.MustCompile(`(?m)^[ \t]*export[ \t]+(?:declare[ \t]+)?(?:async[ \t]+)?(?:abstract[ \t]+)?(?:function\*?|class|interface|type|(?:const[ \t]+)?enum)[ \t]+([A-Za-z_$][\w$]*)`)
	exportVarRe     = regexp.MustCompile(`(?m)^[ \t]*export[ \t]+(?:declare[ \t]+)?(?:const|let|var)[ \t]+`)
	identRe         = regexp.MustCompile(`^[A-Za-z_$][\w$]*$`)
	exportDefaultRe = regexp.MustCompile(`(?m)^[ \t]*export[ \t]+default\b`)
	exportListRe    = regexp.MustCompile(`(?m)^[ \t]*export[ \t]+(?:type[ \t]+)?\{([^}]*)\}\s*;?[ \t]*$`)
	cssImportRe     = regexp.MustCompile(`@import\s+(?:url\(\s*)?['"]([^'"]+)['"]`)
	originMarkerRe  = regexp.MustCompile(`archscan:origin=([A-Za-z-]+)`)
)

func scanScript(text string) ([]model.Import, []string) {
	var imports []model.Import
	var exports []string
	lines := newLineIndex(text)

	for _, m := range staticImportRe.FindAllStringSubmatchIndex(text, -1) {
		clause := text[m[4]:m[5]]
		imports = append(imports, model.Import{
			Specifier: text[m[6]:m[7]],
			Line:      lines.lineAt(m[0]),
			Names:     importNames(clause),
			TypeOnly:  m[2] >= 0,
		})
	}
	for _, m := range sideEffectRe.FindAllStringSubmatchIndex(text, -1) {
		imports = append(imports, model.Import{
			Specifier:  text[m[2]:m[3]],
			Line:       lines.lineAt(m[0]),
			SideEffect: true,
		})
	}
	for _, re := range []*regexp.Regexp{dynamicImportRe, requireRe} {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			imports = append(imports, model.Import{
				Specifier: text[m[2]:m[3]],
				Line:      lines.lineAt(m[0]),
			})
		}
	}
	for _, m := range reExportRe.FindAllStringSubmatchIndex(text, -1) {
		clause := text[m[4]:m[5]]
		imp := model.Import{
			Specifier: text[m[6]:m[7]],
			Line:      lines.lineAt(m[0]),
			TypeOnly:  m[2] >= 0,
		}
		if strings.HasPrefix(clause, "*") {
			if _, ns, ok := strings.Cut(clause, " as "); ok {
				exports = append(exports, strings.TrimSpace(ns))
			} else {
				exports = append(exports, model.ExportAll)
			}
		} else {
			imported, exported := specifierList(strings.Trim(clause, "{}"))
			imp.Names = imported
			exports = append(exports, exported...)
		}
		imports = append(imports, imp)
	}

	for _, m := range exportDeclRe.FindAllStringSubmatch(text, -1) {
		exports = append(exports, m[1])
	}
	for _, m := range exportVarRe.FindAllStringIndex(text, -1) {
		exports = append(exports, declaratorNames(text[m[1]:])...)
	}
	if exportDefaultRe.MatchString(text) {
		exports = append(exports, model.ExportDefault)
	}
	for _, m := range exportListRe.FindAllStringSubmatch(text, -1) {
		_, exported := specifierList(m[1])
		exports = append(exports, exported...)
	}

	sort.SliceStable(imports, func(i, j int) bool { return imports[i].Line < imports[j].Line })
	return imports, exports
}

// declaratorNames returns the names bound by the declarator list at the start
// of text, up to the end of the statement. Destructuring patterns bind every
// name they contain: `a = 1, { b, c: d } = o` -> [a b d].
func declaratorNames(text string) []string {
	var names []string
	for _, decl := range splitTopLevel(statementText(text), ',') {
		target, _, _ := cutTopLevel(decl, '=')
		names = append(names, patternNames(target)...)
	}
	return names
}

// statementText cuts text at the first top-level semicolon, or at a
// top-level newline that does not follow a comma.
func statementText(text string) string {
	depth := 0
	var quote byte
	last := byte(0)
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if quote != 0 {
			if ch == '\\' {
				i++
			} else if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '\'', '"', '`':
			quote = ch
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ';':
			if depth == 0 {
				return text[:i]
			}
		case '\n':
			if depth == 0 && last != ',' && last != '=' {
				return text[:i]
			}
		}
		if ch != ' ' && ch != '\t' && ch != '\r' && ch != '\n' {
			last = ch
		}
	}
	return text
}

// patternNames returns the identifiers a binding target declares.
func patternNames(target string) []string {
	target = strings.TrimSpace(target)
	target = strings.TrimSpace(strings.TrimPrefix(target, "..."))
	if name, _, ok := cutTopLevel(target, ':'); ok && !strings.HasPrefix(target, "{") && !strings.HasPrefix(target, "[") {
		// `x: number` type annotation on a plain identifier
		target = strings.TrimSpace(name)
	}
	if len(target) < 2 || (target[0] != '{' && target[0] != '[') {
		if identRe.MatchString(target) {
			return []string{target}
		}
		return nil
	}

	closing := byte('}')
	if target[0] == '[' {
		closing = ']'
	}
	end := strings.LastIndexByte(target, closing)
	if end < 1 {
		return nil
	}
	var names []string
	for _, elem := range splitTopLevel(target[1:end], ',') {
		elem, _, _ = cutTopLevel(elem, '=')
		if _, value, ok := cutTopLevel(elem, ':'); ok && target[0] == '{' {
			elem = value
		}
		names = append(names, patternNames(elem)...)
	}
	return names
}

// splitTopLevel splits s at sep outside brackets and string literals.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	for {
		before, after, ok := cutTopLevel(s, sep)
		parts = append(parts, before)
		if !ok {
			return parts
		}
		s = after
	}
}

// cutTopLevel is strings.Cut for the first sep outside brackets and string
// literals. `=>` is never a cut point for '='.
func cutTopLevel(s string, sep byte) (before, after string, found bool) {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if quote != 0 {
			if ch == '\\' {
				i++
			} else if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '\'', '"', '`':
			quote = ch
		case '(', '[', '{', '<':
			depth++
		case ')', ']', '}', '>':
			if ch == '>' && i > 0 && s[i-1] == '=' {
				continue
			}
			depth--
		default:
			if ch == sep && depth == 0 {
				if sep == '=' && i+1 < len(s) && (s[i+1] == '=' || s[i+1] == '>') {
					continue
				}
				return s[:i], s[i+1:], true
			}
		}
	}
	return s, "", false
}

// importNames returns the names a static import clause pulls from its target.
// `React, { useState as s }` -> [default useState]; `* as ns` -> nil.
func importNames(clause string) []string {
	clause = strings.TrimSpace(clause)
	var names []string

	head := clause
	var braces string
	if open := strings.Index(clause, "{"); open >= 0 {
		head = clause[:open]
		braces = clause[open:]
		if end := strings.Index(braces, "}"); end >= 0 {
			braces = braces[1:end]
		}
	}

	head = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(head), ","))
	for _, part := range strings.Split(head, ",") {
		part = strings.TrimSpace(part)
		if part == "" || strings.HasPrefix(part, "*") {
			continue
		}
		names = append(names, model.ExportDefault)
	}

	if braces != "" {
		imported, _ := specifierList(braces)
		names = append(names, imported...)
	}
	return names
}

// specifierList parses `a, b as c, type d` into source names [a b d] and
// local/exported names [a c d].
func specifierList(list string) (source []string, local []string) {
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		part = strings.TrimPrefix(part, "type ")
		if part == "" {
			continue
		}
		name, alias, ok := strings.Cut(part, " as ")
		name = strings.TrimSpace(name)
		source = append(source, name)
		if ok {
			local = append(local, strings.TrimSpace(alias))
		} else {
			local = append(local, name)
		}
	}
	return source, local
}

func scanCSSImports(text string) []model.Import {
	var imports []model.Import
	lines := newLineIndex(text)
	for _, m := range cssImportRe.FindAllStringSubmatchIndex(text, -1) {
		imports = append(imports, model.Import{
			Specifier:  text[m[2]:m[3]],
			Line:       lines.lineAt(m[0]),
			SideEffect: true,
		})
	}
	return imports
}

// scanMarkers looks for origin markers in the file header.
func scanMarkers(text string) []string {
	header := text
	for i, n := 0, 0; i < len(text); i++ {
		if text[i] == '\n' {
			n++
			if n == HeaderLines {
				header = text[:i]
				break
			}
		}
	}

	var markers []string
	if m := originMarkerRe.FindStringSubmatch(header); m != nil {
		markers = append(markers, "archscan:origin="+m[1])
	}
	if strings.Contains(header, "@deprecated") {
		markers = append(markers, "@deprecated")
	}
	if strings.Contains(header, "@legacy") {
		markers = append(markers, "@legacy")
	}
	lower := strings.ToLower(header)
	if strings.Contains(lower, "@generated") || strings.Contains(lower, "do not edit") ||
		strings.Contains(lower, "auto-generated") || strings.Contains(lower, "autogenerated") {
		markers = append(markers, "@generated")
	}
	return markers
}

// mergeImports keeps AST static imports and adds regex-only findings
// (dynamic imports, require calls) the AST pass does not collect.
func mergeImports(ast, regex []model.Import) []model.Import {
	seen := make(map[string]bool, len(ast))
	for _, imp := range ast {
		seen[importKey(imp)] = true
	}
	out := append([]model.Import(nil), ast...)
	for _, imp := range regex {
		if !seen[importKey(imp)] {
			out = append(out, imp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Line < out[j].Line })
	return out
}

func importKey(imp model.Import) string {
	return imp.Specifier + "\x00" + strconv.Itoa(imp.Line)
}

func dedupeSorted(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

type lineIndex []int

func newLineIndex(text string) lineIndex {
	idx := lineIndex{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			idx = append(idx, i+1)
		}
	}
	return idx
}

// lineAt returns the 1-based line containing offset.
func (l lineIndex) lineAt(offset int) int {
	return sort.Search(len(l), func(i int) bool { return l[i] > offset })
}
