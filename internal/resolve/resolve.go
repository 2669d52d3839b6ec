// Package resolve maps import specifiers to component ids. It is shared by
// the usage graph and the test coverage mapper so both agree on what an
// import points at.
package resolve

import (
	"fmt"
	"path"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Kind classifies a resolution outcome
type Kind string

const (
	// Resolved: the specifier names a known component
	Resolved Kind = "resolved"
	// External: a package or runtime builtin outside the tree
	External Kind = "external"
	// Asset: a local non-code file (json, images, fonts)
	Asset Kind = "asset"
	// Missing: a local specifier that matches no component
	Missing Kind = "missing"
)

// DefaultExtensions are tried in order when a specifier has none
var DefaultExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs", ".css", ".scss"}

// DefaultCacheSize bounds the memoized resolutions
const DefaultCacheSize = 4096

// Index is the set of component ids resolution may land on
type Index interface {
	Has(id string) bool
}

// Result is the outcome of resolving one specifier
type Result struct {
	Kind        Kind   `json:"kind"`
	ComponentID string `json:"componentId,omitempty"`
	// Candidate is the normalized local path that was looked up
	Candidate string `json:"candidate,omitempty"`
}

type alias struct {
	prefix string
	target string
}

// Resolver resolves specifiers against an Index. Safe for concurrent use.
type Resolver struct {
	index      Index
	aliases    []alias
	extensions []string
	cache      *lru.Cache[string, Result]
}

// Option configures a Resolver
type Option func(*Resolver)

// WithExtensions replaces the extensions tried
func WithExtensions(exts ...string) Option {
	return func(r *Resolver) {
		r.extensions = exts
	}
}

// New creates a resolver. Alias prefixes are matched longest first.
func New(index Index, aliases map[string]string, opts ...Option) (*Resolver, error) {
	r := &Resolver{index: index, extensions: DefaultExtensions}
	for prefix, target := range aliases {
		if prefix == "" {
			return nil, fmt.Errorf("empty alias prefix")
		}
		r.aliases = append(r.aliases, alias{prefix: prefix, target: strings.TrimPrefix(target, "./")})
	}
	sort.Slice(r.aliases, func(i, j int) bool {
		if len(r.aliases[i].prefix) != len(r.aliases[j].prefix) {
			return len(r.aliases[i].prefix) > len(r.aliases[j].prefix)
		}
		return r.aliases[i].prefix < r.aliases[j].prefix
	})
	for _, opt := range opts {
		opt(r)
	}

	cache, err := lru.New[string, Result](DefaultCacheSize)
	if err != nil {
		return nil, err
	}
	r.cache = cache
	return r, nil
}

// Resolve resolves specifier as imported from the component importerID.
func (r *Resolver) Resolve(importerID, specifier string) Result {
	spec := stripQuery(specifier)
	if spec == "" {
		return Result{Kind: External}
	}

	base, local := r.localBase(importerID, spec)
	if !local {
		return Result{Kind: External}
	}
	if base == "" {
		return Result{Kind: Missing, Candidate: spec}
	}

	if res, ok := r.cache.Get(base); ok {
		return res
	}
	res := r.lookup(base)
	r.cache.Add(base, res)
	return res
}

// localBase returns the root-relative path a local specifier points at. The
// empty string with local=true means the specifier escapes the root.
func (r *Resolver) localBase(importerID, spec string) (string, bool) {
	switch {
	case spec == "." || spec == ".." || strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../"):
		return clean(path.Join(path.Dir(importerID), spec)), true
	case strings.HasPrefix(spec, "/"):
		return clean(strings.TrimPrefix(spec, "/")), true
	}

	for _, a := range r.aliases {
		if rest, ok := matchAlias(a.prefix, spec); ok {
			return clean(path.Join(a.target, rest)), true
		}
	}
	return "", false
}

func matchAlias(prefix, spec string) (string, bool) {
	if strings.HasSuffix(prefix, "/") {
		if strings.HasPrefix(spec, prefix) {
			return strings.TrimPrefix(spec, prefix), true
		}
		return "", false
	}
	if spec == prefix {
		return "", true
	}
	if strings.HasPrefix(spec, prefix+"/") {
		return strings.TrimPrefix(spec, prefix+"/"), true
	}
	return "", false
}

func (r *Resolver) lookup(base string) Result {
	for _, candidate := range r.candidates(base) {
		if r.index.Has(candidate) {
			return Result{Kind: Resolved, ComponentID: candidate, Candidate: base}
		}
	}
	if assetExtensions[strings.ToLower(path.Ext(base))] {
		return Result{Kind: Asset, Candidate: base}
	}
	return Result{Kind: Missing, Candidate: base}
}

// candidates lists the ids to try: exact, with each extension, the
// TypeScript source behind a .js specifier, then directory index files.
func (r *Resolver) candidates(base string) []string {
	out := []string{base}
	for _, ext := range r.extensions {
		out = append(out, base+ext)
	}
	switch path.Ext(base) {
	case ".js", ".jsx", ".mjs", ".cjs":
		stem := strings.TrimSuffix(base, path.Ext(base))
		out = append(out, stem+".ts", stem+".tsx")
	}
	for _, ext := range r.extensions {
		out = append(out, base+"/index"+ext)
	}
	return out
}

var assetExtensions = map[string]bool{
	".json": true, ".svg": true, ".png": true, ".jpg": true, ".jpeg": true,
	".gif": true, ".webp": true, ".ico": true, ".avif": true,
	".woff": true, ".woff2": true, ".ttf": true, ".otf": true, ".eot": true,
	".md": true, ".txt": true, ".html": true, ".wasm": true,
	".mp3": true, ".mp4": true, ".webm": true,
}

func clean(p string) string {
	p = path.Clean(p)
	if p == "." || p == ".." || strings.HasPrefix(p, "../") {
		return ""
	}
	return p
}

func stripQuery(spec string) string {
	if i := strings.IndexAny(spec, "?#"); i >= 0 {
		spec = spec[:i]
	}
	return strings.TrimSpace(spec)
}
