package architecture

import (
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"archscan/internal/model"
)

// ManifestEntryPoints returns the components named by the root
// package.json "main", "module", "browser" and "bin" fields that exist in m.
func ManifestEntryPoints(root string, m *model.ComponentMap) []string {
	data, err := os.ReadFile(filepath.Join(root, "package.json"))
	if err != nil {
		return nil
	}

	var pkg struct {
		Main    string      `json:"main"`
		Module  string      `json:"module"`
		Browser interface{} `json:"browser"`
		Bin     interface{} `json:"bin"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil
	}

	candidates := []string{pkg.Main, pkg.Module}
	if b, ok := pkg.Browser.(string); ok {
		candidates = append(candidates, b)
	}
	switch bin := pkg.Bin.(type) {
	case string:
		candidates = append(candidates, bin)
	case map[string]interface{}:
		for _, v := range bin {
			if s, ok := v.(string); ok {
				candidates = append(candidates, s)
			}
		}
	}

	seen := make(map[string]bool)
	var out []string
	for _, c := range candidates {
		if c == "" {
			continue
		}
		id := path.Clean(strings.TrimPrefix(filepath.ToSlash(c), "./"))
		if m.Has(id) && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
