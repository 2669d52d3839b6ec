package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"archscan/internal/crawler"
	"archscan/internal/model"
)

const client = `import { supabase } from '@/lib/supabase'

export async function load(id) {
  const { data } = await supabase
    .from('profiles')
    .select('*')
  await supabase.from("orders").insert({ id })
  await supabase.storage.from('avatars').upload(id, file)
  await supabase.functions.invoke('send-email', { body: {} })
  await supabase.rpc('recalc_totals')
  const res = await fetch('/api/reports/daily?x=1')
  await supabase.from('profiles').delete()
  return Array.from(data)
}
`

const catalogTOML = `
version = 1

[[backend]]
name = "orders"
kind = "table"
active = false

[[backend]]
name = "legacy-queue"
kind = "function"
pattern = 'enqueueLegacy\('
active = true
`

func TestScan_BuiltinExtractors(t *testing.T) {
	deps := DefaultCatalog().Scan([]byte(client))

	var got []string
	for _, d := range deps {
		got = append(got, string(d.Kind)+":"+d.Name)
		if !d.Active {
			t.Errorf("%s should default to active", d.Name)
		}
	}
	want := "endpoint:/api/reports/daily,function:recalc_totals,function:send-email,storage:avatars,table:orders,table:profiles"
	if strings.Join(got, ",") != want {
		t.Errorf("Scan = %s\nwant   %s", strings.Join(got, ","), want)
	}

	for _, d := range deps {
		if d.Name == "profiles" && d.Line != 4 {
			t.Errorf("profiles first seen on line %d, want 4", d.Line)
		}
	}
}

func TestScan_CatalogDeclarations(t *testing.T) {
	c, err := ParseCatalog([]byte(catalogTOML))
	if err != nil {
		t.Fatalf("ParseCatalog failed: %v", err)
	}

	deps := c.Scan([]byte(client + "\nenqueueLegacy(job)\n"))
	byName := map[string]BackendDependency{}
	for _, d := range deps {
		byName[d.Name] = d
	}
	if d := byName["orders"]; d.Active || !d.Declared {
		t.Errorf("orders = %+v, want declared inactive", d)
	}
	if d := byName["profiles"]; !d.Active || d.Declared {
		t.Errorf("profiles = %+v, want undeclared active", d)
	}
	if d, ok := byName["legacy-queue"]; !ok || !d.Active || d.Kind != KindFunction {
		t.Errorf("pattern dependency = %+v", d)
	}
	if !HasActive(deps) || HasActive([]BackendDependency{byName["orders"]}) {
		t.Error("HasActive mismatch")
	}
}

func TestParseCatalog_DefaultActive(t *testing.T) {
	c, err := ParseCatalog([]byte("default_active = false\n"))
	if err != nil {
		t.Fatal(err)
	}
	deps := c.Scan([]byte(`db.from('x')`))
	if len(deps) != 1 || deps[0].Active {
		t.Errorf("deps = %+v, want one inactive", deps)
	}
}

func TestParseCatalog_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown kind", "[[backend]]\nname = \"x\"\nkind = \"queue\"\n"},
		{"missing name", "[[backend]]\nkind = \"table\"\n"},
		{"bad pattern", "[[backend]]\nname = \"x\"\nkind = \"table\"\npattern = \"(\"\n"},
		{"unknown field", "[[backend]]\nname = \"x\"\nkind = \"table\"\nowner = \"me\"\n"},
		{"version", "version = 7\n"},
		{"syntax", "[[backend]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseCatalog([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadCatalog(t *testing.T) {
	c, err := LoadCatalog("")
	if err != nil || c == nil {
		t.Fatalf("LoadCatalog(\"\") = %v, %v", c, err)
	}

	path := filepath.Join(t.TempDir(), "backends.toml")
	if err := os.WriteFile(path, []byte(catalogTOML), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCatalog(path); err != nil {
		t.Errorf("LoadCatalog failed: %v", err)
	}
	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestScanAll(t *testing.T) {
	m := model.NewComponentMap(
		model.ComponentInfo{ID: "src/a.ts", Language: model.LangTypeScript},
		model.ComponentInfo{ID: "src/b.ts", Language: model.LangTypeScript},
		model.ComponentInfo{ID: "src/c.ts", Language: model.LangTypeScript},
		model.ComponentInfo{ID: "src/d.css", Language: model.LangCSS},
		model.ComponentInfo{ID: "src/e.ts", Degraded: true},
	)
	content := map[string]string{
		"src/a.ts":  `db.from('users')`,
		"src/b.ts":  `export const b = 1`,
		"src/d.css": `.from('nope')`,
	}
	read := func(c *model.ComponentInfo) ([]byte, error) {
		s, ok := content[c.ID]
		if !ok {
			return nil, errors.New("permission denied")
		}
		return []byte(s), nil
	}

	res, err := DefaultCatalog().ScanAll(context.Background(), m, 2, read)
	if err != nil {
		t.Fatalf("ScanAll failed: %v", err)
	}
	if len(res.Backends) != 1 || len(res.Backends["src/a.ts"]) != 1 {
		t.Errorf("layer = %+v", res.Backends)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].ComponentID != "src/c.ts" {
		t.Errorf("warnings = %+v, want one for src/c.ts", res.Warnings)
	}
	if len(res.Changed) != 0 {
		t.Errorf("changed = %v, want none", res.Changed)
	}
}

func TestScanAll_ChecksumMismatch(t *testing.T) {
	crawled := []byte("export const a = 1")
	m := model.NewComponentMap(
		model.ComponentInfo{ID: "src/a.ts", Language: model.LangTypeScript, Checksum: crawler.Checksum(crawled)},
		model.ComponentInfo{ID: "src/b.ts", Language: model.LangTypeScript, Checksum: crawler.Checksum([]byte("db.from('orders')"))},
	)
	content := map[string]string{
		"src/a.ts": "db.from('users')",
		"src/b.ts": "db.from('orders')",
	}
	read := func(c *model.ComponentInfo) ([]byte, error) {
		return []byte(content[c.ID]), nil
	}

	res, err := DefaultCatalog().ScanAll(context.Background(), m, 2, read)
	if err != nil {
		t.Fatalf("ScanAll failed: %v", err)
	}
	if len(res.Changed) != 1 || res.Changed[0] != "src/a.ts" {
		t.Errorf("changed = %v, want [src/a.ts]", res.Changed)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0].Message, "changed") {
		t.Errorf("warnings = %+v", res.Warnings)
	}
	if len(res.Backends["src/a.ts"]) != 1 || len(res.Backends["src/b.ts"]) != 1 {
		t.Errorf("backends = %+v", res.Backends)
	}
}

const routesYAML = `
routes:
  - path: /dashboard
    component: src/pages/Dashboard.tsx
  - path: /old-reports
    component: src/legacy/Reports.tsx
    live: false
  - path: /admin/*
    component: src/admin/**
`

func TestRoutes(t *testing.T) {
	table, err := ParseRoutes([]byte(routesYAML))
	if err != nil {
		t.Fatalf("ParseRoutes failed: %v", err)
	}
	if table.Len() != 3 {
		t.Errorf("Len = %d", table.Len())
	}

	tests := []struct {
		id   string
		want []RouteUsage
	}{
		{"src/pages/Dashboard.tsx", []RouteUsage{{Route: "/dashboard", Live: true}}},
		{"src/legacy/Reports.tsx", []RouteUsage{{Route: "/old-reports", Live: false}}},
		{"src/admin/users/List.tsx", []RouteUsage{{Route: "/admin/*", Live: true}}},
		{"src/lib/api.ts", nil},
	}
	for _, tt := range tests {
		got := table.UsageFor(tt.id)
		if len(got) != len(tt.want) {
			t.Errorf("UsageFor(%s) = %+v, want %+v", tt.id, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("UsageFor(%s)[%d] = %+v, want %+v", tt.id, i, got[i], tt.want[i])
			}
		}
	}
}

func TestParseRoutes_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing component", "routes:\n  - path: /x\n"},
		{"unknown field", "routes:\n  - path: /x\n    component: a.ts\n    owner: me\n"},
		{"bad glob", "routes:\n  - path: /x\n    component: 'src/[a'\n"},
		{"syntax", "routes: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseRoutes([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}

	empty, err := ParseRoutes(nil)
	if err != nil || empty.Len() != 0 {
		t.Errorf("empty routes = %v, %v", empty, err)
	}
}
