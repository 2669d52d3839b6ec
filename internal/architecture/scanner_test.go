package architecture

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"archscan/internal/config"
	"archscan/internal/crawler"
	archerrors "archscan/internal/errors"
	"archscan/internal/model"
	"archscan/internal/slogutil"
	"archscan/internal/testutil"
)

var scanTime = time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)

func fixtureTree(t *testing.T) *testutil.Tree {
	t.Helper()
	return testutil.WriteTree(t, map[string]string{
		"package.json":               `{"name": "app", "main": "src/main.ts"}`,
		"src/main.ts":                "import { App } from './App';\nApp();\n",
		"src/App.tsx":                "import { api } from '@/lib/api';\nexport function App() { return api(); }\n",
		"src/lib/api.ts":             "export const api = () => supabase.from('users').select();\n",
		"src/legacy/OldWidget.tsx":   "export function OldWidget() { return null; }\n",
		"src/utils/unused.ts":        "export const unused = 1;\n",
		"src/App.test.tsx":           "import { App } from './App';\ntest('app', () => App());\n",
		"node_modules/x/index.js":    "module.exports = 1;\n",
		".archscan/backups/old/a.ts": "export const a = 1;\n",
	})
}

func fixtureConfig(root string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.RootDirectory = root
	cfg.EntryPoints = []string{"src/main.ts"}
	cfg.MaxConcurrency = 2
	return cfg
}

func newTestScanner(t *testing.T, cfg *config.Config, opts ...Option) *Scanner {
	t.Helper()
	opts = append([]Option{
		WithLogger(slogutil.NewDiscardLogger()),
		WithClock(func() time.Time { return scanTime }),
	}, opts...)
	s, err := NewScanner(cfg, opts...)
	if err != nil {
		t.Fatalf("NewScanner() error = %v", err)
	}
	return s
}

func TestScan_EndToEnd(t *testing.T) {
	tree := fixtureTree(t)
	m, err := newTestScanner(t, fixtureConfig(tree.Root)).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if m.Partial {
		t.Fatal("complete scan marked partial")
	}
	if m.ScanID == "" || !m.GeneratedAt.Equal(scanTime) {
		t.Errorf("scan id %q generatedAt %v", m.ScanID, m.GeneratedAt)
	}

	wantIDs := []string{"src/App.tsx", "src/legacy/OldWidget.tsx", "src/lib/api.ts", "src/main.ts", "src/utils/unused.ts"}
	if got := m.Components.IDs(); !reflect.DeepEqual(got, wantIDs) {
		t.Fatalf("components = %v, want %v", got, wantIDs)
	}
	if got := m.Tests.IDs(); !reflect.DeepEqual(got, []string{"src/App.test.tsx"}) {
		t.Errorf("tests = %v", got)
	}

	for _, id := range []string{"src/main.ts", "src/App.tsx", "src/lib/api.ts"} {
		if !m.Usage.IsReachable(id) {
			t.Errorf("%s should be reachable", id)
		}
	}
	if m.Usage.IsReachable("src/legacy/OldWidget.tsx") {
		t.Error("OldWidget should be unreachable")
	}

	if got := m.Origins["src/legacy/OldWidget.tsx"].Origin; got != model.OriginLegacy {
		t.Errorf("OldWidget origin = %s, want legacy", got)
	}
	if !m.Coverage.IsCovered("src/App.tsx") {
		t.Error("App.tsx should be covered by its test")
	}
	if deps := m.Backends["src/lib/api.ts"]; len(deps) != 1 || deps[0].Name != "users" {
		t.Errorf("api.ts backends = %+v", deps)
	}

	wantRisk := map[string]model.RiskLevel{
		"src/lib/api.ts":           model.RiskCritical,
		"src/App.tsx":              model.RiskMedium,
		"src/legacy/OldWidget.tsx": model.RiskLow,
	}
	for id, want := range wantRisk {
		if got := m.Risks[id].Level; got != want {
			t.Errorf("risk(%s) = %s (rule %s), want %s", id, got, m.Risks[id].Rule, want)
		}
	}
	if len(m.Risks) != m.Components.Len() {
		t.Errorf("risk layer has %d entries, want %d", len(m.Risks), m.Components.Len())
	}

	plans := m.Plans()
	if len(plans) != 1 || plans[0].Archival.ComponentID != "src/legacy/OldWidget.tsx" {
		t.Fatalf("plans = %+v", plans)
	}
	if plans[0].Archival.PrerequisiteBackupID != plans[0].Backup.ID {
		t.Error("archival plan must reference its backup")
	}
	if !strings.Contains(filepath.ToSlash(plans[0].Backup.BackupTargetPath), "2026-01-02") {
		t.Errorf("backup target %q should be dated by the scan", plans[0].Backup.BackupTargetPath)
	}

	if m.Roadmap == nil || m.Roadmap.TotalComponents != 1 || m.Roadmap.Phases[0].Count != 1 {
		t.Errorf("roadmap = %+v", m.Roadmap)
	}
	for _, w := range m.Warnings {
		if w.Kind == archerrors.ResolutionWarning {
			t.Errorf("unexpected warning %s", w)
		}
	}
}

func TestScan_Deterministic(t *testing.T) {
	tree := fixtureTree(t)
	cfg := fixtureConfig(tree.Root)

	first, err := newTestScanner(t, cfg).Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	cfg.MaxConcurrency = 8
	second, err := newTestScanner(t, cfg).Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(first.Usage.Edges(), second.Usage.Edges()) {
		t.Error("edges differ between runs")
	}
	if !reflect.DeepEqual(first.Risks, second.Risks) {
		t.Error("risk layer differs between runs")
	}
	if !reflect.DeepEqual(first.Plans(), second.Plans()) {
		t.Error("plans differ between runs")
	}
	if first.ScanID == second.ScanID {
		t.Error("each scan gets a fresh id")
	}
}

func TestScan_CancelledYieldsPartialMap(t *testing.T) {
	tree := fixtureTree(t)
	cfg := fixtureConfig(tree.Root)
	cfg.MaxConcurrency = 1

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := newTestScanner(t, cfg, WithProgress(func(p crawler.Progress) {
		if p.Done == 2 {
			cancel()
		}
	}))
	m, err := s.Scan(ctx)
	if !archerrors.IsCancelled(err) {
		t.Fatalf("Scan() error = %v, want CANCELLED", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error should wrap context.Canceled: %v", err)
	}
	if m == nil || !m.Partial {
		t.Fatalf("expected partial map, got %+v", m)
	}
	if m.Components.Len() != 2 {
		t.Errorf("partial map has %d components, want 2", m.Components.Len())
	}
	if len(m.Origins) != m.Components.Len() {
		t.Errorf("origins %d, components %d", len(m.Origins), m.Components.Len())
	}
	if m.Risks != nil || m.Legacy != nil || m.Roadmap != nil {
		t.Error("partial map must not carry risk, plans or roadmap")
	}

	if _, err := PlanCleanup(m, s.Policy().Roadmap); archerrors.CodeOf(err) != archerrors.PartialResult {
		t.Errorf("PlanCleanup(partial) error = %v, want PARTIAL_RESULT", err)
	}
	if _, err := SelectTests(m, []string{"src/App.tsx"}, nil, 1); archerrors.CodeOf(err) != archerrors.PartialResult {
		t.Errorf("SelectTests(partial) error = %v, want PARTIAL_RESULT", err)
	}
}

func TestScan_SymlinkCycleWarnedOnce(t *testing.T) {
	tree := fixtureTree(t)
	tree.Symlink("src", "src/deep/loop")

	m, err := newTestScanner(t, fixtureConfig(tree.Root)).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	cycles := 0
	for _, w := range m.Warnings {
		if w.Kind == archerrors.IOWarning && strings.Contains(w.Message, "cycle") {
			cycles++
			if w.ComponentID != "src/deep/loop" {
				t.Errorf("cycle warning on %q, want src/deep/loop", w.ComponentID)
			}
		}
	}
	if cycles != 1 {
		t.Errorf("cycle warnings = %d, want 1: %v", cycles, m.Warnings)
	}
	if m.Components.Len() != 5 {
		t.Errorf("components = %v", m.Components.IDs())
	}
}

func TestScan_OversizedFileKeepsImports(t *testing.T) {
	tree := testutil.WriteTree(t, map[string]string{
		"src/main.ts":   "import { big } from './big';\nbig();\n",
		"src/big.ts":    "import { help } from './helper';\n" + strings.Repeat("// filler line\n", 20) + "export const big = help;\n",
		"src/helper.ts": "export const help = () => 1;\n",
	})
	tree.Touch("src/helper.ts", scanTime.AddDate(0, -6, 0))
	cfg := fixtureConfig(tree.Root)
	cfg.MaxFileSizeBytes = 200

	m, err := newTestScanner(t, cfg).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	big, _ := m.Components.Get("src/big.ts")
	if !big.Degraded {
		t.Fatalf("big.ts should be degraded: %+v", big)
	}
	if !m.Usage.IsReachable("src/helper.ts") {
		t.Error("helper.ts is reachable through the oversized big.ts")
	}
	for _, p := range m.Plans() {
		if p.Archival.ComponentID == "src/helper.ts" {
			t.Errorf("live helper.ts planned for archival: %+v", p)
		}
	}
}

func TestScan_RefusesBackupDirAtRoot(t *testing.T) {
	tree := fixtureTree(t)
	cfg := fixtureConfig(tree.Root)
	cfg.BackupTargetDirectory = "."

	_, err := newTestScanner(t, cfg).Scan(context.Background())
	if !archerrors.IsConfigurationError(err) {
		t.Fatalf("Scan() error = %v, want CONFIGURATION_ERROR", err)
	}
}

func TestNewScanner_ConfigurationErrors(t *testing.T) {
	tree := testutil.WriteTree(t, map[string]string{
		"policy.toml": "[legacy]\nunknown_key = 1\n",
		"routes.yaml": "routes:\n  - path: /x\n    bogus: true\n",
	})

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"missing root", func(c *config.Config) { c.RootDirectory = filepath.Join(tree.Root, "nope") }},
		{"no entry points", func(c *config.Config) { c.EntryPoints = nil }},
		{"bad policy", func(c *config.Config) { c.PolicyFile = "policy.toml" }},
		{"missing policy", func(c *config.Config) { c.PolicyFile = "absent.toml" }},
		{"bad routes", func(c *config.Config) { c.RoutingTableFile = "routes.yaml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := fixtureConfig(tree.Root)
			tt.mutate(cfg)
			_, err := NewScanner(cfg)
			if !archerrors.IsConfigurationError(err) {
				t.Errorf("NewScanner() error = %v, want CONFIGURATION_ERROR", err)
			}
		})
	}
}

func TestSelectTests_FromScan(t *testing.T) {
	tree := fixtureTree(t)
	m, err := newTestScanner(t, fixtureConfig(tree.Root)).Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	sel, err := SelectTests(m, []string{"src/lib/api.ts"}, nil, 1)
	if err != nil {
		t.Fatalf("SelectTests() error = %v", err)
	}
	// api.ts has no direct test; App.tsx imports it one hop away.
	if len(sel.Suite.Tests) != 1 || sel.Suite.Tests[0].TestID != "src/App.test.tsx" {
		t.Fatalf("tests = %+v", sel.Suite.Tests)
	}
	if sel.Suite.Tests[0].Hop != 1 {
		t.Errorf("hop = %d, want 1", sel.Suite.Tests[0].Hop)
	}

	sel, err = SelectTests(m, []string{"src/lib/api.ts"}, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(sel.Suite.Tests) != 0 {
		t.Errorf("radius 0 should select nothing, got %+v", sel.Suite.Tests)
	}
}

func TestScan_LayersGolden(t *testing.T) {
	tree := fixtureTree(t)
	m, err := newTestScanner(t, fixtureConfig(tree.Root)).Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	origins := make(map[string]model.Origin, len(m.Origins))
	for id, o := range m.Origins {
		origins[id] = o.Origin
	}
	testutil.CompareGolden(t, "scan_layers", tree.Root, map[string]any{
		"root":        m.Root,
		"edges":       m.Usage.Edges(),
		"entries":     m.Usage.EntryPoints(),
		"unreachable": m.Usage.UnreachableIDs(),
		"orphans":     m.Usage.Orphans(),
		"origins":     origins,
		"risks":       m.RiskLevels(),
	})
}
