package testselect

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"archscan/internal/coverage"
	archerrors "archscan/internal/errors"
	"archscan/internal/model"
	"archscan/internal/resolve"
	"archscan/internal/slogutil"
	"archscan/internal/usage"
)

func comp(id string, exports []string, specs ...string) model.ComponentInfo {
	c := model.ComponentInfo{ID: id, Language: model.LangTypeScript, Exports: exports}
	for i, s := range specs {
		c.Imports = append(c.Imports, model.Import{Specifier: s, Line: i + 1})
	}
	return c
}

func testFile(id string, imports ...model.Import) model.ComponentInfo {
	return model.ComponentInfo{ID: id, Imports: imports}
}

// graph: main -> C -> X, D -> C (so D is two hops from X), Y stands alone.
func inputs(t *testing.T) Inputs {
	t.Helper()
	sources := model.NewComponentMap(
		comp("src/main.ts", nil, "./C", "./D"),
		comp("src/C.ts", []string{"c"}, "./X"),
		comp("src/D.ts", []string{"d"}, "./C"),
		comp("src/X.ts", []string{"x"}),
		comp("src/Y.ts", []string{"y"}),
	)
	tests := model.NewComponentMap(
		testFile("src/X.test.ts", model.Import{Specifier: "./X", Line: 1, Names: []string{"x"}}),
		testFile("src/C.test.ts", model.Import{Specifier: "./C", Line: 1, Names: []string{"c"}}),
		testFile("src/D.test.ts", model.Import{Specifier: "./D", Line: 1, Names: []string{"d"}}),
		testFile("src/X.broken.test.ts", model.Import{Specifier: "./X", Line: 3, Names: []string{"renamed"}}),
		testFile("src/Y.test.ts", model.Import{Specifier: "./Y", Line: 1, Names: []string{"y"}}),
	)

	r, err := resolve.New(sources, nil)
	if err != nil {
		t.Fatal(err)
	}
	logger := slogutil.NewDiscardLogger()
	an, err := usage.NewAnalyzer(r, logger).Analyze(context.Background(), sources, []string{"src/main.ts"})
	if err != nil {
		t.Fatal(err)
	}
	cov, err := coverage.NewAnalyzer(r, 2, logger).Analyze(context.Background(), sources, tests)
	if err != nil {
		t.Fatal(err)
	}
	return Inputs{
		Components: sources,
		Usage:      an,
		Coverage:   cov,
		Risks: map[string]model.RiskLevel{
			"src/main.ts": model.RiskHigh,
			"src/C.ts":    model.RiskCritical,
			"src/D.ts":    model.RiskMedium,
			"src/X.ts":    model.RiskMedium,
			"src/Y.ts":    model.RiskLow,
		},
	}
}

func testIDs(s *Selection) []string {
	var ids []string
	for _, t := range s.Suite.Tests {
		ids = append(ids, t.TestID)
	}
	return ids
}

// X is covered by T1 (X.test); its importer C is covered by T2 (C.test) at
// hop 1. Radius 1 selects exactly {T1, T2}, riskiest first.
func TestSelect_RadiusOne(t *testing.T) {
	sel, err := Select(inputs(t), []string{"src/X.ts"}, Options{HopRadius: 1})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}

	if got := strings.Join(testIDs(sel), ","); got != "src/C.test.ts,src/X.test.ts" {
		t.Errorf("suite = %s, want C.test (critical, hop 1) then X.test (medium, hop 0)", got)
	}
	if sel.Suite.Tests[0].Hop != 1 || sel.Suite.Tests[1].Hop != 0 {
		t.Errorf("hops = %d,%d", sel.Suite.Tests[0].Hop, sel.Suite.Tests[1].Hop)
	}
	if sel.Suite.Tests[0].Risk != model.RiskCritical {
		t.Errorf("C.test risk = %s", sel.Suite.Tests[0].Risk)
	}

	if len(sel.Suite.ExcludedDueToMismatch) != 1 || sel.Suite.ExcludedDueToMismatch[0].TestID != "src/X.broken.test.ts" {
		t.Errorf("excluded = %+v", sel.Suite.ExcludedDueToMismatch)
	}
	if len(sel.Mismatches) != 1 || sel.Mismatches[0].Name != "renamed" {
		t.Errorf("mismatches = %+v", sel.Mismatches)
	}
	for _, test := range sel.Suite.Tests {
		if test.TestID == "src/X.broken.test.ts" {
			t.Error("mismatched test must only appear among exclusions")
		}
	}

	if len(sel.Plan.Steps) != 2 || sel.Plan.Steps[0].Order != 1 || sel.Plan.Steps[1].TestID != "src/X.test.ts" {
		t.Errorf("plan = %+v", sel.Plan.Steps)
	}
}

func TestSelect_Radius(t *testing.T) {
	in := inputs(t)
	tests := []struct {
		radius int
		want   string
	}{
		{0, "src/X.test.ts"},
		{1, "src/C.test.ts,src/X.test.ts"},
		{2, "src/C.test.ts,src/X.test.ts,src/D.test.ts"},
		{5, "src/C.test.ts,src/X.test.ts,src/D.test.ts"},
	}
	for _, tt := range tests {
		sel, err := Select(in, []string{"src/X.ts"}, Options{HopRadius: tt.radius})
		if err != nil {
			t.Fatal(err)
		}
		if got := strings.Join(testIDs(sel), ","); got != tt.want {
			t.Errorf("radius %d: suite = %s, want %s", tt.radius, got, tt.want)
		}
	}

	sel, err := Select(in, []string{"src/X.ts"}, Options{HopRadius: -1})
	if err != nil {
		t.Fatal(err)
	}
	if sel.Suite.HopRadius != DefaultHopRadius {
		t.Errorf("negative radius should use default, got %d", sel.Suite.HopRadius)
	}
}

func TestSelect_FilterAndUnknownTargets(t *testing.T) {
	filter, err := GlobFilter("src/Y*")
	if err != nil {
		t.Fatal(err)
	}
	sel, err := Select(inputs(t), []string{"src/X.ts", "src/Y.ts", "src/nope.ts", "src/Y.ts"}, Options{HopRadius: 1, Filter: filter})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(sel.Suite.Targets, ",") != "src/Y.ts" {
		t.Errorf("targets = %v", sel.Suite.Targets)
	}
	if strings.Join(sel.Suite.FilteredOut, ",") != "src/X.ts" {
		t.Errorf("filtered out = %v", sel.Suite.FilteredOut)
	}
	if strings.Join(sel.Suite.UnknownTargets, ",") != "src/nope.ts" {
		t.Errorf("unknown = %v", sel.Suite.UnknownTargets)
	}
	if strings.Join(testIDs(sel), ",") != "src/Y.test.ts" {
		t.Errorf("suite = %v", testIDs(sel))
	}
}

func TestSelect_Deterministic(t *testing.T) {
	in := inputs(t)
	targets := []string{"src/X.ts", "src/D.ts", "src/Y.ts"}

	first, err := Select(in, targets, Options{HopRadius: 2})
	if err != nil {
		t.Fatal(err)
	}
	want, _ := json.Marshal(first)
	for range 10 {
		again, err := Select(in, targets, Options{HopRadius: 2})
		if err != nil {
			t.Fatal(err)
		}
		if got, _ := json.Marshal(again); string(got) != string(want) {
			t.Fatalf("selection changed between runs:\n%s\n%s", want, got)
		}
	}
}

func TestSelect_RefusesPartialMap(t *testing.T) {
	in := inputs(t)
	in.Partial = true
	_, err := Select(in, []string{"src/X.ts"}, Options{})
	if archerrors.CodeOf(err) != archerrors.PartialResult {
		t.Errorf("err = %v, want PARTIAL_RESULT", err)
	}
}

func TestGlobFilter(t *testing.T) {
	f, err := GlobFilter()
	if err != nil || f != nil {
		t.Errorf("GlobFilter() = %v, %v; want nil filter", f, err)
	}
	if _, err := GlobFilter("src/[x"); err == nil {
		t.Error("expected invalid pattern error")
	}
	f, _ = GlobFilter("src/**/*.tsx", "lib/*")
	if !f("src/a/B.tsx") || !f("lib/x.ts") || f("src/a.ts") {
		t.Error("GlobFilter matched wrongly")
	}
}
