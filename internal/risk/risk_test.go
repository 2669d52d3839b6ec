package risk

import (
	"testing"

	"archscan/internal/model"
	"archscan/internal/policy"
)

func TestDefaultTable(t *testing.T) {
	table := DefaultTable()

	tests := []struct {
		name string
		in   Inputs
		want model.RiskLevel
	}{
		{"live backend untested", Inputs{Origin: model.OriginCurrent, Reachable: true, ActiveBackend: true}, model.RiskCritical},
		{"live untested", Inputs{Origin: model.OriginCurrent, Reachable: true}, model.RiskHigh},
		{"live backend tested", Inputs{Reachable: true, ActiveBackend: true, Covered: true}, model.RiskHigh},
		{"live tested", Inputs{Reachable: true, Covered: true}, model.RiskMedium},
		{"dead with backend", Inputs{Origin: model.OriginLegacy, Confidence: 1, ActiveBackend: true}, model.RiskHigh},
		{"dead tested", Inputs{Origin: model.OriginLegacy, Confidence: 1, Covered: true}, model.RiskMedium},
		{"dead confident legacy", Inputs{Origin: model.OriginLegacy, Confidence: 0.5}, model.RiskLow},
		{"dead generated", Inputs{Origin: model.OriginGenerated, Confidence: 1}, model.RiskLow},
		{"dead weak legacy", Inputs{Origin: model.OriginLegacy, Confidence: 0.4}, model.RiskMedium},
		{"dead unknown", Inputs{Origin: model.OriginUnknown}, model.RiskMedium},
		{"dead current", Inputs{Origin: model.OriginCurrent, Confidence: 1}, model.RiskMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := table.Evaluate(tt.in).Level; got != tt.want {
				t.Errorf("Evaluate(%+v) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	table := DefaultTable()
	origins := []model.Origin{model.OriginCurrent, model.OriginLegacy, model.OriginGenerated, model.OriginThirdParty, model.OriginUnknown}

	for _, o := range origins {
		for _, conf := range []float64{0, 0.5, 1} {
			for mask := 0; mask < 8; mask++ {
				in := Inputs{
					Origin:        o,
					Confidence:    conf,
					Reachable:     mask&1 != 0,
					ActiveBackend: mask&2 != 0,
					Covered:       mask&4 != 0,
				}
				first := table.Evaluate(in)
				second := table.Evaluate(in)
				if first != second {
					t.Fatalf("Evaluate(%+v) not deterministic: %v vs %v", in, first, second)
				}
				if first.Level.Rank() == 0 {
					t.Fatalf("Evaluate(%+v) returned invalid level %q", in, first.Level)
				}
			}
		}
	}
}

func TestNewTable_CustomRules(t *testing.T) {
	yes := true
	table, err := NewTable(policy.RiskPolicy{
		Rules: []policy.RiskRule{
			{Name: "vendored", Origins: []string{"thirdParty"}, Level: "low"},
			{Name: "tested", Covered: &yes, Level: "medium"},
		},
		Default: "critical",
	})
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}

	if d := table.Evaluate(Inputs{Origin: model.OriginThirdParty, Covered: true}); d.Level != model.RiskLow || d.Rule != "vendored" {
		t.Errorf("first match should win, got %+v", d)
	}
	if d := table.Evaluate(Inputs{Origin: model.OriginCurrent, Covered: true}); d.Level != model.RiskMedium {
		t.Errorf("got %+v", d)
	}
	if d := table.Evaluate(Inputs{Origin: model.OriginCurrent}); d.Level != model.RiskCritical || d.Rule != "default" {
		t.Errorf("default should apply, got %+v", d)
	}
}

func TestNewTable_Invalid(t *testing.T) {
	if _, err := NewTable(policy.RiskPolicy{Default: "extreme"}); err == nil {
		t.Error("invalid default should fail")
	}
	if _, err := NewTable(policy.RiskPolicy{Rules: []policy.RiskRule{{Level: "low", Origins: []string{"x"}}}, Default: "low"}); err == nil {
		t.Error("invalid origin should fail")
	}
}
