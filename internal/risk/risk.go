// Package risk derives a component's RiskLevel from a fixed decision table.
// The level is never assigned by hand; Evaluate is the only source.
package risk

import (
	"slices"

	"archscan/internal/model"
	"archscan/internal/policy"
)

// Inputs are everything a risk decision may depend on
type Inputs struct {
	Origin        model.Origin
	Confidence    float64
	Reachable     bool
	ActiveBackend bool
	Covered       bool
}

// Decision is a level together with the rule that produced it
type Decision struct {
	Level model.RiskLevel `json:"level"`
	Rule  string          `json:"rule"`
}

// Table is an ordered, validated decision table
type Table struct {
	rules []rule
	def   model.RiskLevel
}

type rule struct {
	name          string
	reachable     *bool
	activeBackend *bool
	covered       *bool
	origins       []model.Origin
	minConfidence float64
	level         model.RiskLevel
}

// NewTable compiles the risk section of a validated policy
func NewTable(p policy.RiskPolicy) (*Table, error) {
	t := &Table{}
	for _, r := range p.Rules {
		level, err := model.ParseRiskLevel(r.Level)
		if err != nil {
			return nil, err
		}
		compiled := rule{
			name:          r.Name,
			reachable:     r.Reachable,
			activeBackend: r.ActiveBackend,
			covered:       r.Covered,
			minConfidence: r.MinConfidence,
			level:         level,
		}
		for _, o := range r.Origins {
			origin, err := model.ParseOrigin(o)
			if err != nil {
				return nil, err
			}
			compiled.origins = append(compiled.origins, origin)
		}
		t.rules = append(t.rules, compiled)
	}

	def, err := model.ParseRiskLevel(p.Default)
	if err != nil {
		return nil, err
	}
	t.def = def
	return t, nil
}

// DefaultTable returns the table of the built-in policy
func DefaultTable() *Table {
	t, err := NewTable(policy.Default().Risk)
	if err != nil {
		panic("default risk table is invalid: " + err.Error())
	}
	return t
}

// Evaluate returns the level of the first matching rule, or the default.
func (t *Table) Evaluate(in Inputs) Decision {
	for _, r := range t.rules {
		if r.matches(in) {
			return Decision{Level: r.level, Rule: r.name}
		}
	}
	return Decision{Level: t.def, Rule: "default"}
}

func (r rule) matches(in Inputs) bool {
	if r.reachable != nil && *r.reachable != in.Reachable {
		return false
	}
	if r.activeBackend != nil && *r.activeBackend != in.ActiveBackend {
		return false
	}
	if r.covered != nil && *r.covered != in.Covered {
		return false
	}
	if len(r.origins) > 0 && !slices.Contains(r.origins, in.Origin) {
		return false
	}
	return in.Confidence >= r.minConfidence
}
