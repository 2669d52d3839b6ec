// Package policy holds the tunable heuristics of a scan: origin signals,
// the risk decision table, effort weights and roadmap thresholds. Policies are
// TOML files decoded over the defaults, so a file only lists what it changes.
package policy

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"

	"archscan/internal/model"
)

// Policy is the complete heuristic configuration
type Policy struct {
	Origin  OriginPolicy  `toml:"origin"`
	Risk    RiskPolicy    `toml:"risk"`
	Effort  EffortPolicy  `toml:"effort"`
	Legacy  LegacyPolicy  `toml:"legacy"`
	Roadmap RoadmapPolicy `toml:"roadmap"`
}

// OriginPolicy configures origin detection signals
type OriginPolicy struct {
	// ConfidenceSaturation is the number of agreeing signals that yields
	// confidence 1.0.
	ConfidenceSaturation int `toml:"confidence_saturation"`

	// ArchiveDirs are globs of archival/legacy directories
	ArchiveDirs []string `toml:"archive_dirs"`

	// Path-pattern heuristics, evaluated in this order on ties
	ThirdPartyPaths    []string `toml:"third_party_paths"`
	GeneratedPaths     []string `toml:"generated_paths"`
	LegacyNamePatterns []string `toml:"legacy_name_patterns"`
	CurrentPaths       []string `toml:"current_paths"`

	// Modification-time heuristic relative to the scan reference time.
	// Zero disables the bound.
	RecentDays int `toml:"recent_days"`
	StaleDays  int `toml:"stale_days"`
}

// RiskRule is one row of the risk decision table. Nil conditions match
// anything. Rules are evaluated in order; the first match wins.
type RiskRule struct {
	Name          string   `toml:"name"`
	Reachable     *bool    `toml:"reachable,omitempty"`
	ActiveBackend *bool    `toml:"active_backend,omitempty"`
	Covered       *bool    `toml:"covered,omitempty"`
	Origins       []string `toml:"origins,omitempty"`
	MinConfidence float64  `toml:"min_confidence,omitempty"`
	Level         string   `toml:"level"`
}

// RiskPolicy is the risk decision table
type RiskPolicy struct {
	Rules []RiskRule `toml:"rules"`
	// Default applies when no rule matches
	Default string `toml:"default"`
}

// EffortPolicy weights the archival effort estimate, in hours
type EffortPolicy struct {
	BaseHours            float64 `toml:"base_hours"`
	LinesPerHour         float64 `toml:"lines_per_hour"`
	PerBackendDependency float64 `toml:"per_backend_dependency"`
	PerImporter          float64 `toml:"per_importer"`
	PerComplexityPoint   float64 `toml:"per_complexity_point"`
	// PerCognitivePoint is charged per point of nesting-weighted complexity
	PerCognitivePoint    float64 `toml:"per_cognitive_point"`
}

// LegacyPolicy configures cleanup candidate selection
type LegacyPolicy struct {
	// MaxCoveringTests: components covered by more tests are not candidates.
	MaxCoveringTests int `toml:"max_covering_tests"`
	// StrictEligibility also requires no live routes and no active backend
	// dependencies for unreachable components.
	StrictEligibility bool `toml:"strict_eligibility"`
}

// RoadmapPolicy configures cleanup phase boundaries, in hours
type RoadmapPolicy struct {
	QuickWinHours  float64 `toml:"quick_win_hours"`
	Phase2MaxHours float64 `toml:"phase2_max_hours"`
}

func boolPtr(b bool) *bool { return &b }

// Default returns the built-in policy
func Default() *Policy {
	return &Policy{
		Origin: OriginPolicy{
			ConfidenceSaturation: 2,
			ArchiveDirs: []string{
				"**/legacy/**",
				"**/archive/**",
				"**/_archive/**",
				"**/deprecated/**",
				"**/old/**",
			},
			ThirdPartyPaths: []string{
				"**/vendor/**",
				"**/third_party/**",
				"**/third-party/**",
				"**/*.min.js",
			},
			GeneratedPaths: []string{
				"**/generated/**",
				"**/__generated__/**",
				"**/*.generated.*",
				"**/*.gen.*",
			},
			LegacyNamePatterns: []string{
				"**/*.old.*",
				"**/*[-_.]old.*",
				"**/*[-_]legacy.*",
				"**/*Legacy*",
				"**/*.bak.*",
			},
			CurrentPaths: nil,
			RecentDays:   90,
			StaleDays:    365,
		},
		Risk: RiskPolicy{
			Rules: []RiskRule{
				{Name: "live-backend-untested", Reachable: boolPtr(true), ActiveBackend: boolPtr(true), Covered: boolPtr(false), Level: string(model.RiskCritical)},
				{Name: "live-untested", Reachable: boolPtr(true), Covered: boolPtr(false), Level: string(model.RiskHigh)},
				{Name: "live-backend", Reachable: boolPtr(true), ActiveBackend: boolPtr(true), Level: string(model.RiskHigh)},
				{Name: "live", Reachable: boolPtr(true), Level: string(model.RiskMedium)},
				{Name: "dead-backend", Reachable: boolPtr(false), ActiveBackend: boolPtr(true), Level: string(model.RiskHigh)},
				{Name: "dead-tested", Reachable: boolPtr(false), Covered: boolPtr(true), Level: string(model.RiskMedium)},
				{
					Name:          "dead-known-origin",
					Reachable:     boolPtr(false),
					Origins:       []string{string(model.OriginLegacy), string(model.OriginGenerated), string(model.OriginThirdParty)},
					MinConfidence: 0.5,
					Level:         string(model.RiskLow),
				},
			},
			Default: string(model.RiskMedium),
		},
		Effort: EffortPolicy{
			BaseHours:            0.5,
			LinesPerHour:         200,
			PerBackendDependency: 0.5,
			PerImporter:          0.25,
			PerComplexityPoint:   0.05,
			PerCognitivePoint:    0.025,
		},
		Legacy: LegacyPolicy{
			MaxCoveringTests:  0,
			StrictEligibility: false,
		},
		Roadmap: RoadmapPolicy{
			QuickWinHours:  2,
			Phase2MaxHours: 8,
		},
	}
}

// Load decodes a TOML policy file over the defaults. An empty path returns
// the defaults.
func Load(path string) (*Policy, error) {
	p := Default()
	if path == "" {
		return p, nil
	}

	md, err := toml.DecodeFile(path, p)
	if err != nil {
		return nil, fmt.Errorf("failed to parse policy %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown policy keys in %s: %v", path, undecoded)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Save writes the policy as TOML
func (p *Policy) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create policy file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(p); err != nil {
		return fmt.Errorf("failed to encode policy: %w", err)
	}
	return nil
}

// Validate checks the policy for structural errors
func (p *Policy) Validate() error {
	if p.Origin.ConfidenceSaturation < 1 {
		return fmt.Errorf("origin.confidence_saturation must be at least 1")
	}
	globs := [][]string{
		p.Origin.ArchiveDirs,
		p.Origin.ThirdPartyPaths,
		p.Origin.GeneratedPaths,
		p.Origin.LegacyNamePatterns,
		p.Origin.CurrentPaths,
	}
	for _, list := range globs {
		for _, g := range list {
			if !doublestar.ValidatePattern(g) {
				return fmt.Errorf("invalid origin glob %q", g)
			}
		}
	}
	if p.Origin.RecentDays < 0 || p.Origin.StaleDays < 0 {
		return fmt.Errorf("origin day thresholds must not be negative")
	}
	if p.Origin.RecentDays > 0 && p.Origin.StaleDays > 0 && p.Origin.RecentDays >= p.Origin.StaleDays {
		return fmt.Errorf("origin.recent_days must be below origin.stale_days")
	}

	for i, r := range p.Risk.Rules {
		if _, err := model.ParseRiskLevel(r.Level); err != nil {
			return fmt.Errorf("risk.rules[%d]: %w", i, err)
		}
		for _, o := range r.Origins {
			if _, err := model.ParseOrigin(o); err != nil {
				return fmt.Errorf("risk.rules[%d]: %w", i, err)
			}
		}
		if r.MinConfidence < 0 || r.MinConfidence > 1 {
			return fmt.Errorf("risk.rules[%d]: min_confidence must be in [0,1]", i)
		}
	}
	if _, err := model.ParseRiskLevel(p.Risk.Default); err != nil {
		return fmt.Errorf("risk.default: %w", err)
	}

	if p.Effort.LinesPerHour <= 0 {
		return fmt.Errorf("effort.lines_per_hour must be positive")
	}
	if p.Effort.BaseHours < 0 || p.Effort.PerBackendDependency < 0 || p.Effort.PerImporter < 0 || p.Effort.PerComplexityPoint < 0 || p.Effort.PerCognitivePoint < 0 {
		return fmt.Errorf("effort weights must not be negative")
	}
	if p.Legacy.MaxCoveringTests < 0 {
		return fmt.Errorf("legacy.max_covering_tests must not be negative")
	}
	if p.Roadmap.QuickWinHours <= 0 || p.Roadmap.Phase2MaxHours < p.Roadmap.QuickWinHours {
		return fmt.Errorf("roadmap hours must satisfy 0 < quick_win_hours <= phase2_max_hours")
	}
	return nil
}
