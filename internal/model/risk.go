package model

import "fmt"

// RiskLevel is a derived severity rating
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Rank orders risk levels: low=1 .. critical=4, unknown=0
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	case RiskCritical:
		return 4
	default:
		return 0
	}
}

// ParseRiskLevel converts a string to a RiskLevel
func ParseRiskLevel(s string) (RiskLevel, error) {
	r := RiskLevel(s)
	if r.Rank() == 0 {
		return "", fmt.Errorf("unknown risk level %q", s)
	}
	return r, nil
}

// MaxRisk returns the higher of two levels
func MaxRisk(a, b RiskLevel) RiskLevel {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}
