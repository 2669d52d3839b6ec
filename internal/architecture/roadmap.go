package architecture

import (
	"math"

	archerrors "archscan/internal/errors"
	"archscan/internal/legacy"
	"archscan/internal/model"
	"archscan/internal/policy"
	"archscan/internal/testselect"
)

// RoadmapItem is one eligible component scheduled for cleanup
type RoadmapItem struct {
	ComponentID    string          `json:"componentId"`
	Risk           model.RiskLevel `json:"risk"`
	EffortHours    float64         `json:"effortHours"`
	ArchivalPlanID string          `json:"archivalPlanId"`
	BackupPlanID   string          `json:"backupPlanId"`
}

// Phase groups roadmap items
type Phase struct {
	Number int           `json:"number"`
	Name   string        `json:"name"`
	Items  []RoadmapItem `json:"items"`
	Count  int           `json:"count"`
	Hours  float64       `json:"hours"`
}

// CleanupRoadmap schedules the archival plans in three phases: quick wins,
// bounded medium-risk work, then everything else.
type CleanupRoadmap struct {
	Phases          []Phase `json:"phases"`
	TotalComponents int     `json:"totalComponents"`
	TotalHours      float64 `json:"totalHours"`
}

var phaseNames = [3]string{"quick wins", "planned cleanup", "high risk"}

// PlanCleanup builds the roadmap from the map's archival plans, keeping plan
// order inside each phase. A partial map is refused.
func PlanCleanup(m *ArchitectureMap, p policy.RoadmapPolicy) (*CleanupRoadmap, error) {
	if m.Partial {
		return nil, archerrors.New(archerrors.PartialResult, "cannot plan cleanup from a partial scan", nil)
	}

	r := &CleanupRoadmap{Phases: make([]Phase, len(phaseNames))}
	for i, name := range phaseNames {
		r.Phases[i] = Phase{Number: i + 1, Name: name, Items: []RoadmapItem{}}
	}
	if m.Legacy == nil {
		return r, nil
	}

	for _, pair := range m.Legacy.Plans {
		a := pair.Archival
		item := RoadmapItem{
			ComponentID:    a.ComponentID,
			Risk:           a.Risk,
			EffortHours:    a.EffortHours,
			ArchivalPlanID: a.ID,
			BackupPlanID:   pair.Backup.ID,
		}
		ph := &r.Phases[phaseOf(item, p)-1]
		ph.Items = append(ph.Items, item)
		ph.Count++
		ph.Hours += item.EffortHours
		r.TotalComponents++
		r.TotalHours += item.EffortHours
	}
	for i := range r.Phases {
		r.Phases[i].Hours = round2(r.Phases[i].Hours)
	}
	r.TotalHours = round2(r.TotalHours)
	return r, nil
}

func phaseOf(item RoadmapItem, p policy.RoadmapPolicy) int {
	rank := item.Risk.Rank()
	switch {
	case rank <= model.RiskLow.Rank() && item.EffortHours <= p.QuickWinHours:
		return 1
	case rank <= model.RiskMedium.Rank() && item.EffortHours <= p.Phase2MaxHours:
		return 2
	default:
		return 3
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Items returns every scheduled item in phase order
func (r *CleanupRoadmap) Items() []RoadmapItem {
	var out []RoadmapItem
	for _, ph := range r.Phases {
		out = append(out, ph.Items...)
	}
	return out
}

// SelectTests runs safe test selection over a completed map.
func SelectTests(m *ArchitectureMap, targets []string, filter testselect.ComponentFilter, radius int) (*testselect.Selection, error) {
	return testselect.Select(testselect.Inputs{
		Components: m.Components,
		Usage:      m.Usage,
		Coverage:   m.Coverage,
		Risks:      m.RiskLevels(),
		Partial:    m.Partial,
	}, targets, testselect.Options{HopRadius: radius, Filter: filter})
}

// Plans returns the backup and archival plan pairs, or nil before legacy
// detection ran.
func (m *ArchitectureMap) Plans() []legacy.PlanPair {
	if m.Legacy == nil {
		return nil
	}
	return m.Legacy.Plans
}
