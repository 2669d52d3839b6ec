// Package origin classifies components as current, legacy, generated,
// third-party or unknown from markers, directory membership and path or
// timestamp heuristics.
package origin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"archscan/internal/model"
	"archscan/internal/policy"
)

// Signal precedence ranks, highest first.
const (
	rankMarker = iota + 1
	rankArchive
	rankGenerated
	rankHeuristic
)

const day = 24 * time.Hour

type rankedSignal struct {
	rank int
	model.Signal
}

// Detector is a pure ComponentInfo -> ComponentOrigin classifier.
type Detector struct {
	policy    policy.OriginPolicy
	reference time.Time
}

// NewDetector creates a detector. reference anchors the modification-time
// heuristic; callers pass a time derived from the scanned tree so identical
// trees classify identically. A zero reference disables the heuristic.
func NewDetector(p policy.OriginPolicy, reference time.Time) *Detector {
	if p.ConfidenceSaturation < 1 {
		p.ConfidenceSaturation = 1
	}
	return &Detector{policy: p, reference: reference}
}

// ReferenceTime returns the newest modification time in the map.
func ReferenceTime(m *model.ComponentMap) time.Time {
	var newest time.Time
	for _, c := range m.All() {
		if c.ModTime.After(newest) {
			newest = c.ModTime
		}
	}
	return newest
}

// Detect classifies one component. The highest-precedence signal decides the
// origin; earlier signals win ties. Confidence is the number of signals
// agreeing with the decision divided by the saturation count, capped at 1.
func (d *Detector) Detect(c *model.ComponentInfo) model.ComponentOrigin {
	signals := d.signals(c)
	if len(signals) == 0 {
		return model.ComponentOrigin{Origin: model.OriginUnknown, Confidence: 0}
	}

	winner := signals[0]
	for _, s := range signals[1:] {
		if s.rank < winner.rank {
			winner = s
		}
	}

	var evidence []model.Signal
	for _, s := range signals {
		if s.Origin == winner.Origin {
			evidence = append(evidence, s.Signal)
		}
	}

	confidence := float64(len(evidence)) / float64(d.policy.ConfidenceSaturation)
	if confidence > 1 {
		confidence = 1
	}
	return model.ComponentOrigin{
		Origin:     winner.Origin,
		Confidence: confidence,
		Evidence:   evidence,
	}
}

// signals lists every signal in precedence order, then policy order.
func (d *Detector) signals(c *model.ComponentInfo) []rankedSignal {
	var out []rankedSignal
	add := func(rank int, kind model.SignalKind, origin model.Origin, detail string) {
		out = append(out, rankedSignal{rank: rank, Signal: model.Signal{Kind: kind, Origin: origin, Detail: detail}})
	}

	for _, m := range c.Markers {
		switch {
		case strings.HasPrefix(m, "archscan:origin="):
			if o, err := model.ParseOrigin(strings.TrimPrefix(m, "archscan:origin=")); err == nil {
				add(rankMarker, model.SignalMarker, o, m)
			}
		case m == "@deprecated" || m == "@legacy":
			add(rankMarker, model.SignalMarker, model.OriginLegacy, m)
		}
	}

	if g, ok := firstMatch(d.policy.ArchiveDirs, c.ID); ok {
		add(rankArchive, model.SignalArchive, model.OriginLegacy, g)
	}

	if c.HasMarker("@generated") {
		add(rankGenerated, model.SignalGenerated, model.OriginGenerated, "@generated")
	}

	pathRules := []struct {
		globs  []string
		origin model.Origin
	}{
		{d.policy.ThirdPartyPaths, model.OriginThirdParty},
		{d.policy.GeneratedPaths, model.OriginGenerated},
		{d.policy.LegacyNamePatterns, model.OriginLegacy},
		{d.policy.CurrentPaths, model.OriginCurrent},
	}
	for _, r := range pathRules {
		if g, ok := firstMatch(r.globs, c.ID); ok {
			add(rankHeuristic, model.SignalPath, r.origin, g)
		}
	}

	if !d.reference.IsZero() && !c.ModTime.IsZero() {
		age := d.reference.Sub(c.ModTime)
		switch {
		case d.policy.RecentDays > 0 && age <= time.Duration(d.policy.RecentDays)*day:
			add(rankHeuristic, model.SignalTimestamp, model.OriginCurrent,
				fmt.Sprintf("modified within %d days", d.policy.RecentDays))
		case d.policy.StaleDays > 0 && age >= time.Duration(d.policy.StaleDays)*day:
			add(rankHeuristic, model.SignalTimestamp, model.OriginLegacy,
				fmt.Sprintf("unmodified for %d days or more", d.policy.StaleDays))
		}
	}
	return out
}

func firstMatch(globs []string, id string) (string, bool) {
	for _, g := range globs {
		if ok, _ := doublestar.Match(g, id); ok {
			return g, true
		}
	}
	return "", false
}

// DetectAll classifies every component with a bounded worker pool. Workers
// write disjoint slots; the returned layer is keyed by component id.
func (d *Detector) DetectAll(ctx context.Context, m *model.ComponentMap, maxConcurrency int) (map[string]model.ComponentOrigin, error) {
	ids := m.IDs()
	results := make([]model.ComponentOrigin, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(maxConcurrency, 1))
	for i, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c, _ := m.Get(id)
			results[i] = d.Detect(c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	layer := make(map[string]model.ComponentOrigin, len(ids))
	for i, id := range ids {
		layer[id] = results[i]
	}
	return layer, nil
}
