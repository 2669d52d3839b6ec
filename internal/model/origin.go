package model

import "fmt"

// Origin is the provenance classification of a component
type Origin string

const (
	OriginCurrent    Origin = "current"
	OriginLegacy     Origin = "legacy"
	OriginGenerated  Origin = "generated"
	OriginThirdParty Origin = "thirdParty"
	OriginUnknown    Origin = "unknown"
)

// ParseOrigin converts a string to an Origin
func ParseOrigin(s string) (Origin, error) {
	switch Origin(s) {
	case OriginCurrent, OriginLegacy, OriginGenerated, OriginThirdParty, OriginUnknown:
		return Origin(s), nil
	case "third-party", "thirdparty", "vendor":
		return OriginThirdParty, nil
	}
	return "", fmt.Errorf("unknown origin %q", s)
}

// SignalKind names the evidence source behind an origin decision.
// Kinds are listed in precedence order, highest first.
type SignalKind string

const (
	SignalMarker    SignalKind = "marker"
	SignalArchive   SignalKind = "archiveDirectory"
	SignalGenerated SignalKind = "generatedHeader"
	SignalPath      SignalKind = "pathPattern"
	SignalTimestamp SignalKind = "timestamp"
)

// Signal is one piece of evidence for an origin
type Signal struct {
	Kind   SignalKind `json:"kind"`
	Origin Origin     `json:"origin"`
	Detail string     `json:"detail"`
}

// ComponentOrigin is the origin decision for one component
type ComponentOrigin struct {
	Origin     Origin   `json:"origin"`
	Confidence float64  `json:"confidence"`
	Evidence   []Signal `json:"evidence,omitempty"`
}
