package architecture

import (
	"context"
	"encoding/json"
	"fmt"

	archerrors "archscan/internal/errors"
	"archscan/internal/sink"
	"archscan/internal/version"
)

// ReportSchemaVersion is bumped whenever the exported document changes shape
const ReportSchemaVersion = 1

// Report is the exported form of an ArchitectureMap
type Report struct {
	SchemaVersion int              `json:"schemaVersion"`
	ToolVersion   string           `json:"toolVersion"`
	Summary       Summary          `json:"summary"`
	Map           *ArchitectureMap `json:"map"`
}

// BuildReport wraps m with its summary
func BuildReport(m *ArchitectureMap) *Report {
	return &Report{
		SchemaVersion: ReportSchemaVersion,
		ToolVersion:   version.Version,
		Summary:       m.Summary(),
		Map:           m,
	}
}

// ReportName is the sink object name of a scan's report
func ReportName(scanID string) string {
	return fmt.Sprintf("archscan-%s.json", scanID)
}

// Export writes the report of m to s and returns where it landed.
func Export(ctx context.Context, m *ArchitectureMap, s sink.Sink) (string, error) {
	data, err := json.MarshalIndent(BuildReport(m), "", "  ")
	if err != nil {
		return "", archerrors.New(archerrors.InternalError, "failed to encode report", err)
	}
	loc, err := s.Write(ctx, ReportName(m.ScanID), data)
	if err != nil {
		if archerrors.CodeOf(err) != "" {
			return "", err
		}
		return "", archerrors.New(archerrors.SinkError, "failed to write report", err)
	}
	return loc, nil
}
