package errors

import "fmt"

// WarningKind classifies non-fatal findings recorded during a scan.
type WarningKind string

const (
	// IOWarning is a per-file read, stat or symlink problem.
	IOWarning WarningKind = "IO_WARNING"
	// ResolutionWarning is an import or entry point that maps to no component.
	ResolutionWarning WarningKind = "RESOLUTION_WARNING"
)

// Warning is recorded on the ArchitectureMap and never aborts a run.
type Warning struct {
	Kind        WarningKind `json:"kind"`
	ComponentID string      `json:"componentId,omitempty"`
	Path        string      `json:"path,omitempty"`
	Message     string      `json:"message"`
}

func (w Warning) String() string {
	subject := w.ComponentID
	if subject == "" {
		subject = w.Path
	}
	if subject == "" {
		return fmt.Sprintf("%s: %s", w.Kind, w.Message)
	}
	return fmt.Sprintf("%s %s: %s", w.Kind, subject, w.Message)
}

// NewIOWarning creates an IO_WARNING for a path.
func NewIOWarning(componentID, path string, err error) Warning {
	return Warning{Kind: IOWarning, ComponentID: componentID, Path: path, Message: err.Error()}
}

// NewResolutionWarning creates a RESOLUTION_WARNING.
func NewResolutionWarning(componentID, message string) Warning {
	return Warning{Kind: ResolutionWarning, ComponentID: componentID, Message: message}
}
