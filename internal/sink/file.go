package sink

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	archerrors "archscan/internal/errors"
)

// FileSink writes documents into a directory
type FileSink struct {
	dir string
}

// NewFileSink creates a sink writing to dir, created on first write
func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir}
}

// Dir returns the target directory
func (s *FileSink) Dir() string { return s.dir }

// Write stores data atomically under dir/name
func (s *FileSink) Write(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", archerrors.New(archerrors.Cancelled, "export cancelled", err)
	}
	if name == "" || strings.Contains(name, "..") || filepath.IsAbs(name) {
		return "", archerrors.Newf(archerrors.SinkError, "invalid document name %q", name)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", archerrors.New(archerrors.SinkError, "create report directory", err)
	}

	target := filepath.Join(s.dir, filepath.FromSlash(name))
	tmp, err := os.CreateTemp(s.dir, ".report-*")
	if err != nil {
		return "", archerrors.New(archerrors.SinkError, "create temp file", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", archerrors.New(archerrors.SinkError, "write report", err)
	}
	if err := tmp.Close(); err != nil {
		return "", archerrors.New(archerrors.SinkError, "close report", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", archerrors.New(archerrors.SinkError, "rename report", err)
	}
	return target, nil
}
