// Package sink writes exported reports to a destination: a local
// directory or an S3-compatible object store, optionally zstd-compressed.
package sink

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"archscan/internal/config"
	archerrors "archscan/internal/errors"
	"archscan/internal/paths"
)

// Sink stores a named document and returns where it went
type Sink interface {
	Write(ctx context.Context, name string, data []byte) (string, error)
}

// New builds the sink described by cfg. repoRoot anchors relative
// directories; the default file sink writes to .archscan/reports.
func New(cfg config.SinkConfig, repoRoot string) (Sink, error) {
	var s Sink
	switch cfg.Kind {
	case "", "file":
		dir := cfg.Dir
		if dir == "" {
			dir = paths.ReportsDir(repoRoot)
		} else if !filepath.IsAbs(dir) {
			dir = paths.JoinRepoPath(repoRoot, dir)
		}
		s = NewFileSink(dir)
	case "s3":
		obj, err := NewObjectSink(cfg.S3)
		if err != nil {
			return nil, archerrors.New(archerrors.ConfigurationError, "invalid s3 sink configuration", err)
		}
		s = obj
	default:
		return nil, archerrors.Newf(archerrors.ConfigurationError, "unknown sink kind %q", cfg.Kind)
	}
	if cfg.Compress {
		s = Compressed(s)
	}
	return s, nil
}

type compressed struct {
	next Sink
}

// Compressed wraps s so documents are zstd-compressed and named *.zst
func Compressed(s Sink) Sink {
	return &compressed{next: s}
}

func (c *compressed) Write(ctx context.Context, name string, data []byte) (string, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return "", archerrors.New(archerrors.SinkError, "zstd encoder", err)
	}
	defer enc.Close()
	return c.next.Write(ctx, name+".zst", enc.EncodeAll(data, nil))
}

// Decompress reverses Compressed
func Decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return out, nil
}
