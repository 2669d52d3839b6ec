// Package crawler walks a source tree and turns every candidate file into a
// ComponentInfo record.
package crawler

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"

	archerrors "archscan/internal/errors"
	"archscan/internal/model"
	"archscan/internal/surface"
)

// DefaultMaxConcurrency bounds concurrent file reads when Options leaves it unset.
const DefaultMaxConcurrency = 4

// Progress is reported after each processed file.
type Progress struct {
	Done       int
	Discovered int
	ID         string
}

// Options configures a crawl.
type Options struct {
	Root        string
	Include     []string
	Exclude     []string
	MaxFileSize int64

	MaxConcurrency int

	// SkipDirs are absolute directories never descended into, such as the
	// backup target directory holding earlier archive snapshots.
	SkipDirs []string

	// Progress, if set, is called concurrently from worker goroutines.
	Progress func(Progress)

	// ReadFile overrides os.ReadFile.
	ReadFile func(string) ([]byte, error)
}

// Result is the outcome of a crawl.
type Result struct {
	Components *model.ComponentMap
	Warnings   []archerrors.Warning
	Discovered int
	// Partial is set when the crawl was cancelled before every file was read.
	Partial bool
}

// Crawler turns files into ComponentInfo records.
type Crawler struct {
	opts      Options
	logger    *slog.Logger
	extractor *surface.Extractor
	skipReal  []string
	readFile  func(string) ([]byte, error)
}

// New validates options and creates a crawler.
func New(opts Options, extractor *surface.Extractor, logger *slog.Logger) (*Crawler, error) {
	if opts.Root == "" {
		return nil, errors.New("crawler: root directory is required")
	}
	for _, p := range append(append([]string{}, opts.Include...), opts.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("crawler: invalid glob %q", p)
		}
	}
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = DefaultMaxConcurrency
	}
	if extractor == nil {
		extractor = surface.NewExtractor(logger)
	}

	c := &Crawler{
		opts:      opts,
		logger:    logger,
		extractor: extractor,
		readFile:  opts.ReadFile,
	}
	if c.readFile == nil {
		c.readFile = os.ReadFile
	}
	for _, dir := range opts.SkipDirs {
		if dir == "" {
			continue
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		if resolved, err := filepath.EvalSymlinks(abs); err == nil {
			abs = resolved
		}
		c.skipReal = append(c.skipReal, abs)
	}
	return c, nil
}

// Crawl reads every candidate with a bounded worker pool. Results are stored
// at their discovery index so the map order does not depend on scheduling.
// On cancellation the completed part of the map is returned together with a
// CANCELLED error.
func (c *Crawler) Crawl(ctx context.Context) (*Result, error) {
	builder := model.NewComponentMapBuilder()

	var (
		mu       sync.Mutex
		warnings []archerrors.Warning
		done     atomic.Int64
	)
	addWarning := func(w archerrors.Warning) {
		mu.Lock()
		warnings = append(warnings, w)
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(c.opts.MaxConcurrency)

	discovered := 0
	var walkErr error
	for entry, err := range c.Paths(ctx) {
		if err != nil {
			var we *WarningError
			if errors.As(err, &we) {
				addWarning(we.Warning)
				continue
			}
			walkErr = err
			break
		}

		index := discovered
		discovered++
		seen := discovered
		g.Go(func() error {
			// Abandon work not yet started once the caller cancels.
			if ctx.Err() != nil {
				return nil
			}
			info, warning := c.readComponent(ctx, entry)
			if err := builder.Insert(index, info); err != nil {
				return err
			}
			if warning != nil {
				addWarning(*warning)
			}
			n := done.Add(1)
			if c.opts.Progress != nil {
				c.opts.Progress(Progress{Done: int(n), Discovered: seen, ID: entry.ID})
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, archerrors.New(archerrors.InternalError, "component map insert failed", err)
	}

	result := &Result{
		Components: builder.Freeze(),
		Warnings:   warnings,
		Discovered: discovered,
	}

	if ctx.Err() != nil {
		result.Partial = true
		c.logger.Warn("Crawl cancelled",
			"completed", result.Components.Len(),
			"discovered", discovered)
		return result, archerrors.New(archerrors.Cancelled, "crawl cancelled", ctx.Err())
	}
	if walkErr != nil {
		return nil, archerrors.New(archerrors.ConfigurationError, "root directory cannot be walked", walkErr)
	}

	c.logger.Debug("Crawl complete",
		"components", result.Components.Len(),
		"warnings", len(warnings))
	return result, nil
}

// readComponent never fails: problems produce a degraded record and a warning.
func (c *Crawler) readComponent(ctx context.Context, e Entry) (model.ComponentInfo, *archerrors.Warning) {
	lang := surface.LanguageFor(e.ID)
	info := model.ComponentInfo{
		ID:        e.ID,
		Path:      e.Path,
		Kind:      surface.InferKind(e.ID, lang),
		Language:  lang,
		SizeBytes: e.Size,
		ModTime:   e.ModTime,
	}

	data, err := c.readFile(e.Path)
	if err != nil {
		c.logger.Debug("Unreadable file", "component", e.ID, "error", err)
		info.Degraded = true
		info.ErrorMarker = err.Error()
		w := archerrors.NewIOWarning(e.ID, e.Path, err)
		return info, &w
	}

	info.Checksum = Checksum(data)
	info.SizeBytes = int64(len(data))
	info.Lines = countLines(data)

	// Oversized files are not parsed, but their imports still feed the
	// usage graph.
	if c.opts.MaxFileSize > 0 && info.SizeBytes > c.opts.MaxFileSize {
		info.Degraded = true
		info.ErrorMarker = fmt.Sprintf("file exceeds size limit (%d > %d bytes)", info.SizeBytes, c.opts.MaxFileSize)
		s := c.extractor.ExtractShallow(e.ID, data)
		info.Imports = s.Imports
		info.Exports = s.Exports
		info.Markers = s.Markers
		w := archerrors.NewIOWarning(e.ID, e.Path, errors.New(info.ErrorMarker))
		return info, &w
	}

	s := c.extractor.Extract(ctx, e.ID, data)
	info.Imports = s.Imports
	info.Exports = s.Exports
	info.Markers = s.Markers
	info.Complexity = s.Complexity
	info.Cognitive = s.Cognitive
	return info, nil
}

func countLines(data []byte) int {
	if len(data) == 0 {
		return 0
	}
	n := bytes.Count(data, []byte{'\n'})
	if data[len(data)-1] != '\n' {
		n++
	}
	return n
}

// Checksum returns the hex BLAKE2b-256 digest recorded for component content
func Checksum(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
