package crawler

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	archerrors "archscan/internal/errors"
	"archscan/internal/paths"
)

// Entry is one candidate file found by the walk.
type Entry struct {
	// ID is the root-relative component id
	ID string
	// Path is the absolute path the file was reached through
	Path    string
	Size    int64
	ModTime time.Time
}

// WarningError carries a non-fatal walk problem through the Paths sequence.
type WarningError struct {
	Warning archerrors.Warning
}

func (e *WarningError) Error() string {
	return e.Warning.String()
}

// alwaysSkipped directories are never descended into.
var alwaysSkipped = []string{".git", paths.StateDirName}

// Paths returns a lazy sequence of candidate files in lexical discovery order.
// Each call walks the tree again. Non-fatal problems are yielded as
// *WarningError values with a zero Entry; a cancelled context ends the
// sequence with ctx.Err().
func (c *Crawler) Paths(ctx context.Context) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		rootReal, err := filepath.EvalSymlinks(c.opts.Root)
		if err != nil {
			yield(Entry{}, err)
			return
		}
		w := &walker{
			c:        c,
			ctx:      ctx,
			yield:    yield,
			rootReal: rootReal,
			visited:  map[string]bool{rootReal: true},
		}
		w.walkDir(c.opts.Root, "", []string{rootReal})
	}
}

type walker struct {
	c        *Crawler
	ctx      context.Context
	yield    func(Entry, error) bool
	rootReal string
	visited  map[string]bool
	stopped  bool
}

func (w *walker) emit(e Entry, err error) {
	if w.stopped {
		return
	}
	if !w.yield(e, err) {
		w.stopped = true
	}
}

func (w *walker) warn(id, p string, err error) {
	w.emit(Entry{}, &WarningError{Warning: archerrors.NewIOWarning(id, p, err)})
}

func (w *walker) cancelled() bool {
	if w.stopped {
		return true
	}
	if err := w.ctx.Err(); err != nil {
		w.emit(Entry{}, err)
		w.stopped = true
		return true
	}
	return false
}

// walkDir visits dirAbs. ancestors holds the real paths of every directory on
// the current path, root first.
func (w *walker) walkDir(dirAbs, dirRel string, ancestors []string) {
	if w.cancelled() {
		return
	}

	entries, err := os.ReadDir(dirAbs)
	if err != nil {
		w.warn(paths.ComponentID(dirRel), dirAbs, err)
		return
	}

	for _, de := range entries {
		if w.cancelled() {
			return
		}

		name := de.Name()
		rel := path.Join(dirRel, name)
		abs := filepath.Join(dirAbs, name)
		parentReal := ancestors[len(ancestors)-1]

		var info fs.FileInfo
		realPath := filepath.Join(parentReal, name)

		if de.Type()&fs.ModeSymlink != 0 {
			info, err = os.Stat(abs)
			if err == nil {
				realPath, err = filepath.EvalSymlinks(abs)
			}
			if err != nil {
				w.warn(paths.ComponentID(rel), abs, fmt.Errorf("unresolvable symbolic link: %w", err))
				continue
			}
			if info.IsDir() && slices.Contains(ancestors, realPath) {
				w.c.logger.Warn("Symbolic link cycle, skipping subtree",
					"link", rel,
					"target", realPath)
				w.warn(paths.ComponentID(rel), abs, errors.New("symbolic link cycle to ancestor "+realPath))
				continue
			}
			// Targets inside the root are reached through their real path.
			if paths.IsWithin(realPath, w.rootReal) {
				w.c.logger.Debug("Skipping link into the scanned tree", "link", rel, "target", realPath)
				continue
			}
		} else {
			info, err = de.Info()
			if err != nil {
				w.warn(paths.ComponentID(rel), abs, err)
				continue
			}
		}

		if info.IsDir() {
			if w.c.skipDir(name, rel, realPath) {
				continue
			}
			if w.visited[realPath] {
				w.c.logger.Debug("Directory already visited through another link", "path", rel, "target", realPath)
				continue
			}
			w.visited[realPath] = true
			w.walkDir(abs, rel, append(slices.Clip(ancestors), realPath))
			continue
		}

		if !info.Mode().IsRegular() || !w.c.included(rel) {
			continue
		}

		w.emit(Entry{
			ID:      paths.ComponentID(rel),
			Path:    abs,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}, nil)
	}
}

func (c *Crawler) skipDir(name, rel, realPath string) bool {
	if slices.Contains(alwaysSkipped, name) {
		return true
	}
	for _, skip := range c.skipReal {
		if realPath == skip {
			return true
		}
	}
	for _, pattern := range c.opts.Exclude {
		if matchDir(pattern, rel) {
			return true
		}
	}
	return false
}

// matchDir reports whether pattern excludes the whole directory rel.
func matchDir(pattern, rel string) bool {
	if ok, _ := doublestar.Match(pattern, rel); ok {
		return true
	}
	if base, found := strings.CutSuffix(pattern, "/**"); found {
		ok, _ := doublestar.Match(base, rel)
		return ok
	}
	return false
}

func (c *Crawler) included(rel string) bool {
	matched := false
	for _, pattern := range c.opts.Include {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	for _, pattern := range c.opts.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return false
		}
	}
	return true
}
