// Package testutil provides synthetic source trees and golden comparison for
// package tests.
package testutil

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"
)

// FixtureTime is the modification time every fixture file gets unless a test
// overrides it, so origin heuristics see a stable tree.
var FixtureTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// Tree is a synthetic source tree rooted in a temp directory.
type Tree struct {
	Root string
	t    *testing.T
}

// WriteTree creates files (slash-separated relative path -> content) under a
// fresh temp directory.
func WriteTree(t *testing.T, files map[string]string) *Tree {
	t.Helper()

	tree := &Tree{Root: t.TempDir(), t: t}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		tree.Write(name, files[name])
	}
	return tree
}

// Path returns the absolute OS path of a relative fixture path.
func (tr *Tree) Path(rel string) string {
	return filepath.Join(tr.Root, filepath.FromSlash(rel))
}

// Write creates or replaces one file.
func (tr *Tree) Write(rel, content string) {
	tr.t.Helper()

	p := tr.Path(rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		tr.t.Fatalf("Failed to create fixture dir: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		tr.t.Fatalf("Failed to write fixture %s: %v", rel, err)
	}
	if err := os.Chtimes(p, FixtureTime, FixtureTime); err != nil {
		tr.t.Fatalf("Failed to set fixture mtime: %v", err)
	}
}

// Touch sets the modification time of a fixture file.
func (tr *Tree) Touch(rel string, mtime time.Time) {
	tr.t.Helper()
	if err := os.Chtimes(tr.Path(rel), mtime, mtime); err != nil {
		tr.t.Fatalf("Failed to set mtime on %s: %v", rel, err)
	}
}

// Symlink creates link -> target, both relative to the tree root. The link
// stores an absolute target.
func (tr *Tree) Symlink(target, link string) {
	tr.t.Helper()

	p := tr.Path(link)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		tr.t.Fatalf("Failed to create link dir: %v", err)
	}
	if err := os.Symlink(tr.Path(target), p); err != nil {
		tr.t.Skipf("symlinks unsupported: %v", err)
	}
}
