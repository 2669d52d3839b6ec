package paths

import (
	"os"
	"path/filepath"
	"testing"
)

func TestComponentID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"src/a.ts", "src/a.ts"},
		{"./src/a.ts", "src/a.ts"},
		{"src//lib/../a.ts", "src/a.ts"},
		{filepath.Join("src", "pages", "Home.tsx"), "src/pages/Home.tsx"},
		{".", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ComponentID(tt.in); got != tt.want {
				t.Errorf("ComponentID(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsWithin(t *testing.T) {
	root := filepath.Join("repo")
	tests := []struct {
		target string
		want   bool
	}{
		{filepath.Join("repo", "src", "a.ts"), true},
		{filepath.Join("repo"), true},
		{filepath.Join("repo-other", "a.ts"), false},
		{filepath.Join("elsewhere"), false},
		{filepath.Join("repo", "..foo"), true},
	}
	for _, tt := range tests {
		if got := IsWithin(tt.target, root); got != tt.want {
			t.Errorf("IsWithin(%q, %q) = %v, want %v", tt.target, root, got, tt.want)
		}
	}
}

func TestCanonicalizePath(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "src", "a.ts")
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(file, []byte("export const a = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := CanonicalizePath(file, root)
	if err != nil {
		t.Fatalf("CanonicalizePath failed: %v", err)
	}
	if got != "src/a.ts" {
		t.Errorf("CanonicalizePath = %q, want src/a.ts", got)
	}

	// Missing files are kept as-is
	got, err = CanonicalizePath(filepath.Join(root, "gone.ts"), root)
	if err != nil {
		t.Fatalf("CanonicalizePath(missing) failed: %v", err)
	}
	if got != "gone.ts" {
		t.Errorf("CanonicalizePath(missing) = %q", got)
	}
}

func TestStateLayout(t *testing.T) {
	root := t.TempDir()

	dir, err := EnsureStateDir(root)
	if err != nil {
		t.Fatalf("EnsureStateDir failed: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("state dir not created: %v", err)
	}
	if filepath.Dir(LedgerPath(root)) != dir {
		t.Errorf("ledger should live in state dir, got %s", LedgerPath(root))
	}
	if filepath.Base(ScanLogPath(root)) != "scan.log" {
		t.Errorf("unexpected log path %s", ScanLogPath(root))
	}
	if JoinRepoPath(root, "src/a.ts") != filepath.Join(root, "src", "a.ts") {
		t.Errorf("JoinRepoPath mismatch")
	}
}
