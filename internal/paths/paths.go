package paths

import (
	"os"
	"path"
	"path/filepath"
	"strings"
)

// StateDirName is the per-repository directory archscan owns.
const StateDirName = ".archscan"

// CanonicalizePath converts an absolute path to a repo-relative canonical path
// - Resolves symlinks to real paths
// - Makes path relative to repo root
// - Returns repo-relative path with forward slashes
func CanonicalizePath(absolutePath string, repoRoot string) (string, error) {
	resolved, err := filepath.EvalSymlinks(absolutePath)
	if err != nil {
		if os.IsNotExist(err) {
			resolved = absolutePath
		} else {
			return "", err
		}
	}

	repoRootResolved, err := filepath.EvalSymlinks(repoRoot)
	if err != nil {
		if os.IsNotExist(err) {
			repoRootResolved = repoRoot
		} else {
			return "", err
		}
	}

	relativePath, err := filepath.Rel(repoRootResolved, resolved)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(relativePath), nil
}

// ComponentID turns a root-relative OS path into the stable component identifier:
// forward slashes, cleaned, no leading "./".
func ComponentID(relativePath string) string {
	id := path.Clean(filepath.ToSlash(relativePath))
	id = strings.TrimPrefix(id, "./")
	if id == "." {
		return ""
	}
	return id
}

// IsWithin reports whether target lies inside (or equals) dir. Both are OS paths.
func IsWithin(target, dir string) bool {
	rel, err := filepath.Rel(dir, target)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// JoinRepoPath joins a repo root with a canonical path
func JoinRepoPath(repoRoot string, canonicalPath string) string {
	normalizedPath := strings.ReplaceAll(canonicalPath, "\\", "/")
	parts := strings.Split(normalizedPath, "/")
	return filepath.Join(append([]string{repoRoot}, parts...)...)
}

// StateDir returns <repoRoot>/.archscan
func StateDir(repoRoot string) string {
	return filepath.Join(repoRoot, StateDirName)
}

// EnsureStateDir creates <repoRoot>/.archscan if needed and returns it.
func EnsureStateDir(repoRoot string) (string, error) {
	dir := StateDir(repoRoot)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// LedgerPath returns the default plan ledger database path.
func LedgerPath(repoRoot string) string {
	return filepath.Join(StateDir(repoRoot), "ledger.db")
}

// ReportsDir returns the default directory for exported reports.
func ReportsDir(repoRoot string) string {
	return filepath.Join(StateDir(repoRoot), "reports")
}

// LogsDir returns the directory holding scan logs.
func LogsDir(repoRoot string) string {
	return filepath.Join(StateDir(repoRoot), "logs")
}

// ScanLogPath returns <repoRoot>/.archscan/logs/scan.log
func ScanLogPath(repoRoot string) string {
	return filepath.Join(LogsDir(repoRoot), "scan.log")
}
