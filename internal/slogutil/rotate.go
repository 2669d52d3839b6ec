package slogutil

import (
	"os"
	"path/filepath"
	"strconv"
)

// OpenScanLog opens path for appending. When the existing log has reached
// maxBytes it is rotated first: path.1 becomes path.2 and so on, path becomes
// path.1 and anything beyond backups is removed. Rotation happens once per
// run, so a single scan never splits across files. maxBytes <= 0 disables it.
func OpenScanLog(path string, maxBytes int64, backups int) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if maxBytes > 0 {
		if info, err := os.Stat(path); err == nil && info.Size() >= maxBytes {
			if err := rotateLogs(path, backups); err != nil {
				return nil, err
			}
		}
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

func rotateLogs(path string, backups int) error {
	if backups < 1 {
		return os.Remove(path)
	}
	if err := os.Remove(rotatedName(path, backups)); err != nil && !os.IsNotExist(err) {
		return err
	}
	for n := backups - 1; n >= 1; n-- {
		if err := os.Rename(rotatedName(path, n), rotatedName(path, n+1)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return os.Rename(path, rotatedName(path, 1))
}

func rotatedName(path string, n int) string {
	return path + "." + strconv.Itoa(n)
}
