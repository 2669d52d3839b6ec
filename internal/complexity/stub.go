//go:build !cgo

package complexity

// IsAvailable returns false when CGO is disabled.
func IsAvailable() bool {
	return false
}
