package testutil

import (
	"encoding/json"
	"strings"
	"testing"
)

// volatileFields differ between runs and are dropped before comparison.
var volatileFields = map[string]bool{
	"scanId":      true,
	"generatedAt": true,
	"modTime":     true,
	"createdAt":   true,
	"completedAt": true,
}

// MarshalNormalized renders data as indented JSON with volatile fields
// removed and root replaced by "<root>".
func MarshalNormalized(t *testing.T, root string, data any) []byte {
	t.Helper()

	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("Failed to marshal data for normalization: %v", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		t.Fatalf("Failed to unmarshal data for normalization: %v", err)
	}

	out, err := json.MarshalIndent(normalizeValue(generic, root), "", "  ")
	if err != nil {
		t.Fatalf("Failed to marshal normalized data: %v", err)
	}
	return append(out, '\n')
}

func normalizeValue(v any, root string) any {
	switch val := v.(type) {
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, item := range val {
			if volatileFields[k] {
				continue
			}
			result[k] = normalizeValue(item, root)
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, item := range val {
			result[i] = normalizeValue(item, root)
		}
		return result
	case string:
		if root != "" {
			return strings.ReplaceAll(val, root, "<root>")
		}
		return val
	default:
		return v
	}
}
