package audit

import (
	"encoding/json"
	"sort"
)

// FieldChange is one differing field between two snapshots.
type FieldChange struct {
	Field string `json:"field"`
	Old   any    `json:"old"`
	New   any    `json:"new"`
}

// Diff compares two snapshot maps by symmetric key union and value inequality.
// The snapshot schema varies by auditable entity type, so values stay opaque;
// equality is judged on the JSON encoding, which also evens out numeric types
// that differ only by decoding path. Output is ordered by field name.
func Diff(oldData, newData map[string]any) []FieldChange {
	keys := make(map[string]bool, len(oldData)+len(newData))
	for key := range oldData {
		keys[key] = true
	}
	for key := range newData {
		keys[key] = true
	}

	ordered := make([]string, 0, len(keys))
	for key := range keys {
		ordered = append(ordered, key)
	}
	sort.Strings(ordered)

	changes := make([]FieldChange, 0)
	for _, key := range ordered {
		oldValue := oldData[key]
		newValue := newData[key]
		if !jsonEqual(oldValue, newValue) {
			changes = append(changes, FieldChange{Field: key, Old: oldValue, New: newValue})
		}
	}

	return changes
}

func jsonEqual(a, b any) bool {
	aJSON, errA := json.Marshal(a)
	bJSON, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(aJSON) == string(bJSON)
}
