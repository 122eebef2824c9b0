package audit

import "testing"

func TestDiffSymmetricKeyUnion(t *testing.T) {
	oldData := map[string]any{
		"customer_name": "Rahim",
		"district":      "Dhaka",
		"dropped":       "x",
	}
	newData := map[string]any{
		"customer_name": "Rahim",
		"district":      "Chattogram",
		"added":         "y",
	}

	changes := Diff(oldData, newData)

	want := map[string][2]any{
		"added":    {nil, "y"},
		"district": {"Dhaka", "Chattogram"},
		"dropped":  {"x", nil},
	}

	if len(changes) != len(want) {
		t.Fatalf("got %d changes, want %d: %+v", len(changes), len(want), changes)
	}

	for _, change := range changes {
		expected, ok := want[change.Field]
		if !ok {
			t.Errorf("unexpected change for field %q", change.Field)
			continue
		}
		if !jsonEqual(change.Old, expected[0]) || !jsonEqual(change.New, expected[1]) {
			t.Errorf("field %q: got (%v, %v), want (%v, %v)",
				change.Field, change.Old, change.New, expected[0], expected[1])
		}
	}
}

func TestDiffOrderedByField(t *testing.T) {
	changes := Diff(
		map[string]any{"b": 1, "a": 1, "c": 1},
		map[string]any{"b": 2, "a": 2, "c": 2},
	)

	fields := make([]string, 0, len(changes))
	for _, change := range changes {
		fields = append(fields, change.Field)
	}

	if len(fields) != 3 || fields[0] != "a" || fields[1] != "b" || fields[2] != "c" {
		t.Errorf("expected ordered fields [a b c], got %v", fields)
	}
}

func TestDiffNumericTypesEvenOut(t *testing.T) {
	// A snapshot decoded from JSONB holds float64; a freshly built one may hold int.
	changes := Diff(
		map[string]any{"follow_up_count": float64(2)},
		map[string]any{"follow_up_count": 2},
	)
	if len(changes) != 0 {
		t.Errorf("expected no changes for numerically equal values, got %+v", changes)
	}
}

func TestDiffEmptySnapshots(t *testing.T) {
	if changes := Diff(nil, nil); len(changes) != 0 {
		t.Errorf("expected no changes for nil snapshots, got %+v", changes)
	}
}
