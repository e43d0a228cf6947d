package panel

import (
	"encoding/json"
	"sort"
)

// Change is one differing field: the value the caller wants and the value the
// API currently reports.
type Change struct {
	Desired any
	Remote  any
}

// Diff maps field names to their changes. An empty Diff means the states are
// equivalent for idempotency purposes.
type Diff map[string]Change

func (d Diff) Empty() bool {
	return len(d) == 0
}

func (d Diff) Fields() []string {
	if len(d) == 0 {
		return nil
	}
	fields := make([]string, 0, len(d))
	for name := range d {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	return fields
}

// ComputeDiff compares the desired state against the remote state, skipping
// read-only fields. Desired state is a subset specification: fields present
// only in remote never count as drift. Comparison is structural; object key
// order is insignificant, array order is significant.
func ComputeDiff(desired, remote map[string]any, readOnly map[string]struct{}) Diff {
	diff := make(Diff)
	for name, want := range desired {
		if _, ok := readOnly[name]; ok {
			continue
		}
		got := remote[name]
		if !deepEqual(want, got) {
			diff[name] = Change{Desired: want, Remote: got}
		}
	}
	return diff
}

// deepEqual compares two JSON-shaped values. Objects compare by the keys of
// the first operand (the desired side), so server-added nested fields do not
// register as drift. Numbers compare by value regardless of their decoded
// representation.
func deepEqual(a, b any) bool {
	switch at := a.(type) {
	case map[string]any:
		bt, ok := b.(map[string]any)
		if !ok {
			return false
		}
		for key, av := range at {
			if !deepEqual(av, bt[key]) {
				return false
			}
		}
		return true
	case []any:
		bt, ok := b.([]any)
		if !ok || len(at) != len(bt) {
			return false
		}
		for i := range at {
			if !deepEqual(at[i], bt[i]) {
				return false
			}
		}
		return true
	case nil:
		return b == nil
	default:
		if af, ok := asNumber(a); ok {
			bf, ok := asNumber(b)
			return ok && af == bf
		}
		return a == b
	}
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
