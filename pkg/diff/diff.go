package diff

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Kind classifies a single change between two snapshots.
type Kind string

const (
	Added    Kind = "added"
	Removed  Kind = "removed"
	Modified Kind = "modified"
)

// Change describes one differing leaf. Path is dot separated for nested maps.
type Change struct {
	Path string `json:"path" yaml:"path"`
	Kind Kind   `json:"kind" yaml:"kind"`
	Old  any    `json:"old" yaml:"old"`
	New  any    `json:"new" yaml:"new"`
}

// String renders the change as "path: old → new".
func (c Change) String() string {
	return fmt.Sprintf("%s: %s → %s", c.Path, Format(c.Old), Format(c.New))
}

// Changeset is an ordered list of changes, sorted by path.
type Changeset []Change

// Empty reports whether no change was detected.
func (cs Changeset) Empty() bool { return len(cs) == 0 }

// Paths returns the changed paths in order.
func (cs Changeset) Paths() []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Path)
	}
	return out
}

// Get returns the change recorded for path, if any.
func (cs Changeset) Get(path string) (Change, bool) {
	for _, c := range cs {
		if c.Path == path {
			return c, true
		}
	}
	return Change{}, false
}

// Compare walks previous and current recursively and returns every differing leaf.
// Nested maps are descended into; any other values (including slices) are compared
// as a whole. A nil snapshot on either side yields no changeset.
func Compare(previous, current map[string]any) Changeset {
	if previous == nil || current == nil {
		return nil
	}

	var cs Changeset
	walk("", previous, current, &cs)
	sort.Slice(cs, func(i, j int) bool { return cs[i].Path < cs[j].Path })
	return cs
}

func walk(prefix string, previous, current map[string]any, cs *Changeset) {
	for key, prevVal := range previous {
		path := join(prefix, key)
		curVal, ok := current[key]
		if !ok {
			*cs = append(*cs, Change{Path: path, Kind: Removed, Old: prevVal})
			continue
		}

		prevMap, prevIsMap := asMap(prevVal)
		curMap, curIsMap := asMap(curVal)
		if prevIsMap && curIsMap {
			walk(path, prevMap, curMap, cs)
			continue
		}

		if !equal(prevVal, curVal) {
			*cs = append(*cs, Change{Path: path, Kind: Modified, Old: prevVal, New: curVal})
		}
	}

	for key, curVal := range current {
		if _, seen := previous[key]; seen {
			continue
		}
		*cs = append(*cs, Change{Path: join(prefix, key), Kind: Added, New: curVal})
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case nil:
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

// equal treats numerically equal values as equal regardless of their Go type, so a
// snapshot decoded from JSON (float64) matches one built in memory (int).
func equal(a, b any) bool {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af == bf
		}
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Format renders a snapshot value for display. nil is shown as "null".
func Format(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, Format(item))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprint(t)
	}
}
