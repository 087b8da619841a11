// Package envmap provides the environment snapshot that preparation works
// against. Stages mutate a private copy; the caller's map only changes when
// the engine commits the diff after a fully successful run.
package envmap

import (
	"os"
	"sort"
	"strings"
)

// Map is a mutable snapshot of environment variables.
type Map map[string]string

// FromOS captures the current process environment.
func FromOS() Map {
	m := make(Map)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			m[kv[:i]] = kv[i+1:]
		}
	}
	return m
}

// Clone returns an independent copy of the map.
func (m Map) Clone() Map {
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Has reports whether the variable is set, regardless of value.
func (m Map) Has(key string) bool {
	_, ok := m[key]
	return ok
}

// SortedKeys returns the variable names in lexical order.
func (m Map) SortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Slice renders the map as KEY=VALUE pairs in lexical key order, suitable
// for exec.Cmd.Env.
func (m Map) Slice() []string {
	out := make([]string, 0, len(m))
	for _, k := range m.SortedKeys() {
		out = append(out, k+"="+m[k])
	}
	return out
}

// Diff returns the keys whose values differ between m and old, including
// keys absent from old. Keys removed from m are not reported; preparation
// only ever adds or overwrites variables.
func (m Map) Diff(old Map) []string {
	var changed []string
	for _, k := range m.SortedKeys() {
		if prev, ok := old[k]; !ok || prev != m[k] {
			changed = append(changed, k)
		}
	}
	return changed
}

// ApplyDiff copies every changed value from src into m.
func (m Map) ApplyDiff(src Map, keys []string) {
	for _, k := range keys {
		if v, ok := src[k]; ok {
			m[k] = v
		}
	}
}
