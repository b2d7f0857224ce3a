package exchange

import "strings"

// Map is a string-keyed map that remembers insertion order. Setting an
// existing key keeps its original position.
//
// Order survives a trip through a script except for integer-like keys
// ("0", "1", "42"): JavaScript objects list those first, in ascending
// numeric order, so {b: 1, "1": 2} comes back as {"1": 2, b: 1}.
type Map struct {
	keys   []string
	values map[string]Value
}

// NewMap returns an empty map.
func NewMap() *Map {
	return &Map{values: make(map[string]Value)}
}

// Set stores val under key and returns m for chaining.
func (m *Map) Set(key string, val Value) *Map {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = val
	return m
}

// Get returns the value stored under key.
func (m *Map) Get(key string) (Value, bool) {
	if m == nil {
		return Null(), false
	}
	v, ok := m.values[key]
	return v, ok
}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	cp := make([]string, len(m.keys))
	copy(cp, m.keys)
	return cp
}

// Range calls fn for each entry in insertion order until fn returns false.
func (m *Map) Range(fn func(key string, val Value) bool) {
	if m == nil {
		return
	}
	for _, k := range m.keys {
		if !fn(k, m.values[k]) {
			return
		}
	}
}

func (m *Map) equal(o *Map) bool {
	if m.Len() != o.Len() {
		return false
	}
	for i, k := range m.keys {
		if o.keys[i] != k || !Equal(m.values[k], o.values[k]) {
			return false
		}
	}
	return true
}

func (m *Map) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range m.Keys() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(k)
		sb.WriteString(": ")
		sb.WriteString(m.values[k].String())
	}
	sb.WriteByte('}')
	return sb.String()
}
