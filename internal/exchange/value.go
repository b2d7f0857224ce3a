// Package exchange defines the closed set of values allowed to cross
// between the caller goroutines and the engine goroutine, and converts
// them to and from Go values and the JS wire form.
package exchange

import (
	"fmt"
	"math"
	"time"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindDate
	KindRegex
	KindList
	KindMap
	KindSharedList
)

var kindNames = [...]string{
	KindNull:       "null",
	KindBool:       "bool",
	KindNumber:     "number",
	KindString:     "string",
	KindDate:       "date",
	KindRegex:      "regex",
	KindList:       "list",
	KindMap:        "map",
	KindSharedList: "shared-list",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Regex is a regular expression in JS syntax.
type Regex struct {
	Pattern string
	Flags   string
}

// Value is an immutable exchange value. The zero Value is Null.
//
// Lists and maps are deep-copied whenever they cross the boundary; a
// SharedList is carried by reference.
type Value struct {
	kind   Kind
	b      bool
	n      float64
	s      string
	t      time.Time
	re     Regex
	list   []Value
	m      *Map
	shared *SharedList
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool wraps b.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number wraps n.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// String wraps s.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Date wraps t, truncated to millisecond precision like a JS Date.
func Date(t time.Time) Value {
	return Value{kind: KindDate, t: timeFromMillis(t.UnixMilli())}
}

// RegExp wraps a JS regular expression source and its flags.
func RegExp(pattern, flags string) Value {
	return Value{kind: KindRegex, re: Regex{Pattern: pattern, Flags: flags}}
}

// List wraps a copy of items.
func List(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindList, list: cp}
}

// MapOf wraps m. A nil map becomes an empty one.
func MapOf(m *Map) Value {
	if m == nil {
		m = NewMap()
	}
	return Value{kind: KindMap, m: m}
}

// Shared wraps a reference to l. A nil list is Null.
func Shared(l *SharedList) Value {
	if l == nil {
		return Null()
	}
	return Value{kind: KindSharedList, shared: l}
}

// Kind reports the variant.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is Null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Bool returns the boolean payload, false for other kinds.
func (v Value) Bool() bool { return v.b }

// Number returns the numeric payload, NaN for other kinds.
func (v Value) Number() float64 {
	if v.kind != KindNumber {
		return math.NaN()
	}
	return v.n
}

// Str returns the string payload, "" for other kinds.
func (v Value) Str() string { return v.s }

// Time returns the date payload.
func (v Value) Time() time.Time { return v.t }

// Regex returns the regex payload.
func (v Value) Regex() Regex { return v.re }

// Len returns the number of list items or map entries.
func (v Value) Len() int {
	switch v.kind {
	case KindList:
		return len(v.list)
	case KindMap:
		return v.m.Len()
	}
	return 0
}

// Index returns the i-th list item, Null when out of range.
func (v Value) Index(i int) Value {
	if v.kind != KindList || i < 0 || i >= len(v.list) {
		return Null()
	}
	return v.list[i]
}

// Items returns a copy of the list items.
func (v Value) Items() []Value {
	if v.kind != KindList {
		return nil
	}
	cp := make([]Value, len(v.list))
	copy(cp, v.list)
	return cp
}

// Map returns the map payload, nil for other kinds.
func (v Value) Map() *Map {
	if v.kind != KindMap {
		return nil
	}
	return v.m
}

// Get returns the map entry for key, Null when absent.
func (v Value) Get(key string) Value {
	if v.kind != KindMap {
		return Null()
	}
	val, _ := v.m.Get(key)
	return val
}

// SharedList returns the referenced list, nil for other kinds.
func (v Value) SharedList() *SharedList { return v.shared }

// Equal reports structural equality. Map comparison is order-sensitive,
// so a map with integer-like keys is not Equal to itself after a round
// trip through a script (see Map); shared lists compare by identity. NaN
// equals NaN so round trips of non-finite numbers compare equal.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		if math.IsNaN(a.n) && math.IsNaN(b.n) {
			return true
		}
		return a.n == b.n && math.Signbit(a.n) == math.Signbit(b.n)
	case KindString:
		return a.s == b.s
	case KindDate:
		return a.t.Equal(b.t)
	case KindRegex:
		return a.re == b.re
	case KindList:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		return a.m.equal(b.m)
	case KindSharedList:
		return a.shared == b.shared
	}
	return false
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprint(v.b)
	case KindNumber:
		return fmt.Sprint(v.n)
	case KindString:
		return fmt.Sprintf("%q", v.s)
	case KindDate:
		return v.t.Format(time.RFC3339Nano)
	case KindRegex:
		return "/" + v.re.Pattern + "/" + v.re.Flags
	case KindList:
		return fmt.Sprint(v.list)
	case KindMap:
		return v.m.String()
	case KindSharedList:
		return fmt.Sprintf("SharedList(%d)", v.shared.ID())
	}
	return v.kind.String()
}

// Clone returns a deep copy of v. Shared lists are not copied.
func (v Value) Clone() Value {
	switch v.kind {
	case KindList:
		cp := make([]Value, len(v.list))
		for i, it := range v.list {
			cp[i] = it.Clone()
		}
		v.list = cp
	case KindMap:
		m := NewMap()
		v.m.Range(func(k string, val Value) bool {
			m.Set(k, val.Clone())
			return true
		})
		v.m = m
	}
	return v
}

func timeFromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
