package exchange

import (
	"reflect"
	"regexp"
	"sort"
	"time"
)

// FromGo converts a Go value into an exchange value. Anything that is not
// plain data (or a *SharedList) is unrepresentable and becomes Null, as does
// a map, slice or pointer that refers back to one of its own ancestors.
func FromGo(x any) Value {
	c := converter{onPath: make(map[visit]bool), maps: make(map[*Map]bool)}
	return c.convert(reflect.ValueOf(x), 0)
}

const (
	// maxDepth bounds nesting.
	maxDepth = 64
	// maxNodes bounds the expanded size of values that share substructure;
	// anything past it converts to Null.
	maxNodes = 1 << 20
)

// visit identifies a reference-typed Go value on the current path.
type visit struct {
	ptr uintptr
	typ reflect.Type
}

type converter struct {
	onPath map[visit]bool
	maps   map[*Map]bool
	nodes  int
}

// enter marks rv as being converted. It reports false if rv is already on
// the path, which means rv contains itself.
func (c *converter) enter(rv reflect.Value) (visit, bool) {
	v := visit{ptr: rv.Pointer(), typ: rv.Type()}
	if c.onPath[v] {
		return v, false
	}
	c.onPath[v] = true
	return v, true
}

func (c *converter) convert(rv reflect.Value, depth int) Value {
	c.nodes++
	if !rv.IsValid() || depth > maxDepth || c.nodes > maxNodes {
		return Null()
	}
	switch x := rv.Interface().(type) {
	case Value:
		return c.value(x, depth)
	case *Map:
		if x == nil {
			return Null()
		}
		return c.value(MapOf(x), depth)
	case *SharedList:
		return Shared(x)
	case time.Time:
		return Date(x)
	case Regex:
		return RegExp(x.Pattern, x.Flags)
	case *regexp.Regexp:
		if x == nil {
			return Null()
		}
		return RegExp(x.String(), "")
	}

	switch rv.Kind() {
	case reflect.Bool:
		return Bool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Number(float64(rv.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Number(float64(rv.Uint()))
	case reflect.Float32, reflect.Float64:
		return Number(rv.Float())
	case reflect.String:
		return String(rv.String())
	case reflect.Interface, reflect.Pointer:
		if rv.IsNil() {
			return Null()
		}
		if rv.Kind() == reflect.Interface {
			return c.convert(rv.Elem(), depth+1)
		}
		if rv.Elem().Kind() == reflect.Struct {
			return Null()
		}
		v, ok := c.enter(rv)
		if !ok {
			return Null()
		}
		defer delete(c.onPath, v)
		return c.convert(rv.Elem(), depth+1)
	case reflect.Slice:
		if rv.IsNil() {
			return Null()
		}
		v, ok := c.enter(rv)
		if !ok {
			return Null()
		}
		defer delete(c.onPath, v)
		return c.list(rv, depth)
	case reflect.Array:
		return c.list(rv, depth)
	case reflect.Map:
		if rv.IsNil() || rv.Type().Key().Kind() != reflect.String {
			return Null()
		}
		v, ok := c.enter(rv)
		if !ok {
			return Null()
		}
		defer delete(c.onPath, v)
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		m := NewMap()
		for _, k := range keys {
			m.Set(k.String(), c.convert(rv.MapIndex(k), depth+1))
		}
		return MapOf(m)
	}
	return Null()
}

// value copies an exchange value, cutting any map that contains itself.
func (c *converter) value(v Value, depth int) Value {
	c.nodes++
	if depth > maxDepth || c.nodes > maxNodes {
		return Null()
	}
	switch v.kind {
	case KindList:
		items := make([]Value, len(v.list))
		for i, it := range v.list {
			items[i] = c.value(it, depth+1)
		}
		v.list = items
	case KindMap:
		if c.maps[v.m] {
			return Null()
		}
		c.maps[v.m] = true
		defer delete(c.maps, v.m)
		m := NewMap()
		v.m.Range(func(k string, val Value) bool {
			m.Set(k, c.value(val, depth+1))
			return true
		})
		v.m = m
	}
	return v
}

func (c *converter) list(rv reflect.Value, depth int) Value {
	items := make([]Value, rv.Len())
	for i := range items {
		items[i] = c.convert(rv.Index(i), depth+1)
	}
	return Value{kind: KindList, list: items}
}

// Interface converts v back into plain Go data: nil, bool, float64, string,
// time.Time, Regex, []any, map[string]any or *SharedList. Map order is not
// kept; use Value.Map for ordered access.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindDate:
		return v.t
	case KindRegex:
		return v.re
	case KindList:
		out := make([]any, len(v.list))
		for i, it := range v.list {
			out[i] = it.Interface()
		}
		return out
	case KindMap:
		out := make(map[string]any, v.m.Len())
		v.m.Range(func(k string, val Value) bool {
			out[k] = val.Interface()
			return true
		})
		return out
	case KindSharedList:
		return v.shared
	}
	return nil
}
