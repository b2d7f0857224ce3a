package exchange

import (
	"math"
	"regexp"
	"testing"
	"time"
)

func sampleMap() *Map {
	return NewMap().
		Set("zeta", Number(1)).
		Set("alpha", String("a")).
		Set("nested", List(Bool(true), Null(), MapOf(NewMap().Set("k", Number(-2.5)))))
}

func TestEqual_OrderSensitiveMaps(t *testing.T) {
	a := MapOf(NewMap().Set("a", Number(1)).Set("b", Number(2)))
	b := MapOf(NewMap().Set("b", Number(2)).Set("a", Number(1)))
	if Equal(a, b) {
		t.Error("maps with different key order should not be equal")
	}
	if !Equal(a, a.Clone()) {
		t.Error("clone should equal original")
	}
}

func TestEqual_Numbers(t *testing.T) {
	if !Equal(Number(math.NaN()), Number(math.NaN())) {
		t.Error("NaN should equal NaN")
	}
	if Equal(Number(0), Number(math.Copysign(0, -1))) {
		t.Error("0 and -0 should differ")
	}
	if Equal(Number(1), String("1")) {
		t.Error("different kinds should differ")
	}
}

func TestMap_SetKeepsPosition(t *testing.T) {
	m := NewMap().Set("a", Number(1)).Set("b", Number(2)).Set("a", Number(3))
	keys := m.Keys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("keys = %v, want [a b]", keys)
	}
	if v, _ := m.Get("a"); v.Number() != 3 {
		t.Errorf("a = %v, want 3", v)
	}
}

func TestDate_MillisecondPrecision(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.FixedZone("X", 3600))
	v := Date(ts)
	if got := v.Time(); got.Nanosecond() != 123000000 || got.Location() != time.UTC {
		t.Errorf("date = %v, want ms precision in UTC", got)
	}
	if !v.Time().Equal(ts.Truncate(time.Millisecond)) {
		t.Errorf("date = %v, want %v", v.Time(), ts)
	}
}

func TestFromGo(t *testing.T) {
	shared := NewSharedList()
	tests := []struct {
		name string
		in   any
		want Value
	}{
		{"nil", nil, Null()},
		{"bool", true, Bool(true)},
		{"int", 42, Number(42)},
		{"uint8", uint8(7), Number(7)},
		{"float32", float32(1.5), Number(1.5)},
		{"string", "hi", String("hi")},
		{"regexp", regexp.MustCompile(`a+b`), RegExp("a+b", "")},
		{"regex", Regex{Pattern: "x", Flags: "gi"}, RegExp("x", "gi")},
		{"slice", []any{1, "two", nil}, List(Number(1), String("two"), Null())},
		{"typed slice", []int{1, 2}, List(Number(1), Number(2))},
		{"map sorted", map[string]int{"b": 2, "a": 1},
			MapOf(NewMap().Set("a", Number(1)).Set("b", Number(2)))},
		{"ordered map", sampleMap(), MapOf(sampleMap())},
		{"shared", shared, Shared(shared)},
		{"pointer to int", func() *int { n := 3; return &n }(), Number(3)},
		{"struct", struct{ A int }{1}, Null()},
		{"struct pointer", &struct{ A int }{1}, Null()},
		{"channel", make(chan int), Null()},
		{"func", func() {}, Null()},
		{"int keyed map", map[int]string{1: "a"}, Null()},
		{"nested unrepresentable", []any{func() {}}, List(Null())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromGo(tt.in)
			if !Equal(got, tt.want) {
				t.Errorf("FromGo(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFromGo_CopiesLists(t *testing.T) {
	src := []any{1, 2}
	v := FromGo(src)
	src[0] = 99
	if v.Index(0).Number() != 1 {
		t.Errorf("list aliases caller memory: %v", v)
	}
}

// fromGoWithin converts x on another goroutine so a runaway conversion
// fails the test instead of hanging it.
func fromGoWithin(t *testing.T, x any, d time.Duration) Value {
	t.Helper()
	done := make(chan Value, 1)
	go func() { done <- FromGo(x) }()
	select {
	case v := <-done:
		return v
	case <-time.After(d):
		t.Fatalf("FromGo(%T) still running after %v", x, d)
		return Null()
	}
}

func TestFromGo_Cycles(t *testing.T) {
	m := map[string]any{"name": "m"}
	m["a"] = m
	m["b"] = m
	want := MapOf(NewMap().Set("a", Null()).Set("b", Null()).Set("name", String("m")))
	if got := fromGoWithin(t, m, 5*time.Second); !Equal(got, want) {
		t.Errorf("doubly self-referencing map = %v, want %v", got, want)
	}

	s := []any{"s", nil}
	s[1] = s
	if got := fromGoWithin(t, s, 5*time.Second); !Equal(got, List(String("s"), Null())) {
		t.Errorf("self-referencing slice = %v", got)
	}

	var p any
	p = &p
	if got := fromGoWithin(t, &p, 5*time.Second); !got.IsNull() {
		t.Errorf("self-referencing pointer = %v, want null", got)
	}

	om := NewMap().Set("k", Number(1))
	om.Set("self", MapOf(om))
	if got := fromGoWithin(t, om, 5*time.Second); !Equal(got, MapOf(NewMap().Set("k", Number(1)).Set("self", Null()))) {
		t.Errorf("self-containing ordered map = %v", got)
	}
}

func TestFromGo_SharedSubstructure(t *testing.T) {
	inner := map[string]any{"x": 1}
	got := FromGo(map[string]any{"a": inner, "b": inner})
	sub := MapOf(NewMap().Set("x", Number(1)))
	if !Equal(got, MapOf(NewMap().Set("a", sub).Set("b", sub))) {
		t.Errorf("repeated (acyclic) map = %v, want both copies", got)
	}

	// Forty levels that each reference the next twice expand to 2^40
	// nodes; conversion has to give up rather than expand them all.
	next := map[string]any{"leaf": true}
	for i := 0; i < 40; i++ {
		next = map[string]any{"l": next, "r": next}
	}
	if got := fromGoWithin(t, next, 30*time.Second); got.Kind() != KindMap {
		t.Errorf("wide value = %v, want a (truncated) map", got.Kind())
	}
}

func TestInterface(t *testing.T) {
	v := MapOf(NewMap().Set("n", Number(2)).Set("l", List(String("x"), Bool(false))))
	got, ok := v.Interface().(map[string]any)
	if !ok {
		t.Fatalf("Interface() = %T, want map[string]any", v.Interface())
	}
	if got["n"] != 2.0 {
		t.Errorf("n = %v, want 2", got["n"])
	}
	l, ok := got["l"].([]any)
	if !ok || len(l) != 2 || l[0] != "x" || l[1] != false {
		t.Errorf("l = %v, want [x false]", got["l"])
	}
	if Null().Interface() != nil {
		t.Error("Null should convert to nil")
	}
}
