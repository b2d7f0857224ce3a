package exchange

import (
	"math"
	"testing"
	"time"
)

func TestWire_RoundTrip(t *testing.T) {
	values := []Value{
		Null(),
		Bool(false),
		Number(0),
		Number(-1.25e-7),
		Number(1e21),
		Number(math.NaN()),
		Number(math.Inf(1)),
		Number(math.Inf(-1)),
		Number(math.Copysign(0, -1)),
		String(""),
		String("line\nbreak   \"quoted\" 💡"),
		Date(time.Date(1999, 12, 31, 23, 59, 59, 999000000, time.UTC)),
		Date(time.UnixMilli(-86400000)),
		RegExp(`^\d+$`, "gm"),
		List(),
		List(Number(1), List(String("deep")), Null()),
		MapOf(NewMap()),
		MapOf(sampleMap()),
		MapOf(NewMap().Set("$", String("not a tag")).Set("__proto__", Number(1))),
	}
	for _, v := range values {
		s, err := EncodeWire(v, nil)
		if err != nil {
			t.Fatalf("EncodeWire(%v): %v", v, err)
		}
		got, err := DecodeWire(s, nil)
		if err != nil {
			t.Fatalf("DecodeWire(%s): %v", s, err)
		}
		if !Equal(got, v) {
			t.Errorf("round trip of %v via %s = %v", v, s, got)
		}
	}
}

func TestWire_MapKeepsOrder(t *testing.T) {
	s, err := EncodeWire(MapOf(NewMap().Set("b", Number(1)).Set("a", Number(2))), nil)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"$":"map","v":[["b",1],["a",2]]}`
	if s != want {
		t.Errorf("wire = %s, want %s", s, want)
	}
}

func TestWire_SharedList(t *testing.T) {
	l := NewSharedList(Number(1))
	table := map[uint64]*SharedList{}
	bind := func(sl *SharedList) (uint64, bool) {
		if !sl.Bind("rt-1") {
			return 0, false
		}
		table[sl.ID()] = sl
		return sl.ID(), true
	}
	resolve := func(id uint64) *SharedList { return table[id] }

	s, err := EncodeWire(List(Shared(l)), bind)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeWire(s, resolve)
	if err != nil {
		t.Fatal(err)
	}
	if got.Index(0).SharedList() != l {
		t.Fatalf("shared list not passed by reference: %v", got)
	}

	foreign := NewSharedList()
	foreign.Bind("rt-2")
	s, err = EncodeWire(Shared(foreign), bind)
	if err != nil {
		t.Fatal(err)
	}
	if s != "null" {
		t.Errorf("list bound to another runtime encoded as %s, want null", s)
	}

	if s, _ := EncodeWire(Shared(l), nil); s != "null" {
		t.Errorf("shared list without binder encoded as %s, want null", s)
	}
}

func TestDecodeWire_Lossy(t *testing.T) {
	tests := map[string]Value{
		`{"$":"bogus"}`:            Null(),
		`{"plain":"object"}`:       Null(),
		`{"$":"date","v":null}`:    Null(),
		`{"$":"shared","id":9999}`: Null(),
		`{"$":"map","v":[["k"],[1,2],["ok",true]]}`: MapOf(NewMap().Set("ok", Bool(true))),
	}
	for in, want := range tests {
		got, err := DecodeWire(in, func(uint64) *SharedList { return nil })
		if err != nil {
			t.Fatalf("DecodeWire(%s): %v", in, err)
		}
		if !Equal(got, want) {
			t.Errorf("DecodeWire(%s) = %v, want %v", in, got, want)
		}
	}
	if _, err := DecodeWire(`{"unterminated"`, nil); err == nil {
		t.Error("expected error for malformed wire text")
	}
}
