package exchange

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// The wire form is the JSON text exchanged with the JS half of the
// marshaller. null, booleans, strings and finite numbers map to themselves,
// lists to arrays; everything else is a tagged object:
//
//	{"$":"num","v":"NaN"|"Infinity"|"-Infinity"|"-0"}
//	{"$":"date","v":<ms since epoch>}
//	{"$":"re","p":<source>,"f":<flags>}
//	{"$":"map","v":[[key, value], ...]}
//	{"$":"shared","id":<list id>}
const (
	tagKey    = "$"
	tagNum    = "num"
	tagDate   = "date"
	tagRegex  = "re"
	tagMap    = "map"
	tagShared = "shared"
)

// Binder decides whether a shared list may enter a runtime and returns the
// id the runtime will know it by.
type Binder func(l *SharedList) (id uint64, ok bool)

// Resolver maps a wire id back to the shared list it names, or nil.
type Resolver func(id uint64) *SharedList

// EncodeWire renders v in wire form. Shared lists rejected by bind are
// encoded as null.
func EncodeWire(v Value, bind Binder) (string, error) {
	b, err := json.Marshal(toWire(v, bind))
	if err != nil {
		return "", fmt.Errorf("encoding exchange value: %w", err)
	}
	return string(b), nil
}

func toWire(v Value, bind Binder) any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		switch {
		case math.IsNaN(v.n):
			return map[string]any{tagKey: tagNum, "v": "NaN"}
		case math.IsInf(v.n, 1):
			return map[string]any{tagKey: tagNum, "v": "Infinity"}
		case math.IsInf(v.n, -1):
			return map[string]any{tagKey: tagNum, "v": "-Infinity"}
		case v.n == 0 && math.Signbit(v.n):
			return map[string]any{tagKey: tagNum, "v": "-0"}
		}
		return v.n
	case KindString:
		return v.s
	case KindDate:
		return map[string]any{tagKey: tagDate, "v": v.t.UnixMilli()}
	case KindRegex:
		return map[string]any{tagKey: tagRegex, "p": v.re.Pattern, "f": v.re.Flags}
	case KindList:
		out := make([]any, len(v.list))
		for i, it := range v.list {
			out[i] = toWire(it, bind)
		}
		return out
	case KindMap:
		pairs := make([]any, 0, v.m.Len())
		v.m.Range(func(k string, val Value) bool {
			pairs = append(pairs, []any{k, toWire(val, bind)})
			return true
		})
		return map[string]any{tagKey: tagMap, "v": pairs}
	case KindSharedList:
		if bind == nil {
			return nil
		}
		id, ok := bind(v.shared)
		if !ok {
			return nil
		}
		return map[string]any{tagKey: tagShared, "id": id}
	}
	return nil
}

// DecodeWire parses wire text produced by the JS half. Unknown tags and
// unresolvable shared ids decode to Null; malformed JSON is an error.
func DecodeWire(s string, resolve Resolver) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Null(), fmt.Errorf("decoding exchange value: %w", err)
	}
	return fromWire(raw, resolve), nil
}

func fromWire(raw any, resolve Resolver) Value {
	switch x := raw.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(x)
	case string:
		return String(x)
	case json.Number:
		f, err := strconv.ParseFloat(x.String(), 64)
		if err != nil {
			return Null()
		}
		return Number(f)
	case []any:
		items := make([]Value, len(x))
		for i, it := range x {
			items[i] = fromWire(it, resolve)
		}
		return Value{kind: KindList, list: items}
	case map[string]any:
		return fromTagged(x, resolve)
	}
	return Null()
}

func fromTagged(obj map[string]any, resolve Resolver) Value {
	tag, _ := obj[tagKey].(string)
	switch tag {
	case tagNum:
		switch obj["v"] {
		case "NaN":
			return Number(math.NaN())
		case "Infinity":
			return Number(math.Inf(1))
		case "-Infinity":
			return Number(math.Inf(-1))
		case "-0":
			return Number(math.Copysign(0, -1))
		}
	case tagDate:
		n, ok := obj["v"].(json.Number)
		if !ok {
			return Null()
		}
		ms, err := n.Float64()
		if err != nil || math.IsNaN(ms) {
			return Null()
		}
		return Value{kind: KindDate, t: timeFromMillis(int64(ms))}
	case tagRegex:
		p, _ := obj["p"].(string)
		f, _ := obj["f"].(string)
		return RegExp(p, f)
	case tagMap:
		pairs, _ := obj["v"].([]any)
		m := NewMap()
		for _, p := range pairs {
			kv, ok := p.([]any)
			if !ok || len(kv) != 2 {
				continue
			}
			k, ok := kv[0].(string)
			if !ok {
				continue
			}
			m.Set(k, fromWire(kv[1], resolve))
		}
		return MapOf(m)
	case tagShared:
		n, ok := obj["id"].(json.Number)
		if !ok || resolve == nil {
			return Null()
		}
		id, err := strconv.ParseUint(n.String(), 10, 64)
		if err != nil {
			return Null()
		}
		return Shared(resolve(id))
	}
	return Null()
}
