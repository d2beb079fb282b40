// Package quorum implements the result-equality relation and the dispatch algorithm the
// spec calls QuorumRouter: it compares results from distinct endpoints under a
// method-parameterized equality and decides whether enough of them agree to accept an
// answer.
package quorum

import (
	"bytes"
	"encoding/json"
	"sort"
)

// excludedFields maps a method name to the set of top-level result fields that must be
// ignored when comparing results for that method. eth_getBlockByNumber excludes "miner"
// because it has been observed to diverge between honest providers during node-software
// transitions — the exclusion is a parameterized comparator, never a mutation of the
// decoded value.
var excludedFields = map[string]map[string]bool{
	"eth_getBlockByNumber": {"miner": true},
}

// Value is a canonical JSON value: a sum type over null, bool, number, string, array, and
// object, so equality can be defined once without round-tripping through reflect.DeepEqual
// on arbitrary Go interface{} trees (which would not let us exclude a field by name inside
// nested maps without mutating them).
type Value struct {
	kind    valueKind
	boolean bool
	number  json.Number
	str     string
	arr     []Value
	obj     map[string]Value
}

type valueKind int

const (
	kindNull valueKind = iota
	kindBool
	kindNumber
	kindString
	kindArray
	kindObject
)

// Parse decodes raw JSON into a canonical Value. Numbers are kept as json.Number so that
// large integers compare exactly rather than through float64 rounding; hex results such as
// "0x10" are JSON strings and compare as strings.
func Parse(raw json.RawMessage) (Value, error) {
	var decoded any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return Value{}, err
	}
	return fromInterface(decoded), nil
}

func fromInterface(v any) Value {
	switch t := v.(type) {
	case nil:
		return Value{kind: kindNull}
	case bool:
		return Value{kind: kindBool, boolean: t}
	case json.Number:
		return Value{kind: kindNumber, number: t}
	case string:
		return Value{kind: kindString, str: t}
	case []any:
		arr := make([]Value, len(t))
		for i, e := range t {
			arr[i] = fromInterface(e)
		}
		return Value{kind: kindArray, arr: arr}
	case map[string]any:
		obj := make(map[string]Value, len(t))
		for k, e := range t {
			obj[k] = fromInterface(e)
		}
		return Value{kind: kindObject, obj: obj}
	default:
		return Value{kind: kindNull}
	}
}

// Equal reports whether a and b are deep-equal, excluding any fields configured for method.
// The exclusion only applies at the top level of an object result, matching the spec's
// "miner" exclusion for eth_getBlockByNumber.
func Equal(method string, a, b Value) bool {
	excluded := excludedFields[method]
	return equalValue(a, b, excluded)
}

func equalValue(a, b Value, excluded map[string]bool) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case kindNull:
		return true
	case kindBool:
		return a.boolean == b.boolean
	case kindNumber:
		return a.number == b.number
	case kindString:
		return a.str == b.str
	case kindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !equalValue(a.arr[i], b.arr[i], nil) {
				return false
			}
		}
		return true
	case kindObject:
		aKeys := filteredKeys(a.obj, excluded)
		bKeys := filteredKeys(b.obj, excluded)
		if len(aKeys) != len(bKeys) {
			return false
		}
		for _, k := range aKeys {
			bv, ok := b.obj[k]
			if !ok {
				return false
			}
			if !equalValue(a.obj[k], bv, nil) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func filteredKeys(obj map[string]Value, excluded map[string]bool) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		if excluded != nil && excluded[k] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
