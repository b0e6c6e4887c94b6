package ir

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"time"
	"unicode/utf16"
)

// IRValue is a sealed interface for the canonical value types.
// Only IRString, IRInt, IRBool, IRArray and IRObject implement it.
type IRValue interface {
	irValue()
}

// IRString is a string value.
type IRString string

func (IRString) irValue() {}

// IRInt is an integer value. Always int64.
type IRInt int64

func (IRInt) irValue() {}

// IRBool is a boolean value.
type IRBool bool

func (IRBool) irValue() {}

// IRArray is an ordered list of values.
type IRArray []IRValue

func (IRArray) irValue() {}

// IRObject maps string keys to values.
// Use SortedKeys() for deterministic iteration.
type IRObject map[string]IRValue

func (IRObject) irValue() {}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings compares UTF-8 bytes, which orders supplementary-plane
// characters differently.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// FromAny converts a decoded fixture value (YAML, CUE or JSON) to an IRValue.
// Integral floats become IRInt; other floats are rejected because fixtures
// must state numbers the way the UI displays them, as strings.
func FromAny(v any) (IRValue, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null values are not allowed")
	case IRValue:
		return val, nil
	case string:
		return IRString(val), nil
	case bool:
		return IRBool(val), nil
	case int:
		return IRInt(int64(val)), nil
	case int64:
		return IRInt(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("number %d out of range: quote it as a string", val)
		}
		return IRInt(int64(val)), nil
	case float64:
		if val == float64(int64(val)) {
			return IRInt(int64(val)), nil
		}
		return nil, fmt.Errorf("non-integral number %v: quote it as a string", val)
	case []any:
		arr := make(IRArray, len(val))
		for i, elem := range val {
			irElem, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return arr, nil
	case map[string]any:
		obj := make(IRObject, len(val))
		for k, elem := range val {
			irElem, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = irElem
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type %T", v)
	}
}

// FromColumn converts a value scanned from database/sql into an IRValue.
// The second return is false for NULL, in which case the column should be
// omitted from the row object.
func FromColumn(v any) (IRValue, bool) {
	switch val := v.(type) {
	case nil:
		return nil, false
	case []byte:
		return IRString(string(val)), true
	case string:
		return IRString(val), true
	case int64:
		return IRInt(val), true
	case int32:
		return IRInt(int64(val)), true
	case int:
		return IRInt(int64(val)), true
	case uint64:
		// Unsigned ids above MaxInt64 keep their digits.
		if val > math.MaxInt64 {
			return IRString(strconv.FormatUint(val, 10)), true
		}
		return IRInt(int64(val)), true
	case uint32:
		return IRInt(int64(val)), true
	case bool:
		return IRBool(val), true
	case float64:
		return IRString(strconv.FormatFloat(val, 'g', -1, 64)), true
	case float32:
		return IRString(strconv.FormatFloat(float64(val), 'g', -1, 32)), true
	case time.Time:
		return IRString(val.UTC().Format(time.RFC3339Nano)), true
	default:
		return IRString(fmt.Sprintf("%v", val)), true
	}
}

// Text renders a scalar value the way a form input shows it.
// Arrays and objects are rendered as canonical JSON.
func Text(v IRValue) string {
	switch val := v.(type) {
	case nil:
		return ""
	case IRString:
		return string(val)
	case IRInt:
		return strconv.FormatInt(int64(val), 10)
	case IRBool:
		return strconv.FormatBool(bool(val))
	default:
		b, err := MarshalCanonical(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	}
}

// ToAny converts an IRValue back to plain Go values, for JSON output and
// diffing.
func ToAny(v IRValue) any {
	switch val := v.(type) {
	case IRString:
		return string(val)
	case IRInt:
		return int64(val)
	case IRBool:
		return bool(val)
	case IRArray:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = ToAny(e)
		}
		return out
	case IRObject:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = ToAny(e)
		}
		return out
	default:
		return nil
	}
}
