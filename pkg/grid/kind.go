package grid

import (
	"fmt"
	"math"
)

// Kind is the closed tag over the storage representations a column can use.
type Kind string

const (
	// KindInt stores signed integers.
	KindInt Kind = "int"
	// KindFloat stores 64-bit floating point values.
	KindFloat Kind = "float"
	// KindComplex stores 128-bit complex values.
	KindComplex Kind = "complex"
	// KindBool stores booleans.
	KindBool Kind = "bool"
	// KindString stores strings.
	KindString Kind = "string"
	// KindObject stores arbitrary opaque values. Only the gob persistence
	// form can serialize object columns.
	KindObject Kind = "object"
)

// Validate checks if the kind is one of the closed set.
func (k Kind) Validate() error {
	switch k {
	case KindInt, KindFloat, KindComplex, KindBool, KindString, KindObject:
		return nil
	default:
		return fmt.Errorf("invalid kind: %s", k)
	}
}

// Numeric returns true for kinds the array-oriented persistence forms can
// serialize.
func (k Kind) Numeric() bool {
	switch k {
	case KindInt, KindFloat, KindComplex, KindBool:
		return true
	default:
		return false
	}
}

// Empty returns the kind's empty-cell sentinel: NaN for floating kinds,
// the zero value otherwise, nil for objects.
func (k Kind) Empty() interface{} {
	switch k {
	case KindInt:
		return int64(0)
	case KindFloat:
		return math.NaN()
	case KindComplex:
		return complex(math.NaN(), math.NaN())
	case KindBool:
		return false
	case KindString:
		return ""
	default:
		return nil
	}
}

// Classify picks the storage kind for a sequence of values with a
// deterministic pass: all-integer sequences map to int, any float widens to
// float, any complex widens to complex, homogeneous bool and string sequences
// keep their kind, and anything else is an opaque object column.
func Classify(values []interface{}) Kind {
	if len(values) == 0 {
		return KindObject
	}

	allInt := true
	allNumeric := true
	hasComplex := false
	allBool := true
	allString := true

	for _, v := range values {
		switch v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			allBool = false
			allString = false
		case float32, float64:
			allInt = false
			allBool = false
			allString = false
		case complex64, complex128:
			allInt = false
			hasComplex = true
			allBool = false
			allString = false
		case bool:
			allInt = false
			allNumeric = false
			allString = false
		case string:
			allInt = false
			allNumeric = false
			allBool = false
		default:
			return KindObject
		}
	}

	switch {
	case allNumeric && hasComplex:
		return KindComplex
	case allNumeric && allInt:
		return KindInt
	case allNumeric:
		return KindFloat
	case allBool:
		return KindBool
	case allString:
		return KindString
	default:
		return KindObject
	}
}

// Coerce converts a value to the kind's canonical storage representation.
// Values that do not fit the kind are returned unchanged; validation
// happens at the persistence boundary.
func (k Kind) Coerce(v interface{}) interface{} {
	switch k {
	case KindInt:
		if i, ok := toInt64(v); ok {
			return i
		}
	case KindFloat:
		if f, ok := toFloat64(v); ok {
			return f
		}
	case KindComplex:
		if c, ok := toComplex128(v); ok {
			return c
		}
	}
	return v
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	}
	return 0, false
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

func toComplex128(v interface{}) (complex128, bool) {
	switch n := v.(type) {
	case complex128:
		return n, true
	case complex64:
		return complex128(n), true
	}
	if f, ok := toFloat64(v); ok {
		return complex(f, 0), true
	}
	return 0, false
}
