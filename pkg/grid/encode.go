package grid

import (
	"fmt"
	"strconv"
)

// EncodeScalar renders one cell value as a string. The encoding is shared by
// the array-oriented persistence forms and the worker wire protocol; float
// NaN round-trips as "NaN". Object values have no string form.
func EncodeScalar(kind Kind, v interface{}) (string, error) {
	switch kind {
	case KindInt:
		switch n := v.(type) {
		case int64:
			return strconv.FormatInt(n, 10), nil
		case int:
			return strconv.Itoa(n), nil
		}
	case KindFloat:
		if f, ok := v.(float64); ok {
			return strconv.FormatFloat(f, 'g', -1, 64), nil
		}
	case KindComplex:
		if c, ok := v.(complex128); ok {
			return strconv.FormatComplex(c, 'g', -1, 128), nil
		}
	case KindBool:
		if b, ok := v.(bool); ok {
			return strconv.FormatBool(b), nil
		}
	case KindString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case KindObject:
		return "", NewFormatError("object values have no string encoding")
	}
	return "", NewFormatError(fmt.Sprintf("cannot encode %T as %s", v, kind))
}

// DecodeScalar parses one cell value encoded by EncodeScalar.
func DecodeScalar(kind Kind, s string) (interface{}, error) {
	switch kind {
	case KindInt:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, NewFormatError("invalid int cell value").WithErr(err)
		}
		return n, nil
	case KindFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, NewFormatError("invalid float cell value").WithErr(err)
		}
		return f, nil
	case KindComplex:
		c, err := strconv.ParseComplex(s, 128)
		if err != nil {
			return nil, NewFormatError("invalid complex cell value").WithErr(err)
		}
		return c, nil
	case KindBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, NewFormatError("invalid bool cell value").WithErr(err)
		}
		return b, nil
	case KindString:
		return s, nil
	default:
		return nil, NewFormatError(fmt.Sprintf("cannot decode kind %s", kind))
	}
}
