package grid

import (
	"math"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		values []interface{}
		want   Kind
	}{
		{"all ints", []interface{}{1, 2, 3}, KindInt},
		{"mixed int widths", []interface{}{int8(1), int64(2), uint16(3)}, KindInt},
		{"int widened by float", []interface{}{1, 2.5}, KindFloat},
		{"all floats", []interface{}{0.1, 0.2}, KindFloat},
		{"complex widens everything numeric", []interface{}{1, 2.5, complex(1, 1)}, KindComplex},
		{"all bools", []interface{}{true, false}, KindBool},
		{"all strings", []interface{}{"a", "b"}, KindString},
		{"mixed bool and int", []interface{}{true, 1}, KindObject},
		{"mixed string and float", []interface{}{"a", 1.0}, KindObject},
		{"structs", []interface{}{struct{}{}}, KindObject},
		{"empty", nil, KindObject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.values); got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.values, got, tt.want)
			}
		})
	}
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		in   interface{}
		want interface{}
	}{
		{"int from int", KindInt, 3, int64(3)},
		{"int from uint32", KindInt, uint32(7), int64(7)},
		{"float from int", KindFloat, 2, 2.0},
		{"float from float32", KindFloat, float32(0.5), 0.5},
		{"complex from float", KindComplex, 1.5, complex(1.5, 0)},
		{"complex from complex64", KindComplex, complex64(complex(1, 2)), complex(1, 2)},
		{"bool passthrough", KindBool, true, true},
		{"string passthrough", KindString, "x", "x"},
		{"misfit left unchanged", KindInt, "nope", "nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.kind.Coerce(tt.in); got != tt.want {
				t.Errorf("Coerce(%v) = %v (%T), want %v (%T)", tt.in, got, got, tt.want, tt.want)
			}
		})
	}
}

func TestKindEmpty(t *testing.T) {
	if v := KindInt.Empty(); v != int64(0) {
		t.Errorf("int empty = %v", v)
	}
	if v := KindFloat.Empty(); !math.IsNaN(v.(float64)) {
		t.Errorf("float empty = %v, want NaN", v)
	}
	c := KindComplex.Empty().(complex128)
	if !math.IsNaN(real(c)) || !math.IsNaN(imag(c)) {
		t.Errorf("complex empty = %v, want NaN+NaNi", c)
	}
	if v := KindString.Empty(); v != "" {
		t.Errorf("string empty = %q", v)
	}
	if v := KindObject.Empty(); v != nil {
		t.Errorf("object empty = %v, want nil", v)
	}
}

func TestKindValidate(t *testing.T) {
	for _, k := range []Kind{KindInt, KindFloat, KindComplex, KindBool, KindString, KindObject} {
		if err := k.Validate(); err != nil {
			t.Errorf("Validate(%s) = %v", k, err)
		}
	}
	if err := Kind("decimal").Validate(); err == nil {
		t.Error("Validate accepted an unknown kind")
	}
}

func TestScalarRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		v    interface{}
	}{
		{"int", KindInt, int64(-42)},
		{"float", KindFloat, 0.25},
		{"float NaN", KindFloat, math.NaN()},
		{"float inf", KindFloat, math.Inf(1)},
		{"complex", KindComplex, complex(1.5, -2.5)},
		{"bool", KindBool, true},
		{"string", KindString, "hello world"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := EncodeScalar(tt.kind, tt.v)
			if err != nil {
				t.Fatalf("EncodeScalar: %v", err)
			}
			got, err := DecodeScalar(tt.kind, s)
			if err != nil {
				t.Fatalf("DecodeScalar(%q): %v", s, err)
			}
			if f, ok := tt.v.(float64); ok && math.IsNaN(f) {
				if !math.IsNaN(got.(float64)) {
					t.Errorf("NaN round-tripped to %v", got)
				}
				return
			}
			if got != tt.v {
				t.Errorf("round trip = %v, want %v", got, tt.v)
			}
		})
	}
}

func TestScalarEncodeRejectsObjects(t *testing.T) {
	if _, err := EncodeScalar(KindObject, struct{}{}); !IsUnsupportedFormat(err) {
		t.Errorf("EncodeScalar(object): got %v, want format error", err)
	}
}
