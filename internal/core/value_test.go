package core

import (
	"math"
	"testing"
	"unsafe"
)

func TestValueSize(t *testing.T) {
	if got := unsafe.Sizeof(Value(0)); got != 8 {
		t.Fatalf("Value is %d bytes, want 8", got)
	}
}

func TestValueTypes(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want Type
	}{
		{"double", DoubleValue(1.5), TypeDouble},
		{"negative double", DoubleValue(-2.25), TypeDouble},
		{"infinity", DoubleValue(math.Inf(1)), TypeDouble},
		{"negative infinity", DoubleValue(math.Inf(-1)), TypeDouble},
		{"nan", DoubleValue(math.NaN()), TypeDouble},
		{"int32", Int32Value(-37), TypeInt32},
		{"undefined", Undefined, TypeUndefined},
		{"boolean", True, TypeBoolean},
		{"magic", MagicValue(3), TypeMagic},
		{"string", StringValue(12), TypeString},
		{"symbol", SymbolValue(4), TypeSymbol},
		{"null", Null, TypeNull},
		{"object", ObjectValue(99), TypeObject},
		{"null object", ObjectValue(0), TypeNull},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.Type(); got != tt.want {
				t.Errorf("Type() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDoubleRoundTrip(t *testing.T) {
	for _, f := range []float64{
		0, 1, -1, 3.14159, 1e300, -1e-300, math.MaxFloat64,
		math.SmallestNonzeroFloat64, math.Inf(1), math.Inf(-1),
		math.Copysign(0, -1),
	} {
		v := DoubleValue(f)
		got := v.Double()
		if math.Float64bits(got) != math.Float64bits(f) {
			t.Errorf("DoubleValue(%v).Double() = %v", f, got)
		}
	}
}

func TestNaNCanonicalised(t *testing.T) {
	// A NaN with payload bits that would otherwise look like a tag.
	weird := math.Float64frombits(0xFFFF800000000123)
	v := DoubleValue(weird)
	if v.Type() != TypeDouble {
		t.Fatalf("NaN boxed as %v", v.Type())
	}
	if !math.IsNaN(v.Double()) {
		t.Errorf("Double() = %v, want NaN", v.Double())
	}
	if uint64(v) != canonicalNaN {
		t.Errorf("bits = %#x, want canonical NaN", uint64(v))
	}
}

func TestInt32Payload(t *testing.T) {
	for _, i := range []int32{0, 1, -1, math.MaxInt32, math.MinInt32, 37} {
		if got := Int32Value(i).Int32(); got != i {
			t.Errorf("Int32Value(%d).Int32() = %d", i, got)
		}
	}
}

func TestNumberValue(t *testing.T) {
	if !NumberValue(42).IsInt32() {
		t.Error("42 should box as int32")
	}
	if !NumberValue(0.5).IsDouble() {
		t.Error("0.5 should box as double")
	}
	if !NumberValue(math.Copysign(0, -1)).IsDouble() {
		t.Error("-0 should stay a double")
	}
	if !NumberValue(1 << 40).IsDouble() {
		t.Error("2^40 should stay a double")
	}
}

func TestGCThingPayload(t *testing.T) {
	o := ObjectValue(ObjectPtr(0x1234))
	if !o.IsGCThing() {
		t.Fatal("object is a GC thing")
	}
	p, ok := o.AsObject()
	if !ok || p != 0x1234 {
		t.Errorf("AsObject() = %#x, %v", p, ok)
	}
	if p, ok := Null.AsObject(); !ok || p != 0 {
		t.Errorf("Null.AsObject() = %#x, %v", p, ok)
	}
	if _, ok := Int32Value(1).AsObject(); ok {
		t.Error("int32 is not an object")
	}

	s := StringValue(StringPtr(77))
	if sp, ok := s.AsString(); !ok || sp != 77 {
		t.Errorf("AsString() = %d, %v", sp, ok)
	}
	if Int32Value(5).IsGCThing() || True.IsGCThing() || Null.IsGCThing() {
		t.Error("primitive reported as GC thing")
	}
}

func TestNumberConversion(t *testing.T) {
	tests := []struct {
		v    Value
		want float64
		ok   bool
	}{
		{DoubleValue(2.5), 2.5, true},
		{Int32Value(-4), -4, true},
		{True, 1, true},
		{False, 0, true},
		{Null, 0, false},
		{StringValue(1), 0, false},
	}
	for _, tt := range tests {
		got, ok := tt.v.Number()
		if got != tt.want || ok != tt.ok {
			t.Errorf("%#v.Number() = %v, %v; want %v, %v", tt.v, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSentinelsNeverProduced(t *testing.T) {
	for _, v := range []Value{Undefined, Null, True, False, Int32Value(0), ObjectValue(1), StringValue(1)} {
		if tt := v.Type(); tt == TypeUnknown || tt == TypeMissing {
			t.Errorf("%#v decoded to sentinel %v", v, tt)
		}
	}
}
