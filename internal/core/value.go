package core

import (
	"fmt"
	"math"
)

// Type is the discriminant stored in the tag bits of a Value.
type Type uint32

const (
	TypeDouble    Type = 0x00
	TypeInt32     Type = 0x01
	TypeUndefined Type = 0x02
	TypeBoolean   Type = 0x03
	TypeMagic     Type = 0x04
	TypeString    Type = 0x05
	TypeSymbol    Type = 0x06
	TypeNull      Type = 0x07
	TypeObject    Type = 0x08

	// Out-of-band sentinels. They describe type inference results and are
	// never stored in a real Value.
	TypeUnknown Type = 0x20
	TypeMissing Type = 0x21
)

func (t Type) String() string {
	switch t {
	case TypeDouble:
		return "double"
	case TypeInt32:
		return "int32"
	case TypeUndefined:
		return "undefined"
	case TypeBoolean:
		return "boolean"
	case TypeMagic:
		return "magic"
	case TypeString:
		return "string"
	case TypeSymbol:
		return "symbol"
	case TypeNull:
		return "null"
	case TypeObject:
		return "object"
	case TypeUnknown:
		return "unknown"
	case TypeMissing:
		return "missing"
	default:
		return fmt.Sprintf("Type(%#x)", uint32(t))
	}
}

// Value is the engine's tagged value: one 64-bit word, NaN-boxed.
//
// Doubles are stored as their IEEE-754 bits. Every other type sets the
// 17-bit tag in bits 47..63 to tagMaxDouble|type and keeps its payload in
// the low 47 bits. GC things (strings, symbols, objects) carry a cell id
// as payload.
type Value uint64

const (
	tagShift     = 47
	payloadMask  = uint64(1)<<tagShift - 1
	tagMaxDouble = uint64(0x1FFF0)

	canonicalNaN = uint64(0x7FF8000000000000)
)

// Well-known constant values.
var (
	Undefined = tagged(TypeUndefined, 0)
	Null      = tagged(TypeNull, 0)
	True      = tagged(TypeBoolean, 1)
	False     = tagged(TypeBoolean, 0)
)

func tagged(t Type, payload uint64) Value {
	return Value((tagMaxDouble|uint64(t))<<tagShift | payload&payloadMask)
}

// DoubleValue boxes f. Every NaN collapses to the canonical quiet NaN so
// that no double can be mistaken for a tagged value.
func DoubleValue(f float64) Value {
	if f != f {
		return Value(canonicalNaN)
	}
	return Value(math.Float64bits(f))
}

func Int32Value(i int32) Value {
	return tagged(TypeInt32, uint64(uint32(i)))
}

func BoolValue(b bool) Value {
	if b {
		return True
	}
	return False
}

// NumberValue prefers the int32 representation when f is integral and in
// range, like the engine does for results of arithmetic.
func NumberValue(f float64) Value {
	if i := int32(f); float64(i) == f && !(f == 0 && math.Signbit(f)) {
		return Int32Value(i)
	}
	return DoubleValue(f)
}

// ObjectValue boxes an object pointer. The zero pointer produces null.
func ObjectValue(o ObjectPtr) Value {
	if o == 0 {
		return Null
	}
	return tagged(TypeObject, uint64(o))
}

func StringValue(s StringPtr) Value {
	return tagged(TypeString, uint64(s))
}

func SymbolValue(id uint64) Value {
	return tagged(TypeSymbol, id)
}

// MagicValue carries an engine-internal marker such as an array hole.
func MagicValue(why uint32) Value {
	return tagged(TypeMagic, uint64(why))
}

// Type returns the discriminant of v.
func (v Value) Type() Type {
	if uint64(v)>>tagShift <= tagMaxDouble {
		return TypeDouble
	}
	return Type(uint64(v) >> tagShift & 0xF)
}

// Payload returns the low 47 bits. Meaningless for doubles.
func (v Value) Payload() uint64 {
	return uint64(v) & payloadMask
}

func (v Value) IsDouble() bool    { return v.Type() == TypeDouble }
func (v Value) IsInt32() bool     { return v.Type() == TypeInt32 }
func (v Value) IsNumber() bool    { t := v.Type(); return t == TypeDouble || t == TypeInt32 }
func (v Value) IsUndefined() bool { return v == Undefined }
func (v Value) IsNull() bool      { return v == Null }
func (v Value) IsBoolean() bool   { return v.Type() == TypeBoolean }
func (v Value) IsString() bool    { return v.Type() == TypeString }
func (v Value) IsSymbol() bool    { return v.Type() == TypeSymbol }
func (v Value) IsObject() bool    { return v.Type() == TypeObject }

func (v Value) IsNullOrUndefined() bool {
	return v == Null || v == Undefined
}

// IsGCThing reports whether the payload refers to a collectable cell.
func (v Value) IsGCThing() bool {
	switch v.Type() {
	case TypeString, TypeSymbol, TypeObject:
		return true
	}
	return false
}

func (v Value) Double() float64 {
	return math.Float64frombits(uint64(v))
}

func (v Value) Int32() int32 {
	return int32(uint32(v.Payload()))
}

func (v Value) Bool() bool {
	return v.Payload() != 0
}

// Number returns the numeric payload of a double, int32 or boolean.
func (v Value) Number() (float64, bool) {
	switch v.Type() {
	case TypeDouble:
		return v.Double(), true
	case TypeInt32:
		return float64(v.Int32()), true
	case TypeBoolean:
		if v.Bool() {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// AsObject returns the object pointer of an object value, and 0 for null.
func (v Value) AsObject() (ObjectPtr, bool) {
	switch v.Type() {
	case TypeObject:
		return ObjectPtr(v.Payload()), true
	case TypeNull:
		return 0, true
	}
	return 0, false
}

func (v Value) AsString() (StringPtr, bool) {
	if v.Type() != TypeString {
		return 0, false
	}
	return StringPtr(v.Payload()), true
}

// GoString formats v for debugging output.
func (v Value) GoString() string {
	switch t := v.Type(); t {
	case TypeDouble:
		return fmt.Sprintf("Value(double %v)", v.Double())
	case TypeInt32:
		return fmt.Sprintf("Value(int32 %d)", v.Int32())
	case TypeBoolean:
		return fmt.Sprintf("Value(boolean %v)", v.Bool())
	case TypeUndefined, TypeNull:
		return "Value(" + t.String() + ")"
	default:
		return fmt.Sprintf("Value(%s #%d)", t, v.Payload())
	}
}
