package jsbridge

import "github.com/cryguy/jsbridge/internal/core"

// Value is the engine's 8-byte tagged value. GC things inside a Value are
// only safe to use while something roots them; hold them in a Rooted.
type Value = core.Value

// Native handle types. They are addresses into the engine and carry no
// rooting of their own.
type (
	ContextPtr = core.ContextPtr
	ObjectPtr  = core.ObjectPtr
	StringPtr  = core.StringPtr
	ScriptPtr  = core.ScriptPtr
)

// Host function contract for DefineNative.
type (
	NativeFunc = core.NativeFunc
	CallArgs   = core.CallArgs
)

// Property attributes for DefineNative.
const (
	PropEnumerate = core.PropEnumerate
	PropReadOnly  = core.PropReadOnly
	PropPermanent = core.PropPermanent
)

var (
	Undefined = core.Undefined
	Null      = core.Null
	True      = core.True
	False     = core.False
)

// Value constructors.
func Int32Value(i int32) Value      { return core.Int32Value(i) }
func DoubleValue(f float64) Value   { return core.DoubleValue(f) }
func NumberValue(f float64) Value   { return core.NumberValue(f) }
func BoolValue(b bool) Value        { return core.BoolValue(b) }
func ObjectValue(o ObjectPtr) Value { return core.ObjectValue(o) }
func StringValue(s StringPtr) Value { return core.StringValue(s) }
