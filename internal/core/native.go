package core

// Opaque handles issued by the native engine. Zero is never a valid handle.
type (
	RuntimePtr     uintptr
	ContextPtr     uintptr
	ObjectPtr      uintptr
	StringPtr      uintptr
	ScriptPtr      uintptr
	CompartmentPtr uintptr
)

// ContextOptions is the per-context option word.
type ContextOptions uint32

const (
	// OptionDontReportUncaught leaves an exception escaping a top-level
	// evaluation pending instead of handing it to the error reporter.
	OptionDontReportUncaught ContextOptions = 1 << iota
	OptionStrict
)

// Property attributes for DefineFunction and friends.
const (
	PropEnumerate uint32 = 1 << iota
	PropReadOnly
	PropPermanent
)

// ErrorReport describes an uncaught exception handed to the reporter.
type ErrorReport struct {
	Message  string
	Filename string
	Line     int
}

// ErrorReporter receives uncaught exceptions when reporting is enabled.
type ErrorReporter func(cx ContextPtr, message string, report *ErrorReport)

// CallArgs is the argument frame of a native function call. Every value in
// the frame is rooted by the engine for the duration of the call.
type CallArgs struct {
	This   Value
	Args   []Value
	Result Value
}

// Arg returns argument i, or undefined when fewer were passed.
func (a *CallArgs) Arg(i int) Value {
	if i < 0 || i >= len(a.Args) {
		return Undefined
	}
	return a.Args[i]
}

// NativeFunc is a host function callable from script. Returning false
// signals failure; the pending exception, if any, is thrown into script.
type NativeFunc func(cx ContextPtr, args *CallArgs) bool

// Native is the engine's embedding API. Out-parameters and rooted inputs
// are passed by address: the address of a registered root slot doubles as
// a handle valid for the duration of one call.
//
// Every call against a context must come from the goroutine that currently
// owns it. A Native implementation only guards its own handle tables.
type Native interface {
	// runtime and context lifetime
	NewRuntime(maxBytes uint32) RuntimePtr
	DestroyRuntime(rt RuntimePtr)
	NewContext(rt RuntimePtr, stackChunkSize int) ContextPtr
	DestroyContext(cx ContextPtr)
	DestroyContextNoGC(cx ContextPtr)
	GetContextOptions(cx ContextPtr) ContextOptions
	SetContextOptions(cx ContextPtr, opts ContextOptions) ContextOptions
	SetErrorReporter(cx ContextPtr, reporter ErrorReporter) ErrorReporter
	SetGCZeal(cx ContextPtr, on bool)

	// scopes and globals
	BeginRequest(cx ContextPtr)
	EndRequest(cx ContextPtr)
	NewGlobalObject(cx ContextPtr) ObjectPtr
	InitStandardClasses(cx ContextPtr, global *ObjectPtr) bool
	EnterCompartment(cx ContextPtr, target ObjectPtr) CompartmentPtr
	LeaveCompartment(cx ContextPtr, old CompartmentPtr)

	// collection
	GC(cx ContextPtr)
	MaybeGC(cx ContextPtr)

	// root registration, one pair per rootable kind
	AddObjectRoot(cx ContextPtr, slot *ObjectPtr) bool
	RemoveObjectRoot(cx ContextPtr, slot *ObjectPtr) bool
	AddStringRoot(cx ContextPtr, slot *StringPtr) bool
	RemoveStringRoot(cx ContextPtr, slot *StringPtr) bool
	AddNamedScriptRoot(cx ContextPtr, slot *ScriptPtr, name string) bool
	RemoveScriptRoot(cx ContextPtr, slot *ScriptPtr) bool
	AddValueRoot(cx ContextPtr, slot *Value) bool
	RemoveValueRoot(cx ContextPtr, slot *Value) bool

	// scripts
	EvaluateScript(cx ContextPtr, scope *ObjectPtr, src, filename string, line int, rval *Value) bool
	CompileScript(cx ContextPtr, scope *ObjectPtr, src, filename string, line int) ScriptPtr
	ExecuteScript(cx ContextPtr, scope *ObjectPtr, script *ScriptPtr, rval *Value) bool

	// exceptions
	IsExceptionPending(cx ContextPtr) bool
	GetPendingException(cx ContextPtr, vp *Value) bool
	SetPendingException(cx ContextPtr, v *Value)
	ClearPendingException(cx ContextPtr)
	ReportPendingException(cx ContextPtr) bool

	// objects
	NewObject(cx ContextPtr) ObjectPtr
	GetProperty(cx ContextPtr, obj *ObjectPtr, name string, vp *Value) bool
	SetProperty(cx ContextPtr, obj *ObjectPtr, name string, v *Value) bool
	HasProperty(cx ContextPtr, obj *ObjectPtr, name string, found *bool) bool
	DeleteProperty(cx ContextPtr, obj *ObjectPtr, name string) bool
	GetPrototype(cx ContextPtr, obj *ObjectPtr, proto *ObjectPtr) bool

	// arrays
	NewArrayObject(cx ContextPtr, length int) ObjectPtr
	NewArrayObjectFrom(cx ContextPtr, contents []Value) ObjectPtr
	IsArrayObject(cx ContextPtr, obj *ObjectPtr, isArray *bool) bool
	GetArrayLength(cx ContextPtr, obj *ObjectPtr, length *uint32) bool
	SetArrayLength(cx ContextPtr, obj *ObjectPtr, length uint32) bool
	GetElement(cx ContextPtr, obj *ObjectPtr, index uint32, vp *Value) bool
	SetElement(cx ContextPtr, obj *ObjectPtr, index uint32, v *Value) bool

	// strings and conversions
	NewStringCopy(cx ContextPtr, s string) StringPtr
	GetStringChars(cx ContextPtr, str StringPtr) (string, bool)
	ValueToString(cx ContextPtr, v *Value) StringPtr
	TypeOfValue(cx ContextPtr, v *Value) JSType

	// functions
	DefineFunction(cx ContextPtr, obj *ObjectPtr, name string, fn NativeFunc, nargs int, attrs uint32) ObjectPtr
	CallFunctionValue(cx ContextPtr, this *ObjectPtr, fn *Value, args []Value, rval *Value) bool
	New(cx ContextPtr, ctor *ObjectPtr, args []Value) ObjectPtr
	NewError(cx ContextPtr, args []Value) ObjectPtr
	RunJobs(cx ContextPtr) int
}

// JSType is the result of the typeof operator.
type JSType int

const (
	JSTypeVoid JSType = iota
	JSTypeObject
	JSTypeFunction
	JSTypeString
	JSTypeNumber
	JSTypeBoolean
	JSTypeNull
	JSTypeSymbol
	JSTypeLimit
)

func (t JSType) String() string {
	switch t {
	case JSTypeVoid:
		return "undefined"
	case JSTypeObject:
		return "object"
	case JSTypeFunction:
		return "function"
	case JSTypeString:
		return "string"
	case JSTypeNumber:
		return "number"
	case JSTypeBoolean:
		return "boolean"
	case JSTypeNull:
		return "null"
	case JSTypeSymbol:
		return "symbol"
	default:
		return "unknown"
	}
}
