package jsbridge

import (
	"github.com/cryguy/jsbridge/internal/core"
)

// Rootable is the set of payloads a root slot can hold.
type Rootable interface {
	core.Value | core.ObjectPtr | core.StringPtr | core.ScriptPtr
}

// rootKind is the add/remove pair the native API offers for one payload
// type.
type rootKind[T Rootable] struct {
	name   string
	add    func(n core.Native, cx core.ContextPtr, p *T) bool
	remove func(n core.Native, cx core.ContextPtr, p *T) bool
}

var (
	valueRoots = rootKind[core.Value]{
		name:   "value",
		add:    core.Native.AddValueRoot,
		remove: core.Native.RemoveValueRoot,
	}
	objectRoots = rootKind[core.ObjectPtr]{
		name:   "object",
		add:    core.Native.AddObjectRoot,
		remove: core.Native.RemoveObjectRoot,
	}
	stringRoots = rootKind[core.StringPtr]{
		name:   "string",
		add:    core.Native.AddStringRoot,
		remove: core.Native.RemoveStringRoot,
	}
	scriptRoots = rootKind[core.ScriptPtr]{
		name: "script",
		add: func(n core.Native, cx core.ContextPtr, p *core.ScriptPtr) bool {
			return n.AddNamedScriptRoot(cx, p, "jsbridge.Rooted")
		},
		remove: core.Native.RemoveScriptRoot,
	}
)

func kindOf[T Rootable]() rootKind[T] {
	var zero T
	switch any(zero).(type) {
	case core.Value:
		return any(valueRoots).(rootKind[T])
	case core.ObjectPtr:
		return any(objectRoots).(rootKind[T])
	case core.StringPtr:
		return any(stringRoots).(rootKind[T])
	default:
		return any(scriptRoots).(rootKind[T])
	}
}

// toValue converts a root payload to a Value. Scripts are not values and
// convert to undefined.
func toValue[T Rootable](v T) core.Value {
	switch x := any(v).(type) {
	case core.Value:
		return x
	case core.ObjectPtr:
		return core.ObjectValue(x)
	case core.StringPtr:
		return core.StringValue(x)
	default:
		return core.Undefined
	}
}
