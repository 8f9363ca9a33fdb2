package jsbridge

import (
	"github.com/cryguy/jsbridge/errors"
	"github.com/cryguy/jsbridge/internal/core"
)

// Object is a rooted reference to an engine object.
type Object struct {
	ctx  *Context
	root *Rooted[core.ObjectPtr]
}

// wrapObject roots ptr, which the caller got from the engine in the
// current operation.
func (c *Context) wrapObject(ptr core.ObjectPtr) (*Object, error) {
	r, err := newRooted(c.native, c.ptr, c, ptr)
	if err != nil {
		return nil, err
	}
	return &Object{ctx: c, root: r}, nil
}

// NewObject creates a plain object.
func (c *Context) NewObject() (*Object, error) {
	if err := c.enter("NewObject"); err != nil {
		return nil, err
	}
	ptr := c.native.NewObject(c.ptr)
	if ptr == 0 {
		return nil, c.failure(errors.PhaseMarshal, "NewObject")
	}
	return c.wrapObject(ptr)
}

// ObjectFrom roots the object carried by v.
func (c *Context) ObjectFrom(v Value) (*Object, error) {
	if err := c.enter("ObjectFrom"); err != nil {
		return nil, err
	}
	ptr, ok := v.AsObject()
	if !ok || ptr == 0 {
		return nil, errors.TypeMismatch(errors.PhaseMarshal, "ObjectFrom", "object", v.Type().String())
	}
	return c.wrapObject(ptr)
}

// Context returns the context the object lives in.
func (o *Object) Context() *Context {
	return o.ctx
}

// Rooted exposes the root holding the object.
func (o *Object) Rooted() *Rooted[ObjectPtr] {
	return o.root
}

// Ptr returns the object handle, or 0 once disposed.
func (o *Object) Ptr() ObjectPtr {
	p, _ := o.root.Get()
	return p
}

// Value returns the object as a Value. It is null once disposed.
func (o *Object) Value() Value {
	return core.ObjectValue(o.Ptr())
}

// Dispose removes the object's root.
func (o *Object) Dispose() {
	o.root.Dispose()
}

// handle enters the context and returns the rooted slot address.
func (o *Object) handle(op string) (*core.ObjectPtr, error) {
	if err := o.ctx.enter(op); err != nil {
		return nil, err
	}
	h := o.root.AsHandle()
	if h == nil {
		return nil, errors.UseAfterDispose(errors.PhaseMarshal, op)
	}
	return h, nil
}

// Get reads property name.
func (o *Object) Get(name string) (*Rooted[Value], error) {
	h, err := o.handle("Object.Get")
	if err != nil {
		return nil, err
	}
	var v core.Value
	ok := o.ctx.quietly(func() bool {
		return o.ctx.native.GetProperty(o.ctx.ptr, h, name, &v)
	})
	if !ok {
		return nil, o.ctx.failure(errors.PhaseMarshal, "GetProperty")
	}
	return newRooted(o.ctx.native, o.ctx.ptr, o.ctx, v)
}

// GetGo reads property name and converts it with ToGo.
func (o *Object) GetGo(name string) (any, error) {
	v, err := o.Get(name)
	if err != nil {
		return nil, err
	}
	defer v.Dispose()
	return o.ctx.ToGo(v.MustGet())
}

// Set writes property name. v must be rooted by the caller or be a
// primitive.
func (o *Object) Set(name string, v Value) error {
	h, err := o.handle("Object.Set")
	if err != nil {
		return err
	}
	ok := o.ctx.quietly(func() bool {
		return o.ctx.native.SetProperty(o.ctx.ptr, h, name, &v)
	})
	if !ok {
		return o.ctx.failure(errors.PhaseMarshal, "SetProperty")
	}
	return nil
}

// SetGo converts x with FromGo and writes it to property name.
func (o *Object) SetGo(name string, x any) error {
	v, err := o.ctx.FromGo(x)
	if err != nil {
		return err
	}
	defer v.Dispose()
	return o.Set(name, v.MustGet())
}

// Has reports whether name is in the object or its prototype chain.
func (o *Object) Has(name string) (bool, error) {
	h, err := o.handle("Object.Has")
	if err != nil {
		return false, err
	}
	var found bool
	ok := o.ctx.quietly(func() bool {
		return o.ctx.native.HasProperty(o.ctx.ptr, h, name, &found)
	})
	if !ok {
		return false, o.ctx.failure(errors.PhaseMarshal, "HasProperty")
	}
	return found, nil
}

// Delete removes property name and reports whether it is gone.
func (o *Object) Delete(name string) (bool, error) {
	h, err := o.handle("Object.Delete")
	if err != nil {
		return false, err
	}
	ok := o.ctx.quietly(func() bool {
		return o.ctx.native.DeleteProperty(o.ctx.ptr, h, name)
	})
	if !ok {
		if o.ctx.native.IsExceptionPending(o.ctx.ptr) {
			return false, o.ctx.failure(errors.PhaseMarshal, "DeleteProperty")
		}
		return false, nil
	}
	return true, nil
}

// Prototype returns the object's prototype, or nil when it has none.
func (o *Object) Prototype() (*Object, error) {
	h, err := o.handle("Object.Prototype")
	if err != nil {
		return nil, err
	}
	var proto core.ObjectPtr
	ok := o.ctx.quietly(func() bool {
		return o.ctx.native.GetPrototype(o.ctx.ptr, h, &proto)
	})
	if !ok {
		return nil, o.ctx.failure(errors.PhaseMarshal, "GetPrototype")
	}
	if proto == 0 {
		return nil, nil
	}
	return o.ctx.wrapObject(proto)
}

// Invoke calls the object as a function with the given this, which may be
// nil. Arguments must be rooted by the caller or be primitives.
func (o *Object) Invoke(this *Object, args ...Value) (*Rooted[Value], error) {
	h, err := o.handle("Object.Invoke")
	if err != nil {
		return nil, err
	}
	var thisPtr *core.ObjectPtr
	if this != nil {
		if thisPtr = this.root.AsHandle(); thisPtr == nil {
			return nil, errors.UseAfterDispose(errors.PhaseCall, "Object.Invoke")
		}
	}
	fn := core.ObjectValue(*h)
	var rval core.Value
	ok := o.ctx.quietly(func() bool {
		return o.ctx.native.CallFunctionValue(o.ctx.ptr, thisPtr, &fn, args, &rval)
	})
	if !ok {
		return nil, o.ctx.failure(errors.PhaseCall, "CallFunctionValue")
	}
	return newRooted(o.ctx.native, o.ctx.ptr, o.ctx, rval)
}

// Call invokes the method stored under name with the object as this.
func (o *Object) Call(name string, args ...Value) (*Rooted[Value], error) {
	fv, err := o.Get(name)
	if err != nil {
		return nil, err
	}
	defer fv.Dispose()
	fn, err := o.ctx.ObjectFrom(fv.MustGet())
	if err != nil {
		return nil, err
	}
	defer fn.Dispose()
	return fn.Invoke(o, args...)
}

// Construct calls the object as a constructor.
func (o *Object) Construct(args ...Value) (*Object, error) {
	h, err := o.handle("Object.Construct")
	if err != nil {
		return nil, err
	}
	var ptr core.ObjectPtr
	o.ctx.quietly(func() bool {
		ptr = o.ctx.native.New(o.ctx.ptr, h, args)
		return ptr != 0
	})
	if ptr == 0 {
		return nil, o.ctx.failure(errors.PhaseCall, "New")
	}
	return o.ctx.wrapObject(ptr)
}

// Keys returns the object's own enumerable string keys.
func (o *Object) Keys() ([]string, error) {
	if _, err := o.handle("Object.Keys"); err != nil {
		return nil, err
	}
	g, err := o.ctx.GlobalObject()
	if err != nil {
		return nil, err
	}
	ctor, err := g.Get("Object")
	if err != nil {
		return nil, err
	}
	defer ctor.Dispose()
	objectCtor, err := o.ctx.ObjectFrom(ctor.MustGet())
	if err != nil {
		return nil, err
	}
	defer objectCtor.Dispose()

	keys, err := objectCtor.Call("keys", o.Value())
	if err != nil {
		return nil, err
	}
	defer keys.Dispose()
	arr, err := o.ctx.ArrayFrom(keys.MustGet())
	if err != nil {
		return nil, err
	}
	defer arr.Dispose()

	n, err := arr.Length()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		el, err := arr.Element(i)
		if err != nil {
			return nil, err
		}
		s, err := o.ctx.stringOf(el.MustGet(), "Object.Keys")
		el.Dispose()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
