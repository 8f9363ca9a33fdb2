package jsbridge

import (
	"fmt"

	"github.com/cryguy/jsbridge/errors"
	"github.com/cryguy/jsbridge/internal/core"
)

// Array is a rooted reference to an engine array.
type Array struct {
	*Object
}

// NewArray creates an array of the given length, filled with holes.
func (c *Context) NewArray(length int) (*Array, error) {
	if err := c.enter("NewArray"); err != nil {
		return nil, err
	}
	if length < 0 {
		return nil, errors.InvalidInput(errors.PhaseMarshal, fmt.Sprintf("negative array length %d", length))
	}
	ptr := c.native.NewArrayObject(c.ptr, length)
	if ptr == 0 {
		return nil, c.failure(errors.PhaseMarshal, "NewArrayObject")
	}
	obj, err := c.wrapObject(ptr)
	if err != nil {
		return nil, err
	}
	return &Array{obj}, nil
}

// NewArrayFrom creates an array holding values[offset:offset+count]. The
// values must be rooted by the caller or be primitives.
func (c *Context) NewArrayFrom(values []Value, offset, count int) (*Array, error) {
	if err := c.enter("NewArrayFrom"); err != nil {
		return nil, err
	}
	if offset < 0 || count < 0 || offset+count > len(values) {
		return nil, errors.InvalidInput(errors.PhaseMarshal,
			fmt.Sprintf("range [%d:%d] outside %d values", offset, offset+count, len(values)))
	}
	ptr := c.native.NewArrayObjectFrom(c.ptr, values[offset:offset+count])
	if ptr == 0 {
		return nil, c.failure(errors.PhaseMarshal, "NewArrayObjectFrom")
	}
	obj, err := c.wrapObject(ptr)
	if err != nil {
		return nil, err
	}
	return &Array{obj}, nil
}

// ArrayFrom roots v as an Array. It fails when v is not an array.
func (c *Context) ArrayFrom(v Value) (*Array, error) {
	obj, err := c.ObjectFrom(v)
	if err != nil {
		return nil, err
	}
	ok, err := obj.isArray()
	if err != nil {
		obj.Dispose()
		return nil, err
	}
	if !ok {
		obj.Dispose()
		return nil, errors.TypeMismatch(errors.PhaseMarshal, "ArrayFrom", "array", "object")
	}
	return &Array{obj}, nil
}

func (o *Object) isArray() (bool, error) {
	h, err := o.handle("IsArrayObject")
	if err != nil {
		return false, err
	}
	var isArray bool
	if !o.ctx.native.IsArrayObject(o.ctx.ptr, h, &isArray) {
		return false, o.ctx.failure(errors.PhaseMarshal, "IsArrayObject")
	}
	return isArray, nil
}

// Length returns the array's length.
func (a *Array) Length() (uint32, error) {
	h, err := a.handle("Array.Length")
	if err != nil {
		return 0, err
	}
	var n uint32
	if !a.ctx.native.GetArrayLength(a.ctx.ptr, h, &n) {
		return 0, a.ctx.failure(errors.PhaseMarshal, "GetArrayLength")
	}
	return n, nil
}

// SetLength truncates or extends the array.
func (a *Array) SetLength(n uint32) error {
	h, err := a.handle("Array.SetLength")
	if err != nil {
		return err
	}
	ok := a.ctx.quietly(func() bool {
		return a.ctx.native.SetArrayLength(a.ctx.ptr, h, n)
	})
	if !ok {
		return a.ctx.failure(errors.PhaseMarshal, "SetArrayLength")
	}
	return nil
}

// Element reads element i.
func (a *Array) Element(i uint32) (*Rooted[Value], error) {
	h, err := a.handle("Array.Element")
	if err != nil {
		return nil, err
	}
	var v core.Value
	ok := a.ctx.quietly(func() bool {
		return a.ctx.native.GetElement(a.ctx.ptr, h, i, &v)
	})
	if !ok {
		return nil, a.ctx.failure(errors.PhaseMarshal, "GetElement")
	}
	return newRooted(a.ctx.native, a.ctx.ptr, a.ctx, v)
}

// SetElement writes element i. v must be rooted by the caller or be a
// primitive.
func (a *Array) SetElement(i uint32, v Value) error {
	h, err := a.handle("Array.SetElement")
	if err != nil {
		return err
	}
	ok := a.ctx.quietly(func() bool {
		return a.ctx.native.SetElement(a.ctx.ptr, h, i, &v)
	})
	if !ok {
		return a.ctx.failure(errors.PhaseMarshal, "SetElement")
	}
	return nil
}
