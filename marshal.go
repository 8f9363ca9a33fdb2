package jsbridge

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/cryguy/jsbridge/errors"
	"github.com/cryguy/jsbridge/internal/core"
)

// maxMarshalDepth bounds nesting in ToGo and FromGo; cyclic structures
// fail instead of recursing forever.
const maxMarshalDepth = 64

// ToGo converts v into a Go value:
//
//	undefined, null  nil
//	boolean          bool
//	int32            int
//	double           float64
//	string           string
//	array            []any
//	function         *Object, which the caller must Dispose
//	other objects    map[string]any of own enumerable properties
//
// v must be rooted by the caller or be a primitive.
func (c *Context) ToGo(v Value) (any, error) {
	if err := c.enter("ToGo"); err != nil {
		return nil, err
	}
	return c.toGo(v, 0)
}

func (c *Context) toGo(v Value, depth int) (any, error) {
	if depth > maxMarshalDepth {
		return nil, errors.InvalidInput(errors.PhaseMarshal,
			fmt.Sprintf("value nested deeper than %d levels", maxMarshalDepth))
	}

	switch v.Type() {
	case core.TypeUndefined, core.TypeNull, core.TypeMagic:
		return nil, nil
	case core.TypeBoolean:
		return v.Bool(), nil
	case core.TypeInt32:
		return int(v.Int32()), nil
	case core.TypeDouble:
		return v.Double(), nil
	case core.TypeString:
		s, _ := v.AsString()
		return c.chars(s, "ToGo")
	case core.TypeObject:
		return c.objectToGo(v, depth)
	default:
		return nil, errors.TypeMismatch(errors.PhaseMarshal, "ToGo", "convertible value", v.Type().String())
	}
}

func (c *Context) objectToGo(v Value, depth int) (any, error) {
	ptr, _ := v.AsObject()
	obj, err := c.wrapObject(ptr)
	if err != nil {
		return nil, err
	}

	if c.native.TypeOfValue(c.ptr, &v) == core.JSTypeFunction {
		return obj, nil
	}
	defer obj.Dispose()

	isArray, err := obj.isArray()
	if err != nil {
		return nil, err
	}
	if isArray {
		arr := &Array{obj}
		n, err := arr.Length()
		if err != nil {
			return nil, err
		}
		out := make([]any, n)
		for i := uint32(0); i < n; i++ {
			el, err := arr.Element(i)
			if err != nil {
				return nil, err
			}
			out[i], err = c.toGo(el.MustGet(), depth+1)
			el.Dispose()
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
		}
		return out, nil
	}

	keys, err := obj.Keys()
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		pv, err := obj.Get(k)
		if err != nil {
			return nil, err
		}
		out[k], err = c.toGo(pv.MustGet(), depth+1)
		pv.Dispose()
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", k, err)
		}
	}
	return out, nil
}

// FromGo converts x into a rooted engine value. It accepts nil, bool, Go
// integers and floats, string, error, Value, *Rooted[Value], *Object,
// *Array, *String, slices and arrays, and maps keyed by strings.
// Integers outside the exact float64 range lose precision.
func (c *Context) FromGo(x any) (*Rooted[Value], error) {
	if err := c.enter("FromGo"); err != nil {
		return nil, err
	}
	return c.fromGo(x, 0)
}

func (c *Context) fromGo(x any, depth int) (*Rooted[Value], error) {
	if depth > maxMarshalDepth {
		return nil, errors.InvalidInput(errors.PhaseMarshal,
			fmt.Sprintf("value nested deeper than %d levels", maxMarshalDepth))
	}

	root := func(v core.Value) (*Rooted[Value], error) {
		return newRooted(c.native, c.ptr, c, v)
	}

	switch t := x.(type) {
	case nil:
		return root(core.Null)
	case Value:
		return root(t)
	case *Rooted[Value]:
		v, err := t.Get()
		if err != nil {
			return nil, err
		}
		return root(v)
	case *Object:
		return c.fromHandle(t, "FromGo")
	case *Array:
		return c.fromHandle(t.Object, "FromGo")
	case *String:
		s, err := t.root.Get()
		if err != nil {
			return nil, err
		}
		return root(core.StringValue(s))
	case bool:
		return root(core.BoolValue(t))
	case int:
		return root(core.NumberValue(float64(t)))
	case int8:
		return root(core.Int32Value(int32(t)))
	case int16:
		return root(core.Int32Value(int32(t)))
	case int32:
		return root(core.Int32Value(t))
	case int64:
		return root(core.NumberValue(float64(t)))
	case uint:
		return root(core.NumberValue(float64(t)))
	case uint8:
		return root(core.Int32Value(int32(t)))
	case uint16:
		return root(core.Int32Value(int32(t)))
	case uint32:
		return root(core.NumberValue(float64(t)))
	case uint64:
		return root(core.NumberValue(float64(t)))
	case float32:
		return root(core.DoubleValue(float64(t)))
	case float64:
		return root(core.DoubleValue(t))
	case string:
		ptr := c.native.NewStringCopy(c.ptr, t)
		if ptr == 0 {
			return nil, c.failure(errors.PhaseMarshal, "NewStringCopy")
		}
		return root(core.StringValue(ptr))
	case error:
		return c.errorValue(t, 0)
	}

	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return root(core.Null)
		}
		return c.fromGo(rv.Elem().Interface(), depth+1)
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return root(core.Null)
		}
		return c.sliceFromGo(rv, depth)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, errors.TypeMismatch(errors.PhaseMarshal, "FromGo", "map with string keys", rv.Type().String())
		}
		if rv.IsNil() {
			return root(core.Null)
		}
		return c.mapFromGo(rv, depth)
	}
	return nil, errors.TypeMismatch(errors.PhaseMarshal, "FromGo", "convertible Go value", fmt.Sprintf("%T", x))
}

func (c *Context) fromHandle(o *Object, op string) (*Rooted[Value], error) {
	p, err := o.root.Get()
	if err != nil {
		return nil, errors.UseAfterDispose(errors.PhaseMarshal, op)
	}
	return newRooted(c.native, c.ptr, c, core.ObjectValue(p))
}

func (c *Context) sliceFromGo(rv reflect.Value, depth int) (*Rooted[Value], error) {
	n := rv.Len()
	elems := make([]*Rooted[Value], 0, n)
	defer func() {
		for _, e := range elems {
			e.Dispose()
		}
	}()

	values := make([]core.Value, n)
	for i := 0; i < n; i++ {
		e, err := c.fromGo(rv.Index(i).Interface(), depth+1)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		elems = append(elems, e)
		values[i] = e.MustGet()
	}

	ptr := c.native.NewArrayObjectFrom(c.ptr, values)
	if ptr == 0 {
		return nil, c.failure(errors.PhaseMarshal, "NewArrayObjectFrom")
	}
	return newRooted(c.native, c.ptr, c, core.ObjectValue(ptr))
}

func (c *Context) mapFromGo(rv reflect.Value, depth int) (*Rooted[Value], error) {
	ptr := c.native.NewObject(c.ptr)
	if ptr == 0 {
		return nil, c.failure(errors.PhaseMarshal, "NewObject")
	}
	obj, err := c.wrapObject(ptr)
	if err != nil {
		return nil, err
	}
	defer obj.Dispose()

	keys := make([]string, 0, rv.Len())
	for _, k := range rv.MapKeys() {
		keys = append(keys, k.String())
	}
	sort.Strings(keys)

	for _, k := range keys {
		pv, err := c.fromGo(rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).Interface(), depth+1)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		err = obj.Set(k, pv.MustGet())
		pv.Dispose()
		if err != nil {
			return nil, err
		}
	}
	return newRooted(c.native, c.ptr, c, obj.Value())
}
