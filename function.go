package jsbridge

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"runtime/debug"
	"strings"

	"go.uber.org/zap"

	"github.com/cryguy/jsbridge/errors"
	"github.com/cryguy/jsbridge/internal/core"
)

// boundaryMarker separates the Go stack from the script stack in errors
// thrown by host functions.
const boundaryMarker = "\n//---- JS-to-native boundary ----//\n"

// DefineNative defines a raw host function on o. fn runs on the goroutine
// driving the Context; FromPointer turns its ContextPtr back into the
// Context.
func (o *Object) DefineNative(name string, fn NativeFunc, nargs int, attrs uint32) (*Object, error) {
	h, err := o.handle("DefineNative")
	if err != nil {
		return nil, err
	}
	var ptr core.ObjectPtr
	o.ctx.quietly(func() bool {
		ptr = o.ctx.native.DefineFunction(o.ctx.ptr, h, name, fn, nargs, attrs)
		return ptr != 0
	})
	if ptr == 0 {
		return nil, o.ctx.failure(errors.PhaseCall, "DefineFunction")
	}
	return o.ctx.wrapObject(ptr)
}

var (
	contextType = reflect.TypeOf((*Context)(nil))
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	valueType   = reflect.TypeOf(core.Value(0))
	objectType  = reflect.TypeOf((*Object)(nil))
	anyType     = reflect.TypeOf((*any)(nil)).Elem()
)

// argConverter turns one script argument into a Go argument. done, when
// not nil, releases anything the conversion rooted.
type argConverter func(c *Context, v Value) (arg reflect.Value, done func(), err error)

// DefineFunction defines a host function on o backed by an ordinary Go
// function. fn may take a leading *Context, then any of Value, *Object,
// string, bool, Go numbers, any, or types ToGo results convert to. It may
// return nothing, a value, an error, or a value and an error. The
// function's shape is inspected once here; calls only run the captured
// conversions.
//
// A returned error or a panic is thrown into script as an Error carrying
// the Go message, with wrapped errors chained through innerException.
func (o *Object) DefineFunction(name string, fn any) (*Object, error) {
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		return nil, errors.TypeMismatch(errors.PhaseCall, "DefineFunction", "func", fmt.Sprintf("%T", fn))
	}
	ft := rv.Type()
	if ft.IsVariadic() {
		return nil, errors.InvalidInput(errors.PhaseCall, "variadic host functions are not supported")
	}

	first := 0
	withCtx := ft.NumIn() > 0 && ft.In(0) == contextType
	if withCtx {
		first = 1
	}
	convs := make([]argConverter, 0, ft.NumIn()-first)
	for i := first; i < ft.NumIn(); i++ {
		conv, err := converterFor(ft.In(i))
		if err != nil {
			return nil, fmt.Errorf("DefineFunction %s: argument %d: %w", name, i, err)
		}
		convs = append(convs, conv)
	}

	valueOut, errOut := -1, -1
	switch ft.NumOut() {
	case 0:
	case 1:
		if ft.Out(0) == errorType {
			errOut = 0
		} else {
			valueOut = 0
		}
	case 2:
		if ft.Out(1) != errorType {
			return nil, errors.InvalidInput(errors.PhaseCall, "second result of a host function must be error")
		}
		valueOut, errOut = 0, 1
	default:
		return nil, errors.InvalidInput(errors.PhaseCall, "host functions return at most a value and an error")
	}

	native := func(cx core.ContextPtr, args *core.CallArgs) (ok bool) {
		ctx := FromPointer(cx)
		if ctx == nil {
			return false
		}
		defer func() {
			if p := recover(); p != nil {
				Logger().Warn("host function panicked",
					zap.String("function", name),
					zap.Any("panic", p))
				ctx.throw(fmt.Errorf("panic in %s: %v", name, p), string(debug.Stack()))
				ok = false
			}
		}()

		in := make([]reflect.Value, 0, ft.NumIn())
		if withCtx {
			in = append(in, reflect.ValueOf(ctx))
		}
		for i, conv := range convs {
			arg, done, err := conv(ctx, args.Arg(i))
			if done != nil {
				defer done()
			}
			if err != nil {
				ctx.throw(fmt.Errorf("%s: argument %d: %w", name, i, err), "")
				return false
			}
			in = append(in, arg)
		}

		out := rv.Call(in)
		if errOut >= 0 && !out[errOut].IsNil() {
			ctx.throw(out[errOut].Interface().(error), "")
			return false
		}
		if valueOut >= 0 {
			r, err := ctx.fromGo(out[valueOut].Interface(), 0)
			if err != nil {
				ctx.throw(fmt.Errorf("%s: result: %w", name, err), "")
				return false
			}
			args.Result = r.MustGet()
			r.Dispose()
		}
		return true
	}
	return o.DefineNative(name, native, len(convs), 0)
}

func converterFor(t reflect.Type) (argConverter, error) {
	switch t {
	case valueType:
		return func(_ *Context, v Value) (reflect.Value, func(), error) {
			return reflect.ValueOf(v), nil, nil
		}, nil
	case objectType:
		return func(c *Context, v Value) (reflect.Value, func(), error) {
			if v.IsNullOrUndefined() {
				return reflect.Zero(objectType), nil, nil
			}
			obj, err := c.ObjectFrom(v)
			if err != nil {
				return reflect.Value{}, nil, err
			}
			return reflect.ValueOf(obj), obj.Dispose, nil
		}, nil
	case anyType:
		return func(c *Context, v Value) (reflect.Value, func(), error) {
			x, err := c.toGo(v, 0)
			if err != nil {
				return reflect.Value{}, nil, err
			}
			if x == nil {
				return reflect.Zero(anyType), nil, nil
			}
			var done func()
			if obj, ok := x.(*Object); ok {
				done = obj.Dispose
			}
			return reflect.ValueOf(&x).Elem(), done, nil
		}, nil
	}

	switch t.Kind() {
	case reflect.String:
		return func(c *Context, v Value) (reflect.Value, func(), error) {
			s, err := c.stringOf(v, "argument")
			if err != nil {
				return reflect.Value{}, nil, err
			}
			return reflect.ValueOf(s).Convert(t), nil, nil
		}, nil
	case reflect.Bool:
		return func(_ *Context, v Value) (reflect.Value, func(), error) {
			if !v.IsBoolean() {
				return reflect.Value{}, nil, errors.TypeMismatch(errors.PhaseMarshal, "argument", "boolean", v.Type().String())
			}
			return reflect.ValueOf(v.Bool()).Convert(t), nil, nil
		}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return func(_ *Context, v Value) (reflect.Value, func(), error) {
			f, ok := v.Number()
			if !ok {
				return reflect.Value{}, nil, errors.TypeMismatch(errors.PhaseMarshal, "argument", "number", v.Type().String())
			}
			return reflect.ValueOf(f).Convert(t), nil, nil
		}, nil
	case reflect.Slice, reflect.Map:
		return func(c *Context, v Value) (reflect.Value, func(), error) {
			x, err := c.toGo(v, 0)
			if err != nil {
				return reflect.Value{}, nil, err
			}
			if x == nil {
				return reflect.Zero(t), nil, nil
			}
			xv := reflect.ValueOf(x)
			if !xv.Type().AssignableTo(t) {
				return reflect.Value{}, nil, errors.TypeMismatch(errors.PhaseMarshal, "argument", t.String(), xv.Type().String())
			}
			return xv, nil, nil
		}, nil
	}
	return nil, errors.TypeMismatch(errors.PhaseCall, "DefineFunction", "supported argument type", t.String())
}

// Throw makes err the pending exception of the Context behind cx, as an
// Error carrying err's message. Use it from a NativeFunc before returning
// false.
func Throw(cx ContextPtr, err error) {
	if ctx := FromPointer(cx); ctx != nil {
		ctx.throw(err, "")
	}
}

func (c *Context) throw(err error, goStack string) {
	r, eerr := c.errorValue(err, 0)
	if eerr != nil {
		Logger().Warn("could not convert Go error to an exception",
			zap.Uintptr("cx", uintptr(c.ptr)),
			zap.Error(err),
			zap.NamedError("conversion", eerr))
		return
	}
	defer r.Dispose()
	if goStack != "" {
		c.spliceStack(r, goStack)
	}
	v := r.MustGet()
	c.native.SetPendingException(c.ptr, &v)
}

// errorValue builds an Error for err, with errors.Unwrap chained through
// innerException.
func (c *Context) errorValue(err error, depth int) (*Rooted[Value], error) {
	msg := c.native.NewStringCopy(c.ptr, err.Error())
	if msg == 0 {
		return nil, errors.AllocationFailed(errors.PhaseCall, "NewStringCopy")
	}
	ptr := c.native.NewError(c.ptr, []core.Value{core.StringValue(msg)})
	if ptr == 0 {
		c.native.ClearPendingException(c.ptr)
		return nil, errors.OperationFailed(errors.PhaseCall, "NewError", uintptr(c.ptr))
	}
	obj, werr := c.wrapObject(ptr)
	if werr != nil {
		return nil, werr
	}
	defer obj.Dispose()

	if inner := stderrors.Unwrap(err); inner != nil && depth < maxInnerDepth {
		ir, ierr := c.errorValue(inner, depth+1)
		if ierr == nil {
			_ = obj.Set("innerException", ir.MustGet())
			ir.Dispose()
		}
	}
	return newRooted(c.native, c.ptr, c, obj.Value())
}

// spliceStack prefixes the script stack of the error in r with goStack.
func (c *Context) spliceStack(r *Rooted[Value], goStack string) {
	ptr, ok := r.MustGet().AsObject()
	if !ok {
		return
	}
	obj, err := c.wrapObject(ptr)
	if err != nil {
		return
	}
	defer obj.Dispose()

	jsStack := c.propertyString(obj, "stack")
	text := strings.TrimRight(goStack, "\n") + boundaryMarker + jsStack
	s := c.native.NewStringCopy(c.ptr, text)
	if s == 0 {
		c.native.ClearPendingException(c.ptr)
		return
	}
	_ = obj.Set("stack", core.StringValue(s))
}
