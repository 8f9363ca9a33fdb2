package jsapi

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unsafe"

	"github.com/cryguy/jsbridge/internal/core"
)

func ptrOf[T any](p *T) unsafe.Pointer {
	return unsafe.Pointer(p)
}

// call runs __jsb.<method>(args...) in the realm and decodes the
// descriptor it returns. A thrown value becomes the pending exception.
func (c *contextState) call(method string, args ...string) (core.Value, uint64, bool) {
	out, err := c.realm.EvalString("__jsb." + method + "(" + strings.Join(args, ",") + ")")
	if err != nil {
		c.fault(method, err)
		return core.Undefined, 0, false
	}
	if strings.HasPrefix(out, "x") {
		if v, _, derr := c.decode(out[1:]); derr == nil {
			c.setPending(v)
		} else {
			c.fault(method, derr)
		}
		return core.Undefined, 0, false
	}
	v, id, err := c.decode(out)
	if err != nil {
		c.fault(method, err)
		return core.Undefined, 0, false
	}
	return v, id, true
}

// callRaw is call for methods answering with raw text.
func (c *contextState) callRaw(method string, args ...string) (string, bool) {
	out, err := c.realm.EvalString("__jsb." + method + "(" + strings.Join(args, ",") + ")")
	if err != nil {
		c.fault(method, err)
		return "", false
	}
	if strings.HasPrefix(out, "x") {
		if v, _, derr := c.decode(out[1:]); derr == nil {
			c.setPending(v)
		}
		return "", false
	}
	text, ok := strings.CutPrefix(out, "r:")
	if !ok {
		c.fault(method, fmt.Errorf("unexpected result %q", out))
		return "", false
	}
	return text, true
}

// fault turns a failure of the glue itself into a pending Error. When
// even that fails, nothing is left pending.
func (c *contextState) fault(op string, err error) {
	msg := fmt.Sprintf("internal error in %s: %v", op, err)
	out, err := c.realm.EvalString("__jsb.fault(" + jsString(msg) + ")")
	if err != nil || strings.HasPrefix(out, "x") {
		return
	}
	if v, _, err := c.decode(out); err == nil {
		c.setPending(v)
	}
}

func (c *contextState) decode(d string) (core.Value, uint64, error) {
	v, id, err := decode(d)
	if err == nil && id != 0 {
		c.roots.Born(id)
	}
	return v, id, err
}

func (c *contextState) setPending(v core.Value) {
	c.pending = v
	c.hasPending = true
}

func (c *contextState) clearPending() {
	c.pending = core.Undefined
	c.hasPending = false
}

// trampoline is registered as __jsb_call and dispatches script calls of
// functions made by DefineFunction.
func (n *Native) trampoline(c *contextState) core.HostFunc {
	return func(fnID int, thisDesc, argsDesc string) (out string) {
		fn := c.funcs[fnID]
		if fn == nil {
			return "tunknown native function #" + strconv.Itoa(fnID)
		}

		args := &core.CallArgs{Result: core.Undefined}
		this, _, err := c.decode(thisDesc)
		if err != nil {
			return "t" + err.Error()
		}
		args.This = this
		if argsDesc != "" {
			for _, d := range strings.Split(argsDesc, ",") {
				v, _, err := c.decode(d)
				if err != nil {
					return "t" + err.Error()
				}
				args.Args = append(args.Args, v)
			}
		}

		c.frames = append(c.frames, args)
		defer func() { c.frames = c.frames[:len(c.frames)-1] }()
		defer func() {
			if p := recover(); p != nil {
				out = fmt.Sprintf("tpanic in native function: %v", p)
			}
		}()

		if !fn(c.ptr, args) {
			if !c.hasPending {
				return "t"
			}
			v := c.pending
			c.clearPending()
			return "x" + encode(v)
		}
		return encode(args.Result)
	}
}

// uncaught hands an exception escaping a top-level call to the reporter
// unless the context asked to keep it pending.
func (n *Native) uncaught(c *contextState) {
	if len(c.frames) > 0 || !c.hasPending || c.opts&core.OptionDontReportUncaught != 0 {
		return
	}
	n.report(c)
}

func (n *Native) report(c *contextState) bool {
	if !c.hasPending {
		return false
	}
	exc := c.pending
	mark := c.pin(exc)
	defer c.unpin(mark)

	report := &core.ErrorReport{}
	if text, ok := c.callRaw("report", lit(exc)); ok {
		var info struct {
			Message    string  `json:"message"`
			FileName   string  `json:"fileName"`
			LineNumber float64 `json:"lineNumber"`
		}
		if json.Unmarshal([]byte(text), &info) == nil {
			report.Message = info.Message
			report.Filename = info.FileName
			report.Line = int(info.LineNumber)
		}
	}
	c.clearPending()
	if c.reporter != nil {
		c.reporter(c.ptr, report.Message, report)
	}
	return true
}

func (c *contextState) scope(scope *core.ObjectPtr) core.ObjectPtr {
	if scope == nil || *scope == 0 {
		return c.global
	}
	return *scope
}

// --- scripts ---

func (n *Native) EvaluateScript(cx core.ContextPtr, scope *core.ObjectPtr, src, filename string, line int, rval *core.Value) bool {
	c := n.context(cx)
	obj := c.scope(scope)
	defer c.unpin(c.pin(core.ObjectValue(obj)))
	c.beforeAlloc()

	vars, funcs := declarations(src)
	v, _, ok := c.call("evaluate", objLit(obj), jsString(src), jsString(filename), strconv.Itoa(line),
		jsList(vars), jsList(funcs))
	if !ok {
		if rval != nil {
			*rval = core.Undefined
		}
		n.uncaught(c)
		return false
	}
	if rval != nil {
		*rval = v
	}
	return true
}

func (n *Native) CompileScript(cx core.ContextPtr, scope *core.ObjectPtr, src, filename string, line int) core.ScriptPtr {
	c := n.context(cx)
	defer c.unpin(c.pin(core.ObjectValue(c.scope(scope))))
	c.beforeAlloc()

	vars, funcs := declarations(src)
	_, id, ok := c.call("compile", jsString(src), jsString(filename), strconv.Itoa(line),
		jsList(vars), jsList(funcs))
	if !ok {
		n.uncaught(c)
		return 0
	}
	return core.ScriptPtr(id)
}

func (n *Native) ExecuteScript(cx core.ContextPtr, scope *core.ObjectPtr, script *core.ScriptPtr, rval *core.Value) bool {
	c := n.context(cx)
	obj := c.scope(scope)
	defer c.unpin(c.pin(core.ObjectValue(obj)))
	defer c.unpin(c.pinCell(uint64(*script)))
	c.beforeAlloc()

	ref := "c:" + strconv.FormatUint(uint64(*script), 10)
	v, _, ok := c.call("execute", objLit(obj), jsString(ref))
	if !ok {
		if rval != nil {
			*rval = core.Undefined
		}
		n.uncaught(c)
		return false
	}
	if rval != nil {
		*rval = v
	}
	return true
}

// --- exceptions ---

func (n *Native) IsExceptionPending(cx core.ContextPtr) bool {
	return n.context(cx).hasPending
}

func (n *Native) GetPendingException(cx core.ContextPtr, vp *core.Value) bool {
	c := n.context(cx)
	if !c.hasPending {
		return false
	}
	*vp = c.pending
	return true
}

func (n *Native) SetPendingException(cx core.ContextPtr, v *core.Value) {
	n.context(cx).setPending(*v)
}

func (n *Native) ClearPendingException(cx core.ContextPtr) {
	n.context(cx).clearPending()
}

func (n *Native) ReportPendingException(cx core.ContextPtr) bool {
	return n.report(n.context(cx))
}

// --- objects ---

func (n *Native) NewObject(cx core.ContextPtr) core.ObjectPtr {
	c := n.context(cx)
	c.beforeAlloc()
	v, _, ok := c.call("newObject")
	if !ok {
		return 0
	}
	obj, _ := v.AsObject()
	return obj
}

func (n *Native) GetProperty(cx core.ContextPtr, obj *core.ObjectPtr, name string, vp *core.Value) bool {
	c := n.context(cx)
	defer c.unpin(c.pin(core.ObjectValue(*obj)))
	c.beforeAlloc()
	v, _, ok := c.call("get", objLit(*obj), jsString(name))
	if !ok {
		return false
	}
	*vp = v
	return true
}

func (n *Native) SetProperty(cx core.ContextPtr, obj *core.ObjectPtr, name string, v *core.Value) bool {
	c := n.context(cx)
	defer c.unpin(c.pin(core.ObjectValue(*obj), *v))
	c.beforeAlloc()
	_, _, ok := c.call("set", objLit(*obj), jsString(name), lit(*v))
	return ok
}

func (n *Native) HasProperty(cx core.ContextPtr, obj *core.ObjectPtr, name string, found *bool) bool {
	c := n.context(cx)
	defer c.unpin(c.pin(core.ObjectValue(*obj)))
	c.beforeAlloc()
	v, _, ok := c.call("has", objLit(*obj), jsString(name))
	if !ok {
		return false
	}
	*found = v.Bool()
	return true
}

func (n *Native) DeleteProperty(cx core.ContextPtr, obj *core.ObjectPtr, name string) bool {
	c := n.context(cx)
	defer c.unpin(c.pin(core.ObjectValue(*obj)))
	c.beforeAlloc()
	v, _, ok := c.call("del", objLit(*obj), jsString(name))
	return ok && v.Bool()
}

func (n *Native) GetPrototype(cx core.ContextPtr, obj *core.ObjectPtr, proto *core.ObjectPtr) bool {
	c := n.context(cx)
	defer c.unpin(c.pin(core.ObjectValue(*obj)))
	c.beforeAlloc()
	v, _, ok := c.call("proto", objLit(*obj))
	if !ok {
		return false
	}
	p, isObj := v.AsObject()
	if !isObj {
		return false
	}
	*proto = p
	return true
}

// --- arrays ---

func (n *Native) NewArrayObject(cx core.ContextPtr, length int) core.ObjectPtr {
	if length < 0 {
		return 0
	}
	c := n.context(cx)
	c.beforeAlloc()
	v, _, ok := c.call("newArray", strconv.Itoa(length))
	if !ok {
		return 0
	}
	obj, _ := v.AsObject()
	return obj
}

func (n *Native) NewArrayObjectFrom(cx core.ContextPtr, contents []core.Value) core.ObjectPtr {
	c := n.context(cx)
	defer c.unpin(c.pin(contents...))
	c.beforeAlloc()
	v, _, ok := c.call("arrayFrom", jsString(encodeList(contents)))
	if !ok {
		return 0
	}
	obj, _ := v.AsObject()
	return obj
}

func (n *Native) IsArrayObject(cx core.ContextPtr, obj *core.ObjectPtr, isArray *bool) bool {
	c := n.context(cx)
	defer c.unpin(c.pin(core.ObjectValue(*obj)))
	c.beforeAlloc()
	v, _, ok := c.call("isArray", objLit(*obj))
	if !ok {
		return false
	}
	*isArray = v.Bool()
	return true
}

func (n *Native) GetArrayLength(cx core.ContextPtr, obj *core.ObjectPtr, length *uint32) bool {
	c := n.context(cx)
	defer c.unpin(c.pin(core.ObjectValue(*obj)))
	c.beforeAlloc()
	v, _, ok := c.call("length", objLit(*obj))
	if !ok {
		return false
	}
	f, _ := v.Number()
	*length = uint32(f)
	return true
}

func (n *Native) SetArrayLength(cx core.ContextPtr, obj *core.ObjectPtr, length uint32) bool {
	c := n.context(cx)
	defer c.unpin(c.pin(core.ObjectValue(*obj)))
	c.beforeAlloc()
	_, _, ok := c.call("setLength", objLit(*obj), strconv.FormatUint(uint64(length), 10))
	return ok
}

func (n *Native) GetElement(cx core.ContextPtr, obj *core.ObjectPtr, index uint32, vp *core.Value) bool {
	c := n.context(cx)
	defer c.unpin(c.pin(core.ObjectValue(*obj)))
	c.beforeAlloc()
	v, _, ok := c.call("getElement", objLit(*obj), strconv.FormatUint(uint64(index), 10))
	if !ok {
		return false
	}
	*vp = v
	return true
}

func (n *Native) SetElement(cx core.ContextPtr, obj *core.ObjectPtr, index uint32, v *core.Value) bool {
	c := n.context(cx)
	defer c.unpin(c.pin(core.ObjectValue(*obj), *v))
	c.beforeAlloc()
	_, _, ok := c.call("setElement", objLit(*obj), strconv.FormatUint(uint64(index), 10), lit(*v))
	return ok
}

// --- strings and conversions ---

func (n *Native) NewStringCopy(cx core.ContextPtr, s string) core.StringPtr {
	c := n.context(cx)
	c.beforeAlloc()
	v, _, ok := c.call("newString", jsString(s))
	if !ok {
		return 0
	}
	str, _ := v.AsString()
	return str
}

func (n *Native) GetStringChars(cx core.ContextPtr, str core.StringPtr) (string, bool) {
	c := n.context(cx)
	sv := core.StringValue(str)
	defer c.unpin(c.pin(sv))
	return c.callRaw("chars", lit(sv))
}

func (n *Native) ValueToString(cx core.ContextPtr, v *core.Value) core.StringPtr {
	c := n.context(cx)
	defer c.unpin(c.pin(*v))
	c.beforeAlloc()
	r, _, ok := c.call("toString", lit(*v))
	if !ok {
		return 0
	}
	str, _ := r.AsString()
	return str
}

func (n *Native) TypeOfValue(cx core.ContextPtr, v *core.Value) core.JSType {
	c := n.context(cx)
	defer c.unpin(c.pin(*v))
	name, ok := c.callRaw("typeOf", lit(*v))
	if !ok {
		c.clearPending()
		return core.JSTypeVoid
	}
	switch name {
	case "object":
		return core.JSTypeObject
	case "function":
		return core.JSTypeFunction
	case "string":
		return core.JSTypeString
	case "number", "bigint":
		return core.JSTypeNumber
	case "boolean":
		return core.JSTypeBoolean
	case "null":
		return core.JSTypeNull
	case "symbol":
		return core.JSTypeSymbol
	default:
		return core.JSTypeVoid
	}
}

// --- functions ---

func (n *Native) DefineFunction(cx core.ContextPtr, obj *core.ObjectPtr, name string, fn core.NativeFunc, nargs int, attrs uint32) core.ObjectPtr {
	c := n.context(cx)
	defer c.unpin(c.pin(core.ObjectValue(*obj)))
	c.beforeAlloc()

	c.nextFn++
	id := c.nextFn
	c.funcs[id] = fn

	v, _, ok := c.call("define", objLit(*obj), jsString(name),
		strconv.Itoa(id), strconv.Itoa(nargs), strconv.FormatUint(uint64(attrs), 10))
	if !ok {
		delete(c.funcs, id)
		return 0
	}
	f, _ := v.AsObject()
	return f
}

func (n *Native) CallFunctionValue(cx core.ContextPtr, this *core.ObjectPtr, fn *core.Value, args []core.Value, rval *core.Value) bool {
	c := n.context(cx)
	thisVal := core.Undefined
	if this != nil {
		thisVal = core.ObjectValue(*this)
	}
	defer c.unpin(c.pin(append([]core.Value{thisVal, *fn}, args...)...))
	c.beforeAlloc()

	v, _, ok := c.call("call", lit(thisVal), lit(*fn), jsString(encodeList(args)))
	if !ok {
		n.uncaught(c)
		return false
	}
	*rval = v
	return true
}

func (n *Native) New(cx core.ContextPtr, ctor *core.ObjectPtr, args []core.Value) core.ObjectPtr {
	c := n.context(cx)
	defer c.unpin(c.pin(append([]core.Value{core.ObjectValue(*ctor)}, args...)...))
	c.beforeAlloc()

	v, _, ok := c.call("construct", objLit(*ctor), jsString(encodeList(args)))
	if !ok {
		return 0
	}
	obj, _ := v.AsObject()
	return obj
}

func (n *Native) NewError(cx core.ContextPtr, args []core.Value) core.ObjectPtr {
	c := n.context(cx)
	defer c.unpin(c.pin(args...))
	c.beforeAlloc()

	v, _, ok := c.call("newError", jsString(encodeList(args)))
	if !ok {
		return 0
	}
	obj, _ := v.AsObject()
	return obj
}

func (n *Native) RunJobs(cx core.ContextPtr) int {
	return n.context(cx).realm.RunMicrotasks()
}
