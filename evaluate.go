package jsbridge

import (
	"github.com/cryguy/jsbridge/errors"
	"github.com/cryguy/jsbridge/internal/core"
)

// EvalOptions locates and classifies source handed to Evaluate.
type EvalOptions struct {
	Filename   string // reported in errors and stacks, "script.js" when empty
	Line       int    // line number of the first source line, 1 when zero
	Loader     Loader
	ModuleName string // LoaderESM only: global receiving the exports
}

func (o EvalOptions) withDefaults() EvalOptions {
	if o.Filename == "" {
		o.Filename = "script.js"
	}
	if o.Line <= 0 {
		o.Line = 1
	}
	return o
}

// scopeHandle resolves the evaluation scope; nil means the global object.
func (c *Context) scopeHandle(scope *Object, op string) (*core.ObjectPtr, error) {
	if scope == nil {
		g, err := c.GlobalObject()
		if err != nil {
			return nil, err
		}
		scope = g
	}
	h := scope.root.AsHandle()
	if h == nil {
		return nil, errors.UseAfterDispose(errors.PhaseEvaluate, op)
	}
	return h, nil
}

// Evaluate runs src with scope as its variable object (nil for the global
// object). An exception escaping the script comes back as the second
// result and is cleared; it is never handed to the Reporter. The third
// result carries failures of the bridge itself.
func (c *Context) Evaluate(scope *Object, src string, opts EvalOptions) (*Rooted[Value], *EvaluationError, error) {
	if err := c.enter("Evaluate"); err != nil {
		return nil, nil, err
	}
	opts = opts.withDefaults()
	h, err := c.scopeHandle(scope, "Evaluate")
	if err != nil {
		return nil, nil, err
	}

	code, terr := transform(src, opts)
	if terr != nil {
		return nil, terr, nil
	}

	rval, err := newRooted(c.native, c.ptr, c, core.Undefined)
	if err != nil {
		return nil, nil, err
	}
	ok := c.quietly(func() bool {
		return c.native.EvaluateScript(c.ptr, h, code, opts.Filename, opts.Line, rval.AsHandle())
	})
	if ok {
		return rval, nil, nil
	}
	rval.Dispose()
	if c.native.IsExceptionPending(c.ptr) {
		if e := c.takeException(); e != nil {
			return nil, e, nil
		}
	}
	return nil, nil, errors.OperationFailed(errors.PhaseEvaluate, "EvaluateScript", uintptr(c.ptr))
}

// EvaluateRaw runs plain script source the way the engine's own entry
// point does. On failure it returns Undefined and an ErrEvaluation error;
// the exception goes to the Reporter, or stays pending when uncaught
// reporting is off so that Exception() can inspect it.
func (c *Context) EvaluateRaw(scope *Object, src, filename string, line int) (*Rooted[Value], error) {
	if err := c.enter("EvaluateRaw"); err != nil {
		return nil, err
	}
	h, err := c.scopeHandle(scope, "EvaluateRaw")
	if err != nil {
		return nil, err
	}
	rval, err := newRooted(c.native, c.ptr, c, core.Undefined)
	if err != nil {
		return nil, err
	}
	if c.native.EvaluateScript(c.ptr, h, src, filename, line, rval.AsHandle()) {
		return rval, nil
	}
	_ = rval.Set(core.Undefined)
	return rval, errors.New(errors.PhaseEvaluate, errors.KindEvaluation).
		Op("EvaluateRaw").
		Context(uintptr(c.ptr)).
		Detail("evaluation of %s failed", filename).
		Build()
}

// Compile compiles src into a rooted script for later Execute calls.
// Syntax errors come back as an *EvaluationError.
func (c *Context) Compile(scope *Object, src string, opts EvalOptions) (*Rooted[ScriptPtr], error) {
	if err := c.enter("Compile"); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	h, err := c.scopeHandle(scope, "Compile")
	if err != nil {
		return nil, err
	}
	code, terr := transform(src, opts)
	if terr != nil {
		return nil, terr
	}

	var script core.ScriptPtr
	c.quietly(func() bool {
		script = c.native.CompileScript(c.ptr, h, code, opts.Filename, opts.Line)
		return script != 0
	})
	if script == 0 {
		return nil, c.failure(errors.PhaseEvaluate, "CompileScript")
	}
	return newRooted(c.native, c.ptr, c, script)
}

// Execute runs a compiled script. A thrown exception comes back as an
// *EvaluationError.
func (c *Context) Execute(scope *Object, script *Rooted[ScriptPtr]) (*Rooted[Value], error) {
	if err := c.enter("Execute"); err != nil {
		return nil, err
	}
	h, err := c.scopeHandle(scope, "Execute")
	if err != nil {
		return nil, err
	}
	sh := script.AsHandle()
	if sh == nil {
		return nil, errors.UseAfterDispose(errors.PhaseEvaluate, "Execute")
	}

	rval, err := newRooted(c.native, c.ptr, c, core.Undefined)
	if err != nil {
		return nil, err
	}
	ok := c.quietly(func() bool {
		return c.native.ExecuteScript(c.ptr, h, sh, rval.AsHandle())
	})
	if !ok {
		rval.Dispose()
		return nil, c.failure(errors.PhaseEvaluate, "ExecuteScript")
	}
	return rval, nil
}
