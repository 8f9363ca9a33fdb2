package jsbridge

import (
	"github.com/cryguy/jsbridge/errors"
	"github.com/cryguy/jsbridge/internal/core"
)

// Exception gives access to a Context's pending exception.
type Exception struct {
	ctx *Context
}

// Exception returns the accessor for c's pending exception.
func (c *Context) Exception() Exception {
	return Exception{ctx: c}
}

// IsPending reports whether an exception is pending.
func (e Exception) IsPending() (bool, error) {
	if err := e.ctx.enter("Exception.IsPending"); err != nil {
		return false, err
	}
	return e.ctx.native.IsExceptionPending(e.ctx.ptr), nil
}

// Get roots the pending exception without clearing it.
func (e Exception) Get() (*Rooted[Value], error) {
	c := e.ctx
	if err := c.enter("Exception.Get"); err != nil {
		return nil, err
	}
	var v core.Value
	if !c.native.GetPendingException(c.ptr, &v) {
		return nil, errors.NotFound(errors.PhaseEvaluate, "exception", "pending")
	}
	return newRooted(c.native, c.ptr, c, v)
}

// Describe captures the pending exception without clearing it.
func (e Exception) Describe() (*EvaluationError, error) {
	r, err := e.Get()
	if err != nil {
		return nil, err
	}
	defer r.Dispose()
	// describe may clear exceptions raised by getters; put ours back.
	v := r.MustGet()
	d := e.ctx.describe(r, 0)
	e.ctx.native.SetPendingException(e.ctx.ptr, &v)
	return d, nil
}

// Clear drops the pending exception, if any.
func (e Exception) Clear() error {
	if err := e.ctx.enter("Exception.Clear"); err != nil {
		return err
	}
	e.ctx.native.ClearPendingException(e.ctx.ptr)
	return nil
}

// Set makes v the pending exception. v must be rooted by the caller or be
// a primitive.
func (e Exception) Set(v Value) error {
	if err := e.ctx.enter("Exception.Set"); err != nil {
		return err
	}
	e.ctx.native.SetPendingException(e.ctx.ptr, &v)
	return nil
}

// Report hands the pending exception to the Reporter and clears it. It
// reports whether there was one.
func (e Exception) Report() (bool, error) {
	if err := e.ctx.enter("Exception.Report"); err != nil {
		return false, err
	}
	return e.ctx.native.ReportPendingException(e.ctx.ptr), nil
}
