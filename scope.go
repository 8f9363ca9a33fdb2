package jsbridge

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cryguy/jsbridge/errors"
	"github.com/cryguy/jsbridge/internal/core"
)

// scope is an open Request or CompartmentEntry. Scopes close in reverse
// order of opening.
type scope interface {
	scopeName() string
}

func (c *Context) pushScope(s scope) {
	c.scopes = append(c.scopes, s)
}

// popScope closes s if it is the innermost open scope.
func (c *Context) popScope(s scope, op string) error {
	n := len(c.scopes)
	if n > 0 && c.scopes[n-1] == s {
		c.scopes[n-1] = nil
		c.scopes = c.scopes[:n-1]
		return nil
	}

	innermost := "nothing"
	if n > 0 {
		innermost = c.scopes[n-1].scopeName()
	}
	err := errors.ScopeOrder(op, uintptr(c.ptr),
		fmt.Sprintf("%s closed while %s is innermost", s.scopeName(), innermost))
	Logger().Warn("scope closed out of order",
		zap.Uintptr("cx", uintptr(c.ptr)),
		zap.String("scope", s.scopeName()),
		zap.String("innermost", innermost))
	emit(c.cfg.Observer, Event{
		Type:    EventScopeViolation,
		Context: uintptr(c.ptr),
		Kind:    s.scopeName(),
		Detail:  err.Detail,
	})
	if c.cfg.DebugScopes {
		panic(err)
	}
	return err
}

// Request is an open request on a Context. Close it on every path,
// typically with defer.
type Request struct {
	ctx    *Context
	closed bool
}

func (*Request) scopeName() string { return "request" }

// Request begins a request. Requests nest; the outermost Close lets the
// engine collect.
func (c *Context) Request() (*Request, error) {
	if err := c.enter("Request"); err != nil {
		return nil, err
	}
	c.native.BeginRequest(c.ptr)
	r := &Request{ctx: c}
	c.pushScope(r)
	return r, nil
}

// Close ends the request. Closing it again does nothing; closing it while
// an inner scope is open fails and leaves it open.
func (r *Request) Close() error {
	if r.closed {
		return nil
	}
	if err := r.ctx.enter("Request.Close"); err != nil {
		return err
	}
	if err := r.ctx.popScope(r, "Request.Close"); err != nil {
		return err
	}
	r.closed = true
	r.ctx.native.EndRequest(r.ctx.ptr)
	return nil
}

// CompartmentEntry is an entered compartment. Close restores the
// compartment that was current before it.
type CompartmentEntry struct {
	ctx    *Context
	target *Object
	old    core.CompartmentPtr
	closed bool
}

func (*CompartmentEntry) scopeName() string { return "compartment" }

// EnterCompartment makes target's compartment current.
func (c *Context) EnterCompartment(target *Object) (*CompartmentEntry, error) {
	if err := c.enter("EnterCompartment"); err != nil {
		return nil, err
	}
	h, err := target.handle("EnterCompartment")
	if err != nil {
		return nil, err
	}
	e := &CompartmentEntry{
		ctx:    c,
		target: target,
		old:    c.native.EnterCompartment(c.ptr, *h),
	}
	c.pushScope(e)
	return e, nil
}

// Target returns the object whose compartment was entered.
func (e *CompartmentEntry) Target() *Object {
	return e.target
}

// Close leaves the compartment. Closing it again does nothing; closing it
// while an inner scope is open fails and leaves it entered.
func (e *CompartmentEntry) Close() error {
	if e.closed {
		return nil
	}
	if err := e.ctx.enter("CompartmentEntry.Close"); err != nil {
		return err
	}
	if err := e.ctx.popScope(e, "CompartmentEntry.Close"); err != nil {
		return err
	}
	e.closed = true
	e.ctx.native.LeaveCompartment(e.ctx.ptr, e.old)
	return nil
}
