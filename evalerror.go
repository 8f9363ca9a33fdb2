package jsbridge

import (
	"strconv"
	"strings"

	"github.com/cryguy/jsbridge/errors"
	"github.com/cryguy/jsbridge/internal/core"
)

// maxInnerDepth bounds how far innerException chains are followed.
const maxInnerDepth = 16

// EvaluationError is an exception that escaped a script, captured as Go
// data. Inner follows the thrown error's innerException property.
type EvaluationError struct {
	Name     string // constructor name, empty for thrown primitives
	Message  string
	Filename string
	Line     int
	Stack    string
	Thrown   string // String() of the thrown value
	Inner    *EvaluationError
}

func (e *EvaluationError) Error() string {
	var b strings.Builder
	if e.Thrown != "" {
		b.WriteString(e.Thrown)
	} else {
		b.WriteString(e.Message)
	}
	if e.Filename != "" {
		b.WriteString(" (")
		b.WriteString(e.Filename)
		if e.Line > 0 {
			b.WriteByte(':')
			b.WriteString(strconv.Itoa(e.Line))
		}
		b.WriteByte(')')
	}
	return b.String()
}

// Unwrap returns the inner exception, if any.
func (e *EvaluationError) Unwrap() error {
	if e.Inner == nil {
		return nil
	}
	return e.Inner
}

// Is matches ErrEvaluation.
func (e *EvaluationError) Is(target error) bool {
	t, ok := target.(*errors.Error)
	return ok && t.Kind == errors.KindEvaluation
}

// describe captures the exception held by root. Property reads that throw
// are skipped.
func (c *Context) describe(root *Rooted[Value], depth int) *EvaluationError {
	exc := root.MustGet()
	e := &EvaluationError{}
	e.Thrown, _ = c.stringOf(exc, "describe")

	objPtr, ok := exc.AsObject()
	if !ok || objPtr == 0 {
		e.Message = e.Thrown
		return e
	}
	obj, err := c.wrapObject(objPtr)
	if err != nil {
		e.Message = e.Thrown
		return e
	}
	defer obj.Dispose()

	if ctor, ok := c.property(obj, "constructor"); ok {
		if ctorPtr, isObj := ctor.MustGet().AsObject(); isObj && ctorPtr != 0 {
			if co, err := c.wrapObject(ctorPtr); err == nil {
				e.Name = c.propertyString(co, "name")
				co.Dispose()
			}
		}
		ctor.Dispose()
	}
	if e.Name == "" {
		e.Name = c.propertyString(obj, "name")
	}
	e.Message = c.propertyString(obj, "message")
	e.Filename = c.propertyString(obj, "fileName")
	e.Stack = c.propertyString(obj, "stack")
	if line, ok := c.property(obj, "lineNumber"); ok {
		if f, isNum := line.MustGet().Number(); isNum {
			e.Line = int(f)
		}
		line.Dispose()
	}

	if depth < maxInnerDepth {
		if inner, ok := c.property(obj, "innerException"); ok {
			if v := inner.MustGet(); !v.IsNullOrUndefined() {
				e.Inner = c.describe(inner, depth+1)
			}
			inner.Dispose()
		}
	}
	return e
}

// property reads name from obj, clearing anything a getter throws.
func (c *Context) property(obj *Object, name string) (*Rooted[Value], bool) {
	h := obj.root.AsHandle()
	if h == nil {
		return nil, false
	}
	var v core.Value
	ok := c.quietly(func() bool {
		return c.native.GetProperty(c.ptr, h, name, &v)
	})
	if !ok {
		c.native.ClearPendingException(c.ptr)
		return nil, false
	}
	r, err := newRooted(c.native, c.ptr, c, v)
	if err != nil {
		return nil, false
	}
	return r, true
}

// propertyString reads name from obj as a string. Undefined and failed
// reads give "".
func (c *Context) propertyString(obj *Object, name string) string {
	r, ok := c.property(obj, name)
	if !ok {
		return ""
	}
	defer r.Dispose()
	v := r.MustGet()
	if v.IsUndefined() {
		return ""
	}
	s, _ := c.stringOf(v, "describe")
	return s
}
