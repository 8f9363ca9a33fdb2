package jsbridge

import (
	"unicode/utf16"

	"github.com/cryguy/jsbridge/errors"
	"github.com/cryguy/jsbridge/internal/core"
)

// String is a rooted reference to an engine string.
type String struct {
	ctx  *Context
	root *Rooted[core.StringPtr]
}

// NewString copies text into a new engine string.
func (c *Context) NewString(text string) (*String, error) {
	if err := c.enter("NewString"); err != nil {
		return nil, err
	}
	ptr := c.native.NewStringCopy(c.ptr, text)
	if ptr == 0 {
		return nil, c.failure(errors.PhaseMarshal, "NewStringCopy")
	}
	return c.wrapString(ptr)
}

// StringFrom roots v when it is a string, and otherwise roots the result
// of converting it with String().
func (c *Context) StringFrom(v Value) (*String, error) {
	if err := c.enter("StringFrom"); err != nil {
		return nil, err
	}
	if ptr, ok := v.AsString(); ok {
		return c.wrapString(ptr)
	}
	var ptr core.StringPtr
	c.quietly(func() bool {
		ptr = c.native.ValueToString(c.ptr, &v)
		return ptr != 0
	})
	if ptr == 0 {
		return nil, c.failure(errors.PhaseMarshal, "ValueToString")
	}
	return c.wrapString(ptr)
}

func (c *Context) wrapString(ptr core.StringPtr) (*String, error) {
	r, err := newRooted(c.native, c.ptr, c, ptr)
	if err != nil {
		return nil, err
	}
	return &String{ctx: c, root: r}, nil
}

// Rooted exposes the root holding the string.
func (s *String) Rooted() *Rooted[StringPtr] {
	return s.root
}

// Value returns the string as a Value.
func (s *String) Value() Value {
	p, _ := s.root.Get()
	return core.StringValue(p)
}

// Dispose removes the string's root.
func (s *String) Dispose() {
	s.root.Dispose()
}

// Text returns the string's contents.
func (s *String) Text() (string, error) {
	if err := s.ctx.enter("String.Text"); err != nil {
		return "", err
	}
	p, err := s.root.Get()
	if err != nil {
		return "", err
	}
	return s.ctx.chars(p, "String.Text")
}

// Len returns the length in UTF-16 code units, as script sees it.
func (s *String) Len() (int, error) {
	text, err := s.Text()
	if err != nil {
		return 0, err
	}
	return len(utf16.Encode([]rune(text))), nil
}

// String returns the contents, or "" when they cannot be read.
func (s *String) String() string {
	text, _ := s.Text()
	return text
}
