package jsapi

import (
	"reflect"
	"testing"
)

func TestDeclarations(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		vars  []string
		funcs []string
	}{
		{"simple var", "var x = 1;", []string{"x"}, nil},
		{"declarator list", "var a = f(1, 2), b, c = [3, 4]", []string{"a", "b", "c"}, nil},
		{"nested block", "if (ok) { var inner = 1 } else { while (x) { var deep } }", []string{"inner", "deep"}, nil},
		{"for loops", "for (var i = 0; i < 3; i++) {}\nfor (var k in o) {}", []string{"i", "k"}, nil},
		{"function body", "function f(a) { var hidden = a; return hidden }", nil, []string{"f"}},
		{"function expression", "var g = function () { var hidden; };", []string{"g"}, nil},
		{"arrow body", "var h = (x) => { var hidden = x; return hidden };", []string{"h"}, nil},
		{"method body", "var o = { m(a) { var hidden } };", []string{"o"}, nil},
		{"generator and async", "function* gen() {}\nasync function run() {}", nil, []string{"gen", "run"}},
		{"nested function declaration", "{ function blocky() {} }", nil, nil},
		{"function expression statement", "x = function named() {};", nil, nil},
		{"lexical declarations", "let a = 1; const b = 2; class C {}", nil, nil},
		{"destructuring", "var {a, b: c, d = e, ...rest} = o, [x, , y = z] = l;", []string{"a", "c", "d", "rest", "x", "y"}, nil},
		{"asi", "var a = 1\nvar b = 2\nfoo()", []string{"a", "b"}, nil},
		{"strings and comments", "// var no\n/* var no2 */ var s = 'var q'; var t = \"}\"", []string{"s", "t"}, nil},
		{"template", "var tpl = `a ${ {b: 1}.b } var nope`; var after = 1", []string{"tpl", "after"}, nil},
		{"regexp", "var re = /[/}]var/g; var next = 2 / 1", []string{"re", "next"}, nil},
		{"property named var", "o.var = 1; x = {var: 2};", nil, nil},
		{"duplicates", "var a; var a = 2; function f() {} function f() {}", []string{"a"}, []string{"f"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vars, funcs := declarations(tt.src)
			if !reflect.DeepEqual(vars, tt.vars) {
				t.Errorf("vars = %q, want %q", vars, tt.vars)
			}
			if !reflect.DeepEqual(funcs, tt.funcs) {
				t.Errorf("funcs = %q, want %q", funcs, tt.funcs)
			}
		})
	}
}

func TestJSList(t *testing.T) {
	if got := jsList(nil); got != "[]" {
		t.Errorf("jsList(nil) = %s", got)
	}
	if got := jsList([]string{"a", `q"t`}); got != `["a","q\"t"]` {
		t.Errorf("jsList = %s", got)
	}
}
