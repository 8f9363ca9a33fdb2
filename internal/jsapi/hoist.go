package jsapi

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Scoped evaluation runs source inside a with block on the scope object.
// The engine still puts var and function bindings in the evaluator's own
// frame, so the names declared at the top level of a script are found
// ahead of time and defined on the scope first.

type tokKind uint8

const (
	tokIdent tokKind = iota
	tokPunct
	tokNumber
	tokString
	tokRegexp
)

type token struct {
	kind tokKind
	text string
	nl   bool // a line terminator precedes the token
}

var puncts = []string{
	">>>=", "...", "===", "!==", "**=", "<<=", ">>=", ">>>", "&&=", "||=", "??=",
	"=>", "==", "!=", "<=", ">=", "&&", "||", "??", "?.", "++", "--", "+=", "-=",
	"*=", "/=", "%=", "&=", "|=", "^=", "<<", ">>", "**",
}

// regexAfter lists the keywords after which a slash starts a regexp.
var regexAfter = map[string]bool{
	"return": true, "typeof": true, "instanceof": true, "in": true, "of": true,
	"new": true, "delete": true, "void": true, "throw": true, "case": true,
	"do": true, "else": true, "yield": true, "await": true,
}

// control keywords take a parenthesised head followed by a block, not a body.
var control = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true, "with": true,
}

var reserved = map[string]bool{
	"break": true, "case": true, "catch": true, "class": true, "const": true,
	"continue": true, "debugger": true, "default": true, "delete": true, "do": true,
	"else": true, "export": true, "extends": true, "finally": true, "for": true,
	"function": true, "if": true, "import": true, "in": true, "instanceof": true,
	"new": true, "return": true, "super": true, "switch": true, "this": true,
	"throw": true, "try": true, "typeof": true, "var": true, "void": true,
	"while": true, "with": true, "null": true, "true": true, "false": true,
}

type lexer struct {
	src    string
	pos    int
	nl     bool
	toks   []token
	braces []bool // true for a template substitution
}

func (l *lexer) emit(k tokKind, text string) {
	l.toks = append(l.toks, token{kind: k, text: text, nl: l.nl})
	l.nl = false
}

func (l *lexer) prev() *token {
	if len(l.toks) == 0 {
		return nil
	}
	return &l.toks[len(l.toks)-1]
}

func (l *lexer) regexAllowed() bool {
	p := l.prev()
	switch {
	case p == nil:
		return true
	case p.kind == tokPunct:
		return p.text != ")" && p.text != "]" && p.text != "}"
	case p.kind == tokIdent:
		return regexAfter[p.text]
	}
	return false
}

func isIdentStart(r rune) bool {
	return r == '$' || r == '_' || r == '#' || r == '\\' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r) || r == '\u200c' || r == '\u200d'
}

// lex splits src into the tokens the declaration scan needs. Template
// substitutions are emitted as parenthesised groups.
func lex(src string) []token {
	l := &lexer{src: src}
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\n' || c == '\r':
			l.nl = true
			l.pos++
		case c == ' ' || c == '\t' || c == '\v' || c == '\f':
			l.pos++
		case strings.HasPrefix(l.src[l.pos:], "//"):
			end := strings.IndexAny(l.src[l.pos:], "\r\n")
			if end < 0 {
				l.pos = len(l.src)
			} else {
				l.pos += end
			}
		case strings.HasPrefix(l.src[l.pos:], "/*"):
			end := strings.Index(l.src[l.pos+2:], "*/")
			body := l.src[l.pos:]
			if end >= 0 {
				body = l.src[l.pos : l.pos+end+4]
			}
			if strings.ContainsAny(body, "\r\n") {
				l.nl = true
			}
			l.pos += len(body)
		case c == '"' || c == '\'':
			l.quoted(c)
		case c == '`':
			l.pos++
			l.template()
		case c >= '0' && c <= '9' || c == '.' && l.pos+1 < len(l.src) && l.src[l.pos+1] >= '0' && l.src[l.pos+1] <= '9':
			l.number()
		case c == '/' && l.regexAllowed():
			l.regexp()
		case c == '{':
			l.braces = append(l.braces, false)
			l.emit(tokPunct, "{")
			l.pos++
		case c == '}':
			if n := len(l.braces); n > 0 && l.braces[n-1] {
				l.braces = l.braces[:n-1]
				l.emit(tokPunct, ")")
				l.pos++
				l.template()
				continue
			} else if n > 0 {
				l.braces = l.braces[:n-1]
			}
			l.emit(tokPunct, "}")
			l.pos++
		default:
			r, size := utf8.DecodeRuneInString(l.src[l.pos:])
			switch {
			case r == '\u2028' || r == '\u2029':
				l.nl = true
				l.pos += size
			case unicode.IsSpace(r):
				l.pos += size
			case isIdentStart(r):
				l.ident()
			default:
				l.punct()
			}
		}
	}
	return l.toks
}

func (l *lexer) quoted(q byte) {
	start := l.pos
	l.pos++
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case '\\':
			l.pos += 2
			continue
		case q:
			l.pos++
			l.emit(tokString, l.src[start:l.pos])
			return
		}
		l.pos++
	}
	l.emit(tokString, l.src[start:])
}

// template scans template text up to the closing backtick or the next
// substitution.
func (l *lexer) template() {
	start := l.pos
	for l.pos < len(l.src) {
		switch {
		case l.src[l.pos] == '\\':
			l.pos += 2
		case l.src[l.pos] == '`':
			l.emit(tokString, l.src[start:l.pos])
			l.pos++
			return
		case strings.HasPrefix(l.src[l.pos:], "${"):
			l.emit(tokString, l.src[start:l.pos])
			l.emit(tokPunct, "(")
			l.braces = append(l.braces, true)
			l.pos += 2
			return
		default:
			l.pos++
		}
	}
	l.pos = len(l.src)
	l.emit(tokString, l.src[start:])
}

func (l *lexer) number() {
	start := l.pos
	hex := strings.HasPrefix(l.src[l.pos:], "0x") || strings.HasPrefix(l.src[l.pos:], "0X")
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_', c == '.':
			l.pos++
		case (c == '+' || c == '-') && !hex && (l.src[l.pos-1] == 'e' || l.src[l.pos-1] == 'E'):
			l.pos++
		default:
			l.emit(tokNumber, l.src[start:l.pos])
			return
		}
	}
	l.emit(tokNumber, l.src[start:])
}

func (l *lexer) regexp() {
	start := l.pos
	l.pos++
	class := false
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\\':
			l.pos += 2
			continue
		case c == '\n' || c == '\r':
			l.emit(tokRegexp, l.src[start:l.pos])
			return
		case c == '[':
			class = true
		case c == ']':
			class = false
		case c == '/' && !class:
			l.pos++
			for l.pos < len(l.src) {
				r, size := utf8.DecodeRuneInString(l.src[l.pos:])
				if !isIdentPart(r) {
					break
				}
				l.pos += size
			}
			l.emit(tokRegexp, l.src[start:l.pos])
			return
		}
		l.pos++
	}
	l.emit(tokRegexp, l.src[start:])
}

func (l *lexer) ident() {
	start := l.pos
	for l.pos < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if !isIdentPart(r) {
			break
		}
		l.pos += size
	}
	l.emit(tokIdent, l.src[start:l.pos])
}

func (l *lexer) punct() {
	rest := l.src[l.pos:]
	for _, p := range puncts {
		if strings.HasPrefix(rest, p) {
			l.emit(tokPunct, p)
			l.pos += len(p)
			return
		}
	}
	_, size := utf8.DecodeRuneInString(rest)
	l.emit(tokPunct, rest[:size])
	l.pos += size
}

// declarations scans src for the var names and function declarations that
// belong to its top level. Vars nested in blocks count; anything inside a
// function body does not. Function declarations count only outside any
// braces.
func declarations(src string) (vars, funcs []string) {
	s := &scan{toks: lex(src)}
	s.run()
	return s.vars, s.funcs
}

type scan struct {
	toks   []token
	i      int
	parens []int  // index of each open '('
	braces []bool // true for a function body
	bodies int
	closed int // opener of the last ')' seen, -1 when the last token was not ')'
	vars   []string
	funcs  []string
}

func (s *scan) at(i int) *token {
	if i < 0 || i >= len(s.toks) {
		return nil
	}
	return &s.toks[i]
}

func (s *scan) is(i int, kind tokKind, text string) bool {
	t := s.at(i)
	return t != nil && t.kind == kind && t.text == text
}

func (s *scan) run() {
	s.closed = -1
	for s.i < len(s.toks) {
		t := s.toks[s.i]
		closed := s.closed
		s.closed = -1
		switch {
		case t.kind == tokPunct && t.text == "(":
			s.parens = append(s.parens, s.i)
		case t.kind == tokPunct && t.text == ")":
			if n := len(s.parens); n > 0 {
				s.closed = s.parens[n-1]
				s.parens = s.parens[:n-1]
			}
		case t.kind == tokPunct && t.text == "{":
			body := s.is(s.i-1, tokPunct, "=>") || closed >= 0 && s.headsBody(closed)
			s.braces = append(s.braces, body)
			if body {
				s.bodies++
			}
		case t.kind == tokPunct && t.text == "}":
			if n := len(s.braces); n > 0 {
				if s.braces[n-1] {
					s.bodies--
				}
				s.braces = s.braces[:n-1]
			}
		case t.kind == tokIdent && t.text == "var" && s.bodies == 0 && s.declares(s.i):
			s.i++
			s.declarators()
			continue
		case t.kind == tokIdent && t.text == "function" && len(s.braces) == 0 && s.statement(s.i):
			j := s.i + 1
			if s.is(j, tokPunct, "*") {
				j++
			}
			if n := s.at(j); n != nil && n.kind == tokIdent && !reserved[n.text] {
				s.add(&s.funcs, n.text)
			}
		}
		s.i++
	}
}

// headsBody reports whether the parenthesis opened at open is a parameter
// list, making the following brace a function body.
func (s *scan) headsBody(open int) bool {
	p := s.at(open - 1)
	if p == nil {
		return false
	}
	switch {
	case p.kind == tokIdent:
		return !control[p.text]
	case p.kind == tokPunct && p.text == "*":
		return s.is(open-2, tokIdent, "function")
	case p.kind == tokPunct && p.text == "]":
		return true // computed method name
	case p.kind == tokString:
		return true
	}
	return false
}

// declares rules out property names spelled var.
func (s *scan) declares(i int) bool {
	if p := s.at(i - 1); p != nil && p.kind == tokPunct && (p.text == "." || p.text == "?.") {
		return false
	}
	n := s.at(i + 1)
	return n != nil && !(n.kind == tokPunct && n.text == ":")
}

// statement reports whether the token at i starts a statement.
func (s *scan) statement(i int) bool {
	p := s.at(i - 1)
	if p != nil && p.kind == tokIdent && p.text == "async" && !s.toks[i].nl {
		i--
		p = s.at(i - 1)
	}
	if p == nil {
		return true
	}
	if p.kind == tokPunct {
		switch p.text {
		case ";", "}", "{":
			return true
		case ")", "]":
			return s.toks[i].nl
		}
		return false
	}
	if p.kind == tokIdent && reserved[p.text] {
		return p.text == "else" || p.text == "do"
	}
	return s.toks[i].nl
}

func (s *scan) add(list *[]string, name string) {
	if !slices.Contains(*list, name) {
		*list = append(*list, name)
	}
}

// declarators consumes the binding list of a var statement.
func (s *scan) declarators() {
	for s.i < len(s.toks) {
		t := s.toks[s.i]
		switch {
		case t.kind == tokIdent && !reserved[t.text]:
			s.add(&s.vars, t.text)
			s.i++
		case t.kind == tokPunct && (t.text == "{" || t.text == "["):
			s.pattern()
		default:
			return
		}
		if s.is(s.i, tokPunct, "=") {
			s.i++
			s.skipExpr()
		}
		if !s.is(s.i, tokPunct, ",") {
			return
		}
		s.i++
	}
}

// pattern collects the bindings of a destructuring pattern starting at an
// opening brace or bracket.
func (s *scan) pattern() {
	depth := 0
	for s.i < len(s.toks) {
		t := s.toks[s.i]
		if t.kind == tokPunct {
			switch t.text {
			case "{", "[":
				depth++
			case "}", "]":
				depth--
				if depth == 0 {
					s.i++
					return
				}
			case "=":
				s.i++
				s.skipExpr()
				continue
			}
		}
		if t.kind == tokIdent && !reserved[t.text] && !s.is(s.i+1, tokPunct, ":") {
			s.add(&s.vars, t.text)
		}
		s.i++
	}
}

// skipExpr advances past an initializer, stopping at a top-level comma,
// a semicolon, an unmatched closer, or a line break that ends the
// statement.
func (s *scan) skipExpr() {
	depth := 0
	start := s.i
	for s.i < len(s.toks) {
		t := s.toks[s.i]
		if t.kind == tokPunct {
			switch t.text {
			case "(", "[", "{":
				depth++
			case ")", "]", "}":
				if depth == 0 {
					return
				}
				depth--
			case ",", ";":
				if depth == 0 {
					return
				}
			}
		}
		if depth == 0 && s.i > start && t.nl && s.ends(s.i-1) && t.kind != tokPunct {
			return
		}
		s.i++
	}
}

// ends reports whether the token at i can close an expression.
func (s *scan) ends(i int) bool {
	t := s.at(i)
	if t == nil {
		return false
	}
	switch t.kind {
	case tokIdent:
		return !reserved[t.text] || t.text == "this" || t.text == "null" || t.text == "true" || t.text == "false"
	case tokPunct:
		return t.text == ")" || t.text == "]" || t.text == "}" || t.text == "++" || t.text == "--"
	}
	return true
}
