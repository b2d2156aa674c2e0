package syntax

import (
	"strings"
)

type lexer struct {
	src  string
	pos  int
	line int
	col  int
}

func newLexer(src string) *lexer {
	return &lexer{src: src, line: 1, col: 1}
}

func (l *lexer) peekByte(off int) byte {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

func (l *lexer) advance(n int) {
	for i := 0; i < n && l.pos < len(l.src); i++ {
		if l.src[l.pos] == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
		l.pos++
	}
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f':
			l.advance(1)
		case c == '/' && l.peekByte(1) == '/':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.advance(1)
			}
		case c == '/' && l.peekByte(1) == '*':
			end := strings.Index(l.src[l.pos+2:], "*/")
			if end < 0 {
				l.advance(len(l.src) - l.pos)
				return
			}
			l.advance(end + 4)
		case c == '`':
			// compiler directives occupy the rest of the line
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.advance(1)
			}
		default:
			return
		}
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9') || c == '$'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isBaseDigit(c byte) bool {
	switch {
	case isDigit(c), c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		return true
	}
	switch c {
	case 'x', 'X', 'z', 'Z', '?', '_':
		return true
	}
	return false
}

func isBaseChar(c byte) bool {
	switch c {
	case 'b', 'B', 'o', 'O', 'd', 'D', 'h', 'H':
		return true
	}
	return false
}

// next returns the next token. Errors surface as Illegal tokens.
func (l *lexer) next() Token {
	l.skipSpace()
	tok := Token{Line: l.line, Col: l.col}
	if l.pos >= len(l.src) {
		tok.Kind = EOF
		return tok
	}
	start := l.pos
	c := l.src[l.pos]
	switch {
	case isIdentStart(c):
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			l.advance(1)
		}
		tok.Text = l.src[start:l.pos]
		tok.Kind = Ident
		if keywords[tok.Text] {
			tok.Kind = Keyword
		}
	case c == '\\':
		for l.pos < len(l.src) && !strings.ContainsRune(" \t\r\n", rune(l.src[l.pos])) {
			l.advance(1)
		}
		tok.Kind, tok.Text = Ident, l.src[start:l.pos]
	case c == '$' && isIdentStart(l.peekByte(1)):
		l.advance(1)
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			l.advance(1)
		}
		tok.Kind, tok.Text = SysIdent, l.src[start:l.pos]
	case isDigit(c):
		for l.pos < len(l.src) && (isDigit(l.src[l.pos]) || l.src[l.pos] == '_') {
			l.advance(1)
		}
		if l.peekByte(0) == '\'' && l.basedTail(1) {
			l.lexBased()
		}
		tok.Kind, tok.Text = Number, l.src[start:l.pos]
	case c == '\'' && l.basedTail(1):
		l.lexBased()
		tok.Kind, tok.Text = Number, l.src[start:l.pos]
	case c == '\'' && strings.ContainsRune("01xXzZ", rune(l.peekByte(1))) && !isIdentPart(l.peekByte(2)):
		l.advance(2)
		tok.Kind, tok.Text = Number, l.src[start:l.pos]
	case c == '"':
		l.advance(1)
		for l.pos < len(l.src) && l.src[l.pos] != '"' && l.src[l.pos] != '\n' {
			if l.src[l.pos] == '\\' {
				l.advance(1)
			}
			l.advance(1)
		}
		if l.peekByte(0) != '"' {
			tok.Kind, tok.Text = Illegal, "unterminated string"
			return tok
		}
		l.advance(1)
		tok.Kind, tok.Text = String, l.src[start:l.pos]
	default:
		for _, p := range puncts {
			if strings.HasPrefix(l.src[l.pos:], p) {
				l.advance(len(p))
				tok.Kind, tok.Text = Punct, p
				return tok
			}
		}
		l.advance(1)
		tok.Kind, tok.Text = Illegal, l.src[start:l.pos]
	}
	return tok
}

// basedTail reports whether a base specifier such as 'h or 'sb starts at the
// given offset past the apostrophe.
func (l *lexer) basedTail(off int) bool {
	c := l.peekByte(off)
	if c == 's' || c == 'S' {
		c = l.peekByte(off + 1)
	}
	return isBaseChar(c)
}

func (l *lexer) lexBased() {
	l.advance(1) // apostrophe
	if c := l.peekByte(0); c == 's' || c == 'S' {
		l.advance(1)
	}
	l.advance(1) // base
	for l.pos < len(l.src) && (l.src[l.pos] == ' ' || l.src[l.pos] == '\t') {
		l.advance(1)
	}
	for l.pos < len(l.src) && isBaseDigit(l.src[l.pos]) {
		l.advance(1)
	}
}

// Tokens splits src into tokens, ending with EOF or the first Illegal token.
func Tokens(src string) []Token {
	l := newLexer(src)
	var out []Token
	for {
		t := l.next()
		out = append(out, t)
		if t.Kind == EOF || t.Kind == Illegal {
			return out
		}
	}
}
