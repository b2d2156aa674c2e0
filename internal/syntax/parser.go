package syntax

import (
	"strings"

	"github.com/robert-at-pretension-io/rtlgen/internal/rtlerr"
)

// Validate checks src and returns a *rtlerr.SyntaxValidationError describing
// the first violation, or nil.
func Validate(src string) error {
	p := &parser{lx: newLexer(src)}
	p.next()
	p.sourceText()
	return p.err
}

// IsValid reports whether src passes Validate.
func IsValid(src string) bool {
	return Validate(src) == nil
}

// parser is a recursive-descent recognizer. The first error is sticky: once
// set, every production returns immediately and the token stream is frozen.
type parser struct {
	lx  *lexer
	tok Token
	err error
}

func (p *parser) next() {
	if p.err != nil {
		return
	}
	p.tok = p.lx.next()
	if p.tok.Kind == Illegal {
		p.fail("illegal token %q", p.tok.Text)
	}
}

func (p *parser) ok() bool { return p.err == nil }

func (p *parser) fail(format string, args ...interface{}) {
	if p.err == nil {
		p.err = rtlerr.SyntaxValidation(p.tok.Line, p.tok.Col, format, args...)
	}
}

func (p *parser) is(text string) bool {
	return p.ok() && (p.tok.Kind == Punct || p.tok.Kind == Keyword) && p.tok.Text == text
}

func (p *parser) isAny(texts ...string) bool {
	for _, t := range texts {
		if p.is(t) {
			return true
		}
	}
	return false
}

func (p *parser) accept(text string) bool {
	if p.is(text) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(text string) {
	if !p.ok() {
		return
	}
	if !p.accept(text) {
		p.fail("expected %q, found %s", text, p.tok)
	}
}

func (p *parser) ident() string {
	if !p.ok() {
		return ""
	}
	if p.tok.Kind != Ident {
		p.fail("expected identifier, found %s", p.tok)
		return ""
	}
	name := p.tok.Text
	p.next()
	return name
}

func (p *parser) sourceText() {
	for p.ok() && p.tok.Kind != EOF {
		switch {
		case p.is("module"):
			p.designUnit("module", "endmodule")
		case p.is("interface"):
			p.designUnit("interface", "endinterface")
		case p.accept(";"):
		default:
			p.fail("expected module or interface, found %s", p.tok)
		}
	}
}

func (p *parser) designUnit(open, close string) {
	p.expect(open)
	name := p.ident()
	if p.accept("#") {
		p.parameterPortList()
	}
	if p.accept("(") {
		if !p.is(")") {
			p.portList()
		}
		p.expect(")")
	}
	p.expect(";")
	for p.ok() && !p.is(close) {
		if p.tok.Kind == EOF {
			p.fail("missing %s for %s", close, name)
			return
		}
		p.item(open == "interface")
	}
	p.expect(close)
	if p.accept(":") {
		if end := p.ident(); p.ok() && end != name {
			p.fail("end label %q does not match %q", end, name)
		}
	}
}

func (p *parser) parameterPortList() {
	p.expect("(")
	for p.ok() {
		p.accept("parameter")
		p.optionalDataType()
		p.ident()
		p.expect("=")
		p.expr()
		if !p.accept(",") {
			break
		}
	}
	p.expect(")")
}

var directions = []string{"input", "output", "inout", "ref"}

var dataTypes = []string{"logic", "wire", "reg", "bit", "var", "tri", "uwire"}

var atomTypes = []string{"int", "integer", "byte", "shortint", "longint"}

func (p *parser) portList() {
	for p.ok() {
		p.port()
		if !p.accept(",") {
			return
		}
	}
}

func (p *parser) port() {
	switch {
	case p.isAny(directions...):
		p.next()
		p.optionalDataType()
		p.ident()
		p.unpackedDims()
	case p.isAny(dataTypes...) || p.isAny(atomTypes...) || p.is("["):
		p.optionalDataType()
		p.ident()
		p.unpackedDims()
	case p.tok.Kind == Ident:
		p.next()
		if p.accept(".") {
			// interface.modport name
			p.ident()
			p.ident()
		} else if p.tok.Kind == Ident {
			p.next()
		}
		p.unpackedDims()
	default:
		p.fail("expected port declaration, found %s", p.tok)
	}
}

// optionalDataType consumes [net/var type] [signing] {packed dim}.
func (p *parser) optionalDataType() {
	for p.isAny(dataTypes...) {
		p.next()
	}
	if p.isAny(atomTypes...) {
		p.next()
	}
	if p.isAny("signed", "unsigned") {
		p.next()
	}
	p.packedDims()
}

func (p *parser) packedDims() {
	for p.ok() && p.accept("[") {
		p.expr()
		if p.accept(":") {
			p.expr()
		}
		p.expect("]")
	}
}

func (p *parser) unpackedDims() {
	p.packedDims()
}

func (p *parser) item(inInterface bool) {
	switch {
	case p.accept(";"):
	case p.isAny(directions...):
		p.next()
		p.optionalDataType()
		p.declaratorList()
		p.expect(";")
	case p.isAny(dataTypes...) || p.isAny(atomTypes...):
		p.optionalDataType()
		p.declaratorList()
		p.expect(";")
	case p.isAny("parameter", "localparam"):
		p.next()
		p.optionalDataType()
		for p.ok() {
			p.ident()
			p.expect("=")
			p.expr()
			if !p.accept(",") {
				break
			}
		}
		p.expect(";")
	case p.accept("genvar"):
		p.identList()
		p.expect(";")
	case p.accept("assign"):
		for p.ok() {
			p.lvalue()
			p.expect("=")
			p.expr()
			if !p.accept(",") {
				break
			}
		}
		p.expect(";")
	case p.isAny("always_comb", "always_latch", "initial", "final"):
		p.next()
		p.statement()
	case p.accept("always_ff"):
		if !p.is("@") {
			p.fail("always_ff requires an event control")
			return
		}
		p.eventControl()
		p.statement()
	case p.accept("always"):
		if p.is("@") {
			p.eventControl()
		}
		p.statement()
	case p.is("modport"):
		if !inInterface {
			p.fail("modport outside of an interface")
			return
		}
		p.modport()
	case p.tok.Kind == Ident:
		p.instantiation()
	default:
		p.fail("unexpected %s", p.tok)
	}
}

func (p *parser) identList() {
	for p.ok() {
		p.ident()
		if !p.accept(",") {
			return
		}
	}
}

func (p *parser) declaratorList() {
	for p.ok() {
		p.ident()
		p.unpackedDims()
		if p.accept("=") {
			p.expr()
		}
		if !p.accept(",") {
			return
		}
	}
}

func (p *parser) modport() {
	p.expect("modport")
	for p.ok() {
		p.ident()
		p.expect("(")
		if !p.isAny(directions...) {
			p.fail("modport port list must start with a direction, found %s", p.tok)
			return
		}
		for p.ok() {
			if p.isAny(directions...) {
				p.next()
			}
			p.ident()
			if !p.accept(",") {
				break
			}
		}
		p.expect(")")
		if !p.accept(",") {
			break
		}
	}
	p.expect(";")
}

// instantiation covers module instances and interface instances:
// Type [#(...)] name [dims] ( connections ) {, name (...)} ;
func (p *parser) instantiation() {
	p.ident()
	if p.accept("#") {
		p.expect("(")
		p.connections()
		p.expect(")")
	}
	for p.ok() {
		p.ident()
		p.unpackedDims()
		p.expect("(")
		p.connections()
		p.expect(")")
		if !p.accept(",") {
			break
		}
	}
	p.expect(";")
}

func (p *parser) connections() {
	if p.is(")") {
		return
	}
	for p.ok() {
		if p.accept(".") {
			if p.accept("*") {
				// wildcard
			} else {
				p.ident()
				if p.accept("(") {
					if !p.is(")") {
						p.expr()
					}
					p.expect(")")
				}
			}
		} else {
			p.expr()
		}
		if !p.accept(",") {
			return
		}
	}
}

func (p *parser) eventControl() {
	p.expect("@")
	if p.accept("*") {
		return
	}
	p.expect("(")
	if p.accept("*") {
		p.expect(")")
		return
	}
	for p.ok() {
		if p.isAny("posedge", "negedge", "edge") {
			p.next()
		}
		p.expr()
		if !p.accept(",") && !p.accept("or") {
			break
		}
	}
	p.expect(")")
}

func (p *parser) statement() {
	if !p.ok() {
		return
	}
	switch {
	case p.accept(";"):
	case p.accept("begin"):
		var label string
		if p.accept(":") {
			label = p.ident()
		}
		for p.ok() && !p.is("end") {
			if p.tok.Kind == EOF {
				p.fail("missing end")
				return
			}
			p.statement()
		}
		p.expect("end")
		if p.accept(":") {
			if end := p.ident(); p.ok() && end != label {
				p.fail("end label %q does not match %q", end, label)
			}
		}
	case p.isAny("unique", "unique0", "priority"):
		p.next()
		if p.is("if") {
			p.ifStatement()
		} else {
			p.caseStatement()
		}
	case p.is("if"):
		p.ifStatement()
	case p.isAny("case", "casez", "casex"):
		p.caseStatement()
	case p.tok.Kind == SysIdent:
		p.next()
		if p.accept("(") {
			p.args()
			p.expect(")")
		}
		p.expect(";")
	case p.tok.Kind == Ident || p.is("{"):
		p.lvalue()
		if !p.accept("=") && !p.accept("<=") {
			p.fail("expected assignment operator, found %s", p.tok)
			return
		}
		p.expr()
		p.expect(";")
	default:
		p.fail("expected statement, found %s", p.tok)
	}
}

func (p *parser) ifStatement() {
	p.expect("if")
	p.expect("(")
	p.expr()
	p.expect(")")
	p.statement()
	if p.accept("else") {
		p.statement()
	}
}

func (p *parser) caseStatement() {
	if !p.isAny("case", "casez", "casex") {
		p.fail("expected case, found %s", p.tok)
		return
	}
	p.next()
	p.expect("(")
	p.expr()
	p.expect(")")
	items := 0
	for p.ok() && !p.is("endcase") {
		if p.tok.Kind == EOF {
			p.fail("missing endcase")
			return
		}
		if p.accept("default") {
			p.accept(":")
		} else {
			for p.ok() {
				p.expr()
				if !p.accept(",") {
					break
				}
			}
			p.expect(":")
		}
		p.statement()
		items++
	}
	if p.ok() && items == 0 {
		p.fail("case statement has no items")
		return
	}
	p.expect("endcase")
}

func (p *parser) lvalue() {
	if p.accept("{") {
		for p.ok() {
			p.lvalue()
			if !p.accept(",") {
				break
			}
		}
		p.expect("}")
		return
	}
	p.hierarchicalRef()
}

// hierarchicalRef parses a.b.c with optional bit and part selects.
func (p *parser) hierarchicalRef() {
	p.ident()
	for p.ok() {
		switch {
		case p.accept("."):
			p.ident()
		case p.accept("["):
			p.expr()
			if p.isAny(":", "+:", "-:") {
				p.next()
				p.expr()
			}
			p.expect("]")
		default:
			return
		}
	}
}

func (p *parser) args() {
	if p.is(")") {
		return
	}
	for p.ok() {
		p.expr()
		if !p.accept(",") {
			return
		}
	}
}

// Binary operator precedence, lowest first.
var binaryLevels = [][]string{
	{"||"},
	{"&&"},
	{"|"},
	{"^", "~^", "^~"},
	{"&"},
	{"==", "!=", "===", "!==", "==?", "!=?"},
	{"<", "<=", ">", ">="},
	{"<<", ">>", "<<<", ">>>"},
	{"+", "-"},
	{"*", "/", "%"},
	{"**"},
}

func (p *parser) expr() {
	p.binary(0)
	if p.accept("?") {
		p.expr()
		p.expect(":")
		p.expr()
	}
}

func (p *parser) binary(level int) {
	if level == len(binaryLevels) {
		p.unary()
		return
	}
	p.binary(level + 1)
	for p.ok() && p.tok.Kind == Punct && contains(binaryLevels[level], p.tok.Text) {
		p.next()
		p.binary(level + 1)
	}
}

var unaryOps = []string{"+", "-", "!", "~", "&", "~&", "|", "~|", "^", "~^", "^~"}

func (p *parser) unary() {
	if p.ok() && p.tok.Kind == Punct && contains(unaryOps, p.tok.Text) {
		p.next()
		p.unary()
		return
	}
	p.primary()
}

func (p *parser) primary() {
	if !p.ok() {
		return
	}
	switch p.tok.Kind {
	case Number:
		if !validNumber(p.tok.Text) {
			p.fail("malformed number %q", p.tok.Text)
			return
		}
		p.next()
	case String:
		p.next()
	case SysIdent:
		p.next()
		if p.accept("(") {
			p.args()
			p.expect(")")
		}
	case Ident:
		p.hierarchicalRef()
		if p.accept("(") {
			p.args()
			p.expect(")")
		}
	case Punct:
		switch {
		case p.accept("("):
			p.expr()
			p.expect(")")
		case p.accept("{"):
			p.concatenation()
		default:
			p.fail("unexpected %s in expression", p.tok)
		}
	default:
		p.fail("unexpected %s in expression", p.tok)
	}
}

func (p *parser) concatenation() {
	p.expr()
	if p.accept("{") {
		// replication {n{...}}
		for p.ok() {
			p.expr()
			if !p.accept(",") {
				break
			}
		}
		p.expect("}")
		p.expect("}")
		return
	}
	for p.ok() && p.accept(",") {
		p.expr()
	}
	p.expect("}")
}

func validNumber(text string) bool {
	i := strings.IndexByte(text, '\'')
	if i < 0 {
		return true
	}
	if i > 0 && strings.Trim(text[:i], "_") == "0" {
		return false
	}
	rest := strings.TrimLeft(text[i+1:], "sS")
	if len(rest) == 1 && strings.ContainsAny(rest, "01xXzZ") && i == 0 {
		return true
	}
	if len(rest) < 2 || !isBaseChar(rest[0]) {
		return false
	}
	digits := strings.TrimSpace(rest[1:])
	if digits == "" || digits[0] == '_' {
		return false
	}
	for j := 0; j < len(digits); j++ {
		if !validDigit(rest[0], digits[j]) {
			return false
		}
	}
	return true
}

func validDigit(base, c byte) bool {
	switch c {
	case '_', 'x', 'X', 'z', 'Z', '?':
		return true
	}
	switch base {
	case 'b', 'B':
		return c == '0' || c == '1'
	case 'o', 'O':
		return c >= '0' && c <= '7'
	case 'd', 'D':
		return isDigit(c)
	}
	return isBaseDigit(c)
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
