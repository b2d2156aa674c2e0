// Package expr implements the expression algebra: signals, literals, slices,
// concatenations, unary and binary operators and the ternary mux. Nodes are
// immutable once built and render to canonical SystemVerilog text.
package expr

import (
	"strconv"
	"strings"
)

// Expr is a node of an expression tree. The set of implementations is closed.
type Expr interface {
	Width() int
	Signed() bool
	String() string
	expr()
}

// Namer maps a signal to the text used to reference it in a given context.
type Namer func(*Signal) string

// DefaultNamer references signals by their name inside the owning scope.
func DefaultNamer(s *Signal) string { return s.Ref() }

// UnaryOp enumerates unary operators, including the sign casts.
type UnaryOp int

const (
	Neg UnaryOp = iota
	Invert
	Not
	ReduceOr
	ReduceAnd
	ReduceXor
	CastSigned
	CastUnsigned
)

var unarySymbols = map[UnaryOp]string{
	Neg:          "-",
	Invert:       "~",
	Not:          "!",
	ReduceOr:     "|",
	ReduceAnd:    "&",
	ReduceXor:    "^",
	CastSigned:   "$signed",
	CastUnsigned: "$unsigned",
}

func (op UnaryOp) String() string { return unarySymbols[op] }

func (op UnaryOp) isCast() bool { return op == CastSigned || op == CastUnsigned }

func (op UnaryOp) isReduction() bool {
	return op == ReduceOr || op == ReduceAnd || op == ReduceXor || op == Not
}

// BinaryOp enumerates binary operators.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpShl
	OpShr
	OpAshr
	OpAnd
	OpOr
	OpXor
	OpLAnd
	OpLOr
	OpEq
	OpNeq
	OpLt
	OpGt
	OpLe
	OpGe
)

var binarySymbols = map[BinaryOp]string{
	OpAdd:  "+",
	OpSub:  "-",
	OpMul:  "*",
	OpDiv:  "/",
	OpMod:  "%",
	OpShl:  "<<",
	OpShr:  ">>",
	OpAshr: ">>>",
	OpAnd:  "&",
	OpOr:   "|",
	OpXor:  "^",
	OpLAnd: "&&",
	OpLOr:  "||",
	OpEq:   "==",
	OpNeq:  "!=",
	OpLt:   "<",
	OpGt:   ">",
	OpLe:   "<=",
	OpGe:   ">=",
}

func (op BinaryOp) String() string { return binarySymbols[op] }

// Boolean reports whether the operator yields a single bit.
func (op BinaryOp) Boolean() bool {
	switch op {
	case OpLAnd, OpLOr, OpEq, OpNeq, OpLt, OpGt, OpLe, OpGe:
		return true
	}
	return false
}

func (op BinaryOp) shift() bool {
	return op == OpShl || op == OpShr || op == OpAshr
}

// SliceExpr selects bits Hi..Lo of a signal.
type SliceExpr struct {
	base   *Signal
	hi, lo int
}

func (s *SliceExpr) expr()          {}
func (s *SliceExpr) Width() int     { return s.hi - s.lo + 1 }
func (s *SliceExpr) Signed() bool   { return false }
func (s *SliceExpr) Base() *Signal  { return s.base }
func (s *SliceExpr) Hi() int        { return s.hi }
func (s *SliceExpr) Lo() int        { return s.lo }
func (s *SliceExpr) String() string { return Format(s, DefaultNamer) }

// ConcatExpr joins parts, most significant first.
type ConcatExpr struct {
	parts []Expr
}

func (c *ConcatExpr) expr() {}

func (c *ConcatExpr) Width() int {
	w := 0
	for _, p := range c.parts {
		w += p.Width()
	}
	return w
}

func (c *ConcatExpr) Signed() bool   { return false }
func (c *ConcatExpr) Parts() []Expr  { return append([]Expr(nil), c.parts...) }
func (c *ConcatExpr) String() string { return Format(c, DefaultNamer) }

// UnaryExpr applies a unary operator or a sign cast.
type UnaryExpr struct {
	op      UnaryOp
	operand Expr
}

func (u *UnaryExpr) expr()          {}
func (u *UnaryExpr) Op() UnaryOp    { return u.op }
func (u *UnaryExpr) Operand() Expr  { return u.operand }
func (u *UnaryExpr) String() string { return Format(u, DefaultNamer) }

func (u *UnaryExpr) Width() int {
	if u.op.isReduction() {
		return 1
	}
	return u.operand.Width()
}

func (u *UnaryExpr) Signed() bool {
	switch u.op {
	case CastSigned:
		return true
	case CastUnsigned:
		return false
	}
	if u.op.isReduction() {
		return false
	}
	return u.operand.Signed()
}

// BinaryExpr applies a binary operator.
type BinaryExpr struct {
	op          BinaryOp
	left, right Expr
}

func (b *BinaryExpr) expr()          {}
func (b *BinaryExpr) Op() BinaryOp   { return b.op }
func (b *BinaryExpr) Left() Expr     { return b.left }
func (b *BinaryExpr) Right() Expr    { return b.right }
func (b *BinaryExpr) String() string { return Format(b, DefaultNamer) }

func (b *BinaryExpr) Width() int {
	switch {
	case b.op.Boolean():
		return 1
	case b.op.shift():
		return b.left.Width()
	}
	return max(b.left.Width(), b.right.Width())
}

func (b *BinaryExpr) Signed() bool {
	if b.op.Boolean() {
		return false
	}
	if b.op.shift() {
		return b.left.Signed()
	}
	return b.left.Signed() && b.right.Signed()
}

// MuxExpr selects A when Cond is true, otherwise B.
type MuxExpr struct {
	cond, a, b Expr
}

func (m *MuxExpr) expr()          {}
func (m *MuxExpr) Cond() Expr     { return m.cond }
func (m *MuxExpr) True() Expr     { return m.a }
func (m *MuxExpr) False() Expr    { return m.b }
func (m *MuxExpr) Width() int     { return max(m.a.Width(), m.b.Width()) }
func (m *MuxExpr) Signed() bool   { return m.a.Signed() && m.b.Signed() }
func (m *MuxExpr) String() string { return Format(m, DefaultNamer) }

// Format renders e using name to reference signals.
func Format(e Expr, name Namer) string {
	var sb strings.Builder
	write(&sb, e, name)
	return sb.String()
}

func write(sb *strings.Builder, e Expr, name Namer) {
	switch n := e.(type) {
	case *Signal:
		sb.WriteString(name(n))
	case *Literal:
		sb.WriteString(n.text())
	case *Param:
		sb.WriteString(n.name)
	case *SliceExpr:
		sb.WriteString(name(n.base))
		sb.WriteByte('[')
		sb.WriteString(strconv.Itoa(n.hi))
		if n.hi != n.lo {
			sb.WriteByte(':')
			sb.WriteString(strconv.Itoa(n.lo))
		}
		sb.WriteByte(']')
	case *ConcatExpr:
		sb.WriteByte('{')
		for i, p := range n.parts {
			if i > 0 {
				sb.WriteString(", ")
			}
			write(sb, p, name)
		}
		sb.WriteByte('}')
	case *UnaryExpr:
		if n.op.isCast() {
			sb.WriteString(n.op.String())
			sb.WriteByte('(')
			write(sb, n.operand, name)
			sb.WriteByte(')')
			return
		}
		sb.WriteString(n.op.String())
		writeOperand(sb, n.operand, name, compound(n.operand))
	case *BinaryExpr:
		leftParen := compound(n.left)
		if l, ok := n.left.(*BinaryExpr); ok && l.op == n.op {
			leftParen = false
		}
		writeOperand(sb, n.left, name, leftParen)
		sb.WriteByte(' ')
		sb.WriteString(n.op.String())
		sb.WriteByte(' ')
		writeOperand(sb, n.right, name, compound(n.right))
	case *MuxExpr:
		writeOperand(sb, n.cond, name, compound(n.cond))
		sb.WriteString(" ? ")
		writeOperand(sb, n.a, name, compound(n.a))
		sb.WriteString(": ")
		writeOperand(sb, n.b, name, compound(n.b))
	}
}

func writeOperand(sb *strings.Builder, e Expr, name Namer, paren bool) {
	if paren {
		sb.WriteByte('(')
	}
	write(sb, e, name)
	if paren {
		sb.WriteByte(')')
	}
}

// compound reports whether e needs parentheses when used as an operand.
// Casts render as calls and never need them.
func compound(e Expr) bool {
	switch n := e.(type) {
	case *BinaryExpr, *MuxExpr:
		return true
	case *UnaryExpr:
		return !n.op.isCast()
	case *Literal:
		return n.value < 0
	}
	return false
}
