package expr

import (
	"github.com/pkg/errors"

	"github.com/robert-at-pretension-io/rtlgen/internal/rtlerr"
)

// Binary combines two operands. An unsized literal operand takes the width of
// the other operand when it fits.
func Binary(op BinaryOp, left, right Expr) *BinaryExpr {
	left, right = coerce(left, right)
	return &BinaryExpr{op: op, left: left, right: right}
}

func Add(l, r Expr) *BinaryExpr  { return Binary(OpAdd, l, r) }
func Sub(l, r Expr) *BinaryExpr  { return Binary(OpSub, l, r) }
func Mul(l, r Expr) *BinaryExpr  { return Binary(OpMul, l, r) }
func Div(l, r Expr) *BinaryExpr  { return Binary(OpDiv, l, r) }
func Mod(l, r Expr) *BinaryExpr  { return Binary(OpMod, l, r) }
func Shl(l, r Expr) *BinaryExpr  { return Binary(OpShl, l, r) }
func Shr(l, r Expr) *BinaryExpr  { return Binary(OpShr, l, r) }
func Ashr(l, r Expr) *BinaryExpr { return Binary(OpAshr, l, r) }
func And(l, r Expr) *BinaryExpr  { return Binary(OpAnd, l, r) }
func Or(l, r Expr) *BinaryExpr   { return Binary(OpOr, l, r) }
func Xor(l, r Expr) *BinaryExpr  { return Binary(OpXor, l, r) }
func LAnd(l, r Expr) *BinaryExpr { return Binary(OpLAnd, l, r) }
func LOr(l, r Expr) *BinaryExpr  { return Binary(OpLOr, l, r) }
func Eq(l, r Expr) *BinaryExpr   { return Binary(OpEq, l, r) }
func Neq(l, r Expr) *BinaryExpr  { return Binary(OpNeq, l, r) }
func Lt(l, r Expr) *BinaryExpr   { return Binary(OpLt, l, r) }
func Gt(l, r Expr) *BinaryExpr   { return Binary(OpGt, l, r) }
func Le(l, r Expr) *BinaryExpr   { return Binary(OpLe, l, r) }
func Ge(l, r Expr) *BinaryExpr   { return Binary(OpGe, l, r) }

// Unary applies op to e.
func Unary(op UnaryOp, e Expr) *UnaryExpr {
	return &UnaryExpr{op: op, operand: e}
}

func Negate(e Expr) *UnaryExpr     { return Unary(Neg, e) }
func Inv(e Expr) *UnaryExpr        { return Unary(Invert, e) }
func LNot(e Expr) *UnaryExpr       { return Unary(Not, e) }
func OrReduce(e Expr) *UnaryExpr   { return Unary(ReduceOr, e) }
func AndReduce(e Expr) *UnaryExpr  { return Unary(ReduceAnd, e) }
func XorReduce(e Expr) *UnaryExpr  { return Unary(ReduceXor, e) }
func AsSigned(e Expr) *UnaryExpr   { return Unary(CastSigned, e) }
func AsUnsigned(e Expr) *UnaryExpr { return Unary(CastUnsigned, e) }

// Slice selects bits hi down to lo of a signal or of an existing slice.
// Slicing a slice yields a slice of the underlying signal.
func Slice(e Expr, hi, lo int) (*SliceExpr, error) {
	if hi < lo || lo < 0 || hi >= e.Width() {
		return nil, rtlerr.SliceRange(e.String(), e.Width(), hi, lo)
	}
	switch b := e.(type) {
	case *Signal:
		return &SliceExpr{base: b, hi: hi, lo: lo}, nil
	case *SliceExpr:
		return &SliceExpr{base: b.base, hi: b.lo + hi, lo: b.lo + lo}, nil
	}
	return nil, errors.Wrapf(rtlerr.SliceRange(e.String(), e.Width(), hi, lo), "only signals can be sliced")
}

// Index selects a single bit.
func Index(e Expr, i int) (*SliceExpr, error) {
	return Slice(e, i, i)
}

// MustSlice is like Slice but panics on a bad range.
func MustSlice(e Expr, hi, lo int) *SliceExpr {
	s, err := Slice(e, hi, lo)
	if err != nil {
		panic(err)
	}
	return s
}

// Cat concatenates parts, most significant first. Nested concatenations are
// flattened and unsized literals take their minimal width.
func Cat(parts ...Expr) (*ConcatExpr, error) {
	if len(parts) == 0 {
		return nil, errors.New("concatenation needs at least one operand")
	}
	c := &ConcatExpr{}
	for _, p := range parts {
		switch n := p.(type) {
		case *ConcatExpr:
			c.parts = append(c.parts, n.parts...)
		case *Literal:
			if !n.Sized() {
				sized, err := n.Resize(n.Width())
				if err != nil {
					return nil, err
				}
				p = sized
			}
			c.parts = append(c.parts, p)
		default:
			c.parts = append(c.parts, p)
		}
	}
	return c, nil
}

// Mux selects a when cond holds, otherwise b.
func Mux(cond, a, b Expr) *MuxExpr {
	a, b = coerce(a, b)
	return &MuxExpr{cond: cond, a: a, b: b}
}

// Reduce folds operands left to right with op. A single operand is returned
// unchanged.
func Reduce(op BinaryOp, operands ...Expr) (Expr, error) {
	if len(operands) == 0 {
		return nil, errors.Errorf("reduce %s: no operands", op)
	}
	acc := operands[0]
	for _, e := range operands[1:] {
		acc = Binary(op, acc, e)
	}
	return acc, nil
}

// Extend zero-extends e to width.
func Extend(e Expr, width int) (Expr, error) {
	w := e.Width()
	switch {
	case width == w:
		return e, nil
	case width < w:
		return nil, rtlerr.WidthMismatch("extend "+e.String(), width, w)
	}
	if l, ok := e.(*Literal); ok && !l.Sized() {
		return l.Resize(width)
	}
	pad, err := Const(0, width-w)
	if err != nil {
		return nil, err
	}
	return Cat(pad, e)
}

// Fit prepares src to be assigned to a destination of the given width.
// Unsized literals are resized. Signals, slices, concatenations and sized
// literals must already match. Operator expressions are sized by context.
func Fit(src Expr, width int, context string) (Expr, error) {
	switch n := src.(type) {
	case *Literal:
		if !n.Sized() {
			return n.Resize(width)
		}
	case *Signal, *SliceExpr, *ConcatExpr:
	default:
		return src, nil
	}
	if src.Width() != width {
		return nil, rtlerr.WidthMismatch(context, width, src.Width())
	}
	return src, nil
}

func coerce(a, b Expr) (Expr, Expr) {
	la, aLit := a.(*Literal)
	lb, bLit := b.(*Literal)
	if aLit && !la.Sized() && !(bLit && !lb.Sized()) {
		if r, err := la.Resize(b.Width()); err == nil {
			r.adopted = la
			a = r
		}
	}
	if bLit && !lb.Sized() && !(aLit && !la.Sized()) {
		if r, err := lb.Resize(a.Width()); err == nil {
			r.adopted = lb
			b = r
		}
	}
	return a, b
}

// Refit rebuilds e for the current signal widths: literals that took their
// width from a neighbouring operand are sized again and slices are checked
// against their base. Widths change when a sizing parameter changes value.
func Refit(e Expr) (Expr, error) {
	switch n := e.(type) {
	case *SliceExpr:
		if n.hi >= n.base.Width() {
			return nil, rtlerr.SliceRange(n.base.Ref(), n.base.Width(), n.hi, n.lo)
		}
	case *ConcatExpr:
		parts := make([]Expr, len(n.parts))
		changed := false
		for i, p := range n.parts {
			r, err := Refit(p)
			if err != nil {
				return nil, err
			}
			parts[i] = r
			changed = changed || r != p
		}
		if changed {
			return &ConcatExpr{parts: parts}, nil
		}
	case *UnaryExpr:
		op, err := Refit(n.operand)
		if err != nil {
			return nil, err
		}
		if op != n.operand {
			return &UnaryExpr{op: n.op, operand: op}, nil
		}
	case *BinaryExpr:
		l, r, err := refitPair(n.left, n.right)
		if err != nil {
			return nil, err
		}
		if l != n.left || r != n.right {
			return &BinaryExpr{op: n.op, left: l, right: r}, nil
		}
	case *MuxExpr:
		c, err := Refit(n.cond)
		if err != nil {
			return nil, err
		}
		a, b, err := refitPair(n.a, n.b)
		if err != nil {
			return nil, err
		}
		if c != n.cond || a != n.a || b != n.b {
			return &MuxExpr{cond: c, a: a, b: b}, nil
		}
	}
	return e, nil
}

func refitPair(a, b Expr) (Expr, Expr, error) {
	ra, err := Refit(unadopt(a))
	if err != nil {
		return nil, nil, err
	}
	rb, err := Refit(unadopt(b))
	if err != nil {
		return nil, nil, err
	}
	ra, rb = coerce(ra, rb)
	if sameLiteral(ra, a) {
		ra = a
	}
	if sameLiteral(rb, b) {
		rb = b
	}
	return ra, rb, nil
}

func unadopt(e Expr) Expr {
	if l, ok := e.(*Literal); ok && l.adopted != nil {
		return l.adopted
	}
	return e
}

func sameLiteral(a, b Expr) bool {
	la, ok := a.(*Literal)
	if !ok {
		return a == b
	}
	return Equal(la, b)
}

// Equal reports structural equality. Signals compare by identity.
func Equal(a, b Expr) bool {
	switch x := a.(type) {
	case *Signal:
		y, ok := b.(*Signal)
		return ok && x == y
	case *Literal:
		y, ok := b.(*Literal)
		return ok && x.value == y.value && x.width == y.width && x.signed == y.signed
	case *Param:
		y, ok := b.(*Param)
		return ok && x == y
	case *SliceExpr:
		y, ok := b.(*SliceExpr)
		return ok && x.base == y.base && x.hi == y.hi && x.lo == y.lo
	case *ConcatExpr:
		y, ok := b.(*ConcatExpr)
		if !ok || len(x.parts) != len(y.parts) {
			return false
		}
		for i := range x.parts {
			if !Equal(x.parts[i], y.parts[i]) {
				return false
			}
		}
		return true
	case *UnaryExpr:
		y, ok := b.(*UnaryExpr)
		return ok && x.op == y.op && Equal(x.operand, y.operand)
	case *BinaryExpr:
		y, ok := b.(*BinaryExpr)
		return ok && x.op == y.op && Equal(x.left, y.left) && Equal(x.right, y.right)
	case *MuxExpr:
		y, ok := b.(*MuxExpr)
		return ok && Equal(x.cond, y.cond) && Equal(x.a, y.a) && Equal(x.b, y.b)
	}
	return false
}

// Walk visits e and its operands depth first. Returning false from fn skips
// the operands of the current node.
func Walk(e Expr, fn func(Expr) bool) {
	if !fn(e) {
		return
	}
	switch n := e.(type) {
	case *SliceExpr:
		Walk(n.base, fn)
	case *ConcatExpr:
		for _, p := range n.parts {
			Walk(p, fn)
		}
	case *UnaryExpr:
		Walk(n.operand, fn)
	case *BinaryExpr:
		Walk(n.left, fn)
		Walk(n.right, fn)
	case *MuxExpr:
		Walk(n.cond, fn)
		Walk(n.a, fn)
		Walk(n.b, fn)
	}
}

// Signals lists the distinct signals referenced by e in first-use order.
func Signals(e Expr) []*Signal {
	var out []*Signal
	seen := map[*Signal]bool{}
	Walk(e, func(n Expr) bool {
		if s, ok := n.(*Signal); ok && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
		return true
	})
	return out
}

// Target describes a bit range of a signal written by an assignment.
type Target struct {
	Signal *Signal
	Hi, Lo int
}

// Targets decomposes an assignment destination into the bit ranges it writes.
// The destination must be a signal, a slice or a concatenation of those.
func Targets(dst Expr) ([]Target, error) {
	switch n := dst.(type) {
	case *Signal:
		return []Target{{Signal: n, Hi: n.Width() - 1, Lo: 0}}, nil
	case *SliceExpr:
		return []Target{{Signal: n.base, Hi: n.hi, Lo: n.lo}}, nil
	case *ConcatExpr:
		var out []Target
		for _, p := range n.parts {
			ts, err := Targets(p)
			if err != nil {
				return nil, err
			}
			out = append(out, ts...)
		}
		return out, nil
	}
	return nil, rtlerr.AssignTarget(dst.String())
}

// Replace returns e with every signal mapped through fn. Subtrees without a
// replaced signal are shared with e.
func Replace(e Expr, fn func(*Signal) *Signal) Expr {
	switch n := e.(type) {
	case *Signal:
		if r := fn(n); r != nil {
			return r
		}
		return n
	case *SliceExpr:
		if r := fn(n.base); r != nil && r != n.base {
			return &SliceExpr{base: r, hi: n.hi, lo: n.lo}
		}
		return n
	case *ConcatExpr:
		parts := make([]Expr, len(n.parts))
		changed := false
		for i, p := range n.parts {
			parts[i] = Replace(p, fn)
			changed = changed || parts[i] != p
		}
		if !changed {
			return n
		}
		return &ConcatExpr{parts: parts}
	case *UnaryExpr:
		if op := Replace(n.operand, fn); op != n.operand {
			return &UnaryExpr{op: n.op, operand: op}
		}
		return n
	case *BinaryExpr:
		l, r := Replace(n.left, fn), Replace(n.right, fn)
		if l != n.left || r != n.right {
			return &BinaryExpr{op: n.op, left: l, right: r}
		}
		return n
	case *MuxExpr:
		c, a, b := Replace(n.cond, fn), Replace(n.a, fn), Replace(n.b, fn)
		if c != n.cond || a != n.a || b != n.b {
			return &MuxExpr{cond: c, a: a, b: b}
		}
		return n
	}
	return e
}
