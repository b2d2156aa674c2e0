package expr

import (
	"fmt"
	"math/bits"
	"strconv"

	"github.com/robert-at-pretension-io/rtlgen/internal/rtlerr"
)

// Literal is an integer constant. A literal built with Int has no width of
// its own and takes the width of whatever it is combined with or assigned to.
type Literal struct {
	value  int64
	width  int
	signed bool
	// adopted is the unsized literal this one was sized from by its
	// neighbouring operand.
	adopted *Literal
}

func (l *Literal) expr() {}

func (l *Literal) Value() int64 { return l.value }
func (l *Literal) Signed() bool { return l.signed }

// Sized reports whether the literal carries an explicit width.
func (l *Literal) Sized() bool { return l.width > 0 }

// Width returns the declared width, or the minimal width able to hold the
// value for unsized literals.
func (l *Literal) Width() int {
	if l.width > 0 {
		return l.width
	}
	return minWidth(l.value)
}

func (l *Literal) String() string { return l.text() }

func (l *Literal) text() string {
	if l.width == 0 {
		return strconv.FormatInt(l.value, 10)
	}
	if l.value < 0 {
		return fmt.Sprintf("-%d'h%X", l.width, uint64(-l.value))
	}
	return fmt.Sprintf("%d'h%X", l.width, uint64(l.value))
}

// Resize returns a sized copy of l with the given width.
func (l *Literal) Resize(width int) (*Literal, error) {
	signed := l.signed || l.value < 0
	if err := checkRange(l.value, width, signed); err != nil {
		return nil, err
	}
	return &Literal{value: l.value, width: width, signed: signed}, nil
}

// Const builds an unsigned literal of the given width.
func Const(value int64, width int) (*Literal, error) {
	if err := checkRange(value, width, false); err != nil {
		return nil, err
	}
	return &Literal{value: value, width: width}, nil
}

// SignedConst builds a signed literal of the given width.
func SignedConst(value int64, width int) (*Literal, error) {
	if err := checkRange(value, width, true); err != nil {
		return nil, err
	}
	return &Literal{value: value, width: width, signed: true}, nil
}

// MustConst is like Const but panics when the value does not fit.
func MustConst(value int64, width int) *Literal {
	l, err := Const(value, width)
	if err != nil {
		panic(err)
	}
	return l
}

// Int builds an unsized literal.
func Int(value int64) *Literal {
	return &Literal{value: value, signed: value < 0}
}

// Bits is a literal width, so that Bits(4).Value(10) reads like 4'd10.
type Bits int

func (b Bits) Value(value int64) (*Literal, error)  { return Const(value, int(b)) }
func (b Bits) Signed(value int64) (*Literal, error) { return SignedConst(value, int(b)) }

func checkRange(value int64, width int, signed bool) error {
	if width < 1 {
		return rtlerr.WidthMismatch("literal", 1, width)
	}
	if !signed {
		if value < 0 {
			return rtlerr.ValueRange(value, width, false)
		}
		if width < 64 && uint64(value) >= uint64(1)<<uint(width) {
			return rtlerr.ValueRange(value, width, false)
		}
		return nil
	}
	if width >= 64 {
		return nil
	}
	lim := int64(1) << uint(width-1)
	if value < -lim || value >= lim {
		return rtlerr.ValueRange(value, width, true)
	}
	return nil
}

func minWidth(value int64) int {
	if value < 0 {
		// two's complement needs the magnitude bits plus a sign bit
		return bits.Len64(uint64(^value)) + 1
	}
	if value == 0 {
		return 1
	}
	return bits.Len64(uint64(value))
}
