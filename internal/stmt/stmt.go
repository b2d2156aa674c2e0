// Package stmt models procedural logic: assignments, if/else chains and case
// statements grouped into combinational or edge-triggered blocks.
package stmt

import (
	"github.com/robert-at-pretension-io/rtlgen/internal/expr"
	"github.com/robert-at-pretension-io/rtlgen/internal/rtlerr"
)

// Stmt is a procedural statement.
type Stmt interface {
	stmt()
}

// Assign writes Right to Left. Left and Right are the values passed by the
// caller; Value returns the source as sized for the destination.
type Assign struct {
	Left  expr.Expr
	Right expr.Expr
	value expr.Expr
}

func (*Assign) stmt() {}

// Value is the source expression after unsized literals took the width of
// the destination.
func (a *Assign) Value() expr.Expr {
	if a.value == nil {
		return a.Right
	}
	return a.value
}

// NewAssign validates an assignment of src to dst.
func NewAssign(dst, src expr.Expr) (*Assign, error) {
	if _, err := expr.Targets(dst); err != nil {
		return nil, err
	}
	v, err := expr.Fit(src, dst.Width(), dst.String())
	if err != nil {
		return nil, err
	}
	return &Assign{Left: dst, Right: src, value: v}, nil
}

// If is a conditional. An else-if chain is an Else holding a single *If.
type If struct {
	Cond expr.Expr
	Then []Stmt
	Else []Stmt
}

func (*If) stmt() {}

// Case is one arm of a Switch.
type Case struct {
	Value *expr.Literal
	Body  []Stmt
}

// Switch is a case statement over Target.
type Switch struct {
	Target     expr.Expr
	Cases      []Case
	Default    []Stmt
	HasDefault bool
}

func (*Switch) stmt() {}

// Kind separates combinational from edge-triggered blocks.
type Kind int

const (
	Combinational Kind = iota
	Sequential
)

func (k Kind) String() string {
	if k == Sequential {
		return "sequential"
	}
	return "combinational"
}

// Edge is the active edge of a trigger.
type Edge int

const (
	Posedge Edge = iota
	Negedge
)

func (e Edge) String() string {
	if e == Negedge {
		return "negedge"
	}
	return "posedge"
}

// Trigger is one entry of a sequential block's event list.
type Trigger struct {
	Edge   Edge
	Signal *expr.Signal
}

func OnPosedge(s *expr.Signal) Trigger { return Trigger{Edge: Posedge, Signal: s} }
func OnNegedge(s *expr.Signal) Trigger { return Trigger{Edge: Negedge, Signal: s} }

// Block is an ordered statement list with its activation semantics.
type Block struct {
	Kind     Kind
	Triggers []Trigger
	Stmts    []Stmt
	Label    string
	Comment  string
}

// Walk visits every statement in program order, descending into branches.
func Walk(stmts []Stmt, fn func(Stmt)) {
	for _, s := range stmts {
		fn(s)
		switch n := s.(type) {
		case *If:
			Walk(n.Then, fn)
			Walk(n.Else, fn)
		case *Switch:
			for _, c := range n.Cases {
				Walk(c.Body, fn)
			}
			Walk(n.Default, fn)
		}
	}
}

// Assigns lists every assignment in the block.
func (b *Block) Assigns() []*Assign {
	var out []*Assign
	Walk(b.Stmts, func(s Stmt) {
		if a, ok := s.(*Assign); ok {
			out = append(out, a)
		}
	})
	return out
}

// Sensitivity lists the signals read by the block in first-use order.
func (b *Block) Sensitivity() []*expr.Signal {
	var out []*expr.Signal
	seen := map[*expr.Signal]bool{}
	add := func(e expr.Expr) {
		for _, s := range expr.Signals(e) {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	Walk(b.Stmts, func(s Stmt) {
		switch n := s.(type) {
		case *Assign:
			add(n.Right)
		case *If:
			add(n.Cond)
		case *Switch:
			add(n.Target)
		}
	})
	return out
}

// Writes lists the bit ranges assigned anywhere in the block.
func (b *Block) Writes() []expr.Target {
	var out []expr.Target
	for _, a := range b.Assigns() {
		ts, _ := expr.Targets(a.Left)
		out = append(out, ts...)
	}
	return out
}

// WrittenSignals lists the distinct destination signals in first-use order.
func (b *Block) WrittenSignals() []*expr.Signal {
	var out []*expr.Signal
	seen := map[*expr.Signal]bool{}
	for _, t := range b.Writes() {
		if !seen[t.Signal] {
			seen[t.Signal] = true
			out = append(out, t.Signal)
		}
	}
	return out
}

// PartiallyAssigned lists signals written on some but not every path through
// the block. In a combinational block such signals infer latches.
func (b *Block) PartiallyAssigned() []*expr.Signal {
	full := mustAssign(b.Stmts)
	var out []*expr.Signal
	for _, s := range b.WrittenSignals() {
		if !full[s] {
			out = append(out, s)
		}
	}
	return out
}

func mustAssign(stmts []Stmt) map[*expr.Signal]bool {
	out := map[*expr.Signal]bool{}
	for _, s := range stmts {
		var got map[*expr.Signal]bool
		switch n := s.(type) {
		case *Assign:
			got = map[*expr.Signal]bool{}
			ts, _ := expr.Targets(n.Left)
			for _, t := range ts {
				got[t.Signal] = true
			}
		case *If:
			if n.Else != nil {
				got = intersect(mustAssign(n.Then), mustAssign(n.Else))
			}
		case *Switch:
			if n.HasDefault {
				got = mustAssign(n.Default)
				for _, c := range n.Cases {
					got = intersect(got, mustAssign(c.Body))
				}
			}
		}
		for sig := range got {
			out[sig] = true
		}
	}
	return out
}

func intersect(a, b map[*expr.Signal]bool) map[*expr.Signal]bool {
	out := map[*expr.Signal]bool{}
	for s := range a {
		if b[s] {
			out[s] = true
		}
	}
	return out
}

func validTrigger(t Trigger) error {
	if t.Signal == nil {
		return rtlerr.Trigger("<nil>")
	}
	if !t.Signal.IsClock() && !t.Signal.IsReset() {
		return rtlerr.Trigger(t.Signal.FullName())
	}
	return nil
}

// Refit resizes the block for the current signal widths. Assignment values,
// conditions, case targets and case items are rebuilt with expr.Refit; a
// destination that no longer matches its source is a width error.
func (b *Block) Refit() error {
	var err error
	Walk(b.Stmts, func(s Stmt) {
		if err != nil {
			return
		}
		switch n := s.(type) {
		case *Assign:
			err = n.refit()
		case *If:
			var c expr.Expr
			if c, err = expr.Refit(n.Cond); err == nil {
				n.Cond = c
			}
		case *Switch:
			var tgt expr.Expr
			if tgt, err = expr.Refit(n.Target); err != nil {
				return
			}
			n.Target = tgt
			w := n.Target.Width()
			for i := range n.Cases {
				if n.Cases[i].Value.Width() == w {
					continue
				}
				v, rerr := n.Cases[i].Value.Resize(w)
				if rerr != nil {
					err = rerr
					return
				}
				n.Cases[i].Value = v
			}
		}
	})
	return err
}

func (a *Assign) refit() error {
	if _, err := expr.Refit(a.Left); err != nil {
		return err
	}
	src, err := expr.Refit(a.Right)
	if err != nil {
		return err
	}
	v, err := expr.Fit(src, a.Left.Width(), a.Left.String())
	if err != nil {
		return err
	}
	a.value = v
	return nil
}
