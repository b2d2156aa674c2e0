package stmt

import (
	"github.com/pkg/errors"

	"github.com/robert-at-pretension-io/rtlgen/internal/expr"
)

type buildState struct {
	err error
}

// Builder appends statements to the body currently being built. Nested
// bodies get their own Builder sharing the same error state, so the first
// failure anywhere in the block is the one reported.
type Builder struct {
	state *buildState
	list  *[]Stmt
}

func newBuilder(state *buildState, list *[]Stmt) *Builder {
	return &Builder{state: state, list: list}
}

// Err returns the first error recorded while building.
func (b *Builder) Err() error { return b.state.err }

// Fail records err unless an earlier error is already pending.
func (b *Builder) Fail(err error) {
	if b.state.err == nil && err != nil {
		b.state.err = err
	}
}

func (b *Builder) body(fn func(*Builder)) []Stmt {
	var out []Stmt
	if fn != nil {
		fn(newBuilder(b.state, &out))
	}
	return out
}

// Assign appends dst = src.
func (b *Builder) Assign(dst, src expr.Expr) {
	if b.state.err != nil {
		return
	}
	a, err := NewAssign(dst, src)
	if err != nil {
		b.Fail(err)
		return
	}
	*b.list = append(*b.list, a)
}

// IfChain continues an if statement with else-if and else arms.
type IfChain struct {
	b    *Builder
	last *If
}

// If appends a conditional whose then-branch is built by then.
func (b *Builder) If(cond expr.Expr, then func(*Builder)) *IfChain {
	n := &If{Cond: cond, Then: b.body(then)}
	if b.state.err == nil {
		*b.list = append(*b.list, n)
	}
	return &IfChain{b: b, last: n}
}

// ElseIf adds a further condition to the chain.
func (c *IfChain) ElseIf(cond expr.Expr, then func(*Builder)) *IfChain {
	n := &If{Cond: cond, Then: c.b.body(then)}
	if c.last.Else != nil {
		c.b.Fail(errors.New("else-if added after else"))
		return c
	}
	c.last.Else = []Stmt{n}
	return &IfChain{b: c.b, last: n}
}

// Else closes the chain.
func (c *IfChain) Else(fn func(*Builder)) {
	if c.last.Else != nil {
		c.b.Fail(errors.New("if statement already has an else branch"))
		return
	}
	c.last.Else = c.b.body(fn)
	if c.last.Else == nil {
		c.last.Else = []Stmt{}
	}
}

// SwitchChain adds arms to a case statement.
type SwitchChain struct {
	b *Builder
	s *Switch
}

// Switch appends a case statement over target.
func (b *Builder) Switch(target expr.Expr) *SwitchChain {
	s := &Switch{Target: target}
	if b.state.err == nil {
		*b.list = append(*b.list, s)
	}
	return &SwitchChain{b: b, s: s}
}

// Case adds an arm matching value. Unsized literals take the target width.
func (c *SwitchChain) Case(value *expr.Literal, fn func(*Builder)) *SwitchChain {
	v, err := expr.Fit(value, c.s.Target.Width(), c.s.Target.String())
	if err != nil {
		c.b.Fail(err)
		return c
	}
	lit := v.(*expr.Literal)
	for _, existing := range c.s.Cases {
		if existing.Value.Value() == lit.Value() {
			c.b.Fail(errors.Errorf("case %s: duplicate item %s", c.s.Target, lit))
			return c
		}
	}
	c.s.Cases = append(c.s.Cases, Case{Value: lit, Body: c.b.body(fn)})
	return c
}

// Default adds the default arm.
func (c *SwitchChain) Default(fn func(*Builder)) {
	if c.s.HasDefault {
		c.b.Fail(errors.Errorf("case %s: default already set", c.s.Target))
		return
	}
	c.s.HasDefault = true
	c.s.Default = c.b.body(fn)
}

// NewCombinational runs fn once to build a combinational block.
func NewCombinational(fn func(*Builder)) (*Block, error) {
	blk := &Block{Kind: Combinational}
	state := &buildState{}
	fn(newBuilder(state, &blk.Stmts))
	if state.err != nil {
		return nil, state.err
	}
	return blk, nil
}

// NewSequential runs fn once to build a block triggered by triggers. Every
// trigger must be a clock or reset signal.
func NewSequential(triggers []Trigger, fn func(*Builder)) (*Block, error) {
	if len(triggers) == 0 {
		return nil, errors.New("sequential block needs at least one trigger")
	}
	for _, t := range triggers {
		if err := validTrigger(t); err != nil {
			return nil, err
		}
	}
	blk := &Block{Kind: Sequential, Triggers: append([]Trigger(nil), triggers...)}
	state := &buildState{}
	fn(newBuilder(state, &blk.Stmts))
	if state.err != nil {
		return nil, state.err
	}
	return blk, nil
}

// NewEdgeTriggered is NewSequential with a single trigger.
func NewEdgeTriggered(edge Edge, sig *expr.Signal, fn func(*Builder)) (*Block, error) {
	return NewSequential([]Trigger{{Edge: edge, Signal: sig}}, fn)
}
