// Package iface describes interface definitions: a named bundle of member
// signals plus modports that give each member a direction.
package iface

import (
	"fmt"

	"github.com/robert-at-pretension-io/rtlgen/internal/expr"
	"github.com/robert-at-pretension-io/rtlgen/internal/rtlerr"
	"github.com/robert-at-pretension-io/rtlgen/internal/syntax"
)

// Member is one signal of an interface definition.
type Member struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Signed bool   `json:"signed"`
	Clock  bool   `json:"clock"`
}

// Entry is a member listed in a modport with its direction.
type Entry struct {
	Member string
	Dir    expr.Direction
}

// Definition is an immutable interface definition produced by Builder.Build.
type Definition struct {
	name     string
	members  []Member
	index    map[string]int
	modports []*Modport
}

func (d *Definition) Name() string { return d.name }

// ScopeName lets a definition act as a diagnostic scope.
func (d *Definition) ScopeName() string { return d.name }

func (d *Definition) Members() []Member {
	return append([]Member(nil), d.members...)
}

func (d *Definition) Member(name string) (Member, error) {
	i, ok := d.index[name]
	if !ok {
		return Member{}, rtlerr.UnknownName(d.name, name, rtlerr.Suggest(name, d.memberNames()))
	}
	return d.members[i], nil
}

func (d *Definition) memberNames() []string {
	names := make([]string, len(d.members))
	for i, m := range d.members {
		names[i] = m.Name
	}
	return names
}

func (d *Definition) Modports() []*Modport {
	return append([]*Modport(nil), d.modports...)
}

func (d *Definition) Modport(name string) (*Modport, error) {
	var names []string
	for _, mp := range d.modports {
		if mp.name == name {
			return mp, nil
		}
		names = append(names, mp.name)
	}
	return nil, rtlerr.UnknownName(d.name, name, rtlerr.Suggest(name, names))
}

// MustModport is like Modport but panics if the modport does not exist.
func (d *Definition) MustModport(name string) *Modport {
	mp, err := d.Modport(name)
	if err != nil {
		panic(err)
	}
	return mp
}

// CheckComplementary verifies that every member listed in both modports has
// opposite directions. Clock members must be inputs on both sides.
func (d *Definition) CheckComplementary(a, b *Modport) error {
	if a.def != d || b.def != d {
		return rtlerr.InterfaceMismatch(a.QualifiedName(), b.QualifiedName())
	}
	for _, e := range a.entries {
		other, ok := b.Direction(e.Member)
		if !ok {
			continue
		}
		m := d.members[d.index[e.Member]]
		if m.Clock {
			if e.Dir != expr.DirInput || other != expr.DirInput {
				return rtlerr.DirectionConflict(d.name, e.Member, "clock must be an input in every modport")
			}
			continue
		}
		if e.Dir.Flip() != other || e.Dir == other {
			return rtlerr.DirectionConflict(d.name, e.Member,
				fmt.Sprintf("is %s in %s and %s in %s", e.Dir, a.name, other, b.name))
		}
	}
	return nil
}

// Modport is a directional view of a definition.
type Modport struct {
	def     *Definition
	name    string
	entries []Entry
}

func (m *Modport) Name() string            { return m.name }
func (m *Modport) Definition() *Definition { return m.def }
func (m *Modport) Entries() []Entry        { return append([]Entry(nil), m.entries...) }

// QualifiedName is Definition.Modport, the form used in port declarations.
func (m *Modport) QualifiedName() string { return m.def.name + "." + m.name }

// Direction returns the direction of member within the modport.
func (m *Modport) Direction(member string) (expr.Direction, bool) {
	for _, e := range m.entries {
		if e.Member == member {
			return e.Dir, true
		}
	}
	return expr.DirNone, false
}

// Builder assembles a Definition. The first error is kept and returned by
// Build; later calls are ignored.
type Builder struct {
	def      *Definition
	modports []*ModportBuilder
	err      error
}

// Define starts a new interface definition.
func Define(name string) *Builder {
	b := &Builder{def: &Definition{name: name, index: map[string]int{}}}
	b.err = checkName(name)
	return b
}

func checkName(name string) error {
	if syntax.IsKeyword(name) {
		return rtlerr.InvalidName(name, "reserved keyword")
	}
	if !syntax.IsIdentifier(name) {
		return rtlerr.InvalidName(name, "not a legal identifier")
	}
	return nil
}

func (b *Builder) member(m Member) *Builder {
	if b.err != nil {
		return b
	}
	if err := checkName(m.Name); err != nil {
		b.err = err
		return b
	}
	if m.Width < 1 {
		b.err = rtlerr.WidthMismatch(b.def.name+"."+m.Name, 1, m.Width)
		return b
	}
	if _, dup := b.def.index[m.Name]; dup {
		b.err = rtlerr.DuplicateName(b.def.name, m.Name)
		return b
	}
	b.def.index[m.Name] = len(b.def.members)
	b.def.members = append(b.def.members, m)
	return b
}

// Var adds an unsigned member.
func (b *Builder) Var(name string, width int) *Builder {
	return b.member(Member{Name: name, Width: width})
}

// Signed adds a signed member.
func (b *Builder) Signed(name string, width int) *Builder {
	return b.member(Member{Name: name, Width: width, Signed: true})
}

// Clock adds a 1-bit clock member.
func (b *Builder) Clock(name string) *Builder {
	return b.member(Member{Name: name, Width: 1, Clock: true})
}

// Modport starts a modport. Members are listed with Input and Output.
func (b *Builder) Modport(name string) *ModportBuilder {
	mb := &ModportBuilder{parent: b, mp: &Modport{def: b.def, name: name}}
	if b.err == nil {
		if err := checkName(name); err != nil {
			b.err = err
		} else if b.hasModport(name) || b.isMember(name) {
			b.err = rtlerr.DuplicateName(b.def.name, name)
		}
	}
	b.modports = append(b.modports, mb)
	return mb
}

// Complement adds a modport that mirrors of with every direction flipped,
// except clocks which stay inputs.
func (b *Builder) Complement(name, of string) *Builder {
	var src *ModportBuilder
	for _, mb := range b.modports {
		if mb.mp.name == of {
			src = mb
		}
	}
	if src == nil {
		if b.err == nil {
			b.err = rtlerr.UnknownName(b.def.name, of, "")
		}
		return b
	}
	mb := b.Modport(name)
	for _, e := range src.mp.entries {
		dir := e.Dir.Flip()
		if b.isClock(e.Member) {
			dir = expr.DirInput
		}
		mb.add(e.Member, dir)
	}
	return b
}

func (b *Builder) hasModport(name string) bool {
	for _, mb := range b.modports {
		if mb.mp.name == name {
			return true
		}
	}
	return false
}

func (b *Builder) isMember(name string) bool {
	_, ok := b.def.index[name]
	return ok
}

func (b *Builder) isClock(name string) bool {
	i, ok := b.def.index[name]
	return ok && b.def.members[i].Clock
}

// Build returns a snapshot of the definition built so far. Later calls on
// b never change a definition already returned.
func (b *Builder) Build() (*Definition, error) {
	if b.err != nil {
		return nil, b.err
	}
	d := &Definition{
		name:    b.def.name,
		members: append([]Member(nil), b.def.members...),
		index:   make(map[string]int, len(b.def.index)),
	}
	for k, v := range b.def.index {
		d.index[k] = v
	}
	for _, mb := range b.modports {
		d.modports = append(d.modports, &Modport{
			def:     d,
			name:    mb.mp.name,
			entries: append([]Entry(nil), mb.mp.entries...),
		})
	}
	return d, nil
}

// MustBuild is like Build but panics on error.
func (b *Builder) MustBuild() *Definition {
	d, err := b.Build()
	if err != nil {
		panic(err)
	}
	return d
}

// ModportBuilder lists members of one modport.
type ModportBuilder struct {
	parent *Builder
	mp     *Modport
}

// Input marks members as inputs of the modport.
func (mb *ModportBuilder) Input(members ...string) *ModportBuilder {
	for _, m := range members {
		mb.add(m, expr.DirInput)
	}
	return mb
}

// Output marks members as outputs of the modport.
func (mb *ModportBuilder) Output(members ...string) *ModportBuilder {
	for _, m := range members {
		mb.add(m, expr.DirOutput)
	}
	return mb
}

// Done returns the interface builder for chaining.
func (mb *ModportBuilder) Done() *Builder { return mb.parent }

func (mb *ModportBuilder) add(member string, dir expr.Direction) {
	b := mb.parent
	if b.err != nil {
		return
	}
	if !b.isMember(member) {
		b.err = rtlerr.UnknownName(b.def.name, member, rtlerr.Suggest(member, b.def.memberNames()))
		return
	}
	if prev, ok := mb.mp.Direction(member); ok {
		if prev != dir {
			b.err = rtlerr.DirectionConflict(mb.mp.QualifiedName(), member,
				fmt.Sprintf("already declared %s", prev))
		} else {
			b.err = rtlerr.DuplicateName(mb.mp.QualifiedName(), member)
		}
		return
	}
	if b.isClock(member) && dir != expr.DirInput {
		b.err = rtlerr.DirectionConflict(mb.mp.QualifiedName(), member, "clock must be an input")
		return
	}
	mb.mp.entries = append(mb.mp.entries, Entry{Member: member, Dir: dir})
}
