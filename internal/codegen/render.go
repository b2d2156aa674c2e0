package codegen

import (
	"fmt"
	"strings"

	"github.com/mitchellh/go-wordwrap"

	"github.com/robert-at-pretension-io/rtlgen/internal/expr"
	"github.com/robert-at-pretension-io/rtlgen/internal/iface"
	"github.com/robert-at-pretension-io/rtlgen/internal/module"
	"github.com/robert-at-pretension-io/rtlgen/internal/stmt"
)

const commentWidth = 78

// typeText renders the data type of a signal: logic, logic [7:0],
// logic signed [7:0].
func typeText(width int, signed bool) string {
	var b strings.Builder
	b.WriteString("logic")
	if signed {
		b.WriteString(" signed")
	}
	if width > 1 {
		fmt.Fprintf(&b, " [%d:0]", width-1)
	}
	return b.String()
}

// signalType is typeText for a declared signal. Parameter-sized signals
// render their range through the parameter.
func signalType(s *expr.Signal) string {
	p := s.WidthParam()
	if p == nil {
		return typeText(s.Width(), s.Signed())
	}
	if s.Signed() {
		return fmt.Sprintf("logic signed [%s-1:0]", p.Name())
	}
	return fmt.Sprintf("logic [%s-1:0]", p.Name())
}

func renderParams(w *writer, params []*expr.Param) {
	w.depth++
	for i, p := range params {
		sep := ","
		if i == len(params)-1 {
			sep = ""
		}
		w.line("parameter %s = %d%s", p.Name(), p.Default(), sep)
	}
	w.depth--
}

type writer struct {
	b      strings.Builder
	indent string
	depth  int
}

func (w *writer) line(format string, args ...interface{}) {
	for i := 0; i < w.depth; i++ {
		w.b.WriteString(w.indent)
	}
	fmt.Fprintf(&w.b, format, args...)
	w.b.WriteByte('\n')
}

func (w *writer) blank() { w.b.WriteByte('\n') }

func (w *writer) comment(text string) {
	if text == "" {
		return
	}
	for _, l := range strings.Split(wordwrap.WrapString(text, commentWidth), "\n") {
		w.line("// %s", strings.TrimSpace(l))
	}
}

func (w *writer) String() string { return w.b.String() }

func renderInterface(def *iface.Definition, opts Options) string {
	w := &writer{indent: opts.Indent}
	w.line("interface %s;", def.Name())
	w.depth++
	for _, m := range def.Members() {
		w.line("%s %s;", typeText(m.Width, m.Signed), m.Name)
	}
	for _, mp := range def.Modports() {
		var parts []string
		for _, e := range mp.Entries() {
			parts = append(parts, e.Dir.String()+" "+e.Member)
		}
		w.line("modport %s(%s);", mp.Name(), strings.Join(parts, ", "))
	}
	w.depth--
	w.line("endinterface")
	return w.String()
}

func renderModule(u *module.Unit, opts Options) string {
	m := u.Module
	namer := u.Namer()
	w := &writer{indent: opts.Indent}

	w.comment(m.Comment())
	ports := m.PortList()
	params := m.Params()
	switch {
	case len(params) > 0 && len(ports) == 0:
		w.line("module %s #(", u.Name)
		renderParams(w, params)
		w.line(");")
	case len(params) > 0:
		w.line("module %s #(", u.Name)
		renderParams(w, params)
		w.line(") (")
	case len(ports) == 0:
		w.line("module %s;", u.Name)
	default:
		w.line("module %s (", u.Name)
	}
	if len(ports) > 0 {
		w.depth++
		for i, d := range ports {
			sep := ","
			if i == len(ports)-1 {
				sep = ""
			}
			if ii := d.Interface; ii != nil {
				w.line("%s %s%s", ii.TypeName(), ii.Name(), sep)
				continue
			}
			s := d.Signal
			w.line("%s %s %s%s", s.Dir(), signalType(s), s.Name(), sep)
		}
		w.depth--
		w.line(");")
	}
	w.blank()

	decls := 0
	for _, d := range m.Declarations() {
		if d.IsPort() {
			continue
		}
		if ii := d.Interface; ii != nil {
			w.line("%s %s();", ii.Definition().Name(), ii.Name())
		} else {
			w.line("%s %s;", signalType(d.Signal), d.Signal.Name())
		}
		decls++
	}
	for _, n := range u.Nets {
		w.line("%s %s;", typeText(n.Width, n.Signed), n.Name)
		decls++
	}
	for _, a := range u.AutoInterfaces {
		w.line("%s %s();", a.Definition.Name(), a.Name)
		decls++
	}

	for _, a := range u.Assigns {
		w.line("assign %s = %s;", expr.Format(a.Left, namer), expr.Format(a.Right, namer))
		decls++
	}
	if decls > 0 && len(m.Blocks()) > 0 {
		w.blank()
	}

	for _, blk := range m.Blocks() {
		renderBlock(w, blk, namer)
		w.blank()
	}

	for _, ri := range u.Instances {
		renderInstance(w, ri)
		w.blank()
	}
	w.line("endmodule   // %s", u.Name)
	return w.String()
}

func renderBlock(w *writer, blk *stmt.Block, namer expr.Namer) {
	w.comment(blk.Comment)
	begin, end := "begin", "end"
	if blk.Label != "" {
		begin += ": " + blk.Label
		end += ": " + blk.Label
	}
	op := "="
	if blk.Kind == stmt.Sequential {
		op = "<="
		var events []string
		for _, t := range blk.Triggers {
			events = append(events, t.Edge.String()+" "+namer(t.Signal))
		}
		w.line("always_ff @(%s) %s", strings.Join(events, ", "), begin)
	} else {
		w.line("always_comb %s", begin)
	}
	w.depth++
	renderStmts(w, blk.Stmts, namer, op)
	w.depth--
	w.line("%s", end)
}

func renderStmts(w *writer, stmts []stmt.Stmt, namer expr.Namer, op string) {
	for _, s := range stmts {
		switch n := s.(type) {
		case *stmt.Assign:
			w.line("%s %s %s;", expr.Format(n.Left, namer), op, expr.Format(n.Value(), namer))
		case *stmt.If:
			renderIf(w, n, namer, op, "if")
		case *stmt.Switch:
			w.line("unique case (%s)", expr.Format(n.Target, namer))
			w.depth++
			for _, c := range n.Cases {
				w.line("%s: begin", c.Value.String())
				w.depth++
				renderStmts(w, c.Body, namer, op)
				w.depth--
				w.line("end")
			}
			if n.HasDefault {
				w.line("default: begin")
				w.depth++
				renderStmts(w, n.Default, namer, op)
				w.depth--
				w.line("end")
			}
			w.depth--
			w.line("endcase")
		}
	}
}

func renderIf(w *writer, n *stmt.If, namer expr.Namer, op, keyword string) {
	w.line("%s (%s) begin", keyword, expr.Format(n.Cond, namer))
	w.depth++
	renderStmts(w, n.Then, namer, op)
	w.depth--
	w.line("end")
	if n.Else == nil {
		return
	}
	if len(n.Else) == 1 {
		if elif, ok := n.Else[0].(*stmt.If); ok {
			renderIf(w, elif, namer, op, "else if")
			return
		}
	}
	w.line("else begin")
	w.depth++
	renderStmts(w, n.Else, namer, op)
	w.depth--
	w.line("end")
}

func renderInstance(w *writer, ri *module.ResolvedInstance) {
	w.comment(ri.Comment)
	head := ri.ModuleName()
	if len(ri.Params) > 0 {
		overrides := make([]string, len(ri.Params))
		for i, p := range ri.Params {
			overrides[i] = fmt.Sprintf(".%s(%s)", p.Param, p.Text)
		}
		head += " #(" + strings.Join(overrides, ", ") + ")"
	}
	if len(ri.Bindings) == 0 {
		w.line("%s %s ();", head, ri.Name)
		return
	}
	w.line("%s %s (", head, ri.Name)
	w.depth++
	for i, b := range ri.Bindings {
		sep := ","
		if i == len(ri.Bindings)-1 {
			sep = ""
		}
		w.line(".%s(%s)%s", b.Port, b.Text, sep)
	}
	w.depth--
	w.line(");")
}
