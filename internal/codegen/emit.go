// Package codegen renders an elaborated design as SystemVerilog text.
package codegen

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/robert-at-pretension-io/rtlgen/internal/module"
	"github.com/robert-at-pretension-io/rtlgen/internal/syntax"
)

// Options configures emission.
type Options struct {
	// Validate runs the syntax checker over every emitted unit.
	Validate    bool
	Policy      module.Policy
	Indent      string
	MaxParallel int
	// Header is written as a comment above every unit.
	Header string
	// Observe, when set, is called once per rendered module from the
	// rendering goroutine.
	Observe func(name string, start time.Time, elapsed time.Duration, err error)
}

// DefaultOptions validates output and indents with two spaces.
func DefaultOptions() Options {
	return Options{
		Validate:    true,
		Policy:      module.DefaultPolicy(),
		Indent:      "  ",
		MaxParallel: 4,
	}
}

// ModuleText is the rendered text of one module definition.
type ModuleText struct {
	Name string
	Hash uint64
	Text string
}

// InterfaceText is the rendered text of one interface definition.
type InterfaceText struct {
	Name string
	Text string
}

// Output holds every rendered unit in emission order.
type Output struct {
	Top        string
	Design     *module.Design
	Interfaces []InterfaceText
	Modules    []ModuleText
}

// Text concatenates interfaces, then modules deepest first.
func (o *Output) Text() string {
	var parts []string
	for _, i := range o.Interfaces {
		parts = append(parts, i.Text)
	}
	for _, m := range o.Modules {
		parts = append(parts, m.Text)
	}
	return strings.Join(parts, "\n")
}

// Module returns the rendered module with the given emitted name.
func (o *Output) Module(name string) (ModuleText, bool) {
	for _, m := range o.Modules {
		if m.Name == name {
			return m, true
		}
	}
	return ModuleText{}, false
}

// Emit elaborates top and renders the result.
func Emit(top *module.Module, opts Options) (*Output, error) {
	d, err := module.Elaborate(top, opts.Policy)
	if err != nil {
		return nil, err
	}
	return EmitDesign(context.Background(), d, opts)
}

// EmitDesign renders an elaborated design. Units are rendered concurrently
// and assembled in design order.
func EmitDesign(ctx context.Context, d *module.Design, opts Options) (*Output, error) {
	if opts.Indent == "" {
		opts.Indent = "  "
	}
	out := &Output{
		Top:        d.Top.Name,
		Design:     d,
		Interfaces: make([]InterfaceText, len(d.Interfaces)),
		Modules:    make([]ModuleText, len(d.Units)),
	}

	g, gctx := errgroup.WithContext(ctx)
	if opts.MaxParallel > 0 {
		g.SetLimit(opts.MaxParallel)
	}
	for i, def := range d.Interfaces {
		i, def := i, def
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			text := withHeader(opts.Header, renderInterface(def, opts))
			if err := validate(opts, def.Name(), text); err != nil {
				return err
			}
			out.Interfaces[i] = InterfaceText{Name: def.Name(), Text: text}
			return nil
		})
	}
	for i, u := range d.Units {
		i, u := i, u
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			text := withHeader(opts.Header, renderModule(u, opts))
			err := validate(opts, u.Name, text)
			if opts.Observe != nil {
				opts.Observe(u.Name, start, time.Since(start), err)
			}
			if err != nil {
				return err
			}
			out.Modules[i] = ModuleText{Name: u.Name, Hash: u.Hash, Text: text}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func validate(opts Options, name, text string) error {
	if !opts.Validate {
		return nil
	}
	if err := syntax.Validate(text); err != nil {
		return errors.Wrapf(err, "emitted %s", name)
	}
	return nil
}

func withHeader(header, text string) string {
	if header == "" {
		return text
	}
	w := &writer{}
	w.comment(header)
	return w.String() + text
}

// WriteDir writes one file per module and, when the design uses
// interfaces, <top>_interfaces.svh. It returns the written paths.
func (o *Output) WriteDir(dir, ext string) ([]string, error) {
	if ext == "" {
		ext = ".sv"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create output directory")
	}
	var written []string
	write := func(name, text string) error {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
			return errors.Wrapf(err, "write %s", path)
		}
		written = append(written, path)
		return nil
	}
	if len(o.Interfaces) > 0 {
		var parts []string
		for _, i := range o.Interfaces {
			parts = append(parts, i.Text)
		}
		if err := write(o.Top+"_interfaces.svh", strings.Join(parts, "\n")); err != nil {
			return written, err
		}
	}
	for _, m := range o.Modules {
		if err := write(m.Name+ext, m.Text); err != nil {
			return written, err
		}
	}
	return written, nil
}
