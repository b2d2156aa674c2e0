package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/robert-at-pretension-io/rtlgen/internal/designs"
	"github.com/robert-at-pretension-io/rtlgen/internal/facts"
	"github.com/robert-at-pretension-io/rtlgen/internal/module"
	"github.com/robert-at-pretension-io/rtlgen/internal/validator"
)

func main() {
	output := flag.String("output", "", "write facts JSON to file (default: stdout)")
	flag.StringVar(output, "o", "", "write facts JSON to file (shorthand)")
	deltaFrom := flag.String("delta-from", "", "previous facts JSON to compute delta from")
	deltaOut := flag.String("delta-out", "", "write delta JSON to file (requires --delta-from)")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: rtlgen-facts [--output file] [--delta-from prev.json --delta-out delta.json] <design>")
		fmt.Fprintf(os.Stderr, "Designs: %v\n", designs.Names())
		os.Exit(1)
	}

	top, err := designs.Build(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	d, err := module.Elaborate(top, module.DefaultPolicy())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	tables := facts.BuildTables(d)

	v, err := validator.NewFactsValidator()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading facts schema: %v\n", err)
		os.Exit(1)
	}
	if errs := v.ValidationErrors(tables); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "  %s\n", e)
		}
		fmt.Fprintln(os.Stderr, "Error: fact tables do not match the schema")
		os.Exit(1)
	}

	if *output != "" {
		if err := writeJSON(*output, tables); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing facts: %v\n", err)
			os.Exit(1)
		}
	} else {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(tables); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding facts: %v\n", err)
			os.Exit(1)
		}
	}

	if *deltaFrom != "" || *deltaOut != "" {
		if *deltaFrom == "" || *deltaOut == "" {
			fmt.Fprintln(os.Stderr, "Error: --delta-from and --delta-out must be used together")
			os.Exit(1)
		}
		prev, err := readTables(*deltaFrom)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading delta-from: %v\n", err)
			os.Exit(1)
		}
		delta := facts.ComputeDelta(prev, tables)
		if err := writeJSON(*deltaOut, delta); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing delta: %v\n", err)
			os.Exit(1)
		}
	}
}

func readTables(path string) (facts.Tables, error) {
	f, err := os.Open(path)
	if err != nil {
		return facts.Tables{}, err
	}
	defer func() { _ = f.Close() }()

	var tables facts.Tables
	if err := json.NewDecoder(f).Decode(&tables); err != nil {
		return facts.Tables{}, err
	}
	return tables, nil
}

func writeJSON(path string, data interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
