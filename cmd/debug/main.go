package main

import (
	"fmt"
	"os"

	"github.com/robert-at-pretension-io/rtlgen/internal/syntax"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: debug <file.sv>")
		os.Exit(1)
	}

	source, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	toks := syntax.Tokens(string(source))
	fmt.Printf("%d tokens:\n", len(toks))
	for i, tok := range toks {
		fmt.Printf("  [%d] %d:%d %s\n", i, tok.Line, tok.Col, tok)
	}

	if err := syntax.Validate(string(source)); err != nil {
		fmt.Printf("invalid: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("valid")
}
