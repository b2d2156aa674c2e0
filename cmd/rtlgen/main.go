// rtlgen elaborates the built-in designs into SystemVerilog and checks
// SystemVerilog files against the synthesizable subset the generator emits.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/robert-at-pretension-io/rtlgen/internal/config"
	"github.com/robert-at-pretension-io/rtlgen/internal/designs"
	"github.com/robert-at-pretension-io/rtlgen/internal/pipeline"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "init":
		runInit(args)
	case "check":
		runCheck(args)
	case "watch":
		runWatch(args)
	case "demo":
		runDemo(args)
	case "clean":
		runClean(args)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: rtlgen <command> [options]

Commands:
  init [file]               Create a configuration file (default rtlgen.json)
  check [-c cfg] [paths]    Check SystemVerilog files or directories
  watch [-c cfg] [dir]      Re-check SystemVerilog files as they change
  demo [-c cfg] [-o dir] [-policy dir] [-no-cache] [name]
                            Generate a built-in design (all when no name)
  clean [-c cfg] [-o dir]   Remove stored fact snapshots and lint results

Configuration:
  rtlgen looks for configuration in:
    1. ./rtlgen.json, ./.rtlgen.json, ./rtlgen.yaml, ./rtlgen.yml, ./rtlgen.toml
    2. ~/.config/rtlgen/config.json

  Run 'rtlgen init' to create a default configuration file.`)
}

func loadConfig(path, root string) *config.Config {
	if path != "" {
		cfg, err := config.LoadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config %s: %v\n", path, err)
			os.Exit(1)
		}
		return cfg
	}
	cfg, err := config.Load(root)
	if err != nil {
		fmt.Printf("Warning: Could not load config: %v (using defaults)\n", err)
		cfg = config.DefaultConfig()
	}
	return cfg
}

func runInit(args []string) {
	configPath := "rtlgen.json"
	if len(args) > 0 {
		configPath = args[0]
	}

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config file %s already exists. Overwrite? [y/N]: ", configPath)
		var response string
		_, _ = fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted.")
			return
		}
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Created %s\n", configPath)
	fmt.Println("\nEdit this file to configure:")
	fmt.Println("  - Output directory, extension and indentation")
	fmt.Println("  - Elaboration policy for open and undriven outputs")
	fmt.Println("  - Lint rule severities")
	fmt.Println("  - Generated definition tracking")
}

func runCheck(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	cfgPath := fs.String("c", "", "config file")
	_ = fs.Parse(args)

	paths := fs.Args()
	if len(paths) == 0 {
		paths = []string{"."}
	}
	cfg := loadConfig(*cfgPath, paths[0])

	results, err := pipeline.CheckPaths(cfg, paths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Println(r)
		}
	}
	fmt.Printf("%d file(s) checked, %d failed\n", len(results), failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func runWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	cfgPath := fs.String("c", "", "config file")
	_ = fs.Parse(args)

	dir := "."
	if fs.NArg() > 0 {
		dir = fs.Arg(0)
	}
	cfg := loadConfig(*cfgPath, dir)
	log, err := pipeline.NewLogger(cfg.Telemetry, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ready := make(chan struct{})
	go func() {
		<-ready
		log.WithField("dir", dir).Info("watching")
	}()
	err = pipeline.Watch(ctx, dir, ready, func(r pipeline.CheckResult) {
		entry := log.WithField("file", r.Path)
		if r.Err != nil {
			entry.Error(r.String())
			return
		}
		entry.Info("ok")
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runDemo(args []string) {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	cfgPath := fs.String("c", "", "config file")
	outDir := fs.String("o", "", "output directory (overrides emit.outputDir)")
	policyDir := fs.String("policy", "", "directory of extra .rego lint rules")
	noCache := fs.Bool("no-cache", false, "always evaluate lint rules")
	_ = fs.Parse(args)

	names := designs.Names()
	if fs.NArg() > 0 {
		names = fs.Args()
	}
	cfg := loadConfig(*cfgPath, ".")
	if *outDir != "" {
		cfg.Emit.OutputDir = *outDir
	}

	runner, err := pipeline.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	runner.PolicyDir = *policyDir
	runner.Write = true
	runner.NoCache = *noCache

	failed := false
	for _, name := range names {
		top, err := designs.Build(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		report, err := runner.Run(context.Background(), top)
		if report != nil {
			for _, f := range report.Files {
				fmt.Printf("  wrote %s\n", f)
			}
			if report.Lint != nil {
				s := report.Lint.Summary
				fmt.Printf("%s: %d module(s), %d violation(s) (%d errors, %d warnings, %d info)\n",
					name, len(report.Output.Modules), s.TotalViolations, s.Errors, s.Warnings, s.Info)
			}
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", name, err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func runClean(args []string) {
	fs := flag.NewFlagSet("clean", flag.ExitOnError)
	cfgPath := fs.String("c", "", "config file")
	outDir := fs.String("o", "", "output directory (overrides emit.outputDir)")
	_ = fs.Parse(args)

	cfg := loadConfig(*cfgPath, ".")
	if *outDir != "" {
		cfg.Emit.OutputDir = *outDir
	}
	runner, err := pipeline.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	dir, err := runner.ClearCache()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Removed %s\n", dir)
}
