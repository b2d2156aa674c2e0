package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/robert-at-pretension-io/rtlgen/internal/config"
)

const goodSV = "module ok (input logic a, output logic y);\n  assign y = a;\nendmodule\n"

const badSV = "module broken (input logic a);\n  assign = a;\nendmodule\n"

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCheckPaths(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "ok.sv"), goodSV)
	writeFile(t, filepath.Join(dir, "sub", "broken.sv"), badSV)
	writeFile(t, filepath.Join(dir, "notes.txt"), "not verilog")
	writeFile(t, filepath.Join(dir, ".hidden", "skip.sv"), badSV)

	results, err := CheckPaths(config.DefaultConfig(), []string{dir})
	if err != nil {
		t.Fatalf("CheckPaths: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %v", results)
	}
	if results[0].Err != nil || !strings.HasSuffix(results[0].Path, "ok.sv") {
		t.Errorf("ok.sv: %v", results[0])
	}
	if results[1].Err == nil {
		t.Fatal("broken.sv passed")
	}
	msg := results[1].String()
	if !strings.Contains(msg, "broken.sv:2:") {
		t.Errorf("location missing from %q", msg)
	}

	single, err := CheckPaths(config.DefaultConfig(), []string{filepath.Join(dir, "ok.sv")})
	if err != nil || len(single) != 1 || single[0].Err != nil {
		t.Fatalf("single file: %v %v", single, err)
	}
	if single[0].String() != single[0].Path+": ok" {
		t.Errorf("String() = %q", single[0].String())
	}

	if _, err := CheckPaths(config.DefaultConfig(), []string{filepath.Join(dir, "missing.sv")}); err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestCheckEmittedDesign(t *testing.T) {
	t.Setenv(TimingEnv, "")
	cfg := testConfig(t.TempDir())
	r, _ := newRunner(t, cfg)
	if _, err := r.Run(context.Background(), build(t, "modport_bus")); err != nil {
		t.Fatalf("Run: %v", err)
	}
	results, err := CheckPaths(cfg, []string{cfg.Emit.OutputDir})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 {
		t.Fatal("nothing checked")
	}
	for _, res := range results {
		if res.Err != nil {
			t.Errorf("%s", res)
		}
	}
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan struct{})
	results := make(chan CheckResult, 16)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, dir, ready, func(r CheckResult) { results <- r })
	}()

	select {
	case <-ready:
	case err := <-done:
		t.Fatalf("watch exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch not ready")
	}

	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")
	writeFile(t, filepath.Join(dir, "broken.sv"), badSV)

	deadline := time.After(5 * time.Second)
	for {
		select {
		case res := <-results:
			if strings.HasSuffix(res.Path, "notes.txt") {
				t.Fatal("non-source file checked")
			}
			if res.Err == nil {
				// an empty file seen on create; wait for the write
				continue
			}
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("watch returned %v", err)
			}
			return
		case <-deadline:
			t.Fatal("no check result for broken.sv")
		}
	}
}
