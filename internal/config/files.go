package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// Patterns are matched against slash-separated paths relative to the root.
// "*" stays within one directory, "**" crosses directories.
func compileAll(patterns []string) ([]glob.Glob, error) {
	var out []glob.Glob
	for _, p := range patterns {
		g, err := glob.Compile(filepath.ToSlash(p), '/')
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

func matchAny(globs []glob.Glob, s string) bool {
	for _, g := range globs {
		if g.Match(s) {
			return true
		}
	}
	return false
}

// ResolveFiles walks rootPath and returns the SystemVerilog files matching
// Check.Files and not matching Check.Exclude, sorted.
func (c *Config) ResolveFiles(rootPath string) ([]string, error) {
	include, err := compileAll(c.Check.Files)
	if err != nil {
		return nil, err
	}
	exclude, err := compileAll(c.Check.Exclude)
	if err != nil {
		return nil, err
	}

	var result []string
	err = filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors, continue walking
		}
		if info.IsDir() {
			if path != rootPath && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsSourceFile(path) {
			return nil
		}
		rel, err := filepath.Rel(rootPath, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if matchAny(include, rel) && !matchAny(exclude, rel) {
			result = append(result, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(result)
	return result, nil
}

// IsSourceFile reports whether path has a SystemVerilog extension.
func IsSourceFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".sv", ".svh", ".v":
		return true
	}
	return false
}

// ShouldIgnoreModule returns true if the module name matches any
// Lint.IgnoreModules pattern.
func (c *Config) ShouldIgnoreModule(name string) bool {
	for _, p := range c.Lint.IgnoreModules {
		g, err := glob.Compile(p)
		if err != nil {
			continue
		}
		if g.Match(name) {
			return true
		}
	}
	return false
}
