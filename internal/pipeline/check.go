package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/robert-at-pretension-io/rtlgen/internal/config"
	"github.com/robert-at-pretension-io/rtlgen/internal/rtlerr"
	"github.com/robert-at-pretension-io/rtlgen/internal/syntax"
)

// CheckResult is the syntax verdict for one file.
type CheckResult struct {
	Path string
	Err  error // nil when the file is valid
}

func (c CheckResult) String() string {
	if c.Err == nil {
		return c.Path + ": ok"
	}
	var se *rtlerr.SyntaxValidationError
	if errors.As(c.Err, &se) {
		return fmt.Sprintf("%s:%d:%d: %s", c.Path, se.Line, se.Column, se.Message)
	}
	return fmt.Sprintf("%s: %v", c.Path, c.Err)
}

// CheckFile runs the syntax checker over one file.
func CheckFile(path string) CheckResult {
	data, err := os.ReadFile(path)
	if err != nil {
		return CheckResult{Path: path, Err: err}
	}
	return CheckResult{Path: path, Err: syntax.Validate(string(data))}
}

// CheckPaths checks files and directories. Directories expand through the
// check patterns of cfg.
func CheckPaths(cfg *config.Config, paths []string) ([]CheckResult, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		found, err := cfg.ResolveFiles(p)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		files = append(files, found...)
	}
	sort.Strings(files)

	results := make([]CheckResult, 0, len(files))
	for _, f := range files {
		results = append(results, CheckFile(f))
	}
	return results, nil
}

// Watch checks every source file under dir that is created or written
// until ctx ends. ready, if non-nil, is closed once the watches are set.
func Watch(ctx context.Context, dir string, ready chan<- struct{}, report func(CheckResult)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && len(d.Name()) > 1 && d.Name()[0] == '.' {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
	if err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	if ready != nil {
		close(ready)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = w.Add(ev.Name)
					continue
				}
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 || !config.IsSourceFile(ev.Name) {
				continue
			}
			report(CheckFile(ev.Name))
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}
