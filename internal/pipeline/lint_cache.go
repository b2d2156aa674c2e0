package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"

	"github.com/robert-at-pretension-io/rtlgen/internal/policy"
)

const lintCacheVersion = 1

// lintCacheEntry stores the lint result for one top module, valid while the
// policy input and rule sources hash to InputHash.
type lintCacheEntry struct {
	Version   int           `json:"version"`
	InputHash string        `json:"input_hash"`
	Result    policy.Result `json:"result"`
}

func lintCachePath(dir, top string) string {
	return filepath.Join(dir, ".rtlgen", top+"_lint.json")
}

func lintInputHash(input policy.Input, fingerprint string) (string, error) {
	data, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("marshal lint input: %w", err)
	}
	h := xxhash.New()
	_, _ = h.Write(data)
	_, _ = h.WriteString(fingerprint)
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

func loadLintCache(dir, top, hash string) (*policy.Result, bool, error) {
	data, err := os.ReadFile(lintCachePath(dir, top))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read lint cache: %w", err)
	}
	var entry lintCacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, fmt.Errorf("parse lint cache: %w", err)
	}
	if entry.Version != lintCacheVersion || entry.InputHash != hash {
		return nil, false, nil
	}
	if entry.Result.Violations == nil {
		entry.Result.Violations = []policy.Violation{}
	}
	return &entry.Result, true, nil
}

func saveLintCache(dir, top, hash string, result *policy.Result) error {
	entry := lintCacheEntry{
		Version:   lintCacheVersion,
		InputHash: hash,
		Result:    *result,
	}
	if err := writeJSONAtomic(lintCachePath(dir, top), entry); err != nil {
		return fmt.Errorf("write lint cache: %w", err)
	}
	return nil
}

// ClearCache removes the snapshots and lint results stored under the
// output directory of cfg. It returns the directory that was targeted.
func (r *Runner) ClearCache() (string, error) {
	dir := filepath.Join(r.Config.Emit.OutputDir, ".rtlgen")
	if err := os.RemoveAll(dir); err != nil {
		return dir, fmt.Errorf("remove cache: %w", err)
	}
	return dir, nil
}
