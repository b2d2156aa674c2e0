package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/robert-at-pretension-io/rtlgen/internal/facts"
)

const snapshotVersion = 1

// snapshot holds the fact tables of the previous run of one top module so
// the next run can report a delta.
type snapshot struct {
	Version int          `json:"version"`
	Top     string       `json:"top"`
	Tables  facts.Tables `json:"tables"`
}

func snapshotPath(dir, top string) string {
	return filepath.Join(dir, ".rtlgen", top+"_facts.json")
}

func loadSnapshot(dir, top string) (facts.Tables, bool, error) {
	data, err := os.ReadFile(snapshotPath(dir, top))
	if err != nil {
		if os.IsNotExist(err) {
			return facts.Tables{}, false, nil
		}
		return facts.Tables{}, false, fmt.Errorf("read facts snapshot: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return facts.Tables{}, false, fmt.Errorf("parse facts snapshot: %w", err)
	}
	if snap.Version != snapshotVersion || snap.Top != top {
		return facts.Tables{}, false, nil
	}
	return snap.Tables, true, nil
}

func saveSnapshot(dir, top string, tables facts.Tables) error {
	snap := snapshot{
		Version: snapshotVersion,
		Top:     top,
		Tables:  tables,
	}
	if err := writeJSONAtomic(snapshotPath(dir, top), snap); err != nil {
		return fmt.Errorf("write facts snapshot: %w", err)
	}
	return nil
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.json")
	if err != nil {
		return fmt.Errorf("temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
