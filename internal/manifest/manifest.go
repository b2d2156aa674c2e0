// Package manifest records the module definitions generated under an output
// directory so that a later run can tell when a name is reused for a
// different definition.
package manifest

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	semver "github.com/Masterminds/semver/v3"
	"golang.org/x/crypto/sha3"

	"github.com/robert-at-pretension-io/rtlgen/internal/codegen"
	"github.com/robert-at-pretension-io/rtlgen/internal/module"
)

// FormatVersion is written into every manifest.
const FormatVersion = "1.1.0"

// Manifests of any 1.x format can be read.
const compatible = "^1.0.0"

// Entry is one generated module definition.
type Entry struct {
	Name   string `json:"name"`
	Hash   string `json:"hash"`
	Digest string `json:"digest"`
	Top    string `json:"top"`
}

// Manifest maps emitted module names to their last recorded definition.
type Manifest struct {
	Version string           `json:"version"`
	Modules map[string]Entry `json:"modules"`
}

// Warning reports a module name regenerated with a different definition.
type Warning struct {
	Module  string `json:"module"`
	OldHash string `json:"old_hash"`
	NewHash string `json:"new_hash"`
	OldTop  string `json:"old_top"`
	NewTop  string `json:"new_top"`
}

func (w Warning) String() string {
	return fmt.Sprintf("module %s regenerated with a different definition (was %s from %s, now %s from %s)",
		w.Module, w.OldHash, w.OldTop, w.NewHash, w.NewTop)
}

// New returns an empty manifest in the current format.
func New() *Manifest {
	return &Manifest{Version: FormatVersion, Modules: map[string]Entry{}}
}

// Load reads a manifest. A missing file yields an empty manifest; a file in
// an incompatible format version is an error.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := checkVersion(m.Version); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	if m.Modules == nil {
		m.Modules = map[string]Entry{}
	}
	return &m, nil
}

func checkVersion(v string) error {
	version, err := semver.NewVersion(v)
	if err != nil {
		return fmt.Errorf("invalid format version %q: %w", v, err)
	}
	c, err := semver.NewConstraint(compatible)
	if err != nil {
		return err
	}
	if !c.Check(version) {
		return fmt.Errorf("format version %s does not satisfy %s", v, compatible)
	}
	return nil
}

// Digest is the hex SHA3-256 of emitted text.
func Digest(text string) string {
	sum := sha3.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Record adds every module of out and returns a warning for each name that
// was recorded earlier with a different structural hash.
func (m *Manifest) Record(d *module.Design, out *codegen.Output) []Warning {
	top := out.Top
	if d != nil && d.Top != nil {
		top = d.Top.Name
	}

	var warnings []Warning
	for _, mt := range out.Modules {
		hash := fmt.Sprintf("%016x", mt.Hash)
		if prev, ok := m.Modules[mt.Name]; ok && prev.Hash != hash {
			warnings = append(warnings, Warning{
				Module:  mt.Name,
				OldHash: prev.Hash,
				NewHash: hash,
				OldTop:  prev.Top,
				NewTop:  top,
			})
		}
		m.Modules[mt.Name] = Entry{
			Name:   mt.Name,
			Hash:   hash,
			Digest: Digest(mt.Text),
			Top:    top,
		}
	}
	m.Version = FormatVersion
	sort.Slice(warnings, func(i, j int) bool { return warnings[i].Module < warnings[j].Module })
	return warnings
}

// Save writes the manifest as indented JSON.
func (m *Manifest) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("manifest dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Track loads the manifest at path, records out and saves it back.
func Track(path string, d *module.Design, out *codegen.Output) ([]Warning, error) {
	m, err := Load(path)
	if err != nil {
		return nil, err
	}
	warnings := m.Record(d, out)
	if err := m.Save(path); err != nil {
		return warnings, err
	}
	return warnings, nil
}
