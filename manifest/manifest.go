// Package manifest handles pible.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/pible-lang/pible/pkg/bpf"
)

// FileName is the manifest file the CLI looks for.
const FileName = "pible.toml"

// Manifest represents a pible.toml project configuration.
type Manifest struct {
	Project Project `toml:"project"`
	Build   Build   `toml:"build"`
	VM      VM      `toml:"vm"`

	// Dir is the directory containing the pible.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Build configures compilation defaults that CLI flags can override.
type Build struct {
	Target    string `toml:"target"`     // linux-bpf, solana-bpf, or bpf-vm
	Entry     string `toml:"entry"`      // default source file
	OutputDir string `toml:"output-dir"` // where .bpf and IDL files land
	EmitIDL   bool   `toml:"emit-idl"`
}

// VM configures local execution.
type VM struct {
	ComputeBudget uint64 `toml:"compute-budget"`
	Trace         bool   `toml:"trace"`
}

// Load parses a pible.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if m.Build.Target == "" {
		m.Build.Target = "linux-bpf"
	}
	if m.Build.OutputDir == "" {
		m.Build.OutputDir = "."
	}
	if m.VM.ComputeBudget == 0 {
		m.VM.ComputeBudget = bpf.DefaultComputeBudget
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a pible.toml file, then
// loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// OutputDirPath returns the absolute path of the configured output
// directory.
func (m *Manifest) OutputDirPath() string {
	if filepath.IsAbs(m.Build.OutputDir) {
		return m.Build.OutputDir
	}
	return filepath.Join(m.Dir, m.Build.OutputDir)
}

// EntryPath returns the absolute path of the default source file, or
// empty when none is configured.
func (m *Manifest) EntryPath() string {
	if m.Build.Entry == "" {
		return ""
	}
	if filepath.IsAbs(m.Build.Entry) {
		return m.Build.Entry
	}
	return filepath.Join(m.Dir, m.Build.Entry)
}
