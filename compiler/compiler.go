package compiler

import (
	"fmt"
	"os"

	"github.com/pible-lang/pible/pkg/bpf"
)

// ---------------------------------------------------------------------------
// Compilation pipeline: source -> tokens -> tree -> instructions
// ---------------------------------------------------------------------------

// Target selects the bytecode flavor the pipeline produces.
type Target int

const (
	// TargetLinuxBPF emits the body as-is for the Linux-style loader.
	TargetLinuxBPF Target = iota
	// TargetSolanaBPF wraps the body in the on-chain entrypoint frame
	// and applies the loader's static checks.
	TargetSolanaBPF
	// TargetVM emits for the built-in interpreter.
	TargetVM
)

var targetNames = map[Target]string{
	TargetLinuxBPF:  "linux-bpf",
	TargetSolanaBPF: "solana-bpf",
	TargetVM:        "bpf-vm",
}

func (t Target) String() string {
	if name, ok := targetNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Target(%d)", int(t))
}

// ParseTarget resolves a CLI target name.
func ParseTarget(name string) (Target, error) {
	for t, n := range targetNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown target %q (want linux-bpf, solana-bpf, or bpf-vm)", name)
}

// Artifact is the output of one compilation.
type Artifact struct {
	Program     []bpf.Instruction
	Functions   []string // declared functions, in source order
	Entrypoints []string // exported subset
	Tree        *Tree
}

// Compile runs the full pipeline over source text.
func Compile(source string, target Target) (*Artifact, error) {
	tree, err := Parse(source)
	if err != nil {
		return nil, err
	}

	gen := NewGenerator(tree)
	program, err := gen.Generate()
	if err != nil {
		return nil, err
	}

	if target == TargetSolanaBPF {
		program = WrapSolanaEntrypoint(program)
		if err := ValidateSolanaProgram(program); err != nil {
			return nil, err
		}
	}

	return &Artifact{
		Program:     program,
		Functions:   gen.Functions(),
		Entrypoints: gen.Entrypoints(),
		Tree:        tree,
	}, nil
}

// CompileFile compiles the source file at path.
func CompileFile(path string, target Target) (*Artifact, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading source: %w", err)
	}
	artifact, err := Compile(string(source), target)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return artifact, nil
}
