package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/pible-lang/pible/compiler"
	"github.com/pible-lang/pible/manifest"
	"github.com/pible-lang/pible/pkg/bpf"
)

// handleRunCommand processes the `pible run` subcommand. It accepts
// either a source file (compiled for the VM target) or a prebuilt
// .bpf image.
func handleRunCommand(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	budget := fs.Uint64("budget", 0, "Compute budget in instructions (0 = default)")
	trace := fs.Bool("trace", false, "Print each instruction as it executes")
	fs.Parse(args)

	path := fs.Arg(0)
	if path == "" {
		fatalf("run: no program given")
	}

	program, err := loadProgram(path)
	if err != nil {
		fatalf("%v", err)
	}

	m, err := manifest.FindAndLoad(".")
	if err != nil {
		fatalf("loading manifest: %v", err)
	}

	vm := bpf.NewVM(program)
	if m != nil {
		vm.SetComputeBudget(m.VM.ComputeBudget)
		vm.Trace = m.VM.Trace
	}
	if *budget != 0 {
		vm.SetComputeBudget(*budget)
	}
	if *trace {
		vm.Trace = true
	}

	result, err := vm.Execute()
	if err != nil {
		for _, line := range vm.Logs() {
			fmt.Println(line)
		}
		var budgetErr *bpf.BudgetExceededError
		if errors.As(err, &budgetErr) {
			fatalf("out of compute: %v", err)
		}
		fatalf("%v", err)
	}

	for _, line := range result.Logs {
		fmt.Println(line)
	}
	fmt.Printf("Exit code: %d\n", result.ExitCode)
	fmt.Printf("Compute units: %d\n", result.ComputeUnits)
	if result.ReturnData != nil {
		fmt.Printf("Return data: %s\n", hex.EncodeToString(result.ReturnData))
	}
}

// loadProgram reads a .bpf image directly, anything else compiles as
// source.
func loadProgram(path string) ([]bpf.Instruction, error) {
	if strings.HasSuffix(path, bpf.ProgramExt) {
		return bpf.ReadProgramFile(path)
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading source: %w", err)
	}
	artifact, err := compiler.Compile(string(source), compiler.TargetVM)
	if err != nil {
		return nil, err
	}
	return artifact.Program, nil
}
