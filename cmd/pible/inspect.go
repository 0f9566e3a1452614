package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/pible-lang/pible/pkg/bpf"
	"github.com/pible-lang/pible/pkg/bundle"
)

// handleDisasmCommand prints a listing for a .bpf image or a source
// file.
func handleDisasmCommand(args []string) {
	fs := flag.NewFlagSet("disasm", flag.ExitOnError)
	fs.Parse(args)

	path := fs.Arg(0)
	if path == "" {
		fatalf("disasm: no program given")
	}

	program, err := loadProgram(path)
	if err != nil {
		fatalf("%v", err)
	}
	fmt.Print(bpf.Disassemble(program))
}

// handleInfoCommand summarizes a build bundle.
func handleInfoCommand(args []string) {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	showDisasm := fs.Bool("disasm", false, "Include the bytecode listing")
	fs.Parse(args)

	path := fs.Arg(0)
	if path == "" {
		fatalf("info: no bundle given")
	}

	b, err := bundle.ReadFile(path)
	if err != nil {
		fatalf("%v", err)
	}

	fmt.Printf("Name:        %s\n", b.Name)
	fmt.Printf("Build:       %s\n", b.ID)
	fmt.Printf("Target:      %s\n", b.Target)
	fmt.Printf("Source hash: %s\n", b.SourceHash)
	fmt.Printf("Created:     %s\n", time.Unix(b.CreatedAt, 0).UTC().Format(time.RFC3339))
	fmt.Printf("Program:     %d bytes (%d instructions)\n", len(b.Program), len(b.Program)/bpf.InstructionSize)
	if b.IDL != nil {
		fmt.Printf("IDL:         %d bytes\n", len(b.IDL))
	}

	if *showDisasm {
		program, err := bpf.DecodeProgram(b.Program)
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Println()
		fmt.Print(bpf.Disassemble(program))
	}
}
