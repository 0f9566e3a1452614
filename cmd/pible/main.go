// Pible CLI - compile and run HolyC-style programs on the BPF toolchain
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "build":
		handleBuildCommand(args)
	case "run":
		handleRunCommand(args)
	case "disasm":
		handleDisasmCommand(args)
	case "info":
		handleInfoCommand(args)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "pible: unknown command %q\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: pible <command> [options] [file]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  build    Compile a source file to a .bpf image\n")
	fmt.Fprintf(os.Stderr, "  run      Compile (or load) a program and execute it\n")
	fmt.Fprintf(os.Stderr, "  disasm   Print a human-readable bytecode listing\n")
	fmt.Fprintf(os.Stderr, "  info     Inspect a build bundle\n\n")
	fmt.Fprintf(os.Stderr, "Examples:\n")
	fmt.Fprintf(os.Stderr, "  pible build escrow.hc --target solana-bpf --emit-idl\n")
	fmt.Fprintf(os.Stderr, "  pible run escrow.hc --budget 100000\n")
	fmt.Fprintf(os.Stderr, "  pible run escrow.bpf --trace\n")
	fmt.Fprintf(os.Stderr, "  pible disasm escrow.bpf\n")
	fmt.Fprintf(os.Stderr, "  pible info escrow.bundle\n")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
