package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pible-lang/pible/compiler"
	"github.com/pible-lang/pible/manifest"
	"github.com/pible-lang/pible/pkg/bpf"
	"github.com/pible-lang/pible/pkg/bundle"
	"github.com/pible-lang/pible/pkg/idl"
)

// handleBuildCommand processes the `pible build` subcommand.
// Usage:
//
//	pible build prog.hc                       # prog.bpf in the output dir
//	pible build prog.hc --target solana-bpf --emit-idl --bundle
func handleBuildCommand(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	targetName := fs.String("target", "", "Bytecode target: linux-bpf, solana-bpf, or bpf-vm")
	emitIDL := fs.Bool("emit-idl", false, "Also write an IDL JSON document")
	makeBundle := fs.Bool("bundle", false, "Also write a CBOR build bundle")
	outputDir := fs.String("output-dir", "", "Directory for build outputs")
	name := fs.String("name", "", "Program name (defaults to the source file name)")
	fs.Parse(args)

	// Manifest supplies defaults; flags win.
	m, err := manifest.FindAndLoad(".")
	if err != nil {
		fatalf("loading manifest: %v", err)
	}

	srcPath := fs.Arg(0)
	if srcPath == "" && m != nil {
		srcPath = m.EntryPath()
	}
	if srcPath == "" {
		fatalf("build: no source file given and no entry in %s", manifest.FileName)
	}

	if *targetName == "" {
		*targetName = "linux-bpf"
		if m != nil {
			*targetName = m.Build.Target
		}
	}
	target, err := compiler.ParseTarget(*targetName)
	if err != nil {
		fatalf("%v", err)
	}

	if *outputDir == "" {
		*outputDir = "."
		if m != nil {
			*outputDir = m.OutputDirPath()
		}
	}
	if m != nil && m.Build.EmitIDL {
		*emitIDL = true
	}

	progName := *name
	if progName == "" {
		progName = programName(srcPath, m)
	}

	source, err := os.ReadFile(srcPath)
	if err != nil {
		fatalf("reading source: %v", err)
	}
	artifact, err := compiler.Compile(string(source), target)
	if err != nil {
		fatalf("%v", err)
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fatalf("creating output dir: %v", err)
	}

	bpfPath := filepath.Join(*outputDir, progName+bpf.ProgramExt)
	if err := bpf.WriteProgramFile(bpfPath, artifact.Program); err != nil {
		fatalf("%v", err)
	}
	fmt.Printf("Wrote %s (%d instructions, target %s)\n", bpfPath, len(artifact.Program), target)

	var idlJSON []byte
	if *emitIDL {
		doc := idl.New(progName, artifact.Entrypoints)
		idlPath := filepath.Join(*outputDir, progName+".json")
		if err := doc.WriteFile(idlPath); err != nil {
			fatalf("%v", err)
		}
		idlJSON, _ = doc.JSON()
		fmt.Printf("Wrote %s (%d entrypoints)\n", idlPath, len(artifact.Entrypoints))
	}

	if *makeBundle {
		b := bundle.New(progName, target.String(), source, bpf.EncodeProgram(artifact.Program), idlJSON)
		bundlePath := filepath.Join(*outputDir, progName+bundle.Ext)
		if err := bundle.WriteFile(bundlePath, b); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("Wrote %s (build %s)\n", bundlePath, b.ID)
	}
}

// programName derives the output name from the manifest project name
// or the source file base name.
func programName(srcPath string, m *manifest.Manifest) string {
	if m != nil && m.Project.Name != "" {
		return m.Project.Name
	}
	base := filepath.Base(srcPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
