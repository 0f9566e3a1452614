package compiler

import (
	"testing"

	"github.com/nalgeon/be"
	"github.com/pible-lang/pible/pkg/bpf"
)

func validBody() []bpf.Instruction {
	return []bpf.Instruction{
		bpf.NewInstruction(bpf.OpMovImm, 0, 0, 0, 0),
		bpf.NewInstruction(bpf.OpExit, 0, 0, 0, 0),
	}
}

func TestValidateSolanaProgramOK(t *testing.T) {
	be.Err(t, ValidateSolanaProgram(validBody()), nil)
}

func TestValidateSolanaProgramEmpty(t *testing.T) {
	be.Err(t, ValidateSolanaProgram(nil))
}

func TestValidateSolanaProgramMissingExit(t *testing.T) {
	program := []bpf.Instruction{
		bpf.NewInstruction(bpf.OpMovImm, 0, 0, 0, 0),
	}
	be.Err(t, ValidateSolanaProgram(program))
}

func TestValidateSolanaProgramBadRegister(t *testing.T) {
	program := []bpf.Instruction{
		bpf.NewInstruction(bpf.OpMovImm, 12, 0, 0, 0),
		bpf.NewInstruction(bpf.OpExit, 0, 0, 0, 0),
	}
	be.Err(t, ValidateSolanaProgram(program))
}

func TestValidateSolanaProgramBadOpcode(t *testing.T) {
	program := []bpf.Instruction{
		bpf.NewInstruction(bpf.Opcode(0xfe), 0, 0, 0, 0),
		bpf.NewInstruction(bpf.OpExit, 0, 0, 0, 0),
	}
	be.Err(t, ValidateSolanaProgram(program))
}

func TestValidateSolanaProgramJumpTargets(t *testing.T) {
	// Forward jump to the exit is fine.
	ok := []bpf.Instruction{
		bpf.NewInstruction(bpf.OpJa, 0, 0, 1, 0),
		bpf.NewInstruction(bpf.OpMovImm, 0, 0, 0, 1),
		bpf.NewInstruction(bpf.OpExit, 0, 0, 0, 0),
	}
	be.Err(t, ValidateSolanaProgram(ok), nil)

	// Jump past the end is rejected.
	bad := []bpf.Instruction{
		bpf.NewInstruction(bpf.OpJa, 0, 0, 5, 0),
		bpf.NewInstruction(bpf.OpExit, 0, 0, 0, 0),
	}
	be.Err(t, ValidateSolanaProgram(bad))

	// Backward jump before the start is rejected.
	bad2 := []bpf.Instruction{
		bpf.NewInstruction(bpf.OpJa, 0, 0, -5, 0),
		bpf.NewInstruction(bpf.OpExit, 0, 0, 0, 0),
	}
	be.Err(t, ValidateSolanaProgram(bad2))
}

func TestValidateSolanaProgramTooLong(t *testing.T) {
	program := make([]bpf.Instruction, MaxSolanaInstructions+1)
	for i := range program {
		program[i] = bpf.NewInstruction(bpf.OpMovImm, 0, 0, 0, 0)
	}
	program[len(program)-1] = bpf.NewInstruction(bpf.OpExit, 0, 0, 0, 0)
	be.Err(t, ValidateSolanaProgram(program))
}

func TestWrapSolanaEntrypoint(t *testing.T) {
	wrapped := WrapSolanaEntrypoint(validBody())

	// Three prologue instructions, the body, then the r0=0 epilogue.
	be.Equal(t, len(wrapped), 3+2+2)
	be.Equal(t, wrapped[0].Src, uint8(2))
	be.Equal(t, wrapped[1].Src, uint8(3))
	be.Equal(t, wrapped[2].Imm, int32(bpf.StackSize))
	be.Equal(t, wrapped[len(wrapped)-1].Opcode, bpf.OpExit)
	be.Err(t, ValidateSolanaProgram(wrapped), nil)
}
