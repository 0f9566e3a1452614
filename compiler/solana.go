package compiler

import (
	"fmt"

	"github.com/pible-lang/pible/pkg/bpf"
)

// ---------------------------------------------------------------------------
// Solana target: entrypoint scaffolding and deploy-time validation
// ---------------------------------------------------------------------------

// MaxSolanaInstructions is the instruction count ceiling the loader
// accepts for one program.
const MaxSolanaInstructions = 16384

// solanaEntrypointPrologue emits the standard entrypoint frame for an
// on-chain program: the runtime hands the accounts slice pointer in
// r2 and the instruction data pointer in r3; they are pinned in r6
// and r7 before the body runs.
func solanaEntrypointPrologue() []bpf.Instruction {
	return []bpf.Instruction{
		bpf.NewInstruction(bpf.OpLdxDW, 6, 2, 0, 0),
		bpf.NewInstruction(bpf.OpLdxDW, 7, 3, 0, 0),
		bpf.NewInstruction(bpf.OpMovImm, 10, 0, 0, bpf.StackSize),
	}
}

// WrapSolanaEntrypoint prefixes a compiled body with the entrypoint
// prologue and guarantees a clean r0=0 exit path at the end.
func WrapSolanaEntrypoint(body []bpf.Instruction) []bpf.Instruction {
	out := solanaEntrypointPrologue()
	out = append(out, body...)
	out = append(out,
		bpf.NewInstruction(bpf.OpMovImm, bpf.R0, 0, 0, 0),
		bpf.NewInstruction(bpf.OpExit, 0, 0, 0, 0),
	)
	return out
}

// ValidateSolanaProgram applies the loader's static checks: the
// program must be non-empty, fit the instruction ceiling, end with
// exit, use only known opcodes and registers r0-r10, and keep every
// jump target inside the program.
func ValidateSolanaProgram(program []bpf.Instruction) error {
	if len(program) == 0 {
		return fmt.Errorf("solana: empty program")
	}
	if len(program) > MaxSolanaInstructions {
		return fmt.Errorf("solana: program has %d instructions, limit is %d", len(program), MaxSolanaInstructions)
	}
	if program[len(program)-1].Opcode != bpf.OpExit {
		return fmt.Errorf("solana: program must end with exit, ends with %s", program[len(program)-1].Opcode)
	}

	for pc, ins := range program {
		if !ins.Opcode.Valid() {
			return fmt.Errorf("solana: invalid opcode 0x%02x at %d", byte(ins.Opcode), pc)
		}
		if ins.Dst >= bpf.NumRegisters {
			return fmt.Errorf("solana: invalid dst register r%d at %d", ins.Dst, pc)
		}
		if ins.Src >= bpf.NumRegisters {
			return fmt.Errorf("solana: invalid src register r%d at %d", ins.Src, pc)
		}
		if ins.Opcode.IsJump() {
			target := pc + int(ins.Offset) + 1
			if target < 0 || target >= len(program) {
				return fmt.Errorf("solana: jump at %d targets %d, outside the program", pc, target)
			}
		}
	}
	return nil
}
