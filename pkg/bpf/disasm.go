package bpf

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of the program, one
// instruction per line, with resolved jump targets and syscall names.
func Disassemble(program []Instruction) string {
	var sb strings.Builder
	for pc, ins := range program {
		sb.WriteString(DisassembleInstruction(pc, ins))
		sb.WriteString("\n")
	}
	return sb.String()
}

// DisassembleInstruction renders one instruction with its index and
// raw encoding.
func DisassembleInstruction(pc int, ins Instruction) string {
	enc := ins.Encode()
	text := ins.String()
	switch GetOpcodeInfo(ins.Opcode).Mode {
	case ModeJump, ModeJumpImm, ModeJumpReg:
		text = fmt.Sprintf("%s (-> %04d)", text, pc+int(ins.Offset)+1)
	case ModeCall:
		text = fmt.Sprintf("%s ; %s", text, SyscallName(ins.Imm))
	}
	return fmt.Sprintf("%04d  %02x%02x %02x%02x %02x%02x%02x%02x  %s",
		pc, enc[0], enc[1], enc[2], enc[3], enc[4], enc[5], enc[6], enc[7], text)
}

// DisassembleToLines returns the disassembly as a slice of lines.
func DisassembleToLines(program []Instruction) []string {
	lines := make([]string, len(program))
	for pc, ins := range program {
		lines[pc] = DisassembleInstruction(pc, ins)
	}
	return lines
}
