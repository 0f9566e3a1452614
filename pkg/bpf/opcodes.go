package bpf

import "fmt"

// Opcode identifies a BPF instruction. The low three bits carry the
// instruction class; the remaining bits select the operation and
// source mode, following the Linux BPF encoding.
type Opcode byte

// Instruction classes (low three bits of the opcode).
const (
	ClassLd    byte = 0x00 // Load from immediate
	ClassLdx   byte = 0x01 // Load from register-relative memory
	ClassSt    byte = 0x02 // Store immediate to memory
	ClassStx   byte = 0x03 // Store register to memory
	ClassAlu   byte = 0x04 // 32-bit arithmetic
	ClassJmp   byte = 0x05 // Jumps, calls, exit
	ClassAlu64 byte = 0x07 // 64-bit arithmetic
)

const (
	// ========================================================================
	// 64-bit ALU (class 0x07)
	// ========================================================================

	OpAddImm Opcode = 0x07 // dst += imm
	OpAddReg Opcode = 0x0f // dst += src
	OpSubImm Opcode = 0x17 // dst -= imm
	OpSubReg Opcode = 0x1f // dst -= src
	OpMulImm Opcode = 0x27 // dst *= imm
	OpMulReg Opcode = 0x2f // dst *= src
	OpDivImm Opcode = 0x37 // dst /= imm (faults when imm is zero)
	OpDivReg Opcode = 0x3f // dst /= src (faults when src is zero)
	OpModImm Opcode = 0x97 // dst %= imm (faults when imm is zero)
	OpModReg Opcode = 0x9f // dst %= src (faults when src is zero)
	OpNegReg Opcode = 0x87 // dst = -dst
	OpMovImm Opcode = 0xb7 // dst = imm (sign-extended to 64 bits)
	OpMovReg Opcode = 0xbf // dst = src

	// ========================================================================
	// Memory (classes 0x01-0x03, 64-bit width)
	// ========================================================================

	OpLdxDW Opcode = 0x79 // dst = *(u64 *)(src + offset)
	OpStDW  Opcode = 0x7a // *(u64 *)(dst + offset) = imm
	OpStxDW Opcode = 0x7b // *(u64 *)(dst + offset) = src

	// ========================================================================
	// Jumps (class 0x05)
	// ========================================================================

	OpJa     Opcode = 0x05 // pc += offset
	OpJeqImm Opcode = 0x15 // if dst == imm: pc += offset
	OpJeqReg Opcode = 0x1d // if dst == src: pc += offset
	OpJgtImm Opcode = 0x25 // if dst > imm: pc += offset (unsigned)
	OpJgtReg Opcode = 0x2d // if dst > src: pc += offset (unsigned)
	OpJgeImm Opcode = 0x35 // if dst >= imm: pc += offset (unsigned)
	OpJgeReg Opcode = 0x3d // if dst >= src: pc += offset (unsigned)
	OpJltImm Opcode = 0xa5 // if dst < imm: pc += offset (unsigned)
	OpJltReg Opcode = 0xad // if dst < src: pc += offset (unsigned)
	OpJleImm Opcode = 0xb5 // if dst <= imm: pc += offset (unsigned)
	OpJleReg Opcode = 0xbd // if dst <= src: pc += offset (unsigned)
	OpJneImm Opcode = 0x55 // if dst != imm: pc += offset
	OpJneReg Opcode = 0x5d // if dst != src: pc += offset
	OpCall   Opcode = 0x85 // call syscall identified by imm
	OpExit   Opcode = 0x95 // halt, exit code in r0
)

// Operand modes describe which instruction fields participate in an
// operation. Used by the disassembler and the program validator.
type OperandMode int

const (
	ModeNone     OperandMode = iota // exit
	ModeDstImm                      // ALU with immediate
	ModeDstSrc                      // ALU register-to-register
	ModeDstOnly                     // neg
	ModeLoad                        // dst = mem[src+offset]
	ModeStoreImm                    // mem[dst+offset] = imm
	ModeStoreReg                    // mem[dst+offset] = src
	ModeJump                        // unconditional, offset only
	ModeJumpImm                     // conditional against immediate
	ModeJumpReg                     // conditional against register
	ModeCall                        // imm is a syscall id
)

// OpcodeInfo provides metadata about each opcode for disassembly and
// validation.
type OpcodeInfo struct {
	Name  string      // Assembler mnemonic
	Class byte        // Instruction class bits
	Mode  OperandMode // Which fields the instruction uses
}

var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpAddImm: {"add64", ClassAlu64, ModeDstImm},
	OpAddReg: {"add64", ClassAlu64, ModeDstSrc},
	OpSubImm: {"sub64", ClassAlu64, ModeDstImm},
	OpSubReg: {"sub64", ClassAlu64, ModeDstSrc},
	OpMulImm: {"mul64", ClassAlu64, ModeDstImm},
	OpMulReg: {"mul64", ClassAlu64, ModeDstSrc},
	OpDivImm: {"div64", ClassAlu64, ModeDstImm},
	OpDivReg: {"div64", ClassAlu64, ModeDstSrc},
	OpModImm: {"mod64", ClassAlu64, ModeDstImm},
	OpModReg: {"mod64", ClassAlu64, ModeDstSrc},
	OpNegReg: {"neg64", ClassAlu64, ModeDstOnly},
	OpMovImm: {"mov64", ClassAlu64, ModeDstImm},
	OpMovReg: {"mov64", ClassAlu64, ModeDstSrc},

	OpLdxDW: {"ldxdw", ClassLdx, ModeLoad},
	OpStDW:  {"stdw", ClassSt, ModeStoreImm},
	OpStxDW: {"stxdw", ClassStx, ModeStoreReg},

	OpJa:     {"ja", ClassJmp, ModeJump},
	OpJeqImm: {"jeq", ClassJmp, ModeJumpImm},
	OpJeqReg: {"jeq", ClassJmp, ModeJumpReg},
	OpJgtImm: {"jgt", ClassJmp, ModeJumpImm},
	OpJgtReg: {"jgt", ClassJmp, ModeJumpReg},
	OpJgeImm: {"jge", ClassJmp, ModeJumpImm},
	OpJgeReg: {"jge", ClassJmp, ModeJumpReg},
	OpJltImm: {"jlt", ClassJmp, ModeJumpImm},
	OpJltReg: {"jlt", ClassJmp, ModeJumpReg},
	OpJleImm: {"jle", ClassJmp, ModeJumpImm},
	OpJleReg: {"jle", ClassJmp, ModeJumpReg},
	OpJneImm: {"jne", ClassJmp, ModeJumpImm},
	OpJneReg: {"jne", ClassJmp, ModeJumpReg},
	OpCall:   {"call", ClassJmp, ModeCall},
	OpExit:   {"exit", ClassJmp, ModeNone},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with an UNKNOWN name if the opcode is not
// recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02x)", byte(op))}
}

// String returns the assembler mnemonic for an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// Class returns the instruction class bits (low three bits).
func (op Opcode) Class() byte {
	return byte(op) & 0x07
}

// Valid reports whether the opcode is part of the supported set.
func (op Opcode) Valid() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// IsJump reports whether the opcode transfers control via the offset
// field. Call and exit are class-JMP but do not use the offset.
func (op Opcode) IsJump() bool {
	switch GetOpcodeInfo(op).Mode {
	case ModeJump, ModeJumpImm, ModeJumpReg:
		return true
	}
	return false
}

// AllOpcodes returns a slice of all defined opcodes.
// Useful for testing that all opcodes have metadata.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}
