package bpf

import (
	"encoding/binary"
	"fmt"
)

// InstructionSize is the encoded size of one instruction in bytes.
const InstructionSize = 8

// NumRegisters is the number of general-purpose registers (r0-r10).
const NumRegisters = 11

// Register aliases. r0 doubles as the accumulator and exit code, r10
// is the read-mostly frame pointer.
const (
	R0  = 0
	R1  = 1
	R2  = 2
	R10 = 10
)

// Instruction is one decoded BPF instruction. The wire form is eight
// bytes: opcode, packed register pair, little-endian signed 16-bit
// offset, little-endian signed 32-bit immediate.
type Instruction struct {
	Opcode Opcode
	Dst    uint8
	Src    uint8
	Offset int16
	Imm    int32
}

// NewInstruction builds an instruction from its fields.
func NewInstruction(op Opcode, dst, src uint8, offset int16, imm int32) Instruction {
	return Instruction{Opcode: op, Dst: dst, Src: src, Offset: offset, Imm: imm}
}

// Encode writes the instruction into an 8-byte wire representation.
// Register numbers are truncated to their 4-bit fields.
func (ins Instruction) Encode() [InstructionSize]byte {
	var b [InstructionSize]byte
	b[0] = byte(ins.Opcode)
	b[1] = (ins.Dst & 0x0f) | (ins.Src&0x0f)<<4
	binary.LittleEndian.PutUint16(b[2:4], uint16(ins.Offset))
	binary.LittleEndian.PutUint32(b[4:8], uint32(ins.Imm))
	return b
}

// DecodeInstruction parses one instruction from an 8-byte slice.
func DecodeInstruction(b []byte) (Instruction, error) {
	if len(b) < InstructionSize {
		return Instruction{}, fmt.Errorf("bpf: instruction truncated: got %d bytes, want %d", len(b), InstructionSize)
	}
	return Instruction{
		Opcode: Opcode(b[0]),
		Dst:    b[1] & 0x0f,
		Src:    b[1] >> 4,
		Offset: int16(binary.LittleEndian.Uint16(b[2:4])),
		Imm:    int32(binary.LittleEndian.Uint32(b[4:8])),
	}, nil
}

// String renders the instruction in assembler-like form.
func (ins Instruction) String() string {
	info := GetOpcodeInfo(ins.Opcode)
	switch info.Mode {
	case ModeDstImm:
		return fmt.Sprintf("%s r%d, %d", info.Name, ins.Dst, ins.Imm)
	case ModeDstSrc:
		return fmt.Sprintf("%s r%d, r%d", info.Name, ins.Dst, ins.Src)
	case ModeDstOnly:
		return fmt.Sprintf("%s r%d", info.Name, ins.Dst)
	case ModeLoad:
		return fmt.Sprintf("%s r%d, [r%d%+d]", info.Name, ins.Dst, ins.Src, ins.Offset)
	case ModeStoreImm:
		return fmt.Sprintf("%s [r%d%+d], %d", info.Name, ins.Dst, ins.Offset, ins.Imm)
	case ModeStoreReg:
		return fmt.Sprintf("%s [r%d%+d], r%d", info.Name, ins.Dst, ins.Offset, ins.Src)
	case ModeJump:
		return fmt.Sprintf("%s %+d", info.Name, ins.Offset)
	case ModeJumpImm:
		return fmt.Sprintf("%s r%d, %d, %+d", info.Name, ins.Dst, ins.Imm, ins.Offset)
	case ModeJumpReg:
		return fmt.Sprintf("%s r%d, r%d, %+d", info.Name, ins.Dst, ins.Src, ins.Offset)
	case ModeCall:
		return fmt.Sprintf("%s %d", info.Name, ins.Imm)
	default:
		return info.Name
	}
}
