package bpf

import (
	"fmt"
	"os"
)

// ProgramExt is the conventional file extension for flat bytecode
// images.
const ProgramExt = ".bpf"

// EncodeProgram serializes instructions into the flat wire form:
// eight bytes per instruction, no header, no padding. An empty
// program encodes to an empty byte slice.
func EncodeProgram(program []Instruction) []byte {
	out := make([]byte, 0, len(program)*InstructionSize)
	for _, ins := range program {
		b := ins.Encode()
		out = append(out, b[:]...)
	}
	return out
}

// DecodeProgram parses a flat bytecode image. The image length must
// be a multiple of the instruction size.
func DecodeProgram(data []byte) ([]Instruction, error) {
	if len(data)%InstructionSize != 0 {
		return nil, fmt.Errorf("bpf: program image is %d bytes, not a multiple of %d", len(data), InstructionSize)
	}
	program := make([]Instruction, 0, len(data)/InstructionSize)
	for off := 0; off < len(data); off += InstructionSize {
		ins, err := DecodeInstruction(data[off : off+InstructionSize])
		if err != nil {
			return nil, err
		}
		program = append(program, ins)
	}
	return program, nil
}

// WriteProgramFile serializes instructions and writes them to path.
func WriteProgramFile(path string, program []Instruction) error {
	if err := os.WriteFile(path, EncodeProgram(program), 0o644); err != nil {
		return fmt.Errorf("bpf: writing program: %w", err)
	}
	return nil
}

// ReadProgramFile loads and decodes a flat bytecode image from path.
func ReadProgramFile(path string) ([]Instruction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bpf: reading program: %w", err)
	}
	return DecodeProgram(data)
}
