// Package bpf defines the instruction set, wire format, and virtual
// machine for pible's BPF-style bytecode target.
//
// The bytecode format is designed for:
//   - Fixed-width representation (exactly 8 bytes per instruction)
//   - Fast decoding (no headers, no variable-length operands)
//   - Easy serialization (a program is the plain concatenation of its
//     instructions, written to .bpf files)
//
// # Instruction Encoding
//
// Each instruction packs five fields, following the Linux BPF layout:
//
//	byte 0    opcode
//	byte 1    dst register (low nibble) | src register (high nibble)
//	bytes 2-3 signed 16-bit offset, little-endian
//	bytes 4-7 signed 32-bit immediate, little-endian
//
// Opcode values are real Linux BPF opcode bytes, so common external
// tooling recognizes the output. Jumps are relative to the
// instruction after the jump: a taken branch sets pc to
// pc + offset + 1.
//
// # Execution Model
//
// The VM executes one program with eleven 64-bit registers. r0 is
// the accumulator and carries the exit code; r10 is the frame
// pointer, seeded to the top of a fixed 512-byte stack that grows
// downward. A separate demand-grown heap lives in its own virtual
// address range; any memory access not fully contained in one region
// faults.
//
// Every retired instruction consumes one compute unit. When the
// configured budget (200,000 units by default) is exhausted the run
// aborts with a BudgetExceededError, which is distinct from a Fault
// so callers can tell a broken program from an over-budget one.
//
// # Syscalls
//
// Call instructions dispatch through a table keyed by the immediate
// field. Arguments travel in r1-r5 and the result lands in r0. The
// built-in table reserves ids 1-20 and covers logging, sha256,
// tracing, and return-data transfer; hosts can register more
// handlers with RegisterSyscall.
package bpf
