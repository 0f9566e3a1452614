package bpf

import (
	"encoding/binary"
	"fmt"
)

// Memory layout constants. The stack and heap live in disjoint
// virtual address ranges; a pointer is only meaningful inside one of
// them and every access must be fully contained in a single region.
const (
	StackSize = 512         // Fixed stack size in bytes
	StackBase = 0x200000000 // Virtual address of the first stack byte
	HeapBase  = 0x300000000 // Virtual address of the first heap byte
	HeapMax   = 64 * 1024   // Ceiling on demand-grown heap

	// DefaultComputeBudget is the number of instructions a program may
	// retire before execution is aborted.
	DefaultComputeBudget = 200_000

	// MaxReturnData bounds the buffer set via the return-data syscall.
	MaxReturnData = 1024
)

// FaultKind classifies a runtime fault.
type FaultKind int

const (
	FaultDivideByZero FaultKind = iota
	FaultOutOfBounds
	FaultBadRegister
	FaultBadOpcode
	FaultBadSyscall
)

var faultKindNames = map[FaultKind]string{
	FaultDivideByZero: "divide by zero",
	FaultOutOfBounds:  "out-of-bounds access",
	FaultBadRegister:  "invalid register",
	FaultBadOpcode:    "unknown opcode",
	FaultBadSyscall:   "unknown syscall",
}

// String returns the human-readable fault class name.
func (k FaultKind) String() string {
	if name, ok := faultKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("fault(%d)", int(k))
}

// Fault is a runtime error that aborted execution. It records where
// execution stopped and, for memory faults, the offending address.
type Fault struct {
	Kind FaultKind
	PC   int    // Instruction index at the time of the fault
	Addr uint64 // Faulting address, zero unless Kind is FaultOutOfBounds
	Msg  string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("vm fault at pc=%d: %s: %s", f.PC, f.Kind, f.Msg)
}

// BudgetExceededError reports that the program retired its full
// compute allowance without halting. It is distinct from Fault so
// callers can tell a broken program from an over-budget one.
type BudgetExceededError struct {
	Limit uint64
	PC    int
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("compute budget exceeded: %d units consumed, halted at pc=%d", e.Limit, e.PC)
}

// Result describes a normally-halted execution.
type Result struct {
	ExitCode     uint64   // Value of r0 at halt
	ComputeUnits uint64   // Instructions retired
	Logs         []string // Messages emitted by log syscalls
	ReturnData   []byte   // Buffer set by the return-data syscall, nil if unset
}

// VM executes flat BPF programs against a fixed-size stack and a
// demand-grown heap. A VM is single-threaded and reusable: Reset
// restores it to its pristine state without reloading the program.
type VM struct {
	program []Instruction

	regs  [NumRegisters]uint64
	pc    int
	stack [StackSize]byte
	heap  []byte

	used   uint64 // Compute units consumed so far
	budget uint64

	logs       []string
	returnData []byte

	syscalls map[int32]SyscallEntry

	// Trace prints each instruction before it executes.
	Trace bool
}

// NewVM creates a VM for the given program with the default compute
// budget and the built-in syscall table.
func NewVM(program []Instruction) *VM {
	vm := &VM{
		program:  program,
		budget:   DefaultComputeBudget,
		syscalls: defaultSyscalls(),
	}
	vm.Reset()
	return vm
}

// SetComputeBudget replaces the instruction allowance for subsequent
// executions.
func (vm *VM) SetComputeBudget(units uint64) {
	vm.budget = units
}

// RegisterSyscall installs a handler under the given id, replacing
// any existing entry. Ids 1 through 20 are reserved for the built-in
// table.
func (vm *VM) RegisterSyscall(id int32, name string, fn SyscallFunc) {
	vm.syscalls[id] = SyscallEntry{Name: name, Fn: fn}
}

// Reset returns the VM to its launch state: registers and stack
// zeroed, heap released, logs and return data cleared, compute meter
// rewound. The frame pointer r10 is re-seeded to the top of the
// stack. The loaded program and any registered syscalls are kept.
func (vm *VM) Reset() {
	vm.regs = [NumRegisters]uint64{}
	vm.regs[R10] = StackBase + StackSize
	vm.pc = 0
	vm.stack = [StackSize]byte{}
	vm.heap = nil
	vm.used = 0
	vm.logs = nil
	vm.returnData = nil
}

// Logs returns the messages emitted so far, including those from a
// faulted run.
func (vm *VM) Logs() []string {
	return vm.logs
}

// ComputeUnits returns the instructions retired so far.
func (vm *VM) ComputeUnits() uint64 {
	return vm.used
}

// ReturnData returns the buffer set by the return-data syscall, nil
// if unset.
func (vm *VM) ReturnData() []byte {
	return vm.returnData
}

// Execute runs the loaded program to completion. It returns a Result
// when the program halts via exit or runs off the end of the
// instruction stream, a *Fault for runtime errors, and a
// *BudgetExceededError when the compute allowance runs out. The VM
// state (logs, compute meter) is preserved after an error so callers
// can inspect the partial run.
func (vm *VM) Execute() (*Result, error) {
	for vm.pc >= 0 && vm.pc < len(vm.program) {
		if vm.used >= vm.budget {
			return nil, &BudgetExceededError{Limit: vm.budget, PC: vm.pc}
		}
		vm.used++

		ins := vm.program[vm.pc]
		if vm.Trace {
			fmt.Printf("[vm] %04d: %-28s r0=%d r1=%d r2=%d\n", vm.pc, ins, vm.regs[0], vm.regs[1], vm.regs[2])
		}
		if err := vm.checkRegisters(ins); err != nil {
			return nil, err
		}

		next := vm.pc + 1

		switch ins.Opcode {
		case OpMovImm:
			vm.regs[ins.Dst] = uint64(int64(ins.Imm))
		case OpMovReg:
			vm.regs[ins.Dst] = vm.regs[ins.Src]
		case OpAddImm:
			vm.regs[ins.Dst] += uint64(int64(ins.Imm))
		case OpAddReg:
			vm.regs[ins.Dst] += vm.regs[ins.Src]
		case OpSubImm:
			vm.regs[ins.Dst] -= uint64(int64(ins.Imm))
		case OpSubReg:
			vm.regs[ins.Dst] -= vm.regs[ins.Src]
		case OpMulImm:
			vm.regs[ins.Dst] *= uint64(int64(ins.Imm))
		case OpMulReg:
			vm.regs[ins.Dst] *= vm.regs[ins.Src]
		case OpDivImm:
			if ins.Imm == 0 {
				return nil, vm.fault(FaultDivideByZero, 0, "division by immediate zero")
			}
			vm.regs[ins.Dst] /= uint64(int64(ins.Imm))
		case OpDivReg:
			if vm.regs[ins.Src] == 0 {
				return nil, vm.fault(FaultDivideByZero, 0, fmt.Sprintf("division by r%d which is zero", ins.Src))
			}
			vm.regs[ins.Dst] /= vm.regs[ins.Src]
		case OpModImm:
			if ins.Imm == 0 {
				return nil, vm.fault(FaultDivideByZero, 0, "modulo by immediate zero")
			}
			vm.regs[ins.Dst] %= uint64(int64(ins.Imm))
		case OpModReg:
			if vm.regs[ins.Src] == 0 {
				return nil, vm.fault(FaultDivideByZero, 0, fmt.Sprintf("modulo by r%d which is zero", ins.Src))
			}
			vm.regs[ins.Dst] %= vm.regs[ins.Src]
		case OpNegReg:
			vm.regs[ins.Dst] = -vm.regs[ins.Dst]

		case OpLdxDW:
			addr := vm.regs[ins.Src] + uint64(int64(ins.Offset))
			val, err := vm.load64(addr)
			if err != nil {
				return nil, err
			}
			vm.regs[ins.Dst] = val
		case OpStxDW:
			addr := vm.regs[ins.Dst] + uint64(int64(ins.Offset))
			if err := vm.store64(addr, vm.regs[ins.Src]); err != nil {
				return nil, err
			}
		case OpStDW:
			addr := vm.regs[ins.Dst] + uint64(int64(ins.Offset))
			if err := vm.store64(addr, uint64(int64(ins.Imm))); err != nil {
				return nil, err
			}

		case OpJa:
			next = vm.pc + int(ins.Offset) + 1
		case OpJeqImm:
			if vm.regs[ins.Dst] == uint64(int64(ins.Imm)) {
				next = vm.pc + int(ins.Offset) + 1
			}
		case OpJeqReg:
			if vm.regs[ins.Dst] == vm.regs[ins.Src] {
				next = vm.pc + int(ins.Offset) + 1
			}
		case OpJneImm:
			if vm.regs[ins.Dst] != uint64(int64(ins.Imm)) {
				next = vm.pc + int(ins.Offset) + 1
			}
		case OpJneReg:
			if vm.regs[ins.Dst] != vm.regs[ins.Src] {
				next = vm.pc + int(ins.Offset) + 1
			}
		case OpJgtImm:
			if vm.regs[ins.Dst] > uint64(int64(ins.Imm)) {
				next = vm.pc + int(ins.Offset) + 1
			}
		case OpJgtReg:
			if vm.regs[ins.Dst] > vm.regs[ins.Src] {
				next = vm.pc + int(ins.Offset) + 1
			}
		case OpJgeImm:
			if vm.regs[ins.Dst] >= uint64(int64(ins.Imm)) {
				next = vm.pc + int(ins.Offset) + 1
			}
		case OpJgeReg:
			if vm.regs[ins.Dst] >= vm.regs[ins.Src] {
				next = vm.pc + int(ins.Offset) + 1
			}
		case OpJltImm:
			if vm.regs[ins.Dst] < uint64(int64(ins.Imm)) {
				next = vm.pc + int(ins.Offset) + 1
			}
		case OpJltReg:
			if vm.regs[ins.Dst] < vm.regs[ins.Src] {
				next = vm.pc + int(ins.Offset) + 1
			}
		case OpJleImm:
			if vm.regs[ins.Dst] <= uint64(int64(ins.Imm)) {
				next = vm.pc + int(ins.Offset) + 1
			}
		case OpJleReg:
			if vm.regs[ins.Dst] <= vm.regs[ins.Src] {
				next = vm.pc + int(ins.Offset) + 1
			}

		case OpCall:
			entry, ok := vm.syscalls[ins.Imm]
			if !ok {
				return nil, vm.fault(FaultBadSyscall, 0, fmt.Sprintf("syscall %d is not registered", ins.Imm))
			}
			args := [5]uint64{vm.regs[1], vm.regs[2], vm.regs[3], vm.regs[4], vm.regs[5]}
			ret, err := entry.Fn(vm, args)
			if err != nil {
				return nil, err
			}
			vm.regs[R0] = ret

		case OpExit:
			return vm.result(), nil

		default:
			return nil, vm.fault(FaultBadOpcode, 0, fmt.Sprintf("opcode 0x%02x", byte(ins.Opcode)))
		}

		vm.pc = next
	}
	return vm.result(), nil
}

func (vm *VM) result() *Result {
	return &Result{
		ExitCode:     vm.regs[R0],
		ComputeUnits: vm.used,
		Logs:         vm.logs,
		ReturnData:   vm.returnData,
	}
}

func (vm *VM) fault(kind FaultKind, addr uint64, msg string) *Fault {
	return &Fault{Kind: kind, PC: vm.pc, Addr: addr, Msg: msg}
}

// checkRegisters rejects register numbers outside r0-r10. Encodings
// allow four bits per field, so 11-15 are representable but invalid.
func (vm *VM) checkRegisters(ins Instruction) error {
	mode := GetOpcodeInfo(ins.Opcode).Mode
	usesDst := mode != ModeNone && mode != ModeJump && mode != ModeCall
	usesSrc := mode == ModeDstSrc || mode == ModeLoad || mode == ModeStoreReg || mode == ModeJumpReg
	if usesDst && ins.Dst >= NumRegisters {
		return vm.fault(FaultBadRegister, 0, fmt.Sprintf("dst r%d", ins.Dst))
	}
	if usesSrc && ins.Src >= NumRegisters {
		return vm.fault(FaultBadRegister, 0, fmt.Sprintf("src r%d", ins.Src))
	}
	return nil
}

// mem translates a virtual address range into a live byte slice. The
// range must sit entirely inside the stack or entirely inside the
// allocated heap.
func (vm *VM) mem(addr uint64, size uint64) ([]byte, error) {
	end := addr + size
	if end < addr {
		return nil, vm.fault(FaultOutOfBounds, addr, fmt.Sprintf("address range 0x%x+%d wraps", addr, size))
	}
	if addr >= StackBase && end <= StackBase+StackSize {
		off := addr - StackBase
		return vm.stack[off : off+size], nil
	}
	if addr >= HeapBase && end <= HeapBase+uint64(len(vm.heap)) {
		off := addr - HeapBase
		return vm.heap[off : off+size], nil
	}
	return nil, vm.fault(FaultOutOfBounds, addr, fmt.Sprintf("%d bytes at 0x%x outside stack and heap", size, addr))
}

func (vm *VM) load64(addr uint64) (uint64, error) {
	b, err := vm.mem(addr, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (vm *VM) store64(addr uint64, val uint64) error {
	b, err := vm.mem(addr, 8)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(b, val)
	return nil
}

// allocHeap grows the heap by size bytes and returns the virtual
// address of the new block.
func (vm *VM) allocHeap(size uint64) (uint64, error) {
	if uint64(len(vm.heap))+size > HeapMax {
		return 0, vm.fault(FaultOutOfBounds, HeapBase+uint64(len(vm.heap)), fmt.Sprintf("heap allocation of %d bytes exceeds %d byte limit", size, HeapMax))
	}
	addr := HeapBase + uint64(len(vm.heap))
	vm.heap = append(vm.heap, make([]byte, size)...)
	return addr, nil
}

func (vm *VM) log(msg string) {
	vm.logs = append(vm.logs, msg)
}
