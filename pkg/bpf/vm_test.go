package bpf

import (
	"errors"
	"strings"
	"testing"

	"github.com/nalgeon/be"
)

func TestVMArithmetic(t *testing.T) {
	// r1 = 100; r2 = 200; r0 = r1 + r2; exit
	program := []Instruction{
		NewInstruction(OpMovImm, 1, 0, 0, 100),
		NewInstruction(OpMovImm, 2, 0, 0, 200),
		NewInstruction(OpMovReg, 0, 1, 0, 0),
		NewInstruction(OpAddReg, 0, 2, 0, 0),
		NewInstruction(OpExit, 0, 0, 0, 0),
	}

	result, err := NewVM(program).Execute()
	be.Err(t, err, nil)
	be.Equal(t, result.ExitCode, uint64(300))
	be.Equal(t, result.ComputeUnits, uint64(5))
}

func TestVMAluOps(t *testing.T) {
	tests := []struct {
		name string
		op   Opcode
		a, b int32
		want uint64
	}{
		{"add", OpAddReg, 7, 5, 12},
		{"sub", OpSubReg, 7, 5, 2},
		{"mul", OpMulReg, 7, 5, 35},
		{"div", OpDivReg, 7, 5, 1},
		{"mod", OpModReg, 7, 5, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			program := []Instruction{
				NewInstruction(OpMovImm, 0, 0, 0, tt.a),
				NewInstruction(OpMovImm, 1, 0, 0, tt.b),
				NewInstruction(tt.op, 0, 1, 0, 0),
				NewInstruction(OpExit, 0, 0, 0, 0),
			}
			result, err := NewVM(program).Execute()
			be.Err(t, err, nil)
			be.Equal(t, result.ExitCode, tt.want)
		})
	}
}

func TestVMDivideByZeroFault(t *testing.T) {
	program := []Instruction{
		NewInstruction(OpMovImm, 0, 0, 0, 10),
		NewInstruction(OpMovImm, 1, 0, 0, 0),
		NewInstruction(OpDivReg, 0, 1, 0, 0),
		NewInstruction(OpExit, 0, 0, 0, 0),
	}

	_, err := NewVM(program).Execute()
	var fault *Fault
	be.True(t, errors.As(err, &fault))
	be.Equal(t, fault.Kind, FaultDivideByZero)
	be.Equal(t, fault.PC, 2)
}

func TestVMJumpSkipsInstruction(t *testing.T) {
	// The mov at index 1 is skipped, so r0 keeps its first value.
	program := []Instruction{
		NewInstruction(OpMovImm, 0, 0, 0, 1),
		NewInstruction(OpJa, 0, 0, 1, 0),
		NewInstruction(OpMovImm, 0, 0, 0, 99),
		NewInstruction(OpExit, 0, 0, 0, 0),
	}

	result, err := NewVM(program).Execute()
	be.Err(t, err, nil)
	be.Equal(t, result.ExitCode, uint64(1))
}

func TestVMConditionalJump(t *testing.T) {
	// if r0 != 5 skip the add
	program := []Instruction{
		NewInstruction(OpMovImm, 0, 0, 0, 5),
		NewInstruction(OpJneImm, 0, 0, 1, 5),
		NewInstruction(OpAddImm, 0, 0, 0, 10),
		NewInstruction(OpExit, 0, 0, 0, 0),
	}

	result, err := NewVM(program).Execute()
	be.Err(t, err, nil)
	be.Equal(t, result.ExitCode, uint64(15))
}

func TestVMBackwardJumpLoop(t *testing.T) {
	// r0 counts down from 3 to 0.
	program := []Instruction{
		NewInstruction(OpMovImm, 0, 0, 0, 3),
		NewInstruction(OpJeqImm, 0, 0, 2, 0),
		NewInstruction(OpSubImm, 0, 0, 0, 1),
		NewInstruction(OpJa, 0, 0, -3, 0),
		NewInstruction(OpExit, 0, 0, 0, 0),
	}

	result, err := NewVM(program).Execute()
	be.Err(t, err, nil)
	be.Equal(t, result.ExitCode, uint64(0))
}

func TestVMStackLoadStore(t *testing.T) {
	// Spill 1234 to the first frame slot and read it back.
	program := []Instruction{
		NewInstruction(OpMovImm, 1, 0, 0, 1234),
		NewInstruction(OpStxDW, 10, 1, -8, 0),
		NewInstruction(OpLdxDW, 0, 10, -8, 0),
		NewInstruction(OpExit, 0, 0, 0, 0),
	}

	result, err := NewVM(program).Execute()
	be.Err(t, err, nil)
	be.Equal(t, result.ExitCode, uint64(1234))
}

func TestVMStoreImmediate(t *testing.T) {
	program := []Instruction{
		NewInstruction(OpStDW, 10, 0, -16, 77),
		NewInstruction(OpLdxDW, 0, 10, -16, 0),
		NewInstruction(OpExit, 0, 0, 0, 0),
	}

	result, err := NewVM(program).Execute()
	be.Err(t, err, nil)
	be.Equal(t, result.ExitCode, uint64(77))
}

func TestVMOutOfBoundsOneByte(t *testing.T) {
	// An 8-byte store whose last byte falls one past the stack top.
	program := []Instruction{
		NewInstruction(OpStxDW, 10, 1, -7, 0),
		NewInstruction(OpExit, 0, 0, 0, 0),
	}

	_, err := NewVM(program).Execute()
	var fault *Fault
	be.True(t, errors.As(err, &fault))
	be.Equal(t, fault.Kind, FaultOutOfBounds)
}

func TestVMOutOfBoundsBelowStack(t *testing.T) {
	program := []Instruction{
		NewInstruction(OpLdxDW, 0, 10, -(StackSize + 8), 0),
		NewInstruction(OpExit, 0, 0, 0, 0),
	}

	_, err := NewVM(program).Execute()
	var fault *Fault
	be.True(t, errors.As(err, &fault))
	be.Equal(t, fault.Kind, FaultOutOfBounds)
}

func TestVMInvalidRegisterFault(t *testing.T) {
	// Register fields are four bits wide; 12 is encodable but invalid.
	program := []Instruction{
		NewInstruction(OpMovImm, 12, 0, 0, 1),
		NewInstruction(OpExit, 0, 0, 0, 0),
	}

	_, err := NewVM(program).Execute()
	var fault *Fault
	be.True(t, errors.As(err, &fault))
	be.Equal(t, fault.Kind, FaultBadRegister)
}

func TestVMUnknownOpcodeFault(t *testing.T) {
	program := []Instruction{
		NewInstruction(Opcode(0xfe), 0, 0, 0, 0),
	}

	_, err := NewVM(program).Execute()
	var fault *Fault
	be.True(t, errors.As(err, &fault))
	be.Equal(t, fault.Kind, FaultBadOpcode)
}

func TestVMBudgetExceeded(t *testing.T) {
	// Tight infinite loop.
	program := []Instruction{
		NewInstruction(OpJa, 0, 0, -1, 0),
	}

	vm := NewVM(program)
	vm.SetComputeBudget(50)
	_, err := vm.Execute()

	var budget *BudgetExceededError
	be.True(t, errors.As(err, &budget))
	be.Equal(t, budget.Limit, uint64(50))
	be.Equal(t, vm.ComputeUnits(), uint64(50))

	// Budget exhaustion is not a fault.
	var fault *Fault
	be.True(t, !errors.As(err, &fault))
}

func TestVMResetIdempotent(t *testing.T) {
	program := []Instruction{
		NewInstruction(OpMovImm, 0, 0, 0, 41),
		NewInstruction(OpAddImm, 0, 0, 0, 1),
		NewInstruction(OpExit, 0, 0, 0, 0),
	}

	vm := NewVM(program)
	first, err := vm.Execute()
	be.Err(t, err, nil)

	vm.Reset()
	second, err := vm.Execute()
	be.Err(t, err, nil)

	be.Equal(t, second.ExitCode, first.ExitCode)
	be.Equal(t, second.ComputeUnits, first.ComputeUnits)
}

func TestVMResetClearsState(t *testing.T) {
	program := []Instruction{
		NewInstruction(OpMovImm, 1, 0, 0, 9),
		NewInstruction(OpStxDW, 10, 1, -8, 0),
		NewInstruction(OpExit, 0, 0, 0, 0),
	}

	vm := NewVM(program)
	_, err := vm.Execute()
	be.Err(t, err, nil)

	vm.Reset()
	be.Equal(t, vm.ComputeUnits(), uint64(0))
	be.Equal(t, len(vm.Logs()), 0)
	be.Equal(t, vm.stack, [StackSize]byte{})
	be.Equal(t, vm.regs[R10], uint64(StackBase+StackSize))
}

func TestVMRunsOffEnd(t *testing.T) {
	// No trailing exit: the VM halts with whatever is in r0.
	program := []Instruction{
		NewInstruction(OpMovImm, 0, 0, 0, 8),
	}

	result, err := NewVM(program).Execute()
	be.Err(t, err, nil)
	be.Equal(t, result.ExitCode, uint64(8))
}

func TestVMLogsSurviveFault(t *testing.T) {
	program := []Instruction{
		NewInstruction(OpMovImm, 1, 0, 0, 1),
		NewInstruction(OpMovImm, 2, 0, 0, 2),
		NewInstruction(OpCall, 0, 0, 0, SysSolLog64),
		NewInstruction(OpMovImm, 1, 0, 0, 0),
		NewInstruction(OpDivReg, 0, 1, 0, 0),
	}

	vm := NewVM(program)
	_, err := vm.Execute()
	be.Err(t, err)
	be.Equal(t, len(vm.Logs()), 1)
}

func TestVMTraceOutput(t *testing.T) {
	program := []Instruction{
		NewInstruction(OpMovImm, 0, 0, 0, 1),
		NewInstruction(OpExit, 0, 0, 0, 0),
	}
	vm := NewVM(program)
	vm.Trace = true
	result, err := vm.Execute()
	be.Err(t, err, nil)
	be.Equal(t, result.ExitCode, uint64(1))
}

func TestDisassembleProgram(t *testing.T) {
	program := []Instruction{
		NewInstruction(OpMovImm, 0, 0, 0, 42),
		NewInstruction(OpJeqImm, 0, 0, 1, 42),
		NewInstruction(OpCall, 0, 0, 0, SysTracePrintk),
		NewInstruction(OpExit, 0, 0, 0, 0),
	}

	listing := Disassemble(program)
	be.True(t, strings.Contains(listing, "mov64 r0, 42"))
	be.True(t, strings.Contains(listing, "(-> 0003)"))
	be.True(t, strings.Contains(listing, "trace_printk"))
	be.True(t, strings.Contains(listing, "exit"))
	be.Equal(t, len(DisassembleToLines(program)), 4)
}
