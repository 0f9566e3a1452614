package bpf

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/nalgeon/be"
)

// storeBytes writes data to the bottom of the stack so tests can hand
// buffers to syscalls.
func storeBytes(vm *VM, data []byte) uint64 {
	copy(vm.stack[:], data)
	return StackBase
}

func TestSysSolLog(t *testing.T) {
	vm := NewVM(nil)
	addr := storeBytes(vm, []byte("hello"))

	_, err := sysSolLog(vm, [5]uint64{addr, 5})
	be.Err(t, err, nil)
	be.Equal(t, vm.Logs(), []string{"Program log: hello"})
}

func TestSysSolLogBadPointer(t *testing.T) {
	vm := NewVM(nil)
	_, err := sysSolLog(vm, [5]uint64{0xdeadbeef, 4})

	var fault *Fault
	be.True(t, errors.As(err, &fault))
	be.Equal(t, fault.Kind, FaultOutOfBounds)
}

func TestSysSolLog64(t *testing.T) {
	vm := NewVM(nil)
	_, err := sysSolLog64(vm, [5]uint64{1, 2, 3, 4, 5})
	be.Err(t, err, nil)
	be.Equal(t, vm.Logs(), []string{"Program log: 0x1 0x2 0x3 0x4 0x5"})
}

func TestSysSolLogPubkey(t *testing.T) {
	vm := NewVM(nil)
	key := make([]byte, 32)
	key[0] = 0xab
	addr := storeBytes(vm, key)

	_, err := sysSolLogPubkey(vm, [5]uint64{addr})
	be.Err(t, err, nil)
	be.Equal(t, len(vm.Logs()), 1)
	be.True(t, strings.HasPrefix(vm.Logs()[0], "Program log: pubkey ab00"))
}

func TestSysSolSha256(t *testing.T) {
	vm := NewVM(nil)
	addr := storeBytes(vm, []byte("abc"))

	out, err := sysSolSha256(vm, [5]uint64{addr, 3})
	be.Err(t, err, nil)
	be.True(t, out >= HeapBase)

	digest, err := vm.mem(out, 32)
	be.Err(t, err, nil)
	want := sha256.Sum256([]byte("abc"))
	be.Equal(t, digest, want[:])
}

func TestSysTracePrintk(t *testing.T) {
	vm := NewVM(nil)
	_, err := sysTracePrintk(vm, [5]uint64{10, 20, 0, 0, 0})
	be.Err(t, err, nil)
	be.Equal(t, vm.Logs(), []string{"trace: 10 20 0 0 0"})
}

func TestReturnDataRoundTrip(t *testing.T) {
	vm := NewVM(nil)
	addr := storeBytes(vm, []byte("result!"))

	_, err := sysSetReturnData(vm, [5]uint64{addr, 7})
	be.Err(t, err, nil)
	be.Equal(t, vm.ReturnData(), []byte("result!"))

	out, err := sysGetReturnData(vm, [5]uint64{})
	be.Err(t, err, nil)

	block, err := vm.mem(out, 8+7)
	be.Err(t, err, nil)
	be.Equal(t, binary.LittleEndian.Uint64(block[:8]), uint64(7))
	be.Equal(t, block[8:], []byte("result!"))
}

func TestGetReturnDataUnset(t *testing.T) {
	vm := NewVM(nil)
	out, err := sysGetReturnData(vm, [5]uint64{})
	be.Err(t, err, nil)
	be.Equal(t, out, uint64(0))
}

func TestSetReturnDataTooLarge(t *testing.T) {
	vm := NewVM(nil)
	_, err := sysSetReturnData(vm, [5]uint64{StackBase, MaxReturnData + 1})

	var fault *Fault
	be.True(t, errors.As(err, &fault))
	be.Equal(t, fault.Kind, FaultOutOfBounds)
}

func TestUnknownSyscallFault(t *testing.T) {
	program := []Instruction{
		NewInstruction(OpCall, 0, 0, 0, 999),
	}

	_, err := NewVM(program).Execute()
	var fault *Fault
	be.True(t, errors.As(err, &fault))
	be.Equal(t, fault.Kind, FaultBadSyscall)
}

func TestRegisterSyscall(t *testing.T) {
	program := []Instruction{
		NewInstruction(OpMovImm, 1, 0, 0, 21),
		NewInstruction(OpMovImm, 2, 0, 0, 2),
		NewInstruction(OpCall, 0, 0, 0, 42),
		NewInstruction(OpExit, 0, 0, 0, 0),
	}

	vm := NewVM(program)
	vm.RegisterSyscall(42, "double", func(vm *VM, args [5]uint64) (uint64, error) {
		return args[0] * args[1], nil
	})

	result, err := vm.Execute()
	be.Err(t, err, nil)
	be.Equal(t, result.ExitCode, uint64(42))
}

func TestSyscallName(t *testing.T) {
	be.Equal(t, SyscallName(SysSolLog), "sol_log")
	be.Equal(t, SyscallName(999), "syscall#999")
}

func TestVMSolLogEndToEnd(t *testing.T) {
	// Store "ok" at the top of the frame, then sol_log it.
	program := []Instruction{
		NewInstruction(OpStDW, 10, 0, -8, int32('o')|int32('k')<<8),
		NewInstruction(OpMovReg, 1, 10, 0, 0),
		NewInstruction(OpAddImm, 1, 0, 0, -8),
		NewInstruction(OpMovImm, 2, 0, 0, 2),
		NewInstruction(OpCall, 0, 0, 0, SysSolLog),
		NewInstruction(OpExit, 0, 0, 0, 0),
	}

	vm := NewVM(program)
	result, err := vm.Execute()
	be.Err(t, err, nil)
	be.Equal(t, result.Logs, []string{"Program log: ok"})
}
