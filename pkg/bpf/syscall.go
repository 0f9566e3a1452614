package bpf

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Syscall ids. Ids 1 through 20 are reserved for the built-in table;
// hosts embedding the VM should register their own handlers above
// that range.
const (
	SysSolLog        int32 = 1  // log UTF-8 bytes at r1, length r2
	SysSolLog64      int32 = 2  // log the five argument registers as hex
	SysSolLogPubkey  int32 = 3  // log 32 bytes at r1 as hex
	SysSolSha256     int32 = 5  // hash r2 bytes at r1, return heap address of digest
	SysTracePrintk   int32 = 6  // generic trace hook, logs the argument registers
	SysSetReturnData int32 = 10 // copy r2 bytes at r1 into the return-data buffer
	SysGetReturnData int32 = 11 // copy return data onto the heap, return its address
)

// SyscallFunc handles one syscall invocation. args holds the
// contents of r1 through r5 at the time of the call; the returned
// value is written to r0. A returned error aborts execution and is
// reported like any other fault.
type SyscallFunc func(vm *VM, args [5]uint64) (uint64, error)

// SyscallEntry pairs a handler with its name for tracing and
// disassembly.
type SyscallEntry struct {
	Name string
	Fn   SyscallFunc
}

// SyscallName returns the name a default-table id resolves to, or a
// numeric placeholder for ids outside the table.
func SyscallName(id int32) string {
	if entry, ok := defaultSyscallTable[id]; ok {
		return entry.Name
	}
	return fmt.Sprintf("syscall#%d", id)
}

var defaultSyscallTable = map[int32]SyscallEntry{
	SysSolLog:        {"sol_log", sysSolLog},
	SysSolLog64:      {"sol_log_64", sysSolLog64},
	SysSolLogPubkey:  {"sol_log_pubkey", sysSolLogPubkey},
	SysSolSha256:     {"sol_sha256", sysSolSha256},
	SysTracePrintk:   {"trace_printk", sysTracePrintk},
	SysSetReturnData: {"sol_set_return_data", sysSetReturnData},
	SysGetReturnData: {"sol_get_return_data", sysGetReturnData},
}

func defaultSyscalls() map[int32]SyscallEntry {
	table := make(map[int32]SyscallEntry, len(defaultSyscallTable))
	for id, entry := range defaultSyscallTable {
		table[id] = entry
	}
	return table
}

func sysSolLog(vm *VM, args [5]uint64) (uint64, error) {
	msg, err := vm.mem(args[0], args[1])
	if err != nil {
		return 0, err
	}
	vm.log("Program log: " + string(msg))
	return 0, nil
}

func sysSolLog64(vm *VM, args [5]uint64) (uint64, error) {
	vm.log(fmt.Sprintf("Program log: 0x%x 0x%x 0x%x 0x%x 0x%x",
		args[0], args[1], args[2], args[3], args[4]))
	return 0, nil
}

func sysSolLogPubkey(vm *VM, args [5]uint64) (uint64, error) {
	key, err := vm.mem(args[0], 32)
	if err != nil {
		return 0, err
	}
	vm.log("Program log: pubkey " + hex.EncodeToString(key))
	return 0, nil
}

// sysSolSha256 hashes the input bytes and places the 32-byte digest
// in a fresh heap block. The block address is the return value.
func sysSolSha256(vm *VM, args [5]uint64) (uint64, error) {
	input, err := vm.mem(args[0], args[1])
	if err != nil {
		return 0, err
	}
	digest := sha256.Sum256(input)
	addr, err := vm.allocHeap(uint64(len(digest)))
	if err != nil {
		return 0, err
	}
	out, err := vm.mem(addr, uint64(len(digest)))
	if err != nil {
		return 0, err
	}
	copy(out, digest[:])
	return addr, nil
}

// sysTracePrintk is the generic trace hook used by compiled PrintF
// calls. Arguments arrive in the call registers; the format string
// itself is not available at runtime, so the raw values are logged.
func sysTracePrintk(vm *VM, args [5]uint64) (uint64, error) {
	vm.log(fmt.Sprintf("trace: %d %d %d %d %d",
		args[0], args[1], args[2], args[3], args[4]))
	return 0, nil
}

func sysSetReturnData(vm *VM, args [5]uint64) (uint64, error) {
	if args[1] > MaxReturnData {
		return 0, vm.fault(FaultOutOfBounds, args[0], fmt.Sprintf("return data of %d bytes exceeds %d byte limit", args[1], MaxReturnData))
	}
	data, err := vm.mem(args[0], args[1])
	if err != nil {
		return 0, err
	}
	vm.returnData = append([]byte(nil), data...)
	return 0, nil
}

// sysGetReturnData copies the current return-data buffer into a
// fresh heap block, prefixed with its length as a little-endian u64,
// and returns the block address. Returns zero when no return data
// has been set.
func sysGetReturnData(vm *VM, args [5]uint64) (uint64, error) {
	if vm.returnData == nil {
		return 0, nil
	}
	addr, err := vm.allocHeap(8 + uint64(len(vm.returnData)))
	if err != nil {
		return 0, err
	}
	block, err := vm.mem(addr, 8+uint64(len(vm.returnData)))
	if err != nil {
		return 0, err
	}
	binary.LittleEndian.PutUint64(block[:8], uint64(len(vm.returnData)))
	copy(block[8:], vm.returnData)
	return addr, nil
}
