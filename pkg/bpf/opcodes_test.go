package bpf

import (
	"strings"
	"testing"

	"github.com/nalgeon/be"
)

func TestAllOpcodesHaveMetadata(t *testing.T) {
	for _, op := range AllOpcodes() {
		info := GetOpcodeInfo(op)
		be.True(t, info.Name != "")
		be.True(t, !strings.HasPrefix(info.Name, "UNKNOWN"))
	}
}

func TestOpcodeClassBitsMatchTable(t *testing.T) {
	for _, op := range AllOpcodes() {
		be.Equal(t, op.Class(), GetOpcodeInfo(op).Class)
	}
}

func TestOpcodeString(t *testing.T) {
	be.Equal(t, OpMovImm.String(), "mov64")
	be.Equal(t, OpLdxDW.String(), "ldxdw")
	be.Equal(t, OpExit.String(), "exit")
	be.True(t, strings.HasPrefix(Opcode(0xfe).String(), "UNKNOWN"))
}

func TestOpcodeValid(t *testing.T) {
	be.True(t, OpCall.Valid())
	be.True(t, !Opcode(0xfe).Valid())
}

func TestIsJump(t *testing.T) {
	be.True(t, OpJa.IsJump())
	be.True(t, OpJeqImm.IsJump())
	be.True(t, OpJleReg.IsJump())
	be.True(t, !OpCall.IsJump())
	be.True(t, !OpExit.IsJump())
	be.True(t, !OpAddReg.IsJump())
}
