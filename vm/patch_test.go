package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synacor-challenge/vm/codec"
	"github.com/synacor-challenge/vm/isa"
)

// xorFunctionMemory lays out the literal bitwise function from spec.md §8's
// scenario 5 at address 2125: Push/Push/And/Not/Or/And/Pop/Pop/Ret,
// computing (r0|r1) & ~(r0&r1) == r0 XOR r1 into register 0.
func xorFunctionMemory(t *testing.T) []isa.Word {
	t.Helper()
	const entry = 2125
	ops := []isa.Opcode{
		isa.Push(isa.Reg(0)),
		isa.Push(isa.Reg(1)),
		isa.And(isa.Reg(2), isa.Reg(0), isa.Reg(1)),
		isa.Not(isa.Reg(2), isa.Reg(2)),
		isa.Or(isa.Reg(3), isa.Reg(0), isa.Reg(1)),
		isa.And(isa.Reg(0), isa.Reg(3), isa.Reg(2)),
		isa.Pop(isa.Reg(1)),
		isa.Pop(isa.Reg(1)),
		isa.Ret(),
	}
	memory := make([]isa.Word, isa.MemSize)
	addr := entry
	for _, op := range ops {
		words, err := codec.Assemble(op)
		require.NoError(t, err)
		copy(memory[addr:], words)
		addr += op.Size()
	}
	return memory
}

func TestPatchedCallMatchesUnpatchedExecution(t *testing.T) {
	for r0 := isa.Word(0); r0 <= 100; r0++ {
		for r1 := isa.Word(0); r1 <= 100; r1++ {
			unpatched := callerProgram(t)
			unpatched.SetRegister(0, r0)
			unpatched.SetRegister(1, r1)
			unpatched.SetFnPatching(false)
			require.NoError(t, unpatched.RunUntil(StatesIn{States: []State{Halted}}))

			patched := callerProgram(t)
			patched.SetRegister(0, r0)
			patched.SetRegister(1, r1)
			patched.SetFnPatching(true)
			require.NoError(t, patched.RunUntil(StatesIn{States: []State{Halted}}))

			assert.Equal(t, unpatched.Register(0), patched.Register(0), "r0=%d r1=%d", r0, r1)
			assert.Equal(t, unpatched.StackDepth(), patched.StackDepth(), "r0=%d r1=%d", r0, r1)
		}
	}
}

// callerProgram builds Call(2125); Halt at address 0, with the native
// bitwise function's literal instruction sequence installed at 2125 so
// the un-patched path is also exercised faithfully.
func callerProgram(t *testing.T) *VM {
	t.Helper()
	memory := xorFunctionMemory(t)
	words, err := codec.Assemble(isa.Call(isa.Imm(2125)))
	require.NoError(t, err)
	copy(memory, words)
	memory[len(words)] = isa.Word(isa.TagHalt)

	raw := make([]byte, 2*len(memory))
	for i, w := range memory {
		raw[2*i] = byte(w)
		raw[2*i+1] = byte(w >> 8)
	}
	machine := New()
	require.NoError(t, machine.Load(raw))
	return machine
}

func TestSentinelPatch(t *testing.T) {
	memory := make([]isa.Word, isa.MemSize)
	words, err := codec.Assemble(isa.Call(isa.Imm(3)))
	require.NoError(t, err)
	copy(memory, words)
	memory[len(words)] = isa.Word(isa.TagHalt)
	memory[3] = isa.Word(isa.TagRet)

	raw := make([]byte, 2*len(memory))
	for i, w := range memory {
		raw[2*i] = byte(w)
		raw[2*i+1] = byte(w >> 8)
	}
	machine := New()
	require.NoError(t, machine.Load(raw))
	machine.SetFnPatching(true)

	require.NoError(t, machine.RunUntil(StatesIn{States: []State{Halted}}))
	assert.EqualValues(t, 20, machine.Register(0))
}
