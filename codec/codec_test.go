package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synacor-challenge/vm/isa"
)

func TestAssembleFetchRoundTrip(t *testing.T) {
	ops := []isa.Opcode{
		isa.Halt(),
		isa.Set(isa.Reg(0), isa.Imm(42)),
		isa.Push(isa.Imm(1)),
		isa.Pop(isa.Reg(0)),
		isa.Eq(isa.Reg(0), isa.Reg(1), isa.Imm(2)),
		isa.Gt(isa.Reg(0), isa.Reg(1), isa.Imm(2)),
		isa.Jmp(isa.Imm(5)),
		isa.Jt(isa.Reg(0), isa.Imm(5)),
		isa.Jf(isa.Reg(0), isa.Imm(5)),
		isa.Add(isa.Reg(0), isa.Reg(1), isa.Imm(2)),
		isa.Mult(isa.Reg(0), isa.Reg(1), isa.Imm(2)),
		isa.Mod(isa.Reg(0), isa.Reg(1), isa.Imm(2)),
		isa.And(isa.Reg(0), isa.Reg(1), isa.Imm(2)),
		isa.Or(isa.Reg(0), isa.Reg(1), isa.Imm(2)),
		isa.Not(isa.Reg(0), isa.Reg(1)),
		isa.Rmem(isa.Reg(0), isa.Imm(5)),
		isa.Wmem(isa.Imm(5), isa.Reg(0)),
		isa.Call(isa.Imm(5)),
		isa.Ret(),
		isa.Out(isa.Reg(0)),
		isa.In(isa.Reg(0)),
		isa.Noop(),
	}

	for _, op := range ops {
		words, err := Assemble(op)
		require.NoError(t, err, op.String())
		assert.Equal(t, op.Size(), len(words), op.String())

		memory := make([]isa.Word, len(words))
		copy(memory, words)

		got, err := Fetch(memory, 0)
		require.NoError(t, err, op.String())
		assert.Equal(t, op, got, op.String())
	}
}

func TestFetchUnknownTag(t *testing.T) {
	memory := []isa.Word{9999}
	_, err := Fetch(memory, 0)
	assert.Error(t, err)
}

func TestDisassembleLinearArithmeticProgression(t *testing.T) {
	ops := []isa.Opcode{
		isa.Set(isa.Reg(0), isa.Imm(42)),
		isa.Ret(),
		isa.Add(isa.Reg(0), isa.Reg(1), isa.Imm(2)),
	}
	words, err := AssembleSeq(ops)
	require.NoError(t, err)

	const base = 100
	disasm, err := DisassembleLinear(words, base)
	require.NoError(t, err)
	require.Len(t, disasm, len(ops))

	addr := base
	for i, in := range disasm {
		assert.Equal(t, addr, in.Addr)
		assert.Equal(t, ops[i], in.Op)
		addr += in.Op.Size()
	}
}

func TestDisassembleLinearKnownExample(t *testing.T) {
	words := []isa.Word{1, 32768, 42, 18}
	disasm, err := DisassembleLinear(words, 0)
	require.NoError(t, err)
	require.Len(t, disasm, 2)

	assert.Equal(t, 0, disasm[0].Addr)
	assert.Equal(t, isa.Set(isa.Reg(0), isa.Imm(42)), disasm[0].Op)
	assert.Equal(t, 3, disasm[1].Addr)
	assert.Equal(t, isa.Ret(), disasm[1].Op)
}

func TestLoadImageZeroFillsShortImages(t *testing.T) {
	raw := []byte{9, 0, 0, 0} // word 9, then a zero word
	words, err := LoadImage(raw, isa.MemSize)
	require.NoError(t, err)
	require.Len(t, words, isa.MemSize)
	assert.Equal(t, isa.Word(9), words[0])
	assert.Equal(t, isa.Word(0), words[1])
	assert.Equal(t, isa.Word(0), words[isa.MemSize-1])
}

func TestLoadImageRejectsOversizeImage(t *testing.T) {
	raw := make([]byte, (isa.MemSize+1)*2)
	_, err := LoadImage(raw, isa.MemSize)
	assert.ErrorIs(t, err, ErrOversizeImage)
}

func TestLoadImageRejectsOddByteCount(t *testing.T) {
	_, err := LoadImage([]byte{1, 2, 3}, isa.MemSize)
	assert.Error(t, err)
}
