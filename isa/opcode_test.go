package isa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpcodeSize(t *testing.T) {
	cases := []struct {
		op   Opcode
		size int
	}{
		{Halt(), 1},
		{Ret(), 1},
		{Noop(), 1},
		{Push(Imm(1)), 2},
		{Pop(Reg(0)), 2},
		{Jmp(Imm(5)), 2},
		{Call(Imm(5)), 2},
		{Out(Reg(0)), 2},
		{In(Reg(0)), 2},
		{Set(Reg(0), Imm(1)), 3},
		{Jt(Reg(0), Imm(5)), 3},
		{Jf(Reg(0), Imm(5)), 3},
		{Not(Reg(0), Reg(1)), 3},
		{Rmem(Reg(0), Imm(5)), 3},
		{Wmem(Imm(5), Reg(0)), 3},
		{Eq(Reg(0), Reg(1), Reg(2)), 4},
		{Gt(Reg(0), Reg(1), Reg(2)), 4},
		{Add(Reg(0), Reg(1), Reg(2)), 4},
		{Mult(Reg(0), Reg(1), Reg(2)), 4},
		{Mod(Reg(0), Reg(1), Reg(2)), 4},
		{And(Reg(0), Reg(1), Reg(2)), 4},
		{Or(Reg(0), Reg(1), Reg(2)), 4},
	}
	for _, c := range cases {
		assert.Equal(t, c.size, c.op.Size(), c.op.String())
	}
}

func TestBranchTargets(t *testing.T) {
	assert.Equal(t, []Value{Imm(5)}, Jmp(Imm(5)).BranchTargets())
	assert.Equal(t, []Value{Imm(5)}, Jt(Reg(0), Imm(5)).BranchTargets())
	assert.Equal(t, []Value{Imm(5)}, Jf(Reg(0), Imm(5)).BranchTargets())
	assert.Equal(t, []Value{Imm(5)}, Call(Imm(5)).BranchTargets())

	assert.Nil(t, Jmp(Reg(0)).BranchTargets(), "register-valued targets are not statically knowable")
	assert.Nil(t, Ret().BranchTargets())
	assert.Nil(t, Halt().BranchTargets())
	assert.Nil(t, Noop().BranchTargets())
}

func TestMnemonicRoundTrip(t *testing.T) {
	cases := []string{
		"Set(Reg(1), 1531)",
		"Gt(Reg(1), Reg(2), Reg(1))",
		"Jf(Reg(1), 5636)",
		"Ret",
		"Add(Reg(2), 10666, 956)",
	}
	for _, s := range cases {
		op, err := Parse(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, op.String())
	}
}

func TestParseCaseInsensitiveMnemonic(t *testing.T) {
	op, err := Parse("set(Reg(0), 1)")
	require.NoError(t, err)
	assert.Equal(t, TagSet, op.Tag)

	op, err = Parse("HALT")
	require.NoError(t, err)
	assert.Equal(t, TagHalt, op.Tag)
}

func TestParseWrongArity(t *testing.T) {
	_, err := Parse("Set(Reg(0))")
	assert.Error(t, err)

	_, err = Parse("Halt(1)")
	assert.Error(t, err)
}

func TestParseUnknownMnemonic(t *testing.T) {
	_, err := Parse("Frobnicate(1)")
	assert.Error(t, err)
}

func TestTagFromWord(t *testing.T) {
	tag, err := TagFromWord(5)
	require.NoError(t, err)
	assert.Equal(t, TagGt, tag)

	_, err = TagFromWord(22)
	assert.ErrorIs(t, err, ErrUnknownTag)

	_, err = TagFromWord(261)
	assert.ErrorIs(t, err, ErrUnknownTag, "261 truncated to a byte must not alias a valid tag")

	_, err = TagFromWord(65535)
	assert.ErrorIs(t, err, ErrUnknownTag)
}
