// Package codec translates between the little-endian 16-bit word stream on
// disk (or in a live VM's memory) and structured isa.Opcode values: fetch
// one instruction at an address, assemble one or many instructions back to
// words, and perform address-agnostic linear disassembly.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/synacor-challenge/vm/isa"
)

// ErrOversizeImage is returned by LoadImage when the raw byte stream
// decodes to more words than the target memory can hold.
var ErrOversizeImage = errors.New("codec: image exceeds memory capacity")

// Fetch reads one instruction at addr in memory: the opcode tag at
// memory[addr], followed by size-1 operand words. It fails if the tag is
// not one of the 22 defined opcodes, per spec.md §4.C/§7.
func Fetch(memory []isa.Word, addr int) (isa.Opcode, error) {
	if addr < 0 || addr >= len(memory) {
		return isa.Opcode{}, fmt.Errorf("codec: fetch address %d out of bounds", addr)
	}

	tag, err := isa.TagFromWord(memory[addr])
	if err != nil {
		return isa.Opcode{}, fmt.Errorf("codec: at %d: %w", addr, err)
	}

	op := isa.Opcode{Tag: tag}
	size := op.Size()
	if addr+size > len(memory) {
		return isa.Opcode{}, fmt.Errorf("codec: instruction at %d runs past end of memory", addr)
	}

	operands := make([]isa.Value, size-1)
	for i := range operands {
		operands[i] = isa.Decode(memory[addr+1+i])
	}

	switch len(operands) {
	case 0:
	case 1:
		op.A = operands[0]
	case 2:
		op.A, op.B = operands[0], operands[1]
	case 3:
		op.A, op.B, op.C = operands[0], operands[1], operands[2]
	}
	return op, nil
}

// operandValues returns the in-order operand Values for op, using the same
// arity rules as isa.Opcode.String/Parse.
func operandValues(op isa.Opcode) []isa.Value {
	switch op.Size() {
	case 1:
		return nil
	case 2:
		return []isa.Value{op.A}
	case 3:
		return []isa.Value{op.A, op.B}
	default:
		return []isa.Value{op.A, op.B, op.C}
	}
}

// Assemble converts a single instruction back to its word form: the tag
// word followed by each operand re-encoded per isa.Value.Encode. Fails if
// any required operand is Invalid, since Invalid has no canonical
// re-encoding.
func Assemble(op isa.Opcode) ([]isa.Word, error) {
	words := make([]isa.Word, 1, op.Size())
	words[0] = isa.Word(op.Tag)

	for _, v := range operandValues(op) {
		w, err := v.Encode()
		if err != nil {
			return nil, fmt.Errorf("codec: assembling %s: %w", op, err)
		}
		words = append(words, w)
	}
	return words, nil
}

// AssembleSeq assembles a sequence of instructions into one contiguous
// word stream, in order.
func AssembleSeq(ops []isa.Opcode) ([]isa.Word, error) {
	var words []isa.Word
	for i, op := range ops {
		w, err := Assemble(op)
		if err != nil {
			return nil, fmt.Errorf("codec: instruction %d: %w", i, err)
		}
		words = append(words, w...)
	}
	return words, nil
}

// Instruction pairs a decoded opcode with the address it was fetched from.
type Instruction struct {
	Addr int
	Op   isa.Opcode
}

// DisassembleLinear performs address-agnostic linear disassembly of words
// starting at baseAddr: fetch, advance by size(op), repeat until words are
// exhausted. It has no control-flow awareness — every word immediately
// after one instruction is treated as the next instruction's opcode tag,
// per spec.md §4.C.
func DisassembleLinear(words []isa.Word, baseAddr int) ([]Instruction, error) {
	var out []Instruction
	offset := 0
	for offset < len(words) {
		op, err := Fetch(words, offset)
		if err != nil {
			return nil, fmt.Errorf("codec: disassembling at offset %d: %w", offset, err)
		}
		out = append(out, Instruction{Addr: baseAddr + offset, Op: op})
		offset += op.Size()
	}
	return out, nil
}

// LoadImage decodes a raw byte stream as little-endian 16-bit words, the
// on-disk program format from spec.md §6. It is a load-time error for the
// image to exceed capacity words; shorter images leave the remainder of
// the returned slice (length capacity) as zero.
func LoadImage(raw []byte, capacity int) ([]isa.Word, error) {
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("codec: image has an odd number of bytes (%d)", len(raw))
	}
	n := len(raw) / 2
	if n > capacity {
		return nil, fmt.Errorf("%w: %d words exceeds capacity %d", ErrOversizeImage, n, capacity)
	}

	words := make([]isa.Word, capacity)
	for i := 0; i < n; i++ {
		words[i] = binary.LittleEndian.Uint16(raw[2*i:])
	}
	return words, nil
}
