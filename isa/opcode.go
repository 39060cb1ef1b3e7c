package isa

import (
	"errors"
	"fmt"
	"strings"
)

// Tag identifies an instruction by its numeric opcode byte, 0..=21.
type Tag uint8

const (
	TagHalt Tag = 0
	TagSet  Tag = 1
	TagPush Tag = 2
	TagPop  Tag = 3
	TagEq   Tag = 4
	TagGt   Tag = 5
	TagJmp  Tag = 6
	TagJt   Tag = 7
	TagJf   Tag = 8
	TagAdd  Tag = 9
	TagMult Tag = 10
	TagMod  Tag = 11
	TagAnd  Tag = 12
	TagOr   Tag = 13
	TagNot  Tag = 14
	TagRmem Tag = 15
	TagWmem Tag = 16
	TagCall Tag = 17
	TagRet  Tag = 18
	TagOut  Tag = 19
	TagIn   Tag = 20
	TagNoop Tag = 21
)

// tagNames mirrors the teacher's strToInstrMap/instrToStrMap split: build
// the string form from a single source of truth.
var tagNames = map[Tag]string{
	TagHalt: "Halt",
	TagSet:  "Set",
	TagPush: "Push",
	TagPop:  "Pop",
	TagEq:   "Eq",
	TagGt:   "Gt",
	TagJmp:  "Jmp",
	TagJt:   "Jt",
	TagJf:   "Jf",
	TagAdd:  "Add",
	TagMult: "Mult",
	TagMod:  "Mod",
	TagAnd:  "And",
	TagOr:   "Or",
	TagNot:  "Not",
	TagRmem: "Rmem",
	TagWmem: "Wmem",
	TagCall: "Call",
	TagRet:  "Ret",
	TagOut:  "Out",
	TagIn:   "In",
	TagNoop: "Noop",
}

var namesToTag map[string]Tag

func init() {
	namesToTag = make(map[string]Tag, len(tagNames))
	for tag, name := range tagNames {
		namesToTag[strings.ToLower(name)] = tag
	}
}

func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("?unknown(%d)?", uint8(t))
}

// InDomain reports whether t is one of the 22 defined opcodes.
func (t Tag) InDomain() bool {
	_, ok := tagNames[t]
	return ok
}

// Opcode is the tagged union of the 22 Synacor instructions. Only the
// operand fields relevant to Tag are meaningful; unused fields are zero.
type Opcode struct {
	Tag     Tag
	A, B, C Value
}

// Size returns the instruction's total word count (opcode word plus
// operands), per spec.md §3's table.
func (o Opcode) Size() int {
	switch o.Tag {
	case TagHalt, TagRet, TagNoop:
		return 1
	case TagPush, TagPop, TagJmp, TagCall, TagOut, TagIn:
		return 2
	case TagSet, TagJt, TagJf, TagNot, TagRmem, TagWmem:
		return 3
	case TagEq, TagGt, TagAdd, TagMult, TagMod, TagAnd, TagOr:
		return 4
	default:
		return 1
	}
}

// BranchTargets returns the statically knowable addresses the instruction
// can jump to other than fall-through, per spec.md §4.B: the branch-taken
// target for Jmp/Jt/Jf, and the callee for Call. Register-valued or
// Invalid targets are not statically knowable and are omitted. Ret and
// Halt never have static targets.
func (o Opcode) BranchTargets() []Value {
	var target Value
	switch o.Tag {
	case TagJmp:
		target = o.A
	case TagJt:
		target = o.B
	case TagJf:
		target = o.B
	case TagCall:
		target = o.A
	default:
		return nil
	}
	if target.Kind != Immediate {
		return nil
	}
	return []Value{target}
}

// String renders the instruction using the assembler's mnemonic grammar:
// `Name` for nullary ops, `Name(op1, op2, ...)` otherwise.
func (o Opcode) String() string {
	args := o.operands()
	if len(args) == 0 {
		return o.Tag.String()
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", o.Tag.String(), strings.Join(parts, ", "))
}

func (o Opcode) operands() []Value {
	switch o.Tag {
	case TagHalt, TagRet, TagNoop:
		return nil
	case TagPush, TagJmp, TagCall, TagOut, TagPop, TagIn:
		return []Value{o.A}
	case TagSet, TagJt, TagJf, TagNot, TagRmem, TagWmem:
		return []Value{o.A, o.B}
	case TagEq, TagGt, TagAdd, TagMult, TagMod, TagAnd, TagOr:
		return []Value{o.A, o.B, o.C}
	default:
		return nil
	}
}

// Constructors for each opcode shape, mirroring the grammar in spec.md §6.

func Halt() Opcode                 { return Opcode{Tag: TagHalt} }
func Set(dst, src Value) Opcode    { return Opcode{Tag: TagSet, A: dst, B: src} }
func Push(src Value) Opcode        { return Opcode{Tag: TagPush, A: src} }
func Pop(dst Value) Opcode         { return Opcode{Tag: TagPop, A: dst} }
func Eq(dst, a, b Value) Opcode    { return Opcode{Tag: TagEq, A: dst, B: a, C: b} }
func Gt(dst, a, b Value) Opcode    { return Opcode{Tag: TagGt, A: dst, B: a, C: b} }
func Jmp(target Value) Opcode      { return Opcode{Tag: TagJmp, A: target} }
func Jt(cond, target Value) Opcode { return Opcode{Tag: TagJt, A: cond, B: target} }
func Jf(cond, target Value) Opcode { return Opcode{Tag: TagJf, A: cond, B: target} }
func Add(dst, a, b Value) Opcode   { return Opcode{Tag: TagAdd, A: dst, B: a, C: b} }
func Mult(dst, a, b Value) Opcode  { return Opcode{Tag: TagMult, A: dst, B: a, C: b} }
func Mod(dst, a, b Value) Opcode   { return Opcode{Tag: TagMod, A: dst, B: a, C: b} }
func And(dst, a, b Value) Opcode   { return Opcode{Tag: TagAnd, A: dst, B: a, C: b} }
func Or(dst, a, b Value) Opcode    { return Opcode{Tag: TagOr, A: dst, B: a, C: b} }
func Not(dst, a Value) Opcode      { return Opcode{Tag: TagNot, A: dst, B: a} }
func Rmem(dst, addr Value) Opcode  { return Opcode{Tag: TagRmem, A: dst, B: addr} }
func Wmem(addr, src Value) Opcode  { return Opcode{Tag: TagWmem, A: addr, B: src} }
func Call(target Value) Opcode     { return Opcode{Tag: TagCall, A: target} }
func Ret() Opcode                  { return Opcode{Tag: TagRet} }
func Out(src Value) Opcode         { return Opcode{Tag: TagOut, A: src} }
func In(dst Value) Opcode          { return Opcode{Tag: TagIn, A: dst} }
func Noop() Opcode                 { return Opcode{Tag: TagNoop} }

// Parse parses one instruction from its mnemonic text form (spec.md §6).
// The mnemonic is matched case-insensitively; operands are recursively
// parsed as Values. Whitespace around operands is tolerated.
func Parse(s string) (Opcode, error) {
	s = strings.TrimSpace(s)
	name := s
	inner := ""
	if lp := strings.IndexByte(s, '('); lp >= 0 {
		if !strings.HasSuffix(s, ")") {
			return Opcode{}, fmt.Errorf("isa: unterminated operand list: %q", s)
		}
		name = strings.TrimSpace(s[:lp])
		inner = s[lp+1 : len(s)-1]
	}

	tag, ok := namesToTag[strings.ToLower(name)]
	if !ok {
		return Opcode{}, fmt.Errorf("isa: unknown mnemonic: %q", name)
	}

	var operands []Value
	if strings.TrimSpace(inner) != "" {
		for _, part := range strings.Split(inner, ",") {
			v, err := ParseValue(part)
			if err != nil {
				return Opcode{}, err
			}
			operands = append(operands, v)
		}
	}

	want := wantOperands(tag)
	if len(operands) != want {
		return Opcode{}, fmt.Errorf("isa: %s wants %d operand(s), got %d", tag, want, len(operands))
	}

	o := Opcode{Tag: tag}
	switch len(operands) {
	case 1:
		o.A = operands[0]
	case 2:
		o.A, o.B = operands[0], operands[1]
	case 3:
		o.A, o.B, o.C = operands[0], operands[1], operands[2]
	}
	return o, nil
}

func wantOperands(tag Tag) int {
	switch tag {
	case TagHalt, TagRet, TagNoop:
		return 0
	case TagPush, TagPop, TagJmp, TagCall, TagOut, TagIn:
		return 1
	case TagSet, TagJt, TagJf, TagNot, TagRmem, TagWmem:
		return 2
	case TagEq, TagGt, TagAdd, TagMult, TagMod, TagAnd, TagOr:
		return 3
	default:
		return 0
	}
}

// TagFromWord maps a raw memory word to its opcode tag, failing if the
// word is not a valid tag in 0..=21 (spec.md §7's decode error).
func TagFromWord(w Word) (Tag, error) {
	if w > 255 {
		return 0, fmt.Errorf("isa: %w: tag %d", ErrUnknownTag, w)
	}
	t := Tag(w)
	if !t.InDomain() {
		return 0, fmt.Errorf("isa: %w: tag %d", ErrUnknownTag, w)
	}
	return t, nil
}

// ErrUnknownTag is returned when a memory word does not name one of the
// 22 defined opcodes.
var ErrUnknownTag = errors.New("unknown opcode tag")
