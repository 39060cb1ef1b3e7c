package vm

import (
	"fmt"
	"sort"

	"github.com/synacor-challenge/vm/codec"
	"github.com/synacor-challenge/vm/isa"
)

// AddBreakpoint sets a breakpoint at addr. It is idempotent.
func (vm *VM) AddBreakpoint(addr int) {
	vm.breakpoints[addr] = struct{}{}
}

// RemoveBreakpoint clears a breakpoint at addr. It is idempotent.
func (vm *VM) RemoveBreakpoint(addr int) {
	delete(vm.breakpoints, addr)
}

// Breakpoints lists the current breakpoint set, each rendered via a
// one-instruction disassembly at its address.
func (vm *VM) Breakpoints() ([]codec.Instruction, error) {
	out := make([]codec.Instruction, 0, len(vm.breakpoints))
	for addr := range vm.breakpoints {
		op, err := codec.Fetch(vm.memory[:], addr)
		if err != nil {
			return nil, fmt.Errorf("vm: rendering breakpoint at %d: %w", addr, err)
		}
		out = append(out, codec.Instruction{Addr: addr, Op: op})
	}
	return out, nil
}

// DisassembleAt disassembles the count words of memory starting at addr (or
// up to the end of memory, whichever comes first) and linearly decodes them
// into instructions. It is a thin convenience wrapper over
// codec.DisassembleLinear so callers don't need to slice vm.Memory() first.
func (vm *VM) DisassembleAt(addr, count int) ([]codec.Instruction, error) {
	if addr < 0 || addr >= isa.MemSize {
		return nil, fmt.Errorf("vm: disassemble address %d out of range", addr)
	}
	end := addr + count
	if end > isa.MemSize {
		end = isa.MemSize
	}

	memory := vm.Memory()
	return codec.DisassembleLinear(memory[addr:end], addr)
}

// Comparator is a memory-scan filter comparison operator.
type Comparator int

const (
	CmpEq Comparator = iota
	CmpNe
	CmpGt
	CmpGe
	CmpLt
	CmpLe
)

// ScanInit snapshots all 32768 memory words into the scan shadow and marks
// every address live.
func (vm *VM) ScanInit() {
	vm.scanShadow = append([]isa.Word(nil), vm.memory[:]...)
	vm.scanLive = make(map[int]struct{}, isa.MemSize)
	for addr := 0; addr < isa.MemSize; addr++ {
		vm.scanLive[addr] = struct{}{}
	}
	vm.scanActive = true
}

// ScanFilter narrows the live candidate set to addresses whose current
// memory value satisfies cmp against value. If useInitial is true, value
// is ignored and the comparison is made against the address's value at
// ScanInit time ("same as initial snapshot") instead of the literal.
func (vm *VM) ScanFilter(cmp Comparator, value isa.Word, useInitial bool) error {
	if !vm.scanActive {
		return fmt.Errorf("vm: memory scan not initialized")
	}
	for addr := range vm.scanLive {
		want := value
		if useInitial {
			want = vm.scanShadow[addr]
		}
		if !compareWords(cmp, vm.memory[addr], want) {
			delete(vm.scanLive, addr)
		}
	}
	return nil
}

func compareWords(cmp Comparator, a, b isa.Word) bool {
	switch cmp {
	case CmpEq:
		return a == b
	case CmpNe:
		return a != b
	case CmpGt:
		return a > b
	case CmpGe:
		return a >= b
	case CmpLt:
		return a < b
	case CmpLe:
		return a <= b
	default:
		return false
	}
}

// ScanCandidates lists the addresses that survive the scan filter so far,
// in ascending order.
func (vm *VM) ScanCandidates() []int {
	out := make([]int, 0, len(vm.scanLive))
	for addr := range vm.scanLive {
		out = append(out, addr)
	}
	sort.Ints(out)
	return out
}

// SetTraceMask replaces the opcode-tag bitmask selecting which executed
// instructions are appended to the trace log. Bit k corresponds to the
// opcode tag numbered k.
func (vm *VM) SetTraceMask(mask uint32) {
	vm.traceMask = mask
}

// Trace returns a copy of the accumulated trace log.
func (vm *VM) Trace() []TraceEntry {
	return append([]TraceEntry(nil), vm.trace...)
}

// ClearTrace empties the trace log, bounding its otherwise unbounded
// growth (spec.md §9 "Trace buffer").
func (vm *VM) ClearTrace() {
	vm.trace = nil
}

// SetFnPatching enables or disables the semantic-patching hook consulted
// on every Call.
func (vm *VM) SetFnPatching(enabled bool) {
	vm.fnPatching = enabled
}

// FnPatching reports whether the semantic-patching hook is enabled.
func (vm *VM) FnPatching() bool {
	return vm.fnPatching
}

// Patch assembles op and overwrites memory[addr..addr+size(op)). If the
// opcode previously at addr had a different size, it returns a non-empty
// warning string; the patch is applied regardless.
func (vm *VM) Patch(op isa.Opcode, addr int) (string, error) {
	words, err := codec.Assemble(op)
	if err != nil {
		return "", fmt.Errorf("vm: patch: %w", err)
	}
	if addr < 0 || addr+len(words) > isa.MemSize {
		return "", fmt.Errorf("vm: patch at %d: out of bounds", addr)
	}

	var warning string
	if prev, err := codec.Fetch(vm.memory[:], addr); err == nil && prev.Size() != len(words) {
		warning = fmt.Sprintf("vm: patch at %d replaces a %d-word instruction with a %d-word one", addr, prev.Size(), len(words))
	}

	copy(vm.memory[addr:], words)
	return warning, nil
}
