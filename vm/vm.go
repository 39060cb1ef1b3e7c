// Package vm implements the Synacor Challenge fetch-decode-execute engine:
// architectural state, stepping, snapshotting, and the debug surface built
// on top of it (breakpoints, memory scan, tracing, semantic patching).
package vm

import (
	"fmt"

	"github.com/synacor-challenge/vm/codec"
	"github.com/synacor-challenge/vm/isa"
)

// State is the engine's coarse execution state.
type State int

const (
	Running State = iota
	Halted
	WaitingForInput
	AtBreakpoint
)

func (s State) String() string {
	switch s {
	case Running:
		return "Running"
	case Halted:
		return "Halted"
	case WaitingForInput:
		return "WaitingForInput"
	case AtBreakpoint:
		return "AtBreakpoint"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// TraceEntry records one executed instruction selected by the trace mask.
// Resolved is only set for a Call through a register operand; it holds the
// concrete Call(Immediate(...)) that was actually taken.
type TraceEntry struct {
	Addr     int
	Op       isa.Opcode
	Resolved *isa.Opcode
}

// VM is the architectural state machine: memory, registers, stack, ip, and
// the debug-surface state layered on top (breakpoints, scan shadow, trace
// log, semantic-patch toggle). It is constructed empty, populated once by
// Load, then mutated only by Step/RunUntil/Feed and the debug surface.
type VM struct {
	memory    [isa.MemSize]isa.Word
	registers [isa.NumRegisters]isa.Word
	stack     []isa.Word

	ip    int
	pc    uint64
	state State

	output []byte
	input  []byte

	messages []string

	breakpoints map[int]struct{}

	scanShadow []isa.Word
	scanActive bool
	scanLive   map[int]struct{}

	traceMask uint32
	trace     []TraceEntry

	fnPatching bool
}

// New returns an empty, unloaded VM. Call Load before stepping it.
func New() *VM {
	return &VM{
		breakpoints: make(map[int]struct{}),
		state:       Running,
	}
}

// Load decodes raw as a little-endian word stream and installs it at
// address 0, zero-filling the remainder of memory. It resets registers,
// stack, ip, pc, state, and the output/input/message/trace buffers;
// breakpoints, the trace mask, the memory-scan state and the
// semantic-patching toggle are left as they were.
func (vm *VM) Load(raw []byte) error {
	words, err := codec.LoadImage(raw, isa.MemSize)
	if err != nil {
		return fmt.Errorf("vm: load: %w", err)
	}

	copy(vm.memory[:], words)
	vm.registers = [isa.NumRegisters]isa.Word{}
	vm.stack = nil
	vm.ip = 0
	vm.pc = 0
	vm.state = Running
	vm.output = nil
	vm.input = nil
	vm.messages = nil
	vm.trace = nil
	return nil
}

// State reports the engine's current coarse state.
func (vm *VM) State() State { return vm.state }

// IP returns the current instruction pointer.
func (vm *VM) IP() int { return vm.ip }

// PC returns the number of instructions successfully executed so far. It
// is diagnostic only and excluded from snapshot equality.
func (vm *VM) PC() uint64 { return vm.pc }

// Messages returns the accumulated flushed output lines, one per flush
// (on suspension for input, and on halt).
func (vm *VM) Messages() []string { return vm.messages }

// Register returns the contents of register r. It panics if r is out of
// range; callers at the architectural boundary validate via isa.Value.
func (vm *VM) Register(r uint8) isa.Word { return vm.registers[r] }

// SetRegister writes register r directly, bypassing instruction semantics.
// Intended for the debug surface and semantic patches.
func (vm *VM) SetRegister(r uint8, v isa.Word) { vm.registers[r] = v }

// Memory returns a read-only view of the full 32768-word memory image.
func (vm *VM) Memory() [isa.MemSize]isa.Word { return vm.memory }

// MemoryAt returns the word at addr. It fails if addr is out of range.
func (vm *VM) MemoryAt(addr int) (isa.Word, error) {
	if addr < 0 || addr >= isa.MemSize {
		return 0, fmt.Errorf("vm: memory address %d out of range", addr)
	}
	return vm.memory[addr], nil
}

// SetMemoryAt writes memory[addr] directly. It fails if addr is out of range.
func (vm *VM) SetMemoryAt(addr int, w isa.Word) error {
	if addr < 0 || addr >= isa.MemSize {
		return fmt.Errorf("vm: memory address %d out of range", addr)
	}
	vm.memory[addr] = w
	return nil
}

// StackDepth returns the number of words currently on the call/data stack.
func (vm *VM) StackDepth() int { return len(vm.stack) }

// Clone returns a deep, value-equal snapshot of vm, independently
// executable with no aliasing to the original.
func (vm *VM) Clone() *VM {
	out := &VM{
		memory:     vm.memory,
		registers:  vm.registers,
		stack:      append([]isa.Word(nil), vm.stack...),
		ip:         vm.ip,
		pc:         vm.pc,
		state:      vm.state,
		output:     append([]byte(nil), vm.output...),
		input:      append([]byte(nil), vm.input...),
		messages:   append([]string(nil), vm.messages...),
		fnPatching: vm.fnPatching,
	}
	out.breakpoints = make(map[int]struct{}, len(vm.breakpoints))
	for addr := range vm.breakpoints {
		out.breakpoints[addr] = struct{}{}
	}
	if vm.scanActive {
		out.scanActive = true
		out.scanShadow = append([]isa.Word(nil), vm.scanShadow...)
		out.scanLive = make(map[int]struct{}, len(vm.scanLive))
		for addr := range vm.scanLive {
			out.scanLive[addr] = struct{}{}
		}
	}
	// trace is transient analysis state, not part of the snapshot.
	return out
}

// Equal reports whether vm and other have equivalent observational state:
// memory, registers, stack, ip, state, output, and input. It ignores pc, trace,
// breakpoints, and the scan shadow, which are purely diagnostic/analysis
// state per the Function/VM lifecycle contract.
func (vm *VM) Equal(other *VM) bool {
	if vm.memory != other.memory || vm.registers != other.registers {
		return false
	}
	if vm.ip != other.ip || vm.state != other.state {
		return false
	}
	if len(vm.stack) != len(other.stack) {
		return false
	}
	for i := range vm.stack {
		if vm.stack[i] != other.stack[i] {
			return false
		}
	}
	if string(vm.output) != string(other.output) {
		return false
	}
	if string(vm.input) != string(other.input) {
		return false
	}
	return true
}
