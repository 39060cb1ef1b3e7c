package vm

import (
	"errors"
	"fmt"

	"github.com/synacor-challenge/vm/codec"
	"github.com/synacor-challenge/vm/isa"
)

var (
	// ErrNotRunning is returned by Step when state != Running.
	ErrNotRunning = errors.New("vm: step requires state Running")
	// ErrEmptyStack is returned by Pop on an empty stack. (Ret on an empty
	// stack halts instead.)
	ErrEmptyStack = errors.New("vm: pop on empty stack")
	// ErrDivideByZero is returned by Mod when the divisor is zero.
	ErrDivideByZero = errors.New("vm: mod by zero")
	// ErrInvalidOperand is returned when an instruction requires a register
	// or immediate but its operand decodes to Invalid or the wrong kind.
	ErrInvalidOperand = errors.New("vm: invalid operand")
	// ErrFeedNotWaiting is returned by Feed outside WaitingForInput, or
	// when input is already non-empty.
	ErrFeedNotWaiting = errors.New("vm: feed requires state WaitingForInput and empty input")
)

// Step requires state Running. If ip is a breakpoint, it transitions to
// AtBreakpoint and fails without executing. Otherwise it fetches at ip,
// advances ip by size(op) before executing, dispatches the instruction,
// and appends a trace entry if the opcode's tag bit is set in the trace
// mask.
func (vm *VM) Step() (int, isa.Opcode, error) {
	if vm.state != Running {
		return 0, isa.Opcode{}, ErrNotRunning
	}

	addr := vm.ip
	if _, ok := vm.breakpoints[addr]; ok {
		vm.state = AtBreakpoint
		return 0, isa.Opcode{}, fmt.Errorf("vm: breakpoint at %d", addr)
	}

	op, err := codec.Fetch(vm.memory[:], addr)
	if err != nil {
		return 0, isa.Opcode{}, fmt.Errorf("vm: decode at %d: %w", addr, err)
	}
	vm.ip = addr + op.Size()

	resolved, err := vm.execute(addr, op)
	if err != nil {
		return 0, isa.Opcode{}, err
	}
	vm.pc++

	if vm.traceMask&(uint32(1)<<op.Tag) != 0 {
		vm.trace = append(vm.trace, TraceEntry{Addr: addr, Op: op, Resolved: resolved})
	}
	return addr, op, nil
}

// val resolves a Value to its numeric contents: the immediate for
// Immediate, the register contents for Register. It fails for Invalid.
func (vm *VM) val(v isa.Value) (isa.Word, error) {
	switch v.Kind {
	case isa.Immediate:
		n, _ := v.Number()
		return n, nil
	case isa.Register:
		r, _ := v.Index()
		return vm.registers[r], nil
	default:
		return 0, fmt.Errorf("%w: %s has no value", ErrInvalidOperand, v)
	}
}

// regIndex resolves a Value that must name a register, failing otherwise.
func (vm *VM) regIndex(v isa.Value) (uint8, error) {
	r, ok := v.Index()
	if !ok {
		return 0, fmt.Errorf("%w: %s is not a register", ErrInvalidOperand, v)
	}
	return r, nil
}

const mod15 = isa.MemSize

// execute dispatches op, whose effects are documented in spec.md §4.E. It
// returns the concrete Call that was actually taken when op is a Call
// through a register target (for trace resolution), whether or not
// fn_patching is enabled; nil otherwise.
func (vm *VM) execute(addr int, op isa.Opcode) (*isa.Opcode, error) {
	switch op.Tag {
	case isa.TagHalt:
		vm.flush()
		vm.state = Halted
		return nil, nil

	case isa.TagSet:
		dst, err := vm.regIndex(op.A)
		if err != nil {
			return nil, err
		}
		src, err := vm.val(op.B)
		if err != nil {
			return nil, err
		}
		vm.registers[dst] = src
		return nil, nil

	case isa.TagPush:
		v, err := vm.val(op.A)
		if err != nil {
			return nil, err
		}
		vm.stack = append(vm.stack, v)
		return nil, nil

	case isa.TagPop:
		dst, err := vm.regIndex(op.A)
		if err != nil {
			return nil, err
		}
		v, err := vm.pop()
		if err != nil {
			return nil, err
		}
		vm.registers[dst] = v
		return nil, nil

	case isa.TagEq:
		return nil, vm.writeCompare(op, func(a, b isa.Word) bool { return a == b })
	case isa.TagGt:
		return nil, vm.writeCompare(op, func(a, b isa.Word) bool { return a > b })

	case isa.TagJmp:
		target, err := vm.val(op.A)
		if err != nil {
			return nil, err
		}
		vm.ip = int(target)
		return nil, nil

	case isa.TagJt:
		cond, err := vm.val(op.A)
		if err != nil {
			return nil, err
		}
		if cond != 0 {
			target, err := vm.val(op.B)
			if err != nil {
				return nil, err
			}
			vm.ip = int(target)
		}
		return nil, nil

	case isa.TagJf:
		cond, err := vm.val(op.A)
		if err != nil {
			return nil, err
		}
		if cond == 0 {
			target, err := vm.val(op.B)
			if err != nil {
				return nil, err
			}
			vm.ip = int(target)
		}
		return nil, nil

	case isa.TagAdd:
		return nil, vm.writeArith(op, func(a, b isa.Word) isa.Word {
			return isa.Word((uint32(a) + uint32(b)) % mod15)
		})
	case isa.TagMult:
		return nil, vm.writeArith(op, func(a, b isa.Word) isa.Word {
			wrapped := uint16(uint32(a) * uint32(b))
			return isa.Word(uint32(wrapped) % mod15)
		})
	case isa.TagMod:
		dst, err := vm.regIndex(op.A)
		if err != nil {
			return nil, err
		}
		a, err := vm.val(op.B)
		if err != nil {
			return nil, err
		}
		b, err := vm.val(op.C)
		if err != nil {
			return nil, err
		}
		if b == 0 {
			return nil, ErrDivideByZero
		}
		vm.registers[dst] = a % b
		return nil, nil
	case isa.TagAnd:
		return nil, vm.writeArith(op, func(a, b isa.Word) isa.Word {
			return isa.Word(uint32(a)&uint32(b)) % mod15
		})
	case isa.TagOr:
		return nil, vm.writeArith(op, func(a, b isa.Word) isa.Word {
			return isa.Word(uint32(a)|uint32(b)) % mod15
		})

	case isa.TagNot:
		dst, err := vm.regIndex(op.A)
		if err != nil {
			return nil, err
		}
		a, err := vm.val(op.B)
		if err != nil {
			return nil, err
		}
		vm.registers[dst] = (^a) & (mod15 - 1)
		return nil, nil

	case isa.TagRmem:
		dst, err := vm.regIndex(op.A)
		if err != nil {
			return nil, err
		}
		addrVal, err := vm.val(op.B)
		if err != nil {
			return nil, err
		}
		word, err := vm.MemoryAt(int(addrVal))
		if err != nil {
			return nil, err
		}
		vm.registers[dst] = word
		return nil, nil

	case isa.TagWmem:
		addrVal, err := vm.val(op.A)
		if err != nil {
			return nil, err
		}
		src, err := vm.val(op.B)
		if err != nil {
			return nil, err
		}
		if err := vm.SetMemoryAt(int(addrVal), src); err != nil {
			return nil, err
		}
		return nil, nil

	case isa.TagCall:
		return vm.call(op)

	case isa.TagRet:
		if len(vm.stack) == 0 {
			vm.flush()
			vm.state = Halted
			return nil, nil
		}
		ret, _ := vm.pop()
		vm.ip = int(ret)
		return nil, nil

	case isa.TagOut:
		v, err := vm.val(op.A)
		if err != nil {
			return nil, err
		}
		vm.output = append(vm.output, byte(v&0xFF))
		return nil, nil

	case isa.TagIn:
		dst, err := vm.regIndex(op.A)
		if err != nil {
			return nil, err
		}
		if len(vm.input) == 0 {
			vm.flush()
			vm.state = WaitingForInput
			vm.ip = addr
			return nil, nil
		}
		vm.registers[dst] = isa.Word(vm.input[0])
		vm.input = vm.input[1:]
		return nil, nil

	case isa.TagNoop:
		return nil, nil

	default:
		return nil, fmt.Errorf("vm: unreachable: unhandled opcode %s", op.Tag)
	}
}

// call executes the Call instruction, honoring the semantic-patching hook
// when enabled (spec.md §4.E "Semantic patching hook" / §9).
func (vm *VM) call(op isa.Opcode) (*isa.Opcode, error) {
	target, err := vm.val(op.A)
	if err != nil {
		return nil, err
	}

	var resolved *isa.Opcode
	if op.A.Kind == isa.Register {
		r := isa.Call(isa.Imm(target))
		resolved = &r
	}

	if vm.fnPatching {
		if handler, ok := patchTable[int(target)]; ok {
			// Push the return address as a real Call would, run the native
			// handler to produce the callee's observable effect, then pop
			// it straight back off in place of the callee's own Ret. Net
			// effect: stack depth unchanged, ip resumes after the Call —
			// observationally equal to the un-patched execution.
			vm.stack = append(vm.stack, isa.Word(vm.ip))
			handler(vm)
			ret, _ := vm.pop()
			vm.ip = int(ret)
			return resolved, nil
		}
	}

	vm.stack = append(vm.stack, isa.Word(vm.ip))
	vm.ip = int(target)
	return resolved, nil
}

func (vm *VM) pop() (isa.Word, error) {
	if len(vm.stack) == 0 {
		return 0, ErrEmptyStack
	}
	top := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return top, nil
}

func (vm *VM) writeArith(op isa.Opcode, f func(a, b isa.Word) isa.Word) error {
	dst, err := vm.regIndex(op.A)
	if err != nil {
		return err
	}
	a, err := vm.val(op.B)
	if err != nil {
		return err
	}
	b, err := vm.val(op.C)
	if err != nil {
		return err
	}
	vm.registers[dst] = f(a, b)
	return nil
}

func (vm *VM) writeCompare(op isa.Opcode, f func(a, b isa.Word) bool) error {
	dst, err := vm.regIndex(op.A)
	if err != nil {
		return err
	}
	a, err := vm.val(op.B)
	if err != nil {
		return err
	}
	b, err := vm.val(op.C)
	if err != nil {
		return err
	}
	if f(a, b) {
		vm.registers[dst] = 1
	} else {
		vm.registers[dst] = 0
	}
	return nil
}

// flush moves the pending output buffer into messages as a single entry,
// clearing output. When output is empty it still records an (empty)
// message, matching the suspend/halt flush contract of §4.E.
func (vm *VM) flush() {
	vm.messages = append(vm.messages, string(vm.output))
	vm.output = nil
}

// Feed requires state WaitingForInput and empty input. It appends line
// plus a trailing newline, character by character, and resumes Running.
func (vm *VM) Feed(line string) error {
	if vm.state != WaitingForInput || len(vm.input) != 0 {
		return ErrFeedNotWaiting
	}
	vm.input = append(vm.input, []byte(line)...)
	vm.input = append(vm.input, '\n')
	vm.state = Running
	return nil
}

// RunUntil iterates Step until stop reports termination. On exit, if state
// is Halted, it flushes any remaining output into messages. It returns an
// error if Step fails for any reason other than reaching a breakpoint or
// a natural halt.
func (vm *VM) RunUntil(stop StopCondition) error {
	for {
		done, err := stop.ShouldStop(vm)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		_, op, err := vm.Step()
		if err != nil {
			if vm.state == AtBreakpoint {
				return nil
			}
			if errors.Is(err, ErrNotRunning) && vm.state == Halted {
				return nil
			}
			return err
		}

		if observer, ok := stop.(stepObserver); ok {
			observer.afterStep(op)
		}
	}
}
