package vm

import "github.com/synacor-challenge/vm/isa"

// StopCondition is the injected predicate RunUntil consults before each
// Step. Implementations never embed engine logic in RunUntil itself; they
// are composed purely by injection (spec.md §9 "Stop conditions").
type StopCondition interface {
	ShouldStop(vm *VM) (bool, error)
}

// stepObserver is an optional refinement implemented by stop conditions
// that need to inspect each executed instruction to maintain their own
// state (UntilReturn's call depth, InstructionBudget's remaining count).
// RunUntil calls it after every successful Step.
type stepObserver interface {
	afterStep(op isa.Opcode)
}

// Never never stops; RunUntil under it runs until Step itself fails or
// halts.
type Never struct{}

func (Never) ShouldStop(*VM) (bool, error) { return false, nil }

// StatesIn stops once the VM's state is one of the given states.
type StatesIn struct {
	States []State
}

func (s StatesIn) ShouldStop(vm *VM) (bool, error) {
	for _, want := range s.States {
		if vm.state == want {
			return true, nil
		}
	}
	return false, nil
}

// UntilReturn counts Call as +1 and Ret as -1 across executed
// instructions, stopping once the Ret that returns to the original call
// depth has executed.
type UntilReturn struct {
	depth   int
	stopped bool
}

func (u *UntilReturn) ShouldStop(*VM) (bool, error) { return u.stopped, nil }

func (u *UntilReturn) afterStep(op isa.Opcode) {
	switch op.Tag {
	case isa.TagCall:
		u.depth++
	case isa.TagRet:
		u.depth--
		if u.depth <= 0 {
			u.stopped = true
		}
	}
}

// InstructionBudget stops after N successful steps have executed.
type InstructionBudget struct {
	Remaining int
}

func (b *InstructionBudget) ShouldStop(*VM) (bool, error) {
	return b.Remaining <= 0, nil
}

func (b *InstructionBudget) afterStep(isa.Opcode) {
	b.Remaining--
}
