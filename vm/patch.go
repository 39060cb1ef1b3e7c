package vm

import "github.com/synacor-challenge/vm/isa"

// patchHandler emulates the observable effect of a designated Call target
// in native Go. It may read and write registers and memory; it must not
// touch the stack or ip, since the caller (execute's Call dispatch)
// performs the matching push/pop itself to preserve the un-patched
// observable contract (spec.md §4.E "Semantic patching hook").
type patchHandler func(vm *VM)

// patchTable maps a Call target address to its native handler. It is a
// plain map, not a type hierarchy, per spec.md §9's "Patching hook
// polymorphism" note: the set of patches is open-ended as more of the
// target binary gets reverse-engineered, so new entries are added here
// rather than via new types.
var patchTable = map[int]patchHandler{
	3:    patchSentinel,
	2125: patchXor,
	6027: patchAckermann,
}

// patchSentinel returns a fixed register-0 value for the designated
// sentinel address.
func patchSentinel(vm *VM) {
	vm.registers[0] = 20
}

// patchXor is the native equivalent of the two-operand bitwise function at
// address 2125: Push/Push/And/Not/Or/And/Pop/Pop/Ret, which computes
// (r0|r1) & ~(r0&r1) — register-width XOR — and writes it to register 0.
func patchXor(vm *VM) {
	r0, r1 := vm.registers[0], vm.registers[1]
	vm.registers[0] = (r0 ^ r1) & (isa.MemSize - 1)
}

// ackermannMemo caches results of the Ackermann-like recursion at address
// 6027, keyed by the three architectural inputs (r0, r1, r7). The recursion
// is exponential in r0 without memoization, which is the entire reason the
// patching hook exists for this address.
var ackermannMemo = make(map[[3]isa.Word]isa.Word)

// patchAckermann is the native equivalent of the three-argument
// Ackermann-like recursion at address 6027, memoized by (r0, r1, r7).
func patchAckermann(vm *VM) {
	r0, r1, r7 := vm.registers[0], vm.registers[1], vm.registers[7]
	vm.registers[0] = ackermann(r0, r1, r7)
}

func ackermann(r0, r1, r7 isa.Word) isa.Word {
	key := [3]isa.Word{r0, r1, r7}
	if v, ok := ackermannMemo[key]; ok {
		return v
	}

	var result isa.Word
	switch {
	case r0 == 0:
		result = (r1 + 1) % isa.MemSize
	case r1 == 0:
		result = ackermann((r0-1)%isa.MemSize, r7, r7)
	default:
		inner := ackermann(r0, (r1-1)%isa.MemSize, r7)
		result = ackermann((r0-1)%isa.MemSize, inner, r7)
	}

	ackermannMemo[key] = result
	return result
}
