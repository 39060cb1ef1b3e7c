// Package analysis lifts a raw memory image into structured functions by
// following intraprocedural control flow from an entry address.
package analysis

import (
	"fmt"
	"sort"

	"github.com/synacor-challenge/vm/codec"
	"github.com/synacor-challenge/vm/isa"
)

// Function is a contiguous range of addresses together with the ordered
// instructions the extractor discovered are reachable from its entry by
// fall-through and intraprocedural branch edges.
type Function struct {
	Start        int
	End          int
	Instructions []codec.Instruction
}

// PrettyPrint renders the function as one mnemonic per line, each prefixed
// with its address, in the style of the debugger's disassembly listings.
func (f Function) PrettyPrint() string {
	s := ""
	for _, in := range f.Instructions {
		s += fmt.Sprintf("%5d: %s\n", in.Addr, in.Op)
	}
	return s
}

// successors computes the set of addresses the instruction at addr can
// transfer control to other than via an incoming Call, per the traversal
// rule in spec.md §4.D: Halt and Ret have none; Call only falls through
// (callees are separate functions); everything else falls through plus any
// statically knowable branch targets.
func successors(addr int, op isa.Opcode) []int {
	switch op.Tag {
	case isa.TagHalt, isa.TagRet:
		return nil
	case isa.TagCall:
		return []int{addr + op.Size()}
	default:
		next := []int{addr + op.Size()}
		for _, target := range op.BranchTargets() {
			n, ok := target.Number()
			if !ok {
				continue
			}
			next = append(next, int(n))
		}
		return next
	}
}

// Extract discovers the function reachable from entry in memory by
// breadth-first traversal of fall-through and intraprocedural branch
// edges, per spec.md §4.D. It fails if the discovered instructions do not
// cover a contiguous address range with no gaps.
func Extract(memory []isa.Word, entry int) (Function, error) {
	explored := make(map[int]codec.Instruction)
	worklist := []int{entry}
	seen := map[int]bool{entry: true}

	for len(worklist) > 0 {
		addr := worklist[0]
		worklist = worklist[1:]

		op, err := codec.Fetch(memory, addr)
		if err != nil {
			return Function{}, fmt.Errorf("analysis: extracting from %d: fetch at %d: %w", entry, addr, err)
		}
		explored[addr] = codec.Instruction{Addr: addr, Op: op}

		for _, next := range successors(addr, op) {
			if !seen[next] {
				seen[next] = true
				worklist = append(worklist, next)
			}
		}
	}

	instructions := make([]codec.Instruction, 0, len(explored))
	for _, in := range explored {
		instructions = append(instructions, in)
	}
	sort.Slice(instructions, func(i, j int) bool {
		return instructions[i].Addr < instructions[j].Addr
	})

	fn := Function{
		Start:        instructions[0].Addr,
		End:          instructions[len(instructions)-1].Addr,
		Instructions: instructions,
	}
	if err := fn.checkContiguous(); err != nil {
		return Function{}, err
	}
	return fn, nil
}

// checkContiguous verifies the §3 Function invariant: the assembled words
// of the instruction sequence exactly cover [start, end+size(last)) with
// no gaps, i.e. every instruction begins exactly where the previous one's
// words end.
func (f Function) checkContiguous() error {
	want := f.Start
	for _, in := range f.Instructions {
		if in.Addr != want {
			return fmt.Errorf("analysis: non-contiguous control flow: expected instruction at %d, next discovered instruction is at %d (gap)", want, in.Addr)
		}
		want += in.Op.Size()
	}
	return nil
}
