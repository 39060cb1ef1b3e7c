// Command synacorvm is a minimal non-interactive driver over the vm
// engine: it loads a binary image, runs it to completion or the next
// input request, feeds it a line of stdin whenever it asks, and prints
// whatever output the program flushed. It is not a REPL: no subcommands,
// no breakpoint prompt, no command history.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/synacor-challenge/vm/vm"
)

var instructionBudget = flag.Int("budget", 0, "Stop after this many instructions (0 disables the budget).")

func main() {
	log.SetFlags(0)
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatalf("usage: synacorvm [-budget N] <image-file>")
	}

	image, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		log.Fatalf("reading image: %v", err)
	}

	machine := vm.New()
	if err := machine.Load(image); err != nil {
		log.Fatalf("loading image: %v", err)
	}

	stdin := bufio.NewScanner(os.Stdin)
	if err := run(machine, stdin); err != nil {
		log.Fatalf("running: %v", err)
	}
}

// run drives machine to completion, feeding it stdin lines whenever it
// suspends waiting for input, and printing every flushed message.
func run(machine *vm.VM, stdin *bufio.Scanner) error {
	stop := stopCondition()
	printed := 0
	for {
		if err := machine.RunUntil(stop); err != nil {
			// Under a budget, RunUntil reports the input wait as a failed
			// step; that suspension is handled below like any other.
			if !errors.Is(err, vm.ErrNotRunning) || machine.State() != vm.WaitingForInput {
				return err
			}
		}

		messages := machine.Messages()
		for ; printed < len(messages); printed++ {
			fmt.Print(messages[printed])
		}

		switch machine.State() {
		case vm.Halted:
			return nil
		case vm.WaitingForInput:
			if !stdin.Scan() {
				return nil
			}
			if err := machine.Feed(stdin.Text()); err != nil {
				return fmt.Errorf("feeding input: %w", err)
			}
		default:
			return nil
		}
	}
}

func stopCondition() vm.StopCondition {
	if *instructionBudget > 0 {
		return &vm.InstructionBudget{Remaining: *instructionBudget}
	}
	return vm.StatesIn{States: []vm.State{vm.Halted, vm.WaitingForInput, vm.AtBreakpoint}}
}
