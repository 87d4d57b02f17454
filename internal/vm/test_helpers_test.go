package vm_test

import (
	"context"
	"strings"
	"testing"

	"dlvm/internal/bytecode"
	"dlvm/internal/vm"
)

func mustParse(t *testing.T, lines ...string) *bytecode.Program {
	t.Helper()
	prog, err := bytecode.Parse("test.dlb", []byte(strings.Join(lines, "\n")))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return prog
}

// runProgram runs lines to completion with stdin as input.
func runProgram(t *testing.T, stdin string, opts vm.Options, lines ...string) (*vm.VM, *vm.VMError) {
	t.Helper()
	if opts.Runtime == nil {
		opts.Runtime = vm.NewTestRuntime(stdin)
	}
	machine := vm.New(mustParse(t, lines...), opts)
	return machine, machine.Run(context.Background())
}

// mustRun runs lines and returns the rendered result.
func mustRun(t *testing.T, stdin string, lines ...string) string {
	t.Helper()
	machine, vmErr := runProgram(t, stdin, vm.Options{}, lines...)
	if vmErr != nil {
		t.Fatalf("unexpected runtime error: %v", vmErr)
	}
	if !machine.Halted() {
		t.Fatalf("status = %s, want halted", machine.Status())
	}
	return machine.Result()
}

var factorialProgram = []string{
	"PUSH STACK_UNIT",
	"UNARY READ",
	"MK_CLOSURE fact 0",
	"APPLY",
	"HALT",
	"FUNCTION fact",
	"LOOKUP STACK_LOCATION -2",
	"PUSH STACK_INT 1",
	"OPER LT",
	"TEST recurse",
	"PUSH STACK_INT 1",
	"RETURN",
	"LABEL recurse",
	"LOOKUP STACK_LOCATION -2",
	"LOOKUP STACK_LOCATION -2",
	"PUSH STACK_INT 1",
	"OPER SUB",
	"LOOKUP STACK_LOCATION -1",
	"APPLY",
	"OPER MUL",
	"RETURN",
}
