package vm_test

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"dlvm/internal/vm"
)

func runDebugger(t *testing.T, script string, stdin string, lines ...string) (vm.DebuggerResult, *vm.VMError, string) {
	t.Helper()
	machine := vm.New(mustParse(t, lines...), vm.Options{Runtime: vm.NewTestRuntime(stdin)})
	var out bytes.Buffer
	dbg := vm.NewDebugger(machine, strings.NewReader(script), &out, false)
	res, vmErr := dbg.Run()
	return res, vmErr, out.String()
}

func TestDebuggerBreakAndContinue(t *testing.T) {
	script := strings.Join([]string{
		"break recurse",
		"continue",
		"where",
		"delete 1",
		"list",
		"continue",
	}, "\n")
	res, vmErr, out := runDebugger(t, script, "3\n", factorialProgram...)
	if vmErr != nil {
		t.Fatal(vmErr)
	}
	if !res.Halted || res.Result != "6" {
		t.Fatalf("result = %+v, want halted with 6", res)
	}
	for _, want := range []string{
		"breakpoint #1 label:recurse (cp=12)",
		"stopped at breakpoint #1",
		"cp=12 LABEL recurse",
		"no breakpoints",
		"halted: 6",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestDebuggerStepAndInspect(t *testing.T) {
	script := "step 3\nstack\nheap\nheap 1\nheap 99\nbogus\nquit\n"
	res, vmErr, out := runDebugger(t, script, "",
		"PUSH STACK_INT 1", "PUSH STACK_INT 2", "MK_PAIR", "HALT")
	if vmErr != nil {
		t.Fatal(vmErr)
	}
	if !res.Quit || res.Halted {
		t.Errorf("result = %+v, want quit", res)
	}
	for _, want := range []string{
		"cp=3 HALT",
		"(HeapIndex, (PairHeader, [(Int, 1), (Int, 2)]))",
		"heap: policy=amortized live=1",
		"#1 = (PairHeader, [(Int, 1), (Int, 2)])",
		"error: invalid handle 99",
		`error: unknown command "bogus"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestDebuggerScriptRunsToCompletion(t *testing.T) {
	res, vmErr, _ := runDebugger(t, "break 2\n", "", "PUSH STACK_INT 4", "UNARY NEG", "HALT")
	if vmErr != nil {
		t.Fatal(vmErr)
	}
	if !res.Halted || res.Result != "-4" {
		t.Errorf("result = %+v", res)
	}
}

func TestDebuggerReportsRuntimeError(t *testing.T) {
	_, vmErr, _ := runDebugger(t, "continue\n", "", "PUSH STACK_INT 1", "PUSH STACK_INT 0", "OPER DIV")
	if vmErr == nil || vmErr.Code != vm.PanicDivisionByZero {
		t.Fatalf("err = %v, want VM1003", vmErr)
	}
}

func TestBreakpointsRejectUnknownTargets(t *testing.T) {
	prog := mustParse(t, "LABEL a", "HALT")
	bps := vm.NewBreakpoints()
	if _, err := bps.Add(prog, "b"); err == nil {
		t.Error("unknown label accepted")
	}
	if _, err := bps.Add(prog, "7"); err == nil {
		t.Error("out of range ip accepted")
	}
	bp, err := bps.Add(prog, "1")
	if err != nil {
		t.Fatal(err)
	}
	if got, ok := bps.Match(1); !ok || got.ID != bp.ID {
		t.Errorf("Match(1) = %v, %v", got, ok)
	}
	if !bps.Delete(bp.ID) || bps.Delete(bp.ID) {
		t.Error("Delete should succeed once")
	}
}

type fakeLines struct {
	lines   []string
	prompts []string
}

func (f *fakeLines) ReadLine(prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if len(f.lines) == 0 {
		return "", io.EOF
	}
	line := f.lines[0]
	f.lines = f.lines[1:]
	return line, nil
}

func TestDebuggerInteractiveStopsAtEOF(t *testing.T) {
	machine := vm.New(mustParse(t, "PUSH STACK_INT 1", "PUSH STACK_INT 2", "HALT"), vm.Options{})
	in := &fakeLines{lines: []string{"step", "where"}}
	var out bytes.Buffer
	res, vmErr := vm.NewDebuggerWithReader(machine, in, &out, true).Run()
	if vmErr != nil {
		t.Fatal(vmErr)
	}
	if res.Halted || res.Quit {
		t.Errorf("result = %+v, want an unfinished session", res)
	}
	if machine.IP() != 1 {
		t.Errorf("ip = %d, want 1", machine.IP())
	}
	want := []string{"(vmdb) ", "(vmdb) ", "(vmdb) "}
	if diff := cmp.Diff(want, in.prompts); diff != "" {
		t.Errorf("prompts mismatch (-want +got):\n%s", diff)
	}
}
