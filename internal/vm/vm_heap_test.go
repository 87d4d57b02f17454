package vm_test

import (
	"testing"

	"dlvm/internal/heap"
	"dlvm/internal/trace"
	"dlvm/internal/vm"
)

// churn allocates n short-lived pairs, keeping only a running Int.
func churn(n int) []string {
	lines := []string{"PUSH STACK_INT 0"}
	for i := 0; i < n; i++ {
		lines = append(lines,
			"PUSH STACK_INT 1",
			"PUSH STACK_INT 2",
			"MK_PAIR",
			"SND",
			"OPER ADD",
		)
	}
	return append(lines, "HALT")
}

func TestMarkSweepReclaimsGarbage(t *testing.T) {
	mem := heap.NewMarkSweep(8)
	ring := trace.NewRingTracer(64, trace.LevelDebug)
	machine, vmErr := runProgram(t, "", vm.Options{Memory: mem, Events: ring}, churn(50)...)
	if vmErr != nil {
		t.Fatal(vmErr)
	}
	if got := machine.Result(); got != "100" {
		t.Errorf("result = %s, want 100", got)
	}
	st := mem.Stats()
	if st.Collections == 0 || st.Frees == 0 {
		t.Errorf("no collection happened: %+v", st)
	}
	if mem.Limit() != 8 {
		t.Errorf("limit grew to %d for a program with no live garbage", mem.Limit())
	}
	collects := 0
	for _, ev := range ring.Snapshot() {
		if ev.Name == "collect" {
			collects++
		}
	}
	if collects == 0 {
		t.Error("no collect trace points")
	}
}

func TestMarkSweepKeepsRootedAliases(t *testing.T) {
	lines := []string{"PUSH STACK_INT 7", "MK_REF"}
	garbage := churn(20)
	lines = append(lines, garbage[:len(garbage)-1]...)
	lines = append(lines, "POP", "DEREF", "HALT")
	mem := heap.NewMarkSweep(4)
	machine, vmErr := runProgram(t, "", vm.Options{Memory: mem}, lines...)
	if vmErr != nil {
		t.Fatal(vmErr)
	}
	if got := machine.Result(); got != "7" {
		t.Errorf("rooted reference lost: result = %s", got)
	}
}

func TestNoReclaimMatchesMarkSweep(t *testing.T) {
	for _, p := range []heap.Policy{heap.PolicyNone, heap.PolicyAmortized, heap.PolicyMarkSweep} {
		mem, err := heap.New(p, 4)
		if err != nil {
			t.Fatal(err)
		}
		machine, vmErr := runProgram(t, "6\n", vm.Options{Memory: mem}, factorialProgram...)
		if vmErr != nil {
			t.Fatalf("%s: %v", p, vmErr)
		}
		if got := machine.Result(); got != "720" {
			t.Errorf("%s: fact(6) = %s", p, got)
		}
	}
}

func TestFixedHeapExhausted(t *testing.T) {
	mem, err := heap.New(heap.PolicyNone, 2)
	if err != nil {
		t.Fatal(err)
	}
	machine, vmErr := runProgram(t, "", vm.Options{Memory: mem}, churn(3)...)
	if vmErr == nil {
		t.Fatalf("result = %s, want a heap exhaustion error", machine.Result())
	}
	// The third MK_PAIR fails with its two operands and the accumulator still
	// on the stack above the outermost frame.
	if vmErr.Code != vm.PanicHeapExhausted || vmErr.IP != 13 || vmErr.Depth != 5 {
		t.Errorf("err = %+v, want VM1013 at cp 13 with depth 5", vmErr)
	}
	if got := len(machine.Stack()); got != 5 {
		t.Errorf("stack depth after failure = %d, want 5", got)
	}
	if st := mem.Stats(); st.Allocs != 2 || st.Live != 2 {
		t.Errorf("stats = %+v", st)
	}

	grown, err := heap.New(heap.PolicyAmortized, 2)
	if err != nil {
		t.Fatal(err)
	}
	machine, vmErr = runProgram(t, "", vm.Options{Memory: grown}, churn(3)...)
	if vmErr != nil {
		t.Fatal(vmErr)
	}
	if got := machine.Result(); got != "6" {
		t.Errorf("amortized result = %s, want 6", got)
	}
}
