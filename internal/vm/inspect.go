package vm

import (
	"fmt"
	"io"
	"strconv"

	"dlvm/internal/value"
)

// Inspector prints VM state for the debugger.
type Inspector struct {
	vm  *VM
	out io.Writer
}

func NewInspector(vm *VM, out io.Writer) *Inspector {
	return &Inspector{vm: vm, out: out}
}

// Where prints the next instruction and the frame registers.
func (i *Inspector) Where() {
	fmt.Fprintf(i.out, "cp=%d fp=%d depth=%d status=%s\n", i.vm.ip, i.vm.fp, len(i.vm.stack), i.vm.status) //nolint:errcheck
	if in, ok := i.vm.Prog.At(i.vm.ip); ok {
		fmt.Fprintf(i.out, "  next: %s (line %d)\n", in, in.Line) //nolint:errcheck
	}
}

// Stack prints the operand stack top first, marking the frame slots.
func (i *Inspector) Stack() {
	fmt.Fprintln(i.out, "stack:") //nolint:errcheck
	for idx := len(i.vm.stack) - 1; idx >= 0; idx-- {
		marker := "  "
		switch idx {
		case i.vm.fp:
			marker = "fp"
		case i.vm.fp - 1:
			marker = "cl"
		}
		fmt.Fprintf(i.out, "  %s %3d: %s\n", marker, idx, FormatItem(i.vm.Mem, i.vm.stack[idx])) //nolint:errcheck
	}
}

// Heap prints one slot, or the allocation counters when spec is empty.
func (i *Inspector) Heap(spec string) {
	if spec == "" {
		st := i.vm.Mem.Stats()
		fmt.Fprintf(i.out, "heap: policy=%s live=%d peak=%d allocs=%d frees=%d collections=%d\n", //nolint:errcheck
			i.vm.Mem.Policy(), st.Live, st.PeakLive, st.Allocs, st.Frees, st.Collections)
		return
	}
	n, err := strconv.ParseUint(spec, 10, 32)
	if err != nil {
		fmt.Fprintf(i.out, "error: invalid handle %q\n", spec) //nolint:errcheck
		return
	}
	h := value.Handle(n)
	obj, err := i.vm.Mem.Load(h)
	if err != nil {
		fmt.Fprintf(i.out, "error: %v\n", err) //nolint:errcheck
		return
	}
	fmt.Fprintf(i.out, "#%d = %s\n", h, FormatItem(i.vm.Mem, obj)) //nolint:errcheck
}

// Labels prints the label table in program order.
func (i *Inspector) Labels() {
	fmt.Fprintln(i.out, "labels:") //nolint:errcheck
	for _, name := range i.vm.Prog.SortedLabels() {
		fmt.Fprintf(i.out, "  %-16s cp=%d\n", name, i.vm.Prog.Labels[name]) //nolint:errcheck
	}
}
