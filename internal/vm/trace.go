package vm

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"dlvm/internal/heap"
	"dlvm/internal/value"
)

// maxDumpDepth bounds how far FormatItem follows heap pointers.
const maxDumpDepth = 8

// Tracer prints the machine state before every instruction:
//
//	cp = 3
//	stack = [(FramePointer, 0)
//	   (ReturnAddress, 0)
//	   (HeapIndex, (PairHeader, [(Int, 1), (Int, 2)]))]
type Tracer struct {
	w *bufio.Writer
}

// NewTracer creates a tracer writing to w. Call Flush when done.
func NewTracer(w io.Writer) *Tracer {
	return &Tracer{w: bufio.NewWriter(w)}
}

// TraceStep writes the state the VM is about to execute from.
func (t *Tracer) TraceStep(vm *VM) {
	if t == nil || t.w == nil {
		return
	}
	fmt.Fprintf(t.w, "cp = %d\n", vm.ip) //nolint:errcheck
	t.w.WriteString("stack = [")         //nolint:errcheck
	for i, it := range vm.stack {
		if i > 0 {
			t.w.WriteString("\n   ") //nolint:errcheck
		}
		t.w.WriteString(FormatItem(vm.Mem, it)) //nolint:errcheck
	}
	t.w.WriteString("]\n") //nolint:errcheck
}

// Flush writes buffered output.
func (t *Tracer) Flush() error {
	if t == nil || t.w == nil {
		return nil
	}
	return t.w.Flush()
}

// FormatItem renders an item following heap pointers, so a HeapIndex shows the
// header it points to and a HeapRef shows the referenced value.
func FormatItem(mem heap.Memory, it value.Item) string {
	var sb strings.Builder
	formatItem(&sb, mem, it, 0)
	return sb.String()
}

func formatItem(sb *strings.Builder, mem heap.Memory, it value.Item, depth int) {
	switch {
	case it.Tag.IsPointer():
		sb.WriteByte('(')
		sb.WriteString(it.Tag.String())
		sb.WriteString(", ")
		if depth >= maxDumpDepth || mem == nil {
			fmt.Fprintf(sb, "#%d", it.Ptr)
		} else if obj, err := mem.Load(it.Ptr); err != nil {
			fmt.Fprintf(sb, "#%d <%v>", it.Ptr, err)
		} else {
			formatItem(sb, mem, obj, depth+1)
		}
		sb.WriteByte(')')
	case it.Tag.IsHeader():
		sb.WriteByte('(')
		sb.WriteString(it.Tag.String())
		sb.WriteString(", [")
		for i, b := range it.Body {
			if i > 0 {
				sb.WriteString(", ")
			}
			formatItem(sb, mem, b, depth+1)
		}
		sb.WriteString("])")
	case it.Tag == value.Unknown:
		sb.WriteString("(?)")
	default:
		fmt.Fprintf(sb, "(%s, %d)", it.Tag, it.Val)
	}
}
