package vm

import (
	"errors"
	"strconv"

	"fortio.org/safecast"

	"dlvm/internal/bytecode"
	"dlvm/internal/heap"
	"dlvm/internal/trace"
	"dlvm/internal/value"
)

// safepoint gives the memory policy a chance to collect before an allocation.
// The allocating instruction's operands are still on the stack, so they are
// rooted.
func (vm *VM) safepoint() {
	before := vm.Mem.Stats()
	if !vm.Mem.Collect(vm.stack) {
		return
	}
	after := vm.Mem.Stats()
	trace.Point(vm.Events, trace.ScopeHeap, "collect", "", map[string]string{
		"cp":    strconv.Itoa(vm.ip),
		"freed": strconv.FormatUint(after.Frees-before.Frees, 10),
		"live":  strconv.Itoa(after.Live),
	})
}

// alloc stores it on the heap. The caller has not touched the stack yet, so a
// failed allocation leaves the VM as it was.
func (vm *VM) alloc(what string, it value.Item) (value.Handle, *VMError) {
	h, err := vm.Mem.Alloc(it)
	switch {
	case err == nil:
		return h, nil
	case errors.Is(err, heap.ErrExhausted):
		return 0, vm.eb.heapExhausted(what, err)
	default:
		return 0, vm.eb.heapFault(err)
	}
}

// loadHeader follows a HeapIndex and checks the header tag.
func (vm *VM) loadHeader(what string, ptr value.Item, want ...value.Tag) (value.Item, *VMError) {
	if ptr.Tag != value.HeapIndex {
		return value.Item{}, vm.eb.typeMismatch(what, "HeapIndex", ptr)
	}
	obj, err := vm.Mem.Load(ptr.Ptr)
	if err != nil {
		return value.Item{}, vm.eb.heapFault(err)
	}
	for _, t := range want {
		if obj.Tag == t {
			return obj, nil
		}
	}
	expected := want[0].String()
	if len(want) > 1 {
		expected += " or " + want[1].String()
	}
	return value.Item{}, vm.eb.typeMismatch(what, "a pointer to "+expected, obj)
}

func (vm *VM) execMkPair() *VMError {
	if vmErr := vm.require("MK_PAIR", 2); vmErr != nil {
		return vmErr
	}
	vm.safepoint()
	h, vmErr := vm.alloc("MK_PAIR", value.MakePair(vm.peek(1), vm.peek(0)))
	if vmErr != nil {
		return vmErr
	}
	vm.drop(2)
	vm.push(value.MakeHeapIndex(h))
	return nil
}

func (vm *VM) execProject(what string, idx int) *VMError {
	if vmErr := vm.require(what, 1); vmErr != nil {
		return vmErr
	}
	pair, vmErr := vm.loadHeader(what, vm.peek(0), value.PairHeader)
	if vmErr != nil {
		return vmErr
	}
	vm.replaceTop(pair.Body[idx])
	return nil
}

func (vm *VM) execMkSum(what string, mk func(value.Item) value.Item) *VMError {
	if vmErr := vm.require(what, 1); vmErr != nil {
		return vmErr
	}
	vm.safepoint()
	h, vmErr := vm.alloc(what, mk(vm.peek(0)))
	if vmErr != nil {
		return vmErr
	}
	vm.replaceTop(value.MakeHeapIndex(h))
	return nil
}

func (vm *VM) execCase(in *bytecode.Instr) *VMError {
	if vmErr := vm.require("CASE", 1); vmErr != nil {
		return vmErr
	}
	sum, vmErr := vm.loadHeader("CASE", vm.peek(0), value.InlHeader, value.InrHeader)
	if vmErr != nil {
		return vmErr
	}
	if sum.Tag == value.InrHeader {
		if in.Target == bytecode.NoTarget {
			return vm.eb.undefinedLabel(in.Label)
		}
		vm.replaceTop(sum.Body[0])
		vm.ip = in.Target
		return nil
	}
	vm.replaceTop(sum.Body[0])
	vm.ip++
	return nil
}

// execMkClosure pops n captures; the first popped becomes body[1].
func (vm *VM) execMkClosure(in *bytecode.Instr) *VMError {
	if in.Target == bytecode.NoTarget {
		return vm.eb.undefinedLabel(in.Label)
	}
	code, err := safecast.Conv[int32](in.Target)
	if err != nil {
		return vm.eb.overflow("closure code index", err)
	}
	n := int(in.Int)
	if vmErr := vm.require("MK_CLOSURE", n); vmErr != nil {
		return vmErr
	}
	vm.safepoint()
	captures := make([]value.Item, n)
	for i := range captures {
		captures[i] = vm.peek(i)
	}
	h, vmErr := vm.alloc("MK_CLOSURE", value.MakeClosure(code, captures))
	if vmErr != nil {
		return vmErr
	}
	vm.drop(n)
	vm.push(value.MakeHeapIndex(h))
	return nil
}

func (vm *VM) execLookup(in *bytecode.Instr) *VMError {
	k := int(in.Int)
	switch in.Mem {
	case bytecode.MemStack:
		idx := vm.fp + k
		if idx < 0 || idx >= len(vm.stack) {
			return vm.eb.outOfBounds("STACK_LOCATION", idx, len(vm.stack))
		}
		vm.push(vm.stack[idx])
		return nil

	case bytecode.MemHeap:
		slot := vm.fp - 1
		if slot < 0 || slot >= len(vm.stack) {
			return vm.eb.outOfBounds("closure slot", slot, len(vm.stack))
		}
		closure, vmErr := vm.loadHeader("LOOKUP HEAP_LOCATION", vm.stack[slot], value.ClosureHeader)
		if vmErr != nil {
			return vmErr
		}
		if k < 0 || k >= len(closure.Body) {
			return vm.eb.outOfBounds("HEAP_LOCATION", k, len(closure.Body))
		}
		vm.push(closure.Body[k])
		return nil

	default:
		return vm.eb.invalidInstruction("unknown memory kind " + in.Mem.String())
	}
}

func (vm *VM) execMkRef() *VMError {
	if vmErr := vm.require("MK_REF", 1); vmErr != nil {
		return vmErr
	}
	vm.safepoint()
	h, vmErr := vm.alloc("MK_REF", vm.peek(0))
	if vmErr != nil {
		return vmErr
	}
	vm.replaceTop(value.MakeHeapRef(h))
	return nil
}

func (vm *VM) execDeref() *VMError {
	if vmErr := vm.require("DEREF", 1); vmErr != nil {
		return vmErr
	}
	ref := vm.peek(0)
	if ref.Tag != value.HeapRef {
		return vm.eb.typeMismatch("DEREF", "HeapRef", ref)
	}
	v, err := vm.Mem.Load(ref.Ptr)
	if err != nil {
		return vm.eb.heapFault(err)
	}
	vm.replaceTop(v)
	return nil
}

// execAssign writes through the reference; every alias of it sees the value.
func (vm *VM) execAssign() *VMError {
	if vmErr := vm.require("ASSIGN", 2); vmErr != nil {
		return vmErr
	}
	v := vm.peek(0)
	ref := vm.peek(1)
	if ref.Tag != value.HeapRef {
		return vm.eb.typeMismatch("ASSIGN", "HeapRef", ref)
	}
	if err := vm.Mem.Store(ref.Ptr, v); err != nil {
		return vm.eb.heapFault(err)
	}
	vm.drop(2)
	vm.push(value.MakeUnit())
	return nil
}
