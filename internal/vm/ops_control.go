package vm

import (
	"fortio.org/safecast"

	"dlvm/internal/bytecode"
	"dlvm/internal/value"
)

// execApply calls the closure on top of the stack. After the call the stack
// ends with [... closure FP(caller fp) RA(ip+1)] and fp indexes the FP slot,
// so the closure sits at fp-1 and arguments below it.
func (vm *VM) execApply() *VMError {
	if vmErr := vm.require("APPLY", 1); vmErr != nil {
		return vmErr
	}
	closure, vmErr := vm.loadHeader("APPLY", vm.peek(0), value.ClosureHeader)
	if vmErr != nil {
		return vmErr
	}
	entry := closure.Body[0]
	if entry.Tag != value.CodeIndex {
		return vm.eb.typeMismatch("APPLY", "CodeIndex", entry)
	}
	savedFP, err := safecast.Conv[int32](vm.fp)
	if err != nil {
		return vm.eb.overflow("frame pointer", err)
	}
	ret, err := safecast.Conv[int32](vm.ip + 1)
	if err != nil {
		return vm.eb.overflow("return address", err)
	}
	vm.push(value.MakeFramePointer(savedFP))
	vm.push(value.MakeReturnAddress(ret))
	vm.fp = len(vm.stack) - 2
	vm.ip = int(entry.Val)
	return nil
}

// execReturn pops the result, discards the callee frame down to fp-2 and
// restores the caller's ip and fp from the frame slots.
func (vm *VM) execReturn() *VMError {
	if vmErr := vm.require("RETURN", 1); vmErr != nil {
		return vmErr
	}
	rest := len(vm.stack) - 1
	if vm.fp < 0 || vm.fp+1 >= rest {
		return vm.eb.frameLinkage("frame slots lie outside the stack")
	}
	ra := vm.stack[vm.fp+1]
	if ra.Tag != value.ReturnAddress {
		return vm.eb.frameLinkage("expected ReturnAddress at fp+1, got " + ra.Tag.String())
	}
	saved := vm.stack[vm.fp]
	if saved.Tag != value.FramePointer {
		return vm.eb.frameLinkage("expected FramePointer at fp, got " + saved.Tag.String())
	}
	base := vm.fp - 2
	if base < 0 {
		return vm.eb.frameLinkage("return from the outermost frame")
	}
	result := vm.peek(0)
	vm.stack = vm.stack[:base]
	vm.push(result)
	vm.ip = int(ra.Val)
	vm.fp = int(saved.Val)
	return nil
}

func (vm *VM) execTest(in *bytecode.Instr) *VMError {
	if vmErr := vm.require("TEST", 1); vmErr != nil {
		return vmErr
	}
	cond := vm.peek(0)
	if cond.Tag != value.Bool {
		return vm.eb.typeMismatch("TEST", "Bool", cond)
	}
	if cond.Truth() {
		vm.drop(1)
		vm.ip++
		return nil
	}
	if in.Target == bytecode.NoTarget {
		return vm.eb.undefinedLabel(in.Label)
	}
	vm.drop(1)
	vm.ip = in.Target
	return nil
}
