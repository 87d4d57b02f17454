package vm

import (
	"dlvm/internal/bytecode"
	"dlvm/internal/value"
)

// exec runs one decoded instruction. advanceIP is false when the instruction
// set the instruction pointer itself or stopped the VM.
func (vm *VM) exec(in *bytecode.Instr) (advanceIP bool, vmErr *VMError) {
	switch in.Op {
	case bytecode.OpPush:
		vm.execPush(in)
		return true, nil

	case bytecode.OpUnary:
		return true, vm.execUnary(in.Unary)

	case bytecode.OpOper:
		return true, vm.execOper(in.Binary)

	case bytecode.OpMkPair:
		return true, vm.execMkPair()

	case bytecode.OpFst:
		return true, vm.execProject("FST", 0)

	case bytecode.OpSnd:
		return true, vm.execProject("SND", 1)

	case bytecode.OpMkInl:
		return true, vm.execMkSum("MK_INL", value.MakeInl)

	case bytecode.OpMkInr:
		return true, vm.execMkSum("MK_INR", value.MakeInr)

	case bytecode.OpCase:
		return false, vm.execCase(in)

	case bytecode.OpMkClosure:
		return true, vm.execMkClosure(in)

	case bytecode.OpApply:
		return false, vm.execApply()

	case bytecode.OpLookup:
		return true, vm.execLookup(in)

	case bytecode.OpReturn:
		return false, vm.execReturn()

	case bytecode.OpSwap:
		if vmErr := vm.require("SWAP", 2); vmErr != nil {
			return false, vmErr
		}
		n := len(vm.stack)
		vm.stack[n-1], vm.stack[n-2] = vm.stack[n-2], vm.stack[n-1]
		return true, nil

	case bytecode.OpPop:
		if vmErr := vm.require("POP", 1); vmErr != nil {
			return false, vmErr
		}
		vm.drop(1)
		return true, nil

	case bytecode.OpLabel, bytecode.OpFunction:
		return true, nil

	case bytecode.OpGoto:
		if in.Target == bytecode.NoTarget {
			return false, vm.eb.undefinedLabel(in.Label)
		}
		vm.ip = in.Target
		return false, nil

	case bytecode.OpTest:
		return false, vm.execTest(in)

	case bytecode.OpDeref:
		return true, vm.execDeref()

	case bytecode.OpMkRef:
		return true, vm.execMkRef()

	case bytecode.OpAssign:
		return true, vm.execAssign()

	case bytecode.OpHalt:
		vm.status = StatusHalted
		return false, nil

	case bytecode.OpInvalid:
		return false, vm.eb.invalidInstruction("blank line is not an instruction")

	default:
		return false, vm.eb.invalidInstruction("unknown opcode " + in.Op.String())
	}
}

func (vm *VM) push(it value.Item) {
	vm.stack = append(vm.stack, it)
}

// peek returns the item depth slots below the top. Callers check require first.
func (vm *VM) peek(depth int) value.Item {
	return vm.stack[len(vm.stack)-1-depth]
}

func (vm *VM) replaceTop(it value.Item) {
	vm.stack[len(vm.stack)-1] = it
}

func (vm *VM) drop(n int) {
	vm.stack = vm.stack[:len(vm.stack)-n]
}

func (vm *VM) require(what string, n int) *VMError {
	if len(vm.stack) < n {
		return vm.eb.stackUnderflow(what, n, len(vm.stack))
	}
	return nil
}
