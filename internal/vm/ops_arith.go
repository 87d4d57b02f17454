package vm

import (
	"errors"
	"io"
	"strconv"
	"strings"

	"dlvm/internal/bytecode"
	"dlvm/internal/value"
)

func (vm *VM) execPush(in *bytecode.Instr) {
	switch in.Lit {
	case bytecode.LitBool:
		vm.push(value.MakeBool(in.Int != 0))
	case bytecode.LitInt:
		vm.push(value.MakeInt(in.Int))
	default:
		vm.push(value.MakeUnit())
	}
}

func (vm *VM) execUnary(op bytecode.UnaryOp) *VMError {
	what := "UNARY " + op.String()
	if vmErr := vm.require(what, 1); vmErr != nil {
		return vmErr
	}
	a := vm.peek(0)
	switch op {
	case bytecode.UnNot:
		if a.Tag != value.Bool {
			return vm.eb.typeMismatch(what, "Bool", a)
		}
		vm.replaceTop(value.MakeBool(a.Val == 0))
	case bytecode.UnNeg:
		if a.Tag != value.Int {
			return vm.eb.typeMismatch(what, "Int", a)
		}
		vm.replaceTop(value.MakeInt(value.Wrap32(-int64(a.Val))))
	case bytecode.UnRead:
		if a.Tag != value.Unit {
			return vm.eb.typeMismatch(what, "Unit", a)
		}
		n, vmErr := vm.readInt()
		if vmErr != nil {
			return vmErr
		}
		vm.replaceTop(value.MakeInt(n))
	default:
		return vm.eb.invalidInstruction("unknown unary operator " + op.String())
	}
	return nil
}

// readInt reads one input line as a decimal integer wrapped to 32 bits.
func (vm *VM) readInt() (int32, *VMError) {
	line, err := vm.RT.ReadLine()
	if err != nil {
		var re *ReplayError
		if errors.As(err, &re) {
			return 0, vm.eb.makeError(re.Code, re.Msg)
		}
		if errors.Is(err, io.EOF) {
			return 0, vm.eb.badInput("READ: no input line")
		}
		return 0, vm.eb.badInput("READ: " + err.Error())
	}
	n, err := strconv.ParseInt(strings.TrimSpace(line), 10, 64)
	if err != nil {
		return 0, vm.eb.badInput("READ: malformed integer " + strconv.Quote(line))
	}
	return value.Wrap32(n), nil
}

func (vm *VM) execOper(op bytecode.BinaryOp) *VMError {
	what := "OPER " + op.String()
	if vmErr := vm.require(what, 2); vmErr != nil {
		return vmErr
	}
	b := vm.peek(0)
	a := vm.peek(1)

	var res value.Item
	switch op {
	case bytecode.BinAnd, bytecode.BinOr:
		if a.Tag != value.Bool || b.Tag != value.Bool {
			return vm.eb.typeMismatch2(what, "(Bool, Bool)", a, b)
		}
		if op == bytecode.BinAnd {
			res = value.MakeBool(a.Truth() && b.Truth())
		} else {
			res = value.MakeBool(a.Truth() || b.Truth())
		}

	case bytecode.BinEq:
		res = value.MakeBool(value.Equal(a, b))

	case bytecode.BinLt, bytecode.BinAdd, bytecode.BinSub, bytecode.BinMul, bytecode.BinDiv:
		if a.Tag != value.Int || b.Tag != value.Int {
			return vm.eb.typeMismatch2(what, "(Int, Int)", a, b)
		}
		x, y := int64(a.Val), int64(b.Val)
		switch op {
		case bytecode.BinLt:
			res = value.MakeBool(x < y)
		case bytecode.BinAdd:
			res = value.MakeInt(value.Wrap32(x + y))
		case bytecode.BinSub:
			res = value.MakeInt(value.Wrap32(x - y))
		case bytecode.BinMul:
			res = value.MakeInt(value.Wrap32(x * y))
		default:
			if y == 0 {
				return vm.eb.divisionByZero()
			}
			// Truncates toward zero; MinInt32 / -1 wraps back to MinInt32.
			res = value.MakeInt(value.Wrap32(x / y))
		}

	default:
		return vm.eb.invalidInstruction("unknown binary operator " + op.String())
	}
	vm.drop(2)
	vm.push(res)
	return nil
}
