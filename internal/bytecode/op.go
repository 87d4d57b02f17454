// Package bytecode decodes the line-oriented bytecode text into a closed
// instruction set and a label table.
package bytecode

import "fmt"

// Op is a decoded opcode. The set is closed: every mnemonic the loader accepts
// maps to exactly one Op and the engine switches over all of them.
type Op uint8

const (
	// OpInvalid marks a blank placeholder line. Executing it is a runtime error.
	OpInvalid Op = iota
	OpPush
	OpUnary
	OpOper
	OpMkPair
	OpFst
	OpSnd
	OpMkInl
	OpMkInr
	OpCase
	OpMkClosure
	OpApply
	OpLookup
	OpReturn
	OpSwap
	OpPop
	OpLabel
	OpFunction
	OpGoto
	OpTest
	OpDeref
	OpMkRef
	OpAssign
	OpHalt

	numOps
)

// NumOps is the number of opcodes including OpInvalid.
const NumOps = int(numOps)

var opNames = [numOps]string{
	OpInvalid:   "",
	OpPush:      "PUSH",
	OpUnary:     "UNARY",
	OpOper:      "OPER",
	OpMkPair:    "MK_PAIR",
	OpFst:       "FST",
	OpSnd:       "SND",
	OpMkInl:     "MK_INL",
	OpMkInr:     "MK_INR",
	OpCase:      "CASE",
	OpMkClosure: "MK_CLOSURE",
	OpApply:     "APPLY",
	OpLookup:    "LOOKUP",
	OpReturn:    "RETURN",
	OpSwap:      "SWAP",
	OpPop:       "POP",
	OpLabel:     "LABEL",
	OpFunction:  "FUNCTION",
	OpGoto:      "GOTO",
	OpTest:      "TEST",
	OpDeref:     "DEREF",
	OpMkRef:     "MK_REF",
	OpAssign:    "ASSIGN",
	OpHalt:      "HALT",
}

var opByName = func() map[string]Op {
	m := make(map[string]Op, len(opNames))
	for op, name := range opNames {
		if name != "" {
			m[name] = Op(op) //nolint:gosec // G115: op < numOps.
		}
	}
	return m
}()

// String returns the mnemonic, or "<blank>" for the placeholder.
func (o Op) String() string {
	if o == OpInvalid {
		return "<blank>"
	}
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", o)
}

// LookupOp maps a mnemonic to its Op.
func LookupOp(mnemonic string) (Op, bool) {
	op, ok := opByName[mnemonic]
	return op, ok
}

// IsTransfer reports whether the op may set the instruction pointer itself.
func (o Op) IsTransfer() bool {
	switch o {
	case OpApply, OpReturn, OpGoto, OpTest, OpCase:
		return true
	default:
		return false
	}
}

// HasLabel reports whether the op names a label operand.
func (o Op) HasLabel() bool {
	switch o {
	case OpCase, OpMkClosure, OpGoto, OpTest, OpLabel, OpFunction:
		return true
	default:
		return false
	}
}

// LitKind selects the literal pushed by PUSH.
type LitKind uint8

const (
	LitUnit LitKind = iota + 1
	LitBool
	LitInt
)

func (k LitKind) String() string {
	switch k {
	case LitUnit:
		return "STACK_UNIT"
	case LitBool:
		return "STACK_BOOL"
	case LitInt:
		return "STACK_INT"
	default:
		return fmt.Sprintf("LitKind(%d)", k)
	}
}

// UnaryOp is the operator of UNARY.
type UnaryOp uint8

const (
	UnNot UnaryOp = iota + 1
	UnNeg
	UnRead
)

func (u UnaryOp) String() string {
	switch u {
	case UnNot:
		return "NOT"
	case UnNeg:
		return "NEG"
	case UnRead:
		return "READ"
	default:
		return fmt.Sprintf("UnaryOp(%d)", u)
	}
}

// BinaryOp is the operator of OPER.
type BinaryOp uint8

const (
	BinAnd BinaryOp = iota + 1
	BinOr
	BinEq
	BinLt
	BinAdd
	BinSub
	BinMul
	BinDiv
)

var binaryNames = map[BinaryOp]string{
	BinAnd: "AND",
	BinOr:  "OR",
	BinEq:  "EQ",
	BinLt:  "LT",
	BinAdd: "ADD",
	BinSub: "SUB",
	BinMul: "MUL",
	BinDiv: "DIV",
}

func (b BinaryOp) String() string {
	if s, ok := binaryNames[b]; ok {
		return s
	}
	return fmt.Sprintf("BinaryOp(%d)", b)
}

// MemKind is the location space of LOOKUP.
type MemKind uint8

const (
	MemStack MemKind = iota + 1
	MemHeap
)

func (m MemKind) String() string {
	switch m {
	case MemStack:
		return "STACK_LOCATION"
	case MemHeap:
		return "HEAP_LOCATION"
	default:
		return fmt.Sprintf("MemKind(%d)", m)
	}
}
