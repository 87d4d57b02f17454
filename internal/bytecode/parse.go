package bytecode

import (
	"fmt"
	"strconv"
	"strings"

	"fortio.org/safecast"

	"dlvm/internal/value"
)

// LoadError reports a malformed program line.
type LoadError struct {
	Path string
	Line int
	Msg  string
}

func (e *LoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
}

// Parse decodes bytecode text. Every line occupies one instruction index so
// that ip N is always line N+1; blank lines become OpInvalid placeholders.
// A single trailing newline does not create a placeholder.
func Parse(name string, src []byte) (*Program, error) {
	text := string(src)
	text = strings.TrimSuffix(text, "\n")
	var lines []string
	if text != "" {
		lines = strings.Split(text, "\n")
	}

	p := &Program{
		Name:   name,
		Instrs: make([]Instr, 0, len(lines)),
		Labels: make(map[string]int),
	}
	for i, raw := range lines {
		lineNo := i + 1
		in, err := parseLine(strings.TrimSuffix(raw, "\r"))
		if err != nil {
			return nil, &LoadError{Path: name, Line: lineNo, Msg: err.Error()}
		}
		in.Line = lineNo
		if in.Op == OpLabel || in.Op == OpFunction {
			if prev, dup := p.Labels[in.Label]; dup {
				return nil, &LoadError{
					Path: name,
					Line: lineNo,
					Msg:  fmt.Sprintf("duplicate label %q (first declared on line %d)", in.Label, prev+1),
				}
			}
			p.Labels[in.Label] = len(p.Instrs)
		}
		p.Instrs = append(p.Instrs, in)
	}
	p.resolve()
	return p, nil
}

func parseLine(line string) (Instr, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Instr{Op: OpInvalid, Target: NoTarget}, nil
	}
	op, ok := LookupOp(fields[0])
	if !ok {
		return Instr{}, fmt.Errorf("unknown opcode %q", fields[0])
	}
	args := fields[1:]
	in := Instr{Op: op, Target: NoTarget}

	switch op {
	case OpPush:
		return parsePush(in, args)

	case OpUnary:
		if err := arity(op, args, 1); err != nil {
			return in, err
		}
		switch args[0] {
		case "NOT":
			in.Unary = UnNot
		case "NEG":
			in.Unary = UnNeg
		case "READ":
			in.Unary = UnRead
		default:
			return in, fmt.Errorf("unknown unary operator %q", args[0])
		}

	case OpOper:
		if err := arity(op, args, 1); err != nil {
			return in, err
		}
		b, ok := binaryByName[args[0]]
		if !ok {
			return in, fmt.Errorf("unknown binary operator %q", args[0])
		}
		in.Binary = b

	case OpLookup:
		if err := arity(op, args, 2); err != nil {
			return in, err
		}
		switch args[0] {
		case "STACK_LOCATION":
			in.Mem = MemStack
		case "HEAP_LOCATION":
			in.Mem = MemHeap
		default:
			return in, fmt.Errorf("unknown memory kind %q", args[0])
		}
		n, err := parseInt32(args[1])
		if err != nil {
			return in, fmt.Errorf("malformed location %q: %w", args[1], err)
		}
		in.Int = n

	case OpMkClosure:
		if err := arity(op, args, 2); err != nil {
			return in, err
		}
		in.Label = args[0]
		n, err := parseInt32(args[1])
		if err != nil {
			return in, fmt.Errorf("malformed capture count %q: %w", args[1], err)
		}
		if n < 0 {
			return in, fmt.Errorf("negative capture count %d", n)
		}
		in.Int = n

	case OpCase, OpGoto, OpTest, OpLabel, OpFunction:
		if err := arity(op, args, 1); err != nil {
			return in, err
		}
		in.Label = args[0]

	case OpMkPair, OpFst, OpSnd, OpMkInl, OpMkInr, OpApply, OpReturn,
		OpSwap, OpPop, OpDeref, OpMkRef, OpAssign, OpHalt:
		if err := arity(op, args, 0); err != nil {
			return in, err
		}

	case OpInvalid, numOps:
		return in, fmt.Errorf("unknown opcode %q", fields[0])
	}
	return in, nil
}

var binaryByName = map[string]BinaryOp{
	"AND": BinAnd,
	"OR":  BinOr,
	"EQ":  BinEq,
	"LT":  BinLt,
	"ADD": BinAdd,
	"SUB": BinSub,
	"MUL": BinMul,
	"DIV": BinDiv,
}

func parsePush(in Instr, args []string) (Instr, error) {
	if len(args) == 0 {
		return in, fmt.Errorf("PUSH expects a literal kind")
	}
	switch args[0] {
	case "STACK_UNIT":
		// The compiler may emit a dummy operand after STACK_UNIT.
		if len(args) > 2 {
			return in, fmt.Errorf("PUSH STACK_UNIT expects at most 1 operand, got %d", len(args)-1)
		}
		in.Lit = LitUnit
	case "STACK_BOOL":
		if len(args) != 2 {
			return in, fmt.Errorf("PUSH STACK_BOOL expects 1 operand, got %d", len(args)-1)
		}
		in.Lit = LitBool
		switch args[1] {
		case "true":
			in.Int = 1
		case "false":
			in.Int = 0
		default:
			return in, fmt.Errorf("malformed boolean literal %q", args[1])
		}
	case "STACK_INT":
		if len(args) != 2 {
			return in, fmt.Errorf("PUSH STACK_INT expects 1 operand, got %d", len(args)-1)
		}
		n, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return in, fmt.Errorf("malformed integer literal %q", args[1])
		}
		in.Lit = LitInt
		in.Int = value.Wrap32(n)
	default:
		return in, fmt.Errorf("unknown literal kind %q", args[0])
	}
	return in, nil
}

func arity(op Op, args []string, want int) error {
	if len(args) != want {
		return fmt.Errorf("%s expects %d operand(s), got %d", op, want, len(args))
	}
	return nil
}

func parseInt32(s string) (int32, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return safecast.Conv[int32](n)
}
