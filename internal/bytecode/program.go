package bytecode

import (
	"sort"
	"strconv"
	"strings"
)

// NoTarget is the Target of an instruction whose label is not declared.
const NoTarget = -1

// Instr is one decoded instruction. Only the operand fields used by Op are set.
type Instr struct {
	Op     Op       `msgpack:"op"`
	Lit    LitKind  `msgpack:"lit,omitempty"`
	Unary  UnaryOp  `msgpack:"un,omitempty"`
	Binary BinaryOp `msgpack:"bin,omitempty"`
	Mem    MemKind  `msgpack:"mem,omitempty"`
	// Int holds the PUSH literal, the MK_CLOSURE capture count or the LOOKUP offset.
	Int   int32  `msgpack:"int,omitempty"`
	Label string `msgpack:"label,omitempty"`
	// Target is the index Label resolves to, or NoTarget.
	Target int `msgpack:"target"`
	// Line is the 1-based source line.
	Line int `msgpack:"line"`
}

// String renders the instruction back to its text form.
func (in Instr) String() string {
	var sb strings.Builder
	sb.WriteString(in.Op.String())
	switch in.Op {
	case OpPush:
		sb.WriteByte(' ')
		sb.WriteString(in.Lit.String())
		switch in.Lit {
		case LitBool:
			if in.Int != 0 {
				sb.WriteString(" true")
			} else {
				sb.WriteString(" false")
			}
		case LitInt:
			sb.WriteByte(' ')
			sb.WriteString(strconv.FormatInt(int64(in.Int), 10))
		}
	case OpUnary:
		sb.WriteByte(' ')
		sb.WriteString(in.Unary.String())
	case OpOper:
		sb.WriteByte(' ')
		sb.WriteString(in.Binary.String())
	case OpLookup:
		sb.WriteByte(' ')
		sb.WriteString(in.Mem.String())
		sb.WriteByte(' ')
		sb.WriteString(strconv.FormatInt(int64(in.Int), 10))
	case OpMkClosure:
		sb.WriteByte(' ')
		sb.WriteString(in.Label)
		sb.WriteByte(' ')
		sb.WriteString(strconv.FormatInt(int64(in.Int), 10))
	case OpCase, OpGoto, OpTest, OpLabel, OpFunction:
		sb.WriteByte(' ')
		sb.WriteString(in.Label)
	}
	return sb.String()
}

// Program is a decoded bytecode program. It is immutable once loaded.
type Program struct {
	Name   string         `msgpack:"name"`
	Instrs []Instr        `msgpack:"instrs"`
	Labels map[string]int `msgpack:"labels"`
}

// Len returns the number of instruction slots, placeholders included.
func (p *Program) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Instrs)
}

// At returns the instruction at ip.
func (p *Program) At(ip int) (*Instr, bool) {
	if p == nil || ip < 0 || ip >= len(p.Instrs) {
		return nil, false
	}
	return &p.Instrs[ip], true
}

// Lookup resolves a label name.
func (p *Program) Lookup(label string) (int, bool) {
	ip, ok := p.Labels[label]
	return ip, ok
}

// LabelAt returns the label declared at ip, if any.
func (p *Program) LabelAt(ip int) string {
	in, ok := p.At(ip)
	if !ok {
		return ""
	}
	if in.Op == OpLabel || in.Op == OpFunction {
		return in.Label
	}
	return ""
}

// UnresolvedRef is an instruction naming a label that is never declared.
type UnresolvedRef struct {
	IP    int
	Line  int
	Op    Op
	Label string
}

// Unresolved lists references to undeclared labels in program order.
// Such references only fail when the instruction executes.
func (p *Program) Unresolved() []UnresolvedRef {
	var out []UnresolvedRef
	for ip := range p.Instrs {
		in := &p.Instrs[ip]
		if in.Op.HasLabel() && in.Target == NoTarget {
			out = append(out, UnresolvedRef{IP: ip, Line: in.Line, Op: in.Op, Label: in.Label})
		}
	}
	return out
}

// SortedLabels returns the label names ordered by the index they declare.
func (p *Program) SortedLabels() []string {
	names := make([]string, 0, len(p.Labels))
	for name := range p.Labels {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return p.Labels[names[i]] < p.Labels[names[j]]
	})
	return names
}

func (p *Program) resolve() {
	for ip := range p.Instrs {
		in := &p.Instrs[ip]
		if !in.Op.HasLabel() {
			in.Target = NoTarget
			continue
		}
		if target, ok := p.Labels[in.Label]; ok {
			in.Target = target
		} else {
			in.Target = NoTarget
		}
	}
}
