package vm

import (
	"fmt"
	"strconv"
	"strings"

	"dlvm/internal/bytecode"
)

// BreakpointKind distinguishes breakpoint types.
type BreakpointKind uint8

const (
	// BKIP stops before a given instruction index.
	BKIP BreakpointKind = iota
	// BKLabel stops before the LABEL or FUNCTION declaring a name.
	BKLabel
)

// Breakpoint is a debugger stop condition.
type Breakpoint struct {
	ID    int
	Kind  BreakpointKind
	IP    int
	Label string
}

// Summary returns "#1 cp=4" or "#2 label:loop (cp=7)".
func (bp *Breakpoint) Summary() string {
	if bp == nil {
		return "<nil>"
	}
	switch bp.Kind {
	case BKIP:
		return fmt.Sprintf("#%d cp=%d", bp.ID, bp.IP)
	case BKLabel:
		return fmt.Sprintf("#%d label:%s (cp=%d)", bp.ID, bp.Label, bp.IP)
	default:
		return fmt.Sprintf("#%d <unknown>", bp.ID)
	}
}

// Breakpoints is an ordered breakpoint set.
type Breakpoints struct {
	nextID int
	list   []*Breakpoint
}

func NewBreakpoints() *Breakpoints {
	return &Breakpoints{nextID: 1}
}

// Add parses spec as an instruction index or a label of prog.
func (bps *Breakpoints) Add(prog *bytecode.Program, spec string) (*Breakpoint, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("empty breakpoint spec")
	}
	if n, err := strconv.Atoi(spec); err == nil {
		if n < 0 || n >= prog.Len() {
			return nil, fmt.Errorf("cp %d outside program of %d instruction(s)", n, prog.Len())
		}
		return bps.add(&Breakpoint{Kind: BKIP, IP: n}), nil
	}
	ip, ok := prog.Lookup(spec)
	if !ok {
		return nil, fmt.Errorf("unknown label %q", spec)
	}
	return bps.add(&Breakpoint{Kind: BKLabel, IP: ip, Label: spec}), nil
}

func (bps *Breakpoints) add(bp *Breakpoint) *Breakpoint {
	bp.ID = bps.nextID
	bps.nextID++
	bps.list = append(bps.list, bp)
	return bp
}

// Delete removes a breakpoint by id.
func (bps *Breakpoints) Delete(id int) bool {
	if bps == nil || id <= 0 {
		return false
	}
	for i, bp := range bps.list {
		if bp.ID == id {
			bps.list = append(bps.list[:i], bps.list[i+1:]...)
			return true
		}
	}
	return false
}

// List returns a copy of the breakpoints in creation order.
func (bps *Breakpoints) List() []*Breakpoint {
	if bps == nil || len(bps.list) == 0 {
		return nil
	}
	return append([]*Breakpoint(nil), bps.list...)
}

// Match returns the first breakpoint at ip.
func (bps *Breakpoints) Match(ip int) (*Breakpoint, bool) {
	if bps == nil {
		return nil, false
	}
	for _, bp := range bps.list {
		if bp.IP == ip {
			return bp, true
		}
	}
	return nil, false
}
