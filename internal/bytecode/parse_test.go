package bytecode

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseInstructions(t *testing.T) {
	src := strings.Join([]string{
		"PUSH STACK_INT 2",
		"PUSH STACK_BOOL true",
		"PUSH STACK_UNIT",
		"UNARY NEG",
		"OPER DIV",
		"LOOKUP HEAP_LOCATION 1",
		"MK_CLOSURE body 2",
		"FUNCTION body",
		"RETURN",
	}, "\n")
	prog, err := Parse("t.dlb", []byte(src))
	if err != nil {
		t.Fatal(err)
	}
	want := []Instr{
		{Op: OpPush, Lit: LitInt, Int: 2, Target: NoTarget, Line: 1},
		{Op: OpPush, Lit: LitBool, Int: 1, Target: NoTarget, Line: 2},
		{Op: OpPush, Lit: LitUnit, Target: NoTarget, Line: 3},
		{Op: OpUnary, Unary: UnNeg, Target: NoTarget, Line: 4},
		{Op: OpOper, Binary: BinDiv, Target: NoTarget, Line: 5},
		{Op: OpLookup, Mem: MemHeap, Int: 1, Target: NoTarget, Line: 6},
		{Op: OpMkClosure, Label: "body", Int: 2, Target: 7, Line: 7},
		{Op: OpFunction, Label: "body", Target: 7, Line: 8},
		{Op: OpReturn, Target: NoTarget, Line: 9},
	}
	if diff := cmp.Diff(want, prog.Instrs); diff != "" {
		t.Errorf("instructions mismatch (-want +got):\n%s", diff)
	}
	if ip, ok := prog.Lookup("body"); !ok || ip != 7 {
		t.Errorf("Lookup(body) = %d, %v", ip, ok)
	}
	if got := prog.LabelAt(7); got != "body" {
		t.Errorf("LabelAt(7) = %q", got)
	}
}

func TestParseBlankLinesKeepIndices(t *testing.T) {
	src := "PUSH STACK_INT 1\n\nLABEL l\r\nHALT\n"
	prog, err := Parse("", []byte(src))
	if err != nil {
		t.Fatal(err)
	}
	if prog.Len() != 4 {
		t.Fatalf("Len = %d, want 4", prog.Len())
	}
	if prog.Instrs[1].Op != OpInvalid {
		t.Errorf("line 2 = %s, want placeholder", prog.Instrs[1].Op)
	}
	if ip, _ := prog.Lookup("l"); ip != 2 {
		t.Errorf("label l at %d, want 2", ip)
	}
}

func TestParseWrapsIntLiterals(t *testing.T) {
	prog, err := Parse("", []byte("PUSH STACK_INT 2147483648\nPUSH STACK_INT -2147483649"))
	if err != nil {
		t.Fatal(err)
	}
	if got := prog.Instrs[0].Int; got != math.MinInt32 {
		t.Errorf("2^31 parsed as %d", got)
	}
	if got := prog.Instrs[1].Int; got != math.MaxInt32 {
		t.Errorf("-2^31-1 parsed as %d", got)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
		msg  string
	}{
		{"unknown opcode", "PUSH STACK_INT 1\nJUMP x", 2, "unknown opcode"},
		{"bad bool", "PUSH STACK_BOOL yes", 1, "malformed boolean"},
		{"bad int", "PUSH STACK_INT 1x", 1, "malformed integer"},
		{"missing kind", "PUSH", 1, "literal kind"},
		{"extra operand", "HALT now", 1, "expects 0 operand"},
		{"unknown unary", "UNARY SQRT", 1, "unknown unary"},
		{"unknown binary", "OPER MOD", 1, "unknown binary"},
		{"bad memory kind", "LOOKUP GLOBAL 0", 1, "unknown memory kind"},
		{"negative captures", "MK_CLOSURE f -1", 1, "negative capture"},
		{"duplicate label", "LABEL a\nHALT\nFUNCTION a", 3, "duplicate label"},
		{"lowercase mnemonic", "halt", 1, "unknown opcode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("p", []byte(tt.src))
			var le *LoadError
			if !errors.As(err, &le) {
				t.Fatalf("err = %v, want *LoadError", err)
			}
			if le.Line != tt.line {
				t.Errorf("line = %d, want %d", le.Line, tt.line)
			}
			if !strings.Contains(le.Msg, tt.msg) {
				t.Errorf("msg = %q, want substring %q", le.Msg, tt.msg)
			}
		})
	}
}

func TestUndefinedLabelIsNotALoadError(t *testing.T) {
	prog, err := Parse("", []byte("GOTO nowhere\nHALT"))
	if err != nil {
		t.Fatalf("undefined label rejected at load time: %v", err)
	}
	refs := prog.Unresolved()
	want := []UnresolvedRef{{IP: 0, Line: 1, Op: OpGoto, Label: "nowhere"}}
	if diff := cmp.Diff(want, refs); diff != "" {
		t.Errorf("Unresolved mismatch (-want +got):\n%s", diff)
	}
}

func TestInstrStringRoundTrip(t *testing.T) {
	lines := []string{
		"PUSH STACK_INT -5",
		"PUSH STACK_BOOL false",
		"PUSH STACK_UNIT",
		"UNARY READ",
		"OPER EQ",
		"LOOKUP STACK_LOCATION -2",
		"MK_CLOSURE f 0",
		"CASE right",
		"TEST done",
		"ASSIGN",
	}
	prog, err := Parse("", []byte(strings.Join(lines, "\n")))
	if err != nil {
		t.Fatal(err)
	}
	for i, in := range prog.Instrs {
		if got := in.String(); got != lines[i] {
			t.Errorf("String() = %q, want %q", got, lines[i])
		}
	}
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.dlb")
	bad := filepath.Join(dir, "bad.dlb")
	missing := filepath.Join(dir, "missing.dlb")
	if err := os.WriteFile(good, []byte("PUSH STACK_INT 1\nHALT\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bad, []byte("BOGUS\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	results, err := LoadFiles(context.Background(), []string{good, bad, missing}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Err != nil || results[0].Program.Len() != 2 {
		t.Errorf("good: %+v", results[0])
	}
	var le *LoadError
	if !errors.As(results[1].Err, &le) {
		t.Errorf("bad: err = %v, want *LoadError", results[1].Err)
	}
	if !errors.Is(results[2].Err, os.ErrNotExist) {
		t.Errorf("missing: err = %v, want ErrNotExist", results[2].Err)
	}
}

func TestLoadFilesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := LoadFiles(ctx, []string{"a", "b"}, 1)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestLoadFilesNotify(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "p.dlb")
	if err := os.WriteFile(path, []byte("HALT\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	var started, finished int
	_, err := LoadFilesNotify(context.Background(), []string{path}, 1, func(p string, res *FileResult) {
		if res == nil {
			started++
			return
		}
		finished++
		if res.Err != nil || res.Path != p {
			t.Errorf("result = %+v", res)
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	if started != 1 || finished != 1 {
		t.Errorf("started=%d finished=%d", started, finished)
	}
}
