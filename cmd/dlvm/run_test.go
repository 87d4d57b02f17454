package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"dlvm/internal/bytecode"
	"dlvm/internal/heap"
	"dlvm/internal/tier"
	"dlvm/internal/trace"
)

const readDoubleProgram = `PUSH STACK_UNIT
UNARY READ
LOOKUP STACK_LOCATION 2
OPER ADD
HALT
`

func writeProgram(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "p.dlb")
	if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func defaultSettings(v verbosity) settings {
	return settings{Verbosity: v, Memory: heap.PolicyNone, Tier: tier.PolicyNone}
}

func execProgram(t *testing.T, src, stdin string, s settings, eio engineIO) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	std := streams{in: strings.NewReader(stdin), out: &out, err: &errOut}
	err := execute(context.Background(), writeProgram(t, src), s, eio, trace.Nop, std)
	return out.String(), errOut.String(), err
}

func outputLines(s string) []string {
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}

func TestExecuteOutput(t *testing.T) {
	out, _, err := execProgram(t, "PUSH STACK_INT 2\nPUSH STACK_INT 3\nOPER ADD\nHALT\n", "", defaultSettings(verbosityOutput), engineIO{})
	if err != nil {
		t.Fatal(err)
	}
	lines := outputLines(out)
	if len(lines) != 2 {
		t.Fatalf("output = %q, want timing and result", out)
	}
	if !strings.HasSuffix(lines[0], " us") || !strings.Contains(lines[0], " s ") {
		t.Errorf("timing line = %q", lines[0])
	}
	if lines[1] != "5" {
		t.Errorf("result = %q, want 5", lines[1])
	}
}

func TestExecuteVerbosityModes(t *testing.T) {
	src := "PUSH STACK_INT 7\nHALT\n"

	out, _, err := execProgram(t, src, "", defaultSettings(verbosityTime), engineIO{})
	if err != nil {
		t.Fatal(err)
	}
	if lines := outputLines(out); len(lines) != 1 || !strings.HasSuffix(lines[0], " us") {
		t.Errorf("time output = %q", out)
	}

	out, _, err = execProgram(t, src, "", defaultSettings(verbosityQuiet), engineIO{})
	if err != nil || out != "" {
		t.Errorf("quiet output = %q, err = %v", out, err)
	}

	out, _, err = execProgram(t, src, "", defaultSettings(verbosityDebug), engineIO{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "cp = 0\nstack = [") || !strings.HasSuffix(out, "\n7\n") {
		t.Errorf("debug output = %q", out)
	}
}

func TestExecuteStatistics(t *testing.T) {
	color.NoColor = true
	s := defaultSettings(verbosityStatistics)
	s.Memory = heap.PolicyMarkSweep
	s.Tier = tier.PolicyCounting
	s.TierThreshold = 1
	out, errOut, err := execProgram(t, readDoubleProgram, "21\n", s, engineIO{})
	if err != nil {
		t.Fatal(err)
	}
	if lines := outputLines(out); lines[len(lines)-1] != "42" {
		t.Errorf("output = %q", out)
	}
	for _, want := range []string{"mark-and-sweep", "counting", "timings:", "load", "run"} {
		if !strings.Contains(errOut, want) {
			t.Errorf("report missing %q:\n%s", want, errOut)
		}
	}
}

func TestExecuteRuntimeError(t *testing.T) {
	src := "PUSH STACK_INT 1\nPUSH STACK_INT 0\nOPER DIV\nHALT\n"

	out, _, err := execProgram(t, src, "", defaultSettings(verbosityOutput), engineIO{})
	if err != nil {
		t.Fatalf("runtime error must not fail the command: %v", err)
	}
	if out != "Runtime error at cp = 2\n" {
		t.Errorf("output = %q", out)
	}

	out, _, err = execProgram(t, src, "", defaultSettings(verbosityQuiet), engineIO{})
	if err != nil || out != "" {
		t.Errorf("quiet output = %q, err = %v", out, err)
	}
}

func TestExecuteLoadError(t *testing.T) {
	_, _, err := execProgram(t, "PUSH STACK_INT 1\nJUMP x\n", "", defaultSettings(verbosityOutput), engineIO{})
	var le *bytecode.LoadError
	if !errors.As(err, &le) || le.Line != 2 {
		t.Fatalf("err = %v, want load error on line 2", err)
	}
}

func TestExecuteRecordReplay(t *testing.T) {
	log := filepath.Join(t.TempDir(), "run.ndjson")
	out, _, err := execProgram(t, readDoubleProgram, "4\n", defaultSettings(verbosityOutput), engineIO{record: log})
	if err != nil {
		t.Fatal(err)
	}
	if lines := outputLines(out); lines[len(lines)-1] != "8" {
		t.Fatalf("recorded run output = %q", out)
	}

	out, _, err = execProgram(t, readDoubleProgram, "", defaultSettings(verbosityOutput), engineIO{replay: log})
	if err != nil {
		t.Fatal(err)
	}
	if lines := outputLines(out); lines[len(lines)-1] != "8" {
		t.Errorf("replayed run output = %q", out)
	}

	_, _, err = execProgram(t, readDoubleProgram, "", defaultSettings(verbosityOutput), engineIO{record: log, replay: log})
	if err == nil {
		t.Error("record with replay should be rejected")
	}
}

func TestReplayFromOtherBuildWarns(t *testing.T) {
	color.NoColor = true
	log := filepath.Join(t.TempDir(), "run.ndjson")
	if _, _, err := execProgram(t, readDoubleProgram, "4\n", defaultSettings(verbosityOutput), engineIO{record: log}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(log)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"engine":"`+engineName()+`"`) {
		t.Fatalf("log header lacks engine %q:\n%s", engineName(), data)
	}
	data = []byte(strings.Replace(string(data), engineName(), "dlvm 0.0.1", 1))
	if err := os.WriteFile(log, data, 0o600); err != nil {
		t.Fatal(err)
	}

	out, errOut, err := execProgram(t, readDoubleProgram, "", defaultSettings(verbosityStatistics), engineIO{replay: log})
	if err != nil {
		t.Fatal(err)
	}
	if lines := outputLines(out); lines[len(lines)-1] != "8" {
		t.Errorf("replayed run output = %q", out)
	}
	if !strings.Contains(errOut, `warning: replay log was recorded by "dlvm 0.0.1"`) {
		t.Errorf("missing engine warning:\n%s", errOut)
	}
	var hdr struct {
		Run string `json:"run"`
	}
	if err := json.Unmarshal([]byte(strings.SplitN(string(data), "\n", 2)[0]), &hdr); err != nil {
		t.Fatal(err)
	}
	if hdr.Run == "" || !strings.Contains(errOut, hdr.Run) {
		t.Errorf("statistics report does not name run %q:\n%s", hdr.Run, errOut)
	}
}

func TestLoadProgramCacheClear(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	path := writeProgram(t, "PUSH STACK_INT 1\nHALT\n")
	s := defaultSettings(verbosityOutput)
	s.Cache = true
	ctx := context.Background()

	for i, want := range []string{"parsed", "cache hit"} {
		_, note, err := loadProgram(ctx, path, s, trace.Nop)
		if err != nil {
			t.Fatal(err)
		}
		if note != want {
			t.Errorf("load %d: note = %q, want %q", i, note, want)
		}
	}

	s.CacheClear = true
	_, note, err := loadProgram(ctx, path, s, trace.Nop)
	if err != nil {
		t.Fatal(err)
	}
	if note != "parsed" {
		t.Errorf("after clearing: note = %q, want parsed", note)
	}
}

func TestWriteCheckReport(t *testing.T) {
	color.NoColor = true
	dir := t.TempDir()
	good := filepath.Join(dir, "good.dlb")
	if err := os.WriteFile(good, []byte("GOTO nowhere\nHALT\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	results, err := bytecode.LoadFiles(context.Background(), []string{good, filepath.Join(dir, "missing.dlb")}, 1)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if failed := writeCheckReport(&buf, results); failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
	out := buf.String()
	for _, want := range []string{
		good + ": ok (2 instructions)",
		good + `:1: warning: undefined label "nowhere"`,
		"error: failed to read program",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestVersionJSON(t *testing.T) {
	var buf bytes.Buffer
	err := renderVersionJSON(&buf, buildInfo{Version: "1.2.3"}, versionOptions{format: "json", showHash: true})
	if err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, `"tool": "dlvm"`) || !strings.Contains(out, `"git_commit": "unknown"`) {
		t.Errorf("json = %s", out)
	}
	if strings.Contains(out, "build_date") {
		t.Errorf("unrequested field present: %s", out)
	}
}
