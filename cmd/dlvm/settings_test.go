package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"dlvm/internal/heap"
	"dlvm/internal/tier"
)

func newTestCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "t", RunE: func(*cobra.Command, []string) error { return nil }}
	cmd.Flags().String("verbosity", "output", "")
	cmd.Flags().String("trace", "", "")
	cmd.Flags().String("trace-level", "", "")
	addEngineFlags(cmd)
	return cmd
}

func TestParseVerbosity(t *testing.T) {
	for _, s := range []string{"debug", "output", "time", "quiet", "statistics"} {
		v, err := parseVerbosity(s)
		if err != nil || v.String() != s {
			t.Errorf("parseVerbosity(%q) = %v, %v", s, v, err)
		}
	}
	if v, _ := parseVerbosity(""); v != verbosityOutput {
		t.Error("empty verbosity should default to output")
	}
	if _, err := parseVerbosity("loud"); err == nil {
		t.Error("expected error")
	}
	if verbosityTime.printsResult() || !verbosityTime.printsTiming() || verbosityQuiet.printsErrors() {
		t.Error("verbosity predicates")
	}
}

func TestResolveSettingsPrecedence(t *testing.T) {
	dir := t.TempDir()
	toml := "[run]\nverbosity = \"time\"\nmemory = \"mark-and-sweep\"\ntier-threshold = 4\ncache = true\n" +
		"[trace]\noutput = \"trace.ndjson\"\n"
	if err := os.WriteFile(filepath.Join(dir, "dlvm.toml"), []byte(toml), 0o600); err != nil {
		t.Fatal(err)
	}
	prog := filepath.Join(dir, "p.dlb")

	cmd := newTestCommand()
	if err := cmd.ParseFlags([]string{"--memory", "none", "--tier", "counting"}); err != nil {
		t.Fatal(err)
	}
	s, err := resolveSettings(cmd, prog)
	if err != nil {
		t.Fatal(err)
	}
	if s.Verbosity != verbosityTime {
		t.Errorf("verbosity = %s, want time from file", s.Verbosity)
	}
	if s.Memory != heap.PolicyNone {
		t.Errorf("memory = %s, want flag value none", s.Memory)
	}
	if s.Tier != tier.PolicyCounting || s.TierThreshold != 4 || !s.Cache {
		t.Errorf("settings = %+v", s)
	}
	if s.TraceOutput != "trace.ndjson" || s.TraceLevel != "phase" {
		t.Errorf("trace = %q at %q", s.TraceOutput, s.TraceLevel)
	}
	if s.ConfigPath == "" {
		t.Error("config path not recorded")
	}
}

func TestResolveSettingsBadValue(t *testing.T) {
	cmd := newTestCommand()
	if err := cmd.ParseFlags([]string{"--memory", "refcount"}); err != nil {
		t.Fatal(err)
	}
	if _, err := resolveSettings(cmd, filepath.Join(t.TempDir(), "p.dlb")); err == nil {
		t.Error("expected error for unknown memory policy")
	}
}

func TestUIMode(t *testing.T) {
	for in, want := range map[string]uiMode{"": uiAuto, "AUTO": uiAuto, "on": uiOn, " off ": uiOff} {
		got, err := parseUIMode(in)
		if err != nil || got != want {
			t.Errorf("parseUIMode(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := parseUIMode("maybe"); err == nil {
		t.Error("expected error for unknown --ui value")
	}

	plain, err := os.Create(filepath.Join(t.TempDir(), "out"))
	if err != nil {
		t.Fatal(err)
	}
	defer plain.Close()
	if uiAuto.wantsTUI(plain) {
		t.Error("auto should not pick the TUI when a stream is a plain file")
	}
	if !uiOn.wantsTUI(plain) || uiOff.wantsTUI() {
		t.Error("explicit modes should ignore the streams")
	}
	if !uiAuto.wantsTUI() {
		t.Error("auto with no required streams should pick the TUI")
	}
}
