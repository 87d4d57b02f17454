package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"off", "error", "phase", "detail", "debug"} {
		l, err := ParseLevel(s)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", s, err)
		}
		if l.String() != s {
			t.Errorf("round trip %q -> %q", s, l)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestLevelFiltersScopes(t *testing.T) {
	tests := []struct {
		level Level
		scope Scope
		want  bool
	}{
		{LevelError, ScopeRun, false},
		{LevelPhase, ScopePhase, true},
		{LevelPhase, ScopeTier, false},
		{LevelDetail, ScopeTier, true},
		{LevelDetail, ScopeHeap, false},
		{LevelDebug, ScopeHeap, true},
	}
	for _, tt := range tests {
		if got := tt.level.ShouldEmit(tt.scope); got != tt.want {
			t.Errorf("%s.ShouldEmit(%s) = %v, want %v", tt.level, tt.scope, got, tt.want)
		}
	}
	if !LevelError.Allows(&Event{Kind: KindError, Scope: ScopeHeap}) {
		t.Error("error events must pass LevelError")
	}
}

func TestStreamTracerText(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelPhase, FormatText)
	span := Begin(tr, ScopePhase, "load", 0)
	Point(tr, ScopeHeap, "gc", "", nil)
	span.WithExtra("instrs", "4").End("ok")

	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2 (heap point filtered):\n%s", len(lines), out)
	}
	if !strings.Contains(lines[0], "→ load") {
		t.Errorf("begin line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "← load (ok) {instrs=4}") {
		t.Errorf("end line = %q", lines[1])
	}
}

func TestStreamTracerNDJSON(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelDebug, FormatNDJSON)
	Point(tr, ScopeTier, "hot", "ip 7", map[string]string{"landings": "3"})

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", buf.String(), err)
	}
	if got["name"] != "hot" || got["scope"] != "tier" || got["kind"] != "point" {
		t.Errorf("event = %v", got)
	}
}

func TestRingTracerWraps(t *testing.T) {
	r := NewRingTracer(3, LevelDebug)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		Point(r, ScopeRun, name, "", nil)
	}
	snap := r.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("len = %d, want 3", len(snap))
	}
	for i, want := range []string{"c", "d", "e"} {
		if snap[i].Name != want {
			t.Errorf("snap[%d] = %q, want %q", i, snap[i].Name, want)
		}
	}
}

func TestMultiTracerFansOut(t *testing.T) {
	var buf bytes.Buffer
	ring := NewRingTracer(8, LevelPhase)
	m := NewMultiTracer(LevelPhase, NewStreamTracer(&buf, LevelPhase, FormatText), ring)
	Error(m, "runtime-error", "cp = 3", nil)
	if buf.Len() == 0 {
		t.Error("stream tracer received nothing")
	}
	if m.Ring() != ring || len(ring.Snapshot()) != 1 {
		t.Error("ring tracer did not receive the event")
	}
}

func TestNewOff(t *testing.T) {
	tr, err := New(Config{Level: LevelOff})
	if err != nil {
		t.Fatal(err)
	}
	if tr.Enabled() {
		t.Error("LevelOff tracer is enabled")
	}
	span := Begin(tr, ScopeRun, "x", 0)
	if span.ID() != 0 || span.End("") != 0 {
		t.Error("disabled span should be inert")
	}
}

func TestContextPropagation(t *testing.T) {
	r := NewRingTracer(4, LevelPhase)
	ctx := WithTracer(context.Background(), r)
	if FromContext(ctx) != r {
		t.Fatal("tracer lost in context")
	}
	span := Begin(r, ScopeRun, "run", 0)
	ctx = WithSpan(ctx, span)
	if CurrentSpan(ctx) != span.ID() {
		t.Errorf("CurrentSpan = %d, want %d", CurrentSpan(ctx), span.ID())
	}
	if FromContext(context.Background()) != Nop {
		t.Error("empty context should yield Nop")
	}
}

func TestHeartbeat(t *testing.T) {
	r := NewRingTracer(16, LevelPhase)
	h := StartHeartbeat(r, time.Millisecond)
	deadline := time.Now().Add(2 * time.Second)
	for len(r.Snapshot()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	h.Stop()
	h.Stop()
	if len(r.Snapshot()) == 0 {
		t.Error("no heartbeat observed")
	}
	if StartHeartbeat(Nop, time.Millisecond) != nil {
		t.Error("heartbeat started on disabled tracer")
	}
}
