package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"dlvm/internal/bytecode"
	"dlvm/internal/heap"
	"dlvm/internal/observ"
	"dlvm/internal/pcache"
	"dlvm/internal/tier"
	"dlvm/internal/trace"
	"dlvm/internal/ui"
	"dlvm/internal/version"
	"dlvm/internal/vm"
)

func init() {
	rootCmd.Flags().String("verbosity", "output", "output mode (debug|output|time|quiet|statistics)")
	addEngineFlags(rootCmd)
}

// streams are the process's standard files, swapped out in tests.
type streams struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

func runProgram(cmd *cobra.Command, args []string) error {
	path := args[0]
	s, err := resolveSettings(cmd, path)
	if err != nil {
		return err
	}
	stopProfiling, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer stopProfiling()
	events, stopTracing, err := setupTracing(cmd, s)
	if err != nil {
		return err
	}
	defer stopTracing()

	record, err := cmd.Flags().GetString("record")
	if err != nil {
		return err
	}
	replay, err := cmd.Flags().GetString("replay")
	if err != nil {
		return err
	}
	std := streams{in: os.Stdin, out: cmd.OutOrStdout(), err: cmd.ErrOrStderr()}
	return execute(cmd.Context(), path, s, engineIO{record: record, replay: replay}, events, std)
}

// engineIO names the optional record and replay logs.
type engineIO struct {
	record string
	replay string
}

// execute loads and runs one program and prints what the verbosity selects.
// A runtime error is reported on out and is not an error of the command.
func execute(ctx context.Context, path string, s settings, eio engineIO, events trace.Tracer, std streams) error {
	timer := observ.NewTimer()
	ctx = trace.WithTracer(ctx, events)
	root := trace.Begin(events, trace.ScopeRun, "dlvm", 0)
	ctx = trace.WithSpan(ctx, root)
	defer root.End("")

	phase := timer.Begin("load")
	prog, note, err := loadProgram(ctx, path, s, events)
	timer.End(phase, note)
	if err != nil {
		return err
	}

	m, err := newEngine(prog, s, eio, events, std.in)
	if err != nil {
		return err
	}
	defer m.close()
	if m.warning != "" {
		fmt.Fprintf(std.err, "warning: %s\n", m.warning) //nolint:errcheck
	}
	if id := m.runID(); id != "" {
		root.WithExtra("run", id)
	}

	var dump *vm.Tracer
	if s.Verbosity == verbosityDebug {
		dump = vm.NewTracer(std.out)
		m.machine.Trace = dump
	}

	phase = timer.Begin("run")
	vmErr := m.machine.Run(ctx)
	timer.End(phase, m.machine.Status().String())
	if err := dump.Flush(); err != nil {
		return err
	}
	if err := m.close(); err != nil {
		return err
	}

	if vmErr != nil {
		if s.Verbosity.printsErrors() {
			fmt.Fprintf(std.out, "Runtime error at cp = %d\n", vmErr.IP) //nolint:errcheck
		}
		if s.Verbosity == verbosityDebug || s.Verbosity == verbosityStatistics {
			fmt.Fprintln(std.err, vmErr.Error()) //nolint:errcheck
		}
		return nil
	}

	if s.Verbosity.printsTiming() {
		if err := printTiming(std.out, processStart); err != nil {
			return err
		}
	}
	if s.Verbosity.printsResult() {
		if _, err := fmt.Fprintln(std.out, m.machine.Result()); err != nil {
			return err
		}
	}
	if s.Verbosity == verbosityStatistics {
		report := ui.Report{
			Program:  prog,
			Stats:    m.machine.Snapshot(),
			HotSpots: m.tier.HotSpots(),
			Memory:   s.Memory.String(),
			Tier:     s.Tier.String(),
			Elapsed:  time.Since(processStart),
			RunID:    m.runID(),
		}
		if err := ui.WriteReport(std.err, report, terminalWidth()); err != nil {
			return err
		}
		if _, err := io.WriteString(std.err, timer.Summary()); err != nil {
			return err
		}
	}
	return nil
}

func loadProgram(ctx context.Context, path string, s settings, events trace.Tracer) (*bytecode.Program, string, error) {
	span := trace.Begin(events, trace.ScopePhase, "load", trace.CurrentSpan(ctx))
	if s.CacheClear {
		if err := clearProgramCache(events); err != nil {
			span.End("error")
			return nil, "", err
		}
	}
	var (
		prog *bytecode.Program
		note = "parsed"
		err  error
	)
	if s.Cache {
		prog, note, err = loadCached(path, events)
	} else {
		prog, err = bytecode.Load(path)
	}
	if err != nil {
		span.End("error")
		return nil, "", err
	}
	span.WithExtra("instrs", strconv.Itoa(prog.Len())).End(note)
	return prog, note, nil
}

func clearProgramCache(events trace.Tracer) error {
	c, err := pcache.Open(cacheApp)
	if err != nil {
		return fmt.Errorf("failed to open program cache: %w", err)
	}
	if err := c.DropAll(); err != nil {
		return fmt.Errorf("failed to clear program cache: %w", err)
	}
	trace.Point(events, trace.ScopePhase, "cache-cleared", c.Dir(), nil)
	return nil
}

// loadCached goes through the program cache. An unusable cache degrades to a
// plain load; only read and parse failures are returned.
func loadCached(path string, events trace.Tracer) (*bytecode.Program, string, error) {
	c, err := pcache.Open(cacheApp)
	if err != nil {
		trace.Point(events, trace.ScopePhase, "cache-unavailable", err.Error(), nil)
		prog, err := bytecode.Load(path)
		return prog, "parsed", err
	}
	prog, hit, err := c.Load(path)
	if err != nil {
		if prog == nil {
			return nil, "", err
		}
		trace.Point(events, trace.ScopePhase, "cache-write-failed", err.Error(), nil)
	}
	if hit {
		return prog, "cache hit", nil
	}
	return prog, "parsed", nil
}

// cacheApp names the program cache directory.
const cacheApp = "dlvm"

// engineName identifies this build in record logs.
func engineName() string { return "dlvm " + version.Version }

// engine bundles a VM with the tier and log files it was built with.
type engine struct {
	machine *vm.VM
	tier    tier.Tier
	logFile *os.File
	// warning is set when a replay log came from another build.
	warning string
}

// runID is the id of the recorded or replayed run, if any.
func (e *engine) runID() string {
	if id := e.machine.Recorder.RunID(); id != "" {
		return id
	}
	if e.machine.Replayer != nil {
		return e.machine.Replayer.Header().Run
	}
	return ""
}

func newEngine(prog *bytecode.Program, s settings, eio engineIO, events trace.Tracer, stdin io.Reader) (*engine, error) {
	if eio.record != "" && eio.replay != "" {
		return nil, fmt.Errorf("--record and --replay are mutually exclusive")
	}
	mem, err := heap.New(s.Memory, heap.DefaultCapacity)
	if err != nil {
		return nil, err
	}
	tr, err := tier.New(s.Tier, s.TierThreshold, events)
	if err != nil {
		return nil, err
	}
	e := &engine{tier: tr}
	opts := vm.Options{
		Memory: mem,
		Events: events,
		Stats:  s.Verbosity == verbosityStatistics,
		Start:  processStart,
	}
	if s.Tier != tier.PolicyNone {
		opts.Hook = tr
	}

	var rt vm.Runtime = vm.NewDefaultRuntime(stdin)
	switch {
	case eio.replay != "":
		data, err := os.ReadFile(eio.replay)
		if err != nil {
			return nil, fmt.Errorf("failed to read replay log: %w", err)
		}
		opts.Replayer = vm.NewReplayerFromBytes(data)
		if err := opts.Replayer.CheckEngine(engineName()); err != nil {
			e.warning = err.Error()
		}
		rt = vm.NewReplayRuntime(opts.Replayer)
	case eio.record != "":
		f, err := os.Create(eio.record)
		if err != nil {
			return nil, fmt.Errorf("failed to create record log: %w", err)
		}
		e.logFile = f
		opts.Recorder = vm.NewRecorder(f, engineName(), prog.Name)
		rt = vm.NewRecordingRuntime(rt, opts.Recorder)
	}
	opts.Runtime = rt
	e.machine = vm.New(prog, opts)
	return e, nil
}

// close flushes the record log. It is safe to call more than once.
func (e *engine) close() error {
	if e.logFile == nil {
		return nil
	}
	f := e.logFile
	e.logFile = nil
	if err := e.machine.Recorder.Err(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write record log: %w", err)
	}
	return f.Close()
}

func terminalWidth() int {
	if w, _, err := termSize(os.Stderr); err == nil && w > 0 {
		return w
	}
	return 80
}
