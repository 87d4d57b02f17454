package vm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// QuitExitCode is the process exit code after a debugger quit.
const QuitExitCode = 125

// LineReader supplies debugger commands. ReadLine returns io.EOF when input
// ends; prompt is empty in script mode.
type LineReader interface {
	ReadLine(prompt string) (string, error)
}

type scannerReader struct {
	sc  *bufio.Scanner
	out io.Writer
}

func (r scannerReader) ReadLine(prompt string) (string, error) {
	if prompt != "" {
		fmt.Fprint(r.out, prompt) //nolint:errcheck
	}
	if r.sc.Scan() {
		return r.sc.Text(), nil
	}
	if err := r.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// Debugger drives a VM from line commands.
type Debugger struct {
	vm          *VM
	breakpoints *Breakpoints
	inspector   *Inspector

	in          LineReader
	out         io.Writer
	interactive bool

	quit bool
}

// DebuggerResult describes how a session ended.
type DebuggerResult struct {
	Halted bool
	Quit   bool
	Result string
}

// NewDebugger creates a debugger. In script mode (interactive false) no
// prompt is printed and the program runs to completion once input ends.
func NewDebugger(vm *VM, in io.Reader, out io.Writer, interactive bool) *Debugger {
	if in == nil {
		in = strings.NewReader("")
	}
	if out == nil {
		out = io.Discard
	}
	return NewDebuggerWithReader(vm, scannerReader{sc: bufio.NewScanner(in), out: out}, out, interactive)
}

// NewDebuggerWithReader is NewDebugger with a custom command source, such as
// a line editor.
func NewDebuggerWithReader(vm *VM, in LineReader, out io.Writer, interactive bool) *Debugger {
	if out == nil {
		out = io.Discard
	}
	return &Debugger{
		vm:          vm,
		breakpoints: NewBreakpoints(),
		inspector:   NewInspector(vm, out),
		in:          in,
		out:         out,
		interactive: interactive,
	}
}

// Breakpoints returns the breakpoint set.
func (d *Debugger) Breakpoints() *Breakpoints {
	if d == nil {
		return nil
	}
	return d.breakpoints
}

// Run executes the session. A runtime error ends it and is returned after
// the record/replay logs have been settled.
func (d *Debugger) Run() (DebuggerResult, *VMError) {
	if d == nil || d.vm == nil {
		return DebuggerResult{}, nil
	}
	if vmErr := d.vm.Start(); vmErr != nil {
		return DebuggerResult{}, d.vm.Fail(vmErr)
	}
	d.printStop()

	for !d.vm.Done() && !d.quit {
		prompt := ""
		if d.interactive {
			prompt = "(vmdb) "
		}
		text, err := d.in.ReadLine(prompt)
		if err != nil {
			break
		}
		line := strings.TrimSpace(text)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if vmErr := d.execCommand(line); vmErr != nil {
			return DebuggerResult{}, d.vm.Fail(vmErr)
		}
	}

	if d.quit {
		return DebuggerResult{Quit: true}, nil
	}
	if !d.interactive {
		if _, vmErr := d.vm.RunUntil(nil); vmErr != nil {
			return DebuggerResult{}, d.vm.Fail(vmErr)
		}
	}
	return d.settle()
}

func (d *Debugger) settle() (DebuggerResult, *VMError) {
	if !d.vm.Halted() {
		return DebuggerResult{}, nil
	}
	if vmErr := d.vm.Complete(); vmErr != nil {
		return DebuggerResult{}, vmErr
	}
	return DebuggerResult{Halted: true, Result: d.vm.Result()}, nil
}

func (d *Debugger) execCommand(line string) *VMError {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "help", "h":
		d.help()
	case "step", "s":
		n := 1
		if len(args) == 1 {
			v, err := strconv.Atoi(args[0])
			if err != nil || v <= 0 {
				d.errorf("step expects a positive count")
				return nil
			}
			n = v
		}
		return d.cmdStep(n)
	case "continue", "c":
		return d.cmdContinue()
	case "break", "b":
		if len(args) != 1 {
			d.errorf("break expects <label|ip>")
			return nil
		}
		bp, err := d.breakpoints.Add(d.vm.Prog, args[0])
		if err != nil {
			d.errorf("%v", err)
			return nil
		}
		fmt.Fprintf(d.out, "breakpoint %s\n", bp.Summary()) //nolint:errcheck
	case "delete", "d":
		if len(args) != 1 {
			d.errorf("delete expects <id>")
			return nil
		}
		id, err := strconv.Atoi(args[0])
		if err != nil || id <= 0 {
			d.errorf("invalid breakpoint id")
			return nil
		}
		if !d.breakpoints.Delete(id) {
			d.errorf("unknown breakpoint id")
		}
	case "list":
		d.cmdList()
	case "labels":
		d.inspector.Labels()
	case "stack":
		d.inspector.Stack()
	case "heap":
		spec := ""
		if len(args) > 0 {
			spec = args[0]
		}
		d.inspector.Heap(spec)
	case "where", "w":
		d.inspector.Where()
	case "quit", "q":
		d.quit = true
	default:
		d.errorf("unknown command %q", cmd)
	}
	return nil
}

func (d *Debugger) cmdStep(n int) *VMError {
	for i := 0; i < n; i++ {
		if d.vm.Done() {
			break
		}
		if vmErr := d.vm.Step(); vmErr != nil {
			return vmErr
		}
	}
	d.printStop()
	return nil
}

func (d *Debugger) cmdContinue() *VMError {
	stopped, vmErr := d.vm.RunUntil(func(ip int) bool {
		_, ok := d.breakpoints.Match(ip)
		return ok
	})
	if vmErr != nil {
		return vmErr
	}
	if stopped {
		bp, _ := d.breakpoints.Match(d.vm.IP())
		fmt.Fprintf(d.out, "stopped at breakpoint %s\n", bp.Summary()) //nolint:errcheck
	}
	d.printStop()
	return nil
}

func (d *Debugger) cmdList() {
	bps := d.breakpoints.List()
	if len(bps) == 0 {
		fmt.Fprintln(d.out, "no breakpoints") //nolint:errcheck
		return
	}
	for _, bp := range bps {
		fmt.Fprintln(d.out, bp.Summary()) //nolint:errcheck
	}
}

// printStop shows the instruction about to run, or the result after HALT.
func (d *Debugger) printStop() {
	if d.vm.Halted() {
		fmt.Fprintf(d.out, "halted: %s\n", d.vm.Result()) //nolint:errcheck
		return
	}
	in, ok := d.vm.Prog.At(d.vm.IP())
	if !ok {
		fmt.Fprintf(d.out, "cp=%d <end of program>\n", d.vm.IP()) //nolint:errcheck
		return
	}
	fmt.Fprintf(d.out, "cp=%d %s\n", d.vm.IP(), in) //nolint:errcheck
}

func (d *Debugger) errorf(format string, args ...any) {
	fmt.Fprintf(d.out, "error: "+format+"\n", args...) //nolint:errcheck
}

func (d *Debugger) help() {
	fmt.Fprint(d.out, `commands:
  step [n]            execute n instructions (default 1)
  continue            run to the next breakpoint or HALT
  break <label|ip>    add a breakpoint
  delete <id>         remove a breakpoint
  list                list breakpoints
  labels              list program labels
  stack               print the operand stack
  heap [handle]       print a heap slot or heap counters
  where               print registers and the next instruction
  quit                abort the session
`) //nolint:errcheck
}
