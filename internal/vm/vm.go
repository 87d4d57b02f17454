package vm

import (
	"context"
	"os"
	"strconv"
	"time"

	"dlvm/internal/bytecode"
	"dlvm/internal/heap"
	"dlvm/internal/trace"
	"dlvm/internal/value"
)

// Status is the run state of a VM.
type Status uint8

const (
	StatusRunning Status = iota
	StatusHalted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusHalted:
		return "halted"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// cancelCheckInterval is how many instructions run between context checks.
const cancelCheckInterval = 1024

// Options configures a VM. Zero values pick the defaults noted per field.
type Options struct {
	Memory   heap.Memory  // default: a growing append-only arena
	Runtime  Runtime      // reads os.Stdin
	Hook     Hook         // no hook
	Trace    *Tracer      // no per-instruction dump
	Events   trace.Tracer // trace.Nop
	Recorder *Recorder
	Replayer *Replayer
	Stats    bool      // collect execution statistics
	Start    time.Time // time.Now()
}

// VM executes one program. It owns its operand stack; heap objects are
// shared through handles and mutated in place only by ASSIGN.
type VM struct {
	Prog     *bytecode.Program
	Mem      heap.Memory
	RT       Runtime
	Hook     Hook
	Trace    *Tracer
	Events   trace.Tracer
	Recorder *Recorder
	Replayer *Replayer
	Stats    *Stats

	stack   []value.Item
	ip      int
	fp      int
	status  Status
	start   time.Time
	started bool
	landing Landing
	eb      *errorBuilder
}

// New creates a VM positioned at instruction 0 with the initial frame
// [FramePointer(0), ReturnAddress(0)] on the stack.
func New(prog *bytecode.Program, opts Options) *VM {
	vm := &VM{
		Prog:     prog,
		Mem:      opts.Memory,
		RT:       opts.Runtime,
		Hook:     opts.Hook,
		Trace:    opts.Trace,
		Events:   opts.Events,
		Recorder: opts.Recorder,
		Replayer: opts.Replayer,
		start:    opts.Start,
	}
	if vm.Mem == nil {
		vm.Mem = heap.NewNoReclaim(heap.DefaultCapacity)
	}
	if vm.RT == nil {
		vm.RT = NewDefaultRuntime(os.Stdin)
	}
	if vm.Events == nil {
		vm.Events = trace.Nop
	}
	if vm.start.IsZero() {
		vm.start = time.Now()
	}
	if opts.Stats {
		vm.Stats = newStats(prog.Len())
	}
	vm.eb = &errorBuilder{vm: vm}
	vm.landing.vm = vm
	vm.stack = make([]value.Item, 0, 64)
	vm.stack = append(vm.stack, value.MakeFramePointer(0), value.MakeReturnAddress(0))
	return vm
}

// IP returns the instruction pointer.
func (vm *VM) IP() int { return vm.ip }

// FP returns the frame pointer.
func (vm *VM) FP() int { return vm.fp }

// Status returns the run state.
func (vm *VM) Status() Status { return vm.status }

// Halted reports whether HALT was executed.
func (vm *VM) Halted() bool { return vm.status == StatusHalted }

// Done reports whether the VM has stopped for any reason.
func (vm *VM) Done() bool { return vm.status != StatusRunning }

// Stack returns the operand stack, bottom first. Callers must not modify it.
func (vm *VM) Stack() []value.Item { return vm.stack }

// Top returns the top of the stack.
func (vm *VM) Top() (value.Item, bool) {
	if len(vm.stack) == 0 {
		return value.Item{}, false
	}
	return vm.stack[len(vm.stack)-1], true
}

// Result renders the top of the stack; an empty stack renders as ERROR.
func (vm *VM) Result() string {
	top, ok := vm.Top()
	if !ok {
		return errorMarker
	}
	return Render(vm.Mem, top)
}

// Run executes until HALT, a runtime error, or cancellation of ctx.
func (vm *VM) Run(ctx context.Context) *VMError {
	if vmErr := vm.Start(); vmErr != nil {
		return vm.finish(vmErr)
	}
	span := trace.Begin(vm.Events, trace.ScopePhase, "run", trace.CurrentSpan(ctx))
	n := 0
	for vm.status == StatusRunning {
		if n%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				span.End("cancelled")
				return vm.finish(vm.eb.cancelled(err))
			}
		}
		n++
		if vmErr := vm.Step(); vmErr != nil {
			span.End("error")
			return vm.finish(vmErr)
		}
	}
	span.WithExtra("steps", strconv.Itoa(n)).End("halted")
	return vm.finish(nil)
}

// Start validates the replay log, if any. Run calls it; the debugger calls it
// before the first Step.
func (vm *VM) Start() *VMError {
	if vm.started {
		return nil
	}
	vm.started = true
	if vm.Replayer != nil {
		if err := vm.Replayer.Validate(); err != nil {
			return vm.eb.invalidReplayLogFormat(err.Error())
		}
	}
	return nil
}

// Fail records a terminal error raised outside Step, such as a debugger abort.
func (vm *VM) Fail(vmErr *VMError) *VMError {
	return vm.finish(vmErr)
}

// Complete settles the record/replay logs after a HALT reached through Step.
func (vm *VM) Complete() *VMError {
	return vm.finish(nil)
}

// finish settles the record/replay logs and the final status.
func (vm *VM) finish(vmErr *VMError) *VMError {
	if vmErr != nil {
		vm.status = StatusFailed
		if vm.Replayer != nil {
			vmErr = vm.Replayer.CheckError(vm, vmErr)
		}
		if vm.Recorder != nil {
			vm.Recorder.RecordError(vmErr)
		}
		trace.Error(vm.Events, "runtime-error", vmErr.Error(), map[string]string{
			"code": vmErr.Code.String(),
			"cp":   strconv.Itoa(vmErr.IP),
		})
		return vmErr
	}
	result := vm.Result()
	if vm.Replayer != nil {
		if rErr := vm.Replayer.FinalizeExit(vm, result); rErr != nil {
			vm.status = StatusFailed
			return rErr
		}
	}
	if vm.Recorder != nil && !vm.Recorder.Done() {
		vm.Recorder.RecordExit(result)
	}
	return nil
}

// Step executes exactly one instruction. On error the VM state is unchanged
// and IP still names the failing instruction.
func (vm *VM) Step() *VMError {
	if vm.status != StatusRunning {
		return nil
	}
	in, ok := vm.Prog.At(vm.ip)
	if !ok {
		return vm.eb.ipOutOfRange(vm.ip, vm.Prog.Len())
	}
	if vm.Trace != nil {
		vm.Trace.TraceStep(vm)
	}
	if vm.Stats != nil {
		vm.Stats.record(vm.ip, in.Op, len(vm.stack))
	}

	from := vm.ip
	advance, vmErr := vm.exec(in)
	if vmErr != nil {
		return vmErr
	}
	if advance {
		vm.ip++
		return nil
	}
	if in.Op.IsTransfer() && vm.ip > from {
		vm.forward(from, in.Op)
	}
	return nil
}

// RunUntil steps until stop returns true for the instruction about to run,
// the VM stops, or an error occurs. stop is not consulted for the first
// instruction so a caller sitting on a breakpoint makes progress.
func (vm *VM) RunUntil(stop func(ip int) bool) (stopped bool, vmErr *VMError) {
	first := true
	for vm.status == StatusRunning {
		if !first && stop != nil && stop(vm.ip) {
			return true, nil
		}
		first = false
		if vmErr := vm.Step(); vmErr != nil {
			return false, vmErr
		}
	}
	return false, nil
}

func (vm *VM) forward(from int, op bytecode.Op) {
	if vm.Stats != nil {
		vm.Stats.Transfers++
	}
	if vm.Hook == nil {
		return
	}
	vm.landing.From = from
	vm.landing.To = vm.ip
	vm.landing.FP = vm.fp
	vm.landing.Op = op
	vm.Hook.OnForwardTransfer(&vm.landing)
}
