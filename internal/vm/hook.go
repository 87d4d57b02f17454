package vm

import (
	"time"

	"dlvm/internal/bytecode"
)

// Hook observes forward control transfers: an APPLY, RETURN, GOTO, TEST or
// CASE after which the instruction pointer is greater than before. It is the
// attachment point for an adaptive tier and must not change VM state.
type Hook interface {
	OnForwardTransfer(l *Landing)
}

// HookFunc adapts a function to Hook.
type HookFunc func(l *Landing)

// OnForwardTransfer calls f.
func (f HookFunc) OnForwardTransfer(l *Landing) { f(l) }

// Landing is the read-only dispatch context passed to a Hook. The VM reuses
// one Landing; it is only valid for the duration of the call.
type Landing struct {
	From int // ip of the transfer instruction
	To   int // ip execution continues at
	FP   int
	Op   bytecode.Op

	vm *VM
}

// Program returns the running program, including its label table.
func (l *Landing) Program() *bytecode.Program { return l.vm.Prog }

// Start returns the time the run is measured from.
func (l *Landing) Start() time.Time { return l.vm.start }
