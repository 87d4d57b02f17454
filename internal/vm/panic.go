package vm

import (
	"fmt"

	"dlvm/internal/value"
)

// PanicCode identifies the kind of runtime error.
type PanicCode int

// Stable codes. Do not renumber; record logs store them.
const (
	PanicTypeMismatch       PanicCode = 1001 // VM1001: operand has the wrong tag
	PanicStackUnderflow     PanicCode = 1002 // VM1002: not enough operands
	PanicDivisionByZero     PanicCode = 1003 // VM1003: DIV by zero
	PanicUndefinedLabel     PanicCode = 1004 // VM1004: jump or closure names an undeclared label
	PanicFrameLinkage       PanicCode = 1005 // VM1005: RETURN found a corrupted frame
	PanicOutOfBounds        PanicCode = 1006 // VM1006: LOOKUP outside the stack or closure body
	PanicBadInput           PanicCode = 1007 // VM1007: READ got a malformed or absent line
	PanicHeapFault          PanicCode = 1008 // VM1008: dangling or invalid heap handle
	PanicInvalidInstruction PanicCode = 1009 // VM1009: blank placeholder executed
	PanicIPOutOfRange       PanicCode = 1010 // VM1010: ran off the end of the program
	PanicOverflow           PanicCode = 1011 // VM1011: frame index exceeds 32 bits
	PanicCancelled          PanicCode = 1012 // VM1012: run cancelled by the caller
	PanicHeapExhausted      PanicCode = 1013 // VM1013: a fixed heap has no free slot

	PanicReplayLogExhausted     PanicCode = 2001 // VM2001: replay log has no more events
	PanicReplayMismatch         PanicCode = 2002 // VM2002: execution diverged from the log
	PanicInvalidReplayLogFormat PanicCode = 2003 // VM2003: replay log is malformed
)

// String returns the code as "VM1001".
func (c PanicCode) String() string {
	return fmt.Sprintf("VM%d", c)
}

// VMError is a recoverable runtime error. IP is the instruction that failed;
// no VM state was modified by it.
type VMError struct {
	Code    PanicCode
	IP      int
	Message string
	// Depth is the operand stack depth at the failure.
	Depth int
}

func (e *VMError) Error() string {
	return fmt.Sprintf("%s at cp = %d: %s", e.Code, e.IP, e.Message)
}

// ReplayError is returned by a replaying Runtime; the engine converts it to a
// VMError with the same code.
type ReplayError struct {
	Code PanicCode
	Msg  string
}

func (e *ReplayError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

type errorBuilder struct {
	vm *VM
}

func (eb *errorBuilder) makeError(code PanicCode, msg string) *VMError {
	return &VMError{
		Code:    code,
		IP:      eb.vm.ip,
		Message: msg,
		Depth:   len(eb.vm.stack),
	}
}

func (eb *errorBuilder) typeMismatch(what, expected string, got value.Item) *VMError {
	return eb.makeError(PanicTypeMismatch, fmt.Sprintf("%s expects %s, got %s", what, expected, got.Tag))
}

func (eb *errorBuilder) typeMismatch2(what, expected string, a, b value.Item) *VMError {
	return eb.makeError(PanicTypeMismatch, fmt.Sprintf("%s expects %s, got (%s, %s)", what, expected, a.Tag, b.Tag))
}

func (eb *errorBuilder) stackUnderflow(what string, need, have int) *VMError {
	return eb.makeError(PanicStackUnderflow, fmt.Sprintf("%s needs %d operand(s), stack has %d", what, need, have))
}

func (eb *errorBuilder) divisionByZero() *VMError {
	return eb.makeError(PanicDivisionByZero, "division by zero")
}

func (eb *errorBuilder) undefinedLabel(label string) *VMError {
	return eb.makeError(PanicUndefinedLabel, fmt.Sprintf("undefined label %q", label))
}

func (eb *errorBuilder) frameLinkage(msg string) *VMError {
	return eb.makeError(PanicFrameLinkage, msg)
}

func (eb *errorBuilder) outOfBounds(what string, index, length int) *VMError {
	return eb.makeError(PanicOutOfBounds, fmt.Sprintf("%s index %d out of bounds for length %d", what, index, length))
}

func (eb *errorBuilder) badInput(msg string) *VMError {
	return eb.makeError(PanicBadInput, msg)
}

func (eb *errorBuilder) heapFault(err error) *VMError {
	return eb.makeError(PanicHeapFault, err.Error())
}

func (eb *errorBuilder) heapExhausted(what string, err error) *VMError {
	return eb.makeError(PanicHeapExhausted, what+": "+err.Error())
}

func (eb *errorBuilder) invalidInstruction(msg string) *VMError {
	return eb.makeError(PanicInvalidInstruction, msg)
}

func (eb *errorBuilder) ipOutOfRange(ip, n int) *VMError {
	return eb.makeError(PanicIPOutOfRange, fmt.Sprintf("instruction pointer %d outside program of %d instruction(s)", ip, n))
}

func (eb *errorBuilder) overflow(what string, err error) *VMError {
	return eb.makeError(PanicOverflow, fmt.Sprintf("%s: %v", what, err))
}

func (eb *errorBuilder) cancelled(err error) *VMError {
	return eb.makeError(PanicCancelled, err.Error())
}

func (eb *errorBuilder) replayLogExhausted(msg string) *VMError {
	if msg == "" {
		msg = "replay log exhausted"
	}
	return eb.makeError(PanicReplayLogExhausted, msg)
}

func (eb *errorBuilder) replayMismatch(msg string) *VMError {
	return eb.makeError(PanicReplayMismatch, msg)
}

func (eb *errorBuilder) invalidReplayLogFormat(msg string) *VMError {
	return eb.makeError(PanicInvalidReplayLogFormat, msg)
}
