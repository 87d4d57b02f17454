package vm

import (
	"math"
	"strings"
)

// LogVersion is the record log schema version.
const LogVersion = 1

// LogHeader is the first line of a record log.
type LogHeader struct {
	V       int    `json:"v"`
	Kind    string `json:"kind"`
	Run     string `json:"run"`
	Engine  string `json:"engine"`
	Program string `json:"program,omitempty"`
}

// LogReadEvent records one UNARY READ.
type LogReadEvent struct {
	Kind string `json:"kind"`
	Line string `json:"line,omitempty"`
	EOF  bool   `json:"eof,omitempty"`
}

// LogExitEvent records a HALT and the rendered result.
type LogExitEvent struct {
	Kind   string `json:"kind"`
	Result string `json:"result"`
}

// LogErrorEvent records a runtime error.
type LogErrorEvent struct {
	Kind string `json:"kind"`
	Code string `json:"code"`
	Msg  string `json:"msg"`
	CP   int    `json:"cp"`
}

// NewLogHeader creates a header for a run.
func NewLogHeader(run, engine, program string) LogHeader {
	return LogHeader{V: LogVersion, Kind: "header", Run: run, Engine: engine, Program: program}
}

// NewLogErrorEvent converts a VMError to its log form.
func NewLogErrorEvent(vmErr *VMError) LogErrorEvent {
	if vmErr == nil {
		return LogErrorEvent{Kind: "error"}
	}
	return LogErrorEvent{
		Kind: "error",
		Code: vmErr.Code.String(),
		Msg:  vmErr.Message,
		CP:   vmErr.IP,
	}
}

// ParsePanicCode parses "VM1003" into a PanicCode. Digit strings too long
// for a code are rejected rather than wrapped.
func ParsePanicCode(code string) (PanicCode, bool) {
	code = strings.TrimSpace(code)
	if !strings.HasPrefix(code, "VM") || len(code) == 2 {
		return 0, false
	}
	n := 0
	for i := 2; i < len(code); i++ {
		ch := code[i]
		if ch < '0' || ch > '9' {
			return 0, false
		}
		if n > (math.MaxInt32-9)/10 {
			return 0, false
		}
		n = n*10 + int(ch-'0')
	}
	if n == 0 {
		return 0, false
	}
	return PanicCode(n), true
}
