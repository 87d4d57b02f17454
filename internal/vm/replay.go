package vm

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

type replayEvent struct {
	Kind  string
	Read  *LogReadEvent
	Exit  *LogExitEvent
	Error *LogErrorEvent
}

// Replayer serves recorded reads and checks that the run ends the way the
// recorded one did.
type Replayer struct {
	header   LogHeader
	events   []replayEvent
	next     int
	parseErr error

	consumedTerm bool
}

func NewReplayerFromBytes(data []byte) *Replayer {
	return NewReplayerFromReader(bytes.NewReader(data))
}

func NewReplayerFromReader(rd io.Reader) *Replayer {
	r := &Replayer{}
	r.parse(rd)
	return r
}

// Header returns the parsed header.
func (r *Replayer) Header() LogHeader { return r.header }

// CheckEngine compares the engine that wrote the log with engine. A log from
// another build still replays; the error only describes the difference.
func (r *Replayer) CheckEngine(engine string) error {
	if r == nil || r.parseErr != nil {
		return nil
	}
	if got := r.Header().Engine; got != engine {
		return fmt.Errorf("replay log was recorded by %q, running %q", got, engine)
	}
	return nil
}

func (r *Replayer) Validate() error {
	if r == nil {
		return fmt.Errorf("nil replayer")
	}
	if r.parseErr != nil {
		return r.parseErr
	}
	if r.header.Kind != "header" {
		return fmt.Errorf("missing header")
	}
	if r.header.V != LogVersion {
		return fmt.Errorf("unsupported log version %d", r.header.V)
	}
	return nil
}

// ConsumeRead returns the next recorded input line. Failures are *ReplayError.
func (r *Replayer) ConsumeRead() (string, error) {
	if err := r.Validate(); err != nil {
		return "", &ReplayError{Code: PanicInvalidReplayLogFormat, Msg: err.Error()}
	}
	if r.next >= len(r.events) {
		return "", &ReplayError{Code: PanicReplayLogExhausted, Msg: "replay log exhausted"}
	}
	ev := r.events[r.next]
	if ev.Kind != "read" || ev.Read == nil {
		return "", &ReplayError{Code: PanicReplayMismatch, Msg: fmt.Sprintf("replay mismatch: expected read, got %s", ev.Kind)}
	}
	r.next++
	if ev.Read.EOF {
		return "", io.EOF
	}
	return ev.Read.Line, nil
}

// CheckError matches a runtime error against the log. It returns actual when
// the log agrees and a replay error otherwise.
func (r *Replayer) CheckError(vm *VM, actual *VMError) *VMError {
	if r == nil || actual == nil {
		return actual
	}
	if err := r.Validate(); err != nil {
		return vm.eb.invalidReplayLogFormat(err.Error())
	}
	switch actual.Code {
	case PanicReplayLogExhausted, PanicReplayMismatch, PanicInvalidReplayLogFormat:
		return actual
	}
	if r.next >= len(r.events) {
		return vm.eb.replayLogExhausted("")
	}
	ev := r.events[r.next]
	if ev.Kind != "error" || ev.Error == nil {
		return vm.eb.replayMismatch(fmt.Sprintf("replay mismatch: expected error, got %s", ev.Kind))
	}
	want := *ev.Error
	got := NewLogErrorEvent(actual)
	if want.Code != got.Code || want.CP != got.CP || want.Msg != got.Msg {
		return vm.eb.replayMismatch(fmt.Sprintf("replay mismatch: recorded %s at cp = %d, got %s at cp = %d",
			want.Code, want.CP, got.Code, got.CP))
	}
	r.next++
	r.consumedTerm = true
	return actual
}

// FinalizeExit matches a HALT and its rendered result against the log.
func (r *Replayer) FinalizeExit(vm *VM, result string) *VMError {
	if r == nil {
		return nil
	}
	if err := r.Validate(); err != nil {
		return vm.eb.invalidReplayLogFormat(err.Error())
	}
	if r.consumedTerm {
		if r.next != len(r.events) {
			return vm.eb.replayMismatch("replay mismatch: extra log events after termination")
		}
		return nil
	}
	if r.next >= len(r.events) {
		return vm.eb.replayLogExhausted("")
	}
	ev := r.events[r.next]
	if ev.Kind != "exit" || ev.Exit == nil {
		return vm.eb.replayMismatch(fmt.Sprintf("replay mismatch: expected exit, got %s", ev.Kind))
	}
	if ev.Exit.Result != result {
		return vm.eb.replayMismatch(fmt.Sprintf("replay mismatch: recorded result %q, got %q", ev.Exit.Result, result))
	}
	r.next++
	r.consumedTerm = true
	if r.next != len(r.events) {
		return vm.eb.replayMismatch("replay mismatch: extra log events after termination")
	}
	return nil
}

func (r *Replayer) parse(rd io.Reader) {
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || r.parseErr != nil {
			continue
		}
		if line[0] != '{' {
			r.parseErr = fmt.Errorf("invalid JSON on line %d", lineNo)
			continue
		}
		if r.header.Kind == "" {
			var h LogHeader
			if err := json.Unmarshal([]byte(line), &h); err != nil {
				r.parseErr = fmt.Errorf("invalid header: %w", err)
				continue
			}
			r.header = h
			continue
		}

		var k struct {
			Kind string `json:"kind"`
		}
		if err := json.Unmarshal([]byte(line), &k); err != nil {
			r.parseErr = fmt.Errorf("invalid event on line %d: %w", lineNo, err)
			continue
		}
		switch k.Kind {
		case "read":
			var ev LogReadEvent
			if err := json.Unmarshal([]byte(line), &ev); err != nil {
				r.parseErr = fmt.Errorf("invalid read event on line %d: %w", lineNo, err)
				continue
			}
			r.events = append(r.events, replayEvent{Kind: k.Kind, Read: &ev})
		case "exit":
			var ev LogExitEvent
			if err := json.Unmarshal([]byte(line), &ev); err != nil {
				r.parseErr = fmt.Errorf("invalid exit event on line %d: %w", lineNo, err)
				continue
			}
			r.events = append(r.events, replayEvent{Kind: k.Kind, Exit: &ev})
		case "error":
			var ev LogErrorEvent
			if err := json.Unmarshal([]byte(line), &ev); err != nil {
				r.parseErr = fmt.Errorf("invalid error event on line %d: %w", lineNo, err)
				continue
			}
			if _, ok := ParsePanicCode(ev.Code); !ok {
				r.parseErr = fmt.Errorf("invalid error code %q on line %d", ev.Code, lineNo)
				continue
			}
			r.events = append(r.events, replayEvent{Kind: k.Kind, Error: &ev})
		default:
			r.parseErr = fmt.Errorf("unknown event kind %q on line %d", k.Kind, lineNo)
		}
	}
	if err := sc.Err(); err != nil && r.parseErr == nil {
		r.parseErr = err
	}
	if r.header.Kind == "" && r.parseErr == nil {
		r.parseErr = fmt.Errorf("missing header")
	}
}
