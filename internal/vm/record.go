package vm

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/google/uuid"
)

// Recorder writes an NDJSON log of a run's inputs and outcome so the run can
// be replayed without a terminal.
type Recorder struct {
	mu    sync.Mutex
	enc   *json.Encoder
	err   error
	done  bool
	runID string
}

// NewRecorder writes the header immediately. engine identifies the build that
// produced the log; program is informational.
func NewRecorder(w io.Writer, engine, program string) *Recorder {
	r := &Recorder{enc: json.NewEncoder(w), runID: uuid.NewString()}
	r.enc.SetEscapeHTML(false)
	r.mu.Lock()
	r.recordLocked(NewLogHeader(r.runID, engine, program))
	r.mu.Unlock()
	return r
}

// RunID returns the id stored in the header.
func (r *Recorder) RunID() string {
	if r == nil {
		return ""
	}
	return r.runID
}

// Err returns the first write error.
func (r *Recorder) Err() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Done reports whether a terminal event was written.
func (r *Recorder) Done() bool {
	if r == nil {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

func (r *Recorder) RecordRead(line string) {
	r.record(LogReadEvent{Kind: "read", Line: line}, false)
}

func (r *Recorder) RecordReadEOF() {
	r.record(LogReadEvent{Kind: "read", EOF: true}, false)
}

func (r *Recorder) RecordExit(result string) {
	r.record(LogExitEvent{Kind: "exit", Result: result}, true)
}

func (r *Recorder) RecordError(vmErr *VMError) {
	r.record(NewLogErrorEvent(vmErr), true)
}

func (r *Recorder) record(ev any, terminal bool) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done || r.err != nil {
		return
	}
	r.recordLocked(ev)
	if terminal {
		r.done = true
	}
}

func (r *Recorder) recordLocked(v any) {
	if r.enc == nil || r.err != nil {
		return
	}
	if err := r.enc.Encode(v); err != nil {
		r.err = err
	}
}
