package vm

import (
	"bufio"
	"io"
	"strings"
)

// Runtime is the VM's view of the outside world: the input consumed by
// UNARY READ.
type Runtime interface {
	// ReadLine returns the next line without its terminator, or io.EOF when
	// input is exhausted.
	ReadLine() (string, error)
}

// DefaultRuntime reads lines from an io.Reader.
type DefaultRuntime struct {
	r *bufio.Reader
}

// NewDefaultRuntime creates a runtime over r, usually os.Stdin.
func NewDefaultRuntime(r io.Reader) *DefaultRuntime {
	return &DefaultRuntime{r: bufio.NewReader(r)}
}

// NewTestRuntime creates a runtime whose input is stdin.
func NewTestRuntime(stdin string) *DefaultRuntime {
	return NewDefaultRuntime(strings.NewReader(stdin))
}

func (r *DefaultRuntime) ReadLine() (string, error) {
	line, err := r.r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r"), nil
}

// RecordingRuntime forwards to another runtime and logs every read.
type RecordingRuntime struct {
	rt  Runtime
	rec *Recorder
}

func NewRecordingRuntime(rt Runtime, rec *Recorder) *RecordingRuntime {
	return &RecordingRuntime{rt: rt, rec: rec}
}

func (r *RecordingRuntime) ReadLine() (string, error) {
	line, err := r.rt.ReadLine()
	if r.rec != nil {
		if err != nil {
			r.rec.RecordReadEOF()
		} else {
			r.rec.RecordRead(line)
		}
	}
	return line, err
}

// ReplayRuntime serves reads from a replay log instead of real input.
type ReplayRuntime struct {
	rp *Replayer
}

func NewReplayRuntime(rp *Replayer) *ReplayRuntime {
	return &ReplayRuntime{rp: rp}
}

func (r *ReplayRuntime) ReadLine() (string, error) {
	return r.rp.ConsumeRead()
}
