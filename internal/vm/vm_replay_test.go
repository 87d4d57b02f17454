package vm_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"dlvm/internal/vm"
)

func record(t *testing.T, stdin string, lines ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	rec := vm.NewRecorder(&buf, "test", "test.dlb")
	rt := vm.NewRecordingRuntime(vm.NewTestRuntime(stdin), rec)
	_, _ = runProgram(t, "", vm.Options{Runtime: rt, Recorder: rec}, lines...)
	if err := rec.Err(); err != nil {
		t.Fatalf("recorder: %v", err)
	}
	if !rec.Done() {
		t.Fatal("recorder has no terminal event")
	}
	return buf.Bytes()
}

func replay(t *testing.T, log []byte, lines ...string) (*vm.VM, *vm.VMError, *vm.Replayer) {
	t.Helper()
	rp := vm.NewReplayerFromBytes(log)
	machine, vmErr := runProgram(t, "", vm.Options{Runtime: vm.NewReplayRuntime(rp), Replayer: rp}, lines...)
	return machine, vmErr, rp
}

func TestRecordReplayRead(t *testing.T) {
	log := record(t, "5\n", factorialProgram...)

	events := strings.Split(strings.TrimSpace(string(log)), "\n")
	if len(events) != 3 {
		t.Fatalf("log has %d lines, want header, read, exit:\n%s", len(events), log)
	}
	var hdr vm.LogHeader
	if err := json.Unmarshal([]byte(events[0]), &hdr); err != nil {
		t.Fatal(err)
	}
	if hdr.Kind != "header" || hdr.V != vm.LogVersion || hdr.Run == "" {
		t.Errorf("header = %+v", hdr)
	}
	if !strings.Contains(events[2], `"result":"120"`) {
		t.Errorf("exit event = %s", events[2])
	}

	machine, vmErr, rp := replay(t, log, factorialProgram...)
	if err := rp.CheckEngine("test"); err != nil {
		t.Errorf("CheckEngine(test) = %v", err)
	}
	if err := rp.CheckEngine("dlvm 9.9.9"); err == nil || !strings.Contains(err.Error(), `"test"`) {
		t.Errorf("CheckEngine(other) = %v", err)
	}
	if vmErr != nil {
		t.Fatalf("replay: %v", vmErr)
	}
	if machine.Result() != "120" {
		t.Errorf("replayed result = %s", machine.Result())
	}
}

func TestRecordReplayError(t *testing.T) {
	prog := []string{"PUSH STACK_UNIT", "UNARY READ", "PUSH STACK_INT 0", "OPER DIV", "HALT"}
	log := record(t, "9\n", prog...)
	_, vmErr, _ := replay(t, log, prog...)
	if vmErr == nil || vmErr.Code != vm.PanicDivisionByZero {
		t.Fatalf("err = %v, want the recorded VM1003", vmErr)
	}
}

func TestReplayMismatch(t *testing.T) {
	log := record(t, "2\n", "PUSH STACK_UNIT", "UNARY READ", "HALT")
	// The replayed program reads twice but only one read was recorded.
	_, vmErr, _ := replay(t, log, "PUSH STACK_UNIT", "UNARY READ", "PUSH STACK_UNIT", "UNARY READ", "HALT")
	if vmErr == nil || vmErr.Code != vm.PanicReplayMismatch {
		t.Fatalf("err = %v, want VM2002", vmErr)
	}
}

func TestReplayExhausted(t *testing.T) {
	log := []byte(`{"v":1,"kind":"header","run":"r","engine":"test"}` + "\n")
	_, vmErr, _ := replay(t, log, "PUSH STACK_UNIT", "UNARY READ", "HALT")
	if vmErr == nil || vmErr.Code != vm.PanicReplayLogExhausted {
		t.Fatalf("err = %v, want VM2001", vmErr)
	}
}

func TestReplayInvalidLog(t *testing.T) {
	rp := vm.NewReplayerFromBytes([]byte("not json\n"))
	machine := vm.New(mustParse(t, "HALT"), vm.Options{Runtime: vm.NewReplayRuntime(rp), Replayer: rp})
	vmErr := machine.Run(context.Background())
	if vmErr == nil || vmErr.Code != vm.PanicInvalidReplayLogFormat {
		t.Fatalf("err = %v, want VM2003", vmErr)
	}
}

func TestParsePanicCode(t *testing.T) {
	if c, ok := vm.ParsePanicCode("VM1003"); !ok || c != vm.PanicDivisionByZero {
		t.Errorf("ParsePanicCode(VM1003) = %v, %v", c, ok)
	}
	for _, bad := range []string{"", "VM", "1003", "VMx", "VM0", "VM99999999999999999999"} {
		if _, ok := vm.ParsePanicCode(bad); ok {
			t.Errorf("ParsePanicCode(%q) accepted", bad)
		}
	}
}

func TestReplayRejectsMalformedErrorCode(t *testing.T) {
	log := []byte(`{"v":1,"kind":"header","run":"r","engine":"test"}` + "\n" +
		`{"kind":"error","code":"VM18446744073709551617","msg":"x","cp":0}` + "\n")
	rp := vm.NewReplayerFromBytes(log)
	err := rp.Validate()
	if err == nil || !strings.Contains(err.Error(), "invalid error code") {
		t.Fatalf("Validate = %v, want invalid error code", err)
	}
	if rp.CheckEngine("anything") != nil {
		t.Error("CheckEngine should defer to Validate on a malformed log")
	}

	_, vmErr, _ := replay(t, log, "PUSH STACK_INT 1", "PUSH STACK_INT 0", "OPER DIV")
	if vmErr == nil || vmErr.Code != vm.PanicInvalidReplayLogFormat {
		t.Fatalf("err = %v, want VM2003", vmErr)
	}
}
