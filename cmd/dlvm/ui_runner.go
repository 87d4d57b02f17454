package main

import (
	"context"
	"errors"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"dlvm/internal/bytecode"
	"dlvm/internal/ui"
	"dlvm/internal/vm"
)

type checkOutcome struct {
	results []bytecode.FileResult
	err     error
}

var errCheckInterrupted = errors.New("check interrupted")

// loadWithUI loads files while a progress view follows the workers.
func loadWithUI(ctx context.Context, files []string, jobs int) ([]bytecode.FileResult, error) {
	return loadFollowing(ctx, files, jobs, func(events <-chan ui.FileEvent) error {
		model := ui.NewProgressModel("checking", files, events)
		_, err := tea.NewProgram(model, tea.WithOutput(os.Stdout)).Run()
		return err
	})
}

// loadFollowing loads files while follow consumes their status events. When
// follow returns before the load finishes, the remaining files are canceled
// and their events drained so no worker stays blocked.
func loadFollowing(parent context.Context, files []string, jobs int, follow func(<-chan ui.FileEvent) error) ([]bytecode.FileResult, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	events := make(chan ui.FileEvent, 256)
	outcomeCh := make(chan checkOutcome, 1)

	go func() {
		res, err := bytecode.LoadFilesNotify(ctx, files, jobs, func(path string, r *bytecode.FileResult) {
			events <- ui.FileEvent{File: path, Status: fileStatus(r)}
		})
		outcomeCh <- checkOutcome{results: res, err: err}
		close(events)
	}()

	followErr := follow(events)
	cancel()
	for range events {
	}
	outcome := <-outcomeCh
	if followErr != nil {
		return outcome.results, followErr
	}
	if outcome.err != nil && errors.Is(outcome.err, context.Canceled) && parent.Err() == nil {
		return outcome.results, errCheckInterrupted
	}
	return outcome.results, outcome.err
}

func fileStatus(r *bytecode.FileResult) ui.FileStatus {
	switch {
	case r == nil:
		return ui.StatusLoading
	case r.Err != nil:
		return ui.StatusError
	case len(r.Program.Unresolved()) > 0:
		return ui.StatusWarning
	default:
		return ui.StatusOK
	}
}

// debugWithUI runs the full-screen debugger until the user quits or the
// program stops.
func debugWithUI(machine *vm.VM, bps *vm.Breakpoints) (vm.DebuggerResult, *vm.VMError, error) {
	model := ui.NewDebugModel(machine, bps)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithOutput(os.Stdout))
	if _, err := program.Run(); err != nil {
		return vm.DebuggerResult{}, nil, err
	}
	res, vmErr := model.Outcome()
	return res, vmErr, nil
}
