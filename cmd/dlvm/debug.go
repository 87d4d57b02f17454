package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"dlvm/internal/vm"
)

var debugCmd = &cobra.Command{
	Use:   "debug [flags] <program.dlb>",
	Short: "Step through a program",
	Long: `debug runs a program under the line debugger. Commands come from the
terminal, or from --script, in which case the program runs to completion
once the script ends. Program input comes from --input, or from stdin when
a script supplies the commands.`,
	Args: cobra.ExactArgs(1),
	RunE: runDebug,
}

func init() {
	debugCmd.Flags().String("script", "", "read debugger commands from `file`")
	debugCmd.Flags().String("input", "", "read program input from `file`")
	debugCmd.Flags().StringArray("break", nil, "set a breakpoint at a label or ip (repeatable)")
	debugCmd.Flags().String("ui", "auto", "full-screen debugger (auto|on|off)")
	addEngineFlags(debugCmd)
}

func runDebug(cmd *cobra.Command, args []string) error {
	path := args[0]
	s, err := resolveSettings(cmd, path)
	if err != nil {
		return err
	}
	events, stopTracing, err := setupTracing(cmd, s)
	if err != nil {
		return err
	}
	defer stopTracing()

	flags := cmd.Flags()
	scriptPath, _ := flags.GetString("script")
	inputPath, _ := flags.GetString("input")
	breaks, _ := flags.GetStringArray("break")
	record, _ := flags.GetString("record")
	replay, _ := flags.GetString("replay")
	uiValue, _ := flags.GetString("ui")
	mode, err := parseUIMode(uiValue)
	if err != nil {
		return err
	}

	prog, _, err := loadProgram(cmd.Context(), path, s, events)
	if err != nil {
		return err
	}

	var commands io.Reader
	if scriptPath != "" {
		f, err := os.Open(scriptPath)
		if err != nil {
			return fmt.Errorf("failed to open debugger script: %w", err)
		}
		defer f.Close()
		commands = f
	}

	var input io.Reader = strings.NewReader("")
	switch {
	case inputPath != "":
		f, err := os.Open(inputPath)
		if err != nil {
			return fmt.Errorf("failed to open program input: %w", err)
		}
		defer f.Close()
		input = f
	case commands != nil:
		input = os.Stdin
	}

	m, err := newEngine(prog, s, engineIO{record: record, replay: replay}, events, input)
	if err != nil {
		return err
	}
	defer m.close()
	if m.warning != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", m.warning) //nolint:errcheck
	}

	out := cmd.OutOrStdout()
	var (
		res   vm.DebuggerResult
		vmErr *vm.VMError
	)
	if commands == nil && mode.wantsTUI(os.Stdin, os.Stdout) {
		bps := vm.NewBreakpoints()
		if err := addBreakpoints(bps, m.machine, breaks); err != nil {
			return err
		}
		if res, vmErr, err = debugWithUI(m.machine, bps); err != nil {
			return err
		}
	} else {
		var dbg *vm.Debugger
		switch {
		case commands != nil:
			dbg = vm.NewDebugger(m.machine, commands, out, false)
		case isTerminal(os.Stdin):
			ed := newLineEditor()
			defer ed.Close()
			dbg = vm.NewDebuggerWithReader(m.machine, ed, out, true)
		default:
			dbg = vm.NewDebugger(m.machine, os.Stdin, out, false)
		}
		if err := addBreakpoints(dbg.Breakpoints(), m.machine, breaks); err != nil {
			return err
		}
		res, vmErr = dbg.Run()
	}
	if err := m.close(); err != nil {
		return err
	}

	switch {
	case vmErr != nil:
		fmt.Fprintf(out, "Runtime error at cp = %d\n", vmErr.IP) //nolint:errcheck
		fmt.Fprintln(cmd.ErrOrStderr(), vmErr.Error())           //nolint:errcheck
	case res.Quit:
		return &exitError{code: vm.QuitExitCode}
	case res.Halted:
		fmt.Fprintf(out, "result: %s\n", res.Result) //nolint:errcheck
	}
	return nil
}

func addBreakpoints(bps *vm.Breakpoints, machine *vm.VM, specs []string) error {
	for _, spec := range specs {
		if _, err := bps.Add(machine.Prog, spec); err != nil {
			return fmt.Errorf("--break %s: %w", spec, err)
		}
	}
	return nil
}
