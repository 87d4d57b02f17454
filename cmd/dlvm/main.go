package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"dlvm/internal/version"
)

// processStart anchors the reported run time.
var processStart = time.Now()

var rootCmd = &cobra.Command{
	Use:   "dlvm [flags] <program.dlb>",
	Short: "Run dlang bytecode programs",
	Long: `dlvm executes textual stack-machine bytecode. With no subcommand it runs
the given program and prints the elapsed time and the result.`,
	Args:              cobra.ExactArgs(1),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: applyColorMode,
	RunE:              runProgram,
}

// exitError carries a process exit code without an error message.
type exitError struct{ code int }

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func main() {
	rootCmd.Version = version.Version
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(debugCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().String("cpu-profile", "", "write a CPU profile to `file`")
	rootCmd.PersistentFlags().String("mem-profile", "", "write a heap profile to `file` on exit")
	rootCmd.PersistentFlags().String("runtime-trace", "", "write a Go execution trace to `file`")
	rootCmd.PersistentFlags().String("trace", "", "write engine trace events to `path` (- for stderr)")
	rootCmd.PersistentFlags().String("trace-level", "", "trace level (off|error|phase|detail|debug)")
	rootCmd.PersistentFlags().String("trace-mode", "stream", "trace storage (stream|ring|both)")
	rootCmd.PersistentFlags().Int("trace-ring-size", 1024, "events kept by the ring tracer")
	rootCmd.PersistentFlags().Duration("trace-heartbeat", 0, "emit a heartbeat event at this interval")

	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		printError(err)
		os.Exit(1)
	}
}

func applyColorMode(cmd *cobra.Command, _ []string) error {
	mode, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "", "auto":
		color.NoColor = !isTerminal(os.Stderr)
	default:
		return fmt.Errorf("invalid --color value %q (expected auto|on|off)", mode)
	}
	return nil
}

func printError(err error) {
	fmt.Fprintf(os.Stderr, "%s %v\n", color.New(color.FgRed, color.Bold).Sprint("error:"), err) //nolint:errcheck
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // G115: descriptors fit in int.
}

func termSize(f *os.File) (int, int, error) {
	return term.GetSize(int(f.Fd())) //nolint:gosec // G115: descriptors fit in int.
}
