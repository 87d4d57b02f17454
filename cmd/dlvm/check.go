package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"dlvm/internal/bytecode"
)

var checkCmd = &cobra.Command{
	Use:   "check [flags] <program.dlb>...",
	Short: "Load programs without running them",
	Long: `check decodes each program and reports load errors and references to
labels that are never declared. Files are loaded in parallel.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().Int("jobs", 0, "max parallel loads (0=auto)")
	checkCmd.Flags().String("ui", "auto", "progress UI mode (auto|on|off)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return err
	}
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return err
	}
	mode, err := parseUIMode(uiValue)
	if err != nil {
		return err
	}

	var results []bytecode.FileResult
	if mode.wantsTUI(os.Stdout) {
		results, err = loadWithUI(cmd.Context(), args, jobs)
	} else {
		results, err = bytecode.LoadFiles(cmd.Context(), args, jobs)
	}
	if err != nil {
		return err
	}
	if failed := writeCheckReport(cmd.OutOrStdout(), results); failed > 0 {
		return fmt.Errorf("%d file(s) failed to load", failed)
	}
	return nil
}

// writeCheckReport prints one line per file and one per unresolved label, and
// returns the number of files that failed to load.
func writeCheckReport(w io.Writer, results []bytecode.FileResult) int {
	bad := color.New(color.FgRed, color.Bold).SprintFunc()
	warn := color.New(color.FgYellow).SprintFunc()
	ok := color.New(color.FgGreen).SprintFunc()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(w, "%s %v\n", bad("error:"), r.Err) //nolint:errcheck
			continue
		}
		fmt.Fprintf(w, "%s: %s (%d instructions)\n", r.Path, ok("ok"), r.Program.Len()) //nolint:errcheck
		for _, ref := range r.Program.Unresolved() {
			fmt.Fprintf(w, "%s:%d: %s undefined label %q\n", r.Path, ref.Line, warn("warning:"), ref.Label) //nolint:errcheck
		}
	}
	return failed
}
