package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"dlvm/internal/version"
)

type buildInfo struct {
	Version    string
	GitCommit  string
	GitMessage string
	BuildDate  string
}

type versionOptions struct {
	format      string
	showHash    bool
	showMessage bool
	showDate    bool
}

type versionPayload struct {
	Tool       string `json:"tool"`
	Version    string `json:"version"`
	GitCommit  string `json:"git_commit,omitempty"`
	GitMessage string `json:"git_message,omitempty"`
	BuildDate  string `json:"build_date,omitempty"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show dlvm build metadata",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		opts, err := readVersionOptions(cmd)
		if err != nil {
			return err
		}
		info := collectBuildInfo()
		if opts.format == "json" {
			return renderVersionJSON(cmd.OutOrStdout(), info, opts)
		}
		return renderVersionPretty(cmd.OutOrStdout(), info, opts)
	},
}

func init() {
	versionCmd.Flags().Bool("hash", false, "include git commit hash")
	versionCmd.Flags().Bool("message", false, "include git commit message")
	versionCmd.Flags().Bool("date", false, "include build timestamp")
	versionCmd.Flags().Bool("full", false, "show all build metadata")
	versionCmd.Flags().String("format", "pretty", "output format (pretty|json)")
}

func readVersionOptions(cmd *cobra.Command) (versionOptions, error) {
	flags := cmd.Flags()
	format, err := flags.GetString("format")
	if err != nil {
		return versionOptions{}, err
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format != "pretty" && format != "json" {
		return versionOptions{}, fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	}
	full, _ := flags.GetBool("full")
	hash, _ := flags.GetBool("hash")
	msg, _ := flags.GetBool("message")
	date, _ := flags.GetBool("date")
	return versionOptions{
		format:      format,
		showHash:    hash || full,
		showMessage: msg || full,
		showDate:    date || full,
	}, nil
}

func collectBuildInfo() buildInfo {
	v := strings.TrimSpace(version.Version)
	if v == "" {
		v = "dev"
	}
	return buildInfo{
		Version:    v,
		GitCommit:  strings.TrimSpace(version.GitCommit),
		GitMessage: strings.TrimSpace(version.GitMessage),
		BuildDate:  strings.TrimSpace(version.BuildDate),
	}
}

func renderVersionPretty(out io.Writer, info buildInfo, opts versionOptions) error {
	var b strings.Builder
	fmt.Fprintf(&b, "dlvm %s\n", version.Colored())
	if opts.showHash {
		fmt.Fprintf(&b, "commit:  %s\n", orUnknown(info.GitCommit))
	}
	if opts.showMessage {
		fmt.Fprintf(&b, "message: %s\n", orUnknown(info.GitMessage))
	}
	if opts.showDate {
		fmt.Fprintf(&b, "built:   %s\n", orUnknown(info.BuildDate))
	}
	_, err := io.WriteString(out, b.String())
	return err
}

func renderVersionJSON(out io.Writer, info buildInfo, opts versionOptions) error {
	payload := versionPayload{Tool: "dlvm", Version: info.Version}
	if opts.showHash {
		payload.GitCommit = orUnknown(info.GitCommit)
	}
	if opts.showMessage {
		payload.GitMessage = orUnknown(info.GitMessage)
	}
	if opts.showDate {
		payload.BuildDate = orUnknown(info.BuildDate)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
