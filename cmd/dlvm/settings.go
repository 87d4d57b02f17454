package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"dlvm/internal/config"
	"dlvm/internal/heap"
	"dlvm/internal/tier"
)

type verbosity uint8

const (
	verbosityOutput verbosity = iota
	verbosityDebug
	verbosityTime
	verbosityQuiet
	verbosityStatistics
)

func (v verbosity) String() string {
	switch v {
	case verbosityDebug:
		return "debug"
	case verbosityTime:
		return "time"
	case verbosityQuiet:
		return "quiet"
	case verbosityStatistics:
		return "statistics"
	default:
		return "output"
	}
}

func parseVerbosity(s string) (verbosity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "output":
		return verbosityOutput, nil
	case "debug":
		return verbosityDebug, nil
	case "time":
		return verbosityTime, nil
	case "quiet":
		return verbosityQuiet, nil
	case "statistics", "stats":
		return verbosityStatistics, nil
	default:
		return 0, fmt.Errorf("invalid verbosity %q (expected debug|output|time|quiet|statistics)", s)
	}
}

func (v verbosity) printsTiming() bool { return v != verbosityQuiet }
func (v verbosity) printsResult() bool { return v != verbosityQuiet && v != verbosityTime }
func (v verbosity) printsErrors() bool { return v != verbosityQuiet }

// uiMode is the value of --ui on check and debug.
type uiMode uint8

const (
	uiAuto uiMode = iota
	uiOn
	uiOff
)

func parseUIMode(s string) (uiMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return uiAuto, nil
	case "on":
		return uiOn, nil
	case "off":
		return uiOff, nil
	default:
		return 0, fmt.Errorf("invalid --ui value %q (expected auto|on|off)", s)
	}
}

// wantsTUI resolves auto against the streams the interface drives. The check
// progress view only draws, so it needs stdout; the debugger also reads keys.
func (m uiMode) wantsTUI(streams ...*os.File) bool {
	switch m {
	case uiOn:
		return true
	case uiOff:
		return false
	}
	for _, f := range streams {
		if !isTerminal(f) {
			return false
		}
	}
	return true
}

// settings is the effective configuration of one invocation: explicit flags
// win over dlvm.toml, which wins over flag defaults.
type settings struct {
	Verbosity     verbosity
	Memory        heap.Policy
	Tier          tier.Policy
	TierThreshold uint64
	Cache         bool
	CacheClear    bool
	TraceLevel    string
	TraceOutput   string
	ConfigPath    string
}

func addEngineFlags(cmd *cobra.Command) {
	cmd.Flags().String("memory", "none", "heap policy (none|amortized|mark-and-sweep)")
	cmd.Flags().String("tier", "none", "adaptive tier policy (none|counting)")
	cmd.Flags().Uint64("tier-threshold", 0, "landings before a site is reported hot")
	cmd.Flags().Bool("cache", false, "cache decoded programs on disk")
	cmd.Flags().Bool("cache-clear", false, "drop every cached program before loading")
	cmd.Flags().String("record", "", "record input and outcome to an NDJSON `file`")
	cmd.Flags().String("replay", "", "replay input from a recorded NDJSON `file`")
}

func resolveSettings(cmd *cobra.Command, programPath string) (settings, error) {
	file, err := config.Discover(programPath)
	if err != nil {
		return settings{}, err
	}
	var s settings
	s.ConfigPath = file.Path
	flags := cmd.Flags()

	pickString := func(flag string, val string, key ...string) (string, error) {
		if flags.Lookup(flag) == nil {
			return val, nil
		}
		if flags.Changed(flag) || !file.Defined(key...) {
			return flags.GetString(flag)
		}
		return val, nil
	}

	if flags.Lookup("verbosity") != nil {
		v, err := pickString("verbosity", file.Run.Verbosity, "run", "verbosity")
		if err != nil {
			return settings{}, err
		}
		if s.Verbosity, err = parseVerbosity(v); err != nil {
			return settings{}, err
		}
	}

	mem, err := pickString("memory", file.Run.Memory, "run", "memory")
	if err != nil {
		return settings{}, err
	}
	if s.Memory, err = heap.ParsePolicy(mem); err != nil {
		return settings{}, err
	}

	tr, err := pickString("tier", file.Run.Tier, "run", "tier")
	if err != nil {
		return settings{}, err
	}
	if s.Tier, err = tier.ParsePolicy(tr); err != nil {
		return settings{}, err
	}

	s.TierThreshold = file.Run.TierThreshold
	if flags.Changed("tier-threshold") || !file.Defined("run", "tier-threshold") {
		if s.TierThreshold, err = flags.GetUint64("tier-threshold"); err != nil {
			return settings{}, err
		}
	}

	s.Cache = file.Run.Cache
	if flags.Changed("cache") || !file.Defined("run", "cache") {
		if s.Cache, err = flags.GetBool("cache"); err != nil {
			return settings{}, err
		}
	}

	if s.CacheClear, err = flags.GetBool("cache-clear"); err != nil {
		return settings{}, err
	}

	if s.TraceLevel, err = pickString("trace-level", file.Trace.Level, "trace", "level"); err != nil {
		return settings{}, err
	}
	if s.TraceOutput, err = pickString("trace", file.Trace.Output, "trace", "output"); err != nil {
		return settings{}, err
	}
	if s.TraceLevel == "" {
		s.TraceLevel = "off"
		if s.TraceOutput != "" {
			s.TraceLevel = "phase"
		}
	}
	return s, nil
}
