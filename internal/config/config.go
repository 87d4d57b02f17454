// Package config loads dlvm.toml, the optional per-directory settings file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is the settings file searched for next to a program.
const FileName = "dlvm.toml"

// Run holds the [run] section.
type Run struct {
	Verbosity     string `toml:"verbosity"`
	Memory        string `toml:"memory"`
	Tier          string `toml:"tier"`
	TierThreshold uint64 `toml:"tier-threshold"`
	Cache         bool   `toml:"cache"`
}

// Trace holds the [trace] section.
type Trace struct {
	Level  string `toml:"level"`
	Output string `toml:"output"`
}

// File is a decoded dlvm.toml. The zero File stands for "no file".
type File struct {
	Path  string
	Run   Run   `toml:"run"`
	Trace Trace `toml:"trace"`

	meta toml.MetaData
}

// Defined reports whether the file sets key, for example
// Defined("run", "memory"). Unset keys fall back to flag defaults.
func (f *File) Defined(key ...string) bool {
	if f == nil || f.Path == "" {
		return false
	}
	return f.meta.IsDefined(key...)
}

// Find walks up from startDir to locate dlvm.toml.
func Find(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load decodes the file at path. Unknown keys are errors so typos surface.
func Load(path string) (*File, error) {
	f := &File{}
	meta, err := toml.DecodeFile(path, f)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown key(s): %s", path, strings.Join(keys, ", "))
	}
	f.Path = path
	f.meta = meta
	return f, nil
}

// Discover finds and loads the dlvm.toml governing programPath. It returns an
// empty File when there is none.
func Discover(programPath string) (*File, error) {
	path, ok, err := Find(filepath.Dir(programPath))
	if err != nil {
		return nil, err
	}
	if !ok {
		return &File{}, nil
	}
	return Load(path)
}
