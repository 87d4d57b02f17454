package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
)

const historyFile = ".dlvm_history"

// lineEditor reads debugger commands with history and line editing.
type lineEditor struct {
	state    *liner.State
	histPath string
}

func newLineEditor() *lineEditor {
	ed := &lineEditor{state: liner.NewLiner()}
	ed.state.SetCtrlCAborts(true)
	if home, err := os.UserHomeDir(); err == nil {
		ed.histPath = filepath.Join(home, historyFile)
		if f, err := os.Open(ed.histPath); err == nil {
			_, _ = ed.state.ReadHistory(f)
			_ = f.Close()
		}
	}
	return ed
}

// ReadLine prompts for one command. Ctrl-C reads as quit.
func (ed *lineEditor) ReadLine(prompt string) (string, error) {
	line, err := ed.state.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "quit", nil
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(line) != "" {
		ed.state.AppendHistory(line)
	}
	return line, nil
}

// Close saves the history and restores the terminal.
func (ed *lineEditor) Close() {
	if ed.histPath != "" {
		if f, err := os.Create(ed.histPath); err == nil {
			_, _ = ed.state.WriteHistory(f)
			_ = f.Close()
		}
	}
	_ = ed.state.Close()
}
