package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"dlvm/internal/vm"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
	// Lines taken by the header and footer around the stack viewport.
	chromeLines = 4
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	frameStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// DebugModel is a Bubble Tea stepping view over a VM. Keys: s steps, c runs
// to the next breakpoint or HALT, q quits. Arrow keys scroll the stack.
type DebugModel struct {
	machine *vm.VM
	bps     *vm.Breakpoints

	vp     viewport.Model
	width  int
	status string
	err    *vm.VMError
	quit   bool
}

// NewDebugModel creates the model. bps may be nil.
func NewDebugModel(machine *vm.VM, bps *vm.Breakpoints) *DebugModel {
	m := &DebugModel{
		machine: machine,
		bps:     bps,
		vp:      viewport.New(defaultWidth, defaultHeight-chromeLines),
		width:   defaultWidth,
	}
	if vmErr := machine.Start(); vmErr != nil {
		m.fail(vmErr)
	}
	m.refresh()
	return m
}

func (m *DebugModel) Init() tea.Cmd { return nil }

func (m *DebugModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if !m.machine.Done() {
				m.quit = true
			}
			return m, tea.Quit
		case "s", "n", "enter":
			m.step()
			return m, nil
		case "c":
			m.cont()
			return m, nil
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.vp.Width = msg.Width
		m.vp.Height = max(msg.Height-chromeLines, 1)
		m.refresh()
		return m, nil
	}
	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

func (m *DebugModel) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(Truncate(m.header(), m.width)))
	b.WriteString("\n\n")
	b.WriteString(m.vp.View())
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(errorStyle.Render(Truncate(m.status, m.width)))
	} else {
		b.WriteString(Truncate(m.status, m.width))
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("s step  c continue  q quit  ↑/↓ scroll"))
	return b.String()
}

// Outcome reports how the session ended.
func (m *DebugModel) Outcome() (vm.DebuggerResult, *vm.VMError) {
	if m.err != nil {
		return vm.DebuggerResult{}, m.err
	}
	if m.machine.Halted() {
		return vm.DebuggerResult{Halted: true, Result: m.machine.Result()}, nil
	}
	return vm.DebuggerResult{Quit: m.quit}, nil
}

func (m *DebugModel) step() {
	if m.machine.Done() {
		return
	}
	if vmErr := m.machine.Step(); vmErr != nil {
		m.fail(vmErr)
	} else if m.machine.Halted() {
		m.complete()
	}
	m.refresh()
}

func (m *DebugModel) cont() {
	if m.machine.Done() {
		return
	}
	_, vmErr := m.machine.RunUntil(func(ip int) bool {
		_, ok := m.bps.Match(ip)
		return ok
	})
	if vmErr != nil {
		m.fail(vmErr)
	} else if m.machine.Halted() {
		m.complete()
	}
	m.refresh()
}

func (m *DebugModel) fail(vmErr *vm.VMError) {
	m.err = m.machine.Fail(vmErr)
}

func (m *DebugModel) complete() {
	if vmErr := m.machine.Complete(); vmErr != nil {
		m.err = vmErr
	}
}

func (m *DebugModel) header() string {
	ip := m.machine.IP()
	in, ok := m.machine.Prog.At(ip)
	if !ok {
		return fmt.Sprintf("cp=%d <end of program>", ip)
	}
	return fmt.Sprintf("cp=%d fp=%d  %s", ip, m.machine.FP(), in)
}

func (m *DebugModel) refresh() {
	switch {
	case m.err != nil:
		m.status = "runtime error: " + m.err.Error()
	case m.machine.Halted():
		m.status = "halted: " + m.machine.Result()
	default:
		m.status = fmt.Sprintf("%s, stack depth %d", m.machine.Status(), len(m.machine.Stack()))
	}

	stack := m.machine.Stack()
	fp := m.machine.FP()
	lines := make([]string, 0, len(stack))
	for i := len(stack) - 1; i >= 0; i-- {
		line := fmt.Sprintf("%4d  %s", i, vm.FormatItem(m.machine.Mem, stack[i]))
		line = Truncate(line, m.width)
		if i == fp {
			line = frameStyle.Render(line)
		}
		lines = append(lines, line)
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
}
