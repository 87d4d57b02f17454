package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"dlvm/internal/bytecode"
	"dlvm/internal/tier"
	"dlvm/internal/vm"
)

// hotIPRows bounds the per-instruction table.
const hotIPRows = 10

var (
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	countStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
)

// Report is the input of the statistics view.
type Report struct {
	Program  *bytecode.Program
	Stats    *vm.Stats
	HotSpots []tier.HotSpot
	Memory   string
	Tier     string
	Elapsed  time.Duration
	// RunID names the recorded or replayed run.
	RunID string
}

// WriteReport renders r for a terminal width columns wide.
func WriteReport(w io.Writer, r Report, width int) error {
	_, err := io.WriteString(w, RenderReport(r, width))
	return err
}

// RenderReport formats r. Counts use English digit grouping.
func RenderReport(r Report, width int) string {
	if width <= 0 {
		width = defaultWidth
	}
	p := message.NewPrinter(language.English)
	s := r.Stats
	if s == nil {
		s = &vm.Stats{}
	}

	var b strings.Builder
	section := func(title string) {
		b.WriteString(sectionStyle.Render(title))
		b.WriteString("\n")
	}
	row := func(label string, v any) {
		text := p.Sprintf("%v", v)
		if n, ok := v.(uint64); ok {
			text = p.Sprintf("%d", n)
		} else if n, ok := v.(int); ok {
			text = p.Sprintf("%d", n)
		}
		fmt.Fprintf(&b, "  %s %s\n", labelStyle.Render(pad(label, 22)), countStyle.Render(text))
	}

	section("execution")
	row("instructions", s.Instructions)
	row("forward transfers", s.Transfers)
	row("peak stack depth", s.PeakStack)
	if r.Elapsed > 0 {
		row("elapsed", r.Elapsed.Round(time.Microsecond).String())
	}
	if r.RunID != "" {
		row("run", r.RunID)
	}

	section("heap (" + orDefault(r.Memory, "none") + ")")
	row("allocations", s.Heap.Allocs)
	row("frees", s.Heap.Frees)
	row("collections", s.Heap.Collections)
	row("live slots", s.Heap.Live)
	row("peak live slots", s.Heap.PeakLive)

	if ops := s.TopOps(); len(ops) > 0 {
		section("opcodes")
		for _, oc := range ops {
			row(oc.Op.String(), oc.Count)
		}
	}

	if hot := s.HotIPs(hotIPRows); len(hot) > 0 {
		section("hottest instructions")
		for _, hc := range hot {
			row(Truncate(instrLabel(r.Program, hc.IP), max(width-34, 12)), hc.Count)
		}
	}

	section("tier (" + orDefault(r.Tier, "none") + ")")
	if len(r.HotSpots) == 0 {
		b.WriteString("  no hot spots\n")
	}
	for _, hs := range r.HotSpots {
		name := fmt.Sprintf("cp=%d", hs.IP)
		if hs.Label != "" {
			name += " " + hs.Label
		}
		row(name, p.Sprintf("hot after %d landings at %s", hs.Landings, hs.At.Round(time.Microsecond)))
	}
	return b.String()
}

func instrLabel(prog *bytecode.Program, ip int) string {
	in, ok := prog.At(ip)
	if !ok {
		return fmt.Sprintf("cp=%d", ip)
	}
	return fmt.Sprintf("cp=%d %s", ip, in)
}

func pad(s string, width int) string {
	if n := runewidth.StringWidth(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
