// Package tier holds the policies attached to the engine's forward-transfer
// hook. No policy generates code; counting only identifies hot landing sites.
package tier

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"dlvm/internal/trace"
	"dlvm/internal/vm"
)

// Policy selects a tier implementation.
type Policy uint8

const (
	PolicyNone Policy = iota + 1
	PolicyCounting
)

func (p Policy) String() string {
	switch p {
	case PolicyNone:
		return "none"
	case PolicyCounting:
		return "counting"
	default:
		return fmt.Sprintf("Policy(%d)", uint8(p))
	}
}

// ParsePolicy accepts "none" and "counting"; the empty string means none.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return PolicyNone, nil
	case "counting":
		return PolicyCounting, nil
	default:
		return 0, fmt.Errorf("unknown tier policy %q (want none or counting)", s)
	}
}

// Tier is a hook that can report what it observed.
type Tier interface {
	vm.Hook
	Policy() Policy
	HotSpots() []HotSpot
}

// HotSpot is a landing site that reached the threshold.
type HotSpot struct {
	IP       int
	Label    string
	Landings uint64
	// At is the time since the run started when the site became hot.
	At time.Duration
}

// New creates the tier for p.
func New(p Policy, threshold uint64, events trace.Tracer) (Tier, error) {
	switch p {
	case PolicyNone:
		return Nop{}, nil
	case PolicyCounting:
		return NewCounting(threshold, events), nil
	default:
		return nil, fmt.Errorf("unknown tier policy %s", p)
	}
}

// Nop ignores every landing.
type Nop struct{}

func (Nop) OnForwardTransfer(*vm.Landing) {}
func (Nop) Policy() Policy                { return PolicyNone }
func (Nop) HotSpots() []HotSpot           { return nil }

// Counting counts landings per target instruction and marks a target hot
// once its count reaches the threshold.
type Counting struct {
	threshold uint64
	events    trace.Tracer
	counts    map[int]uint64
	hot       []HotSpot
}

// NewCounting creates a counting tier. A zero threshold makes every landing
// site hot on its first landing.
func NewCounting(threshold uint64, events trace.Tracer) *Counting {
	if events == nil {
		events = trace.Nop
	}
	return &Counting{
		threshold: max(threshold, 1),
		events:    events,
		counts:    make(map[int]uint64),
	}
}

func (c *Counting) Policy() Policy { return PolicyCounting }

func (c *Counting) OnForwardTransfer(l *vm.Landing) {
	n := c.counts[l.To] + 1
	c.counts[l.To] = n
	if n != c.threshold {
		return
	}
	hs := HotSpot{
		IP:       l.To,
		Label:    l.Program().LabelAt(l.To),
		Landings: n,
		At:       time.Since(l.Start()),
	}
	c.hot = append(c.hot, hs)
	trace.Point(c.events, trace.ScopeTier, "hot", hs.describe(), map[string]string{
		"cp":       strconv.Itoa(hs.IP),
		"from":     l.Op.String(),
		"landings": strconv.FormatUint(n, 10),
	})
}

// Landings returns how often ip was landed on.
func (c *Counting) Landings(ip int) uint64 { return c.counts[ip] }

// HotSpots returns the hot sites in the order they became hot.
func (c *Counting) HotSpots() []HotSpot {
	return append([]HotSpot(nil), c.hot...)
}

func (hs HotSpot) describe() string {
	if hs.Label != "" {
		return hs.Label
	}
	return "cp " + strconv.Itoa(hs.IP)
}
