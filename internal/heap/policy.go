package heap

import (
	"fmt"
	"strings"

	"dlvm/internal/value"
)

// Policy identifies a reclamation strategy.
type Policy uint8

const (
	// PolicyNone never reclaims and never grows: allocation fails once the
	// capacity is used up.
	PolicyNone Policy = iota + 1
	// PolicyMarkSweep traces from the operand stack and recycles dead slots.
	PolicyMarkSweep
	// PolicyAmortized never reclaims; the arena grows on demand and slots live
	// until the process exits.
	PolicyAmortized
)

// DefaultCapacity is the slot budget of a fixed heap and the initial budget
// of the others.
const DefaultCapacity = 1000

// String returns the command-line name of the policy.
func (p Policy) String() string {
	switch p {
	case PolicyNone:
		return "none"
	case PolicyMarkSweep:
		return "mark-and-sweep"
	case PolicyAmortized:
		return "amortized"
	default:
		return "unknown"
	}
}

// ParsePolicy converts a command-line name to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return PolicyNone, nil
	case "amortized":
		return PolicyAmortized, nil
	case "mark-and-sweep", "marksweep", "gc":
		return PolicyMarkSweep, nil
	default:
		return 0, fmt.Errorf("invalid memory policy: %q (expected: none|amortized|mark-and-sweep)", s)
	}
}

// New creates a Memory for the given policy.
func New(p Policy, capacity int) (Memory, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	switch p {
	case PolicyNone:
		return NewFixed(capacity), nil
	case PolicyAmortized:
		return NewNoReclaim(capacity), nil
	case PolicyMarkSweep:
		return NewMarkSweep(capacity), nil
	default:
		return nil, fmt.Errorf("unknown memory policy: %v", p)
	}
}

// Fixed is an append-only arena of a fixed number of slots.
type Fixed struct {
	arena
	capacity int
}

// NewFixed creates an arena that holds at most capacity objects.
func NewFixed(capacity int) *Fixed {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Fixed{arena: newArena(capacity), capacity: capacity}
}

// Alloc appends a new slot, or fails with ErrExhausted when none is left.
func (m *Fixed) Alloc(it value.Item) (value.Handle, error) {
	if len(m.slots)-1 >= m.capacity {
		return 0, fmt.Errorf("%w: all %d slots in use", ErrExhausted, m.capacity)
	}
	return m.appendSlot(it), nil
}

// Collect never runs.
func (m *Fixed) Collect([]value.Item) bool { return false }

// Policy returns PolicyNone.
func (m *Fixed) Policy() Policy { return PolicyNone }

// NoReclaim is an append-only arena that grows on demand.
type NoReclaim struct {
	arena
}

// NewNoReclaim creates an append-only arena with the given initial capacity.
func NewNoReclaim(capacity int) *NoReclaim {
	return &NoReclaim{arena: newArena(capacity)}
}

// Alloc appends a new slot.
func (m *NoReclaim) Alloc(it value.Item) (value.Handle, error) {
	return m.appendSlot(it), nil
}

// Collect never runs.
func (m *NoReclaim) Collect([]value.Item) bool { return false }

// Policy returns PolicyAmortized.
func (m *NoReclaim) Policy() Policy { return PolicyAmortized }
