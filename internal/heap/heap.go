// Package heap stores composite runtime objects in an arena of slots with
// stable handles. Reclamation is a pluggable policy behind Memory.
package heap

import (
	"errors"
	"fmt"

	"dlvm/internal/value"
)

var (
	// ErrInvalidHandle is returned for handle 0 or a handle never allocated.
	ErrInvalidHandle = errors.New("invalid handle")
	// ErrFreed is returned for a handle whose slot has been reclaimed.
	ErrFreed = errors.New("use after free")
	// ErrExhausted is returned by Alloc when a fixed heap is full.
	ErrExhausted = errors.New("heap exhausted")
)

// Memory is the interface the engine uses for every heap access.
// Items stored through Store are visible through every alias of the handle.
type Memory interface {
	// Alloc stores it in a fresh slot and returns its handle. Only a bounded
	// policy fails, with ErrExhausted.
	Alloc(it value.Item) (value.Handle, error)
	// Load returns the current content of a slot.
	Load(h value.Handle) (value.Item, error)
	// Store overwrites a slot in place.
	Store(h value.Handle, it value.Item) error
	// Collect may reclaim slots unreachable from roots. It reports whether a
	// collection actually ran; policies decide when it is worth running.
	Collect(roots []value.Item) bool
	// Stats returns allocation counters.
	Stats() Stats
	// Policy names the reclamation policy.
	Policy() Policy
}

// Stats summarizes heap activity.
type Stats struct {
	Allocs      uint64
	Frees       uint64
	Collections uint64
	Live        int
	PeakLive    int
	Slots       int
}

type slot struct {
	item   value.Item
	alive  bool
	marked bool
}

// arena is the slot storage shared by all policies. Slot 0 is reserved so the
// zero Handle is never valid.
type arena struct {
	slots []slot
	live  int
	stats Stats
}

func newArena(capacity int) arena {
	if capacity < 1 {
		capacity = 1
	}
	a := arena{slots: make([]slot, 1, capacity+1)}
	return a
}

func (a *arena) appendSlot(it value.Item) value.Handle {
	a.slots = append(a.slots, slot{item: it, alive: true})
	a.noteAlloc()
	return value.Handle(len(a.slots) - 1) //nolint:gosec // G115: slot count is bounded by Handle width in practice.
}

func (a *arena) noteAlloc() {
	a.live++
	a.stats.Allocs++
	if a.live > a.stats.PeakLive {
		a.stats.PeakLive = a.live
	}
}

func (a *arena) get(h value.Handle) (*slot, error) {
	if h == 0 || int(h) >= len(a.slots) {
		return nil, fmt.Errorf("%w %d", ErrInvalidHandle, h)
	}
	s := &a.slots[h]
	if !s.alive {
		return nil, fmt.Errorf("%w: handle %d", ErrFreed, h)
	}
	return s, nil
}

func (a *arena) Load(h value.Handle) (value.Item, error) {
	s, err := a.get(h)
	if err != nil {
		return value.Item{}, err
	}
	return s.item, nil
}

func (a *arena) Store(h value.Handle, it value.Item) error {
	s, err := a.get(h)
	if err != nil {
		return err
	}
	s.item = it
	return nil
}

func (a *arena) Stats() Stats {
	st := a.stats
	st.Live = a.live
	st.Slots = len(a.slots) - 1
	return st
}
