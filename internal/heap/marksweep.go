package heap

import "dlvm/internal/value"

// MarkSweep is a non-moving mark-and-sweep collector. Reclaimed slots go to a
// free list and are reused by later allocations, so live handles never move.
type MarkSweep struct {
	arena
	free     []value.Handle
	limit    int
	worklist []value.Handle
}

// NewMarkSweep creates a collector that considers collecting once live slots
// reach 90% of capacity.
func NewMarkSweep(capacity int) *MarkSweep {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MarkSweep{arena: newArena(capacity), limit: capacity}
}

// Alloc reuses a free slot when one exists.
func (m *MarkSweep) Alloc(it value.Item) (value.Handle, error) {
	if n := len(m.free); n > 0 {
		h := m.free[n-1]
		m.free = m.free[:n-1]
		m.slots[h] = slot{item: it, alive: true}
		m.noteAlloc()
		return h, nil
	}
	return m.appendSlot(it), nil
}

// Policy returns PolicyMarkSweep.
func (m *MarkSweep) Policy() Policy { return PolicyMarkSweep }

// Limit returns the live-slot budget that triggers the next collection.
func (m *MarkSweep) Limit() int { return m.limit }

// Collect marks everything reachable from roots and frees the rest. It does
// nothing while fewer than 90% of the budgeted slots are live. When a
// collection leaves the heap still above the threshold the budget doubles.
func (m *MarkSweep) Collect(roots []value.Item) bool {
	if 10*m.live < 9*m.limit {
		return false
	}
	m.mark(roots)
	m.sweep()
	m.stats.Collections++
	if 10*m.live >= 9*m.limit {
		m.limit *= 2
	}
	return true
}

// Force runs a collection regardless of the threshold.
func (m *MarkSweep) Force(roots []value.Item) {
	m.mark(roots)
	m.sweep()
	m.stats.Collections++
}

func (m *MarkSweep) mark(roots []value.Item) {
	wl := m.worklist[:0]
	for _, r := range roots {
		wl = m.pushRefs(wl, r)
	}
	for len(wl) > 0 {
		h := wl[len(wl)-1]
		wl = wl[:len(wl)-1]
		if h == 0 || int(h) >= len(m.slots) {
			continue
		}
		s := &m.slots[h]
		if !s.alive || s.marked {
			continue
		}
		s.marked = true
		wl = m.pushRefs(wl, s.item)
	}
	m.worklist = wl[:0]
}

func (m *MarkSweep) pushRefs(wl []value.Handle, it value.Item) []value.Handle {
	if it.Tag.IsPointer() {
		wl = append(wl, it.Ptr)
	}
	for _, b := range it.Body {
		if b.Tag.IsPointer() {
			wl = append(wl, b.Ptr)
		}
	}
	return wl
}

func (m *MarkSweep) sweep() {
	for i := 1; i < len(m.slots); i++ {
		s := &m.slots[i]
		if !s.alive {
			continue
		}
		if s.marked {
			s.marked = false
			continue
		}
		*s = slot{}
		m.live--
		m.stats.Frees++
		m.free = append(m.free, value.Handle(i)) //nolint:gosec // G115: i < len(slots) fits a Handle.
	}
}
