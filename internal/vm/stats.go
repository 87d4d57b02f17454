package vm

import (
	"sort"

	"dlvm/internal/bytecode"
	"dlvm/internal/heap"
)

// Stats counts what a run executed.
type Stats struct {
	Instructions uint64
	ByOp         [bytecode.NumOps]uint64
	ByIP         []uint64
	// Transfers counts forward control transfers, the points where the hook fires.
	Transfers uint64
	PeakStack int
	Heap      heap.Stats
}

func newStats(n int) *Stats {
	return &Stats{ByIP: make([]uint64, n)}
}

func (s *Stats) record(ip int, op bytecode.Op, depth int) {
	s.Instructions++
	s.ByOp[op]++
	s.ByIP[ip]++
	if depth > s.PeakStack {
		s.PeakStack = depth
	}
}

// OpCount is one row of the per-opcode table.
type OpCount struct {
	Op    bytecode.Op
	Count uint64
}

// IPCount is one row of the per-instruction table.
type IPCount struct {
	IP    int
	Count uint64
}

// TopOps returns executed opcodes by descending count.
func (s *Stats) TopOps() []OpCount {
	var out []OpCount
	for op, n := range s.ByOp {
		if n > 0 {
			out = append(out, OpCount{Op: bytecode.Op(op), Count: n}) //nolint:gosec // G115: op < NumOps.
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// HotIPs returns the n most executed instructions; ties keep program order.
func (s *Stats) HotIPs(n int) []IPCount {
	var out []IPCount
	for ip, c := range s.ByIP {
		if c > 0 {
			out = append(out, IPCount{IP: ip, Count: c})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Snapshot returns the statistics with the heap counters filled in.
func (vm *VM) Snapshot() *Stats {
	if vm.Stats == nil {
		return nil
	}
	s := *vm.Stats
	s.ByIP = append([]uint64(nil), vm.Stats.ByIP...)
	s.Heap = vm.Mem.Stats()
	return &s
}
