package gpures

import (
	"fmt"
	"sync/atomic"
)

// Default statistics budget.
const (
	// DefaultMaxMemoryMB is the default resident memory budget (256 MB).
	DefaultMaxMemoryMB = 256

	// DefaultWarnThreshold is the budget fraction that triggers a warning.
	DefaultWarnThreshold = 0.8

	// MinMemoryMB is the smallest accepted budget (16 MB).
	MinMemoryMB = 16
)

// ResourceKind classifies accounted resources.
type ResourceKind uint8

const (
	KindTexture ResourceKind = iota
	KindVertexBuffer
	KindFrameBuffer
	KindProgram
	kindCount
)

// String returns the kind name.
func (k ResourceKind) String() string {
	switch k {
	case KindTexture:
		return "texture"
	case KindVertexBuffer:
		return "vertex buffer"
	case KindFrameBuffer:
		return "frame buffer"
	case KindProgram:
		return "program"
	default:
		return fmt.Sprintf("ResourceKind(%d)", uint8(k))
	}
}

// Stats receives resource accounting. Add is called once after a resource
// is successfully allocated and Remove exactly once when it is released.
// Resize reports a byte change of a live resource.
//
// Implementations must be safe for concurrent use.
type Stats interface {
	Add(kind ResourceKind, bytes int64)
	Remove(kind ResourceKind, bytes int64)
	Resize(kind ResourceKind, delta int64)
}

// StatsConfig configures Statistics.
type StatsConfig struct {
	// MaxMemoryMB is the resident memory budget in megabytes. Values below
	// MinMemoryMB select DefaultMaxMemoryMB.
	MaxMemoryMB int

	// WarnThreshold is the budget fraction above which a warning is
	// logged, once per crossing. Defaults to DefaultWarnThreshold if
	// outside (0, 1].
	WarnThreshold float64
}

// Statistics is the default Stats implementation: atomic per-kind counters
// with a resident memory budget.
type Statistics struct {
	counts    [kindCount]atomic.Int64
	bytes     [kindCount]atomic.Int64
	total     atomic.Int64
	peak      atomic.Int64
	allocs    atomic.Uint64
	above     atomic.Bool
	budget    int64
	threshold float64
}

var _ Stats = (*Statistics)(nil)

// NewStatistics creates a statistics sink.
func NewStatistics(cfg StatsConfig) *Statistics {
	maxMB := cfg.MaxMemoryMB
	if maxMB < MinMemoryMB {
		maxMB = DefaultMaxMemoryMB
	}
	threshold := cfg.WarnThreshold
	if threshold <= 0 || threshold > 1.0 {
		threshold = DefaultWarnThreshold
	}
	return &Statistics{
		budget:    int64(maxMB) * 1024 * 1024,
		threshold: threshold,
	}
}

// Add implements Stats.
func (s *Statistics) Add(kind ResourceKind, bytes int64) {
	if kind >= kindCount {
		return
	}
	s.counts[kind].Add(1)
	s.allocs.Add(1)
	s.addBytes(kind, bytes)
}

// Remove implements Stats.
func (s *Statistics) Remove(kind ResourceKind, bytes int64) {
	if kind >= kindCount {
		return
	}
	s.counts[kind].Add(-1)
	s.addBytes(kind, -bytes)
}

// Resize implements Stats.
func (s *Statistics) Resize(kind ResourceKind, delta int64) {
	if kind >= kindCount {
		return
	}
	s.addBytes(kind, delta)
}

func (s *Statistics) addBytes(kind ResourceKind, delta int64) {
	if delta == 0 {
		return
	}
	s.bytes[kind].Add(delta)
	total := s.total.Add(delta)
	for {
		p := s.peak.Load()
		if total <= p || s.peak.CompareAndSwap(p, total) {
			break
		}
	}

	limit := int64(float64(s.budget) * s.threshold)
	switch {
	case total > limit && s.above.CompareAndSwap(false, true):
		Logger().Warn("gpures: resident memory above budget threshold",
			"used_mb", total/(1024*1024), "budget_mb", s.budget/(1024*1024),
			"threshold", s.threshold)
	case total <= limit:
		s.above.Store(false)
	}
}

// Count returns the number of live resources of kind.
func (s *Statistics) Count(kind ResourceKind) int64 {
	if kind >= kindCount {
		return 0
	}
	return s.counts[kind].Load()
}

// Bytes returns the resident bytes of kind.
func (s *Statistics) Bytes(kind ResourceKind) int64 {
	if kind >= kindCount {
		return 0
	}
	return s.bytes[kind].Load()
}

// Snapshot returns the current counters.
func (s *Statistics) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		TotalBytes:  s.total.Load(),
		PeakBytes:   s.peak.Load(),
		BudgetBytes: s.budget,
		Allocations: s.allocs.Load(),
	}
	for k := range kindCount {
		snap.Counts[k] = s.counts[k].Load()
		snap.Bytes[k] = s.bytes[k].Load()
	}
	if s.budget > 0 {
		snap.Utilization = float64(snap.TotalBytes) / float64(s.budget)
	}
	return snap
}

// StatsSnapshot is a point-in-time copy of Statistics.
type StatsSnapshot struct {
	Counts [kindCount]int64
	Bytes  [kindCount]int64

	TotalBytes  int64
	PeakBytes   int64
	BudgetBytes int64

	// Allocations counts every Add since creation.
	Allocations uint64

	// Utilization is TotalBytes / BudgetBytes.
	Utilization float64
}

// String returns a human-readable summary.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf("Resources[%.1f%% used, %d/%d KB, %d textures, %d vertex buffers, %d frame buffers, %d programs]",
		s.Utilization*100,
		s.TotalBytes/1024,
		s.BudgetBytes/1024,
		s.Counts[KindTexture],
		s.Counts[KindVertexBuffer],
		s.Counts[KindFrameBuffer],
		s.Counts[KindProgram])
}
