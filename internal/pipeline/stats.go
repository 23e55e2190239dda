package pipeline

import "sync"

// Stats tracks counters across pipeline runs. All methods are safe for
// concurrent use; an orchestrator shared by HTTP handlers updates these from
// many goroutines.
type Stats struct {
	mu                sync.Mutex
	totalQueries      int
	multiRoundQueries int
	toolFailures      int
	maxRoundsReached  int
}

// NewStats returns zeroed counters.
func NewStats() *Stats { return &Stats{} }

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	TotalQueries      int `json:"total_queries"`
	MultiRoundQueries int `json:"multi_round_queries"`
	ToolFailures      int `json:"tool_failures"`
	MaxRoundsReached  int `json:"max_rounds_reached"`
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		TotalQueries:      s.totalQueries,
		MultiRoundQueries: s.multiRoundQueries,
		ToolFailures:      s.toolFailures,
		MaxRoundsReached:  s.maxRoundsReached,
	}
}

func (s *Stats) recordQuery() {
	s.mu.Lock()
	s.totalQueries++
	s.mu.Unlock()
}

// recordOutcome folds one terminal context into the counters. A run counts
// toward tool failures when it ended failed or needed a rollback to finish,
// whatever the failing subsystem was.
func (s *Stats) recordOutcome(rc *RoundContext, recovered bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rc.RoundNumber > 1 {
		s.multiRoundQueries++
	}
	if recovered || rc.CurrentState == StateFailed {
		s.toolFailures++
	}
	if touchedSynthesis(rc) {
		s.maxRoundsReached++
	}
}
