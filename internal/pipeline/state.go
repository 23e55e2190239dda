package pipeline

// RoundState identifies one node of the pipeline state machine.
type RoundState string

const (
	// StateInitialQuery is the entry state for every run.
	StateInitialQuery RoundState = "initial_query"
	// StateToolRound covers every tool-enabled round after the first.
	StateToolRound RoundState = "tool_round"
	// StateSynthesis produces the final answer from accumulated results
	// once the round budget is spent. Tools are never offered here.
	StateSynthesis RoundState = "synthesis_round"
	// StateCompleted is the terminal success state.
	StateCompleted RoundState = "completed"
	// StateFailed is the terminal failure state.
	StateFailed RoundState = "failed"
)

// String implements fmt.Stringer.
func (s RoundState) String() string { return string(s) }

// Terminal reports whether the pipeline stops at s.
func (s RoundState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Valid reports whether s is a declared pipeline state.
func (s RoundState) Valid() bool {
	switch s {
	case StateInitialQuery, StateToolRound, StateSynthesis, StateCompleted, StateFailed:
		return true
	}
	return false
}

// RoundEvent is the outcome a processor reports for one round. Together
// with the current state it selects the next state from the transition
// table.
type RoundEvent string

const (
	// EventToolContinue signals that tools ran and budget remains for
	// another round.
	EventToolContinue RoundEvent = "tool_executed_continue"
	// EventDirectResponse signals a final text answer.
	EventDirectResponse RoundEvent = "direct_response"
	// EventMaxRounds signals that tools ran but the budget is now spent,
	// forcing a synthesis round.
	EventMaxRounds RoundEvent = "max_rounds_reached"
	// EventError signals a failed round. The orchestrator attempts one
	// rollback before declaring the run failed.
	EventError RoundEvent = "error_occurred"
)

// String implements fmt.Stringer.
func (e RoundEvent) String() string { return string(e) }
