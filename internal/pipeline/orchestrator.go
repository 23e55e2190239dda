package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/firebase/genkit/go/ai"

	"github.com/lectern-ai/lectern/internal/log"
)

// DefaultMaxIterations is the safety ceiling on driver iterations. It bounds
// the run even when the round budget or a buggy processor would loop longer.
const DefaultMaxIterations = 10

// RollbackPolicy selects which state a rollback re-enters after a failed
// round.
type RollbackPolicy string

const (
	// RollbackRetrySame retries the state that failed.
	RollbackRetrySame RollbackPolicy = "retry_same"
	// RollbackRetryPrior re-enters the state visited before the failing one.
	RollbackRetryPrior RollbackPolicy = "retry_prior"
)

// User-facing failure texts. Errs on the Result carry the detail; these keep
// the answer presentable.
const (
	failurePrefix  = "I encountered an error processing your request: "
	fallbackAnswer = "I was unable to process your request. Please try again."
)

// Config carries the orchestrator's construction parameters.
type Config struct {
	// Logger receives pipeline diagnostics. Defaults to slog.Default.
	Logger log.Logger
	// MaxIterations overrides DefaultMaxIterations when positive.
	MaxIterations int
	// Rollback selects the retry target after a failed round. Defaults to
	// RollbackRetrySame.
	Rollback RollbackPolicy
	// Stats receives run counters. Defaults to a fresh instance.
	Stats *Stats
}

// Orchestrator drives RoundContext through the state machine until a
// terminal state is reached.
type Orchestrator struct {
	logger      log.Logger
	maxIter     int
	policy      RollbackPolicy
	stats       *Stats
	processors  map[RoundState]Processor
	transitions map[RoundState]map[RoundEvent]RoundState
}

// New builds an orchestrator with the default processors registered.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	switch cfg.Rollback {
	case "":
		cfg.Rollback = RollbackRetrySame
	case RollbackRetrySame, RollbackRetryPrior:
	default:
		return nil, fmt.Errorf("unknown rollback policy %q", cfg.Rollback)
	}
	if cfg.Stats == nil {
		cfg.Stats = NewStats()
	}

	return &Orchestrator{
		logger:  cfg.Logger,
		maxIter: cfg.MaxIterations,
		policy:  cfg.Rollback,
		stats:   cfg.Stats,
		processors: map[RoundState]Processor{
			StateInitialQuery: NewInitialQueryProcessor(cfg.Logger),
			StateToolRound:    NewToolRoundProcessor(cfg.Logger),
			StateSynthesis:    NewSynthesisProcessor(cfg.Logger),
		},
		transitions: transitionTable(),
	}, nil
}

// RegisterProcessor replaces the processor for a state. Production wiring
// keeps the defaults; tests inject scripted processors here.
func (o *Orchestrator) RegisterProcessor(state RoundState, p Processor) {
	o.processors[state] = p
}

// Stats returns the orchestrator's shared run counters.
func (o *Orchestrator) Stats() *Stats {
	return o.stats
}

func transitionTable() map[RoundState]map[RoundEvent]RoundState {
	return map[RoundState]map[RoundEvent]RoundState{
		StateInitialQuery: {
			EventToolContinue:   StateToolRound,
			EventDirectResponse: StateCompleted,
			EventError:          StateFailed,
		},
		StateToolRound: {
			EventToolContinue:   StateToolRound,
			EventDirectResponse: StateCompleted,
			EventMaxRounds:      StateSynthesis,
			EventError:          StateFailed,
		},
		StateSynthesis: {
			EventDirectResponse: StateCompleted,
			EventError:          StateFailed,
		},
	}
}

// Request carries one run's inputs and collaborators.
type Request struct {
	// Query is the user's question.
	Query string
	// History is the optional prior-conversation summary.
	History string
	// MaxRounds overrides DefaultMaxRounds when positive.
	MaxRounds int

	// Model issues the model calls. Required.
	Model ModelClient
	// Tools lists the definitions offered to the model. May be empty.
	Tools []ai.ToolRef
	// Executor runs requested tools. Required whenever Tools is non-empty.
	Executor ToolExecutor
}

// Result is the outcome of one run. Failures surface as displayable text in
// Answer plus detail in Errs, never as a Go error; callers always have
// something to show the user.
type Result struct {
	Answer  string
	Sources []Source
	State   RoundState
	Rounds  int
	Errs    []string
}

// Run executes the pipeline for one query. The context is checked between
// rounds; cancellation fails the run with a canceled notation rather than
// abandoning it silently.
func (o *Orchestrator) Run(ctx context.Context, req Request) Result {
	o.stats.recordQuery()

	round := Round{Model: req.Model, Tools: req.Tools, Executor: req.Executor}
	if round.Executor == nil {
		// Never advertise tools that cannot be executed.
		round.Tools = nil
	}

	rc := NewRoundContext(req.Query, req.History, req.MaxRounds)
	rc = o.execute(ctx, rc, round)

	// A failure that was rolled back and retried successfully is a
	// diagnostic, not an error of the run.
	recovered := false
	if rc.CurrentState == StateCompleted && len(rc.Errors) > 0 {
		for _, desc := range rc.Errors {
			rc.RoundSummaries = append(rc.RoundSummaries, "recovered after rollback: "+desc)
		}
		rc.Errors = nil
		recovered = true
	}

	res := Result{
		State:  rc.CurrentState,
		Rounds: rc.RoundNumber,
		Errs:   append([]string(nil), rc.Errors...),
	}
	if round.Executor != nil {
		res.Sources = round.Executor.Sources()
	}

	switch {
	case rc.CurrentState == StateCompleted && rc.FinalAnswer != "":
		res.Answer = rc.FinalAnswer
	case len(rc.Errors) > 0:
		res.Answer = failurePrefix + strings.Join(rc.Errors, "; ")
	default:
		res.Answer = fallbackAnswer
	}

	o.stats.recordOutcome(rc, recovered)

	if rc.CurrentState == StateFailed {
		o.logger.Warn("pipeline run failed", "rounds", rc.RoundNumber, "errors", rc.Errors)
	} else {
		o.logger.Debug("pipeline run completed",
			"rounds", rc.RoundNumber, "summaries", rc.RoundSummaries)
	}
	return res
}

// execute is the driver loop: resolve processor, snapshot state, process,
// transition. It returns the terminal context.
func (o *Orchestrator) execute(ctx context.Context, rc *RoundContext, round Round) *RoundContext {
	// retried marks the state that already burned its single retry; any
	// event other than an error clears it.
	var retried RoundState
	iterations := 0

	for !rc.CurrentState.Terminal() && iterations < o.maxIter {
		iterations++

		if err := ctx.Err(); err != nil {
			rc.Errors = append(rc.Errors, fmt.Sprintf("Pipeline canceled: %v", err))
			rc.CurrentState = StateFailed
			break
		}

		state := rc.CurrentState
		o.logger.Debug("pipeline iteration", "iteration", iterations, "state", state)

		proc, ok := o.processors[state]
		if !ok || proc == nil || !proc.CanHandle(rc) {
			rc.Errors = append(rc.Errors, fmt.Sprintf("No processor found for state: %s", state))
			rc.CurrentState = StateFailed
			break
		}

		rc.RollbackStates = append(rc.RollbackStates, state)

		event, next := proc.Process(ctx, rc, round)

		if event == EventError {
			if rolled, ok := o.rollback(next, state, &retried); ok {
				rc = rolled
				continue
			}
			next.CurrentState = StateFailed
			rc = next
			continue
		}
		retried = ""

		target, ok := o.transitions[state][event]
		if !ok {
			next.Errors = append(next.Errors, fmt.Sprintf("Invalid transition from %s on %s", state, event))
			next.CurrentState = StateFailed
			rc = next
			continue
		}
		next.CurrentState = target
		rc = next
	}

	if !rc.CurrentState.Terminal() {
		rc.Errors = append(rc.Errors, "Pipeline exceeded maximum iterations")
		rc.CurrentState = StateFailed
	}
	return rc
}

// rollback attempts the one permitted retry after a failed round. It reports
// false when no retry is available: nothing is saved below the failing state
// on the stack, or the state already used its retry without intervening
// progress.
func (o *Orchestrator) rollback(rc *RoundContext, state RoundState, retried *RoundState) (*RoundContext, bool) {
	if len(rc.RollbackStates) <= 1 || *retried == state {
		return nil, false
	}

	rc.RollbackStates = rc.RollbackStates[:len(rc.RollbackStates)-1]
	if rc.RoundNumber > 0 {
		rc.RoundNumber--
	}

	switch o.policy {
	case RollbackRetryPrior:
		rc.CurrentState = rc.RollbackStates[len(rc.RollbackStates)-1]
	default:
		rc.CurrentState = state
	}
	*retried = state

	o.logger.Warn("rolling back failed round",
		"failed_state", state,
		"retry_state", rc.CurrentState,
		"round", rc.RoundNumber,
		"error", rc.Errors[len(rc.Errors)-1])
	return rc, true
}

// touchedSynthesis reports whether the run ever entered the synthesis state.
func touchedSynthesis(rc *RoundContext) bool {
	return slices.Contains(rc.RollbackStates, StateSynthesis)
}
