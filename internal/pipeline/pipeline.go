// Package pipeline implements the round-based orchestration engine that lets
// a model answer a query by invoking search tools across a bounded sequence
// of rounds.
//
// The engine is an explicit finite state machine: each pipeline state owns a
// Processor that runs one model/tool round, reports a RoundEvent, and returns
// an updated RoundContext. The Orchestrator drives iteration using a
// declarative transition table, performs one-retry rollback on failed rounds,
// and guarantees termination through a safety iteration ceiling that is
// independent of the configured round budget.
//
// The package owns its two outward collaborator contracts (ModelClient,
// ToolExecutor); the model and tools packages provide the implementations.
package pipeline

import "github.com/firebase/genkit/go/ai"

// DefaultMaxRounds bounds tool-enabled rounds when the caller does not set
// an explicit budget.
const DefaultMaxRounds = 2

// RoundContext is the mutable aggregate threaded through one pipeline run.
// A processor works on a clone and returns it on success; on failure the
// orchestrator keeps the pre-round snapshot plus the error notation, so
// partial writes from a failed round are never visible.
type RoundContext struct {
	// OriginalQuery is the immutable input text for the whole run.
	OriginalQuery string
	// ConversationHistory is the optional prior-turn summary supplied by the
	// session collaborator. Read-only within the pipeline.
	ConversationHistory string
	// SystemPrompt is the base instruction every round extends. Set once at
	// creation from the persona prompt plus the conversation history.
	SystemPrompt string

	// CurrentState is mutated only by the Orchestrator after a processor
	// returns.
	CurrentState RoundState
	// RoundNumber counts completed rounds, starting at 0. It decreases only
	// during an explicit rollback and never goes below 0.
	RoundNumber int
	// MaxRounds is the configured ceiling on tool-enabled rounds.
	MaxRounds int

	// Messages is the full conversation sent to the model on each call.
	// Append-only within a round.
	Messages []*ai.Message
	// ToolResults records one entry per tool invocation, including
	// synthesized error results.
	ToolResults []string
	// ExecutedTools records invoked tool names in order.
	ExecutedTools []string
	// RoundSummaries holds short per-round descriptions for diagnostics.
	RoundSummaries []string
	// Errors accumulates error descriptions across the run.
	Errors []string
	// RollbackStates is a LIFO stack of previously visited states.
	RollbackStates []RoundState

	// FinalAnswer is the last model-produced answer text.
	FinalAnswer string
}

// NewRoundContext builds the context for a single run. An empty history
// leaves the system prompt untouched; a non-positive maxRounds falls back to
// DefaultMaxRounds.
func NewRoundContext(query, history string, maxRounds int) *RoundContext {
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}

	system := basePrompt
	if history != "" {
		system += "\n\nPrevious conversation:\n" + history
	}

	return &RoundContext{
		OriginalQuery:       query,
		ConversationHistory: history,
		SystemPrompt:        system,
		CurrentState:        StateInitialQuery,
		MaxRounds:           maxRounds,
	}
}

// Clone returns a fully independent copy. Messages are copied per part so a
// later mutation of the clone can never reach the original, the same
// discipline the model layer applies to outgoing requests.
func (rc *RoundContext) Clone() *RoundContext {
	cp := *rc
	cp.Messages = cloneMessages(rc.Messages)
	cp.ToolResults = append([]string(nil), rc.ToolResults...)
	cp.ExecutedTools = append([]string(nil), rc.ExecutedTools...)
	cp.RoundSummaries = append([]string(nil), rc.RoundSummaries...)
	cp.Errors = append([]string(nil), rc.Errors...)
	cp.RollbackStates = append([]RoundState(nil), rc.RollbackStates...)
	return &cp
}

// withError returns a clone of rc with desc appended to Errors. Processors
// call it on their failure path so the returned context descends from the
// pre-round snapshot rather than from the half-mutated working copy.
func (rc *RoundContext) withError(desc string) *RoundContext {
	cp := rc.Clone()
	cp.Errors = append(cp.Errors, desc)
	return cp
}

func cloneMessages(msgs []*ai.Message) []*ai.Message {
	if msgs == nil {
		return nil
	}
	copied := make([]*ai.Message, len(msgs))
	for i, msg := range msgs {
		parts := make([]*ai.Part, len(msg.Content))
		for j, part := range msg.Content {
			parts[j] = clonePart(part)
		}
		copied[i] = &ai.Message{
			Role:     msg.Role,
			Content:  parts,
			Metadata: copyMap(msg.Metadata),
		}
	}
	return copied
}

// clonePart copies the Part struct and its request/response wrappers.
// Input and Output payloads are reference copies: the pipeline never mutates
// them after they enter a message.
func clonePart(p *ai.Part) *ai.Part {
	if p == nil {
		return nil
	}
	cp := &ai.Part{
		Kind:        p.Kind,
		ContentType: p.ContentType,
		Text:        p.Text,
		Custom:      copyMap(p.Custom),
		Metadata:    copyMap(p.Metadata),
	}
	if p.ToolRequest != nil {
		cp.ToolRequest = &ai.ToolRequest{
			Name:  p.ToolRequest.Name,
			Ref:   p.ToolRequest.Ref,
			Input: p.ToolRequest.Input,
		}
	}
	if p.ToolResponse != nil {
		cp.ToolResponse = &ai.ToolResponse{
			Name:   p.ToolResponse.Name,
			Ref:    p.ToolResponse.Ref,
			Output: p.ToolResponse.Output,
		}
	}
	return cp
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
