package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"

	"github.com/lectern-ai/lectern/internal/log"
)

// InitialQueryProcessor handles the entry round. It sends the original query
// with tools attached and lets the model choose between a direct answer and
// a first batch of tool calls.
type InitialQueryProcessor struct {
	logger log.Logger
}

// NewInitialQueryProcessor builds the processor. A nil logger falls back to
// slog.Default.
func NewInitialQueryProcessor(logger log.Logger) *InitialQueryProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &InitialQueryProcessor{logger: logger}
}

// CanHandle implements Processor.
func (p *InitialQueryProcessor) CanHandle(rc *RoundContext) bool {
	return rc.CurrentState == StateInitialQuery
}

// Process implements Processor.
func (p *InitialQueryProcessor) Process(ctx context.Context, rc *RoundContext, round Round) (RoundEvent, *RoundContext) {
	work := rc.Clone()
	work.Messages = append(work.Messages, ai.NewUserMessage(ai.NewTextPart(work.OriginalQuery)))

	resp, err := round.Model.Send(ctx, ModelRequest{
		System:   initialPrompt(rc),
		Messages: work.Messages,
		Tools:    round.Tools,
	})
	if err != nil {
		return EventError, rc.withError(fmt.Sprintf("Initial query processing failed: %v", err))
	}

	msg := responseMessage(resp)
	if msg == nil {
		return EventError, rc.withError("Initial query processing failed: model returned an empty response")
	}
	work.Messages = append(work.Messages, msg)
	work.RoundNumber = 1

	if reqs := resp.ToolRequests(); len(reqs) > 0 {
		if round.Executor == nil {
			return EventError, rc.withError("Initial query processing failed: no tool executor configured")
		}
		work.Messages = append(work.Messages, runToolRequests(ctx, work, reqs, round.Executor))
		work.RoundSummaries = append(work.RoundSummaries, toolSummary(1, reqs))
		p.logger.Debug("initial round executed tools", "tools", work.ExecutedTools)
		return EventToolContinue, work
	}

	text := responseText(resp)
	if text == "" {
		return EventError, rc.withError("Initial query processing failed: model returned an empty response")
	}
	work.FinalAnswer = text
	work.RoundSummaries = append(work.RoundSummaries, "round 1: direct response")
	p.logger.Debug("initial round answered directly")
	return EventDirectResponse, work
}
