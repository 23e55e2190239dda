package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lectern-ai/lectern/internal/log"
)

// ToolRoundProcessor handles every tool-enabled round after the first. The
// state loops on itself while the model keeps requesting tools and budget
// remains; once the budget is spent the round runs without tool definitions
// attached.
type ToolRoundProcessor struct {
	logger log.Logger
}

// NewToolRoundProcessor builds the processor. A nil logger falls back to
// slog.Default.
func NewToolRoundProcessor(logger log.Logger) *ToolRoundProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ToolRoundProcessor{logger: logger}
}

// CanHandle implements Processor.
func (p *ToolRoundProcessor) CanHandle(rc *RoundContext) bool {
	return rc.CurrentState == StateToolRound
}

// Process implements Processor.
func (p *ToolRoundProcessor) Process(ctx context.Context, rc *RoundContext, round Round) (RoundEvent, *RoundContext) {
	finalRound := rc.RoundNumber >= rc.MaxRounds
	work := rc.Clone()

	req := ModelRequest{
		System:   toolRoundPrompt(rc, finalRound),
		Messages: work.Messages,
	}
	if !finalRound {
		req.Tools = round.Tools
	}

	resp, err := round.Model.Send(ctx, req)
	if err != nil {
		return EventError, rc.withError(fmt.Sprintf("Tool round processing failed: %v", err))
	}

	msg := responseMessage(resp)
	if msg == nil {
		return EventError, rc.withError("Tool round processing failed: model returned an empty response")
	}
	work.Messages = append(work.Messages, msg)

	if reqs := resp.ToolRequests(); len(reqs) > 0 && !finalRound {
		if round.Executor == nil {
			return EventError, rc.withError("Tool round processing failed: no tool executor configured")
		}
		work.Messages = append(work.Messages, runToolRequests(ctx, work, reqs, round.Executor))
		work.RoundNumber++
		work.RoundSummaries = append(work.RoundSummaries, toolSummary(work.RoundNumber, reqs))
		p.logger.Debug("tool round executed tools",
			"round", work.RoundNumber, "tools", work.ExecutedTools)

		if work.RoundNumber >= work.MaxRounds {
			return EventMaxRounds, work
		}
		return EventToolContinue, work
	}

	text := responseText(resp)
	if text == "" {
		return EventError, rc.withError("Tool round processing failed: model returned an empty response")
	}
	work.FinalAnswer = text
	work.RoundSummaries = append(work.RoundSummaries, fmt.Sprintf("round %d: direct response", work.RoundNumber))
	return EventDirectResponse, work
}
