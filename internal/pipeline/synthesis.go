package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lectern-ai/lectern/internal/log"
)

// SynthesisProcessor handles the forced final round after the tool budget is
// exhausted. Tools are never attached; the model must compose its answer
// from the results already in the conversation.
type SynthesisProcessor struct {
	logger log.Logger
}

// NewSynthesisProcessor builds the processor. A nil logger falls back to
// slog.Default.
func NewSynthesisProcessor(logger log.Logger) *SynthesisProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &SynthesisProcessor{logger: logger}
}

// CanHandle implements Processor.
func (p *SynthesisProcessor) CanHandle(rc *RoundContext) bool {
	return rc.CurrentState == StateSynthesis
}

// Process implements Processor.
func (p *SynthesisProcessor) Process(ctx context.Context, rc *RoundContext, round Round) (RoundEvent, *RoundContext) {
	work := rc.Clone()

	resp, err := round.Model.Send(ctx, ModelRequest{
		System:   synthesisPrompt(rc),
		Messages: work.Messages,
	})
	if err != nil {
		return EventError, rc.withError(fmt.Sprintf("Synthesis processing failed: %v", err))
	}

	msg := responseMessage(resp)
	if msg != nil {
		work.Messages = append(work.Messages, msg)
	}

	text := responseText(resp)
	if text == "" {
		return EventError, rc.withError("Synthesis processing failed: model returned an empty response")
	}
	work.FinalAnswer = text
	work.RoundSummaries = append(work.RoundSummaries, "synthesis: final response")
	p.logger.Debug("synthesis produced final response", "rounds", work.RoundNumber)
	return EventDirectResponse, work
}
