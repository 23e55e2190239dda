package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
)

// ModelClient is the pipeline's view of the language model. Send issues one
// call and returns the raw response; tool requests inside it are the
// pipeline's to execute, never the client's.
type ModelClient interface {
	Send(ctx context.Context, req ModelRequest) (*ai.ModelResponse, error)
}

// ModelRequest carries everything one model call needs. An empty Tools slice
// means the model cannot request tool use on this call.
type ModelRequest struct {
	System   string
	Messages []*ai.Message
	Tools    []ai.ToolRef
}

// ToolExecutor runs named tools on behalf of the pipeline and collects the
// retrieval sources they touched. Implementations are per-run: Sources
// reflects only the current run's invocations.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args map[string]any) (string, error)
	Sources() []Source
}

// Source identifies one piece of retrieved material backing an answer.
type Source struct {
	Text string `json:"text"`
	Link string `json:"link,omitempty"`
}

// Round bundles the per-run collaborators the orchestrator hands to each
// processor.
type Round struct {
	Model    ModelClient
	Tools    []ai.ToolRef
	Executor ToolExecutor
}

// Processor implements the interaction logic for one pipeline state. Process
// must treat rc as read-only: success paths return a mutated clone, failure
// paths return the pre-round snapshot with the error recorded.
type Processor interface {
	CanHandle(rc *RoundContext) bool
	Process(ctx context.Context, rc *RoundContext, round Round) (RoundEvent, *RoundContext)
}

// runToolRequests executes each requested invocation in order, recording one
// result entry per request. A failing tool yields a synthesized result string
// so a single failure never aborts the round. The returned message carries
// the responses back to the model, correlated by request ref.
func runToolRequests(ctx context.Context, work *RoundContext, reqs []*ai.ToolRequest, exec ToolExecutor) *ai.Message {
	parts := make([]*ai.Part, 0, len(reqs))
	for _, req := range reqs {
		result, err := exec.Execute(ctx, req.Name, toolArgs(req.Input))
		if err != nil {
			result = fmt.Sprintf("Tool execution failed: %v", err)
		}
		work.ToolResults = append(work.ToolResults, result)
		work.ExecutedTools = append(work.ExecutedTools, req.Name)
		parts = append(parts, ai.NewToolResponsePart(&ai.ToolResponse{
			Name:   req.Name,
			Ref:    req.Ref,
			Output: result,
		}))
	}
	return &ai.Message{Role: ai.RoleTool, Content: parts}
}

// toolArgs normalizes a tool request payload to the executor's argument map.
func toolArgs(input any) map[string]any {
	if m, ok := input.(map[string]any); ok {
		return m
	}
	return nil
}

// responseMessage clones the model's reply for appending to the context.
func responseMessage(resp *ai.ModelResponse) *ai.Message {
	if resp == nil || resp.Message == nil {
		return nil
	}
	return cloneMessages([]*ai.Message{resp.Message})[0]
}

// responseText extracts the trimmed answer text from a model response.
func responseText(resp *ai.ModelResponse) string {
	if resp == nil {
		return ""
	}
	return strings.TrimSpace(resp.Text())
}

// toolSummary describes one round's executed tools for RoundSummaries.
func toolSummary(round int, reqs []*ai.ToolRequest) string {
	names := make([]string, len(reqs))
	for i, req := range reqs {
		names[i] = req.Name
	}
	return fmt.Sprintf("round %d: executed %s", round, strings.Join(names, ", "))
}
