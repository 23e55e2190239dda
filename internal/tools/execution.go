package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lectern-ai/lectern/internal/pipeline"
)

// Execution is the per-run tool executor handed to the pipeline. It
// dispatches tool requests by name and accumulates the sources behind the
// answer. Mint one per query; sharing an Execution across concurrent runs
// would mix their sources.
type Execution struct {
	registry *Registry
	sources  []pipeline.Source
	seen     map[pipeline.Source]struct{}
}

// NewExecution mints a fresh executor with an empty source list.
func (r *Registry) NewExecution() *Execution {
	return &Execution{registry: r, seen: make(map[pipeline.Source]struct{})}
}

// Execute runs the named tool with the model-supplied arguments. An
// unknown name is reported to the model as a result string rather than
// failing the round.
func (e *Execution) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	logger := e.registry.logger
	logger.Info("tool call", "tool", name)

	switch name {
	case SearchToolName:
		var input SearchInput
		if err := decodeArgs(args, &input); err != nil {
			logger.Warn("tool call failed", "tool", name, "error", err)
			return "", err
		}
		out, sources, err := e.registry.SearchContent(ctx, input)
		if err != nil {
			logger.Warn("tool call failed", "tool", name, "error", err)
			return "", err
		}
		e.add(sources)
		return out, nil

	case OutlineToolName:
		var input OutlineInput
		if err := decodeArgs(args, &input); err != nil {
			logger.Warn("tool call failed", "tool", name, "error", err)
			return "", err
		}
		out, err := e.registry.CourseOutline(ctx, input)
		if err != nil {
			logger.Warn("tool call failed", "tool", name, "error", err)
			return "", err
		}
		return out, nil

	default:
		logger.Warn("unknown tool requested", "tool", name)
		return fmt.Sprintf("Tool '%s' not found", name), nil
	}
}

// Sources returns every source consulted so far, in first-use order,
// deduplicated by (text, link).
func (e *Execution) Sources() []pipeline.Source {
	return e.sources
}

func (e *Execution) add(sources []pipeline.Source) {
	for _, s := range sources {
		if _, ok := e.seen[s]; ok {
			continue
		}
		e.seen[s] = struct{}{}
		e.sources = append(e.sources, s)
	}
}

// decodeArgs converts the model's map arguments into a typed input via a
// JSON round-trip, the same conversion genkit applies to tool inputs.
func decodeArgs(args map[string]any, v any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode tool args: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode tool args: %w", err)
	}
	return nil
}
