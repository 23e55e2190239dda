package mcp

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lectern-ai/lectern/internal/tools"
)

// registerCourseTools registers search_course_content and
// get_course_outline, with schemas inferred from the same input structs
// the pipeline dispatches.
func (s *Server) registerCourseTools() error {
	searchSchema, err := jsonschema.For[tools.SearchInput](nil)
	if err != nil {
		return fmt.Errorf("schema for %s: %w", tools.SearchToolName, err)
	}

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: tools.SearchToolName,
		Description: "Search course materials with smart course name matching " +
			"and lesson filtering",
		InputSchema: searchSchema,
	}, s.SearchCourseContent)

	outlineSchema, err := jsonschema.For[tools.OutlineInput](nil)
	if err != nil {
		return fmt.Errorf("schema for %s: %w", tools.OutlineToolName, err)
	}

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: tools.OutlineToolName,
		Description: "Get course outline including title, link, and complete " +
			"list of lessons",
		InputSchema: outlineSchema,
	}, s.GetCourseOutline)

	return nil
}

// SearchCourseContent handles the search_course_content MCP tool call.
// Misses (unknown course, no hits) are ordinary text results the client
// model can read; only store failures surface as errors.
func (s *Server) SearchCourseContent(ctx context.Context, _ *mcp.CallToolRequest, input tools.SearchInput) (*mcp.CallToolResult, any, error) {
	s.logger.Info("tool call", "tool", tools.SearchToolName)

	out, _, err := s.registry.SearchContent(ctx, input)
	if err != nil {
		return nil, nil, fmt.Errorf("search course content: %w", err)
	}
	return textResult(out), nil, nil
}

// GetCourseOutline handles the get_course_outline MCP tool call.
func (s *Server) GetCourseOutline(ctx context.Context, _ *mcp.CallToolRequest, input tools.OutlineInput) (*mcp.CallToolResult, any, error) {
	s.logger.Info("tool call", "tool", tools.OutlineToolName)

	out, err := s.registry.CourseOutline(ctx, input)
	if err != nil {
		return nil, nil, fmt.Errorf("course outline: %w", err)
	}
	return textResult(out), nil, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
