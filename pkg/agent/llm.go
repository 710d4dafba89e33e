package agent

import (
	"context"

	"github.com/harun/agentcore/pkg/events"
	"github.com/harun/agentcore/pkg/toolexecutor"
)

// LLMClient opens a streamed model response.
type LLMClient interface {
	StreamResponse(ctx context.Context, req LLMRequest) (ResponseStream, error)
	Provider() string
}

// ResponseStream yields response chunks. Next returns io.EOF after the last
// chunk.
type ResponseStream interface {
	Next() (StreamChunk, error)
	Close() error
}

// StreamChunk is one increment of a model response.
type StreamChunk struct {
	Content   string
	ToolCalls []ToolCallDelta
	Usage     *events.TokenUsage
}

// ToolCallDelta is a fragment of a provider-native tool call. Fragments with
// the same Index belong to the same call; ID and Name usually arrive first.
type ToolCallDelta struct {
	Index          int
	ID             string
	Name           string
	ArgumentsDelta string
}

// LLMRequest contains the request parameters for a model call
type LLMRequest struct {
	Model        string
	Messages     []Message
	Tools        []ToolSpec
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// ToolSpec describes a tool offered to the model for native tool calling.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// BuildToolSpecs converts registered tools into native tool specs. An empty
// names list selects every registered tool.
func BuildToolSpecs(reg *toolexecutor.Registry, names []string) []ToolSpec {
	if reg == nil {
		return nil
	}
	if len(names) == 0 {
		names = reg.List()
	}

	specs := make([]ToolSpec, 0, len(names))
	for _, name := range names {
		def := reg.Get(name)
		if def == nil {
			continue
		}

		properties := make(map[string]any, len(def.Parameters))
		required := []string{}
		for _, param := range def.Parameters {
			properties[param.Name] = map[string]any{
				"type":        param.Type,
				"description": param.Description,
			}
			if param.Required {
				required = append(required, param.Name)
			}
		}

		schema := map[string]any{
			"type":       "object",
			"properties": properties,
		}
		if len(required) > 0 {
			schema["required"] = required
		}

		specs = append(specs, ToolSpec{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: schema,
		})
	}
	return specs
}
