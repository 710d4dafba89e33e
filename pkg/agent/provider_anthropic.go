package agent

import (
	"context"
	"io"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/harun/agentcore/pkg/events"
)

const anthropicDefaultMaxTokens = 4096

// AnthropicProvider implements LLMClient for Anthropic Claude
type AnthropicProvider struct {
	client anthropic.Client
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(apiKey string, opts ...option.RequestOption) *AnthropicProvider {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &AnthropicProvider{
		client: anthropic.NewClient(opts...),
	}
}

// Provider returns the provider name
func (p *AnthropicProvider) Provider() string {
	return "anthropic"
}

// StreamResponse opens a streamed message
func (p *AnthropicProvider) StreamResponse(ctx context.Context, request LLMRequest) (ResponseStream, error) {
	maxTokens := request.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	reqParams := anthropic.MessageNewParams{
		Model:     anthropic.Model(request.Model),
		Messages:  anthropicMessages(request.Messages),
		MaxTokens: int64(maxTokens),
	}
	if request.SystemPrompt != "" {
		reqParams.System = []anthropic.TextBlockParam{
			{Text: request.SystemPrompt},
		}
	}
	if request.Temperature > 0 {
		reqParams.Temperature = anthropic.Float(request.Temperature)
	}

	if len(request.Tools) > 0 {
		tools := make([]anthropic.ToolUnionParam, 0, len(request.Tools))
		for _, tool := range request.Tools {
			toolParam := anthropic.ToolParam{
				Name:        tool.Name,
				Description: anthropic.String(tool.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: tool.InputSchema["properties"],
				},
			}
			if required, ok := tool.InputSchema["required"].([]string); ok {
				toolParam.InputSchema.Required = required
			}
			tools = append(tools, anthropic.ToolUnionParam{OfTool: &toolParam})
		}
		reqParams.Tools = tools
	}

	return &anthropicStream{stream: p.client.Messages.NewStreaming(ctx, reqParams)}, nil
}

func anthropicMessages(history []Message) []anthropic.MessageParam {
	out := []anthropic.MessageParam{}
	for _, msg := range history {
		switch msg.Role {
		case RoleTool:
			out = append(out, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false),
			))
		case RoleAssistant:
			blocks := []anthropic.ContentBlockParamUnion{}
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, tc.Arguments, tc.Name))
			}
			if len(blocks) == 0 {
				continue
			}
			out = append(out, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleAssistant,
				Content: blocks,
			})
		case RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	return out
}

type anthropicStream struct {
	stream      *ssestream.Stream[anthropic.MessageStreamEventUnion]
	inputTokens int
}

func (s *anthropicStream) Next() (StreamChunk, error) {
	for s.stream.Next() {
		event := s.stream.Current()
		switch ev := event.AsAny().(type) {
		case anthropic.MessageStartEvent:
			s.inputTokens = int(ev.Message.Usage.InputTokens)

		case anthropic.ContentBlockStartEvent:
			if ev.ContentBlock.Type != "tool_use" {
				continue
			}
			return StreamChunk{ToolCalls: []ToolCallDelta{{
				Index: int(ev.Index),
				ID:    ev.ContentBlock.ID,
				Name:  ev.ContentBlock.Name,
			}}}, nil

		case anthropic.ContentBlockDeltaEvent:
			switch delta := ev.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if delta.Text != "" {
					return StreamChunk{Content: delta.Text}, nil
				}
			case anthropic.InputJSONDelta:
				if delta.PartialJSON != "" {
					return StreamChunk{ToolCalls: []ToolCallDelta{{
						Index:          int(ev.Index),
						ArgumentsDelta: delta.PartialJSON,
					}}}, nil
				}
			}

		case anthropic.MessageDeltaEvent:
			return StreamChunk{Usage: &events.TokenUsage{
				InputTokens:  s.inputTokens,
				OutputTokens: int(ev.Usage.OutputTokens),
			}}, nil
		}
	}
	if err := s.stream.Err(); err != nil {
		return StreamChunk{}, err
	}
	return StreamChunk{}, io.EOF
}

func (s *anthropicStream) Close() error {
	return s.stream.Close()
}
