package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/harun/agentcore/internal/observability"
	"github.com/harun/agentcore/internal/tracing"
	"github.com/harun/agentcore/pkg/events"
	"github.com/harun/agentcore/pkg/status"
	"github.com/harun/agentcore/pkg/streamparser"
	"go.opentelemetry.io/otel/attribute"
)

// handleLLMUserMessage streams one model response through the parser and
// reports it as LLMCompleteResponseReceived.
func handleLLMUserMessage(ctx context.Context, ac *Context, ev events.Event) error {
	e := ev.(events.LLMUserMessageReady)
	if _, current := ac.Transition(); current != status.AwaitingLLMResponse {
		ac.Logger.Debug().Str("status", current.String()).Msg("Skipping model turn outside awaiting state")
		return nil
	}
	if e.Message.Content != "" {
		ac.AppendHistory(Message{Role: RoleUser, Content: e.Message.Content})
	}

	resp, native, err := ac.streamResponse(ctx)
	if err != nil {
		ac.Logger.Error().Err(err).Msg("Model response failed")
		ac.Enqueue(events.LLMCompleteResponseReceived{
			Response: events.CompleteResponse{Text: err.Error()},
			IsError:  true,
		})
		return nil
	}

	assistant := Message{Role: RoleAssistant, Content: resp.Text}
	for _, inv := range resp.Invocations {
		if native[inv.ID] {
			assistant.ToolCalls = append(assistant.ToolCalls, ToolCall{
				ID:        inv.ID,
				Name:      inv.Name,
				Arguments: inv.ArgumentsMap(),
			})
		}
	}
	ac.AppendHistory(assistant)
	ac.nativeIDs = native

	ac.Enqueue(events.LLMCompleteResponseReceived{Response: resp})
	return nil
}

// streamResponse runs one streamed model call. The returned set holds the
// ids of invocations that came from provider-native tool calls.
func (c *Context) streamResponse(ctx context.Context) (events.CompleteResponse, map[string]bool, error) {
	a := c.agent
	ctx = tracing.NewTurnContext(ctx)
	ctx, span := tracing.StartSpan(ctx, "agent.llm_stream",
		attribute.String("agent.id", c.AgentID),
		attribute.String("llm.provider", a.cfg.LLMClient.Provider()),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, c.Logger)

	start := time.Now()
	resp, native, err := c.consumeStream(ctx)
	observability.RecordLLMStream(a.cfg.LLMClient.Provider(), time.Since(start), err == nil)
	if err != nil {
		tracing.FailSpan(span, err)
		return events.CompleteResponse{}, nil, err
	}

	logger.Debug().
		Int("text_bytes", len(resp.Text)).
		Int("invocations", len(resp.Invocations)).
		Dur("duration", time.Since(start)).
		Msg("Model response complete")
	return resp, native, nil
}

func (c *Context) consumeStream(ctx context.Context) (events.CompleteResponse, map[string]bool, error) {
	a := c.agent
	req := c.buildRequest()

	stream, err := a.cfg.LLMClient.StreamResponse(ctx, req)
	if err != nil {
		return events.CompleteResponse{}, nil, fmt.Errorf("failed to open response stream: %w", err)
	}
	defer stream.Close()

	parser, err := streamparser.New(*a.cfg.Parser)
	if err != nil {
		return events.CompleteResponse{}, nil, fmt.Errorf("failed to create parser: %w", err)
	}

	var (
		raw      strings.Builder
		segEvts  []streamparser.SegmentEvent
		usage    *events.TokenUsage
		toolAcc  = newToolCallAccumulator()
		emitSegs = func(evs []streamparser.SegmentEvent) {
			segEvts = append(segEvts, evs...)
			if a.segmentNotifier != nil {
				for _, sev := range evs {
					a.segmentNotifier.NotifySegmentEvent(c.AgentID, sev)
				}
			}
		}
	)

	for {
		chunk, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return events.CompleteResponse{}, nil, fmt.Errorf("response stream failed: %w", err)
		}
		if chunk.Content != "" {
			raw.WriteString(chunk.Content)
			emitSegs(parser.Feed(chunk.Content))
		}
		for _, d := range chunk.ToolCalls {
			toolAcc.add(d)
		}
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
	}
	emitSegs(parser.Finalize())

	var invocations []*events.ToolInvocation
	for _, seg := range streamparser.ExtractSegments(segEvts) {
		if !seg.Type.IsTool() {
			continue
		}
		inv, ok := InvocationFromSegment(seg)
		if !ok {
			c.Logger.Warn().Str("segment_id", seg.ID).Str("segment_type", string(seg.Type)).Msg("Tool segment without a tool name")
			continue
		}
		invocations = append(invocations, inv)
	}

	nativeInvs, bad := toolAcc.invocations()
	for _, name := range bad {
		c.Logger.Warn().Str("tool", name).Msg("Could not decode native tool call arguments")
	}
	native := make(map[string]bool, len(nativeInvs))
	for _, inv := range nativeInvs {
		native[inv.ID] = true
	}
	invocations = append(invocations, nativeInvs...)

	return events.CompleteResponse{
		Text:        raw.String(),
		Invocations: invocations,
		Usage:       usage,
	}, native, nil
}

func (c *Context) buildRequest() LLMRequest {
	cfg := c.Config
	req := LLMRequest{
		Model:        cfg.Model,
		Messages:     compactHistory(c.History(), cfg.MaxContextTokens),
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
		SystemPrompt: c.SystemPrompt,
	}
	if cfg.NativeTools {
		req.Tools = BuildToolSpecs(cfg.Tools, cfg.ToolNames)
	}
	return req
}

// compactHistory keeps the most recent messages when the history exceeds
// maxTokens, replacing older ones with a summary line.
func compactHistory(messages []Message, maxTokens int) []Message {
	const recentCount = 20
	if maxTokens <= 0 || EstimateTokens(messages) <= maxTokens || len(messages) <= recentCount {
		return messages
	}

	cut := len(messages) - recentCount
	// tool results must follow the assistant message that requested them
	for cut < len(messages) && messages[cut].Role == RoleTool {
		cut++
	}

	out := make([]Message, 0, len(messages)-cut+1)
	out = append(out, Message{
		Role:    RoleUser,
		Content: fmt.Sprintf("[Previous conversation summary: %d messages exchanged]", cut),
	})
	return append(out, messages[cut:]...)
}

// handleCompleteResponse fans the response's invocations out as pending
// tool invocations, or ends the turn when there are none.
func handleCompleteResponse(ctx context.Context, ac *Context, ev events.Event) error {
	e := ev.(events.LLMCompleteResponseReceived)
	if _, current := ac.Transition(); current != status.AnalyzingLLMResponse {
		ac.Logger.Debug().Str("status", current.String()).Msg("Ignoring late model response")
		return nil
	}

	if e.IsError {
		ac.Logger.Warn().Str("error", e.Response.Text).Msg("Turn ended by model error")
		ac.Enqueue(events.AgentIdle{})
		return nil
	}

	invs := e.Response.Invocations
	if len(invs) == 0 {
		ac.Enqueue(events.AgentIdle{})
		return nil
	}

	ac.turn = newToolTurn(invs, ac.nativeIDs)
	ac.nativeIDs = nil
	for _, inv := range invs {
		ac.Enqueue(events.PendingToolInvocation{Invocation: inv})
	}
	return nil
}
