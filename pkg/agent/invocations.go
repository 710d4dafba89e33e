package agent

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/harun/agentcore/pkg/events"
	"github.com/harun/agentcore/pkg/streamparser"
)

// InvocationFromSegment converts a completed tool segment into an
// invocation. TEXT segments and tool calls without a name yield false.
func InvocationFromSegment(seg streamparser.Segment) (*events.ToolInvocation, bool) {
	args := events.NewArguments()

	switch seg.Type {
	case streamparser.SegmentRunBash:
		args.Set("command", strings.TrimSpace(seg.Content))
		copyArgs(args, seg.Metadata)
		return events.NewToolInvocation("run_bash", args, ""), true

	case streamparser.SegmentWriteFile:
		args.Set("path", seg.MetaString("path"))
		args.Set("content", seg.Content)
		copyArgs(args, seg.Metadata)
		return events.NewToolInvocation("write_file", args, ""), true

	case streamparser.SegmentToolCall:
		name := strings.TrimSpace(seg.MetaString("tool_name"))
		if name == "" {
			return nil, false
		}
		if seg.Metadata != nil {
			if v, ok := seg.Metadata.Get("arguments"); ok {
				if parsed, ok := v.(*streamparser.Metadata); ok {
					copyArgs(args, parsed)
				}
			}
		}
		return events.NewToolInvocation(name, args, ""), true
	}
	return nil, false
}

// copyArgs adds the entries of src that dst does not hold yet.
func copyArgs(dst *events.Arguments, src *streamparser.Metadata) {
	if src == nil {
		return
	}
	for pair := src.Oldest(); pair != nil; pair = pair.Next() {
		if _, exists := dst.Get(pair.Key); !exists {
			dst.Set(pair.Key, pair.Value)
		}
	}
}

// toolCallAccumulator joins native tool-call deltas by index.
type toolCallAccumulator struct {
	calls map[int]*nativeCall
}

type nativeCall struct {
	id   string
	name string
	args strings.Builder
}

func newToolCallAccumulator() *toolCallAccumulator {
	return &toolCallAccumulator{calls: make(map[int]*nativeCall)}
}

func (a *toolCallAccumulator) add(d ToolCallDelta) {
	call, ok := a.calls[d.Index]
	if !ok {
		call = &nativeCall{}
		a.calls[d.Index] = call
	}
	if d.ID != "" {
		call.id = d.ID
	}
	call.name += d.Name
	call.args.WriteString(d.ArgumentsDelta)
}

// invocations returns the accumulated calls in index order. Arguments that
// cannot be decoded are left empty.
func (a *toolCallAccumulator) invocations() ([]*events.ToolInvocation, []string) {
	indices := make([]int, 0, len(a.calls))
	for idx := range a.calls {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	var out []*events.ToolInvocation
	var bad []string
	for _, idx := range indices {
		call := a.calls[idx]
		if strings.TrimSpace(call.name) == "" {
			continue
		}
		args, ok := streamparser.ParseJSONArguments(call.args.String())
		if !ok {
			bad = append(bad, call.name)
			args = events.NewArguments()
		}
		out = append(out, events.NewToolInvocation(strings.TrimSpace(call.name), args, call.id))
	}
	return out, bad
}

// toolTurn tracks the invocations produced by one model response until each
// has a result.
type toolTurn struct {
	order   []string
	names   map[string]string
	results map[string]events.ToolResult
	native  map[string]bool
}

func newToolTurn(invs []*events.ToolInvocation, native map[string]bool) *toolTurn {
	t := &toolTurn{
		names:   make(map[string]string, len(invs)),
		results: make(map[string]events.ToolResult, len(invs)),
		native:  native,
	}
	for _, inv := range invs {
		t.order = append(t.order, inv.ID)
		t.names[inv.ID] = inv.Name
	}
	return t
}

func (t *toolTurn) expects(id string) bool {
	if _, ok := t.names[id]; !ok {
		return false
	}
	_, done := t.results[id]
	return !done
}

func (t *toolTurn) record(res events.ToolResult) {
	t.results[res.InvocationID] = res
}

func (t *toolTurn) complete() bool {
	return len(t.results) == len(t.order)
}

// feedback splits the results into tool-role messages for native calls and
// a text block for calls parsed from the response text.
func (t *toolTurn) feedback() ([]Message, string) {
	var msgs []Message
	var b strings.Builder
	for _, id := range t.order {
		res := t.results[id]
		body := formatToolOutput(res)
		if t.native[id] {
			msgs = append(msgs, Message{Role: RoleTool, ToolCallID: id, Content: body})
			continue
		}
		state := "success"
		if res.IsError() {
			state = "error"
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "<tool_result name=%q id=%q status=%q>\n%s\n</tool_result>", t.names[id], id, state, body)
	}
	return msgs, b.String()
}

func formatToolOutput(res events.ToolResult) string {
	if res.IsError() {
		return "Error: " + res.Error
	}
	switch v := res.Result.(type) {
	case nil:
		return "OK"
	case string:
		return v
	}
	data, err := json.Marshal(res.Result)
	if err != nil {
		return fmt.Sprint(res.Result)
	}
	return string(data)
}
