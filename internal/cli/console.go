package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/goccy/go-json"
	"github.com/harun/agentcore/pkg/events"
	"github.com/harun/agentcore/pkg/status"
	"github.com/harun/agentcore/pkg/streamparser"
)

// consoleNotifier renders an agent's output stream and status changes on a
// terminal.
type consoleNotifier struct {
	mu      sync.Mutex
	out     io.Writer
	agentID string
	verbose bool
	inText  bool
}

func newConsoleNotifier(out io.Writer, agentID string, verbose bool) *consoleNotifier {
	return &consoleNotifier{out: out, agentID: agentID, verbose: verbose}
}

func (c *consoleNotifier) NotifySegmentEvent(_ string, ev streamparser.SegmentEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Kind {
	case streamparser.EventStart:
		if ev.SegmentType == streamparser.SegmentText {
			if !c.inText {
				fmt.Fprint(c.out, color.MagentaString(c.agentID)+": ")
				c.inText = true
			}
			return
		}
		c.breakLine()
		fmt.Fprintf(c.out, "%s %s\n", color.YellowString("▶ %s", strings.ToLower(string(ev.SegmentType))), formatMetadata(ev.Metadata))
	case streamparser.EventContent:
		if ev.SegmentType == streamparser.SegmentText {
			fmt.Fprint(c.out, ev.Delta)
		} else if c.verbose {
			fmt.Fprint(c.out, color.HiBlackString(ev.Delta))
		}
	case streamparser.EventMetadata:
		if c.verbose {
			fmt.Fprintf(c.out, "%s %s\n", color.HiBlackString("  meta"), formatMetadata(ev.Metadata))
		}
	}
}

func (c *consoleNotifier) NotifyStatusChange(newStatus, oldStatus status.AgentStatus, data map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch newStatus {
	case status.AwaitingToolApproval:
		c.breakLine()
		fmt.Fprintf(c.out, "%s %v %s\n  /approve %v  or  /deny %v <reason>\n",
			color.YellowString("approval required:"),
			data["tool_name"],
			formatValue(data["arguments"]),
			data["invocation_id"],
			data["invocation_id"])
	case status.ExecutingTool:
		c.breakLine()
		fmt.Fprintf(c.out, "%s %v\n", color.CyanString("running"), data["tool_name"])
	case status.ProcessingToolResult:
		if msg, ok := data["error"]; ok {
			fmt.Fprintf(c.out, "%s %v: %v\n", color.RedString("tool failed"), data["tool_name"], msg)
		}
	case status.ToolDenied:
		fmt.Fprintf(c.out, "%s %v\n", color.RedString("denied"), data["invocation_id"])
	case status.Error:
		c.breakLine()
		fmt.Fprintf(c.out, "%s %v\n", color.RedString("error:"), data["error_message"])
	case status.Idle:
		c.breakLine()
	}

	if c.verbose {
		fmt.Fprintln(c.out, color.HiBlackString("[%s → %s]", oldStatus, newStatus))
	}
}

// breakLine ends an open text line. Callers hold c.mu.
func (c *consoleNotifier) breakLine() {
	if c.inText {
		fmt.Fprintln(c.out)
		c.inText = false
	}
}

func formatMetadata(meta *streamparser.Metadata) string {
	if meta == nil || meta.Len() == 0 {
		return ""
	}
	parts := make([]string, 0, meta.Len())
	for pair := meta.Oldest(); pair != nil; pair = pair.Next() {
		parts = append(parts, fmt.Sprintf("%s=%s", pair.Key, formatValue(pair.Value)))
	}
	return strings.Join(parts, " ")
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}

// replAgent is the part of an agent driven by the interactive console.
type replAgent interface {
	ID() string
	Status() status.AgentStatus
	PostUserMessage(content string, metadata map[string]string) error
	Approve(invocationID string) error
	Deny(invocationID, reason string) error
	PendingApprovals() []*events.ToolInvocation
}

const replHelp = `commands:
  /pending                 list invocations awaiting approval
  /approve <id|all>        approve an invocation
  /deny <id> [reason]      deny an invocation
  /status                  show the agent status
  /exit                    stop the agent and quit
anything else is sent to the agent`

// runREPL reads console lines until EOF, /exit or ctx is done.
func runREPL(ctx context.Context, in io.Reader, out io.Writer, a replAgent) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return <-scanErr
			}
			quit, err := handleLine(out, a, strings.TrimSpace(line))
			if err != nil {
				fmt.Fprintln(out, color.RedString("error: %v", err))
			}
			if quit {
				return nil
			}
		}
	}
}

func handleLine(out io.Writer, a replAgent, line string) (bool, error) {
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		if line == "exit" || line == "quit" {
			return true, nil
		}
		return false, a.PostUserMessage(line, map[string]string{"source": "console"})
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/exit", "/quit":
		return true, nil
	case "/help":
		fmt.Fprintln(out, replHelp)
	case "/status":
		fmt.Fprintf(out, "%s: %s\n", a.ID(), colorStatus(a.Status()))
	case "/pending":
		pending := a.PendingApprovals()
		if len(pending) == 0 {
			fmt.Fprintln(out, "no pending approvals")
			return false, nil
		}
		sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })
		for _, inv := range pending {
			fmt.Fprintf(out, "%s %s %s\n", inv.ID, color.YellowString(inv.Name), formatValue(inv.ArgumentsMap()))
		}
	case "/approve":
		if len(fields) < 2 {
			return false, fmt.Errorf("usage: /approve <id|all>")
		}
		if fields[1] == "all" {
			for _, inv := range a.PendingApprovals() {
				if err := a.Approve(inv.ID); err != nil {
					return false, err
				}
			}
			return false, nil
		}
		return false, a.Approve(fields[1])
	case "/deny":
		if len(fields) < 2 {
			return false, fmt.Errorf("usage: /deny <id> [reason]")
		}
		return false, a.Deny(fields[1], strings.Join(fields[2:], " "))
	default:
		return false, fmt.Errorf("unknown command %s (try /help)", fields[0])
	}
	return false, nil
}

func colorStatus(s status.AgentStatus) string {
	switch {
	case s == status.Error:
		return color.RedString(s.String())
	case s == status.Idle:
		return color.GreenString(s.String())
	case s == status.AwaitingToolApproval:
		return color.YellowString(s.String())
	case s.IsProcessing():
		return color.CyanString(s.String())
	default:
		return s.String()
	}
}
