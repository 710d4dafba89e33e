package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/goccy/go-json"
	"github.com/harun/agentcore/internal/tracing"
	"github.com/harun/agentcore/pkg/gateway"
	"github.com/spf13/cobra"
)

var (
	statusAddr    string
	statusTimeout time.Duration
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the agents of a running gateway",
	Long:  `Query a running agentcore gateway over HTTP JSON-RPC and list its agents.`,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "gateway address (default is gateway.host:gateway.port from the config)")
	statusCmd.Flags().DurationVar(&statusTimeout, "timeout", 5*time.Second, "request timeout")
	rootCmd.AddCommand(statusCmd)
}

type agentListResult struct {
	Agents []agentRow `json:"agents"`
}

type agentRow struct {
	AgentID          string         `json:"agent_id"`
	Status           string         `json:"status"`
	PendingApprovals int            `json:"pending_approvals"`
	Queues           map[string]int `json:"queues"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	addr := statusAddr
	if addr == "" {
		addr = cfg.Gateway.Addr()
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), statusTimeout)
	defer cancel()

	var result agentListResult
	if err := callGateway(ctx, addr, cfg.Gateway.SharedSecret, "agent.list", nil, &result); err != nil {
		fmt.Fprintln(cmd.OutOrStdout(), "Status: unreachable")
		return err
	}

	printAgentTable(cmd.OutOrStdout(), addr, result.Agents)
	return nil
}

func printAgentTable(out io.Writer, addr string, agents []agentRow) {
	fmt.Fprintf(out, "Gateway: %s\n", addr)
	if len(agents) == 0 {
		fmt.Fprintln(out, "no agents running")
		return
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "AGENT\tSTATUS\tPENDING\tQUEUED")
	for _, a := range agents {
		st := a.Status
		switch {
		case st == "error":
			st = color.RedString(st)
		case st == "idle":
			st = color.GreenString(st)
		case st == "awaiting_tool_approval":
			st = color.YellowString(st)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", a.AgentID, st, a.PendingApprovals, formatQueues(a.Queues))
	}
	_ = tw.Flush()
}

func formatQueues(queues map[string]int) string {
	names := make([]string, 0, len(queues))
	for name, n := range queues {
		if n > 0 {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "-"
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%d", name, queues[name])
	}
	return strings.Join(parts, " ")
}

// callGateway issues one JSON-RPC call against the gateway's /rpc endpoint.
func callGateway(ctx context.Context, addr, secret, method string, params map[string]any, result any) error {
	body, err := json.Marshal(gateway.RPCRequest{
		ID:      tracing.NewTraceID(),
		Method:  method,
		Params:  params,
		JSONRPC: "2.0",
	})
	if err != nil {
		return err
	}

	url := addr
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(url, "/")+"/rpc", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(gateway.SecretHeader, secret)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway %s: %w", addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("gateway %s rejected the shared secret", addr)
	}

	var rpcResp struct {
		Result json.RawMessage    `json:"result"`
		Error  *gateway.RPCError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("gateway %s: unexpected response (%s): %w", addr, resp.Status, err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if result == nil {
		return nil
	}
	return json.Unmarshal(rpcResp.Result, result)
}
