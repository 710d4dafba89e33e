package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/harun/agentcore/pkg/bootstrap"
)

// Names of the default bootstrap steps.
const (
	StepWorkspaceContext = "workspace_context_initialization"
	StepSystemPrompt     = "system_prompt_processing"
)

// DefaultSteps returns the bootstrap steps every agent runs unless
// Config.Steps overrides them.
func DefaultSteps() []bootstrap.Step[*Context] {
	return []bootstrap.Step[*Context]{
		bootstrap.StepFunc[*Context]{StepName: StepWorkspaceContext, Fn: initWorkspace},
		bootstrap.StepFunc[*Context]{StepName: StepSystemPrompt, Fn: processSystemPrompt},
	}
}

// initWorkspace resolves the workspace directory and creates it if missing.
func initWorkspace(ctx context.Context, ac *Context) error {
	if ac.WorkspaceDir == "" {
		return nil
	}
	dir, err := filepath.Abs(ac.WorkspaceDir)
	if err != nil {
		return fmt.Errorf("failed to resolve workspace: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create workspace: %w", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("failed to stat workspace: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("workspace %s is not a directory", dir)
	}
	ac.WorkspaceDir = dir
	ac.Logger.Debug().Str("workspace", dir).Msg("Workspace initialized")
	return nil
}

const toolGrammar = `You can act on the workspace by writing tool tags in your reply.

Run a shell command:
<run_bash timeout_seconds="30">ls -la</run_bash>
Add background="true" to start a long-running command without waiting.

Write a file:
<write_file path="relative/path.txt">file content</write_file>

Call any other tool:
<tool name="tool_name"><arg name="param">value</arg></tool>

Results come back in <tool_result> blocks on the next turn.`

// processSystemPrompt builds the final system prompt from the configured
// prompt, the agent's role and, when tool parsing is on, the tool manual.
func processSystemPrompt(ctx context.Context, ac *Context) error {
	cfg := ac.Config

	var b strings.Builder
	prompt := strings.TrimSpace(cfg.SystemPrompt)
	if prompt == "" {
		prompt = defaultSystemPrompt
	}
	b.WriteString(prompt)

	if cfg.Role != "" {
		fmt.Fprintf(&b, "\n\nYou are %s, acting as %s.", cfg.Name, cfg.Role)
	}
	if ac.WorkspaceDir != "" {
		fmt.Fprintf(&b, "\nYour workspace is %s.", ac.WorkspaceDir)
	}

	if cfg.Parser != nil && cfg.Parser.ParseToolCalls {
		b.WriteString("\n\n")
		b.WriteString(toolGrammar)
		if cfg.Tools != nil {
			if manifest := cfg.Tools.Describe(); manifest != "" {
				b.WriteString("\n\nAvailable tools:\n")
				b.WriteString(manifest)
			}
		}
	}

	ac.SystemPrompt = b.String()
	return nil
}
