package toolexecutor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// BuiltinOptions configures the built-in workspace tools.
type BuiltinOptions struct {
	WorkspaceRoot string
	Shell         string
}

// RegisterBuiltins registers run_bash, write_file and read_file. Their
// parameter names match the arguments produced by the streaming parser.
func RegisterBuiltins(reg *Registry, opts BuiltinOptions) error {
	if reg == nil {
		return errors.New("tool registry is required")
	}
	if opts.Shell == "" {
		opts.Shell = "bash"
	}

	tools := []ToolDefinition{
		runBashTool(opts),
		writeFileTool(opts),
		readFileTool(opts),
	}
	for _, tool := range tools {
		if err := reg.Register(tool); err != nil {
			return fmt.Errorf("failed to register tool %s: %w", tool.Name, err)
		}
	}
	return nil
}

func runBashTool(opts BuiltinOptions) ToolDefinition {
	return ToolDefinition{
		Name:        "run_bash",
		Description: "Run a shell command in the workspace.",
		Parameters: []ToolParameter{
			{Name: "command", Type: "string", Description: "Command line to run", Required: true},
			{Name: "background", Type: "boolean", Description: "Start the command and return without waiting", Required: false},
			{Name: "timeout_seconds", Type: "integer", Description: "Time limit in seconds", Required: false},
		},
		Handler: func(ctx context.Context, params map[string]any) (any, error) {
			command, _ := params["command"].(string)
			command = strings.TrimSpace(command)
			if command == "" {
				return nil, fmt.Errorf("command is required")
			}
			root, err := resolveWorkspaceRoot(ExecContextFromContext(ctx), opts)
			if err != nil {
				return nil, err
			}

			if background, _ := params["background"].(bool); background {
				// detached from the call's deadline
				cmd := exec.Command(opts.Shell, "-c", command)
				cmd.Dir = root
				if err := cmd.Start(); err != nil {
					return nil, fmt.Errorf("failed to start command: %w", err)
				}
				go func() {
					if err := cmd.Wait(); err != nil {
						log.Debug().Err(err).Int("pid", cmd.Process.Pid).Msg("Background command exited")
					}
				}()
				return map[string]any{
					"pid":        cmd.Process.Pid,
					"background": true,
				}, nil
			}

			var stdout, stderr bytes.Buffer
			cmd := exec.CommandContext(ctx, opts.Shell, "-c", command)
			cmd.Dir = root
			cmd.Stdout = &stdout
			cmd.Stderr = &stderr

			start := time.Now()
			runErr := cmd.Run()
			exitCode := 0
			if runErr != nil {
				var exitErr *exec.ExitError
				if !errors.As(runErr, &exitErr) {
					return nil, fmt.Errorf("failed to run command: %w", runErr)
				}
				exitCode = exitErr.ExitCode()
			}

			return map[string]any{
				"stdout":      stdout.String(),
				"stderr":      stderr.String(),
				"exit_code":   exitCode,
				"duration_ms": time.Since(start).Milliseconds(),
			}, nil
		},
	}
}

func writeFileTool(opts BuiltinOptions) ToolDefinition {
	return ToolDefinition{
		Name:        "write_file",
		Description: "Write content to a file in the workspace.",
		Parameters: []ToolParameter{
			{Name: "path", Type: "string", Description: "Relative file path", Required: true},
			{Name: "content", Type: "string", Description: "File content", Required: true},
			{Name: "append", Type: "boolean", Description: "Append to file (default false)", Required: false},
		},
		Handler: func(ctx context.Context, params map[string]any) (any, error) {
			root, err := resolveWorkspaceRoot(ExecContextFromContext(ctx), opts)
			if err != nil {
				return nil, err
			}
			pathValue, _ := params["path"].(string)
			target, err := resolvePathInWorkspace(root, pathValue)
			if err != nil {
				return nil, err
			}
			content, _ := params["content"].(string)
			appendMode, _ := params["append"].(bool)

			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return nil, err
			}

			flag := os.O_CREATE | os.O_WRONLY
			if appendMode {
				flag |= os.O_APPEND
			} else {
				flag |= os.O_TRUNC
			}
			f, err := os.OpenFile(target, flag, 0o644)
			if err != nil {
				return nil, err
			}
			if _, err := f.WriteString(content); err != nil {
				f.Close()
				return nil, err
			}
			if err := f.Close(); err != nil {
				return nil, err
			}

			return map[string]any{
				"path":   pathValue,
				"bytes":  len(content),
				"append": appendMode,
			}, nil
		},
	}
}

func readFileTool(opts BuiltinOptions) ToolDefinition {
	return ToolDefinition{
		Name:        "read_file",
		Description: "Read a file from the workspace.",
		Parameters: []ToolParameter{
			{Name: "path", Type: "string", Description: "Relative file path", Required: true},
			{Name: "max_bytes", Type: "integer", Description: "Maximum bytes to read (default 200000)", Required: false, Default: 200000},
		},
		Handler: func(ctx context.Context, params map[string]any) (any, error) {
			root, err := resolveWorkspaceRoot(ExecContextFromContext(ctx), opts)
			if err != nil {
				return nil, err
			}
			pathValue, _ := params["path"].(string)
			target, err := resolvePathInWorkspace(root, pathValue)
			if err != nil {
				return nil, err
			}

			maxBytes := int64(200000)
			switch v := params["max_bytes"].(type) {
			case int:
				maxBytes = int64(v)
			case float64:
				maxBytes = int64(v)
			}

			data, truncated, err := readFileWithLimit(target, maxBytes)
			if err != nil {
				return nil, err
			}

			return map[string]any{
				"path":      pathValue,
				"content":   string(data),
				"truncated": truncated,
				"bytes":     len(data),
			}, nil
		},
	}
}

func resolveWorkspaceRoot(execCtx *ExecutionContext, opts BuiltinOptions) (string, error) {
	if execCtx != nil && strings.TrimSpace(execCtx.WorkingDir) != "" {
		return filepath.Clean(execCtx.WorkingDir), nil
	}
	if strings.TrimSpace(opts.WorkspaceRoot) != "" {
		return filepath.Clean(opts.WorkspaceRoot), nil
	}
	return "", fmt.Errorf("workspace root is not configured")
}

func resolvePathInWorkspace(workspaceRoot string, pathValue string) (string, error) {
	pathValue = strings.TrimSpace(pathValue)
	if pathValue == "" {
		return "", fmt.Errorf("path is required")
	}
	if strings.Contains(pathValue, "://") {
		return "", fmt.Errorf("path must be a local file")
	}
	candidate := pathValue
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(workspaceRoot, candidate)
	}
	candidate = filepath.Clean(candidate)

	rel, err := filepath.Rel(workspaceRoot, candidate)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside workspace root", pathValue)
	}
	return candidate, nil
}

func readFileWithLimit(path string, limit int64) ([]byte, bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, false, err
	}
	defer file.Close()

	if limit <= 0 {
		limit = 200000
	}
	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, file, limit); err != nil && !errors.Is(err, io.EOF) {
		return nil, false, err
	}
	extra := make([]byte, 1)
	n, _ := file.Read(extra)
	return buf.Bytes(), n > 0, nil
}
