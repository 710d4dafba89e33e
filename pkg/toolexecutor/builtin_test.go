package toolexecutor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBuiltinExecutor(t *testing.T) (*Executor, string) {
	t.Helper()
	root := t.TempDir()
	reg := NewRegistry()
	require.NoError(t, RegisterBuiltins(reg, BuiltinOptions{WorkspaceRoot: root}))
	return NewExecutor(reg, Options{AgentID: "test"}), root
}

func TestRegisterBuiltins(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, RegisterBuiltins(reg, BuiltinOptions{}))
	assert.Equal(t, []string{"read_file", "run_bash", "write_file"}, reg.List())

	assert.Error(t, RegisterBuiltins(nil, BuiltinOptions{}))
}

func TestBuiltin_WriteAndReadFile(t *testing.T) {
	exec, root := newBuiltinExecutor(t)
	ctx := context.Background()

	res := exec.Execute(ctx, invocation("write_file", map[string]any{
		"path":    "notes/hello.txt",
		"content": "hello world",
	}))
	require.False(t, res.IsError(), res.Error)

	data, err := os.ReadFile(filepath.Join(root, "notes", "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	res = exec.Execute(ctx, invocation("read_file", map[string]any{"path": "notes/hello.txt"}))
	require.False(t, res.IsError(), res.Error)
	out := res.Result.(map[string]any)
	assert.Equal(t, "hello world", out["content"])
	assert.Equal(t, false, out["truncated"])
}

func TestBuiltin_WriteFileAppend(t *testing.T) {
	exec, root := newBuiltinExecutor(t)
	ctx := context.Background()

	exec.Execute(ctx, invocation("write_file", map[string]any{"path": "log.txt", "content": "a"}))
	res := exec.Execute(ctx, invocation("write_file", map[string]any{"path": "log.txt", "content": "b", "append": true}))
	require.False(t, res.IsError(), res.Error)

	data, err := os.ReadFile(filepath.Join(root, "log.txt"))
	require.NoError(t, err)
	assert.Equal(t, "ab", string(data))
}

func TestBuiltin_PathEscape(t *testing.T) {
	exec, _ := newBuiltinExecutor(t)

	res := exec.Execute(context.Background(), invocation("write_file", map[string]any{
		"path":    "../outside.txt",
		"content": "x",
	}))
	assert.Contains(t, res.Error, "outside workspace root")
}

func TestBuiltin_RunBash(t *testing.T) {
	if _, err := os.Stat("/bin/bash"); err != nil {
		t.Skip("bash not available")
	}
	exec, root := newBuiltinExecutor(t)

	res := exec.Execute(context.Background(), invocation("run_bash", map[string]any{
		"command":         "echo hi && pwd && exit 3",
		"timeout_seconds": 5,
	}))
	require.False(t, res.IsError(), res.Error)

	out := res.Result.(map[string]any)
	assert.Contains(t, out["stdout"], "hi")
	assert.Contains(t, out["stdout"], filepath.Base(root))
	assert.Equal(t, 3, out["exit_code"])
}

func TestBuiltin_RunBashRequiresCommand(t *testing.T) {
	exec, _ := newBuiltinExecutor(t)

	res := exec.Execute(context.Background(), invocation("run_bash", map[string]any{"command": "   "}))
	assert.Contains(t, res.Error, "command is required")
}

func TestResolvePathInWorkspace(t *testing.T) {
	root := "/srv/ws"

	got, err := resolvePathInWorkspace(root, "a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "/srv/ws/a/b.txt", got)

	_, err = resolvePathInWorkspace(root, "/etc/passwd")
	assert.Error(t, err)

	_, err = resolvePathInWorkspace(root, "")
	assert.Error(t, err)

	_, err = resolvePathInWorkspace(root, "http://example.com/x")
	assert.Error(t, err)

	got, err = resolvePathInWorkspace(root, "..foo")
	require.NoError(t, err)
	assert.Equal(t, "/srv/ws/..foo", got)
}
