// Package toolexecutor registers and executes structured tools for agents.
//
// Invariants:
// - Tool names are unique within a Registry.
// - Arguments are schema-validated before execution.
// - Execute never panics and always returns a result carrying the invocation id.
//
// Usage:
//
//	reg := toolexecutor.NewRegistry()
//	_ = reg.Register(toolexecutor.ToolDefinition{
//		Name: "echo",
//		Description: "Echo input",
//		Parameters: []toolexecutor.ToolParameter{{Name: "text", Type: "string", Description: "text", Required: true}},
//		Handler: func(ctx context.Context, params map[string]any) (any, error) { return params["text"], nil },
//	})
//	exec := toolexecutor.NewExecutor(reg, toolexecutor.Options{Timeout: 10 * time.Second})
//	res := exec.Execute(ctx, invocation)
package toolexecutor
