package agent

import (
	"strings"
)

// Message roles used in conversation history.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents a message in the conversation
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall represents a provider-native tool invocation
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// AuthProfile represents authentication credentials for LLM providers
type AuthProfile struct {
	ID            string `json:"id" mapstructure:"id"`
	Provider      string `json:"provider" mapstructure:"provider"` // "anthropic", "openai"
	APIKey        string `json:"api_key" mapstructure:"api_key"`
	BaseURL       string `json:"base_url,omitempty" mapstructure:"base_url"`
	CooldownUntil *int64 `json:"cooldown_until,omitempty" mapstructure:"-"`
	FailureCount  int    `json:"failure_count" mapstructure:"-"`
	Priority      int    `json:"priority" mapstructure:"priority"`
}

// IsRetryableError checks if an error should be retried
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()
	for _, marker := range []string{
		"ECONNRESET", "ETIMEDOUT", "connection reset",
		"429", "rate limit",
		"500", "502", "503", "504", "overloaded",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// EstimateTokens provides a rough token count estimation
func EstimateTokens(messages []Message) int {
	totalChars := 0
	for _, msg := range messages {
		totalChars += len(msg.Content)
	}
	// 1 token ≈ 4 characters
	return (totalChars + 3) / 4
}
