package config

import (
	"strings"
	"testing"

	"github.com/harun/agentcore/pkg/hooks"
	"github.com/stretchr/testify/assert"
)

func TestValidateAPIKey(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name     string
		key      string
		provider string
		wantErr  bool
	}{
		{"valid anthropic", "sk-ant-abc", "anthropic", false},
		{"invalid anthropic", "sk-abc", "anthropic", true},
		{"valid openai", "sk-abc", "openai", false},
		{"invalid openai", "abc", "openai", true},
		{"empty", "", "openai", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateAPIKey(tt.key, tt.provider)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateScalars(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateModel("anything-goes"))
	assert.Error(t, v.ValidateModel(" "))

	assert.NoError(t, v.ValidateAgentRole(""))
	assert.NoError(t, v.ValidateAgentRole("reviewer"))
	assert.Error(t, v.ValidateAgentRole("captain"))

	assert.NoError(t, v.ValidateTemperature(1.5))
	assert.Error(t, v.ValidateTemperature(2.5))
	assert.Error(t, v.ValidateTemperature(-0.1))

	assert.NoError(t, v.ValidateMaxTokens(1024))
	assert.Error(t, v.ValidateMaxTokens(0))
	assert.Error(t, v.ValidateMaxTokens(300000))

	assert.NoError(t, v.ValidateLogLevel("debug"))
	assert.Error(t, v.ValidateLogLevel("loud"))
}

func TestValidateHookEvent(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateHookEvent("status:idle"))
	assert.NoError(t, v.ValidateHookEvent("status:*"))
	assert.Error(t, v.ValidateHookEvent("status:sleeping"))
	assert.Error(t, v.ValidateHookEvent("message.received"))
	assert.Error(t, v.ValidateHookEvent(""))
}

func TestValidateConfig(t *testing.T) {
	v := NewValidator()

	t.Run("valid", func(t *testing.T) {
		assert.Empty(t, v.ValidateConfig(validConfig()))
	})

	t.Run("collects every problem", func(t *testing.T) {
		cfg := validConfig()
		cfg.AI.Profiles[0].APIKey = "bad"
		cfg.Agents[0].Temperature = 3
		cfg.Agents[0].ToolTimeoutSeconds = -1
		cfg.Logging.Level = "loud"
		cfg.Parser.StrategyOrder = nil
		cfg.Hooks = HooksConfig{
			Enabled: true,
			Entries: []hooks.Hook{{Event: "status:nope", Agent: "ghost", Enabled: true}},
		}
		cfg.Gateway = GatewayConfig{Enabled: true, Host: "0.0.0.0", Port: 9000}

		errs := v.ValidateConfig(cfg)

		var joined []string
		for _, err := range errs {
			joined = append(joined, err.Error())
		}
		all := strings.Join(joined, "\n")
		assert.Contains(t, all, "Anthropic API key")
		assert.Contains(t, all, "temperature")
		assert.Contains(t, all, "tool_timeout_seconds")
		assert.Contains(t, all, "invalid log level")
		assert.Contains(t, all, "strategy_order is empty")
		assert.Contains(t, all, "unknown status")
		assert.Contains(t, all, "script is required")
		assert.Contains(t, all, "unknown agent ghost")
		assert.Contains(t, all, "shared_secret is required")
	})
}
