package config

import (
	"fmt"
	"strings"

	"github.com/harun/agentcore/pkg/status"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}

	return nil
}

// ValidateModel validates a model name. Unknown models are accepted.
func (v *Validator) ValidateModel(model string) error {
	if strings.TrimSpace(model) == "" {
		return fmt.Errorf("model name cannot be empty")
	}
	return nil
}

// ValidateAgentRole validates an agent role
func (v *Validator) ValidateAgentRole(role string) error {
	if role == "" {
		return nil // Role is optional
	}
	if contains(validRoles, role) {
		return nil
	}
	return fmt.Errorf("invalid agent role: %s (must be one of: %s)", role, strings.Join(validRoles, ", "))
}

// ValidateTemperature validates temperature value
func (v *Validator) ValidateTemperature(temp float64) error {
	if temp < 0 || temp > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", temp)
	}
	return nil
}

// ValidateMaxTokens validates max tokens value
func (v *Validator) ValidateMaxTokens(tokens int) error {
	if tokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", tokens)
	}
	if tokens > 200000 {
		return fmt.Errorf("max tokens too large (max 200000), got %d", tokens)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"trace", "debug", "info", "warn", "error"}
	if contains(validLevels, level) {
		return nil
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateHookEvent accepts "status:<name>" for a known status and "status:*".
func (v *Validator) ValidateHookEvent(event string) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return fmt.Errorf("event is required")
	}
	name, ok := strings.CutPrefix(event, "status:")
	if !ok {
		return fmt.Errorf("unsupported hook event %q (expected status:<name>)", event)
	}
	if name == "*" {
		return nil
	}
	if _, known := status.Parse(name); !known {
		return fmt.Errorf("unknown status %q in hook event", name)
	}
	return nil
}

// ValidateConfig performs comprehensive validation and reports every problem.
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	for i, profile := range cfg.AI.Profiles {
		if profile.Provider != "" {
			if err := v.ValidateAPIKey(profile.APIKey, profile.Provider); err != nil {
				errors = append(errors, fmt.Errorf("AI profile %d (%s): %w", i, profile.ID, err))
			}
		}
	}
	if cfg.AI.MaxRetries < 0 {
		errors = append(errors, fmt.Errorf("ai.max_retries must be >= 0"))
	}

	if err := cfg.Parser.Validate(); err != nil {
		errors = append(errors, fmt.Errorf("parser: %w", err))
	}
	if cfg.Parser.ParseToolCalls && len(cfg.Parser.StrategyOrder) == 0 {
		errors = append(errors, fmt.Errorf("parser: strategy_order is empty while parse_tool_calls is enabled"))
	}

	if cfg.Hooks.Enabled {
		for i, hook := range cfg.Hooks.Entries {
			if !hook.Enabled {
				continue
			}
			if err := v.ValidateHookEvent(hook.Event); err != nil {
				errors = append(errors, fmt.Errorf("hook %d: %w", i, err))
			}
			if strings.TrimSpace(hook.Script) == "" {
				errors = append(errors, fmt.Errorf("hook %d: script is required", i))
			}
			if hook.Agent != "" {
				if _, ok := cfg.Agent(hook.Agent); !ok {
					errors = append(errors, fmt.Errorf("hook %d: unknown agent %s", i, hook.Agent))
				}
			}
		}
	}

	for i, agent := range cfg.Agents {
		if err := v.ValidateModel(agent.Model); err != nil {
			errors = append(errors, fmt.Errorf("agent %d (%s): %w", i, agent.ID, err))
		}
		if err := v.ValidateAgentRole(agent.Role); err != nil {
			errors = append(errors, fmt.Errorf("agent %d (%s): %w", i, agent.ID, err))
		}
		if agent.Temperature != 0 {
			if err := v.ValidateTemperature(agent.Temperature); err != nil {
				errors = append(errors, fmt.Errorf("agent %d (%s): %w", i, agent.ID, err))
			}
		}
		if agent.MaxTokens != 0 {
			if err := v.ValidateMaxTokens(agent.MaxTokens); err != nil {
				errors = append(errors, fmt.Errorf("agent %d (%s): %w", i, agent.ID, err))
			}
		}
		if agent.ToolTimeoutSeconds < 0 {
			errors = append(errors, fmt.Errorf("agent %d (%s): tool_timeout_seconds must be >= 0", i, agent.ID))
		}
	}

	if cfg.Gateway.Enabled {
		if cfg.Gateway.Port <= 0 || cfg.Gateway.Port > 65535 {
			errors = append(errors, fmt.Errorf("gateway: invalid port %d", cfg.Gateway.Port))
		}
		if cfg.Gateway.SharedSecret == "" && cfg.Gateway.Host != "127.0.0.1" && cfg.Gateway.Host != "localhost" {
			errors = append(errors, fmt.Errorf("gateway: shared_secret is required when listening on %s", cfg.Gateway.Host))
		}
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}
