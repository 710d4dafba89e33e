package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/harun/agentcore/pkg/agent"
	"github.com/harun/agentcore/pkg/hooks"
	"github.com/harun/agentcore/pkg/streamparser"
)

// Config represents the main agentcore configuration
type Config struct {
	// Agents
	Agents []AgentConfig `json:"agents" mapstructure:"agents"`

	// Parser applies to every agent
	Parser streamparser.Config `json:"parser" mapstructure:"parser"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// Gateway configuration
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway"`

	// Hooks configuration
	Hooks HooksConfig `json:"hooks" mapstructure:"hooks"`

	// AI configuration
	AI AIConfig `json:"ai" mapstructure:"ai"`
}

// AgentConfig represents an agent configuration
type AgentConfig struct {
	ID                 string   `json:"id" mapstructure:"id"`
	Name               string   `json:"name" mapstructure:"name"`
	Role               string   `json:"role" mapstructure:"role"`
	Model              string   `json:"model" mapstructure:"model"`
	Temperature        float64  `json:"temperature" mapstructure:"temperature"`
	MaxTokens          int      `json:"max_tokens" mapstructure:"max_tokens"`
	MaxContextTokens   int      `json:"max_context_tokens" mapstructure:"max_context_tokens"`
	SystemPrompt       string   `json:"system_prompt" mapstructure:"system_prompt"`
	AutoExecuteTools   bool     `json:"auto_execute_tools" mapstructure:"auto_execute_tools"`
	NativeTools        bool     `json:"native_tools" mapstructure:"native_tools"`
	Tools              []string `json:"tools" mapstructure:"tools"` // allowed tool names, "*" for all
	Workspace          string   `json:"workspace" mapstructure:"workspace"`
	ToolTimeoutSeconds int      `json:"tool_timeout_seconds" mapstructure:"tool_timeout_seconds"`
	EventLogSize       int      `json:"event_log_size" mapstructure:"event_log_size"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// GatewayConfig holds gateway server configuration
type GatewayConfig struct {
	Enabled           bool   `json:"enabled" mapstructure:"enabled"`
	Host              string `json:"host" mapstructure:"host"`
	Port              int    `json:"port" mapstructure:"port"`
	SharedSecret      string `json:"shared_secret" mapstructure:"shared_secret"`
	TickInterval      int    `json:"tick_interval_ms" mapstructure:"tick_interval_ms"`
	RequestsPerMinute int    `json:"requests_per_minute" mapstructure:"requests_per_minute"`
	MaxConcurrent     int    `json:"max_concurrent" mapstructure:"max_concurrent"`
}

// Addr returns host:port.
func (g GatewayConfig) Addr() string {
	return fmt.Sprintf("%s:%d", g.Host, g.Port)
}

// HooksConfig holds status hook configuration
type HooksConfig struct {
	Enabled bool         `json:"enabled" mapstructure:"enabled"`
	Entries []hooks.Hook `json:"entries" mapstructure:"entries"`
}

// AIConfig holds AI provider configuration
type AIConfig struct {
	Profiles   []AIProfile `json:"profiles" mapstructure:"profiles"`
	MaxRetries int         `json:"max_retries" mapstructure:"max_retries"`
}

// AIProfile represents an AI provider profile
type AIProfile struct {
	ID       string `json:"id" mapstructure:"id"`
	Provider string `json:"provider" mapstructure:"provider"` // anthropic, openai
	APIKey   string `json:"api_key" mapstructure:"api_key"`
	BaseURL  string `json:"base_url,omitempty" mapstructure:"base_url"`
	Priority int    `json:"priority" mapstructure:"priority"`
}

var (
	validProviders = []string{"anthropic", "openai"}
	validRoles     = []string{"coordinator", "worker", "reviewer", "general"}
)

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Parser: streamparser.DefaultConfig(),
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Pretty:    true,
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		Gateway: GatewayConfig{
			Enabled:      false,
			Host:         "127.0.0.1",
			Port:         8765,
			TickInterval: 30000,
		},
		AI: AIConfig{
			Profiles:   []AIProfile{},
			MaxRetries: 3,
		},
		Agents: []AgentConfig{
			{
				ID:                 "default",
				Name:               "Default Agent",
				Role:               "general",
				Model:              "claude-sonnet-4",
				Temperature:        0.7,
				MaxTokens:          4096,
				Tools:              []string{"*"},
				ToolTimeoutSeconds: 120,
			},
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Agent returns the agent configuration with the given id.
func (c *Config) Agent(id string) (AgentConfig, bool) {
	for _, a := range c.Agents {
		if a.ID == id {
			return a, true
		}
	}
	return AgentConfig{}, false
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Require at least one AI profile
	if len(c.AI.Profiles) == 0 {
		return fmt.Errorf("no AI credentials configured: at least one AI profile is required")
	}

	for i, profile := range c.AI.Profiles {
		if profile.ID == "" {
			return fmt.Errorf("AI profile %d: ID is required", i)
		}
		if profile.Provider == "" {
			return fmt.Errorf("AI profile %s: provider is required", profile.ID)
		}
		if profile.APIKey == "" {
			return fmt.Errorf("AI profile %s: api_key is required", profile.ID)
		}
		if !contains(validProviders, profile.Provider) {
			return fmt.Errorf("AI profile %s: invalid provider %s (must be: anthropic, openai)", profile.ID, profile.Provider)
		}
	}

	if len(c.Agents) == 0 {
		return fmt.Errorf("at least one agent must be configured")
	}

	seen := make(map[string]bool, len(c.Agents))
	for i, a := range c.Agents {
		if a.ID == "" {
			return fmt.Errorf("agent %d: ID is required", i)
		}
		if seen[a.ID] {
			return fmt.Errorf("agent %s: duplicate ID", a.ID)
		}
		seen[a.ID] = true
		if a.Model == "" {
			return fmt.Errorf("agent %s: model is required", a.ID)
		}
		if a.Role != "" && !contains(validRoles, a.Role) {
			return fmt.Errorf("agent %s: invalid role %s", a.ID, a.Role)
		}
	}

	if err := c.Parser.Validate(); err != nil {
		return fmt.Errorf("parser: %w", err)
	}

	if c.Gateway.Enabled && (c.Gateway.Port <= 0 || c.Gateway.Port > 65535) {
		return fmt.Errorf("gateway: invalid port %d", c.Gateway.Port)
	}

	return nil
}

// AuthProfiles converts the configured AI profiles for the agent runtime.
func (c *Config) AuthProfiles() []agent.AuthProfile {
	out := make([]agent.AuthProfile, 0, len(c.AI.Profiles))
	for _, p := range c.AI.Profiles {
		out = append(out, agent.AuthProfile{
			ID:       p.ID,
			Provider: p.Provider,
			APIKey:   p.APIKey,
			BaseURL:  p.BaseURL,
			Priority: p.Priority,
		})
	}
	return out
}

// ToRuntime converts a into an agent.Config using the shared parser
// settings. The LLM client, tools and notifier are left to the caller.
func (a AgentConfig) ToRuntime(parser streamparser.Config, dataDir string) agent.Config {
	p := parser
	workspace := a.Workspace
	if workspace == "" && dataDir != "" {
		workspace = filepath.Join(dataDir, "workspaces", a.ID)
	}

	var toolNames []string
	for _, name := range a.Tools {
		if name == "*" {
			toolNames = nil
			break
		}
		toolNames = append(toolNames, name)
	}

	return agent.Config{
		AgentID:          a.ID,
		Name:             a.Name,
		Role:             a.Role,
		SystemPrompt:     a.SystemPrompt,
		Model:            a.Model,
		Temperature:      a.Temperature,
		MaxTokens:        a.MaxTokens,
		MaxContextTokens: a.MaxContextTokens,
		AutoExecuteTools: a.AutoExecuteTools,
		NativeTools:      a.NativeTools,
		Parser:           &p,
		ToolNames:        toolNames,
		ToolTimeout:      time.Duration(a.ToolTimeoutSeconds) * time.Second,
		WorkspaceDir:     workspace,
		EventLogSize:     a.EventLogSize,
	}
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
