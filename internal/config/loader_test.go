package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/harun/agentcore/pkg/hooks"
	"github.com/harun/agentcore/pkg/streamparser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoader(t *testing.T) {
	loader := NewLoader("/path/to/config.json")
	assert.NotNil(t, loader)
	assert.Equal(t, "/path/to/config.json", loader.GetConfigPath())
}

func TestLoaderLoad(t *testing.T) {
	t.Run("load default config when file doesn't exist", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "nonexistent.json")

		cfg, err := NewLoader(configPath).Load()

		require.NoError(t, err)
		assert.Equal(t, "default", cfg.Agents[0].ID)
		assert.NotEmpty(t, cfg.DataDir)
		assert.Equal(t, filepath.Join(cfg.DataDir, "agentcore.log"), cfg.Logging.File)
	})

	t.Run("load config from file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")

		testConfig := `{
			"data_dir": "` + filepath.ToSlash(tmpDir) + `",
			"agents": [
				{"id": "coder", "model": "gpt-4o", "auto_execute_tools": true, "tools": ["run_bash"]}
			],
			"parser": {"parse_tool_calls": true, "strategy_order": ["json_tool", "xml_tag"]},
			"ai": {"profiles": [{"id": "oa", "provider": "openai", "api_key": "sk-test", "priority": 1}]},
			"hooks": {"enabled": true, "entries": [{"id": "h1", "event": "status:idle", "script": "true", "timeout": "5s", "enabled": true}]}
		}`
		require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))

		cfg, err := NewLoader(configPath).Load()

		require.NoError(t, err)
		require.Len(t, cfg.Agents, 1)
		assert.Equal(t, "coder", cfg.Agents[0].ID)
		assert.True(t, cfg.Agents[0].AutoExecuteTools)
		assert.Equal(t, []string{streamparser.StrategyJSONTool, streamparser.StrategyXMLTag}, cfg.Parser.StrategyOrder)
		require.Len(t, cfg.AI.Profiles, 1)
		assert.Equal(t, "sk-test", cfg.AI.Profiles[0].APIKey)
		require.Len(t, cfg.Hooks.Entries, 1)
		assert.Equal(t, 5*time.Second, cfg.Hooks.Entries[0].Timeout)
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, filepath.Join(tmpDir, "agentcore.log"), cfg.Logging.File)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("environment overrides file values", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(configPath, []byte(`{"gateway": {"shared_secret": "from-file"}}`), 0644))
		t.Setenv("AGENTCORE_GATEWAY_SHARED_SECRET", "from-env")

		cfg, err := NewLoader(configPath).Load()

		require.NoError(t, err)
		assert.Equal(t, "from-env", cfg.Gateway.SharedSecret)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(configPath, []byte(`{"agents": [`), 0644))

		_, err := NewLoader(configPath).Load()
		assert.Error(t, err)
	})
}

func TestLoaderSaveRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "agentcore.json")

	cfg := validConfig()
	cfg.DataDir = tmpDir
	cfg.Agents[0].ID = "saved"
	cfg.Hooks = HooksConfig{
		Enabled: true,
		Entries: []hooks.Hook{{ID: "notify", Event: "status:error", Script: "echo", Enabled: true}},
	}

	loader := NewLoader(configPath)
	require.NoError(t, loader.Save(cfg))

	loaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "saved", loaded.Agents[0].ID)
	assert.Equal(t, "sk-ant-test123", loaded.AI.Profiles[0].APIKey)
	require.Len(t, loaded.Hooks.Entries, 1)
	assert.Equal(t, "status:error", loaded.Hooks.Entries[0].Event)
	assert.Equal(t, cfg.Parser.StrategyOrder, loaded.Parser.StrategyOrder)
}

func TestLoadConvenience(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}

func TestLoaderWatch(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	write := func(level string) {
		t.Helper()
		body := `{"logging": {"level": "` + level + `"}, "hooks": {"enabled": true}}`
		require.NoError(t, os.WriteFile(configPath, []byte(body), 0644))
	}

	loader := NewLoader(configPath)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	assert.Error(t, loader.Watch(ctx, func(*Config, error) {}))

	write("info")
	reloaded := make(chan *Config, 16)
	require.NoError(t, loader.Watch(ctx, func(cfg *Config, err error) {
		if err == nil {
			reloaded <- cfg
		}
	}))

	write("debug")
	require.Eventually(t, func() bool {
		select {
		case cfg := <-reloaded:
			return cfg.Logging.Level == "debug" && cfg.Hooks.Enabled
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
}
