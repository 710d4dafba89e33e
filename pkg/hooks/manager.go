package hooks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/harun/agentcore/pkg/status"
	"github.com/rs/zerolog"
)

// WildcardStatusEvent matches every status change.
const WildcardStatusEvent = "status:*"

// Hook is a shell script run when an agent lifecycle event fires.
type Hook struct {
	ID      string        `json:"id" mapstructure:"id"`
	Event   string        `json:"event" mapstructure:"event"`
	Script  string        `json:"script" mapstructure:"script"`
	Agent   string        `json:"agent,omitempty" mapstructure:"agent"` // empty matches every agent
	Timeout time.Duration `json:"timeout,omitempty" mapstructure:"timeout"`
	Enabled bool          `json:"enabled" mapstructure:"enabled"`
}

// Config configures a Hook manager.
type Config struct {
	Enabled bool
	Hooks   []Hook
	Logger  zerolog.Logger
}

// Manager executes configured hooks for lifecycle events.
type Manager struct {
	logger zerolog.Logger

	mu           sync.RWMutex
	enabled      bool
	hooksByEvent map[string][]Hook

	inflight sync.WaitGroup
}

// NewManager creates a hook manager.
func NewManager(cfg Config) (*Manager, error) {
	manager := &Manager{
		logger: cfg.Logger.With().Str("component", "hooks").Logger(),
	}
	if err := manager.Reload(cfg.Enabled, cfg.Hooks); err != nil {
		return nil, err
	}
	return manager, nil
}

// Reload replaces the configured hooks. On error the previous hooks stay in
// place. Hooks already running are not interrupted.
func (m *Manager) Reload(enabled bool, hooks []Hook) error {
	byEvent := make(map[string][]Hook)
	if enabled {
		for _, hook := range hooks {
			if !hook.Enabled {
				continue
			}
			event := strings.TrimSpace(hook.Event)
			if event == "" {
				return fmt.Errorf("hook event is required")
			}
			if strings.TrimSpace(hook.Script) == "" {
				return fmt.Errorf("hook script is required for event %q", event)
			}
			if name, ok := strings.CutPrefix(event, "status:"); ok && name != "*" {
				if _, known := status.Parse(name); !known {
					return fmt.Errorf("hook %q: unknown status %q", hook.ID, name)
				}
			}
			byEvent[event] = append(byEvent[event], hook)
		}
	}

	m.mu.Lock()
	m.enabled = enabled
	m.hooksByEvent = byEvent
	m.mu.Unlock()
	return nil
}

// StatusEvent returns the hook event name fired when an agent enters s.
func StatusEvent(s status.AgentStatus) string {
	return "status:" + s.String()
}

// Trigger executes the hooks registered for event. agentID is exposed to the
// scripts and matched against Hook.Agent.
func (m *Manager) Trigger(ctx context.Context, event, agentID string, data map[string]any) error {
	if m == nil {
		return nil
	}
	event = strings.TrimSpace(event)
	if event == "" {
		return fmt.Errorf("event is required")
	}

	hooks := m.hooksFor(event, agentID)
	if len(hooks) == 0 {
		return nil
	}

	var errs []error
	for _, hook := range hooks {
		if err := m.executeHook(ctx, event, agentID, hook, data); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (m *Manager) hooksFor(event, agentID string) []Hook {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.enabled {
		return nil
	}

	candidates := m.hooksByEvent[event]
	if strings.HasPrefix(event, "status:") && event != WildcardStatusEvent {
		candidates = append(append([]Hook(nil), candidates...), m.hooksByEvent[WildcardStatusEvent]...)
	}

	var out []Hook
	for _, hook := range candidates {
		if hook.Agent == "" || hook.Agent == agentID {
			out = append(out, hook)
		}
	}
	return out
}

// ForAgent returns a status notifier that fires hooks for agentID. Hooks run
// in the background; Wait blocks until they finish.
func (m *Manager) ForAgent(agentID string) *AgentNotifier {
	return &AgentNotifier{manager: m, agentID: agentID}
}

// Wait blocks until every hook started by a notifier has finished.
func (m *Manager) Wait() {
	if m == nil {
		return
	}
	m.inflight.Wait()
}

// AgentNotifier adapts a Manager to status change notifications of one agent.
type AgentNotifier struct {
	manager *Manager
	agentID string
}

func (n *AgentNotifier) NotifyStatusChange(newStatus, oldStatus status.AgentStatus, data map[string]any) {
	m := n.manager
	if m == nil {
		return
	}
	event := StatusEvent(newStatus)
	if len(m.hooksFor(event, n.agentID)) == 0 {
		return
	}

	payload := make(map[string]any, len(data)+2)
	for k, v := range data {
		payload[k] = v
	}
	payload["old_status"] = oldStatus.String()
	payload["new_status"] = newStatus.String()

	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()
		if err := m.Trigger(context.Background(), event, n.agentID, payload); err != nil {
			m.logger.Warn().Err(err).Str("agent_id", n.agentID).Str("event", event).Msg("Hook failed")
		}
	}()
}

func (m *Manager) executeHook(ctx context.Context, event, agentID string, hook Hook, data map[string]any) error {
	if ctx == nil {
		ctx = context.Background()
	}

	hookID := hook.ID
	if strings.TrimSpace(hookID) == "" {
		hookID = event
	}

	runCtx := ctx
	cancel := func() {}
	if hook.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, hook.Timeout)
	}
	defer cancel()

	stdin, err := json.Marshal(map[string]any{
		"event":    event,
		"agent_id": agentID,
		"data":     data,
	})
	if err != nil {
		return fmt.Errorf("hook %s: failed to encode payload: %w", hookID, err)
	}

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", hook.Script)
	cmd.Env = buildHookEnvironment(event, agentID, data)
	cmd.Stdin = bytes.NewReader(stdin)

	output, err := cmd.CombinedOutput()
	outputText := strings.TrimSpace(string(output))
	if err != nil {
		if outputText != "" {
			return fmt.Errorf("hook %s failed: %w: %s", hookID, err, outputText)
		}
		return fmt.Errorf("hook %s failed: %w", hookID, err)
	}

	if outputText != "" {
		m.logger.Debug().
			Str("event", event).
			Str("hook_id", hookID).
			Str("output", outputText).
			Msg("Hook executed")
	}

	return nil
}

func buildHookEnvironment(event, agentID string, data map[string]any) []string {
	env := append([]string{}, os.Environ()...)
	env = append(env, "AGENTCORE_HOOK_EVENT="+event, "AGENTCORE_AGENT_ID="+agentID)

	if len(data) == 0 {
		return env
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value, ok := data[key].(string)
		if !ok {
			// structured values go to scripts as JSON
			encoded, err := json.Marshal(data[key])
			if err != nil {
				value = fmt.Sprintf("%v", data[key])
			} else {
				value = string(encoded)
			}
		}
		env = append(env, "AGENTCORE_HOOK_DATA_"+normalizeEnvKey(key)+"="+value)
	}
	return env
}

func normalizeEnvKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "UNKNOWN"
	}

	upper := strings.ToUpper(key)
	builder := strings.Builder{}
	builder.Grow(len(upper))
	for _, r := range upper {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			builder.WriteRune(r)
			continue
		}
		builder.WriteRune('_')
	}
	return builder.String()
}
