package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/harun/agentcore/internal/config"
	"github.com/harun/agentcore/internal/observability"
	"github.com/harun/agentcore/internal/tracing"
	"github.com/harun/agentcore/pkg/agent"
	"github.com/harun/agentcore/pkg/gateway"
	"github.com/harun/agentcore/pkg/hooks"
	"github.com/harun/agentcore/pkg/status"
	"github.com/harun/agentcore/pkg/toolexecutor"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	runAgentID     string
	runListen      string
	runAutoExecute bool
	runVerbose     bool
	runTraceSample float64
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an agent with an interactive console",
	Long: `Start one configured agent and attach an interactive console to it.

With --listen (or gateway.enabled in the config) the agent is also exposed
over the websocket/JSON-RPC gateway so other clients can watch and drive it.`,
	RunE: runAgent,
}

func init() {
	runCmd.Flags().StringVar(&runAgentID, "agent", "", "id of the configured agent to run (default is the first one)")
	runCmd.Flags().StringVar(&runListen, "listen", "", "gateway listen address, e.g. 127.0.0.1:8765")
	runCmd.Flags().BoolVar(&runAutoExecute, "auto", false, "execute tools without asking for approval")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "show tool payloads and status transitions")
	runCmd.Flags().Float64Var(&runTraceSample, "trace-sample", 0, "OpenTelemetry sample ratio; spans go to <data_dir>/traces.jsonl (0 disables tracing)")

	rootCmd.AddCommand(runCmd)
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.AI.Profiles) == 0 {
		return fmt.Errorf("no AI profiles configured: run 'agentcore config init'")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Close()
	zl := log.GetZerolog()

	ac, err := selectAgent(cfg, runAgentID)
	if err != nil {
		return err
	}
	if runAutoExecute {
		ac.AutoExecuteTools = true
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	if runTraceSample > 0 {
		traces, err := os.OpenFile(filepath.Join(cfg.DataDir, "traces.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open trace file: %w", err)
		}
		defer traces.Close()
		if err := tracing.InitOpenTelemetry(tracing.OTelConfig{
			ServiceName: "agentcore",
			SampleRatio: runTraceSample,
			Output:      traces,
		}); err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracing.ShutdownOpenTelemetry(ctx); err != nil {
				zl.Warn().Err(err).Msg("Failed to flush traces")
			}
		}()
	}
	if err := observability.InitAuditLogger(filepath.Join(cfg.DataDir, "audit.log")); err != nil {
		zl.Warn().Err(err).Msg("Audit log unavailable, writing audit events to stderr")
	}
	defer observability.GetAuditLogger().Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = tracing.NewAgentRunContext(ctx, ac.ID)

	rt, err := newRuntime(cfg, ac, zl, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer rt.close()

	if err := rt.start(ctx); err != nil {
		return err
	}
	rt.watchHooks(ctx, config.NewLoader(cfgFile))

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s (%s), /help for commands\n", color.GreenString("agent"), ac.ID, ac.Model)
	if rt.server != nil {
		fmt.Fprintf(out, "%s %s\n", color.GreenString("gateway"), rt.server.Addr())
	}

	return runREPL(ctx, cmd.InOrStdin(), out, rt.agent)
}

func selectAgent(cfg *config.Config, id string) (config.AgentConfig, error) {
	if id == "" {
		return cfg.Agents[0], nil
	}
	ac, ok := cfg.Agent(id)
	if !ok {
		return config.AgentConfig{}, fmt.Errorf("agent %q is not configured", id)
	}
	return ac, nil
}

// runtime holds the collaborators of one running agent.
type runtime struct {
	agent  *agent.Agent
	server *gateway.Server
	hooks  *hooks.Manager
	notify *agent.AsyncNotifier
	logger zerolog.Logger
}

func newRuntime(cfg *config.Config, ac config.AgentConfig, logger zerolog.Logger, out io.Writer) (*runtime, error) {
	llm, err := agent.NewFailoverClient(cfg.AuthProfiles(), agent.FailoverOptions{
		MaxRetries: cfg.AI.MaxRetries,
		Logger:     &logger,
	})
	if err != nil {
		return nil, err
	}

	hm, err := hooks.NewManager(hooks.Config{
		Enabled: cfg.Hooks.Enabled,
		Hooks:   cfg.Hooks.Entries,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load hooks: %w", err)
	}

	rc := ac.ToRuntime(cfg.Parser, cfg.DataDir)
	rc.LLMClient = llm
	rc.Logger = &logger
	rc.Tools = toolexecutor.NewRegistry()
	if err := toolexecutor.RegisterBuiltins(rc.Tools, toolexecutor.BuiltinOptions{WorkspaceRoot: rc.WorkspaceDir}); err != nil {
		return nil, err
	}

	rt := &runtime{hooks: hm, logger: logger}
	notifiers := agent.MultiNotifier{
		newConsoleNotifier(out, ac.ID, runVerbose),
		hm.ForAgent(ac.ID),
	}

	addr := runListen
	if addr == "" && cfg.Gateway.Enabled {
		addr = cfg.Gateway.Addr()
	}
	directory := gateway.NewStaticDirectory()
	if addr != "" {
		rt.server, err = gateway.NewServer(gateway.Config{
			Addr:              addr,
			SharedSecret:      cfg.Gateway.SharedSecret,
			TickInterval:      time.Duration(cfg.Gateway.TickInterval) * time.Millisecond,
			RequestsPerMinute: cfg.Gateway.RequestsPerMinute,
			MaxConcurrent:     cfg.Gateway.MaxConcurrent,
			Agents:            directory,
			Logger:            logger,
		})
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, rt.server.Broadcaster().ForAgent(ac.ID))
	}

	rt.notify = agent.NewAsyncNotifier(notifiers, 256)
	rc.Notifier = rt.notify

	rt.agent, err = agent.New(rc)
	if err != nil {
		rt.notify.Close()
		return nil, err
	}
	directory.Add(rt.agent)
	return rt, nil
}

// start launches the agent, waits for bootstrap and then opens the gateway.
func (rt *runtime) start(ctx context.Context) error {
	if err := rt.agent.Start(ctx); err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	st, err := rt.agent.WaitForStatus(waitCtx, status.Idle, status.Error)
	if err != nil {
		return fmt.Errorf("agent did not finish bootstrapping: %w", err)
	}
	if st == status.Error {
		return fmt.Errorf("agent bootstrap failed, see the log for details")
	}

	if rt.server != nil {
		if err := rt.server.Start(); err != nil {
			return fmt.Errorf("failed to start gateway: %w", err)
		}
	}
	return nil
}

// watchHooks reloads hook definitions when the config file changes. A
// missing config file leaves the hooks as loaded.
func (rt *runtime) watchHooks(ctx context.Context, loader *config.Loader) {
	err := loader.Watch(ctx, func(cfg *config.Config, err error) {
		if err != nil {
			rt.logger.Warn().Err(err).Msg("Config reload failed, keeping current hooks")
			return
		}
		if err := rt.hooks.Reload(cfg.Hooks.Enabled, cfg.Hooks.Entries); err != nil {
			rt.logger.Warn().Err(err).Msg("Invalid hooks in reloaded config, keeping current hooks")
			return
		}
		rt.logger.Info().Int("hooks", len(cfg.Hooks.Entries)).Msg("Hooks reloaded")
	})
	if err != nil {
		rt.logger.Debug().Err(err).Msg("Config watch disabled")
	}
}

func (rt *runtime) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if rt.server != nil {
		if err := rt.server.Stop(ctx); err != nil {
			rt.logger.Warn().Err(err).Msg("Gateway shutdown failed")
		}
	}
	if err := rt.agent.Stop(ctx); err != nil {
		rt.logger.Warn().Err(err).Msg("Agent shutdown failed")
	}
	rt.notify.Close()
	rt.hooks.Wait()
}
