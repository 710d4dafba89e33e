package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/harun/agentcore/internal/config"
	"github.com/harun/agentcore/internal/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	cfgFile  string
	logLevel string
	envFile  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "agentcore",
	Short: "agentcore - event-driven LLM agent runtime",
	Long: `agentcore runs LLM agents as event-driven workers. Each agent drains a
prioritized event queue, streams model output through a tool-call parser and
executes tools with or without approval.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: loadEnv,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.agentcore/agentcore.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default is ./.env when present)")

	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

// loadEnv loads AGENTCORE_* overrides from a dotenv file before the config
// is read. Variables already set in the environment win.
func loadEnv(cmd *cobra.Command, args []string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   cfg.Logging.Console,
		Pretty:    cfg.Logging.Pretty,
		Output:    os.Stderr,
		Redaction: cfg.Logging.Redaction,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
	})
}

// GetRootCmd returns the root command for testing
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}
