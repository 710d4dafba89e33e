package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/harun/agentcore/internal/config"
	"github.com/harun/agentcore/internal/logger"
	"github.com/spf13/cobra"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and manage the configuration file",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	RunE:  runConfigValidate,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file interactively",
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets redacted",
	RunE:  runConfigShow,
}

func init() {
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "overwrite an existing configuration file")

	configCmd.AddCommand(configValidateCmd, configInitCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(out, color.RedString("✗ %v", err))
		return err
	}

	var problems []error
	if err := cfg.Validate(); err != nil {
		problems = append(problems, err)
	}
	problems = append(problems, config.NewValidator().ValidateConfig(cfg)...)

	if len(problems) == 0 {
		fmt.Fprintln(out, color.GreenString("✓ configuration is valid"))
		return nil
	}
	for _, p := range problems {
		fmt.Fprintln(out, color.RedString("✗ %v", p))
	}
	return fmt.Errorf("configuration has %d problem(s)", len(problems))
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	path := loader.GetConfigPath()
	if _, err := os.Stat(path); err == nil && !configForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	cfg, err := config.NewWizard(cmd.InOrStdin(), cmd.OutOrStdout()).Run()
	if err != nil {
		return err
	}
	if err := loader.Save(cfg); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("✓ configuration written to %s", path))
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), logger.NewRedactor().Redact(cfg.String()))
	return nil
}
