package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Wizard provides an interactive configuration wizard
type Wizard struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewWizard creates a wizard reading answers from in and writing prompts to out.
func NewWizard(in io.Reader, out io.Writer) *Wizard {
	return &Wizard{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Run runs the interactive configuration wizard
func (w *Wizard) Run() (*Config, error) {
	w.println("=== agentcore configuration ===")
	w.println()

	cfg := DefaultConfig()
	validator := NewValidator()

	w.println("API Keys (at least one is required):")
	w.println()

	for _, provider := range validProviders {
		key, err := w.askKey(validator, provider)
		if err != nil {
			return nil, err
		}
		if key == "" {
			continue
		}
		cfg.AI.Profiles = append(cfg.AI.Profiles, AIProfile{
			ID:       provider + "-default",
			Provider: provider,
			APIKey:   key,
			Priority: len(cfg.AI.Profiles) + 1,
		})
	}

	if len(cfg.AI.Profiles) == 0 {
		return nil, fmt.Errorf("at least one API key is required")
	}

	w.println()
	w.println("Default agent:")
	model, err := w.ask("Model name [claude-sonnet-4]: ")
	if err != nil {
		return nil, err
	}
	if model != "" {
		cfg.Agents[0].Model = model
	} else if cfg.AI.Profiles[0].Provider == "openai" {
		cfg.Agents[0].Model = "gpt-4o"
	}

	auto, err := w.ask("Execute tools without approval? (y/n) [n]: ")
	if err != nil {
		return nil, err
	}
	cfg.Agents[0].AutoExecuteTools = strings.EqualFold(auto, "y")

	w.println()
	w.println("Logging:")
	level, err := w.ask("Log level (debug/info/warn/error) [info]: ")
	if err != nil {
		return nil, err
	}
	if level != "" {
		if err := validator.ValidateLogLevel(level); err != nil {
			w.printf("Warning: %v, using default (info)\n", err)
		} else {
			cfg.Logging.Level = level
		}
	}

	w.println()
	w.println("Configuration complete!")

	return cfg, nil
}

func (w *Wizard) askKey(validator *Validator, provider string) (string, error) {
	for {
		key, err := w.ask(fmt.Sprintf("%s API Key (press Enter to skip): ", providerLabel(provider)))
		if err != nil {
			return "", err
		}
		if key == "" {
			return "", nil
		}
		if err := validator.ValidateAPIKey(key, provider); err != nil {
			w.printf("Error: %v\n", err)
			continue
		}
		return key, nil
	}
}

func providerLabel(provider string) string {
	switch provider {
	case "openai":
		return "OpenAI"
	case "anthropic":
		return "Anthropic"
	default:
		return provider
	}
}

func (w *Wizard) ask(prompt string) (string, error) {
	fmt.Fprint(w.out, prompt)
	return w.readLine()
}

func (w *Wizard) println(a ...any) {
	fmt.Fprintln(w.out, a...)
}

func (w *Wizard) printf(format string, a ...any) {
	fmt.Fprintf(w.out, format, a...)
}

func (w *Wizard) readLine() (string, error) {
	line, err := w.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
