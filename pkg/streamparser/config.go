package streamparser

import (
	"errors"
	"fmt"
)

const (
	// StrategyXMLTag recognizes <run_bash>, <write_file> and <tool> markup.
	StrategyXMLTag = "xml_tag"
	// StrategyJSONTool recognizes bare JSON tool-call objects.
	StrategyJSONTool = "json_tool"

	defaultMaxTagLength  = 512
	defaultMaxJSONLength = 256 * 1024
)

// ErrUnknownStrategy is returned by New for an unrecognized strategy name.
var ErrUnknownStrategy = errors.New("unknown parse strategy")

// DefaultJSONSignatures are the whitespace-free prefixes that mark a JSON
// value as a tool call.
var DefaultJSONSignatures = []string{`{"tool"`, `{"name"`, `[{"tool"`, `[{"name"`}

// Config configures a Parser. Use DefaultConfig as a starting point: the zero
// value disables tool-call parsing.
type Config struct {
	// ParseToolCalls enables the strategies; when false all input is TEXT.
	ParseToolCalls bool `json:"parse_tool_calls" mapstructure:"parse_tool_calls"`
	// StrategyOrder lists the enabled strategies by priority.
	StrategyOrder []string `json:"strategy_order" mapstructure:"strategy_order"`
	// JSONSignatures overrides DefaultJSONSignatures for the json_tool strategy.
	JSONSignatures []string `json:"json_signatures,omitempty" mapstructure:"json_signatures"`
	// MaxTagLength bounds how far an opening tag may extend before it is
	// treated as text.
	MaxTagLength int `json:"max_tag_length,omitempty" mapstructure:"max_tag_length"`
	// MaxJSONLength bounds a buffered JSON tool call.
	MaxJSONLength int `json:"max_json_length,omitempty" mapstructure:"max_json_length"`
}

// DefaultConfig returns the default parser configuration.
func DefaultConfig() Config {
	return Config{
		ParseToolCalls: true,
		StrategyOrder:  []string{StrategyXMLTag},
		MaxTagLength:   defaultMaxTagLength,
		MaxJSONLength:  defaultMaxJSONLength,
	}
}

// Validate checks strategy names.
func (c Config) Validate() error {
	for _, name := range c.StrategyOrder {
		switch name {
		case StrategyXMLTag, StrategyJSONTool:
		default:
			return fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
		}
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.ParseToolCalls && len(c.StrategyOrder) == 0 {
		c.StrategyOrder = []string{StrategyXMLTag}
	}
	if len(c.JSONSignatures) == 0 {
		c.JSONSignatures = DefaultJSONSignatures
	}
	if c.MaxTagLength <= 0 {
		c.MaxTagLength = defaultMaxTagLength
	}
	if c.MaxJSONLength <= 0 {
		c.MaxJSONLength = defaultMaxJSONLength
	}
	return c
}
