package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/harun/agentcore/pkg/streamparser"
	"github.com/spf13/cobra"
)

var (
	parseChunkSize  int
	parseStrategies []string
	parseNoTools    bool
	parseSegments   bool
)

var parseCmd = &cobra.Command{
	Use:   "parse [file|-]",
	Short: "Run model output through the streaming tool-call parser",
	Long: `Feed a file (or stdin) through the streaming parser in fixed-size chunks
and print the resulting segment events as JSON lines. With --segments the
events are reduced to whole segments first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runParse,
}

func init() {
	parseCmd.Flags().IntVar(&parseChunkSize, "chunk-size", 16, "characters per chunk fed to the parser")
	parseCmd.Flags().StringSliceVar(&parseStrategies, "strategy", nil, "strategies in priority order (xml_tag, json_tool)")
	parseCmd.Flags().BoolVar(&parseNoTools, "no-tools", false, "disable tool-call parsing")
	parseCmd.Flags().BoolVar(&parseSegments, "segments", false, "print whole segments instead of events")

	rootCmd.AddCommand(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pc := cfg.Parser
	if len(parseStrategies) > 0 {
		pc.ParseToolCalls = true
		pc.StrategyOrder = parseStrategies
	}
	if parseNoTools {
		pc.ParseToolCalls = false
	}

	in := cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	evs, err := parseChunked(pc, string(data), parseChunkSize)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	if parseSegments {
		for _, seg := range streamparser.ExtractSegments(evs) {
			if err := enc.Encode(seg); err != nil {
				return err
			}
		}
		return nil
	}
	for _, ev := range evs {
		if err := enc.Encode(ev); err != nil {
			return err
		}
	}
	return nil
}

// parseChunked feeds input to a new parser size characters at a time.
func parseChunked(cfg streamparser.Config, input string, size int) ([]streamparser.SegmentEvent, error) {
	p, err := streamparser.New(cfg)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = len(input)
	}

	var evs []streamparser.SegmentEvent
	rs := []rune(input)
	for start := 0; start < len(rs); start += size {
		end := min(start+size, len(rs))
		evs = append(evs, p.Feed(string(rs[start:end]))...)
	}
	return append(evs, p.Finalize()...), nil
}
