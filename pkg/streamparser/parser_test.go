package streamparser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newParser(t *testing.T, strategies ...string) *Parser {
	t.Helper()
	cfg := DefaultConfig()
	if len(strategies) > 0 {
		cfg.StrategyOrder = strategies
	}
	p, err := New(cfg)
	require.NoError(t, err)
	return p
}

func feedAll(p *Parser, chunks ...string) []SegmentEvent {
	var evs []SegmentEvent
	for _, c := range chunks {
		evs = append(evs, p.Feed(c)...)
	}
	return append(evs, p.Finalize()...)
}

func charChunks(s string) []string {
	var out []string
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

func sizedChunks(s string, size int) []string {
	rs := []rune(s)
	var out []string
	for i := 0; i < len(rs); i += size {
		end := i + size
		if end > len(rs) {
			end = len(rs)
		}
		out = append(out, string(rs[i:end]))
	}
	return out
}

func metaValue(t *testing.T, seg Segment, key string) any {
	t.Helper()
	v, ok := seg.Metadata.Get(key)
	require.True(t, ok, "metadata %q missing on %s", key, seg.ID)
	return v
}

// assertWellFormed checks START/CONTENT/END ordering and that segments never overlap.
func assertWellFormed(t *testing.T, evs []SegmentEvent) {
	t.Helper()
	var open string
	started := make(map[string]bool)
	for _, ev := range evs {
		switch ev.Kind {
		case EventStart:
			assert.Empty(t, open, "segment %s started while %s open", ev.SegmentID, open)
			assert.False(t, started[ev.SegmentID], "segment %s started twice", ev.SegmentID)
			started[ev.SegmentID] = true
			open = ev.SegmentID
		case EventContent:
			assert.Equal(t, open, ev.SegmentID)
			assert.NotEmpty(t, ev.Delta)
		case EventMetadata:
			assert.Equal(t, open, ev.SegmentID)
		case EventEnd:
			assert.Equal(t, open, ev.SegmentID)
			open = ""
		}
	}
	assert.Empty(t, open, "segment left open after finalize")
}

func TestParser_ChunkInvariance(t *testing.T) {
	input := "<run_bash background='true' timeout_seconds='7'>ls -la</run_bash>"

	whole := ExtractSegments(feedAll(newParser(t), input))
	perChar := ExtractSegments(feedAll(newParser(t), charChunks(input)...))

	for _, segs := range [][]Segment{whole, perChar} {
		require.Len(t, segs, 1)
		seg := segs[0]
		assert.Equal(t, SegmentRunBash, seg.Type)
		assert.Equal(t, "seg_1", seg.ID)
		assert.Equal(t, "ls -la", seg.Content)
		assert.Equal(t, true, metaValue(t, seg, "background"))
		assert.Equal(t, 7, metaValue(t, seg, "timeout_seconds"))
		assert.True(t, seg.Complete)
	}
	assert.Equal(t, whole, perChar)
}

func TestParser_ChunkInvarianceMixed(t *testing.T) {
	input := "Plan: <write_file path=\"notes/a.txt\">line 1\nline <b>2</b>\n</write_file>\n" +
		"then <run_bash>\n<arg name=\"command\">go test ./...</arg>\n<arg name=\"timeout_seconds\">30</arg>\n</run_bash>" +
		" and <tool name=\"search\"><arg name=\"query\">a &lt; b</arg></tool> done < ok"

	want := ExtractSegments(feedAll(newParser(t), input))
	require.Len(t, want, 7)

	for _, size := range []int{1, 2, 3, 5, 7, 11, 64} {
		evs := feedAll(newParser(t), sizedChunks(input, size)...)
		assertWellFormed(t, evs)
		assert.Equal(t, want, ExtractSegments(evs), "chunk size %d", size)
	}
}

func TestParser_Holdback(t *testing.T) {
	p := newParser(t)

	evs := p.Feed("<run_bash>echo hi</run")
	for _, ev := range evs {
		if ev.Kind == EventContent {
			assert.NotContains(t, ev.Delta, "<")
			assert.NotContains(t, ev.Delta, "</run")
		}
	}

	fin := p.Finalize()
	all := append(evs, fin...)
	assertWellFormed(t, all)

	segs := ExtractSegments(all)
	require.Len(t, segs, 1)
	assert.Equal(t, SegmentRunBash, segs[0].Type)
	assert.Equal(t, "echo hi", segs[0].Content)
	assert.True(t, segs[0].Complete)
}

func TestParser_HoldbackArithmetic(t *testing.T) {
	p := newParser(t)

	// "</run_bash>" is 11 characters, so the last 10 are withheld.
	evs := p.Feed("<run_bash>0123456789abcdef")
	var emitted strings.Builder
	for _, ev := range evs {
		if ev.Kind == EventContent {
			emitted.WriteString(ev.Delta)
		}
	}
	assert.Equal(t, "012345", emitted.String())

	evs = p.Feed("</run_bash>")
	emitted.Reset()
	for _, ev := range evs {
		if ev.Kind == EventContent {
			emitted.WriteString(ev.Delta)
		}
	}
	assert.Equal(t, "6789abcdef", emitted.String())
	require.NotEmpty(t, evs)
	assert.Equal(t, EventEnd, evs[len(evs)-1].Kind)
}

func TestParser_UnknownTagIsText(t *testing.T) {
	input := "Hello <span>world</span>!"

	for _, chunks := range [][]string{{input}, charChunks(input)} {
		evs := feedAll(newParser(t), chunks...)
		assertWellFormed(t, evs)

		segs := ExtractSegments(evs)
		require.Len(t, segs, 1)
		assert.Equal(t, SegmentText, segs[0].Type)
		assert.Equal(t, input, segs[0].Content)
	}
}

func TestParser_TextLike(t *testing.T) {
	inputs := []string{
		"a < b and c<d",
		"<toolbox>x</toolbox>",
		"<<run_bash",
		"x </run_bash> y",
		"<run_bashful>",
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			for _, chunks := range [][]string{{input}, charChunks(input)} {
				segs := ExtractSegments(feedAll(newParser(t), chunks...))
				require.Len(t, segs, 1)
				assert.Equal(t, SegmentText, segs[0].Type)
				assert.Equal(t, input, segs[0].Content)
			}
		})
	}
}

func TestParser_SegmentsAroundTool(t *testing.T) {
	evs := feedAll(newParser(t), `Before <write_file path="a.txt">hello</write_file> after`)
	assertWellFormed(t, evs)

	segs := ExtractSegments(evs)
	require.Len(t, segs, 3)

	assert.Equal(t, SegmentText, segs[0].Type)
	assert.Equal(t, "seg_1", segs[0].ID)
	assert.Equal(t, "Before ", segs[0].Content)

	assert.Equal(t, SegmentWriteFile, segs[1].Type)
	assert.Equal(t, "seg_2", segs[1].ID)
	assert.Equal(t, "hello", segs[1].Content)
	assert.Equal(t, "a.txt", metaValue(t, segs[1], "path"))

	assert.Equal(t, SegmentText, segs[2].Type)
	assert.Equal(t, "seg_3", segs[2].ID)
	assert.Equal(t, " after", segs[2].Content)
}

func TestParser_NestedArgs(t *testing.T) {
	input := "<run_bash>\n" +
		"<arg name=\"command\">ls -la</arg>\n" +
		"<arg name=\"background\">YES</arg>\n" +
		"<arg name=\"timeout_seconds\">abc</arg>\n" +
		"</run_bash>"

	evs := feedAll(newParser(t), charChunks(input)...)
	assertWellFormed(t, evs)

	var sawMetadata bool
	for _, ev := range evs {
		if ev.Kind == EventMetadata {
			sawMetadata = true
			v, ok := ev.Metadata.Get("background")
			assert.True(t, ok)
			assert.Equal(t, true, v)
		}
	}
	assert.True(t, sawMetadata, "metadata must be pushed while the segment is open")

	segs := ExtractSegments(evs)
	require.Len(t, segs, 1)
	assert.Equal(t, "ls -la", segs[0].Content)
	assert.Equal(t, true, metaValue(t, segs[0], "background"))
	_, hasTimeout := segs[0].Metadata.Get("timeout_seconds")
	assert.False(t, hasTimeout, "invalid integers are ignored")
}

func TestParser_UnnamedArgIsBody(t *testing.T) {
	input := "<run_bash>echo <arg>x</arg> y</run_bash>"

	for _, chunks := range [][]string{{input}, charChunks(input), sizedChunks(input, 3)} {
		evs := feedAll(newParser(t), chunks...)
		assertWellFormed(t, evs)

		segs := ExtractSegments(evs)
		require.Len(t, segs, 1)
		assert.Equal(t, SegmentRunBash, segs[0].Type)
		assert.Equal(t, "echo <arg>x</arg> y", segs[0].Content)
		assert.Equal(t, 0, segs[0].Metadata.Len())
	}
}

func TestParser_AttributeWinsOverArg(t *testing.T) {
	input := `<run_bash background="false"><arg name="background">true</arg>ls</run_bash>`

	segs := ExtractSegments(feedAll(newParser(t), input))
	require.Len(t, segs, 1)
	assert.Equal(t, false, metaValue(t, segs[0], "background"))
	assert.Equal(t, "ls", segs[0].Content)
}

func TestParser_InvalidAttributeIgnored(t *testing.T) {
	input := `<run_bash timeout_seconds="-3" background="maybe">sleep 1</run_bash>`

	segs := ExtractSegments(feedAll(newParser(t), input))
	require.Len(t, segs, 1)
	assert.Equal(t, 0, segs[0].Metadata.Len())
	assert.Equal(t, "sleep 1", segs[0].Content)
}

func TestParser_WriteFileArgs(t *testing.T) {
	input := "<write_file>\n<arg name=\"path\"> out/a.txt </arg>\n<arg name=\"content\">hello\nworld</arg>\n</write_file>"

	for _, size := range []int{1, 4, 100} {
		segs := ExtractSegments(feedAll(newParser(t), sizedChunks(input, size)...))
		require.Len(t, segs, 1)
		assert.Equal(t, SegmentWriteFile, segs[0].Type)
		assert.Equal(t, "hello\nworld", segs[0].Content)
		assert.Equal(t, "out/a.txt", metaValue(t, segs[0], "path"))
	}
}

func TestParser_GenericTool(t *testing.T) {
	input := `<tool name="search"><arg name="query">go &amp; rust</arg><arg name="limit">5</arg><arg name="query">ignored</arg></tool>`

	segs := ExtractSegments(feedAll(newParser(t), charChunks(input)...))
	require.Len(t, segs, 1)
	seg := segs[0]
	assert.Equal(t, SegmentToolCall, seg.Type)
	assert.Equal(t, "search", seg.MetaString("tool_name"))

	args, ok := metaValue(t, seg, "arguments").(*Metadata)
	require.True(t, ok)
	assert.Equal(t, 2, args.Len())
	q, _ := args.Get("query")
	assert.Equal(t, "go & rust", q)
	l, _ := args.Get("limit")
	assert.Equal(t, "5", l)
	assert.Equal(t, "query", args.Oldest().Key)
}

func TestParser_GenericToolJSONBody(t *testing.T) {
	segs := ExtractSegments(feedAll(newParser(t), `<tool name='calc'> {"a": 1, "b": "two"} </tool>`))
	require.Len(t, segs, 1)

	args, ok := metaValue(t, segs[0], "arguments").(*Metadata)
	require.True(t, ok)
	a, _ := args.Get("a")
	assert.Equal(t, float64(1), a)
	b, _ := args.Get("b")
	assert.Equal(t, "two", b)
}

func TestParser_SelfClosingTool(t *testing.T) {
	evs := feedAll(newParser(t), `ok <tool name="ping"/> bye`)
	assertWellFormed(t, evs)

	segs := ExtractSegments(evs)
	require.Len(t, segs, 3)
	assert.Equal(t, SegmentToolCall, segs[1].Type)
	assert.Equal(t, "ping", segs[1].MetaString("tool_name"))
	assert.Equal(t, "", segs[1].Content)
	args := metaValue(t, segs[1], "arguments").(*Metadata)
	assert.Equal(t, 0, args.Len())
}

func TestParser_UnterminatedAtFinalize(t *testing.T) {
	t.Run("incomplete opening tag", func(t *testing.T) {
		segs := ExtractSegments(feedAll(newParser(t), "abc <run_ba"))
		require.Len(t, segs, 1)
		assert.Equal(t, SegmentText, segs[0].Type)
		assert.Equal(t, "abc <run_ba", segs[0].Content)
	})

	t.Run("incomplete attributes", func(t *testing.T) {
		segs := ExtractSegments(feedAll(newParser(t), `<write_file path="a`))
		require.Len(t, segs, 1)
		assert.Equal(t, SegmentText, segs[0].Type)
		assert.Equal(t, `<write_file path="a`, segs[0].Content)
	})

	t.Run("unclosed body", func(t *testing.T) {
		segs := ExtractSegments(feedAll(newParser(t), "<run_bash>ls"))
		require.Len(t, segs, 1)
		assert.Equal(t, SegmentRunBash, segs[0].Type)
		assert.Equal(t, "ls", segs[0].Content)
		assert.True(t, segs[0].Complete)
	})
}

func TestParser_ToolCallsDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ParseToolCalls = false
	p, err := New(cfg)
	require.NoError(t, err)

	input := `<run_bash>ls</run_bash> {"tool": "x"}`
	segs := ExtractSegments(feedAll(p, input))
	require.Len(t, segs, 1)
	assert.Equal(t, SegmentText, segs[0].Type)
	assert.Equal(t, input, segs[0].Content)
}

func TestParser_UnknownStrategy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StrategyOrder = []string{"xml_tag", "yaml_block"}

	_, err := New(cfg)
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestParser_SegmentIDsIncrease(t *testing.T) {
	p := newParser(t)
	evs := feedAll(p, "a<run_bash>x</run_bash>b<run_bash>y</run_bash>c")

	var ids []string
	for _, ev := range evs {
		if ev.Kind == EventStart {
			ids = append(ids, ev.SegmentID)
		}
	}
	assert.Equal(t, []string{"seg_1", "seg_2", "seg_3", "seg_4", "seg_5"}, ids)
}

func TestParser_EmptyInput(t *testing.T) {
	p := newParser(t)
	assert.Empty(t, p.Feed(""))
	assert.Empty(t, p.Finalize())
}
