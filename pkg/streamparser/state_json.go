package streamparser

import (
	"strings"
	"unicode"

	"github.com/kaptinlin/jsonrepair"
	"github.com/tidwall/gjson"
)

type jsonToolStrategy struct{}

func (jsonToolStrategy) name() string          { return StrategyJSONTool }
func (jsonToolStrategy) trigger(r rune) bool   { return r == '{' || r == '[' }
func (jsonToolStrategy) enter(p *Parser) state { return jsonInitState{} }

// jsonInitState compares the whitespace-free prefix at the cursor with the
// configured signatures. It waits while the prefix can still match.
type jsonInitState struct{}

func (jsonInitState) run(p *Parser) bool {
	rem := p.scanner.Remaining()
	if len(rem) == 0 {
		return false
	}

	window := rem
	if len(window) > p.cfg.MaxTagLength {
		window = window[:p.cfg.MaxTagLength]
	}
	var b strings.Builder
	for _, r := range window {
		if !unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	prefix := b.String()

	undecided := false
	for _, sig := range p.cfg.JSONSignatures {
		if strings.HasPrefix(prefix, sig) {
			p.state = &jsonToolState{}
			return true
		}
		if strings.HasPrefix(sig, prefix) {
			undecided = true
		}
	}
	if undecided && len(rem) < p.cfg.MaxTagLength {
		return false
	}

	p.textFallback(1)
	return true
}

func (jsonInitState) finalize(p *Parser) {
	p.textFallback(p.scanner.Len())
}

// jsonToolState buffers one balanced JSON value and emits it as tool calls
// once it is complete.
type jsonToolState struct {
	pos      int
	depth    int
	inString bool
	escaped  bool
}

func (s *jsonToolState) run(p *Parser) bool {
	rem := p.scanner.Remaining()
	for s.pos < len(rem) {
		r := rem[s.pos]
		s.pos++
		if s.pos > p.cfg.MaxJSONLength {
			p.textFallback(s.pos)
			return true
		}

		if s.inString {
			switch {
			case s.escaped:
				s.escaped = false
			case r == '\\':
				s.escaped = true
			case r == '"':
				s.inString = false
			}
			continue
		}

		switch r {
		case '"':
			s.inString = true
		case '{', '[':
			s.depth++
		case '}', ']':
			s.depth--
			if s.depth == 0 {
				raw := string(rem[:s.pos])
				p.scanner.Advance(s.pos)
				p.emitJSONToolCalls(raw)
				p.state = textState{}
				return true
			}
		}
	}
	return false
}

func (s *jsonToolState) finalize(p *Parser) {
	p.textFallback(p.scanner.Len())
}

type jsonCall struct {
	name string
	args *Metadata
	raw  string
}

// emitJSONToolCalls turns a complete JSON value into TOOL_CALL segments, or
// into text when it does not describe any call.
func (p *Parser) emitJSONToolCalls(raw string) {
	calls, ok := parseJSONToolCalls(raw)
	if !ok {
		p.appendText(raw)
		return
	}
	for _, call := range calls {
		start := NewMetadata()
		start.Set("tool_name", call.name)
		p.startSegment(SegmentToolCall, start)
		p.appendContent(call.raw)

		end := NewMetadata()
		end.Set("arguments", call.args)
		p.endSegment(end)
	}
}

func parseJSONToolCalls(raw string) ([]jsonCall, bool) {
	if !gjson.Valid(raw) {
		fixed, err := jsonrepair.JSONRepair(raw)
		if err != nil || !gjson.Valid(fixed) {
			return nil, false
		}
		raw = fixed
	}

	root := gjson.Parse(raw)
	var items []gjson.Result
	switch {
	case root.IsArray():
		items = root.Array()
	case root.IsObject():
		items = []gjson.Result{root}
	default:
		return nil, false
	}

	calls := make([]jsonCall, 0, len(items))
	for _, item := range items {
		call, ok := jsonCallFrom(item)
		if !ok {
			return nil, false
		}
		calls = append(calls, call)
	}
	return calls, len(calls) > 0
}

func jsonCallFrom(item gjson.Result) (jsonCall, bool) {
	if !item.IsObject() {
		return jsonCall{}, false
	}

	var name string
	for _, path := range []string{"tool", "name", "function.name", "tool_name"} {
		if v := item.Get(path); v.Type == gjson.String && v.String() != "" {
			name = v.String()
			break
		}
	}
	if name == "" {
		return jsonCall{}, false
	}

	args := NewMetadata()
	for _, path := range []string{"arguments", "args", "parameters", "input", "function.arguments"} {
		v := item.Get(path)
		if !v.Exists() {
			continue
		}
		if v.Type == gjson.String {
			// OpenAI-style arguments encoded as a JSON string
			if obj, ok := jsonObject(v.String()); ok {
				args = obj
			}
			break
		}
		if v.IsObject() {
			args = objectToMetadata(v)
			break
		}
	}

	return jsonCall{name: name, args: args, raw: item.Raw}, true
}

// jsonObject parses s as a JSON object, repairing it when needed.
func jsonObject(s string) (*Metadata, bool) {
	if !gjson.Valid(s) {
		fixed, err := jsonrepair.JSONRepair(s)
		if err != nil || !gjson.Valid(fixed) {
			return nil, false
		}
		s = fixed
	}
	v := gjson.Parse(s)
	if !v.IsObject() {
		return nil, false
	}
	return objectToMetadata(v), true
}

func objectToMetadata(v gjson.Result) *Metadata {
	out := NewMetadata()
	v.ForEach(func(key, value gjson.Result) bool {
		out.Set(key.String(), value.Value())
		return true
	})
	return out
}

// ParseJSONArguments decodes a JSON object into ordered arguments, repairing
// malformed input. An empty string yields empty arguments.
func ParseJSONArguments(s string) (*Metadata, bool) {
	if strings.TrimSpace(s) == "" {
		return NewMetadata(), true
	}
	return jsonObject(s)
}
