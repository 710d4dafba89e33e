package streamparser

import (
	"html"
	"strings"
	"unicode"
)

var (
	argOpenToken = []rune("<arg")
	argCloser    = []rune("</arg>")
)

// commandSpec describes a tag whose body is a command or file payload and
// whose parameters come from attributes or nested <arg> elements.
type commandSpec struct {
	tag        string
	segType    SegmentType
	contentArg string
	coercers   map[string]func(string) (any, bool)
}

var runBashSpec = &commandSpec{
	tag:        "run_bash",
	segType:    SegmentRunBash,
	contentArg: "command",
	coercers: map[string]func(string) (any, bool){
		"background": func(s string) (any, bool) {
			v, ok := coerceBool(s)
			return v, ok
		},
		"timeout_seconds": func(s string) (any, bool) {
			v, ok := coercePositiveInt(s)
			return v, ok
		},
	},
}

var writeFileSpec = &commandSpec{
	tag:        "write_file",
	segType:    SegmentWriteFile,
	contentArg: "content",
}

func (c *commandSpec) resolve(key, raw string) (any, bool) {
	if coerce, ok := c.coercers[key]; ok {
		return coerce(raw)
	}
	return strings.TrimSpace(raw), true
}

type commandMode int

const (
	modeBody commandMode = iota
	modeArgOpen
	modeArgValue
)

// commandState parses the body of run_bash and write_file. Plain body text and
// the value of the content argument stream out as CONTENT; every other
// argument becomes a METADATA update as soon as it is complete.
type commandState struct {
	spec     *commandSpec
	closer   []rune
	mode     commandMode
	resolved map[string]bool

	// whitespace withheld until it is known not to precede an <arg> element
	pendingWS string
	sawArg    bool

	argName  string
	argValue strings.Builder
}

func commandTag(spec *commandSpec) tagFactory {
	return func(p *Parser, attrs []attribute, selfClosing bool) state {
		s := &commandState{
			spec:     spec,
			closer:   []rune("</" + spec.tag + ">"),
			resolved: make(map[string]bool),
		}

		meta := NewMetadata()
		var content string
		for _, a := range attrs {
			if a.key == spec.contentArg {
				content = a.value
				continue
			}
			if v, ok := s.resolveOnce(a.key, a.value); ok {
				meta.Set(a.key, v)
			}
		}

		p.startSegment(spec.segType, meta)
		p.appendContent(content)
		if selfClosing {
			p.endSegment(nil)
			return textState{}
		}
		return s
	}
}

func (s *commandState) resolveOnce(key, raw string) (any, bool) {
	if s.resolved[key] {
		return nil, false
	}
	v, ok := s.spec.resolve(key, raw)
	if !ok {
		return nil, false
	}
	s.resolved[key] = true
	return v, true
}

func (s *commandState) run(p *Parser) bool {
	switch s.mode {
	case modeArgOpen:
		return s.runArgOpen(p)
	case modeArgValue:
		return s.runArgValue(p)
	default:
		return s.runBody(p)
	}
}

func (s *commandState) runBody(p *Parser) bool {
	rem := p.scanner.Remaining()
	if len(rem) == 0 {
		return false
	}

	ci := indexRunes(rem, s.closer)
	limit := len(rem)
	if ci >= 0 {
		limit = ci
	}

	if ai := findArgOpen(rem[:limit]); ai >= 0 {
		s.emitBody(p, rem[:ai])
		p.scanner.Advance(ai)
		s.mode = modeArgOpen
		return true
	}

	if ci >= 0 {
		s.emitBody(p, rem[:ci])
		s.finishBody(p)
		p.scanner.Advance(ci + len(s.closer))
		p.endSegment(nil)
		p.state = textState{}
		return true
	}

	keep := len(s.closer) - 1
	if len(rem) <= keep {
		return false
	}
	n := len(rem) - keep
	s.emitBody(p, rem[:n])
	p.scanner.Advance(n)
	return true
}

func (s *commandState) runArgOpen(p *Parser) bool {
	rem := p.scanner.Remaining()
	end := findTagEnd(rem, len(argOpenToken), p.cfg.MaxTagLength)
	if end < 0 {
		if len(rem) >= p.cfg.MaxTagLength {
			s.emitBody(p, rem[:len(argOpenToken)])
			p.scanner.Advance(len(argOpenToken))
			s.mode = modeBody
			return true
		}
		return false
	}

	attrs := parseAttributes(string(rem[len(argOpenToken):end]))
	name, _ := attributeValue(attrs, "name")
	if strings.TrimSpace(name) == "" {
		// an unnamed <arg> is body text
		s.emitBody(p, rem[:end+1])
		p.scanner.Advance(end + 1)
		s.mode = modeBody
		return true
	}

	s.pendingWS = ""
	s.sawArg = true
	s.argName = name
	s.argValue.Reset()
	selfClosing := rem[end-1] == '/'
	p.scanner.Advance(end + 1)

	if selfClosing {
		s.resolveArg(p)
		s.mode = modeBody
		return true
	}
	s.mode = modeArgValue
	return true
}

func (s *commandState) runArgValue(p *Parser) bool {
	rem := p.scanner.Remaining()
	if len(rem) == 0 {
		return false
	}

	if ci := indexRunes(rem, argCloser); ci >= 0 {
		s.argPart(p, rem[:ci])
		p.scanner.Advance(ci + len(argCloser))
		s.resolveArg(p)
		s.mode = modeBody
		return true
	}

	keep := len(argCloser) - 1
	if len(rem) <= keep {
		return false
	}
	n := len(rem) - keep
	s.argPart(p, rem[:n])
	p.scanner.Advance(n)
	return true
}

func (s *commandState) finalize(p *Parser) {
	rem := p.scanner.Remaining()
	switch s.mode {
	case modeBody:
		s.emitBody(p, rem[:len(rem)-partialSuffix(rem, s.closer)])
	case modeArgValue:
		s.argPart(p, rem[:len(rem)-partialSuffix(rem, argCloser)])
		s.resolveArg(p)
	}
	s.finishBody(p)
	p.scanner.Advance(len(rem))
	p.endSegment(nil)
}

// emitBody streams body text, holding back a trailing whitespace run.
func (s *commandState) emitBody(p *Parser, rs []rune) {
	text := string(rs)
	if text == "" {
		return
	}
	trimmed := strings.TrimRightFunc(text, unicode.IsSpace)
	if trimmed == "" {
		s.pendingWS += text
		return
	}
	p.appendContent(s.pendingWS + trimmed)
	s.pendingWS = text[len(trimmed):]
}

// finishBody releases withheld whitespace unless the body used <arg> elements.
func (s *commandState) finishBody(p *Parser) {
	if !s.sawArg {
		p.appendContent(s.pendingWS)
	}
	s.pendingWS = ""
}

func (s *commandState) argPart(p *Parser, rs []rune) {
	if len(rs) == 0 {
		return
	}
	if s.argName == s.spec.contentArg {
		p.appendContent(string(rs))
		return
	}
	s.argValue.WriteString(string(rs))
}

func (s *commandState) resolveArg(p *Parser) {
	name := s.argName
	raw := html.UnescapeString(s.argValue.String())
	s.argName = ""
	s.argValue.Reset()

	if name == "" || name == s.spec.contentArg {
		return
	}
	if v, ok := s.resolveOnce(name, raw); ok {
		p.updateMetadata(name, v)
	}
}

// findArgOpen returns the index of the first "<arg" followed by whitespace or
// '>', or -1.
func findArgOpen(rs []rune) int {
	n := len(argOpenToken)
	for i := 0; i+n < len(rs); i++ {
		if string(rs[i:i+n]) != string(argOpenToken) {
			continue
		}
		if next := rs[i+n]; next == '>' || unicode.IsSpace(next) {
			return i
		}
	}
	return -1
}

// toolCallState streams the raw body of a generic <tool name="..."> element
// and resolves its arguments when the element closes.
type toolCallState struct {
	closer []rune
	body   strings.Builder
}

func toolCallTag(p *Parser, attrs []attribute, selfClosing bool) state {
	meta := NewMetadata()
	name, _ := attributeValue(attrs, "name")
	meta.Set("tool_name", strings.TrimSpace(name))
	p.startSegment(SegmentToolCall, meta)

	s := &toolCallState{closer: []rune("</tool>")}
	if selfClosing {
		s.end(p)
		return textState{}
	}
	return s
}

func (s *toolCallState) run(p *Parser) bool {
	rem := p.scanner.Remaining()
	if len(rem) == 0 {
		return false
	}

	if ci := indexRunes(rem, s.closer); ci >= 0 {
		s.write(p, rem[:ci])
		p.scanner.Advance(ci + len(s.closer))
		s.end(p)
		p.state = textState{}
		return true
	}

	keep := len(s.closer) - 1
	if len(rem) <= keep {
		return false
	}
	n := len(rem) - keep
	s.write(p, rem[:n])
	p.scanner.Advance(n)
	return true
}

func (s *toolCallState) finalize(p *Parser) {
	rem := p.scanner.Remaining()
	s.write(p, rem[:len(rem)-partialSuffix(rem, s.closer)])
	p.scanner.Advance(len(rem))
	s.end(p)
}

func (s *toolCallState) write(p *Parser, rs []rune) {
	text := string(rs)
	s.body.WriteString(text)
	p.appendContent(text)
}

func (s *toolCallState) end(p *Parser) {
	meta := NewMetadata()
	meta.Set("arguments", parseToolArguments(s.body.String()))
	p.endSegment(meta)
}

// parseToolArguments reads <arg> elements from body, falling back to a JSON
// object body.
func parseToolArguments(body string) *Metadata {
	args := parseArgElements(body)
	if args.Len() > 0 {
		return args
	}
	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "{") {
		if obj, ok := jsonObject(trimmed); ok {
			return obj
		}
	}
	return args
}
