package streamparser

import (
	"strings"
	"unicode"
)

// tagFactory builds the body state for a recognized opening tag. The opening
// tag has already been consumed.
type tagFactory func(p *Parser, attrs []attribute, selfClosing bool) state

func defaultTagRegistry() map[string]tagFactory {
	return map[string]tagFactory{
		"run_bash":   commandTag(runBashSpec),
		"write_file": commandTag(writeFileSpec),
		"tool":       toolCallTag,
	}
}

func (p *Parser) isTagPrefix(name string) bool {
	for tag := range p.tags {
		if strings.HasPrefix(tag, name) {
			return true
		}
	}
	return false
}

type xmlTagStrategy struct{}

func (xmlTagStrategy) name() string        { return StrategyXMLTag }
func (xmlTagStrategy) trigger(r rune) bool { return r == '<' }
func (xmlTagStrategy) enter(*Parser) state { return xmlTagInitState{} }

// xmlTagInitState decides whether the '<' at the cursor opens a recognized
// tag. It bails out to text as soon as the tag name can no longer match.
type xmlTagInitState struct{}

func (xmlTagInitState) run(p *Parser) bool {
	rem := p.scanner.Remaining()
	if len(rem) < 2 {
		return false
	}

	i := 1
	for i < len(rem) && isNameRune(rem[i]) {
		i++
		if !p.isTagPrefix(string(rem[1:i])) {
			p.textFallback(i)
			return true
		}
	}
	if i == 1 {
		p.textFallback(1)
		return true
	}
	if i == len(rem) {
		return false
	}

	name := string(rem[1:i])
	factory, ok := p.tags[name]
	next := rem[i]
	if !ok || !(next == '>' || next == '/' || unicode.IsSpace(next)) {
		p.textFallback(i)
		return true
	}

	end := findTagEnd(rem, i, p.cfg.MaxTagLength)
	if end < 0 {
		if len(rem) >= p.cfg.MaxTagLength {
			p.textFallback(i)
			return true
		}
		return false
	}

	selfClosing := rem[end-1] == '/'
	attrs := parseAttributes(string(rem[i:end]))
	p.scanner.Advance(end + 1)
	p.state = factory(p, attrs, selfClosing)
	return true
}

func (xmlTagInitState) finalize(p *Parser) {
	p.textFallback(p.scanner.Len())
}
