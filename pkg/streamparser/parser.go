package streamparser

import (
	"fmt"

	"github.com/harun/agentcore/internal/observability"
)

// state is one mode of the parser. run consumes what it can from the scanner
// and reports whether it made progress; finalize flushes whatever the state
// still holds at end of stream.
type state interface {
	run(p *Parser) bool
	finalize(p *Parser)
}

// strategy recognizes the start of structured output in plain text.
type strategy interface {
	name() string
	trigger(r rune) bool
	enter(p *Parser) state
}

type openSegment struct {
	id  string
	typ SegmentType
}

// Parser is a streaming segment parser for one model response. It is not safe
// for concurrent use.
type Parser struct {
	cfg        Config
	scanner    Scanner
	state      state
	strategies []strategy
	tags       map[string]tagFactory

	seq  int
	open *openSegment
	out  []SegmentEvent
}

// New creates a parser. It fails only for unknown strategy names.
func New(cfg Config) (*Parser, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	p := &Parser{
		cfg:   cfg,
		state: textState{},
		tags:  defaultTagRegistry(),
	}

	if cfg.ParseToolCalls {
		for _, name := range cfg.StrategyOrder {
			switch name {
			case StrategyXMLTag:
				p.strategies = append(p.strategies, xmlTagStrategy{})
			case StrategyJSONTool:
				p.strategies = append(p.strategies, jsonToolStrategy{})
			}
		}
	}

	return p, nil
}

// Feed appends chunk and returns the events it made possible.
func (p *Parser) Feed(chunk string) []SegmentEvent {
	if chunk != "" {
		p.scanner.Append(chunk)
	}
	for p.state.run(p) {
	}
	p.scanner.Compact()
	return p.drain()
}

// Finalize signals end of stream. Pending tool markup is closed or degraded
// to text and any open segment is ended.
func (p *Parser) Finalize() []SegmentEvent {
	for p.state.run(p) {
	}
	p.state.finalize(p)
	p.state = textState{}
	p.closeOpen()
	p.scanner.Compact()
	return p.drain()
}

func (p *Parser) drain() []SegmentEvent {
	out := p.out
	p.out = nil
	return out
}

// findTrigger returns the earliest position in rs where an enabled strategy
// triggers. Ties go to the strategy listed first.
func (p *Parser) findTrigger(rs []rune) (int, strategy) {
	if len(p.strategies) == 0 {
		return -1, nil
	}
	for i, r := range rs {
		for _, s := range p.strategies {
			if s.trigger(r) {
				return i, s
			}
		}
	}
	return -1, nil
}

func (p *Parser) emit(ev SegmentEvent) {
	p.out = append(p.out, ev)
}

// startSegment closes any open segment and opens a new one.
func (p *Parser) startSegment(typ SegmentType, meta *Metadata) string {
	p.closeOpen()
	p.seq++
	seg := &openSegment{id: fmt.Sprintf("seg_%d", p.seq), typ: typ}
	p.open = seg

	ev := SegmentEvent{Kind: EventStart, SegmentID: seg.id, SegmentType: typ}
	if meta != nil && meta.Len() > 0 {
		ev.Metadata = copyMetadata(meta)
	}
	p.emit(ev)
	return seg.id
}

// appendContent adds delta to the open segment.
func (p *Parser) appendContent(delta string) {
	if delta == "" || p.open == nil {
		return
	}
	p.emit(SegmentEvent{Kind: EventContent, SegmentID: p.open.id, SegmentType: p.open.typ, Delta: delta})
}

// appendText adds delta to the open TEXT segment, opening one when needed.
func (p *Parser) appendText(delta string) {
	if delta == "" {
		return
	}
	if p.open == nil || p.open.typ != SegmentText {
		p.startSegment(SegmentText, nil)
	}
	p.appendContent(delta)
}

// updateMetadata pushes a metadata update to the open segment.
func (p *Parser) updateMetadata(key string, value any) {
	if p.open == nil {
		return
	}
	meta := NewMetadata()
	meta.Set(key, value)
	p.emit(SegmentEvent{Kind: EventMetadata, SegmentID: p.open.id, SegmentType: p.open.typ, Metadata: meta})
}

// endSegment ends the open segment, attaching meta when it is not empty.
func (p *Parser) endSegment(meta *Metadata) {
	if p.open == nil {
		return
	}
	ev := SegmentEvent{Kind: EventEnd, SegmentID: p.open.id, SegmentType: p.open.typ}
	if meta != nil && meta.Len() > 0 {
		ev.Metadata = copyMetadata(meta)
	}
	p.emit(ev)
	observability.RecordSegment(string(p.open.typ))
	p.open = nil
}

func (p *Parser) closeOpen() {
	if p.open != nil {
		p.endSegment(nil)
	}
}

// textFallback emits the first n unconsumed characters as text and returns to
// the text state.
func (p *Parser) textFallback(n int) {
	rem := p.scanner.Remaining()
	if n > len(rem) {
		n = len(rem)
	}
	p.appendText(string(rem[:n]))
	p.scanner.Advance(n)
	p.state = textState{}
}

type textState struct{}

func (textState) run(p *Parser) bool {
	rem := p.scanner.Remaining()
	if len(rem) == 0 {
		return false
	}

	idx, s := p.findTrigger(rem)
	if idx < 0 {
		p.appendText(string(rem))
		p.scanner.Advance(len(rem))
		return true
	}
	if idx > 0 {
		p.appendText(string(rem[:idx]))
		p.scanner.Advance(idx)
	}
	p.state = s.enter(p)
	return true
}

func (textState) finalize(p *Parser) {
	rem := p.scanner.Remaining()
	p.appendText(string(rem))
	p.scanner.Advance(len(rem))
}
