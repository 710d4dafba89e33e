// Package streamparser turns an arbitrarily chunked model response into
// segment lifecycle events.
//
// The parser keeps every received character in a Scanner and hands control to
// a current state (text, xml tag initialization, xml tool body, json
// initialization, json tool body). States consume what they can, emit
// SegmentEvents and switch to the next state; Feed drives the current state
// until it reports no progress.
//
// Invariants:
// - Every segment is emitted as START, zero or more non-empty CONTENT, END.
// - At most one segment is open at a time; METADATA only targets the open one.
// - The materialized segments do not depend on how the input was chunked.
// - Unknown tags and unterminated tool markup end up as TEXT, never as errors.
//
// Usage:
//
//	p, _ := streamparser.New(streamparser.DefaultConfig())
//	var evs []streamparser.SegmentEvent
//	for chunk := range chunks {
//		evs = append(evs, p.Feed(chunk)...)
//	}
//	evs = append(evs, p.Finalize()...)
//	segments := streamparser.ExtractSegments(evs)
package streamparser
