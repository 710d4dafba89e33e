package streamparser

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// SegmentType classifies a segment.
type SegmentType string

const (
	SegmentText      SegmentType = "TEXT"
	SegmentWriteFile SegmentType = "WRITE_FILE"
	SegmentRunBash   SegmentType = "RUN_BASH"
	SegmentToolCall  SegmentType = "TOOL_CALL"
)

// IsTool reports whether segments of this type become tool invocations.
func (t SegmentType) IsTool() bool {
	return t == SegmentWriteFile || t == SegmentRunBash || t == SegmentToolCall
}

// EventKind is the lifecycle step a SegmentEvent reports.
type EventKind string

const (
	EventStart    EventKind = "START"
	EventContent  EventKind = "CONTENT"
	EventMetadata EventKind = "METADATA"
	EventEnd      EventKind = "END"
)

// Metadata is the ordered key/value metadata of a segment.
type Metadata = orderedmap.OrderedMap[string, any]

// NewMetadata returns an empty metadata map.
func NewMetadata() *Metadata {
	return orderedmap.New[string, any]()
}

// SegmentEvent is one lifecycle event of a segment.
type SegmentEvent struct {
	Kind        EventKind   `json:"kind"`
	SegmentID   string      `json:"segment_id"`
	SegmentType SegmentType `json:"segment_type"`
	Delta       string      `json:"delta,omitempty"`
	Metadata    *Metadata   `json:"metadata,omitempty"`
}

// Segment is a fully materialized segment.
type Segment struct {
	Type     SegmentType `json:"type"`
	ID       string      `json:"id"`
	Content  string      `json:"content"`
	Metadata *Metadata   `json:"metadata"`
	Complete bool        `json:"complete"`
}

// MetaString returns the metadata value under key formatted as a string.
func (s Segment) MetaString(key string) string {
	if s.Metadata == nil {
		return ""
	}
	v, ok := s.Metadata.Get(key)
	if !ok || v == nil {
		return ""
	}
	if str, ok := v.(string); ok {
		return str
	}
	return ""
}

// ExtractSegments reduces a stream of segment events to segments in the order
// they were started. Content is concatenated and metadata merged, later keys
// overwriting earlier ones. Segments without an END are returned with
// Complete set to false.
func ExtractSegments(evs []SegmentEvent) []Segment {
	var (
		order    []string
		segments = make(map[string]*Segment)
		content  = make(map[string][]byte)
	)

	for _, ev := range evs {
		seg, ok := segments[ev.SegmentID]
		if !ok {
			if ev.Kind != EventStart {
				continue
			}
			seg = &Segment{Type: ev.SegmentType, ID: ev.SegmentID, Metadata: NewMetadata()}
			segments[ev.SegmentID] = seg
			order = append(order, ev.SegmentID)
		}

		switch ev.Kind {
		case EventContent:
			content[ev.SegmentID] = append(content[ev.SegmentID], ev.Delta...)
		case EventEnd:
			seg.Complete = true
		}
		mergeMetadata(seg.Metadata, ev.Metadata)
	}

	out := make([]Segment, 0, len(order))
	for _, id := range order {
		seg := segments[id]
		seg.Content = string(content[id])
		out = append(out, *seg)
	}
	return out
}

func mergeMetadata(dst, src *Metadata) {
	if src == nil {
		return
	}
	for pair := src.Oldest(); pair != nil; pair = pair.Next() {
		dst.Set(pair.Key, pair.Value)
	}
}

func copyMetadata(src *Metadata) *Metadata {
	dst := NewMetadata()
	mergeMetadata(dst, src)
	return dst
}
