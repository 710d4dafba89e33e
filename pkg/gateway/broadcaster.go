package gateway

import (
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/harun/agentcore/pkg/status"
	"github.com/harun/agentcore/pkg/streamparser"
	"github.com/rs/zerolog"
)

// EventBroadcaster delivers events to the authenticated clients subscribed to
// the emitting agent.
type EventBroadcaster struct {
	clients *ClientRegistry
	logger  zerolog.Logger
	seq     atomic.Int64
}

// NewEventBroadcaster creates a new event broadcaster
func NewEventBroadcaster(clients *ClientRegistry, logger zerolog.Logger) *EventBroadcaster {
	return &EventBroadcaster{
		clients: clients,
		logger:  logger.With().Str("component", "broadcaster").Logger(),
	}
}

// Broadcast sends an untyped event. An empty agentID reaches every client.
func (b *EventBroadcaster) Broadcast(agentID, event string, data any) {
	b.BroadcastTyped(EventMessage{Event: event, AgentID: agentID, Data: data})
}

// BroadcastTyped stamps msg with a sequence number and timestamp and sends it.
func (b *EventBroadcaster) BroadcastTyped(msg EventMessage) {
	msg.Type = "event"
	if msg.Seq == 0 {
		msg.Seq = b.seq.Add(1)
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}
	b.broadcastMessage(msg)
}

func (b *EventBroadcaster) broadcastMessage(msg EventMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error().
			Err(err).
			Str("event", msg.Event).
			Str("agent_id", msg.AgentID).
			Int64("seq", msg.Seq).
			Msg("Failed to marshal event")
		return
	}

	clients := b.clients.Subscribers(msg.AgentID)
	if len(clients) == 0 {
		return
	}

	failed := 0
	for _, client := range clients {
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			b.logger.Warn().
				Err(err).
				Str("clientId", client.ID).
				Str("event", msg.Event).
				Int64("seq", msg.Seq).
				Msg("Failed to broadcast to client")
			failed++
		}
	}

	if failed > 0 {
		b.logger.Debug().
			Str("event", msg.Event).
			Int("delivered", len(clients)-failed).
			Int("failed", failed).
			Msg("Event broadcast incomplete")
	}
}

// ForAgent returns a notifier that forwards the status changes and parser
// segment events of agentID to subscribed clients.
func (b *EventBroadcaster) ForAgent(agentID string) *AgentStream {
	return &AgentStream{broadcaster: b, agentID: agentID}
}

// AgentStream publishes one agent's notifications.
type AgentStream struct {
	broadcaster *EventBroadcaster
	agentID     string
}

func (s *AgentStream) NotifyStatusChange(newStatus, oldStatus status.AgentStatus, data map[string]any) {
	s.broadcaster.BroadcastTyped(EventMessage{
		Event:   "agent.status",
		Stream:  StreamTypeStatus,
		Phase:   newStatus.String(),
		AgentID: s.agentID,
		Data: map[string]any{
			"old_status": oldStatus.String(),
			"new_status": newStatus.String(),
			"data":       data,
		},
	})
}

func (s *AgentStream) NotifySegmentEvent(agentID string, ev streamparser.SegmentEvent) {
	if agentID == "" {
		agentID = s.agentID
	}
	s.broadcaster.BroadcastTyped(EventMessage{
		Event:   "agent.segment",
		Stream:  StreamTypeSegment,
		Phase:   string(ev.Kind),
		AgentID: agentID,
		Data:    ev,
	})
}
